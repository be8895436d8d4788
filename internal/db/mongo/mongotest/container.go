// Package mongotest starts a shared MongoDB container for integration tests.
package mongotest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/oyiakoumis/poco-sub000/internal/db/mongo"
)

// Image is the Atlas local image; it runs a single-node replica set with search support,
// which gives transactions and vector search indexes.
const Image = "mongodb/mongodb-atlas-local:8.0"

// TestMongo holds the shared container and its connection URI.
type TestMongo struct {
	Container testcontainers.Container
	URI       string
}

var (
	shared     *TestMongo
	sharedOnce sync.Once
	sharedErr  error
)

// Get returns the shared container, starting it on first use.
func Get(t *testing.T) *TestMongo {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedOnce.Do(func() {
		shared, sharedErr = setup()
	})

	if sharedErr != nil {
		t.Fatalf("Failed to setup test mongo: %v", sharedErr)
	}

	return shared
}

// NewClient connects to a fresh database on the shared container and drops it on cleanup.
func NewClient(t *testing.T) *mongo.Client {
	t.Helper()
	tm := Get(t)

	ctx := context.Background()
	c, err := mongo.Connect(ctx, mongo.Config{
		URI:            tm.URI,
		Database:       "test_" + uuid.NewString()[:8],
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.WaitForReady(ctx, 30*time.Second); err != nil {
		t.Fatalf("wait for ready: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func setup() (*TestMongo, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        Image,
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &TestMongo{
		Container: container,
		URI:       fmt.Sprintf("mongodb://%s:%s/?directConnection=true", host, port.Port()),
	}, nil
}
