// Package mongo adapts the MongoDB driver to the narrow storage contracts used by the repositories.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/oyiakoumis/poco-sub000/internal/db"
)

// Config holds connection parameters for a MongoDB deployment.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Client owns the driver client and the database handle.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// Connect creates a client for cfg. The connection is established lazily by the driver;
// call WaitForReady to block until the deployment answers.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("uri is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout).SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Client{client: client, database: client.Database(cfg.Database)}, nil
}

// Ping checks connectivity against the primary.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// WaitForReady polls Ping until the deployment responds or timeout expires.
func (c *Client) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := c.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// Collection returns the named collection of the configured database.
func (c *Client) Collection(name string) *Collection {
	return &Collection{name: name, coll: c.database.Collection(name)}
}

// WithTransaction runs fn inside a session transaction. The context handed to fn carries
// the session, so every collection call made with it joins the transaction. An error
// returned by fn aborts the transaction and is returned unchanged.
func (c *Client) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := c.client.StartSession()
	if err != nil {
		return &db.Error{Op: db.OpTransaction, Err: err}
	}
	defer sess.EndSession(ctx)

	var fnErr error
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		fnErr = fn(sc)
		return nil, fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return &db.Error{Op: db.OpTransaction, Err: err}
	}
	return nil
}
