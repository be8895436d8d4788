package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/oyiakoumis/poco-sub000/internal/config"
	dbMongo "github.com/oyiakoumis/poco-sub000/internal/db/mongo"
	dbRedis "github.com/oyiakoumis/poco-sub000/internal/db/redis"
	"github.com/oyiakoumis/poco-sub000/internal/domain"
	logpkg "github.com/oyiakoumis/poco-sub000/internal/logger"
	"github.com/oyiakoumis/poco-sub000/internal/metrics"
	datasetrepo "github.com/oyiakoumis/poco-sub000/internal/repository/dataset"
	"github.com/oyiakoumis/poco-sub000/internal/repository/embcache"
	recordrepo "github.com/oyiakoumis/poco-sub000/internal/repository/record"
	chiTransport "github.com/oyiakoumis/poco-sub000/internal/transport/chi"
	openaiEmb "github.com/oyiakoumis/poco-sub000/internal/transport/openai"
	embeddinguc "github.com/oyiakoumis/poco-sub000/internal/usecase/embedding"
	healthuc "github.com/oyiakoumis/poco-sub000/internal/usecase/health"
	"github.com/oyiakoumis/poco-sub000/internal/usecase/manager"
	"github.com/oyiakoumis/poco-sub000/internal/vectorindex"
	"github.com/oyiakoumis/poco-sub000/internal/version"
)

const embeddingProvider = "openai"

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docstore API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("built", version.BuildDate),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("mongo_database", cfg.Mongo.Database),
		zap.Bool("embedding_cache", cfg.Cache.Enabled()),
	)

	ctx := context.Background()

	client, err := dbMongo.Connect(ctx, dbMongo.Config{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: time.Duration(cfg.Mongo.ConnectTimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create mongo client", zap.Error(err))
	}
	defer func() { _ = client.Close(context.Background()) }()

	if err := client.WaitForReady(ctx, time.Duration(cfg.Mongo.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterStoreMetrics()

	var cache *dbRedis.Store
	if cfg.Cache.Enabled() {
		cache, err = dbRedis.NewStore(dbRedis.Config{Addrs: cfg.Cache.Addrs, Password: cfg.Cache.Password})
		if err != nil {
			logger.Fatal("Failed to create embedding cache", zap.Error(err))
		}
		defer cache.Close()
	}

	embedder, instrumented := buildEmbedder(cfg, cache, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	datasets := datasetrepo.New(client.Collection(cfg.Mongo.DatasetsCollection))
	records := recordrepo.New(client.Collection(cfg.Mongo.RecordsCollection))

	lifecycle := vectorindex.NewLifecycle(vectorindex.Config{
		PollInterval: time.Duration(cfg.IndexLifecycle.PollIntervalSec) * time.Second,
		MaxAttempts:  cfg.IndexLifecycle.MaxAttempts,
		DeletingWait: time.Duration(cfg.IndexLifecycle.DeletingWaitSec) * time.Second,
	}, logger)

	mgr := manager.New(datasets, records, embedder, client,
		manager.WithVectorSearch(vectorSearchConfig(cfg)),
		manager.WithLifecycle(lifecycle),
		manager.WithLogger(logger),
	)
	if err := mgr.Setup(ctx); err != nil {
		logger.Fatal("Failed to set up document store", zap.Error(err))
	}

	healthOpts := []healthuc.Option{healthuc.WithEmbedding(instrumented), healthuc.WithLogger(logger)}
	if cache != nil {
		healthOpts = append(healthOpts, healthuc.WithCache(cache))
	}
	healthSvc := healthuc.New(client, healthOpts...)

	server := chiTransport.NewServer(mgr, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func vectorSearchConfig(cfg config.Config) domain.VectorSearchConfig {
	return domain.VectorSearchConfig{
		Model:                   cfg.Embedding.Model,
		Dimensions:              cfg.Embedding.Dimensions,
		Similarity:              cfg.VectorSearch.Similarity,
		FieldPath:               cfg.VectorSearch.FieldPath,
		DatasetIndexName:        cfg.VectorSearch.DatasetIndexName,
		RecordIndexName:         cfg.VectorSearch.RecordIndexName,
		NumCandidatesMultiplier: cfg.VectorSearch.NumCandidatesMultiplier,
		MinScore:                cfg.VectorSearch.MinScore,
	}
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
// The instrumented layer is also returned for health checks.
func buildEmbedder(
	cfg config.Config, cache *dbRedis.Store, logger *zap.Logger,
) (domain.Embedder, *embeddinguc.InstrumentedEmbedder) {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   embeddingProvider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cache != nil {
		embedder = embcache.New(base, cache, metrics.EmbeddingCacheTotal, logger,
			embcache.WithModel(cfg.Embedding.Model),
			embcache.WithTTL(time.Duration(cfg.Cache.TTLHours)*time.Hour),
		)
	}

	instrumented := embeddinguc.NewInstrumentedEmbedder(
		embedder, embeddingProvider, cfg.Embedding.Model, cfg.Embedding.Dimensions, logger,
	)

	// Outermost, so the cache key includes the instruction.
	if cfg.Embedding.Instruction != "" {
		return domain.NewInstructionEmbedder(instrumented, cfg.Embedding.Instruction), instrumented
	}
	return instrumented, instrumented
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(
				zap.String("request_id", requestID),
				zap.String("user_id", r.Header.Get(chiTransport.UserIDHeader)),
			)
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
				zap.String("embedding_tokens", ww.Header().Get("X-Embedding-Tokens")),
			)
		})
	}
}
