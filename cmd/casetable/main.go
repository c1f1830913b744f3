package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/casetable/internal/config"
	"github.com/kailas-cloud/casetable/internal/db"
	"github.com/kailas-cloud/casetable/internal/db/memory"
	dbRedis "github.com/kailas-cloud/casetable/internal/db/redis"
	"github.com/kailas-cloud/casetable/internal/domain/layout"
	"github.com/kailas-cloud/casetable/internal/domain/lineage"
	"github.com/kailas-cloud/casetable/internal/domain/sequence"
	logpkg "github.com/kailas-cloud/casetable/internal/logger"
	"github.com/kailas-cloud/casetable/internal/metrics"
	datasetrepo "github.com/kailas-cloud/casetable/internal/repository/dataset"
	preferencerepo "github.com/kailas-cloud/casetable/internal/repository/preference"
	"github.com/kailas-cloud/casetable/internal/transport/bridge"
	chiTransport "github.com/kailas-cloud/casetable/internal/transport/chi"
	healthuc "github.com/kailas-cloud/casetable/internal/usecase/health"
	modeluc "github.com/kailas-cloud/casetable/internal/usecase/model"
	relocationuc "github.com/kailas-cloud/casetable/internal/usecase/relocation"
	syncuc "github.com/kailas-cloud/casetable/internal/usecase/synchronizer"
	"github.com/kailas-cloud/casetable/internal/version"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err.Error())
	}
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting casetable server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("bridge_url", cfg.Host.BridgeURL),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	var store db.Store
	switch cfg.Database.Driver {
	case config.DriverRedis, config.DriverValkey:
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case config.DriverMemory:
		store = memory.NewStore()
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create preference store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Preference store not ready", zap.Error(err))
	}
	logger.Info("Connected to preference store")

	metrics.RegisterHostMetrics()

	defaultLayout, err := layout.Parse(cfg.Layout.Default)
	if err != nil {
		logger.Fatal("Invalid default layout", zap.Error(err))
	}

	client := bridge.NewClient(&bridge.Config{
		BaseURL: cfg.Host.BridgeURL,
		Token:   cfg.Host.Token,
		Timeout: time.Duration(cfg.Host.RequestTimeoutSec) * time.Second,
		Logger:  logger,
	})

	dsRepo := datasetrepo.New(client, logger).WithFetchConcurrency(cfg.Host.FetchConcurrency)
	prefRepo := preferencerepo.New(store, cfg.Database.KeyPrefix).WithDefault(defaultLayout)

	// One tracker for the model and the relocation engine: both sequence attribute keys.
	seq := sequence.NewTracker()
	modelSvc := modeluc.New(dsRepo, prefRepo, seq, logger)
	relocSvc := relocationuc.New(dsRepo, modelSvc, seq, logger)

	syncSvc := syncuc.New(client, modelSvc, prefRepo,
		time.Duration(cfg.Host.ReloadTimeoutSec)*time.Second, logger)
	syncSvc.OnLineage(func(dataset string, l lineage.Lineage) {
		logger.Debug("selection lineage", zap.String("dataset", dataset), zap.Ints("cases", l.CaseIDs()))
	})
	if err := syncSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to subscribe to host notifications", zap.Error(err))
	}

	healthSvc := healthuc.New(store, client, 0)

	server := chiTransport.NewServer(modelSvc, relocSvc, syncSvc, client, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	syncSvc.Stop()

	logger.Info("Server stopped gracefully")
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
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits one log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
