package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"productive-cloud/internal/config"
	"productive-cloud/internal/handler"
	"productive-cloud/internal/metrics"
	"productive-cloud/internal/middleware"
	"productive-cloud/internal/repository"
	"productive-cloud/internal/service"
	"productive-cloud/internal/websocket"
	"productive-cloud/pkg/logger"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	defer log.Sync()

	client, err := kivik.New("couch", cfg.Database.URL())
	if err != nil {
		log.Fatal("Failed to connect to CouchDB", zap.Error(err))
	}

	ctx := context.Background()
	exists, err := client.DBExists(ctx, cfg.Database.Name)
	if err != nil {
		log.Fatal("Failed to check database existence", zap.Error(err))
	}
	if !exists {
		if err := client.CreateDB(ctx, cfg.Database.Name); err != nil {
			log.Fatal("Failed to create database", zap.Error(err))
		}
		log.Info("Created database", zap.String("name", cfg.Database.Name))
	}

	userRepo := repository.NewUserRepository(client, cfg.Database.Name)
	datasetRepo := repository.NewDatasetRepository(client, cfg.Database.Name)

	m := metrics.New()

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerUser,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
		log,
	)
	wsManager.SetMessageHandler(handler.NewWebSocketMessageHandler())
	wsManager.SetConnectionGauge(m.WSConnections)
	go wsManager.Run()

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	userService := service.NewUserService(userRepo)
	datasetService := service.NewDatasetService(datasetRepo, wsManager, m)

	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware(m))

	handler.RegisterRoutes(r.PathPrefix("/api").Subrouter(), handler.Handlers{
		Auth: handler.NewAuthHandler(authService, log),
		User: handler.NewUserHandler(userService),
		Data: handler.NewDataHandler(datasetService, log),
	}, cfg.JWT.Secret)

	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret, log).HandleConnection)

	var h http.Handler = r
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit)
		h = limiter.Middleware()(h)

		go func() {
			ticker := time.NewTicker(cfg.RateLimit.Window)
			defer ticker.Stop()
			for range ticker.C {
				limiter.Cleanup()
			}
		}()
	}
	h = middleware.CORSMiddleware(cfg.CORS)(h)
	h = middleware.LoggerMiddleware(log)(h)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Starting Productive Cloud backend",
			zap.String("addr", addr),
			zap.String("env", cfg.Server.Env),
			zap.String("couchdb", cfg.Database.Host+":"+cfg.Database.Port),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped gracefully")
}
