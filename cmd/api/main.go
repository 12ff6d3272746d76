package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agribid-backend/config"
	_ "agribid-backend/docs" // Important for Swagger
	"agribid-backend/internal/app"
	"agribid-backend/internal/delivery/http/middleware"
	v1 "agribid-backend/internal/delivery/http/v1"
	"agribid-backend/internal/domain"
	"agribid-backend/internal/repository/sessionstore"
	"agribid-backend/pkg/logger"
	"agribid-backend/pkg/security"
)

// @title           AgriBid API
// @version         1.0
// @description     Marketplace backend connecting farmers with buying companies and exporters.
// @host            localhost:8080
// @BasePath        /v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Setup Logger
	logger.Init(cfg.LogLevel)
	logger.Log.Info("Starting AgriBid backend", "port", cfg.Port)

	// 3. Connect backends and wire usecases
	ctx := context.Background()
	container, err := app.New(ctx, cfg)
	if err != nil {
		logger.Log.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	// 4. Request guards
	rateLimiter := middleware.NewRateLimiter(container.Redis, container.Security)
	defer rateLimiter.Stop()
	uploadLimiter := security.NewUploadLimiter(container.Redis, 10, 100)

	// Each credential request gets its own session manager holding only the
	// session the request carries.
	sessions := func(session *domain.Session) domain.SessionManager {
		manager, _ := container.NewSessionManager(sessionstore.NewMemoryStore(session))
		return manager
	}

	// 5. Setup Router
	router := v1.NewRouter(v1.RouterDeps{
		Config:        cfg,
		Sessions:      sessions,
		ProfileUC:     container.ProfileUC,
		ProductUC:     container.ProductUC,
		HealthUC:      container.HealthUC,
		Projector:     container.Projector,
		Verifier:      container.Verifier,
		RateLimiter:   rateLimiter,
		LoginTracker:  container.LoginTracker(),
		UploadLimiter: uploadLimiter,
		Images:        container.Images,
		Security:      container.Security,
		Metrics:       container.Metrics,
		Gatherer:      container.Registry,
	})

	// 6. Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("Listen failed", "error", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", "error", err)
	}

	logger.Log.Info("Server exiting")
}
