package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"planbook/api"
	"planbook/config"
	"planbook/database"
	"planbook/events"
	"planbook/repository"
	"planbook/service"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Println("Starting planbook server...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	// Initialize report cache when redis is configured
	var cache service.ReportCache
	var redisCache *repository.RedisCache
	if cfg.RedisAddr != "" {
		log.Printf("Enabling report cache at %s", cfg.RedisAddr)
		redisCache = repository.NewRedisCache(cfg.RedisAddr)
		cache = redisCache
	}

	// Initialize services
	planService := service.NewPlanService(uowFactory)
	paymentService := service.NewPaymentService(uowFactory)
	reportService := service.NewReportService(uowFactory, cache, cfg.PlatformFeeBps)

	// Initialize HTTP server
	server := api.NewServer(planService, paymentService, reportService)
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s in %s mode...", cfg.ListenAddr, cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		db.Close()
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	// Cleanup resources
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down http server: %v", err)
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			log.Printf("Error closing redis client: %v", err)
		}
	}

	log.Println("Closing database connection...")
	db.Close()

	log.Println("Shutdown completed")
	return nil
}
