// Package main provides the main entry point for the campaign delivery engine
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HeltonFraga01/cortexx-engine/app/handlers"
	"github.com/HeltonFraga01/cortexx-engine/app/middleware"
	"github.com/HeltonFraga01/cortexx-engine/app/router"
	"github.com/HeltonFraga01/cortexx-engine/app/scheduler"
	"github.com/HeltonFraga01/cortexx-engine/app/services"
	businessflow "github.com/HeltonFraga01/cortexx-engine/business_flow"
	"github.com/HeltonFraga01/cortexx-engine/config"
	"github.com/HeltonFraga01/cortexx-engine/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application wires together the engine's long-lived components
type Application struct {
	router router.Router
	config *config.ProductionConfig
	engine *scheduler.CampaignScheduler
}

func main() {
	log.Println("Starting campaign delivery engine...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	// Park campaigns orphaned by a previous crash before accepting traffic
	recoverCtx, recoverCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	if err := app.engine.RecoverStale(recoverCtx); err != nil {
		log.Printf("Stale campaign recovery failed: %v", err)
	}
	recoverCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Pause running workers first so their progress is durable, then stop
	// accepting HTTP traffic
	if err := app.engine.Shutdown(shutdownCtx); err != nil {
		log.Printf("Engine shutdown incomplete: %v", err)
	}
	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeApplication builds the dependency graph
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database initialization failed: %w", err)
	}

	rc, err := initializeRedis(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis initialization failed: %w", err)
	}

	campaignRepo := repository.NewCampaignRepository(db)
	contactRepo := repository.NewCampaignContactRepository(db)
	auditRepo := repository.NewCampaignAuditLogRepository(db)
	errorRepo := repository.NewCampaignErrorLogRepository(db)
	txm := repository.NewTxManager(db)

	lock := scheduler.NewRedisProcessingLock(rc, cfg.Redis.Prefix, cfg.Engine.LockTTL)
	gateway := scheduler.NewWhatsAppGatewayClient(cfg.Gateway)
	quota := scheduler.NewHTTPQuotaClient(cfg.Quota)

	hostname, _ := os.Hostname()
	owner := fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])

	engine := scheduler.NewCampaignScheduler(
		campaignRepo, contactRepo, auditRepo, errorRepo, txm,
		lock, gateway, quota,
		cfg.Engine, cfg.Logging, owner,
	)

	campaignFlow := businessflow.NewCampaignFlow(
		campaignRepo, contactRepo, auditRepo, errorRepo, txm,
		engine, cfg.Engine,
	)

	tokenService, err := services.NewTokenService(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("token service initialization failed: %w", err)
	}

	campaignHandler := handlers.NewCampaignHandler(campaignFlow)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	return &Application{
		router: router.NewFiberRouter(campaignHandler, authMiddleware, cfg),
		config: cfg,
		engine: engine,
	}, nil
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeRedis initializes the Redis client backing the processing lock
func initializeRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Printf("Redis connection established at %s", cfg.Addr)
	return rc, nil
}
