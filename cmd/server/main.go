package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"token-registry.backend/internal/config"
	"token-registry.backend/internal/domain/entities"
	"token-registry.backend/internal/infrastructure/datasources/postgres"
	"token-registry.backend/internal/infrastructure/datasources/sqlite"
	"token-registry.backend/internal/infrastructure/feed"
	"token-registry.backend/internal/infrastructure/metrics"
	"token-registry.backend/internal/infrastructure/models"
	"token-registry.backend/internal/infrastructure/repositories"
	"token-registry.backend/internal/interfaces/http/handlers"
	"token-registry.backend/internal/interfaces/http/middleware"
	"token-registry.backend/internal/usecases"
	"token-registry.backend/pkg/jwt"
	"token-registry.backend/pkg/logger"
	"token-registry.backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

var (
	loadDotenv   = godotenv.Load
	loadCfg      = config.Load
	loadNetworks = config.LoadNetworks
	initLog      = logger.Init
	initRedis    = redis.Init
	openDB       = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
		switch cfg.Driver {
		case config.DriverSQLite:
			return sqlite.NewConnection(cfg)
		case config.DriverPostgres:
			return postgres.NewConnection(cfg)
		}
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	runServer = func(srv *http.Server) error { return srv.ListenAndServe() }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env, logger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logger.Sync()
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	networkList, err := loadNetworks(cfg.Networks.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load network catalog: %w", err)
	}
	networks := entities.NewNetworkCatalog(networkList)

	if cfg.Redis.Enabled {
		if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
			logger.Error(ctx, "Failed to initialize Redis", zap.Error(err))
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer redis.Close()
		logger.Info(ctx, "Redis initialized")
	}

	if !cfg.Server.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info(ctx, "Database ready", zap.String("driver", cfg.Database.Driver))

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)

	hub := feed.NewHub()
	defer hub.Close()
	collector := metrics.NewCollector()

	uow := repositories.NewUnitOfWork(db, hub, collector)
	tokenRepo := repositories.NewTokenRepository(db)
	markerRepo := repositories.NewContractMarkerRepository(db)

	storeUsecase := usecases.NewTokenStoreUsecase(uow, tokenRepo, markerRepo, networks)
	batchUsecase := usecases.NewBatchUsecase(uow, tokenRepo, markerRepo, networks, collector)
	feedUsecase := usecases.NewFeedUsecase(uow, tokenRepo, hub, networks, collector)

	if err := storeUsecase.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap native assets: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	r.GET("/metrics", gin.WrapH(collector.Handler()))
	registerAPIV1Routes(r, routeDeps{
		networkHandler:  handlers.NewNetworkHandler(storeUsecase),
		tokenHandler:    handlers.NewTokenHandler(storeUsecase),
		batchHandler:    handlers.NewBatchHandler(batchUsecase),
		contractHandler: handlers.NewContractHandler(storeUsecase),
		streamHandler:   handlers.NewStreamHandler(feedUsecase, cfg.Feed.KeepAlive),
		readAuth:        middleware.AuthMiddleware(jwtService, jwt.ScopeRead),
		writeAuth:       middleware.AuthMiddleware(jwtService, jwt.ScopeWrite),
		idempotency:     idempotencyMiddleware(cfg.Redis.Enabled),
		exposeDebug:     cfg.Server.IsDevelopment(),
	})

	for _, route := range r.Routes() {
		logger.Debug(ctx, "Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		logger.Info(ctx, "Shutting down server")
		// ends open streams so Shutdown does not wait on them
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info(ctx, "Token registry starting", zap.String("port", cfg.Server.Port), zap.Int("networks", len(networkList)))
	if err := runServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func idempotencyMiddleware(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.IdempotencyMiddleware()
}
