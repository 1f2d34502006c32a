package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roadassist/internal/config"
	"roadassist/internal/handlers"
	"roadassist/internal/repositories/mongodb"
	"roadassist/internal/services"
	"roadassist/pkg/cache"
	"roadassist/pkg/database"
	"roadassist/pkg/logger"
	"roadassist/pkg/maps"
	"roadassist/pkg/metrics"
	"roadassist/pkg/push"
	ws "roadassist/pkg/websocket"
	"roadassist/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("Starting server")

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer db.Close()

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	router, err := maps.NewGoogleRouter(cfg.Maps.APIKey)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize routing client")
	}

	var notifier push.Provider
	if cfg.Push.Enabled {
		notifier, err = push.NewFCMProvider(cfg.Push.CredentialsFile)
		if err != nil {
			log.WithError(err).Warn("Push notifications disabled: FCM initialization failed")
			notifier = nil
		}
	}

	collector := metrics.NewCollector()

	hub := ws.NewHub()
	go hub.Run()

	tripRepo := mongodb.NewTripRepository(db.Database)
	auditRepo := mongodb.NewFeeAuditRepository(db.Database)

	tripStateCache := services.NewTripStateCache(redisCache, cfg.Redis.TripStateTTL)
	routeService := services.NewRouteService(router, cfg.Maps, log, collector)
	sessionManager := services.NewSessionManager(cfg.Navigation, routeService, tripRepo, tripStateCache, hub, notifier, log, collector)
	tripService := services.NewTripService(tripRepo, log)
	feeService := services.NewFeeService(tripRepo, auditRepo, cfg.Fees, log)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	routes.SetupRoutes(engine, routes.Handlers{
		Trip:       handlers.NewTripHandler(tripService, feeService),
		Navigation: handlers.NewNavigationHandler(sessionManager),
		WebSocket:  handlers.NewWebSocketHandler(hub),
	}, collector)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.App.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	sessionManager.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Forced server shutdown")
	}

	log.Info("Server stopped")
}
