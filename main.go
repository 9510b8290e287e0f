package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/auth"
	"messenger-service/internal/cache"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/fanout"
	"messenger-service/internal/handlers"
	"messenger-service/internal/hub"
	"messenger-service/internal/logging"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/reaper"
	"messenger-service/internal/repositories"
	"messenger-service/internal/service"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/tracing"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.Init(ctx, cfg.OTLPEndpoint, "messenger-service", cfg.Environment)
	if err != nil {
		logger.Fatalw("failed to init tracing", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("tracer shutdown failed", "error", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err)
	}
	defer database.Close()

	userRepo := repositories.NewUserRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
	}

	var store cache.Cache
	switch {
	case cfg.CacheDisabled:
		store = cache.Noop{}
		logger.Infow("cache disabled")
	case redisClient != nil:
		store = cache.NewRedis(redisClient, logger)
		logger.Infow("cache backed by redis", "addr", cfg.RedisAddr)
	default:
		store = cache.NewMemory()
		logger.Infow("cache backed by process memory")
	}

	local := fanout.NewLocal(logger)
	var fan fanout.Fanout = local
	if redisClient != nil {
		bridge := fanout.NewRedis(local, redisClient, logger)
		go bridge.Run(ctx)
		fan = bridge
		logger.Infow("fanout bridged over redis", "addr", cfg.RedisAddr)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	logger.Infow("event publisher ready",
		"mode", rabbitmq.PublisherMode(publisher),
		"reason", rabbitmq.PublisherNoopReason(publisher))

	audit := telemetry.NewAuditEmitter(publisher, "audit.messenger", "messenger-service", cfg.Environment, logger)

	svc := service.NewMessagingService(
		userRepo, chatRepo, messageRepo,
		store, fan, publisher, logger,
		cfg.ChatListTTL, cfg.MessageCountTTL,
	)

	sweeper := reaper.New(messageRepo, fan, svc.InvalidateConversation, logger, cfg.SweepInterval)
	svc.SetReadDeleter(sweeper)
	go sweeper.Run(ctx)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	wsHub := hub.New(fan, svc, userRepo, verifier, audit, logger)
	messageHandler := handlers.NewMessageHandler(svc, logger)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("messenger-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/ws", wsHub.HandleWS)

	api := router.Group("/api", middleware.Auth(verifier))
	api.POST("/messages", messageHandler.SendMessage)
	api.GET("/messages/:user_id", messageHandler.GetMessages)
	api.GET("/chats", messageHandler.GetChats)
	api.PUT("/messages/:message_id/read", messageHandler.MarkRead)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Infow("server listening", "port", cfg.Port, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("server shutdown failed", "error", err)
	}
}
