package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"quest-server/internal/config"
	"quest-server/internal/database"
	"quest-server/internal/dice"
	"quest-server/internal/handler"
	"quest-server/internal/logger"
	"quest-server/internal/messaging"
	"quest-server/internal/session"
	"quest-server/pkg/ai"
)

func main() {
	// .env опционален: в контейнере конфигурация приходит из окружения.
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используются переменные окружения")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- PostgreSQL ---
	pool, err := database.NewPgxPool(ctx, cfg.GetDSN(), cfg.DBMaxConns, cfg.DBIdleTimeout, zapLogger)
	if err != nil {
		zapLogger.Fatal("Ошибка подключения к PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool, zapLogger); err != nil {
		zapLogger.Fatal("Ошибка подготовки схемы", zap.Error(err))
	}

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("Redis недоступен", zap.Error(err))
	}
	defer redisClient.Close()

	// --- RabbitMQ ---
	mqConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("Ошибка подключения к RabbitMQ", zap.Error(err))
	}
	defer mqConn.Close()

	publisher, err := messaging.NewRabbitMQEventPublisher(mqConn, cfg.SessionEventQueue, zapLogger)
	if err != nil {
		zapLogger.Fatal("Ошибка создания паблишера событий", zap.Error(err))
	}
	defer publisher.Close()

	// --- Генеративный бэкенд ---
	aiClient, err := ai.NewClient(ai.Config{
		ClientType: cfg.AIClientType,
		APIKey:     cfg.AIAPIKey,
		BaseURL:    cfg.AIBaseURL,
		Model:      cfg.AIModel,
		Timeout:    cfg.AITimeout,
	})
	if err != nil {
		zapLogger.Fatal("Ошибка создания AI-клиента", zap.Error(err))
	}

	// --- Сборка ядра сессий ---
	repo := database.NewPgGameStateRepository(pool, zapLogger)
	cache := database.NewGameStateCache(redisClient, cfg.StateCacheTTL, zapLogger)
	store := database.NewGameStateStore(repo, cache, zapLogger)
	manager := session.NewSessionManager(aiClient, dice.NewRoller(), store, publisher, cfg.AIModel, zapLogger)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(handler.ZapLoggingMiddleware(zapLogger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	sessionHandler := handler.NewSessionHandler(manager, zapLogger)
	sessionHandler.RegisterRoutes(router)

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	zapLogger.Info("Запуск HTTP-сервера", zap.String("port", cfg.Port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Ошибка HTTP-сервера", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Остановка сервера...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Принудительная остановка HTTP-сервера", zap.Error(err))
	}

	zapLogger.Info("Сервер остановлен")
}
