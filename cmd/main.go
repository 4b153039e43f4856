package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-assistant-platform/internal/ai"
	"course-assistant-platform/internal/config"
	"course-assistant-platform/internal/logger"
	"course-assistant-platform/internal/queue"
	"course-assistant-platform/internal/schedule"
	"course-assistant-platform/internal/telemetry"
	"course-assistant-platform/middleware"
	"course-assistant-platform/routes"
	"course-assistant-platform/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Telemetry
	var shutdownTracer func()
	if cfg.TracingEnabled {
		shutdownTracer, err = telemetry.InitTracer("course-assistant-platform", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
			shutdownTracer = nil
		}
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	// MongoDB holds course content and validation logs
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Redis is optional: without it the file-context store and the async
	// indexing queue fall back to in-process alternatives.
	var rdb *redis.Client
	if r, rerr := config.NewRedisClient(cfg); rerr != nil {
		logger.Warn("redis unavailable, using in-memory fallbacks", "error", rerr)
	} else {
		rdb = r
		defer rdb.Close()
	}

	ctx := context.Background()

	// AI collaborators
	embeddings := ai.NewEmbeddingService(ctx, cfg)
	embeddings.SetMetrics(metrics)
	defer embeddings.Close()

	var generator ai.Generator
	if cfg.GeminiAPIKey != "" {
		geminiClient, gerr := ai.NewGeminiClient(cfg)
		if gerr != nil {
			logger.Warn("gemini client unavailable, generation degraded", "error", gerr)
		} else {
			geminiClient.SetMetrics(metrics)
			generator = geminiClient
		}
	} else {
		logger.Warn("GEMINI_API_KEY not set, generation and AI intent disabled")
	}

	// Retrieval pipeline
	vectorIndex := services.NewVectorIndex(cfg.VectorDimensions, cfg.MinSimilarity)
	chunker := services.NewChunkingService(cfg.MaxChunkSize, cfg.CodeChunkSize, cfg.OverlapWords, cfg.MinChunkSize)
	contentSource := services.NewMongoContentSource(db)
	indexing := services.NewIndexingService(contentSource, chunker, embeddings, vectorIndex)
	retrieval := services.NewRetrievalService(embeddings, vectorIndex, cfg.MaxContextChunks, cfg.MaxContextLength)
	retrieval.SetMetrics(metrics)

	// Conversational layer
	sessions := services.NewMemorySessionStore(cfg.SessionMaxHistory, cfg.SessionIdleTimeout)
	classifier := services.NewIntentClassifier(cfg, generator)
	validator := services.NewValidationEngine(cfg, embeddings, generator, db.Collection("validation_logs"))
	validator.SetMetrics(metrics)
	chatService := services.NewChatService(cfg, sessions, classifier, retrieval, generator, validator)

	// Ephemeral file contexts
	var fileContexts services.FileContextStore
	if cfg.FileContextBackend == "redis" && rdb != nil {
		fileContexts = services.NewRedisFileContextStore(rdb, cfg.FileContextTTL)
	} else {
		fileContexts = services.NewMemoryFileContextStore(cfg.FileContextTTL)
	}

	// Async indexing queue. The worker runs embedded because the vector
	// index lives in this process.
	var asynqClient *asynq.Client
	var asynqServer *asynq.Server
	if rdb != nil {
		var redisOpt asynq.RedisConnOpt
		if parsed, perr := asynq.ParseRedisURI(cfg.RedisURL); perr == nil {
			redisOpt = parsed
		} else {
			redisOpt = asynq.RedisClientOpt{Addr: cfg.RedisURL, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		}
		asynqClient = asynq.NewClient(redisOpt)
		defer asynqClient.Close()

		asynqServer = asynq.NewServer(redisOpt, asynq.Config{
			Concurrency: 2,
			Queues:      map[string]int{"indexing": 1},
		})
		processor := queue.NewTaskProcessor(indexing, metrics)
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskIndexContent, processor.ProcessIndexContent)
		mux.HandleFunc(queue.TaskDeleteIndex, processor.ProcessDeleteIndex)
		go func() {
			if serr := asynqServer.Run(mux); serr != nil {
				logger.Error("asynq server stopped", "error", serr)
			}
		}()
	}

	// Maintenance sweeps
	scheduler := schedule.NewScheduler()
	scheduler.ScheduleInterval("file-context-sweep", cfg.FileContextSweep, func() error {
		removed := fileContexts.Sweep(context.Background())
		if removed > 0 {
			logger.Info("file contexts swept", "removed", removed)
		}
		return nil
	})
	scheduler.ScheduleInterval("session-sweep", cfg.SessionIdleTimeout, func() error {
		removed := sessions.SweepIdle()
		if removed > 0 {
			logger.Info("idle sessions swept", "removed", removed)
		}
		return nil
	})
	scheduler.Start()
	defer scheduler.Stop()

	// HTTP surface
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"indexed_chunks": vectorIndex.Size(),
			"timestamp":      time.Now(),
		})
	})

	identity := middleware.NewIdentityMiddleware(cfg)
	routes.SetupChatRoutes(router, chatService, identity)
	routes.SetupContentRoutes(router, cfg, db, indexing, retrieval, vectorIndex, asynqClient, identity)
	routes.SetupValidationRoutes(router, validator, identity)
	routes.SetupFileContextRoutes(router, fileContexts, identity)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if asynqServer != nil {
		asynqServer.Shutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if shutdownTracer != nil {
		shutdownTracer()
	}

	logger.Info("server exited")
}
