package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/perspectra/bubblescope/internal/adapters"
	"github.com/perspectra/bubblescope/internal/analysis"
	"github.com/perspectra/bubblescope/internal/cache"
	"github.com/perspectra/bubblescope/internal/capability"
	"github.com/perspectra/bubblescope/internal/database"
	"github.com/perspectra/bubblescope/internal/errors"
	"github.com/perspectra/bubblescope/internal/jobs"
	"github.com/perspectra/bubblescope/internal/monitoring"
	"github.com/perspectra/bubblescope/internal/ratelimit"
	"github.com/perspectra/bubblescope/internal/types"
)

const analyzeTimeout = 2 * time.Minute

func main() {
	// Structured logging setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment with defaults
	port := getEnvOrDefault("PORT", "8080")
	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	classifierProvider := getEnvOrDefault("CLASSIFIER_PROVIDER", "huggingface")
	embedderProvider := getEnvOrDefault("EMBEDDER_PROVIDER", "huggingface")
	hfToken := os.Getenv("HUGGINGFACE_TOKEN")
	hfZeroShotModel := os.Getenv("HF_ZERO_SHOT_MODEL")
	hfEmotionModel := os.Getenv("HF_EMOTION_MODEL")
	hfEmbeddingModel := os.Getenv("HF_EMBEDDING_MODEL")
	openaiAPIKey := os.Getenv("OPENAI_API_KEY")
	openaiModel := os.Getenv("OPENAI_MODEL")
	voyageAPIKey := os.Getenv("VOYAGE_API_KEY")
	voyageModel := os.Getenv("VOYAGE_MODEL")
	workerCount := getEnvIntOrDefault("WORKER_COUNT", 4)
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := getEnvIntOrDefault("REDIS_DB", 0)

	// Initialize database
	db, err := database.NewDB(dataDir)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Capability handles are built once here and shared read-only by the
	// analyzers and the worker pool.
	hfAdapter := adapters.NewHuggingFaceAdapter(hfToken, hfZeroShotModel, hfEmotionModel, hfEmbeddingModel)
	defer errors.SafeClose(hfAdapter, "huggingface adapter")

	var classifier capability.TextClassifier
	switch classifierProvider {
	case "openai":
		if openaiAPIKey == "" {
			slog.Error("CLASSIFIER_PROVIDER=openai requires OPENAI_API_KEY")
			os.Exit(1)
		}
		classifier = adapters.NewOpenAIAdapter(openaiAPIKey, openaiModel)
	default:
		classifier = hfAdapter
	}

	var embedder capability.Embedder
	switch embedderProvider {
	case "voyage":
		if voyageAPIKey == "" {
			slog.Error("EMBEDDER_PROVIDER=voyage requires VOYAGE_API_KEY")
			os.Exit(1)
		}
		embedder = adapters.NewVoyageAdapter(voyageAPIKey, voyageModel)
	default:
		embedder = hfAdapter
	}

	biasDetector, err := analysis.NewBiasDetector(classifier)
	if err != nil {
		slog.Error("Failed to initialize bias detector", "error", err)
		os.Exit(1)
	}
	diversityAnalyzer, err := analysis.NewDiversityAnalyzer(embedder)
	if err != nil {
		slog.Error("Failed to initialize diversity analyzer", "error", err)
		os.Exit(1)
	}
	echoDetector, err := analysis.NewEchoChamberDetector(embedder)
	if err != nil {
		slog.Error("Failed to initialize echo chamber detector", "error", err)
		os.Exit(1)
	}

	// Initialize monitoring system
	appMetrics := monitoring.NewMetrics()
	appLogger := monitoring.NewLogger()

	// Start the worker pool for background jobs
	pool := jobs.NewPool(workerCount, repo, biasDetector, diversityAnalyzer, echoDetector, appMetrics, appLogger)
	pool.Start(context.Background())
	defer pool.Stop()

	// Rate limiting: Redis-backed with in-memory fallback
	redisClient, err := ratelimit.NewRedisClient(redisAddr, redisPassword, redisDB)
	if err != nil {
		slog.Warn("Redis unavailable, continuing with in-memory rate limiting", "error", err)
	}
	defer redisClient.Close()
	rateLimiter := ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig(), appMetrics)

	r := gin.New()

	// Add monitoring middleware first (to capture all requests)
	r.Use(monitoring.MonitoringMiddleware(appMetrics, appLogger))

	// Add error handling middleware
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())

	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	r.Use(rateLimiter.IPRateLimitMiddleware())
	r.Use(rateLimiter.AnalyzeRateLimitMiddleware())

	// Initialize cache (15 minutes TTL) for analyze endpoints
	appCache := cache.NewCache(15 * time.Minute)
	r.Use(appCache.Middleware(appMetrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   "1.0.0",
			"database":  db.GetPoolStats(),
			"redis":     redisClient.GetPoolStats(),
			"inference": hfAdapter.GetPoolStats(),
			"cache":     appCache.Stats(),
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"metrics":    appMetrics.GetStats(),
			"rate_limit": rateLimiter.GetStats(),
			"timestamp":  time.Now().Format(time.RFC3339),
		})
	})

	r.POST("/analyze/bias", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), analyzeTimeout)
		defer cancel()

		var req types.BiasRequest
		if err := c.BindJSON(&req); err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if len(req.Texts) == 0 {
			appErr := errors.NewInvalidInputError("texts must not be empty")
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		start := time.Now()
		results, err := biasDetector.AnalyzeBatch(ctx, req.Texts)
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		appMetrics.IncrementClassifierCalls()

		summary := biasDetector.Summarize(results)
		appLogger.AnalysisLogger(string(types.AnalysisBias), "inline", len(req.Texts),
			summary.AverageCompositeBias, "", time.Since(start))

		c.JSON(http.StatusOK, gin.H{
			"results": results,
			"summary": summary,
		})
	})

	r.POST("/analyze/diversity", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), analyzeTimeout)
		defer cancel()

		var req types.DiversityRequest
		if err := c.BindJSON(&req); err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		start := time.Now()
		metrics, err := diversityAnalyzer.CalculateMetrics(ctx, req.Items, req.TopicLabels, req.StanceLabels)
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		appMetrics.IncrementEmbeddingCalls()
		appLogger.AnalysisLogger(string(types.AnalysisDiversity), "inline", len(req.Items),
			metrics.EchoChamberScore, metrics.FilterBubbleSeverity, time.Since(start))

		c.JSON(http.StatusOK, metrics)
	})

	r.POST("/analyze/echo-chamber", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), analyzeTimeout)
		defer cancel()

		var req types.EchoChamberRequest
		if err := c.BindJSON(&req); err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		start := time.Now()
		result, err := echoDetector.Detect(ctx, req.Texts, req.Stances, req.ExpectedDistribution)
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		appMetrics.IncrementEmbeddingCalls()
		appLogger.AnalysisLogger(string(types.AnalysisEchoChamber), "inline", len(req.Texts),
			result.EchoChamberScore, result.Severity, time.Since(start))

		c.JSON(http.StatusOK, result)
	})

	// Cross-persona comparison over already-computed per-persona results.
	r.POST("/analyze/compare", func(c *gin.Context) {
		var req struct {
			Diversity   map[string]analysis.DiversityMetrics  `json:"diversity,omitempty"`
			EchoChamber map[string]analysis.EchoChamberResult `json:"echo_chamber,omitempty"`
		}
		if err := c.BindJSON(&req); err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if len(req.Diversity) == 0 && len(req.EchoChamber) == 0 {
			appErr := errors.NewInvalidInputError("at least one persona result map is required")
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		response := gin.H{}
		if len(req.Diversity) > 0 {
			response["diversity"] = diversityAnalyzer.ComparePersonas(req.Diversity)
		}
		if len(req.EchoChamber) > 0 {
			response["echo_chamber"] = echoDetector.ComparePersonas(req.EchoChamber)
		}
		c.JSON(http.StatusOK, response)
	})

	r.POST("/jobs", func(c *gin.Context) {
		var req types.JobRequest
		if err := c.BindJSON(&req); err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		job, err := pool.Submit(req)
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"job_id": job.ID,
			"status": job.Status,
		})
	})

	r.GET("/jobs/:id/:persona/:type", func(c *gin.Context) {
		jobID := c.Param("id")
		personaID := c.Param("persona")
		analysisType := c.Param("type")

		job, err := repo.GetJob(jobID)
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if job == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}

		response := gin.H{
			"job_id":     job.ID,
			"status":     job.Status,
			"created_at": job.CreatedAt.Format(time.RFC3339),
			"updated_at": job.UpdatedAt.Format(time.RFC3339),
		}
		if job.Error != "" {
			response["error"] = job.Error
		}

		result, err := repo.GetResult(jobID, personaID, analysisType)
		if err != nil {
			appErr := errors.ToAppError(err)
			errors.LogError(c, appErr)
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		if result != nil {
			response["result"] = result.Result
		}

		c.JSON(http.StatusOK, response)
	})

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		slog.Info("Starting server", "port", port,
			"classifier_provider", classifierProvider,
			"embedder_provider", embedderProvider,
			"workers", workerCount)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer environment variable, using default", "key", key, "value", value)
		return defaultValue
	}
	return parsed
}
