package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lucidate/scribe/internal/config"
	"github.com/lucidate/scribe/internal/domain"
	logpkg "github.com/lucidate/scribe/internal/logger"
	"github.com/lucidate/scribe/internal/metrics"
	"github.com/lucidate/scribe/internal/pdf"
	chiTransport "github.com/lucidate/scribe/internal/transport/chi"
	openaiTransport "github.com/lucidate/scribe/internal/transport/openai"
	vertexTransport "github.com/lucidate/scribe/internal/transport/vertex"
	articleuc "github.com/lucidate/scribe/internal/usecase/article"
	composeuc "github.com/lucidate/scribe/internal/usecase/compose"
	embeddinguc "github.com/lucidate/scribe/internal/usecase/embedding"
	extractuc "github.com/lucidate/scribe/internal/usecase/extract"
	generateuc "github.com/lucidate/scribe/internal/usecase/generate"
	healthuc "github.com/lucidate/scribe/internal/usecase/health"
	indexuc "github.com/lucidate/scribe/internal/usecase/index"
	"github.com/lucidate/scribe/internal/version"
)

func main() {
	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting scribe API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Strings("models", modelNames(cfg.Generation.Models)),
	)

	// Register metrics explicitly (no init() for domain metrics)
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()

	// Embedder chain — composition root
	baseEmbedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	budgetCfg := cfg.Embedding.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budgetChecker = embeddinguc.NewBudgetTracker(
			budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
	}

	embedder := embeddinguc.NewInstrumentedEmbedder(baseEmbedder, cfg.Embedding.Model, budgetChecker, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("budget_enabled", budgetChecker != nil),
	)

	// Generation providers, keyed by the registry's provider names
	ctx := context.Background()
	genTimeout := time.Duration(cfg.Generation.TimeoutSec) * time.Second
	providers := generateuc.Providers{}

	var openaiGen *openaiTransport.Generator
	if needsProvider(cfg.Generation.Models, generateuc.ProviderOpenAI) {
		openaiGen = openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:  cfg.Generation.OpenAI.APIKey,
			BaseURL: cfg.Generation.OpenAI.BaseURL,
			Timeout: genTimeout,
			Logger:  logger,
		})
		providers[generateuc.ProviderOpenAI] = openaiGen
	}

	var vertexGen *vertexTransport.Generator
	if needsProvider(cfg.Generation.Models, generateuc.ProviderVertex) {
		vertexGen, err = vertexTransport.NewGenerator(
			ctx, cfg.Generation.Vertex.ProjectID, cfg.Generation.Vertex.Region, genTimeout, logger,
		)
		if err != nil {
			logger.Fatal("Failed to create Vertex AI generator", zap.Error(err))
		}
		defer vertexGen.Close()
		providers[generateuc.ProviderVertex] = vertexGen
	}

	// Use case services
	extractSvc := extractuc.New(
		pdf.NewExtractor(logger),
		cfg.Extraction.Parallelism,
		cfg.Extraction.MaxDocuments,
	)
	indexBuilder := indexuc.NewBuilder(embedder, cfg.Retrieval.ChunkChars)
	composer := composeuc.New()

	generateSvc, err := generateuc.New(cfg.Generation.Models, providers, cfg.Generation.MaxRetries)
	if err != nil {
		logger.Fatal("Failed to build model registry", zap.Error(err))
	}

	articleSvc := articleuc.New(extractSvc, indexBuilder, composer, generateSvc, articleuc.Options{
		DefaultTemplate:    cfg.Generation.DefaultTemplate,
		DefaultTemperature: cfg.Generation.DefaultTemperature,
		RetrievalQuery:     cfg.Retrieval.Query,
		TopK:               cfg.Retrieval.TopK,
	})

	healthSvc := healthuc.New()
	healthSvc.Register("embedding", baseEmbedder)
	if openaiGen != nil {
		healthSvc.Register("generation", openaiGen)
	}

	server := chiTransport.NewServer(articleSvc, generateSvc, healthSvc, cfg.HTTP.MaxUploadMB, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", server.Routes())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func modelNames(models map[string]config.ModelConfig) []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	return names
}

func needsProvider(models map[string]config.ModelConfig, provider string) bool {
	for _, m := range models {
		if m.Provider == provider {
			return true
		}
	}
	return false
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			reqCtx, usage := domain.NewContextWithUsage(logpkg.ContextWithLogger(r.Context(), reqLogger))

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(reqCtx))

			tokens := usage.Snapshot()

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.Int("embedding_tokens", tokens.EmbeddingTokens),
				zap.Int("generation_tokens", tokens.GenerationTokens),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
