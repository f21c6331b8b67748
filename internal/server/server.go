package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookgraph/internal/cache"
	"bookgraph/internal/gutenberg"
	mid "bookgraph/internal/server/middleware"
	"bookgraph/internal/util"
	"bookgraph/pkg/ai/groq"
	"bookgraph/pkg/graph"
	"bookgraph/pkg/logger"
	"bookgraph/pkg/query"

	"github.com/go-playground/validator"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func splitModels(raw string) []string {
	parts := strings.Split(raw, ",")
	models := make([]string, 0, len(parts))
	for _, p := range parts {
		if m := strings.TrimSpace(p); m != "" {
			models = append(models, m)
		}
	}
	return models
}

func Init() {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiKey := util.GetEnv("GROQ_API_KEY")
	if apiKey == "" {
		logger.Fatal("GROQ_API_KEY is required")
	}

	debug := util.GetEnvBool("DEBUG", false)

	models := splitModels(util.GetEnvString("AI_MODELS", "llama-3.3-70b-versatile,llama-3.1-8b-instant"))
	windowTokens := int(util.GetEnvNumeric("CHUNK_TOKENS", 6000))
	maxCompletion := int(util.GetEnvNumeric("MAX_COMPLETION_TOKENS", 1024))
	maxTotalTokens := int(util.GetEnvNumeric("MAX_TOTAL_TOKENS", 0))
	if debug {
		// Debug mode trades fidelity for turnaround: cheaper models, smaller
		// windows, and a cap on how much of the book is consumed.
		models = splitModels(util.GetEnvString("AI_MODELS_DEBUG", "llama3-70b-8192,llama3-8b-8192"))
		windowTokens = int(util.GetEnvNumeric("CHUNK_TOKENS", 1500))
		maxCompletion = int(util.GetEnvNumeric("MAX_COMPLETION_TOKENS", 256))
		maxTotalTokens = int(util.GetEnvNumeric("MAX_TOTAL_TOKENS", 4*windowTokens))
	}

	perCallTimeout := time.Duration(util.GetEnvNumeric("AI_CALL_TIMEOUT_SEC", 8)) * time.Second
	batchTimeout := time.Duration(util.GetEnvNumeric("BATCH_TIMEOUT_SEC", 120)) * time.Second

	fileCache, err := cache.NewFileCache(cache.NewFileCacheParams{
		Root: util.GetEnvString("CACHE_DIR", "cache"),
	})
	if err != nil {
		logger.Fatal("Failed to create cache", "err", err)
	}

	books, err := gutenberg.NewClient(gutenberg.NewClientParams{
		BaseURL:     util.GetEnvString("GUTENBERG_URL", gutenberg.DefaultBaseURL),
		Cache:       fileCache,
		HTTPTimeout: time.Duration(util.GetEnvNumeric("HTTP_TIMEOUT_SEC", 30)) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create gutenberg client", "err", err)
	}

	aiClient := groq.NewGroqClient(groq.NewGroqClientParams{
		BaseURL:           util.GetEnvString("GROQ_API_URL", groq.DefaultBaseURL),
		APIKey:            apiKey,
		RequestsPerSecond: util.GetEnvNumeric("AI_REQUESTS_PER_SEC", 10),
	})

	graphClient, err := graph.NewGraphClient(graph.NewGraphClientParams{
		AIClient: aiClient,
		Books:    books,
		Cache:    fileCache,

		Models:              models,
		TokenEncoder:        util.GetEnvString("TOKEN_ENCODER", "cl100k_base"),
		WindowTokens:        windowTokens,
		OverlapTokens:       int(util.GetEnvNumeric("OVERLAP_TOKENS", 200)),
		MaxTotalTokens:      maxTotalTokens,
		MaxCompletionTokens: maxCompletion,
		ParallelRequests:    int(util.GetEnvNumeric("AI_PARALLEL_REQ", 12)),
		PerCallTimeout:      perCallTimeout,
		BatchTimeout:        batchTimeout,
	})
	if err != nil {
		logger.Fatal("Failed to create graph client", "err", err)
	}

	queryClient, err := query.NewClient(query.NewClientParams{
		AIClient:       aiClient,
		Models:         models,
		PerCallTimeout: perCallTimeout,
	})
	if err != nil {
		logger.Fatal("Failed to create query client", "err", err)
	}

	app := &mid.App{
		Graph: graphClient,
		Query: queryClient,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port, "debug", debug, "models", models)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
