package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sphllzulu/QuickPactv2/config"
	"github.com/sphllzulu/QuickPactv2/handler"
	"github.com/sphllzulu/QuickPactv2/middleware"
	"github.com/sphllzulu/QuickPactv2/pkg/logger"
	"github.com/sphllzulu/QuickPactv2/service"
	"github.com/sphllzulu/QuickPactv2/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web application",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			return serve(path)
		},
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Session.Secret == "" {
		// Tokens then only survive until restart, like the sessions they point to
		cfg.Session.Secret = uuid.New().String()
		slog.Warn("no session secret configured, using a random one")
	}
	slog.Info("configuration loaded successfully", "model", cfg.OpenAI.Model, "api_url", cfg.OpenAI.APIURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := service.NewSessionStore(&cfg.Session)
	go store.RunSweeper(ctx, time.Minute)

	pdfSvc := service.NewPDFService(&cfg.PDF)
	defer func() {
		if err := pdfSvc.Close(); err != nil {
			slog.Warn("failed to close browser", "error", err)
		}
	}()

	var archive service.Archiver
	if cfg.Minio.Enabled() {
		exportArchive, err := service.NewExportArchive(&cfg.Minio)
		if err != nil {
			return fmt.Errorf("failed to initialize export archive: %w", err)
		}
		if err := exportArchive.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure export bucket: %w", err)
		}
		archive = exportArchive
		slog.Info("export archive enabled", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
	}

	sessionHandler := handler.NewSessionHandler(&cfg.Session, store)
	contractHandler := handler.NewContractHandler(
		service.NewOpenAIService(&cfg.OpenAI),
		service.NewRenderer(cfg.Theme, cfg.Render, cfg.PDF.ViewportWidth),
		pdfSvc,
		archive,
	)

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(cfg, store, sessionHandler, contractHandler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
		// Generation holds the request open across provider retries
		ReadTimeout:  60 * time.Second,
		WriteTimeout: time.Duration(cfg.OpenAI.TimeoutSeconds*(cfg.OpenAI.MaxRetries+1))*time.Second + 2*time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

func newRouter(cfg *config.Config, store *service.SessionStore, sessions *handler.SessionHandler, contracts *handler.ContractHandler) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(cacheMiddleware())
	router.Use(middleware.RateLimit(cfg.Server.RateLimitPerMinute, time.Minute))

	router.GET("/", web.Index)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"sessions":  store.Count(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		api.GET("/contract-types", contracts.ContractTypes)
		api.POST("/sessions", sessions.Create)
	}

	scoped := api.Group("/session")
	scoped.Use(middleware.SessionAuth(&cfg.Session, store))
	{
		scoped.GET("", sessions.Get)
		scoped.DELETE("", sessions.Delete)
		scoped.POST("/generate", contracts.Generate)
		scoped.PATCH("/fields", contracts.UpdateFields)
		scoped.POST("/regenerate", contracts.Regenerate)
		scoped.POST("/back", contracts.Back)
		scoped.DELETE("/error", contracts.DismissError)
		scoped.GET("/document", contracts.Document)
		scoped.GET("/export", contracts.Export)
	}

	return router
}

// corsMiddleware handles CORS headers. Cross-origin callers use Bearer tokens;
// the session cookie is only sent same-origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Archive-URL, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// cacheMiddleware disables caching for API routes and allows it for the page
func cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		if strings.HasPrefix(path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
			return
		}

		if path == "/" {
			c.Header("Cache-Control", "public, max-age=3600, must-revalidate")
		}

		c.Next()
	}
}
