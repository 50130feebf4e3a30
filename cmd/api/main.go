package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fileingest/docs"
	"fileingest/internal/config"
	handlers "fileingest/internal/http/handler"
	"fileingest/internal/http/middleware"
	"fileingest/internal/logger"
	"fileingest/internal/metrics"
	"fileingest/internal/otel"
	"fileingest/internal/service"
	"fileingest/internal/storage"
)

// bodyLimitSlack leaves room for multipart framing on top of the upload limit.
const bodyLimitSlack = 1 << 20

// @title File Ingest API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	loc := logger.LoadLocation(cfg.Log.Timezone)
	log := logger.New(os.Stdout, cfg.Log.Level, loc)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	uploadMetrics, err := metrics.NewUploads(reg)
	if err != nil {
		log.Fatal("failed to register upload metrics", zap.Error(err))
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatal("failed to register http metrics", zap.Error(err))
	}

	policy, err := storage.ParseCollisionPolicy(cfg.Upload.Collision)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	// Single local upload directory; every request reads and writes through it
	store, err := storage.NewDisk(cfg.Upload.Root, storage.Options{
		MaxSize:   cfg.Upload.MaxSize,
		ChunkSize: cfg.Upload.ChunkSize,
		Collision: policy,
	})
	if err != nil {
		log.Fatal("failed to initialize upload storage", zap.Error(err))
	}

	fileSvc := service.NewFileService(store, service.Options{
		FileField: cfg.Upload.Field,
		Metrics:   uploadMetrics,
		Logger:    log,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		// Bodies go straight from the connection to disk.
		StreamRequestBody:            true,
		DisablePreParseMultipartForm: true,
		BodyLimit:                    bodyLimit(cfg.Upload.MaxSize),
		DisableStartupMessage:        true,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, fileSvc)

	if cfg.SwaggerEnabled {
		// Swagger UI with dynamic host and scheme
		app.Get("/swagger/*", func(c *fiber.Ctx) error {
			scheme := c.Protocol()
			if proto := c.Get("X-Forwarded-Proto"); proto != "" {
				scheme = strings.Split(proto, ",")[0]
			}

			host := c.Get("Host")
			if host == "" {
				host = cfg.AppHost
			}
			docs.SwaggerInfo.Host = host
			docs.SwaggerInfo.Schemes = []string{scheme}

			return swagger.HandlerDefault(c)
		})
	}

	addr := ":" + cfg.Port
	go func() {
		log.Info("server_started",
			zap.String("addr", addr),
			zap.String("upload_root", store.Root().String()),
			zap.String("max_upload_size", humanize.IBytes(uint64(cfg.Upload.MaxSize))),
			zap.String("collision_policy", string(policy)),
		)
		if err := app.Listen(addr); err != nil {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	timeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	if err := app.ShutdownWithTimeout(timeout); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown failed", zap.Error(err))
	}
	log.Info("server_stopped")
}

func bodyLimit(maxSize int64) int {
	const maxInt = int(^uint(0) >> 1)
	if maxSize <= 0 || maxSize > int64(maxInt-bodyLimitSlack) {
		return maxInt
	}
	return int(maxSize) + bodyLimitSlack
}
