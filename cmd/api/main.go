package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imgbed/docs"
	"imgbed/internal/cache"
	"imgbed/internal/config"
	"imgbed/internal/database"
	"imgbed/internal/database/migration"
	handlers "imgbed/internal/http/handler"
	"imgbed/internal/http/middleware"
	"imgbed/internal/logging"
	"imgbed/internal/metrics"
	"imgbed/internal/otel"
	"imgbed/internal/purge"
	"imgbed/internal/ratelimit"
	"imgbed/internal/repository/postgres"
	"imgbed/internal/service"
	"imgbed/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// @title Image Bed API
// @version 1.0
// @description Content-addressed image hosting gateway.
// @BasePath /
func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.Location(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	objStore, err := storage.New(cfg.Blob)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Blob.Backend).Msg("failed to initialize object storage")
	}

	edge, err := cache.NewBigCache(cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize edge cache")
	}
	defer edge.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipeline, err := metrics.NewPipeline(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register pipeline metrics")
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register http metrics")
	}

	uploadRepo := postgres.NewUploadPostgres(db)
	limiter := ratelimit.New(uploadRepo, cfg.Upload.MaxCount, cfg.Upload.RateWindow)
	imgSvc := service.NewImageService(
		objStore,
		uploadRepo,
		limiter,
		edge,
		purge.New(cfg.Purge),
		pipeline,
		logging.Component(log, "service"),
		service.Options{
			MaxFileSize:    cfg.Upload.MaxFileSizeBytes(),
			PublicScheme:   cfg.Upload.PublicScheme,
			PublicDomain:   cfg.Upload.PublicDomain,
			NotFoundKey:    cfg.Upload.NotFoundKey,
			CacheMaxObject: cfg.Cache.MaxObjectBytes(),
		},
	)

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             cfg.BodyLimitBytes(),
		DisableStartupMessage: true,
	})

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())

	// Registered ahead of the object catch-all.
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:            db,
		Service:       imgSvc,
		AdminPassword: cfg.AdminPassword,
		Log:           log,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info().Msg("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		if err := service.Drain(sctx, imgSvc); err != nil {
			log.Warn().Err(err).Msg("cache fills still running at shutdown")
		}
		if err := shutdownTracing(sctx); err != nil {
			log.Error().Err(err).Msg("tracing shutdown")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("blob_backend", cfg.Blob.Backend).Msg("listening")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
	<-done
}
