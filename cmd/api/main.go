package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/mercado-bff/internal/application/profile"
	"github.com/jhoicas/mercado-bff/internal/application/usecase"
	"github.com/jhoicas/mercado-bff/internal/domain/repository"
	"github.com/jhoicas/mercado-bff/internal/infrastructure/backend"
	"github.com/jhoicas/mercado-bff/internal/infrastructure/postgres"
	"github.com/jhoicas/mercado-bff/internal/infrastructure/storage"
	httpRouter "github.com/jhoicas/mercado-bff/internal/interfaces/http"
	"github.com/jhoicas/mercado-bff/pkg/config"
	"github.com/jhoicas/mercado-bff/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("cache", cfg.Cache.Driver).
		Msg("iniciando aplicación")

	ctx := context.Background()
	store, closer, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Cache.Driver).Msg("abrir almacenamiento de sesión")
	}
	if closer != nil {
		defer closer.Close()
	}

	// Cada usuario tiene su espacio de nombres dentro del store compartido.
	scope := func(userID string) repository.KVStore {
		return storage.NewScoped(store, cfg.Cache.Prefix+":"+userID)
	}

	backendClient := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, log.Component("backend"))

	sessions := profile.NewManager(backendClient, scope, profile.Options{
		CacheTTL:       cfg.Profile.CacheTTL,
		SwitchAttempts: cfg.Profile.SwitchAttempts,
		SwitchDelay:    cfg.Profile.SwitchDelay,
		IdleTTL:        cfg.Profile.IdleTTL,
	}, log.Component("profile"))

	listingUC := usecase.NewListingUseCase(backendClient, scope, usecase.ListingOptions{
		CacheTTL:    cfg.Listing.CacheTTL,
		LiveIdleTTL: cfg.Profile.IdleTTL,
	}, log.Component("listings"))
	// Una sesión desalojada se lleva su búsqueda en vivo.
	sessions.OnEvict(listingUC.CloseLive)

	refreshLimit := httpRouter.NewUserRateLimiter(cfg.HTTP.RefreshRatePerSecond, cfg.HTTP.RefreshBurst)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepIdle(sweepCtx, cfg.Profile.SweepInterval, cfg.Profile.IdleTTL, sessions, listingUC, refreshLimit, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.Backend.Timeout + time.Second*10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Mercado BFF API",
		}))
	} else {
		log.Warn().Str("path", swaggerFile).Msg("swagger.json no encontrado, /docs deshabilitado")
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "sessions": sessions.Len()})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Sessions:     sessions,
		ListingUC:    listingUC,
		RefreshLimit: refreshLimit,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// sweepIdle desaloja periódicamente sesiones, búsquedas en vivo y limitadores sin uso.
func sweepIdle(ctx context.Context, interval, idle time.Duration, sessions *profile.Manager, listings *usecase.ListingUseCase, limiter *httpRouter.UserRateLimiter, log *logger.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s := sessions.EvictIdle()
			l := listings.EvictIdleLive()
			r := limiter.EvictIdle(now.Add(-idle))
			if s+l+r > 0 {
				log.Debug().Int("sessions", s).Int("live", l).Int("limiters", r).Msg("barrido de inactividad")
			}
		}
	}
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

// openStore elige el almacenamiento de sesión según CACHE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (repository.KVStore, io.Closer, error) {
	switch cfg.Cache.Driver {
	case "file":
		s, err := storage.NewFileStore(cfg.Cache.FileDir, log.Component("storage"))
		return s, nil, err
	case "redis":
		s, err := storage.NewRedisStore(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPass, cfg.Cache.RedisDB, cfg.Cache.TTL, log.Component("storage"))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		repo, err := postgres.NewKVRepository(ctx, pool, log.Component("storage"))
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, closeFunc(func() error { pool.Close(); return nil }), nil
	default:
		return storage.NewMemoryStore(cfg.Cache.QuotaBytes), nil, nil
	}
}
