package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MicahParks/keyfunc"
	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-api/api"
	"kanban-api/config"
	"kanban-api/domain"
	"kanban-api/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	log.WithField("backend", cfg.StoreBackend).Info("task store ready")

	broker := api.NewBroker()
	var (
		store      storage.Backend = backend
		rc         *redis.Client
		publishers []api.Publisher
	)
	if cfg.RedisConnectionString != "" {
		rc = storage.NewRedisClient(cfg.RedisConnectionString)
		if err := rc.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable; continuing without cache")
		}
		store = storage.NewCache(backend, rc, cfg.TasksCacheTTL)
	}
	publishers = streamPublishers(cfg, rc, broker)
	if cfg.SharedEvents() {
		// Streams on other instances are woken through the shared channel.
		go storage.SubscribeTaskEvents(ctx, logger, rc, cfg.TaskEventsChannel, func(domain.TaskEvent) {
			broker.Notify()
		})
	}
	if cfg.TaskEventsQueue != "" {
		qp, err := storage.NewQueuePublisher(cfg.StorageConnectionString, cfg.TaskEventsQueue)
		if err != nil {
			log.Fatalf("task events queue: %v", err)
		}
		if err := qp.EnsureQueue(ctx); err != nil {
			log.Fatalf("task events queue: %v", err)
		}
		publishers = append(publishers, qp)
	}

	events := api.NewEventDispatcher(api.DispatcherConfig{
		Workers:        cfg.EventWorkers,
		Buffer:         cfg.EventBuffer,
		PublishTimeout: cfg.EventPublishTimeout,
		HandoffTimeout: cfg.EventHandoffTimeout,
	}, logger, publishers...)

	auth, err := newAuthenticator(cfg)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.SonicSerializer{}
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentEncoding},
	}))
	if cfg.Debug {
		pprof.Register(e)
	}

	api.Register(e, store, auth, events, broker, logger)
	if api.RegisterFrontend(e, cfg.StaticDir) {
		log.WithField("dir", cfg.StaticDir).Info("serving front end")
	}

	go func() {
		if err := e.Start(cfg.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	events.Close()
	if rc != nil {
		if err := rc.Close(); err != nil {
			log.WithError(err).Warn("redis close")
		}
	}
	backend.Close()
}

// streamPublishers always includes the local broker so this instance's
// streams follow its own writes even when redis is unreachable. Duplicate
// wake-ups from the shared channel are coalesced by the broker.
func streamPublishers(cfg config.Config, rc *redis.Client, broker *api.Broker) []api.Publisher {
	publishers := []api.Publisher{broker}
	if cfg.SharedEvents() && rc != nil {
		publishers = append(publishers, storage.NewRedisPublisher(rc, cfg.TaskEventsChannel))
	}
	return publishers
}

// newAuthenticator returns nil when AUTH_MODE is unset, leaving the API open.
func newAuthenticator(cfg config.Config) (api.Authenticator, error) {
	switch cfg.AuthMode {
	case config.AuthAuth0:
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Auth0Domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			return nil, fmt.Errorf("jwks: %w", err)
		}
		return api.NewAuth(jwks, cfg.Auth0Audience, "https://"+cfg.Auth0Domain+"/"), nil
	case config.AuthHS256:
		return api.NewSharedSecretAuth([]byte(cfg.LocalAuthSharedSecret), "", ""), nil
	default:
		return nil, nil
	}
}
