// Command tagbot runs the Telegram tag bot behind an HTTP webhook.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Tensaey-sol/tag-bot/internal/bot"
	"github.com/Tensaey-sol/tag-bot/internal/config"
	httpapi "github.com/Tensaey-sol/tag-bot/internal/http"
	"github.com/Tensaey-sol/tag-bot/internal/http/handlers"
	"github.com/Tensaey-sol/tag-bot/internal/observability"
	"github.com/Tensaey-sol/tag-bot/internal/repo"
	"github.com/Tensaey-sol/tag-bot/internal/repo/mongostore"
	"github.com/Tensaey-sol/tag-bot/internal/services"
	"github.com/Tensaey-sol/tag-bot/internal/sysutil"
	"github.com/Tensaey-sol/tag-bot/internal/telegram"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

// store is what the services and the health check need from a backend.
type store interface {
	services.MembershipRepo
	services.RoleRepo
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}
	cfg := config.MustLoad()
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("tagbot stopped")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownTracing, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(sctx); err != nil {
			log.Warn().Err(err).Msg("storage close")
		}
	}()

	client, err := telegram.New(telegram.Options{
		Token:       cfg.Bot.Token,
		APIEndpoint: cfg.Bot.APIEndpoint,
		Debug:       cfg.Bot.Debug,
		SendRPS:     cfg.Bot.SendRPS,
		SendBurst:   cfg.Bot.SendBurst,
	})
	if err != nil {
		return err
	}
	log.Info().Str("username", client.Username()).Msg("authorized on telegram")

	if cfg.Bot.WebhookURL != "" {
		if err := client.SetWebhook(cfg.Bot.WebhookURL, cfg.Bot.WebhookSecret); err != nil {
			return err
		}
		log.Info().Msg("webhook registered")
	}

	d := bot.NewDispatcher(client.Username(),
		services.NewMembershipService(st, cfg.Storage.MaxRetries),
		services.NewRoleService(st, cfg.Storage.MaxRetries),
		client)
	log.Info().Strs("commands", d.Commands()).Msg("command table ready")

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, handlers.New(bot.New(d, client), st).WithUpdateTimeout(cfg.Bot.UpdateTimeout), cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("webhook_path", cfg.Bot.WebhookPath).Str("storage", cfg.Storage.Driver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// openStore connects the configured backend. SQL backends are migrated on open.
func openStore(ctx context.Context, cfg config.StorageConfig) (store, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		s, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("mongo: %w", err)
		}
		return s, nil
	case config.DriverSQLite, config.DriverPostgres:
		db, err := repo.Open(cfg.Driver, cfg.DBPath, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Driver, err)
		}
		return repo.NewGormStore(db), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
