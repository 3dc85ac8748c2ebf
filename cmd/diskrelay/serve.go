package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/diskrelay/diskrelay/internal/bot"
	"github.com/diskrelay/diskrelay/internal/config"
	"github.com/diskrelay/diskrelay/internal/convstore"
	"github.com/diskrelay/diskrelay/internal/db"
	"github.com/diskrelay/diskrelay/internal/disk"
	"github.com/diskrelay/diskrelay/internal/diskauth"
	"github.com/diskrelay/diskrelay/internal/handlers"
	"github.com/diskrelay/diskrelay/internal/logger"
	"github.com/diskrelay/diskrelay/internal/secrets"
	"github.com/diskrelay/diskrelay/internal/server"
	"github.com/diskrelay/diskrelay/internal/telegram"
	"github.com/diskrelay/diskrelay/internal/upload"
	"github.com/diskrelay/diskrelay/internal/users"
	"github.com/diskrelay/diskrelay/internal/worker"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideRedisClient,
			provideConvStore,
			provideSecretsCodec,
			provideStateCodec,
			provideExchanger,
			provideCredentialStore,
			provideAuthService,
			provideDiskClient,
			provideOrchestrator,
			provideSender,
			provideUserStore,
			provideWorkerPool,
			provideDispatcher,
			provideBotService,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideOAuthHandler),
			provideServer,
		),
		fx.Invoke(
			startWorkerPool,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

// provideRedisClient returns nil when no address is configured, which
// disables the conversation store and all multi-message flows.
func provideRedisClient(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		log.Warn("redis not configured, stateful chat disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return client.Close() }})
	return client
}

func provideConvStore(log *slog.Logger, client *redis.Client) *convstore.Store {
	return convstore.NewStore(log, client)
}

func provideSecretsCodec(cfg config.Config) (*secrets.Codec, error) {
	return secrets.NewCodec(cfg.Secrets.FernetKey)
}

func provideStateCodec(cfg config.Config) *diskauth.StateCodec {
	return diskauth.NewStateCodec(cfg.Secrets.StateKey)
}

func provideExchanger(cfg config.Config) *diskauth.OAuth2Exchanger {
	redirectURL := strings.TrimRight(cfg.Server.PublicURL, "/") + handlers.OAuthCallbackPath
	return diskauth.NewOAuth2Exchanger(
		cfg.OAuth.ClientID,
		cfg.OAuth.ClientSecret,
		cfg.OAuth.AuthURL,
		cfg.OAuth.TokenURL,
		redirectURL,
	)
}

func provideCredentialStore(conn *pgxpool.Pool) *diskauth.PGStore {
	return diskauth.NewPGStore(conn)
}

func provideAuthService(log *slog.Logger, store *diskauth.PGStore, codec *secrets.Codec, state *diskauth.StateCodec, exchanger *diskauth.OAuth2Exchanger, cfg config.Config) *diskauth.Service {
	return diskauth.NewService(log, store, codec, state, exchanger,
		cfg.OAuth.InsertTokenBytes, cfg.OAuth.InsertTokenLifetime.Std())
}

func provideDiskClient(log *slog.Logger, cfg config.Config) *disk.Client {
	return disk.NewClient(log, cfg.Disk.BaseURL)
}

func provideOrchestrator(log *slog.Logger, client *disk.Client, cfg config.Config) *upload.Orchestrator {
	return upload.NewOrchestrator(log, client,
		cfg.Upload.PollInterval.Std(), cfg.Upload.PollMaxAttempts)
}

func provideSender(log *slog.Logger, cfg config.Config) (*telegram.Sender, error) {
	return telegram.NewSender(log, cfg.Telegram.BotToken)
}

func provideUserStore(log *slog.Logger, conn *pgxpool.Pool, cfg config.Config) *users.Store {
	return users.NewStore(log, conn, cfg.Upload.DefaultFolder)
}

func provideWorkerPool(log *slog.Logger, cfg config.Config) *worker.Pool {
	return worker.NewPool(log, cfg.Upload.Workers, cfg.Upload.QueueSize)
}

func provideDispatcher(log *slog.Logger, store *convstore.Store, cfg config.Config) *bot.Dispatcher {
	return bot.NewDispatcher(log, store, cfg.Upload.SameDateTTL.Std())
}

func provideBotService(log *slog.Logger, sender *telegram.Sender, store *convstore.Store, userStore *users.Store, auth *diskauth.Service, diskClient *disk.Client, orchestrator *upload.Orchestrator, pool *worker.Pool, dispatcher *bot.Dispatcher, cfg config.Config) *bot.Service {
	return bot.NewService(log, sender, store, userStore, auth, diskClient,
		orchestrator, pool, dispatcher, sender.Username(), cfg.Upload.DisposableTTL.Std())
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideWebhookHandler(log *slog.Logger, botService *bot.Service, cfg config.Config) *handlers.TelegramWebhookHandler {
	return handlers.NewTelegramWebhookHandler(log, botService, cfg.Telegram.WebhookSecret)
}

func provideOAuthHandler(log *slog.Logger, auth *diskauth.Service) *handlers.OAuthHandler {
	return handlers.NewOAuthHandler(log, auth)
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Handlers)
}

func startWorkerPool(lc fx.Lifecycle, pool *worker.Pool) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { pool.Start(); return nil },
		OnStop:  func(ctx context.Context) error { return pool.Stop(ctx) },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, sender *telegram.Sender, srv *server.Server, shutdowner fx.Shutdowner) {
	webhookURL := strings.TrimRight(cfg.Server.PublicURL, "/") +
		"/telegram/webhook/" + cfg.Telegram.WebhookSecret
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := sender.EnsureWebhook(webhookURL); err != nil {
				return err
			}
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
