package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/gemrelay/gemrelay/internal/attach"
	"github.com/gemrelay/gemrelay/internal/backend"
	"github.com/gemrelay/gemrelay/internal/channel/adapters/discord"
	"github.com/gemrelay/gemrelay/internal/channel/adapters/telegram"
	"github.com/gemrelay/gemrelay/internal/config"
	"github.com/gemrelay/gemrelay/internal/dispatch"
	"github.com/gemrelay/gemrelay/internal/logger"
	"github.com/gemrelay/gemrelay/internal/server"
	"github.com/gemrelay/gemrelay/internal/session"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBackend,
			provideSessions,
			providePipeline,
			provideDispatcher,
			provideServer,
		),
		fx.Invoke(
			startDiscord,
			startTelegram,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideBackend(log *slog.Logger, cfg config.Config) (*backend.Client, error) {
	client, err := backend.New(context.Background(), log, cfg.Gemini)
	if err != nil {
		return nil, fmt.Errorf("init backend: %w", err)
	}
	return client, nil
}

func provideSessions(cfg config.Config) *session.Store {
	return session.NewStore(cfg.History.Depth)
}

func providePipeline(log *slog.Logger, cfg config.Config) *attach.Pipeline {
	return attach.NewPipeline(log, http.DefaultClient, cfg.Attachment, cfg.Image)
}

func provideDispatcher(log *slog.Logger, sessions *session.Store, client *backend.Client, pipeline *attach.Pipeline, cfg config.Config) *dispatch.Dispatcher {
	return dispatch.New(log, sessions, client, pipeline, dispatch.Options{
		ResetKeyword: cfg.Bot.ResetKeyword,
		HistoryDepth: cfg.History.Depth,
	})
}

func provideServer(cfg config.Config, sessions *session.Store) *server.Server {
	return server.New(cfg.Server.Addr, sessions)
}

func startDiscord(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, d *dispatch.Dispatcher) error {
	if !cfg.Discord.Enabled {
		log.Info("discord adapter disabled")
		return nil
	}
	adapter, err := discord.New(log, cfg.Discord)
	if err != nil {
		return err
	}
	d.Register(adapter.Type(), adapter, cfg.Discord.MaxMessageLength)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { return adapter.Connect(ctx, d.HandleInbound) },
		OnStop:  func(_ context.Context) error { cancel(); return adapter.Close() },
	})
	return nil
}

func startTelegram(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, d *dispatch.Dispatcher) error {
	if !cfg.Telegram.Enabled {
		log.Info("telegram adapter disabled")
		return nil
	}
	adapter, err := telegram.New(log, cfg.Telegram)
	if err != nil {
		return err
	}
	d.Register(adapter.Type(), adapter, cfg.Telegram.MaxMessageLength)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { return adapter.Connect(ctx, d.HandleInbound) },
		OnStop:  func(_ context.Context) error { cancel(); return adapter.Close() },
	})
	return nil
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting gemrelay %s\n", version)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
