// Package app is the composition root: it builds the generation pipeline,
// session store and menu machine, and exposes them as a Telegram app.
package app

import (
	"context"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/sdbot/core/bootstrap"
	"github.com/m3rciful/sdbot/core/cmd"
	"github.com/m3rciful/sdbot/core/logger"
	tg "github.com/m3rciful/sdbot/core/telegram"
	tghelpers "github.com/m3rciful/sdbot/core/telegram/helpers"
	"github.com/m3rciful/sdbot/core/telegram/router"
	"github.com/m3rciful/sdbot/internal/bot"
	"github.com/m3rciful/sdbot/internal/config"
	"github.com/m3rciful/sdbot/internal/history"
	"github.com/m3rciful/sdbot/internal/menu"
	"github.com/m3rciful/sdbot/internal/sdapi"
	"github.com/m3rciful/sdbot/internal/session"
)

const (
	textAdminOnly = "This command is for the bot admin."
	textSlowDown  = "Slow down a little, please."
)

// App holds the wired bot and the infrastructure it owns.
type App struct {
	cfg      *config.Config
	infra    *bootstrap.Result
	sessions *session.MemoryStore
	bot      *bot.Bot
}

// Bootstrap satisfies cmd.Options.Bootstrap.
func Bootstrap(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(ctx, cfg, bootstrap.Options{})
}

// New runs the bootstrap pipeline and wires the bot. Fields of base that
// are nil are taken from cfg and the package defaults.
func New(ctx context.Context, cfg *config.Config, base bootstrap.Options) (*App, error) {
	opts := base
	opts.Config = cfg.CoreConfig()
	opts.Database = cfg.Database
	if opts.Migrations == nil {
		opts.Migrations = history.Migrations()
	}
	infra, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	var store *history.Store
	if infra.DB != nil {
		store, err = history.NewStore(infra.DB, nil)
		if err != nil {
			_ = infra.Close()
			return nil, err
		}
	}

	gen, err := generator(ctx, cfg.StableDiffusion, store)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	sessions := session.NewMemoryStore(cfg.Generation.Defaults)
	machine := menu.New(menu.Config{
		Store:     sessions,
		Catalog:   cfg.Generation,
		Generator: gen,
	})

	bo := bot.Options{Machine: machine, Sessions: sessions}
	if store != nil {
		bo.Stats = store
	}
	b, err := bot.New(bo)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	return &App{cfg: cfg, infra: infra, sessions: sessions, bot: b}, nil
}

// generator returns nil when no image API is configured so the menu can
// report it instead of failing each request.
func generator(ctx context.Context, sd config.StableDiffusionConfig, store *history.Store) (menu.Generator, error) {
	if !sd.Enabled() {
		logger.Warn(ctx, logger.CompSD, "sd.disabled", slog.String("status", "skip"))
		return nil, nil
	}
	client, err := sdapi.New(sdapi.Config{URL: sd.URL, Timeout: sd.Timeout()})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, logger.CompSD, "sd.configured",
		slog.String("url", client.URL()),
		slog.Duration("timeout", sd.Timeout()),
	)
	if store == nil {
		return history.NewRecorder(client, nil), nil
	}
	return history.NewRecorder(client, store), nil
}

// TelegramRunOptions builds the registry, routes and middleware chain.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return tg.RunOptions{}, err
	}

	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendText(c, textAdminOnly, nil)
		},
	})
	routes = append(routes, router.TextRoutes(a.bot, reg, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))

	return tg.RunOptions{
		Config:   core,
		Registry: reg,
		Middlewares: tg.DefaultMiddlewares(core, a.sessions, func(c tele.Context) error {
			if c.Callback() != nil {
				return c.Respond(&tele.CallbackResponse{Text: textSlowDown})
			}
			return nil
		}),
		Routes: routes,
	}, nil
}

// Close releases the database, if any.
func (a *App) Close() error {
	return a.infra.Close()
}
