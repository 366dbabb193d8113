package app

import (
	"context"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/sdbot/core/bootstrap"
	coreconfig "github.com/m3rciful/sdbot/core/config"
	"github.com/m3rciful/sdbot/core/database"
	"github.com/m3rciful/sdbot/internal/config"
	"github.com/m3rciful/sdbot/internal/params"
)

func noLogger(*coreconfig.Config) error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Generation: params.DefaultCatalog()}
	cfg.Telegram.Token = "1:test"
	cfg.Telegram.AdminID = 42
	if err := config.Normalize(cfg); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestNewWithoutDatabaseOrAPI(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, bootstrap.Options{LoggerInit: noLogger})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	opts, err := a.TelegramRunOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Config != cfg.CoreConfig() || opts.Registry == nil {
		t.Fatal("run options missing config or registry")
	}

	endpoints := map[string]bool{}
	for _, r := range opts.Routes {
		if s, ok := r.Endpoint.(string); ok {
			endpoints[s] = true
		}
	}
	for _, want := range []string{"/start", "/help", "/settings", "/cancel", "/stats", "/history", tele.OnText, tele.OnCallback} {
		if !endpoints[want] {
			t.Errorf("route %s missing", want)
		}
	}

	var names []string
	for _, m := range opts.Middlewares {
		names = append(names, m.Name)
	}
	if got := strings.Join(names, ","); got != "recover,metrics,logger,state" {
		t.Fatalf("middlewares = %s", got)
	}
}

func TestNewWithSQLiteHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = database.Config{Driver: "sqlite3", Path: t.TempDir() + "/bot.sqlite"}
	if err := cfg.Database.Normalize(); err != nil {
		t.Fatal(err)
	}
	cfg.StableDiffusion.URL = "http://127.0.0.1:7860"

	a, err := New(context.Background(), cfg, bootstrap.Options{LoggerInit: noLogger})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.infra.DB == nil {
		t.Fatal("database not opened")
	}
	var n int
	if err := a.infra.DB.Get(&n, "SELECT COUNT(*) FROM generations"); err != nil {
		t.Fatalf("generations table: %v", err)
	}
	if n != 0 {
		t.Fatalf("rows = %d", n)
	}
}

type otherConfig struct{}

func (otherConfig) CoreConfig() *coreconfig.Config { return &coreconfig.Config{} }

func TestBootstrapRejectsForeignConfig(t *testing.T) {
	if _, err := Bootstrap(context.Background(), otherConfig{}); err == nil {
		t.Fatal("expected error")
	}
}
