package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/sdbot/core/telegram"
	"github.com/m3rciful/sdbot/core/telegram/callbacks"
	"github.com/m3rciful/sdbot/internal/history"
	"github.com/m3rciful/sdbot/internal/menu"
	"github.com/m3rciful/sdbot/internal/params"
	"github.com/m3rciful/sdbot/internal/sdapi"
	"github.com/m3rciful/sdbot/internal/session"
)

const userID int64 = 7

type call struct {
	kind string
	text string
	kb   bool
}

type recordingSender struct {
	calls []call
	photo []byte
	// editErrs are returned by successive Edit calls.
	editErrs []error
}

func (r *recordingSender) Text(_ tele.Context, text string, m *tele.ReplyMarkup) error {
	r.calls = append(r.calls, call{kind: "text", text: text, kb: m != nil})
	return nil
}

func (r *recordingSender) Edit(_ tele.Context, text string, m *tele.ReplyMarkup) error {
	r.calls = append(r.calls, call{kind: "edit", text: text, kb: m != nil})
	if len(r.editErrs) > 0 {
		err := r.editErrs[0]
		r.editErrs = r.editErrs[1:]
		return err
	}
	return nil
}

func (r *recordingSender) Photo(_ tele.Context, data []byte, caption, filename string) error {
	r.photo = data
	r.calls = append(r.calls, call{kind: "photo", text: caption + "|" + filename})
	return nil
}

type fixture struct {
	bot   *Bot
	store *session.MemoryStore
	sent  *recordingSender
	tgBot *tele.Bot
}

func newFixture(t *testing.T, gen menu.Generator, stats StatsSource) *fixture {
	t.Helper()
	cat := params.DefaultCatalog()
	store := session.NewMemoryStore(cat.Defaults)
	sent := &recordingSender{}
	b, err := New(Options{
		Machine:  menu.New(menu.Config{Store: store, Catalog: cat, Generator: gen}),
		Sessions: store,
		Stats:    stats,
		Sender:   sent,
	})
	if err != nil {
		t.Fatal(err)
	}
	tb, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{bot: b, store: store, sent: sent, tgBot: tb}
}

func (f *fixture) text(s string) tele.Context {
	return f.tgBot.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		Text:   s,
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
	}})
}

func (f *fixture) press(action string) tele.Context {
	return f.tgBot.NewContext(tele.Update{ID: 2, Callback: &tele.Callback{
		ID:      "cb",
		Sender:  &tele.User{ID: userID},
		Data:    callbacks.Encode(CallbackUnique, action),
		Message: &tele.Message{ID: 10, Chat: &tele.Chat{ID: userID}},
	}})
}

func TestRegisterWiresEverything(t *testing.T) {
	f := newFixture(t, nil, nil)
	reg := tg.NewRegistry()
	if err := f.bot.Register(reg); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"/start", "/help", "/settings", "/cancel", "/stats", "/history"} {
		if _, _, ok := reg.LookupCommand(name); !ok {
			t.Fatalf("command %s missing", name)
		}
	}
	if _, ok := reg.GetCallback(CallbackUnique); !ok {
		t.Fatal("menu callback missing")
	}
	if reg.TextFallback() == nil {
		t.Fatal("text fallback missing")
	}
	visible := reg.ListCommands(true)
	for _, c := range visible {
		if c.Text == "stats" {
			t.Fatal("admin command listed publicly")
		}
	}
}

func TestPromptThenGenerate(t *testing.T) {
	gen := menu.GeneratorFunc(func(_ context.Context, p params.Set) sdapi.Outcome {
		return sdapi.Success([]byte("png:" + p.Prompt))
	})
	f := newFixture(t, gen, nil)

	if err := f.bot.handleText(f.text("castle on a hill")); err != nil {
		t.Fatal(err)
	}
	if len(f.sent.calls) != 1 || f.sent.calls[0].kind != "text" || !f.sent.calls[0].kb {
		t.Fatalf("calls = %+v", f.sent.calls)
	}
	if !strings.Contains(f.sent.calls[0].text, "castle on a hill") {
		t.Fatalf("text = %q", f.sent.calls[0].text)
	}

	f.sent.calls = nil
	if err := f.bot.handleCallback(f.press(menu.ActionGenerate)); err != nil {
		t.Fatal(err)
	}
	kinds := make([]string, 0, len(f.sent.calls))
	for _, c := range f.sent.calls {
		kinds = append(kinds, c.kind)
	}
	if strings.Join(kinds, ",") != "edit,photo,text" {
		t.Fatalf("render order = %v", kinds)
	}
	if string(f.sent.photo) != "png:castle on a hill" {
		t.Fatalf("photo = %q", f.sent.photo)
	}
	if !strings.HasSuffix(f.sent.calls[1].text, "|generated_image.png") {
		t.Fatalf("photo call = %q", f.sent.calls[1].text)
	}
	if f.store.Generating() != 0 {
		t.Fatal("generating flag not cleared")
	}
}

func TestGenerateSurvivesFailedStatusEdit(t *testing.T) {
	calls := 0
	gen := menu.GeneratorFunc(func(context.Context, params.Set) sdapi.Outcome {
		calls++
		return sdapi.Success([]byte("png"))
	})
	f := newFixture(t, gen, nil)
	if err := f.bot.handleText(f.text("lighthouse")); err != nil {
		t.Fatal(err)
	}

	down := errors.New("telegram: network down")
	f.sent.editErrs = []error{down}
	if err := f.bot.handleCallback(f.press(menu.ActionGenerate)); !errors.Is(err, down) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 || f.store.Generating() != 0 {
		t.Fatalf("after failed edit: calls = %d generating = %d", calls, f.store.Generating())
	}

	f.sent.calls = nil
	if err := f.bot.handleCallback(f.press(menu.ActionGenerate)); err != nil {
		t.Fatal(err)
	}
	if calls != 2 || f.store.Generating() != 0 {
		t.Fatalf("second generate: calls = %d generating = %d", calls, f.store.Generating())
	}
	if f.sent.calls[0].text == "" || strings.Contains(f.sent.calls[0].text, "still generating") {
		t.Fatalf("second generate rejected as busy: %+v", f.sent.calls)
	}
}

func TestGenerateReleasedWhenRenderPanics(t *testing.T) {
	gen := menu.GeneratorFunc(func(context.Context, params.Set) sdapi.Outcome {
		return sdapi.Success([]byte("png"))
	})
	f := newFixture(t, gen, nil)
	f.bot.send = panicSender{}
	_ = f.bot.handleText(f.text("lighthouse"))

	func() {
		defer func() { _ = recover() }()
		_ = f.bot.handleCallback(f.press(menu.ActionGenerate))
	}()
	if f.store.Generating() != 0 {
		t.Fatal("generating flag left set after panic")
	}
}

type panicSender struct{}

func (panicSender) Text(tele.Context, string, *tele.ReplyMarkup) error { return nil }

func (panicSender) Edit(tele.Context, string, *tele.ReplyMarkup) error { panic("edit") }

func (panicSender) Photo(tele.Context, []byte, string, string) error { return nil }

func TestCustomInputRoutesThroughConversation(t *testing.T) {
	f := newFixture(t, nil, nil)
	if f.bot.InProgress(userID) {
		t.Fatal("fresh user in progress")
	}
	if err := f.bot.handleCallback(f.press("custom:steps")); err != nil {
		t.Fatal(err)
	}
	if !f.bot.InProgress(userID) {
		t.Fatal("custom steps did not start input")
	}
	if err := f.bot.HandleInput(f.text("40")); err != nil {
		t.Fatal(err)
	}
	if f.bot.InProgress(userID) {
		t.Fatal("input not completed")
	}
	s, release := f.store.GetOrCreate(userID)
	steps := s.Params.Steps
	release()
	if steps != 40 {
		t.Fatalf("steps = %d", steps)
	}
}

func TestCommandsReachMachine(t *testing.T) {
	f := newFixture(t, nil, nil)
	if err := f.bot.command(menu.CommandCancel)(f.text("/cancel")); err != nil {
		t.Fatal(err)
	}
	if len(f.sent.calls) != 1 || f.sent.calls[0].text != "Nothing to cancel." {
		t.Fatalf("calls = %+v", f.sent.calls)
	}
}

type fakeStats struct {
	st     history.Stats
	recent []history.Record
	err    error
}

func (f fakeStats) Stats(context.Context) (history.Stats, error) { return f.st, f.err }

func (f fakeStats) Recent(_ context.Context, userID int64, limit int) ([]history.Record, error) {
	if limit != recentLimit {
		return nil, errors.New("unexpected limit")
	}
	var out []history.Record
	for _, r := range f.recent {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, f.err
}

func TestStatsText(t *testing.T) {
	f := newFixture(t, nil, fakeStats{st: history.Stats{Total: 3, Succeeded: 2, Failed: 1, Users: 2, AvgMS: 1500}})
	_ = f.bot.handleText(f.text("prompt"))
	got := f.bot.statsText(context.Background())
	for _, want := range []string{"Sessions: 1", "Image API: not configured", "Generations: 3 (ok 2, failed 1)", "Average time: 1.5s"} {
		if !strings.Contains(got, want) {
			t.Fatalf("stats text missing %q:\n%s", want, got)
		}
	}

	f = newFixture(t, nil, fakeStats{err: errors.New("db down")})
	if got := f.bot.statsText(context.Background()); !strings.Contains(got, "History: unavailable") {
		t.Fatalf("stats text = %s", got)
	}
	f = newFixture(t, nil, nil)
	if got := f.bot.statsText(context.Background()); !strings.Contains(got, "History: disabled") {
		t.Fatalf("stats text = %s", got)
	}
}

func TestMarkupDropsOversizedTokens(t *testing.T) {
	m := Markup([][]menu.Button{
		{{Label: "ok", Action: "generate"}},
		{{Label: "long", Action: strings.Repeat("x", 80)}},
	})
	if m == nil || len(m.InlineKeyboard) != 1 {
		t.Fatalf("markup = %+v", m)
	}
	if Markup(nil) != nil {
		t.Fatal("nil rows should give nil markup")
	}
}

func TestHistoryText(t *testing.T) {
	f := newFixture(t, nil, fakeStats{recent: []history.Record{
		{UserID: userID, Prompt: "castle", Status: history.StatusOK, Steps: 20, CFGScale: 7, Width: 512, Height: 512, Sampler: "Euler a"},
		{UserID: userID, Prompt: "fox", Status: history.StatusFail, Steps: 30, CFGScale: 7.5, Width: 768, Height: 512, Sampler: "DDIM"},
		{UserID: 99, Prompt: "someone else"},
	}})
	got := f.bot.historyText(context.Background(), userID)
	for _, want := range []string{"✅ castle", "❌ fox", "30 steps, CFG 7.5, 768x512, DDIM"} {
		if !strings.Contains(got, want) {
			t.Fatalf("history text missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "someone else") {
		t.Fatal("history leaked another user's prompt")
	}

	if got := f.bot.historyText(context.Background(), 1234); got != "No generations yet." {
		t.Fatalf("empty history = %q", got)
	}
	f = newFixture(t, nil, nil)
	if got := f.bot.historyText(context.Background(), userID); got != "History is disabled." {
		t.Fatalf("disabled history = %q", got)
	}
}
