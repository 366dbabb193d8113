package router

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/sdbot/core/telegram"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	return b
}

func textContext(b *tele.Bot, userID int64, text string) tele.Context {
	return b.NewContext(tele.Update{
		ID: 1,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID},
		},
	})
}

type fakeConversation struct {
	active map[int64]bool
	inputs []string
}

func (f *fakeConversation) InProgress(userID int64) bool { return f.active[userID] }

func (f *fakeConversation) HandleInput(c tele.Context) error {
	f.inputs = append(f.inputs, c.Text())
	return nil
}

func TestTextRoutesOrder(t *testing.T) {
	b := offlineBot(t)
	conv := &fakeConversation{active: map[int64]bool{1: true}}
	reg := tg.NewRegistry()

	var prompts, helps []string
	reg.SetTextFallback(func(c tele.Context) error {
		prompts = append(prompts, c.Text())
		return nil
	})
	reg.RegisterCommand("/help", tg.Command{
		Description: "help",
		Aliases:     []string{"h"},
		Handler: func(c tele.Context) error {
			helps = append(helps, c.Text())
			return nil
		},
	})

	routes := TextRoutes(conv, reg, TextOptions{})
	if len(routes) != 1 || routes[0].Endpoint != tele.OnText {
		t.Fatalf("routes = %+v", routes)
	}
	h := routes[0].Handler

	for _, tc := range []struct {
		user int64
		text string
	}{
		{1, "42"},
		{2, "a red fox"},
		{2, "/h"},
	} {
		if err := h(textContext(b, tc.user, tc.text)); err != nil {
			t.Fatalf("%q: %v", tc.text, err)
		}
	}

	if len(conv.inputs) != 1 || conv.inputs[0] != "42" {
		t.Fatalf("inputs = %v", conv.inputs)
	}
	if len(prompts) != 1 || prompts[0] != "a red fox" {
		t.Fatalf("prompts = %v", prompts)
	}
	if len(helps) != 1 {
		t.Fatalf("alias not routed: %v", helps)
	}
}

func TestTextRoutesPropagateError(t *testing.T) {
	b := offlineBot(t)
	reg := tg.NewRegistry()
	boom := errors.New("boom")
	reg.SetTextFallback(func(tele.Context) error { return boom })

	h := TextRoutes(nil, reg, TextOptions{})[0].Handler
	if err := h(textContext(b, 3, "x")); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestCommandRoutesAdminGuard(t *testing.T) {
	b := offlineBot(t)
	reg := tg.NewRegistry()
	called := 0
	reg.RegisterCommand("/stats", tg.Command{
		Description: "stats",
		AdminOnly:   true,
		Handler: func(tele.Context) error {
			called++
			return nil
		},
	})
	rejected := 0
	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID: 99,
		OnAdminReject: func(tele.Context) error {
			rejected++
			return nil
		},
	})
	if len(routes) != 1 || routes[0].Endpoint != "/stats" {
		t.Fatalf("routes = %+v", routes)
	}

	_ = routes[0].Handler(textContext(b, 1, "/stats"))
	_ = routes[0].Handler(textContext(b, 99, "/stats"))
	if called != 1 || rejected != 1 {
		t.Fatalf("called = %d rejected = %d", called, rejected)
	}
}

func TestNormalizeHandlerName(t *testing.T) {
	cases := map[string]string{
		"/Start":     "start",
		"":           "unknown",
		"  a b ":     "a_b",
		"callback.m": "callback.m",
	}
	for in, want := range cases {
		if got := normalizeHandlerName(in); got != want {
			t.Errorf("%q => %q, want %q", in, got, want)
		}
	}
}
