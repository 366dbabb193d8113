package middleware

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	return b
}

func message(b *tele.Bot, userID int64) tele.Context {
	return b.NewContext(tele.Update{Message: &tele.Message{
		Text:   "hi",
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
	}})
}

func callback(b *tele.Bot, userID int64) tele.Context {
	return b.NewContext(tele.Update{Callback: &tele.Callback{
		ID:     "cb",
		Sender: &tele.User{ID: userID},
	}})
}

func TestRateLimitPerUser(t *testing.T) {
	b := offlineBot(t)
	now := time.Unix(1000, 0)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Second,
		Exclude:  map[string]struct{}{"callback": {}},
		Now:      func() time.Time { return now },
		OnLimited: func(tele.Context) error {
			limited++
			return nil
		},
	})
	served := 0
	h := mw(func(tele.Context) error {
		served++
		return nil
	})

	_ = h(message(b, 1))
	_ = h(message(b, 1))
	_ = h(message(b, 2))
	_ = h(callback(b, 1))
	now = now.Add(time.Second)
	_ = h(message(b, 1))

	if served != 4 || limited != 1 {
		t.Fatalf("served = %d limited = %d", served, limited)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	b := offlineBot(t)
	served := 0
	h := RateLimitMiddleware(RateLimitOptions{})(func(tele.Context) error {
		served++
		return nil
	})
	for i := 0; i < 3; i++ {
		_ = h(message(b, 1))
	}
	if served != 3 {
		t.Fatalf("served = %d", served)
	}
}

func TestAdminOnly(t *testing.T) {
	b := offlineBot(t)
	for _, tc := range []struct {
		name    string
		adminID int64
		user    int64
		want    bool
	}{
		{"admin", 5, 5, true},
		{"stranger", 5, 6, false},
		{"no admin configured", 0, 5, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := AdminOnlyMiddleware(AdminOptions{AdminID: tc.adminID})(func(tele.Context) error {
				called = true
				return nil
			})
			_ = h(message(b, tc.user))
			if called != tc.want {
				t.Fatalf("called = %v, want %v", called, tc.want)
			}
		})
	}
}

func TestRecoverSwallowsPanic(t *testing.T) {
	b := offlineBot(t)
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(message(b, 1)); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateKind(t *testing.T) {
	if got := UpdateKind(tele.Update{Callback: &tele.Callback{}}); got != "callback" {
		t.Fatal(got)
	}
	if got := UpdateKind(tele.Update{Message: &tele.Message{}}); got != "message" {
		t.Fatal(got)
	}
	if got := UpdateKind(tele.Update{}); got != "other" {
		t.Fatal(got)
	}
}
