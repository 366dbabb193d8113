package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/sdbot/core/config"
	"github.com/m3rciful/sdbot/core/telegram/middleware"
	"github.com/m3rciful/sdbot/core/telegram/state"
)

// DefaultMiddlewares builds the shared middleware chain for bots. states may
// be nil when the bot keeps no conversation state.
func DefaultMiddlewares(cfg *coreconfig.Config, states state.StateReader, onLimited func(tele.Context) error) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: onLimited,
				}),
			})
		}
	}

	mws = append(mws, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
	if states != nil {
		mws = append(mws, Middleware{Name: "state", Use: state.WithState(states)})
	}
	return mws
}
