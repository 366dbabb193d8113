// Package bot connects the menu state machine to Telegram: it registers the
// commands, the menu callback and the text handler, and renders replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/sdbot/core/logger"
	tg "github.com/m3rciful/sdbot/core/telegram"
	"github.com/m3rciful/sdbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/sdbot/core/telegram/helpers"
	"github.com/m3rciful/sdbot/core/telegram/keyboard"
	"github.com/m3rciful/sdbot/internal/history"
	"github.com/m3rciful/sdbot/internal/menu"
	"github.com/m3rciful/sdbot/internal/session"
)

// CallbackUnique is the callback key shared by every menu button; the
// payload carries the menu action token.
const CallbackUnique = "m"

// StatsSource reads generation history.
type StatsSource interface {
	Stats(ctx context.Context) (history.Stats, error)
	Recent(ctx context.Context, userID int64, limit int) ([]history.Record, error)
}

const recentLimit = 5

// Sender renders replies. The default implementation goes through the
// async dispatcher helpers.
type Sender interface {
	Text(c tele.Context, text string, markup *tele.ReplyMarkup) error
	Edit(c tele.Context, text string, markup *tele.ReplyMarkup) error
	Photo(c tele.Context, data []byte, caption, filename string) error
}

type helperSender struct{}

func (helperSender) Text(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return tghelpers.SendText(c, text, markup)
}

func (helperSender) Edit(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return tghelpers.EditText(c, text, markup)
}

func (helperSender) Photo(c tele.Context, data []byte, caption, filename string) error {
	return tghelpers.SendPhoto(c, data, caption, filename)
}

// Options configure a Bot.
type Options struct {
	Machine  *menu.Machine
	Sessions session.Store
	// Stats is nil when no database is configured.
	Stats  StatsSource
	Sender Sender
}

// Bot is the Telegram front end.
type Bot struct {
	machine  *menu.Machine
	sessions session.Store
	stats    StatsSource
	send     Sender
}

// New builds a Bot. Machine and Sessions are required.
func New(opts Options) (*Bot, error) {
	if opts.Machine == nil || opts.Sessions == nil {
		return nil, fmt.Errorf("bot: machine and sessions are required")
	}
	send := opts.Sender
	if send == nil {
		send = helperSender{}
	}
	return &Bot{
		machine:  opts.Machine,
		sessions: opts.Sessions,
		stats:    opts.Stats,
		send:     send,
	}, nil
}

// Register wires the bot's commands, menu callback and prompt fallback.
func (b *Bot) Register(reg *tg.Registry) error {
	for name, desc := range map[string]string{
		menu.CommandStart:    "Start the bot",
		menu.CommandHelp:     "How to use the bot",
		menu.CommandSettings: "Show current settings",
		menu.CommandCancel:   "Stop entering a custom value",
	} {
		reg.RegisterCommand("/"+name, tg.Command{
			Description: desc,
			Handler:     b.command(name),
		})
	}
	reg.RegisterCommand("/stats", tg.Command{
		Description: "Bot statistics",
		AdminOnly:   true,
		Handler:     b.handleStats,
	})
	reg.RegisterCommand("/history", tg.Command{
		Description: "Your last generations",
		Handler:     b.handleHistory,
	})
	reg.SetTextFallback(b.handleText)
	return reg.RegisterCallback(CallbackUnique, b.handleCallback)
}

// InProgress reports whether the user is entering a custom value.
func (b *Bot) InProgress(userID int64) bool {
	return !b.sessions.State(userID).IsIdle()
}

// HandleInput handles text typed while a custom value is awaited.
func (b *Bot) HandleInput(c tele.Context) error {
	return b.handleText(c)
}

func (b *Bot) command(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Sender() == nil {
			return nil
		}
		return b.dispatch(c, menu.Command(c.Sender().ID, name))
	}
}

func (b *Bot) handleText(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	return b.dispatch(c, menu.Text(c.Sender().ID, c.Text()))
}

func (b *Bot) handleCallback(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	return b.dispatch(c, menu.Action(c.Sender().ID, callbacks.CallbackPayload(c)))
}

// dispatch runs ev through the machine, shows the renders and then runs the
// followup, if any, on the same goroutine. Telebot serves updates
// concurrently, so a long generation only holds this update's goroutine.
// A followup runs even when its leading renders fail to send, so the
// generating flag it owns is always cleared.
func (b *Bot) dispatch(c tele.Context, ev menu.Event) error {
	ctx := tghelpers.BuildContext(c)
	reply := b.machine.Handle(ctx, ev)
	if reply.Abort != nil {
		defer reply.Abort()
	}
	showErr := b.show(c, reply.Renders, ev.Kind == menu.KindAction)
	if reply.Followup == nil {
		return showErr
	}
	if showErr != nil {
		logger.Warn(ctx, logger.CompMenu, "render.fail",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(logger.RedactToken(showErr.Error()), 256)),
		)
	}
	final := reply.Followup(ctx)
	return errors.Join(showErr, b.show(c, final.Renders, false))
}

// show renders in order. With editFirst the first text render replaces the
// message the button was pressed on.
func (b *Bot) show(c tele.Context, renders []menu.Render, editFirst bool) error {
	for i, r := range renders {
		var err error
		switch {
		case r.Photo != nil:
			err = b.send.Photo(c, r.Photo.Data, r.Photo.Caption, r.Photo.Filename)
		case i == 0 && editFirst:
			err = b.send.Edit(c, r.Text, Markup(r.Keyboard))
		default:
			err = b.send.Text(c, r.Text, Markup(r.Keyboard))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Markup converts menu buttons to an inline keyboard. Buttons whose token
// does not fit Telegram's callback limit are dropped.
func Markup(rows [][]menu.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, btn := range row {
			if !callbacks.Fits(CallbackUnique, btn.Action) {
				logger.Warn(context.Background(), logger.CompMenu, "button.too_long",
					slog.String("payload", logger.SanitizeLimit(btn.Action, 64)),
				)
				continue
			}
			r = append(r, keyboard.InlineBtn{Text: btn.Label, Unique: CallbackUnique, Data: btn.Action})
		}
		out = append(out, r)
	}
	return keyboard.InlineButtonsRows(out...)
}

type generatingCounter interface {
	Generating() int
}

func (b *Bot) handleStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return b.send.Text(c, b.statsText(ctx), nil)
}

func (b *Bot) statsText(ctx context.Context) string {
	var sb strings.Builder
	sb.WriteString("📈 Bot statistics\n\n")
	fmt.Fprintf(&sb, "Sessions: %d\n", b.sessions.Len())
	if g, ok := b.sessions.(generatingCounter); ok {
		fmt.Fprintf(&sb, "Generating now: %d\n", g.Generating())
	}
	fmt.Fprintf(&sb, "Image API: %s\n", onOff(b.machine.Configured()))

	if b.stats == nil {
		sb.WriteString("History: disabled")
		return sb.String()
	}
	st, err := b.stats.Stats(ctx)
	if err != nil {
		logger.Warn(ctx, logger.CompHistory, "history.stats",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		sb.WriteString("History: unavailable")
		return sb.String()
	}
	fmt.Fprintf(&sb, "\nGenerations: %d (ok %d, failed %d)\n", st.Total, st.Succeeded, st.Failed)
	fmt.Fprintf(&sb, "Users: %d\n", st.Users)
	fmt.Fprintf(&sb, "Average time: %.1fs", float64(st.AvgMS)/1000)
	return sb.String()
}

func (b *Bot) handleHistory(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	return b.send.Text(c, b.historyText(ctx, c.Sender().ID), nil)
}

func (b *Bot) historyText(ctx context.Context, userID int64) string {
	if b.stats == nil {
		return "History is disabled."
	}
	recs, err := b.stats.Recent(ctx, userID, recentLimit)
	if err != nil {
		logger.Warn(ctx, logger.CompHistory, "history.recent",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return "History is unavailable right now."
	}
	if len(recs) == 0 {
		return "No generations yet."
	}
	var sb strings.Builder
	sb.WriteString("🕘 Your last generations\n")
	for _, r := range recs {
		mark := "✅"
		if r.Status != history.StatusOK {
			mark = "❌"
		}
		fmt.Fprintf(&sb, "\n%s %s\n   %d steps, CFG %.1f, %dx%d, %s",
			mark, logger.SanitizeLimit(r.Prompt, 80), r.Steps, r.CFGScale, r.Width, r.Height, r.Sampler)
	}
	return sb.String()
}

func onOff(v bool) string {
	if v {
		return "configured"
	}
	return "not configured"
}
