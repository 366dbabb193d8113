package menu

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/m3rciful/sdbot/core/logger"
	"github.com/m3rciful/sdbot/core/metrics"
	"github.com/m3rciful/sdbot/internal/params"
	"github.com/m3rciful/sdbot/internal/session"
)

// Config wires a Machine.
type Config struct {
	Store   session.Store
	Catalog params.Catalog
	// Generator is nil when no image API is configured.
	Generator Generator
}

// Machine dispatches events to the handler for the user's current state.
type Machine struct {
	store   session.Store
	catalog params.Catalog
	gen     Generator
}

// New returns a Machine. A nil store gets an in-memory one seeded from the
// catalog defaults.
func New(cfg Config) *Machine {
	store := cfg.Store
	if store == nil {
		store = session.NewMemoryStore(cfg.Catalog.Defaults)
	}
	return &Machine{store: store, catalog: cfg.Catalog, gen: cfg.Generator}
}

// Configured reports whether generation is available.
func (m *Machine) Configured() bool {
	return m.gen != nil
}

// Handle runs one transition while holding the user's session lock. The
// image request of a generate action is left to the returned Followup so the
// lock is not held while waiting on the API.
func (m *Machine) Handle(ctx context.Context, ev Event) Reply {
	s, release := m.store.GetOrCreate(ev.UserID)
	defer release()
	metrics.ActiveSessions.Set(float64(m.store.Len()))

	from := s.State
	var out Reply
	switch ev.Kind {
	case KindCommand:
		out = m.command(ctx, s, ev.Data)
	case KindText:
		out = m.text(ctx, s, ev.Data)
	case KindAction:
		out = m.action(ctx, s, ev.Data)
	default:
		m.noop(ctx, ev, "unknown_kind")
	}
	out.State = s.State

	if from != s.State {
		logger.Debug(ctx, "menu", "state.changed",
			slog.Int64("user_id", ev.UserID),
			slog.String("op", ev.Kind.String()),
			slog.String("from", string(from)),
			slog.String("to", string(s.State)),
		)
	}
	return out
}

func (m *Machine) command(ctx context.Context, s *session.Session, name string) Reply {
	p := s.Params.View()
	switch strings.ToLower(strings.TrimPrefix(name, "/")) {
	case CommandStart:
		return reply(Render{Text: textWelcome})
	case CommandHelp:
		return reply(Render{Text: textHelp})
	case CommandSettings:
		return reply(Render{Text: settingsText(p), Keyboard: mainKeyboard()})
	case CommandCancel:
		if s.State.IsIdle() {
			return reply(Render{Text: textNothingToStop, Keyboard: mainKeyboard()})
		}
		s.Reset()
		return reply(Render{Text: textCancelled, Keyboard: mainKeyboard()})
	}
	m.noop(ctx, Command(s.UserID, name), "unknown_command")
	return Reply{}
}

func (m *Machine) text(ctx context.Context, s *session.Session, text string) Reply {
	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		m.noop(ctx, Text(s.UserID, text), "unhandled_command")
		return Reply{}
	}
	if in, ok := inputs[s.State]; ok {
		return in.accept(s, text)
	}

	prompt := strings.TrimSpace(text)
	if prompt == "" {
		m.noop(ctx, Text(s.UserID, text), "empty_prompt")
		return Reply{}
	}
	s.Params.Apply(params.Update{Field: params.FieldPrompt, Value: prompt})
	logger.Info(ctx, "menu", "prompt.saved",
		slog.Int64("user_id", s.UserID),
		slog.String("payload", logger.SanitizeLimit(prompt, 80)),
	)
	return reply(Render{Text: promptSavedText(s.Params.View()), Keyboard: mainKeyboard()})
}

func (m *Machine) action(ctx context.Context, s *session.Session, tok string) Reply {
	if in, ok := inputs[s.State]; ok {
		return reply(Render{Text: in.prompt(s.Params.View()) + textCancelHint})
	}

	category, value, _ := strings.Cut(tok, ":")
	p := s.Params
	switch category {
	case ActionGenerate:
		if value == "" {
			return m.generate(ctx, s)
		}
	case ActionViewSettings:
		if value == "" {
			return reply(Render{Text: settingsText(p.View()), Keyboard: mainKeyboard()})
		}
	case catMenu:
		if r, ok := m.screen(value, p.View()); ok {
			return reply(r)
		}
	case catQuality:
		if preset, ok := m.catalog.Quality(value); ok {
			p.Apply(preset.Updates()...)
			return reply(Render{
				Text:     "✓ Quality preset applied: " + preset.Name + "\nSteps: " + itoa(p.Steps) + ", CFG: " + formatCFG(p.CFGScale),
				Keyboard: mainKeyboard(),
			})
		}
	case catSize:
		if preset, ok := m.catalog.Size(value); ok {
			p.Apply(preset.Updates()...)
			return reply(Render{
				Text:     "✓ Size set to: " + preset.Name + " (" + itoa(p.Width) + "x" + itoa(p.Height) + ")",
				Keyboard: mainKeyboard(),
			})
		}
	case catSampler:
		if m.catalog.HasSampler(value) {
			p.Apply(params.Update{Field: params.FieldSampler, Value: value})
			return reply(Render{Text: "✓ Sampler changed to: " + value, Keyboard: advancedKeyboard()})
		}
	case catScheduler:
		if m.catalog.HasScheduler(value) {
			p.Apply(params.Update{Field: params.FieldScheduler, Value: value})
			return reply(Render{Text: "✓ Scheduler changed to: " + value, Keyboard: advancedKeyboard()})
		}
	case catSteps:
		if delta, ok := direction(value, params.StepsDelta); ok {
			p.ClampIncrement(params.FieldSteps, delta, params.StepsRange.Min, params.StepsRange.Max)
			return reply(Render{Text: "Steps: " + itoa(p.Steps), Keyboard: advancedKeyboard()})
		}
	case catCFG:
		if delta, ok := direction(value, params.CFGDelta); ok {
			p.ClampIncrement(params.FieldCFGScale, delta, params.CFGRange.Min, params.CFGRange.Max)
			return reply(Render{Text: "CFG Scale: " + formatCFG(p.CFGScale), Keyboard: advancedKeyboard()})
		}
	case catToggle:
		switch params.Field(value) {
		case params.FieldRestoreFaces:
			on, _ := p.Toggle(params.FieldRestoreFaces)
			return reply(Render{Text: "✓ Restore faces: " + onOff(on), Keyboard: advancedKeyboard()})
		case params.FieldTiling:
			on, _ := p.Toggle(params.FieldTiling)
			return reply(Render{Text: "✓ Tiling: " + onOff(on), Keyboard: advancedKeyboard()})
		}
	case catBack:
		switch value {
		case "main":
			return reply(Render{Text: textWhatNext, Keyboard: mainKeyboard()})
		case "advanced":
			return reply(Render{Text: advancedText(p.View()), Keyboard: advancedKeyboard()})
		}
	case catCustom:
		if st, ok := customStates[value]; ok {
			s.State = st
			return reply(Render{Text: inputs[st].prompt(p.View())})
		}
	}

	m.noop(ctx, Action(s.UserID, tok), "unknown_action")
	return Reply{}
}

func (m *Machine) screen(name string, p params.Set) (Render, bool) {
	switch name {
	case "quality":
		return Render{Text: textSelectQuality, Keyboard: qualityKeyboard(m.catalog)}, true
	case "size":
		return Render{Text: textSelectSize, Keyboard: sizeKeyboard(m.catalog)}, true
	case "advanced":
		return Render{Text: advancedText(p), Keyboard: advancedKeyboard()}, true
	case "sampler":
		return Render{Text: textSelectSampler, Keyboard: pairKeyboard(catSampler, m.catalog.Samplers)}, true
	case "scheduler":
		return Render{Text: schedulerText(p), Keyboard: pairKeyboard(catScheduler, m.catalog.Schedulers)}, true
	}
	return Render{}, false
}

func (m *Machine) generate(ctx context.Context, s *session.Session) Reply {
	if m.gen == nil {
		metrics.GenerationsTotal.WithLabelValues(metrics.StatusNotConfigured).Inc()
		logger.Warn(ctx, "menu", "generate.skip",
			slog.Int64("user_id", s.UserID),
			slog.String("cause", "not_configured"),
		)
		return reply(Render{Text: textNotConfigured, Keyboard: mainKeyboard()})
	}
	if s.Generating {
		metrics.GenerationsTotal.WithLabelValues(metrics.StatusBusy).Inc()
		return reply(Render{Text: textStillRunning, Keyboard: mainKeyboard()})
	}

	s.Generating = true
	snapshot := s.Params.View()
	userID := s.UserID
	var once sync.Once
	return Reply{
		Renders: []Render{{Text: textGenerating}},
		Followup: func(ctx context.Context) Reply {
			out := Reply{}
			once.Do(func() {
				defer func() {
					if r := recover(); r != nil {
						m.release(userID)
						panic(r)
					}
				}()
				out = m.finish(ctx, userID, snapshot)
			})
			return out
		},
		Abort: func() {
			once.Do(func() { m.release(userID) })
		},
	}
}

func (m *Machine) release(userID int64) {
	s, release := m.store.GetOrCreate(userID)
	defer release()
	s.Generating = false
}

func (m *Machine) finish(ctx context.Context, userID int64, snapshot params.Set) Reply {
	out := m.gen.Generate(ctx, snapshot)

	s, release := m.store.GetOrCreate(userID)
	defer release()
	s.Generating = false

	if out.OK() {
		return Reply{
			State: s.State,
			Renders: []Render{
				{Photo: &Photo{Data: out.Image, Caption: captionText(snapshot), Filename: imageFilename}},
				{Text: textGenerated},
			},
		}
	}
	s.Reset()
	return Reply{
		State:   s.State,
		Renders: []Render{{Text: failurePrefix + out.Message + failureSuffix, Keyboard: mainKeyboard()}},
	}
}

func (m *Machine) noop(ctx context.Context, ev Event, cause string) {
	logger.Warn(ctx, "menu", "event.noop",
		slog.Int64("user_id", ev.UserID),
		slog.String("op", ev.Kind.String()),
		slog.String("payload", logger.SanitizeLimit(ev.Data, 64)),
		slog.String("cause", cause),
	)
}

func reply(r ...Render) Reply {
	return Reply{Renders: r}
}

func direction(value string, step float64) (float64, bool) {
	switch value {
	case "inc":
		return step, true
	case "dec":
		return -step, true
	}
	return 0, false
}
