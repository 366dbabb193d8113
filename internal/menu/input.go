package menu

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/m3rciful/sdbot/core/telegram/state"
	"github.com/m3rciful/sdbot/internal/params"
	"github.com/m3rciful/sdbot/internal/session"
)

// input handles typed values while the user is in one of the awaiting states.
type input struct {
	prompt func(p params.Set) string
	accept func(s *session.Session, text string) Reply
}

var customStates = map[string]state.State{
	"steps":    session.AwaitingSteps,
	"cfg":      session.AwaitingCFG,
	"width":    session.AwaitingWidth,
	"height":   session.AwaitingHeight,
	"seed":     session.AwaitingSeed,
	"negative": session.AwaitingNegativePrompt,
}

var inputs = map[state.State]input{
	session.AwaitingSteps: {
		prompt: fixed(promptSteps),
		accept: func(s *session.Session, text string) Reply {
			n, err := strconv.Atoi(strings.TrimSpace(text))
			if err != nil {
				return again(textInvalidNumber)
			}
			if !params.StepsRange.Contains(float64(n)) {
				return again("Steps must be between 5 and 150. Try again:")
			}
			s.Params.Apply(params.Update{Field: params.FieldSteps, Value: n})
			s.Reset()
			return reply(Render{Text: "✓ Steps set to " + itoa(n), Keyboard: advancedKeyboard()})
		},
	},
	session.AwaitingCFG: {
		prompt: fixed(promptCFG),
		accept: func(s *session.Session, text string) Reply {
			v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
			if err != nil && !errors.Is(err, strconv.ErrRange) {
				return again(textInvalidNumber)
			}
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || !params.CFGRange.Contains(v) {
				return again("CFG scale must be between 1.0 and 20.0. Try again:")
			}
			s.Params.Apply(params.Update{Field: params.FieldCFGScale, Value: v})
			s.Reset()
			return reply(Render{Text: "✓ CFG scale set to " + formatCFG(v), Keyboard: advancedKeyboard()})
		},
	},
	session.AwaitingWidth: {
		prompt: fixed(promptWidth),
		accept: dimension(params.FieldWidth, "Width"),
	},
	session.AwaitingHeight: {
		prompt: fixed(promptHeight),
		accept: dimension(params.FieldHeight, "Height"),
	},
	session.AwaitingSeed: {
		prompt: fixed(promptSeed),
		accept: func(s *session.Session, text string) Reply {
			seed, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
			if err != nil {
				return again(textInvalidNumber)
			}
			s.Params.Apply(params.Update{Field: params.FieldSeed, Value: seed})
			s.Reset()
			return reply(Render{Text: "✓ Seed set to " + seedText(seed), Keyboard: advancedKeyboard()})
		},
	},
	session.AwaitingNegativePrompt: {
		prompt: negativePromptText,
		accept: func(s *session.Session, text string) Reply {
			s.Params.Apply(params.Update{Field: params.FieldNegativePrompt, Value: text})
			s.Reset()
			return reply(Render{Text: textNegativeSaved, Keyboard: mainKeyboard()})
		},
	},
}

func dimension(f params.Field, label string) func(*session.Session, string) Reply {
	return func(s *session.Session, text string) Reply {
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return again(textInvalidNumber)
		}
		if !params.SizeRange.Contains(float64(n)) {
			return again(label + " must be between 64 and 2048. Try again:")
		}
		s.Params.Apply(params.Update{Field: f, Value: n})
		s.Reset()
		return reply(Render{Text: "✓ " + label + " set to " + itoa(n) + "px", Keyboard: mainKeyboard()})
	}
}

func fixed(text string) func(params.Set) string {
	return func(params.Set) string { return text }
}

// again keeps the state and asks for the value once more.
func again(text string) Reply {
	return reply(Render{Text: text})
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
