// Package menu implements the per-user conversation: the inline menu screens,
// free-text prompt capture and custom value entry. It produces render
// instructions and never talks to Telegram itself.
package menu

import (
	"context"

	"github.com/m3rciful/sdbot/core/telegram/state"
	"github.com/m3rciful/sdbot/internal/params"
	"github.com/m3rciful/sdbot/internal/sdapi"
)

// Kind tells the machine how an event reached the bot.
type Kind int

const (
	// KindAction is a button press carrying an action token.
	KindAction Kind = iota
	// KindText is a typed message.
	KindText
	// KindCommand is a slash command; Data holds the name without the slash.
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindText:
		return "text"
	case KindCommand:
		return "command"
	}
	return "unknown"
}

// Commands understood by the machine.
const (
	CommandStart    = "start"
	CommandHelp     = "help"
	CommandSettings = "settings"
	CommandCancel   = "cancel"
)

// Event is one inbound user interaction.
type Event struct {
	UserID int64
	Kind   Kind
	Data   string
}

// Action builds a button press event.
func Action(userID int64, tok string) Event {
	return Event{UserID: userID, Kind: KindAction, Data: tok}
}

// Text builds a typed message event.
func Text(userID int64, text string) Event {
	return Event{UserID: userID, Kind: KindText, Data: text}
}

// Command builds a slash command event.
func Command(userID int64, name string) Event {
	return Event{UserID: userID, Kind: KindCommand, Data: name}
}

// Button is a selectable action.
type Button struct {
	Label  string
	Action string
}

// Photo is an image to send alongside a render.
type Photo struct {
	Data     []byte
	Caption  string
	Filename string
}

// Render is a single display instruction. A render with a Photo sends the
// image with its caption; otherwise Text is shown with the optional keyboard.
type Render struct {
	Text     string
	Keyboard [][]Button
	Photo    *Photo
}

// Reply is the result of handling one event.
type Reply struct {
	Renders []Render
	// State is the user's conversation state after the transition.
	State state.State
	// Followup, when set, must be run by the caller after the renders are
	// shown. It blocks on the image API and returns the final renders.
	Followup func(ctx context.Context) Reply
	// Abort releases what the transition reserved when Followup will not
	// run. It is a no-op after Followup has started.
	Abort func()
}

// Empty reports a no-op reply.
func (r Reply) Empty() bool {
	return len(r.Renders) == 0 && r.Followup == nil
}

// Generator produces an image for a parameter snapshot.
type Generator interface {
	Generate(ctx context.Context, p params.Set) sdapi.Outcome
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, p params.Set) sdapi.Outcome

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, p params.Set) sdapi.Outcome {
	return f(ctx, p)
}
