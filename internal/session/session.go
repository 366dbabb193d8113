// Package session stores each chat user's parameters and conversation state.
// Sessions live in memory only and are lost on restart.
package session

import (
	"github.com/m3rciful/sdbot/core/telegram/state"
	"github.com/m3rciful/sdbot/internal/params"
)

// Conversation states. Idle is shared with the generic state package so
// telegram middleware can recognise it.
const (
	Idle                   = state.StateIdle
	AwaitingSteps          = state.State("awaiting_steps")
	AwaitingCFG            = state.State("awaiting_cfg")
	AwaitingWidth          = state.State("awaiting_width")
	AwaitingHeight         = state.State("awaiting_height")
	AwaitingSeed           = state.State("awaiting_seed")
	AwaitingNegativePrompt = state.State("awaiting_negative_prompt")
)

// Session is one user's record.
type Session struct {
	UserID int64
	Params *params.Set
	State  state.State
	// Generating is set while an image request for this user is in flight.
	Generating bool
}

// Reset returns the conversation to idle without touching parameters.
func (s *Session) Reset() {
	s.State = Idle
}

// Store hands out per-user sessions.
type Store interface {
	// GetOrCreate returns the user's session locked for the caller. The
	// caller must invoke release exactly when done mutating it.
	GetOrCreate(userID int64) (*Session, func())
	Remove(userID int64) bool
	State(userID int64) state.State
	Len() int
}

// MemoryStore is the in-memory Store.
type MemoryStore struct {
	reg *state.Registry[Session]
}

// NewMemoryStore returns a store whose new sessions start from defaults.
func NewMemoryStore(defaults params.Defaults) *MemoryStore {
	return &MemoryStore{
		reg: state.NewRegistry(func(userID int64) *Session {
			return &Session{
				UserID: userID,
				Params: params.New(userID, defaults),
				State:  Idle,
			}
		}),
	}
}

// GetOrCreate implements Store.
func (m *MemoryStore) GetOrCreate(userID int64) (*Session, func()) {
	return m.reg.Acquire(userID)
}

// Remove implements Store.
func (m *MemoryStore) Remove(userID int64) bool {
	return m.reg.Delete(userID)
}

// State returns the user's conversation state without creating a session.
func (m *MemoryStore) State(userID int64) state.State {
	st := Idle
	m.reg.Peek(userID, func(s *Session) { st = s.State })
	return st
}

// Len returns the number of sessions.
func (m *MemoryStore) Len() int {
	return m.reg.Len()
}

// Generating returns how many users have a request in flight.
func (m *MemoryStore) Generating() int {
	n := 0
	for _, id := range m.reg.Users() {
		m.reg.Peek(id, func(s *Session) {
			if s.Generating {
				n++
			}
		})
	}
	return n
}

var _ Store = (*MemoryStore)(nil)
var _ state.StateReader = (*MemoryStore)(nil)
