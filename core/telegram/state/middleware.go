package state

import tele "gopkg.in/telebot.v4"

const stateKey = "fsm_state"

// StateReader reports a user's current conversation state.
type StateReader interface {
	State(userID int64) State
}

// WithState stores the sender's current state in the handler context so
// routers and logging can read it without touching the registry again.
func WithState(reader StateReader) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if reader != nil && c.Sender() != nil {
				c.Set(stateKey, reader.State(c.Sender().ID))
			}
			return next(c)
		}
	}
}

// FromContext returns the state stored by WithState, or StateIdle.
func FromContext(c tele.Context) State {
	if c == nil {
		return StateIdle
	}
	if st, ok := c.Get(stateKey).(State); ok {
		return st
	}
	return StateIdle
}
