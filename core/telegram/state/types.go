package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// IsIdle reports whether st is the idle state. The zero value counts as idle.
func (st State) IsIdle() bool {
	return st == "" || st == StateIdle
}
