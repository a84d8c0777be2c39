package tracker

import "errors"

var (
	// ErrStorage marks failures of the underlying store. They are retryable.
	ErrStorage = errors.New("storage failure")

	// ErrInvalidArgument marks a rejected input such as an empty category.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Conflict describes which state precondition a transition failed.
type Conflict int

const (
	NoConflict Conflict = iota
	// ConflictSessionOpen: start was called while a session is Active or Paused.
	ConflictSessionOpen
	// ConflictNoActiveSession: pause was called without an Active session.
	ConflictNoActiveSession
	// ConflictNoPausedSession: resume was called without a Paused session.
	ConflictNoPausedSession
	// ConflictNoOpenSession: end was called without an Active or Paused session.
	ConflictNoOpenSession
)

func (c Conflict) String() string {
	switch c {
	case NoConflict:
		return "none"
	case ConflictSessionOpen:
		return "session already open"
	case ConflictNoActiveSession:
		return "no active session"
	case ConflictNoPausedSession:
		return "no paused session"
	case ConflictNoOpenSession:
		return "no open session"
	}
	return "unknown"
}

// Transition is the result of a state machine operation.
//
// On success Conflict is NoConflict and Session is the session after the
// transition; Break is the break opened (pause) or closed (resume, end).
// On a conflict nothing was written and Session carries the user's
// in-flight session, if any, so the caller can explain the next valid action.
type Transition struct {
	Session  *Session
	Break    *Break
	Conflict Conflict
}

// OK reports whether the transition was applied.
func (t Transition) OK() bool {
	return t.Conflict == NoConflict
}
