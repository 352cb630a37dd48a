package transcription

import "time"

// State is the lifecycle of the live recognition stream of one session.
// Idle covers both "nothing open yet" and "open in flight".
type State int

const (
	StateIdle State = iota
	StateConnected
	StateReceiving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnected:
		return "CONNECTED"
	case StateReceiving:
		return "RECEIVING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// StateChange is one step of the stream lifecycle.
type StateChange struct {
	From   State
	To     State
	Reason string
	At     time.Time
}

var allowed = map[State]map[State]bool{
	StateIdle:      {StateConnected: true, StateClosed: true},
	StateConnected: {StateReceiving: true, StateClosed: true},
	StateReceiving: {StateConnected: true, StateClosed: true},
	StateClosed:    {StateIdle: true},
}

// stateMachine is owned by the controller's caller goroutine and holds no lock.
type stateMachine struct {
	current State
	observe func(StateChange)
	now     func() time.Time
}

func newStateMachine(observe func(StateChange), now func() time.Time) *stateMachine {
	return &stateMachine{current: StateIdle, observe: observe, now: now}
}

func (sm *stateMachine) State() State { return sm.current }

func (sm *stateMachine) Transition(to State, reason string) error {
	if !allowed[sm.current][to] {
		return &InvalidTransitionError{From: sm.current, To: to}
	}
	change := StateChange{From: sm.current, To: to, Reason: reason, At: sm.now()}
	sm.current = to
	if sm.observe != nil {
		sm.observe(change)
	}
	return nil
}

type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "transcription: cannot move from " + e.From.String() + " to " + e.To.String()
}
