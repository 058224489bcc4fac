package session

import "fmt"

// Kind classifies why a print failed.
type Kind int

const (
	KindInvalidJob Kind = iota
	KindBusy
	KindNoDevice
	KindComposerFailure
	KindTransportFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidJob:
		return "invalid job"
	case KindBusy:
		return "busy"
	case KindNoDevice:
		return "no device"
	case KindComposerFailure:
		return "composer failure"
	case KindTransportFailure:
		return "transport failure"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by Print for every failure.
type Error struct {
	Kind  Kind
	Stage State
	JobID string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("print %s: %s during %s: %v", e.JobID, e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
