package speech

import (
	"errors"
	"strings"
)

// ErrUnsupported reports that no recognition capability is available.
var ErrUnsupported = errors.New("speech recognition is not supported")

// EventType enumerates the events a Recognizer emits.
type EventType int

const (
	// EventStart reports that audio capture began.
	EventStart EventType = iota
	// EventResult carries a batch of recognition results.
	EventResult
	// EventError reports a recognition failure. The session may continue.
	EventError
	// EventEnd reports that the session ended, whether asked to or not.
	EventEnd
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventResult:
		return "result"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Result is one recognized segment.
type Result struct {
	Transcript string
	Final      bool
}

// Event is a platform notification translated to a closed set of types.
type Event struct {
	Type EventType
	// Results holds the changed results of an EventResult, oldest first.
	Results []Result
	// Err describes an EventError.
	Err string
}

// Recognizer is the platform speech recognition capability.
//
// Start and Stop return immediately; their effects arrive later as events.
// Start while a session is active is an error.
type Recognizer interface {
	Configure(opts Options) error
	Start() error
	Stop() error
	Events() <-chan Event
}

// Provider acquires a Recognizer. It returns an error wrapping
// ErrUnsupported when the platform has no recognition capability.
type Provider func() (Recognizer, error)

// IsUnsupported reports whether an error message describes a missing
// recognition capability.
func IsUnsupported(message string) bool {
	return strings.Contains(strings.ToLower(message), "not supported")
}
