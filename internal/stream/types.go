package stream

import (
	"errors"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
)

// ErrStopped is returned by a Source read after Stop.
var ErrStopped = errors.New("source stopped")

// Status tags a chunk with its position in the stream.
type Status int

const (
	StatusBegin Status = iota
	StatusContinue
	StatusEnd
)

func (s Status) String() string {
	switch s {
	case StatusBegin:
		return "begin"
	case StatusContinue:
		return "continue"
	case StatusEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Chunk is one fixed-size read from the source. The End chunk carries no data.
type Chunk struct {
	Data   []byte
	Status Status
}

// State is the pipeline's session state.
type State int

const (
	StateIdle State = iota
	StateListening
)

func (s State) String() string {
	if s == StateListening {
		return "listening"
	}
	return "idle"
}

// Session outcomes reported to the recorder.
const (
	OutcomeCompleted    = "completed"
	OutcomeFailed       = "failed"
	OutcomeDisconnected = "disconnected"
)

// Source produces raw data for a session, e.g. a microphone.
type Source interface {
	Start() error
	// Read blocks until data is available. After Stop it returns ErrStopped
	// or io.EOF.
	Read(p []byte) (int, error)
	// Stop unblocks pending reads. It is safe to call more than once.
	Stop() error
}

// Sink receives processed output for the session's port. Calls after the
// session ended are ignored.
type Sink interface {
	// Emit queues an intermediate message.
	Emit(msg bridge.PortMessage)
	// Finish queues the final message; the port is disconnected after it.
	Finish(msg bridge.PortMessage)
	// Fail queues an error message and ends the session.
	Fail(err error)
}

// Task processes the chunks of one session.
type Task interface {
	Process(c Chunk) error
	Close() error
}

// Processor opens one Task per session.
type Processor interface {
	Open(sink Sink) (Task, error)
}
