package bridge

import (
	"fmt"
)

// Handler is a native object reachable from script under one channel name.
type Handler interface {
	// Actions returns the dispatch table entries. It is read once, at registration.
	Actions() []Action
}

// Streamer is a Handler that also accepts persistent port connections.
type Streamer interface {
	Handler
	Accept(port Port)
}

// Port is the host's bidirectional connection to script.
type Port interface {
	// Name is the channel name the script connected to.
	Name() string
	// Post sends a JSON-representable message to script.
	Post(msg any) error
	// Disconnect closes the port from the native side. It does not call the
	// delegate's OnDisconnect.
	Disconnect()
	// SetDelegate routes script-originated port events to d.
	SetDelegate(d PortDelegate)
}

// PortDelegate receives events the script side originates on a port.
type PortDelegate interface {
	OnPortMessage(msg Value)
	OnDisconnect()
}

// MessageDelegate is installed by the host once per channel name and is
// invoked for both one-shot messages and connection requests.
type MessageDelegate interface {
	OnMessage(channel string, msg Message) *Future
	OnConnect(port Port)
}

// Controller is the host's engine controller: it accepts one delegate per name.
type Controller interface {
	SetMessageDelegate(name string, d MessageDelegate) error
}

// Message is an inbound one-shot call: {action, data}.
type Message struct {
	Action string `json:"action"`
	Data   Value  `json:"data"`
}

// MessageFrom extracts a one-shot message from a decoded payload.
func MessageFrom(payload Value) (Message, error) {
	if payload.Kind() != KindObject {
		return Message{}, fmt.Errorf("%w: payload must be an object, got %s", ErrNativeCall, payload.Kind())
	}
	action, ok := payload.Field("action")
	if !ok || action.Kind() != KindScalar {
		return Message{}, fmt.Errorf("%w: payload has no action", ErrNativeCall)
	}
	data, _ := payload.Field("data")
	return Message{Action: action.Text(), Data: data}, nil
}

// Port message types pushed from native.
const (
	TypeResult = "result"
	TypeEvent  = "event"
	TypeError  = "error"
)

// PortMessage is the conventional native-to-script port payload.
type PortMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ResultMessage builds a {type:"result"} port message.
func ResultMessage(data any) PortMessage { return PortMessage{Type: TypeResult, Data: data} }

// EventMessage builds a {type:"event"} port message.
func EventMessage(data any) PortMessage { return PortMessage{Type: TypeEvent, Data: data} }

// ErrorMessage builds a {type:"error"} port message carrying err's text.
func ErrorMessage(err error) PortMessage { return PortMessage{Type: TypeError, Data: err.Error()} }

// ErrorBody is the structured error of a failed one-shot reply.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorBodyOf renders err for the wire.
func ErrorBodyOf(err error) ErrorBody {
	return ErrorBody{Code: Code(err), Message: err.Error()}
}

// Reject posts err as the port's only message and disconnects it.
func Reject(port Port, err error) error {
	perr := port.Post(ErrorMessage(err))
	port.Disconnect()
	return perr
}
