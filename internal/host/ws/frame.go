// Package ws carries the script channel over a websocket. One connection
// multiplexes one-shot calls and any number of ports.
package ws

import (
	"github.com/GriffinCanCode/nativebridge/internal/bridge"
)

// Frame kinds.
const (
	KindCall       = "call"
	KindReply      = "reply"
	KindConnect    = "connect"
	KindPost       = "post"
	KindDisconnect = "disconnect"
	KindError      = "error"
)

// Frame is one websocket message. Call ids and port ids belong to the
// transport; the bridge only sees single calls and ports.
type Frame struct {
	Kind    string            `json:"kind"`
	ID      string            `json:"id,omitempty"`
	Channel string            `json:"channel,omitempty"`
	Port    string            `json:"port,omitempty"`
	Payload *bridge.Value     `json:"payload,omitempty"`
	Data    *bridge.Value     `json:"data,omitempty"`
	OK      *bool             `json:"ok,omitempty"`
	Value   *bridge.Value     `json:"value,omitempty"`
	Error   *bridge.ErrorBody `json:"error,omitempty"`
}

// Reply builds the reply frame for call id.
func Reply(id string, v any, err error) Frame {
	ok := err == nil
	f := Frame{Kind: KindReply, ID: id, OK: &ok}
	if err != nil {
		body := bridge.ErrorBodyOf(err)
		f.Error = &body
		return f
	}
	val, verr := bridge.ValueOf(v)
	if verr != nil {
		return Reply(id, nil, verr)
	}
	f.Value = &val
	return f
}

// ErrorFrame reports a malformed or unroutable frame.
func ErrorFrame(id string, err error) Frame {
	body := bridge.ErrorBodyOf(err)
	return Frame{Kind: KindError, ID: id, Error: &body}
}

func valueOrNull(v *bridge.Value) bridge.Value {
	if v == nil {
		return bridge.Null()
	}
	return *v
}
