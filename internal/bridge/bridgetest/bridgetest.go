// Package bridgetest provides in-memory hosts for exercising handlers
// without a script engine.
package bridgetest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
)

// Port is an in-memory bridge.Port that records everything posted to it.
type Port struct {
	name string

	mu           sync.Mutex
	delegate     bridge.PortDelegate
	posted       []any
	disconnects  int
	disconnected chan struct{}
	changed      chan struct{}
}

// NewPort creates a connected port for channel name.
func NewPort(name string) *Port {
	return &Port{
		name:         name,
		disconnected: make(chan struct{}),
		changed:      make(chan struct{}, 1),
	}
}

func (p *Port) Name() string { return p.name }

// Post records msg. Posting after disconnect fails.
func (p *Port) Post(msg any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disconnects > 0 {
		return errors.New("port disconnected")
	}
	p.posted = append(p.posted, msg)
	p.notify()
	return nil
}

// Disconnect marks the port closed from the native side.
func (p *Port) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnects++
	if p.disconnects == 1 {
		close(p.disconnected)
	}
	p.notify()
}

func (p *Port) SetDelegate(d bridge.PortDelegate) {
	p.mu.Lock()
	p.delegate = d
	p.mu.Unlock()
}

func (p *Port) notify() {
	select {
	case p.changed <- struct{}{}:
	default:
	}
}

// Deliver simulates the script posting msg on the port.
func (p *Port) Deliver(msg bridge.Value) {
	p.mu.Lock()
	d := p.delegate
	p.mu.Unlock()
	if d != nil {
		d.OnPortMessage(msg)
	}
}

// Close simulates the script disconnecting.
func (p *Port) Close() {
	p.mu.Lock()
	d := p.delegate
	p.mu.Unlock()
	if d != nil {
		d.OnDisconnect()
	}
}

// Posted returns a snapshot of the posted messages.
func (p *Port) Posted() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.posted...)
}

// Messages returns the posted messages that are bridge.PortMessage values.
func (p *Port) Messages() []bridge.PortMessage {
	var out []bridge.PortMessage
	for _, m := range p.Posted() {
		if pm, ok := m.(bridge.PortMessage); ok {
			out = append(out, pm)
		}
	}
	return out
}

// Disconnects reports how many times Disconnect was called.
func (p *Port) Disconnects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnects
}

// WaitDisconnected blocks until Disconnect is called or timeout elapses.
func (p *Port) WaitDisconnected(timeout time.Duration) bool {
	select {
	case <-p.disconnected:
		return true
	case <-time.After(timeout):
		return false
	}
}

// WaitPosted blocks until at least n messages were posted or timeout elapses.
func (p *Port) WaitPosted(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		p.mu.Lock()
		got := len(p.posted)
		p.mu.Unlock()
		if got >= n {
			return true
		}
		select {
		case <-p.changed:
		case <-deadline:
			return false
		}
	}
}

// Controller is an in-memory bridge.Controller.
type Controller struct {
	mu        sync.Mutex
	delegates map[string]bridge.MessageDelegate
	// Fail makes SetMessageDelegate reject these names.
	Fail map[string]error
}

// NewController creates an empty controller.
func NewController() *Controller {
	return &Controller{delegates: make(map[string]bridge.MessageDelegate)}
}

func (c *Controller) SetMessageDelegate(name string, d bridge.MessageDelegate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.Fail[name]; ok {
		return err
	}
	c.delegates[name] = d
	return nil
}

// Delegate returns the delegate installed for name.
func (c *Controller) Delegate(name string) (bridge.MessageDelegate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.delegates[name]
	return d, ok
}

// Send delivers a one-shot message through the installed delegate.
func (c *Controller) Send(channel, action string, data bridge.Value) *bridge.Future {
	d, ok := c.Delegate(channel)
	if !ok {
		return bridge.Rejected(bridge.ErrHandlerNotFound)
	}
	return d.OnMessage(channel, bridge.Message{Action: action, Data: data})
}

// Connect opens a port on channel through the installed delegate.
func (c *Controller) Connect(channel string) *Port {
	p := NewPort(channel)
	if d, ok := c.Delegate(channel); ok {
		d.OnConnect(p)
	} else {
		_ = bridge.Reject(p, fmt.Errorf("%w: %s", bridge.ErrHandlerNotFound, channel))
	}
	return p
}
