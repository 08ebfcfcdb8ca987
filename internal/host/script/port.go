package script

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
)

var errPortClosed = errors.New("port closed")

// port is a script-side connection. Native calls may come from any
// goroutine; script callbacks are queued onto the loop.
type port struct {
	r            *Runtime
	name         string
	onMessage    goja.Callable
	onDisconnect goja.Callable

	mu       sync.Mutex
	delegate bridge.PortDelegate
	closed   bool
	// gone is set once the script side closed; queued posts are dropped.
	gone bool
}

// connect implements nativeBridge.connect(channel, onMessage, onDisconnect).
func (r *Runtime) connect(call goja.FunctionCall) goja.Value {
	channel := call.Argument(0).String()
	p := &port{r: r, name: channel}
	p.onMessage, _ = goja.AssertFunction(call.Argument(1))
	p.onDisconnect, _ = goja.AssertFunction(call.Argument(2))

	r.mu.Lock()
	r.ports[p] = struct{}{}
	r.mu.Unlock()
	r.pending++

	obj := r.vm.NewObject()
	_ = obj.Set("name", channel)
	_ = obj.Set("postMessage", func(data goja.Value) {
		p.scriptPost(data)
	})
	_ = obj.Set("disconnect", func() {
		p.remoteClose()
	})

	d, ok := r.delegate(channel)
	if !ok {
		_ = bridge.Reject(p, fmt.Errorf("%w: %s", bridge.ErrHandlerNotFound, channel))
		return obj
	}
	d.OnConnect(p)
	return obj
}

func (p *port) Name() string { return p.name }

// Post queues msg for the script's onMessage callback.
func (p *port) Post(msg any) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errPortClosed
	}

	data, err := bridge.Encode(msg)
	if err != nil {
		return err
	}
	p.r.enqueue(func() {
		if p.isGone() || p.onMessage == nil {
			return
		}
		v, err := p.r.parse(goja.Undefined(), p.r.vm.ToValue(string(data)))
		if err != nil {
			p.r.logCallbackError("decode", err)
			return
		}
		_, err = p.onMessage(goja.Undefined(), v)
		p.r.logCallbackError("onMessage", err)
	})
	return nil
}

// Disconnect closes the port from the native side. The script's
// onDisconnect runs after the messages posted before it.
func (p *port) Disconnect() {
	if !p.markClosed() {
		return
	}
	p.r.enqueue(func() {
		p.r.pending--
		if p.onDisconnect != nil {
			_, err := p.onDisconnect(goja.Undefined())
			p.r.logCallbackError("onDisconnect", err)
		}
	})
}

func (p *port) SetDelegate(d bridge.PortDelegate) {
	p.mu.Lock()
	p.delegate = d
	p.mu.Unlock()
}

func (p *port) scriptPost(data goja.Value) {
	p.mu.Lock()
	d, closed := p.delegate, p.closed
	p.mu.Unlock()
	if closed || d == nil {
		return
	}
	v, err := bridge.ValueOf(export(data))
	if err != nil {
		p.r.logCallbackError("postMessage", err)
		return
	}
	d.OnPortMessage(v)
}

// remoteClose is a script-side disconnect: the delegate is told, the
// script's own onDisconnect is not called.
func (p *port) remoteClose() {
	if !p.markClosed() {
		return
	}
	p.mu.Lock()
	p.gone = true
	d := p.delegate
	p.mu.Unlock()
	p.r.enqueue(func() { p.r.pending-- })
	if d != nil {
		d.OnDisconnect()
	}
}

func (p *port) markClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.closed = true
	p.r.mu.Lock()
	delete(p.r.ports, p)
	p.r.mu.Unlock()
	return true
}

func (p *port) isGone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gone
}
