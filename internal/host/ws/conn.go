package ws

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nativebridge/internal/shared/id"
)

var (
	errPortClosed  = errors.New("port closed")
	errUnknownPort = errors.New("unknown port")
)

type conn struct {
	id  id.ConnectionID
	h   *Host
	ws  *websocket.Conn
	log *logging.Logger

	// gorilla allows one concurrent writer.
	wmu sync.Mutex

	mu     sync.Mutex
	ports  map[string]*port
	closed bool
}

func (c *conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var f Frame
		if err := bridge.DecodeInto(data, &f); err != nil {
			c.write(ErrorFrame("", fmt.Errorf("%w: %v", bridge.ErrNativeCall, err)))
			continue
		}
		c.handle(f)
	}
}

func (c *conn) handle(f Frame) {
	switch f.Kind {
	case KindCall:
		c.call(f)
	case KindConnect:
		c.connect(f)
	case KindPost:
		p, ok := c.port(f.Port)
		if !ok {
			c.write(ErrorFrame(f.Port, errUnknownPort))
			return
		}
		p.deliver(valueOrNull(f.Data))
	case KindDisconnect:
		if p, ok := c.port(f.Port); ok {
			p.remoteClose()
		}
	default:
		c.write(ErrorFrame(f.ID, fmt.Errorf("%w: unknown frame kind %q", bridge.ErrNativeCall, f.Kind)))
	}
}

func (c *conn) call(f Frame) {
	d, ok := c.h.delegate(f.Channel)
	if !ok {
		c.write(Reply(f.ID, nil, fmt.Errorf("%w: %s", bridge.ErrHandlerNotFound, f.Channel)))
		return
	}
	msg, err := bridge.MessageFrom(valueOrNull(f.Payload))
	if err != nil {
		c.write(Reply(f.ID, nil, err))
		return
	}
	d.OnMessage(f.Channel, msg).Then(func(v any, err error) {
		c.write(Reply(f.ID, v, err))
	})
}

func (c *conn) connect(f Frame) {
	name := f.Port
	if name == "" {
		name = id.NewPortID().String()
	}
	p := &port{c: c, id: name, channel: f.Channel}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if _, dup := c.ports[name]; dup {
		c.mu.Unlock()
		c.write(ErrorFrame(name, fmt.Errorf("port %q already open", name)))
		return
	}
	c.ports[name] = p
	c.mu.Unlock()

	d, ok := c.h.delegate(f.Channel)
	if !ok {
		_ = bridge.Reject(p, fmt.Errorf("%w: %s", bridge.ErrHandlerNotFound, f.Channel))
		return
	}
	d.OnConnect(p)
}

func (c *conn) port(name string) (*port, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.ports[name]
	return p, ok
}

func (c *conn) removePort(name string) {
	c.mu.Lock()
	delete(c.ports, name)
	c.mu.Unlock()
}

func (c *conn) write(f Frame) error {
	data, err := bridge.Encode(f)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug("websocket write failed", zap.String("kind", f.Kind), zap.Error(err))
		return err
	}
	return nil
}

// close tears down the ports as script-side disconnects.
func (c *conn) close() {
	c.mu.Lock()
	c.closed = true
	ports := make([]*port, 0, len(c.ports))
	for _, p := range c.ports {
		ports = append(ports, p)
	}
	c.mu.Unlock()

	for _, p := range ports {
		p.remoteClose()
	}
	_ = c.ws.Close()
}

// port is one multiplexed port on a connection.
type port struct {
	c       *conn
	id      string
	channel string

	mu       sync.Mutex
	delegate bridge.PortDelegate
	closed   bool
}

func (p *port) Name() string { return p.channel }

func (p *port) Post(msg any) error {
	if p.isClosed() {
		return errPortClosed
	}
	v, err := bridge.ValueOf(msg)
	if err != nil {
		return err
	}
	return p.c.write(Frame{Kind: KindPost, Port: p.id, Data: &v})
}

func (p *port) Disconnect() {
	if !p.markClosed() {
		return
	}
	p.c.removePort(p.id)
	_ = p.c.write(Frame{Kind: KindDisconnect, Port: p.id})
}

func (p *port) SetDelegate(d bridge.PortDelegate) {
	p.mu.Lock()
	p.delegate = d
	p.mu.Unlock()
}

func (p *port) deliver(v bridge.Value) {
	p.mu.Lock()
	d, closed := p.delegate, p.closed
	p.mu.Unlock()
	if closed || d == nil {
		return
	}
	d.OnPortMessage(v)
}

func (p *port) remoteClose() {
	if !p.markClosed() {
		return
	}
	p.c.removePort(p.id)
	p.mu.Lock()
	d := p.delegate
	p.mu.Unlock()
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
	return true
}

func (p *port) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
