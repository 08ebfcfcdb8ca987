package bridge

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
)

// Call statuses reported to the Recorder.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder receives bridge activity for metrics.
type Recorder interface {
	CallCompleted(channel, action, status string, elapsed time.Duration)
	InstallFailed(channel string)
	SessionOpened(channel string)
	SessionClosed(channel, outcome string)
	PortMessage(channel, direction string)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) CallCompleted(string, string, string, time.Duration) {}
func (NopRecorder) InstallFailed(string)                                {}
func (NopRecorder) SessionOpened(string)                                {}
func (NopRecorder) SessionClosed(string, string)                        {}
func (NopRecorder) PortMessage(string, string)                          {}

// Dispatcher is the MessageDelegate installed for every registered channel.
// It routes one-shot messages through the registry's dispatch tables and
// hands port connections to streaming handlers.
type Dispatcher struct {
	registry *Registry
	log      *logging.Logger
	rec      Recorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.rec = r
		}
	}
}

// NewDispatcher creates a dispatcher over reg.
func NewDispatcher(reg *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		log:      logging.NewNop(),
		rec:      NopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.Named("dispatcher")
	return d
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Install sets d as the message delegate for every registered channel.
// Failures are logged and reported; installation continues with the next
// channel and is not retried.
func (d *Dispatcher) Install(ctrl Controller) error {
	var errs []error
	for _, name := range d.registry.Names() {
		if err := ctrl.SetMessageDelegate(name, d); err != nil {
			d.log.Error("failed to install message delegate",
				logging.Channel(name),
				zap.Error(err))
			d.rec.InstallFailed(name)
			errs = append(errs, fmt.Errorf("install %s: %w", name, err))
			continue
		}
		d.log.Debug("message delegate installed", logging.Channel(name))
	}
	return errors.Join(errs...)
}

// OnMessage handles a one-shot message. The returned future always settles:
// with the action's value, or with a NativeCallError.
func (d *Dispatcher) OnMessage(channel string, msg Message) *Future {
	start := time.Now()
	out, err := d.registry.Invoke(channel, msg.Action, msg.Data)
	if err != nil {
		d.finish(channel, msg.Action, start, err)
		return Rejected(err)
	}

	inner, ok := out.Future()
	if !ok {
		d.finish(channel, msg.Action, start, nil)
		return Resolved(out.Value())
	}

	outer := NewFuture()
	inner.Then(func(v any, err error) {
		if err != nil {
			err = wrapNative(channel, msg.Action, err)
			d.finish(channel, msg.Action, start, err)
			outer.Fail(err)
			return
		}
		d.finish(channel, msg.Action, start, nil)
		outer.Complete(v)
	})
	return outer
}

func (d *Dispatcher) finish(channel, action string, start time.Time, err error) {
	elapsed := time.Since(start)
	if err != nil {
		d.rec.CallCompleted(channel, action, StatusError, elapsed)
		d.log.Warn("native call failed",
			logging.Channel(channel),
			logging.Action(action),
			zap.String("code", Code(err)),
			zap.Error(err))
		return
	}
	d.rec.CallCompleted(channel, action, StatusOK, elapsed)
	d.log.Debug("native call completed",
		logging.Channel(channel),
		logging.Action(action),
		zap.Duration("elapsed", elapsed))
}

// OnConnect hands port to the streaming handler registered under its name.
// Ports for unknown or non-streaming channels get an error message and are
// disconnected.
func (d *Dispatcher) OnConnect(port Port) {
	name := port.Name()
	h, ok := d.registry.Resolve(name)
	if !ok {
		d.reject(port, fmt.Errorf("%w: %s", ErrHandlerNotFound, name))
		return
	}
	s, ok := h.(Streamer)
	if !ok {
		d.reject(port, fmt.Errorf("%w: %s", ErrStreamingUnsupported, name))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.reject(port, &NativeCallError{Channel: name, Action: "connect", Cause: fmt.Errorf("panic: %v", r)})
		}
	}()
	d.log.Debug("port connected", logging.Channel(name))
	s.Accept(port)
}

func (d *Dispatcher) reject(port Port, err error) {
	d.log.Warn("port rejected", logging.Channel(port.Name()), zap.Error(err))
	if perr := Reject(port, err); perr != nil {
		d.log.Debug("failed to post rejection", zap.Error(perr))
	}
}
