// Package script hosts page scripts in an embedded goja VM and exposes the
// native bridge to them as the global nativeBridge object.
//
// The goroutine running RunString owns the VM for the duration of the run:
// native completions and port messages are queued and executed there, so
// script callbacks never run concurrently.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
)

// ErrUnsettled is returned when a script's promise can no longer settle.
var ErrUnsettled = errors.New("script promise never settled")

// Config configures a Runtime.
type Config struct {
	// Timeout bounds one run, including the wait for pending native work.
	Timeout time.Duration
	Logger  *logging.Logger
}

// Runtime is a script host implementing bridge.Controller.
type Runtime struct {
	vm      *goja.Runtime
	log     *logging.Logger
	timeout time.Duration
	parse   goja.Callable
	errCtor goja.Value

	run sync.Mutex

	mu        sync.Mutex
	delegates map[string]bridge.MessageDelegate
	queue     []func()
	ports     map[*port]struct{}
	wake      chan struct{}

	// pending counts outstanding calls and open ports. Loop only.
	pending int
}

// New creates a runtime with nativeBridge and console installed.
func New(cfg Config) (*Runtime, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNop()
	}
	r := &Runtime{
		vm:        goja.New(),
		log:       log.Named("script"),
		timeout:   cfg.Timeout,
		delegates: make(map[string]bridge.MessageDelegate),
		ports:     make(map[*port]struct{}),
		wake:      make(chan struct{}, 1),
	}
	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

// SetMessageDelegate implements bridge.Controller.
func (r *Runtime) SetMessageDelegate(name string, d bridge.MessageDelegate) error {
	if name == "" || d == nil {
		return errors.New("script: delegate needs a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.delegates[name]; ok {
		return fmt.Errorf("script: delegate %q already installed", name)
	}
	r.delegates[name] = d
	return nil
}

func (r *Runtime) delegate(name string) (bridge.MessageDelegate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.delegates[name]
	return d, ok
}

func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	parse, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("parse"))
	if !ok {
		return errors.New("script: JSON.parse unavailable")
	}
	r.parse = parse
	r.errCtor = r.vm.Get("Error")

	console := r.vm.NewObject()
	for _, level := range []string{"log", "debug", "info", "warn", "error"} {
		if err := console.Set(level, r.consoleFunc(level)); err != nil {
			return err
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}

	nb := r.vm.NewObject()
	if err := nb.Set("call", r.call); err != nil {
		return err
	}
	if err := nb.Set("connect", r.connect); err != nil {
		return err
	}
	return r.vm.Set("nativeBridge", nb)
}

func (r *Runtime) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var msg string
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}
		switch level {
		case "debug":
			r.log.Debug(msg)
		case "warn":
			r.log.Warn(msg)
		case "error":
			r.log.Error(msg)
		default:
			r.log.Info(msg)
		}
		return goja.Undefined()
	}
}

// RunString executes src and waits until its pending calls and ports have
// settled. If the script evaluates to a promise, its result is returned.
func (r *Runtime) RunString(ctx context.Context, name, src string) (any, error) {
	r.run.Lock()
	defer r.run.Unlock()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, func() {
		r.vm.Interrupt(ctx.Err())
	})
	defer stop()
	r.vm.ClearInterrupt()

	val, err := r.vm.RunScript(name, src)
	if err != nil {
		return nil, r.scriptError(ctx, name, err)
	}
	promise, _ := val.Export().(*goja.Promise)

	for {
		r.drain()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		settled := promise == nil || promise.State() != goja.PromiseStatePending
		if r.pending == 0 && settled {
			break
		}
		if r.pending == 0 && r.queued() == 0 {
			return nil, ErrUnsettled
		}
		select {
		case <-r.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if promise != nil {
		switch promise.State() {
		case goja.PromiseStateRejected:
			return nil, fmt.Errorf("script %s rejected: %s", name, promise.Result().String())
		case goja.PromiseStateFulfilled:
			return export(promise.Result()), nil
		}
	}
	return export(val), nil
}

// RunFile executes the script at path.
func (r *Runtime) RunFile(ctx context.Context, path string) (any, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return r.RunString(ctx, path, string(src))
}

func (r *Runtime) scriptError(ctx context.Context, name string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) && ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("script %s: %w", name, err)
}

// Close disconnects the ports that are still open, as if the page went away.
func (r *Runtime) Close() {
	r.mu.Lock()
	ports := make([]*port, 0, len(r.ports))
	for p := range r.ports {
		ports = append(ports, p)
	}
	r.mu.Unlock()

	for _, p := range ports {
		p.remoteClose()
	}
}

// enqueue schedules fn on the loop. Safe from any goroutine.
func (r *Runtime) enqueue(fn func()) {
	r.mu.Lock()
	r.queue = append(r.queue, fn)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runtime) queued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *Runtime) drain() {
	for {
		r.mu.Lock()
		jobs := r.queue
		r.queue = nil
		r.mu.Unlock()
		if len(jobs) == 0 {
			return
		}
		for _, job := range jobs {
			job()
		}
	}
}

// call implements nativeBridge.call(channel, action, data) -> Promise.
func (r *Runtime) call(channel, action string, data goja.Value) *goja.Promise {
	promise, resolve, reject := r.vm.NewPromise()

	payload, err := bridge.ValueOf(map[string]any{"action": action, "data": export(data)})
	var msg bridge.Message
	if err == nil {
		msg, err = bridge.MessageFrom(payload)
	}
	if err != nil {
		_ = reject(r.jsError(err))
		return promise
	}
	d, ok := r.delegate(channel)
	if !ok {
		_ = reject(r.jsError(fmt.Errorf("%w: %s", bridge.ErrHandlerNotFound, channel)))
		return promise
	}

	r.pending++
	d.OnMessage(channel, msg).Then(func(v any, err error) {
		r.enqueue(func() {
			r.pending--
			if err != nil {
				_ = reject(r.jsError(err))
				return
			}
			jv, err := r.toJS(v)
			if err != nil {
				_ = reject(r.jsError(err))
				return
			}
			_ = resolve(jv)
		})
	})
	return promise
}

// jsError builds an Error carrying the wire code.
func (r *Runtime) jsError(err error) goja.Value {
	obj, cerr := r.vm.New(r.errCtor, r.vm.ToValue(err.Error()))
	if cerr != nil {
		return r.vm.ToValue(err.Error())
	}
	_ = obj.Set("code", bridge.Code(err))
	return obj
}

// toJS converts a native value to plain script data through its JSON form.
func (r *Runtime) toJS(v any) (goja.Value, error) {
	if v == nil {
		return goja.Null(), nil
	}
	data, err := bridge.Encode(v)
	if err != nil {
		return nil, err
	}
	return r.parse(goja.Undefined(), r.vm.ToValue(string(data)))
}

func export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func (r *Runtime) logCallbackError(what string, err error) {
	if err != nil {
		r.log.Warn("script callback failed", zap.String("callback", what), zap.Error(err))
	}
}
