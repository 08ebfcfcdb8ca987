package bridge

import (
	"fmt"
	"reflect"
	"strconv"
)

// Void is the result type of actions with nothing to return.
type Void struct{}

// Outcome is what an action invocation produced: either an immediate value or
// a future the handler will settle later.
type Outcome struct {
	value  any
	future *Future
}

// Immediate wraps a synchronous result. A nil value means "no value".
func Immediate(v any) Outcome { return Outcome{value: v} }

// Deferred wraps a result that completes later.
func Deferred(f *Future) Outcome { return Outcome{future: f} }

// Value returns the immediate result.
func (o Outcome) Value() any { return o.value }

// Future returns the deferred result, if any.
func (o Outcome) Future() (*Future, bool) { return o.future, o.future != nil }

// Param describes one positional/keyed parameter of an action.
type Param struct {
	Name string
	Type reflect.Type

	whole  bool
	coerce func(Value) (any, error)
}

func param[T any](name string) Param {
	t := reflect.TypeFor[T]()
	return Param{
		Name:  name,
		Type:  t,
		whole: wholePayload(t),
		coerce: func(v Value) (any, error) {
			return Coerce[T](v)
		},
	}
}

// Action is one entry of a handler's dispatch table: a name plus a typed
// invocation closure built at registration time.
type Action struct {
	name   string
	params []Param
	invoke func(args []any) (Outcome, error)
}

// Name returns the action name scripts use to select it.
func (a Action) Name() string { return a.name }

// Params returns the declared parameters.
func (a Action) Params() []Param { return a.params }

// Call binds payload to the action's parameters and invokes it. Failures of
// any stage, including panics, come back as *NativeCallError.
func (a Action) Call(payload Value) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &NativeCallError{Action: a.name, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	args, err := a.bind(payload)
	if err != nil {
		return Outcome{}, &NativeCallError{Action: a.name, Cause: err}
	}
	out, err = a.invoke(args)
	if err != nil {
		return Outcome{}, &NativeCallError{Action: a.name, Cause: err}
	}
	return out, nil
}

func (a Action) bind(payload Value) ([]any, error) {
	switch len(a.params) {
	case 0:
		return nil, nil

	case 1:
		p := a.params[0]
		v := payload
		if payload.Kind() == KindArray && !p.whole {
			if payload.Len() == 0 {
				return nil, &ArgumentError{Param: p.Name, Index: 0, Err: ErrMissingArgument}
			}
			v = payload.Index(0)
		}
		arg, err := p.coerce(v)
		if err != nil {
			return nil, &ArgumentError{Param: p.Name, Index: 0, Err: err}
		}
		return []any{arg}, nil
	}

	args := make([]any, len(a.params))
	switch payload.Kind() {
	case KindArray:
		for i, p := range a.params {
			arg, err := p.coerce(payload.Index(i))
			if err != nil {
				return nil, &ArgumentError{Param: p.Name, Index: i, Err: err}
			}
			args[i] = arg
		}
	case KindObject:
		for i, p := range a.params {
			v, ok := payload.Field(p.Name)
			if !ok {
				v, _ = payload.Field(strconv.Itoa(i))
			}
			arg, err := p.coerce(v)
			if err != nil {
				return nil, &ArgumentError{Param: p.Name, Index: i, Err: err}
			}
			args[i] = arg
		}
	default:
		return nil, fmt.Errorf("%w: %d parameters need an array or object payload, got %s",
			ErrMissingArgument, len(a.params), payload.Kind())
	}
	return args, nil
}

// as converts a bound argument back to its static type; nil stays the zero value.
func as[T any](arg any) T {
	if arg == nil {
		var zero T
		return zero
	}
	return arg.(T)
}

func result[R any](r R, err error) (Outcome, error) {
	if err != nil {
		return Outcome{}, err
	}
	switch v := any(r).(type) {
	case Void:
		return Immediate(nil), nil
	case *Future:
		if v != nil {
			return Deferred(v), nil
		}
		return Immediate(nil), nil
	}
	return Immediate(r), nil
}

func deferred(f *Future) (Outcome, error) {
	if f == nil {
		return Immediate(nil), nil
	}
	return Deferred(f), nil
}

// Method0 binds a parameterless action returning a value.
func Method0[R any](name string, fn func() (R, error)) Action {
	return Action{name: name, invoke: func([]any) (Outcome, error) {
		return result(fn())
	}}
}

// Method1 binds a single-parameter action. The whole payload is coerced to A.
func Method1[A, R any](name string, fn func(A) (R, error)) Action {
	return Action{name: name, params: []Param{param[A]("")}, invoke: func(args []any) (Outcome, error) {
		return result(fn(as[A](args[0])))
	}}
}

// Method2 binds a two-parameter action; names drive keyed binding.
func Method2[A, B, R any](name string, names [2]string, fn func(A, B) (R, error)) Action {
	return Action{
		name:   name,
		params: []Param{param[A](names[0]), param[B](names[1])},
		invoke: func(args []any) (Outcome, error) {
			return result(fn(as[A](args[0]), as[B](args[1])))
		},
	}
}

// Method3 binds a three-parameter action.
func Method3[A, B, C, R any](name string, names [3]string, fn func(A, B, C) (R, error)) Action {
	return Action{
		name:   name,
		params: []Param{param[A](names[0]), param[B](names[1]), param[C](names[2])},
		invoke: func(args []any) (Outcome, error) {
			return result(fn(as[A](args[0]), as[B](args[1]), as[C](args[2])))
		},
	}
}

// Proc0 binds a parameterless action with no return value.
func Proc0(name string, fn func() error) Action {
	return Action{name: name, invoke: func([]any) (Outcome, error) {
		return Immediate(nil), fn()
	}}
}

// Proc1 binds a single-parameter action with no return value.
func Proc1[A any](name string, fn func(A) error) Action {
	return Action{name: name, params: []Param{param[A]("")}, invoke: func(args []any) (Outcome, error) {
		return Immediate(nil), fn(as[A](args[0]))
	}}
}

// Proc2 binds a two-parameter action with no return value.
func Proc2[A, B any](name string, names [2]string, fn func(A, B) error) Action {
	return Action{
		name:   name,
		params: []Param{param[A](names[0]), param[B](names[1])},
		invoke: func(args []any) (Outcome, error) {
			return Immediate(nil), fn(as[A](args[0]), as[B](args[1]))
		},
	}
}

// Proc3 binds a three-parameter action with no return value.
func Proc3[A, B, C any](name string, names [3]string, fn func(A, B, C) error) Action {
	return Action{
		name:   name,
		params: []Param{param[A](names[0]), param[B](names[1]), param[C](names[2])},
		invoke: func(args []any) (Outcome, error) {
			return Immediate(nil), fn(as[A](args[0]), as[B](args[1]), as[C](args[2]))
		},
	}
}

// Async0 binds a parameterless action that completes later.
func Async0(name string, fn func() *Future) Action {
	return Action{name: name, invoke: func([]any) (Outcome, error) {
		return deferred(fn())
	}}
}

// Async1 binds a single-parameter action that completes later.
func Async1[A any](name string, fn func(A) *Future) Action {
	return Action{name: name, params: []Param{param[A]("")}, invoke: func(args []any) (Outcome, error) {
		return deferred(fn(as[A](args[0])))
	}}
}

// Async2 binds a two-parameter action that completes later.
func Async2[A, B any](name string, names [2]string, fn func(A, B) *Future) Action {
	return Action{
		name:   name,
		params: []Param{param[A](names[0]), param[B](names[1])},
		invoke: func(args []any) (Outcome, error) {
			return deferred(fn(as[A](args[0]), as[B](args[1])))
		},
	}
}

// Async3 binds a three-parameter action that completes later.
func Async3[A, B, C any](name string, names [3]string, fn func(A, B, C) *Future) Action {
	return Action{
		name:   name,
		params: []Param{param[A](names[0]), param[B](names[1]), param[C](names[2])},
		invoke: func(args []any) (Outcome, error) {
			return deferred(fn(as[A](args[0]), as[B](args[1]), as[C](args[2])))
		},
	}
}
