package bridge

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Registry maps channel names to handler instances. Each entry carries the
// dispatch table built when the handler was registered.
type Registry struct {
	entries sync.Map // map[string]*binding
}

type binding struct {
	name    string
	handler Handler
	actions map[string]Action
}

// ChannelInfo summarises one registered channel.
type ChannelInfo struct {
	Name      string   `json:"name"`
	Actions   []string `json:"actions"`
	Streaming bool     `json:"streaming"`
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultName derives a channel name from the handler's type name with the
// first character lower-cased.
func DefaultName(h Handler) string {
	t := reflect.TypeOf(h)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return ""
	}
	name := t.Name()
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}

// Register adds h under its default name and returns that name.
func (r *Registry) Register(h Handler) (string, error) {
	name := DefaultName(h)
	if name == "" {
		return "", errors.New("cannot derive channel name from an unnamed type")
	}
	return name, r.RegisterAs(name, h)
}

// RegisterAs inserts or replaces the handler registered under name.
func (r *Registry) RegisterAs(name string, h Handler) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("channel name cannot be empty")
	}
	if h == nil {
		return errors.New("handler cannot be nil")
	}

	table := make(map[string]Action)
	for _, a := range h.Actions() {
		if a.name == "" {
			return fmt.Errorf("channel %s: action name cannot be empty", name)
		}
		if _, dup := table[a.name]; dup {
			return fmt.Errorf("channel %s: duplicate action %q", name, a.name)
		}
		table[a.name] = a
	}

	r.entries.Store(name, &binding{name: name, handler: h, actions: table})
	return nil
}

// Unregister removes a channel.
func (r *Registry) Unregister(name string) {
	r.entries.Delete(name)
}

// Resolve returns the handler registered under name.
func (r *Registry) Resolve(name string) (Handler, bool) {
	b, ok := r.lookup(name)
	if !ok {
		return nil, false
	}
	return b.handler, true
}

func (r *Registry) lookup(name string) (*binding, bool) {
	val, ok := r.entries.Load(name)
	if !ok {
		return nil, false
	}
	return val.(*binding), true
}

// Names returns the registered channel names, sorted.
func (r *Registry) Names() []string {
	var names []string
	r.entries.Range(func(key, _ interface{}) bool {
		names = append(names, key.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// List describes every registered channel, sorted by name.
func (r *Registry) List() []ChannelInfo {
	var out []ChannelInfo
	r.entries.Range(func(_, value interface{}) bool {
		b := value.(*binding)
		info := ChannelInfo{Name: b.name, Actions: make([]string, 0, len(b.actions))}
		for name := range b.actions {
			info.Actions = append(info.Actions, name)
		}
		sort.Strings(info.Actions)
		_, info.Streaming = b.handler.(Streamer)
		out = append(out, info)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke runs action on the handler registered under channel. This is the
// Call Binder entry point; the Dispatcher wraps it with host semantics.
func (r *Registry) Invoke(channel, action string, payload Value) (Outcome, error) {
	b, ok := r.lookup(channel)
	if !ok {
		return Outcome{}, &NativeCallError{
			Channel: channel,
			Action:  action,
			Cause:   fmt.Errorf("%w: %s", ErrHandlerNotFound, channel),
		}
	}
	return b.invoke(action, payload)
}

func (b *binding) invoke(action string, payload Value) (Outcome, error) {
	a, ok := b.actions[action]
	if !ok {
		return Outcome{}, &NativeCallError{
			Channel: b.name,
			Action:  action,
			Cause:   fmt.Errorf("%w: %s", ErrActionNotFound, action),
		}
	}
	out, err := a.Call(payload)
	if err != nil {
		return Outcome{}, wrapNative(b.name, action, err)
	}
	return out, nil
}
