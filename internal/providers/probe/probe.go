// Package probe provides the handler scripts use to check the bridge is alive.
package probe

import (
	"github.com/GriffinCanCode/nativebridge/internal/bridge"
)

// GeckoBridge answers communication tests. Its default channel name is
// "geckoBridge".
type GeckoBridge struct{}

// New creates the probe handler.
func New() *GeckoBridge {
	return &GeckoBridge{}
}

// Actions implements bridge.Handler.
func (g *GeckoBridge) Actions() []bridge.Action {
	return []bridge.Action{
		bridge.Method1("communicationTest", g.CommunicationTest),
	}
}

// CommunicationTest echoes data back with every value replaced by its
// string form. Nested objects and arrays become JSON text.
func (g *GeckoBridge) CommunicationTest(data bridge.Object) (map[string]string, error) {
	out := make(map[string]string, len(data))
	for key, raw := range data {
		v, err := bridge.ValueOf(raw)
		if err != nil {
			return nil, err
		}
		out[key] = v.Text()
	}
	return out, nil
}
