package display

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
)

// BarStyle is the scrim pair for one system bar, as packed ARGB colors.
type BarStyle struct {
	LightScrim int `json:"lightScrim"`
	DarkScrim  int `json:"darkScrim"`
}

// ARGB packs a color the way script-side code sends it: a signed 32-bit int.
func ARGB(a, r, g, b uint8) int {
	return int(int32(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)))
}

// Transparent is fully transparent black.
const Transparent = 0

var (
	DefaultStatusBar     = BarStyle{LightScrim: Transparent, DarkScrim: Transparent}
	DefaultNavigationBar = BarStyle{
		LightScrim: ARGB(0xe6, 0xff, 0xff, 0xff),
		DarkScrim:  ARGB(0x80, 0x1b, 0x1b, 0x1b),
	}
)

// Window is the shell surface the display handler configures.
type Window interface {
	// SetSystemBars shows or hides the system bars. Hidden bars reappear
	// transiently on swipe.
	SetSystemBars(visible bool) error
	EnableEdgeToEdge(status, navigation BarStyle) error
}

// WindowState is a snapshot of a HeadlessWindow.
type WindowState struct {
	SystemBarsVisible bool     `json:"systemBarsVisible"`
	TransientBars     bool     `json:"transientBars"`
	EdgeToEdge        bool     `json:"edgeToEdge"`
	StatusBar         BarStyle `json:"statusBar"`
	NavigationBar     BarStyle `json:"navigationBar"`
}

// HeadlessWindow records window configuration for shells without a
// native surface, such as the websocket server.
type HeadlessWindow struct {
	mu    sync.Mutex
	state WindowState
	log   *logging.Logger
}

// NewHeadlessWindow creates a window with visible bars.
func NewHeadlessWindow(log *logging.Logger) *HeadlessWindow {
	if log == nil {
		log = logging.NewNop()
	}
	return &HeadlessWindow{
		state: WindowState{SystemBarsVisible: true},
		log:   log.Named("window"),
	}
}

func (w *HeadlessWindow) SetSystemBars(visible bool) error {
	w.mu.Lock()
	w.state.SystemBarsVisible = visible
	w.state.TransientBars = !visible
	w.mu.Unlock()
	w.log.Debug("system bars changed", zap.Bool("visible", visible))
	return nil
}

func (w *HeadlessWindow) EnableEdgeToEdge(status, navigation BarStyle) error {
	w.mu.Lock()
	w.state.EdgeToEdge = true
	w.state.StatusBar = status
	w.state.NavigationBar = navigation
	w.mu.Unlock()
	w.log.Debug("edge-to-edge enabled",
		zap.Int("status_light", status.LightScrim),
		zap.Int("status_dark", status.DarkScrim),
		zap.Int("nav_light", navigation.LightScrim),
		zap.Int("nav_dark", navigation.DarkScrim))
	return nil
}

// State returns the current configuration.
func (w *HeadlessWindow) State() WindowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}
