// Package display provides the handler that configures the shell window and
// triggers the update check.
package display

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nativebridge/internal/update"
)

// Updater checks for a newer build.
type Updater interface {
	Check(ctx context.Context) (*update.Release, error)
}

// ActivityConfiguration is registered as "activityConfiguration".
type ActivityConfiguration struct {
	window    Window
	updater   Updater
	onRelease func(*update.Release)
	timeout   time.Duration
	log       *logging.Logger
}

// Option configures ActivityConfiguration.
type Option func(*ActivityConfiguration)

// WithUpdater enables startUpdateService.
func WithUpdater(u Updater) Option {
	return func(a *ActivityConfiguration) { a.updater = u }
}

// OnRelease is called from the update worker when a newer build is found.
func OnRelease(fn func(*update.Release)) Option {
	return func(a *ActivityConfiguration) { a.onRelease = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *ActivityConfiguration) {
		if l != nil {
			a.log = l
		}
	}
}

// New creates the display handler over window.
func New(window Window, opts ...Option) *ActivityConfiguration {
	a := &ActivityConfiguration{
		window:  window,
		timeout: 30 * time.Second,
		log:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.Named("display")
	return a
}

// Actions implements bridge.Handler.
func (a *ActivityConfiguration) Actions() []bridge.Action {
	return []bridge.Action{
		bridge.Proc1("setSystemUiVisible", a.SetSystemUIVisible),
		bridge.Proc2("edgeToEdge", [2]string{"statusBarStyle", "navigationBarStyle"}, a.EdgeToEdge),
		bridge.Proc0("startUpdateService", a.StartUpdateService),
	}
}

// SetSystemUIVisible shows or hides the system bars.
func (a *ActivityConfiguration) SetSystemUIVisible(visible bool) error {
	return a.window.SetSystemBars(visible)
}

// EdgeToEdge lays the content out behind the system bars. Missing styles
// fall back to the defaults.
func (a *ActivityConfiguration) EdgeToEdge(status, navigation *BarStyle) error {
	s, n := DefaultStatusBar, DefaultNavigationBar
	if status != nil {
		s = *status
	}
	if navigation != nil {
		n = *navigation
	}
	return a.window.EnableEdgeToEdge(s, n)
}

// StartUpdateService runs one update check in the background.
func (a *ActivityConfiguration) StartUpdateService() error {
	if a.updater == nil {
		return errors.New("update service not configured")
	}
	go a.checkForUpdates()
	return nil
}

func (a *ActivityConfiguration) checkForUpdates() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	rel, err := a.updater.Check(ctx)
	if err != nil {
		a.log.Warn("update check failed", zap.Error(err))
		return
	}
	if rel == nil {
		return
	}
	a.log.Info("update available",
		zap.String("version", rel.Info.VersionName),
		zap.String("download", rel.DownloadURL))
	if a.onRelease != nil {
		a.onRelease(rel)
	}
}
