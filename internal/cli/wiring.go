package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nativebridge/internal/providers/display"
	"github.com/GriffinCanCode/nativebridge/internal/providers/probe"
	"github.com/GriffinCanCode/nativebridge/internal/providers/speech"
	"github.com/GriffinCanCode/nativebridge/internal/providers/system"
	"github.com/GriffinCanCode/nativebridge/internal/stream"
	"github.com/GriffinCanCode/nativebridge/internal/update"
)

// buildRegistry registers every handler the shell exposes.
func buildRegistry(cfg *config.Config, log *logging.Logger, rec bridge.Recorder) (*bridge.Registry, error) {
	reg := bridge.NewRegistry()

	checker := update.NewChecker(update.Config{
		BaseURL:     cfg.Update.BaseURL,
		Branch:      cfg.Update.Branch,
		Channel:     cfg.Update.Channel,
		BuildType:   cfg.Update.BuildType,
		VersionCode: cfg.Update.VersionCode,
		Timeout:     cfg.Update.Timeout.Std(),
		Retries:     2,
		MinInterval: cfg.Update.MinInterval.Std(),
	}, log)

	recognizer, err := speech.New(speech.NewLineEngine(log), speech.Config{
		WorkDir:       speechWorkDir(cfg.Speech.WorkDir),
		AssetDir:      cfg.Speech.AssetDir,
		AssetPatterns: cfg.Speech.AssetPatterns,
		ChunkSize:     cfg.Speech.ChunkSize,
		NewSource: func() (stream.Source, error) {
			return speech.OpenSource(cfg.Speech.Source)
		},
		Logger:   log,
		Recorder: rec,
	})
	if err != nil {
		return nil, err
	}

	handlers := []bridge.Handler{
		probe.New(),
		system.New(Version, log),
		display.New(display.NewHeadlessWindow(log),
			display.WithUpdater(checker),
			display.WithLogger(log),
			display.OnRelease(func(r *update.Release) {
				log.Info("update available",
					zap.String("version", r.Info.VersionName),
					zap.String("url", r.DownloadURL))
			}),
		),
		recognizer,
	}
	for _, h := range handlers {
		if _, err := reg.Register(h); err != nil {
			return nil, fmt.Errorf("register %s: %w", bridge.DefaultName(h), err)
		}
	}
	return reg, nil
}

func speechWorkDir(dir string) string {
	if dir != "" {
		return dir
	}
	if cache, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cache, "nativebridge", "aikit")
	}
	return filepath.Join(os.TempDir(), "nativebridge-aikit")
}
