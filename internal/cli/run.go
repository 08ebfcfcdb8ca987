package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
	"github.com/GriffinCanCode/nativebridge/internal/host/script"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/config"
)

func newRunCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run <script.js>",
		Short: "Run a script against the bridge in the embedded engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("timeout") {
				cfg.Script.Timeout = config.Duration(timeout)
			}

			reg, err := buildRegistry(cfg, a.log, bridge.NopRecorder{})
			if err != nil {
				return err
			}
			rt, err := script.New(script.Config{
				Timeout: cfg.Script.Timeout.Std(),
				Logger:  a.log,
			})
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := bridge.NewDispatcher(reg, bridge.WithLogger(a.log)).Install(rt); err != nil {
				a.log.Warn("some channels were not installed", zap.Error(err))
			}

			result, err := rt.RunFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if result == nil {
				return nil
			}
			out, err := bridge.Encode(result)
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "Bound on the whole run, including pending native calls")

	return cmd
}
