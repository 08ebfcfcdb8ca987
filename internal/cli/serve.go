package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
	"github.com/GriffinCanCode/nativebridge/internal/host/ws"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nativebridge/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var host, port, origin string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bridge to websocket clients",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Server.Host = host
			}
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("origin") {
				cfg.Server.AllowedOrigin = origin
			}

			metrics := monitoring.NewMetrics()
			reg, err := buildRegistry(cfg, a.log, metrics)
			if err != nil {
				return err
			}

			wsHost := ws.NewHost(
				ws.WithLogger(a.log),
				ws.WithCheckOrigin(server.CheckOrigin(cfg.Server.AllowedOrigin)),
			)
			// install failures are logged and counted; the remaining channels still serve
			if err := bridge.NewDispatcher(reg,
				bridge.WithLogger(a.log),
				bridge.WithRecorder(metrics),
			).Install(wsHost); err != nil {
				a.log.Warn("some channels were not installed", zap.Error(err))
			}

			a.log.Info("Initializing bridge server",
				zap.String("addr", cfg.Server.Addr()),
				zap.Strings("channels", reg.Names()),
			)
			srv := server.NewServer(cfg.Server, server.Deps{
				Registry: reg,
				Host:     wsHost,
				Metrics:  metrics,
				Logger:   a.log,
			})
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Listen host")
	cmd.Flags().StringVarP(&port, "port", "p", "8765", "Listen port")
	cmd.Flags().StringVar(&origin, "origin", "", "Allowed browser origin (empty allows any)")

	return cmd
}
