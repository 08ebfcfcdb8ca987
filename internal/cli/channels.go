package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
)

func newChannelsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List the registered channels and their actions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := buildRegistry(a.cfg, a.log, bridge.NopRecorder{})
			if err != nil {
				return err
			}
			list := reg.List()

			if asJSON {
				data, err := bridge.Encode(list)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHANNEL\tSTREAMING\tACTIONS")
			for _, ch := range list {
				fmt.Fprintf(w, "%s\t%t\t%s\n", ch.Name, ch.Streaming, strings.Join(ch.Actions, ", "))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}
