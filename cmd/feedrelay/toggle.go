package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/feedrelay/internal/control"
	"github.com/ibeckermayer/feedrelay/internal/settings"
)

func newToggleCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "toggle <on|off>",
		Short:     "Turn auto-save on or off",
		Long:      "Persist the auto-save flag and tell a running session to start or stop scanning.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
				enabled = false
			default:
				return fmt.Errorf("invalid state %q: must be 'on' or 'off'", args[0])
			}

			path, err := settings.DefaultPath()
			if err != nil {
				return err
			}
			if err := settings.SetAutoSave(cmd.Context(), settings.NewFileStore(path), enabled); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			resp, err := control.NewClient(c.cfg.Control.Addr).SetAutoSave(cmd.Context(), enabled)
			if err != nil {
				c.log.Debug("no running session", zap.Error(err))
				fmt.Fprintf(out, "Auto-Save is %s (applies to the next run)\n", onOff(enabled))
				return nil
			}
			fmt.Fprintf(out, "Auto-Save is %s (%s)\n", onOff(enabled), resp.Status)
			return nil
		},
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := control.NewClient(c.cfg.Control.Addr).Status(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "ON"
	}
	return "OFF"
}
