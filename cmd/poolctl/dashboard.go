package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"charm.land/glamour/v2"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/poolctld/poolctld/internal/board"
	"github.com/poolctld/poolctld/internal/command"
	"github.com/poolctld/poolctld/internal/datastore"
	"github.com/poolctld/poolctld/internal/registry"
)

func newDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Render a full status report as glamour-styled markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h, err := bootHarness(ctx)
			if err != nil {
				return err
			}
			md := buildDashboardMarkdown(ctx, h)

			style := "dark"
			if termenv.EnvColorProfile() == termenv.Ascii {
				style = "notty"
			}
			rendered, err := glamour.Render(md, style)
			if err != nil {
				return fmt.Errorf("render dashboard: %w", err)
			}
			cmd.Print(rendered)
			return nil
		},
	}
}

func buildDashboardMarkdown(ctx context.Context, h *harness) string {
	bp, _ := registry.MustGet[*board.Profile](h.stack.Services, "board")
	data, _ := registry.MustGet[*datastore.Store](h.stack.Services, datastore.ServiceID)

	var md strings.Builder
	fmt.Fprintf(&md, "# Pool controller status\n\n")
	fmt.Fprintf(&md, "**Board revision:** %d\n\n", bp.Revision)

	md.WriteString("## Actuators\n\n| Name | State |\n| --- | --- |\n")
	if data != nil {
		view := data.View()
		for i, o := range bp.DigitalOuts {
			io := view.IO[actuatorOffset+uint8(i)]
			state := "off"
			if io.Value != 0 {
				state = "on"
			}
			if io.Fault {
				state = "**fault**"
			}
			fmt.Fprintf(&md, "| %s | %s |\n", o.Name, state)
		}
		fmt.Fprintf(&md, "\nwifi_ready=%v, time_ready=%v, mqtt_ready=%v\n\n",
			view.WiFi.Ready, view.Time.Ready, view.MQTT.Ready)
	}

	reply := h.cmds.Execute(ctx, command.Request{Cmd: "alarms.list"})
	var alarms alarmListReply
	_ = json.Unmarshal(reply, &alarms)
	fmt.Fprintf(&md, "## Alarms\n\n%d active, highest severity **%s**\n\n", alarms.ActiveCount, alarms.HighestSeverity)
	for _, a := range alarms.Alarms {
		if !a.Active {
			continue
		}
		fmt.Fprintf(&md, "- `%s` %s (acked=%v)\n", a.Code, a.Title, a.Acked)
	}

	return md.String()
}
