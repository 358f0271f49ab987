package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/poolctld/poolctld/internal/board"
	"github.com/poolctld/poolctld/internal/command"
	"github.com/poolctld/poolctld/internal/datastore"
	"github.com/poolctld/poolctld/internal/registry"
	"github.com/poolctld/poolctld/internal/runtime"
)

var (
	statusHeading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	statusLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	statusWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusAlarm   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print board, IO, clock-sync, and alarm state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h, err := bootHarness(ctx)
			if err != nil {
				return err
			}
			bp, _ := registry.MustGet[*board.Profile](h.stack.Services, "board")
			data, _ := registry.MustGet[*datastore.Store](h.stack.Services, datastore.ServiceID)

			var out strings.Builder
			out.WriteString(statusHeading.Render(fmt.Sprintf("board rev %d", bp.Revision)) + "\n")
			if data != nil {
				writeIOTable(&out, bp, data.View())
			}
			writeTimeStatus(ctx, &out, h)
			writeAlarmSummary(ctx, &out, h)
			cmd.Print(out.String())
			return nil
		},
	}
}

// actuatorOffset mirrors runtime.SlotsFromBoard's offset: digital outs
// are written starting after the sensor channels sharing the same IO array.
var actuatorOffset = uint8(len(runtime.DefaultSensorChannels()))

func writeIOTable(out *strings.Builder, bp *board.Profile, view datastore.Root) {
	out.WriteString(statusLabel.Render("actuators:") + "\n")
	for i, o := range bp.DigitalOuts {
		io := view.IO[actuatorOffset+uint8(i)]
		state := "off"
		if io.Value != 0 {
			state = "on"
		}
		if io.Fault {
			state = statusAlarm.Render("fault")
		}
		out.WriteString(fmt.Sprintf("  %-16s %s\n", o.Name, state))
	}
	out.WriteString(statusLabel.Render(fmt.Sprintf("wifi_ready=%v time_ready=%v mqtt_ready=%v",
		view.WiFi.Ready, view.Time.Ready, view.MQTT.Ready)) + "\n")
}

func writeTimeStatus(ctx context.Context, out *strings.Builder, h *harness) {
	reply := h.cmds.Execute(ctx, command.Request{Cmd: "time.status"})
	var st struct {
		State  string `json:"state"`
		Synced bool   `json:"synced"`
	}
	if err := json.Unmarshal(reply, &st); err != nil {
		return
	}
	label := st.State
	if !st.Synced {
		label = statusWarn.Render(label)
	}
	out.WriteString(statusLabel.Render("clock: ") + label + "\n")
}

func writeAlarmSummary(ctx context.Context, out *strings.Builder, h *harness) {
	reply := h.cmds.Execute(ctx, command.Request{Cmd: "alarms.list"})
	var doc struct {
		ActiveCount     uint8  `json:"active_count"`
		HighestSeverity string `json:"highest_severity"`
	}
	if err := json.Unmarshal(reply, &doc); err != nil {
		return
	}
	line := fmt.Sprintf("alarms: %d active (highest=%s)", doc.ActiveCount, doc.HighestSeverity)
	if doc.ActiveCount > 0 {
		line = statusAlarm.Render(line)
	}
	out.WriteString(line + "\n")
}
