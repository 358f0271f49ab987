package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/poolctld/poolctld/internal/command"
)

type alarmView struct {
	ID            uint16 `json:"id"`
	Code          string `json:"code"`
	Title         string `json:"title"`
	Severity      string `json:"severity"`
	Active        bool   `json:"active"`
	Acked         bool   `json:"acked"`
	ActiveSinceMs int64  `json:"active_since_ms"`
}

type alarmListReply struct {
	ActiveCount     uint8       `json:"active_count"`
	HighestSeverity string      `json:"highest_severity"`
	Alarms          []alarmView `json:"alarms"`
}

func newAlarmsCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "alarms",
		Short: "List and acknowledge alarms",
	}
	root.AddCommand(newAlarmsListCommand(), newAlarmsAckCommand(), newAlarmsAckAllCommand())
	return root
}

func fetchAlarms(h *harness, ctx context.Context) (alarmListReply, error) {
	reply := h.cmds.Execute(ctx, command.Request{Cmd: "alarms.list"})
	var doc alarmListReply
	if err := json.Unmarshal(reply, &doc); err != nil {
		return doc, fmt.Errorf("decode alarms.list reply: %w", err)
	}
	return doc, nil
}

func newAlarmsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the current alarm table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := bootHarness(cmd.Context())
			if err != nil {
				return err
			}
			doc, err := fetchAlarms(h, cmd.Context())
			if err != nil {
				return err
			}
			printAlarmTable(cmd, doc)
			return nil
		},
	}
}

func printAlarmTable(cmd *cobra.Command, doc alarmListReply) {
	sev := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	for _, a := range doc.Alarms {
		line := fmt.Sprintf("%3d  %-10s %-8s active=%-5v acked=%-5v %s", a.ID, a.Code, a.Severity, a.Active, a.Acked, a.Title)
		if a.Active && !a.Acked {
			line = sev.Render(line)
		}
		cmd.Println(line)
	}
	cmd.Printf("%d active, highest severity %s\n", doc.ActiveCount, doc.HighestSeverity)
}

func newAlarmsAckCommand() *cobra.Command {
	var rawIDs []uint
	c := &cobra.Command{
		Use:   "ack",
		Short: "Acknowledge one or more alarms (interactive if --id is omitted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := bootHarness(cmd.Context())
			if err != nil {
				return err
			}
			ids := make([]uint16, len(rawIDs))
			for i, v := range rawIDs {
				ids[i] = uint16(v)
			}
			if len(ids) == 0 {
				ids, err = pickActiveUnackedAlarms(h, cmd.Context())
				if err != nil {
					return err
				}
			}
			for _, id := range ids {
				body, _ := json.Marshal(struct {
					ID uint16 `json:"id"`
				}{ID: id})
				reply := h.cmds.Execute(cmd.Context(), command.Request{Cmd: "alarms.ack", JSON: string(body)})
				cmd.Println(prettyJSON(reply))
			}
			return nil
		},
	}
	c.Flags().UintSliceVar(&rawIDs, "id", nil, "alarm id to acknowledge (repeatable)")
	return c
}

func newAlarmsAckAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ack-all",
		Short: "Acknowledge every active alarm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := bootHarness(cmd.Context())
			if err != nil {
				return err
			}
			reply := h.cmds.Execute(cmd.Context(), command.Request{Cmd: "alarms.ack_all"})
			cmd.Println(prettyJSON(reply))
			return nil
		},
	}
}

// pickActiveUnackedAlarms renders a multi-select form over the alarms
// that need attention, the same interactive-form pattern used for the
// create form: fields pre-populated from live state, validated, and
// driven by huh's own terminal loop rather than raw stdin parsing.
func pickActiveUnackedAlarms(h *harness, ctx context.Context) ([]uint16, error) {
	doc, err := fetchAlarms(h, ctx)
	if err != nil {
		return nil, err
	}

	var options []huh.Option[uint16]
	for _, a := range doc.Alarms {
		if !a.Active || a.Acked {
			continue
		}
		label := fmt.Sprintf("[%s] %s (%s)", a.Severity, a.Title, a.Code)
		options = append(options, huh.NewOption(label, a.ID))
	}
	if len(options) == 0 {
		return nil, nil
	}

	var selected []uint16
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[uint16]().
				Title("Acknowledge which alarms?").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("alarm ack form: %w", err)
	}
	return selected, nil
}
