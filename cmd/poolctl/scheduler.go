package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/poolctld/poolctld/internal/command"
)

func newSchedulerCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "scheduler",
		Short: "Inspect the scheduler slot table",
	}
	root.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print every scheduler slot as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := bootHarness(cmd.Context())
			if err != nil {
				return err
			}
			reply := h.cmds.Execute(cmd.Context(), command.Request{Cmd: "scheduler.dump"})
			var doc struct {
				YAML string `json:"yaml"`
			}
			if err := json.Unmarshal(reply, &doc); err != nil {
				return fmt.Errorf("decode scheduler.dump reply: %w", err)
			}
			cmd.Print(doc.YAML)
			return nil
		},
	})
	return root
}
