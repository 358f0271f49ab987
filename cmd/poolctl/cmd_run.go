package main

import (
	"bytes"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/poolctld/poolctld/internal/command"
)

func newCmdCommand() *cobra.Command {
	var jsonBody string
	c := &cobra.Command{
		Use:   "cmd <name>",
		Short: "Execute a raw command against the dispatcher and print its JSON reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := bootHarness(cmd.Context())
			if err != nil {
				return err
			}
			reply := h.cmds.Execute(cmd.Context(), command.Request{Cmd: args[0], JSON: jsonBody})
			cmd.Println(prettyJSON(reply))
			return nil
		},
	}
	c.Flags().StringVar(&jsonBody, "json", "{}", "JSON request body")
	return c
}

// prettyJSON re-indents a command reply for terminal display, falling
// back to the raw bytes if they don't parse (they always should).
func prettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
