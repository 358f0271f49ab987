// Command poolctl is the operator-facing simulation harness: it boots the
// exact same module stack as poolctld but stops short of running the
// cooperative scheduler, executes one operator action against the
// in-process command dispatcher, and exits. There is no network client
// here — poolctl drives the same Registry a remote operator session
// would, in the same process, the way a bench test drives the firmware
// over its serial command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/poolctld/poolctld/internal/command"
	"github.com/poolctld/poolctld/internal/config"
	"github.com/poolctld/poolctld/internal/registry"
	"github.com/poolctld/poolctld/internal/runtime"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "poolctl",
		Short:         "Operator CLI for the pool automation control daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the daemon's bootstrap config.yaml")
	root.AddCommand(newCmdCommand(), newStatusCommand(), newSchedulerCommand(), newAlarmsCommand(), newDashboardCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "poolctl:", err)
		os.Exit(1)
	}
}

// harness is the fully wired-but-idle stack a subcommand drives. Boot
// runs every module's Init/OnConfigLoaded exactly as poolctld does, via
// Manager.InitOnly, without starting any Loop goroutine.
type harness struct {
	stack *runtime.Stack
	cmds  *command.Registry
}

func bootHarness(ctx context.Context) (*harness, error) {
	boot, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	stack, err := runtime.Boot(boot)
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	if _, err := stack.Manager.InitOnly(ctx, stack.Config, stack.Services); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	cmds, ok := registry.MustGet[*command.Registry](stack.Services, command.ServiceID)
	if !ok {
		return nil, fmt.Errorf("command registry not wired")
	}
	return &harness{stack: stack, cmds: cmds}, nil
}
