// Command poolctld is the pool automation control daemon: it boots the
// shared core+domain module stack and runs the cooperative scheduler
// until interrupted, the Go analog of main.cpp's setup()/loop().
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/poolctld/poolctld/internal/config"
	"github.com/poolctld/poolctld/internal/runtime"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "poolctld",
		Short:         "Pool automation control daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to poolctld's bootstrap config.yaml")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "poolctld:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boot, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	stack, err := runtime.Boot(boot)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	watcher, err := config.WatchLogLevel(configPath, func(level string) {
		stack.Hub.Infof("poolctld", "log level set to %s", level)
	})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	_ = watcher // log level is observed, not yet used to filter sinks

	stack.Hub.Infof("poolctld", "starting, listen_addr=%s board_rev=%d", boot.ListenAddr, stack.Board.Revision)

	return stack.Manager.Run(ctx, stack.Config, stack.Services)
}
