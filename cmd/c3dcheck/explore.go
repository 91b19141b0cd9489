package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samsamfire/c3d/pkg/checker"
	"github.com/samsamfire/c3d/pkg/config"
	"github.com/samsamfire/c3d/pkg/environment"
)

func newExploreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Run a bounded breadth-first search over every reachable configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgFile != "" {
				loaded, err := config.Load(cfgFile)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			logger := newLogger()
			root := environment.New(environment.Config{
				Sockets:         cfg.Sockets,
				MailboxCapacity: cfg.MailboxCapacity,
				Values:          cfg.Values,
			}, logger)

			result := checker.Explore(root, cfg.MaxStates, cfg.MaxDepth, logger)
			fmt.Printf("run %s: explored %d configurations\n", result.RunID, result.StatesExplored)
			if result.Violation == nil {
				fmt.Println("no violation found within bounds")
				return nil
			}
			fmt.Printf("violation: %v\n", result.Violation)
			fmt.Println("trace:")
			for i, step := range result.Trace {
				fmt.Printf("  %3d. %s\n", i, step)
			}
			return fmt.Errorf("protocol violation found")
		},
	}
	return cmd
}
