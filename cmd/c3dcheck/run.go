package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samsamfire/c3d/pkg/scenario"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Replay one named end-to-end scenario",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				names := make([]string, len(scenario.All))
				for i, s := range scenario.All {
					names[i] = s.Name
				}
				return fmt.Errorf("missing scenario name, available: %s", strings.Join(names, ", "))
			}
			s, ok := scenario.Find(args[0])
			if !ok {
				return fmt.Errorf("unknown scenario %q", args[0])
			}
			env := scenario.New(s.Sockets)
			fmt.Printf("running %s: %s\n", s.Name, s.Description)
			if err := s.Run(env); err != nil {
				return fmt.Errorf("scenario failed: %w", err)
			}
			fmt.Println("completed without a protocol violation")
			fmt.Printf("directory: %s owner=%s data=%s\n", env.Directory.State, env.Directory.Owner, env.Directory.Data)
			for i, dc := range env.DCs {
				llc := env.LLCs[i]
				fmt.Printf("socket %d: DC=%s(%s) LLC=%s(%s)\n", i, dc.State, dc.Data, llc.State, llc.Data)
			}
			return nil
		},
	}
	return cmd
}
