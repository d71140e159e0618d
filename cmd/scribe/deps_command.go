package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/deps"
	"scribe/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check the external programs scribe needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cfg)
			rows := make([][]string, 0, len(statuses)+1)
			for _, s := range statuses {
				state := "ok"
				detail := s.Command
				if !s.Available {
					state = "missing"
					detail = s.Detail
				}
				rows = append(rows, []string{s.Name, state, detail, s.Description})
			}
			diar := preflight.CheckDiarizationAccess(cfg.Diarization)
			diarState := "ok"
			if !diar.Passed {
				diarState = "unavailable"
			}
			rows = append(rows, []string{diar.Name, diarState, diar.Detail, "Needed for --speakers"})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Status", "Detail", "Purpose"}, rows))
			if missing := deps.Missing(statuses); len(missing) > 0 {
				return exitError{code: 1}
			}
			return nil
		},
	}
}
