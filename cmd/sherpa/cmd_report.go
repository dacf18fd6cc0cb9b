package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print lead counts per status and today's activity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		rep, err := a.report.Execute(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, line := range rep.Lines() {
			fmt.Fprintln(out, line)
		}
		return nil
	},
}
