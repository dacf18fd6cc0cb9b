package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/xavierca1/sherpa/internal/infra/worker"
)

var passShort = map[string]string{
	"draft":    "Generate drafts for enriched leads and queue them for approval",
	"dispatch": "Send approved leads over email, connection request and chat",
	"ingest":   "Read unread replies, classify them and update lead status",
	"discover": "Pull new profiles from the search agent and enrich them",
}

// passCommands builds one subcommand per pass. Each runs the pass once and
// prints its report as JSON.
func passCommands() []*cobra.Command {
	var cmds []*cobra.Command
	for _, name := range []string{"draft", "dispatch", "ingest", "discover"} {
		cmds = append(cmds, &cobra.Command{
			Use:   name,
			Short: passShort[name],
			RunE: func(cmd *cobra.Command, _ []string) error {
				a, err := newApp(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer a.close()
				return runPass(cmd, a.passes()[name])
			},
		})
	}
	return cmds
}

func runPass(cmd *cobra.Command, run worker.PassFunc) error {
	report, err := run(cmd.Context())
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(report); encErr != nil {
		return encErr
	}
	return err
}
