package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var examplesFlags struct {
	file string
}

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Manage the training examples given to the drafting model",
}

var examplesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import training examples from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, err := os.Open(examplesFlags.file)
		if err != nil {
			return err
		}
		defer f.Close()

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.exampleUC.ImportYAML(cmd.Context(), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d examples\n", n)
		return nil
	},
}

func init() {
	examplesImportCmd.Flags().StringVarP(&examplesFlags.file, "file", "f", "", "YAML file with an examples list (required)")
	_ = examplesImportCmd.MarkFlagRequired("file")
	examplesCmd.AddCommand(examplesImportCmd)
}
