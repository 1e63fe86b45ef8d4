package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dupesCmd = &cobra.Command{
	Use:   "dupes [dir|scanfile]...",
	Short: "Find files with identical contents",
	Long: `Hash every regular file of the given trees and print groups of files
whose contents are identical. Exit status is 1 when duplicates were found.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if DS == nil {
			return fmt.Errorf("app not initialized")
		}

		p, err := newPrinter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		groups, err := DS.Duplicates(cmd.Context(), args, p)
		if err != nil {
			return &exitError{code: ExitError, err: err}
		}
		if len(groups) > 0 {
			return &exitError{code: ExitDifferences}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dupesCmd)
}
