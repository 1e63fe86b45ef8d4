package commands

import (
	"fmt"

	"dirscan/pkg/app"
	"dirscan/pkg/compare"

	"github.com/spf13/cobra"
)

var scanOpts struct {
	output     string
	prefix     string
	types      string
	duplicates bool
	summary    bool
}

var scanCmd = &cobra.Command{
	Use:   "scan [dir|scanfile]...",
	Short: "List the contents of one or more trees, or write a scan file",
	Long: `Walk each tree in turn and print one line per entry.
With --output the (single) tree is written to a scan file instead, which can
later be used in place of a directory by every command.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if DS == nil {
			return fmt.Errorf("app not initialized")
		}
		ctx := cmd.Context()

		// 1. 写 scan file
		if scanOpts.output != "" {
			if len(args) != 1 {
				return fmt.Errorf("--output takes exactly one tree, got %d", len(args))
			}
			if err := DS.SaveScan(ctx, args[0], scanOpts.prefix, scanOpts.output); err != nil {
				return &exitError{code: ExitError, err: err}
			}
			return nil
		}

		// 2. 列出
		p, err := newPrinter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		summary, err := DS.Scan(ctx, args, p, app.ScanOptions{
			Filter:     app.Filter{Kinds: scanOpts.types},
			Prefix:     scanOpts.prefix,
			Duplicates: scanOpts.duplicates,
		})
		if err == nil && scanOpts.summary {
			err = summary.Print(cmd.OutOrStdout())
		}
		if err != nil {
			return &exitError{code: ExitError, err: err}
		}
		if summary.Count(compare.Error) > 0 {
			return &exitError{code: ExitError}
		}
		return nil
	},
}

func init() {
	f := scanCmd.Flags()
	f.StringVarP(&scanOpts.output, "output", "o", "", "write a scan file instead of printing")
	f.StringVar(&scanOpts.prefix, "prefix", "", "only scan this sub directory of each tree")
	f.StringVarP(&scanOpts.types, "types", "t", "", "only show these types (f file, d dir, l link, b c p s special)")
	f.BoolVarP(&scanOpts.duplicates, "duplicates", "d", false, "mark files whose contents appear more than once")
	f.BoolVarP(&scanOpts.summary, "summary", "s", false, "print a summary at the end")
	rootCmd.AddCommand(scanCmd)
}
