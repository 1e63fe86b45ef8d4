package commands

import (
	"fmt"
	"os"

	"dirscan/pkg/app"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var diffOpts struct {
	all         bool
	types       string
	renames     bool
	prefix      string
	leftPrefix  string
	rightPrefix string
	summary     bool
}

var diffCmd = &cobra.Command{
	Use:   "diff LEFT RIGHT [MORE...]",
	Short: "Compare two or more trees in lock-step",
	Long: `Walk all trees at the same time and print the entries that differ.
Each tree is either a directory or a scan file written by 'dirscan scan -o'.

Exit status is 0 when the trees are equal, 1 when differences were found and
2 on errors.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if DS == nil {
			return fmt.Errorf("app not initialized")
		}

		p, err := newPrinter(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		summary, err := DS.Diff(cmd.Context(), args, p, app.DiffOptions{
			Filter:   app.Filter{All: diffOpts.all, Kinds: diffOpts.types},
			Renames:  diffOpts.renames,
			Prefixes: prefixes(len(args)),
		})
		if err == nil && diffOpts.summary {
			err = summary.Print(cmd.OutOrStdout())
		}
		return finish(summary, err)
	},
}

// prefixes 组合 --prefix 与 --left-prefix / --right-prefix
func prefixes(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = diffOpts.prefix
	}
	if diffOpts.leftPrefix != "" {
		out[0] = diffOpts.leftPrefix
	}
	if diffOpts.rightPrefix != "" {
		out[1] = diffOpts.rightPrefix
	}
	return out
}

func init() {
	f := diffCmd.Flags()
	f.BoolVarP(&diffOpts.all, "all", "a", false, "also show equal entries")
	f.StringVarP(&diffOpts.types, "types", "t", "", "only show entries of these types (f file, d dir, l link, b c p s special)")
	f.BoolVarP(&diffOpts.renames, "renames", "H", false, "detect renamed files by their contents (hashes every one-sided file)")
	f.StringVar(&diffOpts.prefix, "prefix", "", "compare this sub directory of every tree")
	f.StringVar(&diffOpts.leftPrefix, "left-prefix", "", "sub directory of the left tree")
	f.StringVar(&diffOpts.rightPrefix, "right-prefix", "", "sub directory of the right tree")
	f.BoolVarP(&diffOpts.summary, "summary", "s", false, "print a summary at the end")

	// 比较选项同样可以写在配置文件里
	f.StringSliceP("ignore", "i", nil, "ignore differences in t (time), u (uid), g (gid), p (permissions)")
	f.BoolP("compare-time", "T", false, "report entries whose only difference is the modification time")
	f.Duration("time-slack", 0, "modification times closer than this are equal (default 1s)")
	f.Bool("no-content", false, "don't read file contents, compare metadata only")

	bindings := map[string]string{
		"compare.ignore":       "ignore",
		"compare.compare_time": "compare-time",
		"compare.time_slack":   "time-slack",
		"compare.no_content":   "no-content",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, f.Lookup(name)); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to bind flag:", err)
			os.Exit(ExitError)
		}
	}
	rootCmd.AddCommand(diffCmd)
}
