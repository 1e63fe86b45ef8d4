package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"dirscan/pkg/app"
	"dirscan/pkg/compare"
	"dirscan/pkg/config"
	"dirscan/pkg/report"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// 退出码
const (
	ExitClean       = 0 // 没有差异
	ExitDifferences = 1 // 有差异 (或有重复文件)
	ExitError       = 2 // 运行错误
)

var (
	cfgFile string
	verbose int
	// 全局应用实例，供子命令使用
	DS *app.App
)

// exitError 携带一个非零退出码；err 为 nil 时只设置退出码，不打印
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:           "dirscan",
	Short:         "dirscan: scan and compare directory trees",
	SilenceErrors: true,
	SilenceUsage:  true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置 (文件 < 环境变量 < 命令行参数)
		if err := config.Load(cfgFile); err != nil {
			return err
		}

		// 2. 日志级别：-v 覆盖配置
		level, err := config.LogLevel()
		if err != nil {
			return err
		}
		switch {
		case verbose >= 2:
			level = slog.LevelDebug
		case verbose == 1:
			level = min(level, slog.LevelInfo)
		}
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		// 3. 统一初始化 App
		DS, err = app.NewApp(logger)
		if err != nil {
			return fmt.Errorf("failed to initialize dirscan: %w", err)
		}
		return nil
	},
}

// Execute 是入口，返回进程退出码
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	// Ctrl-C 取消遍历，已经输出的记录保持完整
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitClean
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(stderr, "dirscan:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(stderr, "dirscan:", err)
	return ExitError
}

func init() {
	flags := rootCmd.PersistentFlags()

	// 1. 定义全局参数 --config
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.dirscan/config.yaml)")
	flags.CountVarP(&verbose, "verbose", "v", "increase log verbosity (-v info, -vv debug)")

	// 2. 定义参数，并绑定到 Viper
	// 这样用户既可以在 yaml 里写，也可以用命令行覆盖
	flags.StringSliceP("exclude", "X", nil, "exclude paths matching the gitignore style pattern (repeatable)")
	flags.String("exclude-file", "", "read exclude patterns from a file")
	flags.BoolP("one-file-system", "x", false, "don't cross filesystem boundaries")
	flags.BoolP("reverse", "R", false, "traverse directories in reverse order")
	flags.BoolP("recursive", "r", false, "descend into directories that exist on one side only")
	flags.IntP("jobs", "j", 1, "number of parallel directory listings and hash workers")
	flags.Bool("prefetch", false, "hash files in parallel while walking (needs --jobs > 1)")
	flags.String("on-error", "continue", "what to do on a walk error: continue or abort")
	flags.StringP("format", "F", "text", "output format: text or cbor")

	bindings := map[string]string{
		"walk.exclude":          "exclude",
		"walk.exclude_file":     "exclude-file",
		"walk.onefs":            "one-file-system",
		"walk.reverse":          "reverse",
		"walk.traverse_oneside": "recursive",
		"walk.concurrency":      "jobs",
		"walk.prefetch":         "prefetch",
		"walk.on_error":         "on-error",
		"report.format":         "format",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to bind flag:", err)
			os.Exit(ExitError)
		}
	}
}

// newPrinter 根据 report.format 创建输出
func newPrinter(w io.Writer) (report.Printer, error) {
	return report.New(viper.GetString("report.format"), w)
}

// finish 把 summary 转换为退出码
func finish(summary *report.Summary, err error) error {
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	if summary != nil && summary.Count(compare.Error) > 0 {
		return &exitError{code: ExitError}
	}
	if summary != nil && summary.Differences() > 0 {
		return &exitError{code: ExitDifferences}
	}
	return nil
}
