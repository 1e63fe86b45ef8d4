package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"dirscan/pkg/compare"
	"dirscan/pkg/config"
	"dirscan/pkg/report"
	"dirscan/pkg/scanfile"
	"dirscan/pkg/walker"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有从配置构建出来的选项，但不知道具体的 CLI 命令
type App struct {
	WalkOptions    walker.Options
	CompareOptions compare.Options
	Logger         *slog.Logger
}

// NewApp 根据 Viper 的当前状态组装 App
func NewApp(logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	wopts, err := config.WalkOptions()
	if err != nil {
		return nil, fmt.Errorf("invalid walk config: %w", err)
	}
	copts, err := config.CompareOptions()
	if err != nil {
		return nil, fmt.Errorf("invalid compare config: %w", err)
	}
	wopts.Logger = logger

	return &App{WalkOptions: wopts, CompareOptions: copts, Logger: logger}, nil
}

// OpenRoot 把命令行参数转换为遍历的根
// scan file 被解码为内存中的树，目录交给遍历，其它普通文件报 ErrNotScanFile；prefix 选择其中的子目录
func (a *App) OpenRoot(arg, prefix string) (walker.Root, error) {
	if scanfile.IsScanFile(arg) {
		tree, err := scanfile.ReadFile(arg, prefix)
		if err != nil {
			return walker.Root{}, err
		}
		a.Logger.Debug("loaded scan file", slog.String("path", arg), slog.String("prefix", prefix))
		return walker.TreeRoot(tree), nil
	}
	if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
		return walker.Root{}, fmt.Errorf("%w: %s", scanfile.ErrNotScanFile, arg)
	}
	if prefix != "" {
		return walker.PathRoot(filepath.Join(arg, filepath.FromSlash(prefix))), nil
	}
	return walker.PathRoot(arg), nil
}

func (a *App) openRoots(args, prefixes []string) ([]walker.Root, error) {
	roots := make([]walker.Root, len(args))
	for i, arg := range args {
		prefix := ""
		if i < len(prefixes) {
			prefix = prefixes[i]
		}
		r, err := a.OpenRoot(arg, prefix)
		if err != nil {
			return nil, err
		}
		roots[i] = r
	}
	return roots, nil
}

// Filter 决定哪些记录被输出
type Filter struct {
	All   bool   // 也输出相同 / 单纯扫描到的条目
	Kinds string // 只输出包含这些类型字符的条目，空表示全部
}

func (f Filter) keep(rec report.DiffRecord, res compare.Result) bool {
	if !f.All && res.Class == compare.Equal {
		return false
	}
	if f.Kinds != "" && !strings.ContainsAny(rec.Kinds, f.Kinds) {
		return false
	}
	return true
}

// fatal 判断遍历中产出的错误是否应该终止命令
func (a *App) fatal(err error) bool {
	return a.WalkOptions.OnError == walker.PolicyAbort ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// run 消费一次遍历：比较、过滤、输出、统计
func (a *App) run(seq iter.Seq2[walker.Entry, error], cmp *compare.Comparer, p report.Printer, filter Filter) (*report.Summary, error) {
	summary := report.NewSummary()
	for e, walkErr := range seq {
		if walkErr != nil && len(e.Objects) == 0 {
			return summary, walkErr
		}

		res := cmp.CompareEntry(e)
		summary.Add(res.Class)

		rec := report.NewRecord(e, res)
		if filter.keep(rec, res) {
			if err := p.Record(rec); err != nil {
				return summary, fmt.Errorf("write report: %w", err)
			}
		}

		if walkErr != nil && a.fatal(walkErr) {
			return summary, walkErr
		}
	}
	return summary, nil
}

// ScanOptions 控制扫描命令
type ScanOptions struct {
	Filter
	Prefix     string // 每棵树中的子目录
	Duplicates bool   // 先建立 HashIndex，把内容重复的文件标记为 duplicate
}

// Scan 列出一棵或多棵树的内容 (多棵树依次遍历)
func (a *App) Scan(ctx context.Context, args []string, p report.Printer, opts ScanOptions) (*report.Summary, error) {
	start := time.Now()
	roots, err := a.openRoots(args, slices.Repeat([]string{opts.Prefix}, len(args)))
	if err != nil {
		return nil, err
	}

	wopts := a.WalkOptions
	wopts.Sequential = true
	cmp := compare.New(a.CompareOptions)

	// 1. 可选：第一遍遍历建立重复文件索引
	if opts.Duplicates {
		first := wopts
		first.Retain = true
		first.PrefetchHashes = first.Concurrency > 1
		seq, err := walker.Walk(ctx, roots, first)
		if err != nil {
			return nil, err
		}
		idx, err := compare.BuildIndex(seq, compare.IndexDuplicates)
		if err != nil {
			if a.fatal(err) {
				return nil, err
			}
			a.Logger.Warn("duplicate index incomplete", slog.String("err", err.Error()))
		}
		cmp = cmp.WithIndex(idx)
	}

	// 2. 列出
	seq, err := walker.Walk(ctx, roots, wopts)
	if err != nil {
		return nil, err
	}
	filter := opts.Filter
	filter.All = true
	summary, err := a.run(seq, cmp, p, filter)
	if ferr := p.Flush(); err == nil {
		err = ferr
	}
	a.Logger.Info("scan finished",
		slog.Int("trees", len(roots)),
		slog.Int("entries", summary.Total()),
		slog.Duration("dur", time.Since(start)),
	)
	return summary, err
}

// DiffOptions 控制比较命令
type DiffOptions struct {
	Filter
	Renames  bool     // 先建立 HashIndex，报告重命名
	Prefixes []string // 每一侧的子目录
}

// Diff 同步遍历 2..N 棵树并输出差异
func (a *App) Diff(ctx context.Context, args []string, p report.Printer, opts DiffOptions) (*report.Summary, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("diff needs at least two trees, got %d", len(args))
	}
	start := time.Now()
	roots, err := a.openRoots(args, opts.Prefixes)
	if err != nil {
		return nil, err
	}

	cmp := compare.New(a.CompareOptions)
	wopts := a.WalkOptions

	// 1. 可选：第一遍遍历建立重命名索引
	if opts.Renames {
		first := wopts
		first.Retain = true // 第二遍还要使用同一批解码出来的树
		first.PrefetchHashes = first.Concurrency > 1
		seq, err := walker.Walk(ctx, roots, first)
		if err != nil {
			return nil, err
		}
		idx, err := compare.BuildIndex(seq, compare.IndexRenames)
		if err != nil {
			if a.fatal(err) {
				return nil, err
			}
			a.Logger.Warn("rename index incomplete", slog.String("err", err.Error()))
		}
		a.Logger.Debug("rename index built", slog.Int("files", idx.Len()))
		cmp = cmp.WithIndex(idx)
	}

	// 2. 比较
	seq, err := walker.Walk(ctx, roots, wopts)
	if err != nil {
		return nil, err
	}
	summary, err := a.run(seq, cmp, p, opts.Filter)
	if ferr := p.Flush(); err == nil {
		err = ferr
	}
	a.Logger.Info("diff finished",
		slog.Int("trees", len(roots)),
		slog.Int("entries", summary.Total()),
		slog.Int("differences", summary.Differences()),
		slog.Duration("dur", time.Since(start)),
	)
	return summary, err
}

// Duplicates 找出一棵或多棵树中内容相同的文件
func (a *App) Duplicates(ctx context.Context, args []string, p report.Printer) ([]compare.Group, error) {
	start := time.Now()
	roots, err := a.openRoots(args, nil)
	if err != nil {
		return nil, err
	}

	opts := a.WalkOptions
	opts.Sequential = true
	opts.PrefetchHashes = opts.Concurrency > 1
	seq, err := walker.Walk(ctx, roots, opts)
	if err != nil {
		return nil, err
	}

	idx, err := compare.BuildIndex(seq, compare.IndexDuplicates)
	if err != nil {
		if a.fatal(err) {
			return nil, err
		}
		a.Logger.Warn("some files could not be indexed", slog.String("err", err.Error()))
	}

	groups := idx.AllDuplicates()
	for _, g := range groups {
		if err := p.Group(report.NewGroupRecord(g, args)); err != nil {
			return groups, fmt.Errorf("write report: %w", err)
		}
	}
	a.Logger.Info("duplicate search finished",
		slog.Int("files", idx.Len()),
		slog.Int("groups", len(groups)),
		slog.Duration("dur", time.Since(start)),
	)
	return groups, p.Flush()
}

// SaveScan 遍历一棵树并写入 scan file
// 可恢复的遍历错误不会阻止写入，文件写完后返回
func (a *App) SaveScan(ctx context.Context, arg, prefix, out string) error {
	start := time.Now()
	root, err := a.OpenRoot(arg, prefix)
	if err != nil {
		return err
	}
	seq, err := walker.Walk(ctx, []walker.Root{root}, a.WalkOptions)
	if err != nil {
		return err
	}

	err = scanfile.WriteFile(out, seq)
	a.Logger.Info("scan file written",
		slog.String("path", out),
		slog.Duration("dur", time.Since(start)),
		slog.Bool("complete", err == nil),
	)
	return err
}
