package walker

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"dirscan/pkg/fsobj"
	"dirscan/pkg/ignore"

	"golang.org/x/sync/errgroup"
)

// Entry 是遍历产出的一项：一个相对路径，以及每个根在该路径上的对象
// Objects 的长度总是等于根的数量，不存在的一侧是 Missing 对象
type Entry struct {
	Path    string // 相对于根，'/' 分隔，根本身为 "."
	Objects []*fsobj.Object
	Root    int // Sequential 模式下该项所属根的下标
}

// Walk 同步遍历多棵目录树，按深度优先先序产出每个路径
//
// 根节点的错误 (不存在、不是目录、无权限) 直接返回。
// 遍历过程中的 I/O 错误以 (entry, err) 的形式产出：
// PolicyContinue 时遍历继续，PolicyAbort 时这是最后一项。
func Walk(ctx context.Context, roots []Root, opts Options) (iter.Seq2[Entry, error], error) {
	if len(roots) == 0 {
		return nil, errors.New("walk: no roots given")
	}

	// 1. 打开并校验所有根
	objs := make([]*fsobj.Object, len(roots))
	for i, r := range roots {
		obj, err := r.open()
		if err != nil {
			return nil, err
		}
		objs[i] = obj
	}

	// 2. 编译排除规则
	matcher, err := ignore.NewMatcher(opts.Excludes, opts.ExcludeFile)
	if err != nil {
		return nil, fmt.Errorf("walk: load excludes: %w", err)
	}

	if opts.Sequential && len(objs) > 1 {
		return func(yield func(Entry, error) bool) {
			for i, obj := range objs {
				w := newWalker(ctx, []*fsobj.Object{obj}, matcher, opts)
				w.index = i
				if !w.visit(".", w.roots, yield) {
					return
				}
			}
		}, nil
	}

	w := newWalker(ctx, objs, matcher, opts)
	return func(yield func(Entry, error) bool) {
		w.visit(".", w.roots, yield)
	}, nil
}

type walker struct {
	ctx      context.Context
	opts     Options
	matcher  *ignore.Matcher
	logger   *slog.Logger
	roots    []*fsobj.Object
	rootDevs []uint64
	oneSided bool
	index    int
}

func newWalker(ctx context.Context, roots []*fsobj.Object, matcher *ignore.Matcher, opts Options) *walker {
	devs := make([]uint64, len(roots))
	for i, r := range roots {
		devs[i] = r.Meta().Dev
	}
	logger := opts.logger()
	if !matcher.Empty() {
		logger.Debug("exclude rules loaded",
			slog.Any("patterns", matcher.Patterns()),
			slog.String("file", opts.ExcludeFile))
	}
	return &walker{
		ctx:      ctx,
		opts:     opts,
		matcher:  matcher,
		logger:   logger,
		roots:    roots,
		rootDevs: devs,
		oneSided: opts.traverseOneSided(len(roots)),
	}
}

// visit 处理一个路径：列出子节点，产出该项，然后按序递归
// 返回 false 表示遍历应当终止
func (w *walker) visit(path string, objs []*fsobj.Object, yield func(Entry, error) bool) bool {
	entry := Entry{Path: path, Objects: objs, Root: w.index}

	if err := w.ctx.Err(); err != nil {
		yield(entry, err)
		return false
	}

	// 子节点在产出之前列出，这样列目录的错误能随该项一起交给调用方
	children, listErr := w.list(path, objs)
	if listErr != nil {
		w.logger.Warn("list directory failed",
			slog.String("path", path),
			slog.String("policy", w.opts.OnError.String()),
			slog.String("err", listErr.Error()),
		)
		if !yield(entry, listErr) || w.opts.OnError == PolicyAbort {
			return false
		}
	} else if !yield(entry, nil) {
		return false
	}

	if !w.opts.Retain {
		defer func() {
			for _, o := range objs {
				o.Release()
			}
		}()
	}

	for _, name := range w.union(children) {
		tuple := make([]*fsobj.Object, len(objs))
		for i, kids := range children {
			if c, ok := kids[name]; ok {
				tuple[i] = c
			} else {
				tuple[i] = fsobj.NewMissing(name, objs[i].FullPath())
			}
		}
		if !w.visit(joinPath(path, name), tuple, yield) {
			return false
		}
	}
	return true
}

// list 返回每一侧的子节点 (按名称索引)
// 不是目录、被排除、或者只在一侧存在且不允许进入的对象不贡献子节点
func (w *walker) list(path string, objs []*fsobj.Object) ([]map[string]*fsobj.Object, error) {
	children := make([]map[string]*fsobj.Object, len(objs))

	var sides []int
	for i, o := range objs {
		if o.IsDir() && !o.Excluded() {
			sides = append(sides, i)
		}
	}
	if len(sides) == 0 {
		return children, nil
	}
	if len(sides) == 1 && len(objs) > 1 && !w.oneSided {
		w.logger.Debug("skip one-sided directory", slog.String("path", path))
		return children, nil
	}

	errs := make([]error, len(objs))
	listSide := func(i int) {
		kids, err := objs[i].Children()
		if err != nil {
			objs[i].SetErr(err)
			errs[i] = err
		}
		m := make(map[string]*fsobj.Object, len(kids))
		for _, k := range kids {
			m[k.Name()] = k
		}
		children[i] = m
	}

	if w.opts.Concurrency > 1 && len(sides) > 1 {
		g := new(errgroup.Group)
		g.SetLimit(w.opts.Concurrency)
		for _, i := range sides {
			g.Go(func() error {
				listSide(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, i := range sides {
			listSide(i)
		}
	}

	// 排除标记必须在产出之前完成
	for i, kids := range children {
		for name, k := range kids {
			w.mark(i, joinPath(path, name), k)
		}
	}

	if w.opts.PrefetchHashes {
		w.prefetch(children)
	}
	return children, errors.Join(errs...)
}

// mark 根据排除规则和文件系统边界设置 excluded 标记
func (w *walker) mark(side int, path string, o *fsobj.Object) {
	if w.matcher.Matches(path, o.IsDir()) {
		o.SetExcluded(true)
		return
	}
	if w.opts.OneFS && o.IsLive() && w.roots[side].IsLive() && o.Meta().Dev != w.rootDevs[side] {
		w.logger.Debug("crossing filesystem boundary", slog.String("path", path))
		o.SetExcluded(true)
	}
}

// prefetch 并行计算一层中所有普通文件的 Hash
// 失败记录在对象上，由比较阶段报告
func (w *walker) prefetch(children []map[string]*fsobj.Object) {
	limit := max(w.opts.Concurrency, 1)
	g, ctx := errgroup.WithContext(w.ctx)
	g.SetLimit(limit)
	for _, kids := range children {
		for _, k := range kids {
			if k.Kind() != fsobj.KindFile || !k.IsLive() || k.Excluded() || k.HashKnown() {
				continue
			}
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				_, _ = k.Hash()
				return nil
			})
		}
	}
	_ = g.Wait()
}

// union 返回所有侧子节点名称的并集，按名称排序
func (w *walker) union(children []map[string]*fsobj.Object) []string {
	seen := make(map[string]struct{})
	for _, kids := range children {
		for name := range kids {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	if w.opts.Reverse {
		slices.Reverse(names)
	}
	return names
}

func joinPath(parent, name string) string {
	if parent == "." || parent == "" {
		return name
	}
	return parent + "/" + name
}

// Collect 把整个遍历读入内存，遇到第一个错误即返回
// 主要用于测试和小目录
func Collect(seq iter.Seq2[Entry, error]) ([]Entry, error) {
	var out []Entry
	for e, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}
