package walker

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"syscall"

	"dirscan/pkg/fsobj"
)

// Policy 决定遇到可恢复的 I/O 错误后是否继续遍历
type Policy uint8

const (
	// PolicyContinue: 出错的目录视为没有可枚举的子节点，遍历继续
	PolicyContinue Policy = iota
	// PolicyAbort: 错误作为最后一项产出，遍历终止
	PolicyAbort
)

func (p Policy) String() string {
	if p == PolicyAbort {
		return "abort"
	}
	return "continue"
}

// ParsePolicy 解析配置中的 "continue" / "abort"
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "continue":
		return PolicyContinue, nil
	case "abort":
		return PolicyAbort, nil
	default:
		return PolicyContinue, fmt.Errorf("unknown error policy %q", s)
	}
}

// Options 控制一次遍历的行为
type Options struct {
	Reverse     bool     // 子节点按名称降序
	Excludes    []string // gitignore 风格的排除规则
	ExcludeFile string   // 额外的排除规则文件

	// OneFS: 不跨越文件系统边界 (仅对真实文件系统的根生效)
	OneFS bool

	// TraverseOneSided: 是否进入只在一侧存在的目录
	// nil 表示默认值：单棵树为 true，多棵树为 false；单棵树时总是 true
	TraverseOneSided *bool

	// Retain: 遍历结束后保留整棵树，默认遍历完一个子树就释放它
	Retain bool

	// Sequential: 多个根依次单独遍历，而不是同步遍历
	Sequential bool

	// Concurrency > 1 时，同一层的各个根并行列目录
	Concurrency int
	// PrefetchHashes: 在产出一层之前，并行计算该层普通文件的 Hash
	PrefetchHashes bool

	OnError Policy
	Logger  *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) traverseOneSided(roots int) bool {
	if roots < 2 {
		return true
	}
	if o.TraverseOneSided == nil {
		return false
	}
	return *o.TraverseOneSided
}

// Root 是遍历的起点：文件系统路径，或者已经构建好的目录树
type Root struct {
	path   string
	tree   *fsobj.Object
	isTree bool
}

func PathRoot(path string) Root { return Root{path: path} }

func TreeRoot(tree *fsobj.Object) Root { return Root{tree: tree, isTree: true} }

func (r Root) String() string {
	if r.tree != nil {
		return r.tree.FullPath()
	}
	return r.path
}

// open 校验根节点必须是目录
func (r Root) open() (*fsobj.Object, error) {
	if r.isTree {
		if r.tree == nil {
			return nil, &fsobj.PathError{Op: "walk", Path: "<nil>", Kind: fsobj.ErrNotADirectory, Err: syscall.ENOTDIR}
		}
		if !r.tree.IsDir() {
			return nil, &fsobj.PathError{Op: "walk", Path: r.tree.FullPath(), Kind: fsobj.ErrNotADirectory, Err: syscall.ENOTDIR}
		}
		return r.tree, nil
	}

	path := filepath.Clean(r.path)
	obj, err := fsobj.FromPath(path)
	if err != nil {
		return nil, err
	}
	if !obj.IsDir() {
		return nil, &fsobj.PathError{Op: "walk", Path: path, Kind: fsobj.ErrNotADirectory, Err: syscall.ENOTDIR}
	}
	return obj, nil
}
