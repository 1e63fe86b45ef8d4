package fsobj

import (
	"fmt"
	"path/filepath"
	"sync"

	"dirscan/pkg/types"
)

// PermBits 是 chmod(2) 意义上的权限位 (含 setuid/setgid/sticky)，不含类型位
const PermBits = 0o7777

// Meta 是所有真实存在的对象共有的元数据
type Meta struct {
	Mode  uint32 // 仅权限位
	UID   uint32
	GID   uint32
	MTime int64  // 秒级精度
	Dev   uint64 // 所在文件系统
	Size  int64  // 仅普通文件有意义
}

type hashState uint8

const (
	hashUnknown     hashState = iota // 尚未计算，可以从磁盘读取
	hashKnown                        // 已计算或由 scan file 提供
	hashUnavailable                  // 来源没有 Hash，也不能读盘
	hashFailed                       // 读盘失败，不再重试
)

// Object 表示一个文件系统条目
// 它是一个封闭的 Tagged Variant：所有类型共用一个结构体，由 kind 决定哪些能力可用
type Object struct {
	kind     Kind
	name     string
	parent   string
	meta     Meta
	link     string
	live     bool // true: 来自真实文件系统
	excluded bool

	mu        sync.Mutex
	hash      types.Hash
	hashState hashState
	hashErr   error

	children  []*Object
	index     map[string]int
	populated bool
	released  bool
	err       error
}

// NewMissing 创建一个占位对象，表示该路径只在其它树中存在
func NewMissing(name, parent string) *Object {
	return &Object{kind: KindMissing, name: name, parent: parent}
}

// Record 是从 scan file 解码出来的一条记录
type Record struct {
	Kind   Kind
	Name   string
	Parent string
	Meta   Meta
	Hash   types.Hash // 仅普通文件
	Link   string     // 仅符号链接
}

// NewDecoded 根据解码后的记录创建对象
// 目录的子节点稍后通过 SetChildren 一次性挂载
func NewDecoded(r Record) (*Object, error) {
	if !r.Kind.Present() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, r.Kind.Char())
	}
	o := &Object{
		kind:   r.Kind,
		name:   r.Name,
		parent: r.Parent,
		meta:   r.Meta,
	}
	o.meta.Mode &= PermBits

	switch r.Kind {
	case KindFile:
		switch {
		case !r.Hash.IsZero():
			o.hash = r.Hash
			o.hashState = hashKnown
		case r.Meta.Size == 0:
			// 空文件不需要读盘就知道 Hash
			o.hash = EmptyHash
			o.hashState = hashKnown
		default:
			o.hashState = hashUnavailable
		}
	case KindSymlink:
		o.link = r.Link
	default:
		o.meta.Size = 0
	}
	return o, nil
}

func (o *Object) Kind() Kind         { return o.kind }
func (o *Object) Name() string       { return o.name }
func (o *Object) ParentPath() string { return o.parent }
func (o *Object) IsMissing() bool    { return o.kind == KindMissing }
func (o *Object) IsDir() bool        { return o.kind == KindDir }
func (o *Object) IsLive() bool       { return o.live }

// FullPath = join(parentPath, name)
func (o *Object) FullPath() string {
	if o.parent == "" {
		return o.name
	}
	return filepath.Join(o.parent, o.name)
}

// Meta 返回元数据。对 Missing 调用属于逻辑错误
func (o *Object) Meta() Meta {
	if o.kind == KindMissing {
		panic(fmt.Sprintf("fsobj: metadata requested for missing object %q", o.FullPath()))
	}
	return o.meta
}

// Size 只对普通文件有意义，其它类型返回 0
func (o *Object) Size() int64 {
	if o.kind != KindFile {
		return 0
	}
	return o.meta.Size
}

// LinkTarget 只对符号链接有意义
func (o *Object) LinkTarget() string {
	if o.kind != KindSymlink {
		return ""
	}
	return o.link
}

func (o *Object) Excluded() bool { return o.excluded }

// SetExcluded 标记该对象被排除规则或文件系统边界过滤
// 该标记不会写入 scan file
func (o *Object) SetExcluded(v bool) { o.excluded = v }

// Err 返回列目录时遇到的可恢复错误
func (o *Object) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func (o *Object) SetErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// HashKnown 报告 Hash 是否已经计算过 (或由来源提供)
func (o *Object) HashKnown() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hashState == hashKnown
}

// Hash 返回普通文件的内容摘要，最多计算一次
func (o *Object) Hash() (types.Hash, error) {
	if o.kind != KindFile {
		return "", fmt.Errorf("%w: hash of %s %q", ErrWrongKind, o.kind, o.FullPath())
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.hashState {
	case hashKnown:
		return o.hash, nil
	case hashFailed:
		return "", o.hashErr
	case hashUnavailable:
		return "", fmt.Errorf("%w: %q", ErrNoHash, o.FullPath())
	}

	if !o.live {
		o.hashState = hashUnavailable
		return "", fmt.Errorf("%w: %q", ErrNoHash, o.FullPath())
	}

	h, err := hashFile(o.FullPath())
	if err != nil {
		o.hashState = hashFailed
		o.hashErr = err
		return "", err
	}
	o.hash = h
	o.hashState = hashKnown
	return h, nil
}

// SetChildren 一次性挂载子节点，重复挂载返回 ErrAlreadyPopulated
func (o *Object) SetChildren(children []*Object) error {
	if o.kind != KindDir {
		return fmt.Errorf("%w: children of %s %q", ErrWrongKind, o.kind, o.FullPath())
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.populated {
		return fmt.Errorf("%w: %q", ErrAlreadyPopulated, o.FullPath())
	}
	return o.setChildrenLocked(children)
}

func (o *Object) setChildrenLocked(children []*Object) error {
	index := make(map[string]int, len(children))
	for i, c := range children {
		if _, dup := index[c.name]; dup {
			return fmt.Errorf("%w: %q in %q", ErrDuplicateChild, c.name, o.FullPath())
		}
		index[c.name] = i
	}
	o.children = children
	o.index = index
	o.populated = true
	return nil
}

// Children 返回目录的子节点
// 真实目录在第一次调用时读盘，之后返回缓存；非目录返回空
func (o *Object) Children() ([]*Object, error) {
	if o.kind != KindDir {
		return nil, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.released {
		return nil, fmt.Errorf("%w: %q", ErrReleased, o.FullPath())
	}
	if o.populated {
		return o.children, nil
	}
	if !o.live {
		// 解码得到的目录如果没挂载过子节点，视为空目录
		o.populated = true
		return nil, nil
	}

	children, err := readDir(o.FullPath())
	if serr := o.setChildrenLocked(children); serr != nil && err == nil {
		err = serr
	}
	return o.children, err
}

// Child 按名称查找已经挂载的子节点
func (o *Object) Child(name string) (*Object, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	i, ok := o.index[name]
	if !ok {
		return nil, false
	}
	return o.children[i], true
}

// Release 释放子节点引用，之后该对象只读，不能再列目录
func (o *Object) Release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.children = nil
	o.index = nil
	o.released = true
}

func (o *Object) Released() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.released
}

func (o *Object) String() string {
	return fmt.Sprintf("%s(%s)", o.kind, o.FullPath())
}
