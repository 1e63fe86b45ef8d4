package compare

import (
	"cmp"
	"errors"
	"iter"
	"slices"
	"sync"

	"dirscan/pkg/fsobj"
	"dirscan/pkg/types"
	"dirscan/pkg/walker"
)

// Location 是某个文件在某棵树中的位置
type Location struct {
	Tree int    `json:"tree"`
	Path string `json:"path"`
}

// Group 是一组内容相同的文件
type Group struct {
	Hash      types.Hash `json:"hash"`
	Locations []Location `json:"locations"`
}

type locKey struct {
	tree int
	path string
}

// HashIndex 按内容 Hash 索引普通文件
// 插入由互斥锁串行化，可以被多个 goroutine 同时写入
type HashIndex struct {
	mu     sync.RWMutex
	byHash map[types.Hash][]Location
	byPath map[locKey]types.Hash
}

func NewHashIndex() *HashIndex {
	return &HashIndex{
		byHash: make(map[types.Hash][]Location),
		byPath: make(map[locKey]types.Hash),
	}
}

// Add 记录一个文件，同一位置重复添加时以最后一次为准
func (x *HashIndex) Add(tree int, path string, hash types.Hash) {
	x.mu.Lock()
	defer x.mu.Unlock()

	key := locKey{tree, path}
	if old, ok := x.byPath[key]; ok {
		if old == hash {
			return
		}
		x.byHash[old] = slices.DeleteFunc(x.byHash[old], func(l Location) bool {
			return l.Tree == tree && l.Path == path
		})
	}
	x.byPath[key] = hash
	x.byHash[hash] = append(x.byHash[hash], Location{Tree: tree, Path: path})
}

// Lookup 返回某个 Hash 的所有位置 (副本)
func (x *HashIndex) Lookup(hash types.Hash) []Location {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.byHash[hash])
}

// HashAt 返回某个位置已经索引过的 Hash
func (x *HashIndex) HashAt(tree int, path string) (types.Hash, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	h, ok := x.byPath[locKey{tree, path}]
	return h, ok
}

func (x *HashIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byPath)
}

// Duplicates 返回同一棵树内有两个以上成员的 Hash 分组
// 分组内按路径排序，分组之间按第一个路径排序
func (x *HashIndex) Duplicates(tree int) []Group {
	return x.groups(func(l Location) bool { return l.Tree == tree })
}

// AllDuplicates 不区分树
func (x *HashIndex) AllDuplicates() []Group {
	return x.groups(func(Location) bool { return true })
}

func (x *HashIndex) groups(keep func(Location) bool) []Group {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []Group
	for h, locs := range x.byHash {
		var members []Location
		for _, l := range locs {
			if keep(l) {
				members = append(members, l)
			}
		}
		if len(members) < 2 {
			continue
		}
		slices.SortFunc(members, compareLocation)
		out = append(out, Group{Hash: h, Locations: members})
	}
	slices.SortFunc(out, func(a, b Group) int {
		return compareLocation(a.Locations[0], b.Locations[0])
	})
	return out
}

func compareLocation(a, b Location) int {
	return cmp.Or(cmp.Compare(a.Tree, b.Tree), cmp.Compare(a.Path, b.Path))
}

// RenameOf 在 otherTree 中寻找内容为 hash 的唯一候选
// 没有候选返回 ok=false；多个候选返回 ErrAmbiguousRename
func (x *HashIndex) RenameOf(hash types.Hash, otherTree int) (Location, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var found []Location
	for _, l := range x.byHash[hash] {
		if l.Tree == otherTree {
			found = append(found, l)
		}
	}
	switch len(found) {
	case 0:
		return Location{}, false, nil
	case 1:
		return found[0], true, nil
	default:
		return Location{}, false, ErrAmbiguousRename
	}
}

// IndexMode 决定 BuildIndex 收录哪些文件
type IndexMode uint8

const (
	// IndexRenames 只收录只在一侧存在的普通文件
	IndexRenames IndexMode = iota
	// IndexDuplicates 收录所有未被排除的普通文件
	IndexDuplicates
)

// BuildIndex 消费一次遍历，计算并索引普通文件的 Hash
// 遍历中的错误和 Hash 失败不会中断索引，最后合并返回
func BuildIndex(seq iter.Seq2[walker.Entry, error], mode IndexMode) (*HashIndex, error) {
	idx := NewHashIndex()
	var errs []error

	for e, err := range seq {
		if err != nil {
			errs = append(errs, err)
		}
		for i, o := range e.Objects {
			if o.Kind() != fsobj.KindFile || o.Excluded() {
				continue
			}
			if mode == IndexRenames && !oneSided(e.Objects, i) {
				continue
			}
			h, err := o.Hash()
			if err != nil {
				errs = append(errs, err)
				continue
			}
			idx.Add(e.Root+i, e.Path, h)
		}
	}
	return idx, errors.Join(errs...)
}

// oneSided: 其它侧至少有一个 Missing (且未被排除)
func oneSided(objs []*fsobj.Object, side int) bool {
	for i, o := range objs {
		if i != side && o.IsMissing() && !o.Excluded() {
			return true
		}
	}
	return false
}

// CompareEntry 在 Compare 的基础上结合 HashIndex 报告重复文件和重命名
func (c *Comparer) CompareEntry(e walker.Entry) Result {
	res := c.Compare(e.Objects)
	if c.index == nil {
		return res
	}

	switch {
	case len(e.Objects) == 1 && res.Class == Scanned && e.Objects[0].Kind() == fsobj.KindFile:
		h, ok := c.index.HashAt(e.Root, e.Path)
		if !ok {
			return res
		}
		locs := c.index.Lookup(h)
		if len(locs) < 2 {
			return res
		}
		res.Class = Duplicate
		res.Detail = "Duplicated entry"
		for _, l := range locs {
			if l.Tree != e.Root || l.Path != e.Path {
				res.Related = append(res.Related, l)
			}
		}
		slices.SortFunc(res.Related, compareLocation)

	case len(e.Objects) == 2 && (res.Class == LeftOnly || res.Class == RightOnly):
		side, other, renamed, where := 0, 1, LeftRenamed, "right"
		if res.Class == RightOnly {
			side, other, renamed, where = 1, 0, RightRenamed, "left"
		}
		if e.Objects[side].Kind() != fsobj.KindFile {
			return res
		}
		h, ok := c.index.HashAt(side, e.Path)
		if !ok {
			return res
		}
		loc, found, err := c.index.RenameOf(h, other)
		if err != nil {
			res.Err = err
			res.Detail += ", " + err.Error()
			return res
		}
		if found {
			res.Class = renamed
			res.Detail = "renamed, in " + where + " " + loc.Path
			res.Related = []Location{loc}
		}
	}
	return res
}
