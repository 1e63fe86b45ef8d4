package compare

import (
	"errors"
	"fmt"
	"time"

	"dirscan/pkg/fsobj"
)

// DefaultTimeSlack 吸收不同文件系统时间戳精度的差异
const DefaultTimeSlack = time.Second

var ErrAmbiguousRename = errors.New("ambiguous rename: several files share the same content")

// Options 控制哪些差异需要报告
type Options struct {
	TimeSlack time.Duration // <= 0 时使用 DefaultTimeSlack

	IgnoreTime bool
	IgnoreUID  bool
	IgnoreGID  bool
	IgnoreMode bool

	// IgnoreTimeOnly: 如果时间是唯一的差异，视为相同
	IgnoreTimeOnly bool

	// NoContent: 不比较文件内容，只比较大小
	NoContent bool
}

// ParseIgnore 解析 "tugp" 风格的忽略标记
// t: 时间, u: UID, g: GID, p: 权限
func (o *Options) ParseIgnore(flags string) error {
	for _, c := range flags {
		switch c {
		case 't':
			o.IgnoreTime = true
		case 'u':
			o.IgnoreUID = true
		case 'g':
			o.IgnoreGID = true
		case 'p':
			o.IgnoreMode = true
		default:
			return fmt.Errorf("unknown ignore flag %q", c)
		}
	}
	return nil
}

// Result 是一个元组的比较结果
type Result struct {
	Class   Class
	Changes Change
	Detail  string
	Err     error

	// Pairs: N>2 时第 i 项是第 i 侧与第 0 侧的比较结果 (第 0 项为空)
	Pairs []Result
	// Related: 重命名的另一端，或者重复文件的其它位置
	Related []Location
}

// Comparer 对遍历产出的对象元组分类
// 它从不递归：目录的差异通过遍历产出的子路径体现
type Comparer struct {
	opts  Options
	index *HashIndex
}

func New(opts Options) *Comparer {
	if opts.TimeSlack <= 0 {
		opts.TimeSlack = DefaultTimeSlack
	}
	return &Comparer{opts: opts}
}

// WithIndex 启用重命名 / 重复文件的报告，见 CompareEntry
func (c *Comparer) WithIndex(idx *HashIndex) *Comparer {
	return &Comparer{opts: c.opts, index: idx}
}

// Compare 对一个对象元组分类
func (c *Comparer) Compare(objs []*fsobj.Object) Result {
	switch len(objs) {
	case 0:
		return Result{Class: Error, Err: errors.New("compare: empty tuple"), Detail: "nothing to compare"}
	case 1:
		return c.single(objs[0])
	case 2:
		return c.pair(objs[0], objs[1])
	}

	// N>2: 每一侧都与第 0 侧比较，取优先级最高的结论
	res := Result{Class: Equal, Detail: "equal", Pairs: make([]Result, len(objs))}
	for i := 1; i < len(objs); i++ {
		p := c.pair(objs[0], objs[i])
		res.Pairs[i] = p
		res.Changes |= p.Changes
		if precedence[p.Class] > precedence[res.Class] {
			res.Class = p.Class
			res.Detail = fmt.Sprintf("side %d: %s", i, p.Detail)
			res.Err = p.Err
		}
	}
	return res
}

func (c *Comparer) single(o *fsobj.Object) Result {
	if o.Excluded() {
		return Result{Class: Excluded, Detail: "excluded"}
	}
	if err := o.Err(); err != nil {
		return Result{Class: Error, Err: err, Detail: err.Error()}
	}
	return Result{Class: Scanned, Detail: "scan"}
}

func (c *Comparer) pair(left, right *fsobj.Object) Result {
	// 1. 排除优先，且不再做任何比较
	switch {
	case left.Excluded() && right.Excluded():
		return Result{Class: Excluded, Detail: "excluded"}
	case left.Excluded() && right.IsMissing():
		return Result{Class: Excluded, Detail: "excluded, only in left"}
	case right.Excluded() && left.IsMissing():
		return Result{Class: Excluded, Detail: "excluded, only in right"}
	case left.Excluded():
		return Result{Class: Excluded, Detail: fmt.Sprintf("%s only in right, left is excluded", right.Kind())}
	case right.Excluded():
		return Result{Class: Excluded, Detail: fmt.Sprintf("%s only in left, right is excluded", left.Kind())}
	}

	// 2. 无法获取的一侧不能当作相同
	if err := errors.Join(left.Err(), right.Err()); err != nil {
		return Result{Class: Error, Err: err, Detail: err.Error()}
	}

	// 3. 存在性
	switch {
	case left.IsMissing() && right.IsMissing():
		return Result{Class: Equal, Detail: "absent on both sides"}
	case left.IsMissing():
		return Result{Class: RightOnly, Detail: fmt.Sprintf("%s only in right", right.Kind())}
	case right.IsMissing():
		return Result{Class: LeftOnly, Detail: fmt.Sprintf("%s only in left", left.Kind())}
	}

	// 4. 类型
	if left.Kind() != right.Kind() {
		return Result{
			Class:  TypeChanged,
			Detail: fmt.Sprintf("Different type, %s in left and %s in right", left.Kind(), right.Kind()),
		}
	}

	// 目录只比较结构
	if left.IsDir() {
		return Result{Class: Equal, Detail: "equal"}
	}

	// 5. 元数据与内容
	changes := c.metadata(left.Meta(), right.Meta())
	switch left.Kind() {
	case fsobj.KindFile:
		if left.Size() != right.Size() {
			changes |= ChangeSize
		} else if !c.opts.NoContent {
			same, err := sameContent(left, right)
			if err != nil {
				return Result{Class: Error, Changes: changes, Err: err, Detail: "cannot compare: " + err.Error()}
			}
			if !same {
				changes |= ChangeContent
			}
		}
	case fsobj.KindSymlink:
		if left.LinkTarget() != right.LinkTarget() {
			changes |= ChangeLink
		}
	}

	if c.opts.IgnoreTimeOnly && changes&^(ChangeNewer|ChangeOlder) == 0 {
		changes = 0
	}

	switch {
	case changes&contentChanges != 0:
		return Result{Class: ContentChanged, Changes: changes, Detail: fmt.Sprintf("%s changed: %s", left.Kind(), changes)}
	case changes != 0:
		return Result{Class: MetadataChanged, Changes: changes, Detail: fmt.Sprintf("%s changed: %s", left.Kind(), changes)}
	}
	return Result{Class: Equal, Detail: "equal"}
}

func (c *Comparer) metadata(l, r fsobj.Meta) Change {
	var changes Change
	if !c.opts.IgnoreTime {
		// 以秒比较，相差几百年的 mtime 也不会溢出 Duration
		delta := l.MTime - r.MTime
		slack := int64(c.opts.TimeSlack / time.Second)
		if delta > slack {
			changes |= ChangeNewer
		}
		if delta < -slack {
			changes |= ChangeOlder
		}
	}
	if !c.opts.IgnoreMode && l.Mode != r.Mode {
		changes |= ChangeMode
	}
	if !c.opts.IgnoreUID && l.UID != r.UID {
		changes |= ChangeUID
	}
	if !c.opts.IgnoreGID && l.GID != r.GID {
		changes |= ChangeGID
	}
	return changes
}
