package report

import (
	"fmt"
	"io"
	"strings"

	"dirscan/pkg/compare"
	"dirscan/pkg/walker"
)

// DiffRecord 是一个路径的比较结果，供各种输出格式使用
type DiffRecord struct {
	Path    string   `cbor:"p"`
	Class   string   `cbor:"c"`
	Marker  string   `cbor:"-"`
	Kinds   string   `cbor:"k"` // 每一侧一个类型字符，"-" 表示不存在
	Changes []string `cbor:"ch,omitempty"`
	Detail  string   `cbor:"d,omitempty"`
	Related []string `cbor:"r,omitempty"`
	Err     string   `cbor:"e,omitempty"`
}

// NewRecord 把遍历产出的一项和它的比较结果组合成记录
func NewRecord(e walker.Entry, res compare.Result) DiffRecord {
	var kinds strings.Builder
	for _, o := range e.Objects {
		kinds.WriteByte(o.Kind().Char())
	}

	rec := DiffRecord{
		Path:    e.Path,
		Class:   res.Class.String(),
		Marker:  res.Class.Marker(),
		Kinds:   kinds.String(),
		Changes: res.Changes.Names(),
		Detail:  res.Detail,
	}
	for _, l := range res.Related {
		rec.Related = append(rec.Related, l.Path)
	}
	if res.Err != nil {
		rec.Err = res.Err.Error()
	}
	return rec
}

// GroupRecord 是一组内容相同的文件
type GroupRecord struct {
	Hash  string   `cbor:"h"`
	Paths []string `cbor:"p"`
}

// NewGroupRecord 将 Location 格式化为路径；多棵树时路径前加上树的名称
func NewGroupRecord(g compare.Group, trees []string) GroupRecord {
	rec := GroupRecord{Hash: g.Hash.String()}
	for _, l := range g.Locations {
		p := l.Path
		if len(trees) > 1 && l.Tree < len(trees) {
			p = trees[l.Tree] + ":" + p
		}
		rec.Paths = append(rec.Paths, p)
	}
	return rec
}

// Printer 是报告的输出格式
type Printer interface {
	Record(DiffRecord) error
	Group(GroupRecord) error
	Flush() error
}

const (
	FormatText = "text"
	FormatCBOR = "cbor"
)

// New 按格式名称创建 Printer
func New(format string, w io.Writer) (Printer, error) {
	switch format {
	case "", FormatText:
		return NewText(w), nil
	case FormatCBOR:
		return NewCBOREncoder(w), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}
