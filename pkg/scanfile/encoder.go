package scanfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"dirscan/pkg/fsobj"
	"dirscan/pkg/walker"
)

const (
	Magic   = "#!ds"
	Version = 1
)

// Header 是 scan file 的第一行 (不含换行)
var Header = fmt.Sprintf("%s:v%d", Magic, Version)

// Encoder 把单棵树的先序遍历写成 scan file
type Encoder struct {
	w           *bufio.Writer
	wroteHeader bool
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w)}
}

// WriteHeader 写入文件头，重复调用无副作用
func (e *Encoder) WriteHeader() error {
	if e.wroteHeader {
		return nil
	}
	e.wroteHeader = true
	_, err := e.w.WriteString(Header + "\n")
	return err
}

// Encode 写入一条记录
// path 是相对于根的 '/' 分隔路径，根为 "."；普通文件的 Hash 在需要时计算
func (e *Encoder) Encode(path string, o *fsobj.Object) error {
	_, err := e.encode(path, o)
	return err
}

// encode 返回记录是否已写入；Hash 失败时记录照样写入
func (e *Encoder) encode(path string, o *fsobj.Object) (bool, error) {
	if o.IsMissing() {
		return false, fmt.Errorf("%w: cannot encode missing object %q", fsobj.ErrWrongKind, path)
	}
	hash := ""
	var hashErr error
	if o.Kind() == fsobj.KindFile {
		h, err := o.Hash()
		if err != nil {
			// 仍然写入记录，只是没有 Hash，读回后无法比较内容
			hashErr = err
		} else {
			hash = h.String()
		}
	}
	if err := e.write(path, o, hash); err != nil {
		return false, errors.Join(err, hashErr)
	}
	return true, hashErr
}

func (e *Encoder) write(path string, o *fsobj.Object, hash string) error {
	if err := e.WriteHeader(); err != nil {
		return err
	}
	meta := o.Meta()

	// type,size,mode,uid,gid,mtime,extra,path
	buf := make([]byte, 0, 128)
	buf = append(buf, o.Kind().Char(), ',')
	if o.Kind() == fsobj.KindFile {
		buf = strconv.AppendInt(buf, o.Size(), 10)
	}
	buf = append(buf, ',')
	buf = strconv.AppendUint(buf, uint64(meta.Mode), 8)
	buf = append(buf, ',')
	buf = strconv.AppendUint(buf, uint64(meta.UID), 10)
	buf = append(buf, ',')
	buf = strconv.AppendUint(buf, uint64(meta.GID), 10)
	buf = append(buf, ',')
	buf = appendMTime(buf, meta.MTime)
	buf = append(buf, ',')
	switch o.Kind() {
	case fsobj.KindFile:
		buf = append(buf, hash...)
	case fsobj.KindSymlink:
		buf = append(buf, escape(o.LinkTarget())...)
	}
	buf = append(buf, ',')
	buf = append(buf, escape(path)...)
	buf = append(buf, '\n')

	_, err := e.w.Write(buf)
	return err
}

// appendMTime 写入定宽十六进制秒数，1970 年之前的时间带 '-' 前缀
func appendMTime(buf []byte, mtime int64) []byte {
	u := uint64(mtime)
	if mtime < 0 {
		buf = append(buf, '-')
		u = uint64(-mtime)
	}
	return fmt.Appendf(buf, "%08x", u)
}

func (e *Encoder) Flush() error {
	return e.w.Flush()
}

// EncodeWalk 把一次单根遍历写入 w
// 被排除的条目不写入；遍历中的错误和 Hash 失败不会中断写入，最后合并返回
// 某个目录的记录没能写入时，它的整棵子树也一并跳过，输出始终是合法的先序流
func EncodeWalk(w io.Writer, seq iter.Seq2[walker.Entry, error]) error {
	enc := NewEncoder(w)
	if err := enc.WriteHeader(); err != nil {
		return err
	}

	var errs []error
	var dropped []string
	for entry, err := range seq {
		if err != nil {
			errs = append(errs, err)
		}
		if underAny(entry.Path, dropped) {
			continue
		}
		if len(entry.Objects) != 1 {
			if err == nil {
				errs = append(errs, fmt.Errorf("encode %q: expected a single tree, got %d", entry.Path, len(entry.Objects)))
			}
			continue
		}
		o := entry.Objects[0]
		if o.IsMissing() || o.Excluded() {
			continue
		}
		written, err := enc.encode(entry.Path, o)
		if err != nil {
			errs = append(errs, err)
		}
		if !written && o.IsDir() {
			dropped = append(dropped, entry.Path)
		}
	}

	if err := enc.Flush(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// underAny 判断 path 是否位于某个 dirs 之下 (不含自身)
func underAny(path string, dirs []string) bool {
	for _, d := range dirs {
		if d == "." || strings.HasPrefix(path, d+"/") {
			return true
		}
	}
	return false
}
