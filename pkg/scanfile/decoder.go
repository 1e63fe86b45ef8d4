package scanfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dirscan/pkg/fsobj"
	"dirscan/pkg/types"
)

// fieldCount: type,size,mode,uid,gid,mtime,extra,path
const fieldCount = 8

// pendingDir 收集一个目录的子节点，解码结束后一次性挂载
type pendingDir struct {
	obj      *fsobj.Object
	children []*fsobj.Object
	names    map[string]struct{}
}

// Decoder 从 scan file 重建目录树
// 记录必须是先序的：目录自身的记录出现在它的所有后代之前
type Decoder struct {
	r    *bufio.Reader
	name string
	line int

	root  *fsobj.Object
	dirs  map[string]*pendingDir
	order []*pendingDir
}

// NewDecoder 创建解码器，name 用于错误信息，同时作为根目录对象的名称
func NewDecoder(r io.Reader, name string) *Decoder {
	return &Decoder{
		r:    bufio.NewReader(r),
		name: name,
		dirs: make(map[string]*pendingDir),
	}
}

func (d *Decoder) fail(kind error, format string, args ...any) error {
	return &FormatError{Name: d.name, Line: d.line, Reason: fmt.Sprintf(format, args...), Kind: kind}
}

// readLine 返回下一行 (不含行尾)，io.EOF 表示没有更多内容
func (d *Decoder) readLine() (string, error) {
	s, err := d.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	d.line++
	return strings.TrimRight(s, "\r\n"), nil
}

// Decode 读取整个流并返回根目录
// 任何错误都会使整个解码失败，不会返回部分结果
func (d *Decoder) Decode() (*fsobj.Object, error) {
	if d.root != nil {
		return nil, errors.New("scanfile: decoder already used")
	}

	// 1. 文件头
	header, err := d.readLine()
	if errors.Is(err, io.EOF) {
		d.line = 1
		return nil, d.fail(ErrNotScanFile, "missing header")
	}
	if err != nil {
		return nil, err
	}
	if err := checkHeader(header); err != nil {
		return nil, d.annotate(err)
	}

	// 2. 逐条记录
	for {
		line, err := d.readLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if line == "" || line[0] == '#' {
			continue
		}
		if err := d.record(line); err != nil {
			return nil, err
		}
	}

	// 3. 只有文件头：空的根目录
	if d.root == nil {
		root, err := fsobj.NewDecoded(fsobj.Record{Kind: fsobj.KindDir, Name: d.rootName()})
		if err != nil {
			return nil, err
		}
		d.root = root
		d.dirs["."] = &pendingDir{obj: root}
		d.order = append(d.order, d.dirs["."])
	}

	// 4. 挂载子节点
	for _, p := range d.order {
		if err := p.obj.SetChildren(p.children); err != nil {
			return nil, err
		}
	}
	return d.root, nil
}

// Dir 返回已解码的子目录，rel 是相对于根的路径
func (d *Decoder) Dir(rel string) (*fsobj.Object, bool) {
	rel = strings.TrimSuffix(strings.TrimPrefix(rel, "./"), "/")
	if rel == "" {
		rel = "."
	}
	p, ok := d.dirs[rel]
	if !ok {
		return nil, false
	}
	return p.obj, true
}

func (d *Decoder) rootName() string {
	if d.name == "" {
		return "."
	}
	return d.name
}

func (d *Decoder) annotate(err error) error {
	var fe *FormatError
	if errors.As(err, &fe) {
		fe.Name = d.name
		fe.Line = d.line
	}
	return err
}

func checkHeader(line string) error {
	prefix := Magic + ":v"
	if !strings.HasPrefix(line, prefix) {
		return &FormatError{Reason: "malformed header", Kind: ErrNotScanFile}
	}
	ver := strings.TrimSpace(line[len(prefix):])
	if n, err := strconv.Atoi(ver); err != nil || n != Version {
		return &FormatError{Reason: fmt.Sprintf("unsupported version 'v%s'", ver), Kind: ErrVersion}
	}
	return nil
}

func (d *Decoder) record(line string) error {
	fields := strings.Split(line, ",")
	if len(fields) != fieldCount {
		return d.fail(nil, "missing or excess fields (got %d, want %d)", len(fields), fieldCount)
	}

	// 1. 解析各字段
	if len(fields[0]) != 1 {
		return d.fail(nil, "invalid type field %q", fields[0])
	}
	kind, err := fsobj.ParseKind(fields[0][0])
	if err != nil {
		return d.fail(nil, "%v", err)
	}

	var meta fsobj.Meta
	size, err := parseNumber(fields[1], 10, 63)
	if err != nil {
		return d.fail(nil, "size field: %v", err)
	}
	meta.Size = int64(size)
	mode, err := parseNumber(fields[2], 8, 32)
	if err != nil {
		return d.fail(nil, "mode field: %v", err)
	}
	meta.Mode = uint32(mode)
	uid, err := parseNumber(fields[3], 10, 32)
	if err != nil {
		return d.fail(nil, "uid field: %v", err)
	}
	meta.UID = uint32(uid)
	gid, err := parseNumber(fields[4], 10, 32)
	if err != nil {
		return d.fail(nil, "gid field: %v", err)
	}
	meta.GID = uint32(gid)
	mtime, err := parseMTime(fields[5])
	if err != nil {
		return d.fail(nil, "mtime field: %v", err)
	}
	meta.MTime = mtime

	rec := fsobj.Record{Kind: kind, Meta: meta}
	switch kind {
	case fsobj.KindFile:
		if fields[6] != "" {
			h, err := types.ParseHash(fields[6])
			if err != nil {
				return d.fail(nil, "hash field: %v", err)
			}
			rec.Hash = h
		}
	case fsobj.KindSymlink:
		link, err := unescape(fields[6])
		if err != nil {
			return d.fail(nil, "link field: %v", err)
		}
		rec.Link = link
	}

	path, err := unescape(fields[7])
	if err != nil {
		return d.fail(nil, "path field: %v", err)
	}
	path = strings.TrimPrefix(path, "./")
	if path == "" {
		return d.fail(nil, "path field cannot be empty")
	}

	// 2. 根记录必须是第一条
	if d.root == nil {
		if path != "." || kind != fsobj.KindDir {
			return d.fail(nil, "malformed top-level entry %q, want directory '.'", path)
		}
		rec.Name = d.rootName()
		root, err := fsobj.NewDecoded(rec)
		if err != nil {
			return d.fail(nil, "%v", err)
		}
		d.root = root
		p := &pendingDir{obj: root, names: make(map[string]struct{})}
		d.dirs["."] = p
		d.order = append(d.order, p)
		return nil
	}
	if path == "." {
		return d.fail(nil, "'.' already exists in file")
	}

	// 3. 找到父目录
	parentPath, name := ".", path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		parentPath, name = path[:i], path[i+1:]
	}
	if name == "" || name == "." || name == ".." {
		return d.fail(nil, "invalid file name in %q", path)
	}
	parent, ok := d.dirs[parentPath]
	if !ok {
		return d.fail(ErrOrphan, "'%s' is an orphan", path)
	}
	if parent.names == nil {
		parent.names = make(map[string]struct{})
	}
	if _, dup := parent.names[name]; dup {
		return d.fail(nil, "'%s' already exists in file", path)
	}

	rec.Name = name
	rec.Parent = parent.obj.FullPath()
	obj, err := fsobj.NewDecoded(rec)
	if err != nil {
		return d.fail(nil, "%v", err)
	}
	parent.names[name] = struct{}{}
	parent.children = append(parent.children, obj)

	if kind == fsobj.KindDir {
		p := &pendingDir{obj: obj, names: make(map[string]struct{})}
		d.dirs[path] = p
		d.order = append(d.order, p)
	}
	return nil
}

// parseMTime 解析十六进制秒数，允许 '-' 前缀
func parseMTime(s string) (int64, error) {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
		if s == "" {
			return 0, fmt.Errorf("missing digits after '-'")
		}
	}
	u, err := parseNumber(s, 16, 63)
	if err != nil {
		return 0, err
	}
	if neg {
		return -int64(u), nil
	}
	return int64(u), nil
}

// parseNumber 解析非负整数，空字段视为 0
func parseNumber(s string, base, bits int) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, base, bits)
}
