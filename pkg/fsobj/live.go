package fsobj

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dirscan/pkg/types"
)

// HashChunkSize 是计算 Hash 时每次读取的字节数
const HashChunkSize = 16 * 4096

// EmptyHash 是空内容的 SHA256
var EmptyHash = func() types.Hash {
	sum := sha256.Sum256(nil)
	return types.Hash(hex.EncodeToString(sum[:]))
}()

// FromPath 对 path 执行 lstat，返回与条目类型对应的对象
// 目录的子节点不会在这里读取，见 Children
func FromPath(path string) (*Object, error) {
	kind, meta, err := lstat(path)
	if err != nil {
		return nil, err
	}

	// 文件系统根 ("/") 的 Base 是分隔符本身，名字统一为 "."
	name := filepath.Base(path)
	if strings.ContainsRune(name, filepath.Separator) {
		name = "."
	}
	o := &Object{
		kind:   kind,
		name:   name,
		parent: filepath.Dir(path),
		meta:   meta,
		live:   true,
	}
	switch kind {
	case KindSymlink:
		target, err := os.Readlink(path)
		if err != nil {
			return nil, wrapPathError("readlink", path, err)
		}
		o.link = target
	case KindFile:
	default:
		o.meta.Size = 0
	}
	return o, nil
}

// fromDirEntry 创建 dir 下名为 name 的子对象
// 子对象的 parent 直接使用 dir，避免 filepath.Dir 对特殊名字的歧义
func fromDirEntry(dir, name string) (*Object, error) {
	o, err := FromPath(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	o.name = name
	o.parent = dir
	return o, nil
}

// readDir 读取目录并为每个条目创建对象
// 单个条目失败不影响其它条目，所有错误通过 errors.Join 一并返回
func readDir(dir string) ([]*Object, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, wrapPathError("open", dir, err)
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, wrapPathError("readdir", dir, err)
	}

	var errs []error
	children := make([]*Object, 0, len(names))
	for _, name := range names {
		child, err := fromDirEntry(dir, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		children = append(children, child)
	}
	return children, errors.Join(errs...)
}

// hashFile 流式读取整个文件并计算 SHA256
func hashFile(path string) (types.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", hashError(path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, HashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", hashError(path, err)
	}
	return types.Hash(hex.EncodeToString(h.Sum(nil))), nil
}

func hashError(path string, err error) error {
	return &PathError{Op: "hash", Path: path, Kind: ErrHashFailed, Err: err}
}

// Open 打开真实普通文件的内容，用于逐字节比较
func (o *Object) Open() (io.ReadCloser, error) {
	if o.kind != KindFile {
		return nil, fmt.Errorf("%w: open %s %q", ErrWrongKind, o.kind, o.FullPath())
	}
	if !o.live {
		return nil, fmt.Errorf("%w: %q has no readable content", ErrWrongKind, o.FullPath())
	}
	f, err := os.Open(o.FullPath())
	if err != nil {
		return nil, wrapPathError("open", o.FullPath(), err)
	}
	return f, nil
}
