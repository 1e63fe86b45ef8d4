//go:build !unix

package fsobj

import (
	"fmt"
	"io/fs"
	"os"
)

// lstat 的通用实现：没有 uid/gid/dev 信息
func lstat(path string) (Kind, Meta, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return 0, Meta{}, wrapPathError("lstat", path, err)
	}

	m := fi.Mode()
	var kind Kind
	switch {
	case m.IsRegular():
		kind = KindFile
	case m&fs.ModeDir != 0:
		kind = KindDir
	case m&fs.ModeSymlink != 0:
		kind = KindSymlink
	case m&fs.ModeDevice != 0 && m&fs.ModeCharDevice != 0:
		kind = KindCharDev
	case m&fs.ModeDevice != 0:
		kind = KindBlockDev
	case m&fs.ModeNamedPipe != 0:
		kind = KindFifo
	case m&fs.ModeSocket != 0:
		kind = KindSocket
	default:
		return 0, Meta{}, &PathError{
			Op: "lstat", Path: path, Kind: ErrUnsupportedType,
			Err: fmt.Errorf("mode %v", m),
		}
	}

	perm := uint32(m.Perm())
	if m&fs.ModeSetuid != 0 {
		perm |= 0o4000
	}
	if m&fs.ModeSetgid != 0 {
		perm |= 0o2000
	}
	if m&fs.ModeSticky != 0 {
		perm |= 0o1000
	}

	return kind, Meta{
		Mode:  perm,
		MTime: fi.ModTime().Unix(),
		Size:  fi.Size(),
	}, nil
}
