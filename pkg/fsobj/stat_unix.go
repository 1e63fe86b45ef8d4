//go:build unix

package fsobj

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// lstat 不跟随符号链接，类型由 mode 的 S_IFMT 位决定
func lstat(path string) (Kind, Meta, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, Meta{}, wrapPathError("lstat", path, err)
	}

	mode := uint32(st.Mode)
	var kind Kind
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		kind = KindFile
	case unix.S_IFDIR:
		kind = KindDir
	case unix.S_IFLNK:
		kind = KindSymlink
	case unix.S_IFBLK:
		kind = KindBlockDev
	case unix.S_IFCHR:
		kind = KindCharDev
	case unix.S_IFIFO:
		kind = KindFifo
	case unix.S_IFSOCK:
		kind = KindSocket
	default:
		return 0, Meta{}, &PathError{
			Op: "lstat", Path: path, Kind: ErrUnsupportedType,
			Err: fmt.Errorf("mode %o", mode),
		}
	}

	return kind, Meta{
		Mode:  mode & PermBits,
		UID:   st.Uid,
		GID:   st.Gid,
		MTime: int64(st.Mtim.Sec),
		Dev:   uint64(st.Dev),
		Size:  st.Size,
	}, nil
}
