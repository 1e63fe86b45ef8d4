package fsobj

import (
	"errors"
	"io/fs"
	"syscall"
)

var (
	ErrNotFound         = errors.New("no such file or directory")
	ErrNotADirectory    = errors.New("not a directory")
	ErrPermissionDenied = errors.New("permission denied")
	ErrIO               = errors.New("i/o failure")
	ErrUnsupportedType  = errors.New("unsupported file type")
	ErrHashFailed       = errors.New("hash computation failed")

	// 以下是调用方的逻辑错误
	ErrWrongKind        = errors.New("operation not supported by this kind of object")
	ErrAlreadyPopulated = errors.New("directory children already populated")
	ErrReleased         = errors.New("object has been released")
	ErrNoHash           = errors.New("hash not available")
	ErrDuplicateChild   = errors.New("duplicate child name")
)

// PathError 记录文件系统操作失败的路径
// 它同时展开为领域错误 (ErrNotFound 等) 和底层的系统错误
type PathError struct {
	Op   string
	Path string
	Kind error // 领域错误 (Sentinel)
	Err  error // 底层错误
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// wrapPathError 根据底层错误选择对应的领域错误
func wrapPathError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Kind: classify(err), Err: err}
}

func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, syscall.ENOTDIR):
		return ErrNotADirectory
	default:
		return ErrIO
	}
}
