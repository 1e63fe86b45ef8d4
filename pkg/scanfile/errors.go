package scanfile

import (
	"errors"
	"fmt"
)

var (
	ErrFormat      = errors.New("malformed scan file")
	ErrVersion     = errors.New("unsupported scan file version")
	ErrOrphan      = errors.New("orphan record")
	ErrNotScanFile = errors.New("not a scan file")
	ErrNoSuchDir   = errors.New("no such directory in scan file")
)

// FormatError 指出解码失败的位置
// 它总是展开为 ErrFormat，版本和孤儿记录错误额外展开为 ErrVersion / ErrOrphan
type FormatError struct {
	Name   string // 文件名，可能为空
	Line   int
	Reason string
	Kind   error
}

func (e *FormatError) Error() string {
	name := e.Name
	if name == "" {
		name = "<stream>"
	}
	return fmt.Sprintf("%s:%d: %s", name, e.Line, e.Reason)
}

func (e *FormatError) Unwrap() []error {
	if e.Kind != nil {
		return []error{ErrFormat, e.Kind}
	}
	return []error{ErrFormat}
}
