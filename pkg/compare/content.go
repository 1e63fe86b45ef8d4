package compare

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"dirscan/pkg/fsobj"
)

// sameContent 判断两个大小相同的普通文件内容是否一致
//
// 两侧都在磁盘上且 Hash 未知时直接逐块比较，不相同的大文件不需要读完；
// 否则使用已有的或者惰性计算的 Hash。
func sameContent(left, right *fsobj.Object) (bool, error) {
	if left.IsLive() && right.IsLive() && !(left.HashKnown() && right.HashKnown()) {
		return equalFiles(left, right)
	}

	lh, err := left.Hash()
	if err != nil {
		return false, err
	}
	rh, err := right.Hash()
	if err != nil {
		return false, err
	}
	return lh == rh, nil
}

func equalFiles(left, right *fsobj.Object) (bool, error) {
	lf, err := left.Open()
	if err != nil {
		return false, err
	}
	defer lf.Close()

	rf, err := right.Open()
	if err != nil {
		return false, err
	}
	defer rf.Close()

	lbuf := make([]byte, fsobj.HashChunkSize)
	rbuf := make([]byte, fsobj.HashChunkSize)
	for {
		ln, lerr := io.ReadFull(lf, lbuf)
		rn, rerr := io.ReadFull(rf, rbuf)
		if lerr != nil && !isEOF(lerr) {
			return false, readError(left, lerr)
		}
		if rerr != nil && !isEOF(rerr) {
			return false, readError(right, rerr)
		}
		if !bytes.Equal(lbuf[:ln], rbuf[:rn]) {
			return false, nil
		}
		if isEOF(lerr) || isEOF(rerr) {
			// 长度不同时上面的比较已经返回
			return isEOF(lerr) && isEOF(rerr), nil
		}
	}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func readError(o *fsobj.Object, err error) error {
	return &fsobj.PathError{Op: "read", Path: o.FullPath(), Kind: fsobj.ErrIO, Err: fmt.Errorf("compare content: %w", err)}
}
