package scanfile

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"dirscan/pkg/fsobj"
	"dirscan/pkg/walker"
)

// ReadFile 解码 scan file
// prefix 非空时返回该子目录而不是根目录
func ReadFile(path, prefix string) (*fsobj.Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scan file: %w", err)
	}
	defer f.Close()

	dec := NewDecoder(f, filepath.Base(path))
	root, err := dec.Decode()
	if err != nil {
		return nil, err
	}
	if prefix == "" || prefix == "." {
		return root, nil
	}

	dir, ok := dec.Dir(prefix)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrNoSuchDir, prefix, path)
	}
	return dir, nil
}

// IsScanFile 检查 path 是否是一个以 scan file 文件头开始的普通文件
// 版本号不在这里检查，不支持的版本由 ReadFile 报错
func IsScanFile(path string) bool {
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	line, err := bufio.NewReader(io.LimitReader(f, 64)).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.HasPrefix(line, Magic+":v")
}

// errWriter 记录第一次写失败，用于区分 I/O 错误和遍历中的错误
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}

// WriteFile 把一次单根遍历原子地写入 path
// 先写临时文件再 Rename，保证 path 要么不存在，要么是完整的
// 遍历中的可恢复错误不会阻止写入，写完后一并返回
func WriteFile(path string, seq iter.Seq2[walker.Entry, error]) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, ".scan-*")
	if err != nil {
		return err
	}
	// Rename 成功之后这个删除是无害的
	defer os.Remove(tempFile.Name())

	w := &errWriter{w: tempFile}
	walkErr := EncodeWalk(w, seq)
	if w.err != nil {
		tempFile.Close()
		return fmt.Errorf("write scan file: %w", w.err)
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tempFile.Name(), 0644); err != nil {
		return err
	}
	if err := os.Rename(tempFile.Name(), path); err != nil {
		return err
	}
	return walkErr
}
