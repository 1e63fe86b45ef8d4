package fsobj

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dirscan/pkg/types"

	"github.com/stretchr/testify/require"
)

// sha 计算测试期望的 Hash
func sha(data string) types.Hash {
	sum := sha256.Sum256([]byte(data))
	return types.Hash(hex.EncodeToString(sum[:]))
}

// mustWrite 在 dir 下写入文件，必要时创建父目录
func mustWrite(t *testing.T, dir, rel, data string) string {
	t.Helper()
	p := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func mustFromPath(t *testing.T, path string) *Object {
	t.Helper()
	o, err := FromPath(path)
	require.NoError(t, err)
	return o
}

func mustTime(t *testing.T, sec, nsec int64) time.Time {
	t.Helper()
	return time.Unix(sec, nsec)
}
