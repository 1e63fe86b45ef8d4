// pkg/types/common.go
package types

import (
	"encoding/hex"
	"fmt"
)

// Hash 代表文件内容的摘要 (SHA256 Hex String)
// 这是一个"值对象"，应当是不可变的。
type Hash string

// HashLen 是 Hex 编码后的长度
const HashLen = 64

func (h Hash) String() string { return string(h) }

func (h Hash) IsZero() bool { return h == "" }

// IsValid 要求长度正确且全部是小写 Hex 字符
func (h Hash) IsValid() bool {
	if len(h) != HashLen {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Short 返回用于展示的前 12 位
func (h Hash) Short() string {
	if len(h) < 12 {
		return string(h)
	}
	return string(h[:12])
}

// ParseHash 校验并规范化一个外部输入的 Hash (例如 scan file 中的字段)
func ParseHash(s string) (Hash, error) {
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid hash %q: %w", s, err)
	}
	h := Hash(s)
	if !h.IsValid() {
		return "", fmt.Errorf("invalid hash %q: want %d lower-case hex digits", s, HashLen)
	}
	return h, nil
}
