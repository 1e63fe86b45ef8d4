package fsobj

import "fmt"

// Kind 是文件对象的类型标签 (Tagged Variant)
// 取值即 scan file 中的单字符类型字段
type Kind byte

const (
	KindMissing  Kind = '-' // 只在其它树中存在的路径
	KindFile     Kind = 'f'
	KindSymlink  Kind = 'l'
	KindDir      Kind = 'd'
	KindBlockDev Kind = 'b'
	KindCharDev  Kind = 'c'
	KindFifo     Kind = 'p'
	KindSocket   Kind = 's'
)

// PresentKinds 列出所有真实存在的类型，KindMissing 被刻意排除
var PresentKinds = []Kind{
	KindFile, KindDir, KindSymlink, KindBlockDev, KindCharDev, KindFifo, KindSocket,
}

// Char 返回 scan file 使用的类型字符
func (k Kind) Char() byte { return byte(k) }

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing file"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symbolic link"
	case KindDir:
		return "directory"
	case KindBlockDev:
		return "block device"
	case KindCharDev:
		return "char device"
	case KindFifo:
		return "fifo"
	case KindSocket:
		return "socket"
	default:
		return fmt.Sprintf("kind(%q)", byte(k))
	}
}

// Present 报告该类型是否代表一个真实存在的条目
func (k Kind) Present() bool {
	return k != KindMissing && k.valid()
}

func (k Kind) valid() bool {
	switch k {
	case KindMissing, KindFile, KindSymlink, KindDir, KindBlockDev, KindCharDev, KindFifo, KindSocket:
		return true
	}
	return false
}

// ParseKind 解析 scan file 中的类型字符，Missing 不允许出现在持久化数据里
func ParseKind(c byte) (Kind, error) {
	k := Kind(c)
	if !k.Present() {
		return 0, fmt.Errorf("%w: unknown object type %q", ErrUnsupportedType, c)
	}
	return k, nil
}
