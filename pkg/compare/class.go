package compare

import "strings"

// Class 是一个元组的比较结论
type Class uint8

const (
	Equal Class = iota
	LeftOnly
	RightOnly
	TypeChanged
	MetadataChanged
	ContentChanged
	Excluded
	Error

	// 单棵树
	Scanned
	Duplicate

	// 依赖 HashIndex
	LeftRenamed
	RightRenamed
)

var classNames = [...]string{
	Equal:           "equal",
	LeftOnly:        "left_only",
	RightOnly:       "right_only",
	TypeChanged:     "type_changed",
	MetadataChanged: "metadata_changed",
	ContentChanged:  "content_changed",
	Excluded:        "excluded",
	Error:           "error",
	Scanned:         "scanned",
	Duplicate:       "duplicate",
	LeftRenamed:     "left_renamed",
	RightRenamed:    "right_renamed",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// Marker 是文本报告中使用的单字符标记
func (c Class) Marker() string {
	switch c {
	case Equal, Scanned:
		return " "
	case LeftOnly:
		return "-"
	case RightOnly:
		return "+"
	case TypeChanged:
		return "T"
	case MetadataChanged:
		return "m"
	case ContentChanged:
		return "C"
	case Excluded:
		return "x"
	case Error:
		return "!"
	case Duplicate:
		return "D"
	case LeftRenamed, RightRenamed:
		return "R"
	}
	return "?"
}

// precedence 用于 N>2 时聚合各对结果，值越大越优先
var precedence = map[Class]int{
	Equal:           0,
	LeftOnly:        1,
	RightOnly:       2,
	LeftRenamed:     3,
	RightRenamed:    3,
	MetadataChanged: 4,
	ContentChanged:  5,
	TypeChanged:     6,
	Excluded:        7,
	Error:           8,
}

// Change 是具体差异的位集合
type Change uint16

const (
	ChangeNewer Change = 1 << iota // 左侧更新
	ChangeOlder                    // 右侧更新
	ChangeMode
	ChangeUID
	ChangeGID
	ChangeSize
	ChangeContent
	ChangeLink
)

const (
	metadataChanges = ChangeNewer | ChangeOlder | ChangeMode | ChangeUID | ChangeGID
	contentChanges  = ChangeSize | ChangeContent | ChangeLink
)

var changeNames = []struct {
	bit  Change
	name string
}{
	{ChangeNewer, "left is newer"},
	{ChangeOlder, "right is newer"},
	{ChangeMode, "permissions differs"},
	{ChangeUID, "UID differs"},
	{ChangeGID, "GID differs"},
	{ChangeSize, "size differs"},
	{ChangeContent, "contents differs"},
	{ChangeLink, "link differs"},
}

func (c Change) Has(bit Change) bool { return c&bit != 0 }

// Names 按固定顺序返回每个差异的描述
func (c Change) Names() []string {
	var parts []string
	for _, n := range changeNames {
		if c.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return parts
}

func (c Change) String() string {
	return strings.Join(c.Names(), ", ")
}
