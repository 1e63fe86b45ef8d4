package report

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// 规范化 (Canonical) 编码选项：相同的记录总是得到相同的字节
var encOptions = cbor.EncOptions{
	// 1. Map Key 排序
	Sort: cbor.SortCanonical,
	// 2. 浮点数固定 64 位
	ShortestFloat: cbor.ShortestFloatNone,
	// 3. 时间编码为 Unix 整数，不使用 Tag
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,
	// 4. 禁止不定长编码
	IndefLength: cbor.IndefLengthForbidden,
}

var em, _ = encOptions.EncMode()

// 解码选项主要用于测试和下游工具读回报告
var decOptions = cbor.DecOptions{
	// 限制容器大小和嵌套深度
	MaxArrayElements: 100000,
	MaxMapPairs:      1000,
	MaxNestedLevels:  16,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
}

var dm, _ = decOptions.DecMode()

// CBOREncoder 把每条记录写成一个 CBOR 数据项 (CBOR Sequence, RFC 8742)
type CBOREncoder struct {
	enc *cbor.Encoder
}

func NewCBOREncoder(w io.Writer) *CBOREncoder {
	return &CBOREncoder{enc: em.NewEncoder(w)}
}

func (c *CBOREncoder) Record(rec DiffRecord) error { return c.enc.Encode(rec) }

func (c *CBOREncoder) Group(g GroupRecord) error { return c.enc.Encode(g) }

func (c *CBOREncoder) Flush() error { return nil }

// CBORDecoder 逐条读回 CBOREncoder 写出的记录
type CBORDecoder struct {
	dec *cbor.Decoder
}

func NewCBORDecoder(r io.Reader) *CBORDecoder {
	return &CBORDecoder{dec: dm.NewDecoder(r)}
}

// Next 读取下一条记录，结束时返回 io.EOF
func (c *CBORDecoder) Next(v any) error {
	return c.dec.Decode(v)
}

// Marshal 返回单条记录的规范化编码
func Marshal(v any) ([]byte, error) {
	return em.Marshal(v)
}
