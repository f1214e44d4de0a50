package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-tinynet/pkg/types"
)

// Reader 消息读取器
type Reader struct {
	data []byte
	off  int
}

// NewReader 创建读取器
//
// Reader 直接引用 data，不做拷贝。
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadMsgType 读取 2 字节小端序类型标签
func (r *Reader) ReadMsgType() (types.MsgType, error) {
	if len(r.data)-r.off < 2 {
		return 0, ErrShortBuffer
	}
	t := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return types.MsgType(t), nil
}

// Remaining 返回未读取的字节
func (r *Reader) Remaining() []byte {
	return r.data[r.off:]
}

// Len 返回未读取的字节数
func (r *Reader) Len() int {
	return len(r.data) - r.off
}

// Decode 解码剩余字节到 msg
func (r *Reader) Decode(msg Message) error {
	return msg.UnmarshalFrom(r)
}

// ReadFields 依次读取剩余的所有字段
//
// 分组等不支持的线类型会被跳过。fn 返回错误时立即停止。
func (r *Reader) ReadFields(fn func(num protowire.Number, v Value) error) error {
	for r.off < len(r.data) {
		b := r.data[r.off:]
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		consumed := n

		v := Value{typ: typ}
		switch typ {
		case protowire.VarintType:
			x, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
			}
			v.scalar = x
			consumed += m
		case protowire.Fixed32Type:
			x, m := protowire.ConsumeFixed32(b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
			}
			v.scalar = uint64(x)
			consumed += m
		case protowire.Fixed64Type:
			x, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
			}
			v.scalar = x
			consumed += m
		case protowire.BytesType:
			x, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
			}
			v.raw = x
			consumed += m
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
			}
			r.off += consumed + m
			continue
		}
		r.off += consumed

		if err := fn(num, v); err != nil {
			return err
		}
	}
	return nil
}

// Value 单个字段的值
//
// 访问器与字段的线类型不匹配时返回零值。
type Value struct {
	typ    protowire.Type
	scalar uint64
	raw    []byte
}

// Uint 返回无符号整数值
func (v Value) Uint() uint64 {
	if v.typ != protowire.VarintType {
		return 0
	}
	return v.scalar
}

// Int 返回 zigzag 解码后的有符号整数值
func (v Value) Int() int64 {
	if v.typ != protowire.VarintType {
		return 0
	}
	return protowire.DecodeZigZag(v.scalar)
}

// Uint32 返回 32 位无符号整数值，超出范围时返回 ErrMalformed
func (v Value) Uint32() (uint32, error) {
	x := v.Uint()
	if x > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d overflows uint32", ErrMalformed, x)
	}
	return uint32(x), nil
}

// NetworkID 返回网络 ID，超出范围时返回 ErrMalformed
func (v Value) NetworkID() (types.NetworkID, error) {
	x, err := v.Uint32()
	return types.NetworkID(x), err
}

// Int16 返回 16 位有符号整数值，超出范围时返回 ErrMalformed
func (v Value) Int16() (int16, error) {
	x := v.Int()
	if x < math.MinInt16 || x > math.MaxInt16 {
		return 0, fmt.Errorf("%w: %d overflows int16", ErrMalformed, x)
	}
	return int16(x), nil
}

// Bool 返回布尔值
func (v Value) Bool() bool {
	if v.typ != protowire.VarintType {
		return false
	}
	return protowire.DecodeBool(v.scalar)
}

// Float32 返回 float32 值
func (v Value) Float32() float32 {
	if v.typ != protowire.Fixed32Type {
		return 0
	}
	return math.Float32frombits(uint32(v.scalar))
}

// Bytes 返回字节值的拷贝
func (v Value) Bytes() []byte {
	if v.typ != protowire.BytesType {
		return nil
	}
	out := make([]byte, len(v.raw))
	copy(out, v.raw)
	return out
}

// String 返回字符串值
func (v Value) String() string {
	if v.typ != protowire.BytesType {
		return ""
	}
	return string(v.raw)
}
