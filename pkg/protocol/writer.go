package protocol

import (
	"encoding/binary"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-tinynet/pkg/types"
)

// Message 线上消息
type Message interface {
	// MsgType 返回消息类型标签
	MsgType() types.MsgType

	// MarshalTo 将消息体追加到 w
	MarshalTo(w *Writer)

	// UnmarshalFrom 从 r 的剩余字节解码消息体
	UnmarshalFrom(r *Reader) error
}

// Writer 可复用的消息写入器
//
// Writer 不是并发安全的。复用前必须调用 Reset。
type Writer struct {
	buf []byte
}

// NewWriter 创建写入器
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Reset 清空已写入的数据，保留底层容量
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// Bytes 返回已写入的数据
//
// 返回的切片在下一次 Reset 之前有效。
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len 返回已写入的字节数
func (w *Writer) Len() int {
	return len(w.buf)
}

// PutMsgType 写入 2 字节小端序类型标签
func (w *Writer) PutMsgType(t types.MsgType) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(t))
}

// PutUint 写入无符号整数字段
func (w *Writer) PutUint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, v)
}

// PutInt 写入有符号整数字段（zigzag）
func (w *Writer) PutInt(num protowire.Number, v int64) {
	if v == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, protowire.EncodeZigZag(v))
}

// PutBool 写入布尔字段
func (w *Writer) PutBool(num protowire.Number, v bool) {
	if !v {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, protowire.EncodeBool(v))
}

// PutFloat32 写入 float32 字段
func (w *Writer) PutFloat32(num protowire.Number, v float32) {
	if v == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.Fixed32Type)
	w.buf = protowire.AppendFixed32(w.buf, math.Float32bits(v))
}

// PutBytes 写入字节字段
func (w *Writer) PutBytes(num protowire.Number, v []byte) {
	if len(v) == 0 {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendBytes(w.buf, v)
}

// PutString 写入字符串字段
func (w *Writer) PutString(num protowire.Number, v string) {
	if v == "" {
		return
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, v)
}

// Encode 重置 w 并写入完整消息（类型标签 + 消息体）
//
// 返回的切片引用 w 的内部缓冲区。
func Encode(w *Writer, msg Message) []byte {
	w.Reset()
	w.PutMsgType(msg.MsgType())
	msg.MarshalTo(w)
	return w.Bytes()
}
