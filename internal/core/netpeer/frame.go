package netpeer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// MaxReliableMessageSize 可靠消息（有序帧或单向流）的长度上限
const MaxReliableMessageSize = 1 << 20

// helloMagic 有序流上的第一帧
var helloMagic = []byte("tinynet/1")

// QUIC 应用层关闭码
const (
	codeNormal   = 0x0
	codeRejected = 0x1
	codeShutdown = 0x2
	codeProtocol = 0x3
)

// datagram 首字节
const (
	dgUnreliable byte = 0x00
	dgSequenced  byte = 0x01
	dgPing       byte = 0x02
	dgPong       byte = 0x03
)

// appendFrame 追加一个 varint 长度前缀的帧
func appendFrame(dst, body []byte) []byte {
	dst = quicvarint.Append(dst, uint64(len(body)))
	return append(dst, body...)
}

// readFrame 读取一个帧
func readFrame(r *bufio.Reader) ([]byte, error) {
	n, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	if n > MaxReliableMessageSize {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrMessageTooLarge, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// seqNewer 16 位回绕序号比较：a 是否比 b 新
func seqNewer(a, b uint16) bool {
	return int16(a-b) > 0
}

func appendSequenced(dst []byte, seq uint16, body []byte) []byte {
	dst = append(dst, dgSequenced)
	dst = binary.LittleEndian.AppendUint16(dst, seq)
	return append(dst, body...)
}

func appendPing(dst []byte, kind byte, ts int64) []byte {
	dst = append(dst, kind)
	return binary.LittleEndian.AppendUint64(dst, uint64(ts))
}
