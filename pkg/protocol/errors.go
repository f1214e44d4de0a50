package protocol

import "errors"

var (
	// ErrShortBuffer 数据不足以读取类型标签
	ErrShortBuffer = errors.New("buffer too short for message type")

	// ErrMalformed 消息体格式错误
	ErrMalformed = errors.New("malformed message payload")
)
