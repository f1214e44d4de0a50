package udp

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrAlreadyBound 套接字已绑定
	ErrAlreadyBound = errors.New("socket already bound")

	// ErrSocketClosed 套接字已关闭
	ErrSocketClosed = errors.New("socket closed")

	// ErrFamilyUnavailable 没有对应地址族的套接字
	ErrFamilyUnavailable = errors.New("address family not bound")

	// ErrNoSocket 两个地址族都未能绑定
	ErrNoSocket = errors.New("no socket could be bound")

	// ErrBroadcastDropped 广播因瞬时错误未能发出
	ErrBroadcastDropped = errors.New("broadcast dropped by transient error")
)

// SendError 发送失败（非瞬时错误）
type SendError struct {
	// Code 操作系统错误码
	Code int

	// Err 底层错误
	Err error
}

// Error 实现 error
func (e *SendError) Error() string {
	return fmt.Sprintf("udp send failed (code %d): %v", e.Code, e.Err)
}

// Unwrap 返回底层错误
func (e *SendError) Unwrap() error {
	return e.Err
}

// ErrorCode 提取错误中的操作系统错误码
//
// nil 返回 0，无错误码的错误返回 -1。
func ErrorCode(err error) int {
	if err == nil {
		return 0
	}
	var se *SendError
	if errors.As(err, &se) {
		return se.Code
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return -1
}
