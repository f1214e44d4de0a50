//go:build unix

package udp

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isTransient 发送时可当作成功的错误
func isTransient(err error) bool {
	return errors.Is(err, unix.EINTR) ||
		errors.Is(err, unix.ENOBUFS) ||
		errors.Is(err, unix.EAGAIN)
}

// isIgnorable 接收循环中只记录 debug 日志的错误
func isIgnorable(err error) bool {
	return errors.Is(err, unix.ECONNRESET) ||
		errors.Is(err, unix.ECONNREFUSED) ||
		errors.Is(err, unix.EMSGSIZE) ||
		errors.Is(err, unix.EINTR)
}

func isMessageTooLong(err error) bool {
	return errors.Is(err, unix.EMSGSIZE)
}

func isFamilyUnsupported(err error) bool {
	return errors.Is(err, unix.EAFNOSUPPORT)
}
