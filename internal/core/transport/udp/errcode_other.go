//go:build !unix

package udp

import (
	"errors"
	"syscall"
)

func isTransient(err error) bool {
	return errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.EAGAIN)
}

func isIgnorable(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EMSGSIZE) ||
		errors.Is(err, syscall.EINTR)
}

func isMessageTooLong(err error) bool {
	return errors.Is(err, syscall.EMSGSIZE)
}

func isFamilyUnsupported(err error) bool {
	return errors.Is(err, syscall.EAFNOSUPPORT)
}
