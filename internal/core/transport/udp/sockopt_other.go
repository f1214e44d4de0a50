//go:build !unix

package udp

import "syscall"

// control 非 unix 平台上依赖 net 包的默认选项（SO_BROADCAST 默认开启）
func control(reuseAddr, _ bool) func(network, address string, c syscall.RawConn) error {
	if reuseAddr {
		log.Debug("SO_REUSEADDR not supported on this platform")
	}
	return nil
}
