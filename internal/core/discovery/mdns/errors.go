package mdns

import "errors"

var (
	// ErrPortUnknown 服务端口尚未确定
	ErrPortUnknown = errors.New("mdns port unknown")

	// ErrNoLANAddress 没有可广告的局域网地址
	ErrNoLANAddress = errors.New("no LAN address to advertise")

	// ErrAlreadyAdvertising 已在广告
	ErrAlreadyAdvertising = errors.New("already advertising")
)
