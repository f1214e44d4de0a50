package types

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// Endpoint 远端 UDP 端点
//
// Endpoint 是值类型，可直接用 == 比较：地址族、地址字节、端口与 zone
// （IPv6 scope id）全部相同时才相等。IPv4 地址总是以 4 字节形式保存，
// v4-mapped v6 地址在构造时会被还原为 IPv4。
type Endpoint struct {
	ap netip.AddrPort
}

// NewEndpoint 从地址与端口创建端点
func NewEndpoint(addr netip.Addr, port uint16) Endpoint {
	return Endpoint{ap: netip.AddrPortFrom(addr.Unmap(), port)}
}

// EndpointFromAddrPort 从 netip.AddrPort 创建端点
func EndpointFromAddrPort(ap netip.AddrPort) Endpoint {
	return NewEndpoint(ap.Addr(), ap.Port())
}

// EndpointFromUDPAddr 从 *net.UDPAddr 创建端点
func EndpointFromUDPAddr(addr *net.UDPAddr) (Endpoint, error) {
	if addr == nil {
		return Endpoint{}, ErrInvalidEndpoint
	}
	ip, ok := netip.AddrFromSlice(addr.IP)
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, addr)
	}
	if addr.Port < 0 || addr.Port > 0xFFFF {
		return Endpoint{}, ErrInvalidPort
	}
	ip = ip.Unmap()
	if addr.Zone != "" && ip.Is6() {
		ip = ip.WithZone(addr.Zone)
	}
	return NewEndpoint(ip, uint16(addr.Port)), nil
}

// ParseEndpoint 解析 "host:port" 形式的字符串
//
// host 必须是字面 IP 地址，IPv6 需使用方括号，例如 "[fe80::1%eth0]:7777"。
func ParseEndpoint(s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	return EndpointFromAddrPort(ap), nil
}

// ResolveEndpoint 解析主机名与端口
//
// 与 ParseEndpoint 不同，host 可以是域名。优先返回 IPv4 地址。
func ResolveEndpoint(host string, port int) (Endpoint, error) {
	if port < 0 || port > 0xFFFF {
		return Endpoint{}, ErrInvalidPort
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return NewEndpoint(ip, uint16(port)), nil
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return Endpoint{}, fmt.Errorf("resolve %s: %w", host, err)
	}
	return EndpointFromUDPAddr(addr)
}

// Family 返回地址族
func (e Endpoint) Family() AddressFamily {
	addr := e.ap.Addr()
	switch {
	case !addr.IsValid():
		return FamilyUnknown
	case addr.Is4():
		return FamilyIPv4
	default:
		return FamilyIPv6
	}
}

// Addr 返回 IP 地址
func (e Endpoint) Addr() netip.Addr {
	return e.ap.Addr()
}

// Port 返回端口
func (e Endpoint) Port() uint16 {
	return e.ap.Port()
}

// Zone 返回 IPv6 zone（scope id），IPv4 为空
func (e Endpoint) Zone() string {
	return e.ap.Addr().Zone()
}

// AddrPort 返回底层的 netip.AddrPort
func (e Endpoint) AddrPort() netip.AddrPort {
	return e.ap
}

// IsValid 端点是否有效
func (e Endpoint) IsValid() bool {
	return e.ap.IsValid()
}

// Equal 比较两个端点
func (e Endpoint) Equal(other Endpoint) bool {
	return e == other
}

// UDPAddr 转换为 *net.UDPAddr
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(e.ap)
}

// String 返回 "ip:port" 形式
func (e Endpoint) String() string {
	if !e.IsValid() {
		return "<invalid>"
	}
	return e.ap.String()
}
