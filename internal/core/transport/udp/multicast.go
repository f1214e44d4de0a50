package udp

import (
	"net"
	"net/netip"

	"go.uber.org/multierr"
	"golang.org/x/net/ipv6"

	"github.com/dep2p/go-tinynet/pkg/types"
)

// DiscoveryGroupV6 IPv6 发现广播使用的链路本地全节点组播地址
var DiscoveryGroupV6 = netip.MustParseAddr("ff02::1")

// joinDiscoveryGroup 尽力加入发现组播组，失败只记录日志
func joinDiscoveryGroup(conn *net.UDPConn) {
	p := ipv6.NewPacketConn(conn)
	group := &net.UDPAddr{IP: DiscoveryGroupV6.AsSlice()}
	if err := p.JoinGroup(nil, group); err != nil {
		log.Debug("join ipv6 discovery group failed", "group", DiscoveryGroupV6, "err", err)
		return
	}
	if err := p.SetMulticastLoopback(true); err != nil {
		log.Debug("enable ipv6 multicast loopback failed", "err", err)
	}
}

// SendBroadcast 向局域网广播
//
// 先发往 255.255.255.255:port，若绑定了 IPv6 再发往 [ff02::1]:port。
// 任一路径失败都使调用失败，瞬时错误导致的未发送同样算失败（ErrBroadcastDropped）。
func (s *Socket) SendBroadcast(p []byte, port int) error {
	if port <= 0 || port > 65535 {
		return types.ErrInvalidPort
	}

	var err error
	sent := false

	if s.HasIPv4() {
		ep := types.NewEndpoint(netip.AddrFrom4([4]byte{255, 255, 255, 255}), uint16(port))
		err = multierr.Append(err, broadcastResult(s.Send(p, ep)))
		sent = true
	}
	if s.HasIPv6() {
		ep := types.NewEndpoint(DiscoveryGroupV6, uint16(port))
		err = multierr.Append(err, broadcastResult(s.Send(p, ep)))
		sent = true
	}

	if !sent {
		return ErrSocketClosed
	}
	return err
}

// broadcastResult Send 返回 (0, nil) 表示瞬时错误丢弃，对广播视为失败
func broadcastResult(n int, err error) error {
	if err != nil {
		return err
	}
	if n <= 0 {
		return ErrBroadcastDropped
	}
	return nil
}
