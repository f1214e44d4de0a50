package mdns

import (
	"net"
	"net/netip"
	"sort"
	"strings"
)

// ============================================================================
//                              网卡与地址筛选
// ============================================================================

// virtualInterfacePrefixes 虚拟网卡前缀，这些网卡上的地址跨机通常不可达
var virtualInterfacePrefixes = []string{
	"utun", "ipsec", "awdl", "llw", "ap", "bridge",
	"docker", "br-", "veth", "virbr", "vboxnet", "vmnet",
	"tun", "tap", "vlan", "bond", "dummy",
	"tailscale", "wg",
}

// isVirtualInterface 是否为 VPN、容器或虚拟机网卡
func isVirtualInterface(name string) bool {
	name = strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// nonRoutablePrefixes VPN、CGNAT 与文档示例网段
var nonRoutablePrefixes = []netip.Prefix{
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("100.64.0.0/10"),
}

// isNonRoutableIP 是否属于局域网内跨机不可达的网段
func isNonRoutableIP(ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, p := range nonRoutablePrefixes {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// isLANIP 是否为局域网可达地址（私网、ULA 或链路本地）
func isLANIP(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.IsValid() || ip.IsLoopback() || ip.IsUnspecified() || isNonRoutableIP(ip) {
		return false
	}
	return ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// scoreLANIP 局域网地址评分，0 表示不适合广告
//
// IPv4 优先；192.168/16 > 10/8 > 172.16/12 > 其他私网 > 链路本地。
func scoreLANIP(ip netip.Addr) int {
	ip = ip.Unmap()
	if !isLANIP(ip) {
		return 0
	}

	base := 100
	if ip.Is4() {
		base = 1000
	}
	if ip.IsLinkLocalUnicast() {
		return base + 10
	}
	if ip.Is4() {
		b := ip.As4()
		switch {
		case b[0] == 192 && b[1] == 168:
			return base + 300
		case b[0] == 10:
			return base + 200
		case b[0] == 172 && b[1] >= 16 && b[1] <= 31:
			return base + 100
		}
	}
	return base + 50
}

// localIPs 返回可广告的本地地址，按评分降序
func localIPs(iface string, disableIPv4, disableIPv6 bool) ([]net.IP, error) {
	type scored struct {
		ip    netip.Addr
		score int
	}
	var found []scored

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback != 0 || ifi.Flags&net.FlagUp == 0 {
			continue
		}
		if iface != "" && ifi.Name != iface {
			continue
		}
		if isVirtualInterface(ifi.Name) {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip, ok := netip.AddrFromSlice(ipNet.IP)
			if !ok {
				continue
			}
			ip = ip.Unmap()
			// 链路本地地址需要 zone，不适合写进 A/AAAA 记录
			if ip.IsLinkLocalUnicast() {
				continue
			}
			if (ip.Is4() && disableIPv4) || (ip.Is6() && disableIPv6) {
				continue
			}
			if s := scoreLANIP(ip); s > 0 {
				found = append(found, scored{ip: ip, score: s})
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].score > found[j].score })
	out := make([]net.IP, len(found))
	for i, f := range found {
		out[i] = net.IP(f.ip.AsSlice())
	}
	return out, nil
}
