package mdns

import (
	"context"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/mdns"

	"github.com/dep2p/go-tinynet/pkg/types"
)

// ServiceInfo 通过 mDNS 找到的服务端
type ServiceInfo struct {
	// Instance 实例名
	Instance string

	// SessionID 服务端场景的会话 ID
	SessionID uuid.UUID

	// Version 协议版本
	Version string

	// MaxPlayers 最大玩家数，未知为 0
	MaxPlayers int

	// Endpoints 可连接的地址，局域网地址优先
	Endpoints []types.Endpoint
}

// Browse 查询局域网内的服务端
//
// 阻塞至 cfg.BrowseTimeout 或 ctx 截止时间（取较早者）。
// 同一会话的多条应答会合并为一个 ServiceInfo。
func Browse(ctx context.Context, cfg Config) ([]ServiceInfo, error) {
	timeout := cfg.BrowseTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	params := &mdns.QueryParam{
		Service:             cfg.Service,
		Domain:              cfg.Domain,
		Timeout:             timeout,
		Entries:             entries,
		DisableIPv4:         cfg.DisableIPv4,
		DisableIPv6:         cfg.DisableIPv6,
		WantUnicastResponse: true,
	}
	if cfg.Interface != "" {
		if iface, err := net.InterfaceByName(cfg.Interface); err == nil {
			params.Interface = iface
		}
	}

	found := make(map[uuid.UUID]*ServiceInfo)
	var order []uuid.UUID
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			info, ok := parseEntry(entry)
			if !ok {
				continue
			}
			if prev, exists := found[info.SessionID]; exists {
				prev.Endpoints = mergeEndpoints(prev.Endpoints, info.Endpoints)
				continue
			}
			found[info.SessionID] = &info
			order = append(order, info.SessionID)
		}
	}()

	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, err
	}

	out := make([]ServiceInfo, 0, len(order))
	for _, id := range order {
		out = append(out, *found[id])
	}
	log.Debug("mDNS 查询完成", "service", cfg.Service, "found", len(out))
	return out, ctx.Err()
}

// parseEntry 解析服务条目，缺少会话 ID 或地址时返回 false
func parseEntry(entry *mdns.ServiceEntry) (ServiceInfo, bool) {
	if entry == nil {
		return ServiceInfo{}, false
	}

	info := ServiceInfo{Instance: entry.Name}
	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case txtSession:
			id, err := uuid.Parse(value)
			if err != nil {
				log.Debug("忽略无效会话 ID", "value", value, "err", err)
				return ServiceInfo{}, false
			}
			info.SessionID = id
		case txtVersion:
			info.Version = value
		case txtMaxPlayers:
			info.MaxPlayers, _ = strconv.Atoi(value)
		}
	}
	if info.SessionID == uuid.Nil || entry.Port <= 0 || entry.Port > 0xFFFF {
		return ServiceInfo{}, false
	}

	port := uint16(entry.Port)
	for _, raw := range []net.IP{entry.AddrV4, entry.AddrV6} {
		ip, ok := netip.AddrFromSlice(raw)
		if !ok || !isLANIP(ip) {
			continue
		}
		info.Endpoints = append(info.Endpoints, types.NewEndpoint(ip, port))
	}
	if len(info.Endpoints) == 0 {
		return ServiceInfo{}, false
	}
	sortEndpoints(info.Endpoints)
	return info, true
}

func mergeEndpoints(a, b []types.Endpoint) []types.Endpoint {
	for _, ep := range b {
		dup := false
		for _, have := range a {
			if have == ep {
				dup = true
				break
			}
		}
		if !dup {
			a = append(a, ep)
		}
	}
	sortEndpoints(a)
	return a
}

// sortEndpoints 按局域网评分降序排列
func sortEndpoints(eps []types.Endpoint) {
	sort.SliceStable(eps, func(i, j int) bool {
		return scoreLANIP(eps[i].Addr()) > scoreLANIP(eps[j].Addr())
	})
}
