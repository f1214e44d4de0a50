package mdns

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-tinynet/config"
	"github.com/dep2p/go-tinynet/pkg/types"
)

// ============================================================================
//                              Config 测试
// ============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "_tinynet._udp", cfg.Service)
	assert.Equal(t, "local.", cfg.Domain)
	assert.True(t, cfg.DisableIPv6)
	assert.Greater(t, cfg.BrowseTimeout, time.Duration(0))
}

func TestConfigFrom(t *testing.T) {
	dc := config.DefaultDiscoveryConfig()
	dc.ServiceName = "_game._udp"
	dc.BrowseTimeout = config.Duration(500 * time.Millisecond)

	cfg := ConfigFrom(dc, false)
	assert.Equal(t, "_game._udp", cfg.Service)
	assert.False(t, cfg.DisableIPv6)
	assert.Equal(t, 500*time.Millisecond, cfg.BrowseTimeout)
}

// ============================================================================
//                              TXT 记录测试
// ============================================================================

func TestBuildTXT(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	txt := buildTXT(id, 4)

	assert.Equal(t, []string{
		"session=6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"version=tinynet/1",
		"max_players=4",
	}, txt)
	for _, r := range txt {
		assert.LessOrEqual(t, len(r), 255, "单条 TXT 不超过 255 字节")
	}
	assert.Equal(t, "tinynet-6ba7b810", instanceName(id))
}

func TestParseEntry(t *testing.T) {
	id := uuid.New()

	t.Run("完整条目", func(t *testing.T) {
		entry := &mdns.ServiceEntry{
			Name:       "tinynet-x._tinynet._udp.local.",
			AddrV4:     net.ParseIP("192.168.1.20"),
			Port:       7777,
			InfoFields: buildTXT(id, 8),
		}
		info, ok := parseEntry(entry)
		require.True(t, ok)
		assert.Equal(t, id, info.SessionID)
		assert.Equal(t, ProtocolVersion, info.Version)
		assert.Equal(t, 8, info.MaxPlayers)
		require.Len(t, info.Endpoints, 1)
		assert.Equal(t, types.NewEndpoint(netip.MustParseAddr("192.168.1.20"), 7777), info.Endpoints[0])
	})

	t.Run("IPv4 优先于 IPv6", func(t *testing.T) {
		entry := &mdns.ServiceEntry{
			AddrV4:     net.ParseIP("10.0.0.5"),
			AddrV6:     net.ParseIP("fd00::5"),
			Port:       7777,
			InfoFields: buildTXT(id, 4),
		}
		info, ok := parseEntry(entry)
		require.True(t, ok)
		require.Len(t, info.Endpoints, 2)
		assert.Equal(t, types.FamilyIPv4, info.Endpoints[0].Family())
	})

	t.Run("缺少会话 ID", func(t *testing.T) {
		entry := &mdns.ServiceEntry{AddrV4: net.ParseIP("192.168.1.2"), Port: 7777}
		_, ok := parseEntry(entry)
		assert.False(t, ok)
	})

	t.Run("无效会话 ID", func(t *testing.T) {
		entry := &mdns.ServiceEntry{
			AddrV4:     net.ParseIP("192.168.1.2"),
			Port:       7777,
			InfoFields: []string{"session=nope"},
		}
		_, ok := parseEntry(entry)
		assert.False(t, ok)
	})

	t.Run("只有公网地址", func(t *testing.T) {
		entry := &mdns.ServiceEntry{
			AddrV4:     net.ParseIP("8.8.8.8"),
			Port:       7777,
			InfoFields: buildTXT(id, 4),
		}
		_, ok := parseEntry(entry)
		assert.False(t, ok)
	})

	t.Run("空条目", func(t *testing.T) {
		_, ok := parseEntry(nil)
		assert.False(t, ok)
	})
}

func TestMergeEndpoints(t *testing.T) {
	a := types.NewEndpoint(netip.MustParseAddr("172.16.0.1"), 7777)
	b := types.NewEndpoint(netip.MustParseAddr("192.168.0.1"), 7777)

	merged := mergeEndpoints([]types.Endpoint{a}, []types.Endpoint{b, a})
	assert.Equal(t, []types.Endpoint{b, a}, merged)
}

// ============================================================================
//                              Advertiser 测试
// ============================================================================

func TestAdvertiser_StartValidation(t *testing.T) {
	a := NewAdvertiser(DefaultConfig())

	t.Run("端口未知", func(t *testing.T) {
		assert.ErrorIs(t, a.Start(uuid.New(), 0, 4), ErrPortUnknown)
		assert.False(t, a.IsRunning())
	})

	t.Run("未启动时停止", func(t *testing.T) {
		assert.NoError(t, a.Stop())
		assert.Empty(t, a.Instance())
	})
}

func TestBrowse_ExpiredContext(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := Browse(ctx, DefaultConfig())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ============================================================================
//                              网卡与地址测试
// ============================================================================

func TestIsVirtualInterface(t *testing.T) {
	tests := []struct {
		iface    string
		expected bool
	}{
		{"utun0", true},
		{"awdl0", true},
		{"docker0", true},
		{"br-abc123", true},
		{"veth12345", true},
		{"vboxnet0", true},
		{"tun0", true},
		{"wg0", true},
		{"tailscale0", true},
		{"en0", false},
		{"eth0", false},
		{"wlan0", false},
	}

	for _, tt := range tests {
		t.Run(tt.iface, func(t *testing.T) {
			assert.Equal(t, tt.expected, isVirtualInterface(tt.iface))
		})
	}
}

func TestIsLANIP(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		expected bool
	}{
		{"家庭网络", "192.168.1.1", true},
		{"企业网络", "10.0.0.1", true},
		{"私网边界", "172.31.255.255", true},
		{"IPv6 ULA", "fd12::1", true},
		{"v4-mapped 私网", "::ffff:192.168.1.1", true},
		{"回环", "127.0.0.1", false},
		{"未指定", "0.0.0.0", false},
		{"VPN 网段", "198.18.0.1", false},
		{"CGNAT", "100.64.0.1", false},
		{"公网", "8.8.8.8", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isLANIP(netip.MustParseAddr(tt.ip)), "ip: %s", tt.ip)
		})
	}
}

func TestScoreLANIP(t *testing.T) {
	score := func(s string) int { return scoreLANIP(netip.MustParseAddr(s)) }

	t.Run("不适合广告的地址为零", func(t *testing.T) {
		for _, ip := range []string{"127.0.0.1", "0.0.0.0", "198.18.0.1", "8.8.8.8"} {
			assert.Zero(t, score(ip), "ip: %s", ip)
		}
	})

	t.Run("优先级顺序正确", func(t *testing.T) {
		assert.Greater(t, score("192.168.1.1"), score("10.0.0.1"))
		assert.Greater(t, score("10.0.0.1"), score("172.16.0.1"))
		assert.Greater(t, score("172.16.0.1"), score("169.254.1.1"))
		assert.Greater(t, score("169.254.1.1"), score("fd00::1"), "IPv4 优先于 IPv6")
	})
}

// ============================================================================
// Fx 模块测试
// ============================================================================

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Discovery.ServiceName = "_test._udp"

	var a *Advertiser
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&a),
	)
	app.RequireStart()

	require.NotNil(t, a)
	assert.Equal(t, "_test._udp", a.cfg.Service)
	assert.False(t, a.IsRunning())

	app.RequireStop()
}
