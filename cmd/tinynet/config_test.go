package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dep2p/go-tinynet/config"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Run("覆盖配置", func(t *testing.T) {
		t.Setenv("TINYNET_PORT", "9100")
		t.Setenv("TINYNET_MAX_PLAYERS", "8")
		t.Setenv("TINYNET_ENABLE_MDNS", "true")
		t.Setenv("TINYNET_DISABLE_IPV6", "1")

		cfg := config.NewConfig()
		applyEnvOverrides(cfg)

		assert.Equal(t, 9100, cfg.Transport.Port)
		assert.Equal(t, 8, cfg.Session.MaxPlayers)
		assert.True(t, cfg.Discovery.EnableMDNS)
		assert.True(t, cfg.Transport.DisableIPv6)
	})

	t.Run("无效值被忽略", func(t *testing.T) {
		t.Setenv("TINYNET_PORT", "abc")
		t.Setenv("TINYNET_ENABLE_MDNS", "maybe")

		cfg := config.NewConfig()
		applyEnvOverrides(cfg)

		assert.Equal(t, config.DefaultTransportConfig().Port, cfg.Transport.Port)
		assert.False(t, cfg.Discovery.EnableMDNS)
	})
}
