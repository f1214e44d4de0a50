package main

import (
	"os"
	"strconv"

	"github.com/dep2p/go-tinynet/config"
)

// 环境变量
const (
	envPrefix     = "TINYNET_"
	envPort       = "PORT"
	envMaxPlayers = "MAX_PLAYERS"
	envEnableMDNS = "ENABLE_MDNS"
	envDisableV6  = "DISABLE_IPV6"
)

// applyEnvOverrides 应用环境变量覆盖配置
//
// 支持的环境变量（均使用 TINYNET_ 前缀）：
//   - TINYNET_PORT: 服务端端口
//   - TINYNET_MAX_PLAYERS: 最大玩家数
//   - TINYNET_ENABLE_MDNS: 启用 mDNS 广告
//   - TINYNET_DISABLE_IPV6: 不创建 IPv6 套接字
//
// 无法解析的值被忽略。
func applyEnvOverrides(cfg *config.Config) {
	if v, ok := envInt(envPort); ok {
		cfg.Transport.Port = v
	}
	if v, ok := envInt(envMaxPlayers); ok {
		cfg.Session.MaxPlayers = v
	}
	if v, ok := envBool(envEnableMDNS); ok {
		cfg.Discovery.EnableMDNS = v
	}
	if v, ok := envBool(envDisableV6); ok {
		cfg.Transport.DisableIPv6 = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(envPrefix + name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("忽略无效环境变量", "name", envPrefix+name, "value", v)
		return 0, false
	}
	return n, true
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(envPrefix + name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn("忽略无效环境变量", "name", envPrefix+name, "value", v)
		return false, false
	}
	return b, true
}
