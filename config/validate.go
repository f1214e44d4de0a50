package config

// ValidateAndFix 修复可自动修复的问题后再验证
//
//   - Peer.MaxConnections 小于 Session.MaxPlayers 时提升到 MaxPlayers
//   - KeepAlivePeriod 不小于 DisconnectTimeout 时取其一半
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	if c.Peer.MaxConnections < c.Session.MaxPlayers {
		c.Peer.MaxConnections = c.Session.MaxPlayers
	}
	if c.Peer.DisconnectTimeout > 0 && c.Peer.KeepAlivePeriod >= c.Peer.DisconnectTimeout {
		c.Peer.KeepAlivePeriod = c.Peer.DisconnectTimeout / 2
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
