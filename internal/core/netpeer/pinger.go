package netpeer

import "time"

// PingInterval 返回延迟探测间隔
func (m *Manager) PingInterval() time.Duration {
	return time.Duration(m.pingInterval.Load())
}

// SetPingInterval 修改延迟探测间隔，非正值被忽略
//
// 从下一次探测开始生效。
func (m *Manager) SetPingInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	m.pingInterval.Store(int64(d))
}

// pingDue 在控制线程上向所有连接发送到期的延迟探测
func (m *Manager) pingDue() {
	if !m.running.Load() {
		return
	}
	now := m.clk.Now()
	if now.Before(m.nextPing) {
		return
	}
	m.nextPing = now.Add(m.PingInterval())

	for _, p := range m.peerList() {
		p.sendPing(now)
	}
}
