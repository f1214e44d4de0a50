// Package metrics 提供带宽统计
//
// BandwidthCounter 记录三层流量：
//
//	counter := metrics.NewBandwidthCounter(clock.New())
//
//	// 1. 全局
//	counter.LogSent(n)
//
//	// 2. 按连接与投递方式
//	counter.LogSentPeer(n, connID, types.ReliableOrdered)
//
//	// 3. 读取
//	total := counter.Totals()
//	peer := counter.ForPeer(connID)
//	ordered := counter.ForMethod(types.ReliableOrdered)
//
// 速率由 RateMeter 按 60 个 1 秒桶的滑动窗口计算。时间来源是
// clock.Clock，测试中可注入 clock.NewMock()。
//
// SnapshotCollector 周期性汇总连接数、带宽与运行时资源并写入日志：
//
//	c := metrics.NewSnapshotCollector("server", manager, nil)
//	c.Start(30 * time.Second)
//	defer c.Stop()
//
// 所有方法并发安全。
package metrics
