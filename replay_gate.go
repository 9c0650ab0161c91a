// Replay gate for rxswitch
// 带引用计数的多播输出，缓存最近一个值给后来的订阅者
package rxswitch

import (
	"log/slog"
	"sync/atomic"
)

// gateConsumer 一个下游订阅者
type gateConsumer struct {
	id       uint64
	observer Observer
	closed   int32
}

func (c *gateConsumer) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *gateConsumer) close() bool {
	return atomic.CompareAndSwapInt32(&c.closed, 0, 1)
}

func (c *gateConsumer) deliver(item Item) {
	if !c.isClosed() {
		c.observer(item)
	}
}

// gateSubscription 下游订阅句柄
type gateSubscription struct {
	gate     *replayGate
	consumer *gateConsumer
}

// Unsubscribe 返回后该订阅者不会再收到任何数据
func (s *gateSubscription) Unsubscribe() {
	if s.consumer.close() {
		s.gate.tramp.run(func() { s.gate.detach(s.consumer) })
	}
}

func (s *gateSubscription) IsUnsubscribed() bool {
	return s.consumer.isClosed()
}

// connector 为一次连接创建 SwitchCore
type connector func(emit Observer) *switchCore

// replayGate 把一个 SwitchCore 的输出共享给全部订阅者。
// 0 -> 1 个订阅者时建立连接，1 -> 0 时丢弃缓存并断开。
// 终止信号转发给全部订阅者后重置，之后的订阅者重新建立连接。
// 除 Subscribe 外的方法都在蹦床上调用。
type replayGate struct {
	tramp     *trampoline
	connect   connector
	logger    *slog.Logger
	telemetry *telemetry

	nextID    uint64
	consumers []*gateConsumer
	core      *switchCore
	epoch     uint64
	latest    interface{}
	hasLatest bool
}

func newReplayGate(tramp *trampoline, connect connector, logger *slog.Logger, tel *telemetry) *replayGate {
	return &replayGate{
		tramp:     tramp,
		connect:   connect,
		logger:    logger,
		telemetry: tel,
	}
}

// Subscribe 附加一个订阅者
func (g *replayGate) Subscribe(observer Observer) Subscription {
	subscription, start := g.prepare(observer)
	start()
	return subscription
}

// prepare 先返回订阅句柄，start 再附加订阅者。
// 附加期间同步送达的数据已经可以通过句柄取消。
func (g *replayGate) prepare(observer Observer) (Subscription, func()) {
	consumer := &gateConsumer{id: atomic.AddUint64(&g.nextID, 1), observer: observer}
	return &gateSubscription{gate: g, consumer: consumer}, func() {
		g.tramp.run(func() { g.attach(consumer) })
	}
}

func (g *replayGate) attach(consumer *gateConsumer) {
	if consumer.isClosed() {
		return
	}

	g.consumers = append(g.consumers, consumer)
	g.telemetry.consumerDelta(1)
	g.logger.Debug("consumer attached", "consumer", consumer.id, "consumers", len(g.consumers))

	if g.core == nil {
		g.open()
		return
	}
	if g.hasLatest {
		consumer.deliver(CreateItem(g.latest))
	}
	g.core.resume()
}

func (g *replayGate) detach(consumer *gateConsumer) {
	for i, attached := range g.consumers {
		if attached != consumer {
			continue
		}
		g.consumers = append(g.consumers[:i:i], g.consumers[i+1:]...)
		g.telemetry.consumerDelta(-1)
		g.logger.Debug("consumer detached", "consumer", consumer.id, "consumers", len(g.consumers))

		if len(g.consumers) == 0 && g.core != nil {
			core := g.core
			g.reset()
			core.dispose()
			g.logger.Debug("connection closed", "reason", "no consumers")
		}
		return
	}
}

// open 建立新连接
func (g *replayGate) open() {
	g.epoch++
	epoch := g.epoch
	g.logger.Debug("connection opened", "epoch", epoch)

	g.core = g.connect(func(item Item) { g.dispatch(epoch, item) })
	g.core.observed = g.observed
	g.core.start()
}

func (g *replayGate) reset() {
	g.core = nil
	g.latest = nil
	g.hasLatest = false
	g.epoch++
}

// dispatch 把 SwitchCore 的输出转发给全部订阅者
func (g *replayGate) dispatch(epoch uint64, item Item) {
	if epoch != g.epoch {
		return
	}

	if !item.IsTerminal() {
		g.latest = item.Value
		g.hasLatest = true
		for _, consumer := range g.snapshot() {
			consumer.deliver(item)
		}
		return
	}

	consumers := g.consumers
	g.consumers = nil
	g.telemetry.consumerDelta(-int64(len(consumers)))
	g.reset()
	g.logger.Debug("connection closed", "reason", "terminated", "error", item.Error)

	for _, consumer := range consumers {
		if consumer.close() {
			consumer.observer(item)
		}
	}
}

// observed 是否还有未取消的订阅者
func (g *replayGate) observed() bool {
	for _, consumer := range g.consumers {
		if !consumer.isClosed() {
			return true
		}
	}
	return false
}

func (g *replayGate) snapshot() []*gateConsumer {
	consumers := make([]*gateConsumer, len(g.consumers))
	copy(consumers, g.consumers)
	return consumers
}

// consumerCount 当前订阅者数量，仅用于测试
func (g *replayGate) consumerCount() int {
	return len(g.consumers)
}
