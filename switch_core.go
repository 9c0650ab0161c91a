// Switch core for rxswitch
// 每次主流发射都取消旧周期并开启新周期的状态机
package rxswitch

import (
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// coreState SwitchCore 的状态
type coreState int

const (
	// stateIdle 尚未收到主流的值
	stateIdle coreState = iota
	// stateActive 有一个活动周期
	stateActive
	// stateCompleted 已终止，不再产生任何输出
	stateCompleted
)

func (s coreState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateActive:
		return "active"
	case stateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// 周期结束原因
const (
	reasonSuperseded = "superseded"
	reasonCompleted  = "completed"
	reasonFailed     = "failed"
	reasonDisposed   = "disposed"
)

// cycle 两次主流发射之间的累积周期
type cycle struct {
	id         uuid.UUID
	generation uint64
	engine     *accumulatorEngine
	router     *eventRouter
	exhausted  bool
	folded     int
	span       trace.Span
}

// switchCore 一个连接对应的切换状态机，全部方法都在蹦床上调用
type switchCore struct {
	primary   Observable
	registry  *reducerRegistry
	tramp     *trampoline
	emit      Observer
	drain     bool
	logger    *slog.Logger
	telemetry *telemetry

	// observed 报告输出是否还有订阅者，为 nil 时视为有
	observed func() bool

	state       coreState
	generation  uint64
	current     *cycle
	primarySub  Subscription
	primaryDone bool
}

func newSwitchCore(primary Observable, registry *reducerRegistry, tramp *trampoline, emit Observer,
	config *Config, tel *telemetry) *switchCore {
	return &switchCore{
		primary:   primary,
		registry:  registry,
		tramp:     tramp,
		emit:      emit,
		drain:     config.DrainOnComplete,
		logger:    config.Logger,
		telemetry: tel,
	}
}

// start 订阅主流。主流同步发射的数据在 start 返回后依次处理。
func (c *switchCore) start() {
	subscription := c.primary.Subscribe(func(item Item) {
		c.tramp.run(func() { c.onPrimary(item) })
	})
	if c.state == stateCompleted {
		subscription.Unsubscribe()
		return
	}
	c.primarySub = subscription
}

func (c *switchCore) onPrimary(item Item) {
	if c.state == stateCompleted {
		return
	}

	switch {
	case item.IsError():
		c.fail(&PrimaryStreamError{Err: item.Error})
	case item.IsComplete():
		c.primaryDone = true
		c.logger.Debug("primary stream completed", "state", c.state.String(), "drain", c.drain)
		if !c.drain || c.current == nil || c.current.exhausted {
			c.complete()
		}
	default:
		c.switchTo(item.Value)
	}
}

// switchTo 取消当前周期，以 seed 开启新周期。
// 新周期的种子在订阅辅助流之前发射。
func (c *switchCore) switchTo(seed interface{}) {
	if c.current != nil {
		c.releaseCycle(reasonSuperseded, nil)
	}

	c.generation++
	next := &cycle{
		id:         uuid.New(),
		generation: c.generation,
		engine:     newAccumulatorEngine(c.registry, seed),
	}
	next.span = c.telemetry.cycleStarted(next.id.String(), next.generation)
	c.current = next
	c.state = stateActive
	c.logger.Debug("cycle started",
		"cycle_id", next.id.String(),
		"generation", next.generation,
		"sources", c.registry.count())

	value, err := next.engine.fold(TaggedEvent{Value: seed, SourceIndex: SeedIndex})
	if err != nil {
		c.fail(err)
		return
	}
	c.emit(CreateItem(value))
	if c.current != next || !c.isObserved() {
		return
	}
	c.startRouter(next)
}

// startRouter 为周期订阅全部辅助流
func (c *switchCore) startRouter(next *cycle) {
	generation := next.generation
	next.router = newEventRouter(c.registry, c.tramp, routerHandler{
		onEvent: func(event TaggedEvent) { c.onEvent(generation, event) },
		onError: func(err error) { c.onAuxiliaryError(generation, err) },
		onExhausted: func() {
			c.onExhausted(generation)
		},
	})
	next.router.start()
}

// resume 种子送达时已无订阅者而跳过了辅助流，新的订阅者到来后补订阅
func (c *switchCore) resume() {
	if c.state == stateActive && c.current != nil && c.current.router == nil {
		c.startRouter(c.current)
	}
}

func (c *switchCore) isObserved() bool {
	return c.observed == nil || c.observed()
}

func (c *switchCore) isCurrent(generation uint64) bool {
	return c.state == stateActive && c.current != nil && c.current.generation == generation
}

func (c *switchCore) onEvent(generation uint64, event TaggedEvent) {
	if !c.isCurrent(generation) {
		return
	}

	value, err := c.current.engine.fold(event)
	if err != nil {
		c.fail(err)
		return
	}
	c.current.folded++
	c.telemetry.eventFolded(event.SourceIndex)
	c.emit(CreateItem(value))
}

func (c *switchCore) onAuxiliaryError(generation uint64, err error) {
	if !c.isCurrent(generation) {
		return
	}
	c.fail(err)
}

func (c *switchCore) onExhausted(generation uint64) {
	if !c.isCurrent(generation) {
		return
	}
	c.current.exhausted = true
	c.logger.Debug("cycle sources exhausted",
		"cycle_id", c.current.id.String(),
		"generation", generation)
	if c.primaryDone && c.drain {
		c.complete()
	}
}

// releaseCycle 停止当前周期的全部辅助流并丢弃其状态
func (c *switchCore) releaseCycle(reason string, err error) {
	current := c.current
	if current == nil {
		return
	}
	c.current = nil
	if current.router != nil {
		current.router.stop()
	}
	c.telemetry.cycleEnded(current.span, reason, current.folded, err)
	c.logger.Debug("cycle released",
		"cycle_id", current.id.String(),
		"generation", current.generation,
		"reason", reason,
		"folded", current.folded)
}

// teardown 进入终止状态并释放全部订阅
func (c *switchCore) teardown(reason string, err error) {
	c.state = stateCompleted
	c.releaseCycle(reason, err)
	if c.primarySub != nil {
		c.primarySub.Unsubscribe()
		c.primarySub = nil
	}
}

func (c *switchCore) complete() {
	if c.state == stateCompleted {
		return
	}
	c.teardown(reasonCompleted, nil)
	c.emit(CreateCompleteItem())
}

func (c *switchCore) fail(err error) {
	if c.state == stateCompleted {
		return
	}
	c.teardown(reasonFailed, err)
	c.telemetry.errorRaised(err)
	c.logger.Warn("multi switch scan failed", "kind", errorKind(err), "error", err)
	c.emit(CreateErrorItem(err))
}

// dispose 静默释放全部资源，不发出任何信号
func (c *switchCore) dispose() {
	if c.state == stateCompleted {
		return
	}
	c.teardown(reasonDisposed, nil)
}
