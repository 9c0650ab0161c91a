// Event tagging and routing for rxswitch
// 为辅助流事件打上来源下标，并把一个周期内的全部辅助流合并为一个事件流
package rxswitch

import "sync/atomic"

// ============================================================================
// EventTagger
// ============================================================================

// newEventTagger 把第 index 个辅助流包装为 TaggedEvent 流。
// 惰性：订阅时才订阅辅助流，取消时停止辅助流。
// 错误被标注为 AuxiliaryStreamError，完成信号原样传递。
func newEventTagger(index int, source Observable) Observable {
	return NewObservable(func(observer Observer) Subscription {
		return source.Subscribe(func(item Item) {
			switch {
			case item.IsError():
				observer(CreateErrorItem(&AuxiliaryStreamError{Index: index, Err: item.Error}))
			case item.IsComplete():
				observer(item)
			default:
				observer(CreateItem(TaggedEvent{Value: item.Value, SourceIndex: index}))
			}
		})
	})
}

// ============================================================================
// EventRouter
// ============================================================================

// routerHandler 接收路由器的输出，全部在蹦床上调用
type routerHandler struct {
	onEvent     func(event TaggedEvent)
	onError     func(err error)
	onExhausted func()
}

// eventRouter 合并一个周期内的全部 tagger
type eventRouter struct {
	registry *reducerRegistry
	tramp    *trampoline
	handler  routerHandler

	subscriptions *CompositeSubscription
	stopped       int32
	completed     int
}

func newEventRouter(registry *reducerRegistry, tramp *trampoline, handler routerHandler) *eventRouter {
	return &eventRouter{
		registry:      registry,
		tramp:         tramp,
		handler:       handler,
		subscriptions: NewCompositeSubscription(),
	}
}

// start 按下标顺序订阅全部 tagger。没有辅助流时立即报告耗尽。
// 必须在蹦床上调用。
func (r *eventRouter) start() {
	if r.registry.count() == 0 {
		r.handler.onExhausted()
		return
	}

	for index := 0; index < r.registry.count(); index++ {
		if r.isStopped() {
			return
		}
		index := index
		tagger := newEventTagger(index, r.registry.source(index))
		r.subscriptions.Add(tagger.Subscribe(func(item Item) {
			r.tramp.run(func() { r.handle(item) })
		}))
	}
}

func (r *eventRouter) handle(item Item) {
	if r.isStopped() {
		return
	}

	switch {
	case item.IsError():
		r.handler.onError(item.Error)
	case item.IsComplete():
		r.completed++
		if r.completed == r.registry.count() {
			r.handler.onExhausted()
		}
	default:
		r.handler.onEvent(item.Value.(TaggedEvent))
	}
}

// stop 原子地取消全部 tagger，此后不再有事件送达
func (r *eventRouter) stop() {
	if atomic.CompareAndSwapInt32(&r.stopped, 0, 1) {
		r.subscriptions.Unsubscribe()
	}
}

func (r *eventRouter) isStopped() bool {
	return atomic.LoadInt32(&r.stopped) == 1
}
