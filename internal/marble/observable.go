// Cold and hot test observables
// 冷、热测试数据源，记录每次订阅的开始帧与结束帧
package marble

import (
	"sync"

	"github.com/xinjiayu/rxswitch"
)

// subscriptionRecorder 记录订阅日志
type subscriptionRecorder struct {
	mu   sync.Mutex
	logs []SubscriptionLog
}

func (r *subscriptionRecorder) subscribed(frame int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, SubscriptionLog{Subscribed: frame, Unsubscribed: Never})
	return len(r.logs) - 1
}

func (r *subscriptionRecorder) unsubscribed(index, frame int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.logs[index].Unsubscribed == Never {
		r.logs[index].Unsubscribed = frame
	}
}

// Subscriptions 返回全部订阅日志
func (r *subscriptionRecorder) Subscriptions() []SubscriptionLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	logs := make([]SubscriptionLog, len(r.logs))
	copy(logs, r.logs)
	return logs
}

// Logged 记录订阅日志的数据源
type Logged interface {
	Subscriptions() []SubscriptionLog
}

func toItem(message Message) rxswitch.Item {
	switch message.Kind {
	case KindError:
		return rxswitch.CreateErrorItem(message.Err)
	case KindComplete:
		return rxswitch.CreateCompleteItem()
	default:
		return rxswitch.CreateItem(message.Value)
	}
}

// ============================================================================
// ColdObservable
// ============================================================================

// ColdObservable 每次订阅都从订阅帧开始按弹珠图重放
type ColdObservable struct {
	rxswitch.Observable
	*subscriptionRecorder

	scheduler *Scheduler
	messages  []Message
}

// NewCold 创建冷数据源
func NewCold(scheduler *Scheduler, messages []Message) *ColdObservable {
	cold := &ColdObservable{
		subscriptionRecorder: &subscriptionRecorder{},
		scheduler:            scheduler,
		messages:             messages,
	}
	cold.Observable = rxswitch.NewObservable(cold.subscribe)
	return cold
}

func (c *ColdObservable) subscribe(observer rxswitch.Observer) rxswitch.Subscription {
	start := c.scheduler.Now()
	index := c.subscriptionRecorder.subscribed(start)
	actions := rxswitch.NewCompositeDisposable()

	for _, message := range c.messages {
		message := message
		actions.Add(c.scheduler.ScheduleAt(start+message.Frame, func() {
			item := toItem(message)
			if item.IsTerminal() {
				c.subscriptionRecorder.unsubscribed(index, c.scheduler.Now())
				actions.Dispose()
			}
			observer(item)
		}))
	}

	return rxswitch.NewBaseSubscription(rxswitch.NewBaseDisposable(func() {
		c.subscriptionRecorder.unsubscribed(index, c.scheduler.Now())
		actions.Dispose()
	}))
}

// ============================================================================
// HotObservable
// ============================================================================

// HotObservable 按弹珠图在绝对帧上发射，订阅者只能收到订阅之后的通知。
// 负帧（'^' 之前）的通知没有订阅者可以收到，被忽略。
type HotObservable struct {
	rxswitch.Observable
	*subscriptionRecorder

	scheduler *Scheduler
	subject   *rxswitch.PublishSubject
	messages  []Message
}

// NewHot 创建热数据源，通知在下一次 Flush 开始时调度
func NewHot(scheduler *Scheduler, messages []Message) *HotObservable {
	hot := &HotObservable{
		subscriptionRecorder: &subscriptionRecorder{},
		scheduler:            scheduler,
		subject:              rxswitch.NewPublishSubject(),
		messages:             messages,
	}
	hot.Observable = rxswitch.NewObservable(hot.subscribe)

	scheduler.mu.Lock()
	scheduler.hots = append(scheduler.hots, hot)
	scheduler.mu.Unlock()
	return hot
}

func (h *HotObservable) setup() {
	for _, message := range h.messages {
		if message.Frame < 0 {
			continue
		}
		message := message
		h.scheduler.ScheduleAt(message.Frame, func() {
			h.subject.AsObserver()(toItem(message))
		})
	}
}

func (h *HotObservable) subscribe(observer rxswitch.Observer) rxswitch.Subscription {
	index := h.subscriptionRecorder.subscribed(h.scheduler.Now())
	subscription := h.subject.Subscribe(func(item rxswitch.Item) {
		if item.IsTerminal() {
			h.subscriptionRecorder.unsubscribed(index, h.scheduler.Now())
		}
		observer(item)
	})

	return rxswitch.NewBaseSubscription(rxswitch.NewBaseDisposable(func() {
		h.subscriptionRecorder.unsubscribed(index, h.scheduler.Now())
		subscription.Unsubscribe()
	}))
}

// Next 在当前帧立即发射一个值，用于在测试中手动驱动
func (h *HotObservable) Next(value interface{}) {
	h.subject.OnNext(value)
}
