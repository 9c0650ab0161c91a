// Subject implementations for rxswitch
// PublishSubject 与 BehaviorSubject，作为热数据源使用
package rxswitch

import (
	"sync"
)

// ============================================================================
// Subject 接口
// ============================================================================

// Subject 既是Observable又是Observer
type Subject interface {
	Observable

	// AsObserver 返回Observer函数
	AsObserver() Observer

	OnNext(value interface{})
	OnError(err error)
	OnComplete()

	// HasObservers 检查是否有观察者
	HasObservers() bool

	// ObserverCount 获取观察者数量
	ObserverCount() int
}

// ============================================================================
// PublishSubject - 发布主题
// ============================================================================

type subjectObserver struct {
	id       uint64
	observer Observer
}

// PublishSubject 发布主题，只向当前订阅者发送新的值。
// 发射是同步的，按订阅顺序依次调用观察者。
type PublishSubject struct {
	Observable

	mu        sync.Mutex
	nextID    uint64
	observers []subjectObserver
	terminal  *Item
}

// NewPublishSubject 创建新的发布主题
func NewPublishSubject() *PublishSubject {
	ps := &PublishSubject{}
	ps.Observable = NewObservable(ps.subscribe)
	return ps
}

func (ps *PublishSubject) subscribe(observer Observer) Subscription {
	ps.mu.Lock()
	// 已经终止，立即把终止信号交给新的观察者
	if ps.terminal != nil {
		terminal := *ps.terminal
		ps.mu.Unlock()
		observer(terminal)
		return emptySubscription()
	}

	ps.nextID++
	id := ps.nextID
	ps.observers = append(ps.observers, subjectObserver{id: id, observer: observer})
	ps.mu.Unlock()

	return newActionSubscription(func() {
		ps.removeObserver(id)
	})
}

func (ps *PublishSubject) removeObserver(id uint64) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for i, entry := range ps.observers {
		if entry.id == id {
			ps.observers = append(ps.observers[:i:i], ps.observers[i+1:]...)
			return
		}
	}
}

func (ps *PublishSubject) snapshot() []subjectObserver {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	observers := make([]subjectObserver, len(ps.observers))
	copy(observers, ps.observers)
	return observers
}

// AsObserver 返回Observer函数
func (ps *PublishSubject) AsObserver() Observer {
	return func(item Item) {
		switch {
		case item.IsError():
			ps.OnError(item.Error)
		case item.IsComplete():
			ps.OnComplete()
		default:
			ps.OnNext(item.Value)
		}
	}
}

// OnNext 发送下一个值
func (ps *PublishSubject) OnNext(value interface{}) {
	if value == nil {
		return
	}

	ps.mu.Lock()
	terminated := ps.terminal != nil
	ps.mu.Unlock()
	if terminated {
		return
	}

	item := CreateItem(value)
	for _, entry := range ps.snapshot() {
		entry.observer(item)
	}
}

// OnError 发送错误
func (ps *PublishSubject) OnError(err error) {
	ps.terminate(CreateErrorItem(err))
}

// OnComplete 发送完成信号
func (ps *PublishSubject) OnComplete() {
	ps.terminate(CreateCompleteItem())
}

func (ps *PublishSubject) terminate(item Item) {
	ps.mu.Lock()
	if ps.terminal != nil {
		ps.mu.Unlock()
		return
	}
	ps.terminal = &item
	observers := ps.observers
	ps.observers = nil
	ps.mu.Unlock()

	for _, entry := range observers {
		entry.observer(item)
	}
}

// HasObservers 检查是否有观察者
func (ps *PublishSubject) HasObservers() bool {
	return ps.ObserverCount() > 0
}

// ObserverCount 获取观察者数量
func (ps *PublishSubject) ObserverCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.observers)
}

// ============================================================================
// BehaviorSubject - 行为主题
// ============================================================================

// BehaviorSubject 保存最新值，新订阅者订阅时立即收到它
type BehaviorSubject struct {
	*PublishSubject

	valueMu sync.Mutex
	value   interface{}
}

// NewBehaviorSubject 创建带初始值的行为主题
func NewBehaviorSubject(initialValue interface{}) *BehaviorSubject {
	bs := &BehaviorSubject{
		PublishSubject: &PublishSubject{},
		value:          initialValue,
	}
	bs.PublishSubject.Observable = NewObservable(bs.subscribe)
	return bs
}

func (bs *BehaviorSubject) subscribe(observer Observer) Subscription {
	bs.valueMu.Lock()
	current := bs.value
	bs.valueMu.Unlock()

	bs.PublishSubject.mu.Lock()
	terminated := bs.PublishSubject.terminal != nil
	bs.PublishSubject.mu.Unlock()

	if !terminated && current != nil {
		observer(CreateItem(current))
	}
	return bs.PublishSubject.subscribe(observer)
}

// OnNext 更新最新值并发送
func (bs *BehaviorSubject) OnNext(value interface{}) {
	if value == nil {
		return
	}
	bs.valueMu.Lock()
	bs.value = value
	bs.valueMu.Unlock()
	bs.PublishSubject.OnNext(value)
}

// AsObserver 返回Observer函数
func (bs *BehaviorSubject) AsObserver() Observer {
	return func(item Item) {
		switch {
		case item.IsError():
			bs.OnError(item.Error)
		case item.IsComplete():
			bs.OnComplete()
		default:
			bs.OnNext(item.Value)
		}
	}
}

// GetValue 获取当前值
func (bs *BehaviorSubject) GetValue() interface{} {
	bs.valueMu.Lock()
	defer bs.valueMu.Unlock()
	return bs.value
}
