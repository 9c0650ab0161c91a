// Observable implementation for rxswitch
// 同步推送式 Observable 的核心实现与基础操作符
package rxswitch

import (
	"context"
	"sync"
	"sync/atomic"
)

// ============================================================================
// Observable 核心接口
// ============================================================================

// Observable 可观察序列的核心接口
type Observable interface {
	// Subscribe 订阅观察者
	Subscribe(observer Observer) Subscription

	// SubscribeWithCallbacks 使用回调函数订阅
	SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Subscription

	// 转换操作符
	Map(transformer Transformer) Observable
	Filter(predicate Predicate) Observable
	Take(count int) Observable
	Scan(reducer Reducer) Observable
	StartWith(values ...interface{}) Observable

	// 副作用操作符
	DoOnNext(action OnNext) Observable
	DoOnError(action OnError) Observable
	DoFinally(action func()) Observable

	// MultiSwitchScan 以当前 Observable 为主流构建多路切换累积
	MultiSwitchScan(entries ...SourceReducer) Observable

	// ToSlice 阻塞收集全部值，直到完成、出错或 ctx 结束
	ToSlice(ctx context.Context) ([]interface{}, error)
}

// ============================================================================
// Observable 核心实现
// ============================================================================

// observableImpl Observable的核心实现
type observableImpl struct {
	source  func(observer Observer) Subscription
	prepare func(observer Observer) (Subscription, func())
	config  *Config
}

// newPreparedObservable 创建先返回订阅句柄、再由 start 开始发射的Observable
func newPreparedObservable(prepare func(observer Observer) (Subscription, func()), options ...Option) Observable {
	return &observableImpl{
		prepare: prepare,
		config:  newConfig(options),
	}
}

// NewObservable 创建新的Observable。source 在每次订阅时调用一次。
func NewObservable(source func(observer Observer) Subscription, options ...Option) Observable {
	return &observableImpl{
		source: source,
		config: newConfig(options),
	}
}

// Subscribe 订阅观察者。终止信号最多送达一次，取消订阅后不再送达任何数据。
func (o *observableImpl) Subscribe(observer Observer) Subscription {
	handle := &deferredSubscription{}
	o.subscribeInto(observer, handle)
	return handle
}

// subscribeInto 订阅并把句柄登记到 handle。
// 先返回句柄再开始发射的数据源，在同步发射期间就能通过 handle 取消。
func (o *observableImpl) subscribeInto(observer Observer, handle *deferredSubscription) {
	guard := &guardedObserver{target: observer}
	if o.prepare == nil {
		handle.set(guard.subscription(o.source(guard.onItem)))
		return
	}

	subscription, start := o.prepare(guard.onItem)
	handle.set(guard.subscription(subscription))
	if !handle.IsUnsubscribed() {
		start()
	}
}

// SubscribeWithCallbacks 使用回调函数订阅
func (o *observableImpl) SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Subscription {
	return o.Subscribe(callbackObserver(onNext, onError, onComplete))
}

func callbackObserver(onNext OnNext, onError OnError, onComplete OnComplete) Observer {
	return func(item Item) {
		switch {
		case item.IsError():
			if onError != nil {
				onError(item.Error)
			}
		case item.IsComplete():
			if onComplete != nil {
				onComplete()
			}
		default:
			if onNext != nil {
				onNext(item.Value)
			}
		}
	}
}

// guardedObserver 保证终止信号之后和取消之后不再转发
type guardedObserver struct {
	target Observer
	done   int32
}

func (g *guardedObserver) onItem(item Item) {
	if atomic.LoadInt32(&g.done) == 1 {
		return
	}
	if item.IsTerminal() {
		if !atomic.CompareAndSwapInt32(&g.done, 0, 1) {
			return
		}
	}
	g.target(item)
}

func (g *guardedObserver) stop() {
	atomic.StoreInt32(&g.done, 1)
}

// subscription 取消时先停止转发，再取消上游
func (g *guardedObserver) subscription(upstream Subscription) Subscription {
	return newActionSubscription(func() {
		g.stop()
		if upstream != nil {
			upstream.Unsubscribe()
		}
	})
}

// deferredSubscription 在上游订阅句柄返回之前就可以被取消
type deferredSubscription struct {
	mu           sync.Mutex
	subscription Subscription
	unsubscribed bool
}

func (d *deferredSubscription) set(subscription Subscription) {
	d.mu.Lock()
	if d.unsubscribed {
		d.mu.Unlock()
		subscription.Unsubscribe()
		return
	}
	d.subscription = subscription
	d.mu.Unlock()
}

func (d *deferredSubscription) Unsubscribe() {
	d.mu.Lock()
	if d.unsubscribed {
		d.mu.Unlock()
		return
	}
	d.unsubscribed = true
	subscription := d.subscription
	d.mu.Unlock()

	if subscription != nil {
		subscription.Unsubscribe()
	}
}

func (d *deferredSubscription) IsUnsubscribed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unsubscribed
}

// ============================================================================
// 转换操作符
// ============================================================================

// Map 转换操作符
func (o *observableImpl) Map(transformer Transformer) Observable {
	return newPreparedObservable(func(observer Observer) (Subscription, func()) {
		upstream := &deferredSubscription{}
		return upstream, func() {
			o.subscribeInto(func(item Item) {
				if item.IsTerminal() {
					observer(item)
					return
				}

				result, err := transformer(item.Value)
				if err != nil {
					observer(CreateErrorItem(err))
					upstream.Unsubscribe()
					return
				}
				observer(CreateItem(result))
			}, upstream)
		}
	})
}

// Filter 过滤操作符
func (o *observableImpl) Filter(predicate Predicate) Observable {
	return NewObservable(func(observer Observer) Subscription {
		return o.Subscribe(func(item Item) {
			if item.IsTerminal() || predicate(item.Value) {
				observer(item)
			}
		})
	})
}

// Take 取前N个元素，然后完成并取消上游。
// 上游在订阅期间同步发射时，取消同样会在发射过程中送达上游。
func (o *observableImpl) Take(count int) Observable {
	return newPreparedObservable(func(observer Observer) (Subscription, func()) {
		upstream := &deferredSubscription{}
		return upstream, func() {
			if count <= 0 {
				observer(CreateCompleteItem())
				upstream.Unsubscribe()
				return
			}

			var taken int32
			o.subscribeInto(func(item Item) {
				if item.IsTerminal() {
					observer(item)
					return
				}

				n := atomic.AddInt32(&taken, 1)
				if n > int32(count) {
					return
				}
				observer(item)
				if n == int32(count) {
					observer(CreateCompleteItem())
					upstream.Unsubscribe()
				}
			}, upstream)
		}
	})
}

// Scan 对单个流做累积，发射每一步的累积值
func (o *observableImpl) Scan(reducer Reducer) Observable {
	return NewObservable(func(observer Observer) Subscription {
		var (
			mu          sync.Mutex
			accumulator interface{}
			hasValue    bool
		)
		return o.Subscribe(func(item Item) {
			if item.IsTerminal() {
				observer(item)
				return
			}

			mu.Lock()
			if hasValue {
				accumulator = reducer(accumulator, item.Value)
			} else {
				accumulator = item.Value
				hasValue = true
			}
			current := accumulator
			mu.Unlock()

			observer(CreateItem(current))
		})
	})
}

// StartWith 先同步发射给定的值，再订阅原Observable
func (o *observableImpl) StartWith(values ...interface{}) Observable {
	return NewObservable(func(observer Observer) Subscription {
		for _, value := range values {
			observer(CreateItem(value))
		}
		return o.Subscribe(observer)
	})
}

// ============================================================================
// 副作用操作符
// ============================================================================

// DoOnNext 每个值到达时执行副作用
func (o *observableImpl) DoOnNext(action OnNext) Observable {
	return NewObservable(func(observer Observer) Subscription {
		return o.Subscribe(func(item Item) {
			if !item.IsTerminal() {
				action(item.Value)
			}
			observer(item)
		})
	})
}

// DoOnError 错误到达时执行副作用
func (o *observableImpl) DoOnError(action OnError) Observable {
	return NewObservable(func(observer Observer) Subscription {
		return o.Subscribe(func(item Item) {
			if item.IsError() {
				action(item.Error)
			}
			observer(item)
		})
	})
}

// DoFinally 在终止或取消订阅后执行一次
func (o *observableImpl) DoFinally(action func()) Observable {
	return NewObservable(func(observer Observer) Subscription {
		var once sync.Once
		finally := func() { once.Do(action) }

		subscription := o.Subscribe(func(item Item) {
			observer(item)
			if item.IsTerminal() {
				finally()
			}
		})
		return newActionSubscription(func() {
			subscription.Unsubscribe()
			finally()
		})
	})
}

// ============================================================================
// 阻塞操作
// ============================================================================

// ToSlice 阻塞收集全部值
func (o *observableImpl) ToSlice(ctx context.Context) ([]interface{}, error) {
	var (
		mu     sync.Mutex
		values []interface{}
		err    error
	)
	done := make(chan struct{})

	subscription := o.Subscribe(func(item Item) {
		if item.IsTerminal() {
			mu.Lock()
			err = item.Error
			mu.Unlock()
			close(done)
			return
		}
		mu.Lock()
		values = append(values, item.Value)
		mu.Unlock()
	})
	defer subscription.Unsubscribe()

	select {
	case <-done:
	case <-ctx.Done():
		subscription.Unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		return values, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	return values, err
}
