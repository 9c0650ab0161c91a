// Factory functions for rxswitch
// Observable 的创建函数
package rxswitch

import (
	"context"
	"time"
)

// ============================================================================
// 同步创建函数
// ============================================================================

// Just 在订阅时同步发射给定的值然后完成
func Just(values ...interface{}) Observable {
	return FromSlice(values)
}

// FromSlice 在订阅时同步发射切片中的值然后完成
func FromSlice(slice []interface{}) Observable {
	return NewObservable(func(observer Observer) Subscription {
		for _, value := range slice {
			observer(CreateItem(value))
		}
		observer(CreateCompleteItem())
		return emptySubscription()
	})
}

// Empty 创建立即完成的Observable
func Empty() Observable {
	return NewObservable(func(observer Observer) Subscription {
		observer(CreateCompleteItem())
		return emptySubscription()
	})
}

// Never 创建永不发射的Observable
func Never() Observable {
	return NewObservable(func(observer Observer) Subscription {
		return emptySubscription()
	})
}

// Error 创建立即出错的Observable
func Error(err error) Observable {
	return NewObservable(func(observer Observer) Subscription {
		observer(CreateErrorItem(err))
		return emptySubscription()
	})
}

// Create 用 emitter 同步产生数据。emitter 在订阅者的 goroutine 中执行，
// 取消订阅后 emitter 的后续发射被丢弃。
func Create(emitter func(observer Observer)) Observable {
	return NewObservable(func(observer Observer) Subscription {
		ctx, cancel := context.WithCancel(context.Background())
		emitter(func(item Item) {
			if ctx.Err() == nil {
				observer(item)
			}
		})
		return newActionSubscription(cancel)
	})
}

// Defer 每次订阅时调用工厂函数创建新的Observable
func Defer(factory func() Observable) Observable {
	return NewObservable(func(observer Observer) Subscription {
		return factory().Subscribe(observer)
	})
}

// ============================================================================
// 异步创建函数
// ============================================================================

// FromChannel 从 channel 读取数据，channel 关闭时完成。
// 收到的 error 值作为错误信号发射。
func FromChannel(ch <-chan interface{}, options ...Option) Observable {
	config := newConfig(options)
	return NewObservable(func(observer Observer) Subscription {
		ctx, cancel := context.WithCancel(config.Context)

		go func() {
			defer cancel()

			for {
				select {
				case <-ctx.Done():
					return
				case value, ok := <-ch:
					if !ok {
						observer(CreateCompleteItem())
						return
					}
					if err, isErr := value.(error); isErr {
						observer(CreateErrorItem(err))
						return
					}
					observer(CreateItem(value))
				}
			}
		}()

		return newActionSubscription(cancel)
	}, options...)
}

// Interval 每隔 period 发射一个递增的整数，从0开始
func Interval(period time.Duration, options ...Option) Observable {
	config := newConfig(options)
	return NewObservable(func(observer Observer) Subscription {
		ctx, cancel := context.WithCancel(config.Context)

		go func() {
			defer cancel()

			ticker := time.NewTicker(period)
			defer ticker.Stop()

			counter := 0
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					observer(CreateItem(counter))
					counter++
				}
			}
		}()

		return newActionSubscription(cancel)
	}, options...)
}
