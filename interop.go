// ReactiveX interop for rxswitch
// 与 github.com/reactivex/rxgo/v2 之间的桥接
package rxswitch

import (
	"context"
	"sync"

	rxgo "github.com/reactivex/rxgo/v2"
)

// FromReactiveX 把 ReactiveX Observable 包装为本包的 Observable。
// 每次订阅都会调用一次 Observe，取消订阅时通过上下文停止上游。
// ReactiveX 的 nil 值在本包中表示完成信号，因此被跳过。
func FromReactiveX(source rxgo.Observable, options ...Option) Observable {
	config := newConfig(options)
	return NewObservable(func(observer Observer) Subscription {
		ctx, cancel := context.WithCancel(config.Context)
		items := source.Observe(rxgo.WithContext(ctx))

		go func() {
			defer cancel()

			for {
				select {
				case <-ctx.Done():
					return
				case item, ok := <-items:
					if !ok {
						observer(CreateCompleteItem())
						return
					}
					if item.Error() {
						observer(CreateErrorItem(item.E))
						return
					}
					if item.V == nil {
						continue
					}
					observer(CreateItem(item.V))
				}
			}
		}()

		return newActionSubscription(cancel)
	}, options...)
}

// ToReactiveX 把本包的 Observable 暴露为冷的 ReactiveX Observable。
// 每次 Observe 都会独立订阅 source，ReactiveX 侧的上下文结束时取消订阅。
func ToReactiveX(source Observable, options ...rxgo.Option) rxgo.Observable {
	return rxgo.Defer([]rxgo.Producer{func(ctx context.Context, next chan<- rxgo.Item) {
		done := make(chan struct{})
		var once sync.Once
		finish := func() { once.Do(func() { close(done) }) }

		subscription := source.Subscribe(func(item Item) {
			switch {
			case item.IsError():
				rxgo.Error(item.Error).SendContext(ctx, next)
				finish()
			case item.IsComplete():
				finish()
			default:
				if !rxgo.Of(item.Value).SendContext(ctx, next) {
					finish()
				}
			}
		})
		defer subscription.Unsubscribe()

		select {
		case <-done:
		case <-ctx.Done():
		}
	}}, options...)
}
