// Tests for MultiSwitchScan
// MultiSwitchScan 的行为测试
package rxswitch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// ============================================================================
// 基本场景
// ============================================================================

func TestMultiSwitchScanScenarios(t *testing.T) {
	t.Run("只有主流发射时输出等于主流", func(t *testing.T) {
		values, err := MultiSwitchScan(Just(1, 2, 3), nil).ToSlice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []interface{}{1, 2, 3}, values)
	})

	t.Run("单次主流发射", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		out := MultiSwitchScan(primary, []SourceReducer{
			Accumulate[[]interface{}, string](aux, appendTo[string]),
		})

		rec := newItemRecorder()
		sub := out.Subscribe(rec.observer())
		defer sub.Unsubscribe()

		primary.OnNext(slice(10))
		assert.Equal(t, []interface{}{slice(10)}, rec.Values())
	})

	t.Run("主流发射后辅助流发射", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		out := MultiSwitchScan(primary, []SourceReducer{
			Accumulate[[]interface{}, string](aux, appendTo[string]),
		})

		rec := newItemRecorder()
		sub := out.Subscribe(rec.observer())
		defer sub.Unsubscribe()

		primary.OnNext(slice(10))
		aux.OnNext("A")
		assert.Equal(t, []interface{}{slice(10), slice(10, "A")}, rec.Values())
	})

	t.Run("主流两次发射后辅助流只作用于新种子", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		out := MultiSwitchScan(primary, []SourceReducer{
			Accumulate[[]interface{}, string](aux, appendTo[string]),
		})

		rec := newItemRecorder()
		sub := out.Subscribe(rec.observer())
		defer sub.Unsubscribe()

		primary.OnNext(slice(10))
		primary.OnNext(slice(20))
		aux.OnNext("A")
		assert.Equal(t, []interface{}{slice(10), slice(20), slice(20, "A")}, rec.Values())
	})

	t.Run("辅助流连续发射依次累积", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		out := MultiSwitchScan(primary, []SourceReducer{
			Accumulate[[]interface{}, string](aux, appendTo[string]),
		})

		rec := newItemRecorder()
		sub := out.Subscribe(rec.observer())
		defer sub.Unsubscribe()

		primary.OnNext(slice("seed"))
		aux.OnNext("A")
		aux.OnNext("B")
		assert.Equal(t, []interface{}{
			slice("seed"),
			slice("seed", "A"),
			slice("seed", "A", "B"),
		}, rec.Values())
	})

	t.Run("发射一次后完成", func(t *testing.T) {
		aux := NewPublishSubject()
		rec := newItemRecorder()
		MultiSwitchScan(Just(slice("seed")), []SourceReducer{
			Accumulate[[]interface{}, string](aux, appendTo[string]),
		}).Subscribe(rec.observer())

		assert.Equal(t, []interface{}{slice("seed")}, rec.Values())
		assert.True(t, rec.Completed())
		assert.False(t, aux.HasObservers(), "辅助流订阅应在完成时释放")
	})
}

func TestMultiSwitchScanRouting(t *testing.T) {
	t.Run("每个归约函数只收到自己来源的值", func(t *testing.T) {
		primary := NewPublishSubject()
		words := NewPublishSubject()
		counts := NewPublishSubject()

		type tally struct {
			Words []string
			Total int
		}

		out := MultiSwitchScan(primary, []SourceReducer{
			Accumulate(words, AccumulatorFunc[tally, string](func(acc tally, w string, _ int) tally {
				acc.Words = append(append([]string{}, acc.Words...), w)
				return acc
			})),
			Accumulate(counts, AccumulatorFunc[tally, int](func(acc tally, n int, _ int) tally {
				acc.Total += n
				return acc
			})),
		})

		rec := newItemRecorder()
		sub := out.Subscribe(rec.observer())
		defer sub.Unsubscribe()

		primary.OnNext(tally{})
		words.OnNext("go")
		counts.OnNext(3)
		words.OnNext("rx")
		counts.OnNext(4)

		values := rec.Values()
		require.Len(t, values, 5)
		assert.Equal(t, tally{Words: []string{"go", "rx"}, Total: 7}, values[4])
		assert.Equal(t, tally{}, values[0])
	})

	t.Run("序号从种子开始计数并在新周期重置", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()

		var mu sync.Mutex
		var seqs []int
		out := MultiSwitchScan(primary, []SourceReducer{
			Accumulate[int, int](aux, func(acc int, value int, seq int) int {
				mu.Lock()
				seqs = append(seqs, seq)
				mu.Unlock()
				return acc + value
			}),
		})

		rec := newItemRecorder()
		sub := out.Subscribe(rec.observer())
		defer sub.Unsubscribe()

		primary.OnNext(100)
		aux.OnNext(1)
		aux.OnNext(2)
		primary.OnNext(200)
		aux.OnNext(3)

		assert.Equal(t, []interface{}{100, 101, 103, 200, 203}, rec.Values())
		assert.Equal(t, []int{1, 2, 1}, seqs)
	})

	t.Run("同步辅助流在种子之后按下标顺序折叠", func(t *testing.T) {
		out := MultiSwitchScan(Just(slice(0)), []SourceReducer{
			Accumulate[[]interface{}, string](Just("a", "b"), appendTo[string]),
			Accumulate[[]interface{}, int](Just(1), appendTo[int]),
		}, WithDrainOnComplete())

		values, err := out.ToSlice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []interface{}{
			slice(0),
			slice(0, "a"),
			slice(0, "a", "b"),
			slice(0, "a", "b", 1),
		}, values)
	})

	t.Run("同步主流每个值都切换周期", func(t *testing.T) {
		out := MultiSwitchScan(Just(slice(1), slice(2)), []SourceReducer{
			Accumulate[[]interface{}, string](Just("x"), appendTo[string]),
		}, WithDrainOnComplete())

		values, err := out.ToSlice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []interface{}{
			slice(1), slice(1, "x"),
			slice(2), slice(2, "x"),
		}, values)
	})
}

// ============================================================================
// 共享与重放
// ============================================================================

func TestMultiSwitchScanSharing(t *testing.T) {
	t.Run("多个订阅者看到相同的序列且归约只执行一次", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()

		calls := 0
		out := MultiSwitchScan(primary, []SourceReducer{
			Accumulate[int, int](aux, func(acc, value, _ int) int {
				calls++
				return acc + value
			}),
		})

		first := newItemRecorder()
		second := newItemRecorder()
		sub1 := out.Subscribe(first.observer())
		sub2 := out.Subscribe(second.observer())
		defer sub1.Unsubscribe()
		defer sub2.Unsubscribe()

		primary.OnNext(1)
		aux.OnNext(10)
		aux.OnNext(100)

		assert.Equal(t, []interface{}{1, 11, 111}, first.Values())
		assert.Equal(t, first.Values(), second.Values())
		assert.Equal(t, 2, calls)
		assert.Equal(t, 1, primary.ObserverCount(), "主流只应被订阅一次")
	})

	t.Run("周期中途加入的订阅者立即收到最新值", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		out := MultiSwitchScan(primary, []SourceReducer{
			Accumulate[int, int](aux, func(acc, value, _ int) int { return acc + value }),
		})

		first := newItemRecorder()
		sub1 := out.Subscribe(first.observer())
		defer sub1.Unsubscribe()

		primary.OnNext(1)
		aux.OnNext(2)

		late := newItemRecorder()
		sub2 := out.Subscribe(late.observer())
		defer sub2.Unsubscribe()
		assert.Equal(t, []interface{}{3}, late.Values())

		aux.OnNext(3)
		assert.Equal(t, []interface{}{1, 3, 6}, first.Values())
		assert.Equal(t, []interface{}{3, 6}, late.Values())
	})

	t.Run("最后一个订阅者取消后释放全部上游并丢弃缓存", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		out := MultiSwitchScan(primary, []SourceReducer{
			Accumulate[int, int](aux, func(acc, value, _ int) int { return acc + value }),
		})

		first := newItemRecorder()
		sub := out.Subscribe(first.observer())
		primary.OnNext(1)
		aux.OnNext(1)
		require.True(t, primary.HasObservers())
		require.True(t, aux.HasObservers())

		sub.Unsubscribe()
		assert.True(t, sub.IsUnsubscribed())
		assert.False(t, primary.HasObservers())
		assert.False(t, aux.HasObservers())

		again := newItemRecorder()
		sub2 := out.Subscribe(again.observer())
		defer sub2.Unsubscribe()
		assert.Empty(t, again.Values(), "重新连接后不应重放旧周期的值")

		primary.OnNext(5)
		assert.Equal(t, []interface{}{5}, again.Values())
	})

	t.Run("取消订阅后不再收到任何值", func(t *testing.T) {
		primary := NewPublishSubject()
		out := MultiSwitchScan(primary, nil)

		first := newItemRecorder()
		second := newItemRecorder()
		sub1 := out.Subscribe(first.observer())
		sub2 := out.Subscribe(second.observer())
		defer sub2.Unsubscribe()

		primary.OnNext(1)
		sub1.Unsubscribe()
		primary.OnNext(2)

		assert.Equal(t, []interface{}{1}, first.Values())
		assert.Equal(t, []interface{}{1, 2}, second.Values())
	})

	t.Run("在回调中取消订阅", func(t *testing.T) {
		primary := NewPublishSubject()
		out := MultiSwitchScan(primary, nil)

		var got []interface{}
		var sub Subscription
		sub = out.Subscribe(func(item Item) {
			if item.IsTerminal() {
				return
			}
			got = append(got, item.Value)
			sub.Unsubscribe()
		})

		primary.OnNext(1)
		primary.OnNext(2)
		assert.Equal(t, []interface{}{1}, got)
		assert.False(t, primary.HasObservers())
	})

	t.Run("种子送达时取消订阅不会订阅辅助流", func(t *testing.T) {
		subscriptions := 0
		aux := Defer(func() Observable {
			subscriptions++
			return Never()
		})
		out := MultiSwitchScan(Just(slice(10)), []SourceReducer{
			Accumulate[[]interface{}, string](aux, appendTo[string]),
		})

		values, err := out.Take(1).ToSlice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []interface{}{slice(10)}, values)
		assert.Zero(t, subscriptions)

		values, err = out.Map(func(v interface{}) (interface{}, error) { return v, nil }).
			Take(1).ToSlice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []interface{}{slice(10)}, values)
		assert.Zero(t, subscriptions, "经过 Map 的取消同样在发射期间送达")
	})

	t.Run("跳过辅助流后新的订阅者到来时补订阅", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		out := MultiSwitchScan(primary, []SourceReducer{
			Accumulate[int, int](aux, func(acc, value, _ int) int { return acc + value }),
		})

		late := newItemRecorder()
		var lateSub Subscription
		var sub Subscription
		sub = out.Subscribe(func(item Item) {
			if item.IsTerminal() || lateSub != nil {
				return
			}
			lateSub = out.Subscribe(late.observer())
			sub.Unsubscribe()
		})
		defer func() { lateSub.Unsubscribe() }()

		primary.OnNext(1)
		require.NotNil(t, lateSub)
		assert.True(t, aux.HasObservers())

		aux.OnNext(2)
		assert.Equal(t, []interface{}{1, 3}, late.Values())
		assert.Equal(t, 1, primary.ObserverCount())
	})

	t.Run("终止后新的订阅者重新连接", func(t *testing.T) {
		out := MultiSwitchScan(Just(1, 2), nil)

		for i := 0; i < 2; i++ {
			values, err := out.ToSlice(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []interface{}{1, 2}, values)
		}
	})
}

// ============================================================================
// 完成与错误
// ============================================================================

func TestMultiSwitchScanCompletion(t *testing.T) {
	t.Run("默认在主流完成时立即完成", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		rec := newItemRecorder()
		MultiSwitchScan(primary, []SourceReducer{
			Accumulate[int, int](aux, func(acc, value, _ int) int { return acc + value }),
		}).Subscribe(rec.observer())

		primary.OnNext(1)
		primary.OnComplete()
		assert.True(t, rec.Completed())
		assert.False(t, aux.HasObservers())
	})

	t.Run("WithDrainOnComplete等待当前周期的辅助流完成", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		rec := newItemRecorder()
		MultiSwitchScan(primary, []SourceReducer{
			Accumulate[int, int](aux, func(acc, value, _ int) int { return acc + value }),
		}, WithDrainOnComplete()).Subscribe(rec.observer())

		primary.OnNext(1)
		primary.OnComplete()
		assert.False(t, rec.Completed())

		aux.OnNext(2)
		aux.OnComplete()
		assert.True(t, rec.Completed())
		assert.Equal(t, []interface{}{1, 3}, rec.Values())
	})

	t.Run("WithDrainOnComplete在没有周期时立即完成", func(t *testing.T) {
		rec := newItemRecorder()
		MultiSwitchScan(Empty(), []SourceReducer{
			Accumulate[int, int](Never(), func(acc, value, _ int) int { return acc }),
		}, WithDrainOnComplete()).Subscribe(rec.observer())
		assert.True(t, rec.Completed())
		assert.Empty(t, rec.Values())
	})
}

func TestMultiSwitchScanErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("主流错误", func(t *testing.T) {
		primary := NewPublishSubject()
		rec := newItemRecorder()
		MultiSwitchScan(primary, nil).Subscribe(rec.observer())

		primary.OnNext(1)
		primary.OnError(boom)

		var target *PrimaryStreamError
		require.ErrorAs(t, rec.Err(), &target)
		assert.ErrorIs(t, rec.Err(), boom)
	})

	t.Run("辅助流错误终止整个输出", func(t *testing.T) {
		primary := NewPublishSubject()
		first := NewPublishSubject()
		second := NewPublishSubject()
		rec := newItemRecorder()
		MultiSwitchScan(primary, []SourceReducer{
			Accumulate[int, int](first, func(acc, value, _ int) int { return acc + value }),
			Accumulate[int, int](second, func(acc, value, _ int) int { return acc * value }),
		}).Subscribe(rec.observer())

		primary.OnNext(2)
		second.OnError(boom)

		var target *AuxiliaryStreamError
		require.ErrorAs(t, rec.Err(), &target)
		assert.Equal(t, 1, target.Index)
		assert.ErrorIs(t, rec.Err(), boom)
		assert.False(t, primary.HasObservers())
		assert.False(t, first.HasObservers())
	})

	t.Run("归约函数返回错误", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		rec := newItemRecorder()
		MultiSwitchScan(primary, []SourceReducer{
			AccumulateE[int, int](aux, func(acc, value, _ int) (int, error) {
				if value < 0 {
					return 0, boom
				}
				return acc + value, nil
			}),
		}).Subscribe(rec.observer())

		primary.OnNext(1)
		aux.OnNext(1)
		aux.OnNext(-1)
		aux.OnNext(1)

		var target *ReducerError
		require.ErrorAs(t, rec.Err(), &target)
		assert.Equal(t, 0, target.Index)
		assert.Equal(t, 2, target.Seq)
		assert.ErrorIs(t, rec.Err(), boom)
		assert.Equal(t, []interface{}{1, 2}, rec.Values())
	})

	t.Run("归约函数panic被转换为错误", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		rec := newItemRecorder()
		MultiSwitchScan(primary, []SourceReducer{
			Accumulate[int, int](aux, func(acc, value, _ int) int {
				return acc / value
			}),
		}).Subscribe(rec.observer())

		primary.OnNext(1)
		aux.OnNext(0)

		var target *ReducerError
		require.ErrorAs(t, rec.Err(), &target)
		assert.NotNil(t, target.Panic)
	})

	t.Run("类型不匹配", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		rec := newItemRecorder()
		MultiSwitchScan(primary, []SourceReducer{
			Accumulate[int, int](aux, func(acc, value, _ int) int { return acc + value }),
		}).Subscribe(rec.observer())

		primary.OnNext(1)
		aux.OnNext("not a number")

		assert.ErrorIs(t, rec.Err(), ErrTypeMismatch)
		var mismatch *TypeMismatchError
		require.ErrorAs(t, rec.Err(), &mismatch)
		assert.Equal(t, "value", mismatch.Role)
		assert.Equal(t, "int", mismatch.Want)
		assert.Equal(t, "string", mismatch.Got)
	})

	t.Run("归约函数返回nil", func(t *testing.T) {
		primary := NewPublishSubject()
		aux := NewPublishSubject()
		rec := newItemRecorder()
		MultiSwitchScan(primary, []SourceReducer{
			Accumulate[interface{}, int](aux, func(acc interface{}, value, _ int) interface{} { return nil }),
		}).Subscribe(rec.observer())

		primary.OnNext(1)
		aux.OnNext(1)
		assert.ErrorIs(t, rec.Err(), ErrNilAccumulation)
	})

	t.Run("无效条目", func(t *testing.T) {
		_, err := MultiSwitchScan(Just(1), []SourceReducer{
			Accumulate[int, int](nil, func(acc, value, _ int) int { return acc }),
		}).ToSlice(context.Background())
		assert.ErrorIs(t, err, ErrNilSource)

		_, err = MultiSwitchScan(Just(1), []SourceReducer{
			Accumulate[int, int](Never(), nil),
		}).ToSlice(context.Background())
		assert.ErrorIs(t, err, ErrNilReducer)

		_, err = MultiSwitchScan(nil, nil).ToSlice(context.Background())
		assert.ErrorIs(t, err, ErrNilPrimary)
	})
}

// ============================================================================
// 运算符形式与并发
// ============================================================================

func TestMultiSwitchScanOperatorForms(t *testing.T) {
	entries := []SourceReducer{
		Accumulate[[]interface{}, string](Just("x"), appendTo[string]),
	}

	t.Run("方法形式", func(t *testing.T) {
		values, err := Just(slice(1)).MultiSwitchScan(entries...).ToSlice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []interface{}{slice(1), slice(1, "x")}, values)
	})

	t.Run("可复用的操作符函数", func(t *testing.T) {
		op := MultiSwitchScanOperator(entries, WithName("reusable"))
		for _, seed := range []int{1, 2} {
			values, err := op(Just(slice(seed))).ToSlice(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []interface{}{slice(seed), slice(seed, "x")}, values)
		}
	})

	t.Run("可以与其他操作符组合", func(t *testing.T) {
		values, err := Just(1, 2, 3).
			MultiSwitchScan().
			Map(func(v interface{}) (interface{}, error) { return v.(int) * 10, nil }).
			Filter(func(v interface{}) bool { return v.(int) > 10 }).
			ToSlice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []interface{}{20, 30}, values)
	})
}

func TestMultiSwitchScanConcurrentSources(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	primary := NewPublishSubject()
	feeds := make([]chan interface{}, 3)
	entries := make([]SourceReducer, len(feeds))
	for i := range feeds {
		feeds[i] = make(chan interface{})
		entries[i] = Accumulate[int, int](FromChannel(feeds[i]), func(acc, value, _ int) int {
			return acc + value
		})
	}

	out := MultiSwitchScan(primary, entries,
		WithLogger(slogt.New(t)),
		WithDrainOnComplete())
	rec := newItemRecorder()
	out.Subscribe(rec.observer())

	primary.OnNext(0)
	primary.OnComplete()

	var wg sync.WaitGroup
	for i, feed := range feeds {
		wg.Add(1)
		go func(i int, feed chan interface{}) {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				feed <- i + 1
			}
			close(feed)
		}(i, feed)
	}
	wg.Wait()

	require.True(t, rec.wait(5*time.Second), "输出应在全部辅助流完成后完成")
	values := rec.Values()
	require.Len(t, values, 301)
	assert.Equal(t, 600, values[len(values)-1], fmt.Sprintf("最终累积值 %v", values[len(values)-1]))
}
