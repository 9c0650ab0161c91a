package rxswitch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestObservableOperators(t *testing.T) {
	ctx := context.Background()

	t.Run("Map", func(t *testing.T) {
		values, err := Just(1, 2, 3).Map(func(v interface{}) (interface{}, error) {
			return v.(int) * 2, nil
		}).ToSlice(ctx)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{2, 4, 6}, values)
	})

	t.Run("Map错误终止并取消上游", func(t *testing.T) {
		subject := NewPublishSubject()
		rec := newItemRecorder()
		subject.Map(func(v interface{}) (interface{}, error) {
			return nil, errors.New("bad value")
		}).Subscribe(rec.observer())

		subject.OnNext(1)
		assert.EqualError(t, rec.Err(), "bad value")
		assert.False(t, subject.HasObservers())
	})

	t.Run("Filter", func(t *testing.T) {
		values, err := Just(1, 2, 3, 4).Filter(func(v interface{}) bool { return v.(int)%2 == 0 }).ToSlice(ctx)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{2, 4}, values)
	})

	t.Run("Take", func(t *testing.T) {
		subject := NewPublishSubject()
		rec := newItemRecorder()
		subject.Take(2).Subscribe(rec.observer())

		subject.OnNext("a")
		subject.OnNext("b")
		subject.OnNext("c")
		assert.Equal(t, []interface{}{"a", "b"}, rec.Values())
		assert.True(t, rec.Completed())
		assert.False(t, subject.HasObservers())

		values, err := Just(1).Take(0).ToSlice(ctx)
		require.NoError(t, err)
		assert.Empty(t, values)
	})

	t.Run("Scan", func(t *testing.T) {
		values, err := Just(1, 2, 3).Scan(func(acc, v interface{}) interface{} {
			return acc.(int) + v.(int)
		}).ToSlice(ctx)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{1, 3, 6}, values)
	})

	t.Run("StartWith", func(t *testing.T) {
		values, err := Just(3).StartWith(1, 2).ToSlice(ctx)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{1, 2, 3}, values)
	})

	t.Run("副作用", func(t *testing.T) {
		var seen []interface{}
		var seenErr error
		finally := 0

		_, err := Just(1, 2).
			DoOnNext(func(v interface{}) { seen = append(seen, v) }).
			ToSlice(ctx)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{1, 2}, seen)

		boom := errors.New("boom")
		_, err = Error(boom).
			DoOnError(func(err error) { seenErr = err }).
			DoFinally(func() { finally++ }).
			ToSlice(ctx)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, boom, seenErr)
		assert.Equal(t, 1, finally)
	})

	t.Run("DoFinally在取消订阅时执行", func(t *testing.T) {
		finally := 0
		sub := Never().DoFinally(func() { finally++ }).Subscribe(func(Item) {})
		sub.Unsubscribe()
		sub.Unsubscribe()
		assert.Equal(t, 1, finally)
	})

	t.Run("SubscribeWithCallbacks", func(t *testing.T) {
		var values []interface{}
		completed := false
		Just("x").SubscribeWithCallbacks(
			func(v interface{}) { values = append(values, v) },
			nil,
			func() { completed = true })
		assert.Equal(t, []interface{}{"x"}, values)
		assert.True(t, completed)
	})
}

func TestObservableTerminalGuard(t *testing.T) {
	rec := newItemRecorder()
	count := 0
	Create(func(observer Observer) {
		observer(CreateItem(1))
		observer(CreateCompleteItem())
		observer(CreateItem(2))
		observer(CreateErrorItem(errors.New("late")))
	}).Subscribe(func(item Item) {
		count++
		rec.observer()(item)
	})

	assert.Equal(t, 2, count)
	assert.Equal(t, []interface{}{1}, rec.Values())
	assert.NoError(t, rec.Err())
}

func TestToSliceContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	values, err := Interval(5 * time.Millisecond).ToSlice(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotEmpty(t, values)
}

func TestFactories(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		values, err := Empty().ToSlice(ctx)
		require.NoError(t, err)
		assert.Empty(t, values)
	})

	t.Run("Defer每次订阅创建新的数据源", func(t *testing.T) {
		calls := 0
		deferred := Defer(func() Observable {
			calls++
			return Just(calls)
		})
		first, _ := deferred.ToSlice(ctx)
		second, _ := deferred.ToSlice(ctx)
		assert.Equal(t, []interface{}{1}, first)
		assert.Equal(t, []interface{}{2}, second)
	})

	t.Run("FromChannel", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

		ch := make(chan interface{}, 3)
		ch <- "a"
		ch <- "b"
		close(ch)
		values, err := FromChannel(ch).ToSlice(ctx)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"a", "b"}, values)
	})

	t.Run("FromChannel的错误值", func(t *testing.T) {
		boom := errors.New("boom")
		ch := make(chan interface{}, 2)
		ch <- 1
		ch <- boom
		values, err := FromChannel(ch).ToSlice(ctx)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []interface{}{1}, values)
	})

	t.Run("Interval随上下文停止", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

		runCtx, cancel := context.WithCancel(context.Background())
		values, err := Interval(time.Millisecond, WithContext(runCtx)).Take(3).ToSlice(ctx)
		cancel()
		require.NoError(t, err)
		assert.Equal(t, []interface{}{0, 1, 2}, values)
	})
}
