package rxswitch

import (
	"sync"
	"time"
)

const (
	timeoutShort = 2 * time.Second
	tickShort    = 5 * time.Millisecond
)

// itemRecorder 同步记录观察者收到的全部数据项
type itemRecorder struct {
	mu        sync.Mutex
	values    []interface{}
	err       error
	completed bool
	done      chan struct{}
	once      sync.Once
}

func newItemRecorder() *itemRecorder {
	return &itemRecorder{done: make(chan struct{})}
}

func (r *itemRecorder) observer() Observer {
	return func(item Item) {
		r.mu.Lock()
		defer r.mu.Unlock()

		switch {
		case item.IsError():
			r.err = item.Error
			r.once.Do(func() { close(r.done) })
		case item.IsComplete():
			r.completed = true
			r.once.Do(func() { close(r.done) })
		default:
			r.values = append(r.values, item.Value)
		}
	}
}

func (r *itemRecorder) Values() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	values := make([]interface{}, len(r.values))
	copy(values, r.values)
	return values
}

func (r *itemRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *itemRecorder) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// wait 等待终止信号，超时返回 false
func (r *itemRecorder) wait(timeout time.Duration) bool {
	select {
	case <-r.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// appendTo 把值追加到切片累积值的副本末尾
func appendTo[U any](acc []interface{}, value U, _ int) []interface{} {
	next := make([]interface{}, 0, len(acc)+1)
	next = append(next, acc...)
	return append(next, value)
}

func slice(values ...interface{}) []interface{} {
	return values
}
