// Trampoline implementation for rxswitch
// 单逻辑线程执行队列：同一时刻只有一个 goroutine 执行任务
package rxswitch

import "sync"

// trampoline 串行执行提交的任务。
//
// 没有任务在执行时，调用 run 的 goroutine 立即执行任务并继续排空队列。
// 任务执行期间提交的新任务（无论来自哪个 goroutine）在当前任务结束后、
// 更早排队的任务之前执行，与同步递归的推送顺序一致。
type trampoline struct {
	mu       sync.Mutex
	queue    []func()
	pending  []func()
	draining bool
}

func newTrampoline() *trampoline {
	return &trampoline{}
}

// run 提交任务。调用方不会被阻塞等待其他 goroutine 的任务。
func (t *trampoline) run(task func()) {
	t.mu.Lock()
	if t.draining {
		t.pending = append(t.pending, task)
		t.mu.Unlock()
		return
	}
	t.draining = true
	if len(t.queue) > 0 {
		// 上次排空中断时遗留的任务先执行
		t.queue = append(t.queue, task)
		task = t.queue[0]
		t.queue[0] = nil
		t.queue = t.queue[1:]
	}
	t.mu.Unlock()

	t.drain(task)
}

func (t *trampoline) drain(task func()) {
	defer func() {
		// 任务 panic 时放弃排空，保留剩余任务给下一次 run
		if r := recover(); r != nil {
			t.mu.Lock()
			t.queue = append(t.pending, t.queue...)
			t.pending = nil
			t.draining = false
			t.mu.Unlock()
			panic(r)
		}
	}()

	for {
		task()

		t.mu.Lock()
		if len(t.pending) > 0 {
			t.queue = append(t.pending, t.queue...)
			t.pending = nil
		}
		if len(t.queue) == 0 {
			t.draining = false
			t.mu.Unlock()
			return
		}
		task = t.queue[0]
		t.queue[0] = nil
		t.queue = t.queue[1:]
		t.mu.Unlock()
	}
}

// idle 报告当前是否没有任务在执行或排队
func (t *trampoline) idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.draining && len(t.queue) == 0 && len(t.pending) == 0
}
