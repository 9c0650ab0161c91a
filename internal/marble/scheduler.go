// Virtual time scheduler for marble tests
// 可以手动控制时间的虚拟时钟调度器
package marble

import (
	"sort"
	"sync"

	"github.com/xinjiayu/rxswitch"
)

// MaxFrames Flush 执行的最大帧数，防止无限产生的数据源让测试挂起
const MaxFrames = 100000

// scheduledAction 调度的动作
type scheduledAction struct {
	frame     int
	seq       uint64
	action    func()
	cancelled bool
}

// Scheduler 虚拟时钟调度器。
// 同一帧内的动作按调度顺序执行。
type Scheduler struct {
	mu       sync.Mutex
	frame    int
	seq      uint64
	queue    []*scheduledAction
	hots     []*HotObservable
	flushing bool
}

// NewScheduler 创建虚拟时钟调度器
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now 当前帧
func (s *Scheduler) Now() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Schedule 在当前帧之后 delay 帧执行 action
func (s *Scheduler) Schedule(delay int, action func()) rxswitch.Disposable {
	return s.ScheduleAt(s.Now()+delay, action)
}

// ScheduleAt 在指定帧执行 action。早于当前帧的动作在当前帧执行。
func (s *Scheduler) ScheduleAt(frame int, action func()) rxswitch.Disposable {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame < s.frame {
		frame = s.frame
	}
	s.seq++
	scheduled := &scheduledAction{frame: frame, seq: s.seq, action: action}

	// 插入到正确的位置以保持 (帧, 序号) 顺序
	index := sort.Search(len(s.queue), func(i int) bool {
		return s.queue[i].frame > frame
	})
	s.queue = append(s.queue, nil)
	copy(s.queue[index+1:], s.queue[index:])
	s.queue[index] = scheduled

	return rxswitch.NewBaseDisposable(func() {
		s.mu.Lock()
		scheduled.cancelled = true
		s.mu.Unlock()
	})
}

// AdvanceTo 推进时间到指定帧，执行该帧及之前的全部动作
func (s *Scheduler) AdvanceTo(frame int) {
	s.setupHots()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].frame > frame {
			if frame > s.frame {
				s.frame = frame
			}
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		if next.cancelled {
			s.mu.Unlock()
			continue
		}
		s.frame = next.frame
		// 解锁以允许action执行时调度新任务
		s.mu.Unlock()

		next.action()
	}
}

// Flush 执行全部已调度的动作
func (s *Scheduler) Flush() {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.flushing = false
		s.mu.Unlock()
	}()

	s.AdvanceTo(MaxFrames)
}

// Pending 尚未执行的动作数量
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, action := range s.queue {
		if !action.cancelled {
			count++
		}
	}
	return count
}

func (s *Scheduler) setupHots() {
	s.mu.Lock()
	hots := s.hots
	s.hots = nil
	s.mu.Unlock()

	for _, hot := range hots {
		hot.setup()
	}
}
