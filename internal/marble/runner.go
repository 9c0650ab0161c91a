// Marble test runner
// 弹珠测试入口：创建数据源、登记期望、Flush 后统一断言
package marble

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xinjiayu/rxswitch"
)

// Values 弹珠字符到值的映射
type Values map[string]interface{}

// Runner 一个弹珠测试的上下文
type Runner struct {
	*Scheduler

	t          testing.TB
	assertions []func()
}

// New 创建弹珠测试上下文
func New(t testing.TB) *Runner {
	return &Runner{Scheduler: NewScheduler(), t: t}
}

// Run 创建上下文，执行 body，然后 Flush 并断言全部期望
func Run(t testing.TB, body func(m *Runner)) {
	m := New(t)
	body(m)
	m.Flush()
}

// Cold 创建冷数据源
func (m *Runner) Cold(marbles string, values Values, err ...error) *ColdObservable {
	m.t.Helper()
	messages, parseErr := ParseMessages(marbles, values, firstError(err))
	require.NoError(m.t, parseErr)
	return NewCold(m.Scheduler, messages)
}

// Hot 创建热数据源
func (m *Runner) Hot(marbles string, values Values, err ...error) *HotObservable {
	m.t.Helper()
	messages, parseErr := ParseMessages(marbles, values, firstError(err))
	require.NoError(m.t, parseErr)
	return NewHot(m.Scheduler, messages)
}

// Expectation 对一个 Observable 输出的期望
type Expectation struct {
	runner *Runner
	actual *[]Message
}

// Expect 在第 0 帧（或订阅弹珠图的 '^' 处）订阅 observable 并记录其输出；
// 订阅弹珠图中的 '!' 处取消订阅。
func (m *Runner) Expect(observable rxswitch.Observable, subscriptionMarbles ...string) *Expectation {
	m.t.Helper()
	log := SubscriptionLog{Subscribed: 0, Unsubscribed: Never}
	if len(subscriptionMarbles) > 0 {
		parsed, err := ParseSubscription(subscriptionMarbles[0])
		require.NoError(m.t, err)
		log = parsed
		if log.Subscribed == Never {
			log.Subscribed = 0
		}
	}

	actual := &[]Message{}
	var subscription rxswitch.Subscription
	m.ScheduleAt(log.Subscribed, func() {
		subscription = observable.Subscribe(func(item rxswitch.Item) {
			message := Message{Frame: m.Now()}
			switch {
			case item.IsError():
				message.Kind = KindError
				message.Err = item.Error
			case item.IsComplete():
				message.Kind = KindComplete
			default:
				message.Kind = KindNext
				message.Value = item.Value
			}
			*actual = append(*actual, message)
		})
	})
	if log.Unsubscribed != Never {
		m.ScheduleAt(log.Unsubscribed, func() {
			if subscription != nil {
				subscription.Unsubscribe()
			}
		})
	}
	return &Expectation{runner: m, actual: actual}
}

// ToBe 断言输出与弹珠图一致。'#' 的错误用 errors.Is 比较。
func (e *Expectation) ToBe(marbles string, values Values, err ...error) {
	t := e.runner.t
	t.Helper()
	expected, parseErr := ParseMessages(marbles, values, firstError(err))
	require.NoError(t, parseErr)

	e.runner.assertions = append(e.runner.assertions, func() {
		t.Helper()
		actual := normalizeErrors(expected, *e.actual)
		assert.Equal(t, expected, actual, "marble %q", marbles)
	})
}

// Messages 返回已记录的输出，仅在 Flush 之后有意义
func (e *Expectation) Messages() []Message {
	return *e.actual
}

// ExpectSubscriptions 断言数据源的订阅日志与订阅弹珠图一致
func (m *Runner) ExpectSubscriptions(source Logged, marbles ...string) {
	m.t.Helper()
	expected := make([]SubscriptionLog, 0, len(marbles))
	for _, marble := range marbles {
		log, err := ParseSubscription(marble)
		require.NoError(m.t, err)
		expected = append(expected, log)
	}

	m.assertions = append(m.assertions, func() {
		m.t.Helper()
		assert.Equal(m.t, expected, source.Subscriptions(), "subscriptions %q", marbles)
	})
}

// Flush 执行全部已调度的动作并运行断言
func (m *Runner) Flush() {
	m.t.Helper()
	m.Scheduler.Flush()

	assertions := m.assertions
	m.assertions = nil
	for _, assertion := range assertions {
		assertion()
	}
}

func firstError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// normalizeErrors 把与期望错误匹配（errors.Is）的实际错误替换为期望错误本身
func normalizeErrors(expected, actual []Message) []Message {
	normalized := make([]Message, len(actual))
	copy(normalized, actual)
	for i := range normalized {
		if i >= len(expected) {
			break
		}
		if normalized[i].Kind == KindError && expected[i].Kind == KindError &&
			errors.Is(normalized[i].Err, expected[i].Err) {
			normalized[i].Err = expected[i].Err
		}
	}
	return normalized
}
