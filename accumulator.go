// Accumulator engine for rxswitch
// 以主流的值为种子，按来源下标分派归约函数的左折叠
package rxswitch

import "fmt"

// accumulatorEngine 单个周期的累积状态
type accumulatorEngine struct {
	registry *reducerRegistry
	state    interface{}
	seq      int
}

func newAccumulatorEngine(registry *reducerRegistry, seed interface{}) *accumulatorEngine {
	return &accumulatorEngine{registry: registry, state: seed}
}

// fold 折叠一个事件并返回新的累积值。
// 种子事件原样返回当前状态；其余事件交给对应下标的归约函数。
// 每个事件（包括种子）都占用一个序号。
func (e *accumulatorEngine) fold(event TaggedEvent) (interface{}, error) {
	seq := e.seq
	e.seq++

	if event.SourceIndex == SeedIndex {
		return e.state, nil
	}

	reduce, err := e.registry.lookup(event.SourceIndex)
	if err != nil {
		return nil, err
	}

	var next interface{}
	var reduceErr error
	if recovered := SafeExecute(func() {
		next, reduceErr = reduce(e.state, event.Value, seq)
	}); recovered != nil {
		return nil, &ReducerError{
			Index: event.SourceIndex,
			Seq:   seq,
			Err:   fmt.Errorf("panic: %v", recovered),
			Panic: recovered,
		}
	}
	if reduceErr != nil {
		return nil, &ReducerError{Index: event.SourceIndex, Seq: seq, Err: reduceErr}
	}
	if next == nil {
		return nil, &ReducerError{Index: event.SourceIndex, Seq: seq, Err: ErrNilAccumulation}
	}

	e.state = next
	return next, nil
}

// current 当前累积值
func (e *accumulatorEngine) current() interface{} {
	return e.state
}
