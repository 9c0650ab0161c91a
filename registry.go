// Reducer registry for rxswitch
// 辅助流与归约函数的登记表
package rxswitch

import (
	"fmt"
	"reflect"
)

// SeedIndex 种子事件使用的保留来源下标
const SeedIndex = -1

// TaggedEvent 带来源下标的辅助流事件
type TaggedEvent struct {
	Value       interface{}
	SourceIndex int
}

// AccumulatorFunc 把类型为 U 的辅助流值折叠进类型为 R 的累积值。
// seq 是本周期内的事件序号，种子为 0，第一个辅助事件为 1。
type AccumulatorFunc[R, U any] func(acc R, value U, seq int) R

// AccumulatorFuncE 可以返回错误的 AccumulatorFunc，错误会终止输出流
type AccumulatorFuncE[R, U any] func(acc R, value U, seq int) (R, error)

// reduceFunc 擦除类型后的归约函数
type reduceFunc func(acc, value interface{}, seq int) (interface{}, error)

// SourceReducer 一个辅助流及其归约函数，由 Accumulate 或 AccumulateE 创建
type SourceReducer struct {
	Source Observable
	reduce reduceFunc
	label  string
}

// String 返回条目的类型描述
func (sr SourceReducer) String() string {
	return sr.label
}

// Accumulate 绑定辅助流与归约函数
func Accumulate[R, U any](source Observable, fn AccumulatorFunc[R, U]) SourceReducer {
	if fn == nil {
		return SourceReducer{Source: source, label: describe[R, U]()}
	}
	return AccumulateE(source, func(acc R, value U, seq int) (R, error) {
		return fn(acc, value, seq), nil
	})
}

// AccumulateE 绑定辅助流与可能失败的归约函数
func AccumulateE[R, U any](source Observable, fn AccumulatorFuncE[R, U]) SourceReducer {
	entry := SourceReducer{Source: source, label: describe[R, U]()}
	if fn == nil {
		return entry
	}

	entry.reduce = func(acc, value interface{}, seq int) (interface{}, error) {
		typedAcc, ok := acc.(R)
		if !ok {
			return nil, &TypeMismatchError{Role: "accumulator", Want: typeName[R](), Got: fmt.Sprintf("%T", acc)}
		}
		typedValue, ok := value.(U)
		if !ok {
			return nil, &TypeMismatchError{Role: "value", Want: typeName[U](), Got: fmt.Sprintf("%T", value)}
		}

		next, err := fn(typedAcc, typedValue, seq)
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return entry
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

func describe[R, U any]() string {
	return fmt.Sprintf("(%s, %s) -> %s", typeName[R](), typeName[U](), typeName[R]())
}

// ============================================================================
// reducerRegistry
// ============================================================================

// reducerRegistry 构建后不可变的下标到归约函数映射
type reducerRegistry struct {
	sources  []Observable
	reducers []reduceFunc
}

func newReducerRegistry(entries []SourceReducer) (*reducerRegistry, error) {
	registry := &reducerRegistry{
		sources:  make([]Observable, len(entries)),
		reducers: make([]reduceFunc, len(entries)),
	}
	for i, entry := range entries {
		if entry.Source == nil {
			return nil, fmt.Errorf("entry %d: %w", i, ErrNilSource)
		}
		if entry.reduce == nil {
			return nil, fmt.Errorf("entry %d: %w", i, ErrNilReducer)
		}
		registry.sources[i] = entry.Source
		registry.reducers[i] = entry.reduce
	}
	return registry, nil
}

// count 已登记的辅助流数量
func (r *reducerRegistry) count() int {
	return len(r.reducers)
}

// keepSeed 种子下标对应的归约函数，原样返回累积值
func keepSeed(acc, _ interface{}, _ int) (interface{}, error) {
	return acc, nil
}

// lookup 返回第 index 个归约函数，SeedIndex 返回 keepSeed
func (r *reducerRegistry) lookup(index int) (reduceFunc, error) {
	if index == SeedIndex {
		return keepSeed, nil
	}
	if index < 0 || index >= len(r.reducers) {
		return nil, &UnknownIndexError{Index: index, Count: len(r.reducers)}
	}
	return r.reducers[index], nil
}

// source 返回第 index 个辅助流
func (r *reducerRegistry) source(index int) Observable {
	return r.sources[index]
}
