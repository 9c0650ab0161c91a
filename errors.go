// Error types for rxswitch
// MultiSwitchScan 的错误分类，所有错误对输出流都是终止性的
package rxswitch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownIndex 事件携带的来源下标没有注册归约函数
	ErrUnknownIndex = errors.New("rxswitch: unknown source index")
	// ErrTypeMismatch 累积值或辅助流的值与归约函数声明的类型不符
	ErrTypeMismatch = errors.New("rxswitch: type mismatch")
	// ErrNilAccumulation 归约函数返回了 nil，nil 在流中表示完成信号
	ErrNilAccumulation = errors.New("rxswitch: reducer returned nil")
	// ErrNilSource 条目没有数据源
	ErrNilSource = errors.New("rxswitch: nil source")
	// ErrNilReducer 条目没有归约函数
	ErrNilReducer = errors.New("rxswitch: nil reducer")
	// ErrNilPrimary 主流为 nil
	ErrNilPrimary = errors.New("rxswitch: nil primary stream")
)

// PrimaryStreamError 主流发出的错误
type PrimaryStreamError struct {
	Err error
}

func (e *PrimaryStreamError) Error() string {
	return fmt.Sprintf("rxswitch: primary stream failed: %v", e.Err)
}

func (e *PrimaryStreamError) Unwrap() error { return e.Err }

// AuxiliaryStreamError 第 Index 个辅助流发出的错误
type AuxiliaryStreamError struct {
	Index int
	Err   error
}

func (e *AuxiliaryStreamError) Error() string {
	return fmt.Sprintf("rxswitch: auxiliary stream %d failed: %v", e.Index, e.Err)
}

func (e *AuxiliaryStreamError) Unwrap() error { return e.Err }

// ReducerError 归约函数返回错误、panic 或类型不匹配
type ReducerError struct {
	Index int
	Seq   int
	Err   error
	// Panic 归约函数 panic 时恢复出的值
	Panic interface{}
}

func (e *ReducerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("rxswitch: reducer %d panicked at seq %d: %v", e.Index, e.Seq, e.Panic)
	}
	return fmt.Sprintf("rxswitch: reducer %d failed at seq %d: %v", e.Index, e.Seq, e.Err)
}

func (e *ReducerError) Unwrap() error { return e.Err }

// UnknownIndexError 路由缺陷：事件的来源下标超出注册范围
type UnknownIndexError struct {
	Index int
	Count int
}

func (e *UnknownIndexError) Error() string {
	return fmt.Sprintf("rxswitch: unknown source index %d (registered %d)", e.Index, e.Count)
}

func (e *UnknownIndexError) Unwrap() error { return ErrUnknownIndex }

// TypeMismatchError 归约函数收到的值类型与声明不符
type TypeMismatchError struct {
	// Role 是 "accumulator" 或 "value"
	Role string
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("rxswitch: %s type mismatch: want %s, got %s", e.Role, e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// errorKind 返回用于日志和指标的错误类别
func errorKind(err error) string {
	var (
		primary *PrimaryStreamError
		aux     *AuxiliaryStreamError
		reducer *ReducerError
		unknown *UnknownIndexError
	)
	switch {
	case errors.As(err, &primary):
		return "primary"
	case errors.As(err, &aux):
		return "auxiliary"
	case errors.As(err, &reducer):
		return "reducer"
	case errors.As(err, &unknown):
		return "unknown_index"
	default:
		return "other"
	}
}
