// Core types for rxswitch
// 数据项、观察者、订阅与配置等核心定义
package rxswitch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ============================================================================
// 核心类型定义
// ============================================================================

// Item 表示流中的一个数据项，包含值或错误。
// Value 与 Error 同时为 nil 表示完成信号。
type Item struct {
	Value interface{} // 数据值
	Error error       // 错误信息
}

// IsError 检查项目是否包含错误
func (item Item) IsError() bool {
	return item.Error != nil
}

// IsComplete 检查项目是否为完成信号
func (item Item) IsComplete() bool {
	return item.Error == nil && item.Value == nil
}

// IsTerminal 检查项目是否为终止信号（完成或错误）
func (item Item) IsTerminal() bool {
	return item.Value == nil
}

// GetValue 获取项目的值，如果是错误则返回nil
func (item Item) GetValue() interface{} {
	if item.IsError() {
		return nil
	}
	return item.Value
}

// ============================================================================
// 函数类型定义
// ============================================================================

// Observer 观察者函数类型
type Observer func(item Item)

// OnNext 处理下一个值的函数
type OnNext func(value interface{})

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

// Predicate 谓词函数，用于过滤
type Predicate func(value interface{}) bool

// Transformer 转换函数，用于映射
type Transformer func(value interface{}) (interface{}, error)

// Reducer 归约函数，用于 Scan
type Reducer func(accumulator, current interface{}) interface{}

// ============================================================================
// 生命周期管理
// ============================================================================

// Subscription 订阅接口，管理订阅的生命周期
type Subscription interface {
	// Unsubscribe 取消订阅
	Unsubscribe()
	// IsUnsubscribed 检查是否已取消订阅
	IsUnsubscribed() bool
}

// Disposable 可释放资源的接口
type Disposable interface {
	Dispose()
	IsDisposed() bool
}

// CompositeDisposable 组合式资源管理器
type CompositeDisposable struct {
	mu        sync.Mutex
	disposed  bool
	resources []Disposable
}

// NewCompositeDisposable 创建组合式资源管理器
func NewCompositeDisposable() *CompositeDisposable {
	return &CompositeDisposable{}
}

// Add 添加可释放资源，已释放时立即释放新资源
func (cd *CompositeDisposable) Add(disposable Disposable) {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		disposable.Dispose()
		return
	}
	cd.resources = append(cd.resources, disposable)
	cd.mu.Unlock()
}

// Dispose 释放所有资源
func (cd *CompositeDisposable) Dispose() {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return
	}
	cd.disposed = true
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	for _, resource := range resources {
		resource.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (cd *CompositeDisposable) IsDisposed() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.disposed
}

// CompositeSubscription 把多个订阅作为一个整体取消
type CompositeSubscription struct {
	mu            sync.Mutex
	unsubscribed  int32
	subscriptions []Subscription
}

// NewCompositeSubscription 创建组合订阅
func NewCompositeSubscription() *CompositeSubscription {
	return &CompositeSubscription{}
}

// Add 添加订阅；组合订阅已取消时立即取消新订阅
func (cs *CompositeSubscription) Add(subscription Subscription) {
	if subscription == nil {
		return
	}

	cs.mu.Lock()
	if atomic.LoadInt32(&cs.unsubscribed) == 1 {
		cs.mu.Unlock()
		subscription.Unsubscribe()
		return
	}
	cs.subscriptions = append(cs.subscriptions, subscription)
	cs.mu.Unlock()
}

// Unsubscribe 取消全部订阅
func (cs *CompositeSubscription) Unsubscribe() {
	cs.mu.Lock()
	if !atomic.CompareAndSwapInt32(&cs.unsubscribed, 0, 1) {
		cs.mu.Unlock()
		return
	}
	subscriptions := cs.subscriptions
	cs.subscriptions = nil
	cs.mu.Unlock()

	for _, subscription := range subscriptions {
		subscription.Unsubscribe()
	}
}

// IsUnsubscribed 检查是否已取消
func (cs *CompositeSubscription) IsUnsubscribed() bool {
	return atomic.LoadInt32(&cs.unsubscribed) == 1
}

// Len 返回当前持有的订阅数量
func (cs *CompositeSubscription) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.subscriptions)
}

// ============================================================================
// 内部实现基础结构
// ============================================================================

// baseSubscription 基础订阅实现
type baseSubscription struct {
	unsubscribed int32
	disposable   Disposable
}

// NewBaseSubscription 创建基础订阅
func NewBaseSubscription(disposable Disposable) Subscription {
	return &baseSubscription{disposable: disposable}
}

// Unsubscribe 取消订阅
func (s *baseSubscription) Unsubscribe() {
	if atomic.CompareAndSwapInt32(&s.unsubscribed, 0, 1) && s.disposable != nil {
		s.disposable.Dispose()
	}
}

// IsUnsubscribed 检查是否已取消订阅
func (s *baseSubscription) IsUnsubscribed() bool {
	return atomic.LoadInt32(&s.unsubscribed) == 1
}

// baseDisposable 基础可释放资源实现
type baseDisposable struct {
	disposed int32
	action   func()
}

// NewBaseDisposable 创建基础可释放资源
func NewBaseDisposable(action func()) Disposable {
	return &baseDisposable{action: action}
}

// Dispose 释放资源
func (d *baseDisposable) Dispose() {
	if atomic.CompareAndSwapInt32(&d.disposed, 0, 1) && d.action != nil {
		d.action()
	}
}

// IsDisposed 检查是否已释放
func (d *baseDisposable) IsDisposed() bool {
	return atomic.LoadInt32(&d.disposed) == 1
}

// newActionSubscription 取消时执行 action 的订阅
func newActionSubscription(action func()) Subscription {
	return NewBaseSubscription(NewBaseDisposable(action))
}

// emptySubscription 返回一个无需释放任何资源的订阅
func emptySubscription() Subscription {
	return newActionSubscription(nil)
}

// ============================================================================
// 工具函数
// ============================================================================

// CreateItem 创建包含值的项目
func CreateItem(value interface{}) Item {
	return Item{Value: value}
}

// CreateErrorItem 创建包含错误的项目
func CreateErrorItem(err error) Item {
	return Item{Error: err}
}

// CreateCompleteItem 创建完成信号
func CreateCompleteItem() Item {
	return Item{}
}

// SafeExecute 安全执行函数，捕获panic
func SafeExecute(action func()) (recovered interface{}) {
	defer func() {
		if r := recover(); r != nil {
			recovered = r
		}
	}()

	action()
	return nil
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// OptionFunc 把普通函数适配为 Option
type OptionFunc func(config *Config)

// Apply 应用配置
func (f OptionFunc) Apply(config *Config) {
	f(config)
}

// Config 配置结构
type Config struct {
	// Name 出现在日志、指标和 span 中的操作符名称
	Name string
	// Logger 结构化日志，默认丢弃
	Logger *slog.Logger
	// MeterProvider 指标提供者，默认使用 otel 全局提供者
	MeterProvider metric.MeterProvider
	// TracerProvider 链路追踪提供者，默认使用 otel 全局提供者
	TracerProvider trace.TracerProvider
	// DrainOnComplete 主流完成后等待当前周期的辅助流全部完成再完成输出
	DrainOnComplete bool
	// Context 用于后台生产者（Interval、FromChannel 等）的生命周期
	Context context.Context
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Name:           "multi-switch-scan",
		Logger:         slog.New(slog.DiscardHandler),
		MeterProvider:  otel.GetMeterProvider(),
		TracerProvider: otel.GetTracerProvider(),
		Context:        context.Background(),
	}
}

func newConfig(options []Option) *Config {
	config := DefaultConfig()
	for _, opt := range options {
		if opt != nil {
			opt.Apply(config)
		}
	}
	return config
}

// WithName 设置操作符名称
func WithName(name string) Option {
	return OptionFunc(func(config *Config) {
		if name != "" {
			config.Name = name
		}
	})
}

// WithLogger 设置结构化日志
func WithLogger(logger *slog.Logger) Option {
	return OptionFunc(func(config *Config) {
		if logger != nil {
			config.Logger = logger
		}
	})
}

// WithMeterProvider 设置指标提供者
func WithMeterProvider(provider metric.MeterProvider) Option {
	return OptionFunc(func(config *Config) {
		if provider != nil {
			config.MeterProvider = provider
		}
	})
}

// WithTracerProvider 设置链路追踪提供者
func WithTracerProvider(provider trace.TracerProvider) Option {
	return OptionFunc(func(config *Config) {
		if provider != nil {
			config.TracerProvider = provider
		}
	})
}

// WithDrainOnComplete 主流完成后，输出等待当前周期的辅助流耗尽才完成
func WithDrainOnComplete() Option {
	return OptionFunc(func(config *Config) {
		config.DrainOnComplete = true
	})
}

// WithContext 设置后台生产者使用的上下文
func WithContext(ctx context.Context) Option {
	return OptionFunc(func(config *Config) {
		if ctx != nil {
			config.Context = ctx
		}
	})
}
