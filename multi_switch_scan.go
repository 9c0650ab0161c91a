// MultiSwitchScan operator for rxswitch
// 主流每发射一次就切换到新的累积周期，辅助流的值按来源交给各自的归约函数
package rxswitch

// MultiSwitchScan 构建多路切换累积流。
//
// primary 每发射一个值，就取消上一个周期的全部辅助流订阅，立即发射该值作为新周期的种子，
// 然后订阅全部辅助流；第 i 个辅助流的每个值都交给第 i 个归约函数折叠进累积值并发射结果。
// 输出在全部订阅者之间共享，并向后来的订阅者重放最近一个值；订阅者归零时释放全部上游订阅。
//
// 主流出错、任一辅助流出错或归约函数失败都会终止输出。主流完成时输出随之完成，
// 使用 WithDrainOnComplete 时则等到当前周期的辅助流全部完成。
func MultiSwitchScan(primary Observable, entries []SourceReducer, options ...Option) Observable {
	config := newConfig(options)
	if primary == nil {
		return Error(ErrNilPrimary)
	}
	registry, err := newReducerRegistry(entries)
	if err != nil {
		config.Logger.Error("invalid multi switch scan entries", "operator", config.Name, "error", err)
		return Error(err)
	}

	tel := newTelemetry(config)
	tramp := newTrampoline()
	logger := config.Logger.With("operator", config.Name)
	config.Logger = logger

	gate := newReplayGate(tramp, func(emit Observer) *switchCore {
		return newSwitchCore(primary, registry, tramp, emit, config, tel)
	}, logger, tel)

	return newPreparedObservable(gate.prepare, options...)
}

// MultiSwitchScanOperator 返回可复用的操作符函数
func MultiSwitchScanOperator(entries []SourceReducer, options ...Option) func(Observable) Observable {
	return func(primary Observable) Observable {
		return MultiSwitchScan(primary, entries, options...)
	}
}

// MultiSwitchScan 以当前 Observable 为主流
func (o *observableImpl) MultiSwitchScan(entries ...SourceReducer) Observable {
	return MultiSwitchScan(o, entries, o.forwardOptions()...)
}

// forwardOptions 把当前 Observable 的配置传给派生的操作符
func (o *observableImpl) forwardOptions() []Option {
	config := *o.config
	return []Option{OptionFunc(func(target *Config) {
		*target = config
	})}
}
