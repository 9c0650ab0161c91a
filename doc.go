/*
Package rxswitch 提供 MultiSwitchScan：一个主流加若干（辅助流，归约函数）对的组合操作符。

主流每发射一个值 v：

  - 上一个周期的全部辅助流订阅被取消，旧周期的状态被丢弃；
  - 输出立即发射 v 作为新周期的种子；
  - 重新订阅全部辅助流，第 i 个辅助流的值交给第 i 个归约函数，
    结果作为新的累积值发射。

示例：

	snapshots := rxswitch.NewPublishSubject()
	trades := rxswitch.NewPublishSubject()

	book := rxswitch.MultiSwitchScan(snapshots, []rxswitch.SourceReducer{
		rxswitch.Accumulate(trades, func(acc Book, t Trade, seq int) Book {
			return acc.Apply(t)
		}),
	}, rxswitch.WithLogger(logger))

	sub := book.Subscribe(func(item rxswitch.Item) { ... })
	defer sub.Unsubscribe()

输出在所有订阅者之间共享，后来的订阅者立即收到最近一个值；
最后一个订阅者取消后全部上游订阅被释放。

运行时遵循单逻辑线程模型：同一个操作符实例的所有推送都经过一个蹦床队列串行执行，
因此归约函数不需要加锁。
*/
package rxswitch
