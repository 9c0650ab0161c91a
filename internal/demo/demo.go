// Package demo wires a small order book pipeline on top of rxswitch.MultiSwitchScan.
// 快照流每次发射都重置订单簿，成交流与报价流分别折叠进当前快照，结果按 JSON 行输出。
package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xinjiayu/rxswitch"
	"github.com/xinjiayu/rxswitch/internal/config"
)

// ErrInterrupted 收到中断信号
var ErrInterrupted = errors.New("interrupted")

// Book 一个快照周期内的订单簿状态
type Book struct {
	Snapshot int       `json:"snapshot"`
	Trades   int       `json:"trades"`
	Volume   int       `json:"volume"`
	Bid      int       `json:"bid,omitempty"`
	Ask      int       `json:"ask,omitempty"`
	Seq      int       `json:"seq"`
	Updated  time.Time `json:"updated"`
}

// Trade 一笔成交
type Trade struct {
	Size int
}

// Quote 一次报价
type Quote struct {
	Bid int
	Ask int
}

// ApplyTrade 把成交折叠进订单簿
func ApplyTrade(book Book, trade Trade, seq int) Book {
	book.Trades++
	book.Volume += trade.Size
	book.Seq = seq
	book.Updated = time.Now()
	return book
}

// ApplyQuote 用最新报价覆盖买卖价
func ApplyQuote(book Book, quote Quote, seq int) Book {
	book.Bid = quote.Bid
	book.Ask = quote.Ask
	book.Seq = seq
	book.Updated = time.Now()
	return book
}

// Pipeline 构建订单簿流。ctx 结束时全部定时器停止。
func Pipeline(ctx context.Context, cfg config.Config, options ...rxswitch.Option) rxswitch.Observable {
	withCtx := rxswitch.WithContext(ctx)

	snapshots := rxswitch.Interval(cfg.SnapshotPeriod, withCtx).
		StartWith(-1).
		Map(func(v interface{}) (interface{}, error) {
			return Book{Snapshot: v.(int) + 1, Updated: time.Now()}, nil
		})
	trades := rxswitch.Interval(cfg.TradesPeriod, withCtx).
		Map(func(v interface{}) (interface{}, error) {
			return Trade{Size: v.(int)%5 + 1}, nil
		})
	quotes := rxswitch.Interval(cfg.QuotesPeriod, withCtx).
		Map(func(v interface{}) (interface{}, error) {
			n := v.(int) % 7
			return Quote{Bid: 100 + n, Ask: 101 + n}, nil
		})

	opts := append([]rxswitch.Option{rxswitch.WithName(cfg.Name)}, options...)
	if cfg.Drain {
		opts = append(opts, rxswitch.WithDrainOnComplete())
	}
	return rxswitch.MultiSwitchScan(snapshots, []rxswitch.SourceReducer{
		rxswitch.Accumulate(trades, rxswitch.AccumulatorFunc[Book, Trade](ApplyTrade)),
		rxswitch.Accumulate(quotes, rxswitch.AccumulatorFunc[Book, Quote](ApplyQuote)),
	}, opts...)
}

// jsonLines 串行写 JSON 行，关闭后丢弃后续写入
type jsonLines struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closed bool
	lines  int
}

func (j *jsonLines) write(v interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.lines++
	return j.enc.Encode(v)
}

func (j *jsonLines) close() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return j.lines
}

// Run 运行订单簿流直到超时、出错或收到中断信号
func Run(ctx context.Context, cfg config.Config, out io.Writer, logger *slog.Logger, options ...rxswitch.Option) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return stream(ctx, cfg, out, logger, options...)
	})
	g.Go(func() error {
		return watchSignals(ctx, logger)
	})

	err := g.Wait()
	if errors.Is(err, ErrInterrupted) {
		return nil
	}
	return err
}

func stream(ctx context.Context, cfg config.Config, out io.Writer, logger *slog.Logger, options ...rxswitch.Option) error {
	lines := &jsonLines{enc: json.NewEncoder(out)}
	done := make(chan error, 1)
	options = append([]rxswitch.Option{rxswitch.WithLogger(logger)}, options...)

	logger.Info("demo started",
		"snapshot_period", cfg.SnapshotPeriod,
		"trades_period", cfg.TradesPeriod,
		"quotes_period", cfg.QuotesPeriod)

	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	subscription := Pipeline(ctx, cfg, options...).Subscribe(func(item rxswitch.Item) {
		switch {
		case item.IsError():
			finish(item.Error)
		case item.IsComplete():
			finish(nil)
		default:
			if err := lines.write(item.Value); err != nil {
				finish(fmt.Errorf("write output: %w", err))
			}
		}
	})
	defer func() {
		subscription.Unsubscribe()
		logger.Info("demo stopped", "lines", lines.close())
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return err
	}
}

func watchSignals(ctx context.Context, logger *slog.Logger) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		logger.Info("signal received", "signal", sig.String())
		return ErrInterrupted
	case <-ctx.Done():
		return nil
	}
}
