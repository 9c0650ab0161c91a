// Telemetry for rxswitch
// OpenTelemetry 指标与链路追踪
package rxswitch

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/xinjiayu/rxswitch"

// 指标名称
const (
	MetricCycles    = "rxswitch.cycles"
	MetricFolded    = "rxswitch.events.folded"
	MetricErrors    = "rxswitch.errors"
	MetricConsumers = "rxswitch.consumers"
	SpanCycle       = "rxswitch.cycle"
)

// 属性键
const (
	attrOperator    = attribute.Key("rxswitch.operator")
	attrSourceIndex = attribute.Key("rxswitch.source.index")
	attrErrorKind   = attribute.Key("rxswitch.error.kind")
	attrCycleID     = attribute.Key("rxswitch.cycle.id")
	attrGeneration  = attribute.Key("rxswitch.cycle.generation")
	attrReason      = attribute.Key("rxswitch.cycle.end_reason")
	attrFolded      = attribute.Key("rxswitch.cycle.folded")
)

// telemetry 一个操作符实例的指标仪表与 tracer
type telemetry struct {
	operator  attribute.KeyValue
	cycles    metric.Int64Counter
	folded    metric.Int64Counter
	errors    metric.Int64Counter
	consumers metric.Int64UpDownCounter
	tracer    trace.Tracer
}

func newTelemetry(config *Config) *telemetry {
	meter := config.MeterProvider.Meter(instrumentationName)
	fallback := noop.NewMeterProvider().Meter(instrumentationName)

	t := &telemetry{
		operator: attrOperator.String(config.Name),
		tracer:   config.TracerProvider.Tracer(instrumentationName),
	}

	var err error
	if t.cycles, err = meter.Int64Counter(MetricCycles,
		metric.WithDescription("Accumulation cycles started by primary emissions"),
		metric.WithUnit("{cycle}")); err != nil {
		t.cycles, _ = fallback.Int64Counter(MetricCycles)
	}
	if t.folded, err = meter.Int64Counter(MetricFolded,
		metric.WithDescription("Auxiliary events folded into the accumulation"),
		metric.WithUnit("{event}")); err != nil {
		t.folded, _ = fallback.Int64Counter(MetricFolded)
	}
	if t.errors, err = meter.Int64Counter(MetricErrors,
		metric.WithDescription("Fatal errors propagated to consumers"),
		metric.WithUnit("{error}")); err != nil {
		t.errors, _ = fallback.Int64Counter(MetricErrors)
	}
	if t.consumers, err = meter.Int64UpDownCounter(MetricConsumers,
		metric.WithDescription("Consumers attached to the shared output"),
		metric.WithUnit("{consumer}")); err != nil {
		t.consumers, _ = fallback.Int64UpDownCounter(MetricConsumers)
	}
	config.Logger.Debug("telemetry initialized", "operator", config.Name)
	return t
}

// cycleStarted 记录新周期并开启它的 span
func (t *telemetry) cycleStarted(cycleID string, generation uint64) trace.Span {
	ctx := context.Background()
	t.cycles.Add(ctx, 1, metric.WithAttributes(t.operator))
	_, span := t.tracer.Start(ctx, SpanCycle,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			t.operator,
			attrCycleID.String(cycleID),
			attrGeneration.Int64(int64(generation)),
		))
	return span
}

// cycleEnded 结束周期 span
func (t *telemetry) cycleEnded(span trace.Span, reason string, folded int, err error) {
	if span == nil {
		return
	}
	span.SetAttributes(attrReason.String(reason), attrFolded.Int(folded))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (t *telemetry) eventFolded(sourceIndex int) {
	t.folded.Add(context.Background(), 1, metric.WithAttributes(t.operator, attrSourceIndex.Int(sourceIndex)))
}

func (t *telemetry) errorRaised(err error) {
	t.errors.Add(context.Background(), 1, metric.WithAttributes(t.operator, attrErrorKind.String(errorKind(err))))
}

func (t *telemetry) consumerDelta(delta int64) {
	t.consumers.Add(context.Background(), delta, metric.WithAttributes(t.operator))
}
