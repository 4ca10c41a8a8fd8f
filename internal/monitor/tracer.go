package monitor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"flashsale/internal/config"
)

// Tracer 链路追踪器
type Tracer struct {
	enabled  bool
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewTracer 创建链路追踪器
func NewTracer(cfg config.TracingConfig) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{
			tracer: otel.Tracer(cfg.ServiceName),
		}, nil
	}

	exporter, err := jaeger.New(
		jaeger.WithCollectorEndpoint(
			jaeger.WithEndpoint(cfg.Endpoint),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create jaeger exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(cfg.SampleRate)),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		enabled:  true,
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
	}, nil
}

// StartAdmissionSpan 开始一个准入操作的span
func (t *Tracer) StartAdmissionSpan(ctx context.Context, voucherID, userID uint64) (context.Context, oteltrace.Span) {
	if !t.enabled {
		return ctx, oteltrace.SpanFromContext(ctx)
	}

	return t.tracer.Start(ctx, "seckill.admit",
		oteltrace.WithAttributes(
			attribute.Int64("seckill.voucher_id", int64(voucherID)),
			attribute.Int64("seckill.user_id", int64(userID)),
		),
	)
}

// StartFulfillmentSpan 开始一个落库操作的span
func (t *Tracer) StartFulfillmentSpan(ctx context.Context, orderID uint64) (context.Context, oteltrace.Span) {
	if !t.enabled {
		return ctx, oteltrace.SpanFromContext(ctx)
	}

	return t.tracer.Start(ctx, "seckill.fulfill",
		oteltrace.WithSpanKind(oteltrace.SpanKindConsumer),
		oteltrace.WithAttributes(
			attribute.Int64("seckill.order_id", int64(orderID)),
		),
	)
}

// RecordError 记录错误
func (t *Tracer) RecordError(span oteltrace.Span, err error) {
	if !t.enabled || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Shutdown 关闭追踪器
func (t *Tracer) Shutdown(ctx context.Context) error {
	if !t.enabled || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
