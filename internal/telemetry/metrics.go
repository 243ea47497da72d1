package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"restaurant-system/internal/models"
)

type Metrics struct {
	OrdersCreated        metric.Int64Counter
	OrderValueCents      metric.Int64Histogram
	StatusUpdates        metric.Int64Counter
	SubmissionFailures   metric.Int64Counter
	BoardRefreshFailures metric.Int64Counter
	OrdersSubmitted      metric.Int64Counter
	ClientsPerSubmission metric.Int64Histogram
}

// Setup installs an OTLP gRPC meter provider when endpoint is set and returns a
// meter plus its shutdown function. With no endpoint a no-op meter is returned.
func Setup(ctx context.Context, serviceName, endpoint string) (metric.Meter, func(context.Context) error, error) {
	if endpoint == "" {
		return noop.NewMeterProvider().Meter(serviceName), func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build resource: %w", err)
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(mp)

	return mp.Meter(serviceName), mp.Shutdown, nil
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	ordersCreated, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Total orders stored by the order service"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	orderValue, err := meter.Int64Histogram("order_value_cents",
		metric.WithDescription("Order value in cents"),
		metric.WithUnit("cents"),
		metric.WithExplicitBucketBoundaries(500, 1000, 2500, 5000, 10000, 25000),
	)
	if err != nil {
		return nil, err
	}

	statusUpdates, err := meter.Int64Counter("order_status_updates_total",
		metric.WithDescription("Order status transitions"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}

	submissionFailures, err := meter.Int64Counter("order_submission_failures_total",
		metric.WithDescription("Order submissions rejected locally or by the server"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, err
	}

	refreshFailures, err := meter.Int64Counter("board_refresh_failures_total",
		metric.WithDescription("Failed order list refreshes on kitchen, bar and admin boards"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, err
	}

	submitted, err := meter.Int64Counter("orders_submitted_total",
		metric.WithDescription("Orders submitted from waitress terminals"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	clients, err := meter.Int64Histogram("clients_per_submission",
		metric.WithDescription("Sub-bills per submitted table order"),
		metric.WithUnit("{client}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 6, 8, 12),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		OrdersCreated:        ordersCreated,
		OrderValueCents:      orderValue,
		StatusUpdates:        statusUpdates,
		SubmissionFailures:   submissionFailures,
		BoardRefreshFailures: refreshFailures,
		OrdersSubmitted:      submitted,
		ClientsPerSubmission: clients,
	}, nil
}

// NewNopMetrics returns instruments that record nothing.
func NewNopMetrics() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("nop"))
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, order *models.Order) {
	attrs := metric.WithAttributes(attribute.Int("table_number", order.TableNumber))
	m.OrdersCreated.Add(ctx, 1, attrs)
	m.OrderValueCents.Record(ctx, order.Total.Shift(2).IntPart(), attrs)
}

func (m *Metrics) RecordStatusUpdate(ctx context.Context, from, to models.OrderStatus) {
	m.StatusUpdates.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

func (m *Metrics) RecordSubmission(ctx context.Context, clients int, err error) {
	if err != nil {
		m.SubmissionFailures.Add(ctx, 1)
		return
	}
	m.OrdersSubmitted.Add(ctx, 1)
	m.ClientsPerSubmission.Record(ctx, int64(clients))
}

func (m *Metrics) RecordRefreshFailure(ctx context.Context, view string) {
	m.BoardRefreshFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("view", view)))
}
