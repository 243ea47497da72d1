package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"restaurant-system/internal/models"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("aggregation is %T, want Sum[int64]", agg)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordOrderCreated(ctx, &models.Order{TableNumber: 4, Total: decimal.RequireFromString("25.50")})
	m.RecordStatusUpdate(ctx, models.StatusPending, models.StatusPreparing)
	m.RecordSubmission(ctx, 2, nil)
	m.RecordSubmission(ctx, 0, errors.New("boom"))
	m.RecordRefreshFailure(ctx, "kitchen")
	m.RecordRefreshFailure(ctx, "bar")

	got := collect(t, reader)

	if n := sumOf(t, got["orders_created_total"]); n != 1 {
		t.Errorf("orders_created_total = %d", n)
	}
	if n := sumOf(t, got["order_status_updates_total"]); n != 1 {
		t.Errorf("order_status_updates_total = %d", n)
	}
	if n := sumOf(t, got["orders_submitted_total"]); n != 1 {
		t.Errorf("orders_submitted_total = %d", n)
	}
	if n := sumOf(t, got["order_submission_failures_total"]); n != 1 {
		t.Errorf("order_submission_failures_total = %d", n)
	}
	if n := sumOf(t, got["board_refresh_failures_total"]); n != 2 {
		t.Errorf("board_refresh_failures_total = %d", n)
	}

	hist, ok := got["order_value_cents"].(metricdata.Histogram[int64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Sum != 2550 {
		t.Errorf("order_value_cents = %+v", got["order_value_cents"])
	}
}

func TestSetup_NoEndpoint(t *testing.T) {
	meter, shutdown, err := Setup(context.Background(), "test", "")
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := NewMetrics(meter); err != nil {
		t.Fatalf("NewMetrics() on noop meter: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}
