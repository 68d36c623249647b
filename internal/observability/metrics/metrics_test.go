package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("placement", "results"),
		attribute.String("account_id", "456"),
		attribute.String("reason", "capacity_exceeded"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "placement" && attrs[1].Key != "placement" {
		t.Fatalf("expected placement to be retained")
	}
	if attrs[0].Key != "reason" && attrs[1].Key != "reason" {
		t.Fatalf("expected reason to be retained")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordReservation(ctx, "results", "seller")
	m.RecordRejection(ctx, "results", "capacity_exceeded")
	m.RecordRefund(ctx, "results", 2)
	m.RecordLedgerEntry(ctx, "featured_debit")
	m.RecordOutboxEvent(ctx, "reservation.created", "published")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "spotlight"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordReservation(context.Background(), "homepage", "admin")
	m.RecordRefund(context.Background(), "homepage", 0)
}
