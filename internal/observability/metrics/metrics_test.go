package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("entry_type", "payout_debit"),
		attribute.String("recipient_id", "456"),
		attribute.String("currency", "USD"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "entry_type" && attrs[1].Key != "entry_type" {
		t.Fatalf("expected entry_type to be retained")
	}
	if attrs[0].Key != "currency" && attrs[1].Key != "currency" {
		t.Fatalf("expected currency to be retained")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordLedgerEntry(context.Background(), "sale_credit")
	m.RecordPayoutCreated(context.Background(), "USD", "cli", 100)
	m.RecordOutboxEvent(context.Background(), "payout.created", "ok")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "settlement"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.RecordPayoutCreated(context.Background(), "USD", "admin_api", 8000)
}
