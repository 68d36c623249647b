package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	reservations     metric.Int64Counter
	rejections       metric.Int64Counter
	refunds          metric.Int64Counter
	refundCredits    metric.Int64Counter
	ledgerEntries    metric.Int64Counter
	outboxEvents     metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider installs the global meter provider. A disabled config gets a
// noop provider so instruments stay cheap to call.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)
	if lc != nil {
		lc.Append(fx.StopHook(func(ctx context.Context) error {
			log.Info("shutting down meter provider")
			return provider.Shutdown(ctx)
		}))
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

const exportInterval = 10 * time.Second

// New registers the domain counters on the service meter.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(orDefault(cfg.ServiceName, "spotlight"))

	m := &Metrics{}
	counters := []struct {
		name string
		dst  *metric.Int64Counter
	}{
		{"spotlight_reservations_total", &m.reservations},
		{"spotlight_reservation_rejections_total", &m.rejections},
		{"spotlight_refunds_total", &m.refunds},
		{"spotlight_refund_credits_total", &m.refundCredits},
		{"spotlight_ledger_entries_total", &m.ledgerEntries},
		{"spotlight_outbox_events_total", &m.outboxEvents},
		{"spotlight_rate_limit_allowed_total", &m.rateLimitAllowed},
		{"spotlight_rate_limit_denied_total", &m.rateLimitDenied},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

// RecordReservation increments reservation counts per placement and origin.
func (m *Metrics) RecordReservation(ctx context.Context, placement, createdBy string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("placement", strings.TrimSpace(placement)),
		attribute.String("created_by", strings.TrimSpace(createdBy)),
	)
	m.reservations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRejection increments rejected reservation attempts by reason.
func (m *Metrics) RecordRejection(ctx context.Context, placement, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("placement", strings.TrimSpace(placement)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rejections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRefund increments cancellation refund counts and refunded credits.
func (m *Metrics) RecordRefund(ctx context.Context, placement string, credits int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("placement", strings.TrimSpace(placement)))
	m.refunds.Add(ctx, 1, metric.WithAttributes(attrs...))
	if credits > 0 {
		m.refundCredits.Add(ctx, credits, metric.WithAttributes(attrs...))
	}
}

// RecordLedgerEntry increments ledger entry counts.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOutboxEvent increments published or failed outbox deliveries.
func (m *Metrics) RecordOutboxEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.outboxEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch p := strings.ToLower(strings.TrimSpace(protocol)); p {
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", p)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"placement":   {},
	"created_by":  {},
	"endpoint":    {},
	"status_code": {},
	"event_type":  {},
	"outcome":     {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
