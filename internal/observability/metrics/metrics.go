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

const exportInterval = 10 * time.Second

type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics holds the donation, webhook and rate-limit counters. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	donations        metric.Int64Counter
	donationAmount   metric.Int64Counter
	webhookEvents    metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider installs the global meter provider. When metrics are disabled
// a noop provider is installed so instruments can still be created.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if log == nil {
		log = zap.NewNop()
	}
	log.Info("metrics exporter started",
		zap.String("protocol", cfg.ExporterProtocol),
		zap.String("endpoint", cfg.ExporterEndpoint),
	)
	if lc != nil {
		lc.Append(fx.Hook{OnStop: provider.Shutdown})
	}
	return provider, nil
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "givebox"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.donations, "givebox_donations_total", "Donation status transitions."},
		{&m.donationAmount, "givebox_donation_amount_minor_total", "Settled donation volume in minor currency units."},
		{&m.webhookEvents, "givebox_webhook_events_total", "Inbound webhook deliveries by outcome."},
		{&m.rateLimitAllowed, "givebox_rate_limit_allowed_total", "Requests admitted by the rate limiter."},
		{&m.rateLimitDenied, "givebox_rate_limit_denied_total", "Requests rejected by the rate limiter."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
		*c.target = counter
	}
	return m, nil
}

// RecordDonation counts a status transition; succeeded donations also add
// their amount.
func (m *Metrics) RecordDonation(ctx context.Context, orgID, status string, amount int64) {
	if m == nil {
		return
	}
	attrs := labels("org_id", orgID, "status", status)
	m.donations.Add(ctx, 1, attrs)
	if status == "succeeded" && amount > 0 {
		m.donationAmount.Add(ctx, amount, attrs)
	}
}

func (m *Metrics) RecordWebhookEvent(ctx context.Context, provider, eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, labels("provider", provider, "event_type", eventType, "outcome", outcome))
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, class, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitAllowed.Add(ctx, 1, labels("class", class, "endpoint", endpoint))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, class, endpoint, reason string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, labels("class", class, "endpoint", endpoint, "reason", reason))
}

// labels builds an attribute option from key/value pairs, dropping keys that
// are not on the allow list.
func labels(kv ...string) metric.AddOption {
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], strings.TrimSpace(kv[i+1])))
	}
	return metric.WithAttributes(FilterAttributes(attrs...)...)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
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
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
}

// Donor emails, user ids and request paths with ids must never become labels.
var allowedLabelKeys = map[attribute.Key]bool{
	"org_id":      true,
	"class":       true,
	"endpoint":    true,
	"status":      true,
	"status_code": true,
	"method":      true,
	"provider":    true,
	"event_type":  true,
	"outcome":     true,
	"reason":      true,
}

func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := attrs[:0:0]
	for _, attr := range attrs {
		if allowedLabelKeys[attr.Key] {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
