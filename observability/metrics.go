package observability

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "order-chat"

// Shutdown flushes and releases the meter provider.
type Shutdown func(ctx context.Context) error

// SetupMetrics installs a global meter provider. With an empty endpoint the
// provider has no reader and instruments are never exported.
func SetupMetrics(ctx context.Context, endpoint string, interval time.Duration, log *slog.Logger) (Shutdown, error) {
	var provider *sdkmetric.MeterProvider
	if endpoint != "" {
		opts := []otlpmetrichttp.Option{}
		switch {
		case strings.HasPrefix(endpoint, "https://"):
			opts = append(opts, otlpmetrichttp.WithEndpoint(strings.TrimPrefix(endpoint, "https://")))
		default:
			opts = append(opts,
				otlpmetrichttp.WithEndpoint(strings.TrimPrefix(endpoint, "http://")),
				otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		provider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))))
		log.Info("OTLP metrics enabled", "endpoint", endpoint, "interval", interval)
	} else {
		provider = sdkmetric.NewMeterProvider()
		log.Info("OTLP metrics disabled")
	}
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// RegisterInstruments exposes the monitoring counters as observable
// instruments read at collection time.
func RegisterInstruments(meter metric.Meter, mm *MonitoringManager) error {
	stored, err := meter.Int64ObservableCounter("chat.messages.stored",
		metric.WithDescription("Messages appended to the durable log"))
	if err != nil {
		return err
	}
	duplicates, err := meter.Int64ObservableCounter("chat.messages.duplicates",
		metric.WithDescription("Sends ignored because the message id already existed"))
	if err != nil {
		return err
	}
	rejected, err := meter.Int64ObservableCounter("chat.sends.rejected",
		metric.WithDescription("Sends refused by the lifecycle or empty text"))
	if err != nil {
		return err
	}
	published, err := meter.Int64ObservableCounter("chat.events.published")
	if err != nil {
		return err
	}
	dropped, err := meter.Int64ObservableCounter("chat.events.dropped")
	if err != nil {
		return err
	}
	connections, err := meter.Int64ObservableGauge("chat.push.connections")
	if err != nil {
		return err
	}
	streams, err := meter.Int64ObservableGauge("chat.feed.streams")
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := mm.GetLatest()
		o.ObserveInt64(stored, int64(stats.MessagesStored))
		o.ObserveInt64(duplicates, int64(stats.DuplicatesDropped))
		o.ObserveInt64(rejected, int64(stats.SendsRejected))
		o.ObserveInt64(published, int64(stats.EventsPublished))
		o.ObserveInt64(dropped, int64(stats.EventsDropped))
		o.ObserveInt64(connections, stats.PushConnections)
		o.ObserveInt64(streams, stats.FeedStreams)
		return nil
	}, stored, duplicates, rejected, published, dropped, connections, streams)
	return err
}

// Meter returns the chat meter of the global provider.
func Meter() metric.Meter {
	return otel.Meter(meterName)
}
