package workers

import (
	"context"
	"log/slog"
	"time"

	"educhat/observability"
)

// TelemetryWorker periodically logs a metrics snapshot so operators can
// follow connection and delivery counts without polling the REST endpoint.
type TelemetryWorker struct {
	log      *slog.Logger
	interval time.Duration
	metrics  *observability.Metrics
}

func NewTelemetryWorker(log *slog.Logger, interval time.Duration,
	metrics *observability.Metrics) *TelemetryWorker {
	return &TelemetryWorker{log: log, interval: interval, metrics: metrics}
}

func (w TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snapshot := w.metrics.Snapshot()
			w.log.Info("Telemetry",
				"connects", snapshot.Connects,
				"disconnects", snapshot.Disconnects,
				"events_delivered", snapshot.EventsDelivered,
				"sinks_dropped", snapshot.SinksDropped,
				"messages_stored", snapshot.MessagesStored,
				"alloc_mb", snapshot.AllocMB,
				"rss_mb", snapshot.RSSMB)
		}
	}
}
