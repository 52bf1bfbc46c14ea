package ingest

import (
	"context"
	"strings"
	"time"

	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/pkg/metrics"
	"ai-support-be/pkg/broker"
	"ai-support-be/pkg/events"
)

// Notifier announces status transitions to live subscribers and, best effort,
// to the domain event bus.
type Notifier struct {
	broker    broker.StatusBroker
	publisher events.Publisher
	logger    logger.ILogger
}

func NewNotifier(b broker.StatusBroker, publisher events.Publisher, logger logger.ILogger) *Notifier {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Notifier{broker: b, publisher: publisher, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, sourceType string, ev broker.StatusEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	metrics.IngestDocumentsTotal.WithLabelValues(sourceType, ev.Status).Inc()

	if err := n.broker.Publish(ctx, ev); err != nil {
		n.logger.Warn("INGEST", "Failed to publish status event", map[string]interface{}{
			"document_id": ev.DocumentID.String(),
			"status":      ev.Status,
			"error":       err.Error(),
		})
	}

	data := map[string]interface{}{
		"organization_id": ev.OrganizationID.String(),
		"document_id":     ev.DocumentID.String(),
		"status":          ev.Status,
	}
	if ev.Error != "" {
		data["error"] = ev.Error
	}
	if err := n.publisher.Publish(ctx, events.New(events.TypeIngestPrefix+strings.ToUpper(ev.Status), data)); err != nil {
		n.logger.Debug("INGEST", "Domain event not published", map[string]interface{}{"error": err.Error()})
	}
}
