package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	recordOpsCounter    metric.Int64Counter
	reviewTransitions   metric.Int64Counter
	feedbackWrites      metric.Int64Counter
	queryCounter        metric.Int64Counter
	queryDuration       metric.Float64Histogram
	chatRequests        metric.Int64Counter
	sseConnectionsGauge metric.Int64ObservableGauge
	sseEventsCounter    metric.Int64Counter
	sseConnections      int64
	sseConnectionsMu    sync.Mutex
)

// initMetrics creates the meter instruments once.
func initMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := meter()
		recordOpsCounter, err = m.Int64Counter("abeto_record_operations_total", metric.WithDescription("Record writes (create, update, delete) by record type"))
		if err != nil {
			return
		}
		reviewTransitions, err = m.Int64Counter("abeto_review_transitions_total", metric.WithDescription("Review session transitions (started, resumed, completed)"))
		if err != nil {
			return
		}
		feedbackWrites, err = m.Int64Counter("abeto_review_feedback_writes_total", metric.WithDescription("Review answers and comments written"))
		if err != nil {
			return
		}
		queryCounter, err = m.Int64Counter("abeto_queries_total", metric.WithDescription("List queries run through the filter engine"))
		if err != nil {
			return
		}
		queryDuration, err = m.Float64Histogram("abeto_query_duration_seconds", metric.WithDescription("Filter and sort duration in seconds"))
		if err != nil {
			return
		}
		chatRequests, err = m.Int64Counter("abeto_chat_requests_total", metric.WithDescription("Assistant chat requests by outcome"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("abeto_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("abeto_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
	})
	return err
}

// RecordOp records a write to a record type (project, task, team, pillar).
func RecordOp(ctx context.Context, record, op string) {
	if recordOpsCounter == nil {
		return
	}
	recordOpsCounter.Add(ctx, 1, metric.WithAttributes(attrRecord.String(record), attrOperation.String(op)))
}

// RecordReviewTransition records a session start, resume or completion for an area.
func RecordReviewTransition(ctx context.Context, area, transition string) {
	if reviewTransitions == nil {
		return
	}
	reviewTransitions.Add(ctx, 1, metric.WithAttributes(attrArea.String(area), attrTransition.String(transition)))
}

// RecordFeedbackWrite records one answer ("feedback") or comment ("comment") write.
func RecordFeedbackWrite(ctx context.Context, kind string) {
	if feedbackWrites == nil {
		return
	}
	feedbackWrites.Add(ctx, 1, metric.WithAttributes(attrOperation.String(kind)))
}

// RecordQuery records one filter/sort pass over a record type.
func RecordQuery(ctx context.Context, record string, duration time.Duration) {
	if queryCounter != nil {
		queryCounter.Add(ctx, 1, metric.WithAttributes(attrRecord.String(record)))
	}
	if queryDuration != nil {
		queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrRecord.String(record)))
	}
}

// RecordChat records an assistant request outcome (ok, error, limited).
func RecordChat(ctx context.Context, status string) {
	if chatRequests != nil {
		chatRequests.Add(ctx, 1, metric.WithAttributes(attrStatus.String(status)))
	}
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// ProjectCountFunc returns project counts keyed by status. Used for the abeto_projects gauge.
type ProjectCountFunc func(ctx context.Context) (map[string]int64, error)

// InitMetricsWithProjectCount creates instruments and optionally registers a callback
// reporting projects per status. Call after InitMeterProvider.
func InitMetricsWithProjectCount(ctx context.Context, count ProjectCountFunc) error {
	if err := initMetrics(ctx); err != nil {
		return err
	}
	if count == nil {
		return nil
	}
	m := meter()
	gauge, err := m.Int64ObservableGauge("abeto_projects", metric.WithDescription("Number of projects by status"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		counts, err := count(ctx)
		if err != nil {
			return err
		}
		for status, n := range counts {
			o.ObserveInt64(gauge, n, metric.WithAttributes(attrStatus.String(status)))
		}
		return nil
	}, gauge)
	return err
}
