package persist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("dialoguecraft.persist")

var (
	flushWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialoguecraft_flush_records_written_total",
		Help: "Records written to the store by flushes",
	})
	flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dialoguecraft_flush_duration_seconds",
		Help:    "Time spent flushing a graph",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
	cloneEntities = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dialoguecraft_clone_entities",
		Help:    "Entities copied per clone",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
	sessionOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialoguecraft_session_operations_total",
		Help: "Session save, load and flush calls by result",
	}, []string{"op", "result"})
)

// finish ends span and counts the operation.
func finish(span trace.Span, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	sessionOps.WithLabelValues(op, result).Inc()
}
