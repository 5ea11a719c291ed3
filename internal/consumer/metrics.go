package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nanny_tracker",
		Subsystem: "ledger",
		Name:      "events_processed_total",
		Help:      "Shift events handled and committed, by event type.",
	}, []string{"event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nanny_tracker",
		Subsystem: "ledger",
		Name:      "handler_errors_total",
		Help:      "Shift events left uncommitted because the handler failed.",
	}, []string{"event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nanny_tracker",
		Subsystem: "ledger",
		Name:      "decode_errors_total",
		Help:      "Records dropped because they were not shift events.",
	}, []string{"topic"})

	duplicateCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nanny_tracker",
		Subsystem: "ledger",
		Name:      "duplicate_events_total",
		Help:      "Redelivered records already present in shift_event_log.",
	})

	lastEventGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nanny_tracker",
		Subsystem: "ledger",
		Name:      "last_event_timestamp_seconds",
		Help:      "Produce time of the newest committed shift event, by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, duplicateCounter, lastEventGauge)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		lastEventGauge.WithLabelValues(msg.EventType).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordDuplicate() {
	duplicateCounter.Inc()
}
