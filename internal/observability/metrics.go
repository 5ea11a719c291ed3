package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Clock-in outcomes used as the result label.
const (
	ClockInOK                  = "ok"
	ClockInLocationUnavailable = "location_unavailable"
	ClockInGeofenceViolation   = "geofence_violation"
	ClockInAlreadyActive       = "already_active"
	ClockInError               = "error"
)

var (
	clockInCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nanny_tracker",
		Subsystem: "clock",
		Name:      "clock_ins_total",
		Help:      "Clock-in attempts labeled by outcome.",
	}, []string{"result"})

	clockOutCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nanny_tracker",
		Subsystem: "clock",
		Name:      "clock_outs_total",
		Help:      "Shifts closed by a clock-out.",
	})

	shiftMinutes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nanny_tracker",
		Subsystem: "clock",
		Name:      "shift_duration_minutes",
		Help:      "Duration of completed shifts in minutes.",
		Buckets:   []float64{30, 60, 120, 240, 360, 480, 600, 720},
	})

	geofenceDistance = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nanny_tracker",
		Subsystem: "geofence",
		Name:      "distance_meters",
		Help:      "Distance from home observed at clock-in when a geofence is configured.",
		Buckets:   prometheus.ExponentialBuckets(5, 2, 12),
	})

	lastShiftGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "nanny_tracker",
		Subsystem: "clock",
		Name:      "last_shift_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent clock-out.",
	})

	summaryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "nanny_tracker",
		Subsystem: "summary",
		Name:      "failures_total",
		Help:      "Summary requests answered with the fallback text.",
	})

	publishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nanny_tracker",
		Subsystem: "events",
		Name:      "publish_failures_total",
		Help:      "Shift events that could not be handed to Kafka, labeled by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(clockInCounter, clockOutCounter, shiftMinutes, geofenceDistance, lastShiftGauge, summaryFailures, publishFailures)
}

// RecordClockIn counts a clock-in attempt.
func RecordClockIn(result string) {
	clockInCounter.WithLabelValues(result).Inc()
}

// ObserveGeofenceDistance records the distance measured during a geofence check.
func ObserveGeofenceDistance(meters float64) {
	geofenceDistance.Observe(meters)
}

// RecordShiftCompleted updates clock-out counters and the completion watermark.
func RecordShiftCompleted(ts time.Time, minutes int) {
	clockOutCounter.Inc()
	shiftMinutes.Observe(float64(minutes))
	if ts.IsZero() {
		return
	}
	lastShiftGauge.Set(float64(ts.Unix()))
}

// RecordSummaryFailure counts a fallback summary.
func RecordSummaryFailure() {
	summaryFailures.Inc()
}

// RecordPublishFailure counts an event the publisher rejected.
func RecordPublishFailure(eventType string) {
	publishFailures.WithLabelValues(eventType).Inc()
}
