package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EventCounters tracks committed lending events.
type EventCounters struct {
	emitted *prometheus.CounterVec
	last    *prometheus.GaugeVec
	now     func() time.Time
}

var (
	eventCountersOnce sync.Once
	eventCounters     *EventCounters
)

// Events returns the process wide event counters.
func Events() *EventCounters {
	eventCountersOnce.Do(func() {
		eventCounters = &EventCounters{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "moneymarket",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Committed lending events by type.",
			}, []string{"type"}),
			last: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "moneymarket",
				Subsystem: "events",
				Name:      "last_emitted_timestamp_seconds",
				Help:      "Unix time of the most recent committed event by type.",
			}, []string{"type"}),
			now: time.Now,
		}
		prometheus.MustRegister(eventCounters.emitted, eventCounters.last)
	})
	return eventCounters
}

// RecordEvent counts one committed event. Blank types are bucketed as "unknown".
func (c *EventCounters) RecordEvent(eventType string) {
	if c == nil {
		return
	}
	label := strings.TrimSpace(eventType)
	if label == "" {
		label = "unknown"
	}
	c.emitted.WithLabelValues(label).Inc()
	c.last.WithLabelValues(label).Set(float64(c.now().Unix()))
}
