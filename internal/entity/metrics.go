package entity

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// Metric names are labelled by entity kind and registered in the default
// VictoriaMetrics set, so metrics.WritePrometheus exposes them.
func eventsPersisted(kind string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`persistable_events_persisted_total{kind=%q}`, kind))
}

func eventsReplayed(kind string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`persistable_events_replayed_total{kind=%q}`, kind))
}

func processesStarted(kind string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`persistable_processes_started_total{kind=%q}`, kind))
}

func processesFailed(kind string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`persistable_processes_failed_total{kind=%q}`, kind))
}

func deadLetters(kind string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`persistable_dead_letters_total{kind=%q}`, kind))
}

func unhandledMessages(kind string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`persistable_unhandled_messages_total{kind=%q}`, kind))
}

func observePersist(kind string, start time.Time) {
	metrics.GetOrCreateHistogram(fmt.Sprintf(`persistable_persist_duration_seconds{kind=%q}`, kind)).UpdateDuration(start)
}
