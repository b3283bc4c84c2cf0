package consumer

import (
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/mergington/internal/platform/events"
)

const (
	outcomeProcessed    = "processed"
	outcomeHandlerError = "handler_error"
)

var (
	eventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mergington",
		Subsystem: "consumer",
		Name:      "events_total",
		Help:      "Decoded activity and enrollment events, by event type and handling outcome.",
	}, []string{"topic", "event_type", "outcome"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mergington",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Records dropped because they were not framed activity or enrollment events.",
	}, []string{"topic"})

	seatsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mergington",
		Subsystem: "consumer",
		Name:      "activity_seats",
		Help:      "Seats per activity as last reported by the event stream; kind is enrolled or capacity.",
	}, []string{"activity", "kind"})

	lastEventGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mergington",
		Subsystem: "consumer",
		Name:      "last_event_timestamp_seconds",
		Help:      "Unix timestamp of the most recent event handled per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(eventCounter, decodeErrorCounter, seatsGauge, lastEventGauge)
}

// eventTypeLabel keeps label cardinality bounded to the known event types.
func eventTypeLabel(eventType string) string {
	switch eventType {
	case events.TypeActivityCreated, events.TypeActivityUpdated, events.TypeActivityDeleted,
		events.TypeEnrollmentCreated, events.TypeEnrollmentRemoved:
		return eventType
	default:
		return "unknown"
	}
}

func recordProcessed(msg Message) {
	eventCounter.WithLabelValues(msg.Topic, eventTypeLabel(msg.EventType), outcomeProcessed).Inc()
	if !msg.Timestamp.IsZero() {
		lastEventGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
	observeSeats(msg)
}

func recordHandlerError(msg Message) {
	eventCounter.WithLabelValues(msg.Topic, eventTypeLabel(msg.EventType), outcomeHandlerError).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

// observeSeats tracks head count and capacity per activity from the payloads.
// Payloads that do not match their event type are ignored; the audit row is
// already written by then.
func observeSeats(msg Message) {
	switch msg.EventType {
	case events.TypeEnrollmentCreated, events.TypeEnrollmentRemoved:
		var change events.EnrollmentChanged
		if json.Unmarshal(msg.Payload, &change) != nil || change.ActivityName == "" {
			return
		}
		seatsGauge.WithLabelValues(change.ActivityName, "enrolled").Set(float64(change.Enrolled))
		seatsGauge.WithLabelValues(change.ActivityName, "capacity").Set(float64(change.Capacity))
	case events.TypeActivityCreated, events.TypeActivityUpdated:
		var activity events.ActivityChanged
		if json.Unmarshal(msg.Payload, &activity) != nil || activity.Name == "" {
			return
		}
		seatsGauge.WithLabelValues(activity.Name, "capacity").Set(float64(activity.MaxParticipants))
		if msg.EventType == events.TypeActivityCreated {
			seatsGauge.WithLabelValues(activity.Name, "enrolled").Set(0)
		}
	case events.TypeActivityDeleted:
		var deleted events.ActivityDeleted
		if json.Unmarshal(msg.Payload, &deleted) != nil || deleted.Name == "" {
			return
		}
		seatsGauge.DeleteLabelValues(deleted.Name, "enrolled")
		seatsGauge.DeleteLabelValues(deleted.Name, "capacity")
	}
}
