package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/platform/events"
)

func enrollmentMessage(t *testing.T, id int64, eventType, activity, email string) Message {
	t.Helper()
	payload, err := json.Marshal(events.EnrollmentChanged{
		ActivityName: activity,
		UserEmail:    email,
		Enrolled:     1,
		Capacity:     12,
		OccurredAt:   time.Date(2025, time.September, 5, 15, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return Message{
		EventID:       id,
		AggregateType: "enrollment",
		AggregateID:   "a1",
		EventType:     eventType,
		Topic:         "enrollment_events",
		SchemaSubject: "enrollment_events-value",
		PartitionKey:  activity,
		Payload:       payload,
	}
}

func headers(msg kafka.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestDeliverFramesAndGroupsByTopic(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	d := NewDispatcher(nil, producer, registry, time.Second, 10)

	signup := enrollmentMessage(t, 1, events.TypeEnrollmentCreated, "Chess Club", "michael@mergington.edu")
	drop := enrollmentMessage(t, 2, events.TypeEnrollmentRemoved, "Chess Club", "daniel@mergington.edu")
	created := Message{
		EventID:       3,
		EventType:     events.TypeActivityCreated,
		Topic:         "activity_events",
		SchemaSubject: "activity_events-value",
		PartitionKey:  "Robotics",
		Payload:       json.RawMessage(`{"name":"Robotics"}`),
	}

	require.NoError(t, d.deliver(context.Background(), []Message{signup, created, drop}))

	require.Len(t, producer.writes, 2)
	require.Equal(t, "enrollment_events", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	require.Equal(t, "activity_events", producer.writes[1].topic)

	record := producer.writes[0].messages[0]
	require.Equal(t, "Chess Club", string(record.Key))
	require.Equal(t, byte(0), record.Value[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(record.Value[1:5]))
	require.JSONEq(t, string(signup.Payload), string(record.Value[5:]))
	require.Equal(t, map[string]string{
		"event_type":     events.TypeEnrollmentCreated,
		"schema_subject": "enrollment_events-value",
	}, headers(record))

	// enrollment.created and enrollment.removed share one subject and schema.
	require.Len(t, registry.calls, 2)
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 1}
	d := NewDispatcher(nil, producer, registry, time.Second, 10)

	msg := enrollmentMessage(t, 1, "enrollment.waitlisted", "Chess Club", "michael@mergington.edu")
	err := d.deliver(context.Background(), []Message{msg})
	require.ErrorContains(t, err, "no schema metadata for event_type=enrollment.waitlisted")
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)
}

func TestDeliverSurfacesRegistryFailure(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{err: errors.New("registry down")}
	d := NewDispatcher(nil, producer, registry, time.Second, 10)

	msg := enrollmentMessage(t, 1, events.TypeEnrollmentCreated, "Chess Club", "michael@mergington.edu")
	require.ErrorContains(t, d.deliver(context.Background(), []Message{msg}), "registry down")
	require.Empty(t, producer.writes)
}

func TestBackoffDelay(t *testing.T) {
	base := time.Minute
	require.Zero(t, backoffDelay(base, 0))
	require.Equal(t, time.Minute, backoffDelay(base, 1))
	require.Equal(t, 2*time.Minute, backoffDelay(base, 2))
	require.Equal(t, 16*time.Minute, backoffDelay(base, 5))
	require.Equal(t, time.Hour, backoffDelay(base, 7))
	require.Equal(t, time.Hour, backoffDelay(base, 64))
}

func TestSchemaRegistryRegistersMissingSubject(t *testing.T) {
	var registered string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/subjects/enrollment_events-value/versions/latest":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/subjects/enrollment_events-value/versions":
			body, _ := io.ReadAll(r.Body)
			registered = string(body)
			_, _ = w.Write([]byte(`{"id":17}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL + "/")
	id, err := client.EnsureSchema(context.Background(), "enrollment_events-value", enrollmentChangedSchema)
	require.NoError(t, err)
	require.Equal(t, 17, id)
	require.Contains(t, registered, `"schemaType":"JSON"`)
}

func TestSchemaRegistryDoesNotRegisterOnServerError(t *testing.T) {
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "activity_events-value", activityChangedSchema)
	require.ErrorContains(t, err, "status 503")
	require.Zero(t, posts)
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)

	s.writes = append(s.writes, writtenBatch{
		topic:    topic,
		messages: copied,
	})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

type schemaCall struct {
	subject string
	schema  string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, schemaCall{subject: subject, schema: schema})
	if s.err != nil {
		return 0, s.err
	}
	if s.id == 0 {
		s.id = 1
	}
	return s.id, nil
}
