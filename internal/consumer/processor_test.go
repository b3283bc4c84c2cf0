package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/logging"
)

func frame(schemaID int, payload []byte) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(schemaID))
	copy(value[5:], payload)
	return value
}

func enrollmentRecord(offset int64, value []byte) kafka.Message {
	return kafka.Message{
		Topic:     "enrollment_events",
		Partition: 0,
		Offset:    offset,
		Key:       []byte("Chess Club"),
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("enrollment.created")},
			{Key: "schema_subject", Value: []byte("enrollment_events-value")},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := []byte(`{"activity_name":"Chess Club","user_email":"michael@mergington.edu","enrolled":1,"capacity":12}`)
	reader := &stubReader{messages: []kafka.Message{enrollmentRecord(10, frame(42, payload))}}
	handler := &stubHandler{}

	before := testutil.ToFloat64(eventCounter.WithLabelValues("enrollment_events", "enrollment.created", outcomeProcessed))

	err := NewProcessor(reader, handler, WithLogger(logging.Discard())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "enrollment.created", handler.last.EventType)
	require.Equal(t, "enrollment_events-value", handler.last.SchemaSubject)
	require.Equal(t, "Chess Club", handler.last.Key)
	require.Equal(t, 42, handler.last.SchemaID)
	require.Equal(t, int64(10), handler.last.Offset)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
	require.InDelta(t, before+1, testutil.ToFloat64(eventCounter.WithLabelValues("enrollment_events", "enrollment.created", outcomeProcessed)), 0.0001)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{enrollmentRecord(20, frame(99, []byte(`{"activity_name":"Art Club"}`)))}}
	handler := &stubHandler{err: errors.New("boom")}

	before := testutil.ToFloat64(eventCounter.WithLabelValues("enrollment_events", "enrollment.created", outcomeHandlerError))

	err := NewProcessor(reader, handler, WithLogger(logging.Discard())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Zero(t, reader.commitCalls)
	require.InDelta(t, before+1, testutil.ToFloat64(eventCounter.WithLabelValues("enrollment_events", "enrollment.created", outcomeHandlerError)), 0.0001)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	noHeader := enrollmentRecord(1, frame(1, []byte(`{}`)))
	noHeader.Headers = nil
	badMagic := enrollmentRecord(2, frame(1, []byte(`{}`)))
	badMagic.Value[0] = 7

	cases := []kafka.Message{
		enrollmentRecord(0, []byte{0, 0, 1}),
		noHeader,
		badMagic,
		enrollmentRecord(3, frame(1, []byte(`not json`))),
	}

	before := testutil.ToFloat64(decodeErrorCounter.WithLabelValues("enrollment_events"))
	reader := &stubReader{messages: cases}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(logging.Discard())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, len(cases), reader.commitCalls)
	require.InDelta(t, before+float64(len(cases)), testutil.ToFloat64(decodeErrorCounter.WithLabelValues("enrollment_events")), 0.0001)
}

func TestProcessorTracksSeatsPerActivity(t *testing.T) {
	created := enrollmentRecord(1, frame(3, []byte(`{"name":"Robotics Club","max_participants":8}`)))
	created.Key = []byte("Robotics Club")
	created.Headers[0].Value = []byte("activity.created")
	enrolled := enrollmentRecord(2, frame(3, []byte(`{"activity_name":"Robotics Club","user_email":"ada@mergington.edu","enrolled":1,"capacity":8}`)))
	enrolled.Key = []byte("Robotics Club")

	reader := &stubReader{messages: []kafka.Message{created, enrolled}}
	err := NewProcessor(reader, &stubHandler{}, WithLogger(logging.Discard())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.InDelta(t, 8, testutil.ToFloat64(seatsGauge.WithLabelValues("Robotics Club", "capacity")), 0.0001)
	require.InDelta(t, 1, testutil.ToFloat64(seatsGauge.WithLabelValues("Robotics Club", "enrolled")), 0.0001)

	deleted := enrollmentRecord(3, frame(3, []byte(`{"name":"Robotics Club","dropped_enrollments":1}`)))
	deleted.Headers[0].Value = []byte("activity.deleted")
	reader = &stubReader{messages: []kafka.Message{deleted}}
	err = NewProcessor(reader, &stubHandler{}, WithLogger(logging.Discard())).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.False(t, seatsGauge.DeleteLabelValues("Robotics Club", "capacity"))
}

func TestEventTypeLabelCollapsesUnknownTypes(t *testing.T) {
	require.Equal(t, "enrollment.removed", eventTypeLabel("enrollment.removed"))
	require.Equal(t, "activity.updated", eventTypeLabel("activity.updated"))
	require.Equal(t, "unknown", eventTypeLabel("grades.posted"))
	require.Equal(t, "unknown", eventTypeLabel(""))
}

func TestProcessorStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &stubReader{messages: []kafka.Message{enrollmentRecord(1, frame(1, []byte(`{}`)))}}
	handler := &stubHandler{}
	require.ErrorIs(t, NewProcessor(reader, handler).Run(ctx), context.Canceled)
	require.Zero(t, handler.calls)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}
