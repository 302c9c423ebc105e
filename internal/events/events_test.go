package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent_RoundTripsPayload(t *testing.T) {
	event, err := NewEvent(SubmissionGraded, SubmissionPayload{SubmissionID: 3, ExamTitle: "Final"})
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, SubmissionGraded, event.Type)

	var payload SubmissionPayload
	require.NoError(t, event.Decode(&payload))
	assert.Equal(t, uint(3), payload.SubmissionID)
	assert.Equal(t, "Final", payload.ExamTitle)
}

func TestWatermillPublisher_GoChannelDelivery(t *testing.T) {
	logger := testLogger()
	bus, err := NewBus(Config{Topic: "test.events"}, logger)
	require.NoError(t, err)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := bus.Subscriber.Subscribe(ctx, bus.Topic)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(bus.Publisher, bus.Topic, logger)
	event, err := NewEvent(EnrollmentApproved, EnrollmentPayload{EnrollmentID: 7, CourseTitle: "Go"})
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, string(EnrollmentApproved), msg.Metadata.Get(metadataEventType))

		got, err := DecodeMessage(msg)
		require.NoError(t, err)
		assert.Equal(t, event.ID, got.ID)

		var payload EnrollmentPayload
		require.NoError(t, got.Decode(&payload))
		assert.Equal(t, uint(7), payload.EnrollmentID)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(testLogger())
	ctx := context.Background()

	e1, _ := NewEvent(EnrollmentRequested, EnrollmentPayload{EnrollmentID: 1})
	e2, _ := NewEvent(EnrollmentApproved, EnrollmentPayload{EnrollmentID: 1})
	require.NoError(t, mock.Publish(ctx, e1))
	require.NoError(t, mock.Publish(ctx, e2))

	assert.Equal(t, []EventType{EnrollmentRequested, EnrollmentApproved}, mock.Types())
	assert.Len(t, mock.GetPublishedEvents(), 2)

	mock.FailWith(errors.New("broker down"))
	assert.Error(t, mock.Publish(ctx, e1))
	assert.Len(t, mock.GetPublishedEvents(), 2)

	mock.Reset()
	assert.Empty(t, mock.GetPublishedEvents())
}
