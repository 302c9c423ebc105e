package notifications

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/learning-service/internal/events"
)

func newMessage(t *testing.T, event *events.Event) *message.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return message.NewMessage(event.ID, payload)
}

func TestBuildEmail(t *testing.T) {
	score, passed := 85.5, true

	tests := []struct {
		name        string
		eventType   events.EventType
		payload     interface{}
		wantOK      bool
		wantSubject string
	}{
		{
			name:        "approved enrollment",
			eventType:   events.EnrollmentApproved,
			payload:     events.EnrollmentPayload{CourseTitle: "Go 101", StudentEmail: "ana@example.com", StudentName: "Ana"},
			wantOK:      true,
			wantSubject: "You're enrolled in Go 101",
		},
		{
			name:        "graded submission",
			eventType:   events.SubmissionGraded,
			payload:     events.SubmissionPayload{ExamTitle: "Final", StudentEmail: "ana@example.com", Score: &score, Passed: &passed},
			wantOK:      true,
			wantSubject: "Results for Final",
		},
		{
			name:      "requested enrollment notifies nobody",
			eventType: events.EnrollmentRequested,
			payload:   events.EnrollmentPayload{StudentEmail: "ana@example.com"},
		},
		{
			name:      "missing address",
			eventType: events.EnrollmentRejected,
			payload:   events.EnrollmentPayload{CourseTitle: "Go 101"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := events.NewEvent(tt.eventType, tt.payload)
			require.NoError(t, err)

			email, ok, err := BuildEmail(event)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantSubject, email.Subject)
				assert.Equal(t, "ana@example.com", email.ToEmail)
			}
		})
	}
}

func TestNotifier_HandleSendsThroughMailer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mailer := NewConsoleMailer(logger)
	notifier := NewNotifier(mailer, logger)

	event, err := events.NewEvent(events.EnrollmentCompleted, events.EnrollmentPayload{
		CourseTitle:  "Go 101",
		StudentName:  "Ana",
		StudentEmail: "ana@example.com",
	})
	require.NoError(t, err)

	require.NoError(t, notifier.Handle(newMessage(t, event)))

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "You completed Go 101", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "Congratulations")
}

func TestNotifier_HandleAcksGarbage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mailer := NewConsoleMailer(logger)
	notifier := NewNotifier(mailer, logger)

	assert.NoError(t, notifier.Handle(message.NewMessage("1", []byte("not json"))))
	assert.Empty(t, mailer.Sent())
}
