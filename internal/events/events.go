package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EnrollmentRequested EventType = "enrollment.requested"
	EnrollmentApproved  EventType = "enrollment.approved"
	EnrollmentRejected  EventType = "enrollment.rejected"
	EnrollmentCompleted EventType = "enrollment.completed"

	SubmissionCreated EventType = "submission.created"
	SubmissionGraded  EventType = "submission.graded"

	CoursePublished EventType = "course.published"
)

// Event is the envelope written to the bus. Data holds one of the payload types below.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

func NewEvent(eventType EventType, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}, nil
}

// Decode unmarshals Data into dest
func (e *Event) Decode(dest interface{}) error {
	return json.Unmarshal(e.Data, dest)
}

type EnrollmentPayload struct {
	EnrollmentID uint   `json:"enrollmentId"`
	CourseID     uint   `json:"courseId"`
	CourseTitle  string `json:"courseTitle"`
	StudentID    uint   `json:"studentId"`
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
	TutorID      uint   `json:"tutorId"`
	Status       string `json:"status"`
}

type SubmissionPayload struct {
	SubmissionID  uint     `json:"submissionId"`
	ExamID        uint     `json:"examId"`
	ExamTitle     string   `json:"examTitle"`
	CourseID      uint     `json:"courseId"`
	StudentID     uint     `json:"studentId"`
	StudentName   string   `json:"studentName"`
	StudentEmail  string   `json:"studentEmail"`
	AttemptNumber int      `json:"attemptNumber"`
	Status        string   `json:"status"`
	Score         *float64 `json:"score,omitempty"`
	Passed        *bool    `json:"passed,omitempty"`
}

type CoursePayload struct {
	CourseID uint   `json:"courseId"`
	Title    string `json:"title"`
	Slug     string `json:"slug"`
	TutorID  uint   `json:"tutorId"`
}

// EventPublisher publishes domain events; callers publish after their transaction commits
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
