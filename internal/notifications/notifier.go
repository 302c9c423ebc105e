package notifications

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/SAP-F-2025/learning-service/internal/events"
)

const handlerName = "lms-email-notifications"

// Notifier turns enrollment and grading events into e-mails
type Notifier struct {
	mailer Mailer
	logger *slog.Logger
}

func NewNotifier(mailer Mailer, logger *slog.Logger) *Notifier {
	return &Notifier{mailer: mailer, logger: logger}
}

// Register subscribes the notifier to the bus topic on router
func (n *Notifier) Register(router *message.Router, bus *events.Bus) {
	router.AddNoPublisherHandler(handlerName, bus.Topic, bus.Subscriber, n.Handle)
}

// Handle acks undecodable and unknown events. Mail delivery failures are
// returned so the message is redelivered.
func (n *Notifier) Handle(msg *message.Message) error {
	event, err := events.DecodeMessage(msg)
	if err != nil {
		n.logger.Warn("Dropping undecodable event", "message_id", msg.UUID, "error", err)
		return nil
	}

	email, ok, err := BuildEmail(event)
	if err != nil {
		n.logger.Warn("Dropping malformed event", "event_id", event.ID, "event_type", event.Type, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	if err := n.mailer.Send(msg.Context(), *email); err != nil {
		n.logger.Error("Failed to send notification", "event_id", event.ID, "to", email.ToEmail, "error", err)
		return err
	}

	n.logger.Info("Notification sent", "event_id", event.ID, "event_type", event.Type, "to", email.ToEmail)
	return nil
}

// BuildEmail returns the e-mail for event; ok is false for events that notify nobody
func BuildEmail(event *events.Event) (*Email, bool, error) {
	switch event.Type {
	case events.EnrollmentApproved, events.EnrollmentRejected, events.EnrollmentCompleted:
		var p events.EnrollmentPayload
		if err := event.Decode(&p); err != nil {
			return nil, false, err
		}
		if p.StudentEmail == "" {
			return nil, false, nil
		}
		return enrollmentEmail(event.Type, p), true, nil

	case events.SubmissionGraded:
		var p events.SubmissionPayload
		if err := event.Decode(&p); err != nil {
			return nil, false, err
		}
		if p.StudentEmail == "" {
			return nil, false, nil
		}
		return gradedEmail(p), true, nil
	}
	return nil, false, nil
}

func enrollmentEmail(t events.EventType, p events.EnrollmentPayload) *Email {
	email := &Email{ToName: p.StudentName, ToEmail: p.StudentEmail, Category: string(t)}
	switch t {
	case events.EnrollmentApproved:
		email.Subject = fmt.Sprintf("You're enrolled in %s", p.CourseTitle)
		email.Text = fmt.Sprintf("Hi %s,\n\nYour enrollment in \"%s\" was approved. You can start learning now.", p.StudentName, p.CourseTitle)
	case events.EnrollmentRejected:
		email.Subject = fmt.Sprintf("Enrollment update for %s", p.CourseTitle)
		email.Text = fmt.Sprintf("Hi %s,\n\nYour enrollment request for \"%s\" was not approved.", p.StudentName, p.CourseTitle)
	case events.EnrollmentCompleted:
		email.Subject = fmt.Sprintf("You completed %s", p.CourseTitle)
		email.Text = fmt.Sprintf("Hi %s,\n\nCongratulations, you finished every lesson of \"%s\".", p.StudentName, p.CourseTitle)
	}
	return email
}

func gradedEmail(p events.SubmissionPayload) *Email {
	result := "graded"
	if p.Score != nil {
		result = fmt.Sprintf("scored %.1f%%", *p.Score)
		if p.Passed != nil && *p.Passed {
			result += " (passed)"
		} else if p.Passed != nil {
			result += " (not passed)"
		}
	}
	return &Email{
		ToName:   p.StudentName,
		ToEmail:  p.StudentEmail,
		Subject:  fmt.Sprintf("Results for %s", p.ExamTitle),
		Text:     fmt.Sprintf("Hi %s,\n\nYour attempt #%d of \"%s\" was %s.", p.StudentName, p.AttemptNumber, p.ExamTitle, result),
		Category: string(events.SubmissionGraded),
	}
}
