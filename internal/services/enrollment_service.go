package services

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

type enrollmentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	guard     Guard
	publisher events.EventPublisher
}

func NewEnrollmentService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, guard Guard, publisher events.EventPublisher) EnrollmentService {
	return &enrollmentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		guard:     guard,
		publisher: publisher,
	}
}

// Request enrolls the student, approving immediately when the course auto-approves
func (s *enrollmentService) Request(ctx context.Context, student Principal, req *EnrollmentCreateRequest) (*models.Enrollment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var (
		enrollment *models.Enrollment
		payload    events.EnrollmentPayload
	)
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		// the course row lock serializes capacity checks
		course, err := s.repo.Course().GetForUpdate(ctx, tx, req.CourseID)
		if err != nil {
			return notFound(err, ErrCourseNotFound, req.CourseID, "failed to get course")
		}
		if course.Status != models.CoursePublished {
			return ErrCourseNotPublished
		}
		if course.IsOwnedBy(student.UserID) {
			return NewBusinessRuleError("own_course", "tutors cannot enroll in their own course", nil)
		}

		existing, err := s.repo.Enrollment().GetByStudentAndCourse(ctx, tx, student.UserID, course.ID)
		if err == nil {
			return enrollmentExists(existing)
		}
		if !repositories.IsNotFoundError(err) {
			return err
		}

		if err := s.checkCapacity(ctx, tx, course); err != nil {
			return err
		}

		now := nowUTC()
		enrollment = &models.Enrollment{
			StudentID: student.UserID,
			CourseID:  course.ID,
			Status:    models.EnrollmentPending,
		}
		if course.EnrollmentAutoApprove {
			enrollment.Status = models.EnrollmentApproved
			enrollment.ApprovedAt = &now
		}
		if err := s.repo.Enrollment().Create(ctx, tx, enrollment); err != nil {
			if repositories.IsDuplicateError(err) {
				return ErrEnrollmentExists
			}
			return err
		}

		payload, err = s.buildPayload(ctx, tx, enrollment, course)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Enrollment requested",
		"enrollment_id", enrollment.ID,
		"course_id", enrollment.CourseID,
		"student_id", student.UserID,
		"status", enrollment.Status)

	eventType := events.EnrollmentRequested
	if enrollment.Status == models.EnrollmentApproved {
		eventType = events.EnrollmentApproved
	}
	publish(ctx, s.publisher, s.logger, eventType, payload)
	return enrollment, nil
}

func (s *enrollmentService) Approve(ctx context.Context, enrollmentID uint, tutor Principal) (*models.Enrollment, error) {
	return s.review(ctx, enrollmentID, tutor, models.EnrollmentApproved)
}

func (s *enrollmentService) Reject(ctx context.Context, enrollmentID uint, tutor Principal) (*models.Enrollment, error) {
	return s.review(ctx, enrollmentID, tutor, models.EnrollmentRejected)
}

// review moves a pending enrollment to approved or rejected
func (s *enrollmentService) review(ctx context.Context, enrollmentID uint, tutor Principal, next models.EnrollmentStatus) (*models.Enrollment, error) {
	var (
		enrollment *models.Enrollment
		payload    events.EnrollmentPayload
	)
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		enrollment, err = s.repo.Enrollment().GetForUpdate(ctx, tx, enrollmentID)
		if err != nil {
			return notFound(err, ErrEnrollmentNotFound, enrollmentID, "failed to get enrollment")
		}
		course, err := getCourse(ctx, s.repo, tx, enrollment.CourseID)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(ctx, tx, tutor, ActionReviewEnrollment, course); err != nil {
			return err
		}
		if enrollment.Status != models.EnrollmentPending {
			return NewBusinessRuleError(ErrInvalidTransition.Rule,
				"only pending enrollments can be reviewed",
				map[string]interface{}{"status": enrollment.Status, "target": next})
		}

		fields := map[string]interface{}{"status": next}
		if next == models.EnrollmentApproved {
			if err := s.checkCapacity(ctx, tx, course); err != nil {
				return err
			}
			now := nowUTC()
			fields["approved_at"] = now
			fields["approved_by"] = tutor.UserID
			enrollment.ApprovedAt = &now
			enrollment.ApprovedBy = &tutor.UserID
		}
		if err := s.repo.Enrollment().Update(ctx, tx, enrollmentID, fields); err != nil {
			return err
		}
		enrollment.Status = next

		payload, err = s.buildPayload(ctx, tx, enrollment, course)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Enrollment reviewed", "enrollment_id", enrollmentID, "status", next, "tutor_id", tutor.UserID)

	eventType := events.EnrollmentApproved
	if next == models.EnrollmentRejected {
		eventType = events.EnrollmentRejected
	}
	publish(ctx, s.publisher, s.logger, eventType, payload)
	return enrollment, nil
}

// MarkLessonComplete records the lesson and recomputes course progress.
// Reaching 100% completes an approved enrollment.
func (s *enrollmentService) MarkLessonComplete(ctx context.Context, enrollmentID, lessonID uint, student Principal) (*LessonCompletionResponse, error) {
	var (
		resp      *LessonCompletionResponse
		completed bool
		payload   events.EnrollmentPayload
	)
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		enrollment, err := s.repo.Enrollment().GetForUpdate(ctx, tx, enrollmentID)
		if err != nil {
			return notFound(err, ErrEnrollmentNotFound, enrollmentID, "failed to get enrollment")
		}
		if err := s.guard.RequireSelf(student, enrollment.StudentID, "enrollment", enrollmentID); err != nil {
			return err
		}
		if !enrollment.IsActive() {
			return ErrEnrollmentNotActive
		}

		lessonCourseID, err := s.repo.Lesson().CourseIDOf(ctx, tx, lessonID)
		if err != nil {
			return notFound(err, ErrLessonNotFound, lessonID, "failed to resolve lesson")
		}
		if lessonCourseID != enrollment.CourseID {
			return NewNotFoundError(ErrLessonNotFound.Resource, lessonID)
		}

		now := nowUTC()
		if err := s.repo.Enrollment().UpsertLessonCompleted(ctx, tx, enrollmentID, lessonID, now); err != nil {
			return err
		}

		total, err := s.repo.Lesson().CountByCourse(ctx, tx, enrollment.CourseID)
		if err != nil {
			return err
		}
		done, err := s.repo.Enrollment().CountCompletedLessons(ctx, tx, enrollmentID, enrollment.CourseID)
		if err != nil {
			return err
		}
		progress := percentage(float64(done), float64(total))

		fields := map[string]interface{}{"progress_percentage": progress}
		if progress >= 100 && enrollment.Status == models.EnrollmentApproved {
			fields["status"] = models.EnrollmentCompleted
			fields["completed_at"] = now
			enrollment.Status = models.EnrollmentCompleted
			enrollment.CompletedAt = &now
			completed = true
		}
		if err := s.repo.Enrollment().Update(ctx, tx, enrollmentID, fields); err != nil {
			return err
		}
		enrollment.ProgressPercentage = progress

		if completed {
			course, err := getCourse(ctx, s.repo, tx, enrollment.CourseID)
			if err != nil {
				return err
			}
			if payload, err = s.buildPayload(ctx, tx, enrollment, course); err != nil {
				return err
			}
		}

		resp = &LessonCompletionResponse{
			EnrollmentID:       enrollmentID,
			LessonID:           lessonID,
			Status:             enrollment.Status,
			ProgressPercentage: progress,
			CompletedLessons:   done,
			TotalLessons:       total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Lesson completed",
		"enrollment_id", enrollmentID,
		"lesson_id", lessonID,
		"progress", resp.ProgressPercentage)

	if completed {
		publish(ctx, s.publisher, s.logger, events.EnrollmentCompleted, payload)
	}
	return resp, nil
}

// ===== QUERIES =====

func (s *enrollmentService) ListMine(ctx context.Context, student Principal, status *models.EnrollmentStatus) ([]*repositories.EnrollmentRow, error) {
	return s.repo.Enrollment().List(ctx, nil, repositories.EnrollmentFilters{
		StudentID: &student.UserID,
		Status:    status,
	})
}

func (s *enrollmentService) ListByCourse(ctx context.Context, courseID uint, tutor Principal, status *models.EnrollmentStatus) ([]*repositories.EnrollmentRow, error) {
	if err := s.authorizeCourse(ctx, courseID, tutor); err != nil {
		return nil, err
	}
	return s.repo.Enrollment().List(ctx, nil, repositories.EnrollmentFilters{
		CourseID: &courseID,
		Status:   status,
	})
}

// GetProgress is visible to the enrolled student and the course tutor
func (s *enrollmentService) GetProgress(ctx context.Context, enrollmentID uint, requester Principal) (*ProgressResponse, error) {
	enrollment, err := s.repo.Enrollment().GetByID(ctx, nil, enrollmentID)
	if err != nil {
		return nil, notFound(err, ErrEnrollmentNotFound, enrollmentID, "failed to get enrollment")
	}
	if err := s.guard.RequireSelf(requester, enrollment.StudentID, "enrollment", enrollmentID); err != nil {
		course, cerr := getCourse(ctx, s.repo, nil, enrollment.CourseID)
		if cerr != nil {
			return nil, cerr
		}
		if s.guard.Authorize(ctx, nil, requester, ActionManageCourse, course) != nil {
			return nil, err
		}
	}

	lessons, err := s.repo.Enrollment().ListProgress(ctx, nil, enrollmentID, enrollment.CourseID)
	if err != nil {
		return nil, err
	}

	var done int64
	for _, l := range lessons {
		if l.IsCompleted {
			done++
		}
	}
	return &ProgressResponse{
		Enrollment:       enrollment,
		CompletedLessons: done,
		TotalLessons:     int64(len(lessons)),
		Lessons:          lessons,
	}, nil
}

func (s *enrollmentService) Stats(ctx context.Context, courseID uint, tutor Principal) (*repositories.EnrollmentStats, error) {
	if err := s.authorizeCourse(ctx, courseID, tutor); err != nil {
		return nil, err
	}
	return s.repo.Enrollment().GetStats(ctx, nil, courseID)
}

// ===== HELPERS =====

func (s *enrollmentService) authorizeCourse(ctx context.Context, courseID uint, tutor Principal) error {
	course, err := getCourse(ctx, s.repo, nil, courseID)
	if err != nil {
		return err
	}
	return s.guard.Authorize(ctx, nil, tutor, ActionManageCourse, course)
}

// checkCapacity fails with ErrCourseFull when the active enrollments reach max_students
func (s *enrollmentService) checkCapacity(ctx context.Context, tx *gorm.DB, course *models.Course) error {
	if course.MaxStudents == nil {
		return nil
	}
	active, err := s.repo.Enrollment().CountByStatus(ctx, tx, course.ID, models.EnrollmentApproved, models.EnrollmentCompleted)
	if err != nil {
		return err
	}
	if active >= int64(*course.MaxStudents) {
		return NewBusinessRuleError(ErrCourseFull.Rule, ErrCourseFull.Message,
			map[string]interface{}{"maxStudents": *course.MaxStudents})
	}
	return nil
}

func (s *enrollmentService) buildPayload(ctx context.Context, tx *gorm.DB, enrollment *models.Enrollment, course *models.Course) (events.EnrollmentPayload, error) {
	student, err := s.repo.User().GetByID(ctx, tx, enrollment.StudentID)
	if err != nil {
		return events.EnrollmentPayload{}, notFound(err, ErrUserNotFound, enrollment.StudentID, "failed to get student")
	}
	return events.EnrollmentPayload{
		EnrollmentID: enrollment.ID,
		CourseID:     course.ID,
		CourseTitle:  course.Title,
		StudentID:    student.ID,
		StudentName:  student.FullName(),
		StudentEmail: student.Email,
		TutorID:      course.TutorID,
		Status:       string(enrollment.Status),
	}, nil
}

func enrollmentExists(existing *models.Enrollment) error {
	return NewConflictError(ErrEnrollmentExists.Resource, ErrEnrollmentExists.Message, map[string]interface{}{
		"enrollmentId": existing.ID,
		"status":       existing.Status,
	})
}
