package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gosimple/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

const defaultCoursePageSize = 20

type courseService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	guard     Guard
	publisher events.EventPublisher
}

func NewCourseService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, guard Guard, publisher events.EventPublisher) CourseService {
	return &courseService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		guard:     guard,
		publisher: publisher,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *courseService) Create(ctx context.Context, tutor Principal, req *CourseCreateRequest) (*models.Course, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	courseSlug, err := s.uniqueSlug(ctx, nil, req.Title, nil)
	if err != nil {
		return nil, err
	}
	tags, err := encodeTags(req.Tags)
	if err != nil {
		return nil, err
	}

	course := &models.Course{
		TutorID:               tutor.UserID,
		Title:                 req.Title,
		Slug:                  courseSlug,
		Description:           req.Description,
		ThumbnailURL:          req.ThumbnailURL,
		ContentType:           req.ContentType,
		Status:                models.CourseDraft,
		Level:                 models.LevelBeginner,
		Language:              "es",
		DurationHours:         req.DurationHours,
		Tags:                  tags,
		MaxStudents:           req.MaxStudents,
		EnrollmentAutoApprove: req.EnrollmentAutoApprove,
	}
	if req.Level != "" {
		course.Level = req.Level
	}
	if req.Language != "" {
		course.Language = req.Language
	}

	if err := s.repo.Course().Create(ctx, nil, course); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}

	s.logger.Info("Course created", "course_id", course.ID, "tutor_id", tutor.UserID, "slug", course.Slug)
	return course, nil
}

func (s *courseService) Get(ctx context.Context, id uint, viewer *Principal) (*CourseDetailResponse, error) {
	summary, err := s.repo.Course().GetSummary(ctx, nil, id)
	if err != nil {
		return nil, notFound(err, ErrCourseNotFound, id, "failed to get course")
	}

	// unpublished courses are only visible to their tutor and admins
	if summary.Status != models.CoursePublished && !canSeeUnpublished(viewer, &summary.Course) {
		return nil, NewNotFoundError(ErrCourseNotFound.Resource, id)
	}

	resp := &CourseDetailResponse{CourseSummary: summary}
	if viewer != nil && viewer.IsAuthenticated() {
		enrollment, err := s.repo.Enrollment().GetByStudentAndCourse(ctx, nil, viewer.UserID, id)
		switch {
		case err == nil:
			resp.IsEnrolled = enrollment.IsActive()
			resp.EnrollmentStatus = &enrollment.Status
		case !repositories.IsNotFoundError(err):
			return nil, fmt.Errorf("failed to check enrollment: %w", err)
		}
	}
	return resp, nil
}

func (s *courseService) List(ctx context.Context, query *CourseListQuery, viewer *Principal) (*CourseListResponse, error) {
	if err := s.validator.Validate(query); err != nil {
		return nil, err
	}

	page, limit, offset := query.Normalize(defaultCoursePageSize)
	filters := repositories.CourseFilters{
		TutorID:   query.TutorID,
		Search:    query.Search,
		Limit:     limit,
		Offset:    offset,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if query.ContentType != "" {
		ct := models.ContentType(query.ContentType)
		filters.ContentType = &ct
	}

	status := models.CoursePublished
	if query.Status != "" {
		status = models.CourseStatus(query.Status)
	}
	switch {
	case viewer != nil && viewer.IsAdmin():
		if query.Status != "" {
			filters.Status = &status
		}
	case viewer != nil && query.TutorID != nil && *query.TutorID == viewer.UserID:
		// tutors see their own drafts and archived courses
		if query.Status != "" {
			filters.Status = &status
		}
	default:
		published := models.CoursePublished
		filters.Status = &published
	}

	courses, total, err := s.repo.Course().List(ctx, nil, filters)
	if err != nil {
		return nil, err
	}
	return &CourseListResponse{Courses: courses, Pagination: newPagination(page, limit, total)}, nil
}

func (s *courseService) Update(ctx context.Context, id uint, tutor Principal, req *CourseUpdateRequest) (*models.Course, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		course, err := getCourse(ctx, s.repo, tx, id)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(ctx, tx, tutor, ActionManageCourse, course); err != nil {
			return err
		}

		fields, err := s.updateFields(ctx, tx, course, req)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return validator.NewValidationError("request", "no fields to update", nil)
		}

		if err := s.repo.Course().Update(ctx, tx, id, fields); err != nil {
			if repositories.IsDuplicateError(err) {
				return ErrSlugTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Course updated", "course_id", id, "tutor_id", tutor.UserID)
	return getCourse(ctx, s.repo, s.db, id)
}

func (s *courseService) Publish(ctx context.Context, id uint, tutor Principal) (*models.Course, error) {
	var course *models.Course
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		course, err = getCourse(ctx, s.repo, tx, id)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(ctx, tx, tutor, ActionManageCourse, course); err != nil {
			return err
		}

		modules, err := s.repo.Module().CountByCourse(ctx, tx, id)
		if err != nil {
			return err
		}
		if modules == 0 {
			return ErrCourseHasNoModules
		}

		now := nowUTC()
		if err := s.repo.Course().Update(ctx, tx, id, map[string]interface{}{
			"status":       models.CoursePublished,
			"published_at": now,
		}); err != nil {
			return err
		}
		course.Status = models.CoursePublished
		course.PublishedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Course published", "course_id", id)
	publish(ctx, s.publisher, s.logger, events.CoursePublished, events.CoursePayload{
		CourseID: course.ID,
		Title:    course.Title,
		Slug:     course.Slug,
		TutorID:  course.TutorID,
	})
	return course, nil
}

// ToggleStatus flips a course between published and archived
func (s *courseService) ToggleStatus(ctx context.Context, id uint) (*models.Course, error) {
	var course *models.Course
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		course, err = s.repo.Course().GetForUpdate(ctx, tx, id)
		if err != nil {
			return notFound(err, ErrCourseNotFound, id, "failed to get course")
		}

		var next models.CourseStatus
		switch course.Status {
		case models.CoursePublished:
			next = models.CourseArchived
		case models.CourseArchived:
			next = models.CoursePublished
		default:
			return ErrCourseNotToggleable
		}

		if err := s.repo.Course().Update(ctx, tx, id, map[string]interface{}{"status": next}); err != nil {
			return err
		}
		course.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Course status toggled", "course_id", id, "status", course.Status)
	return course, nil
}

func (s *courseService) Delete(ctx context.Context, id uint, requester Principal) error {
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		course, err := getCourse(ctx, s.repo, tx, id)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(ctx, tx, requester, ActionDeleteCourse, course); err != nil {
			return err
		}
		return s.repo.Course().Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Course deleted", "course_id", id, "by", requester.UserID)
	return nil
}

// ===== HELPERS =====

func (s *courseService) updateFields(ctx context.Context, tx *gorm.DB, course *models.Course, req *CourseUpdateRequest) (map[string]interface{}, error) {
	fields := make(map[string]interface{})

	if req.Title != nil && *req.Title != course.Title {
		courseSlug, err := s.uniqueSlug(ctx, tx, *req.Title, &course.ID)
		if err != nil {
			return nil, err
		}
		fields["title"] = *req.Title
		fields["slug"] = courseSlug
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.ThumbnailURL != nil {
		fields["thumbnail_url"] = *req.ThumbnailURL
	}
	if req.ContentType != nil {
		fields["content_type"] = *req.ContentType
	}
	if req.Level != nil {
		fields["level"] = *req.Level
	}
	if req.Language != nil {
		fields["language"] = *req.Language
	}
	if req.DurationHours != nil {
		fields["duration_hours"] = *req.DurationHours
	}
	if req.Tags != nil {
		tags, err := encodeTags(req.Tags)
		if err != nil {
			return nil, err
		}
		fields["tags"] = tags
	}
	if req.MaxStudents != nil {
		fields["max_students"] = *req.MaxStudents
	}
	if req.EnrollmentAutoApprove != nil {
		fields["enrollment_auto_approve"] = *req.EnrollmentAutoApprove
	}
	return fields, nil
}

// uniqueSlug derives the slug of title and fails with ErrSlugTaken when another course holds it
func (s *courseService) uniqueSlug(ctx context.Context, tx *gorm.DB, title string, excludeID *uint) (string, error) {
	courseSlug := slug.Make(title)
	if courseSlug == "" {
		return "", validator.NewValidationError("title", "title must contain letters or digits", title)
	}

	exists, err := s.repo.Course().ExistsBySlug(ctx, tx, courseSlug, excludeID)
	if err != nil {
		return "", err
	}
	if exists {
		return "", NewConflictError(ErrSlugTaken.Resource, ErrSlugTaken.Message, map[string]interface{}{"slug": courseSlug})
	}
	return courseSlug, nil
}

func encodeTags(tags []string) (datatypes.JSON, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func canSeeUnpublished(viewer *Principal, course *models.Course) bool {
	return viewer != nil && (viewer.IsAdmin() || course.IsOwnedBy(viewer.UserID))
}

// getCourse loads a course and maps a miss to ErrCourseNotFound
func getCourse(ctx context.Context, repo repositories.Repository, tx *gorm.DB, id uint) (*models.Course, error) {
	course, err := repo.Course().GetByID(ctx, tx, id)
	if err != nil {
		return nil, notFound(err, ErrCourseNotFound, id, "failed to get course")
	}
	return course, nil
}
