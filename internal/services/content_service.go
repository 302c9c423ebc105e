package services

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

type contentService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	guard     Guard
}

func NewContentService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, guard Guard) ContentService {
	return &contentService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		guard:     guard,
	}
}

// ===== MODULES =====

func (s *contentService) CreateModule(ctx context.Context, courseID uint, tutor Principal, req *ModuleCreateRequest) (*models.Module, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	module := &models.Module{
		CourseID:    courseID,
		Title:       req.Title,
		Description: req.Description,
	}
	if req.IsPublished != nil {
		module.IsPublished = *req.IsPublished
	}

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		course, err := getCourse(ctx, s.repo, tx, courseID)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(ctx, tx, tutor, ActionManageCourse, course); err != nil {
			return err
		}

		if req.OrderIndex != nil {
			module.OrderIndex = *req.OrderIndex
		} else {
			next, err := s.repo.Module().NextOrderIndex(ctx, tx, courseID)
			if err != nil {
				return err
			}
			module.OrderIndex = next
		}
		return s.repo.Module().Create(ctx, tx, module)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Module created", "module_id", module.ID, "course_id", courseID)
	return module, nil
}

func (s *contentService) ListModules(ctx context.Context, courseID uint) ([]*repositories.ModuleSummary, error) {
	if _, err := getCourse(ctx, s.repo, nil, courseID); err != nil {
		return nil, err
	}
	return s.repo.Module().ListByCourse(ctx, nil, courseID)
}

func (s *contentService) UpdateModule(ctx context.Context, moduleID uint, tutor Principal, req *ModuleUpdateRequest) (*models.Module, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.OrderIndex != nil {
		fields["order_index"] = *req.OrderIndex
	}
	if req.IsPublished != nil {
		fields["is_published"] = *req.IsPublished
	}
	if len(fields) == 0 {
		return nil, validator.NewValidationError("request", "no fields to update", nil)
	}

	var module *models.Module
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.authorizeModule(ctx, tx, moduleID, tutor); err != nil {
			return err
		}
		if err := s.repo.Module().Update(ctx, tx, moduleID, fields); err != nil {
			return err
		}
		var err error
		module, err = s.repo.Module().GetByID(ctx, tx, moduleID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Module updated", "module_id", moduleID)
	return module, nil
}

// DeleteModule removes the module and its lessons; exams attached to it stay on the course
func (s *contentService) DeleteModule(ctx context.Context, moduleID uint, tutor Principal) error {
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.authorizeModule(ctx, tx, moduleID, tutor); err != nil {
			return err
		}
		return s.repo.Module().Delete(ctx, tx, moduleID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Module deleted", "module_id", moduleID)
	return nil
}

// ===== LESSONS =====

func (s *contentService) CreateLesson(ctx context.Context, moduleID uint, tutor Principal, req *LessonCreateRequest) (*models.Lesson, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	lesson := &models.Lesson{
		ModuleID:        moduleID,
		Title:           req.Title,
		Content:         req.Content,
		DurationMinutes: req.DurationMinutes,
		IsFree:          req.IsFree,
	}

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.authorizeModule(ctx, tx, moduleID, tutor); err != nil {
			return err
		}

		if req.OrderIndex != nil {
			lesson.OrderIndex = *req.OrderIndex
		} else {
			next, err := s.repo.Lesson().NextOrderIndex(ctx, tx, moduleID)
			if err != nil {
				return err
			}
			lesson.OrderIndex = next
		}
		return s.repo.Lesson().Create(ctx, tx, lesson)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Lesson created", "lesson_id", lesson.ID, "module_id", moduleID)
	return lesson, nil
}

// GetLesson returns the lesson with its media. Free lessons of published
// courses are open to everyone.
func (s *contentService) GetLesson(ctx context.Context, lessonID uint, viewer Principal) (*models.Lesson, error) {
	lesson, err := s.repo.Lesson().GetWithContent(ctx, nil, lessonID)
	if err != nil {
		return nil, notFound(err, ErrLessonNotFound, lessonID, "failed to get lesson")
	}

	course, err := s.lessonCourse(ctx, nil, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.IsFree && course.Status == models.CoursePublished {
		return lesson, nil
	}
	if err := s.guard.Authorize(ctx, nil, viewer, ActionViewContent, course); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *contentService) UpdateLesson(ctx context.Context, lessonID uint, tutor Principal, req *LessonUpdateRequest) (*models.Lesson, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Content != nil {
		fields["content"] = *req.Content
	}
	if req.OrderIndex != nil {
		fields["order_index"] = *req.OrderIndex
	}
	if req.DurationMinutes != nil {
		fields["duration_minutes"] = *req.DurationMinutes
	}
	if req.IsFree != nil {
		fields["is_free"] = *req.IsFree
	}
	if len(fields) == 0 {
		return nil, validator.NewValidationError("request", "no fields to update", nil)
	}

	var lesson *models.Lesson
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.authorizeLesson(ctx, tx, lessonID, tutor); err != nil {
			return err
		}
		if err := s.repo.Lesson().Update(ctx, tx, lessonID, fields); err != nil {
			return err
		}
		var err error
		lesson, err = s.repo.Lesson().GetWithContent(ctx, tx, lessonID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Lesson updated", "lesson_id", lessonID)
	return lesson, nil
}

func (s *contentService) DeleteLesson(ctx context.Context, lessonID uint, tutor Principal) error {
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.authorizeLesson(ctx, tx, lessonID, tutor); err != nil {
			return err
		}
		return s.repo.Lesson().Delete(ctx, tx, lessonID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Lesson deleted", "lesson_id", lessonID)
	return nil
}

func (s *contentService) AddVideo(ctx context.Context, lessonID uint, tutor Principal, req *VideoCreateRequest) (*models.LessonVideo, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	video := &models.LessonVideo{
		LessonID:        lessonID,
		Title:           req.Title,
		VideoURL:        req.VideoURL,
		ThumbnailURL:    req.ThumbnailURL,
		DurationSeconds: req.DurationSeconds,
		SizeBytes:       req.SizeBytes,
	}
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.authorizeLesson(ctx, tx, lessonID, tutor); err != nil {
			return err
		}
		return s.repo.Lesson().AddVideo(ctx, tx, video)
	})
	if err != nil {
		return nil, err
	}
	return video, nil
}

func (s *contentService) AddDocument(ctx context.Context, lessonID uint, tutor Principal, req *DocumentCreateRequest) (*models.LessonDocument, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	doc := &models.LessonDocument{
		LessonID:  lessonID,
		Title:     req.Title,
		FileURL:   req.FileURL,
		FileType:  req.FileType,
		SizeBytes: req.SizeBytes,
	}
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.authorizeLesson(ctx, tx, lessonID, tutor); err != nil {
			return err
		}
		return s.repo.Lesson().AddDocument(ctx, tx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ===== HELPERS =====

func (s *contentService) authorizeModule(ctx context.Context, tx *gorm.DB, moduleID uint, tutor Principal) (*models.Module, error) {
	module, err := s.repo.Module().GetByID(ctx, tx, moduleID)
	if err != nil {
		return nil, notFound(err, ErrModuleNotFound, moduleID, "failed to get module")
	}
	course, err := getCourse(ctx, s.repo, tx, module.CourseID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, tx, tutor, ActionManageCourse, course); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *contentService) authorizeLesson(ctx context.Context, tx *gorm.DB, lessonID uint, tutor Principal) error {
	course, err := s.lessonCourse(ctx, tx, lessonID)
	if err != nil {
		return err
	}
	return s.guard.Authorize(ctx, tx, tutor, ActionManageCourse, course)
}

func (s *contentService) lessonCourse(ctx context.Context, tx *gorm.DB, lessonID uint) (*models.Course, error) {
	courseID, err := s.repo.Lesson().CourseIDOf(ctx, tx, lessonID)
	if err != nil {
		return nil, notFound(err, ErrLessonNotFound, lessonID, "failed to resolve lesson")
	}
	return getCourse(ctx, s.repo, tx, courseID)
}
