package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type Action string

const (
	ActionManageCourse     Action = "course:manage"
	ActionDeleteCourse     Action = "course:delete"
	ActionReviewEnrollment Action = "enrollment:review"
	ActionGradeSubmission  Action = "submission:grade"
	ActionModerateForum    Action = "forum:moderate"
	ActionParticipateForum Action = "forum:participate"
	ActionTakeExam         Action = "exam:take"
	ActionViewContent      Action = "content:view"
)

// Principal is the authenticated caller, built from the access token claims
type Principal struct {
	UserID uint            `json:"userId"`
	Role   models.UserRole `json:"role"`
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

func (p Principal) IsAuthenticated() bool { return p.UserID != 0 }

// Guard answers whether a principal may perform an action on a course.
// course is nil for actions on global forum threads.
type Guard interface {
	Authorize(ctx context.Context, tx *gorm.DB, p Principal, action Action, course *models.Course) error
	RequireSelf(p Principal, ownerID uint, resource string, id uint) error
	HasActiveEnrollment(ctx context.Context, tx *gorm.DB, userID, courseID uint) (bool, error)
}

type guard struct {
	repo repositories.Repository
}

func NewGuard(repo repositories.Repository) Guard {
	return &guard{repo: repo}
}

func (g *guard) Authorize(ctx context.Context, tx *gorm.DB, p Principal, action Action, course *models.Course) error {
	if !p.IsAuthenticated() {
		return NewPermissionError(0, courseID(course), "course", string(action), "authentication required")
	}

	switch action {
	case ActionManageCourse, ActionReviewEnrollment, ActionGradeSubmission:
		if course != nil && course.IsOwnedBy(p.UserID) {
			return nil
		}
		return g.deny(p, action, course, "only the course tutor may do this")

	case ActionDeleteCourse:
		if p.IsAdmin() || (course != nil && course.IsOwnedBy(p.UserID)) {
			return nil
		}
		return g.deny(p, action, course, "only the course tutor or an admin may do this")

	case ActionModerateForum:
		if course == nil {
			if p.IsAdmin() {
				return nil
			}
			return g.deny(p, action, nil, "only admins moderate global threads")
		}
		if course.IsOwnedBy(p.UserID) {
			return nil
		}
		return g.deny(p, action, course, "only the course tutor moderates this forum")

	case ActionParticipateForum:
		if course == nil || course.IsOwnedBy(p.UserID) {
			return nil
		}
		return g.requireActiveEnrollment(ctx, tx, p, action, course)

	case ActionTakeExam:
		return g.requireActiveEnrollment(ctx, tx, p, action, course)

	case ActionViewContent:
		if p.IsAdmin() || (course != nil && course.IsOwnedBy(p.UserID)) {
			return nil
		}
		return g.requireActiveEnrollment(ctx, tx, p, action, course)
	}

	return g.deny(p, action, course, "unknown action")
}

func (g *guard) RequireSelf(p Principal, ownerID uint, resource string, id uint) error {
	if p.IsAuthenticated() && p.UserID == ownerID {
		return nil
	}
	return NewPermissionError(p.UserID, id, resource, "access", "resource belongs to another user")
}

func (g *guard) HasActiveEnrollment(ctx context.Context, tx *gorm.DB, userID, courseID uint) (bool, error) {
	enrollment, err := g.repo.Enrollment().GetByStudentAndCourse(ctx, tx, userID, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	return enrollment.IsActive(), nil
}

func (g *guard) requireActiveEnrollment(ctx context.Context, tx *gorm.DB, p Principal, action Action, course *models.Course) error {
	if course == nil {
		return g.deny(p, action, nil, "course required")
	}
	active, err := g.HasActiveEnrollment(ctx, tx, p.UserID, course.ID)
	if err != nil {
		return err
	}
	if !active {
		return g.deny(p, action, course, "an active enrollment is required")
	}
	return nil
}

func (g *guard) deny(p Principal, action Action, course *models.Course, reason string) error {
	return NewPermissionError(p.UserID, courseID(course), "course", string(action), reason)
}

func courseID(course *models.Course) uint {
	if course == nil {
		return 0
	}
	return course.ID
}
