package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern invalidates a pattern and logs instead of failing.
func SafeInvalidatePattern(ctx context.Context, helper *Helper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete deletes keys and logs instead of failing.
func SafeDelete(ctx context.Context, helper *Helper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// ForumCategoriesKey holds the full category list
const ForumCategoriesKey = "categories"

func CourseKey(id uint) string       { return fmt.Sprintf("id:%d", id) }
func CourseDetailKey(id uint) string { return fmt.Sprintf("details:%d", id) }
func UserKey(id uint) string         { return fmt.Sprintf("id:%d", id) }

// InvalidateCourse drops every cached view of a course and the catalog
// listings it may appear in.
func InvalidateCourse(ctx context.Context, m *Manager, courseID uint) {
	SafeDelete(ctx, m.Course, CourseKey(courseID), CourseDetailKey(courseID))
	SafeInvalidatePattern(ctx, m.Catalog, "*")
}

// InvalidateCourseStructure drops the cached module/lesson tree only.
func InvalidateCourseStructure(ctx context.Context, m *Manager, courseID uint) {
	SafeDelete(ctx, m.Course, CourseDetailKey(courseID))
}

func InvalidateUser(ctx context.Context, m *Manager, userID uint) {
	SafeDelete(ctx, m.User, UserKey(userID))
	SafeInvalidatePattern(ctx, m.Stats, "users:*")
}
