package postgres

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/cache"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type CoursePostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.Manager
}

func NewCoursePostgreSQL(db *gorm.DB, helpers *SharedHelpers, cacheManager *cache.Manager) repositories.CourseRepository {
	return &CoursePostgreSQL{
		db:           db,
		helpers:      helpers,
		cacheManager: cacheManager,
	}
}

const courseSummarySelect = "courses.*, " +
	"TRIM(COALESCE(users.first_name, '') || ' ' || COALESCE(users.last_name, '')) AS tutor_name, " +
	"(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = courses.id AND e.status IN ('approved', 'completed')) AS enrollments_count, " +
	"(SELECT COUNT(*) FROM course_modules m WHERE m.course_id = courses.id) AS modules_count"

func (c *CoursePostgreSQL) summaryQuery(ctx context.Context, tx *gorm.DB) *gorm.DB {
	return getDB(ctx, c.db, tx).Table("courses").
		Select(courseSummarySelect).
		Joins("LEFT JOIN users ON users.id = courses.tutor_id")
}

func (c *CoursePostgreSQL) Create(ctx context.Context, tx *gorm.DB, course *models.Course) error {
	if err := getDB(ctx, c.db, tx).Create(course).Error; err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}
	c.helpers.AfterCommit(tx, func() {
		cache.SafeInvalidatePattern(ctx, c.cacheManager.Catalog, "*")
	})
	return nil
}

// GetByID retrieves a course, reading through the cache outside transactions
func (c *CoursePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	fetch := func() (interface{}, error) {
		var course models.Course
		if err := getDB(ctx, c.db, tx).First(&course, id).Error; err != nil {
			return nil, fmt.Errorf("failed to get course: %w", err)
		}
		return &course, nil
	}

	if tx != nil {
		course, err := fetch()
		if err != nil {
			return nil, err
		}
		return course.(*models.Course), nil
	}

	var course models.Course
	if err := c.cacheManager.Course.CacheOrExecute(ctx, cache.CourseKey(id), &course, cache.CourseCacheConfig.TTL, fetch); err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *CoursePostgreSQL) GetForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	var course models.Course
	if err := forUpdate(getDB(ctx, c.db, tx)).First(&course, id).Error; err != nil {
		return nil, fmt.Errorf("failed to lock course: %w", err)
	}
	return &course, nil
}

// GetSummary returns the course with tutor name and aggregates, cached as course details
func (c *CoursePostgreSQL) GetSummary(ctx context.Context, tx *gorm.DB, id uint) (*repositories.CourseSummary, error) {
	fetch := func() (interface{}, error) {
		var summary repositories.CourseSummary
		result := c.summaryQuery(ctx, tx).Where("courses.id = ?", id).Limit(1).Scan(&summary)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to get course summary: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, fmt.Errorf("failed to get course summary: %w", gorm.ErrRecordNotFound)
		}
		return &summary, nil
	}

	if tx != nil {
		summary, err := fetch()
		if err != nil {
			return nil, err
		}
		return summary.(*repositories.CourseSummary), nil
	}

	var summary repositories.CourseSummary
	if err := c.cacheManager.Course.CacheOrExecute(ctx, cache.CourseDetailKey(id), &summary, cache.CourseCacheConfig.TTL, fetch); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *CoursePostgreSQL) Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	result := getDB(ctx, c.db, tx).Model(&models.Course{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update course: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update course: %w", gorm.ErrRecordNotFound)
	}

	c.helpers.AfterCommit(tx, func() {
		cache.InvalidateCourse(ctx, c.cacheManager, id)
	})
	return nil
}

// Delete removes a course and everything hanging off it. Outside a transaction
// it opens its own.
func (c *CoursePostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if tx == nil {
		return c.helpers.Transaction(ctx, func(tx *gorm.DB) error {
			return c.Delete(ctx, tx, id)
		})
	}
	db := tx.WithContext(ctx)

	exams := db.Model(&models.Exam{}).Select("id").Where("course_id = ?", id)
	submissions := db.Model(&models.ExamSubmission{}).Select("id").Where("exam_id IN (?)", exams)
	questions := db.Model(&models.Question{}).Select("id").Where("exam_id IN (?)", exams)
	enrollments := db.Model(&models.Enrollment{}).Select("id").Where("course_id = ?", id)
	modules := db.Model(&models.Module{}).Select("id").Where("course_id = ?", id)
	lessons := db.Model(&models.Lesson{}).Select("id").Where("module_id IN (?)", modules)
	threads := db.Model(&models.ForumThread{}).Select("id").Where("course_id = ?", id)
	replies := db.Model(&models.ForumReply{}).Select("id").Where("thread_id IN (?)", threads)

	steps := []struct {
		model interface{}
		where string
		arg   interface{}
	}{
		{&models.SubmissionAnswer{}, "submission_id IN (?)", submissions},
		{&models.ExamSubmission{}, "exam_id IN (?)", exams},
		{&models.QuestionOption{}, "question_id IN (?)", questions},
		{&models.Question{}, "exam_id IN (?)", exams},
		{&models.Exam{}, "course_id = ?", id},
		{&models.LessonProgress{}, "enrollment_id IN (?)", enrollments},
		{&models.Enrollment{}, "course_id = ?", id},
		{&models.LessonVideo{}, "lesson_id IN (?)", lessons},
		{&models.LessonDocument{}, "lesson_id IN (?)", lessons},
		{&models.Lesson{}, "module_id IN (?)", modules},
		{&models.Module{}, "course_id = ?", id},
		{&models.ForumLike{}, "reply_id IN (?)", replies},
		{&models.ForumLike{}, "thread_id IN (?)", threads},
		{&models.ForumReply{}, "thread_id IN (?)", threads},
		{&models.ForumThread{}, "course_id = ?", id},
	}
	for _, step := range steps {
		if err := db.Where(step.where, step.arg).Delete(step.model).Error; err != nil {
			return fmt.Errorf("failed to delete course children: %w", err)
		}
	}

	result := db.Delete(&models.Course{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete course: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete course: %w", gorm.ErrRecordNotFound)
	}

	c.helpers.AfterCommit(tx, func() {
		cache.InvalidateCourse(ctx, c.cacheManager, id)
	})
	return nil
}

func (c *CoursePostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.CourseFilters) ([]*repositories.CourseSummary, int64, error) {
	type page struct {
		Items []*repositories.CourseSummary `json:"items"`
		Total int64                         `json:"total"`
	}

	fetch := func() (interface{}, error) {
		base := getDB(ctx, c.db, tx).Model(&models.Course{})
		base = c.applyFilters(base, filters)

		var total int64
		if err := base.Count(&total).Error; err != nil {
			return nil, fmt.Errorf("failed to count courses: %w", err)
		}

		query := c.applyFilters(c.summaryQuery(ctx, tx), filters)
		query = c.helpers.ApplyPaginationAndSort(query, "courses", filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

		items := make([]*repositories.CourseSummary, 0)
		if err := query.Scan(&items).Error; err != nil {
			return nil, fmt.Errorf("failed to list courses: %w", err)
		}
		return &page{Items: items, Total: total}, nil
	}

	if tx != nil {
		p, err := fetch()
		if err != nil {
			return nil, 0, err
		}
		return p.(*page).Items, p.(*page).Total, nil
	}

	var p page
	if err := c.cacheManager.Catalog.CacheOrExecute(ctx, catalogKey(filters), &p, cache.CatalogCacheConfig.TTL, fetch); err != nil {
		return nil, 0, err
	}
	return p.Items, p.Total, nil
}

func (c *CoursePostgreSQL) applyFilters(query *gorm.DB, filters repositories.CourseFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("courses.status = ?", *filters.Status)
	}
	if filters.TutorID != nil {
		query = query.Where("courses.tutor_id = ?", *filters.TutorID)
	}
	if filters.ContentType != nil {
		query = query.Where("courses.content_type = ?", *filters.ContentType)
	}
	return c.helpers.ApplySearch(query, filters.Search, "courses.title", "courses.description")
}

func catalogKey(f repositories.CourseFilters) string {
	var b strings.Builder
	b.WriteString("list")
	if f.Status != nil {
		fmt.Fprintf(&b, ":s=%s", *f.Status)
	}
	if f.TutorID != nil {
		fmt.Fprintf(&b, ":t=%d", *f.TutorID)
	}
	if f.ContentType != nil {
		fmt.Fprintf(&b, ":c=%s", *f.ContentType)
	}
	fmt.Fprintf(&b, ":q=%s:o=%s,%s:p=%d,%d", strings.ToLower(f.Search), f.SortBy, f.SortOrder, f.Limit, f.Offset)
	return b.String()
}

func (c *CoursePostgreSQL) ExistsBySlug(ctx context.Context, tx *gorm.DB, slug string, excludeID *uint) (bool, error) {
	query := getDB(ctx, c.db, tx).Model(&models.Course{}).Where("slug = ?", slug)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return count > 0, nil
}
