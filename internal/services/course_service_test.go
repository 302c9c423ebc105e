package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/learning-service/internal/events"
	"github.com/SAP-F-2025/learning-service/internal/models"
)

func TestCourseService_CreateDefaults(t *testing.T) {
	env := newTestEnv(t)
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)

	course, err := env.sm.Course().Create(context.Background(), tutor, &CourseCreateRequest{
		Title:       "Go for Backend Developers",
		ContentType: models.ContentVideo,
		Tags:        []string{"go", "backend"},
	})
	require.NoError(t, err)

	assert.Equal(t, "go-for-backend-developers", course.Slug)
	assert.Equal(t, models.CourseDraft, course.Status)
	assert.Equal(t, models.LevelBeginner, course.Level)
	assert.Equal(t, "es", course.Language)
	assert.Equal(t, tutor.UserID, course.TutorID)
	assert.JSONEq(t, `["go","backend"]`, string(course.Tags))
}

func TestCourseService_DuplicateSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)

	_, err := env.sm.Course().Create(ctx, tutor, &CourseCreateRequest{Title: "Intro to SQL", ContentType: models.ContentMixed})
	require.NoError(t, err)

	_, err = env.sm.Course().Create(ctx, tutor, &CourseCreateRequest{Title: "Intro to  SQL!", ContentType: models.ContentMixed})
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestCourseService_PublishRequiresModule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)

	course, err := env.sm.Course().Create(ctx, tutor, &CourseCreateRequest{Title: "Empty", ContentType: models.ContentMixed})
	require.NoError(t, err)

	_, err = env.sm.Course().Publish(ctx, course.ID, tutor)
	assert.ErrorIs(t, err, ErrCourseHasNoModules)

	other := env.user(t, "other@example.com", models.RoleTutor)
	_, err = env.sm.Course().Publish(ctx, course.ID, other)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	published, _ := env.publishedCourse(t, tutor, "Full Course", nil, false)
	assert.Equal(t, models.CoursePublished, published.Status)
	assert.NotNil(t, published.PublishedAt)
	assert.Contains(t, env.events.Types(), events.CoursePublished)
}

func TestCourseService_Visibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)
	admin := env.user(t, "admin@example.com", models.RoleAdmin)

	draft, err := env.sm.Course().Create(ctx, tutor, &CourseCreateRequest{Title: "Draft Course", ContentType: models.ContentMixed})
	require.NoError(t, err)
	env.publishedCourse(t, tutor, "Public Course", nil, false)

	_, err = env.sm.Course().Get(ctx, draft.ID, &student)
	assert.ErrorIs(t, err, ErrCourseNotFound)
	_, err = env.sm.Course().Get(ctx, draft.ID, nil)
	assert.ErrorIs(t, err, ErrCourseNotFound)

	detail, err := env.sm.Course().Get(ctx, draft.ID, &tutor)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, detail.ID)

	anonymous, err := env.sm.Course().List(ctx, &CourseListQuery{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), anonymous.Total)

	// a student asking for drafts still only sees published courses
	asStudent, err := env.sm.Course().List(ctx, &CourseListQuery{Status: "draft"}, &student)
	require.NoError(t, err)
	require.Len(t, asStudent.Courses, 1)
	assert.Equal(t, models.CoursePublished, asStudent.Courses[0].Status)

	own, err := env.sm.Course().List(ctx, &CourseListQuery{TutorID: &tutor.UserID, Status: "draft"}, &tutor)
	require.NoError(t, err)
	require.Len(t, own.Courses, 1)
	assert.Equal(t, draft.ID, own.Courses[0].ID)

	all, err := env.sm.Course().List(ctx, &CourseListQuery{}, &admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)
}

func TestCourseService_GetReportsEnrollment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)
	course, _ := env.publishedCourse(t, tutor, "Enrollable", nil, false)

	detail, err := env.sm.Course().Get(ctx, course.ID, &student)
	require.NoError(t, err)
	assert.False(t, detail.IsEnrolled)
	assert.Nil(t, detail.EnrollmentStatus)

	_, err = env.sm.Enrollment().Request(ctx, student, &EnrollmentCreateRequest{CourseID: course.ID})
	require.NoError(t, err)

	detail, err = env.sm.Course().Get(ctx, course.ID, &student)
	require.NoError(t, err)
	assert.False(t, detail.IsEnrolled)
	require.NotNil(t, detail.EnrollmentStatus)
	assert.Equal(t, models.EnrollmentPending, *detail.EnrollmentStatus)
}

func TestCourseService_UpdateRegeneratesSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	course, err := env.sm.Course().Create(ctx, tutor, &CourseCreateRequest{Title: "Old Title", ContentType: models.ContentMixed})
	require.NoError(t, err)

	title := "New Title"
	updated, err := env.sm.Course().Update(ctx, course.ID, tutor, &CourseUpdateRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "new-title", updated.Slug)

	_, err = env.sm.Course().Update(ctx, course.ID, tutor, &CourseUpdateRequest{})
	assert.Error(t, err)
}

func TestCourseService_ToggleStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)

	draft, err := env.sm.Course().Create(ctx, tutor, &CourseCreateRequest{Title: "Draft", ContentType: models.ContentMixed})
	require.NoError(t, err)
	_, err = env.sm.Course().ToggleStatus(ctx, draft.ID)
	assert.ErrorIs(t, err, ErrCourseNotToggleable)

	course, _ := env.publishedCourse(t, tutor, "Toggle Me", nil, false)
	archived, err := env.sm.Course().ToggleStatus(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CourseArchived, archived.Status)

	again, err := env.sm.Course().ToggleStatus(ctx, course.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CoursePublished, again.Status)
}

func TestCourseService_DeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)
	admin := env.user(t, "admin@example.com", models.RoleAdmin)
	course, lesson := env.publishedCourse(t, tutor, "Doomed", nil, true)
	env.enroll(t, student, tutor, course.ID)

	var permErr *PermissionError
	assert.ErrorAs(t, env.sm.Course().Delete(ctx, course.ID, student), &permErr)

	require.NoError(t, env.sm.Course().Delete(ctx, course.ID, admin))

	_, err := env.sm.Course().Get(ctx, course.ID, &admin)
	assert.ErrorIs(t, err, ErrCourseNotFound)

	var count int64
	require.NoError(t, env.db.Model(&models.Lesson{}).Where("id = ?", lesson.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, env.db.Model(&models.Enrollment{}).Where("course_id = ?", course.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestContentService_ModulesAndLessons(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	other := env.user(t, "other@example.com", models.RoleTutor)
	course, err := env.sm.Course().Create(ctx, tutor, &CourseCreateRequest{Title: "Authoring", ContentType: models.ContentMixed})
	require.NoError(t, err)

	first, err := env.sm.Content().CreateModule(ctx, course.ID, tutor, &ModuleCreateRequest{Title: "One"})
	require.NoError(t, err)
	second, err := env.sm.Content().CreateModule(ctx, course.ID, tutor, &ModuleCreateRequest{Title: "Two"})
	require.NoError(t, err)
	assert.Less(t, first.OrderIndex, second.OrderIndex)

	_, err = env.sm.Content().CreateModule(ctx, course.ID, other, &ModuleCreateRequest{Title: "Intruder"})
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	lesson, err := env.sm.Content().CreateLesson(ctx, first.ID, tutor, &LessonCreateRequest{Title: "Hello", DurationMinutes: 5})
	require.NoError(t, err)

	_, err = env.sm.Content().AddVideo(ctx, lesson.ID, tutor, &VideoCreateRequest{VideoURL: "https://cdn.example.com/v.mp4"})
	require.NoError(t, err)
	_, err = env.sm.Content().AddDocument(ctx, lesson.ID, tutor, &DocumentCreateRequest{Title: "Slides", FileURL: "https://cdn.example.com/s.pdf"})
	require.NoError(t, err)

	got, err := env.sm.Content().GetLesson(ctx, lesson.ID, tutor)
	require.NoError(t, err)
	assert.Len(t, got.Videos, 1)
	assert.Len(t, got.Documents, 1)

	modules, err := env.sm.Content().ListModules(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, int64(1), modules[0].LessonsCount)

	title := "Renamed"
	updated, err := env.sm.Content().UpdateLesson(ctx, lesson.ID, tutor, &LessonUpdateRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	require.NoError(t, env.sm.Content().DeleteModule(ctx, first.ID, tutor))
	_, err = env.sm.Content().GetLesson(ctx, lesson.ID, tutor)
	assert.ErrorIs(t, err, ErrLessonNotFound)
}

func TestContentService_LessonAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)
	course, lesson := env.publishedCourse(t, tutor, "Access", nil, false)

	_, err := env.sm.Content().GetLesson(ctx, lesson.ID, student)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	free := true
	_, err = env.sm.Content().UpdateLesson(ctx, lesson.ID, tutor, &LessonUpdateRequest{IsFree: &free})
	require.NoError(t, err)
	_, err = env.sm.Content().GetLesson(ctx, lesson.ID, Principal{})
	assert.NoError(t, err)

	free = false
	_, err = env.sm.Content().UpdateLesson(ctx, lesson.ID, tutor, &LessonUpdateRequest{IsFree: &free})
	require.NoError(t, err)
	env.enroll(t, student, tutor, course.ID)
	_, err = env.sm.Content().GetLesson(ctx, lesson.ID, student)
	assert.NoError(t, err)
}
