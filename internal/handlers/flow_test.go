package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/learning-service/internal/models"
)

func idOf(t *testing.T, body map[string]interface{}) uint {
	t.Helper()
	id, ok := body["id"].(float64)
	require.True(t, ok, "response has no id: %v", body)
	return uint(id)
}

func detailsOf(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok, "response has no details: %v", body)
	return details
}

// publishedCourse creates a course with one module and one lesson and publishes it
func (s *testServer) publishedCourse(t *testing.T, tutor account, title string, autoApprove bool) (courseID, lessonID uint) {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/v1/courses", tutor.token, map[string]interface{}{
		"title":                 title,
		"contentType":           models.ContentMixed,
		"enrollmentAutoApprove": autoApprove,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	courseID = idOf(t, decode(t, w))

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/modules", courseID), tutor.token, map[string]interface{}{"title": "Intro"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	moduleID := idOf(t, decode(t, w))

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/modules/%d/lessons", moduleID), tutor.token, map[string]interface{}{"title": "Hello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	lessonID = idOf(t, decode(t, w))

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/publish", courseID), tutor.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return courseID, lessonID
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	student := s.register(t, "student@example.com", models.RoleStudent)

	w := s.do(t, http.MethodGet, "/api/v1/auth/me", student.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student@example.com", decode(t, w)["email"])

	w = s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"email":     "student@example.com",
		"password":  testPassword,
		"firstName": "Again",
		"lastName":  "User",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]interface{}{
		"email":     "not-an-email",
		"password":  "short",
		"firstName": "Bad",
		"lastName":  "Input",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Validation failed", body["error"])
	assert.NotEmpty(t, body["details"])

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]interface{}{
		"email":    "student@example.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid credentials", decode(t, w)["error"])

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]interface{}{
		"email":    "student@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["refreshToken"])
}

func TestCourseAndEnrollmentFlow(t *testing.T) {
	s := newTestServer(t)
	tutor := s.register(t, "tutor@example.com", models.RoleTutor)
	student := s.register(t, "student@example.com", models.RoleStudent)

	w := s.do(t, http.MethodPost, "/api/v1/courses", student.token, map[string]interface{}{
		"title":       "Not Mine",
		"contentType": models.ContentMixed,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/courses", tutor.token, map[string]interface{}{
		"title":       "Empty Course",
		"contentType": models.ContentMixed,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	emptyID := idOf(t, decode(t, w))

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/publish", emptyID), tutor.token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "course_has_no_modules", detailsOf(t, decode(t, w))["rule"])

	w = s.do(t, http.MethodGet, "/api/v1/courses/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	courseID, lessonID := s.publishedCourse(t, tutor, "Go Basics", false)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/courses/%d", courseID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(models.CoursePublished), decode(t, w)["status"])

	w = s.do(t, http.MethodPost, "/api/v1/enrollments", student.token, map[string]interface{}{"courseId": courseID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	enrollment := decode(t, w)
	assert.Equal(t, string(models.EnrollmentPending), enrollment["status"])
	enrollmentID := idOf(t, enrollment)

	w = s.do(t, http.MethodPost, "/api/v1/enrollments", student.token, map[string]interface{}{"courseId": courseID})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(models.EnrollmentPending), detailsOf(t, decode(t, w))["status"])

	completePath := fmt.Sprintf("/api/v1/enrollments/%d/lessons/%d/complete", enrollmentID, lessonID)
	w = s.do(t, http.MethodPost, completePath, student.token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "enrollment_not_active", detailsOf(t, decode(t, w))["rule"])

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/enrollments/%d/approve", enrollmentID), student.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/enrollments/%d/approve", enrollmentID), tutor.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(models.EnrollmentApproved), decode(t, w)["status"])

	w = s.do(t, http.MethodPost, completePath, student.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	completion := decode(t, w)
	assert.Equal(t, string(models.EnrollmentCompleted), completion["status"])
	assert.EqualValues(t, 100, completion["progressPercentage"])

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/enrollments/%d/progress", enrollmentID), student.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	progress := decode(t, w)
	assert.EqualValues(t, 1, progress["completedLessons"])
	assert.EqualValues(t, 1, progress["totalLessons"])

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/enrollments/courses/%d/enrollments", courseID), tutor.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["enrollments"], 1)
}

func TestExamFlowAndGradebookDownload(t *testing.T) {
	s := newTestServer(t)
	tutor := s.register(t, "tutor@example.com", models.RoleTutor)
	student := s.register(t, "student@example.com", models.RoleStudent)
	courseID, _ := s.publishedCourse(t, tutor, "Exams 101", true)

	w := s.do(t, http.MethodPost, "/api/v1/enrollments", student.token, map[string]interface{}{"courseId": courseID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/exams/courses/%d/exams", courseID), tutor.token, map[string]interface{}{
		"title":       "Final",
		"maxAttempts": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	examID := idOf(t, decode(t, w))

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/questions", examID), tutor.token, map[string]interface{}{
		"questionText": "2 + 2?",
		"questionType": models.MultipleChoice,
		"points":       2,
		"options": []map[string]interface{}{
			{"optionText": "3"},
			{"optionText": "4", "isCorrect": true},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	question := decode(t, w)
	questionID := idOf(t, question)

	var correct float64
	for _, raw := range question["options"].([]interface{}) {
		opt := raw.(map[string]interface{})
		if opt["isCorrect"] == true {
			correct = opt["id"].(float64)
		}
	}
	require.NotZero(t, correct)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/publish", examID), tutor.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/exams/%d", examID), student.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "isCorrect")

	answers := map[string]interface{}{
		"answers": []map[string]interface{}{{"questionId": questionID, "selectedOptionId": correct}},
	}
	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/submit", examID), student.token, answers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	submission := decode(t, w)
	assert.Equal(t, string(models.SubmissionGraded), submission["status"])
	assert.EqualValues(t, 100, submission["score"])

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/submit", examID), student.token, answers)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "attempts_exceeded", detailsOf(t, decode(t, w))["rule"])

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/exams/%d/gradebook", examID), student.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/exams/%d/gradebook", examID), tutor.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, fmt.Sprintf(`attachment; filename="gradebook-final-%d.xlsx"`, examID), w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")

	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	assert.Contains(t, book.GetSheetList(), "Submissions")
}

func TestForumFlow(t *testing.T) {
	s := newTestServer(t)
	student := s.register(t, "student@example.com", models.RoleStudent)
	admin := s.admin(t)

	w := s.do(t, http.MethodPost, "/api/v1/forum/categories", student.token, map[string]interface{}{"name": "General"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/forum/categories", admin.token, map[string]interface{}{"name": "General"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	categoryID := idOf(t, decode(t, w))

	w = s.do(t, http.MethodPost, "/api/v1/forum/threads", "", map[string]interface{}{"title": "Anonymous", "content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/forum/threads", student.token, map[string]interface{}{
		"categoryId": categoryID,
		"title":      "How do channels work?",
		"content":    "Buffered vs unbuffered",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	threadID := idOf(t, decode(t, w))
	threadPath := fmt.Sprintf("/api/v1/forum/threads/%d", threadID)

	w = s.do(t, http.MethodPost, threadPath+"/like", student.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	like := decode(t, w)
	assert.Equal(t, true, like["liked"])
	assert.EqualValues(t, 1, like["likesCount"])

	w = s.do(t, http.MethodGet, threadPath, student.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["isLiked"])

	w = s.do(t, http.MethodGet, threadPath, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["isLiked"])

	w = s.do(t, http.MethodPost, threadPath+"/like", student.token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	like = decode(t, w)
	assert.Equal(t, false, like["liked"])
	assert.EqualValues(t, 0, like["likesCount"])

	w = s.do(t, http.MethodPost, threadPath+"/lock", student.token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, threadPath+"/lock", admin.token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["isLocked"])

	w = s.do(t, http.MethodPost, threadPath+"/replies", student.token, map[string]interface{}{"content": "bump"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "thread_locked", detailsOf(t, decode(t, w))["rule"])

	w = s.do(t, http.MethodGet, "/api/v1/forum/threads?search=channels", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["threads"], 1)

	w = s.do(t, http.MethodDelete, threadPath, admin.token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodGet, threadPath, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
