package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

type EnrollmentHandler struct {
	BaseHandler
	enrollmentService services.EnrollmentService
}

func NewEnrollmentHandler(enrollmentService services.EnrollmentService, opts HandlerOptions) *EnrollmentHandler {
	return &EnrollmentHandler{
		BaseHandler:       NewBaseHandler(opts),
		enrollmentService: enrollmentService,
	}
}

// RequestEnrollment asks to join a course
// @Summary Request enrollment
// @Tags enrollments
// @Accept json
// @Produce json
// @Param body body validator.EnrollmentCreateRequest true "Course to join"
// @Success 201 {object} models.Enrollment
// @Failure 400 {object} ErrorResponse "Course not published or full"
// @Failure 409 {object} ErrorResponse "Already enrolled"
// @Router /enrollments [post]
func (h *EnrollmentHandler) RequestEnrollment(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}

	var req validator.EnrollmentCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Requesting enrollment", "course_id", req.CourseID, "student_id", principal.UserID)

	enrollment, err := h.enrollmentService.Request(c.Request.Context(), principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, enrollment)
}

// ListMyEnrollments lists the caller's enrollments, optionally by status
// @Router /enrollments [get]
func (h *EnrollmentHandler) ListMyEnrollments(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	status, ok := h.statusFilter(c)
	if !ok {
		return
	}

	rows, err := h.enrollmentService.ListMine(c.Request.Context(), principal, status)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrollments": rows})
}

// ListCourseEnrollments lists enrollments of a course for its tutor
// @Router /enrollments/courses/{courseId}/enrollments [get]
func (h *EnrollmentHandler) ListCourseEnrollments(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	courseID, ok := h.parseIDParam(c, "courseId")
	if !ok {
		return
	}
	status, ok := h.statusFilter(c)
	if !ok {
		return
	}

	rows, err := h.enrollmentService.ListByCourse(c.Request.Context(), courseID, principal, status)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"enrollments": rows})
}

// @Router /enrollments/courses/{courseId}/stats [get]
func (h *EnrollmentHandler) GetCourseStats(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	courseID, ok := h.parseIDParam(c, "courseId")
	if !ok {
		return
	}

	stats, err := h.enrollmentService.Stats(c.Request.Context(), courseID, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// @Router /enrollments/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	h.review(c, h.enrollmentService.Approve)
}

// @Router /enrollments/{id}/reject [post]
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	h.review(c, h.enrollmentService.Reject)
}

func (h *EnrollmentHandler) review(c *gin.Context, decide func(ctx context.Context, id uint, tutor services.Principal) (*models.Enrollment, error)) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	enrollment, err := decide(c.Request.Context(), id, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, enrollment)
}

// GetProgress returns per-lesson progress of an enrollment
// @Router /enrollments/{id}/progress [get]
func (h *EnrollmentHandler) GetProgress(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	progress, err := h.enrollmentService.GetProgress(c.Request.Context(), id, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// CompleteLesson records a finished lesson and recomputes progress
// @Router /enrollments/{id}/lessons/{lessonId}/complete [post]
func (h *EnrollmentHandler) CompleteLesson(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	enrollmentID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	lessonID, ok := h.parseIDParam(c, "lessonId")
	if !ok {
		return
	}

	resp, err := h.enrollmentService.MarkLessonComplete(c.Request.Context(), enrollmentID, lessonID, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *EnrollmentHandler) statusFilter(c *gin.Context) (*models.EnrollmentStatus, bool) {
	var query validator.EnrollmentListQuery
	if !h.bindQuery(c, &query) {
		return nil, false
	}
	if query.Status == "" {
		return nil, true
	}
	status := models.EnrollmentStatus(query.Status)
	switch status {
	case models.EnrollmentPending, models.EnrollmentApproved, models.EnrollmentRejected, models.EnrollmentCompleted:
		return &status, true
	}
	h.handleServiceError(c, validator.NewValidationError("status", "must be pending, approved, rejected or completed", query.Status))
	return nil, false
}
