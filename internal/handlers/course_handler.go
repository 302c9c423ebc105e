package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

// CourseHandler serves courses and their modules and lessons
type CourseHandler struct {
	BaseHandler
	courseService  services.CourseService
	contentService services.ContentService
}

func NewCourseHandler(courseService services.CourseService, contentService services.ContentService, opts HandlerOptions) *CourseHandler {
	return &CourseHandler{
		BaseHandler:    NewBaseHandler(opts),
		courseService:  courseService,
		contentService: contentService,
	}
}

// ListCourses lists courses visible to the caller
// @Summary List courses
// @Tags courses
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param status query string false "draft, published or archived"
// @Param tutorId query int false "Filter by tutor"
// @Param contentType query string false "video, document or mixed"
// @Param search query string false "Search in title and description"
// @Param sortBy query string false "created_at, title or published_at"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} services.CourseListResponse
// @Router /courses [get]
func (h *CourseHandler) ListCourses(c *gin.Context) {
	var query validator.CourseListQuery
	if !h.bindQuery(c, &query) {
		return
	}

	courses, err := h.courseService.List(c.Request.Context(), &query, optionalPrincipal(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, courses)
}

// CreateCourse creates a draft course owned by the caller
// @Summary Create course
// @Tags courses
// @Accept json
// @Produce json
// @Param course body validator.CourseCreateRequest true "Course data"
// @Success 201 {object} models.Course
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /courses [post]
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}

	var req validator.CourseCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	course, err := h.courseService.Create(c.Request.Context(), principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, course)
}

// GetCourse returns a course with the caller's enrollment state
// @Summary Get course
// @Tags courses
// @Param id path int true "Course ID"
// @Success 200 {object} services.CourseDetailResponse
// @Failure 404 {object} ErrorResponse
// @Router /courses/{id} [get]
func (h *CourseHandler) GetCourse(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	course, err := h.courseService.Get(c.Request.Context(), id, optionalPrincipal(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

// @Router /courses/{id} [put]
func (h *CourseHandler) UpdateCourse(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req validator.CourseUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	course, err := h.courseService.Update(c.Request.Context(), id, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

// @Router /courses/{id} [delete]
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.courseService.Delete(c.Request.Context(), id, principal); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// PublishCourse moves a draft course with content to published
// @Router /courses/{id}/publish [post]
func (h *CourseHandler) PublishCourse(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	course, err := h.courseService.Publish(c.Request.Context(), id, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

// ToggleCourseStatus flips a course between published and archived
// @Router /courses/{id}/toggle-status [patch]
func (h *CourseHandler) ToggleCourseStatus(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	course, err := h.courseService.ToggleStatus(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, course)
}

// ===== MODULES =====

// @Router /courses/{id}/modules [get]
func (h *CourseHandler) ListModules(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	modules, err := h.contentService.ListModules(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"modules": modules})
}

// @Router /courses/{id}/modules [post]
func (h *CourseHandler) CreateModule(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req validator.ModuleCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	module, err := h.contentService.CreateModule(c.Request.Context(), id, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, module)
}

// @Router /courses/modules/{moduleId} [put]
func (h *CourseHandler) UpdateModule(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	moduleID, ok := h.parseIDParam(c, "moduleId")
	if !ok {
		return
	}

	var req validator.ModuleUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	module, err := h.contentService.UpdateModule(c.Request.Context(), moduleID, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, module)
}

// @Router /courses/modules/{moduleId} [delete]
func (h *CourseHandler) DeleteModule(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	moduleID, ok := h.parseIDParam(c, "moduleId")
	if !ok {
		return
	}

	if err := h.contentService.DeleteModule(c.Request.Context(), moduleID, principal); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ===== LESSONS =====

// @Router /courses/modules/{moduleId}/lessons [post]
func (h *CourseHandler) CreateLesson(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	moduleID, ok := h.parseIDParam(c, "moduleId")
	if !ok {
		return
	}

	var req validator.LessonCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	lesson, err := h.contentService.CreateLesson(c.Request.Context(), moduleID, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, lesson)
}

// GetLesson returns a lesson with its videos and documents
// @Router /courses/lessons/{id} [get]
func (h *CourseHandler) GetLesson(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	lesson, err := h.contentService.GetLesson(c.Request.Context(), id, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, lesson)
}

// @Router /courses/lessons/{id} [put]
func (h *CourseHandler) UpdateLesson(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req validator.LessonUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	lesson, err := h.contentService.UpdateLesson(c.Request.Context(), id, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, lesson)
}

// @Router /courses/lessons/{id} [delete]
func (h *CourseHandler) DeleteLesson(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.contentService.DeleteLesson(c.Request.Context(), id, principal); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Router /courses/lessons/{id}/videos [post]
func (h *CourseHandler) AddVideo(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req validator.VideoCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	video, err := h.contentService.AddVideo(c.Request.Context(), id, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, video)
}

// @Router /courses/lessons/{id}/documents [post]
func (h *CourseHandler) AddDocument(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req validator.DocumentCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	document, err := h.contentService.AddDocument(c.Request.Context(), id, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, document)
}
