package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

// ExamHandler serves exams, submissions, grading and the gradebook export
type ExamHandler struct {
	BaseHandler
	examService      services.ExamService
	gradingService   services.GradingService
	gradebookService services.GradebookService
}

func NewExamHandler(
	examService services.ExamService,
	gradingService services.GradingService,
	gradebookService services.GradebookService,
	opts HandlerOptions,
) *ExamHandler {
	return &ExamHandler{
		BaseHandler:      NewBaseHandler(opts),
		examService:      examService,
		gradingService:   gradingService,
		gradebookService: gradebookService,
	}
}

// CreateExam creates a draft exam in a course
// @Summary Create exam
// @Tags exams
// @Accept json
// @Produce json
// @Param courseId path int true "Course ID"
// @Param exam body validator.ExamCreateRequest true "Exam data"
// @Success 201 {object} models.Exam
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /exams/courses/{courseId}/exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	courseID, ok := h.parseIDParam(c, "courseId")
	if !ok {
		return
	}

	var req validator.ExamCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), courseID, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// ListCourseExams lists the exams of a course the caller may see
// @Router /exams/courses/{courseId}/exams [get]
func (h *ExamHandler) ListCourseExams(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	courseID, ok := h.parseIDParam(c, "courseId")
	if !ok {
		return
	}

	exams, err := h.examService.ListByCourse(c.Request.Context(), courseID, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"exams": exams})
}

// GetExam returns an exam with its questions; answers are hidden from students
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), id, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// @Router /exams/{id}/questions [post]
func (h *ExamHandler) AddQuestion(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req validator.QuestionCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	question, err := h.examService.AddQuestion(c.Request.Context(), id, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// @Router /exams/{id}/publish [post]
func (h *ExamHandler) PublishExam(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	exam, err := h.examService.Publish(c.Request.Context(), id, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// SubmitExam stores an attempt and auto-grades it when possible
// @Summary Submit exam
// @Tags exams
// @Accept json
// @Produce json
// @Param id path int true "Exam ID"
// @Param body body validator.SubmitExamRequest true "Answers"
// @Success 201 {object} models.ExamSubmission
// @Failure 400 {object} ErrorResponse "Exam closed or attempts exhausted"
// @Failure 403 {object} ErrorResponse "Not enrolled"
// @Router /exams/{id}/submit [post]
func (h *ExamHandler) SubmitExam(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req validator.SubmitExamRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Submitting exam", "exam_id", id, "student_id", principal.UserID, "answers", len(req.Answers))

	submission, err := h.examService.Submit(c.Request.Context(), id, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submission)
}

// ExportGradebook streams the exam's gradebook as an XLSX workbook
// @Summary Export gradebook
// @Tags exams
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Exam ID"
// @Success 200 {file} file
// @Router /exams/{id}/gradebook [get]
func (h *ExamHandler) ExportGradebook(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	file, err := h.gradebookService.Export(c.Request.Context(), id, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

// ===== GRADING =====

// GradeSubmission scores the open-ended answers of a submission
// @Router /exams/submissions/{submissionId}/grade [post]
func (h *ExamHandler) GradeSubmission(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	submissionID, ok := h.parseIDParam(c, "submissionId")
	if !ok {
		return
	}

	var req validator.GradeSubmissionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	submission, err := h.gradingService.Grade(c.Request.Context(), submissionID, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// @Router /exams/submissions/{submissionId} [get]
func (h *ExamHandler) GetSubmission(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	submissionID, ok := h.parseIDParam(c, "submissionId")
	if !ok {
		return
	}

	submission, err := h.gradingService.GetSubmission(c.Request.Context(), submissionID, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, submission)
}

// @Router /exams/students/submissions [get]
func (h *ExamHandler) ListMySubmissions(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}

	var query validator.SubmissionListQuery
	if !h.bindQuery(c, &query) {
		return
	}

	rows, err := h.gradingService.ListStudentSubmissions(c.Request.Context(), principal, query.CourseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"submissions": rows})
}

// @Router /exams/tutors/pending-grading [get]
func (h *ExamHandler) ListPendingGrading(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}

	rows, err := h.gradingService.ListPendingGrading(c.Request.Context(), principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"submissions": rows})
}
