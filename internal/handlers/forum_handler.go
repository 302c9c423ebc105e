package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

type ForumHandler struct {
	BaseHandler
	forumService services.ForumService
}

func NewForumHandler(forumService services.ForumService, opts HandlerOptions) *ForumHandler {
	return &ForumHandler{
		BaseHandler:  NewBaseHandler(opts),
		forumService: forumService,
	}
}

// ===== CATEGORIES =====

// @Router /forum/categories [get]
func (h *ForumHandler) ListCategories(c *gin.Context) {
	categories, err := h.forumService.ListCategories(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// @Router /forum/categories [post]
func (h *ForumHandler) CreateCategory(c *gin.Context) {
	var req validator.CategoryCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	category, err := h.forumService.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, category)
}

// ===== THREADS =====

// ListThreads lists threads, pinned first then most recently active
// @Summary List forum threads
// @Tags forum
// @Produce json
// @Param courseId query int false "Course forum"
// @Param categoryId query int false "Category"
// @Param search query string false "Search in title and content"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} services.ThreadListResponse
// @Router /forum/threads [get]
func (h *ForumHandler) ListThreads(c *gin.Context) {
	var query validator.ThreadListQuery
	if !h.bindQuery(c, &query) {
		return
	}

	threads, err := h.forumService.ListThreads(c.Request.Context(), &query, optionalPrincipal(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, threads)
}

// @Router /forum/threads [post]
func (h *ForumHandler) CreateThread(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}

	var req validator.ThreadCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	thread, err := h.forumService.CreateThread(c.Request.Context(), principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, thread)
}

// GetThread returns a thread and counts the view
// @Router /forum/threads/{id} [get]
func (h *ForumHandler) GetThread(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	thread, err := h.forumService.GetThread(c.Request.Context(), id, optionalPrincipal(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, thread)
}

// @Router /forum/threads/{id} [delete]
func (h *ForumHandler) DeleteThread(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.forumService.DeleteThread(c.Request.Context(), id, principal); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Router /forum/threads/{id}/pin [post]
func (h *ForumHandler) TogglePin(c *gin.Context) {
	h.moderate(c, h.forumService.TogglePin)
}

// @Router /forum/threads/{id}/lock [post]
func (h *ForumHandler) ToggleLock(c *gin.Context) {
	h.moderate(c, h.forumService.ToggleLock)
}

func (h *ForumHandler) moderate(c *gin.Context, toggle func(ctx context.Context, id uint, requester services.Principal) (*services.ThreadResponse, error)) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	thread, err := toggle(c.Request.Context(), id, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, thread)
}

// ===== REPLIES =====

// @Router /forum/threads/{id}/replies [get]
func (h *ForumHandler) ListReplies(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var page validator.PageQuery
	if !h.bindQuery(c, &page) {
		return
	}

	replies, err := h.forumService.ListReplies(c.Request.Context(), id, page, optionalPrincipal(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, replies)
}

// @Router /forum/threads/{id}/replies [post]
func (h *ForumHandler) CreateReply(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req validator.ReplyCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	reply, err := h.forumService.CreateReply(c.Request.Context(), id, principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reply)
}

// MarkSolution makes a reply the accepted answer of its thread
// @Router /forum/replies/{id}/solution [post]
func (h *ForumHandler) MarkSolution(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	reply, err := h.forumService.MarkSolution(c.Request.Context(), id, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, reply)
}

// ===== LIKES =====

// @Router /forum/threads/{id}/like [post]
func (h *ForumHandler) ToggleThreadLike(c *gin.Context) {
	h.like(c, h.forumService.ToggleThreadLike)
}

// @Router /forum/replies/{id}/like [post]
func (h *ForumHandler) ToggleReplyLike(c *gin.Context) {
	h.like(c, h.forumService.ToggleReplyLike)
}

func (h *ForumHandler) like(c *gin.Context, toggle func(ctx context.Context, id uint, user services.Principal) (*services.LikeResponse, error)) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := toggle(c.Request.Context(), id, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
