package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

// UserHandler serves the admin user management endpoints
type UserHandler struct {
	BaseHandler
	userService services.UserService
}

func NewUserHandler(userService services.UserService, opts HandlerOptions) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(opts),
		userService: userService,
	}
}

// ListUsers lists users with optional filtering
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Page size (default: 20, max: 100)"
// @Param search query string false "Search by name or email"
// @Param role query string false "Filter by role (student, tutor, admin)"
// @Param isActive query bool false "Filter by status"
// @Success 200 {object} services.UserListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	var query validator.UserListQuery
	if !h.bindQuery(c, &query) {
		return
	}

	h.LogRequest(c, "Listing users", "role", query.Role, "search", query.Search)

	users, err := h.userService.List(c.Request.Context(), &query)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// GetUserStats returns account counts by role
// @Summary User statistics
// @Tags users
// @Router /users/stats [get]
func (h *UserHandler) GetUserStats(c *gin.Context) {
	stats, err := h.userService.Stats(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetUser retrieves a user by ID
// @Summary Get user by ID
// @Tags users
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// CreateUser creates a student or tutor account
// @Summary Create user
// @Tags users
// @Router /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req validator.UserCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// UpdateUser applies a partial update
// @Summary Update user
// @Tags users
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req validator.UserUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.userService.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// DeleteUser deactivates an account
// @Summary Delete user
// @Tags users
// @Success 204
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.userService.Delete(c.Request.Context(), id, principal); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetUserStatus activates or deactivates an account
// @Summary Set user status
// @Tags users
// @Router /users/{id}/status [patch]
func (h *UserHandler) SetUserStatus(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}
	id, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req validator.UserStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.IsActive == nil {
		h.handleServiceError(c, validator.NewValidationError("isActive", "is required", nil))
		return
	}

	user, err := h.userService.SetStatus(c.Request.Context(), id, *req.IsActive, principal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
