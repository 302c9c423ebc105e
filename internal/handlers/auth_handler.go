package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

type AuthHandler struct {
	BaseHandler
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService, opts HandlerOptions) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(opts),
		authService: authService,
	}
}

// Register creates a local account and signs it in
// @Summary Register
// @Tags auth
// @Accept json
// @Produce json
// @Param body body validator.RegisterRequest true "Account data"
// @Success 201 {object} services.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req validator.RegisterRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login exchanges e-mail and password for a token pair
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body validator.LoginRequest true "Credentials"
// @Success 200 {object} services.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req validator.LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Refresh issues a new access token for a live refresh token
// @Summary Refresh access token
// @Tags auth
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req validator.RefreshTokenRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Logout revokes a refresh token
// @Summary Logout
// @Tags auth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}

	var req validator.RefreshTokenRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken, principal); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Me returns the authenticated user
// @Summary Current user
// @Tags auth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}

	user, err := h.authService.Me(c.Request.Context(), principal.UserID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the password and signs out every session
// @Summary Change password
// @Tags auth
// @Router /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	principal, ok := h.requirePrincipal(c)
	if !ok {
		return
	}

	var req validator.ChangePasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), principal.UserID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// CasdoorLogin completes the Casdoor authorization-code flow
// @Summary Casdoor single sign-on
// @Tags auth
// @Accept json
// @Produce json
// @Param body body validator.CasdoorLoginRequest true "Authorization code"
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} ErrorResponse "SSO not configured"
// @Failure 401 {object} ErrorResponse
// @Router /auth/sso/casdoor [post]
func (h *AuthHandler) CasdoorLogin(c *gin.Context) {
	var req validator.CasdoorLoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Casdoor login", "sso_enabled", h.authService.SSOEnabled())

	resp, err := h.authService.LoginWithCasdoor(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
