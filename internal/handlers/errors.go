package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/services"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error      string      `json:"error"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

// handleServiceError maps typed service errors onto the error envelope
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.writeError(c, http.StatusBadRequest, "Validation failed", validationErrors)
		return
	}

	var authErr *services.AuthenticationError
	if errors.As(err, &authErr) {
		h.writeError(c, http.StatusUnauthorized, authErr.Reason, nil)
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.writeError(c, http.StatusForbidden, "Access denied", map[string]interface{}{
			"resource": permissionError.Resource,
			"action":   permissionError.Action,
			"reason":   permissionError.Reason,
		})
		return
	}

	var notFound *services.NotFoundError
	if errors.As(err, &notFound) {
		h.writeError(c, http.StatusNotFound, notFound.Error(), nil)
		return
	}

	var conflict *services.ConflictError
	if errors.As(err, &conflict) {
		var details interface{}
		if len(conflict.Context) > 0 {
			details = conflict.Context
		}
		h.writeError(c, http.StatusConflict, conflict.Message, details)
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		details := map[string]interface{}{"rule": businessRuleError.Rule}
		if len(businessRuleError.Context) > 0 {
			details["context"] = businessRuleError.Context
		}
		h.writeError(c, http.StatusBadRequest, businessRuleError.Message, details)
		return
	}

	h.LogError(c, err, "Unexpected service error", "path", c.FullPath())
	h.reporter.Report(err, c.Request, map[string]interface{}{
		"route":      c.FullPath(),
		"request_id": c.GetString(requestIDKey),
	})

	var details interface{}
	if !h.production {
		details = err.Error()
	}
	h.writeError(c, http.StatusInternalServerError, "Internal server error", details)
}
