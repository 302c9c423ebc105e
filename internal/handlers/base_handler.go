package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-service/internal/utils"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

// BaseHandler carries what every handler needs to log and answer errors
type BaseHandler struct {
	logger     utils.Logger
	reporter   utils.ErrorReporter
	production bool
}

// HandlerOptions are shared by all handlers
type HandlerOptions struct {
	Logger     utils.Logger
	Reporter   utils.ErrorReporter
	Production bool
}

func NewBaseHandler(opts HandlerOptions) BaseHandler {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = utils.NoopReporter{}
	}
	return BaseHandler{
		logger:     opts.Logger,
		reporter:   reporter,
		production: opts.Production,
	}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.GetLogger(c, h.logger).Debug(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err)
	utils.GetLogger(c, h.logger).Error(msg, args...)
}

// bindJSON decodes the body; on failure it answers 400 and returns false
func (h *BaseHandler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.writeError(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return false
	}
	return true
}

// bindQuery decodes query parameters; on failure it answers 400 and returns false
func (h *BaseHandler) bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		h.writeError(c, http.StatusBadRequest, "Invalid query parameters", err.Error())
		return false
	}
	return true
}

func (h *BaseHandler) parseIDParam(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		h.writeError(c, http.StatusBadRequest, "Invalid "+param, validator.NewValidationError(param, "must be a positive integer", c.Param(param)))
		return 0, false
	}
	return uint(id), true
}

func (h *BaseHandler) writeError(c *gin.Context, status int, message string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:      message,
		StatusCode: status,
		Details:    details,
	})
}
