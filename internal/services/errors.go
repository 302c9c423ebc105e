package services

import (
	"fmt"
)

// AuthenticationError covers missing, invalid or expired credentials
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return e.Reason
}

func NewAuthenticationError(reason string) *AuthenticationError {
	return &AuthenticationError{Reason: reason}
}

// PermissionError is returned when a principal may not perform an action
type PermissionError struct {
	UserID     uint   `json:"userId"`
	ResourceID uint   `json:"resourceId,omitempty"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (e *PermissionError) Error() string {
	if e.ResourceID != 0 {
		return fmt.Sprintf("permission denied: cannot %s %s %d: %s", e.Action, e.Resource, e.ResourceID, e.Reason)
	}
	return fmt.Sprintf("permission denied: cannot %s %s: %s", e.Action, e.Resource, e.Reason)
}

func NewPermissionError(userID, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

type NotFoundError struct {
	Resource string `json:"resource"`
	ID       uint   `json:"id,omitempty"`
}

func (e *NotFoundError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is matches any NotFoundError for the same resource
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	return ok && t.Resource == e.Resource
}

func NewNotFoundError(resource string, id uint) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports a uniqueness clash. Context carries details such as
// the existing enrollment status.
type ConflictError struct {
	Resource string                 `json:"resource"`
	Message  string                 `json:"message"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Is(target error) bool {
	t, ok := target.(*ConflictError)
	return ok && t.Resource == e.Resource
}

func NewConflictError(resource, message string, context map[string]interface{}) *ConflictError {
	return &ConflictError{Resource: resource, Message: message, Context: context}
}

// BusinessRuleError is a request that is well-formed but not allowed in the current state
type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *BusinessRuleError) Error() string {
	return e.Message
}

func (e *BusinessRuleError) Is(target error) bool {
	t, ok := target.(*BusinessRuleError)
	return ok && t.Rule == e.Rule
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

// ===== SENTINELS =====

var (
	ErrUserNotFound       = &NotFoundError{Resource: "user"}
	ErrCourseNotFound     = &NotFoundError{Resource: "course"}
	ErrModuleNotFound     = &NotFoundError{Resource: "module"}
	ErrLessonNotFound     = &NotFoundError{Resource: "lesson"}
	ErrEnrollmentNotFound = &NotFoundError{Resource: "enrollment"}
	ErrExamNotFound       = &NotFoundError{Resource: "exam"}
	ErrSubmissionNotFound = &NotFoundError{Resource: "submission"}
	ErrCategoryNotFound   = &NotFoundError{Resource: "category"}
	ErrThreadNotFound     = &NotFoundError{Resource: "thread"}
	ErrReplyNotFound      = &NotFoundError{Resource: "reply"}
)

var (
	ErrEmailTaken       = &ConflictError{Resource: "user", Message: "email already registered"}
	ErrSlugTaken        = &ConflictError{Resource: "course", Message: "a course with this title already exists"}
	ErrEnrollmentExists = &ConflictError{Resource: "enrollment", Message: "already enrolled in this course"}
	ErrCategoryExists   = &ConflictError{Resource: "category", Message: "category already exists"}
)

var (
	ErrInvalidCredentials = NewAuthenticationError("invalid credentials")
	ErrAccountInactive    = NewAuthenticationError("account is inactive")
	ErrInvalidToken       = NewAuthenticationError("invalid or expired token")
	ErrSSODisabled        = NewBusinessRuleError("sso_disabled", "single sign-on is not configured", nil)
)

var (
	ErrCourseNotPublished   = &BusinessRuleError{Rule: "course_not_published", Message: "course is not published"}
	ErrCourseHasNoModules   = &BusinessRuleError{Rule: "course_has_no_modules", Message: "course needs at least one module before publishing"}
	ErrCourseFull           = &BusinessRuleError{Rule: "course_full", Message: "course full"}
	ErrCourseNotToggleable  = &BusinessRuleError{Rule: "course_not_toggleable", Message: "only published or archived courses can be toggled"}
	ErrInvalidTransition    = &BusinessRuleError{Rule: "invalid_transition", Message: "status transition not allowed"}
	ErrEnrollmentNotActive  = &BusinessRuleError{Rule: "enrollment_not_active", Message: "enrollment is not active"}
	ErrExamNotDraft         = &BusinessRuleError{Rule: "exam_not_draft", Message: "questions can only be added to draft exams"}
	ErrExamHasNoQuestions   = &BusinessRuleError{Rule: "exam_has_no_questions", Message: "exam needs at least one question before publishing"}
	ErrExamNotPublished     = &BusinessRuleError{Rule: "exam_not_published", Message: "exam is not published"}
	ErrExamNotOpen          = &BusinessRuleError{Rule: "exam_not_open", Message: "exam is outside its availability window"}
	ErrAttemptsExceeded     = &BusinessRuleError{Rule: "attempts_exceeded", Message: "maximum number of attempts reached"}
	ErrThreadLocked         = &BusinessRuleError{Rule: "thread_locked", Message: "thread is locked"}
	ErrCannotDeactivateSelf = &BusinessRuleError{Rule: "cannot_deactivate_self", Message: "you cannot deactivate your own account"}
)
