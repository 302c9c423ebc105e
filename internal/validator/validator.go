package validator

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/learning-service/internal/models"
)

// Validator wraps go-playground/validator with the domain tags
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v := &Validator{validate: validate}
	v.registerBusinessRules()
	return v
}

// Validate validates struct tags; the result is nil when s is valid
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

func (v *Validator) registerBusinessRules() {
	_ = v.validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).IsValid()
	})

	_ = v.validate.RegisterValidation("content_type", func(fl validator.FieldLevel) bool {
		switch models.ContentType(fl.Field().String()) {
		case models.ContentVideo, models.ContentDocument, models.ContentMixed:
			return true
		}
		return false
	})

	_ = v.validate.RegisterValidation("course_level", func(fl validator.FieldLevel) bool {
		switch models.CourseLevel(fl.Field().String()) {
		case models.LevelBeginner, models.LevelIntermediate, models.LevelAdvanced:
			return true
		}
		return false
	})

	_ = v.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		switch models.QuestionType(fl.Field().String()) {
		case models.MultipleChoice, models.ShortAnswer, models.Essay:
			return true
		}
		return false
	})

	_ = v.validate.RegisterValidation("enrollment_status", func(fl validator.FieldLevel) bool {
		switch models.EnrollmentStatus(fl.Field().String()) {
		case models.EnrollmentPending, models.EnrollmentApproved, models.EnrollmentRejected, models.EnrollmentCompleted:
			return true
		}
		return false
	})

	// Title validation (3-200 characters after trimming)
	_ = v.validate.RegisterValidation("course_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		n := len([]rune(title))
		return n >= 3 && n <= 200
	})

	_ = v.validate.RegisterValidation("password_strength", func(fl validator.FieldLevel) bool {
		pw := fl.Field().String()
		if len(pw) < 8 || len(pw) > 72 {
			return false
		}
		var letter, digit bool
		for _, r := range pw {
			switch {
			case unicode.IsLetter(r):
				letter = true
			case unicode.IsDigit(r):
				digit = true
			}
		}
		return letter && digit
	})
}

// ValidateQuestion checks the option rules that depend on the question type
func (v *Validator) ValidateQuestion(req *QuestionCreateRequest) error {
	if err := v.Validate(req); err != nil {
		return err
	}

	var errs ValidationErrors
	if req.QuestionType == models.MultipleChoice {
		if len(req.Options) < 2 {
			errs = append(errs, ValidationError{
				Field:   "options",
				Message: "multiple choice questions need at least 2 options",
				Value:   len(req.Options),
				Rule:    "business_logic",
			})
		}
		correct := 0
		for _, opt := range req.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			errs = append(errs, ValidationError{
				Field:   "options",
				Message: "exactly one option must be correct",
				Value:   correct,
				Rule:    "business_logic",
			})
		}
	} else if len(req.Options) > 0 {
		errs = append(errs, ValidationError{
			Field:   "options",
			Message: "only multiple choice questions take options",
			Value:   len(req.Options),
			Rule:    "business_logic",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateExamWindow checks that availableUntil is after availableFrom when both are set
func (v *Validator) ValidateExamWindow(req *ExamCreateRequest) error {
	if err := v.Validate(req); err != nil {
		return err
	}
	if req.AvailableFrom != nil && req.AvailableUntil != nil && !req.AvailableUntil.After(*req.AvailableFrom) {
		return NewValidationError("availableUntil", "must be after availableFrom", req.AvailableUntil)
	}
	return nil
}
