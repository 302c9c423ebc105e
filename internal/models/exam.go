package models

import "time"

type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamPublished ExamStatus = "published"
	ExamClosed    ExamStatus = "closed"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	ShortAnswer    QuestionType = "short_answer"
	Essay          QuestionType = "essay"
)

// IsOpenEnded reports whether answers to this type need manual grading.
func (t QuestionType) IsOpenEnded() bool {
	return t == ShortAnswer || t == Essay
}

type SubmissionStatus string

const (
	SubmissionPending SubmissionStatus = "pending"
	SubmissionGraded  SubmissionStatus = "graded"
)

type Exam struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	CourseID        uint       `json:"courseId" gorm:"not null;index"`
	ModuleID        *uint      `json:"moduleId" gorm:"index"`
	Title           string     `json:"title" gorm:"not null;size:200"`
	Description     string     `json:"description" gorm:"type:text"`
	DurationMinutes int        `json:"durationMinutes" gorm:"default:60"`
	PassingScore    int        `json:"passingScore" gorm:"default:70"`
	MaxAttempts     int        `json:"maxAttempts" gorm:"default:1"`
	AvailableFrom   *time.Time `json:"availableFrom"`
	AvailableUntil  *time.Time `json:"availableUntil"`
	Status          ExamStatus `json:"status" gorm:"default:draft;size:20;index"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	// Relations
	Course    Course     `json:"-" gorm:"foreignKey:CourseID"`
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
}

func (Exam) TableName() string {
	return "exams"
}

// IsOpenAt reports whether the availability window contains t.
func (e *Exam) IsOpenAt(t time.Time) bool {
	if e.AvailableFrom != nil && t.Before(*e.AvailableFrom) {
		return false
	}
	if e.AvailableUntil != nil && t.After(*e.AvailableUntil) {
		return false
	}
	return true
}

type Question struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	ExamID       uint         `json:"examId" gorm:"not null;index"`
	QuestionText string       `json:"questionText" gorm:"type:text;not null"`
	QuestionType QuestionType `json:"questionType" gorm:"not null;size:30"`
	Points       int          `json:"points" gorm:"not null;default:1"`
	OrderIndex   int          `json:"orderIndex" gorm:"default:0"`
	CreatedAt    time.Time    `json:"createdAt"`

	Options []QuestionOption `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectOptionID returns the option flagged correct, if any.
func (q *Question) CorrectOptionID() (uint, bool) {
	for _, opt := range q.Options {
		if opt.IsCorrect {
			return opt.ID, true
		}
	}
	return 0, false
}

type QuestionOption struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"questionId" gorm:"not null;index"`
	OptionText string `json:"optionText" gorm:"type:text;not null"`
	IsCorrect  bool   `json:"isCorrect" gorm:"default:false"`
	OrderIndex int    `json:"orderIndex" gorm:"default:0"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}

type ExamSubmission struct {
	ID            uint             `json:"id" gorm:"primaryKey"`
	ExamID        uint             `json:"examId" gorm:"not null;uniqueIndex:idx_submission_exam_student_attempt"`
	StudentID     uint             `json:"studentId" gorm:"not null;uniqueIndex:idx_submission_exam_student_attempt;index"`
	AttemptNumber int              `json:"attemptNumber" gorm:"not null;uniqueIndex:idx_submission_exam_student_attempt"`
	Status        SubmissionStatus `json:"status" gorm:"not null;default:pending;size:20;index"`

	// Scoring, null until every answer is graded
	Score    *float64 `json:"score"`
	Passed   *bool    `json:"passed"`
	Feedback *string  `json:"feedback" gorm:"type:text"`

	// Timing
	StartedAt   time.Time  `json:"startedAt"`
	SubmittedAt *time.Time `json:"submittedAt"`
	GradedAt    *time.Time `json:"gradedAt"`
	GradedBy    *uint      `json:"gradedBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	Exam    Exam               `json:"-" gorm:"foreignKey:ExamID"`
	Student User               `json:"-" gorm:"foreignKey:StudentID"`
	Answers []SubmissionAnswer `json:"answers,omitempty" gorm:"foreignKey:SubmissionID"`
}

func (ExamSubmission) TableName() string {
	return "exam_submissions"
}

type SubmissionAnswer struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	SubmissionID     uint      `json:"submissionId" gorm:"not null;index"`
	QuestionID       uint      `json:"questionId" gorm:"not null;index"`
	SelectedOptionID *uint     `json:"selectedOptionId"`
	AnswerText       *string   `json:"answerText" gorm:"type:text"`
	PointsEarned     *float64  `json:"pointsEarned"`
	Feedback         *string   `json:"feedback" gorm:"type:text"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`

	Question Question `json:"-" gorm:"foreignKey:QuestionID"`
}

func (SubmissionAnswer) TableName() string {
	return "submission_answers"
}
