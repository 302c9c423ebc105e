package models

// All returns every persisted model in dependency order, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&RefreshToken{},
		&Course{},
		&Module{},
		&Lesson{},
		&LessonVideo{},
		&LessonDocument{},
		&Enrollment{},
		&LessonProgress{},
		&Exam{},
		&Question{},
		&QuestionOption{},
		&ExamSubmission{},
		&SubmissionAnswer{},
		&ForumCategory{},
		&ForumThread{},
		&ForumReply{},
		&ForumLike{},
	}
}
