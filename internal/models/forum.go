package models

import "time"

type ForumCategory struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null;size:100;uniqueIndex"`
	Description string    `json:"description" gorm:"type:text"`
	OrderIndex  int       `json:"orderIndex" gorm:"default:0"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (ForumCategory) TableName() string {
	return "forum_categories"
}

// ForumThread is global when CourseID is nil.
type ForumThread struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CourseID   *uint     `json:"courseId" gorm:"index"`
	CategoryID *uint     `json:"categoryId" gorm:"index"`
	AuthorID   uint      `json:"authorId" gorm:"not null;index"`
	Title      string    `json:"title" gorm:"not null;size:200"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	IsPinned   bool      `json:"isPinned" gorm:"default:false;index"`
	IsLocked   bool      `json:"isLocked" gorm:"default:false"`
	ViewsCount int       `json:"viewsCount" gorm:"default:0"`
	LikesCount int       `json:"likesCount" gorm:"default:0"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" gorm:"index"`

	Author User `json:"-" gorm:"foreignKey:AuthorID"`
}

func (ForumThread) TableName() string {
	return "forum_threads"
}

type ForumReply struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ThreadID   uint      `json:"threadId" gorm:"not null;index"`
	AuthorID   uint      `json:"authorId" gorm:"not null;index"`
	Content    string    `json:"content" gorm:"type:text;not null"`
	IsSolution bool      `json:"isSolution" gorm:"default:false"`
	LikesCount int       `json:"likesCount" gorm:"default:0"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Author User `json:"-" gorm:"foreignKey:AuthorID"`
}

func (ForumReply) TableName() string {
	return "forum_replies"
}

// ForumLike targets exactly one of a thread or a reply.
type ForumLike struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"not null;uniqueIndex:idx_like_user_thread;uniqueIndex:idx_like_user_reply"`
	ThreadID  *uint     `json:"threadId" gorm:"uniqueIndex:idx_like_user_thread"`
	ReplyID   *uint     `json:"replyId" gorm:"uniqueIndex:idx_like_user_reply"`
	CreatedAt time.Time `json:"createdAt"`
}

func (ForumLike) TableName() string {
	return "forum_likes"
}
