package models

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTutor   UserRole = "tutor"
	RoleAdmin   UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleStudent, RoleTutor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           uint     `json:"id" gorm:"primaryKey"`
	Email        string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PasswordHash string   `json:"-" gorm:"size:255"`
	Role         UserRole `json:"role" gorm:"not null;size:20;index"`
	FirstName    string   `json:"firstName" gorm:"not null;size:100"`
	LastName     string   `json:"lastName" gorm:"not null;size:100"`

	// Profile info
	AvatarURL *string `json:"avatarUrl" gorm:"size:500"`
	Bio       *string `json:"bio" gorm:"type:text"`

	// Status
	IsActive      bool       `json:"isActive" gorm:"default:true;index"`
	EmailVerified bool       `json:"emailVerified" gorm:"default:false"`
	LastLogin     *time.Time `json:"lastLogin"`

	// Subject of the external identity provider, set for SSO accounts
	ExternalID *string `json:"-" gorm:"uniqueIndex;size:255"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// RefreshToken is an opaque, server-side session handle. Revoked tokens are kept
// until the cleanup job purges them.
type RefreshToken struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    uint       `json:"userId" gorm:"not null;index"`
	Token     string     `json:"-" gorm:"uniqueIndex;not null;size:128"`
	ExpiresAt time.Time  `json:"expiresAt" gorm:"not null;index"`
	RevokedAt *time.Time `json:"revokedAt"`
	CreatedAt time.Time  `json:"createdAt"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (t *RefreshToken) IsUsable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
