package models

import "time"

// Program is a multi-week training plan users can enroll in.
type Program struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Slug          string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"slug" validate:"required,max=191"`
	Title         string    `gorm:"type:varchar(191);not null" json:"title" validate:"required,max=191"`
	Description   string    `gorm:"type:text" json:"description"`
	DurationWeeks int       `gorm:"not null;default:4" json:"duration_weeks" validate:"min=1"`
	Level         string    `gorm:"type:varchar(32);not null;default:'beginner'" json:"level" validate:"oneof=beginner intermediate advanced"`
	IsPremium     bool      `gorm:"default:false;index" json:"is_premium"`
	IsPublished   bool      `gorm:"default:false;index" json:"is_published"`
	ViewCount     uint64    `gorm:"default:0" json:"view_count"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProgramEnrollment records a user's enrollment in a program, at most one
// row per (user, program).
type ProgramEnrollment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index:ux_program_enrollments_user_program,unique,priority:1" json:"user_id"`
	ProgramID   uint       `gorm:"not null;index:ux_program_enrollments_user_program,unique,priority:2" json:"program_id"`
	EnrolledAt  time.Time  `gorm:"type:timestamp;not null" json:"enrolled_at"`
	CompletedAt *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProgramSessionProgress tracks a started/completed program session.
type ProgramSessionProgress struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EnrollmentID uint       `gorm:"not null;index" json:"enrollment_id"`
	SessionSlug  string     `gorm:"type:varchar(191);not null" json:"session_slug" validate:"required,max=191"`
	StartedAt    time.Time  `gorm:"type:timestamp;not null" json:"started_at"`
	CompletedAt  *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
