package models

import "time"

// Exercise is a catalog entry in the exercise library.
type Exercise struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Slug         string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"slug" validate:"required,max=191"`
	Name         string    `gorm:"type:varchar(191);not null" json:"name" validate:"required,max=191"`
	Description  string    `gorm:"type:text" json:"description"`
	MuscleGroup  string    `gorm:"type:varchar(50);not null;index" json:"muscle_group" validate:"required,max=50"`
	Equipment    string    `gorm:"type:varchar(50);default:''" json:"equipment"`
	VideoURL     string    `gorm:"type:varchar(255);default:''" json:"video_url" validate:"omitempty,max=255"`
	IsBodyweight bool      `gorm:"default:false" json:"is_bodyweight"`
	ViewCount    uint64    `gorm:"default:0" json:"view_count"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
