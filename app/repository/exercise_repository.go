package repository

import (
	"github.com/MarvinWeber/LiftLog/app/models"
	"gorm.io/gorm"
)

// exerciseRepository implements the ExerciseRepository interface
type exerciseRepository struct {
	db *gorm.DB
}

// NewExerciseRepository creates a new exercise repository instance
func NewExerciseRepository(db *gorm.DB) ExerciseRepository {
	return &exerciseRepository{db: db}
}

func (r *exerciseRepository) Create(exercise *models.Exercise) error {
	return r.db.Create(exercise).Error
}

func (r *exerciseRepository) GetByID(id uint) (*models.Exercise, error) {
	var exercise models.Exercise
	if err := r.db.First(&exercise, id).Error; err != nil {
		return nil, err
	}
	return &exercise, nil
}

func (r *exerciseRepository) GetBySlug(slug string) (*models.Exercise, error) {
	var exercise models.Exercise
	if err := r.db.Where("slug = ?", slug).First(&exercise).Error; err != nil {
		return nil, err
	}
	return &exercise, nil
}

// List retrieves exercises with pagination, optionally filtered by muscle group
func (r *exerciseRepository) List(muscleGroup string, offset, limit int) ([]models.Exercise, error) {
	var exercises []models.Exercise
	query := r.db.Order("name ASC").Offset(offset).Limit(limit)
	if muscleGroup != "" {
		query = query.Where("muscle_group = ?", muscleGroup)
	}
	err := query.Find(&exercises).Error
	return exercises, err
}

func (r *exerciseRepository) Count(muscleGroup string) (int64, error) {
	var count int64
	query := r.db.Model(&models.Exercise{})
	if muscleGroup != "" {
		query = query.Where("muscle_group = ?", muscleGroup)
	}
	err := query.Count(&count).Error
	return count, err
}
