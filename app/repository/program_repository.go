package repository

import (
	"errors"
	"time"

	"github.com/MarvinWeber/LiftLog/app/models"
	"gorm.io/gorm"
)

// ErrAlreadyEnrolled is returned when a user enrolls in a program twice.
var ErrAlreadyEnrolled = errors.New("user is already enrolled in this program")

// programRepository implements the ProgramRepository interface
type programRepository struct {
	db *gorm.DB
}

// NewProgramRepository creates a new program repository instance
func NewProgramRepository(db *gorm.DB) ProgramRepository {
	return &programRepository{db: db}
}

func (r *programRepository) GetBySlug(slug string) (*models.Program, error) {
	var program models.Program
	if err := r.db.Where("slug = ? AND is_published = ?", slug, true).First(&program).Error; err != nil {
		return nil, err
	}
	return &program, nil
}

func (r *programRepository) ListPublished(offset, limit int) ([]models.Program, error) {
	var programs []models.Program
	err := r.db.Where("is_published = ?", true).
		Order("title ASC").
		Offset(offset).Limit(limit).
		Find(&programs).Error
	return programs, err
}

func (r *programRepository) Enroll(userID, programID uint) (*models.ProgramEnrollment, error) {
	existing, err := r.GetEnrollment(userID, programID)
	if err == nil && existing != nil {
		return nil, ErrAlreadyEnrolled
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	enrollment := &models.ProgramEnrollment{
		UserID:     userID,
		ProgramID:  programID,
		EnrolledAt: time.Now(),
	}
	if err := r.db.Create(enrollment).Error; err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (r *programRepository) GetEnrollment(userID, programID uint) (*models.ProgramEnrollment, error) {
	var enrollment models.ProgramEnrollment
	err := r.db.Where("user_id = ? AND program_id = ?", userID, programID).First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *programRepository) ListEnrollmentsByUser(userID uint) ([]models.ProgramEnrollment, error) {
	var enrollments []models.ProgramEnrollment
	err := r.db.Where("user_id = ?", userID).Order("enrolled_at DESC").Find(&enrollments).Error
	return enrollments, err
}

func (r *programRepository) StartSession(enrollmentID uint, sessionSlug string) (*models.ProgramSessionProgress, error) {
	var progress models.ProgramSessionProgress
	err := r.db.Where("enrollment_id = ? AND session_slug = ?", enrollmentID, sessionSlug).First(&progress).Error
	if err == nil {
		return &progress, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	progress = models.ProgramSessionProgress{
		EnrollmentID: enrollmentID,
		SessionSlug:  sessionSlug,
		StartedAt:    time.Now(),
	}
	if err := r.db.Create(&progress).Error; err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *programRepository) CompleteSession(enrollmentID uint, sessionSlug string) error {
	now := time.Now()
	result := r.db.Model(&models.ProgramSessionProgress{}).
		Where("enrollment_id = ? AND session_slug = ?", enrollmentID, sessionSlug).
		Update("completed_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
