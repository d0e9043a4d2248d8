package repository

import (
	"time"

	"github.com/MarvinWeber/LiftLog/app/models"
	"github.com/MarvinWeber/LiftLog/internal/pkg/statistics"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	UpdateLastLogin(id uint, at time.Time) error
}

// ExerciseRepository defines the interface for exercise catalog operations
type ExerciseRepository interface {
	Create(exercise *models.Exercise) error
	GetByID(id uint) (*models.Exercise, error)
	GetBySlug(slug string) (*models.Exercise, error)
	List(muscleGroup string, offset, limit int) ([]models.Exercise, error)
	Count(muscleGroup string) (int64, error)
}

// WorkoutRepository defines the interface for workout session operations
type WorkoutRepository interface {
	// UpsertSession replaces the session identified by its client UUID
	// together with all nested exercises and sets, so a re-sent sync payload
	// converges to the same stored state.
	UpsertSession(session *models.WorkoutSession) error
	GetSessionByID(id uint) (*models.WorkoutSession, error)
	GetSessionByClientID(clientID string) (*models.WorkoutSession, error)
	ListSessionsByUser(userID uint, offset, limit int) ([]models.WorkoutSession, error)
	CountSessionsByUser(userID uint) (int64, error)
	DeleteSession(id uint, userID uint) error

	// GetSetSamples returns the flattened completed-and-incomplete sets a
	// user recorded for one exercise within a time window.
	GetSetSamples(userID, exerciseID uint, from, to time.Time) ([]statistics.SetSample, error)

	GetLeaderboard(since *time.Time, limit int) ([]LeaderboardEntry, error)
}

// ProgramRepository defines the interface for program/enrollment operations
type ProgramRepository interface {
	GetBySlug(slug string) (*models.Program, error)
	ListPublished(offset, limit int) ([]models.Program, error)
	Enroll(userID, programID uint) (*models.ProgramEnrollment, error)
	GetEnrollment(userID, programID uint) (*models.ProgramEnrollment, error)
	ListEnrollmentsByUser(userID uint) ([]models.ProgramEnrollment, error)
	StartSession(enrollmentID uint, sessionSlug string) (*models.ProgramSessionProgress, error)
	CompleteSession(enrollmentID uint, sessionSlug string) error
}

// LeaderboardEntry is one ranked row: a user with their session count in the
// period and average sessions per week since signup.
type LeaderboardEntry struct {
	UserID          uint    `json:"user_id"`
	Name            string  `json:"name"`
	WorkoutCount    int64   `json:"workout_count"`
	AvgPerWeek      float64 `json:"avg_per_week"`
	MemberSinceDays int     `json:"member_since_days"`
}

// Repositories struct holds all repository instances
type Repositories struct {
	User     UserRepository
	Exercise ExerciseRepository
	Workout  WorkoutRepository
	Program  ProgramRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db),
		Exercise: NewExerciseRepository(db),
		Workout:  NewWorkoutRepository(db),
		Program:  NewProgramRepository(db),
	}
}
