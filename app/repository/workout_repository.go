package repository

import (
	"math"
	"time"

	"github.com/MarvinWeber/LiftLog/app/models"
	"github.com/MarvinWeber/LiftLog/internal/pkg/statistics"
	"gorm.io/gorm"
)

// workoutRepository implements the WorkoutRepository interface
type workoutRepository struct {
	db *gorm.DB
}

// NewWorkoutRepository creates a new workout repository instance
func NewWorkoutRepository(db *gorm.DB) WorkoutRepository {
	return &workoutRepository{db: db}
}

// UpsertSession stores a client-synced session. An existing session with the
// same client UUID is fully replaced (exercises and sets included) inside one
// transaction, so redelivered sync payloads converge instead of duplicating.
func (r *workoutRepository) UpsertSession(session *models.WorkoutSession) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.WorkoutSession
		err := tx.Where("client_id = ?", session.ClientID).First(&existing).Error
		switch {
		case err == nil:
			if existing.UserID != session.UserID {
				return gorm.ErrRecordNotFound
			}
			session.ID = existing.ID
			var exerciseIDs []uint
			if err := tx.Model(&models.WorkoutSessionExercise{}).
				Where("workout_session_id = ?", existing.ID).
				Pluck("id", &exerciseIDs).Error; err != nil {
				return err
			}
			if len(exerciseIDs) > 0 {
				if err := tx.Where("workout_session_exercise_id IN ?", exerciseIDs).
					Delete(&models.WorkoutSet{}).Error; err != nil {
					return err
				}
				if err := tx.Where("workout_session_id = ?", existing.ID).
					Delete(&models.WorkoutSessionExercise{}).Error; err != nil {
					return err
				}
			}
		case err == gorm.ErrRecordNotFound:
			// first sync of this session
		default:
			return err
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(session).Error
	})
}

func (r *workoutRepository) GetSessionByID(id uint) (*models.WorkoutSession, error) {
	var session models.WorkoutSession
	err := r.db.Preload("Exercises.Sets").First(&session, id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *workoutRepository) GetSessionByClientID(clientID string) (*models.WorkoutSession, error) {
	var session models.WorkoutSession
	err := r.db.Preload("Exercises.Sets").Where("client_id = ?", clientID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *workoutRepository) ListSessionsByUser(userID uint, offset, limit int) ([]models.WorkoutSession, error) {
	var sessions []models.WorkoutSession
	err := r.db.Preload("Exercises.Sets").
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Offset(offset).Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

func (r *workoutRepository) CountSessionsByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.WorkoutSession{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// DeleteSession removes a session and its children, scoped to the owning
// user so one user cannot delete another's data.
func (r *workoutRepository) DeleteSession(id uint, userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var session models.WorkoutSession
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&session).Error; err != nil {
			return err
		}
		var exerciseIDs []uint
		if err := tx.Model(&models.WorkoutSessionExercise{}).
			Where("workout_session_id = ?", session.ID).
			Pluck("id", &exerciseIDs).Error; err != nil {
			return err
		}
		if len(exerciseIDs) > 0 {
			if err := tx.Where("workout_session_exercise_id IN ?", exerciseIDs).
				Delete(&models.WorkoutSet{}).Error; err != nil {
				return err
			}
			if err := tx.Where("workout_session_id = ?", session.ID).
				Delete(&models.WorkoutSessionExercise{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&session).Error
	})
}

// GetSetSamples flattens a user's sets for one exercise within [from, to]
// into the shape the statistics package consumes.
func (r *workoutRepository) GetSetSamples(userID, exerciseID uint, from, to time.Time) ([]statistics.SetSample, error) {
	type row struct {
		StartedAt       time.Time
		Completed       bool
		Reps            *int
		WeightKg        *float64
		DurationSeconds *int
	}
	var rows []row
	err := r.db.Model(&models.WorkoutSet{}).
		Select("workout_sessions.started_at AS started_at, workout_sets.completed, workout_sets.reps, workout_sets.weight_kg, workout_sets.duration_seconds").
		Joins("JOIN workout_session_exercises ON workout_session_exercises.id = workout_sets.workout_session_exercise_id").
		Joins("JOIN workout_sessions ON workout_sessions.id = workout_session_exercises.workout_session_id").
		Where("workout_sessions.user_id = ?", userID).
		Where("workout_session_exercises.exercise_id = ?", exerciseID).
		Where("workout_sessions.started_at BETWEEN ? AND ?", from, to).
		Order("workout_sessions.started_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	samples := make([]statistics.SetSample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, statistics.SetSample{
			SessionStartedAt: row.StartedAt,
			Completed:        row.Completed,
			Reps:             row.Reps,
			WeightKg:         row.WeightKg,
			DurationSeconds:  row.DurationSeconds,
		})
	}
	return samples, nil
}

// GetLeaderboard ranks users by session count, optionally restricted to
// sessions started after a cutoff. Average sessions per week is derived from
// account age in Go because MySQL date arithmetic rounds differently across
// versions.
func (r *workoutRepository) GetLeaderboard(since *time.Time, limit int) ([]LeaderboardEntry, error) {
	type row struct {
		UserID       uint
		Name         string
		WorkoutCount int64
		CreatedAt    time.Time
	}
	query := r.db.Model(&models.WorkoutSession{}).
		Select("workout_sessions.user_id AS user_id, users.name AS name, COUNT(workout_sessions.id) AS workout_count, users.created_at AS created_at").
		Joins("JOIN users ON users.id = workout_sessions.user_id").
		Where("users.deleted_at IS NULL")
	if since != nil {
		query = query.Where("workout_sessions.started_at >= ?", *since)
	}
	var rows []row
	err := query.Group("workout_sessions.user_id, users.name, users.created_at").
		Order("workout_count DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		days := int(now.Sub(row.CreatedAt).Hours() / 24)
		weeks := math.Max(float64(days)/7, 1)
		entries = append(entries, LeaderboardEntry{
			UserID:          row.UserID,
			Name:            row.Name,
			WorkoutCount:    row.WorkoutCount,
			AvgPerWeek:      math.Round(float64(row.WorkoutCount)/weeks*10) / 10,
			MemberSinceDays: days,
		})
	}
	return entries, nil
}
