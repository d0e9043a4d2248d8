package models

import "time"

const (
	WorkoutSessionStatusActive    = "active"
	WorkoutSessionStatusCompleted = "completed"
	WorkoutSessionStatusSynced    = "synced"
)

// WorkoutSession is one tracked training session. Sessions are built offline
// on the client and synced; ClientID is the client-generated UUID used for
// idempotent upserts.
type WorkoutSession struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ClientID      string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"client_id" validate:"required,uuid4"`
	UserID        uint       `gorm:"not null;index:idx_workout_sessions_user_started,priority:1" json:"user_id"`
	StartedAt     time.Time  `gorm:"type:timestamp;not null;index:idx_workout_sessions_user_started,priority:2" json:"started_at"`
	EndedAt       *time.Time `gorm:"type:timestamp;default:null" json:"ended_at,omitempty"`
	Status        string     `gorm:"type:varchar(16);not null;default:'active'" json:"status" validate:"oneof=active completed synced"`
	Muscles       string     `gorm:"type:text" json:"muscles"`
	Rating        *int       `gorm:"default:null" json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	RatingComment string     `gorm:"type:text" json:"rating_comment"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Exercises []WorkoutSessionExercise `gorm:"foreignKey:WorkoutSessionID" json:"exercises,omitempty"`
}

// WorkoutSessionExercise links a session to an exercise with its order.
type WorkoutSessionExercise struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	WorkoutSessionID uint      `gorm:"not null;index" json:"workout_session_id"`
	ExerciseID       uint      `gorm:"not null;index" json:"exercise_id"`
	Order            int       `gorm:"column:exercise_order;not null;default:0" json:"order"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Sets []WorkoutSet `gorm:"foreignKey:WorkoutSessionExerciseID" json:"sets,omitempty"`
}

// WorkoutSet is a single set within a session exercise. The measured fields
// are nullable on purpose: a weighted set carries reps and weight, a
// bodyweight set only reps, a timed set only duration. Aggregations skip sets
// missing the fields they need instead of treating them as zero.
type WorkoutSet struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	WorkoutSessionExerciseID uint      `gorm:"not null;index" json:"workout_session_exercise_id"`
	SetIndex                 int       `gorm:"not null;default:0" json:"set_index"`
	Completed                bool      `gorm:"default:false;index" json:"completed"`
	Reps                     *int      `gorm:"default:null" json:"reps,omitempty" validate:"omitempty,min=0"`
	WeightKg                 *float64  `gorm:"type:decimal(7,2);default:null" json:"weight_kg,omitempty" validate:"omitempty,min=0"`
	DurationSeconds          *int      `gorm:"default:null" json:"duration_seconds,omitempty" validate:"omitempty,min=0"`
	CreatedAt                time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
