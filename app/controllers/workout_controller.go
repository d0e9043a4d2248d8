package controllers

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MarvinWeber/LiftLog/app/models"
	"github.com/MarvinWeber/LiftLog/app/repository"
	"github.com/MarvinWeber/LiftLog/internal/pkg/usercontext"
)

var workoutValidate = validator.New()

type syncSetPayload struct {
	SetIndex        int      `json:"setIndex"`
	Completed       bool     `json:"completed"`
	Reps            *int     `json:"reps" validate:"omitempty,min=0"`
	WeightKg        *float64 `json:"weightKg" validate:"omitempty,min=0"`
	DurationSeconds *int     `json:"durationSeconds" validate:"omitempty,min=0"`
}

type syncExercisePayload struct {
	ExerciseID uint             `json:"exerciseId" validate:"required"`
	Order      int              `json:"order"`
	Sets       []syncSetPayload `json:"sets"`
}

type syncSessionRequest struct {
	ClientID      string                `json:"clientId" validate:"required,uuid4"`
	StartedAt     time.Time             `json:"startedAt" validate:"required"`
	EndedAt       *time.Time            `json:"endedAt"`
	Muscles       string                `json:"muscles"`
	Rating        *int                  `json:"rating" validate:"omitempty,min=1,max=5"`
	RatingComment string                `json:"ratingComment"`
	Exercises     []syncExercisePayload `json:"exercises" validate:"dive"`
}

// HandleWorkoutSync upserts a client-built session keyed by its client UUID.
// Clients track offline and re-send on reconnect, so the same payload may
// arrive more than once and must converge to one stored session.
func HandleWorkoutSync(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req syncSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "invalid request body")
	}
	if err := workoutValidate.Struct(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, err.Error())
	}
	if _, err := uuid.Parse(req.ClientID); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "clientId must be a UUID")
	}

	session := &models.WorkoutSession{
		ClientID:      req.ClientID,
		UserID:        userCtx.UserID,
		StartedAt:     req.StartedAt,
		EndedAt:       req.EndedAt,
		Status:        models.WorkoutSessionStatusSynced,
		Muscles:       req.Muscles,
		Rating:        req.Rating,
		RatingComment: req.RatingComment,
	}
	for _, ex := range req.Exercises {
		exercise := models.WorkoutSessionExercise{
			ExerciseID: ex.ExerciseID,
			Order:      ex.Order,
		}
		for _, set := range ex.Sets {
			exercise.Sets = append(exercise.Sets, models.WorkoutSet{
				SetIndex:        set.SetIndex,
				Completed:       set.Completed,
				Reps:            set.Reps,
				WeightKg:        set.WeightKg,
				DurationSeconds: set.DurationSeconds,
			})
		}
		session.Exercises = append(session.Exercises, exercise)
	}

	workoutRepo := repository.GetGlobalFactory().GetWorkoutRepository()
	if err := workoutRepo.UpsertSession(session); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusForbidden, ErrCodeForbidden, "session belongs to another user")
		}
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "sync failed")
	}

	invalidateStatisticsCache(userCtx.UserID)

	return c.JSON(fiber.Map{
		"id":       session.ID,
		"clientId": session.ClientID,
		"status":   session.Status,
	})
}

// HandleWorkoutList returns the session user's workout history, newest first.
func HandleWorkoutList(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	workoutRepo := repository.GetGlobalFactory().GetWorkoutRepository()
	sessions, err := workoutRepo.ListSessionsByUser(userCtx.UserID, (page-1)*limit, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "listing failed")
	}
	total, err := workoutRepo.CountSessionsByUser(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "listing failed")
	}

	return c.JSON(fiber.Map{
		"sessions": sessions,
		"page":     page,
		"limit":    limit,
		"total":    total,
	})
}

// HandleWorkoutDelete removes one of the session user's workouts.
func HandleWorkoutDelete(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "invalid session id")
	}

	workoutRepo := repository.GetGlobalFactory().GetWorkoutRepository()
	if err := workoutRepo.DeleteSession(uint(id), userCtx.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, ErrCodeNotFound, "session not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "delete failed")
	}

	invalidateStatisticsCache(userCtx.UserID)

	return c.JSON(fiber.Map{"deleted": true})
}
