package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/MarvinWeber/LiftLog/app/repository"
	"github.com/MarvinWeber/LiftLog/internal/pkg/metrics/counter"
)

// HandleExerciseList returns the exercise catalog, optionally filtered by
// muscle group.
func HandleExerciseList(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	muscleGroup := c.Query("muscleGroup")

	exerciseRepo := repository.GetGlobalFactory().GetExerciseRepository()
	exercises, err := exerciseRepo.List(muscleGroup, (page-1)*limit, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "listing failed")
	}
	total, err := exerciseRepo.Count(muscleGroup)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "listing failed")
	}

	return c.JSON(fiber.Map{
		"exercises": exercises,
		"page":      page,
		"limit":     limit,
		"total":     total,
	})
}

// HandleExerciseDetail returns one catalog entry by slug.
func HandleExerciseDetail(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == "" {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "slug is required")
	}

	exercise, err := repository.GetGlobalFactory().GetExerciseRepository().GetBySlug(slug)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, ErrCodeNotFound, "exercise not found")
	}

	if err := counter.AddExerciseView(exercise.ID); err != nil {
		log.Printf("[Exercises] view counter failed for %d: %v", exercise.ID, err)
	}

	return c.JSON(exercise)
}
