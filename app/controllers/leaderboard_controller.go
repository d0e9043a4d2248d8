package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MarvinWeber/LiftLog/app/repository"
)

const leaderboardLimit = 50

// HandleLeaderboard ranks users by workout count within the requested
// period: all-time, weekly (last 7 days) or monthly (last 30 days).
func HandleLeaderboard(c *fiber.Ctx) error {
	period := c.Query("period", "all-time")

	var since *time.Time
	switch period {
	case "all-time":
		// no cutoff
	case "weekly":
		t := time.Now().AddDate(0, 0, -7)
		since = &t
	case "monthly":
		t := time.Now().AddDate(0, 0, -30)
		since = &t
	default:
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "period must be all-time, weekly or monthly")
	}

	entries, err := repository.GetGlobalFactory().GetWorkoutRepository().GetLeaderboard(since, leaderboardLimit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "leaderboard lookup failed")
	}

	return c.JSON(fiber.Map{
		"period":  period,
		"entries": entries,
	})
}
