package controllers

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MarvinWeber/LiftLog/app/repository"
	"github.com/MarvinWeber/LiftLog/internal/pkg/cache"
	"github.com/MarvinWeber/LiftLog/internal/pkg/statistics"
	"github.com/MarvinWeber/LiftLog/internal/pkg/usercontext"
)

// HandleExerciseOneRepMax returns the user's estimated 1RM progression for
// one exercise. Premium only.
func HandleExerciseOneRepMax(c *fiber.Ctx) error {
	return handleExerciseStatistics(c, statistics.CacheKeyOneRepMax, func(samples []statistics.SetSample) interface{} {
		return statistics.OneRepMaxProgression(samples)
	})
}

// HandleExerciseVolume returns the user's weekly training volume for one
// exercise. Premium only.
func HandleExerciseVolume(c *fiber.Ctx) error {
	return handleExerciseStatistics(c, statistics.CacheKeyVolume, func(samples []statistics.SetSample) interface{} {
		return statistics.WeeklyVolume(samples)
	})
}

func handleExerciseStatistics(c *fiber.Ctx, cacheKeyFormat string, aggregate func([]statistics.SetSample) interface{}) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, "login required")
	}
	if !userCtx.IsPremium {
		return jsonError(c, fiber.StatusForbidden, ErrCodePremiumRequired, "statistics require a premium subscription")
	}

	exerciseID, err := c.ParamsInt("id")
	if err != nil || exerciseID <= 0 {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "invalid exercise id")
	}

	timeframe, err := statistics.ParseTimeframe(c.Query("timeframe"))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, err.Error())
	}

	if _, err := repository.GetGlobalFactory().GetExerciseRepository().GetByID(uint(exerciseID)); err != nil {
		return jsonError(c, fiber.StatusNotFound, ErrCodeNotFound, "exercise not found")
	}

	cacheKey := fmt.Sprintf(cacheKeyFormat, userCtx.UserID, exerciseID, timeframe)
	if cached, err := cache.Get(cacheKey); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(cached)
	}

	from, to := timeframe.RangeFor(time.Now())
	samples, err := repository.GetGlobalFactory().GetWorkoutRepository().
		GetSetSamples(userCtx.UserID, uint(exerciseID), from, to)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "statistics computation failed")
	}

	payload := fiber.Map{
		"exerciseId": exerciseID,
		"timeframe":  timeframe,
		"points":     aggregate(samples),
	}

	if encoded, err := json.Marshal(payload); err == nil {
		if err := cache.Set(cacheKey, string(encoded), statistics.CacheExpiration); err != nil {
			log.Printf("statistics: cache write failed: %v", err)
		}
	}
	return c.JSON(payload)
}

// invalidateStatisticsCache drops every cached statistics response for a
// user, called after their workout data changes.
func invalidateStatisticsCache(userID uint) {
	for _, pattern := range []string{
		fmt.Sprintf("statistics:1rm:%d:*", userID),
		fmt.Sprintf("statistics:volume:%d:*", userID),
	} {
		if err := cache.DeleteByPattern(pattern); err != nil {
			log.Printf("statistics: cache invalidation failed for %s: %v", pattern, err)
		}
	}
}
