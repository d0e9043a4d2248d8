package router

import (
	"github.com/MarvinWeber/LiftLog/app/controllers"
	"github.com/MarvinWeber/LiftLog/internal/pkg/constants"
	"github.com/MarvinWeber/LiftLog/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// auth
	auth := api.Group("/auth")
	auth.Post("/signup", controllers.HandleAuthSignup)
	auth.Post("/login", controllers.HandleAuthLogin)
	auth.Post("/logout", controllers.HandleAuthLogout)

	// premium; status is deliberately public, anonymous callers get the
	// free tier instead of a 401
	premium := api.Group("/premium")
	premium.Get("/status", controllers.HandlePremiumStatus)
	premium.Post("/sync-status", middleware.RequireAPISessionAuth, controllers.HandlePremiumSyncStatus)
	premium.Post("/link-user", middleware.RequireAPISessionAuth, controllers.HandlePremiumLinkUser)

	// exercise library
	exercises := api.Group("/exercises")
	exercises.Get("/", controllers.HandleExerciseList)
	exercises.Get("/by-slug/:slug", controllers.HandleExerciseDetail)
	exercises.Get("/:id/statistics/one-rep-max", middleware.RequireAPISessionAuth, controllers.HandleExerciseOneRepMax)
	exercises.Get("/:id/statistics/volume", middleware.RequireAPISessionAuth, controllers.HandleExerciseVolume)

	// workout sessions
	workouts := api.Group("/workout-sessions", middleware.RequireAPISessionAuth)
	workouts.Post("/sync", controllers.HandleWorkoutSync)
	workouts.Get("/", controllers.HandleWorkoutList)
	workouts.Delete("/:id", controllers.HandleWorkoutDelete)

	// programs
	programs := api.Group("/programs")
	programs.Get("/", controllers.HandleProgramList)
	programs.Get("/:slug", controllers.HandleProgramDetail)
	programs.Post("/:slug/enroll", middleware.RequireAPISessionAuth, controllers.HandleProgramEnroll)
	programs.Post("/:slug/sessions/start", middleware.RequireAPISessionAuth, controllers.HandleProgramSessionStart)
	programs.Post("/:slug/sessions/complete", middleware.RequireAPISessionAuth, controllers.HandleProgramSessionComplete)

	// leaderboard
	api.Get("/leaderboard", controllers.HandleLeaderboard)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
