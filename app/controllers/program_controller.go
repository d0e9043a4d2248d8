package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/MarvinWeber/LiftLog/app/models"
	"github.com/MarvinWeber/LiftLog/app/repository"
	"github.com/MarvinWeber/LiftLog/internal/pkg/metrics/counter"
	"github.com/MarvinWeber/LiftLog/internal/pkg/usercontext"
)

// HandleProgramList returns published training programs.
func HandleProgramList(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	programs, err := repository.GetGlobalFactory().GetProgramRepository().ListPublished((page-1)*limit, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "listing failed")
	}
	return c.JSON(fiber.Map{
		"programs": programs,
		"page":     page,
		"limit":    limit,
	})
}

// HandleProgramDetail returns one published program by slug.
func HandleProgramDetail(c *fiber.Ctx) error {
	program, err := repository.GetGlobalFactory().GetProgramRepository().GetBySlug(c.Params("slug"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, ErrCodeNotFound, "program not found")
	}

	if err := counter.AddProgramView(program.ID); err != nil {
		log.Printf("[Programs] view counter failed for %d: %v", program.ID, err)
	}

	return c.JSON(program)
}

// HandleProgramEnroll enrolls the session user in a program. Premium
// programs require a premium subscription.
func HandleProgramEnroll(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	programRepo := repository.GetGlobalFactory().GetProgramRepository()
	program, err := programRepo.GetBySlug(c.Params("slug"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, ErrCodeNotFound, "program not found")
	}
	if program.IsPremium && !userCtx.IsPremium {
		return jsonError(c, fiber.StatusForbidden, ErrCodePremiumRequired, "this program requires a premium subscription")
	}

	enrollment, err := programRepo.Enroll(userCtx.UserID, program.ID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyEnrolled) {
			return jsonError(c, fiber.StatusConflict, ErrCodeValidation, err.Error())
		}
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "enrollment failed")
	}
	return c.Status(fiber.StatusCreated).JSON(enrollment)
}

type sessionProgressRequest struct {
	SessionSlug string `json:"sessionSlug" validate:"required"`
}

// HandleProgramSessionStart records the start of a program session.
func HandleProgramSessionStart(c *fiber.Ctx) error {
	enrollment, req, errResp := resolveEnrollment(c)
	if errResp != nil {
		return errResp
	}

	progress, err := repository.GetGlobalFactory().GetProgramRepository().
		StartSession(enrollment.ID, req.SessionSlug)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "could not start session")
	}
	return c.JSON(progress)
}

// HandleProgramSessionComplete marks a started program session complete.
func HandleProgramSessionComplete(c *fiber.Ctx) error {
	enrollment, req, errResp := resolveEnrollment(c)
	if errResp != nil {
		return errResp
	}

	err := repository.GetGlobalFactory().GetProgramRepository().
		CompleteSession(enrollment.ID, req.SessionSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, ErrCodeNotFound, "session was never started")
		}
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "could not complete session")
	}
	return c.JSON(fiber.Map{"completed": true})
}

func resolveEnrollment(c *fiber.Ctx) (*models.ProgramEnrollment, *sessionProgressRequest, error) {
	userCtx := usercontext.GetUserContext(c)

	var req sessionProgressRequest
	if err := c.BodyParser(&req); err != nil || req.SessionSlug == "" {
		return nil, nil, jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "sessionSlug is required")
	}

	programRepo := repository.GetGlobalFactory().GetProgramRepository()
	program, err := programRepo.GetBySlug(c.Params("slug"))
	if err != nil {
		return nil, nil, jsonError(c, fiber.StatusNotFound, ErrCodeNotFound, "program not found")
	}
	enrollment, err := programRepo.GetEnrollment(userCtx.UserID, program.ID)
	if err != nil {
		return nil, nil, jsonError(c, fiber.StatusForbidden, ErrCodeForbidden, "not enrolled in this program")
	}
	return enrollment, &req, nil
}
