package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/MarvinWeber/LiftLog/app/models"
	"github.com/MarvinWeber/LiftLog/app/repository"
	"github.com/MarvinWeber/LiftLog/internal/pkg/session"
)

type signupRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	// RevenueCatUserID carries the anonymous provider id the mobile client
	// accumulated before signing in; present, it triggers account linking.
	RevenueCatUserID string `json:"revenueCatUserId"`
}

// HandleAuthSignup registers a new account and opens a session.
func HandleAuthSignup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "invalid request body")
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := userRepo.GetByEmail(req.Email); err == nil {
		return jsonError(c, fiber.StatusConflict, ErrCodeValidation, "email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "registration failed")
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, err.Error())
	}
	if err := userRepo.Create(user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "registration failed")
	}

	if err := openSession(c, user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "session could not be created")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
	})
}

// HandleAuthLogin authenticates email and password and opens a session. A
// provided anonymous RevenueCat id is linked afterwards; linking problems
// never fail the login itself.
func HandleAuthLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "invalid request body")
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	user, err := userRepo.GetByEmail(req.Email)
	if err != nil {
		// notice: in production you should not inform the user
		// with detailed messages about login failures
		return jsonError(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
	}
	if !models.CheckPasswordHash(req.Password, user.Password) {
		return jsonError(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
	}

	if err := openSession(c, user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "session could not be created")
	}

	_ = userRepo.UpdateLastLogin(user.ID, time.Now())

	if req.RevenueCatUserID != "" {
		linkPremiumUser(c.Context(), user.ID, req.RevenueCatUserID)
	}

	return c.JSON(fiber.Map{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"isPremium": user.IsPremium,
	})
}

// HandleAuthLogout destroys the session.
func HandleAuthLogout(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err == nil {
		_ = sess.Destroy()
	}
	c.Locals(FROM_PROTECTED, false)
	return c.JSON(fiber.Map{"loggedOut": true})
}

func openSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}
	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_NAME, user.Name)
	sess.Set(USER_IS_ADMIN, user.Role == "admin")
	sess.Set(USER_IS_PREMIUM, user.IsPremium)
	return sess.Save()
}
