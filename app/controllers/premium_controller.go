package controllers

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/MarvinWeber/LiftLog/internal/pkg/database"
	"github.com/MarvinWeber/LiftLog/internal/pkg/premium"
	"github.com/MarvinWeber/LiftLog/internal/pkg/revenuecat"
	"github.com/MarvinWeber/LiftLog/internal/pkg/session"
	"github.com/MarvinWeber/LiftLog/internal/pkg/usercontext"
)

var (
	premiumService     *premium.Service
	premiumServiceOnce sync.Once
)

// PremiumService returns the lazily-built singleton premium service.
func PremiumService() *premium.Service {
	premiumServiceOnce.Do(func() {
		premiumService = premium.NewServiceFromDB(database.GetDB(), revenuecat.NewClientFromEnv())
	})
	return premiumService
}

// SetPremiumService overrides the singleton, for tests.
func SetPremiumService(svc *premium.Service) {
	premiumServiceOnce.Do(func() {})
	premiumService = svc
}

type syncStatusRequest struct {
	UserID           uint   `json:"userId"`
	RevenueCatUserID string `json:"revenueCatUserId"`
}

type linkUserRequest struct {
	RevenueCatUserID string `json:"revenueCatUserId" validate:"required"`
}

// HandlePremiumStatus returns the resolved premium state of the session
// user. Anonymous callers get isPremium=false with 200, not 401, so the
// mobile client can render the free tier without special-casing.
func HandlePremiumStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.JSON(fiber.Map{"isPremium": false})
	}

	status, err := PremiumService().CheckUserPremiumStatus(c.Context(), userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "premium status lookup failed")
	}
	return c.JSON(status)
}

// HandlePremiumSyncStatus triggers a reconciliation of the session user
// against the provider. The body userId must match the session user.
func HandlePremiumSyncStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, "login required")
	}

	var req syncStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "invalid request body")
	}
	if req.UserID != 0 && req.UserID != userCtx.UserID {
		return jsonError(c, fiber.StatusForbidden, ErrCodeForbidden, "cannot sync another user's status")
	}

	rcUserID := req.RevenueCatUserID
	if rcUserID != "" {
		// A client-supplied provider id is persisted before syncing so
		// subsequent webhooks for it resolve to this account.
		if err := PremiumService().AssignRevenueCatUserID(c.Context(), userCtx.UserID, rcUserID); err != nil {
			if errors.Is(err, premium.ErrExternalIDTaken) {
				return jsonError(c, fiber.StatusForbidden, ErrCodeForbidden, err.Error())
			}
			return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "status sync failed")
		}
	} else {
		rcUserID = revenuecat.ExternalIDForUser(userCtx.UserID)
		if err := PremiumService().SyncProviderStatus(c.Context(), userCtx.UserID, rcUserID); err != nil {
			return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "status sync failed")
		}
	}

	status, err := PremiumService().CheckUserPremiumStatus(c.Context(), userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "premium status lookup failed")
	}
	refreshSessionPremium(c, status.IsPremium)
	return c.JSON(status)
}

// HandlePremiumLinkUser links an anonymous RevenueCat id to the session user
// and replays any pending purchase events recorded under it.
func HandlePremiumLinkUser(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, "login required")
	}

	var req linkUserRequest
	if err := c.BodyParser(&req); err != nil || req.RevenueCatUserID == "" {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "revenueCatUserId is required")
	}

	if err := PremiumService().LinkRevenueCatUser(c.Context(), userCtx.UserID, req.RevenueCatUserID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "linking failed")
	}

	status, err := PremiumService().CheckUserPremiumStatus(c.Context(), userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "premium status lookup failed")
	}
	refreshSessionPremium(c, status.IsPremium)
	return c.JSON(status)
}

// refreshSessionPremium keeps the session-cached premium flag in step after
// a sync or link changed it.
func refreshSessionPremium(c *fiber.Ctx, isPremium bool) {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return
	}
	sess.Set(USER_IS_PREMIUM, isPremium)
	if err := sess.Save(); err != nil {
		log.Printf("premium: session flag refresh failed: %v", err)
	}
}

// linkPremiumUser links outside a request-failure path: errors are logged
// and swallowed because the caller (login) must not fail on provider issues.
func linkPremiumUser(ctx context.Context, userID uint, rcUserID string) {
	if err := PremiumService().LinkRevenueCatUser(ctx, userID, rcUserID); err != nil {
		log.Printf("premium: linking %s to user %d failed: %v", rcUserID, userID, err)
	}
}
