package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/MarvinWeber/LiftLog/internal/pkg/env"
	"github.com/MarvinWeber/LiftLog/internal/pkg/premium"
)

// HandleRevenueCatWebhook receives provider event deliveries. Order of
// checks matters: an unauthorized delivery must leave no trace, and a
// payload too malformed to parse is rejected before the audit insert because
// the fields the audit row needs are the ones that failed to parse.
func HandleRevenueCatWebhook(c *fiber.Ctx) error {
	secret := env.GetEnv("REVENUECAT_WEBHOOK_SECRET", "")
	if !premium.VerifyWebhookAuthorization(c.Get(fiber.HeaderAuthorization), secret) {
		return jsonError(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, "invalid webhook authorization")
	}

	body := c.Body()
	ev, err := premium.ParseWebhookEvent(body)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "invalid webhook payload")
	}

	result, err := PremiumService().IngestWebhookEvent(c.Context(), ev, string(body))
	if err != nil {
		// The raw payload is logged for manual reconciliation; the provider's
		// own retry policy governs redelivery.
		log.Printf("webhook: revenuecat event processing failed: %v payload=%s", err, string(body))
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "event processing failed")
	}

	return c.JSON(fiber.Map{
		"received":  true,
		"duplicate": result.Duplicate,
		"pending":   result.Pending,
	})
}
