package controllers

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/MarvinWeber/LiftLog/app/models"
	"github.com/MarvinWeber/LiftLog/internal/pkg/database"
	"github.com/MarvinWeber/LiftLog/internal/pkg/env"
	"github.com/MarvinWeber/LiftLog/internal/pkg/premium"
)

// HandleStripeWebhook serves the legacy web billing channel. Mobile
// purchases flow through RevenueCat; web subscriptions bought before the
// mobile apps existed still renew through Stripe and land here. Rows written
// from this path carry no RevenueCat id, which is how the status resolver
// tells the two sources apart.
func HandleStripeWebhook(c *fiber.Ctx) error {
	event, err := webhook.ConstructEvent(c.Body(), c.Get("Stripe-Signature"), env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))
	if err != nil {
		log.Printf("webhook: stripe signature verification failed: %v", err)
		return jsonError(c, fiber.StatusUnauthorized, ErrCodeUnauthorized, "invalid webhook signature")
	}

	repo := premium.NewRepository(database.GetDB())
	recordStripeEvent(repo, &event)

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		return applyStripeSubscription(c, repo, &event, false)
	case "customer.subscription.deleted":
		return applyStripeSubscription(c, repo, &event, true)
	default:
		log.Printf("webhook: ignoring stripe event type %s", event.Type)
		return c.JSON(fiber.Map{"received": true})
	}
}

func applyStripeSubscription(c *fiber.Ctx, repo premium.Repository, event *stripe.Event, deleted bool) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return jsonError(c, fiber.StatusBadRequest, ErrCodeValidation, "invalid subscription payload")
	}

	userID := stripeUserID(&sub)
	if userID == 0 {
		log.Printf("webhook: stripe subscription %s has no linked user, payload=%s", sub.ID, string(event.Data.Raw))
		return c.JSON(fiber.Map{"received": true, "pending": true})
	}

	active := !deleted && (sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing)

	plan, err := repo.GetOrCreateDefaultPlan()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "event processing failed")
	}

	err = repo.Transaction(func(tx premium.Repository) error {
		status := models.SubscriptionStatusExpired
		if active {
			status = models.SubscriptionStatusActive
		}
		var periodEnd *time.Time
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].CurrentPeriodEnd > 0 {
			t := time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0).UTC()
			periodEnd = &t
		}
		if err := tx.UpsertSubscription(&models.Subscription{
			UserID:           userID,
			Platform:         models.PlatformWeb,
			PlanID:           plan.ID,
			Status:           status,
			StartedAt:        time.Unix(sub.Created, 0).UTC(),
			CurrentPeriodEnd: periodEnd,
		}); err != nil {
			return err
		}
		// The web channel only ever grants; an expired web subscription must
		// not revoke a premium flag a mobile subscription still backs.
		if active {
			return tx.SetUserPremium(userID, true)
		}
		others, err := tx.ListActiveSubscriptionsByUser(userID)
		if err != nil {
			return err
		}
		for _, other := range others {
			if other.Platform != models.PlatformWeb {
				return nil
			}
		}
		return tx.SetUserPremium(userID, false)
	})
	if err != nil {
		log.Printf("webhook: stripe event processing failed: %v payload=%s", err, string(event.Data.Raw))
		return jsonError(c, fiber.StatusInternalServerError, ErrCodeInternal, "event processing failed")
	}

	return c.JSON(fiber.Map{"received": true})
}

// stripeUserID resolves the internal user from subscription metadata set at
// checkout time.
func stripeUserID(sub *stripe.Subscription) uint {
	raw, ok := sub.Metadata["user_id"]
	if !ok {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func recordStripeEvent(repo premium.Repository, event *stripe.Event) {
	_, _, err := repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		Provider:        models.WebhookProviderStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		EventTimestamp:  time.Unix(event.Created, 0).UTC(),
		RawPayload:      string(event.Data.Raw),
		Processed:       true,
	})
	if err != nil {
		log.Printf("webhook: stripe event %s audit insert failed: %v", event.ID, err)
	}
}
