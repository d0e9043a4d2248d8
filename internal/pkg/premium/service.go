package premium

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/MarvinWeber/LiftLog/app/models"
	"gorm.io/gorm"
)

// Premium source tags reported by the status resolver for UI/support.
const (
	SourceRevenueCat = "revenuecat"
	SourceStripe     = "stripe"
)

// ErrExternalIDTaken is returned when a provider subscriber id is already
// assigned to a different account.
var ErrExternalIDTaken = errors.New("revenuecat user id is already assigned to another user")

// EntitlementSource is the live provider query used by sync and
// reconciliation. *revenuecat.Client satisfies it.
type EntitlementSource interface {
	HasActiveEntitlements(ctx context.Context, appUserID string) (bool, error)
	GetLatestExpirationDate(ctx context.Context, appUserID string) (*time.Time, error)
	GetActiveEntitlementIDs(ctx context.Context, appUserID string) ([]string, error)
}

// Service is the single source of truth for premium entitlement state. Every
// gated feature resolves access through it.
type Service struct {
	repo        Repository
	entitlement EntitlementSource
}

// NewService creates a premium service from injected dependencies.
func NewService(repo Repository, entitlement EntitlementSource) *Service {
	return &Service{repo: repo, entitlement: entitlement}
}

// NewServiceFromDB creates a premium service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, entitlement EntitlementSource) *Service {
	return NewService(NewRepository(db), entitlement)
}

// Status is the resolved premium state for one user.
type Status struct {
	IsPremium bool       `json:"isPremium"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Source    string     `json:"source,omitempty"`

	HasRevenueCat bool                 `json:"hasRevenueCat"`
	HasStripe     bool                 `json:"hasStripe"`
	ActiveCount   int                  `json:"activeCount"`
	Current       *models.Subscription `json:"current,omitempty"`
}

// CheckUserPremiumStatus resolves a user's premium state from the local
// tables: the denormalized User.IsPremium flag OR any currently-ACTIVE
// subscription row grants access. The two may transiently disagree between a
// provider-side change and the next webhook/sync; that is pending
// reconciliation, not corruption.
func (s *Service) CheckUserPremiumStatus(ctx context.Context, userID uint) (*Status, error) {
	_ = ctx
	if userID == 0 {
		return &Status{}, nil
	}

	user, err := s.repo.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Status{}, nil
		}
		return nil, err
	}

	active, err := s.repo.ListActiveSubscriptionsByUser(userID)
	if err != nil {
		return nil, err
	}

	status := &Status{
		IsPremium:   user.IsPremium || len(active) > 0,
		ActiveCount: len(active),
	}

	for i := range active {
		sub := &active[i]
		if sub.RevenueCatUserID != nil && *sub.RevenueCatUserID != "" {
			status.HasRevenueCat = true
			if status.Current == nil || status.Current.RevenueCatUserID == nil {
				status.Current = sub
			}
		} else if sub.Platform == models.PlatformWeb {
			status.HasStripe = true
			if status.Current == nil {
				status.Current = sub
			}
		} else if status.Current == nil {
			status.Current = sub
		}
	}

	switch {
	case status.HasRevenueCat:
		status.Source = SourceRevenueCat
	case status.HasStripe:
		status.Source = SourceStripe
	}
	if status.Current != nil {
		status.ExpiresAt = status.Current.CurrentPeriodEnd
	}
	return status, nil
}

// GrantOptions carries the optional details of a premium grant.
type GrantOptions struct {
	Platform         string
	RevenueCatUserID string
	PlanID           uint
}

// GrantPremiumAccess marks the user premium and upserts the matching
// subscription row in one transaction.
func (s *Service) GrantPremiumAccess(ctx context.Context, userID uint, expiresAt *time.Time, opts GrantOptions) error {
	_ = ctx
	if userID == 0 {
		return errors.New("user id is required")
	}

	platform := opts.Platform
	if platform == "" {
		platform = models.PlatformWeb
	}

	planID := opts.PlanID
	if planID == 0 {
		plan, err := s.repo.GetOrCreateDefaultPlan()
		if err != nil {
			return err
		}
		planID = plan.ID
	}

	var rcUserID *string
	if opts.RevenueCatUserID != "" {
		id := opts.RevenueCatUserID
		rcUserID = &id
	}

	return s.repo.Transaction(func(tx Repository) error {
		if err := tx.SetUserPremium(userID, true); err != nil {
			return err
		}
		return tx.UpsertSubscription(&models.Subscription{
			UserID:           userID,
			Platform:         platform,
			PlanID:           planID,
			Status:           models.SubscriptionStatusActive,
			RevenueCatUserID: rcUserID,
			StartedAt:        time.Now(),
			CurrentPeriodEnd: expiresAt,
		})
	})
}

// RevokePremiumAccess clears the premium flag and expires active
// subscriptions, optionally limited to specific platforms.
func (s *Service) RevokePremiumAccess(ctx context.Context, userID uint, platforms ...string) error {
	_ = ctx
	if userID == 0 {
		return errors.New("user id is required")
	}
	return s.repo.Transaction(func(tx Repository) error {
		if err := tx.SetUserPremium(userID, false); err != nil {
			return err
		}
		return tx.ExpireActiveSubscriptions(userID, platforms, time.Now())
	})
}

// AssignRevenueCatUserID links a provider subscriber id to an authenticated
// account, refusing ids already owned by another user, then refreshes the
// user's state from the provider.
func (s *Service) AssignRevenueCatUserID(ctx context.Context, userID uint, rcUserID string) error {
	if userID == 0 || rcUserID == "" {
		return errors.New("user id and revenuecat user id are required")
	}

	existing, err := s.repo.ListSubscriptionsByExternalID(rcUserID)
	if err != nil {
		return err
	}
	for _, sub := range existing {
		if sub.UserID != userID {
			return ErrExternalIDTaken
		}
	}

	plan, err := s.repo.GetOrCreateDefaultPlan()
	if err != nil {
		return err
	}

	id := rcUserID
	if err := s.repo.UpsertSubscription(&models.Subscription{
		UserID:           userID,
		Platform:         models.PlatformIOS,
		PlanID:           plan.ID,
		Status:           models.SubscriptionStatusActive,
		RevenueCatUserID: &id,
		StartedAt:        time.Now(),
	}); err != nil {
		return err
	}

	// Refresh from the provider so the flag reflects current entitlements.
	// A sync failure must not break the assignment flow.
	if err := s.SyncProviderStatus(ctx, userID, rcUserID); err != nil {
		log.Printf("premium: status sync after assignment failed for user %d: %v", userID, err)
	}
	return nil
}

// IngestResult reports how an inbound webhook event was handled.
type IngestResult struct {
	EventID   uint
	Duplicate bool
	// Pending means the event was stored unprocessed: it belongs to an
	// anonymous or not-yet-linked external id and will be replayed by the
	// reconciler once the id resolves to an account.
	Pending bool
	Applied bool
}

// IngestWebhookEvent persists an authenticated, parsed provider event and
// applies its effects. Every event is persisted (success or failure) with its
// outcome for audit and idempotent replay.
func (s *Service) IngestWebhookEvent(ctx context.Context, ev *WebhookEventPayload, raw string) (*IngestResult, error) {
	created, stored, err := s.repo.CreateWebhookEventIfNotExists(webhookEventRecord(ev, raw))
	if err != nil {
		return nil, err
	}
	result := &IngestResult{EventID: stored.ID}
	if !created {
		// Replayed delivery: effects were already applied (or are still
		// pending); handlers write absolute state so re-application would be
		// a no-op anyway.
		result.Duplicate = true
		return result, nil
	}

	if isAnonymousExternalID(ev.AppUserID) {
		result.Pending = true
		return result, nil
	}

	user, err := s.repo.FindUserByExternalID(ev.AppUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unknown external id: keep the event pending for later linking.
			result.Pending = true
			return result, nil
		}
		if markErr := s.repo.MarkWebhookProcessed(stored.ID, err.Error()); markErr != nil {
			log.Printf("premium: webhook event %d outcome not recorded: %v", stored.ID, markErr)
		}
		return result, err
	}

	applyErr := s.ApplyWebhookEvent(ctx, user.ID, ev)
	errMsg := ""
	if applyErr != nil {
		errMsg = applyErr.Error()
	}
	if markErr := s.repo.MarkWebhookProcessed(stored.ID, errMsg); markErr != nil {
		// A logging failure must not mask the original processing error.
		log.Printf("premium: webhook event %d outcome not recorded: %v", stored.ID, markErr)
	}
	if applyErr != nil {
		return result, applyErr
	}
	result.Applied = true
	return result, nil
}

// ApplyWebhookEvent applies the dispatch effects of one provider event to a
// resolved account. Handlers assign absolute end-state from the event's own
// fields so re-application is a no-op change.
func (s *Service) ApplyWebhookEvent(ctx context.Context, userID uint, ev *WebhookEventPayload) error {
	switch ev.Type {
	case EventTypeInitialPurchase, EventTypeRenewal:
		return s.applyGrant(ctx, userID, ev, false)

	case EventTypeUncancellation:
		return s.applyGrant(ctx, userID, ev, true)

	case EventTypeCancellation:
		cancelledAt := ev.EventTimestamp
		return s.applyLapse(userID, ev, models.SubscriptionStatusCancelled, &cancelledAt, true)

	case EventTypeExpiration:
		cancelledAt := ev.EventTimestamp
		return s.applyLapse(userID, ev, models.SubscriptionStatusExpired, &cancelledAt, true)

	case EventTypeBillingIssue:
		// Grace period exhausted: the subscription lapses but the
		// cancellation timestamp is not altered.
		return s.applyLapse(userID, ev, models.SubscriptionStatusExpired, nil, false)

	case EventTypeProductChange:
		return s.repo.UpdateSubscriptionsByExternalID(userID, ev.AppUserID, SubscriptionStateUpdate{
			CurrentPeriodEnd:    ev.ExpirationAt,
			SetCurrentPeriodEnd: true,
		})

	default:
		log.Printf("premium: ignoring unrecognized webhook event type %q", ev.Type)
		return nil
	}
}

func (s *Service) applyGrant(ctx context.Context, userID uint, ev *WebhookEventPayload, clearCancellation bool) error {
	_ = ctx
	plan, err := s.repo.GetOrCreateDefaultPlan()
	if err != nil {
		return err
	}

	rcUserID := ev.AppUserID
	startedAt := ev.EventTimestamp
	if ev.PurchasedAt != nil {
		startedAt = *ev.PurchasedAt
	}

	return s.repo.Transaction(func(tx Repository) error {
		if err := tx.SetUserPremium(userID, true); err != nil {
			return err
		}
		sub := &models.Subscription{
			UserID:           userID,
			Platform:         PlatformForStore(ev.Store),
			PlanID:           plan.ID,
			Status:           models.SubscriptionStatusActive,
			RevenueCatUserID: &rcUserID,
			StartedAt:        startedAt,
			CurrentPeriodEnd: ev.ExpirationAt,
		}
		if !clearCancellation {
			if existing, err := tx.ListSubscriptionsByExternalID(rcUserID); err == nil {
				for _, e := range existing {
					if e.UserID == userID && e.Platform == sub.Platform {
						sub.CancelledAt = e.CancelledAt
					}
				}
			}
		}
		return tx.UpsertSubscription(sub)
	})
}

func (s *Service) applyLapse(userID uint, ev *WebhookEventPayload, status string, cancelledAt *time.Time, setCancelledAt bool) error {
	return s.repo.Transaction(func(tx Repository) error {
		if err := tx.SetUserPremium(userID, false); err != nil {
			return err
		}
		return tx.UpdateSubscriptionsByExternalID(userID, ev.AppUserID, SubscriptionStateUpdate{
			Status:         status,
			CancelledAt:    cancelledAt,
			SetCancelledAt: setCancelledAt,
		})
	})
}
