package premium

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/MarvinWeber/LiftLog/app/models"
)

// ProviderStatus is the live entitlement state fetched from the provider.
type ProviderStatus struct {
	IsActive       bool       `json:"isActive"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	EntitlementIDs []string   `json:"entitlementIds,omitempty"`
}

// FetchProviderStatus queries the provider for the current entitlement state
// of one external user id.
func (s *Service) FetchProviderStatus(ctx context.Context, rcUserID string) (*ProviderStatus, error) {
	if rcUserID == "" {
		return nil, errors.New("revenuecat user id is required")
	}
	active, err := s.entitlement.HasActiveEntitlements(ctx, rcUserID)
	if err != nil {
		return nil, err
	}

	status := &ProviderStatus{IsActive: active}
	if !active {
		return status, nil
	}

	status.ExpiresAt, err = s.entitlement.GetLatestExpirationDate(ctx, rcUserID)
	if err != nil {
		return nil, err
	}
	status.EntitlementIDs, err = s.entitlement.GetActiveEntitlementIDs(ctx, rcUserID)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// ProcessPendingEvents replays stored-but-unapplied webhook events for an
// external id against a now-resolved account, oldest first so later events
// overwrite earlier state. Each event is marked processed with its outcome;
// one failing event does not block the rest.
func (s *Service) ProcessPendingEvents(ctx context.Context, userID uint, rcUserID string) (int, error) {
	pending, err := s.repo.ListPendingEvents(rcUserID)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, stored := range pending {
		ev, parseErr := ParseWebhookEvent([]byte(stored.RawPayload))
		var applyErr error
		if parseErr != nil {
			applyErr = parseErr
		} else {
			applyErr = s.ApplyWebhookEvent(ctx, userID, ev)
		}

		errMsg := ""
		if applyErr != nil {
			errMsg = applyErr.Error()
			log.Printf("premium: pending event %d for user %d failed: %v", stored.ID, userID, applyErr)
		} else {
			applied++
		}
		if markErr := s.repo.MarkWebhookProcessed(stored.ID, errMsg); markErr != nil {
			log.Printf("premium: pending event %d outcome not recorded: %v", stored.ID, markErr)
		}
	}
	return applied, nil
}

// SyncProviderStatus reconciles one user against the provider: replay any
// pending events for the external id, then overwrite local state with the
// provider's live answer. The provider is the source of truth; the local
// tables are a cache of it. A provider outage leaves the replayed local
// state standing rather than failing the sync.
func (s *Service) SyncProviderStatus(ctx context.Context, userID uint, rcUserID string) error {
	if userID == 0 || rcUserID == "" {
		return errors.New("user id and revenuecat user id are required")
	}

	if _, err := s.ProcessPendingEvents(ctx, userID, rcUserID); err != nil {
		return err
	}

	status, err := s.FetchProviderStatus(ctx, rcUserID)
	if err != nil {
		log.Printf("premium: provider status fetch failed for user %d (%s): %v", userID, rcUserID, err)
		return nil
	}

	return s.repo.Transaction(func(tx Repository) error {
		if err := tx.SetUserPremium(userID, status.IsActive); err != nil {
			return err
		}
		if status.IsActive {
			return tx.UpdateSubscriptionsByExternalID(userID, rcUserID, SubscriptionStateUpdate{
				Status:              models.SubscriptionStatusActive,
				CurrentPeriodEnd:    status.ExpiresAt,
				SetCurrentPeriodEnd: true,
			})
		}
		return tx.UpdateSubscriptionsByExternalID(userID, rcUserID, SubscriptionStateUpdate{
			Status: models.SubscriptionStatusExpired,
		})
	})
}

// SweepPendingEvents retries stored events whose external id could not be
// resolved at delivery time. An id becomes resolvable once the user signs up
// or a subscription row carrying it appears, which can happen without the
// user ever triggering a replay themselves. Anonymous ids stay pending until
// linked.
func (s *Service) SweepPendingEvents(ctx context.Context) (int, error) {
	ids, err := s.repo.ListPendingExternalIDs()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, rcUserID := range ids {
		if isAnonymousExternalID(rcUserID) {
			continue
		}
		user, err := s.repo.FindUserByExternalID(rcUserID)
		if err != nil || user == nil {
			continue
		}
		n, err := s.ProcessPendingEvents(ctx, user.ID, rcUserID)
		if err != nil {
			log.Printf("premium: pending sweep failed for %s: %v", rcUserID, err)
			continue
		}
		applied += n
	}
	return applied, nil
}

// LinkRevenueCatUser attaches a provider subscriber id (typically one that
// started anonymous) to an authenticated account: transfer any subscription
// rows recorded under the id, replay its pending events, then sync from the
// provider. Login and account linking must not fail on a provider outage, so
// sync errors are logged and swallowed.
func (s *Service) LinkRevenueCatUser(ctx context.Context, userID uint, rcUserID string) error {
	if userID == 0 || rcUserID == "" {
		return errors.New("user id and revenuecat user id are required")
	}

	err := s.repo.Transaction(func(tx Repository) error {
		if err := tx.TransferSubscriptions(userID, rcUserID); err != nil {
			return err
		}
		subs, err := tx.ListSubscriptionsByExternalID(rcUserID)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if sub.IsActive() {
				return tx.SetUserPremium(userID, true)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.SyncProviderStatus(ctx, userID, rcUserID); err != nil {
		log.Printf("premium: status sync after linking failed for user %d: %v", userID, err)
	}
	return nil
}
