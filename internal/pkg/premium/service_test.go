package premium

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/MarvinWeber/LiftLog/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeRepository is an in-memory Repository so service behavior can be tested
// without a database.
type fakeRepository struct {
	users     map[uint]*models.User
	subs      []*models.Subscription
	events    []*models.WebhookEvent
	plans     []*models.SubscriptionPlan
	nextSubID uint
	nextEvID  uint
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:     map[uint]*models.User{},
		nextSubID: 1,
		nextEvID:  1,
	}
}

func (f *fakeRepository) addUser(id uint, premium bool) *models.User {
	u := &models.User{ID: id, Name: fmt.Sprintf("user%d", id), IsPremium: premium}
	f.users[id] = u
	return u
}

func (f *fakeRepository) GetUserByID(id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeRepository) SetUserPremium(id uint, premium bool) error {
	u, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.IsPremium = premium
	return nil
}

func (f *fakeRepository) FindUserByExternalID(appUserID string) (*models.User, error) {
	if id, err := strconv.ParseUint(appUserID, 10, 64); err == nil {
		if u, ok := f.users[uint(id)]; ok {
			copied := *u
			return &copied, nil
		}
	}
	for _, sub := range f.subs {
		if sub.RevenueCatUserID != nil && *sub.RevenueCatUserID == appUserID {
			return f.GetUserByID(sub.UserID)
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) UpsertSubscription(sub *models.Subscription) error {
	for _, existing := range f.subs {
		if existing.UserID == sub.UserID && existing.Platform == sub.Platform {
			sub.ID = existing.ID
			*existing = *sub
			return nil
		}
	}
	sub.ID = f.nextSubID
	f.nextSubID++
	copied := *sub
	f.subs = append(f.subs, &copied)
	return nil
}

func (f *fakeRepository) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListActiveSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.UserID == userID && sub.Status == models.SubscriptionStatusActive {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListSubscriptionsByExternalID(rcUserID string) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range f.subs {
		if sub.RevenueCatUserID != nil && *sub.RevenueCatUserID == rcUserID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (f *fakeRepository) UpdateSubscriptionsByExternalID(userID uint, rcUserID string, upd SubscriptionStateUpdate) error {
	for _, sub := range f.subs {
		if sub.UserID != userID || sub.RevenueCatUserID == nil || *sub.RevenueCatUserID != rcUserID {
			continue
		}
		if upd.Status != "" {
			sub.Status = upd.Status
		}
		if upd.SetCurrentPeriodEnd {
			sub.CurrentPeriodEnd = upd.CurrentPeriodEnd
		}
		if upd.SetCancelledAt {
			sub.CancelledAt = upd.CancelledAt
		}
	}
	return nil
}

func (f *fakeRepository) ExpireActiveSubscriptions(userID uint, platforms []string, cancelledAt time.Time) error {
	for _, sub := range f.subs {
		if sub.UserID != userID || sub.Status != models.SubscriptionStatusActive {
			continue
		}
		if len(platforms) > 0 {
			matched := false
			for _, p := range platforms {
				if sub.Platform == p {
					matched = true
				}
			}
			if !matched {
				continue
			}
		}
		sub.Status = models.SubscriptionStatusExpired
		at := cancelledAt
		sub.CancelledAt = &at
	}
	return nil
}

func (f *fakeRepository) TransferSubscriptions(toUserID uint, rcUserID string) error {
	for _, sub := range f.subs {
		if sub.RevenueCatUserID != nil && *sub.RevenueCatUserID == rcUserID {
			sub.UserID = toUserID
		}
	}
	return nil
}

func (f *fakeRepository) GetOrCreateDefaultPlan() (*models.SubscriptionPlan, error) {
	if len(f.plans) == 0 {
		f.plans = append(f.plans, &models.SubscriptionPlan{ID: 1, PriceMonthly: 9.99, Currency: "EUR", Interval: "month", IsActive: true})
	}
	copied := *f.plans[0]
	return &copied, nil
}

func (f *fakeRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	for _, existing := range f.events {
		if existing.Provider == event.Provider && existing.ProviderEventID == event.ProviderEventID {
			copied := *existing
			return false, &copied, nil
		}
	}
	event.ID = f.nextEvID
	f.nextEvID++
	copied := *event
	f.events = append(f.events, &copied)
	return true, event, nil
}

func (f *fakeRepository) MarkWebhookProcessed(id uint, processingError string) error {
	for _, ev := range f.events {
		if ev.ID == id {
			now := time.Now()
			ev.Processed = true
			ev.ProcessingError = processingError
			ev.ProcessedAt = &now
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListPendingEvents(appUserID string) ([]models.WebhookEvent, error) {
	var out []models.WebhookEvent
	for _, ev := range f.events {
		if !ev.Processed && ev.AppUserID == appUserID {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTimestamp.Before(out[j].EventTimestamp) })
	return out, nil
}

func (f *fakeRepository) ListPendingExternalIDs() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, ev := range f.events {
		if !ev.Processed && ev.AppUserID != "" && !seen[ev.AppUserID] {
			seen[ev.AppUserID] = true
			out = append(out, ev.AppUserID)
		}
	}
	return out, nil
}

func (f *fakeRepository) Transaction(fn func(Repository) error) error {
	return fn(f)
}

// fakeEntitlements is a canned EntitlementSource.
type fakeEntitlements struct {
	active       bool
	expiresAt    *time.Time
	entitlements []string
	err          error
	calls        int
}

func (f *fakeEntitlements) HasActiveEntitlements(ctx context.Context, appUserID string) (bool, error) {
	f.calls++
	return f.active, f.err
}

func (f *fakeEntitlements) GetLatestExpirationDate(ctx context.Context, appUserID string) (*time.Time, error) {
	return f.expiresAt, f.err
}

func (f *fakeEntitlements) GetActiveEntitlementIDs(ctx context.Context, appUserID string) ([]string, error) {
	return f.entitlements, f.err
}

func webhookJSON(eventType, appUserID, transactionID string, eventTime time.Time, expiration *time.Time) string {
	expMs := int64(0)
	if expiration != nil {
		expMs = expiration.UnixMilli()
	}
	return fmt.Sprintf(`{"event":{"type":%q,"app_user_id":%q,"transaction_id":%q,"store":"APP_STORE","environment":"PRODUCTION","product_id":"liftlog_premium_monthly","entitlement_ids":["premium"],"event_timestamp_ms":%d,"expiration_at_ms":%d}}`,
		eventType, appUserID, transactionID, eventTime.UnixMilli(), expMs)
}

func mustParse(t *testing.T, raw string) *WebhookEventPayload {
	t.Helper()
	ev, err := ParseWebhookEvent([]byte(raw))
	require.NoError(t, err)
	return ev
}

func TestIngestInitialPurchaseGrantsPremium(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(7, false)
	svc := NewService(repo, &fakeEntitlements{})

	expires := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Millisecond)
	raw := webhookJSON(EventTypeInitialPurchase, "7", "txn-1", time.Now().UTC(), &expires)

	result, err := svc.IngestWebhookEvent(context.Background(), mustParse(t, raw), raw)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.False(t, result.Duplicate)
	assert.False(t, result.Pending)

	user, err := repo.GetUserByID(7)
	require.NoError(t, err)
	assert.True(t, user.IsPremium)

	subs, err := repo.ListActiveSubscriptionsByUser(7)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.PlatformIOS, subs[0].Platform)
	require.NotNil(t, subs[0].CurrentPeriodEnd)
	assert.True(t, subs[0].CurrentPeriodEnd.Equal(expires))

	// Audit row is recorded and marked processed.
	require.Len(t, repo.events, 1)
	assert.True(t, repo.events[0].Processed)
	assert.Empty(t, repo.events[0].ProcessingError)
}

func TestIngestDuplicateEventIsNoOp(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(7, false)
	svc := NewService(repo, &fakeEntitlements{})

	expires := time.Now().Add(30 * 24 * time.Hour).UTC()
	raw := webhookJSON(EventTypeRenewal, "7", "txn-9", time.Now().UTC(), &expires)

	first, err := svc.IngestWebhookEvent(context.Background(), mustParse(t, raw), raw)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	subsBefore, _ := repo.ListSubscriptionsByUser(7)

	second, err := svc.IngestWebhookEvent(context.Background(), mustParse(t, raw), raw)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Applied)

	subsAfter, _ := repo.ListSubscriptionsByUser(7)
	assert.Equal(t, subsBefore, subsAfter)
	assert.Len(t, repo.events, 1)
}

func TestIngestAnonymousEventStaysPending(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, &fakeEntitlements{})

	expires := time.Now().Add(24 * time.Hour).UTC()
	raw := webhookJSON(EventTypeInitialPurchase, "$RCAnonymousID:abc123", "txn-a1", time.Now().UTC(), &expires)

	result, err := svc.IngestWebhookEvent(context.Background(), mustParse(t, raw), raw)
	require.NoError(t, err)
	assert.True(t, result.Pending)
	assert.False(t, result.Applied)

	require.Len(t, repo.events, 1)
	assert.False(t, repo.events[0].Processed)
}

func TestIngestUnknownUserStaysPending(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, &fakeEntitlements{})

	raw := webhookJSON(EventTypeRenewal, "9999", "txn-u1", time.Now().UTC(), nil)

	result, err := svc.IngestWebhookEvent(context.Background(), mustParse(t, raw), raw)
	require.NoError(t, err)
	assert.True(t, result.Pending)
	require.Len(t, repo.events, 1)
	assert.False(t, repo.events[0].Processed)
}

func TestSweepPendingEventsResolvesLateSignups(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, &fakeEntitlements{})

	expires := time.Now().Add(30 * 24 * time.Hour).UTC()
	// Delivered before user 42 existed, stored pending.
	raw := webhookJSON(EventTypeInitialPurchase, "42", "txn-sweep", time.Now().UTC(), &expires)
	result, err := svc.IngestWebhookEvent(context.Background(), mustParse(t, raw), raw)
	require.NoError(t, err)
	require.True(t, result.Pending)

	// Anonymous pending event must survive the sweep untouched.
	anonRaw := webhookJSON(EventTypeInitialPurchase, "$RCAnonymousID:abc", "txn-anon", time.Now().UTC(), &expires)
	_, err = svc.IngestWebhookEvent(context.Background(), mustParse(t, anonRaw), anonRaw)
	require.NoError(t, err)

	repo.addUser(42, false)

	applied, err := svc.SweepPendingEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	user, _ := repo.GetUserByID(42)
	assert.True(t, user.IsPremium)

	var anonStillPending bool
	for _, ev := range repo.events {
		if ev.AppUserID == "$RCAnonymousID:abc" {
			anonStillPending = !ev.Processed
		}
	}
	assert.True(t, anonStillPending)
}

func TestExpirationRevokesPremium(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(3, false)
	svc := NewService(repo, &fakeEntitlements{})

	expires := time.Now().Add(30 * 24 * time.Hour).UTC()
	purchase := webhookJSON(EventTypeInitialPurchase, "3", "txn-p", time.Now().Add(-time.Hour).UTC(), &expires)
	_, err := svc.IngestWebhookEvent(context.Background(), mustParse(t, purchase), purchase)
	require.NoError(t, err)

	cancelTime := time.Now().UTC().Truncate(time.Millisecond)
	cancel := webhookJSON(EventTypeExpiration, "3", "txn-c", cancelTime, nil)
	_, err = svc.IngestWebhookEvent(context.Background(), mustParse(t, cancel), cancel)
	require.NoError(t, err)

	user, _ := repo.GetUserByID(3)
	assert.False(t, user.IsPremium)

	subs, _ := repo.ListSubscriptionsByUser(3)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionStatusExpired, subs[0].Status)
	require.NotNil(t, subs[0].CancelledAt)
	assert.True(t, subs[0].CancelledAt.Equal(cancelTime))
}

func TestProcessPendingEventsAppliesInTimestampOrder(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(5, false)
	svc := NewService(repo, &fakeEntitlements{})

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	firstEnd := base.AddDate(0, 1, 0)
	secondEnd := base.AddDate(0, 2, 0)

	anon := "$RCAnonymousID:xyz"
	laterRaw := webhookJSON(EventTypeRenewal, anon, "txn-2", base.Add(time.Hour), &secondEnd)
	earlierRaw := webhookJSON(EventTypeInitialPurchase, anon, "txn-1", base, &firstEnd)

	// Deliveries can arrive out of order; replay must sort by event time.
	for _, raw := range []string{laterRaw, earlierRaw} {
		result, err := svc.IngestWebhookEvent(context.Background(), mustParse(t, raw), raw)
		require.NoError(t, err)
		assert.True(t, result.Pending)
	}

	applied, err := svc.ProcessPendingEvents(context.Background(), 5, anon)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	subs, _ := repo.ListActiveSubscriptionsByUser(5)
	require.Len(t, subs, 1)
	require.NotNil(t, subs[0].CurrentPeriodEnd)
	assert.True(t, subs[0].CurrentPeriodEnd.Equal(secondEnd), "later renewal must win")

	for _, ev := range repo.events {
		assert.True(t, ev.Processed)
	}
}

func TestLinkRevenueCatUserTransfersSubscriptions(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(8, false)
	anon := "$RCAnonymousID:link-me"
	end := time.Now().Add(20 * 24 * time.Hour)
	require.NoError(t, repo.UpsertSubscription(&models.Subscription{
		UserID:           0,
		Platform:         models.PlatformIOS,
		PlanID:           1,
		Status:           models.SubscriptionStatusActive,
		RevenueCatUserID: &anon,
		StartedAt:        time.Now().Add(-time.Hour),
		CurrentPeriodEnd: &end,
	}))

	svc := NewService(repo, &fakeEntitlements{active: true, expiresAt: &end})
	require.NoError(t, svc.LinkRevenueCatUser(context.Background(), 8, anon))

	subs, err := repo.ListSubscriptionsByUser(8)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionStatusActive, subs[0].Status)

	user, _ := repo.GetUserByID(8)
	assert.True(t, user.IsPremium)
}

func TestSyncProviderStatusOverwritesLocalState(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(4, true)
	rcID := "4"
	end := time.Now().Add(-time.Hour)
	require.NoError(t, repo.UpsertSubscription(&models.Subscription{
		UserID:           4,
		Platform:         models.PlatformAndroid,
		PlanID:           1,
		Status:           models.SubscriptionStatusActive,
		RevenueCatUserID: &rcID,
		StartedAt:        time.Now().Add(-48 * time.Hour),
		CurrentPeriodEnd: &end,
	}))

	svc := NewService(repo, &fakeEntitlements{active: false})
	require.NoError(t, svc.SyncProviderStatus(context.Background(), 4, rcID))

	user, _ := repo.GetUserByID(4)
	assert.False(t, user.IsPremium)

	subs, _ := repo.ListSubscriptionsByUser(4)
	require.Len(t, subs, 1)
	assert.Equal(t, models.SubscriptionStatusExpired, subs[0].Status)
}

func TestSyncProviderStatusToleratesProviderOutage(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(4, true)
	rcID := "4"
	require.NoError(t, repo.UpsertSubscription(&models.Subscription{
		UserID:           4,
		Platform:         models.PlatformIOS,
		PlanID:           1,
		Status:           models.SubscriptionStatusActive,
		RevenueCatUserID: &rcID,
		StartedAt:        time.Now(),
	}))

	svc := NewService(repo, &fakeEntitlements{err: errors.New("provider unavailable")})
	require.NoError(t, svc.SyncProviderStatus(context.Background(), 4, rcID))

	// Local state stays untouched when the provider cannot answer.
	user, _ := repo.GetUserByID(4)
	assert.True(t, user.IsPremium)
	subs, _ := repo.ListActiveSubscriptionsByUser(4)
	assert.Len(t, subs, 1)
}

func TestCheckUserPremiumStatusActiveRowWins(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(2, false)
	rcID := "subscriber-2"
	end := time.Now().Add(10 * 24 * time.Hour)
	require.NoError(t, repo.UpsertSubscription(&models.Subscription{
		UserID:           2,
		Platform:         models.PlatformIOS,
		PlanID:           1,
		Status:           models.SubscriptionStatusActive,
		RevenueCatUserID: &rcID,
		StartedAt:        time.Now(),
		CurrentPeriodEnd: &end,
	}))

	svc := NewService(repo, &fakeEntitlements{})
	status, err := svc.CheckUserPremiumStatus(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, status.IsPremium, "flag lag must not hide an active subscription")
	assert.Equal(t, SourceRevenueCat, status.Source)
	require.NotNil(t, status.ExpiresAt)
	assert.True(t, status.ExpiresAt.Equal(end))
}

func TestCheckUserPremiumStatusStripeSource(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(2, false)
	require.NoError(t, repo.UpsertSubscription(&models.Subscription{
		UserID:    2,
		Platform:  models.PlatformWeb,
		PlanID:    1,
		Status:    models.SubscriptionStatusActive,
		StartedAt: time.Now(),
	}))

	svc := NewService(repo, &fakeEntitlements{})
	status, err := svc.CheckUserPremiumStatus(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, status.IsPremium)
	assert.Equal(t, SourceStripe, status.Source)
}

func TestCheckUserPremiumStatusFreeUser(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(1, false)
	svc := NewService(repo, &fakeEntitlements{})

	status, err := svc.CheckUserPremiumStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, status.IsPremium)
	assert.Empty(t, status.Source)
	assert.Nil(t, status.ExpiresAt)
}

func TestGrantAndRevokePremiumAccess(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(6, false)
	svc := NewService(repo, &fakeEntitlements{})

	end := time.Now().Add(365 * 24 * time.Hour)
	require.NoError(t, svc.GrantPremiumAccess(context.Background(), 6, &end, GrantOptions{}))

	status, err := svc.CheckUserPremiumStatus(context.Background(), 6)
	require.NoError(t, err)
	assert.True(t, status.IsPremium)

	require.NoError(t, svc.RevokePremiumAccess(context.Background(), 6))
	status, err = svc.CheckUserPremiumStatus(context.Background(), 6)
	require.NoError(t, err)
	assert.False(t, status.IsPremium)
}

func TestAssignRevenueCatUserIDRejectsForeignID(t *testing.T) {
	repo := newFakeRepository()
	repo.addUser(1, false)
	repo.addUser(2, false)
	rcID := "subscriber-x"
	require.NoError(t, repo.UpsertSubscription(&models.Subscription{
		UserID:           1,
		Platform:         models.PlatformIOS,
		PlanID:           1,
		Status:           models.SubscriptionStatusActive,
		RevenueCatUserID: &rcID,
		StartedAt:        time.Now(),
	}))

	svc := NewService(repo, &fakeEntitlements{})
	err := svc.AssignRevenueCatUserID(context.Background(), 2, rcID)
	require.ErrorIs(t, err, ErrExternalIDTaken)
}
