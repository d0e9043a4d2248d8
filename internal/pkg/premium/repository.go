package premium

import (
	"strconv"
	"time"

	"github.com/MarvinWeber/LiftLog/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionStateUpdate describes an absolute-state write applied to all
// subscription rows matching (user, external id). Zero fields are left
// untouched unless the corresponding Set flag is raised, so handlers can
// distinguish "clear this timestamp" from "do not alter it".
type SubscriptionStateUpdate struct {
	Status              string
	CurrentPeriodEnd    *time.Time
	SetCurrentPeriodEnd bool
	CancelledAt         *time.Time
	SetCancelledAt      bool
}

// Repository provides the DB operations used by the premium service.
type Repository interface {
	GetUserByID(id uint) (*models.User, error)
	SetUserPremium(id uint, premium bool) error
	// FindUserByExternalID resolves a provider app user id to a local user:
	// either the id is the stringified internal user id, or a subscription
	// row carries it as revenue_cat_user_id.
	FindUserByExternalID(appUserID string) (*models.User, error)

	UpsertSubscription(sub *models.Subscription) error
	ListSubscriptionsByUser(userID uint) ([]models.Subscription, error)
	ListActiveSubscriptionsByUser(userID uint) ([]models.Subscription, error)
	ListSubscriptionsByExternalID(rcUserID string) ([]models.Subscription, error)
	UpdateSubscriptionsByExternalID(userID uint, rcUserID string, upd SubscriptionStateUpdate) error
	ExpireActiveSubscriptions(userID uint, platforms []string, cancelledAt time.Time) error
	TransferSubscriptions(toUserID uint, rcUserID string) error
	GetOrCreateDefaultPlan() (*models.SubscriptionPlan, error)

	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	ListPendingEvents(appUserID string) ([]models.WebhookEvent, error)
	ListPendingExternalIDs() ([]string, error)

	// Transaction runs fn against a repository bound to a DB transaction.
	// Multi-step mutations (user flag + subscription rows) go through here so
	// a crash mid-update cannot leave the two out of step.
	Transaction(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a premium repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SetUserPremium(id uint, premium bool) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).
		Update("is_premium", premium).Error
}

func (r *gormRepository) FindUserByExternalID(appUserID string) (*models.User, error) {
	if id, err := strconv.ParseUint(appUserID, 10, 64); err == nil {
		var user models.User
		if err := r.db.First(&user, uint(id)).Error; err == nil {
			return &user, nil
		} else if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	var sub models.Subscription
	if err := r.db.Where("revenue_cat_user_id = ?", appUserID).First(&sub).Error; err != nil {
		return nil, err
	}
	var user models.User
	if err := r.db.First(&user, sub.UserID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "platform"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_id",
			"status",
			"revenue_cat_user_id",
			"current_period_end",
			"cancelled_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("user_id = ? AND platform = ?", sub.UserID, sub.Platform).
		First(sub).Error
}

func (r *gormRepository) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Find(&subs).Error
	return subs, err
}

func (r *gormRepository) ListActiveSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Preload("Plan").
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Find(&subs).Error
	return subs, err
}

func (r *gormRepository) ListSubscriptionsByExternalID(rcUserID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("revenue_cat_user_id = ?", rcUserID).Find(&subs).Error
	return subs, err
}

func (r *gormRepository) UpdateSubscriptionsByExternalID(userID uint, rcUserID string, upd SubscriptionStateUpdate) error {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if upd.Status != "" {
		updates["status"] = upd.Status
	}
	if upd.SetCurrentPeriodEnd {
		updates["current_period_end"] = upd.CurrentPeriodEnd
	}
	if upd.SetCancelledAt {
		updates["cancelled_at"] = upd.CancelledAt
	}
	return r.db.Model(&models.Subscription{}).
		Where("user_id = ? AND revenue_cat_user_id = ?", userID, rcUserID).
		Updates(updates).Error
}

func (r *gormRepository) ExpireActiveSubscriptions(userID uint, platforms []string, cancelledAt time.Time) error {
	q := r.db.Model(&models.Subscription{}).
		Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive)
	if len(platforms) > 0 {
		q = q.Where("platform IN ?", platforms)
	}
	return q.Updates(map[string]interface{}{
		"status":       models.SubscriptionStatusExpired,
		"cancelled_at": cancelledAt,
		"updated_at":   time.Now(),
	}).Error
}

func (r *gormRepository) TransferSubscriptions(toUserID uint, rcUserID string) error {
	return r.db.Model(&models.Subscription{}).
		Where("revenue_cat_user_id = ?", rcUserID).
		Updates(map[string]interface{}{
			"user_id":    toUserID,
			"updated_at": time.Now(),
		}).Error
}

func (r *gormRepository) GetOrCreateDefaultPlan() (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := r.db.Where("is_active = ?", true).
		Order("price_monthly ASC").
		First(&plan).Error
	if err == nil {
		return &plan, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	plan = models.SubscriptionPlan{
		PriceMonthly: 9.99,
		Currency:     "EUR",
		Interval:     "month",
		IsActive:     true,
	}
	if err := r.db.Create(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed":        true,
		"processed_at":     &now,
		"processing_error": processingError,
	}).Error
}

func (r *gormRepository) ListPendingEvents(appUserID string) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.
		Where("app_user_id = ? AND processed = ?", appUserID, false).
		Order("event_timestamp ASC").
		Find(&events).Error
	return events, err
}

func (r *gormRepository) ListPendingExternalIDs() ([]string, error) {
	var ids []string
	err := r.db.
		Model(&models.WebhookEvent{}).
		Where("processed = ? AND app_user_id <> ''", false).
		Distinct().
		Pluck("app_user_id", &ids).Error
	return ids, err
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
