package models

import "time"

const (
	PlatformWeb     = "web"
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

const (
	SubscriptionStatusActive    = "ACTIVE"
	SubscriptionStatusExpired   = "EXPIRED"
	SubscriptionStatusCancelled = "CANCELLED"
)

// Subscription mirrors provider subscription state for one (user, platform)
// pair. Rows are never hard-deleted; expiry and cancellation are recorded via
// Status. RevenueCatUserID is set for mobile subscriptions only - legacy web
// billing (Stripe) rows leave it NULL, which is how the status resolver tells
// the two sources apart.
type Subscription struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	UserID             uint       `gorm:"not null;index:ux_subscriptions_user_platform,unique,priority:1" json:"user_id"`
	Platform           string     `gorm:"type:varchar(16);not null;default:'web';index:ux_subscriptions_user_platform,unique,priority:2" json:"platform"`
	PlanID             uint       `gorm:"not null;index" json:"plan_id"`
	Plan               *SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status             string     `gorm:"type:varchar(16);not null;default:'ACTIVE';index" json:"status"`
	RevenueCatUserID   *string    `gorm:"type:varchar(191);default:null;index" json:"revenue_cat_user_id,omitempty"`
	StartedAt          time.Time  `gorm:"type:timestamp;not null" json:"started_at"`
	CurrentPeriodEnd   *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelledAt        *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the subscription currently entitles the user.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// SubscriptionPlan is static catalog data referenced by subscriptions.
type SubscriptionPlan struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PriceMonthly float64   `gorm:"type:decimal(10,2);not null;default:0" json:"price_monthly"`
	PriceYearly  float64   `gorm:"type:decimal(10,2);not null;default:0" json:"price_yearly"`
	Currency     string    `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency" validate:"len=3"`
	Interval     string    `gorm:"type:varchar(16);not null;default:'month'" json:"interval" validate:"oneof=month year"`
	IsActive     bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
