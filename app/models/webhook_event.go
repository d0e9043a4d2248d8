package models

import "time"

// Webhook provider constants shared across billing-related models.
const (
	WebhookProviderRevenueCat = "revenuecat"
	WebhookProviderStripe     = "stripe"
)

// WebhookEvent is the append-only audit log of every inbound provider event.
// Rows are created on ingress and mutated exactly once when reconciled
// (Processed flips to true). They are retained indefinitely so any user's
// subscription state can be rebuilt by replay.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	EventTimestamp  time.Time  `gorm:"type:timestamp;not null;index" json:"event_timestamp"`
	AppUserID       string     `gorm:"type:varchar(191);not null;index" json:"app_user_id"`
	Environment     string     `gorm:"type:varchar(20);default:''" json:"environment"`
	ProductID       string     `gorm:"type:varchar(191);default:''" json:"product_id"`
	TransactionID   string     `gorm:"type:varchar(191);default:''" json:"transaction_id"`
	EntitlementIDs  string     `gorm:"type:text" json:"entitlement_ids"`
	RawPayload      string     `gorm:"type:longtext;not null" json:"raw_payload"`
	Processed       bool       `gorm:"default:false;index" json:"processed"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
