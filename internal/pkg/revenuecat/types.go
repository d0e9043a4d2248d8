package revenuecat

import (
	"fmt"
	"time"
)

// Entitlement is one provider-tracked grant on a subscriber. ExpiresDate is
// nil for lifetime grants.
type Entitlement struct {
	ExpiresDate            *time.Time `json:"expires_date"`
	GracePeriodExpiresDate *time.Time `json:"grace_period_expires_date"`
	ProductIdentifier      string     `json:"product_identifier"`
	PurchaseDate           *time.Time `json:"purchase_date"`
	OwnsProduct            bool       `json:"owns_product"`
	PeriodType             string     `json:"period_type"`
	Store                  string     `json:"store"`
}

// SubscriberSubscription is a single store subscription on a subscriber.
type SubscriberSubscription struct {
	AutoRenewStatus   bool       `json:"auto_renew_status"`
	ExpiresDate       *time.Time `json:"expires_date"`
	ProductIdentifier string     `json:"product_identifier"`
	PurchaseDate      *time.Time `json:"purchase_date"`
	PeriodType        string     `json:"period_type"`
	Store             string     `json:"store"`
	IsSandbox         bool       `json:"is_sandbox"`
}

// Subscriber is the provider's view of one external user.
type Subscriber struct {
	AppUserID         string                            `json:"app_user_id"`
	OriginalAppUserID string                            `json:"original_app_user_id"`
	Entitlements      map[string]Entitlement            `json:"entitlements"`
	Subscriptions     map[string]SubscriberSubscription `json:"subscriptions"`
	FirstSeen         *time.Time                        `json:"first_seen"`
	LastSeen          *time.Time                        `json:"last_seen"`
	ManagementURL     *string                           `json:"management_url"`
}

// ProviderError carries the HTTP status and provider message for any non-2xx
// response other than 404 (404 means "no such subscriber" and is not an
// error).
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("revenuecat: status=%d message=%s", e.StatusCode, e.Message)
}
