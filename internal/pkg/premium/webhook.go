package premium

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/MarvinWeber/LiftLog/app/models"
	"github.com/MarvinWeber/LiftLog/internal/pkg/revenuecat"
	"github.com/go-playground/validator/v10"
)

// RevenueCat webhook event types. Unrecognized types are logged and ignored
// so newer provider versions do not break ingestion.
const (
	EventTypeInitialPurchase = "INITIAL_PURCHASE"
	EventTypeRenewal         = "RENEWAL"
	EventTypeUncancellation  = "UNCANCELLATION"
	EventTypeCancellation    = "CANCELLATION"
	EventTypeExpiration      = "EXPIRATION"
	EventTypeBillingIssue    = "BILLING_ISSUE"
	EventTypeProductChange   = "PRODUCT_CHANGE"
)

// WebhookEventPayload is the parsed, normalized form of one inbound provider
// event.
type WebhookEventPayload struct {
	Type              string
	AppUserID         string
	OriginalAppUserID string
	ProductID         string
	EntitlementIDs    []string
	TransactionID     string
	Environment       string
	Store             string
	EventTimestamp    time.Time
	PurchasedAt       *time.Time
	ExpirationAt      *time.Time
}

type webhookEnvelope struct {
	Event struct {
		Type                  string   `json:"type" validate:"required"`
		AppUserID             string   `json:"app_user_id" validate:"required"`
		OriginalAppUserID     string   `json:"original_app_user_id"`
		ProductID             string   `json:"product_id"`
		EntitlementIDs        []string `json:"entitlement_ids"`
		TransactionID         string   `json:"transaction_id"`
		OriginalTransactionID string   `json:"original_transaction_id"`
		Environment           string   `json:"environment"`
		Store                 string   `json:"store"`
		EventTimestampMs      int64    `json:"event_timestamp_ms" validate:"required"`
		PurchasedAtMs         int64    `json:"purchased_at_ms"`
		ExpirationAtMs        int64    `json:"expiration_at_ms"`
	} `json:"event" validate:"required"`
}

var validate = validator.New()

// ParseWebhookEvent strictly validates the provider's event envelope.
// A payload that fails here is rejected before anything is persisted: the
// shape needed to log the event is itself invalid.
func ParseWebhookEvent(raw []byte) (*WebhookEventPayload, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if err := validate.Struct(&env); err != nil {
		return nil, err
	}

	ev := &WebhookEventPayload{
		Type:              strings.ToUpper(strings.TrimSpace(env.Event.Type)),
		AppUserID:         strings.TrimSpace(env.Event.AppUserID),
		OriginalAppUserID: strings.TrimSpace(env.Event.OriginalAppUserID),
		ProductID:         env.Event.ProductID,
		EntitlementIDs:    env.Event.EntitlementIDs,
		TransactionID:     firstNonEmpty(env.Event.TransactionID, env.Event.OriginalTransactionID),
		Environment:       env.Event.Environment,
		Store:             env.Event.Store,
		EventTimestamp:    time.UnixMilli(env.Event.EventTimestampMs).UTC(),
	}
	if env.Event.PurchasedAtMs > 0 {
		t := time.UnixMilli(env.Event.PurchasedAtMs).UTC()
		ev.PurchasedAt = &t
	}
	if env.Event.ExpirationAtMs > 0 {
		t := time.UnixMilli(env.Event.ExpirationAtMs).UTC()
		ev.ExpirationAt = &t
	}
	return ev, nil
}

// VerifyWebhookAuthorization checks the shared-secret Authorization header
// the provider sends with each delivery. Comparison is constant-time; an
// unconfigured secret rejects everything.
func VerifyWebhookAuthorization(authHeader, expectedSecret string) bool {
	secret := strings.TrimSpace(expectedSecret)
	if secret == "" {
		return false
	}
	received := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(authHeader), "Bearer "))
	if received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(received), []byte(secret)) == 1
}

// PlatformForStore maps the event's store field onto a local subscription
// platform. Mobile events without a store default to ios.
func PlatformForStore(store string) string {
	switch strings.ToUpper(strings.TrimSpace(store)) {
	case "APP_STORE", "MAC_APP_STORE":
		return models.PlatformIOS
	case "PLAY_STORE":
		return models.PlatformAndroid
	case "STRIPE":
		return models.PlatformWeb
	default:
		return models.PlatformIOS
	}
}

// webhookEventRecord builds the audit row for an inbound event. Events
// without a provider transaction id are deduplicated on a payload hash.
func webhookEventRecord(ev *WebhookEventPayload, raw string) *models.WebhookEvent {
	eventID := strings.TrimSpace(ev.TransactionID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(raw))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	entitlements := ""
	if len(ev.EntitlementIDs) > 0 {
		if b, err := json.Marshal(ev.EntitlementIDs); err == nil {
			entitlements = string(b)
		}
	}

	return &models.WebhookEvent{
		Provider:        models.WebhookProviderRevenueCat,
		ProviderEventID: eventID,
		EventType:       ev.Type,
		EventTimestamp:  ev.EventTimestamp,
		AppUserID:       ev.AppUserID,
		Environment:     ev.Environment,
		ProductID:       ev.ProductID,
		TransactionID:   ev.TransactionID,
		EntitlementIDs:  entitlements,
		RawPayload:      raw,
	}
}

// isAnonymousExternalID reports whether the event's app user id is a
// provider-assigned anonymous id that cannot (yet) resolve to an account.
func isAnonymousExternalID(appUserID string) bool {
	return revenuecat.IsAnonymousID(appUserID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
