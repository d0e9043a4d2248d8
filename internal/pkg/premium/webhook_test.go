package premium

import (
	"testing"
	"time"

	"github.com/MarvinWeber/LiftLog/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookEvent(t *testing.T) {
	raw := []byte(`{
		"api_version": "1.0",
		"event": {
			"type": "initial_purchase",
			"app_user_id": "  42 ",
			"original_app_user_id": "$RCAnonymousID:abc",
			"product_id": "liftlog_premium_monthly",
			"entitlement_ids": ["premium"],
			"transaction_id": "txn-100",
			"environment": "PRODUCTION",
			"store": "PLAY_STORE",
			"event_timestamp_ms": 1750000000000,
			"purchased_at_ms": 1749990000000,
			"expiration_at_ms": 1752600000000
		}
	}`)

	ev, err := ParseWebhookEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, EventTypeInitialPurchase, ev.Type)
	assert.Equal(t, "42", ev.AppUserID)
	assert.Equal(t, "$RCAnonymousID:abc", ev.OriginalAppUserID)
	assert.Equal(t, "txn-100", ev.TransactionID)
	assert.Equal(t, time.UnixMilli(1750000000000).UTC(), ev.EventTimestamp)
	require.NotNil(t, ev.PurchasedAt)
	require.NotNil(t, ev.ExpirationAt)
	assert.Equal(t, time.UnixMilli(1752600000000).UTC(), *ev.ExpirationAt)
}

func TestParseWebhookEventRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"invalid json":      `{"event":`,
		"missing event":     `{}`,
		"missing type":      `{"event":{"app_user_id":"1","event_timestamp_ms":1}}`,
		"missing user id":   `{"event":{"type":"RENEWAL","event_timestamp_ms":1}}`,
		"missing timestamp": `{"event":{"type":"RENEWAL","app_user_id":"1"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseWebhookEvent([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestParseWebhookEventFallsBackToOriginalTransactionID(t *testing.T) {
	raw := []byte(`{"event":{"type":"RENEWAL","app_user_id":"1","original_transaction_id":"orig-7","event_timestamp_ms":1750000000000}}`)
	ev, err := ParseWebhookEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "orig-7", ev.TransactionID)
}

func TestVerifyWebhookAuthorization(t *testing.T) {
	assert.True(t, VerifyWebhookAuthorization("Bearer s3cret", "s3cret"))
	assert.True(t, VerifyWebhookAuthorization("s3cret", "s3cret"))
	assert.False(t, VerifyWebhookAuthorization("Bearer wrong", "s3cret"))
	assert.False(t, VerifyWebhookAuthorization("", "s3cret"))
	// An unconfigured secret must reject everything, including empty headers.
	assert.False(t, VerifyWebhookAuthorization("", ""))
	assert.False(t, VerifyWebhookAuthorization("Bearer anything", ""))
}

func TestPlatformForStore(t *testing.T) {
	assert.Equal(t, models.PlatformIOS, PlatformForStore("APP_STORE"))
	assert.Equal(t, models.PlatformIOS, PlatformForStore("mac_app_store"))
	assert.Equal(t, models.PlatformAndroid, PlatformForStore("PLAY_STORE"))
	assert.Equal(t, models.PlatformWeb, PlatformForStore("STRIPE"))
	assert.Equal(t, models.PlatformIOS, PlatformForStore(""))
}

func TestWebhookEventRecordHashFallback(t *testing.T) {
	ev := &WebhookEventPayload{Type: EventTypeRenewal, AppUserID: "1", EventTimestamp: time.Now()}
	rec := webhookEventRecord(ev, `{"event":{}}`)
	assert.Contains(t, rec.ProviderEventID, "hash:")
	assert.Equal(t, models.WebhookProviderRevenueCat, rec.Provider)
}
