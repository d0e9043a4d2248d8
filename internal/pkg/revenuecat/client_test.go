package revenuecat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key")
	c.APIBaseURL = srv.URL
	c.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func subscriberBody(entitlements string) string {
	return fmt.Sprintf(`{"subscriber":{"app_user_id":"u1","original_app_user_id":"u1","entitlements":%s,"subscriptions":{}}}`, entitlements)
}

func TestGetSubscriber_NotFoundIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	sub, err := c.GetSubscriber(context.Background(), "unknown")
	assert.NoError(t, err)
	assert.Nil(t, sub)
}

func TestGetSubscriber_ProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream broken"}`))
	})

	sub, err := c.GetSubscriber(context.Background(), "u1")
	assert.Nil(t, sub)

	var provErr *ProviderError
	assert.True(t, errors.As(err, &provErr))
	assert.Equal(t, http.StatusBadGateway, provErr.StatusCode)
	assert.Equal(t, "upstream broken", provErr.Message)
}

func TestGetSubscriber_SendsBearerAuth(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(subscriberBody(`{}`)))
	})

	_, err := c.GetSubscriber(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestHasActiveEntitlements(t *testing.T) {
	tests := []struct {
		name         string
		entitlements string
		want         bool
	}{
		{
			name:         "future expiration is active",
			entitlements: `{"premium":{"owns_product":true,"expires_date":"2025-07-01T00:00:00Z"}}`,
			want:         true,
		},
		{
			name:         "lifetime entitlement is active",
			entitlements: `{"premium":{"owns_product":true,"expires_date":null}}`,
			want:         true,
		},
		{
			name:         "past expiration is inactive",
			entitlements: `{"premium":{"owns_product":true,"expires_date":"2025-01-01T00:00:00Z"}}`,
			want:         false,
		},
		{
			name:         "not owned is inactive even when unexpired",
			entitlements: `{"premium":{"owns_product":false,"expires_date":"2025-07-01T00:00:00Z"}}`,
			want:         false,
		},
		{
			name:         "no entitlements",
			entitlements: `{}`,
			want:         false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := subscriberBody(tc.entitlements)
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			got, err := c.HasActiveEntitlements(context.Background(), "u1")
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHasActiveEntitlements_UnknownSubscriber(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	got, err := c.HasActiveEntitlements(context.Background(), "unknown")
	assert.NoError(t, err)
	assert.False(t, got)
}

func TestGetLatestExpirationDate(t *testing.T) {
	body := subscriberBody(`{
		"premium":{"owns_product":true,"expires_date":"2025-07-01T00:00:00Z"},
		"pro":{"owns_product":true,"expires_date":"2025-08-15T00:00:00Z"},
		"stale":{"owns_product":true,"expires_date":"2025-02-01T00:00:00Z"}
	}`)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	got, err := c.GetLatestExpirationDate(context.Background(), "u1")
	assert.NoError(t, err)
	if assert.NotNil(t, got) {
		assert.Equal(t, time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC), got.UTC())
	}
}

func TestGetLatestExpirationDate_LifetimeReturnsNil(t *testing.T) {
	body := subscriberBody(`{
		"premium":{"owns_product":true,"expires_date":null},
		"pro":{"owns_product":true,"expires_date":"2025-08-15T00:00:00Z"}
	}`)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	got, err := c.GetLatestExpirationDate(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetActiveEntitlementIDs(t *testing.T) {
	body := subscriberBody(`{
		"premium":{"owns_product":true,"expires_date":"2025-07-01T00:00:00Z"},
		"expired":{"owns_product":true,"expires_date":"2025-01-01T00:00:00Z"},
		"lifetime":{"owns_product":true,"expires_date":null}
	}`)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	got, err := c.GetActiveEntitlementIDs(context.Background(), "u1")
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"premium", "lifetime"}, got)
}

func TestIsAnonymousID(t *testing.T) {
	assert.True(t, IsAnonymousID("$RCAnonymousID:abc123"))
	assert.False(t, IsAnonymousID("user-42"))
	assert.False(t, IsAnonymousID(""))
}
