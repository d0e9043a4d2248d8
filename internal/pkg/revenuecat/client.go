package revenuecat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MarvinWeber/LiftLog/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.revenuecat.com/v1"

// AnonymousIDPrefix marks provider-assigned ids for purchasers that have not
// authenticated yet. Events for such ids cannot be resolved to an account
// until the user logs in and the id is linked.
const AnonymousIDPrefix = "$RCAnonymousID:"

// IsAnonymousID reports whether an external user id is a provider-assigned
// anonymous id.
func IsAnonymousID(appUserID string) bool {
	return strings.HasPrefix(appUserID, AnonymousIDPrefix)
}

// ExternalIDForUser is the app user id an authenticated account registers
// with the provider: the stringified internal user id.
func ExternalIDForUser(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// Client talks to the RevenueCat REST API for a single project.
type Client struct {
	APIKey     string
	APIBaseURL string

	HTTPClient *http.Client

	// now is overridable for tests; defaults to time.Now.
	now func() time.Time
}

func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:     strings.TrimSpace(apiKey),
		APIBaseURL: defaultAPIBaseURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		now: time.Now,
	}
}

func NewClientFromEnv() *Client {
	c := NewClient(env.GetEnv("REVENUECAT_API_KEY", ""))
	if base := strings.TrimSpace(env.GetEnv("REVENUECAT_API_BASE_URL", "")); base != "" {
		c.APIBaseURL = base
	}
	return c
}

// GetSubscriber fetches the provider's current view of an external user.
// Returns (nil, nil) on a provider 404: an unknown subscriber is a valid
// "no entitlement" state, not an error. Every other non-2xx response is a
// *ProviderError.
func (c *Client) GetSubscriber(ctx context.Context, appUserID string) (*Subscriber, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("REVENUECAT_API_KEY is not configured")
	}
	if strings.TrimSpace(appUserID) == "" {
		return nil, errors.New("app user id is required")
	}

	u := strings.TrimRight(c.APIBaseURL, "/") + "/subscribers/" + url.PathEscape(appUserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := resp.Status
		var apiErr struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}

	var out struct {
		Subscriber Subscriber `json:"subscriber"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out.Subscriber, nil
}

// entitlementActive is the single active predicate: the subscriber owns the
// product and the grant is lifetime or expires strictly in the future.
func entitlementActive(e Entitlement, now time.Time) bool {
	if !e.OwnsProduct {
		return false
	}
	if e.ExpiresDate == nil {
		return true
	}
	return e.ExpiresDate.After(now)
}

// HasActiveEntitlements reports whether the subscriber has at least one
// active entitlement right now.
func (c *Client) HasActiveEntitlements(ctx context.Context, appUserID string) (bool, error) {
	sub, err := c.GetSubscriber(ctx, appUserID)
	if err != nil || sub == nil {
		return false, err
	}

	now := c.now()
	for _, e := range sub.Entitlements {
		if entitlementActive(e, now) {
			return true, nil
		}
	}
	return false, nil
}

// GetLatestExpirationDate returns the maximum future expiration among active
// entitlements. It returns nil when any active entitlement is lifetime (no
// expiration) or when none are active.
func (c *Client) GetLatestExpirationDate(ctx context.Context, appUserID string) (*time.Time, error) {
	sub, err := c.GetSubscriber(ctx, appUserID)
	if err != nil || sub == nil {
		return nil, err
	}

	now := c.now()
	var latest *time.Time
	for _, e := range sub.Entitlements {
		if !e.OwnsProduct {
			continue
		}
		if e.ExpiresDate == nil {
			// Lifetime entitlement: there is no expiration to report.
			return nil, nil
		}
		if e.ExpiresDate.After(now) {
			if latest == nil || e.ExpiresDate.After(*latest) {
				t := *e.ExpiresDate
				latest = &t
			}
		}
	}
	return latest, nil
}

// GetActiveEntitlementIDs returns the ids of all currently active
// entitlements.
func (c *Client) GetActiveEntitlementIDs(ctx context.Context, appUserID string) ([]string, error) {
	sub, err := c.GetSubscriber(ctx, appUserID)
	if err != nil || sub == nil {
		return nil, err
	}

	now := c.now()
	var active []string
	for id, e := range sub.Entitlements {
		if entitlementActive(e, now) {
			active = append(active, id)
		}
	}
	return active, nil
}
