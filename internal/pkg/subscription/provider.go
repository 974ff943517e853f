package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/reelads/ReelAds/internal/pkg/env"
)

// HTTPProvider looks up entitlements against the billing backend's REST API.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProviderFromEnv builds the provider from BILLING_API_URL and
// BILLING_API_KEY.
func NewHTTPProviderFromEnv() *HTTPProvider {
	return &HTTPProvider{
		baseURL: env.GetEnv("BILLING_API_URL", "http://localhost:8090"),
		apiKey:  env.GetEnv("BILLING_API_KEY", ""),
		client:  &http.Client{Timeout: DefaultLookupTimeout},
	}
}

type entitlementResponse struct {
	Subscribed bool       `json:"subscribed"`
	ProductID  string     `json:"product_id"`
	PeriodEnd  *time.Time `json:"period_end"`
}

// GetEntitlement fetches the current entitlement for an account.
func (p *HTTPProvider) GetEntitlement(ctx context.Context, accountID uint) (*Entitlement, error) {
	endpoint := fmt.Sprintf("%s/v1/entitlements/%d", p.baseURL, accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// No billing record yet means no subscription, which is a definite
		// answer, not a lookup failure.
		return &Entitlement{Subscribed: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("billing entitlement lookup returned status %d", resp.StatusCode)
	}

	var body entitlementResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &Entitlement{
		Subscribed: body.Subscribed,
		ProductID:  body.ProductID,
		PeriodEnd:  body.PeriodEnd,
	}, nil
}

// CheckoutURL returns the billing page an unentitled account is redirected
// to, carrying the account reference for attribution.
func CheckoutURL(accountUUID string) string {
	base := env.GetEnv("BILLING_CHECKOUT_URL", "https://billing.reelads.app/checkout")
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("account", accountUUID)
	u.RawQuery = q.Encode()
	return u.String()
}
