package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/seatwise/seatwise/pkg/config"
)

// DirectoryUser is a principal as reported by the external directory service.
type DirectoryUser struct {
	ID                string `json:"id"`
	UserPrincipalName string `json:"user_principal_name"`
	DisplayName       string `json:"display_name"`
	Department        string `json:"department"`
	AccountEnabled    bool   `json:"account_enabled"`
}

// DirectoryLicense is a (user, SKU) pair as reported by the directory.
type DirectoryLicense struct {
	UserID     string     `json:"user_id"`
	SKU        string     `json:"sku"`
	Status     string     `json:"status"`
	Source     string     `json:"source"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
}

// UsageRecord is one activity snapshot per user and reporting period.
type UsageRecord struct {
	UserID           string    `json:"user_id"`
	Period           string    `json:"period"`
	ReportDate       time.Time `json:"report_date"`
	EmailActive      bool      `json:"email_active"`
	OneDriveActive   bool      `json:"onedrive_active"`
	SharePointActive bool      `json:"sharepoint_active"`
	TeamsActive      bool      `json:"teams_active"`
	StorageUsedBytes int64     `json:"storage_used_bytes"`
}

// SkuPrice is one temporal price point in the product catalog.
type SkuPrice struct {
	Country           string    `json:"country"`
	EffectiveDate     time.Time `json:"effective_date"`
	MonthlyPriceCents int64     `json:"monthly_price_cents"`
	Currency          string    `json:"currency"`
}

// SkuDefinition is one catalog entry: the service plans a SKU bundles and
// its price history.
type SkuDefinition struct {
	SKU          string     `json:"sku"`
	DisplayName  string     `json:"display_name"`
	ServicePlans []string   `json:"service_plans"`
	IsAddon      bool       `json:"is_addon"`
	Prices       []SkuPrice `json:"prices"`
}

// CompatibilityPair states that an add-on SKU may sit on a base SKU.
type CompatibilityPair struct {
	AddonSKU string `json:"addon_sku"`
	BaseSKU  string `json:"base_sku"`
}

// Client pulls tenant data and the product catalog from the external
// directory service.
type Client interface {
	ListUsers(ctx context.Context, tenantID string) ([]DirectoryUser, error)
	ListLicenses(ctx context.Context, tenantID string) ([]DirectoryLicense, error)
	ListUsage(ctx context.Context, tenantID, period string) ([]UsageRecord, error)
	ListSkuCatalog(ctx context.Context) ([]SkuDefinition, error)
	ListCompatibility(ctx context.Context) ([]CompatibilityPair, error)
}

// HTTPClient talks to the directory gateway over REST. Responses are paged;
// the client follows page tokens until exhaustion.
type HTTPClient struct {
	baseURL  string
	pageSize int
	http     *http.Client
}

func NewHTTPClient(cfg *config.DirectoryConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:  cfg.BaseURL,
		pageSize: cfg.PageSize,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

type page[T any] struct {
	Value    []T    `json:"value"`
	NextPage string `json:"next_page,omitempty"`
}

func fetchAll[T any](ctx context.Context, c *HTTPClient, path string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("page_size", strconv.Itoa(c.pageSize))

	var results []T
	pageToken := ""

	for {
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("directory request failed: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("directory returned status %d for %s", resp.StatusCode, path)
		}

		var body page[T]
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode directory response: %w", err)
		}

		results = append(results, body.Value...)

		if body.NextPage == "" {
			return results, nil
		}
		pageToken = body.NextPage
	}
}

func (c *HTTPClient) ListUsers(ctx context.Context, tenantID string) ([]DirectoryUser, error) {
	return fetchAll[DirectoryUser](ctx, c, fmt.Sprintf("/tenants/%s/users", tenantID), nil)
}

func (c *HTTPClient) ListLicenses(ctx context.Context, tenantID string) ([]DirectoryLicense, error) {
	return fetchAll[DirectoryLicense](ctx, c, fmt.Sprintf("/tenants/%s/licenses", tenantID), nil)
}

func (c *HTTPClient) ListUsage(ctx context.Context, tenantID, period string) ([]UsageRecord, error) {
	query := url.Values{}
	if period != "" {
		query.Set("period", period)
	}
	return fetchAll[UsageRecord](ctx, c, fmt.Sprintf("/tenants/%s/usage", tenantID), query)
}

func (c *HTTPClient) ListSkuCatalog(ctx context.Context) ([]SkuDefinition, error) {
	return fetchAll[SkuDefinition](ctx, c, "/catalog/skus", nil)
}

func (c *HTTPClient) ListCompatibility(ctx context.Context) ([]CompatibilityPair, error) {
	return fetchAll[CompatibilityPair](ctx, c, "/catalog/compatibility", nil)
}
