package evotor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"kassabot/internal/models"

	"github.com/redis/go-redis/v9"
)

// ErrorKind distinguishes upstream failure classes so the orchestrator can
// log category-specific detail without aborting sibling categories.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "bad_status"
	KindPayload   ErrorKind = "malformed_payload"
)

// APIError is a typed failure from the provider boundary.
type APIError struct {
	Kind     ErrorKind
	Category models.Category
	Status   int
	Err      error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("evotor %s: %s (http %d)", e.Category, e.Kind, e.Status)
	}
	return fmt.Sprintf("evotor %s: %s: %v", e.Category, e.Kind, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindTransport
}

// Client reads record categories from the Evotor retail API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client with the provider base URL and bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache configures optional read-through caching for the sales
// listing. Cache failures fall through to the API silently.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// FetchSales returns the sales lines for a calendar date in provider order.
func (c *Client) FetchSales(ctx context.Context, date time.Time) ([]models.SaleRecord, error) {
	dateStr := date.Format(models.DateLayout)
	cacheKey := "evotor:sales:" + dateStr

	var cached []models.SaleRecord
	if c.readCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	endpoint := fmt.Sprintf("%s/retail/api/v1/sales?date=%s", c.baseURL, url.QueryEscape(dateStr))
	items, err := c.fetchItems(ctx, models.CategorySales, endpoint)
	if err != nil {
		return nil, err
	}

	sales := make([]models.SaleRecord, 0, len(items))
	for _, raw := range items {
		var rec models.SaleRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, &APIError{Kind: KindPayload, Category: models.CategorySales, Err: err}
		}
		if rec.Date == "" || rec.ProductName == "" {
			return nil, &APIError{Kind: KindPayload, Category: models.CategorySales, Err: errors.New("missing required sale fields")}
		}
		sales = append(sales, rec)
	}

	c.writeCache(ctx, cacheKey, sales)
	return sales, nil
}

// FetchReturns returns the return lines for a calendar date.
func (c *Client) FetchReturns(ctx context.Context, date time.Time) ([]models.ReturnRecord, error) {
	endpoint := fmt.Sprintf("%s/retail/api/v1/returns?date=%s", c.baseURL, url.QueryEscape(date.Format(models.DateLayout)))
	items, err := c.fetchItems(ctx, models.CategoryReturns, endpoint)
	if err != nil {
		return nil, err
	}

	returns := make([]models.ReturnRecord, 0, len(items))
	for _, raw := range items {
		var rec models.ReturnRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, &APIError{Kind: KindPayload, Category: models.CategoryReturns, Err: err}
		}
		if rec.Date == "" || rec.ProductName == "" {
			return nil, &APIError{Kind: KindPayload, Category: models.CategoryReturns, Err: errors.New("missing required return fields")}
		}
		returns = append(returns, rec)
	}
	return returns, nil
}

// FetchInventory returns current stock positions; the listing is not
// date-scoped on the provider side.
func (c *Client) FetchInventory(ctx context.Context) ([]models.InventoryRecord, error) {
	endpoint := c.baseURL + "/retail/api/v1/products"
	items, err := c.fetchItems(ctx, models.CategoryInventory, endpoint)
	if err != nil {
		return nil, err
	}

	products := make([]models.InventoryRecord, 0, len(items))
	for _, raw := range items {
		var rec models.InventoryRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, &APIError{Kind: KindPayload, Category: models.CategoryInventory, Err: err}
		}
		if rec.Name == "" {
			return nil, &APIError{Kind: KindPayload, Category: models.CategoryInventory, Err: errors.New("missing product name")}
		}
		products = append(products, rec)
	}
	return products, nil
}

// FetchEmployees returns employee performance lines.
func (c *Client) FetchEmployees(ctx context.Context) ([]models.EmployeeRecord, error) {
	endpoint := c.baseURL + "/retail/api/v1/employees"
	items, err := c.fetchItems(ctx, models.CategoryEmployees, endpoint)
	if err != nil {
		return nil, err
	}

	employees := make([]models.EmployeeRecord, 0, len(items))
	for _, raw := range items {
		var rec models.EmployeeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, &APIError{Kind: KindPayload, Category: models.CategoryEmployees, Err: err}
		}
		if rec.Name == "" || rec.ID == "" {
			return nil, &APIError{Kind: KindPayload, Category: models.CategoryEmployees, Err: errors.New("missing employee fields")}
		}
		employees = append(employees, rec)
	}
	return employees, nil
}

// fetchItems performs the GET and unwraps the {"items": [...]} envelope.
func (c *Client) fetchItems(ctx context.Context, category models.Category, endpoint string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Category: category, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindTransport, Category: category, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Kind: KindStatus, Category: category, Status: resp.StatusCode}
	}

	var envelope struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &APIError{Kind: KindPayload, Category: category, Err: err}
	}
	return envelope.Items, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}
