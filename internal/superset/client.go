// Package superset is a minimal client for the Apache Superset REST API:
// just enough to find the dataset created for a Dataverse file and list the
// charts built on it.
package superset

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotFound is returned when no dataset matches a lookup.
var ErrNotFound = errors.New("superset: dataset not found")

const (
	// DefaultPageSize is the number of charts requested per dataset.
	DefaultPageSize = 20
	// expiryMargin is taken off an access token's lifetime.
	expiryMargin = 30 * time.Second
)

// Config holds the connection settings for a Client.
type Config struct {
	BaseURL      string
	RefreshToken string
	PageSize     int
	// DatabaseID and Schema narrow dataset lookups when set.
	DatabaseID int64
	Schema     string
}

// Chart is a chart that can be shown in the page's selector.
type Chart struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Client talks to the Superset API. It is safe for concurrent use.
type Client struct {
	base         *url.URL
	refreshToken string
	pageSize     int
	databaseID   int64
	schema       string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	expires     time.Time
	now         func() time.Time
}

// APIError is a response from Superset with an unexpected status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("superset API error (%d): %s", e.StatusCode, e.Message)
}

// NewClient creates a new Superset API client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing superset uri: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		base:         base,
		refreshToken: cfg.RefreshToken,
		pageSize:     pageSize,
		databaseID:   cfg.DatabaseID,
		schema:       cfg.Schema,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
	}, nil
}

// DatasetName returns the table name used for the Dataverse file at
// fileURL.
func DatasetName(fileURL string) string {
	sum := md5.Sum([]byte(fileURL))
	return "dataverse_" + hex.EncodeToString(sum[:])[:10]
}

type filter struct {
	Col   string `json:"col"`
	Opr   string `json:"opr"`
	Value any    `json:"value"`
}

type listQuery struct {
	Columns        []string `json:"columns"`
	Filters        []filter `json:"filters"`
	OrderColumn    string   `json:"order_column,omitempty"`
	OrderDirection string   `json:"order_direction,omitempty"`
	Page           *int     `json:"page,omitempty"`
	PageSize       int      `json:"page_size,omitempty"`
}

// FindDataset returns the id of the dataset backed by tableName.
func (c *Client) FindDataset(ctx context.Context, tableName string) (int64, error) {
	q := listQuery{
		Columns: []string{"id"},
		Filters: []filter{{Col: "table_name", Opr: "eq", Value: tableName}},
	}
	if c.databaseID != 0 {
		q.Filters = append(q.Filters, filter{Col: "database", Opr: "rel_o_m", Value: c.databaseID})
	}
	if c.schema != "" {
		q.Filters = append(q.Filters, filter{Col: "schema", Opr: "eq", Value: c.schema})
	}
	var resp struct {
		Count  int `json:"count"`
		Result []struct {
			ID int64 `json:"id"`
		} `json:"result"`
	}
	if err := c.list(ctx, "dataset/", q, &resp); err != nil {
		return 0, fmt.Errorf("finding dataset %s: %w", tableName, err)
	}
	if resp.Count != 1 || len(resp.Result) != 1 {
		return 0, fmt.Errorf("%s: %w", tableName, ErrNotFound)
	}
	return resp.Result[0].ID, nil
}

// FindChartURLs returns the charts built on the dataset, most recently
// saved first. Each URL is absolute and opens the chart in standalone mode.
func (c *Client) FindChartURLs(ctx context.Context, datasetID int64) ([]Chart, error) {
	page := 0
	q := listQuery{
		Columns:        []string{"slice_name", "url"},
		Filters:        []filter{{Col: "datasource_id", Opr: "eq", Value: datasetID}},
		OrderColumn:    "last_saved_at",
		OrderDirection: "desc",
		Page:           &page,
		PageSize:       c.pageSize,
	}
	var resp struct {
		Result []struct {
			SliceName string `json:"slice_name"`
			URL       string `json:"url"`
		} `json:"result"`
	}
	if err := c.list(ctx, "chart/", q, &resp); err != nil {
		return nil, fmt.Errorf("listing charts for dataset %d: %w", datasetID, err)
	}
	charts := make([]Chart, 0, len(resp.Result))
	for _, r := range resp.Result {
		charts = append(charts, Chart{Name: r.SliceName, URL: c.absolute(r.URL + "&standalone=1")})
	}
	return charts, nil
}

// CreateDataset registers tableName in the configured database and schema
// and returns the new dataset's id.
func (c *Client) CreateDataset(ctx context.Context, tableName string) (int64, error) {
	body, err := json.Marshal(struct {
		Database  int64  `json:"database"`
		Schema    string `json:"schema,omitempty"`
		TableName string `json:"table_name"`
	}{c.databaseID, c.schema, tableName})
	if err != nil {
		return 0, fmt.Errorf("marshalling dataset: %w", err)
	}

	var resp struct {
		ID int64 `json:"id"`
	}
	err = c.authorized(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("dataset/"), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		return c.do(req, http.StatusCreated, &resp)
	})
	if err != nil {
		return 0, fmt.Errorf("dataset creation problem: %w", err)
	}
	return resp.ID, nil
}

// list runs a GET against an api/v1 list endpoint with q as its JSON query.
func (c *Client) list(ctx context.Context, path string, q listQuery, out any) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshalling query: %w", err)
	}
	endpoint := c.endpoint(path) + "?q=" + url.QueryEscape(string(raw))

	return c.authorized(ctx, func(token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		return c.do(req, http.StatusOK, out)
	})
}

// authorized calls fn with an access token. A cached token that Superset
// rejects is dropped and fn is retried once with a fresh one.
func (c *Client) authorized(ctx context.Context, fn func(token string) error) error {
	token, cached := c.cachedToken()
	if !cached {
		var err error
		if token, err = c.refresh(ctx); err != nil {
			return err
		}
	}
	err := fn(token)
	var apiErr *APIError
	if !cached || !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return err
	}
	c.forget(token)
	if token, err = c.refresh(ctx); err != nil {
		return err
	}
	return fn(token)
}

// cachedToken returns the access token while it has not expired.
func (c *Client) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken == "" || !c.now().Before(c.expires) {
		return "", false
	}
	return c.accessToken, true
}

func (c *Client) forget(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken == token {
		c.accessToken = ""
	}
}

// refresh exchanges the refresh token for a new access token and keeps it
// until shortly before its exp claim. Tokens without one are not kept.
func (c *Client) refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("security/refresh"), bytes.NewReader(nil))
	if err != nil {
		return "", fmt.Errorf("creating refresh request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.refreshToken)
	req.Header.Set("Accept", "application/json")

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return "", fmt.Errorf("refresh token problem: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("refresh token problem: empty access_token")
	}

	expires, ok := tokenExpiry(resp.AccessToken)
	c.mu.Lock()
	c.accessToken, c.expires = "", time.Time{}
	if ok {
		c.accessToken, c.expires = resp.AccessToken, expires.Add(-expiryMargin)
	}
	c.mu.Unlock()
	return resp.AccessToken, nil
}

// tokenExpiry reads the exp claim of a JWT without verifying its signature.
func tokenExpiry(token string) (time.Time, bool) {
	t, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := t.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// absolute resolves a chart URL, which Superset returns relative to its
// root, so it can be embedded on other sites.
func (c *Client) absolute(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

func (c *Client) endpoint(path string) string {
	return c.base.ResolveReference(&url.URL{Path: "api/v1/" + path}).String()
}

// do sends req and decodes a JSON body into out when the status matches.
// Non-JSON error bodies are reported verbatim.
func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	isJSON := strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json")
	if resp.StatusCode != wantStatus {
		msg := string(body)
		if isJSON {
			var e struct {
				Message any `json:"message"`
			}
			if json.Unmarshal(body, &e) == nil && e.Message != nil {
				msg = fmt.Sprint(e.Message)
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if !isJSON {
		return fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
