package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nsg/config"
)

const (
	defaultBaseURL = "https://api.notion.com"

	// pageSize is the largest page the list endpoints allow.
	pageSize = 100

	maxRetryDelay = 30 * time.Second
)

// Client talks to the Notion REST API on behalf of a single integration.
// All list endpoints are paginated, Client materializes full result sets.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
	rpt        *config.Report
	seq        atomic.Int64

	baseURL    string
	token      string
	apiVersion string
	maxRetries int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithReport captures every successful API response body into the debug
// report. A nil report leaves capture off.
func WithReport(rpt *config.Report) ClientOption {
	return func(c *Client) {
		c.rpt = rpt
	}
}

// NewClient prepares an API client from configuration. The integration token
// is required here rather than at configuration load so commands which never
// touch the API keep working without one.
func NewClient(conf *config.NotionConfig, log *zap.Logger, opts ...ClientOption) (*Client, error) {
	token := strings.TrimSpace(string(conf.Token))
	if token == "" {
		return nil, errors.New("notion integration token is not configured")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: time.Duration(conf.Timeout) * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(conf.RateLimit), 1),
		log:        log,
		baseURL:    defaultBaseURL,
		token:      token,
		apiVersion: conf.APIVersion,
		maxRetries: conf.MaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type queryRequest struct {
	Filter      *propertyFilter `json:"filter,omitempty"`
	StartCursor string          `json:"start_cursor,omitempty"`
	PageSize    int             `json:"page_size,omitempty"`
}

type propertyFilter struct {
	Property string             `json:"property"`
	Checkbox *checkboxCondition `json:"checkbox,omitempty"`
}

type checkboxCondition struct {
	Equals bool `json:"equals"`
}

type listResponse struct {
	Object     string            `json:"object"`
	Results    []json.RawMessage `json:"results"`
	NextCursor *string           `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}

// QueryDatabase returns every published page of the database, walking cursor
// pagination to the end. Publication state is filtered server side, so the
// database must have the Published checkbox property.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string) ([]Page, error) {
	endpoint := fmt.Sprintf("%s/v1/databases/%s/query", c.baseURL, databaseID)

	var pages []Page
	cursor := ""
	for {
		body, err := json.Marshal(&queryRequest{
			Filter: &propertyFilter{
				Property: propPublished,
				Checkbox: &checkboxCondition{Equals: true},
			},
			StartCursor: cursor,
			PageSize:    pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("query database %s: %w", databaseID, err)
		}
		data, err := c.do(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return nil, fmt.Errorf("query database %s: %w", databaseID, err)
		}
		var list listResponse
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("query database %s: bad response: %w", databaseID, err)
		}
		for _, raw := range list.Results {
			page, err := parsePage(raw, c.log)
			if err != nil {
				return nil, fmt.Errorf("query database %s: %w", databaseID, err)
			}
			pages = append(pages, page)
		}
		if !list.HasMore || list.NextCursor == nil || *list.NextCursor == "" {
			break
		}
		cursor = *list.NextCursor
	}
	c.log.Debug("Queried database", zap.String("database", databaseID), zap.Int("pages", len(pages)))
	return pages, nil
}

// BlockChildren returns the complete ordered child list of a block (a page is
// a block too). Nested children are not included, callers descend through
// HasChildren themselves.
func (c *Client) BlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	blocks, err := c.blockChildren(ctx, blockID)
	if err != nil {
		return nil, &ChildFetchError{BlockID: blockID, Err: err}
	}
	return blocks, nil
}

func (c *Client) blockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	cursor := ""
	for {
		params := url.Values{}
		params.Set("page_size", strconv.Itoa(pageSize))
		if cursor != "" {
			params.Set("start_cursor", cursor)
		}
		endpoint := fmt.Sprintf("%s/v1/blocks/%s/children?%s", c.baseURL, blockID, params.Encode())

		data, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		var list listResponse
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("bad response: %w", err)
		}
		for _, raw := range list.Results {
			blk, err := parseBlock(raw, c.log)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, blk)
		}
		if !list.HasMore || list.NextCursor == nil || *list.NextCursor == "" {
			break
		}
		cursor = *list.NextCursor
	}
	return blocks, nil
}

// do performs one API call, waiting out the client side rate limit first and
// retrying throttled or transient server failures up to the configured number
// of times.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", c.apiVersion)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response failed: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.record(endpoint, data)
			return data, nil
		}
		if attempt < c.maxRetries && retryableStatus(resp.StatusCode) {
			delay := retryDelay(resp.Header.Get("Retry-After"), attempt)
			c.log.Debug("Retrying notion API call",
				zap.Int("status", resp.StatusCode),
				zap.Duration("delay", delay),
				zap.Int("attempt", attempt+1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		return nil, newAPIError(resp.StatusCode, data)
	}
}

// record saves a response payload into the debug report. A sequence number
// keeps paginated calls to the same endpoint apart.
func (c *Client) record(endpoint string, data []byte) {
	if c.rpt == nil {
		return
	}
	name := endpoint
	if u, err := url.Parse(endpoint); err == nil {
		name = strings.Trim(u.Path, "/")
	}
	name = strings.ReplaceAll(name, "/", "_")
	c.rpt.StoreData(fmt.Sprintf("notion/%03d-%s.json", c.seq.Add(1), name), data)
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryDelay honors the Retry-After header when the server sends one and
// falls back to exponential backoff otherwise.
func retryDelay(retryAfter string, attempt int) time.Duration {
	if secs, err := strconv.ParseFloat(strings.TrimSpace(retryAfter), 64); err == nil && secs > 0 {
		delay := time.Duration(secs * float64(time.Second))
		if delay > maxRetryDelay {
			return maxRetryDelay
		}
		return delay
	}
	delay := time.Second << attempt
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}

func newAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{Status: status}
	var wire struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &wire); err == nil {
		apiErr.Code = wire.Code
		apiErr.Message = wire.Message
	}
	return apiErr
}
