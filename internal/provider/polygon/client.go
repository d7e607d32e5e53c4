package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"metrix/internal/model"
	"metrix/internal/query"
)

// DefaultBaseURL is the REST endpoint of the aggregates API.
const DefaultBaseURL = "https://api.polygon.io"

// maxErrorBody caps how much of a failed response body is kept for the error message.
const maxErrorBody = 4 << 10

// Options configure a Client.
type Options struct {
	APIKeys           []string
	Strategy          KeySelectionStrategy
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int // per key; 0 disables pacing
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Client fetches aggregate bars from the Polygon REST API.
type Client struct {
	client  *http.Client
	baseURL string
	keys    *KeyPool
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewClient constructs a Client. At least one API key is required.
func NewClient(o Options) (*Client, error) {
	keys, err := NewKeyPool(o.APIKeys, o.Strategy)
	if err != nil {
		return nil, err
	}
	baseURL := strings.TrimRight(o.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := o.HTTPClient
	if hc == nil {
		hc = newHTTPClient(o.Timeout)
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:  hc,
		baseURL: baseURL,
		keys:    keys,
		limiter: NewRateLimiter(o.RequestsPerMinute),
		logger:  logger,
	}, nil
}

// Close closes connections
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// KeyStats returns request counts per key prefix.
func (c *Client) KeyStats() map[string]int64 {
	return c.keys.Stats()
}

// aggregatesURL builds the first-page URL without the API key.
func (c *Client) aggregatesURL(req query.Request) (*url.URL, error) {
	rawURL := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/%s/%s/%s",
		c.baseURL, url.PathEscape(req.Ticker), req.Multiplier, req.Timespan, req.From, req.To)
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	q := u.Query()
	q.Set("adjusted", strconv.FormatBool(req.Adjusted))
	q.Set("sort", req.Sort.String())
	q.Set("limit", strconv.Itoa(req.Limit))
	u.RawQuery = q.Encode()
	return u, nil
}

// FetchAggregates returns every bar for req, following next_url pages.
// It performs no retries: the first failure is returned.
func (c *Client) FetchAggregates(ctx context.Context, req query.Request) ([]model.Bar, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u, err := c.aggregatesURL(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetching aggregates",
		"ticker", req.Ticker,
		"multiplier", req.Multiplier,
		"timespan", req.Timespan,
		"from", req.From.String(),
		"to", req.To.String(),
		"adjusted", req.Adjusted,
		"sort", req.Sort,
		"limit", req.Limit)

	bars := make([]model.Bar, 0)
	for page := 1; u != nil; page++ {
		resp, err := c.doAggregatesRequest(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", req.Ticker, page, err)
		}
		if resp.Status == "DELAYED" {
			c.logger.Debug("aggregates delayed", "ticker", req.Ticker, "page", page)
		}
		for _, raw := range resp.Results {
			bars = append(bars, raw.ToBar())
		}
		c.logger.Debug("aggregates page", "ticker", req.Ticker, "page", page, "bars", len(resp.Results), "total", len(bars))

		u = nil
		if resp.NextURL != "" {
			if u, err = c.nextPageURL(resp.NextURL); err != nil {
				return nil, fmt.Errorf("%s page %d: %w", req.Ticker, page, err)
			}
		}
	}

	c.logger.Debug("retrieved aggregates", "ticker", req.Ticker, "count", len(bars))
	return bars, nil
}

// nextPageURL resolves next_url against the base URL. The API key is only
// ever sent to the configured scheme and host.
func (c *Client) nextPageURL(next string) (*url.URL, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	ref, err := url.Parse(next)
	if err != nil {
		return nil, fmt.Errorf("%w: parse next_url", ErrMalformedResponse)
	}
	u := base.ResolveReference(ref)
	if u.Scheme != base.Scheme || u.Host != base.Host {
		return nil, fmt.Errorf("%w: next_url points at %s://%s, expected %s://%s",
			ErrMalformedResponse, u.Scheme, u.Host, base.Scheme, base.Host)
	}
	return u, nil
}

// doAggregatesRequest runs one GET with a key from the pool and decodes the page.
func (c *Client) doAggregatesRequest(ctx context.Context, u *url.URL) (*AggregatesResponse, error) {
	apiKey := c.keys.Next()
	if err := c.limiter.WaitForKey(ctx, apiKey); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	signed := *u
	q := signed.Query()
	q.Set("apiKey", apiKey)
	signed.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, signed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("GET aggregates", "path", u.Path, "key", keyPrefix(apiKey))
	resp, err := c.client.Do(httpReq)
	if err != nil {
		// url.Error embeds the full URL including apiKey; keep only the cause.
		if ue, ok := err.(*url.Error); ok {
			err = ue.Err
		}
		return nil, fmt.Errorf("GET %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var result AggregatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode JSON: %v", ErrMalformedResponse, err)
	}
	switch result.Status {
	case "OK", "DELAYED":
		return &result, nil
	default:
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     result.Status,
			Message:    firstNonEmpty(result.Error, result.Message, "unexpected status"),
			RequestID:  result.RequestID,
		}
	}
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var parsed AggregatesResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Status = parsed.Status
		apiErr.RequestID = parsed.RequestID
		apiErr.Message = firstNonEmpty(parsed.Error, parsed.Message)
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
