package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"

	"cfd-hedge-backtest/internal/model"
)

const defaultFMPBaseURL = "https://financialmodelingprep.com/api/v3"

// FMPClient fetches daily closes from the Financial Modeling Prep API.
type FMPClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	Log     *zap.SugaredLogger

	// Cache defaults to GetCache(); nil disables caching.
	Cache    *ResponseCache
	// CacheTTL overrides the cache's default TTL for entries this client stores.
	CacheTTL time.Duration
}

// NewFMPClient creates a new FMP client.
// If baseURL is empty, defaults to "https://financialmodelingprep.com/api/v3".
func NewFMPClient(apiKey, baseURL string, log *zap.SugaredLogger) *FMPClient {
	if baseURL == "" {
		baseURL = defaultFMPBaseURL
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &FMPClient{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		Log:   log,
		Cache: GetCache(),
	}
}

// FetchError represents an error from the FMP API
type FetchError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter string // For rate limit errors
}

func (e *FetchError) Error() string {
	return e.Message
}

type fmpHistoryResponse struct {
	Symbol       string `json:"symbol"`
	ErrorMessage string `json:"Error Message"`
	Historical   []struct {
		Date  string  `json:"date"`
		Close float64 `json:"close"`
	} `json:"historical"`
}

// History fetches daily closes for symbol in [start, end], oldest first.
//
// WARNING: If caching is enabled (ENABLE_FMP_CACHE=true), responses may be
// cached. Caching is ONLY for LOCAL DEVELOPMENT.
func (c *FMPClient) History(ctx context.Context, symbol string, start, end time.Time) ([]model.DatedValue, error) {
	if c.APIKey == "" {
		return nil, &FetchError{Code: "MISSING_API_KEY", Message: "API key is required"}
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("start and end dates are required")
	}
	if start.After(end) {
		return nil, fmt.Errorf("start must be before end")
	}

	from, to := start.Format(model.DateLayout), end.Format(model.DateLayout)

	// Check cache first (only if enabled for development)
	cache := c.Cache
	cacheKey := GenerateCacheKey(c.BaseURL, symbol, from, to)
	if cached, found := cache.Get(cacheKey); found {
		c.Log.Infof("[FMP] Cache hit: %d closes (symbol=%s, from=%s, to=%s)", len(cached), symbol, from, to)
		return cached, nil
	}

	u, err := url.Parse(c.BaseURL + "/historical-price-full/" + url.PathEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("from", from)
	q.Set("to", to)
	q.Set("apikey", c.APIKey)
	u.RawQuery = q.Encode()

	c.Log.Infof("[FMP] Request: GET %s (symbol=%s, from=%s, to=%s)", u.Path, symbol, from, to)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := c.Client.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		c.Log.Warnf("[FMP] Request failed: %v (duration: %v)", err, duration)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	c.Log.Infof("[FMP] Response: %s (duration: %v, symbol=%s)", resp.Status, duration, symbol)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Code:       "INVALID_API_KEY",
			Message:    "Invalid API key or insufficient permissions",
		}
	case http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		c.Log.Warnf("[FMP] Error: 429 Rate Limit Exceeded - Retry after: %s (symbol=%s)", retryAfter, symbol)
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Code:       "RATE_LIMIT_EXCEEDED",
			Message:    fmt.Sprintf("Rate limit exceeded. Retry after: %s", retryAfter),
			RetryAfter: retryAfter,
		}
	default:
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Code:       "API_ERROR",
			Message:    fmt.Sprintf("API returned status %d: %s", resp.StatusCode, resp.Status),
		}
	}

	var body fmpHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if body.ErrorMessage != "" {
		return nil, &FetchError{StatusCode: resp.StatusCode, Code: "API_ERROR", Message: body.ErrorMessage}
	}
	if len(body.Historical) == 0 {
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Code:       "NO_DATA",
			Message:    fmt.Sprintf("no history for %s between %s and %s", symbol, from, to),
		}
	}

	out := make([]model.DatedValue, 0, len(body.Historical))
	for _, h := range body.Historical {
		d, err := time.Parse(model.DateLayout, h.Date)
		if err != nil {
			return nil, fmt.Errorf("bad date %q in %s history: %w", h.Date, symbol, err)
		}
		out = append(out, model.DatedValue{Date: d, Value: h.Close})
	}
	// FMP returns newest first
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	c.Log.Infof("[FMP] Success: received %d closes (symbol=%s)", len(out), symbol)

	if cache != nil {
		cache.SetWithTTL(cacheKey, out, c.CacheTTL)
	}
	return out, nil
}

// FetchMarket downloads the index and volatility histories and inner-joins
// them on date. Rate is left unset; Prepare fills the configured default.
func (c *FMPClient) FetchMarket(ctx context.Context, indexSymbol, volSymbol string, start, end time.Time) ([]Row, error) {
	index, err := c.History(ctx, indexSymbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", indexSymbol, err)
	}
	vol, err := c.History(ctx, volSymbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", volSymbol, err)
	}

	volByDate := make(map[string]float64, len(vol))
	for _, v := range vol {
		volByDate[v.Date.Format(model.DateLayout)] = v.Value
	}
	rows := make([]Row, 0, len(index))
	for _, p := range index {
		date := p.Date.Format(model.DateLayout)
		v, ok := volByDate[date]
		if !ok {
			continue
		}
		price, volatility := p.Value, v
		rows = append(rows, Row{Date: date, Price: &price, Volatility: &volatility})
	}
	return rows, nil
}
