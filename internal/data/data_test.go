package data

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfd-hedge-backtest/internal/model"
)

func f(x float64) *float64 { return &x }

func date(s string) time.Time {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestPrepare_DerivesReturnsAndDropsBadRows(t *testing.T) {
	rows := []Row{
		{Date: "2020-03-04", Price: f(3800), Volatility: f(30), Rate: f(0.01)},
		{Date: "2020-03-02", Price: f(4000), Volatility: f(20)},
		{Date: "2020-03-03", Price: f(3900), Volatility: nil}, // dropped
		{Date: "2020-03-05", Price: f(math.NaN()), Volatility: f(31)},
		{Date: "2020-03-06", Price: f(3990), Volatility: f(28)},
	}
	tl, stats, err := Prepare(rows, PrepareOptions{DefaultRate: 0.015})
	require.NoError(t, err)

	require.Equal(t, 2, tl.Len())
	d0 := tl.Day(0)
	assert.Equal(t, date("2020-03-04"), d0.Date)
	assert.Equal(t, 4000.0, d0.PrevPrice)
	assert.InDelta(t, 3800.0/4000-1, d0.Return, 1e-12)
	assert.Equal(t, 0.01, d0.Rate)

	d1 := tl.Day(1)
	assert.Equal(t, 3800.0, d1.PrevPrice)
	assert.Equal(t, 0.015, d1.Rate)

	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 3, stats.Dropped) // seed, missing vol, NaN price
}

func TestPrepare_WindowKeepsPriorCloseFromBeforeStart(t *testing.T) {
	rows := []Row{
		{Date: "2020-03-02", Price: f(4000), Volatility: f(20)},
		{Date: "2020-03-03", Price: f(3900), Volatility: f(20)},
		{Date: "2020-03-04", Price: f(3800), Volatility: f(20)},
	}
	tl, stats, err := Prepare(rows, PrepareOptions{Start: date("2020-03-03"), End: date("2020-03-03")})
	require.NoError(t, err)
	require.Equal(t, 1, tl.Len())
	assert.Equal(t, 4000.0, tl.Day(0).PrevPrice)
	assert.Equal(t, 2, stats.OutOfWindow)
}

func TestPrepare_Errors(t *testing.T) {
	_, _, err := Prepare([]Row{{Date: "03/02/2020"}}, PrepareOptions{})
	require.Error(t, err)

	_, _, err = Prepare([]Row{
		{Date: "2020-03-02", Price: f(1), Volatility: f(1)},
		{Date: "2020-03-02", Price: f(1), Volatility: f(1)},
	}, PrepareOptions{})
	require.ErrorContains(t, err, "duplicate")

	_, _, err = Prepare([]Row{{Date: "2020-03-02", Price: f(1), Volatility: f(1)}}, PrepareOptions{})
	require.ErrorIs(t, err, model.ErrEmptyTimeline)
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"date,price,volatility,rate\n"+
			"2020-03-02,4000,20,0.01\n"+
			"2020-03-03,3900,,\n"), 0o644))

	rows, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 4000.0, *rows[0].Price)
	assert.Nil(t, rows[1].Volatility)
	assert.Nil(t, rows[1].Rate)

	out := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(out, rows[:1]))
	again, err := LoadCSV(out)
	require.NoError(t, err)
	assert.Equal(t, rows[:1], again)
}

func TestCache(t *testing.T) {
	c := NewCache[int](time.Hour, 2)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("c", 3)
	assert.Equal(t, 2, c.Len())
	_, ok = c.Get("c")
	assert.True(t, ok)

	c.Clear()
	assert.Zero(t, c.Len())

	var nilCache *Cache[int]
	nilCache.Set("x", 1)
	_, ok = nilCache.Get("x")
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache[string](time.Nanosecond, 0)
	defer c.Close()
	c.Set("k", "v")
	time.Sleep(time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_SetWithTTL(t *testing.T) {
	c := NewCache[string](time.Hour, 0)
	defer c.Close()
	c.SetWithTTL("short", "v", time.Nanosecond)
	c.SetWithTTL("default", "v", 0)
	time.Sleep(time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("default")
	assert.True(t, ok)
}

func TestGetCache_DisabledByDefault(t *testing.T) {
	t.Setenv("ENABLE_FMP_CACHE", "")
	assert.Nil(t, GetCache())

	t.Setenv("ENABLE_FMP_CACHE", "true")
	t.Setenv("API_ENV", "production")
	assert.Nil(t, GetCache())
}

func TestGenerateCacheKey(t *testing.T) {
	a := GenerateCacheKey("^GSPC", "2020-01-01", "2020-12-31")
	assert.Len(t, a, 64)
	assert.Equal(t, a, GenerateCacheKey("^GSPC", "2020-01-01", "2020-12-31"))
	assert.NotEqual(t, a, GenerateCacheKey("^VIX", "2020-01-01", "2020-12-31"))
}

func fmpServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/historical-price-full/^GSPC":
			fmt.Fprint(w, `{"symbol":"^GSPC","historical":[
				{"date":"2020-03-04","close":3800},
				{"date":"2020-03-03","close":3900},
				{"date":"2020-03-02","close":4000}]}`)
		case "/historical-price-full/^VIX":
			fmt.Fprint(w, `{"symbol":"^VIX","historical":[
				{"date":"2020-03-04","close":30},
				{"date":"2020-03-02","close":20}]}`)
		case "/historical-price-full/LIMIT":
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
		case "/historical-price-full/BAD":
			fmt.Fprint(w, `{"Error Message":"Invalid symbol"}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	}))
}

func TestFMPClient_History(t *testing.T) {
	t.Setenv("ENABLE_FMP_CACHE", "")
	srv := fmpServer(t)
	defer srv.Close()

	c := NewFMPClient("test-key", srv.URL, nil)
	got, err := c.History(context.Background(), "^GSPC", date("2020-03-01"), date("2020-03-31"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, date("2020-03-02"), got[0].Date)
	assert.Equal(t, 3800.0, got[2].Value)
}

func TestFMPClient_Errors(t *testing.T) {
	t.Setenv("ENABLE_FMP_CACHE", "")
	srv := fmpServer(t)
	defer srv.Close()
	ctx := context.Background()
	start, end := date("2020-03-01"), date("2020-03-31")

	cases := []struct {
		name   string
		key    string
		symbol string
		code   string
	}{
		{"missing key", "", "^GSPC", "MISSING_API_KEY"},
		{"bad key", "nope", "^GSPC", "INVALID_API_KEY"},
		{"rate limited", "test-key", "LIMIT", "RATE_LIMIT_EXCEEDED"},
		{"api error body", "test-key", "BAD", "API_ERROR"},
		{"empty history", "test-key", "NONE", "NO_DATA"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFMPClient(tc.key, srv.URL, nil).History(ctx, tc.symbol, start, end)
			var fe *FetchError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tc.code, fe.Code)
		})
	}

	_, err := NewFMPClient("test-key", srv.URL, nil).History(ctx, "^GSPC", end, start)
	require.Error(t, err)
}

func TestFMPClient_FetchMarketInnerJoins(t *testing.T) {
	t.Setenv("ENABLE_FMP_CACHE", "")
	srv := fmpServer(t)
	defer srv.Close()

	rows, err := NewFMPClient("test-key", srv.URL, nil).
		FetchMarket(context.Background(), "^GSPC", "^VIX", date("2020-03-01"), date("2020-03-31"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2020-03-02", rows[0].Date)
	assert.Equal(t, 20.0, *rows[0].Volatility)
	assert.Equal(t, "2020-03-04", rows[1].Date)
	assert.Nil(t, rows[1].Rate)
}

func TestFMPClient_CacheTTL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"symbol":"^GSPC","historical":[{"date":"2020-03-02","close":4000}]}`)
	}))
	defer srv.Close()
	ctx := context.Background()
	start, end := date("2020-03-01"), date("2020-03-31")

	cached := NewFMPClient("test-key", srv.URL, nil)
	cached.Cache = NewCache[[]model.DatedValue](time.Hour, 0)
	defer cached.Cache.Close()
	for i := 0; i < 2; i++ {
		_, err := cached.History(ctx, "^GSPC", start, end)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())

	hits.Store(0)
	expiring := NewFMPClient("test-key", srv.URL, nil)
	expiring.Cache = NewCache[[]model.DatedValue](time.Hour, 0)
	expiring.CacheTTL = time.Nanosecond
	defer expiring.Cache.Close()
	for i := 0; i < 2; i++ {
		_, err := expiring.History(ctx, "^GSPC", start, end)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, int32(2), hits.Load())
}
