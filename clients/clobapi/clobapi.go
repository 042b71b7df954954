package clobapi

import (
	"bookwatch/config"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ClobApiClient is a read-only client for Polymarket's CLOB and Gamma APIs.
// All outbound requests are gated by a minimum delay between consecutive
// calls, shared across endpoints.
type ClobApiClient struct {
	logger       *zap.Logger
	httpClient   *http.Client
	clobBaseURL  string
	gammaBaseURL string

	rateLimitDelay time.Duration
	rateMu         sync.Mutex
	lastRequest    time.Time
}

func NewClobApiClient(logger *zap.Logger, cfg *config.Config) *ClobApiClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ClobApiClient{
		logger: logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		clobBaseURL:    cfg.Polymarket.ClobAPIURL,
		gammaBaseURL:   cfg.Polymarket.GammaAPIURL,
		rateLimitDelay: cfg.Polymarket.RateLimitDelay,
	}
}

// ---- Gamma API types ----

type GammaMarket struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Question    string `json:"question"`
	Description string `json:"description"`
	ConditionID string `json:"conditionId"`

	ClobTokenIDs json.RawMessage `json:"clobTokenIds"`
	Outcomes     json.RawMessage `json:"outcomes"`

	// Volume metrics
	VolumeNum  float64 `json:"volumeNum"`
	Volume24hr float64 `json:"volume24hr"`
	Liquidity  float64 `json:"liquidityNum"`

	// Status
	Active bool `json:"active"`
	Closed bool `json:"closed"`

	EndDate string `json:"endDate"`
}

// GetTokenIDs parses the ClobTokenIDs field and returns the token IDs.
// Handles both a direct JSON array and a JSON string containing an array.
func (m *GammaMarket) GetTokenIDs() []string {
	return parseMaybeNestedArray(m.ClobTokenIDs)
}

// GetOutcomes parses the Outcomes field and returns the outcome names.
func (m *GammaMarket) GetOutcomes() []string {
	return parseMaybeNestedArray(m.Outcomes)
}

func parseMaybeNestedArray(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	// Direct array
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) > 0 {
		return arr
	}

	// JSON string containing an array, e.g. "[\"Yes\", \"No\"]"
	var jsonStr string
	if err := json.Unmarshal(raw, &jsonStr); err == nil && jsonStr != "" {
		if err := json.Unmarshal([]byte(jsonStr), &arr); err == nil {
			return arr
		}
	}

	return nil
}

// MarketsQuery holds listing filters for GetMarkets.
type MarketsQuery struct {
	Closed       bool
	Limit        int
	Offset       int
	VolumeNumMin float64 // 0 = no volume filter
	EndDateMin   string  // ISO date, "" = no filter
	EndDateMax   string  // ISO date, "" = no filter

	// Sports market types to include, e.g. ["moneyline"]. Empty = all.
	SportsMarketTypes []string
}

// DefaultMarketsQuery returns the listing filters used by the monitors:
// open markets with at least 100k USD volume ending within the next week.
func DefaultMarketsQuery(cfg config.MarketsConfig) MarketsQuery {
	now := time.Now().UTC()
	return MarketsQuery{
		Closed:       false,
		Limit:        cfg.Limit,
		VolumeNumMin: cfg.VolumeNumMin,
		EndDateMin:   now.Format("2006-01-02"),
		EndDateMax:   now.AddDate(0, 0, cfg.EndDateDays).Format("2006-01-02"),
	}
}

// GetMarkets fetches the active-market listing from the Gamma API.
// The returned order is the listing's order; callers depend on it being stable.
func (c *ClobApiClient) GetMarkets(ctx context.Context, q MarketsQuery) ([]GammaMarket, error) {
	u, err := url.Parse(c.gammaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gammaBaseURL: %w", err)
	}
	u.Path = "/markets"

	qs := u.Query()
	qs.Set("closed", fmt.Sprintf("%v", q.Closed))
	if q.Limit > 0 {
		qs.Set("limit", fmt.Sprintf("%d", q.Limit))
	}
	if q.Offset > 0 {
		qs.Set("offset", fmt.Sprintf("%d", q.Offset))
	}
	if q.VolumeNumMin > 0 {
		qs.Set("volume_num_min", fmt.Sprintf("%g", q.VolumeNumMin))
	}
	if q.EndDateMin != "" {
		qs.Set("end_date_min", q.EndDateMin)
	}
	if q.EndDateMax != "" {
		qs.Set("end_date_max", q.EndDateMax)
	}
	for _, t := range q.SportsMarketTypes {
		qs.Add("sports_market_types", t)
	}
	u.RawQuery = qs.Encode()

	var markets []GammaMarket
	if err := c.doGet(ctx, u.String(), &markets); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}

	return markets, nil
}

// ---- CLOB API types ----

// Level is one price level of an orderbook side. The CLOB API encodes
// price and size as decimal strings.
type Level struct {
	Price float64
	Size  float64
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var raw struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fmt.Sscanf(raw.Price, "%f", &l.Price)
	fmt.Sscanf(raw.Size, "%f", &l.Size)
	return nil
}

// Book is a point-in-time orderbook snapshot for one token. Bids are in
// venue order (descending by price), asks ascending.
type Book struct {
	TokenID   string
	Bids      []Level
	Asks      []Level
	Timestamp time.Time
}

// BestBid returns the top bid price, or 0 when the bid side is empty.
func (b *Book) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// BestAsk returns the top ask price, or 0 when the ask side is empty.
func (b *Book) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// Spread holds derived top-of-book metrics for one token.
type Spread struct {
	TokenID   string
	BestBid   float64
	BestAsk   float64
	Mid       float64
	Spread    float64
	SpreadPct float64 // spread / mid * 100
	Timestamp time.Time
}

// ComputeSpread derives top-of-book metrics. Spread is zero unless both
// sides are populated.
func (b *Book) ComputeSpread() Spread {
	s := Spread{
		TokenID:   b.TokenID,
		BestBid:   b.BestBid(),
		BestAsk:   b.BestAsk(),
		Timestamp: b.Timestamp,
	}
	if s.BestBid > 0 && s.BestAsk > 0 {
		s.Spread = s.BestAsk - s.BestBid
		s.Mid = (s.BestBid + s.BestAsk) / 2
		if s.Mid > 0 {
			s.SpreadPct = s.Spread / s.Mid * 100
		}
	}
	return s
}

// Depth holds aggregate size within the top N levels of each side.
type Depth struct {
	TokenID      string
	BidVolume    float64
	AskVolume    float64
	TotalVolume  float64
	Imbalance    float64 // (bid - ask) / total, 0 when the book is empty
	NumBidLevels int
	NumAskLevels int
	Timestamp    time.Time
}

// ComputeDepth sums size across the top `levels` price levels per side.
func (b *Book) ComputeDepth(levels int) Depth {
	bids := b.Bids
	asks := b.Asks
	if levels > 0 {
		if len(bids) > levels {
			bids = bids[:levels]
		}
		if len(asks) > levels {
			asks = asks[:levels]
		}
	}

	d := Depth{
		TokenID:      b.TokenID,
		NumBidLevels: len(bids),
		NumAskLevels: len(asks),
		Timestamp:    b.Timestamp,
	}
	for _, l := range bids {
		d.BidVolume += l.Size
	}
	for _, l := range asks {
		d.AskVolume += l.Size
	}
	d.TotalVolume = d.BidVolume + d.AskVolume
	if d.TotalVolume > 0 {
		d.Imbalance = (d.BidVolume - d.AskVolume) / d.TotalVolume
	}
	return d
}

// GetOrderbook fetches the orderbook snapshot for a token.
func (c *ClobApiClient) GetOrderbook(ctx context.Context, tokenID string) (*Book, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return nil, fmt.Errorf("tokenID is empty")
	}

	u, err := url.Parse(c.clobBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid clobBaseURL: %w", err)
	}
	u.Path = "/book"

	q := u.Query()
	q.Set("token_id", tokenID)
	u.RawQuery = q.Encode()

	var raw struct {
		Bids []Level `json:"bids"`
		Asks []Level `json:"asks"`
	}
	if err := c.doGet(ctx, u.String(), &raw); err != nil {
		return nil, fmt.Errorf("get orderbook: %w", err)
	}

	return &Book{
		TokenID:   tokenID,
		Bids:      raw.Bids,
		Asks:      raw.Asks,
		Timestamp: time.Now(),
	}, nil
}

// GetSpread fetches the orderbook and derives top-of-book metrics.
func (c *ClobApiClient) GetSpread(ctx context.Context, tokenID string) (Spread, error) {
	book, err := c.GetOrderbook(ctx, tokenID)
	if err != nil {
		return Spread{}, err
	}
	return book.ComputeSpread(), nil
}

// GetDepth fetches the orderbook and derives depth metrics for the top
// `levels` price levels per side.
func (c *ClobApiClient) GetDepth(ctx context.Context, tokenID string, levels int) (Depth, error) {
	book, err := c.GetOrderbook(ctx, tokenID)
	if err != nil {
		return Depth{}, err
	}
	return book.ComputeDepth(levels), nil
}

// Trade represents an executed trade from the CLOB trades endpoint.
// Numeric fields arrive as decimal strings.
type Trade struct {
	ID        string `json:"id"`
	TokenID   string `json:"asset_id"`
	Market    string `json:"market"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	MatchTime string `json:"match_time"`
}

// GetPriceFloat returns the price as a float64.
func (t *Trade) GetPriceFloat() float64 {
	var price float64
	fmt.Sscanf(t.Price, "%f", &price)
	return price
}

// GetSizeFloat returns the size as a float64.
func (t *Trade) GetSizeFloat() float64 {
	var size float64
	fmt.Sscanf(t.Size, "%f", &size)
	return size
}

// GetMatchTimeUnix returns the match time as Unix seconds.
func (t *Trade) GetMatchTimeUnix() int64 {
	var ts int64
	fmt.Sscanf(t.MatchTime, "%d", &ts)
	return ts
}

// GetTrades fetches recent trades for a token, newest first per the venue.
func (c *ClobApiClient) GetTrades(ctx context.Context, tokenID string, limit int) ([]Trade, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return nil, fmt.Errorf("tokenID is empty")
	}

	u, err := url.Parse(c.clobBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid clobBaseURL: %w", err)
	}
	u.Path = "/trades"

	q := u.Query()
	q.Set("token_id", tokenID)
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	u.RawQuery = q.Encode()

	var trades []Trade
	if err := c.doGet(ctx, u.String(), &trades); err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}

	return trades, nil
}

// rateLimit blocks until the minimum delay since the previous request has
// elapsed. Holding rateMu across the sleep serializes outbound requests,
// which is the point.
func (c *ClobApiClient) rateLimit() {
	if c.rateLimitDelay <= 0 {
		return
	}

	c.rateMu.Lock()
	defer c.rateMu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < c.rateLimitDelay {
		time.Sleep(c.rateLimitDelay - elapsed)
	}
	c.lastRequest = time.Now()
}

// doGet is a helper that performs a rate-limited GET request and decodes
// the JSON response.
func (c *ClobApiClient) doGet(ctx context.Context, url string, dest any) error {
	c.rateLimit()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}
