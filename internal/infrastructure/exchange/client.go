// Package exchange is the only part of the system that performs network
// I/O against the trading venue: REST candle/funding fetches satisfying
// sync.MarketDataSource, and order placement satisfying the orchestrator's
// OrderSink boundary. Every call is rate-limited and circuit-broken so a
// degrading venue degrades a cycle instead of the process.
package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/bobdamio/tradeengine/internal/domain"
)

const (
	// FuturesBaseURL is the production futures REST endpoint.
	FuturesBaseURL = "https://fapi.binance.com"
	// FuturesTestnetURL is the sandbox endpoint used outside live trading.
	FuturesTestnetURL = "https://testnet.binancefuture.com"
)

var tfInterval = map[domain.Timeframe]string{
	domain.TF5m:  "5m",
	domain.TF15m: "15m",
	domain.TF1h:  "1h",
}

// Client is a rate-limited, circuit-broken REST client against a Binance
// Futures-compatible venue. It satisfies sync.MarketDataSource and the
// orchestrator's OrderSink.
type Client struct {
	apiKey, secretKey string
	baseURL           string
	httpClient        *http.Client
	limiter           *rate.Limiter
	breaker           *gobreaker.CircuitBreaker
	log               zerolog.Logger
}

// Config configures a Client.
type Config struct {
	APIKey, SecretKey string
	Testnet           bool
	RequestsPerSecond float64
	Burst             int
}

// New builds a Client with a token-bucket limiter and a circuit breaker
// mirroring the pipeline's consecutive-failure/failure-rate trip policy.
func New(cfg Config, log zerolog.Logger) *Client {
	baseURL := FuturesBaseURL
	if cfg.Testnet {
		baseURL = FuturesTestnetURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}

	st := gobreaker.Settings{
		Name:     "exchange-client",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
	}

	return &Client{
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker:    gobreaker.NewCircuitBreaker(st),
		log:        log.With().Str("component", "exchange.Client").Logger(),
	}
}

// FetchClosedCandles satisfies sync.MarketDataSource.
func (c *Client) FetchClosedCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	body, err := c.publicGet(ctx, "/fapi/v1/klines", url.Values{
		"symbol":   {symbol},
		"interval": {tfInterval[tf]},
		"limit":    {strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, err
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse klines: %w", err)
	}

	candles := make([]domain.Candle, 0, len(raw))
	for _, row := range raw {
		if len(row) < 7 {
			continue
		}
		candles = append(candles, domain.Candle{
			OpenTime:  msToTime(row[0]),
			Open:      parseFloat(row[1]),
			High:      parseFloat(row[2]),
			Low:       parseFloat(row[3]),
			Close:     parseFloat(row[4]),
			Volume:    parseFloat(row[5]),
			CloseTime: msToTime(row[6]),
		})
	}

	// The last element of a closed-candle request may still be forming;
	// the live leg is fetched separately, so drop it here.
	if len(candles) > 0 && time.Since(candles[len(candles)-1].CloseTime) < 0 {
		candles = candles[:len(candles)-1]
	}

	return candles, nil
}

// FetchLiveCandle satisfies sync.MarketDataSource by requesting the single
// most recent (possibly still-forming) candle.
func (c *Client) FetchLiveCandle(ctx context.Context, symbol string, tf domain.Timeframe) (domain.Candle, error) {
	body, err := c.publicGet(ctx, "/fapi/v1/klines", url.Values{
		"symbol":   {symbol},
		"interval": {tfInterval[tf]},
		"limit":    {"1"},
	})
	if err != nil {
		return domain.Candle{}, err
	}

	var raw [][]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Candle{}, fmt.Errorf("parse live candle: %w", err)
	}
	if len(raw) == 0 || len(raw[0]) < 7 {
		return domain.Candle{}, fmt.Errorf("empty live candle response for %s/%s", symbol, tf)
	}

	row := raw[0]
	return domain.Candle{
		OpenTime:  msToTime(row[0]),
		Open:      parseFloat(row[1]),
		High:      parseFloat(row[2]),
		Low:       parseFloat(row[3]),
		Close:     parseFloat(row[4]),
		Volume:    parseFloat(row[5]),
		CloseTime: msToTime(row[6]),
	}, nil
}

type fundingRateResp struct {
	FundingRate string `json:"lastFundingRate"`
}

type openInterestResp struct {
	OpenInterest string `json:"openInterest"`
}

// FetchFunding satisfies sync.MarketDataSource. InstitutionalNetflow1h has
// no equivalent public REST endpoint on most venues; it is left zero here,
// and nothing else in the pipeline fills it in. OpenInterest24hAgo is also
// left zero.
func (c *Client) FetchFunding(ctx context.Context, symbol string) (domain.FundingSnapshot, error) {
	premiumBody, err := c.publicGet(ctx, "/fapi/v1/premiumIndex", url.Values{"symbol": {symbol}})
	if err != nil {
		return domain.FundingSnapshot{}, err
	}
	var premium fundingRateResp
	if err := json.Unmarshal(premiumBody, &premium); err != nil {
		return domain.FundingSnapshot{}, fmt.Errorf("parse premium index: %w", err)
	}

	oiBody, err := c.publicGet(ctx, "/fapi/v1/openInterest", url.Values{"symbol": {symbol}})
	if err != nil {
		return domain.FundingSnapshot{}, err
	}
	var oi openInterestResp
	if err := json.Unmarshal(oiBody, &oi); err != nil {
		return domain.FundingSnapshot{}, fmt.Errorf("parse open interest: %w", err)
	}

	rate, _ := strconv.ParseFloat(premium.FundingRate, 64)
	openInterest, _ := strconv.ParseFloat(oi.OpenInterest, 64)

	return domain.FundingSnapshot{
		FundingRate:  rate,
		OpenInterest: openInterest,
	}, nil
}

// Submit places a market order keyed by (snapshot_id, symbol) in
// newClientOrderId for idempotent retries. No stop-loss or take-profit
// order is attached; order.StopLoss and order.TakeProfit are not sent.
func (c *Client) Submit(ctx context.Context, order domain.ProposedOrder) domain.ExecutionResult {
	result := domain.ExecutionResult{SnapshotID: order.SnapshotID, Symbol: order.Symbol}

	side := "BUY"
	if order.Action == domain.ActionShort {
		side = "SELL"
	}

	params := url.Values{
		"symbol":           {order.Symbol},
		"side":             {side},
		"type":             {"MARKET"},
		"quantity":         {strconv.FormatFloat(order.Qty, 'f', -1, 64)},
		"newClientOrderId": {fmt.Sprintf("%s-%s", order.SnapshotID, order.Symbol)},
	}

	body, err := c.signedPost(ctx, "/fapi/v1/order", params)
	if err != nil {
		result.Status = domain.ExecUnknown
		result.Err = err
		return result
	}

	var resp struct {
		OrderID       int64  `json:"orderId"`
		Status        string `json:"status"`
		ExecutedQty   string `json:"executedQty"`
		AvgPrice      string `json:"avgPrice"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		result.Status = domain.ExecUnknown
		result.Err = fmt.Errorf("parse order response: %w", err)
		return result
	}

	result.OrderID = strconv.FormatInt(resp.OrderID, 10)
	result.FilledQty, _ = strconv.ParseFloat(resp.ExecutedQty, 64)
	result.FilledPrice, _ = strconv.ParseFloat(resp.AvgPrice, 64)
	switch resp.Status {
	case "FILLED", "PARTIALLY_FILLED":
		result.Status = domain.ExecFilled
	case "REJECTED", "EXPIRED", "CANCELED":
		result.Status = domain.ExecRejected
	default:
		result.Status = domain.ExecUnknown
	}
	return result
}

func (c *Client) publicGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	return c.do(ctx, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, params.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		return c.send(req)
	})
}

func (c *Client) signedPost(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	return c.do(ctx, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		signature := c.sign(params.Encode())
		params.Set("signature", signature)

		reqURL := fmt.Sprintf("%s%s", c.baseURL, endpoint)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewBufferString(params.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
		return c.send(req)
	})
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// do wraps fn in the circuit breaker so a degrading venue trips open after
// three consecutive failures or a >5% failure rate over 20+ requests.
func (c *Client) do(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("exchange request failed")
		return nil, err
	}
	return res.([]byte), nil
}

func parseFloat(v interface{}) float64 {
	s, ok := v.(string)
	if ok {
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
	f, _ := v.(float64)
	return f
}

func msToTime(v interface{}) time.Time {
	ms, ok := v.(float64)
	if !ok {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}
