package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"futures-connect-go/errs"
	"futures-connect-go/order"
)

const (
	// DefaultBasePath USDⓈ-M 合约 REST 前缀
	DefaultBasePath      = "/fapi/v1"
	DefaultRecvWindow    = 30 * time.Second
	DefaultTimestampSkew = 15 * time.Second

	apiKeyHeader = "X-MBX-APIKEY"
)

var timeNowMillis = func() int64 { return time.Now().UnixMilli() }

// RequestMetrics 记录每个 REST 调用的结果与耗时。
type RequestMetrics interface {
	ObserveRequest(endpoint, outcome string, elapsed time.Duration)
}

type authMode int

const (
	authNone   authMode = iota // ping/time
	authKey                    // listenKey：只带 key 头
	authSigned                 // order：key 头 + timestamp/recvWindow/signature
)

// BinanceRESTClient 签名 REST 客户端；HTTPClient 可注入 httptest。
// RecvWindow 为零时不发送 recvWindow；TimestampSkew 从本地时间中扣除，抵消本地时钟偏快。
type BinanceRESTClient struct {
	BaseURL       string
	BasePath      string
	APIKey        string
	Secret        string
	HTTPClient    *http.Client
	RecvWindow    time.Duration
	TimestampSkew time.Duration
	Limiter       RateLimiter
	Logger        *zap.Logger
	Metrics       RequestMetrics
}

var _ order.Exchange = (*BinanceRESTClient)(nil)

// Ping GET /ping；任何非 200 都视为交易所不可用。
func (c *BinanceRESTClient) Ping(ctx context.Context) error {
	start := time.Now()
	resp, err := c.send(ctx, http.MethodGet, "/ping", nil, authNone)
	if err != nil {
		c.observe("GET /ping", err, start)
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("ping status %d: %w", resp.StatusCode, errs.ErrExchangeUnavailable)
	}
	c.observe("GET /ping", err, start)
	return err
}

// ServerTime GET /time，返回交易所时间（epoch ms）。
func (c *BinanceRESTClient) ServerTime(ctx context.Context) (int64, error) {
	var out serverTimeResponse
	if err := c.do(ctx, http.MethodGet, "/time", nil, authNone, &out); err != nil {
		return 0, err
	}
	return out.ServerTime, nil
}

// NewListenKey POST /listenKey 获取用户数据流 key。
func (c *BinanceRESTClient) NewListenKey(ctx context.Context) (string, error) {
	var out listenKeyResponse
	if err := c.do(ctx, http.MethodPost, "/listenKey", nil, authKey, &out); err != nil {
		return "", err
	}
	if out.ListenKey == "" {
		return "", errs.NewProtocolError("POST /listenKey", http.StatusOK, "", fmt.Errorf("empty listenKey"))
	}
	return out.ListenKey, nil
}

// KeepAliveListenKey PUT /listenKey 延长当前 key 的有效期（60 分钟）。
func (c *BinanceRESTClient) KeepAliveListenKey(ctx context.Context, _ string) error {
	return c.do(ctx, http.MethodPut, "/listenKey", nil, authKey, nil)
}

// CloseListenKey DELETE /listenKey 关闭用户数据流。
func (c *BinanceRESTClient) CloseListenKey(ctx context.Context, _ string) error {
	return c.do(ctx, http.MethodDelete, "/listenKey", nil, authKey, nil)
}

// PlaceOrder POST /order；只发送一次。
func (c *BinanceRESTClient) PlaceOrder(ctx context.Context, req order.PlaceRequest) (*order.Order, error) {
	p := NewParams().
		Add("symbol", req.Symbol).
		Add("newClientOrderId", req.ClientOrderID).
		Add("side", string(req.Side)).
		Add("type", string(req.Type)).
		Add("quantity", req.Quantity.String())
	if !req.Price.IsZero() {
		p.Add("price", req.Price.String())
	}
	p.Add("timeInForce", string(req.TimeInForce))
	var out order.Order
	if err := c.do(ctx, http.MethodPost, "/order", p, authSigned, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryOrder GET /order，按 origClientOrderId 查询。
func (c *BinanceRESTClient) QueryOrder(ctx context.Context, symbol, clientOrderID string) (*order.Order, error) {
	p := NewParams().Add("symbol", symbol).Add("origClientOrderId", clientOrderID)
	var out order.Order
	if err := c.do(ctx, http.MethodGet, "/order", p, authSigned, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelOrder DELETE /order，按 origClientOrderId 撤单。
func (c *BinanceRESTClient) CancelOrder(ctx context.Context, symbol, clientOrderID string) (*order.Order, error) {
	p := NewParams().Add("symbol", symbol).Add("origClientOrderId", clientOrderID)
	var out order.Order
	if err := c.do(ctx, http.MethodDelete, "/order", p, authSigned, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do 发送请求并按状态码分类：200 解码，400 -> ProcessingError，其它 -> ProtocolError。
func (c *BinanceRESTClient) do(ctx context.Context, method, path string, params *Params, auth authMode, out any) (err error) {
	op := method + " " + path
	start := time.Now()
	defer func() { c.observe(op, err, start) }()

	resp, err := c.send(ctx, method, path, params, auth)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, rerr := io.ReadAll(resp.Body)
		if rerr != nil {
			return errs.NewTransportError(op, rerr)
		}
		if derr := decodeJSON(body, out); derr != nil {
			return errs.NewProtocolError(op, resp.StatusCode, truncate(body), derr)
		}
		return nil
	case http.StatusBadRequest:
		body := readLimited(resp.Body)
		var er errorResponse
		if derr := json.Unmarshal(body, &er); derr != nil || er.Code == 0 {
			return errs.NewProtocolError(op, resp.StatusCode, string(body), derr)
		}
		return errs.NewProcessingError(er.Code, er.Msg)
	default:
		return errs.NewProtocolError(op, resp.StatusCode, string(readLimited(resp.Body)), nil)
	}
}

func (c *BinanceRESTClient) send(ctx context.Context, method, path string, params *Params, auth authMode) (*http.Response, error) {
	op := method + " " + path
	if c == nil || c.HTTPClient == nil {
		return nil, &errs.ConfigurationError{Field: "httpClient", Reason: "http client not set"}
	}
	if auth != authNone && c.APIKey == "" {
		return nil, &errs.ConfigurationError{Field: "apiKey", Reason: "api key is empty"}
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, errs.NewTransportError(op, err)
		}
	}

	query := params.Encode()
	if auth == authSigned {
		if params == nil {
			params = NewParams()
		}
		if c.RecvWindow > 0 {
			params.AddInt("recvWindow", c.RecvWindow.Milliseconds())
		}
		params.AddInt("timestamp", timeNowMillis()-c.TimestampSkew.Milliseconds())
		query = params.Encode()
		sig, err := Sign(query, c.Secret)
		if err != nil {
			return nil, err
		}
		query += "&signature=" + sig
	}

	endpoint := c.BaseURL + c.basePath() + path
	if query != "" {
		endpoint += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, &errs.ConfigurationError{Field: "baseURL", Reason: err.Error()}
	}
	if auth != authNone {
		req.Header.Set(apiKeyHeader, c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errs.NewTransportError(op, err)
	}
	return resp, nil
}

func (c *BinanceRESTClient) basePath() string {
	if c.BasePath == "" {
		return DefaultBasePath
	}
	return c.BasePath
}

func (c *BinanceRESTClient) observe(op string, err error, start time.Time) {
	elapsed := time.Since(start)
	if c == nil {
		return
	}
	if c.Metrics != nil {
		c.Metrics.ObserveRequest(op, errs.Kind(err), elapsed)
	}
	if c.Logger == nil {
		return
	}
	if err != nil {
		c.Logger.Warn("rest call failed",
			zap.String("endpoint", op),
			zap.String("kind", errs.Kind(err)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	c.Logger.Debug("rest call", zap.String("endpoint", op), zap.Duration("elapsed", elapsed))
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
