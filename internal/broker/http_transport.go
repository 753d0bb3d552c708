package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/epic1st/execengine/internal/domain/order"
	"github.com/epic1st/execengine/internal/domain/values"
	"github.com/epic1st/execengine/internal/resilience"
)

// HTTPTransport is a generic REST Transport: Bearer-token auth, a
// shared *http.Client, JSON request/response bodies. It never retries
// or classifies errors itself — Adapter owns that — it only translates
// non-2xx responses into a CategorizableError carrying the information
// Adapter's resilience layer needs (AuthenticationFailedError for 401/403,
// transportError otherwise).
type HTTPTransport struct {
	baseURL string
	apiKey string
	accountID string
	httpClient *http.Client
}

func NewHTTPTransport(baseURL, apiKey, accountID string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		apiKey: apiKey,
		accountID: accountID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// transportError implements CategorizableError from an HTTP status code,
// the same status-class mapping as resilience.CategorizeHTTPStatus.
type transportError struct {
	status int
	body string
	retryAfter time.Duration
}

func (e *transportError) Error() string {
	return fmt.Sprintf("broker HTTP %d: %s", e.status, e.body)
}

func (e *transportError) Category() resilience.Category {
	return resilience.CategorizeHTTPStatus(e.status)
}

func (e *transportError) RetryAfter() time.Duration { return e.retryAfter }

func (t *HTTPTransport) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return &AuthenticationFailedError{Detail: string(respBody)}
	}
	if resp.StatusCode >= 400 {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &transportError{status: resp.StatusCode, body: string(respBody), retryAfter: retryAfter}
	}

	if out != nil && len(respBody) > 0 {
		return json.Unmarshal(respBody, out)
	}
	return nil
}

func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	secs, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}

type submitOrderWire struct {
	ClientOrderID string `json:"client_order_id"`
	Symbol string `json:"symbol"`
	Side string `json:"side"`
	Type string `json:"type"`
	Quantity string `json:"quantity"`
	LimitPrice string `json:"limit_price,omitempty"`
	StopPrice string `json:"stop_price,omitempty"`
	TIF string `json:"time_in_force"`
	Legs []legWire `json:"legs,omitempty"`
	NetLimitPrice string `json:"net_limit_price,omitempty"`
}

type legWire struct {
	InstrumentID string `json:"instrument_id"`
	Side string `json:"side"`
	RatioQty int `json:"ratio_qty"`
}

type submitOrderResponse struct {
	BrokerOrderID string `json:"broker_order_id"`
	Status string `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (t *HTTPTransport) SubmitOrder(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	wire := submitOrderWire{
		ClientOrderID: req.ClientOrderID,
		Symbol: req.Symbol.String(),
		Side: string(req.Side),
		Type: string(req.OrderType),
		Quantity: req.Quantity.String(),
		TIF: string(req.TIF),
	}
	if req.LimitPrice != nil {
		wire.LimitPrice = req.LimitPrice.String()
	}
	if req.StopPrice != nil {
		wire.StopPrice = req.StopPrice.String()
	}
	if req.NetLimitPrice != nil {
		wire.NetLimitPrice = req.NetLimitPrice.String()
	}
	for _, l := range req.Legs {
		wire.Legs = append(wire.Legs, legWire{InstrumentID: l.InstrumentID.String(), Side: string(l.Side), RatioQty: l.RatioQty})
	}

	var resp submitOrderResponse
	if err := t.do(ctx, http.MethodPost, "/v1/accounts/"+t.accountID+"/orders", wire, &resp); err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{
		BrokerOrderID: values.BrokerId(resp.BrokerOrderID),
		Status: order.Status(resp.Status),
		SubmittedAt: resp.SubmittedAt,
	}, nil
}

type orderStatusResponse struct {
	BrokerOrderID string `json:"broker_order_id"`
	Symbol string `json:"symbol"`
	Status string `json:"status"`
	CumQty string `json:"cum_qty"`
	LeavesQty string `json:"leaves_qty"`
	AvgPx string `json:"avg_px"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *HTTPTransport) GetOrderStatus(ctx context.Context, brokerOrderID values.BrokerId) (OrderStatus, error) {
	var resp orderStatusResponse
	if err := t.do(ctx, http.MethodGet, "/v1/accounts/"+t.accountID+"/orders/"+brokerOrderID.String(), nil, &resp); err != nil {
		return OrderStatus{}, err
	}
	sym, err := values.NewSymbol(resp.Symbol)
	if err != nil {
		return OrderStatus{}, err
	}
	cumQty, err := values.QuantityFromString(resp.CumQty)
	if err != nil {
		return OrderStatus{}, err
	}
	leavesQty, err := values.QuantityFromString(resp.LeavesQty)
	if err != nil {
		return OrderStatus{}, err
	}
	avgPx, err := values.MoneyFromString(resp.AvgPx)
	if err != nil {
		return OrderStatus{}, err
	}
	return OrderStatus{
		BrokerOrderID: values.BrokerId(resp.BrokerOrderID),
		Symbol: sym,
		Status: order.Status(resp.Status),
		CumQty: cumQty,
		LeavesQty: leavesQty,
		AvgPx: avgPx,
		UpdatedAt: resp.UpdatedAt,
	}, nil
}

func (t *HTTPTransport) CancelOrder(ctx context.Context, brokerOrderID values.BrokerId) error {
	return t.do(ctx, http.MethodDelete, "/v1/accounts/"+t.accountID+"/orders/"+brokerOrderID.String(), nil, nil)
}

type accountResponse struct {
	Equity string `json:"equity"`
	Cash string `json:"cash"`
	BuyingPower string `json:"buying_power"`
	MarginUsed string `json:"margin_used"`
	RemainingBuyingPowerRatio float64 `json:"remaining_buying_power_ratio"`
}

func (t *HTTPTransport) GetAccount(ctx context.Context) (Account, error) {
	var resp accountResponse
	if err := t.do(ctx, http.MethodGet, "/v1/accounts/"+t.accountID, nil, &resp); err != nil {
		return Account{}, err
	}
	equity, err := values.MoneyFromString(resp.Equity)
	if err != nil {
		return Account{}, err
	}
	cash, err := values.MoneyFromString(resp.Cash)
	if err != nil {
		return Account{}, err
	}
	bp, err := values.MoneyFromString(resp.BuyingPower)
	if err != nil {
		return Account{}, err
	}
	mu, err := values.MoneyFromString(resp.MarginUsed)
	if err != nil {
		return Account{}, err
	}
	return Account{
		Equity: equity, Cash: cash, BuyingPower: bp, MarginUsed: mu,
		RemainingBuyingPowerRatio: resp.RemainingBuyingPowerRatio,
	}, nil
}

type positionResponse struct {
	Symbol string `json:"symbol"`
	Quantity string `json:"quantity"`
	AvgPrice string `json:"avg_price"`
	UnrealizedPL string `json:"unrealized_pl"`
}

func (t *HTTPTransport) GetPositions(ctx context.Context) ([]Position, error) {
	var resp []positionResponse
	if err := t.do(ctx, http.MethodGet, "/v1/accounts/"+t.accountID+"/positions", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]Position, 0, len(resp))
	for _, p := range resp {
		sym, err := values.NewSymbol(p.Symbol)
		if err != nil {
			return nil, err
		}
		qty, err := values.QuantityFromString(p.Quantity)
		if err != nil {
			return nil, err
		}
		avg, err := values.MoneyFromString(p.AvgPrice)
		if err != nil {
			return nil, err
		}
		pl, err := values.MoneyFromString(p.UnrealizedPL)
		if err != nil {
			return nil, err
		}
		out = append(out, Position{Symbol: sym, Quantity: qty, AvgPrice: avg, UnrealizedPL: pl})
	}
	return out, nil
}

func (t *HTTPTransport) GetBars(ctx context.Context, symbols []values.Symbol, timeframe string, start, end time.Time, limit int) ([]Bar, error) {
	var bars []Bar
	params := map[string]interface{}{
		"symbols": symbolStrings(symbols), "timeframe": timeframe,
		"start": start, "end": end, "limit": limit,
	}
	if err := t.do(ctx, http.MethodGet, "/v1/bars", params, &bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func (t *HTTPTransport) GetQuotes(ctx context.Context, symbols []values.Symbol) ([]Quote, error) {
	var quotes []Quote
	if err := t.do(ctx, http.MethodGet, "/v1/quotes", map[string]interface{}{"symbols": symbolStrings(symbols)}, &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

func (t *HTTPTransport) GetOptionSnapshots(ctx context.Context, underlying values.Symbol) ([]OptionSnapshot, error) {
	var snaps []OptionSnapshot
	if err := t.do(ctx, http.MethodGet, "/v1/options/"+underlying.String()+"/snapshots", nil, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (t *HTTPTransport) HealthCheck(ctx context.Context) (HealthStatus, error) {
	if err := t.do(ctx, http.MethodGet, "/v1/health", nil, nil); err != nil {
		return HealthStatus{Healthy: false, Detail: err.Error(), CheckedAt: time.Now()}, nil
	}
	return HealthStatus{Healthy: true, CheckedAt: time.Now()}, nil
}

func symbolStrings(symbols []values.Symbol) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = s.String()
	}
	return out
}
