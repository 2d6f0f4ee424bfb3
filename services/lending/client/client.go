// Package client is a typed client for the lending HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"moneymarket/services/lending/server"
)

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Body   server.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Body.Kind != "" {
		return fmt.Sprintf("lending api: %d %s (%s/%d)", e.Status, e.Body.Error, e.Body.Kind, e.Body.Code)
	}
	return fmt.Sprintf("lending api: %d %s", e.Status, e.Body.Error)
}

// Client calls a lending API endpoint.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client for baseURL presenting token as a bearer token on
// every request.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr.Body); err != nil {
			apiErr.Body.Error = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) Supply(ctx context.Context, req server.SupplyRequest) (string, error) {
	var out server.AmountResponse
	err := c.do(ctx, http.MethodPost, "/v1/supply", req, &out)
	return out.Amount, err
}

func (c *Client) Withdraw(ctx context.Context, req server.WithdrawRequest) (string, error) {
	var out server.AmountResponse
	err := c.do(ctx, http.MethodPost, "/v1/withdraw", req, &out)
	return out.Amount, err
}

func (c *Client) Borrow(ctx context.Context, req server.BorrowRequest) (string, error) {
	var out server.AmountResponse
	err := c.do(ctx, http.MethodPost, "/v1/borrow", req, &out)
	return out.Amount, err
}

func (c *Client) Repay(ctx context.Context, req server.RepayRequest) (string, error) {
	var out server.AmountResponse
	err := c.do(ctx, http.MethodPost, "/v1/repay", req, &out)
	return out.Amount, err
}

func (c *Client) SetCollateral(ctx context.Context, req server.CollateralRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/collateral", req, nil)
}

func (c *Client) SetUserEMode(ctx context.Context, req server.UserEModeRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/emode", req, nil)
}

func (c *Client) Liquidate(ctx context.Context, req server.LiquidationRequest) (server.LiquidationResponse, error) {
	var out server.LiquidationResponse
	err := c.do(ctx, http.MethodPost, "/v1/liquidations", req, &out)
	return out, err
}

// MintToTreasury mints the treasury share of assets, or of every reserve
// when none are named.
func (c *Client) MintToTreasury(ctx context.Context, assets ...string) (map[string]string, error) {
	var out server.MintResponse
	err := c.do(ctx, http.MethodPost, "/v1/treasury/mint", server.MintToTreasuryRequest{Assets: assets}, &out)
	return out.Minted, err
}

func (c *Client) PublishPrice(ctx context.Context, req server.PriceRequest) (server.PriceResponse, error) {
	var out server.PriceResponse
	err := c.do(ctx, http.MethodPost, "/v1/prices", req, &out)
	return out, err
}

func (c *Client) Price(ctx context.Context, asset string) (server.PriceResponse, error) {
	var out server.PriceResponse
	err := c.do(ctx, http.MethodGet, "/v1/prices/"+url.PathEscape(asset), nil, &out)
	return out, err
}

func (c *Client) Reserves(ctx context.Context) ([]server.ReserveView, error) {
	var out []server.ReserveView
	err := c.do(ctx, http.MethodGet, "/v1/reserves", nil, &out)
	return out, err
}

func (c *Client) Reserve(ctx context.Context, asset string) (server.ReserveView, error) {
	var out server.ReserveView
	err := c.do(ctx, http.MethodGet, "/v1/reserves/"+url.PathEscape(asset), nil, &out)
	return out, err
}

func (c *Client) Account(ctx context.Context, account string) (server.AccountView, error) {
	var out server.AccountView
	err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(account), nil, &out)
	return out, err
}

func (c *Client) Balance(ctx context.Context, account, asset string) (server.BalanceView, error) {
	var out server.BalanceView
	path := "/v1/accounts/" + url.PathEscape(account) + "/balances/" + url.PathEscape(asset)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) EModeCategory(ctx context.Context, id uint8) (server.EModeCategoryView, error) {
	var out server.EModeCategoryView
	err := c.do(ctx, http.MethodGet, "/v1/emode/"+strconv.Itoa(int(id)), nil, &out)
	return out, err
}

// EventFilter narrows Events. Zero values match everything.
type EventFilter struct {
	Type    string
	Asset   string
	Account string
	After   uint64
	Limit   int
}

func (c *Client) Events(ctx context.Context, f EventFilter) ([]server.EventView, error) {
	q := url.Values{}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.Asset != "" {
		q.Set("asset", f.Asset)
	}
	if f.Account != "" {
		q.Set("account", f.Account)
	}
	if f.After > 0 {
		q.Set("after", strconv.FormatUint(f.After, 10))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	path := "/v1/events"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out []server.EventView
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) InitReserve(ctx context.Context, req server.InitReserveRequest) (uint16, error) {
	var out server.IDResponse
	err := c.do(ctx, http.MethodPost, "/v1/reserves", req, &out)
	return out.ID, err
}

func (c *Client) DropReserve(ctx context.Context, caller, asset string) error {
	return c.do(ctx, http.MethodDelete, "/v1/reserves/"+url.PathEscape(asset), server.DropReserveRequest{Caller: caller}, nil)
}

// ConfigureReserve updates one reserve parameter, for example
// "reserve-factor" or "collateral", and returns the updated reserve.
func (c *Client) ConfigureReserve(ctx context.Context, asset, parameter string, req server.ConfigRequest) (server.ReserveView, error) {
	var out server.ReserveView
	path := "/v1/reserves/" + url.PathEscape(asset) + "/" + url.PathEscape(parameter)
	err := c.do(ctx, http.MethodPost, path, req, &out)
	return out, err
}

func (c *Client) SetEModeCategory(ctx context.Context, req server.EModeCategoryRequest) (server.EModeCategoryView, error) {
	var out server.EModeCategoryView
	err := c.do(ctx, http.MethodPost, "/v1/emode-categories", req, &out)
	return out, err
}

func (c *Client) SetPoolPause(ctx context.Context, caller string, paused bool) error {
	return c.do(ctx, http.MethodPost, "/v1/pause", server.PoolPauseRequest{Caller: caller, Paused: paused}, nil)
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}
