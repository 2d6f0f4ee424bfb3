package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"moneymarket/core/events"
	"moneymarket/core/genesis"
	"moneymarket/core/pricing"
	"moneymarket/core/state"
	"moneymarket/crypto"
	"moneymarket/native/lending"
	"moneymarket/native/lending/acl"
	"moneymarket/services/lending/client"
	"moneymarket/services/lending/eventstore"
	"moneymarket/services/lending/server"
	"moneymarket/storage"
)

const apiToken = "operator-token"

var genesisTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func account(b byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{b}, crypto.AddressLength))
}

func asset(b byte) crypto.Address {
	return crypto.NewAddress(crypto.AssetPrefix, bytes.Repeat([]byte{b}, crypto.AddressLength))
}

var (
	admin    = account(0xa1)
	user     = account(0x01)
	stranger = account(0x02)
	usdx     = asset(0x01)
)

type fixture struct {
	engine *lending.Engine
	feed   *pricing.Feed
	store  *eventstore.Store
	srv    *httptest.Server
}

func newFixture(t *testing.T, cfg server.Config) *fixture {
	t.Helper()
	spec := genesis.Spec{
		Treasury: account(0xee).String(),
		Roles:    map[string][]string{acl.RolePoolAdmin: {admin.String()}},
		Alloc: map[string]map[string]string{
			user.String():     {usdx.String(): "100000000000"},
			stranger.String(): {usdx.String(): "100000000000"},
		},
		Reserves: []genesis.ReserveSpec{{
			Asset:                usdx.String(),
			Decimals:             8,
			Price:                "100000000",
			Strategy:             genesis.StrategySpec{OptimalUsageBps: 8000, Slope1Bps: 400, Slope2Bps: 7500},
			LTV:                  8000,
			LiquidationThreshold: 8500,
			LiquidationBonus:     10500,
			BorrowingEnabled:     true,
		}},
	}
	raw, err := json.Marshal(spec)
	require.NoError(t, err)
	parsed, err := genesis.ParseSpec(raw)
	require.NoError(t, err)

	st := state.NewManager(storage.NewMemDB())
	feed := pricing.NewFeed(pricing.Guard{MaxDeviationBps: 2000})
	feed.SetClock(func() time.Time { return genesisTime })

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	store, err := eventstore.New(db)
	require.NoError(t, err)

	engine := lending.NewEngine(crypto.Address{})
	engine.SetState(st)
	engine.SetOracle(feed)
	engine.SetEmitter(store)
	engine.SetClock(func() uint64 { return uint64(genesisTime.Unix()) })

	genesis.SeedPrices(parsed, feed)
	require.NoError(t, genesis.Apply(parsed, st, engine))

	cfg.Clock = func() time.Time { return genesisTime }
	srv := httptest.NewServer(server.New(engine, cfg,
		server.WithPriceFeed(feed),
		server.WithEventLog(store),
	).Handler())
	t.Cleanup(srv.Close)
	return &fixture{engine: engine, feed: feed, store: store, srv: srv}
}

func (f *fixture) client(token string) *client.Client {
	return client.New(f.srv.URL, token, client.WithHTTPClient(f.srv.Client()))
}

func requireAPIError(t *testing.T, err error, status int) *client.APIError {
	t.Helper()
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "expected api error, got %v", err)
	require.Equal(t, status, apiErr.Status)
	return apiErr
}

func TestSupplyBorrowRepayFlow(t *testing.T) {
	f := newFixture(t, server.Config{APITokens: []string{apiToken}})
	c := f.client(apiToken)
	ctx := context.Background()

	amount, err := c.Supply(ctx, server.SupplyRequest{Caller: user.String(), Asset: usdx.String(), Amount: "50000000000"})
	require.NoError(t, err)
	require.Equal(t, "50000000000", amount)

	_, err = c.Borrow(ctx, server.BorrowRequest{Caller: user.String(), Asset: usdx.String(), Amount: "10000000000"})
	require.NoError(t, err)

	view, err := c.Account(ctx, user.String())
	require.NoError(t, err)
	require.Equal(t, []string{usdx.String()}, view.Collateral)
	require.Equal(t, []string{usdx.String()}, view.Borrowing)
	require.Equal(t, "50000000000", view.TotalCollateralBase)
	require.Equal(t, "10000000000", view.TotalDebtBase)
	require.Equal(t, "4250000000000000000", view.HealthFactor)

	balance, err := c.Balance(ctx, user.String(), usdx.String())
	require.NoError(t, err)
	require.Equal(t, "50000000000", balance.Receipt)
	require.Equal(t, "10000000000", balance.Debt)
	require.Equal(t, "60000000000", balance.Underlying)

	repaid, err := c.Repay(ctx, server.RepayRequest{Caller: user.String(), Asset: usdx.String(), Amount: server.MaxAmount})
	require.NoError(t, err)
	require.Equal(t, "10000000000", repaid)

	view, err = c.Account(ctx, user.String())
	require.NoError(t, err)
	require.Empty(t, view.Borrowing)

	borrows, err := c.Events(ctx, client.EventFilter{Type: events.TypeBorrow})
	require.NoError(t, err)
	require.Len(t, borrows, 1)
	require.Equal(t, user.String(), borrows[0].Attributes["user"])
	require.Equal(t, "10000000000", borrows[0].Attributes["amount"])

	withdrawn, err := c.Withdraw(ctx, server.WithdrawRequest{Caller: user.String(), Asset: usdx.String(), Amount: server.MaxAmount})
	require.NoError(t, err)
	require.Equal(t, "50000000000", withdrawn)
}

func TestWritesRequireToken(t *testing.T) {
	f := newFixture(t, server.Config{APITokens: []string{apiToken}})
	ctx := context.Background()

	_, err := f.client("").Supply(ctx, server.SupplyRequest{Caller: user.String(), Asset: usdx.String(), Amount: "1"})
	requireAPIError(t, err, http.StatusUnauthorized)

	_, err = f.client("wrong").Supply(ctx, server.SupplyRequest{Caller: user.String(), Asset: usdx.String(), Amount: "1"})
	requireAPIError(t, err, http.StatusUnauthorized)

	reserves, err := f.client("").Reserves(ctx)
	require.NoError(t, err)
	require.Len(t, reserves, 1)
	require.Equal(t, usdx.String(), reserves[0].Asset)
	require.True(t, reserves[0].Configuration.BorrowingEnabled)
}

func TestConfiguratorRolesEnforcedForCaller(t *testing.T) {
	f := newFixture(t, server.Config{APITokens: []string{apiToken}})
	c := f.client(apiToken)
	ctx := context.Background()

	_, err := c.ConfigureReserve(ctx, usdx.String(), "reserve-factor", server.ConfigRequest{Caller: stranger.String(), Value: 2000})
	apiErr := requireAPIError(t, err, http.StatusForbidden)
	require.Equal(t, "authorization", apiErr.Body.Kind)

	view, err := c.ConfigureReserve(ctx, usdx.String(), "reserve-factor", server.ConfigRequest{Caller: admin.String(), Value: 2000})
	require.NoError(t, err)
	require.Equal(t, uint16(2000), view.Configuration.ReserveFactor)

	_, err = c.ConfigureReserve(ctx, usdx.String(), "reserve-factor", server.ConfigRequest{Caller: admin.String(), Value: 70000})
	requireAPIError(t, err, http.StatusBadRequest)

	_, err = c.ConfigureReserve(ctx, usdx.String(), "leverage", server.ConfigRequest{Caller: admin.String()})
	requireAPIError(t, err, http.StatusNotFound)
}

func TestRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t, server.Config{APITokens: []string{apiToken}})
	c := f.client(apiToken)
	ctx := context.Background()

	_, err := c.Supply(ctx, server.SupplyRequest{Caller: user.String(), Asset: user.String(), Amount: "1"})
	requireAPIError(t, err, http.StatusBadRequest)

	_, err = c.Supply(ctx, server.SupplyRequest{Caller: user.String(), Asset: usdx.String(), Amount: "1.5"})
	requireAPIError(t, err, http.StatusBadRequest)

	_, err = c.Reserve(ctx, asset(0x77).String())
	requireAPIError(t, err, http.StatusNotFound)

	_, err = c.EModeCategory(ctx, 3)
	requireAPIError(t, err, http.StatusNotFound)

	_, err = c.Borrow(ctx, server.BorrowRequest{Caller: user.String(), Asset: usdx.String(), Amount: "1"})
	apiErr := requireAPIError(t, err, http.StatusUnprocessableEntity)
	require.Equal(t, "policy_violation", apiErr.Body.Kind)
}

func TestPricePublishing(t *testing.T) {
	f := newFixture(t, server.Config{APITokens: []string{apiToken}})
	c := f.client(apiToken)
	ctx := context.Background()

	quote, err := c.PublishPrice(ctx, server.PriceRequest{Asset: usdx.String(), Price: "101000000", Timestamp: genesisTime.Unix()})
	require.NoError(t, err)
	require.Equal(t, "101000000", quote.Price)
	require.Equal(t, string(pricing.PriceStatusOK), quote.Status)

	_, err = c.PublishPrice(ctx, server.PriceRequest{Asset: usdx.String(), Price: "300000000", Timestamp: genesisTime.Unix()})
	requireAPIError(t, err, http.StatusConflict)

	_, err = c.PublishPrice(ctx, server.PriceRequest{Asset: usdx.String(), Price: "0"})
	requireAPIError(t, err, http.StatusBadRequest)

	current, err := c.Price(ctx, usdx.String())
	require.NoError(t, err)
	require.Equal(t, "101000000", current.Price)

	_, err = c.Price(ctx, asset(0x09).String())
	requireAPIError(t, err, http.StatusServiceUnavailable)
}

func TestAccountQuota(t *testing.T) {
	f := newFixture(t, server.Config{APITokens: []string{apiToken}, AccountQuotaPerMin: 1})
	c := f.client(apiToken)
	ctx := context.Background()

	_, err := c.Supply(ctx, server.SupplyRequest{Caller: user.String(), Asset: usdx.String(), Amount: "100"})
	require.NoError(t, err)
	_, err = c.Supply(ctx, server.SupplyRequest{Caller: user.String(), Asset: usdx.String(), Amount: "100"})
	requireAPIError(t, err, http.StatusTooManyRequests)

	_, err = c.Supply(ctx, server.SupplyRequest{Caller: stranger.String(), Asset: usdx.String(), Amount: "100"})
	require.NoError(t, err)
}

func TestClientRateLimit(t *testing.T) {
	f := newFixture(t, server.Config{RequestsPerMinute: 1, Burst: 1})
	c := f.client("")
	ctx := context.Background()

	_, err := c.Reserves(ctx)
	require.NoError(t, err)
	_, err = c.Reserves(ctx)
	requireAPIError(t, err, http.StatusTooManyRequests)

	require.NoError(t, c.Health(ctx))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, server.Config{})
	resp, err := f.srv.Client().Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
