// Package server exposes the lending engine over a JSON HTTP API.
//
// The API is custodial: operators authenticate with an API token and every
// write names the acting account in its caller field. Role checks are left to
// the engine.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"moneymarket/core/pricing"
	"moneymarket/crypto"
	"moneymarket/native/lending"
	"moneymarket/observability"
	"moneymarket/services/lending/eventstore"
)

const moduleName = "lending"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// PriceFeed publishes and reports oracle prices.
type PriceFeed interface {
	Publish(asset crypto.Address, price *uint256.Int, ts time.Time) (pricing.PriceStatus, error)
	Quote(asset crypto.Address) (pricing.Quote, error)
}

// EventLog serves archived events.
type EventLog interface {
	List(ctx context.Context, q eventstore.Query) ([]eventstore.Record, error)
}

// Config tunes the HTTP surface.
type Config struct {
	// APITokens authenticate write requests. Empty leaves writes open.
	APITokens []string
	// RequestsPerMinute and Burst bound requests per client IP. Zero
	// disables the limit.
	RequestsPerMinute int
	Burst             int
	// AccountQuotaPerMin bounds writes per acting account. Zero disables
	// the quota.
	AccountQuotaPerMin uint32
	Logger             *slog.Logger
	Clock              func() time.Time
}

// Server routes HTTP requests to the lending engine.
type Server struct {
	engine   *lending.Engine
	prices   PriceFeed
	events   EventLog
	auth     *authenticator
	throttle *throttle
	logger   *slog.Logger
	clock    func() time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithPriceFeed enables the price routes.
func WithPriceFeed(feed PriceFeed) Option {
	return func(s *Server) { s.prices = feed }
}

// WithEventLog enables the event history route.
func WithEventLog(log EventLog) Option {
	return func(s *Server) { s.events = log }
}

// New constructs a server over engine.
func New(engine *lending.Engine, cfg Config, opts ...Option) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	s := &Server{
		engine:   engine,
		auth:     newAuthenticator(cfg.APITokens),
		throttle: newThrottle(cfg.RequestsPerMinute, cfg.Burst, cfg.AccountQuotaPerMin, clock),
		logger:   logger.With("component", "lending-api"),
		clock:    clock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.throttle.middleware)

		r.Get("/reserves", s.handleListReserves)
		r.Get("/reserves/{asset}", s.handleGetReserve)
		r.Get("/accounts/{account}", s.handleGetAccount)
		r.Get("/accounts/{account}/balances/{asset}", s.handleGetBalance)
		r.Get("/emode/{id}", s.handleGetEModeCategory)
		r.Get("/events", s.handleListEvents)
		r.Get("/prices/{asset}", s.handleGetPrice)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.middleware)

			r.Post("/supply", s.handleSupply)
			r.Post("/withdraw", s.handleWithdraw)
			r.Post("/borrow", s.handleBorrow)
			r.Post("/repay", s.handleRepay)
			r.Post("/collateral", s.handleCollateral)
			r.Post("/emode", s.handleUserEMode)
			r.Post("/liquidations", s.handleLiquidation)
			r.Post("/treasury/mint", s.handleMintToTreasury)
			r.Post("/prices", s.handlePublishPrice)

			r.Post("/reserves", s.handleInitReserve)
			r.Delete("/reserves/{asset}", s.handleDropReserve)
			r.Post("/reserves/{asset}/{parameter}", s.handleConfigureReserve)
			r.Post("/emode-categories", s.handleSetEModeCategory)
			r.Post("/pause", s.handlePoolPause)
		})
	})

	return otelhttp.NewHandler(r, "lending-api", otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return r.Method + " " + r.URL.Path
	}))
}

// observe records route metrics and a request log line.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := s.clock().Sub(start)
		observability.ModuleMetrics().Observe(moduleName, r.Method+" "+route, status, elapsed)
		s.logger.DebugContext(r.Context(), "lending request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}
