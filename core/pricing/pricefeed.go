package pricing

import (
	"errors"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/crypto"
)

// PriceStatus captures the health classification assigned to a quote.
type PriceStatus string

const (
	// PriceStatusOK indicates the quote passed all configured guardrails.
	PriceStatusOK PriceStatus = "ok"
	// PriceStatusStale signals the quote exceeded the configured freshness window.
	PriceStatusStale PriceStatus = "stale"
	// PriceStatusDeviant indicates the quote moved further from the last
	// accepted price than the configured threshold.
	PriceStatusDeviant PriceStatus = "deviant"
)

var (
	// ErrInvalidPrice rejects zero or missing prices.
	ErrInvalidPrice = errors.New("pricing: invalid price")
	// ErrOutOfOrder rejects quotes older than the stored one.
	ErrOutOfOrder = errors.New("pricing: quote older than the current observation")
	// ErrDeviantPrice rejects quotes breaching the deviation guard.
	ErrDeviantPrice = errors.New("pricing: quote deviates beyond the configured threshold")
)

// Guard bounds the accepted quotes. Zero disables a check.
type Guard struct {
	MaxAgeSeconds   uint32
	MaxDeviationBps uint32
}

// Quote summarises the feed's view of an asset price.
type Quote struct {
	// Price is the base currency price of one whole token.
	Price *uint256.Int
	// AgeSeconds reports how old the observation is relative to the feed clock.
	AgeSeconds uint32
	// Status classifies the quote as healthy or stale.
	Status PriceStatus
}

type observation struct {
	price     *uint256.Int
	timestamp time.Time
}

// Feed stores published asset prices and serves them to the lending engine.
// Stale observations are reported as unavailable.
type Feed struct {
	mu           sync.RWMutex
	guard        Guard
	clock        func() time.Time
	observations map[[crypto.AddressLength]byte]observation
}

// NewFeed constructs an empty feed enforcing guard.
func NewFeed(guard Guard) *Feed {
	return &Feed{
		guard:        guard,
		clock:        time.Now,
		observations: make(map[[crypto.AddressLength]byte]observation),
	}
}

// SetClock overrides the wall clock used for age checks.
func (f *Feed) SetClock(clock func() time.Time) {
	if f == nil || clock == nil {
		return
	}
	f.mu.Lock()
	f.clock = clock
	f.mu.Unlock()
}

// Publish records a price observed at ts. Quotes breaching the deviation
// guard are not stored and return ErrDeviantPrice.
func (f *Feed) Publish(asset crypto.Address, price *uint256.Int, ts time.Time) (PriceStatus, error) {
	if f == nil {
		return "", errors.New("pricing: feed not initialised")
	}
	if price == nil || price.IsZero() {
		return "", ErrInvalidPrice
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if ts.IsZero() {
		ts = f.clock()
	}
	ts = ts.UTC()
	prev, ok := f.observations[asset.Key()]
	if ok {
		if ts.Before(prev.timestamp) {
			return "", ErrOutOfOrder
		}
		if f.guard.MaxDeviationBps > 0 && deviatesBeyondThreshold(price, prev.price, f.guard.MaxDeviationBps) {
			return PriceStatusDeviant, ErrDeviantPrice
		}
	}
	f.observations[asset.Key()] = observation{price: new(uint256.Int).Set(price), timestamp: ts}
	return f.status(ts), nil
}

// SetPrice records an administrative price at the current time, bypassing
// the deviation guard.
func (f *Feed) SetPrice(asset crypto.Address, price *uint256.Int) {
	if f == nil || price == nil || price.IsZero() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observations[asset.Key()] = observation{price: new(uint256.Int).Set(price), timestamp: f.clock().UTC()}
}

// Quote returns the stored price of asset with its age and status.
func (f *Feed) Quote(asset crypto.Address) (Quote, error) {
	if f == nil {
		return Quote{}, errors.New("pricing: feed not initialised")
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	obs, ok := f.observations[asset.Key()]
	if !ok {
		return Quote{}, lerrors.ErrPriceUnavailable
	}
	return Quote{
		Price:      new(uint256.Int).Set(obs.price),
		AgeSeconds: computeAgeSeconds(obs.timestamp, f.clock()),
		Status:     f.status(obs.timestamp),
	}, nil
}

// AssetPrice implements the lending price oracle. Stale quotes are
// unavailable.
func (f *Feed) AssetPrice(asset crypto.Address) (*uint256.Int, error) {
	quote, err := f.Quote(asset)
	if err != nil {
		return nil, err
	}
	if quote.Status != PriceStatusOK {
		return nil, lerrors.ErrPriceUnavailable
	}
	return quote.Price, nil
}

func (f *Feed) status(observed time.Time) PriceStatus {
	if f.guard.MaxAgeSeconds > 0 && computeAgeSeconds(observed, f.clock()) > f.guard.MaxAgeSeconds {
		return PriceStatusStale
	}
	return PriceStatusOK
}

func computeAgeSeconds(observed, now time.Time) uint32 {
	if observed.IsZero() || now.IsZero() {
		return math.MaxUint32
	}
	observed = observed.UTC()
	now = now.UTC()
	if observed.After(now) {
		return 0
	}
	seconds := now.Sub(observed) / time.Second
	if seconds > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(seconds)
}

func deviatesBeyondThreshold(spot, reference *uint256.Int, thresholdBps uint32) bool {
	if spot == nil || reference == nil || reference.IsZero() {
		return false
	}
	diff := new(big.Rat).SetInt(spot.ToBig())
	diff.Sub(diff, new(big.Rat).SetInt(reference.ToBig()))
	if diff.Sign() < 0 {
		diff.Neg(diff)
	}
	if diff.Sign() == 0 {
		return false
	}
	ratio := new(big.Rat).Quo(diff, new(big.Rat).SetInt(reference.ToBig()))
	ratio.Mul(ratio, big.NewRat(10000, 1))
	threshold := big.NewRat(int64(thresholdBps), 1)
	return ratio.Cmp(threshold) == 1
}
