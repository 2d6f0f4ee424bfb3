package lending

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"

	lerrors "moneymarket/core/errors"
	"moneymarket/core/events"
	"moneymarket/crypto"
	nativecommon "moneymarket/native/common"
	"moneymarket/native/lending/acl"
	"moneymarket/native/lending/oracle"
	"moneymarket/native/lending/reserve"
	"moneymarket/native/lending/tokens"
	"moneymarket/observability"
)

var (
	errNilState  = errors.New("lending engine: state not configured")
	errNilOracle = errors.New("lending engine: price oracle not configured")
)

const moduleName = "lending"

// Token account labels mixed into derived receipt and debt token addresses.
const (
	receiptTokenLabel = "receipt"
	debtTokenLabel    = "variable-debt"
)

type engineState interface {
	tokens.ScaledStore
	tokens.BalanceStore
	acl.RoleReader

	Reserve(asset crypto.Address) (*reserve.Data, error)
	PutReserve(data *reserve.Data) error
	DeleteReserve(asset crypto.Address) error
	ReservesList() ([]crypto.Address, error)
	PutReservesList(list []crypto.Address) error
	UserConfiguration(user crypto.Address) (reserve.UserConfiguration, error)
	PutUserConfiguration(user crypto.Address, cfg reserve.UserConfiguration) error
	UserEMode(user crypto.Address) (uint8, error)
	PutUserEMode(user crypto.Address, id uint8) error
	EModeCategory(id uint8) (*reserve.EModeCategory, error)
	PutEModeCategory(id uint8, category *reserve.EModeCategory) error

	Snapshot() int
	RevertToSnapshot(id int)
	Commit() error
}

// Engine executes the lending pool's state transitions. Every mutating call
// holds the engine lock for its whole duration and either commits all of its
// writes in one batch or none of them. Events are emitted only after a
// successful commit.
type Engine struct {
	mu       sync.Mutex
	state    engineState
	oracle   oracle.PriceOracle
	emitter  events.Emitter
	logger   *slog.Logger
	clock    func() uint64
	treasury crypto.Address
	pauses   nativecommon.PauseView
	metrics  *observability.LendingMetrics
}

// NewEngine constructs an engine that credits protocol income to treasury.
func NewEngine(treasury crypto.Address) *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		logger:   slog.Default(),
		clock:    func() uint64 { return uint64(time.Now().Unix()) },
		treasury: treasury,
		metrics:  observability.Lending(),
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetOracle configures the price feed used for risk calculations.
func (e *Engine) SetOracle(o oracle.PriceOracle) {
	if e == nil {
		return
	}
	e.oracle = o
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger.With(slog.String("component", moduleName))
}

// SetClock overrides the source of the current unix timestamp.
func (e *Engine) SetClock(clock func() uint64) {
	if e == nil || clock == nil {
		return
	}
	e.clock = clock
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetTreasury changes the account receiving minted reserve income and
// liquidation protocol fees.
func (e *Engine) SetTreasury(treasury crypto.Address) {
	if e == nil {
		return
	}
	e.treasury = treasury
}

// Treasury returns the configured treasury account.
func (e *Engine) Treasury() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.treasury
}

// execute runs fn atomically. guarded operations are refused while the
// module is paused.
func (e *Engine) execute(op string, guarded bool, fn func(tx *txn) error) (err error) {
	if e == nil || e.state == nil {
		return errNilState
	}
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		e.metrics.ObserveOperation(op, time.Since(start), err)
		if err != nil {
			e.logger.Debug("lending operation rejected",
				slog.String("op", op),
				slog.String("kind", lerrors.KindOf(err).String()),
				slog.Any("error", err))
		}
	}()
	if guarded {
		if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
			return err
		}
	}

	tx := e.newTxn()
	snapshot := e.state.Snapshot()
	if err := fn(tx); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	if err := e.state.Commit(); err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	for _, evt := range tx.events {
		e.emitter.Emit(evt)
	}
	return nil
}

// view runs a read-only fn under the engine lock and discards any staged
// writes.
func (e *Engine) view(fn func(tx *txn) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := e.state.Snapshot()
	defer e.state.RevertToSnapshot(snapshot)
	return fn(e.newTxn())
}

func (e *Engine) newTxn() *txn {
	return &txn{
		state:    e.state,
		oracle:   e.oracle,
		treasury: e.treasury,
		logger:   e.logger,
		metrics:  e.metrics,
		now:      e.clock(),
		reserves: make(map[[crypto.AddressLength]byte]*reserve.Data),
	}
}

// txn is the working set of one engine call.
type txn struct {
	state    engineState
	oracle   oracle.PriceOracle
	treasury crypto.Address
	logger   *slog.Logger
	metrics  *observability.LendingMetrics
	now      uint64
	reserves map[[crypto.AddressLength]byte]*reserve.Data
	events   []events.Event
}

func (tx *txn) emit(evt events.Event) {
	tx.events = append(tx.events, evt)
}

// reserve loads a listed reserve. Repeated loads within one call return the
// same record so that both legs of a same-asset operation see each other's
// updates.
func (tx *txn) reserve(asset crypto.Address) (*reserve.Data, error) {
	if cached, ok := tx.reserves[asset.Key()]; ok {
		return cached, nil
	}
	data, err := tx.state.Reserve(asset)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, lerrors.ErrAssetNotListed
	}
	tx.reserves[asset.Key()] = data
	return data, nil
}

func (tx *txn) putReserve(data *reserve.Data) error {
	tx.reserves[data.Asset.Key()] = data
	return tx.state.PutReserve(data)
}

func (tx *txn) forgetReserve(asset crypto.Address) {
	delete(tx.reserves, asset.Key())
}

func (tx *txn) receiptLedger(r *reserve.Data) *tokens.ScaledLedger {
	return tokens.NewScaledLedger(tx.state, r.ReceiptToken)
}

func (tx *txn) debtLedger(r *reserve.Data) *tokens.ScaledLedger {
	return tokens.NewScaledLedger(tx.state, r.DebtToken)
}

func (tx *txn) underlying(r *reserve.Data) *tokens.Underlying {
	return tokens.NewUnderlying(tx.state, r.Asset)
}

func (tx *txn) price(source crypto.Address) (*uint256.Int, error) {
	if tx.oracle == nil {
		return nil, errNilOracle
	}
	price, err := tx.oracle.AssetPrice(source)
	if err != nil {
		return nil, err
	}
	if price == nil || price.IsZero() {
		return nil, lerrors.ErrPriceUnavailable
	}
	return price, nil
}

// reserveByID resolves a reserve slot. Holes resolve to nil.
func (tx *txn) reserveByID(list []crypto.Address, id uint16) (*reserve.Data, error) {
	if int(id) >= len(list) || list[id].IsZero() {
		return nil, nil
	}
	data, err := tx.reserve(list[id])
	if err != nil {
		return nil, err
	}
	if data.ID != id {
		return nil, lerrors.ErrReserveListMismatch
	}
	return data, nil
}

// DeriveTokenAddresses returns the receipt and debt token accounts of the
// reserve for asset.
func DeriveTokenAddresses(asset crypto.Address) (receipt, debt crypto.Address) {
	receipt = crypto.DeriveAddress(crypto.TokenPrefix, []byte(receiptTokenLabel), asset.Bytes())
	debt = crypto.DeriveAddress(crypto.TokenPrefix, []byte(debtTokenLabel), asset.Bytes())
	return receipt, debt
}
