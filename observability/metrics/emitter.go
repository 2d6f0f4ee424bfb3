package metrics

import (
	"moneymarket/core/events"
	"moneymarket/observability"
)

// EventCounter counts committed events by type.
type EventCounter interface {
	RecordEvent(eventType string)
}

// Emitter feeds committed lending events into the reserve gauges.
type Emitter struct {
	reserves *ReserveMetrics
	counter  EventCounter
}

// NewEmitter returns an emitter backed by the process wide registries.
func NewEmitter() *Emitter {
	return &Emitter{reserves: Reserves(), counter: observability.Events()}
}

// Emit implements events.Emitter.
func (e *Emitter) Emit(evt events.Event) {
	if e == nil || evt == nil {
		return
	}
	if e.counter != nil {
		e.counter.RecordEvent(evt.EventType())
	}
	switch ev := evt.(type) {
	case events.ReserveDataUpdated:
		e.reserves.ObserveReserve(ev.Asset.String(), ev.LiquidityRate, ev.VariableBorrowRate, ev.LiquidityIndex, ev.VariableBorrowIndex)
	case events.MintedToTreasury:
		e.reserves.AddTreasuryMinted(ev.Asset.String(), ev.Amount)
	case events.IsolationModeTotalDebtUpdated:
		e.reserves.SetIsolatedDebt(ev.Asset.String(), ev.TotalDebt)
	case events.ReserveDropped:
		e.reserves.Forget(ev.Asset.String())
	}
}
