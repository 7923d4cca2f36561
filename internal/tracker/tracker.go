// Package tracker simulates fills, partial closes, and equity tracking
// for a single-position-at-a-time backtest.
package tracker

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the position direction.
type Side int

const (
	Flat Side = iota
	SideLong
	SideShort
)

// Position is the open-position record.
type Position struct {
	Side         Side
	Size         decimal.Decimal
	EntryPrice   decimal.Decimal
	EntryTimeMS  int64
	CommissionPaid decimal.Decimal
	Reasons      []string
}

// Trade is a closed-position record.
type Trade struct {
	Side         Side
	Size         decimal.Decimal
	EntryPrice   decimal.Decimal
	ExitPrice    decimal.Decimal
	EntryTimeMS  int64
	ExitTimeMS   int64
	PnL          decimal.Decimal
	EntryReasons []string
	ExitReasons  []string
}

// EquitySnapshot is the per-bar equity record.
type EquitySnapshot struct {
	TimestampMS    int64
	Equity         decimal.Decimal
	UnrealizedPnL  decimal.Decimal
	DrawdownPct    decimal.Decimal
}

// Tracker owns position, capital, and equity state exclusively. It must
// never be shared across goroutines.
type Tracker struct {
	capital        decimal.Decimal
	position       *Position
	trades         []Trade
	equityCurve    []EquitySnapshot
	peakEquity     decimal.Decimal

	SlippagePct   decimal.Decimal
	CommissionPct decimal.Decimal
	SameSidePolicy SameSidePolicy
}

// SameSidePolicy controls behavior when an action is issued on the same
// side as an already-open position. Default is Ignore.
type SameSidePolicy int

const (
	Ignore SameSidePolicy = iota
	Scale
)

// New constructs a Tracker with the given starting capital.
func New(initialCapital float64, slippagePct, commissionPct float64) *Tracker {
	cap := decimal.NewFromFloat(initialCapital)
	return &Tracker{
		capital:       cap,
		peakEquity:    cap,
		SlippagePct:   decimal.NewFromFloat(slippagePct),
		CommissionPct: decimal.NewFromFloat(commissionPct),
	}
}

func sideSign(s Side) decimal.Decimal {
	switch s {
	case SideLong:
		return decimal.NewFromInt(1)
	case SideShort:
		return decimal.NewFromInt(-1)
	default:
		return decimal.Zero
	}
}

// ExecuteAction opens, reverses, or (per policy) ignores/scales a
// position, applying entry slippage and commission.
func (t *Tracker) ExecuteAction(side Side, size, price float64, tsMS int64, reasons []string) error {
	if side == Flat {
		return fmt.Errorf("tracker: cannot execute Flat action")
	}
	p := decimal.NewFromFloat(price)
	sz := decimal.NewFromFloat(size)

	if t.position != nil {
		if t.position.Side == side {
			if t.SameSidePolicy == Ignore {
				return nil
			}
			// Scale: add to the position at a blended entry price.
			t.scaleInto(sz, p)
			return nil
		}
		// Opposite side: close fully, then open new.
		if err := t.closeFull(p, tsMS, reasons); err != nil {
			return err
		}
	}
	return t.open(side, sz, p, tsMS, reasons)
}

func (t *Tracker) open(side Side, size, price decimal.Decimal, tsMS int64, reasons []string) error {
	entryPrice := applyEntrySlippage(side, price, t.SlippagePct)
	notional := size.Mul(entryPrice)
	commission := notional.Mul(t.CommissionPct)
	t.capital = t.capital.Sub(commission)

	t.position = &Position{
		Side: side, Size: size, EntryPrice: entryPrice, EntryTimeMS: tsMS,
		CommissionPaid: commission, Reasons: reasons,
	}
	return nil
}

func applyEntrySlippage(side Side, price, slippagePct decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == SideLong {
		return price.Mul(one.Add(slippagePct))
	}
	return price.Mul(one.Sub(slippagePct))
}

func applyExitSlippage(side Side, price, slippagePct decimal.Decimal) decimal.Decimal {
	// Exit slippage works against the closer: long exits (sells) get a
	// worse (lower) fill; short exits (buys) get a worse (higher) fill.
	one := decimal.NewFromInt(1)
	if side == SideLong {
		return price.Mul(one.Sub(slippagePct))
	}
	return price.Mul(one.Add(slippagePct))
}

func (t *Tracker) scaleInto(addSize, price decimal.Decimal) {
	pos := t.position
	totalSize := pos.Size.Add(addSize)
	blended := pos.EntryPrice.Mul(pos.Size).Add(price.Mul(addSize)).Div(totalSize)
	commission := addSize.Mul(price).Mul(t.CommissionPct)
	t.capital = t.capital.Sub(commission)
	pos.Size = totalSize
	pos.EntryPrice = blended
	pos.CommissionPaid = pos.CommissionPaid.Add(commission)
}

func (t *Tracker) closeFull(price decimal.Decimal, tsMS int64, exitReasons []string) error {
	return t.PartialClose(1.0, toFloat(price), tsMS, exitReasons)
}

// PartialClose realizes a fraction f of the open position at the current
// price. f == 1.0 fully closes; f < 1.0 keeps the remainder at the same
// entry price with reduced size.
func (t *Tracker) PartialClose(f float64, price float64, tsMS int64, exitReasons []string) error {
	if t.position == nil {
		return fmt.Errorf("tracker: no open position to close")
	}
	if f <= 0 || f > 1.0000001 {
		return fmt.Errorf("tracker: close fraction %v out of (0,1]", f)
	}
	pos := t.position
	frac := decimal.NewFromFloat(f)
	exitPrice := applyExitSlippage(pos.Side, decimal.NewFromFloat(price), t.SlippagePct)

	closedSize := pos.Size.Mul(frac)
	sign := sideSign(pos.Side)
	pnl := exitPrice.Sub(pos.EntryPrice).Mul(sign).Mul(closedSize)

	notional := closedSize.Mul(exitPrice)
	exitCommission := notional.Mul(t.CommissionPct)
	// Attribute a pro-rata share of the entry (and any scale-in)
	// commission already charged on open, so Trade.PnL is fully net of
	// commissions and, once flat, the capital ledger below satisfies
	// final_capital = initial_capital + Σ Trade.PnL by construction
	// (equivalently, initial capital + Σ gross PnL − Σ commissions).
	entryShare := pos.CommissionPaid.Mul(frac)
	realized := pnl.Sub(exitCommission).Sub(entryShare)

	t.capital = t.capital.Add(pnl).Sub(exitCommission)

	t.trades = append(t.trades, Trade{
		Side: pos.Side, Size: closedSize, EntryPrice: pos.EntryPrice, ExitPrice: exitPrice,
		EntryTimeMS: pos.EntryTimeMS, ExitTimeMS: tsMS, PnL: realized,
		EntryReasons: pos.Reasons, ExitReasons: exitReasons,
	})

	remaining := pos.Size.Sub(closedSize)
	if remaining.LessThanOrEqual(decimal.Zero) || frac.Equal(decimal.NewFromInt(1)) {
		t.position = nil
	} else {
		pos.Size = remaining
		pos.CommissionPaid = pos.CommissionPaid.Sub(entryShare)
	}
	return nil
}

// MarkToMarket updates the equity curve for the current bar.
func (t *Tracker) MarkToMarket(tsMS int64, markPrice float64) EquitySnapshot {
	unrealized := decimal.Zero
	if t.position != nil {
		sign := sideSign(t.position.Side)
		unrealized = decimal.NewFromFloat(markPrice).Sub(t.position.EntryPrice).Mul(sign).Mul(t.position.Size)
	}
	equity := t.capital.Add(unrealized)
	if equity.GreaterThan(t.peakEquity) {
		t.peakEquity = equity
	}
	drawdown := decimal.Zero
	if t.peakEquity.GreaterThan(decimal.Zero) {
		drawdown = t.peakEquity.Sub(equity).Div(t.peakEquity)
	}
	snap := EquitySnapshot{TimestampMS: tsMS, Equity: equity, UnrealizedPnL: unrealized, DrawdownPct: drawdown}
	t.equityCurve = append(t.equityCurve, snap)
	return snap
}

// Capital returns the current realized capital (excludes unrealized PnL).
func (t *Tracker) Capital() decimal.Decimal { return t.capital }

// Position returns the currently open position, or nil if flat.
func (t *Tracker) Position() *Position { return t.position }

// Trades returns the closed trade log in execution order.
func (t *Tracker) Trades() []Trade { return t.trades }

// EquityCurve returns the recorded equity snapshots in time order.
func (t *Tracker) EquityCurve() []EquitySnapshot { return t.equityCurve }

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
