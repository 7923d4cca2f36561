// Package backtest implements the bar-by-bar backtest engine: a
// single-threaded, cooperative pipeline per run, orchestrating the
// feature store, model adapter, confidence/regime classifier, decision
// engine, position tracker, and HTF exit engine in that order.
package backtest

import (
	"fmt"

	"github.com/genesis-core/genesis-core/internal/candle"
	"github.com/genesis-core/genesis-core/internal/confidence"
	"github.com/genesis-core/genesis-core/internal/decision"
	cerrors "github.com/genesis-core/genesis-core/internal/errors"
	"github.com/genesis-core/genesis-core/internal/exits"
	"github.com/genesis-core/genesis-core/internal/features"
	"github.com/genesis-core/genesis-core/internal/metrics"
	"github.com/genesis-core/genesis-core/internal/model"
	"github.com/genesis-core/genesis-core/internal/tracker"
)

// ModeFlags captures the canonical-mode environment flags.
type ModeFlags struct {
	FastWindow         bool
	PrecomputeFeatures bool
	ModeExplicit       bool
	HTFExits           bool
}

// EnforceCanonicalMode applies the mode-enforcement rule: fast_window
// requires precompute_features, and that mismatched combination is fatal
// unless mode_explicit overrides it. Whether a feature cache matches the
// series is not checked here.
func EnforceCanonicalMode(flags ModeFlags) error {
	if flags.FastWindow && !flags.PrecomputeFeatures && !flags.ModeExplicit {
		return cerrors.FatalConfig("fast_window=true requires GENESIS_PRECOMPUTE_FEATURES=1 (set GENESIS_MODE_EXPLICIT=1 to override)", nil)
	}
	return nil
}

// Config bundles everything one backtest run needs. Commission has no
// zero-value fallback: it must be supplied by internal/config's
// mandatory-field enforcement before Config is constructed.
type Config struct {
	Symbol, Timeframe string
	WarmupBars        int
	InitialCapital    float64
	CommissionPct     float64
	SlippagePct       float64

	FeaturesCfg features.Config
	ModelKeyFn  func(regime confidence.Regime) model.Key
	Adapter     *model.Adapter
	DecisionCfg decision.Config
	ExitsCfg    exits.Config
	Quality     confidence.QualityFactors

	StopLossATRMultiplier   float64
	TakeProfitATRMultiplier float64
	MaxHoldBars             int

	Flags ModeFlags

	BarsPerYear float64

	// Registry collects gate-block counters for this run. Nil is valid
	// and disables counting entirely.
	Registry *metrics.Registry
}

// Info carries run metadata for the result file's backtest_info section.
type Info struct {
	ConfigFingerprint string
	FastWindow        bool
	HTFEnabled        bool
	FeatureCacheHits  int
	FeatureCacheMiss  int
	RuntimeVersion    string
}

// Result is everything the CLI needs to write the backtest result file:
// summary, trades, equity curve, metrics, and run info.
type Result struct {
	Trades        []tracker.Trade
	EquityCurve   []tracker.EquitySnapshot
	TradeMetrics  metrics.TradeMetrics
	EquityMetrics metrics.EquityMetrics
	DecileReport  metrics.DecileReport
	Score         float64
	Info          Info
	BarReasons    []decision.Reason
}

// Engine runs one backtest over a candle series. One Engine instance
// owns exactly one Tracker and one decision.State; never share an
// Engine across goroutines — its mutable state is not synchronized.
type Engine struct {
	cfg     Config
	tr      *tracker.Tracker
	store   *features.Store
	state   decision.State
	exitCtx *exits.Context

	barsSinceEntry int
	confAtEntry    []float64
	cacheHits      int
	cacheMiss      int
}

// NewEngine constructs an Engine, enforcing canonical-mode rules up front.
func NewEngine(cfg Config) (*Engine, error) {
	if err := EnforceCanonicalMode(cfg.Flags); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:   cfg,
		tr:    tracker.New(cfg.InitialCapital, cfg.SlippagePct, cfg.CommissionPct),
		store: features.NewStore(),
	}, nil
}

// Run executes the per-bar pipeline over series, from WarmupBars to the
// last bar.
func (e *Engine) Run(series []candle.Candle) (*Result, error) {
	if len(series) <= e.cfg.WarmupBars {
		return nil, cerrors.FatalData(fmt.Sprintf("series length %d does not exceed warmup_bars %d", len(series), e.cfg.WarmupBars), nil)
	}

	var barReasons []decision.Reason

	for i := e.cfg.WarmupBars; i < len(series); i++ {
		window := series[:i+1] // AS-OF: candles[0..i], view not copy
		bar := series[i]

		vec, meta, err := e.store.Extract(window, e.cfg.FeaturesCfg, i, 0)
		if err != nil {
			return nil, cerrors.FatalData("feature extraction failed", err)
		}
		if meta.UsedFastPath {
			e.cacheHits++
		} else {
			e.cacheMiss++
		}

		// Regime is resolved against a neutral classification first so
		// the model adapter can be keyed by regime; Classify below
		// recomputes the authoritative confidence/regime/zone triple.
		probasRegime := confidence.Balanced
		key := e.cfg.ModelKeyFn(probasRegime)
		probas, err := e.cfg.Adapter.Score(key, vec)
		if err != nil {
			return nil, cerrors.FatalConfig("model scoring failed", err)
		}

		conf, regime, zone := confidence.Classify(probas, vec, e.cfg.Quality)
		atr := vec["atr_14"]

		in := decision.Input{Probas: probas, Confidence: conf, Regime: regime, Zone: zone}
		action, dmeta := decision.Evaluate(in, &e.state, e.cfg.DecisionCfg)
		barReasons = append(barReasons, dmeta.Reason)
		if dmeta.Reason != decision.ReasonNone {
			e.cfg.Registry.RecordGateBlock(dmeta.Reason.String())
		}

		if err := e.manageOpenPosition(bar, atr, meta); err != nil {
			return nil, err
		}

		if action != decision.None && dmeta.Size > 0 {
			if err := e.openPosition(action, dmeta.Size, bar, atr, meta, conf.Overall, dmeta.Reason); err != nil {
				return nil, err
			}
		}

		e.tr.MarkToMarket(bar.TimestampMS, bar.Close)
		if e.tr.Position() != nil {
			e.barsSinceEntry++
		}
	}

	trades := e.tr.Trades()
	curve := e.tr.EquityCurve()
	tm := metrics.ComputeTradeMetrics(trades)
	em := metrics.ComputeEquityMetrics(curve, e.cfg.InitialCapital, e.cfg.BarsPerYear)
	score := metrics.CompositeScore(em, tm)
	decileReport := metrics.ComputeDecileReport(trades, e.confAtEntry)

	return &Result{
		Trades:        trades,
		EquityCurve:   curve,
		TradeMetrics:  tm,
		EquityMetrics: em,
		DecileReport:  decileReport,
		Score:         score,
		BarReasons:    barReasons,
		Info: Info{
			FastWindow:       e.cfg.Flags.FastWindow,
			HTFEnabled:       e.cfg.Flags.HTFExits,
			FeatureCacheHits: e.cacheHits,
			FeatureCacheMiss: e.cacheMiss,
		},
	}, nil
}

func (e *Engine) openPosition(action decision.Action, sizePct float64, bar candle.Candle, atr float64, meta features.Meta, confAtEntry float64, reason decision.Reason) error {
	side := tracker.SideLong
	if action == decision.Short {
		side = tracker.SideShort
	}
	equity, _ := e.tr.Capital().Float64()
	qty := equity * sizePct / bar.Close
	if err := e.tr.ExecuteAction(side, qty, bar.Close, bar.TimestampMS, []string{reason.String()}); err != nil {
		return fmt.Errorf("backtest: executing action: %w", err)
	}
	e.confAtEntry = append(e.confAtEntry, confAtEntry)
	e.barsSinceEntry = 0
	if meta.HTFFibonacci.IsAvailable() {
		e.exitCtx = exits.NewContext(meta.HTFFibonacci, bar.Close, atr)
	} else {
		e.exitCtx = nil
	}
	return nil
}

// manageOpenPosition checks HTF exits and traditional stop/TP/max-hold
// exits for a currently open position.
func (e *Engine) manageOpenPosition(bar candle.Candle, atr float64, meta features.Meta) error {
	pos := e.tr.Position()
	if pos == nil {
		return nil
	}
	isLong := pos.Side == tracker.SideLong

	if e.cfg.Flags.HTFExits && e.exitCtx != nil {
		if exits.ShouldRefresh(e.exitCtx, e.cfg.ExitsCfg, atr) && meta.HTFFibonacci.IsAvailable() {
			exits.Refresh(e.exitCtx, meta.HTFFibonacci, atr)
		}
		act := exits.Evaluate(e.exitCtx, e.cfg.ExitsCfg, isLong, bar.Close, atr)
		switch act.Kind {
		case exits.Partial:
			if err := e.tr.PartialClose(act.Fraction, bar.Close, bar.TimestampMS, []string{act.Reason.String()}); err != nil {
				return fmt.Errorf("backtest: partial exit: %w", err)
			}
		case exits.FullExit:
			if err := e.tr.PartialClose(1.0, bar.Close, bar.TimestampMS, []string{act.Reason.String()}); err != nil {
				return fmt.Errorf("backtest: full exit: %w", err)
			}
			e.exitCtx = nil
			return nil
		}
	}

	entryPrice, _ := pos.EntryPrice.Float64()
	sign := 1.0
	if !isLong {
		sign = -1.0
	}
	stopPrice := entryPrice - sign*e.cfg.StopLossATRMultiplier*atr
	tpPrice := entryPrice + sign*e.cfg.TakeProfitATRMultiplier*atr

	hitStop := (isLong && bar.Low <= stopPrice) || (!isLong && bar.High >= stopPrice)
	hitTP := (isLong && bar.High >= tpPrice) || (!isLong && bar.Low <= tpPrice)
	maxHold := e.cfg.MaxHoldBars > 0 && e.barsSinceEntry >= e.cfg.MaxHoldBars

	switch {
	case hitStop:
		if err := e.tr.PartialClose(1.0, stopPrice, bar.TimestampMS, []string{"STOP_LOSS"}); err != nil {
			return fmt.Errorf("backtest: stop-loss exit: %w", err)
		}
		e.exitCtx = nil
	case hitTP && e.exitCtx == nil:
		if err := e.tr.PartialClose(1.0, tpPrice, bar.TimestampMS, []string{"TAKE_PROFIT"}); err != nil {
			return fmt.Errorf("backtest: take-profit exit: %w", err)
		}
	case maxHold:
		if err := e.tr.PartialClose(1.0, bar.Close, bar.TimestampMS, []string{"MAX_HOLD_BARS"}); err != nil {
			return fmt.Errorf("backtest: max-hold exit: %w", err)
		}
		e.exitCtx = nil
	}
	return nil
}
