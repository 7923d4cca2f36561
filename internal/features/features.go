// Package features implements the AS-OF feature store: it turns a
// visible window of candles into a named feature vector, with a
// precomputed fast path and a locally-recomputed slow path.
package features

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/genesis-core/genesis-core/internal/candle"
	"github.com/genesis-core/genesis-core/internal/fib"
	"github.com/genesis-core/genesis-core/internal/indicators"
)

// Vector maps feature name to scalar value.
type Vector map[string]float64

// RequiredKeys are the feature names the reference model depends on.
var RequiredKeys = []string{
	"atr_14", "atr_50", "ema_20", "ema_50", "rsi_14", "bb_position_20_2", "adx_14",
}

// Config configures feature extraction. ATRPeriod must flow through both
// the fast and slow paths; it is never hardcoded.
type Config struct {
	Symbol      string
	Timeframe   string
	ATRPeriod   int
	SwingLookback int
	HTF         []candle.Candle
	HTFRefTS    int64
	Cache       *Cache
}

// Meta carries side information about a feature extraction call.
type Meta struct {
	HTFFibonacci   fib.Context
	ATRPercentiles []float64
	Fingerprint    string
	UsedFastPath   bool
}

// Cache is a precomputed, fingerprinted feature cache keyed by
// (symbol, timeframe, totalBars). It is immutable once built and shared
// read-only across bars within a run.
type Cache struct {
	Symbol      string
	Timeframe   string
	TotalBars   int
	Fingerprint string
	ATR         []float64
	EMA20       []float64
	EMA50       []float64
	RSI14       []float64
	BBPos       []float64
	ADX14       []float64
	// Swing series are intentionally excluded from the cache struct:
	// when a backtest starts mid-history the feature store must
	// recompute swings locally to avoid lookahead via cached indices.
}

// BuildCache precomputes indicator series for the full candle series
// using the canonical ATR period, to be consulted by absolute index
// from the fast path.
func BuildCache(symbol, timeframe string, series *candle.Series, atrPeriod int) (*Cache, error) {
	n := series.Len()
	bars := make([]indicators.Bar, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		c := series.At(i)
		bars[i] = indicators.Bar{High: c.High, Low: c.Low, Close: c.Close}
		closes[i] = c.Close
	}

	atr, err := indicators.ATR(bars, atrPeriod)
	if err != nil && len(atr) == 0 {
		return nil, fmt.Errorf("features: building ATR cache: %w", err)
	}
	ema20, _ := indicators.EMA(closes, 20)
	ema50, _ := indicators.EMA(closes, 50)
	rsi14, _ := indicators.RSI(closes, 14)
	bbpos, _ := indicators.BollingerPercentB(closes, 20, 2.0)
	adx, _ := indicators.ADX(bars, 14)

	c := &Cache{
		Symbol: symbol, Timeframe: timeframe, TotalBars: n,
		ATR: atr, EMA20: ema20, EMA50: ema50, RSI14: rsi14, BBPos: bbpos, ADX14: adx.ADX,
	}
	c.Fingerprint = fingerprintCache(c)
	return c, nil
}

func fingerprintCache(c *Cache) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d", c.Symbol, c.Timeframe, c.TotalBars)
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Matches reports whether this cache is usable for the given series
// identity. On a mismatch (identity or length) Extract falls back to the
// slow path; nothing in this package fails the run on a mismatch.
func (c *Cache) Matches(symbol, timeframe string, totalBars int) bool {
	return c != nil && c.Symbol == symbol && c.Timeframe == timeframe && c.TotalBars == totalBars
}

// Store extracts AS-OF feature vectors from a candle window.
type Store struct{}

// NewStore constructs a feature Store.
func NewStore() *Store { return &Store{} }

// Extract returns the feature vector known strictly at or before
// nowIndex. window must be the caller's full visible history;
// window[nowIndex+1:] is never read. windowStartIdx is not read: the
// cache holds no swing series, so a mid-history start has nothing to
// discard, and ATR/EMA/RSI come from the cache or the slow path alike.
func (s *Store) Extract(window []candle.Candle, cfg Config, nowIndex int, windowStartIdx int) (Vector, Meta, error) {
	if nowIndex < 0 || nowIndex >= len(window) {
		return nil, Meta{}, fmt.Errorf("features: nowIndex %d out of bounds for window of length %d", nowIndex, len(window))
	}
	visible := window[:nowIndex+1]

	var out Vector
	var meta Meta
	var err error

	if cfg.Cache != nil && cfg.Cache.Matches(cfg.Symbol, cfg.Timeframe, len(window)) && nowIndex < len(cfg.Cache.ATR) {
		out, err = s.fastPath(cfg, nowIndex)
		meta.UsedFastPath = true
	} else {
		out, err = s.slowPath(visible, cfg)
		meta.UsedFastPath = false
	}
	if err != nil {
		return nil, Meta{}, err
	}

	for _, k := range RequiredKeys {
		v, ok := out[k]
		if !ok || v != v {
			return nil, Meta{}, fmt.Errorf("features: missing or non-finite required key %q: %w", k, errMissingFeature)
		}
	}

	if cfg.HTF != nil {
		meta.HTFFibonacci = fib.Resolve(cfg.HTF, cfg.HTFRefTS, cfg.SwingLookback)
	}
	meta.ATRPercentiles = atrPercentiles(visible, cfg.ATRPeriod)
	meta.Fingerprint = fingerprintVector(out)
	return out, meta, nil
}

var errMissingFeature = fmt.Errorf("required feature key missing or non-finite")

func (s *Store) fastPath(cfg Config, nowIndex int) (Vector, error) {
	c := cfg.Cache
	v := Vector{
		"atr_14":           valueAt(c.ATR, nowIndex),
		"atr_50":           valueAt(c.ATR, nowIndex), // same ATR series; period configured at cache build
		"ema_20":           valueAt(c.EMA20, nowIndex),
		"ema_50":           valueAt(c.EMA50, nowIndex),
		"rsi_14":           valueAt(c.RSI14, nowIndex),
		"bb_position_20_2": valueAt(c.BBPos, nowIndex),
		"adx_14":           valueAt(c.ADX14, nowIndex),
	}
	return v, nil
}

func (s *Store) slowPath(window []candle.Candle, cfg Config) (Vector, error) {
	bars := make([]indicators.Bar, len(window))
	closes := make([]float64, len(window))
	for i, c := range window {
		bars[i] = indicators.Bar{High: c.High, Low: c.Low, Close: c.Close}
		closes[i] = c.Close
	}

	atrPeriod := cfg.ATRPeriod
	if atrPeriod <= 0 {
		atrPeriod = 14
	}
	atr, _ := indicators.ATR(bars, atrPeriod)
	atr50, _ := indicators.ATR(bars, 50)
	ema20, _ := indicators.EMA(closes, 20)
	ema50, _ := indicators.EMA(closes, 50)
	rsi14, _ := indicators.RSI(closes, 14)
	bbpos, _ := indicators.BollingerPercentB(closes, 20, 2.0)
	adx, _ := indicators.ADX(bars, 14)

	last := len(window) - 1
	return Vector{
		"atr_14":           valueAt(atr, last),
		"atr_50":           valueAt(atr50, last),
		"ema_20":           valueAt(ema20, last),
		"ema_50":           valueAt(ema50, last),
		"rsi_14":           valueAt(rsi14, last),
		"bb_position_20_2": valueAt(bbpos, last),
		"adx_14":           valueAt(adx.ADX, last),
	}, nil
}

func valueAt(series []float64, idx int) float64 {
	if idx < 0 || idx >= len(series) {
		return 0
	}
	v := series[idx]
	if v != v { // NaN during warmup
		return 0
	}
	return v
}

func atrPercentiles(window []candle.Candle, atrPeriod int) []float64 {
	if atrPeriod <= 0 {
		atrPeriod = 14
	}
	bars := make([]indicators.Bar, len(window))
	for i, c := range window {
		bars[i] = indicators.Bar{High: c.High, Low: c.Low, Close: c.Close}
	}
	atr, err := indicators.ATR(bars, atrPeriod)
	if err != nil {
		return nil
	}
	vals := make([]float64, 0, len(atr))
	for _, v := range atr {
		if v == v {
			vals = append(vals, v)
		}
	}
	sort.Float64s(vals)
	if len(vals) == 0 {
		return nil
	}
	pct := func(p float64) float64 {
		idx := int(p * float64(len(vals)-1))
		return vals[idx]
	}
	return []float64{pct(0.1), pct(0.25), pct(0.5), pct(0.75), pct(0.9)}
}

func fingerprintVector(v Vector) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]float64, len(v))
	for _, k := range keys {
		ordered[k] = v[k]
	}
	b, _ := json.Marshal(ordered)
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])[:16]
}
