// Package indicators provides pure, stateless technical-indicator
// kernels over OHLCV sequences. ATR, EMA, RSI, ADX and BollingerPercentB
// return series the same length as their input, with leading NaN until
// the warmup period is met; FindSwings returns a list of swings.
package indicators

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when an indicator cannot produce any
// valid value because fewer bars than its warmup period were supplied.
var ErrInsufficientData = errors.New("indicators: insufficient data for warmup")

// Bar is the OHLC subset indicators operate on.
type Bar struct {
	High  float64
	Low   float64
	Close float64
}

// ATR computes the Average True Range using Wilder's smoothing. The
// first `period` true-range values are averaged with a simple mean
// (SMA seed); subsequent values use Wilder's recursive smoothing
// (alpha = 1/period).
func ATR(bars []Bar, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("indicators: period must be positive")
	}
	if len(bars) < period+1 {
		return nan(len(bars)), ErrInsufficientData
	}

	tr := trueRanges(bars)
	out := nan(len(bars))

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += tr[i]
	}
	sma /= float64(period)
	out[period] = sma

	alpha := 1.0 / float64(period)
	prev := sma
	for i := period; i < len(tr); i++ {
		prev = prev*(1-alpha) + tr[i]*alpha
		out[i+1] = prev
	}
	return out, nil
}

func trueRanges(bars []Bar) []float64 {
	tr := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		tr[i-1] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// EMA computes the exponential moving average, seeded by a simple
// moving average over the first `period` values.
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("indicators: period must be positive")
	}
	if len(values) < period {
		return nan(len(values)), ErrInsufficientData
	}

	out := nan(len(values))
	sma := 0.0
	for i := 0; i < period; i++ {
		sma += values[i]
	}
	sma /= float64(period)
	out[period-1] = sma

	alpha := 2.0 / (float64(period) + 1.0)
	prev := sma
	for i := period; i < len(values); i++ {
		prev = values[i]*alpha + prev*(1-alpha)
		out[i] = prev
	}
	return out, nil
}

// RSI computes the Relative Strength Index using Wilder's method.
func RSI(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("indicators: period must be positive")
	}
	if len(closes) < period+1 {
		return nan(len(closes)), ErrInsufficientData
	}

	out := nan(len(closes))
	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	alpha := 1.0 / float64(period)
	for i := period; i < len(gains); i++ {
		avgGain = avgGain*(1-alpha) + gains[i]*alpha
		avgLoss = avgLoss*(1-alpha) + losses[i]*alpha
		out[i+1] = rsiFromAverages(avgGain, avgLoss)
	}
	return out, nil
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// ADXResult holds the directional indicators alongside ADX itself.
type ADXResult struct {
	ADX []float64
	PDI []float64
	MDI []float64
}

// ADX computes the Average Directional Index with Wilder-smoothed
// directional movement and true range.
func ADX(bars []Bar, period int) (ADXResult, error) {
	if period <= 0 {
		return ADXResult{}, errors.New("indicators: period must be positive")
	}
	if len(bars) < period*2+1 {
		return ADXResult{ADX: nan(len(bars)), PDI: nan(len(bars)), MDI: nan(len(bars))}, ErrInsufficientData
	}

	tr := make([]float64, len(bars)-1)
	plusDM := make([]float64, len(bars)-1)
	minusDM := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		cur, prev := bars[i], bars[i-1]
		hl := cur.High - cur.Low
		hc := math.Abs(cur.High - prev.Close)
		lc := math.Abs(cur.Low - prev.Close)
		tr[i-1] = math.Max(hl, math.Max(hc, lc))

		upMove := cur.High - prev.High
		downMove := prev.Low - cur.Low
		if upMove > downMove && upMove > 0 {
			plusDM[i-1] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i-1] = downMove
		}
	}

	smoothTR, smoothPlus, smoothMinus := 0.0, 0.0, 0.0
	for i := 0; i < period; i++ {
		smoothTR += tr[i]
		smoothPlus += plusDM[i]
		smoothMinus += minusDM[i]
	}

	alpha := 1.0 / float64(period)
	pdiOut := nan(len(bars))
	mdiOut := nan(len(bars))
	dx := make([]float64, 0, len(tr))

	emit := func(idx int) {
		if smoothTR <= 0 {
			return
		}
		pdi := 100.0 * smoothPlus / smoothTR
		mdi := 100.0 * smoothMinus / smoothTR
		pdiOut[idx] = pdi
		mdiOut[idx] = mdi
		sum := pdi + mdi
		if sum > 0 {
			dx = append(dx, 100.0*math.Abs(pdi-mdi)/sum)
		} else {
			dx = append(dx, 0)
		}
	}
	emit(period)
	for i := period; i < len(tr); i++ {
		smoothTR = smoothTR - smoothTR*alpha + tr[i]*alpha
		smoothPlus = smoothPlus - smoothPlus*alpha + plusDM[i]*alpha
		smoothMinus = smoothMinus - smoothMinus*alpha + minusDM[i]*alpha
		emit(i + 1)
	}

	adxOut := nan(len(bars))
	if len(dx) >= period {
		seed := 0.0
		for i := 0; i < period; i++ {
			seed += dx[i]
		}
		seed /= float64(period)
		firstADXIdx := period + period
		if firstADXIdx < len(adxOut) {
			adxOut[firstADXIdx] = seed
		}
		prev := seed
		for i := period; i < len(dx); i++ {
			prev = prev*(1-alpha) + dx[i]*alpha
			idx := period + i + 1
			if idx < len(adxOut) {
				adxOut[idx] = prev
			}
		}
	}

	return ADXResult{ADX: adxOut, PDI: pdiOut, MDI: mdiOut}, nil
}

// BollingerPercentB computes (close - lower) / (upper - lower), clamped
// to [0,1]. A zero-width band (upper == lower) maps to 0.5.
func BollingerPercentB(closes []float64, period int, numStdDev float64) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("indicators: period must be positive")
	}
	if len(closes) < period {
		return nan(len(closes)), ErrInsufficientData
	}

	out := nan(len(closes))
	for i := period - 1; i < len(closes); i++ {
		window := closes[i-period+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)

		variance := 0.0
		for _, v := range window {
			d := v - mean
			variance += d * d
		}
		variance /= float64(period)
		stdDev := math.Sqrt(variance)

		upper := mean + numStdDev*stdDev
		lower := mean - numStdDev*stdDev
		width := upper - lower
		if width == 0 {
			out[i] = 0.5
			continue
		}
		pb := (closes[i] - lower) / width
		out[i] = math.Max(0, math.Min(1, pb))
	}
	return out, nil
}

// Swing describes the most recent confirmed swing high or low.
type Swing struct {
	Index int
	Price float64
	IsLow bool
}

// FindSwings scans for local maxima/minima confirmed by a strictly
// symmetric k-bar window on both sides (no forward peeking beyond
// bar index+k is required for confirmation, so swings are only
// confirmed k bars after they occur). A neighbour that only equals the
// bar's high (low) does not disqualify it.
func FindSwings(bars []Bar, k int) ([]Swing, error) {
	if k <= 0 {
		return nil, errors.New("indicators: k must be positive")
	}
	if len(bars) < 2*k+1 {
		return nil, ErrInsufficientData
	}

	var swings []Swing
	for i := k; i < len(bars)-k; i++ {
		isHigh, isLow := true, true
		for j := i - k; j <= i+k; j++ {
			if j == i {
				continue
			}
			if bars[j].High > bars[i].High {
				isHigh = false
			}
			if bars[j].Low < bars[i].Low {
				isLow = false
			}
		}
		if isHigh {
			swings = append(swings, Swing{Index: i, Price: bars[i].High, IsLow: false})
		}
		if isLow {
			swings = append(swings, Swing{Index: i, Price: bars[i].Low, IsLow: true})
		}
	}
	return swings, nil
}

// LatestSwingHighLow returns the most recent confirmed swing high and
// low at or before asOfIndex (confirmation requires asOfIndex >= swing
// index + k, enforced by the caller only ever passing bars[:asOfIndex+1]).
func LatestSwingHighLow(bars []Bar, k int) (high, low Swing, ok bool) {
	swings, err := FindSwings(bars, k)
	if err != nil || len(swings) == 0 {
		return Swing{}, Swing{}, false
	}
	var haveHigh, haveLow bool
	for i := len(swings) - 1; i >= 0; i-- {
		s := swings[i]
		if s.IsLow && !haveLow {
			low = s
			haveLow = true
		}
		if !s.IsLow && !haveHigh {
			high = s
			haveHigh = true
		}
		if haveHigh && haveLow {
			break
		}
	}
	return high, low, haveHigh && haveLow
}

func nan(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
