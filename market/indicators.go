package market

import "math"

// 技术指标引擎。所有函数输入输出等长，一个输入周期对应一个输出值；
// 历史不足的位置用 NaN 标记（不是 0）。不持有任何状态。

// Undefined is the warm-up marker used by every indicator series.
var Undefined = math.NaN()

// IsUndefined reports whether a series position holds the warm-up marker.
func IsUndefined(v float64) bool {
	return math.IsNaN(v)
}

// MA calculates the simple moving average. Positions before period-1 are
// undefined.
func MA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 {
		for i := range out {
			out[i] = Undefined
		}
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i < period-1 {
			out[i] = Undefined
		} else {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA calculates the exponential moving average. The seed is the simple
// average of the first period values, placed at index period-1; earlier
// indices pass through the raw inputs (兼容常见行情软件的口径，不留空).
// Inputs shorter than period are returned unchanged.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if period <= 0 || len(values) < period {
		return out
	}

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	out[period-1] = seed / float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// MACDResult holds the three MACD series, each aligned with the input.
type MACDResult struct {
	DIF []float64 `json:"dif"`
	DEA []float64 `json:"dea"`
	BAR []float64 `json:"bar"`
}

// MACD calculates DIF/DEA/BAR with the given periods (常用 12/26/9).
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)

	dif := make([]float64, len(closes))
	for i := range closes {
		dif[i] = emaFast[i] - emaSlow[i]
	}

	dea := EMA(dif, signal)

	bar := make([]float64, len(closes))
	for i := range closes {
		bar[i] = (dif[i] - dea[i]) * 2
	}
	return MACDResult{DIF: dif, DEA: dea, BAR: bar}
}

// RSI calculates the relative strength index over close prices. The output
// is aligned with the input; the first period+1 positions are undefined.
// When the window has no losses RSI is 100 by convention.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = Undefined
	}
	if period <= 0 || len(closes) < 2 {
		return out
	}

	deltas := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		deltas[i-1] = closes[i] - closes[i-1]
	}

	for i := period + 1; i < len(closes); i++ {
		gains, losses := 0.0, 0.0
		for _, d := range deltas[i-period : i] {
			if d > 0 {
				gains += d
			} else {
				losses -= d
			}
		}
		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)

		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// BollResult holds the three Bollinger Band series.
type BollResult struct {
	Upper  []float64 `json:"upper"`
	Middle []float64 `json:"middle"`
	Lower  []float64 `json:"lower"`
}

// Boll calculates Bollinger Bands: middle is MA(period), the bands are
// width population standard deviations away.
func Boll(closes []float64, period int, width float64) BollResult {
	middle := MA(closes, period)
	upper := make([]float64, len(closes))
	lower := make([]float64, len(closes))

	for i := range closes {
		if i < period-1 || period <= 0 {
			upper[i] = Undefined
			lower[i] = Undefined
			continue
		}
		window := closes[i-period+1 : i+1]
		mean := middle[i]
		variance := 0.0
		for _, v := range window {
			d := v - mean
			variance += d * d
		}
		std := math.Sqrt(variance / float64(period))
		upper[i] = mean + width*std
		lower[i] = mean - width*std
	}
	return BollResult{Upper: upper, Middle: middle, Lower: lower}
}

// KDJResult holds the K/D/J series.
type KDJResult struct {
	K []float64 `json:"k"`
	D []float64 `json:"d"`
	J []float64 `json:"j"`
}

// KDJ calculates the stochastic KDJ indicator. RSV uses an n-day window;
// K and D are smoothed with 1/m1 and 1/m2 weights, both seeded at 50.
// A flat window (high == low) yields RSV 50 instead of dividing by zero.
// The first n positions are undefined.
func KDJ(highs, lows, closes []float64, n, m1, m2 int) KDJResult {
	size := len(closes)
	k := make([]float64, size)
	d := make([]float64, size)
	j := make([]float64, size)
	for i := 0; i < size && i < n; i++ {
		k[i] = Undefined
		d[i] = Undefined
		j[i] = Undefined
	}

	prevK, prevD := 50.0, 50.0
	for i := n; i < size; i++ {
		hi, lo := highs[i-n+1], lows[i-n+1]
		for _, h := range highs[i-n+1 : i+1] {
			if h > hi {
				hi = h
			}
		}
		for _, l := range lows[i-n+1 : i+1] {
			if l < lo {
				lo = l
			}
		}

		rsv := 50.0
		if hi != lo {
			rsv = (closes[i] - lo) / (hi - lo) * 100
		}

		prevK = (float64(m1-1)*prevK + rsv) / float64(m1)
		prevD = (float64(m2-1)*prevD + prevK) / float64(m2)
		k[i] = prevK
		d[i] = prevD
		j[i] = 3*prevK - 2*prevD
	}
	return KDJResult{K: k, D: d, J: j}
}

// ATR calculates the average true range: the EMA of the true-range series.
func ATR(highs, lows, closes []float64, period int) []float64 {
	tr := make([]float64, len(closes))
	for i := range closes {
		hl := highs[i] - lows[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return EMA(tr, period)
}

// OBV calculates on-balance volume, seeded with the first period's volume.
func OBV(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	out[0] = volumes[0]
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// VolumeMA calculates the moving average of volume.
func VolumeMA(volumes []float64, period int) []float64 {
	return MA(volumes, period)
}

// Nullable converts a series to pointers for JSON output: undefined
// positions become nil (encoding/json rejects NaN).
func Nullable(series []float64) []*float64 {
	out := make([]*float64, len(series))
	for i, v := range series {
		if IsUndefined(v) {
			continue
		}
		v := v
		out[i] = &v
	}
	return out
}
