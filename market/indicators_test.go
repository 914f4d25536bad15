package market

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMA(t *testing.T) {
	got := MA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{Undefined, Undefined, 2, 3, 4}

	if len(got) != len(want) {
		t.Fatalf("length mismatch: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if IsUndefined(want[i]) {
			if !IsUndefined(got[i]) {
				t.Errorf("index %d should be undefined, got %f", i, got[i])
			}
		} else if !almostEqual(got[i], want[i]) {
			t.Errorf("index %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestMAShortInput(t *testing.T) {
	for _, v := range MA([]float64{1, 2}, 5) {
		if !IsUndefined(v) {
			t.Errorf("input shorter than period should be all undefined, got %f", v)
		}
	}
}

func TestEMASeed(t *testing.T) {
	data := []float64{2, 4, 6, 8, 10}
	got := EMA(data, 3)

	// indices before the seed pass through raw input
	if got[0] != 2 || got[1] != 4 {
		t.Errorf("leading values should pass through: %v", got[:2])
	}
	// seed at index period-1 is the SMA of the first period values
	if !almostEqual(got[2], 4) {
		t.Errorf("seed = %f, want 4", got[2])
	}
	// next value: (8-4)*0.5 + 4 = 6
	if !almostEqual(got[3], 6) {
		t.Errorf("got[3] = %f, want 6", got[3])
	}
}

func TestEMAShortInputPassesThrough(t *testing.T) {
	data := []float64{1, 2, 3}
	got := EMA(data, 5)
	for i := range data {
		if got[i] != data[i] {
			t.Errorf("short input should be returned unchanged, index %d: %f", i, got[i])
		}
	}
}

func TestMACDLengths(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	res := MACD(closes, 12, 26, 9)

	if len(res.DIF) != len(closes) || len(res.DEA) != len(closes) || len(res.BAR) != len(closes) {
		t.Fatalf("MACD series must match input length: dif=%d dea=%d bar=%d", len(res.DIF), len(res.DEA), len(res.BAR))
	}
	last := len(closes) - 1
	if !almostEqual(res.BAR[last], (res.DIF[last]-res.DEA[last])*2) {
		t.Errorf("BAR should be (DIF-DEA)*2")
	}
	// a steady uptrend keeps the fast EMA above the slow one
	if res.DIF[last] <= 0 {
		t.Errorf("DIF should be positive in an uptrend, got %f", res.DIF[last])
	}
}

func TestRSITooShortAllUndefined(t *testing.T) {
	closes := make([]float64, 14)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	for i, v := range RSI(closes, 14) {
		if !IsUndefined(v) {
			t.Errorf("index %d should be undefined with only %d points, got %f", i, len(closes), v)
		}
	}
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(10 + i)
	}
	rsi := RSI(closes, 14)

	if len(rsi) != len(closes) {
		t.Fatalf("length mismatch: %d vs %d", len(rsi), len(closes))
	}
	last := rsi[len(rsi)-1]
	if !almostEqual(last, 100) {
		t.Errorf("all-gain window should give RSI 100, got %f", last)
	}
}

func TestRSIRange(t *testing.T) {
	closes := []float64{10, 12, 11, 13, 12, 14, 13, 15, 14, 16, 15, 17, 16, 18, 17, 19, 18, 20}
	rsi := RSI(closes, 14)
	v := rsi[len(rsi)-1]
	if IsUndefined(v) || v <= 0 || v >= 100 {
		t.Errorf("mixed moves should give RSI strictly inside (0,100), got %f", v)
	}
}

func TestBoll(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	res := Boll(closes, 5, 2.0)

	for i := 0; i < 4; i++ {
		if !IsUndefined(res.Upper[i]) || !IsUndefined(res.Middle[i]) || !IsUndefined(res.Lower[i]) {
			t.Errorf("index %d should be undefined", i)
		}
	}
	// mean 3, population std sqrt(2)
	std := math.Sqrt(2)
	if !almostEqual(res.Middle[4], 3) {
		t.Errorf("middle = %f, want 3", res.Middle[4])
	}
	if !almostEqual(res.Upper[4], 3+2*std) || !almostEqual(res.Lower[4], 3-2*std) {
		t.Errorf("bands = %f/%f, want %f/%f", res.Upper[4], res.Lower[4], 3+2*std, 3-2*std)
	}
}

func TestKDJFlatWindow(t *testing.T) {
	n := 9
	size := n + 2
	highs := make([]float64, size)
	lows := make([]float64, size)
	closes := make([]float64, size)
	for i := 0; i < size; i++ {
		highs[i], lows[i], closes[i] = 10, 10, 10
	}

	res := KDJ(highs, lows, closes, n, 3, 3)
	if len(res.K) != size {
		t.Fatalf("K length %d, want %d", len(res.K), size)
	}
	for i := 0; i < n; i++ {
		if !IsUndefined(res.K[i]) {
			t.Errorf("index %d should be undefined", i)
		}
	}
	// flat window: RSV pinned to 50, smoothing from the 50 seed stays at 50
	if !almostEqual(res.K[n], 50) || !almostEqual(res.D[n], 50) || !almostEqual(res.J[n], 50) {
		t.Errorf("flat window should hold KDJ at 50, got K=%f D=%f J=%f", res.K[n], res.D[n], res.J[n])
	}
}

func TestKDJRecurrence(t *testing.T) {
	n := 9
	size := n + 1
	highs := make([]float64, size)
	lows := make([]float64, size)
	closes := make([]float64, size)
	for i := 0; i < size; i++ {
		highs[i] = float64(10 + i)
		lows[i] = float64(5 + i)
		closes[i] = float64(8 + i)
	}

	res := KDJ(highs, lows, closes, n, 3, 3)
	// window at i=n: high 19, low 6, close 17 → RSV = 11/13*100
	rsv := (closes[n] - 6) / (19 - 6) * 100
	wantK := (2*50 + rsv) / 3
	wantD := (2*50 + wantK) / 3
	if !almostEqual(res.K[n], wantK) || !almostEqual(res.D[n], wantD) {
		t.Errorf("K=%f D=%f, want K=%f D=%f", res.K[n], res.D[n], wantK, wantD)
	}
	if !almostEqual(res.J[n], 3*wantK-2*wantD) {
		t.Errorf("J=%f, want %f", res.J[n], 3*wantK-2*wantD)
	}
}

func TestATR(t *testing.T) {
	highs := []float64{12, 13, 14}
	lows := []float64{10, 11, 12}
	closes := []float64{11, 12, 13}

	atr := ATR(highs, lows, closes, 2)
	if len(atr) != 3 {
		t.Fatalf("length mismatch: %d", len(atr))
	}
	// tr[0] = 2; tr[1] = max(2, |13-11|, |11-11|) = 2; tr[2] = 2
	// EMA(period 2): seed (2+2)/2 = 2, then stays 2
	for i, v := range atr {
		if !almostEqual(v, 2) {
			t.Errorf("atr[%d] = %f, want 2", i, v)
		}
	}
}

func TestOBV(t *testing.T) {
	closes := []float64{10, 11, 11, 9}
	volumes := []float64{100, 200, 300, 400}

	got := OBV(closes, volumes)
	want := []float64{100, 300, 300, -100}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("obv[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestOBVEmpty(t *testing.T) {
	if got := OBV(nil, nil); len(got) != 0 {
		t.Errorf("empty input should give empty output, got %v", got)
	}
}

func TestNullable(t *testing.T) {
	out := Nullable([]float64{Undefined, 1.5})
	if out[0] != nil {
		t.Error("undefined should map to nil")
	}
	if out[1] == nil || *out[1] != 1.5 {
		t.Error("defined value lost in conversion")
	}
}
