package market

import "time"

// Quote 实时行情
type Quote struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	PreClose  float64   `json:"pre_close"`
	Volume    int64     `json:"volume"`
	Turnover  float64   `json:"turnover"`
	Change    float64   `json:"change"`
	ChangePct float64   `json:"change_pct"`
	Time      time.Time `json:"time"`
}

// KLine 日 K 线
type KLine struct {
	Code   string    `json:"code"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// StockBrief 列表/筛选结果中的单只股票。估值字段可能缺失（如亏损股无
// PE），用指针表示缺失而不是零值。
type StockBrief struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	Change    float64  `json:"change"`
	ChangePct float64  `json:"change_pct"`
	PE        *float64 `json:"pe_ratio,omitempty"`
	PB        *float64 `json:"pb_ratio,omitempty"`
	MarketCap *float64 `json:"market_cap,omitempty"` // 亿元
	Turnover  *float64 `json:"turnover,omitempty"`   // 换手率 %
	Industry  string   `json:"industry,omitempty"`
}

// IndicatorSnapshot 某个交易日的常用指标快照，用于入库
type IndicatorSnapshot struct {
	MA5  float64 `json:"ma5"`
	MA20 float64 `json:"ma20"`
	RSI  float64 `json:"rsi"`
	MACD float64 `json:"macd"`
}
