// Package screen 提供选股筛选：显式条件结构 + 东方财富全市场列表抓取
package screen

import (
	"fmt"
	"sort"
	"strings"

	"storkagent/market"
)

// DefaultLimit 单次筛选返回的最大数量
const DefaultLimit = 5000

// Criteria 筛选条件。指针字段为 nil 表示该维度不限制。
type Criteria struct {
	PEMin        *float64 `json:"pe_min,omitempty"`
	PEMax        *float64 `json:"pe_max,omitempty"`
	PBMin        *float64 `json:"pb_min,omitempty"`
	PBMax        *float64 `json:"pb_max,omitempty"`
	MarketCapMin *float64 `json:"market_cap_min,omitempty"` // 亿元
	MarketCapMax *float64 `json:"market_cap_max,omitempty"`
	ChangeMin    *float64 `json:"change_min,omitempty"` // 涨跌幅 %
	ChangeMax    *float64 `json:"change_max,omitempty"`
	TurnoverMin  *float64 `json:"turnover_min,omitempty"` // 换手率 %
	TurnoverMax  *float64 `json:"turnover_max,omitempty"`
	Industry     string   `json:"industry,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}

// F is a convenience constructor for optional constraint values.
func F(v float64) *float64 { return &v }

// within 检查可缺失字段：有约束但数据缺失时不通过
func within(v *float64, min, max *float64) bool {
	if min == nil && max == nil {
		return true
	}
	if v == nil {
		return false
	}
	if min != nil && *v < *min {
		return false
	}
	if max != nil && *v > *max {
		return false
	}
	return true
}

// Match reports whether a stock passes every active constraint.
func (c *Criteria) Match(s *market.StockBrief) bool {
	if s == nil {
		return false
	}
	if !within(s.PE, c.PEMin, c.PEMax) {
		return false
	}
	if !within(s.PB, c.PBMin, c.PBMax) {
		return false
	}
	if !within(s.MarketCap, c.MarketCapMin, c.MarketCapMax) {
		return false
	}
	if !within(&s.ChangePct, c.ChangeMin, c.ChangeMax) {
		return false
	}
	if !within(s.Turnover, c.TurnoverMin, c.TurnoverMax) {
		return false
	}
	if c.Industry != "" && !strings.Contains(s.Industry, c.Industry) {
		return false
	}
	return true
}

// Apply filters the list, keeping input order, honoring Limit (0 =
// DefaultLimit).
func (c *Criteria) Apply(stocks []market.StockBrief) []market.StockBrief {
	limit := c.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	out := make([]market.StockBrief, 0)
	for i := range stocks {
		if c.Match(&stocks[i]) {
			out = append(out, stocks[i])
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Params flattens the active constraints into a parameter record for cache
// key derivation.
func (c *Criteria) Params() map[string]interface{} {
	params := map[string]interface{}{}
	add := func(name string, v *float64) {
		if v != nil {
			params[name] = *v
		}
	}
	add("pe_min", c.PEMin)
	add("pe_max", c.PEMax)
	add("pb_min", c.PBMin)
	add("pb_max", c.PBMax)
	add("market_cap_min", c.MarketCapMin)
	add("market_cap_max", c.MarketCapMax)
	add("change_min", c.ChangeMin)
	add("change_max", c.ChangeMax)
	add("turnover_min", c.TurnoverMin)
	add("turnover_max", c.TurnoverMax)
	if c.Industry != "" {
		params["industry"] = c.Industry
	}
	return params
}

// Tag builds a short human-readable label for export file names,
// e.g. "pe_max20_market_cap_min50".
func (c *Criteria) Tag() string {
	params := c.Params()
	if len(params) == 0 {
		return "all"
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		switch v := params[name].(type) {
		case float64:
			parts = append(parts, fmt.Sprintf("%s%g", name, v))
		default:
			parts = append(parts, fmt.Sprintf("%s%v", name, v))
		}
	}
	return strings.Join(parts, "_")
}
