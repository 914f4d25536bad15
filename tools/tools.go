// Package tools 实现面向 AI 代理的工具调用层：先查缓存，未命中再走
// 上游抓取，结果登记到会话用于翻页。上游抓取器以函数形式注入。
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"storkagent/cache"
	"storkagent/db"
	"storkagent/export"
	"storkagent/market"
	"storkagent/screen"
	"storkagent/session"
)

// ErrNoQuery 会话里还没有任何查询（区别于查询结果为空）
var ErrNoQuery = errors.New("no query in progress")

// ErrInvalidCode 股票代码非法
var ErrInvalidCode = errors.New("invalid stock code")

func init() {
	// 二进制缓存的载荷类型
	cache.RegisterType(market.Quote{})
	cache.RegisterType([]market.KLine{})
}

// 上游数据抓取协作方
type (
	ScreenFunc  func(c *screen.Criteria) ([]market.StockBrief, error)
	SearchFunc  func(keyword string, limit int) ([]market.StockBrief, error)
	QuoteFunc   func(code string) (*market.Quote, error)
	HistoryFunc func(code string, days int) ([]market.KLine, error)
)

// Deps 工具层的全部协作对象，由进程入口构造后注入
type Deps struct {
	Cache    *cache.Store
	Sessions *session.Manager
	DB       *db.DB           // optional
	Exporter *export.Exporter // optional
	Screen   ScreenFunc
	Search   SearchFunc
	Quote    QuoteFunc
	History  HistoryFunc
	Logger   *zap.Logger
	PageSize int
}

// Tools 工具调用处理器
type Tools struct {
	deps Deps
}

func New(deps Deps) *Tools {
	if deps.PageSize <= 0 {
		deps.PageSize = session.DefaultPageSize
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Tools{deps: deps}
}

// PageResult 一次分页查询的返回
type PageResult struct {
	Stocks []market.StockBrief `json:"stocks"`
	Info   session.PageInfo    `json:"page_info"`
}

// decodeCached re-marshals a JSON-tier cache value into a typed target.
// JSON 层缓存从磁盘读回来是 map/slice of interface{}，统一走一次
// JSON 往返还原成具体类型。
func decodeCached(v interface{}, out interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// QueryStock returns the realtime quote for a code, cache first.
func (t *Tools) QueryStock(code string) (*market.Quote, error) {
	if !market.ValidCode(code) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCode, code)
	}
	bare := market.NormalizeCode(code)

	key := cache.DeriveKey("realtime", map[string]interface{}{"code": bare})
	if v, ok := t.deps.Cache.Get(key, cache.TTLRealtime); ok {
		if q, ok := v.(market.Quote); ok {
			return &q, nil
		}
	}

	q, err := t.deps.Quote(bare)
	if err != nil {
		return nil, fmt.Errorf("获取行情失败: %w", err)
	}
	t.deps.Cache.Set(key, *q, cache.FormatBinary)
	return q, nil
}

type screenPayload struct {
	Stocks []market.StockBrief `json:"stocks"`
}

// ScreenStocks runs a screen (cache first), installs the full result set
// in the caller's session and returns the requested page.
func (t *Tools) ScreenStocks(sessionID string, c *screen.Criteria, page, pageSize int) (*PageResult, error) {
	if c == nil {
		c = &screen.Criteria{}
	}
	if pageSize <= 0 {
		pageSize = t.deps.PageSize
	}

	key := cache.DeriveKey("screen", c.Params())
	var all []market.StockBrief

	if v, ok := t.deps.Cache.Get(key, cache.TTLScreening); ok {
		var payload screenPayload
		if err := decodeCached(v, &payload); err == nil {
			all = payload.Stocks
		}
	}
	if all == nil {
		fetched, err := t.deps.Screen(c)
		if err != nil {
			return nil, fmt.Errorf("筛选失败: %w", err)
		}
		if fetched == nil {
			fetched = []market.StockBrief{}
		}
		all = fetched
		t.deps.Cache.Set(key, screenPayload{Stocks: all}, cache.FormatJSON)
	}

	s := t.deps.Sessions.GetOrCreate(sessionID)
	s.SetQuery("screen", all, c, pageSize)
	if page > 1 {
		s.GotoPage(page)
	}
	return &PageResult{Stocks: s.CurrentPage(), Info: s.PageInfo()}, nil
}

// SearchStocks searches by code or name and installs the result set as the
// session's current query.
func (t *Tools) SearchStocks(sessionID, keyword string, limit int) (*PageResult, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, errors.New("关键词不能为空")
	}
	if limit <= 0 {
		limit = 10
	}

	stocks, err := t.deps.Search(keyword, limit)
	if err != nil {
		return nil, fmt.Errorf("搜索失败: %w", err)
	}

	s := t.deps.Sessions.GetOrCreate(sessionID)
	s.SetQuery("search", stocks, nil, limit)
	return &PageResult{Stocks: s.CurrentPage(), Info: s.PageInfo()}, nil
}

func (t *Tools) pagedSession(sessionID string) (*session.Session, error) {
	s := t.deps.Sessions.GetOrCreate(sessionID)
	if !s.HasQuery() {
		return nil, ErrNoQuery
	}
	return s, nil
}

// NextPage moves the session one page forward; a no-op on the last page.
func (t *Tools) NextPage(sessionID string) (*PageResult, error) {
	s, err := t.pagedSession(sessionID)
	if err != nil {
		return nil, err
	}
	stocks := s.NextPage()
	return &PageResult{Stocks: stocks, Info: s.PageInfo()}, nil
}

// PrevPage moves the session one page back; a no-op on the first page.
func (t *Tools) PrevPage(sessionID string) (*PageResult, error) {
	s, err := t.pagedSession(sessionID)
	if err != nil {
		return nil, err
	}
	stocks := s.PrevPage()
	return &PageResult{Stocks: stocks, Info: s.PageInfo()}, nil
}

// GotoPage jumps the session to the given page when it is in range.
func (t *Tools) GotoPage(sessionID string, page int) (*PageResult, error) {
	s, err := t.pagedSession(sessionID)
	if err != nil {
		return nil, err
	}
	stocks := s.GotoPage(page)
	return &PageResult{Stocks: stocks, Info: s.PageInfo()}, nil
}

// PageInfo returns the pagination snapshot for the session.
func (t *Tools) PageInfo(sessionID string) (session.PageInfo, error) {
	s, err := t.pagedSession(sessionID)
	if err != nil {
		return session.PageInfo{}, err
	}
	return s.PageInfo(), nil
}

// StockHistory returns daily K-lines: cache, then upstream, then the local
// database as a stale fallback when the upstream is down.
func (t *Tools) StockHistory(code string, days int) ([]market.KLine, error) {
	if !market.ValidCode(code) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCode, code)
	}
	bare := market.NormalizeCode(code)
	if days <= 0 {
		days = 30
	}

	key := cache.DeriveKey("history", map[string]interface{}{"code": bare, "days": days})
	if v, ok := t.deps.Cache.Get(key, cache.TTLHistorical); ok {
		if klines, ok := v.([]market.KLine); ok {
			return klines, nil
		}
	}

	klines, err := t.deps.History(bare, days)
	if err != nil {
		if t.deps.DB != nil {
			if stored, dbErr := t.deps.DB.QueryKLines(bare, days); dbErr == nil && len(stored) > 0 {
				t.deps.Logger.Warn("上游历史数据不可用，回退到本地库",
					zap.String("code", bare), zap.Error(err))
				return stored, nil
			}
		}
		return nil, fmt.Errorf("获取历史数据失败: %w", err)
	}

	t.deps.Cache.Set(key, klines, cache.FormatBinary)
	t.persistHistory(bare, klines)
	return klines, nil
}

// persistHistory saves klines plus the latest indicator snapshot; pure
// bookkeeping, failures only get logged.
func (t *Tools) persistHistory(code string, klines []market.KLine) {
	if t.deps.DB == nil || len(klines) == 0 {
		return
	}
	if err := t.deps.DB.SaveKLines(klines); err != nil {
		t.deps.Logger.Warn("K线入库失败", zap.String("code", code), zap.Error(err))
		return
	}

	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}
	last := len(closes) - 1
	ma5 := market.MA(closes, 5)[last]
	ma20 := market.MA(closes, 20)[last]
	rsi := market.RSI(closes, 14)[last]
	macd := market.MACD(closes, 12, 26, 9).DIF[last]
	if market.IsUndefined(ma5) || market.IsUndefined(ma20) || market.IsUndefined(rsi) {
		return // 数据不足，不写半截快照
	}

	snap := market.IndicatorSnapshot{MA5: ma5, MA20: ma20, RSI: rsi, MACD: macd}
	if err := t.deps.DB.SaveIndicators(code, klines[last].Date, snap); err != nil {
		t.deps.Logger.Warn("指标快照入库失败", zap.String("code", code), zap.Error(err))
	}
}

// IndicatorResult 指标计算结果，多序列共用一条日期轴
type IndicatorResult struct {
	Code      string                `json:"code"`
	Indicator string                `json:"indicator"`
	Period    int                   `json:"period"`
	Dates     []string              `json:"dates"`
	Series    map[string][]*float64 `json:"series"`
}

// Indicator computes a named indicator over the code's history.
func (t *Tools) Indicator(code, name string, period, days int) (*IndicatorResult, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if days <= 0 {
		days = 120
	}

	klines, err := t.StockHistory(code, days)
	if err != nil {
		return nil, err
	}
	if len(klines) == 0 {
		return nil, errors.New("无历史数据")
	}

	size := len(klines)
	dates := make([]string, size)
	closes := make([]float64, size)
	highs := make([]float64, size)
	lows := make([]float64, size)
	volumes := make([]float64, size)
	for i, k := range klines {
		dates[i] = k.Date.Format("2006-01-02")
		closes[i] = k.Close
		highs[i] = k.High
		lows[i] = k.Low
		volumes[i] = float64(k.Volume)
	}

	series := map[string][]*float64{}
	switch name {
	case "ma":
		if period <= 0 {
			period = 20
		}
		series["ma"] = market.Nullable(market.MA(closes, period))
	case "ema":
		if period <= 0 {
			period = 20
		}
		series["ema"] = market.Nullable(market.EMA(closes, period))
	case "macd":
		res := market.MACD(closes, 12, 26, 9)
		series["dif"] = market.Nullable(res.DIF)
		series["dea"] = market.Nullable(res.DEA)
		series["bar"] = market.Nullable(res.BAR)
	case "rsi":
		if period <= 0 {
			period = 14
		}
		series["rsi"] = market.Nullable(market.RSI(closes, period))
	case "boll":
		if period <= 0 {
			period = 20
		}
		res := market.Boll(closes, period, 2.0)
		series["upper"] = market.Nullable(res.Upper)
		series["middle"] = market.Nullable(res.Middle)
		series["lower"] = market.Nullable(res.Lower)
	case "kdj":
		res := market.KDJ(highs, lows, closes, 9, 3, 3)
		series["k"] = market.Nullable(res.K)
		series["d"] = market.Nullable(res.D)
		series["j"] = market.Nullable(res.J)
	case "atr":
		if period <= 0 {
			period = 14
		}
		series["atr"] = market.Nullable(market.ATR(highs, lows, closes, period))
	case "obv":
		series["obv"] = market.Nullable(market.OBV(closes, volumes))
	case "volume_ma":
		if period <= 0 {
			period = 5
		}
		series["volume_ma"] = market.Nullable(market.VolumeMA(volumes, period))
	default:
		return nil, fmt.Errorf("不支持的指标: %s", name)
	}

	return &IndicatorResult{
		Code:      market.NormalizeCode(code),
		Indicator: name,
		Period:    period,
		Dates:     dates,
		Series:    series,
	}, nil
}

// ExportCurrent exports the session's complete result set and returns the
// file path and the row count.
func (t *Tools) ExportCurrent(sessionID, format string) (string, int, error) {
	if t.deps.Exporter == nil {
		return "", 0, errors.New("导出功能未配置")
	}
	s, err := t.pagedSession(sessionID)
	if err != nil {
		return "", 0, err
	}

	data := s.Data()
	name := export.FileName(s.Query(), s.Criteria())
	path, err := t.deps.Exporter.Export(data, format, name)
	if err != nil {
		return "", 0, err
	}
	return path, len(data), nil
}

// ClearSession drops all state for the session id.
func (t *Tools) ClearSession(sessionID string) {
	t.deps.Sessions.Clear(sessionID)
}

// ClearCache removes cache entries older than the given number of days.
func (t *Tools) ClearCache(olderThanDays int) int {
	if olderThanDays <= 0 {
		olderThanDays = 7
	}
	return t.deps.Cache.Clear(olderThanDays)
}

// CacheStats exposes cache statistics.
func (t *Tools) CacheStats() map[string]interface{} {
	return t.deps.Cache.Stats()
}
