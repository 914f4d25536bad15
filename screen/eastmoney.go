package screen

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"storkagent/market"
)

// 东方财富列表接口
const (
	eastMoneyListURL = "https://82.push2.eastmoney.com/api/qt/clist/get"
	// f2 现价 f3 涨跌幅 f4 涨跌额 f8 换手率 f9 市盈率(动) f12 代码
	// f14 名称 f20 总市值 f23 市净率 f100 行业
	listFields   = "f2,f3,f4,f8,f9,f12,f14,f20,f23,f100"
	listPageSize = 500
	maxListPages = 20

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	referer   = "https://quote.eastmoney.com/"
)

const yiYuan = 1e8 // 总市值换算为亿元

// Screener 全市场筛选器
type Screener struct {
	client *http.Client
	log    *zap.Logger
}

func NewScreener(log *zap.Logger) *Screener {
	return &Screener{
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// FetchMarket pulls the full A-share spot list, page by page.
func (s *Screener) FetchMarket() ([]market.StockBrief, error) {
	var all []market.StockBrief

	for page := 1; page <= maxListPages; page++ {
		stocks, total, err := s.fetchPage(page)
		if err != nil {
			return nil, err
		}
		all = append(all, stocks...)
		if len(all) >= total || len(stocks) == 0 {
			break
		}
	}

	s.log.Debug("全市场列表抓取完成", zap.Int("count", len(all)))
	return all, nil
}

func (s *Screener) fetchPage(page int) ([]market.StockBrief, int, error) {
	url := fmt.Sprintf("%s?pn=%d&pz=%d&po=1&np=1&fltt=2&invt=2&fid=f3&fs=m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23&fields=%s",
		eastMoneyListURL, page, listPageSize, listFields)

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("请求东方财富列表失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return nil, 0, fmt.Errorf("东方财富返回无数据")
	}
	total := int(data.Get("total").Int())

	var stocks []market.StockBrief
	data.Get("diff").ForEach(func(_, row gjson.Result) bool {
		brief := market.StockBrief{
			Code:      row.Get("f12").String(),
			Name:      row.Get("f14").String(),
			Price:     row.Get("f2").Float(),
			ChangePct: row.Get("f3").Float(),
			Change:    row.Get("f4").Float(),
			Industry:  row.Get("f100").String(),
		}
		// 停牌/无效行情字段返回 "-"，留空即可
		if v := row.Get("f9"); v.Type == gjson.Number {
			brief.PE = F(v.Float())
		}
		if v := row.Get("f23"); v.Type == gjson.Number {
			brief.PB = F(v.Float())
		}
		if v := row.Get("f20"); v.Type == gjson.Number {
			brief.MarketCap = F(v.Float() / yiYuan)
		}
		if v := row.Get("f8"); v.Type == gjson.Number {
			brief.Turnover = F(v.Float())
		}
		stocks = append(stocks, brief)
		return true
	})

	return stocks, total, nil
}

// Screen fetches the market list and applies the criteria.
func (s *Screener) Screen(c *Criteria) ([]market.StockBrief, error) {
	all, err := s.FetchMarket()
	if err != nil {
		return nil, err
	}
	return c.Apply(all), nil
}

// Search returns stocks whose code or name contains the keyword.
func (s *Screener) Search(keyword string, limit int) ([]market.StockBrief, error) {
	if limit <= 0 {
		limit = 10
	}
	all, err := s.FetchMarket()
	if err != nil {
		return nil, err
	}

	keyword = strings.TrimSpace(keyword)
	out := make([]market.StockBrief, 0, limit)
	for i := range all {
		if strings.Contains(all[i].Code, keyword) || strings.Contains(all[i].Name, keyword) {
			out = append(out, all[i])
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
