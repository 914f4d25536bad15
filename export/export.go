// Package export 将会话中的结果集导出为 CSV / JSON 文件
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"storkagent/market"
	"storkagent/screen"
)

// Exporter writes result sets into a fixed export directory.
type Exporter struct {
	dir string
}

func NewExporter(dir string) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建导出目录失败: %w", err)
	}
	return &Exporter{dir: dir}, nil
}

// FileName builds the export file name: screen results carry their
// criteria tag, anything else gets a timestamped generic name.
func FileName(query string, criteria *screen.Criteria) string {
	stamp := time.Now().Format("20060102_150405")
	if query == "screen" && criteria != nil {
		return fmt.Sprintf("screen_%s_%s", criteria.Tag(), stamp)
	}
	if query != "" {
		return fmt.Sprintf("%s_%s", query, stamp)
	}
	return "export_" + stamp
}

// Export writes stocks to a file in the requested format ("csv" or
// "json") and returns the absolute path.
func (e *Exporter) Export(stocks []market.StockBrief, format, name string) (string, error) {
	switch format {
	case "csv":
		return e.exportCSV(stocks, name)
	case "json":
		return e.exportJSON(stocks, name)
	default:
		return "", fmt.Errorf("不支持的导出格式: %s", format)
	}
}

func (e *Exporter) exportCSV(stocks []market.StockBrief, name string) (string, error) {
	path := filepath.Join(e.dir, name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// UTF-8 BOM，Excel 打开中文不乱码
	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return "", err
	}

	w := csv.NewWriter(f)
	header := []string{"code", "name", "price", "change", "change_pct", "pe_ratio", "pb_ratio", "market_cap", "turnover", "industry"}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for _, s := range stocks {
		row := []string{
			s.Code,
			s.Name,
			strconv.FormatFloat(s.Price, 'f', 2, 64),
			strconv.FormatFloat(s.Change, 'f', 2, 64),
			strconv.FormatFloat(s.ChangePct, 'f', 2, 64),
			optional(s.PE),
			optional(s.PB),
			optional(s.MarketCap),
			optional(s.Turnover),
			s.Industry,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return filepath.Abs(path)
}

func (e *Exporter) exportJSON(stocks []market.StockBrief, name string) (string, error) {
	path := filepath.Join(e.dir, name+".json")
	raw, err := json.MarshalIndent(stocks, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", err
	}
	return filepath.Abs(path)
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
