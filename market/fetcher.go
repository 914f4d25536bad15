package market

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// FetchQuote fetches the latest quote for a stock code from the Sina API.
// The response body is GBK encoded.
func FetchQuote(code string) (*Quote, error) {
	symbol := SinaSymbol(code)
	url := fmt.Sprintf("http://hq.sinajs.cn/list=%s", symbol)
	req, _ := http.NewRequest("GET", url, nil)
	req.Header.Set("Referer", "http://finance.sina.com.cn")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	utf8Reader := transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder())
	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return nil, err
	}

	return parseSinaQuote(NormalizeCode(code), string(body))
}

func parseSinaQuote(code, line string) (*Quote, error) {
	parts := strings.Split(line, "\"")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid response from sina api")
	}

	data := strings.Split(parts[1], ",")
	if len(data) < 32 {
		return nil, fmt.Errorf("unexpected data format from sina api")
	}

	name := data[0]
	open, _ := strconv.ParseFloat(data[1], 64)
	preClose, _ := strconv.ParseFloat(data[2], 64)
	price, _ := strconv.ParseFloat(data[3], 64)
	high, _ := strconv.ParseFloat(data[4], 64)
	low, _ := strconv.ParseFloat(data[5], 64)
	volume, _ := strconv.ParseInt(data[8], 10, 64)
	turnover, _ := strconv.ParseFloat(data[9], 64)

	timestamp, _ := time.ParseInLocation("2006-01-02 15:04:05", data[30]+" "+data[31], time.Local)

	change := price - preClose
	changePct := 0.0
	if preClose > 0 {
		changePct = change / preClose * 100
	}

	return &Quote{
		Code:      code,
		Name:      name,
		Price:     price,
		Open:      open,
		High:      high,
		Low:       low,
		PreClose:  preClose,
		Volume:    volume,
		Turnover:  turnover,
		Change:    change,
		ChangePct: changePct,
		Time:      timestamp,
	}, nil
}

type sinaKLine struct {
	Day    string `json:"day"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// FetchHistory fetches daily K-line history for a code. scale=240 is daily.
func FetchHistory(code string, days int) ([]KLine, error) {
	symbol := SinaSymbol(code)
	url := fmt.Sprintf("http://money.finance.sina.com.cn/quotes_service/api/json_v2.php/CN_MarketData.getKLineData?symbol=%s&scale=240&ma=no&datalen=%d", symbol, days)

	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var sinaData []sinaKLine
	if err := json.NewDecoder(resp.Body).Decode(&sinaData); err != nil {
		return nil, err
	}

	bare := NormalizeCode(code)
	klines := make([]KLine, len(sinaData))
	for i, d := range sinaData {
		open, _ := strconv.ParseFloat(d.Open, 64)
		high, _ := strconv.ParseFloat(d.High, 64)
		low, _ := strconv.ParseFloat(d.Low, 64)
		closePrice, _ := strconv.ParseFloat(d.Close, 64)
		volume, _ := strconv.ParseInt(d.Volume, 10, 64)

		var date time.Time
		if len(d.Day) > 10 {
			date, _ = time.ParseInLocation("2006-01-02 15:04:05", d.Day, time.Local)
		} else {
			date, _ = time.ParseInLocation("2006-01-02", d.Day, time.Local)
		}

		klines[i] = KLine{
			Code:   bare,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		}
	}

	return klines, nil
}
