package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"storkagent/cache"
	"storkagent/market"
	"storkagent/screen"
	"storkagent/session"
	"storkagent/tools"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	stocks := make([]market.StockBrief, 120)
	for i := range stocks {
		stocks[i] = market.StockBrief{
			Code: fmt.Sprintf("%06d", i),
			Name: fmt.Sprintf("股票%d", i),
			PE:   screen.F(float64(i)),
		}
	}

	tl := tools.New(tools.Deps{
		Cache:    cache.NewStore(t.TempDir(), 16, zap.NewNop()),
		Sessions: session.NewManager(session.DefaultTimeout, zap.NewNop()),
		Screen: func(c *screen.Criteria) ([]market.StockBrief, error) {
			return c.Apply(stocks), nil
		},
		Search: func(keyword string, limit int) ([]market.StockBrief, error) {
			return stocks[:3], nil
		},
		Quote: func(code string) (*market.Quote, error) {
			return &market.Quote{Code: code, Price: 10.5}, nil
		},
		History: func(code string, days int) ([]market.KLine, error) {
			return nil, nil
		},
		Logger: zap.NewNop(),
	})
	return &Handler{tools: tl, log: zap.NewNop()}
}

func serve(h *Handler) *httptest.Server {
	mux := http.NewServeMux()
	h.Register(mux)
	return httptest.NewServer(mux)
}

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/health", nil)
	rr := httptest.NewRecorder()

	newTestHandler(t).handleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestScreenAndPagination(t *testing.T) {
	srv := serve(newTestHandler(t))
	defer srv.Close()

	body := `{"pe_max": 100, "page_size": 30, "session_id": "web"}`
	resp, err := http.Post(srv.URL+"/api/screen", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var res tools.PageResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	// PE 0..100 passes 101 of the 120 fixtures
	if res.Info.TotalCount != 101 || res.Info.TotalPages != 4 {
		t.Fatalf("unexpected result: %+v", res.Info)
	}
	if len(res.Stocks) != 30 {
		t.Errorf("first page rows = %d", len(res.Stocks))
	}

	next, err := http.Post(srv.URL+"/api/session/next?session_id=web", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer next.Body.Close()
	if err := json.NewDecoder(next.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Info.CurrentPage != 2 || !res.Info.HasPrev {
		t.Errorf("after next: %+v", res.Info)
	}
}

func TestNextPageWithoutQuery(t *testing.T) {
	srv := serve(newTestHandler(t))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/session/next?session_id=nobody", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	// 预期中的状态，不是故障
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["no_query"] != true {
		t.Errorf("expected no_query marker, got %v", body)
	}
}

func TestQuoteHandler(t *testing.T) {
	srv := serve(newTestHandler(t))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/quote/600519")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	bad, err := http.Get(srv.URL + "/api/quote/xyz")
	if err != nil {
		t.Fatal(err)
	}
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid code status = %d", bad.StatusCode)
	}
}

func TestSearchHandler(t *testing.T) {
	srv := serve(newTestHandler(t))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/search?keyword=股票&session_id=web")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var res tools.PageResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Info.TotalCount != 3 {
		t.Errorf("search total = %d", res.Info.TotalCount)
	}

	missing, err := http.Get(srv.URL + "/api/search")
	if err != nil {
		t.Fatal(err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusBadRequest {
		t.Errorf("missing keyword status = %d", missing.StatusCode)
	}
}

func TestCacheStatsHandler(t *testing.T) {
	srv := serve(newTestHandler(t))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/cache/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var stats map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if _, ok := stats["memory_entries"]; !ok {
		t.Errorf("stats missing fields: %v", stats)
	}
}
