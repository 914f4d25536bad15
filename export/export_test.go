package export

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"storkagent/market"
	"storkagent/screen"
)

func sample() []market.StockBrief {
	return []market.StockBrief{
		{Code: "600519", Name: "贵州茅台", Price: 1500.5, ChangePct: 1.2, PE: screen.F(28.5)},
		{Code: "688001", Name: "华兴源创", Price: 30.1, ChangePct: -0.8},
	}
}

func TestExportCSV(t *testing.T) {
	e, err := NewExporter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	path, err := e.Export(sample(), "csv", "screen_test")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(raw)
	if !strings.Contains(content, "600519") || !strings.Contains(content, "贵州茅台") {
		t.Errorf("csv missing data: %s", content)
	}
	// missing PE should render as an empty cell, not 0.00
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[2], ",,") {
		t.Errorf("absent PE should be empty: %s", lines[2])
	}
}

func TestExportJSON(t *testing.T) {
	e, err := NewExporter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	path, err := e.Export(sample(), "json", "out")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	raw, _ := os.ReadFile(path)
	var back []market.StockBrief
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if len(back) != 2 || back[0].Code != "600519" {
		t.Errorf("unexpected content: %+v", back)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	e, _ := NewExporter(t.TempDir())
	if _, err := e.Export(sample(), "xlsx", "out"); err == nil {
		t.Error("unsupported format should error")
	}
}

func TestFileName(t *testing.T) {
	c := &screen.Criteria{PEMax: screen.F(20)}
	name := FileName("screen", c)
	if !strings.HasPrefix(name, "screen_pe_max20_") {
		t.Errorf("screen export should embed the criteria tag: %s", name)
	}

	if !strings.HasPrefix(FileName("search", nil), "search_") {
		t.Error("non-screen queries use the query label")
	}
	if !strings.HasPrefix(FileName("", nil), "export_") {
		t.Error("unknown queries fall back to export_")
	}
}
