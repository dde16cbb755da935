package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/churnwatch/internal/churnapi"
	"github.com/rewired-gh/churnwatch/internal/models"
	"github.com/rewired-gh/churnwatch/internal/risk"
	"github.com/rewired-gh/churnwatch/internal/session"
	"github.com/rewired-gh/churnwatch/internal/view"
)

func testModel() *view.Model {
	preds := []models.CustomerPrediction{
		{CustomerID: "B-2", TenureMonths: 60, MonthlyCharges: 20.1, ChurnProbability: 3, RiskLevel: risk.Loyal, RiskColor: risk.Green, PrimaryReason: "Long tenure", ContractType: "Two year"},
		{CustomerID: "C-3", TenureMonths: 1, MonthlyCharges: 99, ChurnProbability: 93.5, RiskLevel: risk.Critical, RiskColor: risk.Red, RiskTimeframe: "Next 30 Days", PrimaryReason: "New customer risk", ContractType: "Month-to-month"},
		{CustomerID: "A-1", TenureMonths: 4, MonthlyCharges: 70.7, ChurnProbability: 64, RiskLevel: risk.AtRisk, RiskColor: risk.Orange, ContractType: "Month-to-month"},
	}
	r := &models.PredictionResult{
		Predictions:   preds,
		Summary:       models.Summary{TotalCustomers: 3, HighRiskCount: 1, MediumRiskCount: 1, LowRiskCount: 1},
		SummarySource: models.SummaryFromServer,
	}
	return view.New(r, view.WithDefaultLimit(2))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", Table, false},
		{"table", Table, false},
		{"JSON", JSON, false},
		{" yaml ", YAML, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q, wantErr %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestResults_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, Table, false).Results(testModel(), models.SummaryFromServer); err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"Summary", "Customers", "C-3", "93.5%", "$99.00", "Next 30 Days", "Showing 2 of 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "B-2") {
		t.Errorf("expected B-2 to be beyond the display limit:\n%s", out)
	}
	if strings.Index(out, "C-3") > strings.Index(out, "A-1") {
		t.Errorf("expected rows sorted by churn probability:\n%s", out)
	}
}

func TestResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, JSON, false).Results(testModel(), models.SummaryFromServer); err != nil {
		t.Fatalf("Results failed: %v", err)
	}

	var doc resultsDoc
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if doc.Shown != 2 || doc.Matching != 3 {
		t.Errorf("expected 2 of 3, got %d of %d", doc.Shown, doc.Matching)
	}
	ids := []string{doc.Customers[0].CustomerID, doc.Customers[1].CustomerID}
	if diff := cmp.Diff([]string{"C-3", "A-1"}, ids); diff != "" {
		t.Errorf("customer order mismatch (-want +got):\n%s", diff)
	}
	if doc.Summary.Stable != 0 || doc.Summary.Source != "server" {
		t.Errorf("unexpected summary: %+v", doc.Summary)
	}
	if doc.Query.Risk != "ALL" || doc.Query.Limit != 2 {
		t.Errorf("unexpected query: %+v", doc.Query)
	}
}

func TestResults_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, YAML, false).Results(testModel(), models.SummaryFromServer); err != nil {
		t.Fatalf("Results failed: %v", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if doc["matching"] != 3 {
		t.Errorf("expected matching: 3, got %v", doc["matching"])
	}
	if !strings.Contains(buf.String(), "customer_id: C-3") {
		t.Errorf("expected snake_case keys:\n%s", buf.String())
	}
}

func TestSummary_InconsistentCountsShownAsSupplied(t *testing.T) {
	var buf bytes.Buffer
	s := models.Summary{TotalCustomers: 10, HighRiskCount: 1}
	if err := New(&buf, Table, false).Summary(s, models.SummaryFromServer); err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if !strings.Contains(buf.String(), "10") {
		t.Errorf("expected total 10 in output:\n%s", buf.String())
	}
}

func TestDashboard_PerWidgetErrors(t *testing.T) {
	var d session.Dashboard
	d.Stats = session.Slot[*models.ModelStats]{Loaded: true, Err: &churnapi.ServerError{Op: "stats", Status: 503, Detail: "Model not available"}}
	d.Features = session.Slot[[]models.FeatureImportance]{Loaded: true, Value: []models.FeatureImportance{
		{Feature: "Contract", Importance: 0.12},
		{Feature: "tenure", Importance: 0.31},
	}}
	d.Benchmark = session.Slot[[]models.BenchmarkEntry]{Loaded: true, Value: []models.BenchmarkEntry{
		{Algorithm: "LogReg", ROCAUC: 0.8},
		{Algorithm: "XGBoost", ROCAUC: 0.9},
	}}

	var buf bytes.Buffer
	if err := New(&buf, Table, false).Dashboard(d, 1); err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"Model stats: Model not available", "tenure", "31.0%", "XGBoost (champion)", "0.00%", "-11.11%"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Contract") {
		t.Errorf("expected only the top feature:\n%s", out)
	}
}

func TestDashboard_JSON(t *testing.T) {
	var d session.Dashboard
	d.Stats = session.Slot[*models.ModelStats]{Loaded: true, Value: &models.ModelStats{AUCScore: 0.84, Engine: "XGBoost"}}
	d.Benchmark = session.Slot[[]models.BenchmarkEntry]{Loaded: true, Err: errors.New("boom")}

	var buf bytes.Buffer
	if err := New(&buf, JSON, false).Dashboard(d, 4); err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	var doc dashboardDoc
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if doc.Stats == nil || doc.Stats.Engine != "XGBoost" {
		t.Errorf("unexpected stats: %+v", doc.Stats)
	}
	if doc.BenchmarkError != widgetFallback {
		t.Errorf("expected fallback message, got %q", doc.BenchmarkError)
	}
}

func TestLine_SkippedForDocuments(t *testing.T) {
	var buf bytes.Buffer
	_ = New(&buf, JSON, false).Line("hello %s", "there")
	if buf.Len() != 0 {
		t.Errorf("expected no output for JSON, got %q", buf.String())
	}
	_ = New(&buf, Table, false).Line("hello %s", "there")
	if buf.String() != "hello there\n" {
		t.Errorf("unexpected line %q", buf.String())
	}
}
