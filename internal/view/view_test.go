package view

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rewired-gh/churnwatch/internal/models"
	"github.com/rewired-gh/churnwatch/internal/risk"
)

func prediction(id string, p float64) models.CustomerPrediction {
	c := risk.Classify(p)
	return models.CustomerPrediction{
		CustomerID:       id,
		ChurnProbability: p,
		RiskLevel:        c.Level,
		RiskColor:        c.Color,
	}
}

func resultOf(preds ...models.CustomerPrediction) *models.PredictionResult {
	return &models.PredictionResult{
		Predictions:   preds,
		Summary:       models.DeriveSummary(preds),
		SummarySource: models.SummaryDerived,
	}
}

func ids(rows []models.CustomerPrediction) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.CustomerID
	}
	return out
}

func largeResult(n int) *models.PredictionResult {
	preds := make([]models.CustomerPrediction, n)
	for i := range preds {
		preds[i] = prediction(fmt.Sprintf("CUST-%04d", i), float64(i%100))
	}
	return resultOf(preds...)
}

func TestVisibleRows_SortedDescendingStable(t *testing.T) {
	m := New(resultOf(
		prediction("low", 12),
		prediction("tie-first", 70),
		prediction("high", 91),
		prediction("tie-second", 70),
	))

	got := ids(m.VisibleRows())
	want := []string{"high", "tie-first", "tie-second", "low"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("VisibleRows mismatch (-want +got):\n%s", diff)
	}
}

func TestVisibleRows_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	m := New(resultOf(
		prediction("7590-VHVEG", 40),
		prediction("5575-GNVDE", 20),
		prediction("3668-QPYBK", 80),
	))

	m.SetSearchTerm("vhv")
	if diff := cmp.Diff([]string{"7590-VHVEG"}, ids(m.VisibleRows())); diff != "" {
		t.Errorf("search mismatch (-want +got):\n%s", diff)
	}

	m.SetSearchTerm("-")
	if got := m.TotalMatching(); got != 3 {
		t.Errorf("Expected 3 matches for '-', got %d", got)
	}
}

func TestVisibleRows_RiskFilter(t *testing.T) {
	m := New(resultOf(
		prediction("c1", 95),
		prediction("a1", 75),
		prediction("s1", 40),
		prediction("l1", 3),
		prediction("c2", 88),
	))

	tests := []struct {
		filter RiskFilter
		want   []string
	}{
		{FilterAll, []string{"c1", "c2", "a1", "s1", "l1"}},
		{FilterCritical, []string{"c1", "c2"}},
		{FilterAtRisk, []string{"a1"}},
		{FilterStable, []string{"s1"}},
		{FilterLoyal, []string{"l1"}},
	}

	for _, tt := range tests {
		m.SetRiskFilter(tt.filter)
		if diff := cmp.Diff(tt.want, ids(m.VisibleRows())); diff != "" {
			t.Errorf("filter %s mismatch (-want +got):\n%s", tt.filter, diff)
		}
	}
}

func TestVisibleRows_Idempotent(t *testing.T) {
	m := New(largeResult(500))
	m.SetSearchTerm("01")
	m.SetRiskFilter(FilterStable)
	first := m.VisibleRows()

	m.SetSearchTerm("01")
	m.SetRiskFilter(FilterStable)
	second := m.VisibleRows()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated query changed rows (-first +second):\n%s", diff)
	}
}

func TestVisibleRows_DoesNotMutateSource(t *testing.T) {
	r := resultOf(prediction("a", 10), prediction("b", 90), prediction("c", 50))
	before := ids(r.Predictions)

	m := New(r)
	_ = m.VisibleRows()
	m.SetRiskFilter(FilterCritical)
	_ = m.VisibleRows()

	if diff := cmp.Diff(before, ids(r.Predictions)); diff != "" {
		t.Errorf("source order changed (-before +after):\n%s", diff)
	}
}

func TestPagination(t *testing.T) {
	m := New(largeResult(450))

	if got := len(m.VisibleRows()); got != DefaultLimit {
		t.Fatalf("Expected %d rows, got %d", DefaultLimit, got)
	}
	if !m.HasMore() {
		t.Fatal("Expected HasMore with 450 rows")
	}

	m.IncreaseDisplayLimit(DefaultStep)
	if got := m.Query().DisplayLimit; got != 300 {
		t.Errorf("Expected limit 300, got %d", got)
	}
	shown, total := m.Shown()
	if shown != 300 || total != 450 {
		t.Errorf("Expected 300 of 450, got %d of %d", shown, total)
	}

	m.IncreaseDisplayLimit(DefaultStep)
	if got := len(m.VisibleRows()); got != 450 {
		t.Errorf("Expected all 450 rows once limit exceeds total, got %d", got)
	}
	if m.HasMore() {
		t.Error("Expected no more rows")
	}

	limit := m.Query().DisplayLimit
	m.IncreaseDisplayLimit(DefaultStep)
	if m.Query().DisplayLimit < limit {
		t.Error("Display limit decreased")
	}
	if got := len(m.VisibleRows()); got != 450 {
		t.Errorf("Expected 450 rows, got %d", got)
	}

	m.IncreaseDisplayLimit(0)
	m.IncreaseDisplayLimit(-5)
	if m.Query().DisplayLimit < limit {
		t.Error("Non-positive step decreased the limit")
	}
}

func TestQueryChangeResetsLimit(t *testing.T) {
	m := New(largeResult(1000))

	m.IncreaseDisplayLimit(DefaultStep)
	m.SetRiskFilter(FilterLoyal)
	if got := m.Query().DisplayLimit; got != DefaultLimit {
		t.Errorf("Expected limit reset to %d after filter change, got %d", DefaultLimit, got)
	}

	m.SetRiskFilter(FilterAll)
	m.IncreaseDisplayLimit(DefaultStep)
	m.SetSearchTerm("CUST-0")
	if got := m.Query().DisplayLimit; got != DefaultLimit {
		t.Errorf("Expected limit reset to %d after search change, got %d", DefaultLimit, got)
	}
}

func TestWithDefaultLimit(t *testing.T) {
	m := New(largeResult(30), WithDefaultLimit(10))
	if got := len(m.VisibleRows()); got != 10 {
		t.Errorf("Expected 10 rows, got %d", got)
	}
	m.IncreaseDisplayLimit(5)
	m.SetSearchTerm("x")
	if got := m.Query().DisplayLimit; got != 10 {
		t.Errorf("Expected reset to configured default 10, got %d", got)
	}
}

func TestSetDisplayLimit(t *testing.T) {
	m := New(largeResult(30))

	m.SetDisplayLimit(5)
	if got := len(m.VisibleRows()); got != 5 {
		t.Errorf("Expected 5 rows below the default, got %d", got)
	}
	if shown, total := m.Shown(); shown != 5 || total != 30 {
		t.Errorf("Expected 5 of 30, got %d of %d", shown, total)
	}

	m.SetDisplayLimit(0)
	m.SetDisplayLimit(-1)
	if got := m.Query().DisplayLimit; got != 5 {
		t.Errorf("Expected non-positive limits ignored, got %d", got)
	}

	m.SetRiskFilter(FilterLoyal)
	if got := m.Query().DisplayLimit; got != DefaultLimit {
		t.Errorf("Expected filter change to reset limit to %d, got %d", DefaultLimit, got)
	}
}

func TestSummaryAndTally(t *testing.T) {
	r := resultOf(prediction("a", 90), prediction("b", 10))
	r.Summary = models.Summary{TotalCustomers: 7043, HighRiskCount: 5}
	r.SummarySource = models.SummaryFromServer
	m := New(r)

	if got := m.Summary().TotalCustomers; got != 7043 {
		t.Errorf("Expected server total 7043, got %d", got)
	}
	tally := m.Tally()
	if tally.TotalCustomers != 2 || tally.HighRiskCount != 1 || tally.LowRiskCount != 1 {
		t.Errorf("Unexpected tally: %+v", tally)
	}
}

func TestNilResult(t *testing.T) {
	m := New(nil)
	if rows := m.VisibleRows(); len(rows) != 0 {
		t.Errorf("Expected no rows, got %d", len(rows))
	}
	if m.TotalMatching() != 0 || m.HasMore() || m.Len() != 0 {
		t.Error("Expected empty view over nil result")
	}
	if m.Summary() != (models.Summary{}) {
		t.Error("Expected zero summary")
	}
}

func TestParseRiskFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    RiskFilter
		wantErr bool
	}{
		{"", FilterAll, false},
		{"all", FilterAll, false},
		{"At-Risk", FilterAtRisk, false},
		{"loyal", FilterLoyal, false},
		{"medium", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRiskFilter(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRiskFilter(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRiskFilter(%q) = %s, expected %s", tt.in, got, tt.want)
		}
	}
}
