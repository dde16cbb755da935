// Package view derives what the customer table shows from a prediction result:
// search and risk filtering, stable ordering by churn probability, and pagination.
//
// The model never mutates the result it wraps. Every query is recomputed from the
// source predictions, so there is no cached subset to go stale.
package view

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rewired-gh/churnwatch/internal/models"
	"github.com/rewired-gh/churnwatch/internal/risk"
)

// RiskFilter selects predictions by risk level.
type RiskFilter string

const (
	FilterAll      RiskFilter = "ALL"
	FilterCritical RiskFilter = "CRITICAL"
	FilterAtRisk   RiskFilter = "AT-RISK"
	FilterStable   RiskFilter = "STABLE"
	FilterLoyal    RiskFilter = "LOYAL"
)

// Filters lists the selectable filters in display order.
var Filters = []RiskFilter{FilterAll, FilterCritical, FilterAtRisk, FilterStable, FilterLoyal}

// ParseRiskFilter accepts a filter name or a risk level name in any case.
// The empty string means FilterAll.
func ParseRiskFilter(s string) (RiskFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FilterAll, nil
	}
	for _, f := range Filters {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown risk filter %q (want one of ALL, CRITICAL, AT-RISK, STABLE, LOYAL)", s)
}

func (f RiskFilter) matches(l risk.Level) bool {
	return f == FilterAll || f == "" || strings.EqualFold(string(l), string(f))
}

const (
	// DefaultLimit is the page size after any filter or search change.
	DefaultLimit = 100
	// DefaultStep is the load-more increment.
	DefaultStep = 200
)

// Query is the current table query.
type Query struct {
	SearchTerm   string
	RiskFilter   RiskFilter
	DisplayLimit int
}

// Model is the result view model. It is not safe for concurrent use.
type Model struct {
	result       *models.PredictionResult
	query        Query
	defaultLimit int
}

// Option configures a Model.
type Option func(*Model)

// WithDefaultLimit overrides DefaultLimit. Negative values are ignored.
func WithDefaultLimit(n int) Option {
	return func(m *Model) {
		if n >= 0 {
			m.defaultLimit = n
		}
	}
}

// New wraps result. A nil result behaves as an empty one.
func New(result *models.PredictionResult, opts ...Option) *Model {
	m := &Model{result: result, defaultLimit: DefaultLimit}
	for _, opt := range opts {
		opt(m)
	}
	m.query = Query{RiskFilter: FilterAll, DisplayLimit: m.defaultLimit}
	return m
}

// Query returns the current query.
func (m *Model) Query() Query {
	return m.query
}

// SetSearchTerm changes the customer ID search. A change resets the display limit.
func (m *Model) SetSearchTerm(term string) {
	if term == m.query.SearchTerm {
		return
	}
	m.query.SearchTerm = term
	m.query.DisplayLimit = m.defaultLimit
}

// SetRiskFilter changes the risk filter. A change resets the display limit.
func (m *Model) SetRiskFilter(f RiskFilter) {
	if f == "" {
		f = FilterAll
	}
	if f == m.query.RiskFilter {
		return
	}
	m.query.RiskFilter = f
	m.query.DisplayLimit = m.defaultLimit
}

// IncreaseDisplayLimit grows the limit by step. Non-positive steps are ignored.
func (m *Model) IncreaseDisplayLimit(step int) {
	if step <= 0 {
		return
	}
	// Past the matching count a larger limit shows nothing new.
	if total := m.TotalMatching(); m.query.DisplayLimit >= total {
		return
	}
	m.query.DisplayLimit += step
}

// SetDisplayLimit replaces the display limit. Non-positive values are ignored.
// The next search or filter change resets it to the default again.
func (m *Model) SetDisplayLimit(n int) {
	if n > 0 {
		m.query.DisplayLimit = n
	}
}

func (m *Model) predictions() []models.CustomerPrediction {
	if m.result == nil {
		return nil
	}
	return m.result.Predictions
}

func (m *Model) matching() []models.CustomerPrediction {
	term := strings.ToLower(m.query.SearchTerm)
	var out []models.CustomerPrediction
	for _, p := range m.predictions() {
		if !strings.Contains(strings.ToLower(p.CustomerID), term) {
			continue
		}
		if !m.query.RiskFilter.matches(p.RiskLevel) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// VisibleRows returns the matching predictions, highest churn probability first,
// truncated to the display limit. Ties keep their received order.
func (m *Model) VisibleRows() []models.CustomerPrediction {
	rows := m.matching()
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ChurnProbability > rows[j].ChurnProbability
	})
	if m.query.DisplayLimit < len(rows) {
		rows = rows[:m.query.DisplayLimit]
	}
	return rows
}

// TotalMatching counts predictions matching the query before truncation.
func (m *Model) TotalMatching() int {
	return len(m.matching())
}

// HasMore reports whether a load-more action would show additional rows.
func (m *Model) HasMore() bool {
	return m.TotalMatching() > m.query.DisplayLimit
}

// Shown returns the "N of M" pair for the current query.
func (m *Model) Shown() (shown, total int) {
	total = m.TotalMatching()
	shown = total
	if m.query.DisplayLimit < total {
		shown = m.query.DisplayLimit
	}
	return shown, total
}

// Summary returns the result summary with defaults applied. Server-supplied
// summaries are returned as supplied, even when their counts disagree.
func (m *Model) Summary() models.Summary {
	if m.result == nil {
		return models.Summary{}
	}
	return m.result.Summary
}

// Tally returns counts derived from the predictions themselves.
func (m *Model) Tally() models.Summary {
	return models.DeriveSummary(m.predictions())
}

// Len returns the number of predictions in the result.
func (m *Model) Len() int {
	return len(m.predictions())
}
