package render

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rewired-gh/churnwatch/internal/models"
	"github.com/rewired-gh/churnwatch/internal/risk"
	"github.com/rewired-gh/churnwatch/internal/view"
)

type customerDoc struct {
	CustomerID       string  `json:"customer_id" yaml:"customer_id"`
	TenureMonths     int     `json:"tenure_months" yaml:"tenure_months"`
	MonthlyCharges   float64 `json:"monthly_charges" yaml:"monthly_charges"`
	ChurnProbability float64 `json:"churn_probability" yaml:"churn_probability"`
	RiskLevel        string  `json:"risk_level" yaml:"risk_level"`
	RiskColor        string  `json:"risk_color" yaml:"risk_color"`
	RiskTimeframe    string  `json:"risk_timeframe,omitempty" yaml:"risk_timeframe,omitempty"`
	PrimaryReason    string  `json:"primary_reason" yaml:"primary_reason"`
	ContractType     string  `json:"contract_type" yaml:"contract_type"`
}

type summaryDoc struct {
	Source             string  `json:"source" yaml:"source"`
	TotalCustomers     int     `json:"total_customers" yaml:"total_customers"`
	Critical           int     `json:"critical" yaml:"critical"`
	AtRisk             int     `json:"at_risk" yaml:"at_risk"`
	Stable             int     `json:"stable" yaml:"stable"`
	Loyal              int     `json:"loyal" yaml:"loyal"`
	AverageProbability float64 `json:"average_probability" yaml:"average_probability"`
	PredictionVariance float64 `json:"prediction_variance" yaml:"prediction_variance"`
}

type queryDoc struct {
	Search string `json:"search" yaml:"search"`
	Risk   string `json:"risk" yaml:"risk"`
	Limit  int    `json:"limit" yaml:"limit"`
}

type resultsDoc struct {
	Summary   summaryDoc    `json:"summary" yaml:"summary"`
	Query     queryDoc      `json:"query" yaml:"query"`
	Shown     int           `json:"shown" yaml:"shown"`
	Matching  int           `json:"matching" yaml:"matching"`
	Customers []customerDoc `json:"customers" yaml:"customers"`
}

func toSummaryDoc(s models.Summary, source models.SummarySource) summaryDoc {
	return summaryDoc{
		Source:             string(source),
		TotalCustomers:     s.TotalCustomers,
		Critical:           s.HighRiskCount,
		AtRisk:             s.MediumRiskCount,
		Stable:             s.StableCount,
		Loyal:              s.LowRiskCount,
		AverageProbability: s.AverageProbability,
		PredictionVariance: s.PredictionVariance,
	}
}

// Results writes the summary and the visible rows of m.
func (r *Renderer) Results(m *view.Model, source models.SummarySource) error {
	rows := m.VisibleRows()
	shown, total := m.Shown()

	if r.format != Table {
		q := m.Query()
		doc := resultsDoc{
			Summary:   toSummaryDoc(m.Summary(), source),
			Query:     queryDoc{Search: q.SearchTerm, Risk: string(q.RiskFilter), Limit: q.DisplayLimit},
			Shown:     shown,
			Matching:  total,
			Customers: make([]customerDoc, len(rows)),
		}
		for i, p := range rows {
			doc.Customers[i] = customerDoc{
				CustomerID:       p.CustomerID,
				TenureMonths:     p.TenureMonths,
				MonthlyCharges:   p.MonthlyCharges,
				ChurnProbability: p.ChurnProbability,
				RiskLevel:        string(p.RiskLevel),
				RiskColor:        string(p.RiskColor),
				RiskTimeframe:    p.RiskTimeframe,
				PrimaryReason:    p.PrimaryReason,
				ContractType:     p.ContractType,
			}
		}
		return r.encode(doc)
	}

	if err := r.Summary(m.Summary(), source); err != nil {
		return err
	}

	t := r.newTable("Customers")
	t.AppendHeader(table.Row{"Customer", "Tenure", "Monthly", "Churn", "Risk", "Timeframe", "Reason", "Contract"})
	for _, p := range rows {
		t.AppendRow(table.Row{
			p.CustomerID,
			fmt.Sprintf("%d mo", p.TenureMonths),
			fmt.Sprintf("$%.2f", p.MonthlyCharges),
			percent(p.ChurnProbability),
			r.level(p.RiskLevel),
			p.RiskTimeframe,
			p.PrimaryReason,
			p.ContractType,
		})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("Showing %s of %s", count(shown), count(total))})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 7, WidthMax: 40},
	})
	return r.writeTable(t)
}

// Summary writes the aggregate counts. Counts are shown as supplied even when
// they do not add up.
func (r *Renderer) Summary(s models.Summary, source models.SummarySource) error {
	if r.format != Table {
		return r.encode(toSummaryDoc(s, source))
	}

	t := r.newTable("Summary")
	t.AppendHeader(table.Row{"Total", r.level(risk.Critical), r.level(risk.AtRisk), r.level(risk.Stable), r.level(risk.Loyal), "Avg Churn", "Variance"})
	t.AppendRow(table.Row{
		count(s.TotalCustomers),
		count(s.HighRiskCount),
		count(s.MediumRiskCount),
		count(s.StableCount),
		count(s.LowRiskCount),
		percent(s.AverageProbability),
		fmt.Sprintf("%.4f", s.PredictionVariance),
	})
	if source == models.SummaryDerived {
		t.SetCaption("computed locally")
	}
	return r.writeTable(t)
}
