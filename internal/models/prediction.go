// Package models defines the core domain entities for the churnwatch client.
// These models represent scored customers, prediction result sets, and the
// dashboard metadata served next to them (model stats, feature importance, benchmarks).
//
// Server payloads are decoded into Raw* types whose optional fields are pointers.
// Normalize turns them into the validated types used everywhere else, applying the
// default-substitution rules in one place.
package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rewired-gh/churnwatch/internal/risk"
)

// CustomerPrediction is one scored customer. Immutable once received.
type CustomerPrediction struct {
	CustomerID       string     `json:"customer_id"`
	TenureMonths     int        `json:"tenure_months"`
	MonthlyCharges   float64    `json:"monthly_charges"`
	ChurnProbability float64    `json:"churn_probability"` // percent, 0–100
	RiskLevel        risk.Level `json:"risk_level"`
	RiskColor        risk.Color `json:"risk_color"`
	RiskTimeframe    string     `json:"risk_timeframe,omitempty"`
	PrimaryReason    string     `json:"primary_reason"`
	ContractType     string     `json:"contract_type"`
}

// Validate checks that all prediction fields are valid.
func (p *CustomerPrediction) Validate() error {
	if p.CustomerID == "" {
		return errors.New("customer ID must not be empty")
	}
	if p.TenureMonths < 0 {
		return errors.New("tenure months must not be negative")
	}
	if p.MonthlyCharges < 0 || math.IsNaN(p.MonthlyCharges) {
		return errors.New("monthly charges must not be negative")
	}
	if p.ChurnProbability < 0 || p.ChurnProbability > 100 || math.IsNaN(p.ChurnProbability) {
		return errors.New("churn probability must be between 0 and 100")
	}
	if risk.Rank(p.RiskLevel) < 0 {
		return fmt.Errorf("unknown risk level %q", p.RiskLevel)
	}
	if risk.ColorOf(p.RiskLevel) != p.RiskColor {
		return fmt.Errorf("risk color %q does not match level %s", p.RiskColor, p.RiskLevel)
	}
	return nil
}

// SummarySource records where a result's summary came from.
type SummarySource string

const (
	SummaryFromServer SummarySource = "server"
	SummaryDerived    SummarySource = "derived"
)

// Summary holds aggregate counts for a result set.
type Summary struct {
	TotalCustomers     int     `json:"total_customers"`
	HighRiskCount      int     `json:"high_risk_count"`   // Critical
	MediumRiskCount    int     `json:"medium_risk_count"` // At-Risk
	StableCount        int     `json:"stable_count"`
	LowRiskCount       int     `json:"low_risk_count"` // Loyal
	AverageProbability float64 `json:"average_probability"`
	PredictionVariance float64 `json:"prediction_variance"`
}

// CountOf returns the count for a single level.
func (s Summary) CountOf(l risk.Level) int {
	switch l {
	case risk.Critical:
		return s.HighRiskCount
	case risk.AtRisk:
		return s.MediumRiskCount
	case risk.Stable:
		return s.StableCount
	case risk.Loyal:
		return s.LowRiskCount
	}
	return 0
}

// Consistent reports whether the level counts add up to TotalCustomers and n.
func (s Summary) Consistent(n int) bool {
	sum := s.HighRiskCount + s.MediumRiskCount + s.StableCount + s.LowRiskCount
	return sum == s.TotalCustomers && s.TotalCustomers == n
}

// DeriveSummary computes a summary from predictions.
// Variance is the population variance of the probabilities on a 0–1 scale.
func DeriveSummary(predictions []CustomerPrediction) Summary {
	s := Summary{TotalCustomers: len(predictions)}
	if len(predictions) == 0 {
		return s
	}

	var sum float64
	for i := range predictions {
		p := &predictions[i]
		sum += p.ChurnProbability
		switch p.RiskLevel {
		case risk.Critical:
			s.HighRiskCount++
		case risk.AtRisk:
			s.MediumRiskCount++
		case risk.Stable:
			s.StableCount++
		case risk.Loyal:
			s.LowRiskCount++
		}
	}
	n := float64(len(predictions))
	s.AverageProbability = sum / n

	mean := s.AverageProbability / 100
	var sq float64
	for i := range predictions {
		d := predictions[i].ChurnProbability/100 - mean
		sq += d * d
	}
	s.PredictionVariance = sq / n
	return s
}

// PredictionResult is a complete scored dataset as held by the session.
// Predictions keep the order in which they were received.
type PredictionResult struct {
	Predictions   []CustomerPrediction `json:"predictions"`
	Summary       Summary              `json:"summary"`
	SummarySource SummarySource        `json:"summary_source"`
	ReceivedAt    time.Time            `json:"received_at"`
}

// Validate checks every prediction and the uniqueness of customer IDs.
// Summary counts are not checked against the predictions.
func (r *PredictionResult) Validate() error {
	seen := make(map[string]struct{}, len(r.Predictions))
	for i := range r.Predictions {
		p := &r.Predictions[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("prediction %d: %w", i, err)
		}
		if _, dup := seen[p.CustomerID]; dup {
			return fmt.Errorf("prediction %d: duplicate customer ID %q", i, p.CustomerID)
		}
		seen[p.CustomerID] = struct{}{}
	}
	if r.SummarySource != SummaryFromServer && r.SummarySource != SummaryDerived {
		return fmt.Errorf("unknown summary source %q", r.SummarySource)
	}
	return nil
}

// RawPrediction is a prediction as sent by the server. Numeric fields arrive as
// JSON numbers that may carry a fractional part (tenure is serialized by pandas).
type RawPrediction struct {
	CustomerID       string  `json:"customer_id"`
	TenureMonths     float64 `json:"tenure_months"`
	MonthlyCharges   float64 `json:"monthly_charges"`
	ChurnProbability float64 `json:"churn_probability"`
	RiskLevel        string  `json:"risk_level"`
	RiskColor        string  `json:"risk_color"`
	RiskTimeframe    string  `json:"risk_timeframe"`
	PrimaryReason    string  `json:"primary_reason"`
	ContractType     string  `json:"contract_type"`
}

// RawSummary is the server summary; any field may be missing.
type RawSummary struct {
	TotalCustomers     *int     `json:"total_customers"`
	HighRiskCount      *int     `json:"high_risk_count"`
	MediumRiskCount    *int     `json:"medium_risk_count"`
	StableCount        *int     `json:"stable_count"`
	LowRiskCount       *int     `json:"low_risk_count"`
	AverageProbability *float64 `json:"average_probability"`
	PredictionVariance *float64 `json:"prediction_variance"`
}

// RawResult is the partial /predict and /test-sample response.
type RawResult struct {
	Predictions []RawPrediction `json:"predictions"`
	Summary     *RawSummary     `json:"summary"`
}

// Normalize validates a raw result and applies the defaulting rules:
//   - missing summary: derived from the predictions
//   - missing summary field: 0
//   - missing or unknown risk level: classified from the probability
//   - recognised risk level: kept, color forced to the level's color
func Normalize(raw RawResult, receivedAt time.Time) (*PredictionResult, error) {
	result := &PredictionResult{
		Predictions: make([]CustomerPrediction, len(raw.Predictions)),
		ReceivedAt:  receivedAt,
	}

	for i, rp := range raw.Predictions {
		if rp.TenureMonths < 0 {
			return nil, fmt.Errorf("prediction %d: tenure months must not be negative", i)
		}
		c := risk.Reconcile(rp.RiskLevel, rp.RiskTimeframe, rp.ChurnProbability)
		result.Predictions[i] = CustomerPrediction{
			CustomerID:       rp.CustomerID,
			TenureMonths:     int(math.Round(rp.TenureMonths)),
			MonthlyCharges:   rp.MonthlyCharges,
			ChurnProbability: rp.ChurnProbability,
			RiskLevel:        c.Level,
			RiskColor:        c.Color,
			RiskTimeframe:    c.Timeframe,
			PrimaryReason:    rp.PrimaryReason,
			ContractType:     rp.ContractType,
		}
	}

	if raw.Summary == nil {
		result.Summary = DeriveSummary(result.Predictions)
		result.SummarySource = SummaryDerived
	} else {
		result.Summary = raw.Summary.withDefaults()
		result.SummarySource = SummaryFromServer
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *RawSummary) withDefaults() Summary {
	return Summary{
		TotalCustomers:     intOrZero(r.TotalCustomers),
		HighRiskCount:      intOrZero(r.HighRiskCount),
		MediumRiskCount:    intOrZero(r.MediumRiskCount),
		StableCount:        intOrZero(r.StableCount),
		LowRiskCount:       intOrZero(r.LowRiskCount),
		AverageProbability: floatOrZero(r.AverageProbability),
		PredictionVariance: floatOrZero(r.PredictionVariance),
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
