package render

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rewired-gh/churnwatch/internal/churnapi"
	"github.com/rewired-gh/churnwatch/internal/metrics"
	"github.com/rewired-gh/churnwatch/internal/models"
	"github.com/rewired-gh/churnwatch/internal/session"
)

const widgetFallback = "Unavailable. Please try again later."

type statsDoc struct {
	AUCScore         float64 `json:"auc_score" yaml:"auc_score"`
	KSStat           float64 `json:"ks_stat" yaml:"ks_stat"`
	Engine           string  `json:"engine" yaml:"engine"`
	TotalPredictions int     `json:"total_predictions" yaml:"total_predictions"`
	ModelVersion     string  `json:"model_version" yaml:"model_version"`
	LastUpdated      string  `json:"last_updated" yaml:"last_updated"`
}

type featureDoc struct {
	Feature     string  `json:"feature" yaml:"feature"`
	Importance  float64 `json:"importance" yaml:"importance"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

type benchmarkDoc struct {
	Rank         int     `json:"rank" yaml:"rank"`
	Algorithm    string  `json:"algorithm" yaml:"algorithm"`
	ROCAUC       float64 `json:"roc_auc" yaml:"roc_auc"`
	Accuracy     float64 `json:"accuracy" yaml:"accuracy"`
	Precision    float64 `json:"precision" yaml:"precision"`
	Recall       float64 `json:"recall" yaml:"recall"`
	F1Score      float64 `json:"f1_score" yaml:"f1_score"`
	TrainingTime float64 `json:"training_time" yaml:"training_time"`
	Variance     string  `json:"variance" yaml:"variance"`
	Champion     bool    `json:"champion" yaml:"champion"`
}

type dashboardDoc struct {
	Stats          *statsDoc      `json:"stats,omitempty" yaml:"stats,omitempty"`
	StatsError     string         `json:"stats_error,omitempty" yaml:"stats_error,omitempty"`
	Features       []featureDoc   `json:"features,omitempty" yaml:"features,omitempty"`
	FeaturesError  string         `json:"features_error,omitempty" yaml:"features_error,omitempty"`
	Benchmark      []benchmarkDoc `json:"benchmark,omitempty" yaml:"benchmark,omitempty"`
	BenchmarkError string         `json:"benchmark_error,omitempty" yaml:"benchmark_error,omitempty"`
}

func slotMessage(err error) string {
	return churnapi.UserMessage(err, widgetFallback)
}

// Dashboard writes every loaded widget. A failed widget shows its own error
// and does not hide the others.
func (r *Renderer) Dashboard(d session.Dashboard, topFeatures int) error {
	if r.format != Table {
		var doc dashboardDoc
		if d.Stats.Err != nil {
			doc.StatsError = slotMessage(d.Stats.Err)
		} else if s := d.Stats.Value; s != nil {
			doc.Stats = &statsDoc{s.AUCScore, s.KSStat, s.Engine, s.TotalPredictions, s.ModelVersion, s.LastUpdated}
		}
		if d.Features.Err != nil {
			doc.FeaturesError = slotMessage(d.Features.Err)
		} else {
			for _, f := range metrics.TopFeatures(d.Features.Value, topFeatures) {
				doc.Features = append(doc.Features, featureDoc{f.Feature, f.Importance, f.Description})
			}
		}
		if d.Benchmark.Err != nil {
			doc.BenchmarkError = slotMessage(d.Benchmark.Err)
		} else {
			for _, row := range metrics.Rows(d.Benchmark.Value) {
				e := row.Entry
				doc.Benchmark = append(doc.Benchmark, benchmarkDoc{
					Rank: row.Rank, Algorithm: e.Algorithm, ROCAUC: e.ROCAUC, Accuracy: e.Accuracy,
					Precision: e.Precision, Recall: e.Recall, F1Score: e.F1Score, TrainingTime: e.TrainingTime,
					Variance: metrics.FormatVariance(row.Variance), Champion: row.Champion,
				})
			}
		}
		return r.encode(doc)
	}

	if d.Stats.Loaded {
		if err := r.stats(d.Stats.Value, d.Stats.Err); err != nil {
			return err
		}
	}
	if d.Features.Loaded {
		if err := r.features(d.Features.Value, d.Features.Err, topFeatures); err != nil {
			return err
		}
	}
	if d.Benchmark.Loaded {
		if err := r.benchmark(d.Benchmark.Value, d.Benchmark.Err); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) stats(s *models.ModelStats, err error) error {
	if err != nil || s == nil {
		return r.Line("Model stats: %s", slotMessage(err))
	}
	t := r.newTable("Model")
	t.AppendRows([]table.Row{
		{"Engine", s.Engine},
		{"Version", s.ModelVersion},
		{"AUC", fmt.Sprintf("%.4f", s.AUCScore)},
		{"KS", fmt.Sprintf("%.4f", s.KSStat)},
		{"Predictions", count(s.TotalPredictions)},
		{"Updated", s.LastUpdated},
	})
	return r.writeTable(t)
}

func (r *Renderer) features(features []models.FeatureImportance, err error, n int) error {
	if err != nil {
		return r.Line("Feature importance: %s", slotMessage(err))
	}
	t := r.newTable("Key Churn Drivers")
	t.AppendHeader(table.Row{"Feature", "Importance", "Description"})
	for _, f := range metrics.TopFeatures(features, n) {
		t.AppendRow(table.Row{f.Feature, fmt.Sprintf("%.1f%%", f.Importance*100), f.Description})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, WidthMax: 50},
	})
	return r.writeTable(t)
}

func (r *Renderer) benchmark(entries []models.BenchmarkEntry, err error) error {
	if err != nil {
		return r.Line("Benchmark: %s", slotMessage(err))
	}
	t := r.newTable("Algorithm Benchmark")
	t.AppendHeader(table.Row{"#", "Algorithm", "ROC-AUC", "Accuracy", "Precision", "Recall", "F1", "Train (s)", "Variance"})
	for _, row := range metrics.Rows(entries) {
		e := row.Entry
		name := e.Algorithm
		if row.Champion {
			name += " (champion)"
		}
		t.AppendRow(table.Row{
			row.Rank, name,
			fmt.Sprintf("%.4f", e.ROCAUC),
			fmt.Sprintf("%.4f", e.Accuracy),
			fmt.Sprintf("%.4f", e.Precision),
			fmt.Sprintf("%.4f", e.Recall),
			fmt.Sprintf("%.4f", e.F1Score),
			fmt.Sprintf("%.2f", e.TrainingTime),
			metrics.FormatVariance(row.Variance),
		})
	}
	return r.writeTable(t)
}
