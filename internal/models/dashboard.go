package models

import (
	"errors"
	"math"
)

// ModelStats is a read-only snapshot of the serving model.
type ModelStats struct {
	AUCScore         float64 `json:"auc_score"`
	KSStat           float64 `json:"ks_stat"`
	Engine           string  `json:"engine"`
	TotalPredictions int     `json:"total_predictions"`
	ModelVersion     string  `json:"model_version"`
	LastUpdated      string  `json:"last_updated"`
}

// RawStats is the /stats body. When no model is loaded the server answers 200 with
// only status and message set.
type RawStats struct {
	AUCScore         *float64 `json:"auc_score"`
	KSStat           *float64 `json:"ks_stat"`
	Engine           string   `json:"engine"`
	TotalPredictions *int     `json:"total_predictions"`
	ModelVersion     string   `json:"model_version"`
	LastUpdated      string   `json:"last_updated"`
	Status           string   `json:"status"`
	Message          string   `json:"message"`
}

// Offline reports whether the body describes an unavailable model.
func (r *RawStats) Offline() bool {
	return r.AUCScore == nil && r.Status != ""
}

// Stats converts the raw body, substituting zero for missing numbers.
func (r *RawStats) Stats() ModelStats {
	return ModelStats{
		AUCScore:         clampUnit(floatOrZero(r.AUCScore)),
		KSStat:           clampUnit(floatOrZero(r.KSStat)),
		Engine:           r.Engine,
		TotalPredictions: intOrZero(r.TotalPredictions),
		ModelVersion:     r.ModelVersion,
		LastUpdated:      r.LastUpdated,
	}
}

// FeatureImportance is the weight of one model input.
type FeatureImportance struct {
	Feature     string  `json:"feature"`
	Importance  float64 `json:"importance"`
	Description string  `json:"description"`
}

// Validate checks that all feature fields are valid.
func (f *FeatureImportance) Validate() error {
	if f.Feature == "" {
		return errors.New("feature name must not be empty")
	}
	if f.Importance < 0 || f.Importance > 1 || math.IsNaN(f.Importance) {
		return errors.New("importance must be between 0.0 and 1.0")
	}
	return nil
}

// BenchmarkEntry holds the evaluation scores of one algorithm.
type BenchmarkEntry struct {
	Algorithm    string  `json:"algorithm"`
	ROCAUC       float64 `json:"roc_auc"`
	Accuracy     float64 `json:"accuracy"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1Score      float64 `json:"f1_score"`
	TrainingTime float64 `json:"training_time"` // seconds
}

// Validate checks that all benchmark fields are valid.
func (b *BenchmarkEntry) Validate() error {
	if b.Algorithm == "" {
		return errors.New("algorithm must not be empty")
	}
	for _, v := range []float64{b.ROCAUC, b.Accuracy, b.Precision, b.Recall, b.F1Score} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return errors.New("benchmark scores must be between 0.0 and 1.0")
		}
	}
	if b.TrainingTime < 0 {
		return errors.New("training time must not be negative")
	}
	return nil
}

// Clamp pulls score fields into [0,1] and negative training times to 0.
// The server may derive precision/recall/F1 from accuracy and overshoot 1.0.
func (b BenchmarkEntry) Clamp() BenchmarkEntry {
	b.ROCAUC = clampUnit(b.ROCAUC)
	b.Accuracy = clampUnit(b.Accuracy)
	b.Precision = clampUnit(b.Precision)
	b.Recall = clampUnit(b.Recall)
	b.F1Score = clampUnit(b.F1Score)
	if b.TrainingTime < 0 || math.IsNaN(b.TrainingTime) {
		b.TrainingTime = 0
	}
	return b
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
