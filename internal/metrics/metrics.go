// Package metrics derives benchmark comparisons and feature rankings for display.
//
// The champion is the benchmarked algorithm with the highest ROC-AUC. Every other
// entry is reported as a relative variance against it:
//
//	variance = (entry.roc_auc - champion.roc_auc) / champion.roc_auc × 100
//
// A champion AUC of zero yields a variance of zero.
package metrics

import (
	"fmt"
	"sort"

	"github.com/rewired-gh/churnwatch/internal/models"
)

// RankedBenchmark returns a copy of entries ordered by ROC-AUC descending.
// Equal scores keep their input order.
func RankedBenchmark(entries []models.BenchmarkEntry) []models.BenchmarkEntry {
	ranked := make([]models.BenchmarkEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ROCAUC > ranked[j].ROCAUC
	})
	return ranked
}

// Champion returns the highest-ranked entry, or false for an empty list.
func Champion(entries []models.BenchmarkEntry) (models.BenchmarkEntry, bool) {
	ranked := RankedBenchmark(entries)
	if len(ranked) == 0 {
		return models.BenchmarkEntry{}, false
	}
	return ranked[0], true
}

// VarianceOf returns the percentage difference of entry's ROC-AUC from the champion's.
func VarianceOf(entry, champion models.BenchmarkEntry) float64 {
	if champion.ROCAUC == 0 || entry == champion {
		return 0
	}
	return (entry.ROCAUC - champion.ROCAUC) / champion.ROCAUC * 100
}

// FormatVariance renders a variance with two decimals, e.g. "-11.11%".
func FormatVariance(v float64) string {
	if v == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", v)
}

// BenchmarkRow is a ranked entry with its variance against the champion.
type BenchmarkRow struct {
	Rank     int
	Entry    models.BenchmarkEntry
	Variance float64
	Champion bool
}

// Rows ranks entries and computes each one's variance. Position 0 is the champion.
func Rows(entries []models.BenchmarkEntry) []BenchmarkRow {
	ranked := RankedBenchmark(entries)
	rows := make([]BenchmarkRow, len(ranked))
	for i, e := range ranked {
		rows[i] = BenchmarkRow{Rank: i + 1, Entry: e, Champion: i == 0}
		if i > 0 {
			rows[i].Variance = VarianceOf(e, ranked[0])
		}
	}
	return rows
}

// TopFeatures returns the n most important features, ties in input order.
// n <= 0 returns nothing; n beyond the list returns all of it.
func TopFeatures(features []models.FeatureImportance, n int) []models.FeatureImportance {
	if n <= 0 {
		return nil
	}
	ranked := make([]models.FeatureImportance, len(features))
	copy(ranked, features)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Importance > ranked[j].Importance
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
