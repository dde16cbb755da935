// Package risk maps churn probabilities to risk categories and display colors.
//
// Bands are fixed and match the prediction server (probability in percent):
//
//	p > 85        Critical  red     "Next 30 Days"
//	60 < p <= 85  At-Risk   orange  "2-4 Months"
//	15 <= p <= 60 Stable    yellow  "Baseline"
//	p < 15        Loyal     green   "Strong Retention"
//
// Level and color form a fixed bijection. Server-supplied levels always win over
// the local classification; Classify is the fallback when a level is missing.
package risk

import "strings"

// Level is a risk category.
type Level string

const (
	Critical Level = "Critical"
	AtRisk   Level = "At-Risk"
	Stable   Level = "Stable"
	Loyal    Level = "Loyal"
)

// Color is the display color bound to a Level.
type Color string

const (
	Red    Color = "red"
	Orange Color = "orange"
	Yellow Color = "yellow"
	Green  Color = "green"
)

const (
	criticalAbove = 85.0
	atRiskAbove   = 60.0
	loyalBelow    = 15.0
)

// Levels lists every level from highest to lowest risk.
var Levels = []Level{Critical, AtRisk, Stable, Loyal}

var colors = map[Level]Color{
	Critical: Red,
	AtRisk:   Orange,
	Stable:   Yellow,
	Loyal:    Green,
}

var timeframes = map[Level]string{
	Critical: "Next 30 Days",
	AtRisk:   "2-4 Months",
	Stable:   "Baseline",
	Loyal:    "Strong Retention",
}

// Classification is the result of classifying a probability.
type Classification struct {
	Level     Level
	Color     Color
	Timeframe string
}

// Classify maps a churn probability in percent to its band. Values outside
// [0,100] fall into the nearest band.
func Classify(probability float64) Classification {
	var l Level
	switch {
	case probability > criticalAbove:
		l = Critical
	case probability > atRiskAbove:
		l = AtRisk
	case probability < loyalBelow:
		l = Loyal
	default:
		l = Stable
	}
	return Classification{Level: l, Color: colors[l], Timeframe: timeframes[l]}
}

// ParseLevel matches s case-insensitively against the known levels.
func ParseLevel(s string) (Level, bool) {
	s = strings.TrimSpace(s)
	for _, l := range Levels {
		if strings.EqualFold(s, string(l)) {
			return l, true
		}
	}
	return "", false
}

// ColorOf returns the color bound to l.
func ColorOf(l Level) Color {
	return colors[l]
}

// TimeframeOf returns the retention timeframe label bound to l.
func TimeframeOf(l Level) string {
	return timeframes[l]
}

// Rank orders levels by risk, Critical highest. Unknown levels rank -1.
func Rank(l Level) int {
	for i, candidate := range Levels {
		if candidate == l {
			return len(Levels) - 1 - i
		}
	}
	return -1
}

// Reconcile resolves the level, color and timeframe to display for a record.
// A recognised server level takes precedence and its color follows the bijection;
// otherwise the probability is classified locally. A non-empty server timeframe is kept.
func Reconcile(serverLevel, serverTimeframe string, probability float64) Classification {
	c := Classify(probability)
	if l, ok := ParseLevel(serverLevel); ok {
		c = Classification{Level: l, Color: colors[l], Timeframe: timeframes[l]}
	}
	if tf := strings.TrimSpace(serverTimeframe); tf != "" {
		c.Timeframe = tf
	}
	return c
}
