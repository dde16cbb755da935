package risk

import "testing"

func TestClassify_Bands(t *testing.T) {
	tests := []struct {
		probability float64
		level       Level
		color       Color
	}{
		{100, Critical, Red},
		{85.01, Critical, Red},
		{85, AtRisk, Orange},
		{60.5, AtRisk, Orange},
		{60, Stable, Yellow},
		{15, Stable, Yellow},
		{14.99, Loyal, Green},
		{0, Loyal, Green},
	}

	for _, tt := range tests {
		c := Classify(tt.probability)
		if c.Level != tt.level {
			t.Errorf("Classify(%v).Level = %s, expected %s", tt.probability, c.Level, tt.level)
		}
		if c.Color != tt.color {
			t.Errorf("Classify(%v).Color = %s, expected %s", tt.probability, c.Color, tt.color)
		}
		if c.Timeframe == "" {
			t.Errorf("Classify(%v) returned empty timeframe", tt.probability)
		}
	}
}

func TestClassify_TotalAndMonotonic(t *testing.T) {
	prev := Classify(0)
	for p := 0.0; p <= 100.0; p += 0.25 {
		c := Classify(p)
		if Rank(c.Level) < 0 {
			t.Fatalf("Classify(%v) returned unknown level %q", p, c.Level)
		}
		if Rank(c.Level) < Rank(prev.Level) {
			t.Fatalf("Classify not monotonic: %v -> %s after %s", p, c.Level, prev.Level)
		}
		prev = c
	}
}

func TestColorBijection(t *testing.T) {
	seen := make(map[Color]Level)
	for _, l := range Levels {
		c := ColorOf(l)
		if c == "" {
			t.Fatalf("No color for level %s", l)
		}
		if other, ok := seen[c]; ok {
			t.Fatalf("Color %s shared by %s and %s", c, other, l)
		}
		seen[c] = l
	}
}

func TestParseLevel(t *testing.T) {
	if l, ok := ParseLevel("at-risk"); !ok || l != AtRisk {
		t.Errorf("Expected AtRisk, got %q (ok=%v)", l, ok)
	}
	if l, ok := ParseLevel(" CRITICAL "); !ok || l != Critical {
		t.Errorf("Expected Critical, got %q (ok=%v)", l, ok)
	}
	if _, ok := ParseLevel("unknown"); ok {
		t.Error("Expected unknown level to be rejected")
	}
}

func TestReconcile_ServerLevelWins(t *testing.T) {
	// Probability says Loyal, server says Critical: server wins, color follows level.
	c := Reconcile("Critical", "", 5)
	if c.Level != Critical || c.Color != Red {
		t.Errorf("Expected Critical/red, got %s/%s", c.Level, c.Color)
	}

	c = Reconcile("", "", 90)
	if c.Level != Critical {
		t.Errorf("Expected local fallback Critical, got %s", c.Level)
	}

	c = Reconcile("Stable", "Custom window", 30)
	if c.Timeframe != "Custom window" {
		t.Errorf("Expected server timeframe to be kept, got %q", c.Timeframe)
	}
}
