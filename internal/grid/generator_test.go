package grid

import (
	"errors"
	"testing"

	"rebalance-lab/internal/domain"
)

func TestNew_CombinationCount(t *testing.T) {
	// Regression baseline: 4 x 5 = 20 combinations.
	g, err := New(map[string]domain.ParameterRange{
		"trigger_up_pct": {Type: domain.ParameterFloat, MinValue: 0.01, MaxValue: 0.04, StepSize: 0.01},
		"ratio":          {Type: domain.ParameterFloat, MinValue: 1.0, MaxValue: 3.0, StepSize: 0.5},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if g.Total() != 20 {
		t.Errorf("expected 20 combinations, got %d", g.Total())
	}
	if n := len(g.Values("trigger_up_pct")); n != 4 {
		t.Errorf("expected 4 values for trigger_up_pct, got %d", n)
	}
	if n := len(g.Values("ratio")); n != 5 {
		t.Errorf("expected 5 values for ratio, got %d", n)
	}
}

func TestNew_NumericValueCount(t *testing.T) {
	tests := []struct {
		name  string
		r     domain.ParameterRange
		count int
	}{
		{"single value", domain.ParameterRange{Type: domain.ParameterFloat, MinValue: 1, MaxValue: 1, StepSize: 1}, 1},
		{"int range", domain.ParameterRange{Type: domain.ParameterInt, MinValue: 1, MaxValue: 10, StepSize: 1}, 10},
		{"fractional steps", domain.ParameterRange{Type: domain.ParameterFloat, MinValue: 0.1, MaxValue: 0.3, StepSize: 0.1}, 3},
		// ceil((1-0)/0.3)+1 = 5: the partial final step lands on max.
		{"step not dividing span", domain.ParameterRange{Type: domain.ParameterFloat, MinValue: 0, MaxValue: 1, StepSize: 0.3}, 5},
		{"int step not dividing span", domain.ParameterRange{Type: domain.ParameterInt, MinValue: 1, MaxValue: 10, StepSize: 4}, 4},
		{"bool", domain.ParameterRange{Type: domain.ParameterBool}, 2},
		{"categorical", domain.ParameterRange{Type: domain.ParameterCategorical, Choices: []string{"a", "b", "c"}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(map[string]domain.ParameterRange{"p": tt.r})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if g.Total() != tt.count {
				t.Errorf("expected %d values, got %d", tt.count, g.Total())
			}
		})
	}
}

func TestNew_PartialStepClampsToMax(t *testing.T) {
	g, err := New(map[string]domain.ParameterRange{
		"f": {Type: domain.ParameterFloat, MinValue: 0, MaxValue: 1, StepSize: 0.3},
		"i": {Type: domain.ParameterInt, MinValue: 1, MaxValue: 10, StepSize: 4},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	fv := g.Values("f")
	if got := fv[len(fv)-1].Float; got != 1.0 {
		t.Errorf("expected final float value clamped to 1.0, got %v", got)
	}
	iv := g.Values("i")
	if got := iv[len(iv)-1].Int; got != 10 {
		t.Errorf("expected final int value clamped to 10, got %v", got)
	}
}

func TestNew_ValidationFailsFast(t *testing.T) {
	tests := []struct {
		name    string
		r       domain.ParameterRange
		wantErr error
	}{
		{"min above max", domain.ParameterRange{Type: domain.ParameterFloat, MinValue: 2, MaxValue: 1, StepSize: 0.5}, domain.ErrRangeMinAboveMax},
		{"zero step", domain.ParameterRange{Type: domain.ParameterFloat, MinValue: 1, MaxValue: 2, StepSize: 0}, domain.ErrRangeBadStep},
		{"negative step", domain.ParameterRange{Type: domain.ParameterInt, MinValue: 1, MaxValue: 2, StepSize: -1}, domain.ErrRangeBadStep},
		{"unknown type", domain.ParameterRange{Type: "gaussian"}, domain.ErrUnsupportedParamType},
		{"empty categorical", domain.ParameterRange{Type: domain.ParameterCategorical}, domain.ErrRangeNoChoices},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(map[string]domain.ParameterRange{"p": tt.r})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := New(nil); !errors.Is(err, ErrNoParameters) {
		t.Errorf("expected ErrNoParameters for empty map, got %v", err)
	}
}

func TestAt_DeterministicOrdering(t *testing.T) {
	ranges := map[string]domain.ParameterRange{
		"b_second": {Type: domain.ParameterInt, MinValue: 1, MaxValue: 3, StepSize: 1},
		"a_first":  {Type: domain.ParameterFloat, MinValue: 0.1, MaxValue: 0.2, StepSize: 0.1},
	}

	g, err := New(ranges)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	names := g.Names()
	if names[0] != "a_first" || names[1] != "b_second" {
		t.Fatalf("parameters must be sorted by name, got %v", names)
	}

	// Last name varies fastest: index 0 is (0.1, 1), index 1 is (0.1, 2).
	first, err := g.At(0)
	if err != nil {
		t.Fatalf("At(0) failed: %v", err)
	}
	if first.Values["a_first"].Float != 0.1 || first.Values["b_second"].Int != 1 {
		t.Errorf("unexpected combination at index 0: %s", first.Key())
	}

	second, err := g.At(1)
	if err != nil {
		t.Fatalf("At(1) failed: %v", err)
	}
	if second.Values["a_first"].Float != 0.1 || second.Values["b_second"].Int != 2 {
		t.Errorf("unexpected combination at index 1: %s", second.Key())
	}

	// Restartable: re-reading any index yields the identical combination.
	for i := 0; i < g.Total(); i++ {
		a, _ := g.At(i)
		b, _ := g.At(i)
		if a.Key() != b.Key() {
			t.Fatalf("index %d: combination not stable across reads", i)
		}
	}
}

func TestAt_CoversFullProduct(t *testing.T) {
	g, err := New(map[string]domain.ParameterRange{
		"x": {Type: domain.ParameterFloat, MinValue: 0.01, MaxValue: 0.04, StepSize: 0.01},
		"y": {Type: domain.ParameterFloat, MinValue: 1.0, MaxValue: 3.0, StepSize: 0.5},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	seen := make(map[string]struct{}, g.Total())
	for i := 0; i < g.Total(); i++ {
		combo, err := g.At(i)
		if err != nil {
			t.Fatalf("At(%d) failed: %v", i, err)
		}
		key := combo.Key()
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate combination at index %d: %s", i, key)
		}
		seen[key] = struct{}{}
	}

	if len(seen) != 20 {
		t.Errorf("expected 20 distinct combinations, got %d", len(seen))
	}
}

func TestAt_OutOfRange(t *testing.T) {
	g, err := New(map[string]domain.ParameterRange{
		"p": {Type: domain.ParameterBool},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := g.At(-1); !errors.Is(err, ErrBadIndex) {
		t.Errorf("expected ErrBadIndex for -1, got %v", err)
	}
	if _, err := g.At(2); !errors.Is(err, ErrBadIndex) {
		t.Errorf("expected ErrBadIndex for 2, got %v", err)
	}
}
