// Package grid expands declarative parameter ranges into the ordered,
// finite sequence of concrete combinations an optimization sweeps over.
package grid

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"rebalance-lab/internal/domain"
)

// Generator errors.
var (
	ErrNoParameters = errors.New("no parameter ranges declared")
	ErrBadIndex     = errors.New("combination index out of range")
)

// Grid is the expanded cartesian product of a set of parameter ranges.
// Combinations are addressed by a stable index in [0, Total()): parameters
// are ordered by name, and the last name varies fastest. The grid itself
// holds only the per-parameter value lists, so generation is lazy and
// restartable from any index.
type Grid struct {
	names  []string
	values [][]domain.ParameterValue
	total  int
}

// New validates every range and builds the grid. Validation fails fast,
// before any simulation runs: min>max, step<=0 or an unsupported type is
// rejected here.
func New(ranges map[string]domain.ParameterRange) (*Grid, error) {
	if len(ranges) == 0 {
		return nil, ErrNoParameters
	}

	names := make([]string, 0, len(ranges))
	for name := range ranges {
		names = append(names, name)
	}
	sort.Strings(names)

	g := &Grid{names: names, total: 1}
	for _, name := range names {
		r := ranges[name]
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		vals := expandRange(r)
		g.values = append(g.values, vals)
		g.total *= len(vals)
	}
	return g, nil
}

// Total returns the exact number of combinations in the grid.
func (g *Grid) Total() int {
	return g.total
}

// Names returns the parameter names in deterministic (sorted) order.
func (g *Grid) Names() []string {
	names := make([]string, len(g.names))
	copy(names, g.names)
	return names
}

// Values returns the expanded value list for a parameter name.
func (g *Grid) Values(name string) []domain.ParameterValue {
	for i, n := range g.names {
		if n == name {
			vals := make([]domain.ParameterValue, len(g.values[i]))
			copy(vals, g.values[i])
			return vals
		}
	}
	return nil
}

// At returns the combination for a stable index by mixed-radix decoding.
// The same index always yields the same combination.
func (g *Grid) At(index int) (*domain.ParameterCombination, error) {
	if index < 0 || index >= g.total {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrBadIndex, index, g.total)
	}

	combo := &domain.ParameterCombination{
		Index:  index,
		Names:  g.Names(),
		Values: make(map[string]domain.ParameterValue, len(g.names)),
	}

	rem := index
	for i := len(g.names) - 1; i >= 0; i-- {
		n := len(g.values[i])
		combo.Values[g.names[i]] = g.values[i][rem%n]
		rem /= n
	}
	return combo, nil
}

// expandRange enumerates the concrete values of one validated range.
// Numeric ranges expand inclusively from min to max by step; a final
// partial step is clamped to max.
func expandRange(r domain.ParameterRange) []domain.ParameterValue {
	switch r.Type {
	case domain.ParameterFloat:
		n := numericCount(r)
		vals := make([]domain.ParameterValue, n)
		for i := 0; i < n; i++ {
			v := r.MinValue + float64(i)*r.StepSize
			if v > r.MaxValue {
				v = r.MaxValue
			}
			vals[i] = domain.FloatValue(v)
		}
		return vals
	case domain.ParameterInt:
		n := numericCount(r)
		vals := make([]domain.ParameterValue, n)
		for i := 0; i < n; i++ {
			v := r.MinValue + float64(i)*r.StepSize
			if v > r.MaxValue {
				v = r.MaxValue
			}
			vals[i] = domain.IntValue(int64(math.Round(v)))
		}
		return vals
	case domain.ParameterBool:
		return []domain.ParameterValue{domain.BoolValue(false), domain.BoolValue(true)}
	case domain.ParameterCategorical:
		vals := make([]domain.ParameterValue, len(r.Choices))
		for i, c := range r.Choices {
			vals[i] = domain.StrValue(c)
		}
		return vals
	default:
		return nil
	}
}

const stepEpsilon = 1e-9

// numericCount is the inclusive value count of a numeric range:
// ceil((max-min)/step) + 1. A step that does not divide the span evenly
// still emits the max as the final value; the epsilon keeps evenly
// divisible ranges from picking up a spurious extra step through
// floating error.
func numericCount(r domain.ParameterRange) int {
	return int(math.Ceil((r.MaxValue-r.MinValue)/r.StepSize-stepEpsilon)) + 1
}
