// Package heatmap projects optimization results onto two parameter axes
// for one metric, collapsing any remaining swept parameters.
package heatmap

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"rebalance-lab/internal/domain"
)

// Builder errors.
var (
	ErrNoResults        = errors.New("no optimization results to project")
	ErrSameAxis         = errors.New("x and y parameters must differ")
	ErrMissingParameter = errors.New("axis parameter not present in results")
)

// Build projects results onto (xParam, yParam) for one metric.
//
// Results from FAILED combinations are skipped. When more than two
// parameters vary, every (x, y) cell aggregates the mean of the valid
// metric values across the collapsed parameters. A cell with no valid
// value (all runs nil or non-finite) is marked invalid.
func Build(results []*domain.OptimizationResult, xParam, yParam, metric string) (*domain.HeatmapData, error) {
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	if xParam == yParam {
		return nil, fmt.Errorf("%w: %q", ErrSameAxis, xParam)
	}

	configID := results[0].ConfigID

	xAxis := newAxis()
	yAxis := newAxis()
	groups := make(map[cellKey][]float64)
	present := make(map[cellKey]bool)

	for _, r := range results {
		if r.Status != domain.ResultSuccess || r.Combination == nil {
			continue
		}

		xv, ok := r.Combination.Get(xParam)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingParameter, xParam)
		}
		yv, ok := r.Combination.Get(yParam)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingParameter, yParam)
		}

		xAxis.add(xv)
		yAxis.add(yv)

		key := cellKey{x: xv.String(), y: yv.String()}
		present[key] = true

		if v := r.Metrics[metric]; v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
			groups[key] = append(groups[key], *v)
		}
	}

	if len(present) == 0 {
		return nil, fmt.Errorf("%w: no successful combinations", ErrNoResults)
	}

	xValues := xAxis.sorted()
	yValues := yAxis.sorted()

	data := &domain.HeatmapData{
		ConfigID:   configID,
		XParameter: xParam,
		YParameter: yParam,
		Metric:     metric,
		XValues:    xValues,
		YValues:    yValues,
		Cells:      make([]domain.HeatmapCell, 0, len(xValues)*len(yValues)),
	}

	var valid []float64
	for _, yv := range yValues {
		for _, xv := range xValues {
			cell := domain.HeatmapCell{XValue: xv, YValue: yv}

			if vals := groups[cellKey{x: xv.String(), y: yv.String()}]; len(vals) > 0 {
				mean := stat.Mean(vals, nil)
				cell.MetricValue = &mean
				cell.IsValid = true
				valid = append(valid, mean)
			}

			data.Cells = append(data.Cells, cell)
		}
	}

	data.ValidCells = len(valid)
	if len(valid) > 0 {
		data.Stats = computeStats(valid)
	}

	return data, nil
}

type cellKey struct {
	x string
	y string
}

// axis accumulates the distinct values seen along one parameter.
type axis struct {
	seen   map[string]struct{}
	values []domain.ParameterValue
}

func newAxis() *axis {
	return &axis{seen: make(map[string]struct{})}
}

func (a *axis) add(v domain.ParameterValue) {
	key := v.String()
	if _, ok := a.seen[key]; ok {
		return
	}
	a.seen[key] = struct{}{}
	a.values = append(a.values, v)
}

// sorted returns the axis values ascending: numerically for float/int
// and bool axes, lexicographically for categorical ones.
func (a *axis) sorted() []domain.ParameterValue {
	values := make([]domain.ParameterValue, len(a.values))
	copy(values, a.values)

	sort.Slice(values, func(i, j int) bool {
		return lessValue(values[i], values[j])
	})
	return values
}

func lessValue(a, b domain.ParameterValue) bool {
	af, aok := a.AsFloat()
	bf, bok := b.AsFloat()
	if aok && bok {
		return af < bf
	}
	if a.Type == domain.ParameterBool && b.Type == domain.ParameterBool {
		return !a.Bool && b.Bool
	}
	return a.String() < b.String()
}

// computeStats summarizes valid cell means. Median interpolates via the
// empirical quantile over a sorted copy.
func computeStats(values []float64) *domain.HeatmapStats {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	stddev := 0.0
	if len(sorted) > 1 {
		stddev = stat.StdDev(sorted, nil)
	}

	return &domain.HeatmapStats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		StdDev: stddev,
	}
}
