package domain

// HeatmapCell is one (x, y) parameter pair's metric value in a 2-D
// sensitivity projection. IsValid=false implies MetricValue is nil.
type HeatmapCell struct {
	XValue      ParameterValue
	YValue      ParameterValue
	MetricValue *float64
	IsValid     bool
}

// HeatmapStats summarizes the valid cells of a heatmap.
type HeatmapStats struct {
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	StdDev float64
}

// HeatmapData is a completed 2-D projection of optimization results for
// one metric over two parameter axes. Derived on demand, not persisted
// by the core.
type HeatmapData struct {
	ConfigID   string
	XParameter string
	YParameter string
	Metric     string
	XValues    []ParameterValue // sorted ASC
	YValues    []ParameterValue // sorted ASC
	Cells      []HeatmapCell    // row-major: y outer, x inner
	Stats      *HeatmapStats    // nil when no valid cells exist
	ValidCells int
}

// CellAt returns the cell for (xi, yi) indexes into XValues/YValues.
func (h *HeatmapData) CellAt(xi, yi int) *HeatmapCell {
	return &h.Cells[yi*len(h.XValues)+xi]
}
