package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// ParameterType identifies the value kind carried by a ParameterRange.
type ParameterType string

// Parameter type constants.
const (
	ParameterFloat       ParameterType = "float"
	ParameterInt         ParameterType = "int"
	ParameterBool        ParameterType = "bool"
	ParameterCategorical ParameterType = "categorical"
)

// IsValid reports whether t is a supported parameter type.
func (t ParameterType) IsValid() bool {
	switch t {
	case ParameterFloat, ParameterInt, ParameterBool, ParameterCategorical:
		return true
	default:
		return false
	}
}

// ParameterValue is a tagged union over the supported parameter kinds.
// Exactly the field matching Type is meaningful.
type ParameterValue struct {
	Type  ParameterType
	Float float64
	Int   int64
	Bool  bool
	Str   string
}

// Value constructors.
func FloatValue(v float64) ParameterValue { return ParameterValue{Type: ParameterFloat, Float: v} }
func IntValue(v int64) ParameterValue     { return ParameterValue{Type: ParameterInt, Int: v} }
func BoolValue(v bool) ParameterValue     { return ParameterValue{Type: ParameterBool, Bool: v} }
func StrValue(v string) ParameterValue {
	return ParameterValue{Type: ParameterCategorical, Str: v}
}

// String returns a stable textual form of the value, used in deterministic
// IDs and heatmap axis keys.
func (v ParameterValue) String() string {
	switch v.Type {
	case ParameterFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ParameterInt:
		return strconv.FormatInt(v.Int, 10)
	case ParameterBool:
		return strconv.FormatBool(v.Bool)
	case ParameterCategorical:
		return v.Str
	default:
		return ""
	}
}

// AsFloat returns the numeric value of a float or int parameter.
func (v ParameterValue) AsFloat() (float64, bool) {
	switch v.Type {
	case ParameterFloat:
		return v.Float, true
	case ParameterInt:
		return float64(v.Int), true
	default:
		return 0, false
	}
}

// ParameterRange declares the values one parameter sweeps over.
// Numeric ranges expand inclusively from MinValue to MaxValue by StepSize;
// bool ranges expand to {false, true}; categorical ranges enumerate Choices.
type ParameterRange struct {
	Type     ParameterType
	MinValue float64
	MaxValue float64
	StepSize float64
	Choices  []string // categorical only
}

// Range validation errors.
var (
	ErrUnsupportedParamType = errors.New("unsupported parameter type")
	ErrRangeMinAboveMax     = errors.New("parameter range min_value exceeds max_value")
	ErrRangeBadStep         = errors.New("parameter range step_size must be > 0")
	ErrRangeNoChoices       = errors.New("categorical parameter range requires choices")
)

// Validate checks the range invariants for its declared type.
func (r ParameterRange) Validate() error {
	switch r.Type {
	case ParameterFloat, ParameterInt:
		if r.MinValue > r.MaxValue {
			return fmt.Errorf("%w: min=%v max=%v", ErrRangeMinAboveMax, r.MinValue, r.MaxValue)
		}
		if r.StepSize <= 0 {
			return fmt.Errorf("%w: step=%v", ErrRangeBadStep, r.StepSize)
		}
		return nil
	case ParameterBool:
		return nil
	case ParameterCategorical:
		if len(r.Choices) == 0 {
			return ErrRangeNoChoices
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedParamType, r.Type)
	}
}

// ParameterCombination is one concrete assignment of a value to every
// declared parameter. Names holds the parameter names in deterministic
// (sorted) order; Index is the stable position within the full grid.
type ParameterCombination struct {
	Index  int
	Names  []string
	Values map[string]ParameterValue
}

// Get returns the value for a parameter name.
func (c *ParameterCombination) Get(name string) (ParameterValue, bool) {
	v, ok := c.Values[name]
	return v, ok
}

// Key returns a stable "name=value,..." identifier following Names order.
func (c *ParameterCombination) Key() string {
	key := ""
	for i, name := range c.Names {
		if i > 0 {
			key += ","
		}
		key += name + "=" + c.Values[name].String()
	}
	return key
}
