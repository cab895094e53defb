package l2orientation

import (
	"fmt"
	"strings"
)

// FilterType names an orientation estimation algorithm.
type FilterType string

const (
	FilterXsens FilterType = "Xsens"
	FilterVQF   FilterType = "VQF"
	FilterMAD   FilterType = "MAD"
	FilterMAH   FilterType = "MAH"
	FilterEKF   FilterType = "EKF"
	FilterRIANN FilterType = "RIANN"
)

// Dim selects whether the magnetometer is used.
type Dim string

const (
	Dim9D Dim = "9D"
	Dim6D Dim = "6D"
)

var supported = map[Dim][]FilterType{
	Dim9D: {FilterXsens, FilterVQF, FilterMAD, FilterMAH, FilterEKF},
	Dim6D: {FilterVQF, FilterMAD, FilterMAH, FilterEKF, FilterRIANN},
}

// FilterSupports reports whether ft can run in dimension dim.
func FilterSupports(ft FilterType, dim Dim) bool {
	for _, f := range supported[dim] {
		if f == ft {
			return true
		}
	}
	return false
}

// SupportedFilters returns the filters usable in dim.
func SupportedFilters(dim Dim) []FilterType {
	out := make([]FilterType, len(supported[dim]))
	copy(out, supported[dim])
	return out
}

// DefaultFilterParams returns the tuned parameters for ft, or nil when the
// filter has none.
func DefaultFilterParams(ft FilterType) []float64 {
	switch ft {
	case FilterMAD:
		return []float64{0.1}
	case FilterMAH:
		return []float64{0.4, 0.3}
	case FilterEKF:
		return []float64{0.9, 0.9, 0.9}
	case FilterVQF:
		return []float64{2, 10}
	}
	return nil
}

// ParseFilterType matches a filter name case-insensitively.
func ParseFilterType(s string) (FilterType, error) {
	for _, ft := range []FilterType{FilterXsens, FilterVQF, FilterMAD, FilterMAH, FilterEKF, FilterRIANN} {
		if strings.EqualFold(s, string(ft)) {
			return ft, nil
		}
	}
	return "", fmt.Errorf("%w: unknown filter %q", ErrUnsupportedFilter, s)
}

// ParseDim accepts "9D" or "6D" in any case.
func ParseDim(s string) (Dim, error) {
	switch strings.ToUpper(s) {
	case string(Dim9D):
		return Dim9D, nil
	case string(Dim6D):
		return Dim6D, nil
	}
	return "", fmt.Errorf("%w: unknown dimension %q", ErrUnsupportedFilter, s)
}
