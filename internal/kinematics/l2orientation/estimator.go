package l2orientation

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
)

var (
	// ErrUnsupportedFilter is returned for a filter/dimension pair that the
	// filter cannot run.
	ErrUnsupportedFilter = errors.New("l2orientation: unsupported filter")
	// ErrNoEstimator is returned when no estimator is registered for a filter.
	ErrNoEstimator = errors.New("l2orientation: no estimator registered")
)

// EstimateInfo carries non-fatal notes from an estimator run.
type EstimateInfo struct {
	// Fallback is set when the estimator could not use the sensor data and
	// returned a placeholder series.
	Fallback bool
	Note     string
}

// Estimator turns one sensor table into an orientation series of the
// same length. Implementations must be safe for concurrent use.
type Estimator interface {
	Estimate(table *l1samples.SensorTable, fs float64, dim Dim, params []float64) (Series, EstimateInfo, error)
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc func(table *l1samples.SensorTable, fs float64, dim Dim, params []float64) (Series, EstimateInfo, error)

// Estimate calls f.
func (f EstimatorFunc) Estimate(table *l1samples.SensorTable, fs float64, dim Dim, params []float64) (Series, EstimateInfo, error) {
	return f(table, fs, dim, params)
}

// Registry maps filter types to estimators.
type Registry struct {
	mu         sync.RWMutex
	estimators map[FilterType]Estimator
}

// NewRegistry returns a registry holding the vendor estimator for Xsens.
func NewRegistry() *Registry {
	r := &Registry{estimators: make(map[FilterType]Estimator)}
	r.Register(FilterXsens, VendorEstimator{})
	return r
}

// Register installs e for ft, replacing any previous estimator.
func (r *Registry) Register(ft FilterType, e Estimator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.estimators[ft] = e
}

// Lookup returns the estimator for ft after checking it supports dim.
func (r *Registry) Lookup(ft FilterType, dim Dim) (Estimator, error) {
	if !FilterSupports(ft, dim) {
		return nil, fmt.Errorf("%w: %s in %s (supported: %v)", ErrUnsupportedFilter, ft, dim, SupportedFilters(dim))
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.estimators[ft]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEstimator, ft)
	}
	return e, nil
}

// Registered lists the filter types with an estimator, sorted.
func (r *Registry) Registered() []FilterType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]FilterType, 0, len(r.estimators))
	for ft := range r.estimators {
		out = append(out, ft)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// VendorEstimator uses the orientation quaternions the sensor vendor
// already computed on-device. Tables without quaternion columns yield
// identity orientations and a fallback note.
type VendorEstimator struct{}

// Estimate implements Estimator.
func (VendorEstimator) Estimate(table *l1samples.SensorTable, _ float64, _ Dim, _ []float64) (Series, EstimateInfo, error) {
	if table == nil {
		return nil, EstimateInfo{}, errors.New("l2orientation: nil sensor table")
	}
	qs, ok := table.Quat()
	if !ok {
		return Identity(table.Len()), EstimateInfo{
			Fallback: true,
			Note:     "no vendor quaternion columns; using identity orientation",
		}, nil
	}
	return Series(qs).Normalize(), EstimateInfo{}, nil
}
