// Package l2orientation owns Layer 2 (Orientation) of the kinematics model.
//
// Responsibilities: per-sample sensor orientation series, the pluggable
// orientation estimator capability, and the 6D heading correction that
// re-anchors magnetometer-free estimates to the calibrated static pose.
// Key types: Series, Estimator, Registry, FilterType, Dim.
//
// Dependency rule: L2 may depend on L1 and rotation, never on L3+.
// Filter internals (Madgwick, Mahony, EKF, VQF, RIANN) live outside this
// module; callers register them against a Registry.
package l2orientation
