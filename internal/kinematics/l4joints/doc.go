// Package l4joints owns Layer 4 (Joints) of the kinematics model.
//
// Responsibilities: relative orientation of adjacent segments along the
// chain pelvis → thigh → shank → foot, Xsens Euler decomposition, and the
// per-side sign table that maps Euler components to clinical DOFs.
// Key types: AngleSeries, SignTable, Angles.
//
// Dependency rule: L4 may depend on L1-L3 and rotation, never on L5+.
package l4joints
