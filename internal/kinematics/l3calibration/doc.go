// Package l3calibration owns Layer 3 (Calibration) of the kinematics model.
//
// Responsibilities: sensor-to-segment calibration from a static pose
// (gravity gives the segment vertical) and functional movements (the first
// principal axis of the gyroscope gives the segment rotation axis), and
// selection of the walking window used for that PCA.
// Key types: Calibration, Setup, Fallback, GaitEventDetector.
//
// Dependency rule: L3 may depend on L1-L2 and rotation, never on L4+.
package l3calibration
