// Package kinematics is the root of the IMU lower-limb kinematics model.
//
// The code is split into numbered layers. Each layer may depend only on
// lower-numbered layers and on the shared rotation package:
//
//	rotation        quaternions, rotation matrices, Euler decompositions
//	l1samples       segment roles, named-column sensor tables, periods
//	l2orientation   orientation series, estimators, 6D heading correction
//	l3calibration   sensor-to-segment calibration (gravity + PCA)
//	l4joints        joint angles from pairs of segment orientations
//	l5alignment     static offset removal and Z-X-Y alignment
//	pipeline        composition root: calibrate once, process many tasks
//
// Joint angle output is keyed by DOF name. The names and their column
// order (l4joints.DOFOrder) are a stable contract for motion-file
// writers: pelvis_tilt, pelvis_list, pelvis_rot, then for each side
// hip_{flexion,adduction,rotation}, knee_{...}, ankle_{...} with an _l
// or _r suffix. All angles are degrees.
package kinematics
