// Package l5alignment owns Layer 5 (Alignment) of the kinematics model.
//
// Responsibilities: static-pose offset removal and Z-X-Y re-alignment of
// joint angles into the target simulation's reference pose.
// Key types: Offset, Options, Aligned.
//
// Dependency rule: L5 may depend on L1-L4 and rotation, never on the
// pipeline. Every operation returns new series; inputs are never modified.
package l5alignment
