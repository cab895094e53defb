// Package l1samples owns Layer 1 (Samples) of the kinematics model.
//
// Responsibilities: segment roles, named-column sensor tables and the
// half-open sample periods used to pick calibration windows.
// Key types: Segment, SensorTable, Recording, Period.
//
// Dependency rule: L1 depends on nothing above rotation.
package l1samples
