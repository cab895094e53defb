package l1samples

import "sort"

// Segment names a body segment carrying one sensor.
type Segment string

const (
	Pelvis Segment = "pelvis"
	ThighL Segment = "thigh_l"
	ThighR Segment = "thigh_r"
	ShankL Segment = "shank_l"
	ShankR Segment = "shank_r"
	FootL  Segment = "foot_l"
	FootR  Segment = "foot_r"
	// Chest may be worn but is not used for lower-limb joints.
	Chest Segment = "chest"
)

// Side is the body side of a bilateral segment.
type Side string

const (
	SideNone  Side = ""
	SideLeft  Side = "l"
	SideRight Side = "r"
)

// Sides lists the bilateral sides in processing order.
var Sides = []Side{SideLeft, SideRight}

// LowerBody lists the segments used for joint angles, in calibration order.
var LowerBody = []Segment{Pelvis, ThighL, ThighR, ShankL, ShankR, FootL, FootR}

// Known reports whether s is a recognised segment name.
func (s Segment) Known() bool {
	switch s {
	case Pelvis, ThighL, ThighR, ShankL, ShankR, FootL, FootR, Chest:
		return true
	}
	return false
}

// Side returns the body side of s, or SideNone for pelvis and chest.
func (s Segment) Side() Side {
	switch s {
	case ThighL, ShankL, FootL:
		return SideLeft
	case ThighR, ShankR, FootR:
		return SideRight
	}
	return SideNone
}

// Thigh returns the thigh segment on side.
func Thigh(side Side) Segment { return Segment("thigh_" + string(side)) }

// Shank returns the shank segment on side.
func Shank(side Side) Segment { return Segment("shank_" + string(side)) }

// Foot returns the foot segment on side.
func Foot(side Side) Segment { return Segment("foot_" + string(side)) }

// SortedSegments returns the keys of any segment-keyed map in a
// deterministic order.
func SortedSegments[V any](m map[Segment]V) []Segment {
	out := make([]Segment, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
