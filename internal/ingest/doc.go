// Package ingest is the boundary adapter between sensor vendor exports
// and the kinematics core.
//
// It reads tab or comma separated tables with named columns, maps
// sensor IDs found in file names to body segments, and loads whole task
// directories into l1samples.Recording values. Nothing here does
// kinematics; the core never sees file names or sensor IDs.
package ingest
