// Package report renders diagnostics for a processed task: one PNG line
// plot per DOF, per-joint overview plots, a zip archive of the plots and
// an HTML dashboard.
//
// Everything is written through fsutil.FileSystem so the CLI and the tests
// share one code path.
package report
