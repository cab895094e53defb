package pipeline

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

// logStream is one of the pipeline's log outputs. Estimation runs one
// goroutine per sensor, so the logger is swapped atomically.
type logStream struct {
	tag string
	l   atomic.Pointer[log.Logger]
}

var (
	// Stage outcomes a user should see: fallbacks, skipped joints, warnings.
	opsStream = &logStream{tag: "ops"}
	// Calibration periods, chosen filter and per-stage summaries.
	diagStream = &logStream{tag: "diag"}
	// Per-sensor estimation detail.
	traceStream = &logStream{tag: "trace"}
)

func init() {
	if path := os.Getenv("KINEMATICS_DEBUG_LOG"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			SetLegacyLogger(f)
		}
	}
}

func (s *logStream) set(w io.Writer) {
	if w == nil {
		s.l.Store(nil)
		return
	}
	s.l.Store(log.New(w, "[pipeline] ", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix))
}

func (s *logStream) printf(format string, args ...interface{}) {
	if l := s.l.Load(); l != nil {
		l.Printf(s.tag+": "+format, args...)
	}
}

// SetLogWriters directs the ops, diag and trace output. A nil writer
// silences that output.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsStream.set(ops)
	diagStream.set(diag)
	traceStream.set(trace)
}

// SetLegacyLogger sends all pipeline logging to w, as KINEMATICS_DEBUG_LOG does.
func SetLegacyLogger(w io.Writer) {
	SetLogWriters(w, w, w)
}

func opsf(format string, args ...interface{})   { opsStream.printf(format, args...) }
func diagf(format string, args ...interface{})  { diagStream.printf(format, args...) }
func tracef(format string, args ...interface{}) { traceStream.printf(format, args...) }
