package l1samples

import (
	"fmt"
	"math"
)

// Default walking-period fallback, as fractions of the recording length.
const (
	DefaultFallbackStart = 0.25
	DefaultFallbackEnd   = 0.75
)

// Period is a half-open sample index range [Start, End).
type Period struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of samples in p, or 0 when p is empty or inverted.
func (p Period) Len() int {
	if p.End <= p.Start {
		return 0
	}
	return p.End - p.Start
}

// Empty reports whether p covers no samples.
func (p Period) Empty() bool { return p.Len() == 0 }

// Clamp restricts p to [0, n). An inverted period clamps to empty.
func (p Period) Clamp(n int) Period {
	if n < 0 {
		n = 0
	}
	start := min(max(p.Start, 0), n)
	end := min(max(p.End, 0), n)
	if end < start {
		end = start
	}
	return Period{Start: start, End: end}
}

func (p Period) String() string {
	return fmt.Sprintf("[%d, %d)", p.Start, p.End)
}

// FallbackPeriod returns [floor(startFrac·n), floor(endFrac·n)), clamped.
// Fractions outside [0, 1] or inverted fractions fall back to the default
// 25%-75% window.
func FallbackPeriod(n int, startFrac, endFrac float64) Period {
	if startFrac < 0 || endFrac > 1 || startFrac >= endFrac {
		startFrac, endFrac = DefaultFallbackStart, DefaultFallbackEnd
	}
	p := Period{
		Start: int(math.Floor(startFrac * float64(n))),
		End:   int(math.Floor(endFrac * float64(n))),
	}
	return p.Clamp(n)
}
