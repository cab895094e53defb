package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
)

// ErrUnknownSegment is returned when a mapping names a segment the core
// does not know.
var ErrUnknownSegment = errors.New("ingest: unknown segment")

// SensorMapping maps upper-case 8-hex-digit sensor IDs to segments.
type SensorMapping map[string]l1samples.Segment

// ParseSensorMapping accepts either a JSON object {"00B4D7D4": "pelvis"}
// or text with one sensor per line as "ID: segment" or "segment ID".
// Text lines without a sensor ID, such as a header, are ignored.
func ParseSensorMapping(data []byte) (SensorMapping, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		var raw map[string]string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("ingest: parse sensor mapping: %w", err)
		}
		m := make(SensorMapping, len(raw))
		for id, seg := range raw {
			if err := m.add(id, seg); err != nil {
				return nil, err
			}
		}
		return m, nil
	}

	m := make(SensorMapping)
	for i, line := range strings.Split(string(trimmed), "\n") {
		fields := strings.Fields(strings.ReplaceAll(line, ":", " "))
		if len(fields) < 2 {
			continue
		}
		var id, seg string
		switch {
		case isSensorID(fields[0]):
			id, seg = fields[0], fields[1]
		case isSensorID(fields[1]):
			id, seg = fields[1], fields[0]
		default:
			continue
		}
		if err := m.add(id, seg); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return m, nil
}

func (m SensorMapping) add(id, seg string) error {
	s := l1samples.Segment(strings.ToLower(strings.TrimSpace(seg)))
	if !s.Known() {
		return fmt.Errorf("%w %q for sensor %s", ErrUnknownSegment, seg, id)
	}
	m[strings.ToUpper(strings.TrimSpace(id))] = s
	return nil
}

// Segment returns the segment of a sensor ID, matched case-insensitively.
func (m SensorMapping) Segment(id string) (l1samples.Segment, bool) {
	s, ok := m[strings.ToUpper(id)]
	return s, ok
}

// IDs returns the mapped sensor IDs, sorted.
func (m SensorMapping) IDs() []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func isSensorID(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// SensorIDCandidates returns every underscore-separated part of a file
// name that is exactly 8 hex digits, upper-cased, in order.
func SensorIDCandidates(path string) []string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var out []string
	for _, part := range strings.Split(base, "_") {
		if isSensorID(part) {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

// ExtractSensorID returns the last 8-hex-digit part of a file name. Vendor
// exports put the station ID first and the sensor ID last:
// "MT_012005D6_009-000_00B4D7D4.txt" yields "00B4D7D4".
func ExtractSensorID(path string) (string, bool) {
	c := SensorIDCandidates(path)
	if len(c) == 0 {
		return "", false
	}
	return c[len(c)-1], true
}

// Resolve returns the segment for a file name, trying every sensor ID
// candidate against the mapping. id is the last candidate when none is
// mapped.
func (m SensorMapping) Resolve(path string) (id string, seg l1samples.Segment, ok bool) {
	c := SensorIDCandidates(path)
	for i := len(c) - 1; i >= 0; i-- {
		if s, found := m.Segment(c[i]); found {
			return c[i], s, true
		}
	}
	if len(c) > 0 {
		id = c[len(c)-1]
	}
	return id, "", false
}
