package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/imu-kinematics/internal/kinematics/l1samples"
	"github.com/banshee-data/imu-kinematics/internal/monitoring"
)

// ErrNoHeader is returned for a table without a header row.
var ErrNoHeader = errors.New("ingest: table has no header row")

const commentPrefix = "//"

// ReadTable parses a vendor export: optional "//" comment lines, one
// header row of column names, then one row per sample. The delimiter is
// a tab when the header contains one, else a comma. Empty cells become
// NaN. Columns holding non-numeric text are dropped.
func ReadTable(r io.Reader) (*l1samples.SensorTable, error) {
	var body bytes.Buffer
	header := ""
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.HasPrefix(strings.TrimSpace(line), commentPrefix) || strings.TrimSpace(line) == "" {
			continue
		}
		if header == "" {
			header = line
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingest: read table: %w", err)
	}
	if header == "" {
		return nil, ErrNoHeader
	}

	cr := csv.NewReader(&body)
	cr.Comma = ','
	if strings.Contains(header, "\t") {
		cr.Comma = '\t'
	}
	cr.ReuseRecord = true

	rec, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: read header: %w", err)
	}
	names := make([]string, len(rec))
	for i, n := range rec {
		names[i] = strings.TrimSpace(n)
	}

	columns := make([][]float64, len(names))
	numeric := make([]bool, len(names))
	for i := range numeric {
		numeric[i] = true
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read row: %w", err)
		}
		for i, cell := range rec {
			cell = strings.TrimSpace(cell)
			v := math.NaN()
			if cell != "" {
				f, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					numeric[i] = false
				}
				v = f
			}
			columns[i] = append(columns[i], v)
		}
	}

	var keptNames []string
	var kept [][]float64
	for i, name := range names {
		if !numeric[i] {
			monitoring.Logf("ingest: dropping non-numeric column %q", name)
			continue
		}
		keptNames = append(keptNames, name)
		kept = append(kept, columns[i])
	}
	t, err := l1samples.NewSensorTable(keptNames, kept)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	return t, nil
}
