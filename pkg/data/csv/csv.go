// Package csv persists time/rate series as two-column CSV with a
// "time,rate" header.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/peter-kozarec/declinefit/pkg/utility"
)

var (
	ErrHeader         = errors.New("csv: expected header \"time,rate\"")
	ErrLengthMismatch = errors.New("csv: time and rate series differ in length")
)

var header = []string{"time", "rate"}

// Write emits the header followed by one row per sample, each value
// rounded to utility.ReportScale places.
func Write(w io.Writer, t, q []float64) error {
	if len(t) != len(q) {
		return fmt.Errorf("%w: len(t)=%d len(q)=%d", ErrLengthMismatch, len(t), len(q))
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("unable to write header: %w", err)
	}
	for i := range t {
		row := []string{
			utility.FormatFloat(t[i], utility.ReportScale),
			utility.FormatFloat(q[i], utility.ReportScale),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("unable to write row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Read parses a series written by Write. Rows whose time or rate is not
// finite are dropped, so callers receive an aligned, cleaned series.
func Read(r io.Reader) ([]float64, []float64, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(header)

	head, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read header: %w", err)
	}
	if head[0] != header[0] || head[1] != header[1] {
		return nil, nil, ErrHeader
	}

	var t, q []float64
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("unable to read line %d: %w", line, err)
		}
		ti, err := parseField(record[0])
		if err != nil {
			return nil, nil, fmt.Errorf("line %d time: %w", line, err)
		}
		qi, err := parseField(record[1])
		if err != nil {
			return nil, nil, fmt.Errorf("line %d rate: %w", line, err)
		}
		if !finite(ti) || !finite(qi) {
			continue
		}
		t = append(t, ti)
		q = append(q, qi)
	}
	return t, q, nil
}

func WriteFile(path string, t, q []float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create directory for %q: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", path, err)
	}
	if err := Write(f, t, q); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func ReadFile(path string) ([]float64, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open %q: %w", path, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return Read(f)
}

func parseField(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return utility.ParseFloat(s)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
