// Package export writes a station's snapshot history to files: a CSV table
// and a PNG chart of temperature, humidity and pressure.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/weather-station-sim/internal/domain"
)

// Header is the fixed CSV column order.
var Header = []string{"temp", "humidity", "pressure", "wind_speed", "wind_dir", "event"}

// WriteCSV writes a header row followed by one row per snapshot. Snapshots
// without an event get an empty event cell.
func WriteCSV(w io.Writer, snapshots []domain.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range snapshots {
		s := &snapshots[i]
		row := []string{
			formatFloat(s.Temperature),
			formatFloat(s.Humidity),
			formatFloat(s.Pressure),
			formatFloat(s.WindSpeed),
			formatFloat(s.WindDirection),
			s.Event.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the CSV export to path, creating parent directories.
func SaveCSV(path string, snapshots []domain.Snapshot) (err error) {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteCSV(f, snapshots)
}

// ReadCSV parses a CSV export back into snapshots. Steps are numbered from 1
// in row order; timestamps are not part of the export and stay zero.
func ReadCSV(r io.Reader) ([]domain.Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range Header {
		if header[i] != col {
			return nil, fmt.Errorf("column %d: got %q, want %q", i+1, header[i], col)
		}
	}

	var out []domain.Snapshot
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(out)+1, err)
		}
		snap, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(out)+1, err)
		}
		snap.Step = len(out) + 1
		out = append(out, snap)
	}
}

func parseRow(row []string) (domain.Snapshot, error) {
	var vals [5]float64
	for i := range vals {
		v, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("%s: %w", Header[i], err)
		}
		vals[i] = v
	}
	event, err := domain.ParseEventKind(row[5])
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.Snapshot{
		Conditions: domain.Conditions{
			Temperature:   vals[0],
			Humidity:      vals[1],
			Pressure:      vals[2],
			WindSpeed:     vals[3],
			WindDirection: vals[4],
		},
		Event: event,
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir for %s: %w", path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}
