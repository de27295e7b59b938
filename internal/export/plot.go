package export

import (
	"fmt"
	"io"

	"github.com/couchcryptid/weather-station-sim/internal/domain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 12 * vg.Inch
)

type chart struct {
	title    string
	yLabel   string
	variable domain.Variable
}

var charts = []chart{
	{title: "Temperature", yLabel: "°C", variable: domain.VarTemperature},
	{title: "Humidity", yLabel: "%", variable: domain.VarHumidity},
	{title: "Pressure", yLabel: "hPa", variable: domain.VarPressure},
}

// WritePlot renders temperature, humidity and pressure against step index as
// three stacked line charts in a single PNG.
func WritePlot(w io.Writer, location string, snapshots []domain.Snapshot) error {
	img := vgimg.New(plotWidth, plotHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: len(charts),
		Cols: 1,
		PadX: vg.Millimeter,
		PadY: 4 * vg.Millimeter,
	}

	for i, c := range charts {
		p, err := newChart(location, c, snapshots)
		if err != nil {
			return err
		}
		p.Draw(tiles.At(dc, 0, i))
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// SavePlot writes the PNG chart to path, creating parent directories.
func SavePlot(path, location string, snapshots []domain.Snapshot) (err error) {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WritePlot(f, location, snapshots)
}

func newChart(location string, c chart, snapshots []domain.Snapshot) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s", location, c.title)
	p.X.Label.Text = "Step"
	p.Y.Label.Text = c.yLabel
	p.Add(plotter.NewGrid())

	if len(snapshots) == 0 {
		return p, nil
	}

	pts := make(plotter.XYs, len(snapshots))
	for i := range snapshots {
		pts[i].X = float64(snapshots[i].Step)
		pts[i].Y = snapshots[i].Value(c.variable)
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("%s series: %w", c.title, err)
	}
	p.Add(line)
	return p, nil
}
