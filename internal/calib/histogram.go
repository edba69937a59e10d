package calib

import (
	"github.com/pkg/errors"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// histogramBins matches the bin count the original UI used for its dark/flat
// review histograms.
const histogramBins = 64

// saveHistogram renders a PNG histogram of samples at path, giving the
// calibration capture workflow a review artifact alongside the TIFF image.
func saveHistogram(path, title string, samples []float32) error {
	values := make(plotter.Values, len(samples))
	for i, v := range samples {
		values[i] = float64(v)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "sample value"
	p.Y.Label.Text = "count"

	hist, err := plotter.NewHist(values, histogramBins)
	if err != nil {
		return errors.Wrap(err, "calib: build histogram")
	}
	p.Add(hist)

	if err := p.Save(4*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "calib: save histogram png")
	}
	return nil
}
