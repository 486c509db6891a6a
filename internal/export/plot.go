package export

import (
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/revkit/internal/motor"
)

// PlotRange bounds the chart's vertical axis; it fits both speed and command.
const PlotRange = 310.0

var (
	rpmColor      = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	setpointColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	pwmColor      = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// NewPlot charts speed, setpoint and command against sample index.
func NewPlot(samples []motor.Sample) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Motor speed"
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "RPM / PWM"
	p.Y.Min = -PlotRange
	p.Y.Max = PlotRange

	rpm := make(plotter.XYs, len(samples))
	sp := make(plotter.XYs, len(samples))
	pwm := make(plotter.XYs, len(samples))
	for i, s := range samples {
		x := float64(i)
		rpm[i] = plotter.XY{X: x, Y: s.Measurement}
		sp[i] = plotter.XY{X: x, Y: s.Setpoint}
		pwm[i] = plotter.XY{X: x, Y: float64(s.Command)}
	}

	for _, series := range []struct {
		label string
		pts   plotter.XYs
		color color.Color
		dash  bool
	}{
		{"Current RPM", rpm, rpmColor, false},
		{"Target RPM", sp, setpointColor, true},
		{"PWM Output", pwm, pwmColor, false},
	} {
		line, err := plotter.NewLine(series.pts)
		if err != nil {
			return nil, err
		}
		line.Color = series.color
		line.Width = vg.Points(1)
		if series.dash {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(series.label, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	p.Add(plotter.NewGrid())
	return p, nil
}

// SavePNG charts samples into a timestamped PNG and returns its path.
func (s *Store) SavePNG(samples []motor.Sample) (string, error) {
	if len(samples) == 0 {
		return "", ErrNoSamples
	}
	if err := s.Init(); err != nil {
		return "", err
	}
	path := filepath.Join(s.baseDir, FileName(s.now(), ".png"))
	return path, WritePNG(path, samples)
}

// WritePNG charts samples into path; the format follows the extension.
func WritePNG(path string, samples []motor.Sample) error {
	p, err := NewPlot(samples)
	if err != nil {
		return err
	}
	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}
