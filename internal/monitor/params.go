package monitor

import (
	"fmt"

	"github.com/san-kum/revkit/internal/motor"
	"github.com/san-kum/revkit/internal/waveform"
)

// param is one adjustable value with the range the desktop sliders had.
type param struct {
	name     string
	min, max float64
	step     float64
	format   string
	get      func(motor.Gains, waveform.Params) float64
	set      func(*motor.Gains, *waveform.Params, float64)
}

var params = []param{
	{
		name: "Kp", min: 0, max: 10, step: 0.1, format: "%.2f",
		get: func(g motor.Gains, _ waveform.Params) float64 { return g.Kp },
		set: func(g *motor.Gains, _ *waveform.Params, v float64) { g.Kp = v },
	},
	{
		name: "Ki", min: 0, max: 10, step: 0.1, format: "%.2f",
		get: func(g motor.Gains, _ waveform.Params) float64 { return g.Ki },
		set: func(g *motor.Gains, _ *waveform.Params, v float64) { g.Ki = v },
	},
	{
		name: "Kd", min: 0, max: 0.5, step: 0.005, format: "%.3f",
		get: func(g motor.Gains, _ waveform.Params) float64 { return g.Kd },
		set: func(g *motor.Gains, _ *waveform.Params, v float64) { g.Kd = v },
	},
	{
		name: "Amplitude", min: 0, max: 300, step: 5, format: "%.0f",
		get: func(_ motor.Gains, w waveform.Params) float64 { return w.Amplitude },
		set: func(_ *motor.Gains, w *waveform.Params, v float64) { w.Amplitude = v },
	},
	{
		name: "Offset", min: -300, max: 300, step: 5, format: "%.0f",
		get: func(_ motor.Gains, w waveform.Params) float64 { return w.Offset },
		set: func(_ *motor.Gains, w *waveform.Params, v float64) { w.Offset = v },
	},
	{
		name: "Period", min: 0.1, max: 20, step: 0.1, format: "%.1f",
		get: func(_ motor.Gains, w waveform.Params) float64 { return w.Period },
		set: func(_ *motor.Gains, w *waveform.Params, v float64) { w.Period = v },
	},
}

func (p param) isGain() bool {
	return p.name == "Kp" || p.name == "Ki" || p.name == "Kd"
}

func (p param) render(v float64) string {
	return fmt.Sprintf(p.format, v)
}

// ratio places v on the slider, 0 at min and 1 at max.
func (p param) ratio(v float64) float64 {
	if p.max <= p.min {
		return 0
	}
	return motor.Clamp((v-p.min)/(p.max-p.min), 0, 1)
}
