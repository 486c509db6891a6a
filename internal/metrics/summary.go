package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/revkit/internal/motor"
)

// Summary describes a recorded run.
type Summary struct {
	Samples       int     `json:"samples"`
	RMSError      float64 `json:"rms_error"`
	MeanAbsError  float64 `json:"mean_abs_error"`
	MaxAbsError   float64 `json:"max_abs_error"`
	ErrorStdDev   float64 `json:"error_stddev"`
	MeanEffort    float64 `json:"mean_effort"`
	Saturation    float64 `json:"saturation"`
	MeanSpeed     float64 `json:"mean_speed"`
	SpeedSetpoint float64 `json:"speed_setpoint_correlation"`
}

// Summarize computes the summary of samples. Statistics that need more than
// one sample are left at zero.
func Summarize(samples []motor.Sample) Summary {
	n := len(samples)
	if n == 0 {
		return Summary{}
	}

	errs := make([]float64, n)
	abs := make([]float64, n)
	speed := make([]float64, n)
	target := make([]float64, n)
	effort := make([]float64, n)
	sat := NewSaturation(motor.CommandLimit)
	for i, s := range samples {
		errs[i] = s.Setpoint - s.Measurement
		abs[i] = math.Abs(errs[i])
		speed[i] = s.Measurement
		target[i] = s.Setpoint
		effort[i] = math.Abs(float64(s.Command))
		sat.Observe(s)
	}

	sum := Summary{
		Samples:      n,
		RMSError:     math.Sqrt(floats.Dot(errs, errs) / float64(n)),
		MeanAbsError: stat.Mean(abs, nil),
		MaxAbsError:  floats.Max(abs),
		MeanEffort:   stat.Mean(effort, nil),
		Saturation:   sat.Value(),
		MeanSpeed:    stat.Mean(speed, nil),
	}
	if n > 1 {
		sum.ErrorStdDev = stat.StdDev(errs, nil)
		if c := stat.Correlation(speed, target, nil); !math.IsNaN(c) {
			sum.SpeedSetpoint = c
		}
	}
	return sum
}
