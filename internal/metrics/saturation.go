package metrics

import "github.com/san-kum/revkit/internal/motor"

// Saturation is the fraction of samples whose command sits on the bound.
type Saturation struct {
	name      string
	limit     int
	saturated int
	samples   int
}

func NewSaturation(limit int) *Saturation {
	return &Saturation{
		name:  "saturation",
		limit: limit,
	}
}

func (s *Saturation) Name() string {
	return s.name
}

func (s *Saturation) Observe(x motor.Sample) {
	s.samples++
	if x.Command >= s.limit || x.Command <= -s.limit {
		s.saturated++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.saturated) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.saturated = 0
	s.samples = 0
}
