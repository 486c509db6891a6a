package control

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/san-kum/revkit/internal/state"
	"github.com/san-kum/revkit/internal/waveform"
)

// DefaultSetpointInterval is the target refresh period.
const DefaultSetpointInterval = 50 * time.Millisecond

// SetpointLoop publishes the waveform value for the time since Run started.
type SetpointLoop struct {
	shared   *state.Shared
	clk      clock.Clock
	interval time.Duration
}

func NewSetpointLoop(shared *state.Shared) *SetpointLoop {
	return &SetpointLoop{
		shared:   shared,
		clk:      clock.New(),
		interval: DefaultSetpointInterval,
	}
}

// WithClock replaces the wall clock, for tests.
func (s *SetpointLoop) WithClock(clk clock.Clock) *SetpointLoop {
	s.clk = clk
	return s
}

// WithInterval changes the refresh period. Non-positive values are ignored.
func (s *SetpointLoop) WithInterval(d time.Duration) *SetpointLoop {
	if d > 0 {
		s.interval = d
	}
	return s
}

// Run publishes immediately and then on every tick until ctx is done.
func (s *SetpointLoop) Run(ctx context.Context) error {
	start := s.clk.Now()
	ticker := s.clk.Ticker(s.interval)
	defer ticker.Stop()

	s.publish(start)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.publish(start)
		}
	}
}

func (s *SetpointLoop) publish(start time.Time) {
	t := s.clk.Since(start).Seconds()
	s.shared.SetSetpoint(waveform.ValueAt(t, s.shared.Waveform()))
}
