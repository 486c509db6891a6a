package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/revkit/internal/link"
	"github.com/san-kum/revkit/internal/motor"
	"github.com/san-kum/revkit/internal/state"
	"github.com/san-kum/revkit/internal/waveform"
)

// scriptedDevice hands out readings sent on a channel and records writes.
type scriptedDevice struct {
	readings chan float64

	mu       sync.Mutex
	writes   []int
	writeErr error
	closed   bool
}

func newScriptedDevice() *scriptedDevice {
	return &scriptedDevice{readings: make(chan float64, 8)}
}

func (d *scriptedDevice) ReadMeasurement() (float64, error) {
	select {
	case v := <-d.readings:
		return v, nil
	case <-time.After(2 * time.Millisecond):
		return 0, motor.ErrMalformedMeasurement
	}
}

func (d *scriptedDevice) WriteCommand(v int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, v)
	return d.writeErr
}

func (d *scriptedDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *scriptedDevice) Writes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.writes...)
}

func (d *scriptedDevice) setWriteErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeErr = err
}

var _ = Describe("Loop", func() {
	var (
		shared  *state.Shared
		history *state.History
		ctx     context.Context
		cancel  context.CancelFunc
		done    chan error
	)

	square := waveform.Params{Kind: waveform.Square, Amplitude: 50, Offset: 150, Period: 10}

	BeforeEach(func() {
		var err error
		shared, err = state.New(motor.Gains{Kp: 1}, square)
		Expect(err).NotTo(HaveOccurred())
		history = state.NewHistory(0)
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
	})

	AfterEach(func() {
		cancel()
	})

	start := func(loop *Loop) {
		go func() { done <- loop.Run(ctx) }()
	}

	Context("over a serial link", func() {
		var (
			port *link.TestablePort
			loop *Loop
		)

		BeforeEach(func() {
			port = link.NewTestablePort()
			opener := &link.MockOpener{Ports: map[string]link.Port{"/dev/ttyACM0": port}}
			connect := func(ctx context.Context) (Device, error) {
				return link.Connect(ctx, link.Options{
					Ports:       []string{"/dev/ttyACM0"},
					Open:        opener.Open,
					ReadTimeout: 5 * time.Millisecond,
				})
			}
			loop = NewLoop(connect, shared, history)
		})

		It("keeps the last measurement when a line is malformed", func() {
			port.QueueLine("I:120")
			start(loop)

			Eventually(func() float64 {
				v, _ := shared.Measurement()
				return v
			}).Should(Equal(120.0))
			Eventually(func() uint64 { return loop.Stats().Cycles }).Should(BeEquivalentTo(1))

			port.QueueLine("X:abc")
			Eventually(port.Pending).Should(BeZero())
			Eventually(func() uint64 { return loop.Stats().SkippedReads }).Should(BeNumerically(">=", 1))

			v, ok := shared.Measurement()
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(120.0))
			Expect(loop.Stats().Cycles).To(BeEquivalentTo(1))
		})

		It("writes the computed command and records history", func() {
			shared.SetSetpoint(200)
			port.QueueLine("I:150")
			start(loop)

			Eventually(port.LastWrite).Should(Equal("50"))
			Eventually(shared.Command).Should(Equal(50))
			Eventually(history.Len).Should(Equal(1))
			Expect(history.Snapshot()[0]).To(Equal(motor.Sample{Measurement: 150, Setpoint: 200, Command: 50}))
			Expect(loop.State()).To(Equal(Running))
		})

		It("writes zero last and closes the port on shutdown", func() {
			shared.SetSetpoint(300)
			port.QueueLine("I:0", "I:10", "I:20")
			start(loop)

			Eventually(port.Pending).Should(BeZero())
			Eventually(func() uint64 { return loop.Stats().Cycles }).Should(BeEquivalentTo(3))
			Expect(port.Writes()).To(ContainElement("255"))

			cancel()
			Eventually(done).Should(Receive(BeNil()))
			Expect(port.LastWrite()).To(Equal("0"))
			Expect(port.Closed()).To(BeTrue())
			Expect(loop.State()).To(Equal(Closed))
		})
	})

	Context("with a scripted device", func() {
		var (
			dev *scriptedDevice
			clk *clock.Mock
		)

		BeforeEach(func() {
			dev = newScriptedDevice()
			clk = clock.NewMock()
		})

		newLoop := func(opts ...LoopOption) *Loop {
			opts = append([]LoopOption{WithClock(clk)}, opts...)
			return NewLoop(func(context.Context) (Device, error) { return dev, nil }, shared, history, opts...)
		}

		It("applies gain changes on the next cycle", func() {
			shared.SetSetpoint(200)
			loop := newLoop()
			start(loop)

			dev.readings <- 100
			Eventually(shared.Command).Should(Equal(100))

			Expect(shared.SetGains(motor.Gains{Kp: 2})).To(Succeed())
			clk.Add(20 * time.Millisecond)
			dev.readings <- 100
			Eventually(shared.Command).Should(Equal(200))
			Expect(dev.Writes()).To(Equal([]int{100, 200}))
		})

		It("reuses the previous command inside the minimum sample interval", func() {
			shared.SetSetpoint(200)
			loop := newLoop()
			start(loop)

			dev.readings <- 100
			Eventually(func() uint64 { return loop.Stats().Cycles }).Should(BeEquivalentTo(1))

			clk.Add(5 * time.Millisecond)
			dev.readings <- 0
			Eventually(func() uint64 { return loop.Stats().Cycles }).Should(BeEquivalentTo(2))
			Expect(dev.Writes()).To(Equal([]int{100, 100}))

			samples := history.Snapshot()
			Expect(samples[1].Measurement).To(Equal(0.0))
			Expect(samples[1].Command).To(Equal(100))
		})

		It("counts write timeouts and keeps running", func() {
			shared.SetSetpoint(200)
			dev.setWriteErr(motor.ErrWriteTimeout)
			loop := newLoop()
			start(loop)

			dev.readings <- 150
			Eventually(func() uint64 { return loop.Stats().WriteTimeouts }).Should(BeEquivalentTo(1))
			Eventually(shared.Command).Should(Equal(50))

			dev.setWriteErr(nil)
			clk.Add(20 * time.Millisecond)
			dev.readings <- 100
			Eventually(shared.Command).Should(Equal(100))
			Expect(loop.Stats().WriteTimeouts).To(BeEquivalentTo(1))
		})

		It("notifies observers with each sample", func() {
			samples := make(chan motor.Sample, 4)
			shared.SetSetpoint(200)
			loop := newLoop(WithObserver(func(s motor.Sample) { samples <- s }))
			start(loop)

			dev.readings <- 190
			Eventually(samples).Should(Receive(Equal(motor.Sample{Measurement: 190, Setpoint: 200, Command: 10})))
		})

		It("exposes the PID terms of the last cycle", func() {
			shared.SetSetpoint(200)
			loop := newLoop()
			start(loop)

			dev.readings <- 150
			Eventually(loop.Terms).Should(Equal(Terms{P: 50}))
		})
	})

	It("returns the connection error and ends closed", func() {
		loop := NewLoop(func(context.Context) (Device, error) {
			return nil, fmt.Errorf("%w (tried /dev/ttyUSB0)", motor.ErrNoDeviceFound)
		}, shared, history)

		err := loop.Run(ctx)
		Expect(err).To(MatchError(motor.ErrNoDeviceFound))
		Expect(loop.State()).To(Equal(Closed))
	})
})
