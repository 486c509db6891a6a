package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/revkit/internal/config"
	"github.com/san-kum/revkit/internal/control"
	"github.com/san-kum/revkit/internal/export"
	"github.com/san-kum/revkit/internal/link"
	"github.com/san-kum/revkit/internal/logging"
	"github.com/san-kum/revkit/internal/metrics"
	"github.com/san-kum/revkit/internal/monitor"
	"github.com/san-kum/revkit/internal/motor"
	"github.com/san-kum/revkit/internal/plant"
	"github.com/san-kum/revkit/internal/state"
)

func newLogger(headless bool) (*zap.SugaredLogger, func() error, error) {
	opts := logging.Options{Debug: debug, File: logFile}
	if headless {
		opts.Console = os.Stderr
		return logging.New(opts)
	}
	// The monitor owns the terminal.
	if opts.File == "" {
		path, err := logging.DefaultFile()
		if err != nil {
			return nil, nil, err
		}
		opts.File = path
	}
	return logging.New(opts)
}

// resolveConfig loads the saved record, then applies --preset and any
// explicitly set tuning flags on top of it.
func resolveConfig(cmd *cobra.Command, logger *zap.SugaredLogger) (*config.Config, string, error) {
	cfg, path, err := config.LoadDefault(configFile, logger)
	if err != nil {
		return nil, "", err
	}
	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, "", fmt.Errorf("unknown preset %q (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
		cfg = p
	}
	applyOverrides(cmd, cfg)
	return cfg, path, cfg.Validate()
}

func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("kp") {
		cfg.Kp = kp
	}
	if flags.Changed("ki") {
		cfg.Ki = ki
	}
	if flags.Changed("kd") {
		cfg.Kd = kd
	}
	if flags.Changed("amplitude") {
		cfg.Amplitude = amplitude
	}
	if flags.Changed("offset") {
		cfg.Offset = offset
	}
	if flags.Changed("period") {
		cfg.Period = period
	}
	if flags.Changed("wave") {
		cfg.Wave = wave
	}
}

func linkOptions(logger *zap.SugaredLogger) link.Options {
	opts := link.DefaultOptions()
	opts.BaudRate = baudRate
	opts.Logger = logger
	if portName != "" {
		opts.Ports = []string{portName}
	}
	if simulate {
		opts.Ports = []string{link.SimPortName}
		opts.Open = link.SimOpener(plant.NewDCMotor(), nil)
		opts.List = link.SimLister
		opts.Settle = 0
	}
	return opts
}

func runController(cmd *cobra.Command, headless bool) error {
	logger, closeLog, err := newLogger(headless)
	if err != nil {
		return err
	}
	defer func() {
		_ = closeLog()
	}()

	cfg, cfgPath, err := resolveConfig(cmd, logger)
	if err != nil {
		return err
	}

	shared, err := state.New(cfg.Gains(), cfg.Waveform())
	if err != nil {
		return err
	}
	history := state.NewHistory(state.HistoryCapacity)
	store := config.NewStore(cfgPath, shared, logger, config.DefaultSaveDelay)
	exports := export.New(dataDir)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if headless && runFor > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, runFor)
		defer cancelTimeout()
	}

	// The device is opened before anything is shown so a missing board
	// fails fast.
	dev, err := link.Connect(ctx, linkOptions(logger))
	if err != nil {
		return err
	}
	logger.Infow("starting", "port", dev.Name(), "config", cfgPath, "gains", shared.Gains(), "waveform", shared.Waveform())

	recorder := metrics.NewRecorder()
	loop := control.NewLoop(func(context.Context) (control.Device, error) {
		return dev, nil
	}, shared, history, control.WithLogger(logger), control.WithObserver(recorder.Observe))
	setpoints := control.NewSetpointLoop(shared)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		return setpoints.Run(gctx)
	})
	g.Go(func() error {
		if err := store.Watch(gctx); err != nil {
			logger.Warnw("config reload disabled", "error", err)
		}
		return nil
	})

	if headless {
		err = runHeadless(gctx, loop, shared, store, recorder, logger)
	} else {
		model := monitor.NewModel(shared, history, store,
			monitor.WithExporter(exports),
			monitor.WithLoop(loop),
			monitor.WithMetrics(recorder),
			monitor.WithLogger(logger),
		)
		err = monitor.Run(gctx, model)
	}
	cancel()

	if werr := g.Wait(); err == nil {
		err = werr
	}
	// Only edits are saved; a preset or flag override stays with this run.
	if ferr := store.Sync(); ferr != nil {
		logger.Warnw("saving config", "error", ferr)
	}

	samples := history.Snapshot()
	if headless {
		s := metrics.Summarize(samples)
		logger.Infow("stopped", "cycles", loop.Stats().Cycles, "rms_error", s.RMSError, "saturation", s.Saturation)
	}
	if exportOnEnd && len(samples) > 0 {
		for _, save := range []func([]motor.Sample) (string, error){exports.SaveCSV, exports.SaveJSON, exports.SavePNG} {
			path, xerr := save(samples)
			if xerr != nil {
				logger.Warnw("export failed", "error", xerr)
				continue
			}
			fmt.Println("saved", path)
		}
	}
	return err
}

// runHeadless reports loop status on a schedule and logs every tuning
// change until ctx is done.
func runHeadless(ctx context.Context, loop *control.Loop, shared *state.Shared, store *config.Store, recorder *metrics.Recorder, logger *zap.SugaredLogger) error {
	updates := store.Subscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cfg := <-updates:
				logger.Infow("tuning changed",
					"kp", cfg.Kp, "ki", cfg.Ki, "kd", cfg.Kd,
					"wave", cfg.Wave, "amplitude", cfg.Amplitude, "offset", cfg.Offset, "period", cfg.Period,
				)
			}
		}
	}()

	if statusEvery <= 0 {
		<-ctx.Done()
		return nil
	}

	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(statusEvery).Do(func() {
		logger.Infow("status", statusFields(loop, shared.Snapshot(), recorder.Readings())...)
	})
	if err != nil {
		return err
	}
	s.StartAsync()
	defer s.Stop()

	<-ctx.Done()
	return nil
}

type loopStatus interface {
	State() control.LoopState
	Stats() control.Stats
}

func statusFields(loop loopStatus, snap state.Snapshot, readings []metrics.Reading) []any {
	stats := loop.Stats()
	fields := []any{
		"state", loop.State(),
		"rpm", snap.Measurement,
		"setpoint", snap.Setpoint,
		"pwm", snap.Command,
		"cycles", stats.Cycles,
		"skipped", stats.SkippedReads,
		"write_timeouts", stats.WriteTimeouts,
	}
	for _, r := range readings {
		fields = append(fields, r.Name, r.Value)
	}
	return fields
}
