package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/revkit/internal/config"
	"github.com/san-kum/revkit/internal/export"
	"github.com/san-kum/revkit/internal/link"
	"github.com/san-kum/revkit/internal/metrics"
	"github.com/san-kum/revkit/internal/monitor"
	"github.com/san-kum/revkit/internal/state"
	"github.com/san-kum/revkit/internal/waveform"
)

func listPorts(cmd *cobra.Command, args []string) error {
	ports, err := link.Ports()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tUSB\tVID:PID\tSERIAL\tPRODUCT")
	for _, p := range ports {
		ids := "-"
		if p.IsUSB {
			ids = p.VID + ":" + p.PID
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\n", p.Name, p.IsUSB, ids, p.SerialNumber, p.Product)
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKP\tKI\tKD\tWAVE\tAMPL\tOFFSET\tPERIOD")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.3f\t%s\t%.0f\t%.0f\t%.1fs\n",
			name, p.Kp, p.Ki, p.Kd, p.Wave, p.Amplitude, p.Offset, p.Period)
	}
	return w.Flush()
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, path, err := config.LoadDefault(configFile, nil)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", path, out)
	return nil
}

func configPath(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	fmt.Println(path)
	return nil
}

func resetConfig(cmd *cobra.Command, args []string) error {
	_, path, err := config.LoadDefault(configFile, nil)
	if err != nil && path == "" {
		return err
	}
	if err := saveRecord(path, config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Println("reset", path)
	return nil
}

func setConfig(cmd *cobra.Command, args []string) error {
	cfg, path, err := config.LoadDefault(configFile, nil)
	if err != nil {
		return err
	}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", arg)
		}
		if err := setConfigValue(cfg, key, value); err != nil {
			return err
		}
	}
	if err := saveRecord(path, cfg); err != nil {
		return err
	}
	fmt.Println("saved", path)
	return nil
}

// saveRecord validates cfg and writes it the way a running controller
// would, through a config store.
func saveRecord(path string, cfg *config.Config) error {
	seed := config.DefaultConfig()
	shared, err := state.New(seed.Gains(), seed.Waveform())
	if err != nil {
		return err
	}
	store := config.NewStore(path, shared, nil, 0)
	if err := store.Apply(cfg); err != nil {
		return err
	}
	return store.Sync()
}

func setConfigValue(cfg *config.Config, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "wave" {
		kind, err := waveform.ParseKind(value)
		if err != nil {
			return err
		}
		cfg.Wave = string(kind)
		return nil
	}

	fields := map[string]*float64{
		"kp":        &cfg.Kp,
		"ki":        &cfg.Ki,
		"kd":        &cfg.Kd,
		"amplitude": &cfg.Amplitude,
		"offset":    &cfg.Offset,
		"period":    &cfg.Period,
	}
	field, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown key %q", key)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*field = v
	return nil
}

func previewWave(cmd *cobra.Command, args []string) error {
	cfg, _, err := config.LoadDefault(configFile, nil)
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)
	if len(args) == 1 {
		cfg.Wave = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	p := cfg.Waveform()
	data := waveform.Sample(p, 2*p.Period, 120)
	graph := asciigraph.Plot(data,
		asciigraph.Height(12),
		asciigraph.Width(120),
		asciigraph.Caption(fmt.Sprintf("%s: amplitude %.0f, offset %.0f, period %.1fs (two periods)",
			p.Kind, p.Amplitude, p.Offset, p.Period)),
	)
	fmt.Println(graph)
	return nil
}

func listExports(cmd *cobra.Command, args []string) error {
	st := export.New(dataDir)
	records, err := st.List()
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("no exports found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIME\tSIZE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%dB\n", r.Name, r.ModTime.Format("2006-01-02 15:04:05"), r.Size)
	}
	return w.Flush()
}

func plotExport(cmd *cobra.Command, args []string) error {
	st := export.New(dataDir)
	samples, err := st.LoadCSV(args[0])
	if err != nil {
		return err
	}

	if len(samples) == 0 {
		return export.ErrNoSamples
	}

	fmt.Printf("export: %s\n", st.Resolve(args[0]))
	fmt.Printf("samples: %d\n\n", len(samples))

	rpm := make([]float64, len(samples))
	target := make([]float64, len(samples))
	pwm := make([]float64, len(samples))
	for i, s := range samples {
		rpm[i] = s.Measurement
		target[i] = s.Setpoint
		pwm[i] = float64(s.Command)
	}

	fmt.Println(asciigraph.PlotMany([][]float64{rpm, target},
		asciigraph.Height(12),
		asciigraph.Width(100),
		asciigraph.LowerBound(-monitor.RPMRange),
		asciigraph.UpperBound(monitor.RPMRange),
		asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Red),
		asciigraph.Caption("Current RPM (cyan) / Target RPM (red)"),
	))
	fmt.Println()
	fmt.Println(asciigraph.Plot(pwm,
		asciigraph.Height(8),
		asciigraph.Width(100),
		asciigraph.LowerBound(-monitor.PWMRange),
		asciigraph.UpperBound(monitor.PWMRange),
		asciigraph.Caption("PWM Output"),
	))
	fmt.Println()

	s := metrics.Summarize(samples)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "rms error\t%.2f rpm\n", s.RMSError)
	fmt.Fprintf(w, "mean |error|\t%.2f rpm\n", s.MeanAbsError)
	fmt.Fprintf(w, "max |error|\t%.2f rpm\n", s.MaxAbsError)
	fmt.Fprintf(w, "mean effort\t%.1f\n", s.MeanEffort)
	fmt.Fprintf(w, "saturation\t%.0f%%\n", 100*s.Saturation)
	fmt.Fprintf(w, "speed/target corr\t%.3f\n", s.SpeedSetpoint)
	if err := w.Flush(); err != nil {
		return err
	}

	if pngPath != "" {
		if err := export.WritePNG(pngPath, samples); err != nil {
			return err
		}
		fmt.Println("\nsaved", pngPath)
	}
	return nil
}
