package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/revkit/internal/motor"
)

var (
	dataDir    string
	configFile string
	preset     string
	logFile    string
	debug      bool
	// Serial
	portName string
	baudRate int
	simulate bool
	// Tuning overrides
	kp        float64
	ki        float64
	kd        float64
	amplitude float64
	offset    float64
	period    float64
	wave      string
	// Headless runs
	headless    bool
	statusEvery time.Duration
	runFor      time.Duration
	exportOnEnd bool
	// Plot output
	pngPath string
)

// main registers the commands and runs the monitor when no subcommand is given.
// A missing device gets its own message; every failure exits with status 1.
func main() {
	rootCmd := &cobra.Command{
		Use:           "revkit",
		Short:         "serial motor speed PID controller",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runController(cmd, false)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".", "export directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default ~/.revkit/revkit_config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file (default ~/.revkit/revkit.log while the monitor runs)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")
	addRunFlags(rootCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runController(cmd, headless)
		},
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&headless, "headless", false, "log status instead of showing the monitor")
	runCmd.Flags().DurationVar(&statusEvery, "status-every", 5*time.Second, "status report interval when headless")
	runCmd.Flags().DurationVar(&runFor, "for", 0, "stop after this long (0 runs until interrupted)")
	runCmd.Flags().BoolVar(&exportOnEnd, "export", false, "export history as CSV and PNG on exit")

	portsCmd := &cobra.Command{
		Use:   "ports",
		Short: "list serial ports",
		RunE:  listPorts,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list tuning presets",
		RunE:  listPresets,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "show or edit the saved tuning",
	}
	configCmd.AddCommand(
		&cobra.Command{Use: "show", Short: "print the saved tuning", RunE: showConfig},
		&cobra.Command{Use: "path", Short: "print the config file path", RunE: configPath},
		&cobra.Command{Use: "reset", Short: "restore default tuning", RunE: resetConfig},
		&cobra.Command{Use: "set key=value...", Short: "change saved values", Args: cobra.MinimumNArgs(1), RunE: setConfig},
	)

	waveCmd := &cobra.Command{
		Use:   "wave [kind]",
		Short: "preview the setpoint waveform",
		Args:  cobra.MaximumNArgs(1),
		RunE:  previewWave,
	}
	addTuningFlags(waveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list exports",
		RunE:  listExports,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [export]",
		Short: "plot an exported CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  plotExport,
	}
	plotCmd.Flags().StringVar(&pngPath, "png", "", "also render to this PNG file")

	rootCmd.AddCommand(runCmd, portsCmd, presetsCmd, configCmd, waveCmd, listCmd, plotCmd)

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, motor.ErrNoDeviceFound) {
			fmt.Fprintln(os.Stderr, "revkit couldn't launch: no serial device found")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&portName, "port", "", "serial port (default: first that opens)")
	cmd.Flags().IntVar(&baudRate, "baud", 115200, "baud rate")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "drive a simulated motor instead of hardware")
	cmd.Flags().StringVar(&preset, "preset", "", "start from a preset")
	addTuningFlags(cmd)
}

func addTuningFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&kp, "kp", 0, "proportional gain")
	cmd.Flags().Float64Var(&ki, "ki", 0, "integral gain")
	cmd.Flags().Float64Var(&kd, "kd", 0, "derivative gain")
	cmd.Flags().Float64Var(&amplitude, "amplitude", 0, "waveform amplitude (rpm)")
	cmd.Flags().Float64Var(&offset, "offset", 0, "waveform offset (rpm)")
	cmd.Flags().Float64Var(&period, "period", 0, "waveform period (s)")
	cmd.Flags().StringVar(&wave, "wave", "", "waveform: square, sine or triangle")
}
