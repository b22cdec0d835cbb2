// SPDX-License-Identifier: MIT
// Package cmd defines the command-line interface and turns flags and the
// configuration file into the options main runs with.
package cmd

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"pcgmon/internal/config"
	"pcgmon/pkg/build"
)

// Command names the action main should perform.
type Command string

const (
	CommandLive       Command = "live"
	CommandFile       Command = "file"
	CommandSimulate   Command = "simulate"
	CommandList       Command = "list"
	CommandVersion    Command = "version"
	CommandInitConfig Command = "init-config"
)

// Options is the parsed command line.
type Options struct {
	Command Command
	Config  *config.Config // nil for list, version and init-config
	Path    string         // WAV file for file, destination for init-config
	TUI     bool           // run the full-screen monitor
	Pick    bool           // choose the input device interactively
}

type flagValues struct {
	configPath    string
	logLevel      string
	verbose       bool
	threshold     int
	cooldown      float64
	fullRecompute bool
	device        int
	sampleRate    float64
	frames        int
	lowLatency    bool
	record        bool
	output        string
	ws            string
	udp           string
	metrics       string
	tui           bool
	pick          bool
	bpm           float64
	amplitude     int
	realtime      bool
}

// ParseArgs parses args (without the program name). It returns nil options
// when only help was requested.
func ParseArgs(args []string) (*Options, error) {
	return parse(args, nil)
}

func parse(args []string, out io.Writer) (*Options, error) {
	var (
		opts *Options
		v    flagValues
	)
	info := build.Get()

	// run resolves the configuration for commands that process audio.
	run := func(command Command) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, args []string) error {
			cfg, err := resolveConfig(c, &v)
			if err != nil {
				return err
			}
			opts = &Options{Command: command, Config: cfg, TUI: v.tui, Pick: v.pick}
			if len(args) > 0 {
				opts.Path = args[0]
			}
			return nil
		}
	}

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         "Heart-rate monitor for phonocardiogram audio",
		Long:          "Detects heartbeat peaks in phonocardiogram audio from a capture device,\na WAV file or a synthetic source, and reports the heart rate.",
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: run(CommandLive),
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	if out != nil {
		rootCmd.SetOut(out)
		rootCmd.SetErr(out)
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "Monitor a live capture device",
		Args:  cobra.NoArgs,
		RunE:  run(CommandLive),
	}
	liveCmd.Flags().BoolVarP(&v.pick, "pick", "p", false, "Choose the input device and sample rate interactively")

	fileCmd := &cobra.Command{
		Use:   "file <path.wav>",
		Short: "Analyse a recorded WAV file",
		Args:  cobra.ExactArgs(1),
		RunE:  run(CommandFile),
	}

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Monitor a synthetic heartbeat",
		Args:  cobra.NoArgs,
		RunE:  run(CommandSimulate),
	}
	simulateCmd.Flags().Float64Var(&v.bpm, "bpm", config.DefaultSimulateBPM, "Heart rate of the synthetic signal")
	simulateCmd.Flags().IntVar(&v.amplitude, "amplitude", config.DefaultSimulateAmplitude, "Peak amplitude of each beat (1-32767)")
	simulateCmd.Flags().BoolVar(&v.realtime, "realtime", true, "Pace batches to wall-clock time")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			opts = &Options{Command: CommandList}
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			opts = &Options{Command: CommandVersion}
			return nil
		},
	}

	initConfigCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write the default configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			opts = &Options{Command: CommandInitConfig, Path: config.DefaultPath}
			if len(args) == 1 {
				opts.Path = args[0]
			}
			return nil
		},
	}

	rootCmd.AddCommand(liveCmd, fileCmd, simulateCmd, listCmd, versionCmd, initConfigCmd)

	pf := rootCmd.PersistentFlags()

	// Configuration and logging
	pf.StringVarP(&v.configPath, "config", "C", "", "Configuration file (default ./config.yaml if present)")
	pf.StringVar(&v.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	pf.BoolVarP(&v.verbose, "verbose", "v", false, "Show verbose output")

	// Detector
	pf.IntVarP(&v.threshold, "threshold", "t", config.DefaultThreshold, "Amplitude a sample must exceed to count as a peak")
	pf.Float64Var(&v.cooldown, "cooldown", config.DefaultCooldown, "Minimum seconds between peaks")
	pf.BoolVar(&v.fullRecompute, "full-recompute", false, "Rerun detection over the whole buffer after every batch")

	// Audio device
	pf.IntVarP(&v.device, "device", "d", config.DefaultDeviceID, "Input device ID. Use 'list' to see available devices.")
	pf.Float64VarP(&v.sampleRate, "sample-rate", "s", config.DefaultSampleRate, "Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&v.frames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer, "Samples per batch (rounded up to a power of two)")
	pf.BoolVarP(&v.lowLatency, "low-latency", "l", false, "Use the device's low input latency")

	// Recording
	pf.BoolVarP(&v.record, "record", "r", false, "Record live input to a WAV file")
	pf.StringVarP(&v.output, "output", "o", "", "Recording file name (implies --record). Default is recording-YYYY-MM-DD-HHMMSS.wav")

	// Sinks
	pf.StringVar(&v.ws, "ws", "", "Serve WebSocket frames on this address")
	pf.StringVar(&v.udp, "udp", "", "Send UDP summary packets to this address")
	pf.StringVar(&v.metrics, "metrics", "", "Serve Prometheus metrics on this address")
	pf.BoolVar(&v.tui, "tui", false, "Show the full-screen monitor")
	pf.Lookup("ws").NoOptDefVal = config.DefaultWebSocketAddress
	pf.Lookup("udp").NoOptDefVal = config.DefaultUDPTarget
	pf.Lookup("metrics").NoOptDefVal = config.DefaultMetricsAddress

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return opts, nil
}

// resolveConfig loads the configuration file and applies every flag that
// was set explicitly on the command line.
func resolveConfig(c *cobra.Command, v *flagValues) (*config.Config, error) {
	cfg, err := config.LoadConfig(v.configPath)
	if err != nil {
		return nil, err
	}

	f := c.Flags()
	if f.Changed("log-level") {
		cfg.LogLevel = v.logLevel
	}
	if v.verbose {
		cfg.Debug = true
	}
	if f.Changed("threshold") {
		cfg.Detector.Threshold = v.threshold
	}
	if f.Changed("cooldown") {
		cfg.Detector.Cooldown = v.cooldown
	}
	if v.fullRecompute {
		cfg.Detector.FullRecompute = true
	}
	if f.Changed("device") {
		cfg.Audio.InputDevice = v.device
	}
	if f.Changed("sample-rate") {
		cfg.Audio.SampleRate = v.sampleRate
	}
	if f.Changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = v.frames
	}
	if v.lowLatency {
		cfg.Audio.LowLatency = true
	}
	if v.record {
		cfg.Recording.Enabled = true
	}
	if f.Changed("output") {
		cfg.Recording.Enabled = true
		cfg.Recording.OutputFile = v.output
	}
	if f.Changed("ws") {
		cfg.Transport.WebSocket.Enabled = true
		cfg.Transport.WebSocket.Address = v.ws
	}
	if f.Changed("udp") {
		cfg.Transport.UDP.Enabled = true
		cfg.Transport.UDP.TargetAddress = v.udp
	}
	if f.Changed("metrics") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = v.metrics
	}
	if f.Changed("bpm") {
		cfg.Simulate.BPM = v.bpm
	}
	if f.Changed("amplitude") {
		cfg.Simulate.Amplitude = v.amplitude
	}
	if f.Changed("realtime") {
		cfg.Simulate.Realtime = v.realtime
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(errors.New("invalid options"), err)
	}
	return cfg, nil
}
