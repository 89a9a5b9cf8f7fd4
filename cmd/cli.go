// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"signalmath/internal/config"
	"signalmath/internal/records"
	"signalmath/internal/source"
	"signalmath/pkg/build"
)

// Commands main dispatches on. CommandNone means cobra already handled the
// invocation (help or version).
const (
	CommandNone    = ""
	CommandRun     = "run"
	CommandLayout  = "layout"
	CommandDevices = "devices"
)

// Options holds the parsed command line. Flags the user did not pass leave
// the configuration untouched.
type Options struct {
	Command    string
	ConfigPath string

	LibraryPath   string
	InputKind     string
	InputPath     string
	DeviceID      int
	Gain          float64
	LogLevel      string
	LogJSON       bool
	Verbose       bool
	RecordPath    string
	WebSocket     bool
	WebSocketAddr string
	UDPAddr       string
	ParquetPath   string
	NoCalibration bool

	changed map[string]bool
}

// ParseArgs parses args (without the program name).
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{changed: make(map[string]bool)}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandRun
			return nil
		},
	}
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "layout",
		Short: "Print the byte layout of the records shared with the native engine",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandLayout
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "devices",
		Short: "List available capture devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandDevices
		},
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&options.ConfigPath, "config", "f", "",
		"Configuration file. Defaults to signalmath.yaml or config.yaml when present")

	// Engine
	flags.StringVarP(&options.LibraryPath, "library", "L", config.DefaultLibraryPath,
		"Native engine shared library")

	// Input
	flags.StringVarP(&options.InputKind, "kind", "k", config.DefaultInputKind,
		"Input kind: edf, wav or device. Inferred from --input or --device when omitted")
	flags.StringVarP(&options.InputPath, "input", "i", "",
		"EDF or WAV file to analyse")
	flags.IntVarP(&options.DeviceID, "device", "d", config.DefaultDeviceID,
		"Capture device ID. Use the 'devices' command to see available devices")
	flags.Float64VarP(&options.Gain, "gain", "g", config.DefaultGain,
		"Multiplier applied to every input sample")

	// Session
	flags.StringVarP(&options.RecordPath, "record", "r", "",
		"Copy the analysed signal to a .edf or .wav file")
	flags.BoolVar(&options.NoCalibration, "no-calibration", false,
		"Skip calibration and report from the first window")

	// Transport
	flags.BoolVarP(&options.WebSocket, "websocket", "w", false,
		"Serve results over a websocket")
	flags.StringVar(&options.WebSocketAddr, "ws-addr", config.DefaultWebSocketAddress,
		"Websocket listen address")
	flags.StringVar(&options.UDPAddr, "udp", "",
		"Also send every result as a datagram to this host:port")
	flags.StringVar(&options.ParquetPath, "archive", "",
		"Archive every result to this Parquet file")

	// Logging
	flags.StringVar(&options.LogLevel, "log-level", config.DefaultLogLevel,
		"Log level: debug, info, warn or error")
	flags.BoolVar(&options.LogJSON, "log-json", false,
		"Emit logs as JSON")
	flags.BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cmd.Flags().Visit(func(f *pflag.Flag) {
			options.changed[f.Name] = true
		})
	}

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// Changed reports whether the flag was passed.
func (o *Options) Changed(name string) bool {
	return o.changed[name]
}

// Apply overrides cfg with every flag that was passed. The caller validates
// the result.
func (o *Options) Apply(cfg *config.Config) {
	if o.Changed("library") {
		cfg.Library.Path = o.LibraryPath
	}

	if o.Changed("input") {
		cfg.Input.Path = o.InputPath
		if !o.Changed("kind") {
			if kind, ok := kindFromPath(o.InputPath); ok {
				cfg.Input.Kind = kind
			}
		}
	}
	if o.Changed("device") {
		cfg.Input.Device = o.DeviceID
		if !o.Changed("kind") {
			cfg.Input.Kind = config.InputDevice
		}
	}
	if o.Changed("kind") {
		cfg.Input.Kind = o.InputKind
	}
	if o.Changed("gain") {
		cfg.Input.Gain = o.Gain
	}

	if o.Changed("record") {
		cfg.Session.RecordPath = o.RecordPath
	}
	if o.NoCalibration {
		cfg.Session.Calibrate = false
	}

	if o.Changed("websocket") {
		cfg.Transport.WebSocketEnabled = o.WebSocket
	}
	if o.Changed("ws-addr") {
		cfg.Transport.WebSocketAddress = o.WebSocketAddr
		cfg.Transport.WebSocketEnabled = true
	}
	if o.Changed("udp") {
		cfg.Transport.UDPAddress = o.UDPAddr
		cfg.Transport.UDPEnabled = o.UDPAddr != ""
	}

	if o.Changed("archive") {
		cfg.Transport.ParquetPath = o.ParquetPath
	}

	if o.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if o.Changed("log-json") {
		cfg.LogJSON = o.LogJSON
	}
	if o.Verbose {
		cfg.Debug = true
	}
}

func kindFromPath(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".edf":
		return config.InputEDF, true
	case ".wav", ".wave":
		return config.InputWAV, true
	}
	return "", false
}

// PrintLayouts writes one table per record: field offsets and sizes in
// bytes.
func PrintLayouts(w io.Writer, layouts []records.Layout) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, l := range layouts {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		packing := "natural alignment"
		if l.Packed {
			packing = "packed"
		}
		fmt.Fprintf(tw, "%s\t%d bytes\t%s\n", l.Name, l.Size, packing)
		for _, f := range l.Fields {
			fmt.Fprintf(tw, "  %s\t%d\t%d\n", f.Name, f.Offset, f.Size)
		}
	}
	return tw.Flush()
}

// PrintDevices writes the capture devices as a table.
func PrintDevices(w io.Writer, devices []source.DeviceInfo) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "no capture devices found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCHANNELS\tRATE\tLATENCY")
	for _, d := range devices {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.0f\t%v-%v\n",
			d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate, d.LowLatency, d.HighLatency)
	}
	return tw.Flush()
}
