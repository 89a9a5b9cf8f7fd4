// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"signalmath/cmd"
	"signalmath/internal/config"
	"signalmath/internal/log"
	"signalmath/internal/mathlib"
	"signalmath/internal/records"
	"signalmath/internal/session"
	"signalmath/internal/source"
	"signalmath/internal/transport"
	"signalmath/pkg/build"
)

// main is the entry point. The program flow has three phases:
//
// 1. Startup:
//   - Read build information
//   - Parse command line arguments and load the configuration
//   - Configure logging
//   - Execute one-off commands if requested
//
// 2. Session:
//   - Load the native engine and create an analyzer
//   - Open the sample source and the transports
//   - Stream batches until the input ends or a signal arrives
//
// 3. Shutdown:
//   - Finalise any recording
//   - Release the analyzer, the source and the transports
func main() {
	// ==================== STARTUP ====================

	// Development builds carry no link-time metadata.
	buildErr := build.Initialize()

	options, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if options.Command == cmd.CommandNone {
		return
	}

	cfg, err := config.ReadConfig(options.ConfigPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	// Flags override the file, so validation waits for them.
	options.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	configureLogging(cfg)
	defer log.Sync()

	if buildErr != nil {
		log.Debugf("build metadata incomplete: %v", strings.ReplaceAll(buildErr.Error(), "\n", ", "))
	}

	if err := executeCommand(options.Command, cfg); err != nil {
		log.Errorf("%v", err)
		log.Sync()
		os.Exit(1)
	}
}

func configureLogging(cfg *config.Config) {
	log.Configure(cfg.LogJSON, zapcore.Lock(os.Stderr))

	level, _ := log.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.SetLevel(level)
}

// executeCommand runs the command selected on the command line.
func executeCommand(command string, cfg *config.Config) error {
	switch command {
	case cmd.CommandLayout:
		return cmd.PrintLayouts(os.Stdout, records.Layouts())
	case cmd.CommandDevices:
		return listDevices()
	case cmd.CommandRun:
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func listDevices() error {
	if err := source.Initialize(); err != nil {
		return err
	}
	defer source.Terminate()

	devices, err := source.ListDevices()
	if err != nil {
		return err
	}
	return cmd.PrintDevices(os.Stdout, devices)
}

// run holds one analysis session. Every resource is released in reverse
// order of acquisition when it returns.
func run(ctx context.Context, cfg *config.Config) error {
	logger := log.L()

	// ==================== SESSION ====================

	lib, err := mathlib.Open(cfg.Library.Path)
	if err != nil {
		return err
	}
	defer lib.Close()

	analyzer, err := lib.NewMathLib(mathlib.Settings{
		MathLib:           cfg.MathLibSetting(),
		ArtifactDetect:    cfg.ArtifactDetectSetting(),
		ShortArtifact:     cfg.ShortArtifactDetectSetting(),
		MentalAndSpectral: cfg.MentalAndSpectralSetting(),
	})
	if err != nil {
		return err
	}
	defer analyzer.Close()

	if err := session.Configure(analyzer, cfg); err != nil {
		return err
	}

	if strings.EqualFold(cfg.Input.Kind, config.InputDevice) {
		if err := source.Initialize(); err != nil {
			return err
		}
		defer source.Terminate()
	}
	src, err := source.Open(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	var out transport.Multi
	if cfg.Transport.LogResults {
		out = append(out, transport.NewLoggingTransport(logger))
	}
	if cfg.Transport.WebSocketEnabled {
		out = append(out, transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress, cfg.Transport.WebSocketPath, logger))
	}
	if cfg.Transport.UDPEnabled {
		udp, err := transport.NewUDPTransport(cfg.Transport.UDPAddress, logger)
		if err != nil {
			out.Close()
			return err
		}
		out = append(out, udp)
	}
	if len(cfg.Transport.KafkaBrokers) > 0 {
		key := cfg.Transport.KafkaKey
		if key == "" {
			key = cfg.Input.Path
		}
		out = append(out, transport.NewKafkaTransport(cfg.Transport.KafkaBrokers, cfg.Transport.KafkaTopic, key, logger))
	}
	if cfg.Transport.ParquetPath != "" {
		archive, err := transport.NewParquetTransport(cfg.Transport.ParquetPath, cfg.Transport.ParquetCompression, logger)
		if err != nil {
			out.Close()
			return err
		}
		out = append(out, archive)
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Warn("closing transports", zap.Error(err))
		}
	}()

	engine, err := session.NewEngine(analyzer, src, out, session.OptionsFrom(cfg), logger)
	if err != nil {
		return err
	}

	logger.Info("session started",
		zap.String("library", lib.Path()),
		zap.String("input", cfg.Input.Kind),
		zap.Int("channels", src.Channels()),
		zap.Float64("sample_rate", src.SampleRate()),
	)

	err = engine.Run(ctx)

	// ==================== SHUTDOWN ====================

	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted", zap.Int("samples", engine.Samples()))
		return nil
	}
	return err
}
