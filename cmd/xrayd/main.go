/*
DESCRIPTION
  xrayd is the acquisition daemon: it owns one detector driver and an
  optional beam-supply interlock, drives the Correction Pipeline over
  every captured frame, and exposes the Acquisition Controller's
  synchronous entry points through a line-oriented stdin command loop
  in place of a GUI.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package xrayd is the acquisition daemon's command-line entry point.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	"github.com/xrayctl/xrayd/internal/beam"
	"github.com/xrayctl/xrayd/internal/calib"
	"github.com/xrayctl/xrayd/internal/control"
	"github.com/xrayctl/xrayd/internal/device"
	"github.com/xrayctl/xrayd/internal/pipeline"
	"github.com/xrayctl/xrayd/internal/pipeline/stages"
	"github.com/xrayctl/xrayd/internal/xconfig"
	"github.com/xrayctl/xrayd/internal/xframe"
)

const version = "v0.1.0"

// Logging configuration, matching the rotating-file-log setup of
// cmd/rv/main.go.
const (
	logPath      = "xrayd.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
)

const (
	pkg               = "xrayd: "
	defaultConfigPath = "xrayd.conf"
	configSaveDelay   = 2 * time.Second
	defaultTimeout    = 30 * time.Second
)

func main() {
	showVersion := flag.Bool("version", false, "show version")
	configPath := flag.String("config", defaultConfigPath, "path to the persisted configuration file")
	logFile := flag.String("log", logPath, "path to the rotating log file")
	beamPort := flag.String("beam-port", "", "serial port of the HV beam supply (empty disables the beam interlock)")
	beamBaud := flag.Int("beam-baud", 9600, "baud rate for the HV beam supply serial port")
	width := flag.Int("width", 512, "simulated detector frame width")
	height := flag.Int("height", 512, "simulated detector frame height")
	value := flag.Float64("value", 1000, "simulated detector constant sample value")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	fileLog := &lumberjack.Logger{
		Filename:   *logFile,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(logging.Info, fileLog, true)
	log.Info("starting xrayd", "version", version)

	cfg, err := xconfig.Load(*configPath, log)
	if err != nil {
		log.Fatal(pkg+"could not load configuration", "error", err.Error())
	}
	cfg.Validate()
	saver := xconfig.NewDebouncedSaver(*configPath, configSaveDelay)

	calibStore := calib.NewStore(cfg.CalibrationDir, log)

	registry, err := pipeline.New(stages.NewDefaultRegistry(), log)
	if err != nil {
		log.Fatal(pkg+"could not build pipeline", "error", err.Error())
	}

	pipeCtx := &pipeline.Context{
		Enabled:    cfg.AutoEnabled,
		Banding:    pipeline.DefaultBandingParams(),
		Enhance:    pipeline.DefaultEnhanceParams(),
		Background: pipeline.BackgroundParams{Offset: 5.0},
	}
	loadReferences(calibStore, cfg, *width, *height, pipeCtx, log)

	store := xframe.NewStore(int(cfg.IntegrationN))
	det := device.NewMock(*width, *height, float32(*value))

	var supply beam.Supply
	if *beamPort != "" {
		esp := beam.NewESP(*beamPort, *beamBaud, log)
		if err := esp.Open(); err != nil {
			log.Error(pkg+"could not open beam supply, continuing without one", "error", err.Error())
		} else {
			defer esp.Close()
			supply = esp
		}
	}

	ctrl := control.New(det, supply, store, registry, pipeCtx, log)
	if err := det.Open(context.Background()); err != nil {
		log.Error(pkg+"could not open detector", "error", err.Error())
	}
	defer det.Close()

	watcher, err := newReloadWatcher(*configPath, cfg.CalibrationDir, log)
	if err != nil {
		log.Warning(pkg+"could not start file watcher", "error", err.Error())
	} else {
		defer watcher.Close()
		go watcher.run(func() {
			reloaded, err := xconfig.Load(*configPath, log)
			if err != nil {
				log.Warning(pkg+"config reload failed", "error", err.Error())
				return
			}
			reloaded.Validate()
			*cfg = *reloaded
			log.Info("configuration reloaded")
		}, func() {
			loadReferences(calibStore, cfg, *width, *height, pipeCtx, log)
			log.Info("calibration references reloaded")
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		ctrl.Stop()
		saver.Request(cfg)
		time.Sleep(100 * time.Millisecond)
		os.Exit(0)
	}()

	log.Info("entering command loop")
	runCommandLoop(ctrl, calibStore, cfg, saver, log)
}

// loadReferences reloads the dark/flat references and bad-pixel mask for
// the configured detector at the given frame size into pipeCtx, matching
// the lookup rule of spec.md §4.2.
func loadReferences(store *calib.Store, cfg *xconfig.Config, width, height int, pipeCtx *pipeline.Context, log logging.Logger) {
	key := calib.Key{DetectorID: cfg.DetectorID, ExposureSeconds: cfg.ExposureSeconds, Gain: cfg.Gain, Width: width, Height: height}
	if dark, _, ok := store.LoadDark(key, cfg.MatchThreshold); ok {
		pipeCtx.Dark = dark
		log.Debug(calib.DarkStatusText(dark, &dark.Key, nil))
	}
	if flat, _, ok := store.LoadFlat(key, cfg.MatchThreshold); ok {
		pipeCtx.Flat = flat
		log.Debug(calib.FlatStatusText(flat, &flat.Key, nil))
	}
	if mask, err := store.LoadMask(cfg.DetectorID, width, height); err == nil {
		pipeCtx.Mask = mask
	}
}

// runCommandLoop is the CLI driver loop playing the "main/UI thread" role
// described in spec.md §5: it owns the Controller, reacts to operator
// commands, and republishes status lines the way a render tick would.
func runCommandLoop(ctrl *control.Controller, calibStore *calib.Store, cfg *xconfig.Config, saver *xconfig.DebouncedSaver, log logging.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("xrayd ready. commands: start | stop | capture N | dark N | flat N | status | quit")
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "start":
			if err := ctrl.Start(context.Background(), control.ModeContinuous, cfg.ExposureSeconds, cfg.Gain); err != nil {
				fmt.Println(control.StatusFor(err))
			} else {
				fmt.Println("acquisition started")
			}
		case "stop":
			ctrl.Stop()
			fmt.Println("stop requested")
		case "capture":
			n := parseCount(fields, 1, log)
			f, err := ctrl.RequestIntegration(n, defaultTimeout)
			reportCapture(f, err)
		case "dark":
			n := parseCount(fields, cfg.IntegrationN, log)
			f, err := ctrl.RequestNFramesProcessedUpToSlot(n, stages.DarkSubtractSlot, defaultTimeout, true)
			if err != nil {
				fmt.Println(control.StatusFor(err))
				continue
			}
			ref := &calib.Reference{Kind: calib.Dark, Key: calib.Key{DetectorID: cfg.DetectorID, ExposureSeconds: cfg.ExposureSeconds, Gain: cfg.Gain, Width: f.Width, Height: f.Height}, Frame: f}
			if err := calibStore.SaveDark(ref); err != nil {
				log.Error(pkg+"could not save dark reference", "error", err.Error())
			}
			fmt.Println("dark reference captured and saved")
		case "flat":
			n := parseCount(fields, cfg.IntegrationN, log)
			f, err := ctrl.RequestNFramesProcessedUpToSlot(n, stages.FlatCorrectSlot, defaultTimeout, false)
			if err != nil {
				fmt.Println(control.StatusFor(err))
				continue
			}
			ref := &calib.Reference{Kind: calib.Flat, Key: calib.Key{DetectorID: cfg.DetectorID, ExposureSeconds: cfg.ExposureSeconds, Gain: cfg.Gain, Width: f.Width, Height: f.Height}, Frame: f}
			if err := calibStore.SaveFlat(ref); err != nil {
				log.Error(pkg+"could not save flat reference", "error", err.Error())
			}
			fmt.Println("flat reference captured and saved")
		case "status":
			s := ctrl.Snapshot()
			fmt.Printf("phase=%v mode=%v progress=%.2f %q last_fail=%v\n", s.Phase, s.Mode, s.ProgressFrac, s.ProgressLabel, s.LastFailReason)
		case "quit", "exit":
			ctrl.Stop()
			saver.Request(cfg)
			return
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func reportCapture(f *xframe.Frame, err error) {
	if err != nil {
		fmt.Println(control.StatusFor(err))
		return
	}
	fmt.Printf("captured %dx%d frame\n", f.Width, f.Height)
}

func parseCount(fields []string, def uint, log logging.Logger) uint {
	if len(fields) < 2 {
		return def
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 {
		log.Warning(pkg+"invalid frame count, using default", "value", fields[1])
		return def
	}
	return uint(n)
}

// reloadWatcher wraps an fsnotify.Watcher over the config file's directory
// and the calibration tree, matching the "react to external file changes
// without polling" contract of spec.md §10.
type reloadWatcher struct {
	w             *fsnotify.Watcher
	configPath    string
	calibrationDir string
	log           logging.Logger
}

func newReloadWatcher(configPath, calibrationDir string, log logging.Logger) (*reloadWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dirs := map[string]bool{filepath.Dir(configPath): true}
	for _, sub := range []string{"darks", "flats", "pixelmaps"} {
		dirs[filepath.Join(calibrationDir, sub)] = true
	}
	for dir := range dirs {
		os.MkdirAll(dir, 0o755)
		if err := w.Add(dir); err != nil {
			log.Debug(pkg+"watch add failed", "dir", dir, "error", err.Error())
		}
	}
	return &reloadWatcher{w: w, configPath: configPath, calibrationDir: calibrationDir, log: log}, nil
}

func (r *reloadWatcher) Close() error { return r.w.Close() }

func (r *reloadWatcher) run(onConfigChange, onCalibrationChange func()) {
	for {
		select {
		case ev, ok := <-r.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(ev.Name) == filepath.Clean(r.configPath) {
				onConfigChange()
				continue
			}
			if strings.HasPrefix(filepath.Clean(ev.Name), filepath.Clean(r.calibrationDir)) {
				onCalibrationChange()
			}
		case err, ok := <-r.w.Errors:
			if !ok {
				return
			}
			r.log.Debug(pkg+"watcher error", "error", err.Error())
		}
	}
}
