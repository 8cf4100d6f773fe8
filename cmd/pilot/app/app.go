package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roman-kulish/visual-servo/internal/control"
	"github.com/roman-kulish/visual-servo/internal/flight"
	"github.com/roman-kulish/visual-servo/internal/gesture"
	"github.com/roman-kulish/visual-servo/internal/hud"
	"github.com/roman-kulish/visual-servo/internal/landmark"
	"github.com/roman-kulish/visual-servo/internal/servo"
	"github.com/roman-kulish/visual-servo/internal/storage"
	"github.com/roman-kulish/visual-servo/internal/tello"
	"github.com/roman-kulish/visual-servo/internal/video"
	"github.com/roman-kulish/visual-servo/internal/vision"
)

// Run flies the drone until the quit key, ctx cancellation or the end of the
// video stream. The drone is always brought down before Run returns.
func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	var recorder *Recorder
	if config.Storage.Enabled {
		var closeRecorder func() error
		if recorder, closeRecorder, err = startRecorder(ctx, config, logger); err != nil {
			return err
		}
		defer func() { err = errors.Join(err, closeRecorder()) }()
	}

	decoder := video.NewDecoder(config.decoder, video.WithLogger(logger))
	decoderDone, err := decoder.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting video decoder: %w", err)
	}

	drone := tello.New(config.link, tello.WithLogger(logger), tello.WithVideoSink(decoder))
	defer func() { err = errors.Join(err, drone.Close()) }()
	if err = drone.Connect(ctx); err != nil {
		return errors.Join(fmt.Errorf("connecting to drone: %w", err), decoder.Close())
	}

	machineOptions := []func(*flight.Machine){flight.WithLogger(logger)}
	if recorder != nil {
		machineOptions = append(machineOptions, flight.WithEventHandler(recorder.Event))
	}
	machine := flight.NewMachine(drone, config.Safety, machineOptions...)

	p, err := createPipeline(ctx, config, logger)
	if err != nil {
		return errors.Join(err, decoder.Close())
	}
	defer func() { err = errors.Join(err, p.close()) }()

	console, closeConsole, err := createConsole(config, logger)
	if err != nil {
		return errors.Join(err, decoder.Close())
	}
	defer func() { err = errors.Join(err, closeConsole()) }()

	loopOptions := []func(*control.Loop){
		control.WithLogger(logger),
		control.WithStop(firstOf(decoderDone, p.done)),
	}
	if recorder != nil {
		loopOptions = append(loopOptions, control.WithRecorder(recorder))
	}

	loop, err := control.NewLoop(config.loopConfig(), control.Components{
		Machine:   machine,
		Transport: drone,
		Frames:    decoder,
		Observer:  p.observer,
		Commander: p.commander,
		Telemetry: drone,
		Console:   console,
	}, loopOptions...)
	if err != nil {
		return errors.Join(err, decoder.Close())
	}

	logger.Info("pilot ready",
		slog.String("mode", string(config.Mode)),
		slog.String("state", machine.State().String()),
	)

	return loop.Run(ctx)
}

// startRecorder opens the flight log and starts recording a new session.
// The returned function stops the recorder and closes the database.
func startRecorder(ctx context.Context, config *Config, logger *slog.Logger) (*Recorder, func() error, error) {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create storage: %w", err)
	}

	sessionID, err := store.CreateSession(ctx, string(config.Mode), config)
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("creating session: %w", err), store.Close())
	}
	logger.Info("recording flight", slog.Int64("session", sessionID))

	recorder := NewRecorder(ctx, store, sessionID,
		WithRecorderLogger(logger),
		WithMaxBatchSize(config.Storage.MaxBatchSize),
		WithQueueSize(config.Storage.QueueSize),
	)

	return recorder, func() error { return errors.Join(recorder.Close(), store.Close()) }, nil
}

// pipeline is the observation source and velocity source of auto mode.
type pipeline struct {
	observer  control.Observer
	commander control.Commander
	done      <-chan error
	close     func() error
}

func createPipeline(ctx context.Context, config *Config, logger *slog.Logger) (*pipeline, error) {
	switch config.Mode {
	case ModeBlob:
		detector := vision.NewBlobDetector(config.Frame, config.Vision, vision.WithLogger(logger))
		return &pipeline{
			observer:  detector,
			commander: servo.New(config.Frame, config.Controller),
			close:     detector.Close,
		}, nil

	case ModeGesture:
		options := []func(*landmark.Estimator){landmark.WithLogger(logger)}
		if config.Gesture.Threshold > 0 {
			options = append(options, landmark.WithParseErrorsThreshold(config.Gesture.Threshold))
		}

		estimator := landmark.NewEstimator(config.estimator, options...)
		done, err := estimator.Start(ctx)
		if err != nil {
			return nil, fmt.Errorf("starting landmark estimator: %w", err)
		}

		return &pipeline{
			observer:  landmark.NewObserver(estimator, gesture.NewClassifier(gesture.DefaultRules()...), config.estimator.Mirror),
			commander: config.Gesture.Speeds,
			done:      done,
			close:     estimator.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown mode '%s'", config.Mode)
	}
}

func createConsole(config *Config, logger *slog.Logger) (control.Console, func() error, error) {
	if !config.Display.Enabled {
		return NewHeadlessConsole(os.Stdin, logger), func() error { return nil }, nil
	}

	renderer, err := hud.New(config.Frame, hud.Config{
		Mirror:   config.Mode == ModeGesture && config.Gesture.Mirror,
		FontSize: config.Display.FontSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating overlay: %w", err)
	}

	window := vision.NewWindow(config.Display.WindowName, renderer, vision.WithWindowLogger(logger))
	return window, func() error { return errors.Join(window.Close(), renderer.Close()) }, nil
}

// firstOf forwards the first value or close of any of chs. Nil channels are
// ignored.
func firstOf(chs ...<-chan error) <-chan error {
	out := make(chan error, 1)

	var once sync.Once
	for _, ch := range chs {
		if ch == nil {
			continue
		}
		go func() {
			err, ok := <-ch
			once.Do(func() {
				if ok {
					out <- err
				}
				close(out)
			})
		}()
	}

	return out
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	dbPath := config.DataDirectory
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(wd, dbPath)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("flight_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
