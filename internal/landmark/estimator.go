// Package landmark talks to the hand landmark estimator, an external
// process that turns camera frames into 21 hand keypoints, and classifies
// them into gesture observations.
package landmark

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/visual-servo/internal/gesture"
	"github.com/roman-kulish/visual-servo/internal/video"
)

var (
	// ErrNotRunning is returned when estimating before Start
	ErrNotRunning = errors.New("estimator is not running")

	// ErrTimeout is returned when the estimator did not answer in time
	ErrTimeout = errors.New("estimator timed out")

	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// WithLogger sets the logger for the estimator
func WithLogger(logger *slog.Logger) func(e *Estimator) {
	return func(e *Estimator) {
		e.logger = logger.With(slog.String("component", "landmark"))
	}
}

// WithCommand replaces the sidecar command
func WithCommand(fn func(ctx context.Context) *exec.Cmd) func(e *Estimator) {
	return func(e *Estimator) {
		e.command = fn
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(e *Estimator) {
	return func(e *Estimator) {
		e.parseErrorsThreshold = threshold
	}
}

// Estimator runs the landmark sidecar. Requests are answered in order; a
// response that arrives after its request timed out is discarded.
type Estimator struct {
	config  Config
	command func(ctx context.Context) *exec.Cmd

	stdin   io.WriteCloser
	stdinMu sync.Mutex

	results chan result
	seq     uint64

	parseErrorsThreshold uint8

	isRunning atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	logger *slog.Logger
}

func NewEstimator(config Config, options ...func(e *Estimator)) *Estimator {
	e := Estimator{
		config:               config,
		results:              make(chan result, 4),
		parseErrorsThreshold: ParseErrorsThreshold,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

func (e *Estimator) cmd(ctx context.Context) (*exec.Cmd, error) {
	if e.command != nil {
		return e.command(ctx), nil
	}

	binPath, err := exec.LookPath(e.config.Binary)
	if err != nil {
		return nil, fmt.Errorf("estimator binary not found: %w", err)
	}
	return exec.CommandContext(ctx, binPath, e.config.Args...), nil
}

// Start launches the sidecar. The returned channel is closed when it exits
// and carries the joined errors, if any.
func (e *Estimator) Start(ctx context.Context) (<-chan error, error) {
	if e.isRunning.Load() {
		return nil, fmt.Errorf("estimator is already running")
	}

	e.isRunning.Store(true)

	ctx, e.cancel = context.WithCancel(ctx)
	cmd, err := e.cmd(ctx)
	if err != nil {
		e.isRunning.Store(false)
		return nil, err
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		e.isRunning.Store(false)
		return nil, fmt.Errorf("error creating stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		e.isRunning.Store(false)
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		e.isRunning.Store(false)
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		e.isRunning.Store(false)
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	e.stdinMu.Lock()
	e.stdin = stdin
	e.stdinMu.Unlock()

	stopped := make(chan error, 1)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(stopped)

		e.logger.Info("starting landmark estimator...")

		done := make(chan error, 3) // expects three results from three goroutines

		go e.handleStdout(ctx, stdout, done)
		go e.handleStderr(stderr, done)
		go e.handleCmdWait(ctx, cmd, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				e.cancel()
				e.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		e.logger.Info("landmark estimator stopped")
		e.isRunning.Store(false)

		if len(errs) > 0 {
			stopped <- errors.Join(errs...)
		}
	}()

	return stopped, nil
}

// Estimate sends a frame and waits for its landmarks. It returns a nil hand
// when no hand was detected.
func (e *Estimator) Estimate(frame video.Frame) (*gesture.Hand, error) {
	if !frame.Valid() {
		return nil, fmt.Errorf("invalid frame %dx%d with %d bytes", frame.Width, frame.Height, len(frame.Data))
	}

	e.stdinMu.Lock()
	if e.stdin == nil || !e.isRunning.Load() {
		e.stdinMu.Unlock()
		return nil, ErrNotRunning
	}
	e.seq++
	seq := e.seq
	err := writeRequest(e.stdin, seq, frame)
	e.stdinMu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("sending frame: %w", err)
	}

	timeout := time.NewTimer(e.config.Timeout)
	defer timeout.Stop()

	for {
		select {
		case r := <-e.results:
			if r.seq < seq {
				continue // answer to a request that already timed out
			}
			return r.hand, r.err

		case <-timeout.C:
			return nil, fmt.Errorf("%w: frame %d", ErrTimeout, seq)
		}
	}
}

// Close stops the sidecar and waits for it to exit.
func (e *Estimator) Close() error {
	if e.cancel != nil {
		e.cancel()
	}

	e.stdinMu.Lock()
	var err error
	if e.stdin != nil {
		err = e.stdin.Close()
		e.stdin = nil
	}
	e.stdinMu.Unlock()

	e.wg.Wait()

	if errors.Is(err, fs.ErrClosed) {
		return nil
	}
	return err
}

// IsRunning returns true if the sidecar is alive
func (e *Estimator) IsRunning() bool {
	return e.isRunning.Load()
}

// handleStdout parses one response per line.
func (e *Estimator) handleStdout(ctx context.Context, stdout io.Reader, done chan<- error) {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		r, err := parseResponse(line)
		if err != nil {
			e.logger.Error(err.Error())

			parseErrors++
			if parseErrors >= e.parseErrorsThreshold {
				done <- ErrTooManyParseErrors
				return
			}
			continue
		}
		parseErrors = 0 // reset counter

		select {
		case e.results <- r:
		case <-ctx.Done():
			done <- nil
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleStderr logs the sidecar diagnostics.
func (e *Estimator) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		e.logger.Warn(fmt.Sprintf("%s >> %s", e.config.Binary, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

func (e *Estimator) handleCmdWait(ctx context.Context, cmd *exec.Cmd, done chan<- error) {
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		done <- fmt.Errorf("command exited with error: %w", err)
		return
	}

	done <- nil
}
