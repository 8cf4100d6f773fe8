package video

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
)

var (
	// ErrNotRunning is returned when writing to a decoder which is not started
	ErrNotRunning = errors.New("decoder is not running")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// WithLogger sets the logger for the decoder
func WithLogger(logger *slog.Logger) func(d *Decoder) {
	return func(d *Decoder) {
		d.logger = logger.With(slog.String("component", "video"))
	}
}

// WithCommand replaces the ffmpeg command, the replacement must read the
// stream from stdin and write raw BGR24 frames to stdout.
func WithCommand(fn func(ctx context.Context) *exec.Cmd) func(d *Decoder) {
	return func(d *Decoder) {
		d.command = fn
	}
}

// WithClock overrides the frame timestamp source
func WithClock(now func() time.Time) func(d *Decoder) {
	return func(d *Decoder) {
		d.now = now
	}
}

// Decoder runs ffmpeg as a subprocess. The encoded stream is written into
// it with Write and the most recent decoded picture is read with Frame.
type Decoder struct {
	config  Config
	command func(ctx context.Context) *exec.Cmd

	stdin   io.WriteCloser
	stdinMu sync.Mutex

	frameMu sync.RWMutex
	frame   Frame
	seq     uint64

	isRunning atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	now    func() time.Time
	logger *slog.Logger
}

// NewDecoder creates a new Decoder instance with a discard logger
func NewDecoder(config Config, options ...func(d *Decoder)) *Decoder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	d := Decoder{
		config: config,
		now:    time.Now,
		logger: logger,
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

func (d *Decoder) cmd(ctx context.Context) (*exec.Cmd, error) {
	if d.command != nil {
		return d.command(ctx), nil
	}

	binPath, err := findBinary(d.config.Binary)
	if err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, binPath, d.config.Args()...), nil
}

// Start launches the decoder. The returned channel is closed when the
// subprocess exits and carries the joined errors, if any.
func (d *Decoder) Start(ctx context.Context) (<-chan error, error) {
	if d.isRunning.Load() {
		return nil, fmt.Errorf("decoder is already running")
	}

	d.isRunning.Store(true)

	ctx, d.cancel = context.WithCancel(ctx)
	cmd, err := d.cmd(ctx)
	if err != nil {
		d.isRunning.Store(false)
		return nil, err
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		d.isRunning.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		d.isRunning.Store(false)
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		d.isRunning.Store(false)
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		d.isRunning.Store(false)
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	d.stdinMu.Lock()
	d.stdin = stdin
	d.stdinMu.Unlock()

	decodingStopped := make(chan error, 1)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(decodingStopped)

		d.logger.Info("starting video decoder...")

		done := make(chan error, 3) // expects three results from three goroutines

		go d.handleStdout(stdout, done)
		go d.handleStderr(stderr, done)
		go d.handleCmdWait(ctx, cmd, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				d.cancel() // cancel context on error
				d.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		d.logger.Info("video decoder stopped")
		d.isRunning.Store(false)

		if len(errs) > 0 {
			decodingStopped <- errors.Join(errs...)
		}
	}()

	return decodingStopped, nil
}

// Write feeds encoded stream bytes to the decoder.
func (d *Decoder) Write(p []byte) (int, error) {
	d.stdinMu.Lock()
	defer d.stdinMu.Unlock()

	if d.stdin == nil || !d.isRunning.Load() {
		return 0, ErrNotRunning
	}
	return d.stdin.Write(p)
}

// Frame returns the most recent decoded frame. It reports false when no
// frame was decoded yet or the latest one is older than MaxFrameAge.
func (d *Decoder) Frame() (Frame, bool) {
	d.frameMu.RLock()
	defer d.frameMu.RUnlock()

	if d.frame.Data == nil {
		return Frame{}, false
	}
	if d.config.MaxFrameAge > 0 && d.now().Sub(d.frame.Timestamp) > d.config.MaxFrameAge {
		return Frame{}, false
	}
	return d.frame, true
}

// Close stops the subprocess and waits for it to exit. It is safe to call
// more than once.
func (d *Decoder) Close() error {
	// kill first, a pending Write may be blocked on a full pipe
	if d.cancel != nil {
		d.cancel()
	}

	d.stdinMu.Lock()
	var err error
	if d.stdin != nil {
		err = d.stdin.Close()
		d.stdin = nil
	}
	d.stdinMu.Unlock()

	d.wg.Wait()

	if errors.Is(err, fs.ErrClosed) {
		return nil
	}
	return err
}

// IsRunning returns true if the decoder subprocess is alive
func (d *Decoder) IsRunning() bool {
	return d.isRunning.Load()
}

// handleStdout reads fixed size raw frames and publishes the latest one.
func (d *Decoder) handleStdout(stdout io.Reader, done chan<- error) {
	size := FrameSize(d.config.Width, d.config.Height)
	reader := bufio.NewReaderSize(stdout, size)

	for {
		buf := make([]byte, size)
		if _, err := io.ReadFull(reader, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, fs.ErrClosed) {
				done <- nil
				return
			}
			done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
			return
		}

		d.frameMu.Lock()
		d.seq++
		d.frame = Frame{
			Seq:       d.seq,
			Timestamp: d.now(),
			Width:     d.config.Width,
			Height:    d.config.Height,
			Data:      buf,
		}
		d.frameMu.Unlock()
	}
}

// handleStderr reads from stderr and logs errors.
func (d *Decoder) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		d.logger.Warn(fmt.Sprintf("%s >> %s", runtime, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleCmdWait waits for the command to exit and sends the error to the error channel
func (d *Decoder) handleCmdWait(ctx context.Context, cmd *exec.Cmd, done chan<- error) {
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		done <- fmt.Errorf("command exited with error: %w", err)
		return
	}

	done <- nil
}
