package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/visual-servo/internal/flightlog"
	"github.com/roman-kulish/visual-servo/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	if _, statErr := os.Stat(config.DBPath); statErr != nil && os.IsNotExist(statErr) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, statErr)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer func() { err = errors.Join(err, store.Close()) }()

	if config.List {
		sessions, err := store.Sessions(ctx)
		if err != nil {
			return fmt.Errorf("reading sessions: %w", err)
		}
		return PrintSessions(config.Out, sessions, config.TimeZone)
	}

	return report(ctx, store, config, logger)
}

func report(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) error {
	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.StartTime != nil && config.EndTime != nil:
		opts = append(opts, storage.WithTimeRange(config.StartTime.UTC(), config.EndTime.UTC()))

		filters = append(filters,
			slog.String("from", config.StartTime.UTC().Format(time.DateTime)),
			slog.String("to", config.EndTime.UTC().Format(time.DateTime)))

	case config.StartTime != nil:
		opts = append(opts, storage.WithStartTime(config.StartTime.UTC()))
		filters = append(filters, slog.String("from", config.StartTime.UTC().Format(time.DateTime)))

	case config.EndTime != nil:
		opts = append(opts, storage.WithEndTime(config.EndTime.UTC()))
		filters = append(filters, slog.String("to", config.EndTime.UTC().Format(time.DateTime)))
	}

	logger.Debug("iterator configuration", filters...)

	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("reading session %d: %w", config.SessionID, err)
	}

	cycles, err := readCycles(ctx, store, config.SessionID, opts...)
	if err != nil {
		return err
	}

	events, err := store.Events(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("reading events: %w", err)
	}

	if err = Summarize(session, cycles, events).Print(config.Out, config.TimeZone); err != nil {
		return fmt.Errorf("printing summary: %w", err)
	}

	if config.OutputFile == "" || len(cycles) == 0 {
		return nil
	}

	logger.Info("rendering timeline",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("cycles", len(cycles)),
		))

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("Session %d, %s mode, %s", session.ID, session.Mode, session.StartTime.In(config.TimeZone).Format(time.DateTime))
	return errors.Join(RenderTimeline(out, config.Format, title, cycles), out.Close())
}

// readCycles loads the cycles of a session, an empty flight yields none.
func readCycles(ctx context.Context, store *storage.SqliteStore, sessionID int64, opts ...storage.ReaderOption) (cycles []flightlog.Cycle, err error) {
	iter, err := store.ReadCycles(ctx, sessionID, opts...)
	if err != nil {
		if errors.Is(err, storage.ErrNoData) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cycles: %w", err)
	}
	defer func() { err = errors.Join(err, iter.Close()) }()

	for iter.Next(ctx) {
		cycles = append(cycles, *iter.Current())
	}
	if err = iter.Error(); err != nil {
		return nil, fmt.Errorf("reading cycles: %w", err)
	}
	return cycles, nil
}
