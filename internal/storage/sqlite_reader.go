package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/visual-servo/internal/flightlog"
)

// ErrNoData indicates that no control cycles were recorded for the session.
var ErrNoData = fmt.Errorf("no data available")

// ReaderOption configures a CycleReader with specific filtering criteria.
type ReaderOption func(*CycleReader)

// WithStartTime sets the start time filter for the cycle reader.
// Cycles recorded before this time will be excluded.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *CycleReader) {
		r.startTime = &t
	}
}

// WithEndTime sets the end time filter for the cycle reader.
// Cycles recorded after this time will be excluded.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *CycleReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *CycleReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// CycleReader iterates over the recorded control cycles of a session in
// cycle order.
type CycleReader struct {
	db *sql.DB

	sessionID int64
	session   *flightlog.Session

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter

	current *flightlog.Cycle
	rows    *sql.Rows
	err     error
}

func newCycleReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*CycleReader, error) {
	cr := &CycleReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(cr)
	}
	if err := cr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return cr, nil
}

func (cr *CycleReader) init(ctx context.Context) error {
	if cr.db == nil {
		return errors.New("database connection required")
	}
	if cr.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: cr.loadSession},
		{msg: "initializing filters", fn: cr.initFilters},
		{msg: "initializing query", fn: cr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (cr *CycleReader) loadSession(ctx context.Context) (err error) {
	stmt, err := cr.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var sess flightlog.Session
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, cr.sessionID).Scan(&sess.ID, &sess.UUID, &sess.StartTime, &sess.Mode, &config); err != nil {
		return fmt.Errorf("querying session: %w", err)
	}
	if config.Valid {
		sess.Config = &config.String
	}

	cr.session = &sess
	return
}

func (cr *CycleReader) initFilters(ctx context.Context) (err error) {
	if cr.startTime != nil && cr.endTime != nil {
		if cr.startTime.After(*cr.endTime) {
			return fmt.Errorf("start time %s is after end time %s", cr.startTime, cr.endTime)
		}
		return nil
	}

	stmt, err := cr.db.PrepareContext(ctx, selectCycleRangeSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var first, last int64
	if err = stmt.QueryRowContext(ctx, cr.sessionID).Scan(&first, &last); err != nil {
		return fmt.Errorf("scanning filters data: %w", err)
	}
	if first == 0 && last == 0 {
		return ErrNoData
	}

	if cr.startTime == nil {
		t := fromMillis(first)
		cr.startTime = &t
	}
	if cr.endTime == nil {
		t := fromMillis(last)
		cr.endTime = &t
	}
	return nil
}

func (cr *CycleReader) initQuery(ctx context.Context) (err error) {
	stmt, err := cr.db.PrepareContext(ctx, selectCyclesSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	cr.rows, err = stmt.QueryContext(ctx, cr.sessionID, toMillis(*cr.startTime), toMillis(*cr.endTime))
	return err
}

// Session returns the session this reader is accessing.
func (cr *CycleReader) Session() *flightlog.Session {
	return cr.session
}

// Next advances the iterator and returns true if there is another cycle to
// read. When it returns false, Error tells the end of data from a failure.
func (cr *CycleReader) Next(ctx context.Context) bool {
	if cr.err != nil || cr.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		cr.err = ctx.Err()
		return false
	default:
	}

	if !cr.rows.Next() {
		return false
	}

	var data cycleData
	if cr.err = cr.rows.Scan(
		&data.Cycle,
		&data.Timestamp,
		&data.Flying,
		&data.Mode,
		&data.Battery,
		&data.Height,
		&data.HasFrame,
		&data.Kind,
		&data.Gesture,
		&data.BoxX,
		&data.BoxY,
		&data.BoxW,
		&data.BoxH,
		&data.Area,
		&data.LR,
		&data.FB,
		&data.UD,
		&data.Yaw,
		&data.Notice,
	); cr.err != nil {
		cr.err = fmt.Errorf("scanning cycle: %w", cr.err)
		return false
	}

	c := fromCycleData(data)
	cr.current = &c
	return true
}

// Current returns the cycle read by the last successful call to Next.
func (cr *CycleReader) Current() *flightlog.Cycle {
	return cr.current
}

func (cr *CycleReader) Error() error {
	if cr.err != nil {
		return cr.err
	}
	if cr.rows != nil {
		return cr.rows.Err()
	}
	return nil
}

func (cr *CycleReader) Close() error {
	if cr.rows != nil {
		err := cr.rows.Close()
		cr.current = nil
		cr.rows = nil
		return err
	}
	return nil
}
