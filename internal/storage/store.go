// Package storage keeps the flight log: sessions, telemetry reports, control
// cycles and flight events.
package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/visual-servo/internal/flightlog"
	"github.com/roman-kulish/visual-servo/internal/telemetry"
)

// Store provides an interface for recording and reading back flights.
// Writes are expected from a single recorder goroutine; reads may run
// concurrently with them. All operations that write to the database should
// be considered atomic.
type Store interface {
	// CreateSession starts a new flight session and returns its identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - mode: Observation source of the pilot ("blob" or "gesture")
	//   - config: Optional pilot configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, mode string, config any) (sessionID int64, err error)

	// Session retrieves a specific flight session by its ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique session identifier
	//
	// Returns:
	//   - session: Pointer to session data
	//   - error: If retrieval fails, the session does not exist or context is cancelled
	Session(ctx context.Context, id int64) (session *flightlog.Session, err error)

	// Sessions returns all flight sessions stored in the database.
	// Results are ordered by start time in ascending order.
	Sessions(ctx context.Context) (sessions []*flightlog.Session, err error)

	// StoreTelemetry saves a telemetry report received from the drone.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: ID of the session this telemetry belongs to
	//   - t: Telemetry report, must not be nil
	//
	// Returns:
	//   - telemetryID: Unique identifier for the stored telemetry record
	//   - error: If storage fails or context is cancelled
	StoreTelemetry(ctx context.Context, sessionID int64, t *telemetry.Telemetry) (telemetryID int64, err error)

	// StoreCycles saves a batch of control cycles in a single transaction.
	// An empty batch is a no-op.
	StoreCycles(ctx context.Context, sessionID int64, cycles []flightlog.Cycle) error

	// StoreEvent saves a flight state transition or a refused command.
	StoreEvent(ctx context.Context, sessionID int64, e flightlog.Event) error

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}
