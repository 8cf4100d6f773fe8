package storage

import (
	"database/sql"
	"time"

	"github.com/roman-kulish/visual-servo/internal/flightlog"
	"github.com/roman-kulish/visual-servo/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && cErr != sql.ErrTxDone && *err == nil {
		*err = cErr
	}
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func toTelemetryData(sessionID int64, t *telemetry.Telemetry) *telemetryData {
	return &telemetryData{
		SessionID:  sessionID,
		Timestamp:  toMillis(t.Timestamp),
		Battery:    t.Battery,
		Height:     t.Height,
		Flying:     t.Flying,
		BatteryLow: t.BatteryLow,

		NorthSpeed:    toSQLNullInt(t.NorthSpeed),
		EastSpeed:     toSQLNullInt(t.EastSpeed),
		VerticalSpeed: toSQLNullInt(t.VerticalSpeed),
		FlyTime:       toSQLNullInt(t.FlyTime),
		WifiStrength:  toSQLNullInt(t.WifiStrength),
	}
}

func fromTelemetryData(data telemetryData) *telemetry.Telemetry {
	return &telemetry.Telemetry{
		Timestamp:     fromMillis(data.Timestamp),
		Battery:       data.Battery,
		Height:        data.Height,
		Flying:        data.Flying,
		BatteryLow:    data.BatteryLow,
		NorthSpeed:    fromSQLNullInt(data.NorthSpeed),
		EastSpeed:     fromSQLNullInt(data.EastSpeed),
		VerticalSpeed: fromSQLNullInt(data.VerticalSpeed),
		FlyTime:       fromSQLNullInt(data.FlyTime),
		WifiStrength:  fromSQLNullInt(data.WifiStrength),
	}
}

func toCycleData(sessionID int64, c flightlog.Cycle) *cycleData {
	return &cycleData{
		SessionID: sessionID,
		Cycle:     int64(c.Cycle),
		Timestamp: toMillis(c.Timestamp),
		Flying:    c.Flying,
		Mode:      c.Mode,
		Battery:   c.Battery,
		Height:    c.Height,
		HasFrame:  c.HasFrame,
		Kind:      c.Kind,
		Gesture:   sql.NullString{String: c.Gesture, Valid: c.Gesture != ""},
		BoxX:      c.BoxX,
		BoxY:      c.BoxY,
		BoxW:      c.BoxW,
		BoxH:      c.BoxH,
		Area:      c.Area,
		LR:        c.LR,
		FB:        c.FB,
		UD:        c.UD,
		Yaw:       c.Yaw,
		Notice:    sql.NullString{String: c.Notice, Valid: c.Notice != ""},
	}
}

func fromCycleData(data cycleData) flightlog.Cycle {
	return flightlog.Cycle{
		Cycle:     uint64(data.Cycle),
		Timestamp: fromMillis(data.Timestamp),
		Flying:    data.Flying,
		Mode:      data.Mode,
		Battery:   data.Battery,
		Height:    data.Height,
		HasFrame:  data.HasFrame,
		Kind:      data.Kind,
		Gesture:   data.Gesture.String,
		BoxX:      data.BoxX,
		BoxY:      data.BoxY,
		BoxW:      data.BoxW,
		BoxH:      data.BoxH,
		Area:      data.Area,
		LR:        data.LR,
		FB:        data.FB,
		UD:        data.UD,
		Yaw:       data.Yaw,
		Notice:    data.Notice.String,
	}
}

func toSQLNullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromSQLNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
