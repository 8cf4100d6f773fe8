package storage

import (
	"database/sql"
)

type telemetryData struct {
	ID            int64
	SessionID     int64
	Timestamp     int64
	Battery       int
	Height        int
	Flying        bool
	BatteryLow    bool
	NorthSpeed    sql.NullInt64
	EastSpeed     sql.NullInt64
	VerticalSpeed sql.NullInt64
	FlyTime       sql.NullInt64
	WifiStrength  sql.NullInt64
}

type cycleData struct {
	SessionID int64
	Cycle     int64
	Timestamp int64
	Flying    bool
	Mode      string
	Battery   int
	Height    int
	HasFrame  bool
	Kind      string
	Gesture   sql.NullString
	BoxX      int
	BoxY      int
	BoxW      int
	BoxH      int
	Area      float64
	LR        int
	FB        int
	UD        int
	Yaw       int
	Notice    sql.NullString
}
