package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

//go:embed indexes.sql
var initIndexesSQL string

const (
	insertSessionSQL = `
INSERT INTO sessions (uuid,
                      start_time,
                      mode,
                      config)
VALUES (?, ?, ?, ?)`

	selectSessionSQL = `
SELECT id,
       uuid,
       start_time,
       mode,
       config
FROM sessions
WHERE id = ?`

	selectSessionsSQL = `
SELECT id,
       uuid,
       start_time,
       mode,
       config
FROM sessions
ORDER BY start_time, id`

	insertTelemetrySQL = `
INSERT INTO telemetry (session_id,
                       timestamp,
                       battery,
                       height,
                       flying,
                       battery_low,
                       north_speed,
                       east_speed,
                       vertical_speed,
                       fly_time,
                       wifi_strength)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectTelemetrySQL = `
SELECT id,
       timestamp,
       battery,
       height,
       flying,
       battery_low,
       north_speed,
       east_speed,
       vertical_speed,
       fly_time,
       wifi_strength
FROM telemetry
WHERE session_id = ?
ORDER BY timestamp`

	insertCyclesSQL = `
INSERT INTO cycles (session_id,
                    cycle,
                    timestamp,
                    flying,
                    mode,
                    battery,
                    height,
                    has_frame,
                    kind,
                    gesture,
                    box_x,
                    box_y,
                    box_w,
                    box_h,
                    area,
                    lr,
                    fb,
                    ud,
                    yaw,
                    notice)
VALUES `

	cycleValuesPlaceholder = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	cycleColumns           = 20

	selectCyclesSQL = `
SELECT cycle,
       timestamp,
       flying,
       mode,
       battery,
       height,
       has_frame,
       kind,
       gesture,
       box_x,
       box_y,
       box_w,
       box_h,
       area,
       lr,
       fb,
       ud,
       yaw,
       notice
FROM cycles
WHERE session_id = ?
  AND timestamp BETWEEN ? AND ?
ORDER BY cycle`

	selectCycleRangeSQL = `
SELECT COALESCE(MIN(timestamp), 0),
       COALESCE(MAX(timestamp), 0)
FROM cycles
WHERE session_id = ?`

	insertEventSQL = `
INSERT INTO events (session_id,
                    timestamp,
                    kind,
                    detail,
                    battery,
                    height)
VALUES (?, ?, ?, ?, ?, ?)`

	selectEventsSQL = `
SELECT timestamp,
       kind,
       detail,
       battery,
       height
FROM events
WHERE session_id = ?
ORDER BY timestamp, id`
)
