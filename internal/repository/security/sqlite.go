package security

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

const (
	// sqliteBusyTimeout is how long a connection waits for a locked database.
	sqliteBusyTimeout = 5 * time.Second
	// sqliteDirPermissions is the permission mode for the database directory.
	sqliteDirPermissions = 0o750

	alarmStatusKey  = "alarm_status"
	armingStatusKey = "arming_status"
)

// schema creates the tables used by SQLiteRepository.
const schema = `
CREATE TABLE IF NOT EXISTS sensors (
	name   TEXT    NOT NULL,
	type   TEXT    NOT NULL,
	active INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (name, type)
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteRepository stores the security state in a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLiteRepository opens (creating if needed) the database at path and
// applies the schema.
func OpenSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), sqliteDirPermissions); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, sqliteBusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	return nil
}

// Sensors returns every stored sensor.
func (r *SQLiteRepository) Sensors(ctx context.Context) ([]domain.Sensor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, type, active FROM sensors`)
	if err != nil {
		return nil, fmt.Errorf("query sensors: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var sensors []domain.Sensor

	for rows.Next() {
		var (
			sensor     domain.Sensor
			sensorType string
		)

		if err = rows.Scan(&sensor.Name, &sensorType, &sensor.Active); err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}

		if sensor.Type, err = domain.ParseSensorType(sensorType); err != nil {
			return nil, fmt.Errorf("sensor %q: %w", sensor.Name, err)
		}

		sensors = append(sensors, sensor)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensors: %w", err)
	}

	sortSensors(sensors)

	return sensors, nil
}

// AddSensor inserts or replaces the sensor.
func (r *SQLiteRepository) AddSensor(ctx context.Context, sensor domain.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sensors (name, type, active) VALUES (?, ?, ?)
		ON CONFLICT (name, type) DO UPDATE SET active = excluded.active`,
		sensor.Name, sensor.Type.String(), sensor.Active)
	if err != nil {
		return fmt.Errorf("insert sensor: %w", err)
	}

	return nil
}

// RemoveSensor deletes the sensor if present.
func (r *SQLiteRepository) RemoveSensor(ctx context.Context, sensor domain.Sensor) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sensors WHERE name = ? AND type = ?`,
		sensor.Name, sensor.Type.String())
	if err != nil {
		return fmt.Errorf("delete sensor: %w", err)
	}

	return nil
}

// UpdateSensor overwrites the active flag of a known sensor.
func (r *SQLiteRepository) UpdateSensor(ctx context.Context, sensor domain.Sensor) error {
	result, err := r.db.ExecContext(ctx, `UPDATE sensors SET active = ? WHERE name = ? AND type = ?`,
		sensor.Active, sensor.Name, sensor.Type.String())
	if err != nil {
		return fmt.Errorf("update sensor: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sensor: %w", err)
	}

	if affected == 0 {
		return ErrSensorNotFound
	}

	return nil
}

// AlarmStatus returns the stored alarm status, NO_ALARM if none was stored.
func (r *SQLiteRepository) AlarmStatus(ctx context.Context) (domain.AlarmStatus, error) {
	value, err := r.setting(ctx, alarmStatusKey)
	if err != nil || value == "" {
		return domain.NoAlarm, err
	}

	return domain.ParseAlarmStatus(value)
}

// SetAlarmStatus stores the alarm status.
func (r *SQLiteRepository) SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error {
	return r.setSetting(ctx, alarmStatusKey, status.String())
}

// ArmingStatus returns the stored arming mode, DISARMED if none was stored.
func (r *SQLiteRepository) ArmingStatus(ctx context.Context) (domain.ArmingStatus, error) {
	value, err := r.setting(ctx, armingStatusKey)
	if err != nil || value == "" {
		return domain.Disarmed, err
	}

	return domain.ParseArmingStatus(value)
}

// SetArmingStatus stores the arming mode.
func (r *SQLiteRepository) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error {
	return r.setSetting(ctx, armingStatusKey, status.String())
}

// setting reads a value from the settings table; a missing key yields "".
func (r *SQLiteRepository) setting(ctx context.Context, key string) (string, error) {
	var value string

	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	default:
		return "", fmt.Errorf("read %s: %w", key, err)
	}
}

// setSetting upserts a value in the settings table.
func (r *SQLiteRepository) setSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	return nil
}
