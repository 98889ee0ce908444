package implementation

import (
	"context"
	"database/sql"
	"time"

	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
)

type PostgresTelemetryRepository struct {
	db *sql.DB
}

func NewPostgresTelemetryRepository(db *sql.DB) *PostgresTelemetryRepository {
	return &PostgresTelemetryRepository{db: db}
}

// EnsureSchema creates the telemetry tables if they do not exist.
func (r *PostgresTelemetryRepository) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS devices (
			id SERIAL PRIMARY KEY,
			device_id VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255),
			lat DECIMAL(10, 8) NOT NULL,
			lon DECIMAL(11, 8) NOT NULL,
			soc INTEGER,
			v DECIMAL(5, 2),
			t DECIMAL(5, 2),
			ts BIGINT NOT NULL,
			owner_user_id VARCHAR(64),
			api_token_hash VARCHAR(255),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS user_devices (
			user_id VARCHAR(64) NOT NULL,
			device_id VARCHAR(255) NOT NULL,
			PRIMARY KEY (user_id, device_id)
		);
	`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// UpsertReport creates or updates a device row (idempotent upsert). Absent
// report fields keep the stored values; the row's last write wins as
// ordered by the database's own serialization.
func (r *PostgresTelemetryRepository) UpsertReport(ctx context.Context, report tlmmodels.Report) error {
	ts := time.Now().Unix()
	if report.TS != nil {
		ts = *report.TS
	}

	query := `
		INSERT INTO devices AS d (device_id, lat, lon, soc, v, t, ts, created_at, updated_at)
		VALUES ($1, COALESCE($2, 0), COALESCE($3, 0), $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (device_id)
		DO UPDATE SET lat = COALESCE($2, d.lat),
		              lon = COALESCE($3, d.lon),
		              soc = COALESCE($4, d.soc),
		              v   = COALESCE($5, d.v),
		              t   = COALESCE($6, d.t),
		              ts  = $7,
		              updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, report.DeviceID, report.Lat, report.Lon,
		report.SOC, report.Voltage, report.Temperature, ts)
	return err
}

// CreateDevice provisions a device row, keeping existing telemetry when the
// row already exists.
func (r *PostgresTelemetryRepository) CreateDevice(ctx context.Context, deviceID string, name *string, lat, lon *float64) error {
	query := `
		INSERT INTO devices AS d (device_id, name, lat, lon, ts, created_at, updated_at)
		VALUES ($1, $2, COALESCE($3, 0), COALESCE($4, 0), EXTRACT(EPOCH FROM NOW())::BIGINT, NOW(), NOW())
		ON CONFLICT (device_id)
		DO UPDATE SET name = COALESCE($2, d.name),
		              lat  = COALESCE($3, d.lat),
		              lon  = COALESCE($4, d.lon),
		              updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, deviceID, name, lat, lon)
	return err
}

func (r *PostgresTelemetryRepository) GetDevice(ctx context.Context, deviceID string) (*tlmmodels.Device, error) {
	query := `
		SELECT device_id, name, lat, lon, soc, v, t, ts, owner_user_id, api_token_hash, created_at, updated_at
		FROM devices WHERE device_id = $1
	`

	var device tlmmodels.Device
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&device.DeviceID, &device.Name, &device.Lat, &device.Lon,
		&device.SOC, &device.Voltage, &device.Temperature, &device.LastReportTS,
		&device.OwnerUserID, &device.APITokenHash, &device.CreatedAt, &device.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, tlmmodels.ErrNotFound
		}
		return nil, err
	}

	return &device, nil
}

// ListDevices returns a snapshot of device state, most recently updated
// first, narrowed to the given scope.
func (r *PostgresTelemetryRepository) ListDevices(ctx context.Context, scope tlmmodels.Scope) ([]tlmmodels.Device, error) {
	if scope.Empty() {
		return []tlmmodels.Device{}, nil
	}

	query := `
		SELECT device_id, name, lat, lon, soc, v, t, ts, owner_user_id, api_token_hash, created_at, updated_at
		FROM devices
	`
	var args []interface{}
	if !scope.All {
		query += `
		WHERE owner_user_id = $1
		   OR device_id IN (SELECT device_id FROM user_devices WHERE user_id = $1)
		`
		args = append(args, scope.UserID)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := []tlmmodels.Device{}
	for rows.Next() {
		var device tlmmodels.Device
		if err := rows.Scan(
			&device.DeviceID, &device.Name, &device.Lat, &device.Lon,
			&device.SOC, &device.Voltage, &device.Temperature, &device.LastReportTS,
			&device.OwnerUserID, &device.APITokenHash, &device.CreatedAt, &device.UpdatedAt); err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}

	return devices, rows.Err()
}

func (r *PostgresTelemetryRepository) SetOwner(ctx context.Context, deviceID, userID string) error {
	query := `UPDATE devices SET owner_user_id = $1, updated_at = NOW() WHERE device_id = $2`

	result, err := r.db.ExecContext(ctx, query, userID, deviceID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return tlmmodels.ErrNotFound
	}
	return nil
}

func (r *PostgresTelemetryRepository) AddViewer(ctx context.Context, userID, deviceID string) error {
	query := `
		INSERT INTO user_devices (user_id, device_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, device_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, userID, deviceID)
	return err
}

func (r *PostgresTelemetryRepository) SetSecretHash(ctx context.Context, deviceID, hash string) error {
	query := `UPDATE devices SET api_token_hash = $1, updated_at = NOW() WHERE device_id = $2`

	result, err := r.db.ExecContext(ctx, query, hash, deviceID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return tlmmodels.ErrNotFound
	}
	return nil
}
