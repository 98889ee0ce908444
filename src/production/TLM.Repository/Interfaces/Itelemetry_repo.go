package interfaces

import (
	"context"

	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
)

// TelemetryRepository is the narrow contract the core uses to read and
// write device state. Every operation is idempotent: repeated calls with
// the same arguments leave the same end state. The backend owns its own
// concurrency control; the core never assumes a single writer.
type TelemetryRepository interface {
	// UpsertReport creates the device row if absent, otherwise merges the
	// provided fields into it (absent fields are retained) and sets the
	// last report timestamp.
	UpsertReport(ctx context.Context, report tlmmodels.Report) error

	// CreateDevice provisions a device row administratively. Existing rows
	// keep their telemetry; name/lat/lon are updated when provided.
	CreateDevice(ctx context.Context, deviceID string, name *string, lat, lon *float64) error

	// Read devices
	GetDevice(ctx context.Context, deviceID string) (*tlmmodels.Device, error)
	ListDevices(ctx context.Context, scope tlmmodels.Scope) ([]tlmmodels.Device, error)

	// Ownership and secrets
	SetOwner(ctx context.Context, deviceID, userID string) error
	AddViewer(ctx context.Context, userID, deviceID string) error
	SetSecretHash(ctx context.Context, deviceID, hash string) error
}
