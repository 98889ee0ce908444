package tlmmodels

import "time"

// Device is the latest known state of a field device. A device row is
// created on first ingest or by administrative provisioning and mutated on
// every subsequent report; the core never deletes it.
type Device struct {
	DeviceID     string    `json:"device_id" db:"device_id" bson:"device_id"`
	Name         *string   `json:"name,omitempty" db:"name" bson:"name,omitempty"`
	Lat          float64   `json:"lat" db:"lat" bson:"lat"`
	Lon          float64   `json:"lon" db:"lon" bson:"lon"`
	SOC          *int      `json:"soc" db:"soc" bson:"soc,omitempty"`
	Voltage      *float64  `json:"v" db:"v" bson:"v,omitempty"`
	Temperature  *float64  `json:"t" db:"t" bson:"t,omitempty"`
	LastReportTS int64     `json:"ts" db:"ts" bson:"ts"`
	OwnerUserID  *string   `json:"-" db:"owner_user_id" bson:"owner_user_id,omitempty"`
	APITokenHash *string   `json:"-" db:"api_token_hash" bson:"api_token_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// Report is a single telemetry report as it arrives on the wire, from HTTP
// ingest or the MQTT ingestor. Pointer fields distinguish "absent" from
// "zero": absent fields are retained from the previous state on upsert.
// Timestamps are unix seconds on every ingest path.
type Report struct {
	DeviceID    string   `json:"id"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	SOC         *int     `json:"soc"`
	Voltage     *float64 `json:"v"`
	Temperature *float64 `json:"t"`
	TS          *int64   `json:"ts"`
}
