package implementation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
)

// MemoryTelemetryRepository is the volatile-map variant of the telemetry
// store. State is lost on restart; it also serves as the test double.
type MemoryTelemetryRepository struct {
	mu      sync.RWMutex
	devices map[string]*tlmmodels.Device
	viewers map[string]map[string]bool // device_id -> user_id set
}

func NewMemoryTelemetryRepository() *MemoryTelemetryRepository {
	return &MemoryTelemetryRepository{
		devices: make(map[string]*tlmmodels.Device),
		viewers: make(map[string]map[string]bool),
	}
}

func (r *MemoryTelemetryRepository) UpsertReport(ctx context.Context, report tlmmodels.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := time.Now().Unix()
	if report.TS != nil {
		ts = *report.TS
	}

	device, ok := r.devices[report.DeviceID]
	if !ok {
		device = &tlmmodels.Device{DeviceID: report.DeviceID, CreatedAt: time.Now()}
		r.devices[report.DeviceID] = device
	}

	if report.Lat != nil {
		device.Lat = *report.Lat
	}
	if report.Lon != nil {
		device.Lon = *report.Lon
	}
	if report.SOC != nil {
		soc := *report.SOC
		device.SOC = &soc
	}
	if report.Voltage != nil {
		v := *report.Voltage
		device.Voltage = &v
	}
	if report.Temperature != nil {
		t := *report.Temperature
		device.Temperature = &t
	}
	device.LastReportTS = ts
	device.UpdatedAt = time.Now()

	return nil
}

func (r *MemoryTelemetryRepository) CreateDevice(ctx context.Context, deviceID string, name *string, lat, lon *float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		device = &tlmmodels.Device{
			DeviceID:     deviceID,
			LastReportTS: time.Now().Unix(),
			CreatedAt:    time.Now(),
		}
		r.devices[deviceID] = device
	}

	if name != nil {
		n := *name
		device.Name = &n
	}
	if lat != nil {
		device.Lat = *lat
	}
	if lon != nil {
		device.Lon = *lon
	}
	device.UpdatedAt = time.Now()

	return nil
}

func (r *MemoryTelemetryRepository) GetDevice(ctx context.Context, deviceID string) (*tlmmodels.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return nil, tlmmodels.ErrNotFound
	}
	out := *device
	return &out, nil
}

func (r *MemoryTelemetryRepository) ListDevices(ctx context.Context, scope tlmmodels.Scope) ([]tlmmodels.Device, error) {
	if scope.Empty() {
		return []tlmmodels.Device{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := []tlmmodels.Device{}
	for _, device := range r.devices {
		if !scope.All && !r.visibleTo(device, scope.UserID) {
			continue
		}
		devices = append(devices, *device)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].UpdatedAt.After(devices[j].UpdatedAt)
	})

	return devices, nil
}

func (r *MemoryTelemetryRepository) visibleTo(device *tlmmodels.Device, userID string) bool {
	if device.OwnerUserID != nil && *device.OwnerUserID == userID {
		return true
	}
	return r.viewers[device.DeviceID][userID]
}

func (r *MemoryTelemetryRepository) SetOwner(ctx context.Context, deviceID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return tlmmodels.ErrNotFound
	}
	owner := userID
	device.OwnerUserID = &owner
	device.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryTelemetryRepository) AddViewer(ctx context.Context, userID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.viewers[deviceID] == nil {
		r.viewers[deviceID] = make(map[string]bool)
	}
	r.viewers[deviceID][userID] = true
	return nil
}

func (r *MemoryTelemetryRepository) SetSecretHash(ctx context.Context, deviceID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok {
		return tlmmodels.ErrNotFound
	}
	h := hash
	device.APITokenHash = &h
	device.UpdatedAt = time.Now()
	return nil
}

// MemoryUserRepository keeps credential records in a map, keyed by email.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*tlmmodels.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*tlmmodels.User)}
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*tlmmodels.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[email]
	if !ok {
		return nil, tlmmodels.ErrNotFound
	}
	out := *user
	return &out, nil
}

func (r *MemoryUserRepository) Upsert(ctx context.Context, user *tlmmodels.User) (*tlmmodels.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.Email]
	if ok {
		existing.PasswordHash = user.PasswordHash
		if user.Role != "" {
			existing.Role = user.Role
		}
		existing.UpdatedAt = time.Now()
		out := *existing
		return &out, nil
	}

	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = tlmmodels.RoleMember
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	stored := *user
	r.users[user.Email] = &stored

	out := stored
	return &out, nil
}
