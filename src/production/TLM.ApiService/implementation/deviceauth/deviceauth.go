package deviceauth

import (
	"context"
	"crypto/subtle"
	"errors"

	"gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.ApiService/implementation/devicesecret"
	config "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Config"
	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
	interfaces "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Repository/Interfaces"
)

// Service authenticates machine callers on the ingest paths. Two modes:
// a fleet-wide shared token, or per-device secrets verified against the
// device's stored keyed hash.
type Service struct {
	mode        string
	sharedToken string
	repo        interfaces.TelemetryRepository
}

// NewService creates a new device auth service
func NewService(cfg *config.AuthConfig, repo interfaces.TelemetryRepository) *Service {
	return &Service{
		mode:        cfg.DeviceAuthMode,
		sharedToken: cfg.DeviceToken,
		repo:        repo,
	}
}

// Authorize checks the presented secret for the given device. Every
// failure resolves to ErrUnauthorized; callers learn nothing about whether
// the device exists or has a secret provisioned.
func (s *Service) Authorize(ctx context.Context, deviceID, presented string) error {
	if presented == "" {
		return tlmmodels.ErrUnauthorized
	}

	if s.mode == config.DeviceAuthShared {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.sharedToken)) != 1 {
			return tlmmodels.ErrUnauthorized
		}
		return nil
	}

	device, err := s.repo.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, tlmmodels.ErrNotFound) {
			return tlmmodels.ErrUnauthorized
		}
		return err
	}
	if device.APITokenHash == nil {
		return tlmmodels.ErrUnauthorized
	}
	if !devicesecret.Verify(presented, deviceID, *device.APITokenHash) {
		return tlmmodels.ErrUnauthorized
	}
	return nil
}
