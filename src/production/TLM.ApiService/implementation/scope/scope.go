package scope

import (
	config "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Config"
	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
	api_models "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models/api"
)

// Service decides which device records an identity may read. It is
// state-free; every decision follows from the claims and the configured
// default visibility.
type Service struct {
	defaultVisibility string
}

// NewService creates a new scope service
func NewService(defaultVisibility string) *Service {
	return &Service{defaultVisibility: defaultVisibility}
}

// Scope maps a verified identity (or nil for none) to a read scope:
//  1. no identity, unknown role or missing subject: the configured default
//     visibility (all devices, or none)
//  2. admin: all devices
//  3. member with a subject: devices the user owns or is mapped to as a
//     viewer
func (s *Service) Scope(claims *api_models.Claims) tlmmodels.Scope {
	if claims == nil {
		return s.defaultScope()
	}

	switch claims.Role {
	case tlmmodels.RoleAdmin:
		return tlmmodels.ScopeAll
	case tlmmodels.RoleMember:
		if claims.Subject == "" {
			return s.defaultScope()
		}
		return tlmmodels.ScopeUser(claims.Subject)
	default:
		return s.defaultScope()
	}
}

func (s *Service) defaultScope() tlmmodels.Scope {
	if s.defaultVisibility == config.VisibilityNone {
		return tlmmodels.ScopeNone
	}
	return tlmmodels.ScopeAll
}
