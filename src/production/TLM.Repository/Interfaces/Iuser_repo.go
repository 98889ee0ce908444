package interfaces

import (
	"context"

	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
)

type UserRepository interface {
	// FindByEmail looks up the credential record for a login attempt.
	FindByEmail(ctx context.Context, email string) (*tlmmodels.User, error)

	// Upsert creates the user keyed by email, or replaces its hash and
	// role. The returned user carries the assigned id.
	Upsert(ctx context.Context, user *tlmmodels.User) (*tlmmodels.User, error)
}
