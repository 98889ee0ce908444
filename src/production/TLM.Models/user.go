package tlmmodels

import "time"

// Roles known to the system.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User represents a user in the system
type User struct {
	UserID       string    `json:"user_id" db:"user_id" bson:"user_id"`
	Email        string    `json:"email" db:"email" bson:"email"`
	PasswordHash string    `json:"-" db:"password_hash" bson:"password_hash"`
	Role         string    `json:"role" db:"role" bson:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// NewUser creates a new User instance. The password hash must already be
// computed; plaintext passwords never reach a model. An empty role is
// resolved by the repository: member on insert, unchanged on update.
func NewUser(email, passwordHash, role string) *User {
	now := time.Now()
	return &User{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
