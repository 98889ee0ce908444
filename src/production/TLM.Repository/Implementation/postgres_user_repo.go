package implementation

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// EnsureSchema creates the users table if it does not exist.
func (r *PostgresUserRepository) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS users (
			user_id VARCHAR(64) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL DEFAULT 'member',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*tlmmodels.User, error) {
	query := `SELECT user_id, email, password_hash, role, created_at, updated_at FROM users WHERE email = $1`

	var user tlmmodels.User
	err := r.db.QueryRowContext(ctx, query, email).Scan(&user.UserID, &user.Email,
		&user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, tlmmodels.ErrNotFound
		}
		return nil, err
	}

	return &user, nil
}

// Upsert creates the user keyed by email or replaces its hash. An empty
// role keeps the stored role on update and defaults to member on insert.
func (r *PostgresUserRepository) Upsert(ctx context.Context, user *tlmmodels.User) (*tlmmodels.User, error) {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	user.UpdatedAt = time.Now()

	query := `
		INSERT INTO users (user_id, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, COALESCE(NULLIF($4, ''), 'member'), NOW(), $5)
		ON CONFLICT (email)
		DO UPDATE SET password_hash = EXCLUDED.password_hash,
		              role = COALESCE(NULLIF($4, ''), users.role),
		              updated_at = EXCLUDED.updated_at
		RETURNING user_id, email, role
	`

	err := r.db.QueryRowContext(ctx, query, user.UserID, user.Email, user.PasswordHash,
		user.Role, user.UpdatedAt).Scan(&user.UserID, &user.Email, &user.Role)
	if err != nil {
		return nil, err
	}

	return user, nil
}
