package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"shaztube/internal/shared"
)

// StateRepository persists OAuth CSRF state tokens with a TTL.
//
// States are one-shot: Consume deletes the row, so a replayed callback
// fails validation even inside the TTL window.
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository creates a new [StateRepository] with the given database connection.
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Create stores a state token.
func (r *StateRepository) Create(state string, ttl time.Duration) error {
	if state == "" {
		return fmt.Errorf("%w: empty state token", shared.ErrInvalidArgument)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO oauth_states (state, created_at, expires_at) VALUES (?, ?, ?)
	`

	if _, err := r.db.Exec(query, state, now, now.Add(ttl)); err != nil {
		return fmt.Errorf("failed to insert state: %w", err)
	}
	return nil
}

// Consume validates and deletes a state token in one step. Returns
// shared.ErrInvalidState for unknown, expired, or replayed tokens.
func (r *StateRepository) Consume(state string) error {
	var expiresAt time.Time

	err := r.db.QueryRow("SELECT expires_at FROM oauth_states WHERE state = ?", state).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: unknown state token", shared.ErrInvalidState)
	}
	if err != nil {
		return fmt.Errorf("failed to query state: %w", err)
	}

	if _, err := r.db.Exec("DELETE FROM oauth_states WHERE state = ?", state); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}

	if time.Now().After(expiresAt) {
		return fmt.Errorf("%w: state token expired", shared.ErrInvalidState)
	}
	return nil
}

// PurgeExpired removes all expired state tokens and returns how many were dropped.
func (r *StateRepository) PurgeExpired() (int64, error) {
	return purgeExpired(r.db, "oauth_states", time.Now().UTC())
}
