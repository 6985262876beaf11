package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"shaztube/internal/models"
	"shaztube/internal/shared"
)

// Upload is a parsed CSV batch held server-side between the parse and
// build steps of the browser flow.
type Upload struct {
	Token      string
	Tracks     []models.Track
	TrackCount int
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// UploadRepository persists parsed track batches with a TTL.
type UploadRepository struct {
	db *sql.DB
}

// NewUploadRepository creates a new [UploadRepository] with the given database connection.
func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create stores a track batch and returns its opaque upload token.
func (r *UploadRepository) Create(tracks []models.Track, ttl time.Duration) (string, error) {
	if len(tracks) == 0 {
		return "", fmt.Errorf("%w: refusing to store an empty batch", shared.ErrNoTracks)
	}

	payload, err := json.Marshal(tracks)
	if err != nil {
		return "", fmt.Errorf("failed to encode tracks: %w", err)
	}

	token := shared.GenerateID()
	now := time.Now().UTC()

	query := `
		INSERT INTO uploads (id, tracks, track_count, created_at, expires_at) VALUES (?, ?, ?, ?, ?)
	`

	if _, err := r.db.Exec(query, token, string(payload), len(tracks), now, now.Add(ttl)); err != nil {
		return "", fmt.Errorf("failed to insert upload: %w", err)
	}

	return token, nil
}

// Get retrieves a track batch by its token. Expired batches are deleted
// on sight and reported as not found.
func (r *UploadRepository) Get(token string) (*Upload, error) {
	query := `
		SELECT id, tracks, track_count, created_at, expires_at FROM uploads WHERE id = ?
	`

	var (
		upload  Upload
		payload string
	)

	err := r.db.QueryRow(query, token).Scan(&upload.Token, &payload, &upload.TrackCount, &upload.CreatedAt, &upload.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrUploadNotFound, token)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query upload: %w", err)
	}

	if time.Now().After(upload.ExpiresAt) {
		_ = r.Delete(token)
		return nil, fmt.Errorf("%w: %s expired at %s", shared.ErrUploadNotFound, token, upload.ExpiresAt.Format(time.RFC3339))
	}

	if err := json.Unmarshal([]byte(payload), &upload.Tracks); err != nil {
		return nil, fmt.Errorf("failed to decode tracks for %s: %w", token, err)
	}

	return &upload, nil
}

// Delete removes an upload by token.
func (r *UploadRepository) Delete(token string) error {
	if _, err := r.db.Exec("DELETE FROM uploads WHERE id = ?", token); err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return nil
}

// PurgeExpired removes all expired uploads and returns how many were dropped.
func (r *UploadRepository) PurgeExpired() (int64, error) {
	return purgeExpired(r.db, "uploads", time.Now().UTC())
}
