package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"shaztube/internal/models"
	"shaztube/internal/shared"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func sampleTracks() []models.Track {
	return []models.Track{
		{Title: "Blinding Lights", Artist: "The Weeknd"},
		{Title: "Don't Start Now", Artist: "Dua Lipa"},
	}
}

func TestUploadRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		repo := NewUploadRepository(newTestDB(t))

		token, err := repo.Create(sampleTracks(), time.Minute)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token == "" {
			t.Fatal("expected a non-empty token")
		}

		upload, err := repo.Get(token)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if upload.TrackCount != 2 || len(upload.Tracks) != 2 {
			t.Errorf("expected 2 tracks, got count %d / len %d", upload.TrackCount, len(upload.Tracks))
		}
		if upload.Tracks[0].Title != "Blinding Lights" {
			t.Errorf("unexpected first track %+v", upload.Tracks[0])
		}
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		repo := NewUploadRepository(newTestDB(t))
		if _, err := repo.Create(nil, time.Minute); !errors.Is(err, shared.ErrNoTracks) {
			t.Errorf("expected ErrNoTracks, got %v", err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		repo := NewUploadRepository(newTestDB(t))
		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrUploadNotFound) {
			t.Errorf("expected ErrUploadNotFound, got %v", err)
		}
	})

	t.Run("expired upload is gone", func(t *testing.T) {
		repo := NewUploadRepository(newTestDB(t))

		token, err := repo.Create(sampleTracks(), -time.Minute)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if _, err := repo.Get(token); !errors.Is(err, shared.ErrUploadNotFound) {
			t.Errorf("expected ErrUploadNotFound, got %v", err)
		}

		// The expired row was deleted on read.
		if _, err := repo.Get(token); !errors.Is(err, shared.ErrUploadNotFound) {
			t.Errorf("expected ErrUploadNotFound after deletion, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewUploadRepository(newTestDB(t))

		token, _ := repo.Create(sampleTracks(), time.Minute)
		if err := repo.Delete(token); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := repo.Get(token); !errors.Is(err, shared.ErrUploadNotFound) {
			t.Errorf("expected ErrUploadNotFound, got %v", err)
		}
	})

	t.Run("PurgeExpired", func(t *testing.T) {
		repo := NewUploadRepository(newTestDB(t))

		repo.Create(sampleTracks(), -time.Minute)
		repo.Create(sampleTracks(), -time.Minute)
		live, _ := repo.Create(sampleTracks(), time.Minute)

		purged, err := repo.PurgeExpired()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if purged != 2 {
			t.Errorf("expected 2 purged, got %d", purged)
		}
		if _, err := repo.Get(live); err != nil {
			t.Errorf("expected live upload to survive, got %v", err)
		}
	})
}

func TestStateRepository(t *testing.T) {
	t.Run("Create and Consume", func(t *testing.T) {
		repo := NewStateRepository(newTestDB(t))

		state := shared.GenerateState()
		if err := repo.Create(state, time.Minute); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := repo.Consume(state); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("states are one-shot", func(t *testing.T) {
		repo := NewStateRepository(newTestDB(t))

		state := shared.GenerateState()
		repo.Create(state, time.Minute)
		repo.Consume(state)

		if err := repo.Consume(state); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState on replay, got %v", err)
		}
	})

	t.Run("unknown state", func(t *testing.T) {
		repo := NewStateRepository(newTestDB(t))
		if err := repo.Consume("nope"); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("expired state", func(t *testing.T) {
		repo := NewStateRepository(newTestDB(t))

		state := shared.GenerateState()
		repo.Create(state, -time.Minute)

		if err := repo.Consume(state); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("rejects empty state", func(t *testing.T) {
		repo := NewStateRepository(newTestDB(t))
		if err := repo.Create("", time.Minute); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("PurgeExpired", func(t *testing.T) {
		repo := NewStateRepository(newTestDB(t))

		repo.Create("stale", -time.Minute)
		repo.Create("fresh", time.Minute)

		purged, err := repo.PurgeExpired()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if purged != 1 {
			t.Errorf("expected 1 purged, got %d", purged)
		}
		if err := repo.Consume("fresh"); err != nil {
			t.Errorf("expected fresh state to survive, got %v", err)
		}
	})
}
