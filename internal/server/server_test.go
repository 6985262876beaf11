package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"shaztube/internal/auth"
	"shaztube/internal/models"
	"shaztube/internal/repositories"
	"shaztube/internal/services"
	"shaztube/internal/shared"
)

const sampleCSV = "Shazam Library\nIndex,TagTime,Title,Artist,URL,TrackKey\n1,2024-01-01,\"Blinding Lights\",\"The Weeknd\",,abc\n2,2024-01-02,\"Don't Start Now\",\"Dua Lipa\",,def\n"

// stubCatalog implements services.Catalog for handler tests.
type stubCatalog struct {
	playlists []models.Playlist
	searchErr error
	inserted  []string
	removed   []string
	created   []string
}

func (s *stubCatalog) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	return s.playlists, nil
}

func (s *stubCatalog) CreatePlaylist(ctx context.Context, title, privacy string) (string, error) {
	s.created = append(s.created, title)
	return "PLnew", nil
}

func (s *stubCatalog) SearchBestMatch(ctx context.Context, query string) (string, error) {
	if s.searchErr != nil {
		return "", s.searchErr
	}
	return "vid-" + strings.Fields(query)[0], nil
}

func (s *stubCatalog) ListPlaylistItems(ctx context.Context, playlistID string) ([]models.PlaylistItem, error) {
	return nil, nil
}

func (s *stubCatalog) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error {
	s.inserted = append(s.inserted, videoID)
	return nil
}

func (s *stubCatalog) RemovePlaylistItem(ctx context.Context, itemID string) error {
	s.removed = append(s.removed, itemID)
	return nil
}

func (s *stubCatalog) Name() string { return "Stub" }

func newTestApp(t *testing.T, catalog services.Catalog) *App {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	cfg := shared.DefaultConfig()
	cfg.Credentials.Google.ClientID = "client-id"
	cfg.Credentials.Google.ClientSecret = "client-secret"

	bridge, err := auth.NewBridge(cfg.Credentials.Google)
	if err != nil {
		t.Fatalf("failed to create bridge: %v", err)
	}

	factory := func(ctx context.Context, accessToken string) (services.Catalog, error) {
		return catalog, nil
	}

	logger := shared.NewLogger(io.Discard)
	logger.SetLevel(log.ErrorLevel)

	return NewApp(cfg, logger, bridge,
		repositories.NewUploadRepository(db),
		repositories.NewStateRepository(db),
		factory,
	)
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t, &stubCatalog{})
	router := app.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decodeBody(t, rec)["status"] != "ok" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	app := newTestApp(t, &stubCatalog{})
	router := app.Router()

	req := httptest.NewRequest(http.MethodDelete, "/api/parse-csv", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t, &stubCatalog{})
	router := app.Router()

	req := httptest.NewRequest(http.MethodOptions, "/api/parse-csv", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS headers on preflight response")
	}
}

func TestParseCSVEndpoint(t *testing.T) {
	app := newTestApp(t, &stubCatalog{})
	router := app.Router()

	t.Run("parses tracks", func(t *testing.T) {
		rec := postJSON(t, router, "/api/parse-csv", map[string]string{"csvData": sampleCSV})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		body := decodeBody(t, rec)
		if body["parsedCount"].(float64) != 2 {
			t.Errorf("expected 2 parsed tracks, got %v", body["parsedCount"])
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		rec := postJSON(t, router, "/api/parse-csv", map[string]string{"csvData": ""})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("no tracks is an error with JSON body", func(t *testing.T) {
		rec := postJSON(t, router, "/api/parse-csv", map[string]string{"csvData": "Shazam Library\n"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if decodeBody(t, rec)["error"] == "" {
			t.Error("expected structured error body")
		}
	})
}

func TestUploadCSVEndpoint(t *testing.T) {
	app := newTestApp(t, &stubCatalog{})
	router := app.Router()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "shazamlibrary.csv")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	part.Write([]byte(sampleCSV))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload-csv", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["uploadToken"] == "" {
		t.Error("expected an upload token")
	}

	authURL, _ := body["authUrl"].(string)
	parsed, err := url.Parse(authURL)
	if err != nil || parsed.Query().Get("state") == "" {
		t.Errorf("expected auth URL with state, got %q", authURL)
	}

	// The stored batch is retrievable for the subsequent build.
	upload, err := app.uploads.Get(body["uploadToken"].(string))
	if err != nil {
		t.Fatalf("expected stored upload, got %v", err)
	}
	if len(upload.Tracks) != 2 {
		t.Errorf("expected 2 stored tracks, got %d", len(upload.Tracks))
	}

	t.Run("json body fallback", func(t *testing.T) {
		rec := postJSON(t, router, "/api/upload-csv", map[string]string{"csvData": sampleCSV})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if decodeBody(t, rec)["parsedCount"].(float64) != 2 {
			t.Errorf("expected 2 parsed tracks, got %s", rec.Body.String())
		}
	})

	t.Run("empty json body", func(t *testing.T) {
		rec := postJSON(t, router, "/api/upload-csv", map[string]string{"csvData": ""})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestAuthURLEndpoint(t *testing.T) {
	app := newTestApp(t, &stubCatalog{})
	router := app.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/auth", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	authURL, _ := body["authUrl"].(string)
	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("expected valid auth URL, got %q", authURL)
	}

	state := parsed.Query().Get("state")
	if state == "" {
		t.Fatal("expected state parameter in auth URL")
	}
	if err := app.states.Consume(state); err != nil {
		t.Errorf("expected state to be stored, got %v", err)
	}
}

func TestCheckPlaylistEndpoint(t *testing.T) {
	catalog := &stubCatalog{
		playlists: []models.Playlist{{ID: "PLold", Title: "My Shazam Tracks", ItemCount: 4}},
	}
	app := newTestApp(t, catalog)
	router := app.Router()

	t.Run("existing title", func(t *testing.T) {
		rec := postJSON(t, router, "/api/check-playlist", map[string]string{
			"accessToken":   "tok",
			"playlistTitle": "my shazam tracks",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		body := decodeBody(t, rec)
		if body["exists"] != true {
			t.Errorf("expected exists=true, got %v", body)
		}
		if body["playlistId"] != "PLold" {
			t.Errorf("expected playlistId PLold, got %v", body["playlistId"])
		}
	})

	t.Run("unknown title", func(t *testing.T) {
		rec := postJSON(t, router, "/api/check-playlist", map[string]string{
			"accessToken":   "tok",
			"playlistTitle": "Other",
		})
		if decodeBody(t, rec)["exists"] != false {
			t.Errorf("expected exists=false, got %s", rec.Body.String())
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := postJSON(t, router, "/api/check-playlist", map[string]string{"playlistTitle": "X"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCreatePlaylistEndpoint(t *testing.T) {
	tracks := []models.Track{
		{Title: "Blinding Lights", Artist: "The Weeknd"},
		{Title: "Don't Start Now", Artist: "Dua Lipa"},
	}

	t.Run("builds playlist from inline tracks", func(t *testing.T) {
		catalog := &stubCatalog{}
		app := newTestApp(t, catalog)
		router := app.Router()

		rec := postJSON(t, router, "/api/playlist", map[string]any{
			"accessToken":   "tok",
			"playlistTitle": "Mix",
			"tracks":        tracks,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		body := decodeBody(t, rec)
		if body["success"] != true {
			t.Errorf("expected success, got %v", body)
		}
		if body["addedTracks"].(float64) != 2 {
			t.Errorf("expected 2 added, got %v", body["addedTracks"])
		}
		if !strings.Contains(body["playlistUrl"].(string), "PLnew") {
			t.Errorf("expected playlist URL, got %v", body["playlistUrl"])
		}
	})

	t.Run("conflict without policy returns 409", func(t *testing.T) {
		catalog := &stubCatalog{
			playlists: []models.Playlist{{ID: "PLold", Title: "Mix"}},
		}
		app := newTestApp(t, catalog)
		router := app.Router()

		rec := postJSON(t, router, "/api/playlist", map[string]any{
			"accessToken":   "tok",
			"playlistTitle": "Mix",
			"tracks":        tracks,
		})
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
		}
		if decodeBody(t, rec)["conflict"] != true {
			t.Errorf("expected conflict marker, got %s", rec.Body.String())
		}
	})

	t.Run("conflict resolved by overwrite policy", func(t *testing.T) {
		catalog := &stubCatalog{
			playlists: []models.Playlist{{ID: "PLold", Title: "Mix"}},
		}
		app := newTestApp(t, catalog)
		router := app.Router()

		rec := postJSON(t, router, "/api/playlist", map[string]any{
			"accessToken":   "tok",
			"playlistTitle": "Mix",
			"tracks":        tracks,
			"onConflict":    "overwrite",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		body := decodeBody(t, rec)
		if body["action"] != "overwrite" {
			t.Errorf("expected overwrite action, got %v", body["action"])
		}
		if body["playlistId"] != "PLold" {
			t.Errorf("expected existing playlist reused, got %v", body["playlistId"])
		}
	})

	t.Run("uses stored upload", func(t *testing.T) {
		catalog := &stubCatalog{}
		app := newTestApp(t, catalog)
		router := app.Router()

		token, err := app.uploads.Create(tracks, app.cfg.Database.UploadTTL())
		if err != nil {
			t.Fatalf("failed to store upload: %v", err)
		}

		rec := postJSON(t, router, "/api/playlist", map[string]any{
			"accessToken": "tok",
			"uploadToken": token,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		body := decodeBody(t, rec)
		// Falls back to the configured default title.
		if body["playlistTitle"] != "My Shazam Tracks" {
			t.Errorf("expected default title, got %v", body["playlistTitle"])
		}

		// Consumed uploads are deleted.
		if _, err := app.uploads.Get(token); err == nil {
			t.Error("expected upload to be deleted after the build")
		}
	})

	t.Run("unknown upload token", func(t *testing.T) {
		app := newTestApp(t, &stubCatalog{})
		router := app.Router()

		rec := postJSON(t, router, "/api/playlist", map[string]any{
			"accessToken": "tok",
			"uploadToken": "nope",
		})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("expired token maps to 401", func(t *testing.T) {
		catalog := &stubCatalog{
			searchErr: fmt.Errorf("search failed: %w", shared.ErrTokenExpired),
		}
		app := newTestApp(t, catalog)
		router := app.Router()

		rec := postJSON(t, router, "/api/playlist", map[string]any{
			"accessToken":   "tok",
			"playlistTitle": "Mix",
			"tracks":        tracks,
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing access token", func(t *testing.T) {
		app := newTestApp(t, &stubCatalog{})
		router := app.Router()

		rec := postJSON(t, router, "/api/playlist", map[string]any{"tracks": tracks})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestPopupCallback(t *testing.T) {
	t.Run("provider error renders auth-error", func(t *testing.T) {
		app := newTestApp(t, &stubCatalog{})
		router := app.Router()

		req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?error=access_denied", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 HTML page, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "auth-error") {
			t.Errorf("expected auth-error message, got %s", rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "window.opener.postMessage") {
			t.Error("expected postMessage bridge in popup page")
		}
	})

	t.Run("invalid state renders auth-error", func(t *testing.T) {
		app := newTestApp(t, &stubCatalog{})
		router := app.Router()

		req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?state=bogus&code=abc", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if !strings.Contains(rec.Body.String(), "auth-error") {
			t.Errorf("expected auth-error for bogus state, got %s", rec.Body.String())
		}
	})

	t.Run("missing code renders auth-error", func(t *testing.T) {
		app := newTestApp(t, &stubCatalog{})
		router := app.Router()

		if err := app.states.Create("state-1", stateTTL); err != nil {
			t.Fatalf("failed to store state: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?state=state-1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if !strings.Contains(rec.Body.String(), "no authorization code") {
			t.Errorf("expected missing-code error, got %s", rec.Body.String())
		}
	})

	t.Run("success page targets the app origin", func(t *testing.T) {
		app := newTestApp(t, &stubCatalog{})
		handler := NewPopupCallbackHandler(app.bridge, app.states, "http://localhost:3000", app.logger)

		rec := httptest.NewRecorder()
		handler.render(rec, popupMessage{Type: "auth-success", AccessToken: "tok-123"})

		body := rec.Body.String()
		if !strings.Contains(body, "auth-success") {
			t.Errorf("expected auth-success message, got %s", body)
		}
		if !strings.Contains(body, "tok-123") {
			t.Error("expected access token in payload")
		}
		if !strings.Contains(body, "http://localhost:3000") {
			t.Error("expected pinned target origin")
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	newBridge := func(t *testing.T) *auth.Bridge {
		t.Helper()
		bridge, err := auth.NewBridge(shared.GoogleConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURI:  "http://localhost:3000/api/auth/callback",
		})
		if err != nil {
			t.Fatalf("failed to create bridge: %v", err)
		}
		return bridge
	}

	t.Run("state mismatch", func(t *testing.T) {
		handler := NewOAuthHandler(newBridge(t), "expected-state")

		req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?state=wrong&code=abc", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		result := <-handler.Result()
		if result.Error() == nil {
			t.Error("expected error result for state mismatch")
		}
	})

	t.Run("authorization denied", func(t *testing.T) {
		handler := NewOAuthHandler(newBridge(t), "state-1")

		req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?state=state-1&error=access_denied", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		result := <-handler.Result()
		if result.Error() == nil {
			t.Error("expected error result for denied authorization")
		}
	})

	t.Run("second callback rejected", func(t *testing.T) {
		handler := NewOAuthHandler(newBridge(t), "state-1")

		first := httptest.NewRequest(http.MethodGet, "/api/auth/callback?state=wrong", nil)
		handler.ServeHTTP(httptest.NewRecorder(), first)

		second := httptest.NewRequest(http.MethodGet, "/api/auth/callback?state=state-1&code=abc", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, second)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for replayed callback, got %d", rec.Code)
		}
	})
}
