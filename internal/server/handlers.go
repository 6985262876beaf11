package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"shaztube/internal/auth"
	"shaztube/internal/models"
	"shaztube/internal/repositories"
	"shaztube/internal/services"
	"shaztube/internal/shared"
	"shaztube/internal/shazam"
	"shaztube/internal/tasks"
)

// stateTTL bounds how long a consent page may sit open before the
// callback is rejected.
const stateTTL = 10 * time.Minute

// maxUploadBytes caps multipart CSV uploads.
const maxUploadBytes = 10 << 20

// CatalogFactory builds a catalog client for a request's access token.
// Swappable in tests.
type CatalogFactory func(ctx context.Context, accessToken string) (services.Catalog, error)

// App wires the HTTP handlers to their dependencies.
type App struct {
	cfg        *shared.Config
	logger     *log.Logger
	bridge     *auth.Bridge
	uploads    *repositories.UploadRepository
	states     *repositories.StateRepository
	newCatalog CatalogFactory
}

// NewApp creates the handler set for the web bridge.
func NewApp(cfg *shared.Config, logger *log.Logger, bridge *auth.Bridge, uploads *repositories.UploadRepository, states *repositories.StateRepository, factory CatalogFactory) *App {
	if factory == nil {
		factory = func(ctx context.Context, accessToken string) (services.Catalog, error) {
			return services.NewYouTubeCatalog(ctx, accessToken)
		}
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		bridge:     bridge,
		uploads:    uploads,
		states:     states,
		newCatalog: factory,
	}
}

// Router assembles the API routes with logging and CORS middleware.
func (a *App) Router() *BasicRouter {
	router := NewBasicRouter()
	router.Use(RequestLogger(a.logger), CORS(a.cfg.Server.AppOrigin()))

	router.Handle(http.MethodGet, "/health", http.HandlerFunc(a.handleHealth))
	router.Handle(http.MethodPost, "/api/parse-csv", http.HandlerFunc(a.handleParseCSV))
	router.Handle(http.MethodPost, "/api/upload-csv", http.HandlerFunc(a.handleUploadCSV))
	router.Handle(http.MethodGet, "/api/auth", http.HandlerFunc(a.handleAuthURL))
	router.Handle(http.MethodPost, "/api/check-playlist", http.HandlerFunc(a.handleCheckPlaylist))
	router.Handle(http.MethodPost, "/api/playlist", http.HandlerFunc(a.handleCreatePlaylist))
	router.Handler(NewPopupCallbackHandler(a.bridge, a.states, a.cfg.Server.AppOrigin(), a.logger))

	return router
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleParseCSV normalizes raw CSV text into tracks without storing anything.
func (a *App) handleParseCSV(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CSVData string `json:"csvData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CSVData == "" {
		a.writeError(w, http.StatusBadRequest, "no CSV data provided")
		return
	}

	tracks, err := shazam.Parse(req.CSVData)
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"tracks":      tracks,
		"parsedCount": len(tracks),
	})
}

// handleUploadCSV accepts a multipart CSV file or a JSON csvData body,
// parses it, stores the batch under a token, and returns the consent URL
// to open in a popup.
func (a *App) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	raw, ok := a.readUploadBody(w, r)
	if !ok {
		return
	}

	tracks, err := shazam.Parse(raw)
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	token, err := a.uploads.Create(tracks, a.cfg.Database.UploadTTL())
	if err != nil {
		a.logger.Error("failed to store upload", "error", err)
		a.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	authURL, err := a.consentURL()
	if err != nil {
		a.logger.Error("failed to create auth URL", "error", err)
		a.writeError(w, http.StatusInternalServerError, "failed to create auth URL")
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"uploadToken": token,
		"parsedCount": len(tracks),
		"authUrl":     authURL,
	})
}

// readUploadBody extracts raw CSV text from a multipart "file" field,
// falling back to a JSON body with a csvData field. Writes the error
// response itself when neither form is usable.
func (a *App) readUploadBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			a.writeError(w, http.StatusBadRequest, "invalid multipart upload")
			return "", false
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			a.writeError(w, http.StatusBadRequest, "missing 'file' field")
			return "", false
		}
		defer file.Close()

		raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			a.writeError(w, http.StatusBadRequest, "failed to read upload")
			return "", false
		}
		return string(raw), true
	}

	var req struct {
		CSVData string `json:"csvData"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "expected a multipart file or a JSON csvData body")
		return "", false
	}
	if req.CSVData == "" {
		a.writeError(w, http.StatusBadRequest, "no CSV data provided")
		return "", false
	}
	return req.CSVData, true
}

// handleAuthURL mints a consent URL bound to a fresh one-shot state.
func (a *App) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	authURL, err := a.consentURL()
	if err != nil {
		a.logger.Error("failed to create auth URL", "error", err)
		a.writeError(w, http.StatusInternalServerError, "failed to generate authentication URL")
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL})
}

func (a *App) consentURL() (string, error) {
	state := shared.GenerateState()
	if err := a.states.Create(state, stateTTL); err != nil {
		return "", err
	}
	return a.bridge.AuthCodeURL(state), nil
}

// handleCheckPlaylist reports whether a playlist with the given title
// already exists on the authenticated user's channel.
func (a *App) handleCheckPlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessToken   string `json:"accessToken"`
		PlaylistTitle string `json:"playlistTitle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AccessToken == "" || req.PlaylistTitle == "" {
		a.writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	catalog, err := a.newCatalog(r.Context(), req.AccessToken)
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	engine := tasks.NewEngine(catalog)
	existing, err := engine.FindConflict(r.Context(), req.PlaylistTitle)
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	resp := map[string]any{"exists": existing != nil}
	if existing != nil {
		resp["playlistId"] = existing.ID
		resp["itemCount"] = existing.ItemCount
	}
	a.writeJSON(w, http.StatusOK, resp)
}

// handleCreatePlaylist runs a reconciliation build for a stored upload or
// an inline track list.
//
// When the title collides with an existing playlist and the request
// carries no conflict policy, the build stops with 409 and the browser
// re-posts with onConflict set once the user has chosen.
func (a *App) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessToken   string         `json:"accessToken"`
		UploadToken   string         `json:"uploadToken"`
		Tracks        []models.Track `json:"tracks"`
		PlaylistTitle string         `json:"playlistTitle"`
		Privacy       string         `json:"privacy"`
		OnConflict    string         `json:"onConflict"`
		NewTitle      string         `json:"newTitle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AccessToken == "" {
		a.writeError(w, http.StatusBadRequest, "missing accessToken")
		return
	}

	tracks := req.Tracks
	if req.UploadToken != "" {
		upload, err := a.uploads.Get(req.UploadToken)
		if err != nil {
			a.writeError(w, statusFor(err), err.Error())
			return
		}
		tracks = upload.Tracks
	}

	title := req.PlaylistTitle
	if title == "" {
		title = a.cfg.Playlist.DefaultTitle
	}
	privacy := req.Privacy
	if privacy == "" {
		privacy = a.cfg.Playlist.Privacy
	}

	action, err := tasks.ParseAction(req.OnConflict)
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	catalog, err := a.newCatalog(r.Context(), req.AccessToken)
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	engine := tasks.NewEngine(catalog)
	result, err := engine.Reconcile(r.Context(), tasks.Request{
		Title:      title,
		Privacy:    privacy,
		Tracks:     tracks,
		OnConflict: action,
		NewTitle:   req.NewTitle,
	}, nil, nil)
	if err != nil {
		if errors.Is(err, shared.ErrPlaylistConflict) {
			a.writeJSON(w, http.StatusConflict, map[string]any{
				"error":    fmt.Sprintf("a playlist titled %q already exists", title),
				"conflict": true,
			})
			return
		}
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	if req.UploadToken != "" {
		if err := a.uploads.Delete(req.UploadToken); err != nil {
			a.logger.Warn("failed to delete consumed upload", "token", req.UploadToken, "error", err)
		}
	}

	failed := make([]map[string]string, 0)
	for _, tr := range result.TrackResults {
		if tr.Error != nil {
			failed = append(failed, map[string]string{
				"title":  tr.Track.Title,
				"artist": tr.Track.Artist,
				"error":  tr.Error.Error(),
			})
		}
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"success":       result.Success,
		"playlistId":    result.PlaylistID,
		"playlistTitle": result.PlaylistTitle,
		"playlistUrl":   fmt.Sprintf("https://www.youtube.com/playlist?list=%s", result.PlaylistID),
		"action":        result.Action.String(),
		"totalTracks":   result.TotalTracks,
		"addedTracks":   result.AddedTracks,
		"failedTracks":  result.FailedTracks,
		"failed":        failed,
	})
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

// writeError always responds with a JSON body, never raw text.
func (a *App) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps typed errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrPlaylistConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrInvalidState):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrNoTracks),
		errors.Is(err, shared.ErrPrecondition),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrExternalService),
		errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
