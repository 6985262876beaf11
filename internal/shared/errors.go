package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthExchange     = fmt.Errorf("authorization code exchange failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token rejected or expired")
	ErrInvalidState     = fmt.Errorf("invalid state parameter")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrCancelled        = fmt.Errorf("operation cancelled")

	// Parsing errors
	ErrNoTracks = fmt.Errorf("no valid tracks found")

	// Reconciliation errors
	ErrPrecondition     = fmt.Errorf("precondition failed")
	ErrPlaylistConflict = fmt.Errorf("playlist with this title already exists")

	// API and service errors
	ErrExternalService    = fmt.Errorf("catalog service request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrUploadNotFound     = fmt.Errorf("upload not found or expired")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
