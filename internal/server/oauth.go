package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"

	"shaztube/internal/auth"
	"shaztube/internal/repositories"
)

// popupTemplate renders the OAuth popup callback page. The page hands the
// outcome back to the opener tab via postMessage and closes itself; when
// opened without an opener it falls back to a redirect.
var popupTemplate = template.Must(template.New("popup").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{if .Err}}Authentication Failed{{else}}Authentication Successful{{end}}</title>
</head>
<body>
    <div style="text-align: center; margin-top: 50px;">
        {{if .Err}}
        <h2>Authentication Failed</h2>
        <p>{{.Err}}</p>
        {{else}}
        <h2>Authentication Successful</h2>
        <p>You can close this window and return to the application.</p>
        {{end}}
    </div>
    <script>
        var payload = {{.Message}};
        if (window.opener) {
            window.opener.postMessage(payload, {{.Origin}});
            setTimeout(function() { window.close(); }, 2000);
        } else {
            window.location.href = {{.Fallback}};
        }
    </script>
</body>
</html>
`))

type popupMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"accessToken,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PopupCallbackHandler serves the browser flow's OAuth redirect target.
//
// It validates the one-shot CSRF state, exchanges the authorization code,
// and renders a page that posts the access token to the opener tab. The
// postMessage target origin is pinned to the configured app origin, so a
// hijacked redirect cannot leak the token to another site.
type PopupCallbackHandler struct {
	bridge *auth.Bridge
	states *repositories.StateRepository
	origin string
	logger *log.Logger
}

// NewPopupCallbackHandler creates the popup callback handler.
func NewPopupCallbackHandler(bridge *auth.Bridge, states *repositories.StateRepository, origin string, logger *log.Logger) *PopupCallbackHandler {
	return &PopupCallbackHandler{
		bridge: bridge,
		states: states,
		origin: origin,
		logger: logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *PopupCallbackHandler) Routes() []string {
	return []string{"/api/auth/callback"}
}

// ServeHTTP handles the OAuth redirect from the consent page.
func (h *PopupCallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		h.render(w, popupMessage{Type: "auth-error", Error: fmt.Sprintf("authentication failed: %s", errParam)})
		return
	}

	state := query.Get("state")
	if err := h.states.Consume(state); err != nil {
		h.logger.Warn("rejected oauth callback", "error", err)
		h.render(w, popupMessage{Type: "auth-error", Error: "invalid or expired state token"})
		return
	}

	code := query.Get("code")
	if code == "" {
		h.render(w, popupMessage{Type: "auth-error", Error: "no authorization code provided"})
		return
	}

	cred, err := h.bridge.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		h.render(w, popupMessage{Type: "auth-error", Error: "token exchange failed"})
		return
	}

	h.render(w, popupMessage{Type: "auth-success", AccessToken: cred.AccessToken})
}

func (h *PopupCallbackHandler) render(w http.ResponseWriter, msg popupMessage) {
	fallback := h.origin + "?error=auth_failed"
	if msg.Type == "auth-success" {
		fallback = h.origin + "?success=true"
	}

	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "no-store")

	data := struct {
		Message  popupMessage
		Origin   string
		Fallback string
		Err      string
	}{
		Message:  msg,
		Origin:   h.origin,
		Fallback: fallback,
		Err:      msg.Error,
	}

	if err := popupTemplate.Execute(w, data); err != nil {
		h.logger.Error("failed to render popup", "error", err)
	}
}

// OAuthResult contains the result of a CLI OAuth authorization flow.
type OAuthResult struct {
	Credential *auth.Credential
	err        error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles OAuth2 callback requests for the CLI's one-shot
// authorization code flow. Implements the Handler interface for
// registration with a Router.
type OAuthHandler struct {
	bridge      *auth.Bridge
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a new OAuth handler with the given bridge and state token.
// The state token should be cryptographically random for CSRF protection.
func NewOAuthHandler(bridge *auth.Bridge, state string) *OAuthHandler {
	return &OAuthHandler{
		bridge:     bridge,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/api/auth/callback"}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates the state parameter, exchanges the authorization code for a
// credential, and sends the result through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only handle callback once
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	state := r.URL.Query().Get("state")
	if state != h.state {
		err := fmt.Errorf("invalid state parameter")
		h.Send(OAuthResult{err: err})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		err := fmt.Errorf("authorization failed: %s - %s", errParam, errDesc)
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	cred, err := h.bridge.Exchange(context.Background(), code)
	if err != nil {
		h.Send(OAuthResult{err: err})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.Send(OAuthResult{Credential: cred})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #FF0000; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
