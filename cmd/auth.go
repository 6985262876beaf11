package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/huh/spinner"
	"github.com/urfave/cli/v3"

	"shaztube/internal/auth"
	"shaztube/internal/server"
	"shaztube/internal/shared"
)

// Auth performs the OAuth2 authorization code flow for YouTube access.
//
// Starts a local HTTP server, opens the browser for user consent, and
// exchanges the returned code for tokens which are saved to the config.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config := r.resolveConfig(configPath)

	bridge, err := auth.NewBridge(config.Credentials.Google)
	if err != nil {
		return fmt.Errorf("%w: set client_id, client_secret and redirect_uri in %s", err, configPath)
	}

	credential, err := r.doOAuth(ctx, config, bridge, cmd.Duration("timeout"))
	if err != nil {
		return err
	}

	if err := r.saveTokens(credential.Token()); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", configPath)
	r.writePlain("You can now use: shaztube convert <file.csv>\n")

	return nil
}

// doOAuth executes the authorization flow with a one-shot local callback server.
func (r *Runner) doOAuth(ctx context.Context, config *shared.Config, bridge *auth.Bridge, timeout time.Duration) (*auth.Credential, error) {
	state := shared.GenerateState()
	authURL := bridge.AuthCodeURL(state)

	oauthHandler := server.NewOAuthHandler(bridge, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	httpServer := &http.Server{
		Addr:    config.Server.Addr(),
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Google authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	wait := func(ctx context.Context) error {
		select {
		case result = <-oauthHandler.Result():
			return nil
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-timer.C:
			return fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, timeout)
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
		}
	}

	err := spinner.New().
		Title("Waiting for authorization...").
		Context(ctx).
		ActionWithErr(wait).
		Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		r.logger.Warn("error shutting down server", "error", shutdownErr)
	}

	if err != nil {
		return nil, err
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Credential == nil {
		return nil, fmt.Errorf("no credential received")
	}

	return result.Credential, nil
}
