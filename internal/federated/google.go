// Package federated obtains ID tokens from third-party identity providers.
package federated

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"todo/internal/config"
)

const (
	// OAuth callback timeout
	callbackTimeout = 5 * time.Minute

	// Token exchange timeout
	tokenExchangeTimeout = 30 * time.Second

	// Starting port for OAuth callback server
	startPort = 8085

	// Max port attempts
	maxPortAttempts = 5
)

// Scopes requested from Google. openid makes the token endpoint return an
// id_token alongside the access token.
var Scopes = []string{"openid", "email", "profile"}

var (
	// ErrNoClient is returned when the OAuth client credentials file is missing.
	ErrNoClient = errors.New("google client credentials not found")

	// ErrNoIDToken is returned when the token response carries no id_token.
	ErrNoIDToken = errors.New("no id_token in token response")

	// ErrExpired is returned when the id_token has already expired.
	ErrExpired = errors.New("id_token expired")
)

// Google runs the installed-app authorization code flow against Google and
// returns the resulting ID token. It implements session.IdentityProvider.
type Google struct {
	oauth       *oauth2.Config
	logger      *slog.Logger
	prompt      io.Writer
	open        func(ctx context.Context, authURL string) error
	startPort   int
	attempts    int
	waitTimeout time.Duration
	now         func() time.Time
}

// Option configures a Google provider.
type Option func(*Google)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Google) { g.logger = logger }
}

// WithPrompt sets where the authorization URL is printed.
func WithPrompt(w io.Writer) Option {
	return func(g *Google) { g.prompt = w }
}

// WithOpener sets a function that opens the authorization URL, typically in
// a browser. It runs after the callback server is listening.
func WithOpener(open func(ctx context.Context, authURL string) error) Option {
	return func(g *Google) { g.open = open }
}

// WithPorts sets the first callback port and how many consecutive ports to
// try. Port 0 asks the system for any free port.
func WithPorts(start, attempts int) Option {
	return func(g *Google) {
		g.startPort = start
		g.attempts = attempts
	}
}

// WithCallbackTimeout bounds the wait for the browser redirect.
func WithCallbackTimeout(d time.Duration) Option {
	return func(g *Google) { g.waitTimeout = d }
}

// NewGoogle creates a provider from the contents of a Google OAuth client
// credentials file (the "installed" or "web" JSON downloaded from the
// Cloud console).
func NewGoogle(clientJSON []byte, opts ...Option) (*Google, error) {
	oauthConfig, err := google.ConfigFromJSON(clientJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("invalid google client credentials: %w", err)
	}
	g := &Google{
		oauth:       oauthConfig,
		logger:      slog.New(slog.DiscardHandler),
		prompt:      io.Discard,
		startPort:   startPort,
		attempts:    maxPortAttempts,
		waitTimeout: callbackTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NewGoogleFromConfig reads the client credentials file named by cfg.
func NewGoogleFromConfig(cfg *config.Config, opts ...Option) (*Google, error) {
	data, err := os.ReadFile(cfg.GoogleClientPath())
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNoClient, cfg.GoogleClientPath())
	}
	if err != nil {
		return nil, fmt.Errorf("read google client credentials: %w", err)
	}
	return NewGoogle(data, opts...)
}

// IDToken runs the flow and returns the raw ID token.
func (g *Google) IDToken(ctx context.Context) (string, error) {
	listener, port, err := g.listen()
	if err != nil {
		return "", err
	}
	defer listener.Close()

	oauthConfig := *g.oauth
	oauthConfig.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", port)

	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()
	authURL := oauthConfig.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			sendErr(errCh, errors.New("oauth state mismatch"))
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "Authorization denied", http.StatusBadRequest)
			sendErr(errCh, fmt.Errorf("authorization denied: %s", e))
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "No code in callback", http.StatusBadRequest)
			sendErr(errCh, errors.New("no code in callback"))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>Authentication successful</h1><p>You may close this window.</p></body></html>")
		select {
		case codeCh <- code:
		default:
		}
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			sendErr(errCh, err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	fmt.Fprintln(g.prompt, "Open this URL in your browser:")
	fmt.Fprintln(g.prompt, authURL)
	if g.open != nil {
		if err := g.open(ctx, authURL); err != nil {
			g.logger.Warn("could not open browser", "error", err)
		}
	}

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return "", err
	case <-time.After(g.waitTimeout):
		return "", errors.New("oauth callback timed out")
	case <-ctx.Done():
		return "", ctx.Err()
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, tokenExchangeTimeout)
	defer cancel()
	tok, err := oauthConfig.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("exchange code for token: %w", err)
	}

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", ErrNoIDToken
	}
	if err := g.check(raw); err != nil {
		return "", err
	}
	g.logger.Debug("google id token obtained")
	return raw, nil
}

// check decodes the ID token payload without verifying its signature; the
// backend verifies it. Tokens for another client or already expired are
// rejected before they are sent.
func (g *Google) check(raw string) error {
	payload, err := idtoken.ParsePayload(raw)
	if err != nil {
		return fmt.Errorf("parse id_token: %w", err)
	}
	if payload.Audience != g.oauth.ClientID {
		return fmt.Errorf("id_token audience %q does not match client", payload.Audience)
	}
	if payload.Expires <= g.now().Unix() {
		return ErrExpired
	}
	return nil
}

// listen binds the first available callback port.
func (g *Google) listen() (net.Listener, int, error) {
	for i := 0; i < g.attempts; i++ {
		port := g.startPort
		if port != 0 {
			port += i
		}
		listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
		if err == nil {
			return listener, listener.Addr().(*net.TCPAddr).Port, nil
		}
	}
	return nil, 0, errors.New("could not bind to local port for OAuth callback")
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
