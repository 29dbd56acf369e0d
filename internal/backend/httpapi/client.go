// Package httpapi implements the service.Service interface over the todo
// REST API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"todo/internal/config"
	"todo/internal/service"
)

const (
	// RequestIDHeader carries a per-request UUID for server-side tracing.
	RequestIDHeader = "X-Request-ID"

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// ErrMalformedResponse is returned when a 2xx body cannot be decoded or
// lacks required fields.
var ErrMalformedResponse = errors.New("malformed response")

// Client implements service.Service against the todo REST API.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url: %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		base:    u,
		http:    http.DefaultClient,
		timeout: config.DefaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig creates a client from the API URL and timeout in cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	return New(cfg.APIURL, WithTimeout(cfg.Timeout), WithLogger(logger))
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges email and password for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (service.AuthToken, error) {
	var tok service.AuthToken
	err := c.do(ctx, http.MethodPost, "login", "", nil, credentials{email, password}, &tok)
	return tok, err
}

// LoginGoogle exchanges a Google ID token for a bearer token.
func (c *Client) LoginGoogle(ctx context.Context, idToken string) (service.AuthToken, error) {
	var tok service.AuthToken
	body := struct {
		Token string `json:"token"`
	}{idToken}
	err := c.do(ctx, http.MethodPost, "login/google", "", nil, body, &tok)
	return tok, err
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, email, password string) (service.User, error) {
	var resp struct {
		Info *service.User `json:"info"`
	}
	if err := c.do(ctx, http.MethodPost, "register", "", nil, credentials{email, password}, &resp); err != nil {
		return service.User{}, err
	}
	if resp.Info == nil {
		return service.User{}, fmt.Errorf("%w: missing info", ErrMalformedResponse)
	}
	return checkUser(*resp.Info)
}

// Me returns the profile of the user owning token.
func (c *Client) Me(ctx context.Context, token string) (service.User, error) {
	var u service.User
	if err := c.do(ctx, http.MethodGet, "users/me", token, nil, nil, &u); err != nil {
		return service.User{}, err
	}
	return checkUser(u)
}

// UpdateProfile changes the given profile fields.
func (c *Client) UpdateProfile(ctx context.Context, token string, update service.ProfileUpdate) (service.User, error) {
	var u service.User
	if err := c.do(ctx, http.MethodPut, "users/profile", token, nil, update, &u); err != nil {
		return service.User{}, err
	}
	return checkUser(u)
}

// checkUser rejects profiles without an id or email, which is what a
// null or empty 2xx body decodes to.
func checkUser(u service.User) (service.User, error) {
	if u.ID == 0 || u.Email == "" {
		return service.User{}, fmt.Errorf("%w: profile has no id or email", ErrMalformedResponse)
	}
	return u, nil
}

// ListTasks returns a page of tasks in server order.
func (c *Client) ListTasks(ctx context.Context, token string, skip, limit int) ([]service.Task, error) {
	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))

	var tasks []service.Task
	if err := c.do(ctx, http.MethodGet, "todos/", token, query, nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []service.Task{}
	}
	return tasks, nil
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, token string, task service.NewTask) (service.Task, error) {
	var t service.Task
	if err := c.do(ctx, http.MethodPost, "todos/", token, nil, task, &t); err != nil {
		return service.Task{}, err
	}
	return checkTask(t)
}

// UpdateTask changes the given fields of a task.
func (c *Client) UpdateTask(ctx context.Context, token string, id int, update service.TaskUpdate) (service.Task, error) {
	var t service.Task
	if err := c.do(ctx, http.MethodPut, "todos/"+strconv.Itoa(id), token, nil, update, &t); err != nil {
		return service.Task{}, err
	}
	return checkTask(t)
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, token string, id int) (service.Task, error) {
	var t service.Task
	err := c.do(ctx, http.MethodDelete, "todos/"+strconv.Itoa(id), token, nil, nil, &t)
	return t, err
}

// checkTask rejects tasks without a server-assigned id or a title.
func checkTask(t service.Task) (service.Task, error) {
	if t.ID == 0 || t.Title == "" {
		return service.Task{}, fmt.Errorf("%w: task has no id or title", ErrMalformedResponse)
	}
	return t, nil
}

// do performs one JSON request. A non-empty token is sent as a bearer
// credential; out, if non-nil, receives the decoded 2xx body.
func (c *Client) do(ctx context.Context, method, path, token string, query url.Values, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.base.ResolveReference(&url.URL{Path: path})
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed",
			"method", method, "path", u.Path, "request_id", requestID, "error", err)
		return wrapError(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"method", method,
		"path", u.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return service.ErrTimeout
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// decodeError turns a non-2xx response into a *service.APIError, reading
// the FastAPI-style {"detail": ...} body when there is one.
func decodeError(resp *http.Response) error {
	apiErr := &service.APIError{StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(data, &body) == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			apiErr.Detail = s
		} else {
			// Validation errors arrive as a list of objects.
			apiErr.Detail = string(body.Detail)
		}
	}
	return apiErr
}

// wrapError maps transport failures to service sentinels.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return service.ErrTimeout
	}
	return err
}
