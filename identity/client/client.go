package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-tenant-session/internal/errors"
	"github.com/jrsteele09/go-tenant-session/sessionapi"
	"github.com/pkg/errors"
)

// API paths served by the identity backend
const (
	PathCreateSession = "/api/v1/sessions"
	PathRefresh       = "/api/v1/sessions/refresh"
	PathRevoke        = "/api/v1/sessions/revoke"
)

const maxErrorBody = 64 << 10

// Client talks to the identity backend over HTTP. It satisfies the session store's
// Backend and Revoker interfaces.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// CreateSession asks the backend to mint a new session for the user on the tenant.
func (c *Client) CreateSession(ctx context.Context, req sessionapi.CreateSessionRequest) (*sessionapi.SessionRecord, error) {
	var rec sessionapi.SessionRecord
	if err := c.do(ctx, PathCreateSession, req, &rec); err != nil {
		return nil, errors.Wrap(err, "[CreateSession]")
	}
	return &rec, nil
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, req sessionapi.RefreshRequest) (*sessionapi.SessionRecord, error) {
	var rec sessionapi.SessionRecord
	if err := c.do(ctx, PathRefresh, req, &rec); err != nil {
		return nil, errors.Wrap(err, "[RefreshToken]")
	}
	return &rec, nil
}

// Revoke invalidates a refresh token server-side.
func (c *Client) Revoke(ctx context.Context, refreshToken string) error {
	if err := c.do(ctx, PathRevoke, sessionapi.RevokeRequest{RefreshToken: refreshToken}, nil); err != nil {
		return errors.Wrap(err, "[Revoke]")
	}
	return nil
}

// do POSTs body as JSON and decodes a 2xx response into out. Transport failures and
// undecodable responses are reported as ErrBackend.
func (c *Client) do(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrBackend, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrBackend, "POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp sessionapi.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&errResp)
		return apperrors.Wrapf(sessionapi.ErrorFor(resp.StatusCode, errResp.Error), "POST %s: %d %s", path, resp.StatusCode, errResp.ErrorDescription)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrapf(apperrors.ErrBackend, "decode %s response: %v", path, err)
	}
	return nil
}
