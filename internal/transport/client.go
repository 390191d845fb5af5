// Package transport sends authenticated JSON requests to the Remote Store.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"productive-cloud/internal/domain"
)

const (
	DefaultTimeout = 10 * time.Second
	deviceHeader   = "X-Device-ID"
)

// CredentialSource yields the bearer token, or "" when logged out.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

type Config struct {
	BaseURL  string
	DeviceID string
	Timeout  time.Duration
}

type Client struct {
	baseURL  string
	deviceID string
	timeout  time.Duration
	creds    CredentialSource
	http     *http.Client
}

func NewClient(cfg Config, creds CredentialSource) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		deviceID: cfg.DeviceID,
		timeout:  timeout,
		creds:    creds,
		http:     &http.Client{},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) DeviceID() string {
	return c.deviceID
}

// Do sends an authenticated request to endpoint (relative to the base URL)
// and decodes a 2xx body into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any) error {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("read credential: %w", err)
	}
	if token == "" {
		return ErrUnauthenticated
	}
	return c.send(ctx, method, endpoint, token, body, out)
}

// Post is Do with the default method.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.Do(ctx, http.MethodPost, endpoint, body, out)
}

func (c *Client) send(ctx context.Context, method, endpoint, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.deviceID != "" {
		req.Header.Set(deviceHeader, c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classify(ctx, "send", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(ctx, "read", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func classify(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return &NetworkError{Op: op, Err: err}
}

func apiError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return &APIError{Status: status, Message: payload.Error}
	}
	return &APIError{Status: status, Message: fmt.Sprintf("HTTP %d", status)}
}

func (c *Client) Sync(ctx context.Context, dataType domain.DataType, data json.RawMessage, lastSync *time.Time) (*domain.SyncResponse, error) {
	req := domain.SyncRequest{DataType: dataType, Data: data, LastSync: lastSync}
	var resp domain.SyncResponse
	if err := c.Post(ctx, "/data/sync", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) FetchAll(ctx context.Context) (*domain.AllDataResponse, error) {
	var resp domain.AllDataResponse
	if err := c.Do(ctx, http.MethodGet, "/data", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Save(ctx context.Context, dataType domain.DataType, data json.RawMessage) (*domain.SaveResponse, error) {
	req := domain.SaveRequest{DataType: dataType, Data: data}
	var resp domain.SaveResponse
	if err := c.Post(ctx, "/data/save", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get fetches one dataset; ok is false when the server holds none.
func (c *Client) Get(ctx context.Context, dataType domain.DataType) (*domain.DatasetEntry, bool, error) {
	var resp domain.DatasetEntry
	if err := c.Do(ctx, http.MethodGet, "/data/"+string(dataType), nil, &resp); err != nil {
		return nil, false, err
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, false, nil
	}
	return &resp, true, nil
}

func (c *Client) Delete(ctx context.Context, dataType domain.DataType) error {
	return c.Do(ctx, http.MethodDelete, "/data/"+string(dataType), nil, nil)
}

func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var resp struct {
		User *domain.User `json:"user"`
	}
	if err := c.Do(ctx, http.MethodGet, "/auth/profile", nil, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*domain.AuthResponse, error) {
	req := domain.LoginRequest{Email: email, Password: password}
	var resp domain.AuthResponse
	if err := c.send(ctx, http.MethodPost, "/auth/login", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Register(ctx context.Context, username, email, password string) (*domain.AuthResponse, error) {
	req := domain.RegisterRequest{Username: username, Email: email, Password: password}
	var resp domain.AuthResponse
	if err := c.send(ctx, http.MethodPost, "/auth/register", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping probes GET /health without a credential.
func (c *Client) Ping(ctx context.Context) error {
	return c.send(ctx, http.MethodGet, "/health", "", nil, nil)
}
