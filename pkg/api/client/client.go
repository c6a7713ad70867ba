package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the Sequence API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Error)
}

// LoginInput carries credentials for session issue. IDToken is the verified
// path; ExternalID/Email/Name are accepted only by servers running without
// an identity provider.
type LoginInput struct {
	IDToken    string `json:"id_token,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	TeamName   string `json:"team_name,omitempty"`
}

// Session is the token payload emitted by the API.
type Session struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	UserID    string `json:"user_id"`
	TeamID    string `json:"team_id"`
}

// Login provisions the tenant for the identity and returns a session token.
func (c *Client) Login(ctx context.Context, input LoginInput) (Session, error) {
	var session Session
	if err := c.do(ctx, http.MethodPost, "/auth/login", input, "", &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// User reflects API user payloads.
type User struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	TeamID     string `json:"team_id"`
	Role       string `json:"role"`
}

// Me returns the profile bound to the session token.
func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/me", nil, token, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// Decision is the access gate's answer for the session's team.
type Decision struct {
	State         string `json:"state"`
	Redirect      string `json:"redirect"`
	BillingIssue  bool   `json:"billing_issue"`
	SeatsExceeded bool   `json:"seats_exceeded"`
}

// Gate reports the current access decision without enforcing it.
func (c *Client) Gate(ctx context.Context, token string) (Decision, error) {
	var decision Decision
	if err := c.do(ctx, http.MethodGet, "/gate", nil, token, &decision); err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// Team represents a tenant workspace.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
}

// TeamOverview is a team with its members.
type TeamOverview struct {
	Team    Team   `json:"team"`
	Members []User `json:"members"`
}

// Team fetches the session's team and member list.
func (c *Client) Team(ctx context.Context, token string) (TeamOverview, error) {
	var overview TeamOverview
	if err := c.do(ctx, http.MethodGet, "/team", nil, token, &overview); err != nil {
		return TeamOverview{}, err
	}
	return overview, nil
}

// RenameTeam updates the team's display name. Admin only.
func (c *Client) RenameTeam(ctx context.Context, token, name string) error {
	body := map[string]string{"name": name}
	return c.do(ctx, http.MethodPatch, "/team", body, token, nil)
}

// BillingSnapshot mirrors the API's billing projection payload.
type BillingSnapshot struct {
	TeamID            string    `json:"team_id"`
	Status            string    `json:"status"`
	SeatCount         int       `json:"seat_count"`
	ActiveMemberCount int       `json:"active_member_count"`
	SyncedAt          time.Time `json:"synced_at"`
	Stale             bool      `json:"stale"`
	HasBillingIssue   bool      `json:"has_billing_issue"`
	ExceedsSeats      bool      `json:"exceeds_seats"`
}

// BillingSnapshot returns the cached billing projection for the team.
func (c *Client) BillingSnapshot(ctx context.Context, token string) (BillingSnapshot, error) {
	var snap BillingSnapshot
	if err := c.do(ctx, http.MethodGet, "/billing/snapshot", nil, token, &snap); err != nil {
		return BillingSnapshot{}, err
	}
	return snap, nil
}

// RefreshBilling forces a re-fetch from the billing authority.
func (c *Client) RefreshBilling(ctx context.Context, token string) (BillingSnapshot, error) {
	var snap BillingSnapshot
	if err := c.do(ctx, http.MethodPost, "/billing/refresh", nil, token, &snap); err != nil {
		return BillingSnapshot{}, err
	}
	return snap, nil
}
