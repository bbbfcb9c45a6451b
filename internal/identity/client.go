package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthenticated means the token failed verification or is stale.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrDuplicate means the contact identifier is already registered upstream.
var ErrDuplicate = errors.New("identity already exists")

// Subject is a verified identity: a stable subject id plus the contact
// identifier the provider vouches for.
type Subject struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// TokenVerifier is the slice of the identity provider the auth middleware
// needs. *Client implements it; middleware tests supply fakes.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Subject, error)
}

// Client talks to the external identity provider over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeoutMs int) *Client {
	if timeoutMs <= 0 {
		timeoutMs = 8000
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}
}

var _ TokenVerifier = (*Client)(nil)

// Verify checks an opaque bearer token and returns the verified subject.
func (c *Client) Verify(ctx context.Context, token string) (Subject, error) {
	var out Subject
	err := c.post(ctx, "/v1/verifyToken", map[string]string{"token": token}, &out)
	if err != nil {
		return Subject{}, err
	}
	if out.UID == "" {
		return Subject{}, ErrUnauthenticated
	}
	return out, nil
}

// CreateUser registers a new identity and returns its subject id.
func (c *Client) CreateUser(ctx context.Context, email, password, name string) (Subject, error) {
	var out Subject
	err := c.post(ctx, "/v1/createUser", map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	}, &out)
	if err != nil {
		return Subject{}, err
	}
	return out, nil
}

// ResetLink asks the provider to issue a credential-reset link for the email.
func (c *Client) ResetLink(ctx context.Context, email string) (string, error) {
	var out struct {
		Link string `json:"link"`
	}
	if err := c.post(ctx, "/v1/resetLink", map[string]string{"email": email}, &out); err != nil {
		return "", err
	}
	return out.Link, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity %s: %w", path, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return ErrUnauthenticated
	case res.StatusCode == http.StatusConflict:
		return ErrDuplicate
	case res.StatusCode/100 != 2:
		return fmt.Errorf("identity %s: status=%d", path, res.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
