package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/numgate/numgate/internal/metrics"
)

// The numbering provider speaks a GET-based text protocol. A successful
// getNumber answers a colon-delimited status line:
//
//	ACCESS_NUMBER:<txnId>:<phone>
//
// Anything else is a refusal and the raw message is surfaced to the caller.
const accessNumberToken = "ACCESS_NUMBER"

var (
	// ErrTimeout covers transport timeouts; retryable, never a ledger mutation.
	ErrTimeout = errors.New("provider timeout")
	// ErrUnavailable means the breaker is open or the transport failed.
	ErrUnavailable = errors.New("provider unavailable")
)

// RejectError is a well-formed provider refusal (no number available, bad
// service, etc). The raw message travels up so the buyer sees what the
// provider said.
type RejectError struct {
	Message string
}

func (e *RejectError) Error() string { return "provider rejected: " + e.Message }

// MalformedError is a 2xx response that does not parse.
type MalformedError struct {
	Body string
}

func (e *MalformedError) Error() string { return "malformed provider response: " + e.Body }

// NumberProvider is what the rental state machine needs from the numbering
// provider. *Client is the HTTP implementation; tests supply fakes.
type NumberProvider interface {
	GetNumber(ctx context.Context, country, service string) (txnID, phone string, err error)
	GetStatus(ctx context.Context, txnID string) (string, error)
	Cancel(ctx context.Context, txnID string) error
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	br      *MicroBreaker
}

func NewClient(baseURL, apiKey string, timeoutMs, failThreshold, openForMs int) *Client {
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}

	if failThreshold <= 0 {
		failThreshold = 3
	}

	if openForMs <= 0 {
		openForMs = 15000
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:      NewMicroBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

var _ NumberProvider = (*Client)(nil)

// GetNumber requests a number for the given country/service and parses the
// ACCESS_NUMBER status line.
func (c *Client) GetNumber(ctx context.Context, country, service string) (string, string, error) {
	body, err := c.call(ctx, "getNumber", url.Values{
		"country": {country},
		"service": {service},
	})
	if err != nil {
		return "", "", err
	}

	line := strings.TrimSpace(body)
	if !strings.HasPrefix(line, accessNumberToken+":") {
		metrics.ProviderRequestsTotal.WithLabelValues("getNumber", "reject").Inc()
		return "", "", &RejectError{Message: line}
	}

	// exactly ACCESS_NUMBER:<txn>:<phone>
	parts := strings.Split(line, ":")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		metrics.ProviderRequestsTotal.WithLabelValues("getNumber", "error").Inc()
		return "", "", &MalformedError{Body: line}
	}

	metrics.ProviderRequestsTotal.WithLabelValues("getNumber", "ok").Inc()
	return parts[1], parts[2], nil
}

// GetStatus fetches the free-text status for a transaction; it may embed an
// OTP code.
func (c *Client) GetStatus(ctx context.Context, txnID string) (string, error) {
	body, err := c.call(ctx, "getStatus", url.Values{"id": {txnID}})
	if err != nil {
		return "", err
	}
	metrics.ProviderRequestsTotal.WithLabelValues("getStatus", "ok").Inc()
	return strings.TrimSpace(body), nil
}

// Cancel tells the provider to release the transaction.
func (c *Client) Cancel(ctx context.Context, txnID string) error {
	_, err := c.call(ctx, "setStatus", url.Values{"id": {txnID}, "status": {"-1"}})
	if err != nil {
		return err
	}
	metrics.ProviderRequestsTotal.WithLabelValues("setStatus", "ok").Inc()
	return nil
}

func (c *Client) call(ctx context.Context, action string, params url.Values) (string, error) {
	if !c.br.TryAcquire() {
		metrics.ProviderRequestsTotal.WithLabelValues(action, "error").Inc()
		return "", ErrUnavailable
	}

	params.Set("action", action)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		c.br.OnFailure()
		return "", err
	}

	res, err := c.client.Do(req)
	if err != nil {
		c.br.OnFailure()
		if isTimeout(err) {
			metrics.ProviderRequestsTotal.WithLabelValues(action, "timeout").Inc()
			return "", fmt.Errorf("%s: %w", action, ErrTimeout)
		}
		metrics.ProviderRequestsTotal.WithLabelValues(action, "error").Inc()
		return "", fmt.Errorf("%s: %w", action, ErrUnavailable)
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		c.br.OnFailure()
		metrics.ProviderRequestsTotal.WithLabelValues(action, "error").Inc()
		return "", fmt.Errorf("%s status=%d: %w", action, res.StatusCode, ErrUnavailable)
	}

	b, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		c.br.OnFailure()
		return "", fmt.Errorf("%s read: %w", action, ErrUnavailable)
	}

	c.br.OnSuccess()
	return string(b), nil
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}
