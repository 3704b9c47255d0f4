package loyalty

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"loyalty-relay/internal/config"
	"loyalty-relay/internal/models"
)

const (
	endpointMessage   = "message"
	endpointPointsAdd = "points/add"
)

// Client talks to the loyalty card provider's REST API.
// It holds only immutable configuration and is safe for concurrent use.
type Client struct {
	baseURL       string
	programID     string
	token         string
	httpClient    *http.Client
	lookupTimeout time.Duration
	actionTimeout time.Duration
}

// NewClient creates a provider client from the loyalty configuration
func NewClient(cfg config.LoyaltyConfig) *Client {
	return NewClientWithHTTP(cfg, &http.Client{})
}

// NewClientWithHTTP creates a provider client that uses httpClient for requests
func NewClientWithHTTP(cfg config.LoyaltyConfig, httpClient *http.Client) *Client {
	return &Client{
		baseURL:       cfg.BaseURL,
		programID:     cfg.ProgramID,
		token:         cfg.Token,
		httpClient:    httpClient,
		lookupTimeout: cfg.LookupTimeout,
		actionTimeout: cfg.ActionTimeout,
	}
}

type customerRecord struct {
	ID    models.FlexibleID `json:"id"`
	Email string            `json:"email"`
}

// Resolve finds the loyalty account whose email matches exactly.
// The provider's customer list is read as a single page.
func (c *Client) Resolve(ctx context.Context, email string) (*models.LoyaltyAccount, error) {
	if c.token == "" {
		return nil, ErrNotConfigured
	}
	if email == "" {
		return nil, ErrEmailRequired
	}

	ctx, cancel := withTimeout(ctx, c.lookupTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.programURL("customers"), nil)
	if err != nil {
		return nil, fmt.Errorf("build lookup request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "lookup", Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &StatusError{Op: "lookup", Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "lookup", Err: fmt.Errorf("read customers: %w", err)}
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &DecodeError{Op: "lookup", Err: err}
	}

	// One odd record must not hide the rest of the program's customers.
	for _, record := range records {
		var customer customerRecord
		if err := json.Unmarshal(record, &customer); err != nil {
			continue
		}
		if customer.Email == email {
			return &models.LoyaltyAccount{
				ID:    customer.ID.String(),
				Email: customer.Email,
			}, nil
		}
	}

	return nil, ErrNotFound
}

// SendMessage pushes a message to the customer's digital card
func (c *Client) SendMessage(ctx context.Context, accountID, text string) error {
	return c.post(ctx, accountID, endpointMessage, map[string]interface{}{"message": text})
}

// AdjustPoints adds delta points to the customer's card; a negative delta subtracts
func (c *Client) AdjustPoints(ctx context.Context, accountID string, delta int) error {
	return c.post(ctx, accountID, endpointPointsAdd, map[string]interface{}{"points": delta})
}

func (c *Client) post(ctx context.Context, accountID, endpoint string, body map[string]interface{}) error {
	if c.token == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", endpoint, err)
	}

	ctx, cancel := withTimeout(ctx, c.actionTimeout)
	defer cancel()

	target := c.programURL("customers/" + url.PathEscape(accountID) + "/" + endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if !isSuccess(resp.StatusCode) {
		return &StatusError{Op: endpoint, Code: resp.StatusCode}
	}
	return nil
}

// programURL builds {base}/api/v1/loyalty/programs/{programID}/{path}
func (c *Client) programURL(path string) string {
	return fmt.Sprintf("%s/api/v1/loyalty/programs/%s/%s", c.baseURL, url.PathEscape(c.programID), path)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
