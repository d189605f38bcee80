// Package minikit wraps the external wallet/transaction verifier. It
// is the parsing boundary for the verifier's loosely shaped payloads:
// raw status field names vary and may be absent, so everything is
// normalized here before settlement code sees it.
package minikit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type Client struct {
	host       string
	appID      string
	apiKey     string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("verifier API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host, appID, apiKey string) *Client {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		host:       host,
		appID:      appID,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Transaction is the verifier's view of one on-chain transaction after
// field-name tolerance has been applied.
type Transaction struct {
	ID        string
	RawStatus string
	Hash      string
	Raw       []byte
}

type transactionPayload struct {
	TransactionID     string `json:"transactionId"`
	Status            string `json:"status"`
	TransactionStatus string `json:"transactionStatus"`
	TransactionHash   string `json:"transactionHash"`
	TransactionHash2  string `json:"transaction_hash"`
}

// GetTransaction fetches GET /minikit/transaction/{id}?app_id=... with
// bearer auth. transactionStatus takes precedence over status; both
// absent leaves RawStatus empty, which the ledger normalizes to
// pending.
func (c *Client) GetTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	id := strings.TrimSpace(transactionID)
	if id == "" {
		return nil, fmt.Errorf("transaction id is empty")
	}
	q := url.Values{}
	if c.appID != "" {
		q.Set("app_id", c.appID)
	}
	fullURL := c.host + "/api/v2/minikit/transaction/" + url.PathEscape(id)
	if len(q) > 0 {
		fullURL += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return parseTransaction(id, body)
}

func parseTransaction(id string, body []byte) (*Transaction, error) {
	var p transactionPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	status := strings.TrimSpace(p.TransactionStatus)
	if status == "" {
		status = strings.TrimSpace(p.Status)
	}
	hash := strings.TrimSpace(p.TransactionHash)
	if hash == "" {
		hash = strings.TrimSpace(p.TransactionHash2)
	}
	if strings.TrimSpace(p.TransactionID) != "" {
		id = strings.TrimSpace(p.TransactionID)
	}
	return &Transaction{
		ID:        id,
		RawStatus: status,
		Hash:      hash,
		Raw:       body,
	}, nil
}
