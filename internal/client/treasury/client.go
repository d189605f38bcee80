// Package treasury wraps the payout gateway, the only collaborator
// allowed to move real funds. The gateway is not idempotent, so callers
// must hold the claim-controller lock before invoking it.
package treasury

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("treasury API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host, apiKey string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		host:       strings.TrimRight(strings.TrimSpace(host), "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type PayoutRequest struct {
	To        string          `json:"to"`
	AmountWei decimal.Decimal `json:"amount_wei"`
	Reference string          `json:"reference"`
	Memo      string          `json:"memo,omitempty"`
}

type payoutResponse struct {
	TransactionHash string `json:"transaction_hash"`
	TxHash          string `json:"txHash"`
}

// SendPayout submits a payout/refund instruction and returns the chain
// transaction hash.
func (c *Client) SendPayout(ctx context.Context, req PayoutRequest) (string, error) {
	if strings.TrimSpace(req.To) == "" {
		return "", fmt.Errorf("destination wallet is empty")
	}
	if !req.AmountWei.IsPositive() {
		return "", fmt.Errorf("payout amount must be positive")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/v1/payouts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(hreq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	var pr payoutResponse
	if err := json.Unmarshal(b, &pr); err != nil {
		return "", fmt.Errorf("failed to decode payout response: %w", err)
	}
	hash := strings.TrimSpace(pr.TransactionHash)
	if hash == "" {
		hash = strings.TrimSpace(pr.TxHash)
	}
	if hash == "" {
		return "", fmt.Errorf("treasury returned no transaction hash")
	}
	return hash, nil
}
