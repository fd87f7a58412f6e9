package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"restoration-portal/registry-backend/internal/registry"
)

// Client calls the external carbon ledger's two mint primitives over HTTP.
// The ledger offers no idempotency key; the issuance coordinator is the
// only safeguard against double-minting, so this client never retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config contains external ledger connection settings
type Config struct {
	BaseURL string        `json:"base_url"`
	APIKey  string        `json:"api_key"`
	Timeout time.Duration `json:"timeout"`
}

// NewClient creates an external ledger client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type mintFungibleRequest struct {
	Account string  `json:"account"`
	Amount  float64 `json:"amount"`
}

type mintFungibleResponse struct {
	TxRef string `json:"tx_ref"`
	Error string `json:"error,omitempty"`
}

// MintFungible mints divisible carbon credit units to an account
func (c *Client) MintFungible(ctx context.Context, account string, amount float64) (string, error) {
	var resp mintFungibleResponse
	err := c.post(ctx, "/v1/mint/fungible", mintFungibleRequest{Account: account, Amount: amount}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ledger rejected fungible mint: %s", resp.Error)
	}
	c.logger.Info("fungible credits minted",
		zap.String("account", account),
		zap.Float64("amount", amount),
		zap.String("tx_ref", resp.TxRef),
	)
	return resp.TxRef, nil
}

type mintCertificateRequest struct {
	Account  string                       `json:"account"`
	Metadata registry.CertificateMetadata `json:"metadata"`
}

type mintCertificateResponse struct {
	TxRef string `json:"tx_ref"`
	Error string `json:"error,omitempty"`
}

// MintCertificate mints the unique certificate token bound to one project
func (c *Client) MintCertificate(ctx context.Context, account string, metadata registry.CertificateMetadata) (string, error) {
	var resp mintCertificateResponse
	err := c.post(ctx, "/v1/mint/certificate", mintCertificateRequest{Account: account, Metadata: metadata}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ledger rejected certificate mint: %s", resp.Error)
	}
	c.logger.Info("certificate minted",
		zap.String("account", account),
		zap.String("project_id", metadata.ProjectID),
		zap.String("tx_ref", resp.TxRef),
	)
	return resp.TxRef, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode mint request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build mint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ledger response: %w", err)
	}
	return nil
}
