package flutterwave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// Charge statuses reported by the verification endpoint
const (
	ChargeSuccessful = "successful"
	ChargeFailed     = "failed"
	ChargeCancelled  = "cancelled"
	ChargePending    = "pending"
)

// Config holds Flutterwave API configuration
type Config struct {
	SecretKey   string // Bearer key from the Flutterwave dashboard
	BaseURL     string // https://api.flutterwave.com unless sandboxed
	RedirectURL string // where the hosted payment page sends the customer
}

// Client is the Flutterwave API client
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new Flutterwave client
func NewClient(cfg Config) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Customer identifies the paying user on the hosted payment page
type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phonenumber,omitempty"`
}

// ChargeRequest is the body for POST /v3/payments
type ChargeRequest struct {
	TxRef          string         `json:"tx_ref"`
	Amount         string         `json:"amount"`
	Currency       string         `json:"currency"`
	RedirectURL    string         `json:"redirect_url"`
	Customer       Customer       `json:"customer"`
	Customizations Customizations `json:"customizations,omitempty"`
}

// Customizations controls the hosted page branding
type Customizations struct {
	Title string `json:"title,omitempty"`
	Logo  string `json:"logo,omitempty"`
}

type chargeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// Verification is the settled view of a charge as reported by the gateway
type Verification struct {
	TxRef    string
	Status   string // successful, failed, pending
	Amount   float64
	Currency string
}

type verifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		TxRef    string  `json:"tx_ref"`
		Status   string  `json:"status"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"data"`
}

// InitiateCharge creates a hosted payment session and returns the redirect
// link the customer completes payment on.
func (c *Client) InitiateCharge(ctx context.Context, req ChargeRequest) (string, error) {
	if req.RedirectURL == "" {
		req.RedirectURL = c.config.RedirectURL
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/v3/payments", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	log.Printf("[Flutterwave] Initiating charge tx_ref=%s amount=%s %s", req.TxRef, req.Amount, req.Currency)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("flutterwave API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var apiResp chargeResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if apiResp.Status != "success" {
		return "", fmt.Errorf("flutterwave API error: %s", apiResp.Message)
	}

	return apiResp.Data.Link, nil
}

// VerifyByReference asks the gateway for the settled state of a charge.
func (c *Client) VerifyByReference(ctx context.Context, txRef string) (*Verification, error) {
	endpoint := c.config.BaseURL + "/v3/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(txRef)

	httpReq, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("flutterwave API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var apiResp verifyResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if apiResp.Status != "success" {
		return nil, fmt.Errorf("flutterwave API error: %s", apiResp.Message)
	}

	return &Verification{
		TxRef:    apiResp.Data.TxRef,
		Status:   apiResp.Data.Status,
		Amount:   apiResp.Data.Amount,
		Currency: apiResp.Data.Currency,
	}, nil
}
