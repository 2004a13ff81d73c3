package service

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/agrovest/backend/internal/config"
	"github.com/agrovest/backend/internal/domain"
	"github.com/agrovest/backend/internal/infrastructure/flutterwave"
)

// ChargeInput is what the lifecycle needs to start a gateway payment
type ChargeInput struct {
	TxRef    string
	Amount   float64
	Currency string
	Customer domain.User
	Title    string
}

// GatewayCharge is the gateway's settled view of a transaction
type GatewayCharge struct {
	TxRef  string
	Status string // successful, failed, cancelled, pending
	Amount float64
}

// PaymentGateway defines the interface for the payment gateway integration
type PaymentGateway interface {
	// InitiateCharge opens a hosted payment session and returns the
	// redirect link for the customer.
	InitiateCharge(ctx context.Context, charge ChargeInput) (string, error)
	// VerifyByReference reports the current state of a charge by tx_ref.
	VerifyByReference(ctx context.Context, txRef string) (*GatewayCharge, error)
}

// MockGateway is a mock implementation of PaymentGateway for development
type MockGateway struct{}

// FlutterwaveAdapter adapts the flutterwave.Client to PaymentGateway
type FlutterwaveAdapter struct {
	client *flutterwave.Client
}

// NewPaymentGateway returns the appropriate PaymentGateway based on config.
// If no secret key is configured, returns a mock gateway for development.
func NewPaymentGateway(cfg config.FlutterwaveConfig) PaymentGateway {
	if cfg.SecretKey == "" {
		log.Println("[Payment] Using mock gateway client (no credentials configured)")
		return &MockGateway{}
	}

	log.Printf("[Payment] Using Flutterwave client (base: %s)", cfg.BaseURL)
	client := flutterwave.NewClient(flutterwave.Config{
		SecretKey:   cfg.SecretKey,
		BaseURL:     cfg.BaseURL,
		RedirectURL: cfg.RedirectURL,
	})

	return &FlutterwaveAdapter{client: client}
}

// InitiateCharge returns a fake redirect link keyed by tx_ref
func (m *MockGateway) InitiateCharge(ctx context.Context, charge ChargeInput) (string, error) {
	return fmt.Sprintf("https://mock-gateway.local/pay/%s", charge.TxRef), nil
}

// VerifyByReference always reports the charge as settled; development only
func (m *MockGateway) VerifyByReference(ctx context.Context, txRef string) (*GatewayCharge, error) {
	return &GatewayCharge{
		TxRef:  txRef,
		Status: flutterwave.ChargeSuccessful,
	}, nil
}

// InitiateCharge opens a real hosted payment session via the Flutterwave API
func (a *FlutterwaveAdapter) InitiateCharge(ctx context.Context, charge ChargeInput) (string, error) {
	link, err := a.client.InitiateCharge(ctx, flutterwave.ChargeRequest{
		TxRef:    charge.TxRef,
		Amount:   strconv.FormatFloat(charge.Amount, 'f', 2, 64),
		Currency: charge.Currency,
		Customer: flutterwave.Customer{
			Email: charge.Customer.Email,
			Name:  charge.Customer.Name,
			Phone: charge.Customer.Phone,
		},
		Customizations: flutterwave.Customizations{
			Title: charge.Title,
		},
	})
	if err != nil {
		log.Printf("[Payment] Flutterwave charge error: %v", err)
		return "", &domain.GatewayError{Op: "initiate", Err: err}
	}
	return link, nil
}

// VerifyByReference queries the real verification endpoint
func (a *FlutterwaveAdapter) VerifyByReference(ctx context.Context, txRef string) (*GatewayCharge, error) {
	v, err := a.client.VerifyByReference(ctx, txRef)
	if err != nil {
		log.Printf("[Payment] Flutterwave verify error: %v", err)
		return nil, &domain.GatewayError{Op: "verify", Err: err}
	}
	return &GatewayCharge{
		TxRef:  v.TxRef,
		Status: v.Status,
		Amount: v.Amount,
	}, nil
}
