package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/agrovest/backend/internal/domain"
	"github.com/agrovest/backend/internal/service"
)

// WebhookHandler handles payment gateway webhooks
type WebhookHandler struct {
	reconcile  *service.ReconciliationService
	secretHash string
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(reconcile *service.ReconciliationService, secretHash string) *WebhookHandler {
	return &WebhookHandler{
		reconcile:  reconcile,
		secretHash: secretHash,
	}
}

// FlutterwaveWebhookRequest represents the webhook payload from Flutterwave
type FlutterwaveWebhookRequest struct {
	Event string `json:"event"`
	Data  struct {
		TxRef  string  `json:"tx_ref"`
		Status string  `json:"status"` // successful, failed, cancelled, pending
		Amount float64 `json:"amount"`
	} `json:"data"`
}

// FlutterwaveWebhook handles POST /v1/payments/webhook
// This is a public endpoint - authenticated by signature, not JWT
func (h *WebhookHandler) FlutterwaveWebhook(c *fiber.Ctx) error {
	ctx := c.UserContext()

	body := c.Body()

	if !h.verifySignature(body, c.Get("verif-hash")) {
		log.Printf("[Webhook] Signature verification failed")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "invalid signature",
		})
	}

	var req FlutterwaveWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Printf("[Webhook] Failed to parse body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	log.Printf("[Webhook] Received event: event=%s, tx_ref=%s, status=%s, amount=%.2f",
		req.Event, req.Data.TxRef, req.Data.Status, req.Data.Amount)

	if req.Data.TxRef == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "tx_ref is required",
		})
	}

	inv, outcome, err := h.reconcile.HandleEvent(ctx, service.WebhookEvent{
		Event:  req.Event,
		TxRef:  req.Data.TxRef,
		Status: req.Data.Status,
		Amount: req.Data.Amount,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Printf("[Webhook] No investment for tx_ref=%s", req.Data.TxRef)
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "unknown transaction reference",
			})
		}
		log.Printf("[Webhook] Failed to process event for tx_ref=%s: %v", req.Data.TxRef, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to process event",
		})
	}

	log.Printf("[Webhook] Event processed: tx_ref=%s, outcome=%s, status=%s",
		req.Data.TxRef, outcome, inv.Status)

	return c.JSON(fiber.Map{
		"success": true,
		"message": string(outcome),
	})
}

// verifySignature validates the webhook signature from Flutterwave.
// The verif-hash header carries hex-encoded HMAC-SHA256 of the raw body
// keyed with the configured secret hash.
func (h *WebhookHandler) verifySignature(body []byte, providedSig string) bool {
	if providedSig == "" || h.secretHash == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secretHash))
	mac.Write(body)
	expectedSig := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expectedSig), []byte(providedSig))
}
