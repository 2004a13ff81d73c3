package handler

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"

	"github.com/agrovest/backend/internal/domain"
	"github.com/agrovest/backend/internal/service"
)

// maxReceiptSize caps manual-payment receipt uploads at 5MB.
const maxReceiptSize = 5 * 1024 * 1024

var receiptContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// PaymentHandler handles payment initiation and reconciliation endpoints
type PaymentHandler struct {
	reconcile *service.ReconciliationService
	lifecycle *service.LifecycleService
	receipts  domain.ReceiptStore
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	reconcile *service.ReconciliationService,
	lifecycle *service.LifecycleService,
	receipts domain.ReceiptStore,
) *PaymentHandler {
	return &PaymentHandler{
		reconcile: reconcile,
		lifecycle: lifecycle,
		receipts:  receipts,
	}
}

// InitiateRequest represents the request body for gateway checkout
type InitiateRequest struct {
	Plan   string  `json:"plan"`
	Amount float64 `json:"amount"`
}

// InitiateResponse carries the hosted payment link back to the frontend
type InitiateResponse struct {
	Investment  InvestmentResponse `json:"investment"`
	PaymentLink string             `json:"payment_link"`
}

// InitiateGateway handles POST /v1/payments/initiate
// Creates a pending gateway investment and returns the hosted checkout link
func (h *PaymentHandler) InitiateGateway(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	var req InitiateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	ctx := c.UserContext()

	inv, link, err := h.reconcile.InitiateGatewayPayment(ctx, service.CreateInput{
		UserID:   userID,
		PlanCode: req.Plan,
		Amount:   req.Amount,
	})
	if err != nil {
		return writeInvestmentError(c, "InitiateGateway", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": InitiateResponse{
			Investment:  toInvestmentResponse(inv),
			PaymentLink: link,
		},
	})
}

// SubmitManual handles POST /v1/payments/manual
// Creates a pending manual investment with an uploaded receipt document
func (h *PaymentHandler) SubmitManual(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	plan := c.FormValue("plan")
	amount, err := parseAmount(c.FormValue("amount"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid amount",
		})
	}

	if h.receipts == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"success": false,
			"error":   "receipt storage is not configured",
		})
	}

	fileHeader, err := c.FormFile("receipt")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "receipt file is required",
		})
	}

	if fileHeader.Size > maxReceiptSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "receipt exceeds 5MB limit",
		})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType, ok := receiptContentTypes[ext]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "receipt must be JPEG, PNG, or PDF",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Printf("[SubmitManual] Error opening receipt upload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "unable to read receipt file",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxReceiptSize+1))
	if err != nil {
		log.Printf("[SubmitManual] Error reading receipt upload: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "unable to read receipt file",
		})
	}
	if len(data) > maxReceiptSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "receipt exceeds 5MB limit",
		})
	}

	ctx := c.UserContext()

	filename := fmt.Sprintf("%s-%s%s", userID, ulid.Make().String(), ext)
	receiptURL, err := h.receipts.Upload(ctx, data, filename, contentType)
	if err != nil {
		log.Printf("[SubmitManual] Error uploading receipt: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to store receipt",
		})
	}

	inv, err := h.lifecycle.Create(ctx, service.CreateInput{
		UserID:        userID,
		PlanCode:      plan,
		Amount:        amount,
		PaymentMethod: string(domain.PaymentManual),
		ReceiptURL:    receiptURL,
	})
	if err != nil {
		return writeInvestmentError(c, "SubmitManual", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    toInvestmentResponse(inv),
	})
}

// VerifyResponse reports the reconciliation outcome of a verify call
type VerifyResponse struct {
	Outcome    string             `json:"outcome"`
	Investment InvestmentResponse `json:"investment"`
}

// Verify handles GET /v1/payments/verify?tx_ref=
// Polls the gateway for the charge result and settles the investment
func (h *PaymentHandler) Verify(c *fiber.Ctx) error {
	txRef := c.Query("tx_ref")
	if txRef == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "tx_ref is required",
		})
	}

	ctx := c.UserContext()

	inv, outcome, err := h.reconcile.VerifyAndActivate(ctx, txRef)
	if err != nil {
		return writeInvestmentError(c, "Verify", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": VerifyResponse{
			Outcome:    string(outcome),
			Investment: toInvestmentResponse(inv),
		},
	})
}

// ApproveManual handles POST /v1/admin/investments/:id/approve
// Admin confirmation of a manual payment; activates the investment
func (h *PaymentHandler) ApproveManual(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "investment ID is required",
		})
	}

	ctx := c.UserContext()

	inv, err := h.reconcile.ApproveManual(ctx, id)
	if err != nil {
		return writeInvestmentError(c, "ApproveManual", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    toInvestmentResponse(inv),
	})
}

func parseAmount(raw string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}
