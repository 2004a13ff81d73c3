package handler

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agrovest/backend/internal/domain"
	"github.com/agrovest/backend/internal/service"
)

// InvestmentHandler handles investment lifecycle API endpoints
type InvestmentHandler struct {
	lifecycle *service.LifecycleService
	sweeper   *service.MaturitySweeper
}

// NewInvestmentHandler creates a new InvestmentHandler
func NewInvestmentHandler(lifecycle *service.LifecycleService, sweeper *service.MaturitySweeper) *InvestmentHandler {
	return &InvestmentHandler{
		lifecycle: lifecycle,
		sweeper:   sweeper,
	}
}

// CreateInvestmentRequest represents the request body for creating an investment
type CreateInvestmentRequest struct {
	Plan          string  `json:"plan"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"` // gateway, manual
	ReceiptURL    string  `json:"receipt_url"`
}

// InvestmentResponse represents an investment in API responses
type InvestmentResponse struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Plan           string  `json:"plan"`
	Amount         float64 `json:"amount"`
	PaymentMethod  string  `json:"payment_method"`
	ReceiptURL     string  `json:"receipt_url,omitempty"`
	TxRef          string  `json:"tx_ref"`
	StartDate      string  `json:"start_date"`
	MaturityDate   string  `json:"maturity_date"`
	ExpectedReturn float64 `json:"expected_return"`
	CountdownDays  int     `json:"countdown_days"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
}

func toInvestmentResponse(inv *domain.Investment) InvestmentResponse {
	return InvestmentResponse{
		ID:             inv.ID,
		UserID:         inv.UserID,
		Plan:           inv.Plan,
		Amount:         inv.Amount,
		PaymentMethod:  string(inv.PaymentMethod),
		ReceiptURL:     inv.ReceiptURL,
		TxRef:          inv.TxRef,
		StartDate:      inv.StartDate.Format(time.RFC3339),
		MaturityDate:   inv.MaturityDate.Format(time.RFC3339),
		ExpectedReturn: inv.ExpectedReturn,
		CountdownDays:  inv.CountdownDays,
		Status:         string(inv.Status),
		CreatedAt:      inv.CreatedAt.Format(time.RFC3339),
	}
}

func toInvestmentResponses(invs []*domain.Investment) []InvestmentResponse {
	out := make([]InvestmentResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvestmentResponse(inv))
	}
	return out
}

// PlanResponse represents an investment plan for the frontend
type PlanResponse struct {
	Code         string  `json:"code"`
	DurationDays int     `json:"duration_days"`
	ROI          float64 `json:"roi"`
}

// ListPlans handles GET /v1/plans
// Returns the available investment plans
func (h *InvestmentHandler) ListPlans(c *fiber.Ctx) error {
	plans := domain.Plans()

	response := make([]PlanResponse, 0, len(plans))
	for _, p := range plans {
		response = append(response, PlanResponse{
			Code:         p.Code,
			DurationDays: p.DurationDays,
			ROI:          p.ROI,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    response,
	})
}

// Create handles POST /v1/investments
// Creates a new pending investment for the authenticated user
func (h *InvestmentHandler) Create(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	var req CreateInvestmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	ctx := c.UserContext()

	inv, err := h.lifecycle.Create(ctx, service.CreateInput{
		UserID:        userID,
		PlanCode:      req.Plan,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		ReceiptURL:    req.ReceiptURL,
	})
	if err != nil {
		return writeInvestmentError(c, "Create", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    toInvestmentResponse(inv),
	})
}

// ListMine handles GET /v1/investments
// Returns the authenticated user's investments, newest first
func (h *InvestmentHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "unauthorized",
		})
	}

	ctx := c.UserContext()

	invs, err := h.lifecycle.ListByUser(ctx, userID)
	if err != nil {
		log.Printf("[ListMine] Error listing investments: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to fetch investments",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    toInvestmentResponses(invs),
	})
}

// ListAll handles GET /v1/admin/investments
// Returns all investments, optionally filtered by status
func (h *InvestmentHandler) ListAll(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var invs []*domain.Investment
	var err error

	if statusParam := c.Query("status"); statusParam != "" {
		status, ok := domain.ParseStatus(statusParam)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "invalid status filter",
			})
		}
		invs, err = h.lifecycle.ListByStatus(ctx, status)
	} else {
		invs, err = h.lifecycle.ListAll(ctx)
	}

	if err != nil {
		log.Printf("[ListAll] Error listing investments: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to fetch investments",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    toInvestmentResponses(invs),
	})
}

// UpdateStatusRequest represents the admin status override request
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PUT /v1/admin/investments/:id/status
// Admin override of an investment's status, subject to transition rules
func (h *InvestmentHandler) UpdateStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "investment ID is required",
		})
	}

	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	status, ok := domain.ParseStatus(req.Status)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid status",
		})
	}

	ctx := c.UserContext()

	inv, err := h.lifecycle.UpdateStatus(ctx, id, status)
	if err != nil {
		return writeInvestmentError(c, "UpdateStatus", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    toInvestmentResponse(inv),
	})
}

// DeleteStale handles DELETE /v1/admin/investments/:id
// Removes a manual-payment investment still pending after 24 hours
func (h *InvestmentHandler) DeleteStale(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "investment ID is required",
		})
	}

	ctx := c.UserContext()

	if err := h.lifecycle.DeleteStale(ctx, id); err != nil {
		return writeInvestmentError(c, "DeleteStale", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "investment deleted",
	})
}

// TriggerMaturityCheck handles POST /v1/admin/maturity-check
// Runs a maturity sweep immediately instead of waiting for the schedule
func (h *InvestmentHandler) TriggerMaturityCheck(c *fiber.Ctx) error {
	ctx := c.UserContext()

	matured, err := h.sweeper.Sweep(ctx)
	if err != nil {
		log.Printf("[TriggerMaturityCheck] Sweep failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "maturity sweep failed",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"matured": matured,
		},
	})
}

// writeInvestmentError maps domain errors to HTTP responses
func writeInvestmentError(c *fiber.Ctx, op string, err error) error {
	var illegal *domain.IllegalTransitionError
	var tooEarly *domain.TooEarlyError
	var gateway *domain.GatewayError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "investment not found",
		})
	case errors.Is(err, domain.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "user not found",
		})
	case errors.Is(err, domain.ErrInvalidPlan),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidMethod),
		errors.Is(err, domain.ErrReceiptRequired),
		errors.Is(err, domain.ErrNotManual),
		errors.Is(err, domain.ErrNotEligible):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	case errors.As(err, &illegal):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   illegal.Error(),
		})
	case errors.As(err, &tooEarly):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   tooEarly.Error(),
		})
	case errors.As(err, &gateway):
		log.Printf("[%s] Gateway error: %v", op, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "payment gateway unavailable, please try again later",
		})
	case errors.Is(err, domain.ErrTxRefExhausted):
		log.Printf("[%s] Transaction reference generation exhausted: %v", op, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to generate transaction reference",
		})
	default:
		log.Printf("[%s] Unexpected error: %v", op, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "internal server error",
		})
	}
}
