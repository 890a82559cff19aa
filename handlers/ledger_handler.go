package handlers

import (
	"time"

	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/anjiri1684/tuition_billing/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ManualEntryRequest struct {
	EnrollmentID  string `json:"enrollment_id" validate:"required,uuid"`
	InstallmentID string `json:"installment_id" validate:"omitempty,uuid"`
	Amount        string `json:"amount" validate:"required"`
	PaymentDate   string `json:"payment_date" validate:"required"`
	Bank          string `json:"bank" validate:"required"`
	ReceiptNumber string `json:"receipt_number" validate:"required"`
	Concept       string `json:"concept"`
}

type ReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=start approve reject void"`
	Note     string `json:"note" validate:"max=2000"`
}

type GeneratePlanRequest struct {
	Rebuild bool `json:"rebuild"`
}

func (h *Handler) CreateManualEntry(c *fiber.Ctx) error {
	var req ManualEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	amount, err := normalize.Amount(req.Amount)
	if err != nil {
		return respondError(c, &ledger.ValidationError{Field: "amount", Reason: "is not a valid amount"})
	}
	paid, ok := normalize.Date(req.PaymentDate)
	if !ok {
		return respondError(c, &ledger.ValidationError{Field: "payment_date", Reason: "is not a valid date"})
	}
	in := services.ManualEntryIn{
		EnrollmentID:  uuid.MustParse(req.EnrollmentID),
		Amount:        amount,
		PaymentDate:   paid,
		Bank:          req.Bank,
		ReceiptNumber: req.ReceiptNumber,
		Concept:       req.Concept,
		ActorID:       actor(c),
	}
	if req.InstallmentID != "" {
		id := uuid.MustParse(req.InstallmentID)
		in.InstallmentID = &id
	}

	result, err := h.Ledger.ManualEntry(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *Handler) ReviewEntry(c *fiber.Ctx) error {
	entryID, err := uuidParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := h.Ledger.Review(c.UserContext(), entryID, ledger.Decision(req.Decision), actor(c), req.Note)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) GeneratePlan(c *fiber.Ctx) error {
	enrollmentID, err := uuidParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req GeneratePlanRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
		}
	}
	if c.QueryBool("rebuild") {
		req.Rebuild = true
	}

	plan, err := h.Ledger.GeneratePlan(c.UserContext(), enrollmentID, req.Rebuild)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"installments": plan})
}

func (h *Handler) DeleteInstallment(c *fiber.Ctx) error {
	installmentID, err := uuidParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Ledger.DeleteInstallment(c.UserContext(), installmentID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) CollectionsStatus(c *fiber.Ctx) error {
	enrollmentID, err := uuidParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		t, ok := normalize.Date(raw)
		if !ok {
			return respondError(c, &ledger.ValidationError{Field: "as_of", Reason: "is not a valid date"})
		}
		asOf = t
	}
	status, err := h.Collections.Status(c.UserContext(), enrollmentID, asOf)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status)
}
