package handlers

import (
	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/middleware"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/anjiri1684/tuition_billing/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SubmitReceipt records a proof of payment. Students always submit for
// themselves; operators name the student or the installment.
func (h *Handler) SubmitReceipt(c *fiber.Ctx) error {
	in := services.ReceiptIn{
		ReceiptNumber: c.FormValue("receipt_number"),
		Bank:          c.FormValue("bank"),
		ActorID:       actor(c),
	}

	if raw := c.FormValue("installment_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, &ledger.ValidationError{Field: "installment_id", Reason: "must be a UUID"})
		}
		in.InstallmentID = &id
	}

	if middleware.Role(c) == middleware.RoleStudent {
		id, ok := middleware.StudentID(c)
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Token does not identify a student"})
		}
		in.StudentID = id
	} else if raw := c.FormValue("student_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, &ledger.ValidationError{Field: "student_id", Reason: "must be a UUID"})
		}
		in.StudentID = id
	}

	amount, err := normalize.Amount(c.FormValue("amount"))
	if err != nil {
		return respondError(c, &ledger.ValidationError{Field: "amount", Reason: "is not a valid amount"})
	}
	in.Amount = amount

	paid, ok := normalize.Date(c.FormValue("payment_date"))
	if !ok {
		return respondError(c, &ledger.ValidationError{Field: "payment_date", Reason: "is not a valid date"})
	}
	in.PaymentDate = paid

	_, proof, err := readUpload(c, "proof")
	if err != nil {
		return respondError(c, err)
	}
	in.Proof = proof

	result, err := h.Receipts.Submit(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}
