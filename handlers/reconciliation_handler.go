package handlers

import (
	"strings"

	"github.com/anjiri1684/tuition_billing/reconciliation"
	"github.com/gofiber/fiber/v2"
)

// ImportStatement accepts a CSV or XLSX bank statement in the "file" field.
func (h *Handler) ImportStatement(c *fiber.Ctx) error {
	name, data, err := readUpload(c, "file")
	if err != nil {
		return respondError(c, err)
	}
	summary, err := h.Recon.ImportStatement(c.UserContext(), reconciliation.ImportStatementIn{
		FileName:   name,
		Data:       data,
		UploadedBy: actor(c),
	})
	return respondSummary(c, summary, err)
}

// ImportHistorical accepts either a JSON array of payments or a CSV/XLSX
// file in the "file" field.
func (h *Handler) ImportHistorical(c *fiber.Ctx) error {
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEApplicationJSON) {
		summary, err := h.Historical.ImportJSON(c.UserContext(), c.Body(), actor(c))
		return respondSummary(c, summary, err)
	}
	name, data, err := readUpload(c, "file")
	if err != nil {
		return respondError(c, err)
	}
	summary, err := h.Historical.ImportFile(c.UserContext(), name, data, actor(c))
	return respondSummary(c, summary, err)
}

func (h *Handler) UnmatchedBankRecords(c *fiber.Ctx) error {
	f, err := dateRange(c)
	if err != nil {
		return respondError(c, err)
	}
	records, err := h.Recon.UnmatchedBankRecords(c.UserContext(), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"count": len(records), "records": records})
}

func (h *Handler) PendingMatches(c *fiber.Ctx) error {
	f, err := dateRange(c)
	if err != nil {
		return respondError(c, err)
	}
	pending, err := h.Recon.PendingMatches(c.UserContext(), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"count": len(pending), "entries": pending})
}

func (h *Handler) ReconciledMatches(c *fiber.Ctx) error {
	f, err := dateRange(c)
	if err != nil {
		return respondError(c, err)
	}
	pairs, err := h.Recon.ReconciledMatches(c.UserContext(), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"count": len(pairs), "matches": pairs})
}

// RunReconciliation runs a pass over uploaded records on demand.
func (h *Handler) RunReconciliation(c *fiber.Ctx) error {
	summary, err := h.Recon.ReconcilePending(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}
