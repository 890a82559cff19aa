package handlers

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/anjiri1684/tuition_billing/cache"
	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/middleware"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/normalize"
	"github.com/anjiri1684/tuition_billing/reconciliation"
	"github.com/anjiri1684/tuition_billing/services"
	"github.com/anjiri1684/tuition_billing/statements"
	"github.com/anjiri1684/tuition_billing/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var validate = validator.New()

// maxUploadSize bounds statement, historical and proof uploads.
const maxUploadSize = 10 << 20

// Handler serves the reconciliation API.
type Handler struct {
	Recon       *reconciliation.Service
	Receipts    *services.ReceiptService
	Historical  *services.HistoricalImportService
	Ledger      *services.LedgerService
	Collections *services.CollectionsService
	Hub         *websocket.Hub
	JWTSecret   string
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	var (
		missing *statements.MissingColumnsError
		dup     *ledger.DuplicateError
		invalid *ledger.ValidationError
	)
	switch {
	case errors.As(err, &missing):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error(), "missing_columns": missing.Fields})
	case errors.As(err, &invalid):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error(), "field": invalid.Field})
	case errors.As(err, &dup):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": dup.Message, "kind": dup.Kind})
	case errors.Is(err, statements.ErrUnsupportedFormat), errors.Is(err, statements.ErrEmptyFile):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, cache.ErrLocked):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ledger.ErrPlanExists),
		errors.Is(err, ledger.ErrEntryNotReviewable),
		errors.Is(err, ledger.ErrInstallmentAlreadyPaid),
		errors.Is(err, ledger.ErrRecordAlreadyLinked),
		errors.Is(err, models.ErrInstallmentReferenced):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Record not found"})
	case errors.Is(err, ledger.ErrStorageUnavailable):
		log.Printf("🔥 %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage is unavailable, try again later"})
	default:
		log.Printf("🔥 %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}

// respondSummary answers an import. An aborted import still returns the
// summary of what was committed before storage went away.
func respondSummary[T any](c *fiber.Ctx, summary *T, err error) error {
	if err == nil {
		return c.JSON(summary)
	}
	if summary != nil && errors.Is(err, ledger.ErrStorageUnavailable) {
		log.Printf("🔥 Import aborted: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "Storage became unavailable, the import was aborted",
			"summary": summary,
		})
	}
	return respondError(c, err)
}

// readUpload returns the name and contents of a multipart file field.
func readUpload(c *fiber.Ctx, field string) (string, []byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return "", nil, &ledger.ValidationError{Field: field, Reason: "file is required"}
	}
	if header.Size > maxUploadSize {
		return "", nil, &ledger.ValidationError{Field: field, Reason: "file is too large"}
	}
	f, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, &ledger.ValidationError{Field: name, Reason: "must be a UUID"}
	}
	return id, nil
}

// actor is the authenticated user, if the token carries one.
func actor(c *fiber.Ctx) *uuid.UUID {
	if id, ok := middleware.UserID(c); ok {
		return &id
	}
	return nil
}

// dateRange reads the optional from/to query filters.
func dateRange(c *fiber.Ctx) (reconciliation.Filter, error) {
	var f reconciliation.Filter
	for _, q := range []struct {
		name string
		dst  *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		t, ok := normalize.Date(raw)
		if !ok {
			return f, &ledger.ValidationError{Field: q.name, Reason: "is not a valid date"}
		}
		*q.dst = t
	}
	return f, nil
}
