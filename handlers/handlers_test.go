package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anjiri1684/tuition_billing/cache"
	"github.com/anjiri1684/tuition_billing/database"
	"github.com/anjiri1684/tuition_billing/events"
	"github.com/anjiri1684/tuition_billing/handlers"
	"github.com/anjiri1684/tuition_billing/ledger"
	"github.com/anjiri1684/tuition_billing/models"
	"github.com/anjiri1684/tuition_billing/reconciliation"
	"github.com/anjiri1684/tuition_billing/routes"
	"github.com/anjiri1684/tuition_billing/services"
	"github.com/anjiri1684/tuition_billing/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "test-secret"

type testApp struct {
	app        *fiber.App
	db         *gorm.DB
	student    models.Student
	enrollment models.Enrollment
	plan       []models.Installment
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	hub := websocket.NewHub()
	publisher := events.Multi{&events.Recorder{}, hub}
	recon := reconciliation.NewService(db, publisher, hub, cache.NewMemoryLocker())
	deps := services.Deps{DB: db, Publisher: publisher, Sink: hub}
	h := &handlers.Handler{
		Recon:       recon,
		Receipts:    &services.ReceiptService{Deps: deps},
		Historical:  &services.HistoricalImportService{Deps: deps, Locker: cache.NewMemoryLocker(), Batches: recon},
		Ledger:      &services.LedgerService{Deps: deps, Recon: recon},
		Collections: &services.CollectionsService{Deps: deps},
		Hub:         hub,
		JWTSecret:   secret,
	}
	app := fiber.New(fiber.Config{StrictRouting: true, CaseSensitive: true})
	routes.Setup(app, h)

	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	student := models.Student{Carnet: "2024-001", FullName: "Ana López"}
	require.NoError(t, db.Create(&student).Error)
	enrollment := models.Enrollment{
		StudentID:      student.ID,
		ProgramID:      uuid.New(),
		StartDate:      start,
		EndDate:        start.AddDate(0, 3, 0),
		DurationMonths: 3,
		MonthlyFee:     decimal.NewFromInt(1000),
		Status:         models.EnrollmentActive,
	}
	require.NoError(t, db.Create(&enrollment).Error)
	plan, err := ledger.GeneratePlan(db, enrollment.ID, false)
	require.NoError(t, err)

	return &testApp{app: app, db: db, student: student, enrollment: enrollment, plan: plan}
}

func token(t *testing.T, role string, studentID *uuid.UUID) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": uuid.NewString(),
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	if studentID != nil {
		claims["student_id"] = studentID.String()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// multipartBody builds a form with the given fields and one file per entry
// in files, keyed by field name.
func multipartBody(t *testing.T, fields map[string]string, files map[string][2]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, file := range files {
		part, err := w.CreateFormFile(field, file[0])
		require.NoError(t, err)
		_, err = part.Write([]byte(file[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (a *testApp) do(t *testing.T, req *http.Request, bearer string) (*http.Response, map[string]any) {
	t.Helper()
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	return req
}

func TestImportStatementEndpoint(t *testing.T) {
	a := newTestApp(t)
	body, contentType := multipartBody(t, nil, map[string][2]string{
		"file": {"estado.csv", "Banco,Referencia,Monto,Fecha\nBI,R100,1000,05/01/2024\n"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation/statements", body)
	req.Header.Set("Content-Type", contentType)

	resp, out := a.do(t, req, token(t, "operator", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.EqualValues(t, 1, out["created"])
	assert.EqualValues(t, 1, out["total_rows"])

	resp, out = a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/unmatched-bank", nil), token(t, "operator", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, out["count"])
}

func TestImportStatementMissingColumn(t *testing.T) {
	a := newTestApp(t)
	body, contentType := multipartBody(t, nil, map[string][2]string{
		"file": {"estado.csv", "Banco,Monto,Fecha\nBI,1000,05/01/2024\n"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation/statements", body)
	req.Header.Set("Content-Type", contentType)

	resp, out := a.do(t, req, token(t, "admin", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["missing_columns"], "reference")
}

func TestReconciliationRequiresOperator(t *testing.T) {
	a := newTestApp(t)

	resp, _ := a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/pending-matches", nil), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/pending-matches", nil), "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, out := a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/pending-matches", nil), token(t, "student", &a.student.ID))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Forbidden: Operator access required", out["error"])
}

func receiptForm(t *testing.T, installmentID uuid.UUID, receiptNumber, proof string) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, map[string]string{
		"installment_id": installmentID.String(),
		"receipt_number": receiptNumber,
		"bank":           "Banco Industrial",
		"amount":         "Q1,000.00",
		"payment_date":   "05/01/2024",
	}, map[string][2]string{
		"proof": {"boleta.jpg", proof},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/receipts", body)
	req.Header.Set("Content-Type", contentType)
	return req
}

func TestSubmitReceiptEndpoint(t *testing.T) {
	a := newTestApp(t)
	studentToken := token(t, "student", &a.student.ID)

	resp, out := a.do(t, receiptForm(t, a.plan[0].ID, "R100", "proof-bytes"), studentToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)
	entry := out["entry"].(map[string]any)
	assert.Equal(t, string(models.LedgerApproved), entry["status"])

	resp, out = a.do(t, receiptForm(t, a.plan[1].ID, "R101", "proof-bytes"), studentToken)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "you already submitted this proof of payment", out["error"])
}

func TestSubmitReceiptRejectsOtherStudentsInstallment(t *testing.T) {
	a := newTestApp(t)
	other := uuid.New()

	resp, out := a.do(t, receiptForm(t, a.plan[0].ID, "R100", "proof-bytes"), token(t, "student", &other))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "installment_id", out["field"])
}

func TestSubmitReceiptRequiresKnownRole(t *testing.T) {
	a := newTestApp(t)

	for _, role := range []string{"", "teacher"} {
		resp, out := a.do(t, receiptForm(t, a.plan[0].ID, "R100", "proof-bytes"), token(t, role, nil))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, role)
		assert.Equal(t, "Forbidden: your role cannot perform this action", out["error"], role)
	}

	var count int64
	require.NoError(t, a.db.Model(&models.PaymentLedgerEntry{}).Count(&count).Error)
	assert.Zero(t, count)

	resp, out := a.do(t, receiptForm(t, a.plan[0].ID, "R100", "proof-bytes"), token(t, "operator", nil))
	assert.Equal(t, http.StatusCreated, resp.StatusCode, out)
}

func TestManualEntryAndReviewEndpoints(t *testing.T) {
	a := newTestApp(t)
	operator := token(t, "operator", nil)

	resp, out := a.do(t, jsonRequest(t, http.MethodPost, "/api/v1/ledger/entries", map[string]any{
		"enrollment_id":  a.enrollment.ID.String(),
		"amount":         "1000",
		"payment_date":   "2024-01-05",
		"bank":           "BI",
		"receipt_number": "R7",
	}), operator)
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)
	entry := out["entry"].(map[string]any)
	assert.Equal(t, string(models.LedgerPendingReview), entry["status"])
	entryID := entry["id"].(string)

	resp, out = a.do(t, jsonRequest(t, http.MethodPost, "/api/v1/ledger/entries/"+entryID+"/review", map[string]any{
		"decision": "approve",
	}), operator)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, string(models.LedgerApproved), out["entry"].(map[string]any)["status"])

	resp, _ = a.do(t, jsonRequest(t, http.MethodPost, "/api/v1/ledger/entries/"+entryID+"/review", map[string]any{
		"decision": "reject",
	}), operator)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = a.do(t, jsonRequest(t, http.MethodPost, "/api/v1/ledger/entries/"+entryID+"/review", map[string]any{
		"decision": "archive",
	}), operator)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/installments/"+a.plan[0].ID.String(), nil), operator)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHistoricalImportEndpoint(t *testing.T) {
	a := newTestApp(t)
	resp, out := a.do(t, jsonRequest(t, http.MethodPost, "/api/v1/reconciliation/historical", []map[string]any{
		{"carnet": "2024-001", "receiptNumber": "H1", "amount": 1000, "paymentDate": "2024-01-06", "bank": "BI"},
	}), token(t, "operator", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.EqualValues(t, 1, out["ledger_entries_created"])
	assert.EqualValues(t, 1, out["installments_updated"])
}

func TestPlanAndCollectionsEndpoints(t *testing.T) {
	a := newTestApp(t)
	operator := token(t, "operator", nil)

	resp, _ := a.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/enrollments/"+a.enrollment.ID.String()+"/installments", nil), operator)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, out := a.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/enrollments/"+a.enrollment.ID.String()+"/installments?rebuild=true", nil), operator)
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)
	assert.Len(t, out["installments"], 3)

	resp, out = a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/collections/enrollments/"+a.enrollment.ID.String()+"/status?as_of=2024-02-10", nil), operator)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Len(t, out["overdue"], 2)

	resp, _ = a.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/collections/enrollments/not-a-uuid/status", nil), operator)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
