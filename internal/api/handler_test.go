package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/orchestrator"
	"github.com/insightdelivered/statement-ledger/internal/promptstore"
	"github.com/insightdelivered/statement-ledger/internal/store"
)

type stubCompleter struct{ response string }

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return s.response, nil
}

const samplePages = `[
  {"Transaction Date":"01/04/2024","Narration":"OPENING BALANCE","Balance":"1000.00"},
  {"Transaction Date":"02/04/2024","Narration":"Salary","Credit":"500.00","Balance":"1500.00"}
]`

// minimalStatementPDF is a one-page PDF object tree (Catalog -> Pages ->
// Page -> Contents) whose text the raw-stream extraction tier can read, so
// the convert endpoint sees a parseable document with exactly one page.
const minimalStatementPDF = `%PDF-1.4
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [3 0 R] /Count 1 >>
endobj
3 0 obj
<< /Type /Page /Parent 2 0 R /Contents 4 0 R >>
endobj
4 0 obj
<< /Length 90 >>
stream
BT (Statement period April 2024 opening balance and account transactions) Tj ET
endstream
endobj
`

func setupTestApp(t *testing.T) (*fiber.App, *Handler) {
	t.Helper()

	dir := t.TempDir()
	completer := &stubCompleter{response: samplePages}
	runs := store.NewMemoryStore()
	h := &Handler{
		Orchestrator: &orchestrator.Orchestrator{
			Prompts:    promptstore.NewMemoryStore(models.Prompt{ID: "default", Text: "extract: ${textContent}"}),
			Completer:  completer,
			Classifier: completer,
			Runs:       runs,
			Config:     orchestrator.Config{SourceName: "test.pdf", ModelTag: "test-model"},
		},
		Runs:        runs,
		ArtifactDir: dir,
	}

	app := fiber.New()
	h.RegisterRoutes(app)
	return app, h
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/api/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["engine"] != "fiber" {
		t.Errorf("unexpected health body: %+v", body)
	}
}

func TestConvertEndpointRequiresFile(t *testing.T) {
	app, _ := setupTestApp(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()

	req := httptest.NewRequest(fiber.MethodPost, "/api/convert", &buf)
	req.Header.Set(fiber.HeaderContentType, mw.FormDataContentType())

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode == fiber.StatusOK {
		t.Fatalf("expected a non-200 status when no file is uploaded, got %d", resp.StatusCode)
	}
}

func multipartPDF(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestConvertEndpoint_HappyPath(t *testing.T) {
	app, h := setupTestApp(t)

	body, contentType := multipartPDF(t, "statement.pdf", []byte(minimalStatementPDF))
	req := httptest.NewRequest(fiber.MethodPost, "/api/convert", body)
	req.Header.Set(fiber.HeaderContentType, contentType)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out ConvertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.TotalTransactions != 2 {
		t.Fatalf("expected 2 transactions, got %d", out.TotalTransactions)
	}
	if out.DownloadID == "" || !strings.HasSuffix(out.DownloadID, ".csv") {
		t.Errorf("expected a .csv download id, got %q", out.DownloadID)
	}
	if out.RunID == nil || *out.RunID == "" {
		t.Fatalf("expected a persisted run id")
	}

	if _, err := os.Stat(h.ArtifactDir + "/" + out.DownloadID); err != nil {
		t.Errorf("expected artifact file to exist: %v", err)
	}
}

// TestConvertEndpoint_WireKeysAreSnakeCase decodes the raw response bytes
// into a generic map rather than back into ConvertResponse/CanonicalRow, so
// it actually exercises the wire format instead of round-tripping through
// the same (possibly untagged) Go struct the encoder used.
func TestConvertEndpoint_WireKeysAreSnakeCase(t *testing.T) {
	app, _ := setupTestApp(t)

	body, contentType := multipartPDF(t, "statement.pdf", []byte(minimalStatementPDF))
	req := httptest.NewRequest(fiber.MethodPost, "/api/convert", body)
	req.Header.Set(fiber.HeaderContentType, contentType)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	txField, ok := envelope["transactions"]
	if !ok {
		t.Fatalf("expected top-level %q key, got keys %v", "transactions", rawKeys(raw))
	}

	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(txField, &rows); err != nil {
		t.Fatalf("unmarshal transactions: %v", err)
	}
	if len(rows) == 0 {
		t.Fatalf("expected at least one transaction row")
	}

	for _, key := range []string{"date", "description", "amount", "type", "running_balance", "balance_mismatch", "type_corrected", "invalid_structure"} {
		if _, ok := rows[0][key]; !ok {
			t.Errorf("row missing wire key %q, got keys %v", key, mapKeys(rows[0]))
		}
	}
	for _, badKey := range []string{"Date", "RunningBalance", "BalanceMismatch"} {
		if _, ok := rows[0][badKey]; ok {
			t.Errorf("row should not carry PascalCase key %q", badKey)
		}
	}
}

// TestFeedbackEndpoint_WireKeysAreSnakeCase does the same for the feedback
// endpoint's DiffAnalysis payload.
func TestFeedbackEndpoint_WireKeysAreSnakeCase(t *testing.T) {
	app, h := setupTestApp(t)

	ctx := context.Background()
	runID, err := h.Runs.CreateRun(ctx, models.ProcessingRun{
		SourceName: "x.pdf",
		Rows: []models.CanonicalRow{
			{Date: "01/04/2024", Description: "Salary", Amount: amtPtr(500), Type: typPtr(models.Credit), RunningBalance: decimalFromFloat(1500)},
		},
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	corrected := []models.CanonicalRow{
		{Date: "01/04/2024", Description: "Salary (corrected)", Amount: amtPtr(500), Type: typPtr(models.Credit), RunningBalance: decimalFromFloat(1500)},
	}
	payload, _ := json.Marshal(feedbackRequest{RunID: runID, CorrectedData: corrected})
	req := httptest.NewRequest(fiber.MethodPost, "/api/runs/feedback", bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	analysisField, ok := envelope["analysis"]
	if !ok {
		t.Fatalf("expected top-level %q key, got keys %v", "analysis", rawKeys(raw))
	}

	var analysis map[string]json.RawMessage
	if err := json.Unmarshal(analysisField, &analysis); err != nil {
		t.Fatalf("unmarshal analysis: %v", err)
	}
	for _, key := range []string{"rows_added", "rows_deleted", "rows_modified", "cell_changes", "field_change_counts"} {
		if _, ok := analysis[key]; !ok {
			t.Errorf("analysis missing wire key %q, got keys %v", key, mapKeys(analysis))
		}
	}

	if cellChangesField, ok := analysis["cell_changes"]; ok {
		var changes []map[string]json.RawMessage
		if err := json.Unmarshal(cellChangesField, &changes); err != nil {
			t.Fatalf("unmarshal cell_changes: %v", err)
		}
		if len(changes) > 0 {
			for _, key := range []string{"row_index", "field", "old", "new"} {
				if _, ok := changes[0][key]; !ok {
					t.Errorf("cell_changes[0] missing wire key %q, got keys %v", key, mapKeys(changes[0]))
				}
			}
		}
	}
}

func mapKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func rawKeys(raw []byte) []string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return mapKeys(m)
}

func amtPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func typPtr(t models.TransactionType) *models.TransactionType {
	return &t
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestConvertEndpoint_RejectsNonPDF(t *testing.T) {
	app, _ := setupTestApp(t)

	body, contentType := multipartPDF(t, "statement.txt", []byte("not a pdf"))
	req := httptest.NewRequest(fiber.MethodPost, "/api/convert", body)
	req.Header.Set(fiber.HeaderContentType, contentType)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for a non-pdf upload, got %d", resp.StatusCode)
	}
}

func TestConfirmEndpoint_UnknownRun(t *testing.T) {
	app, _ := setupTestApp(t)

	payload, _ := json.Marshal(confirmRequest{RunID: "does-not-exist", IsAccurate: true})
	req := httptest.NewRequest(fiber.MethodPost, "/api/runs/confirm", bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown run, got %d", resp.StatusCode)
	}
}

func TestConfirmAndFeedbackEndpoints(t *testing.T) {
	app, h := setupTestApp(t)

	ctx := context.Background()
	runID, err := h.Runs.CreateRun(ctx, models.ProcessingRun{SourceName: "x.pdf"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	confirmPayload, _ := json.Marshal(confirmRequest{RunID: runID, IsAccurate: true})
	req := httptest.NewRequest(fiber.MethodPost, "/api/runs/confirm", bytes.NewReader(confirmPayload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test confirm: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 confirming a known run, got %d", resp.StatusCode)
	}

	feedbackPayload, _ := json.Marshal(feedbackRequest{RunID: runID, CorrectedData: []models.CanonicalRow{}})
	req = httptest.NewRequest(fiber.MethodPost, "/api/runs/feedback", bytes.NewReader(feedbackPayload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test feedback: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 submitting feedback on a known run, got %d", resp.StatusCode)
	}
}

func TestDownloadEndpoint_RejectsPathTraversal(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/download/..%2F..%2Fetc%2Fpasswd", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for a path-traversal id, got %d", resp.StatusCode)
	}
}

func TestDownloadEndpoint_UnknownID(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/download/nonexistent.csv", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for an unknown artifact id, got %d", resp.StatusCode)
	}
}
