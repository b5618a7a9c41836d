// Package api serves the ingestion-and-reconciliation pipeline over HTTP,
// per spec.md §6. Routes are registered on a *fiber.App; fiber is the
// production HTTP engine (the teacher's own handler.go declared fiber as a
// dependency but only exercised it from tests — here it is the actual
// transport).
package api

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/orchestrator"
	"github.com/insightdelivered/statement-ledger/internal/store"
	"github.com/insightdelivered/statement-ledger/internal/writer"
)

const maxUploadBytes = 25 << 20 // 25 MiB, per spec.md §6.

var artifactIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+\.csv$`)

// ConvertResponse is the JSON envelope from POST /api/convert, field names
// and shape unchanged from spec.md §6.
type ConvertResponse struct {
	Message           string                 `json:"message"`
	Transactions      []models.CanonicalRow  `json:"transactions"`
	FullTransactions  []models.CanonicalRow  `json:"fullTransactions"`
	TotalTransactions int                    `json:"totalTransactions"`
	DownloadID        string                 `json:"downloadId"`
	RunID             *string                `json:"runId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type confirmRequest struct {
	RunID      string `json:"runId"`
	IsAccurate bool   `json:"isAccurate"`
}

type feedbackRequest struct {
	RunID         string                `json:"runId"`
	CorrectedData []models.CanonicalRow `json:"correctedData"`
}

type feedbackResponse struct {
	Analysis models.DiffAnalysis `json:"analysis"`
}

// Handler holds the dependencies the routes need.
type Handler struct {
	Orchestrator *orchestrator.Orchestrator
	Runs         store.Store
	ArtifactDir  string
}

// RegisterRoutes mounts the four endpoints spec.md §6 names.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Use(corsMiddleware)
	app.Post("/api/convert", h.HandleConvert)
	app.Post("/api/runs/confirm", h.HandleConfirm)
	app.Post("/api/runs/feedback", h.HandleFeedback)
	app.Get("/download/:id", h.HandleDownload)
	app.Get("/api/health", HandleHealth)
}

func corsMiddleware(c *fiber.Ctx) error {
	c.Set("Access-Control-Allow-Origin", "*")
	c.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	c.Set("Access-Control-Allow-Headers", "Content-Type")
	if c.Method() == fiber.MethodOptions {
		return c.SendStatus(fiber.StatusOK)
	}
	return c.Next()
}

// HandleHealth is a minimal liveness probe.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "engine": "fiber"})
}

func (h *Handler) HandleConvert(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "no file uploaded; use form field 'file'"})
	}

	if fileHeader.Size > maxUploadBytes {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "file exceeds the 25MiB upload limit"})
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "only .pdf files are supported"})
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to open uploaded file"})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to read uploaded file"})
	}

	result, err := h.Orchestrator.Process(c.Context(), data)
	if err != nil {
		return statusForEngineError(c, err)
	}

	downloadID := uuid.NewString() + ".csv"
	artifactPath := filepath.Join(h.ArtifactDir, downloadID)
	if err := writer.WriteToFile(artifactPath, result.Rows); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to materialize csv artifact"})
	}

	preview := result.Rows
	if len(preview) > 5 {
		preview = preview[:5]
	}

	var runID *string
	if result.RunID != "" {
		id := result.RunID
		runID = &id
	}

	return c.JSON(ConvertResponse{
		Message:           fmt.Sprintf("extracted %d transaction(s)", len(result.Rows)),
		Transactions:      preview,
		FullTransactions:  result.Rows,
		TotalTransactions: len(result.Rows),
		DownloadID:        downloadID,
		RunID:             runID,
	})
}

func statusForEngineError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, models.ErrMalformedSource):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrNoTextExtracted):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrNoPromptConfigured):
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrNoTransactionsExtracted):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(errorResponse{Error: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}
}

func (h *Handler) HandleConfirm(c *fiber.Ctx) error {
	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}

	if err := h.Runs.ConfirmAccuracy(c.Context(), req.RunID, req.IsAccurate); err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "run not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *Handler) HandleFeedback(c *fiber.Ctx) error {
	var req feedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}

	fb, err := h.Runs.SubmitFeedback(c.Context(), req.RunID, req.CorrectedData)
	if err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "run not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}
	return c.JSON(feedbackResponse{Analysis: fb.Analysis})
}

func (h *Handler) HandleDownload(c *fiber.Ctx) error {
	id := c.Params("id")
	if !artifactIDPattern.MatchString(id) {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "artifact not found"})
	}

	path := filepath.Join(h.ArtifactDir, id)
	if _, err := os.Stat(path); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "artifact not found"})
	}
	return c.SendFile(path)
}
