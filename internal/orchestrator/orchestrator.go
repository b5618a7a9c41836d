// Package orchestrator implements PipelineOrchestrator (C8): the per-upload
// algorithm tying page segmentation, classification, bounded concurrent
// extraction, normalization, and reconciliation together.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/statement-ledger/internal/classifier"
	"github.com/insightdelivered/statement-ledger/internal/llmtext"
	"github.com/insightdelivered/statement-ledger/internal/logging"
	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/normalize"
	"github.com/insightdelivered/statement-ledger/internal/promptstore"
	"github.com/insightdelivered/statement-ledger/internal/reconcile"
	"github.com/insightdelivered/statement-ledger/internal/store"
)

// Config carries the tunables spec.md §5 names as configurable, each with
// the suggested default.
type Config struct {
	// MaxWorkers bounds per-page concurrent LLM calls. Zero means the
	// orchestrator computes min(pages, 4).
	MaxWorkers int
	// LLMTimeout is the per-call deadline for C2/C4 completions.
	LLMTimeout time.Duration
	// PipelineTimeout is the whole-upload deadline.
	PipelineTimeout time.Duration
	// SourceName is recorded on the persisted run.
	SourceName string
	// ModelTag identifies the LLM model/version used, recorded on the run.
	ModelTag string
	// BalanceTolerance is the epsilon C6 uses to accept a running balance
	// without repair. Zero means reconcile.DefaultTolerance.
	BalanceTolerance decimal.Decimal
}

func (c Config) withDefaults() Config {
	if c.LLMTimeout == 0 {
		c.LLMTimeout = 60 * time.Second
	}
	if c.PipelineTimeout == 0 {
		c.PipelineTimeout = 5 * time.Minute
	}
	if c.BalanceTolerance.IsZero() {
		c.BalanceTolerance = reconcile.DefaultTolerance
	}
	return c
}

// PageError records a per-page extraction failure. Per-page failures are
// collected, never propagated — the run continues with the pages that
// succeeded (spec.md §4.8 step 4).
type PageError struct {
	PageIndex int
	Err       error
}

// Result is what the orchestrator hands back to the caller (e.g. the API
// layer), per spec.md §4.8 step 9.
type Result struct {
	RunID        string
	Rows         []models.CanonicalRow
	PageErrors   []PageError
	RowsRejected int
	Metadata     models.StatementMetadata
	Issuer       *string
}

// Orchestrator wires the components a single upload needs.
type Orchestrator struct {
	Prompts    promptstore.Store
	Completer  llmtext.TextCompleter
	Classifier llmtext.TextCompleter
	Runs       store.Store
	Config     Config
	// Log receives structured progress/error events for one Process call.
	// Defaults to logrus.StandardLogger() when nil.
	Log *logrus.Logger
}

func (o *Orchestrator) logger() *logrus.Logger {
	if o.Log != nil {
		return o.Log
	}
	return logrus.StandardLogger()
}

// pageRaw is the indexed output of one page's LLM extraction.
type pageRaw struct {
	pageIndex int
	rows      []models.RawRow
}

// Process runs the full per-upload algorithm over the raw bytes of an
// uploaded PDF. On success, the run is persisted and the reconciled rows
// are returned. If persistence fails the run is still returned with
// RunID = "" (spec.md §4.8: "failure at step 8 does not prevent emission
// of the download artifact").
func (o *Orchestrator) Process(ctx context.Context, pdfBytes []byte) (*Result, error) {
	cfg := o.Config.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.PipelineTimeout)
	defer cancel()

	log := o.logger().WithField(logging.FieldSourceName, cfg.SourceName)

	pages, err := splitPages(pdfBytes)
	if err != nil {
		log.WithField(logging.FieldError, err).Error("page segmentation failed")
		return nil, err
	}
	if len(pages) == 0 {
		return nil, models.ErrNoTextExtracted
	}
	log.WithField(logging.FieldPageCount, len(pages)).Info("pages segmented")

	metadata := extractMetadata(pages)

	var issuer *string
	if pages[0] != "" {
		classifyCtx, cancelClassify := context.WithTimeout(ctx, cfg.LLMTimeout)
		issuer = classifier.Classify(classifyCtx, o.Classifier, pages[0])
		cancelClassify()
	}
	if issuer != nil {
		log.WithField(logging.FieldIssuerTag, *issuer).Info("issuer classified")
	}

	prompt, err := o.Prompts.ResolvePrompt(ctx, issuer)
	if err != nil {
		return nil, err
	}

	raws, pageErrors := o.extractPages(ctx, pages, prompt)
	for _, pe := range pageErrors {
		log.WithField(logging.FieldPageIndex, pe.PageIndex).WithField(logging.FieldError, pe.Err).Warn("page extraction failed")
	}

	sort.Slice(raws, func(i, j int) bool { return raws[i].pageIndex < raws[j].pageIndex })

	var merged []models.RawRow
	for _, pr := range raws {
		merged = append(merged, pr.rows...)
	}

	canonical, rejected := normalize.Rows(merged)
	reconciled := reconcile.Run(canonical, cfg.BalanceTolerance)

	if len(reconciled) == 0 {
		return nil, models.ErrNoTransactionsExtracted
	}
	log.WithField(logging.FieldRowCount, len(reconciled)).WithField(logging.FieldRejected, rejected).Info("normalization and reconciliation complete")

	flags := collectFlags(reconciled)

	result := &Result{
		Rows:         reconciled,
		PageErrors:   pageErrors,
		RowsRejected: rejected,
		Metadata:     metadata,
		Issuer:       issuer,
	}

	run := models.ProcessingRun{
		SourceName: cfg.SourceName,
		ModelTag:   cfg.ModelTag,
		PromptID:   prompt.ID,
		Rows:       reconciled,
		Flags:      flags,
		Metadata:   metadata,
	}
	runID, err := o.Runs.CreateRun(ctx, run)
	if err != nil {
		log.WithField(logging.FieldError, err).Error("run persistence failed; returning artifact without a run id")
		result.RunID = ""
		return result, nil
	}
	result.RunID = runID
	log.WithField(logging.FieldRunID, runID).Info("run persisted")
	return result, nil
}

// extractPages fans out across pages with bounded concurrency, per
// spec.md §5: a small worker pool, no shared mutable state between
// workers, deterministic merge by page_index afterward.
func (o *Orchestrator) extractPages(ctx context.Context, pages []string, prompt models.Prompt) ([]pageRaw, []PageError) {
	limit := o.Config.withDefaults().MaxWorkers
	if limit <= 0 {
		limit = len(pages)
		if limit > 4 {
			limit = 4
		}
	}
	if limit < 1 {
		limit = 1
	}

	var mu sync.Mutex
	var results []pageRaw
	var pageErrors []PageError

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, page := range pages {
		if page == "" {
			continue
		}
		i, page := i, page
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, o.Config.withDefaults().LLMTimeout)
			defer cancel()

			expanded := promptstore.Expand(prompt.Text, page)
			rows, err := llmtext.Extract(callCtx, o.Completer, expanded)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				pageErrors = append(pageErrors, PageError{PageIndex: i, Err: err})
				return nil
			}
			results = append(results, pageRaw{pageIndex: i, rows: rows})
			return nil
		})
	}

	// errgroup.Wait only returns an error if a worker returns one; workers
	// never do (per-page errors are recorded, not propagated), so this is
	// always nil barring context cancellation racing completion.
	_ = g.Wait()

	return results, pageErrors
}

func collectFlags(rows []models.CanonicalRow) []models.Flag {
	var flags []models.Flag
	for i, r := range rows {
		f := models.Flag{
			RowIndex:         i,
			BalanceMismatch:  r.BalanceMismatch,
			TypeCorrected:    r.TypeCorrected,
			InvalidStructure: r.InvalidStructure,
		}
		if f.HasAny() {
			flags = append(flags, f)
		}
	}
	return flags
}

// splitPages and extractMetadata are indirected through package-level vars
// so tests can substitute fakes without touching the filesystem/PDF stack.
var splitPages = func(data []byte) ([]string, error) {
	return defaultSplit(data)
}

var extractMetadata = func(pages []string) models.StatementMetadata {
	return defaultMetadata(pages)
}
