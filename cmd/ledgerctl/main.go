// Command ledgerctl converts bank statement PDFs to CSV from the command
// line, without a database: prompts and runs live in memory for the
// lifetime of the process.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-ledger/internal/config"
	"github.com/insightdelivered/statement-ledger/internal/llmtext"
	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/orchestrator"
	"github.com/insightdelivered/statement-ledger/internal/promptstore"
	"github.com/insightdelivered/statement-ledger/internal/store"
	"github.com/insightdelivered/statement-ledger/internal/writer"
)

var (
	Log = logrus.New()

	outputFlag     string
	promptFlag     string
	modelFlag      string
	maxWorkersFlag int

	rootCmd = &cobra.Command{
		Use:   "ledgerctl [flags] <input.pdf> [input2.pdf ...]",
		Short: "Convert bank statement PDFs to CSV.",
		Long: `ledgerctl converts bank statement PDFs into structured CSV files,
extracting transactions via an LLM and reconciling running balances.`,
		Args: cobra.MinimumNArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv()
			Log = config.ConfigureLogging()
		},
		RunE: runConvert,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output CSV file path (defaults to input filename with .csv extension)")
	rootCmd.Flags().StringVar(&promptFlag, "prompt", "", "Path to a file containing the extraction prompt (defaults to a built-in prompt)")
	rootCmd.Flags().StringVar(&modelFlag, "model", "gemini-1.5-flash", "Gemini model name to use for extraction")
	rootCmd.Flags().IntVar(&maxWorkersFlag, "max-workers", 0, "Bound on concurrent per-page LLM calls (0 = auto)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		Log.WithError(err).Error("ledgerctl failed")
		os.Exit(1)
	}
}

const defaultPrompt = `You are extracting transaction rows from a bank statement page.
Return a JSON array of objects, one per transaction row, using the exact
column headers present in the statement text below. Do not invent columns.

${textContent}`

func runConvert(cmd *cobra.Command, args []string) error {
	engine := config.LoadEngine()
	if engine.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY must be set")
	}

	ctx := cmd.Context()
	completer, err := llmtext.NewGeminiCompleter(ctx, engine.GeminiAPIKey, modelFlag)
	if err != nil {
		return fmt.Errorf("initialize LLM client: %w", err)
	}

	promptText := defaultPrompt
	if promptFlag != "" {
		raw, err := os.ReadFile(promptFlag)
		if err != nil {
			return fmt.Errorf("read prompt file: %w", err)
		}
		promptText = string(raw)
	}

	prompts := promptstore.NewMemoryStore(models.Prompt{ID: "default", Text: promptText, IsDefault: true, IsActive: true})
	runs := store.NewMemoryStore()

	o := &orchestrator.Orchestrator{
		Prompts:    prompts,
		Completer:  completer,
		Classifier: completer,
		Runs:       runs,
		Config: orchestrator.Config{
			MaxWorkers:       maxWorkersFlag,
			LLMTimeout:       engine.LLMTimeout,
			PipelineTimeout:  engine.PipelineTimeout,
			ModelTag:         modelFlag,
			BalanceTolerance: engine.BalanceTolerance,
		},
	}

	for _, inputPath := range args {
		if err := processFile(ctx, o, inputPath, outputFlag); err != nil {
			fmt.Fprintf(os.Stderr, "error processing %s: %v\n", inputPath, err)
			os.Exit(1)
		}
	}
	return nil
}

func processFile(ctx context.Context, o *orchestrator.Orchestrator, inputPath, outputPath string) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if ext := strings.ToLower(filepath.Ext(inputPath)); ext != ".pdf" {
		return fmt.Errorf("expected .pdf file, got %q", ext)
	}

	fmt.Printf("Processing: %s\n", inputPath)

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input file: %w", err)
	}

	o.Config.SourceName = filepath.Base(inputPath)
	result, err := o.Process(ctx, data)
	if err != nil {
		return err
	}

	fmt.Printf("  Found %d transaction(s) (%d row(s) rejected during normalization)\n", len(result.Rows), result.RowsRejected)
	if len(result.PageErrors) > 0 {
		fmt.Printf("  Warning: %d page(s) failed extraction and were skipped\n", len(result.PageErrors))
	}
	if result.Issuer != nil {
		fmt.Printf("  Classified issuer: %s\n", *result.Issuer)
	}

	outPath := outputPath
	if outPath == "" {
		base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
		outPath = base + ".csv"
	}

	if err := writer.WriteToFile(outPath, result.Rows); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}
	fmt.Printf("  Output: %s\n", outPath)
	fmt.Println("  Done.")
	return nil
}
