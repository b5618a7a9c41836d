// Command ledgerd serves the statement ingestion pipeline over HTTP,
// backed by Postgres-persisted prompts and runs.
package main

import (
	"context"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-ledger/internal/api"
	"github.com/insightdelivered/statement-ledger/internal/config"
	"github.com/insightdelivered/statement-ledger/internal/llmtext"
	"github.com/insightdelivered/statement-ledger/internal/orchestrator"
	"github.com/insightdelivered/statement-ledger/internal/promptstore"
	"github.com/insightdelivered/statement-ledger/internal/store"
)

var (
	// Log is the shared logger instance for this command.
	Log = logrus.New()

	engine config.Engine

	rootCmd = &cobra.Command{
		Use:   "ledgerd",
		Short: "Serve the bank statement ingestion and reconciliation pipeline over HTTP.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv()
			Log = config.ConfigureLogging()
			engine = config.LoadEngine()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		Log.WithError(err).Fatal("ledgerd exited")
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	if engine.GeminiAPIKey == "" {
		Log.Warn("GEMINI_API_KEY is unset; extraction calls will fail")
	}
	if engine.DatabaseURL == "" {
		Log.Fatal("DATABASE_URL is required for ledgerd; use ledgerctl for a database-free run")
	}

	pool, err := pgxpool.New(ctx, engine.DatabaseURL)
	if err != nil {
		Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	prompts := promptstore.NewPostgresStore(pool)
	runs := store.NewPostgresStore(pool)

	completer, err := llmtext.NewGeminiCompleter(ctx, engine.GeminiAPIKey, "gemini-1.5-flash")
	if err != nil {
		Log.WithError(err).Fatal("failed to initialize the LLM client")
	}

	if err := os.MkdirAll(engine.ArtifactDir, 0o755); err != nil {
		Log.WithError(err).Fatal("failed to create artifact directory")
	}

	h := &api.Handler{
		Orchestrator: &orchestrator.Orchestrator{
			Prompts:    prompts,
			Completer:  completer,
			Classifier: completer,
			Runs:       runs,
			Config: orchestrator.Config{
				MaxWorkers:       engine.MaxWorkers,
				LLMTimeout:       engine.LLMTimeout,
				PipelineTimeout:  engine.PipelineTimeout,
				SourceName:       "upload",
				ModelTag:         "gemini-1.5-flash",
				BalanceTolerance: engine.BalanceTolerance,
			},
		},
		Runs:        runs,
		ArtifactDir: engine.ArtifactDir,
	}

	app := fiber.New(fiber.Config{
		BodyLimit: int(engine.MaxUploadBytes),
	})
	h.RegisterRoutes(app)

	Log.WithField("port", engine.Port).Info("ledgerd listening")
	return app.Listen(":" + engine.Port)
}
