package main

// Run the monitor once:
//   go run ./cmd/monitor -dry-run
//   go run ./cmd/monitor -pdf ./edicao.pdf

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"gazette-monitor/internal/bootstrap"
	"gazette-monitor/internal/llm"
	"gazette-monitor/internal/monitor"
	"gazette-monitor/internal/shared/config"
	"gazette-monitor/internal/shared/telemetry"
)

type runner interface {
	Run(ctx context.Context, opts monitor.RunOptions) (monitor.Result, error)
	RunFile(ctx context.Context, path string, opts monitor.RunOptions) (monitor.Result, error)
}

func main() {
	cfg := config.Load()

	force := flag.Bool("force", false, "Process the latest edition even if it was already notified")
	dryRun := flag.Bool("dry-run", false, "Summarize without sending notifications")
	pdfPath := flag.String("pdf", "", "Analyse a local PDF instead of the portal (optional)")
	promptVersion := flag.String("prompt-version", cfg.PromptVersion, "Prompt version ("+strings.Join(llm.PromptVersions(), ", ")+")")
	flag.Parse()

	// Keep stdout for the JSON result.
	telemetry.SetOutput(os.Stderr)

	cfg.PromptVersion = *promptVersion
	app, err := bootstrap.Build(cfg)
	if err != nil {
		exitErr(fmt.Sprintf("bootstrap: %v", err))
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := monitor.RunOptions{Force: *force, DryRun: *dryRun, RequestID: "cli-" + uuid.NewString()}
	if err := run(ctx, app.Monitor, *pdfPath, opts, os.Stdout); err != nil {
		stop()
		app.Close()
		exitErr(err.Error())
	}
}

func run(ctx context.Context, svc runner, pdfPath string, opts monitor.RunOptions, out io.Writer) error {
	var (
		res monitor.Result
		err error
	)
	if strings.TrimSpace(pdfPath) != "" {
		res, err = svc.RunFile(ctx, pdfPath, opts)
	} else {
		res, err = svc.Run(ctx, opts)
	}
	if err != nil {
		return fmt.Errorf("monitor run: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report{
		RunID:            res.RunID,
		EditionID:        res.Edition.ID,
		EditionNumber:    res.Edition.Number,
		Label:            res.Edition.Label,
		Status:           res.Status,
		Skipped:          res.Skipped,
		HasOpportunities: res.HasOpportunities,
		DurationMs:       res.Duration.Milliseconds(),
		Message:          res.Message,
	})
}

type report struct {
	RunID            string `json:"runId"`
	EditionID        string `json:"editionId"`
	EditionNumber    int    `json:"editionNumber,omitempty"`
	Label            string `json:"label,omitempty"`
	Status           string `json:"status"`
	Skipped          bool   `json:"skipped"`
	HasOpportunities bool   `json:"hasOpportunities"`
	DurationMs       int64  `json:"durationMs"`
	Message          string `json:"message,omitempty"`
}

func exitErr(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
