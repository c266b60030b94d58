package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gazette-monitor/internal/editions"
	"gazette-monitor/internal/extract"
	"gazette-monitor/internal/llm"
	"gazette-monitor/internal/notify"
	"gazette-monitor/internal/portal"
	"gazette-monitor/internal/shared/metrics"
	"gazette-monitor/internal/shared/storage/object"
	"gazette-monitor/internal/shared/telemetry"
	"gazette-monitor/internal/shared/util"
)

const (
	pdfFileName  = "edition.pdf"
	textFileName = "edition.txt"
)

// Locator finds the latest published edition.
type Locator interface {
	Latest(ctx context.Context) (portal.Edition, error)
}

// Options holds the run thresholds and labels.
type Options struct {
	MonitorName   string
	PromptVersion string
	MaxTextChars  int
	MinTextChars  int
	MinPDFBytes   int
}

// Service runs the locate, download, extract, summarize and notify pipeline.
type Service struct {
	Locator    Locator
	Downloader portal.Downloader
	Store      object.ObjectStore
	LLM        llm.Client
	Notifiers  []notify.Notifier
	Repo       editions.Repo
	Options    Options

	// mu keeps runs strictly sequential within a process.
	mu sync.Mutex
}

// RunOptions controls a single run.
type RunOptions struct {
	// Force processes the edition even if it was already notified.
	Force bool
	// DryRun formats the message without notifying anyone.
	DryRun    bool
	RequestID string
}

// Result describes the outcome of a run.
type Result struct {
	RunID            string           `json:"runId"`
	Edition          portal.Edition   `json:"edition"`
	Status           string           `json:"status"`
	Skipped          bool             `json:"skipped"`
	HasOpportunities bool             `json:"hasOpportunities"`
	Message          string           `json:"message,omitempty"`
	Duration         time.Duration    `json:"duration"`
	Record           *editions.Record `json:"-"`
}

type run struct {
	id      string
	opts    RunOptions
	start   time.Time
	persist bool
	rec     editions.Record
}

// Run processes the latest edition on the portal.
func (s *Service) Run(ctx context.Context, opts RunOptions) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.begin(opts)

	ed, err := s.Locator.Latest(ctx)
	if err != nil {
		return s.fail(ctx, r, Result{}, stageErr(StageLocate, err))
	}
	res := Result{RunID: r.id, Edition: ed}
	s.log(r, "monitor.edition.located", map[string]any{
		"edition_id": ed.ID,
		"number":     ed.Number,
		"label":      ed.Label,
	})

	existing, err := s.Repo.GetByEditionID(ctx, ed.ID)
	switch {
	case err == nil:
		if existing.Done() && !opts.Force {
			metrics.IncRunsSkipped()
			res.Status = existing.Status
			res.Skipped = true
			res.HasOpportunities = existing.HasOpportunities
			res.Duration = time.Since(r.start)
			res.Record = &existing
			s.log(r, "monitor.run.skipped", map[string]any{"edition_id": ed.ID, "status": existing.Status})
			return res, nil
		}
		r.rec = existing
		// A dry run must not downgrade a finished record.
		r.persist = !(opts.DryRun && existing.Done())
	case errors.Is(err, editions.ErrNotFound):
		r.persist = true
	default:
		return s.fail(ctx, r, res, stageErr(StageRecord, err))
	}

	r.rec.EditionID = ed.ID
	r.rec.Number = ed.Number
	r.rec.Year = ed.Year
	r.rec.Label = ed.Label
	r.rec.DetailURL = ed.DetailURL
	r.rec.DownloadURL = ed.DownloadURL
	r.rec.StorageProvider = s.Store.Provider()
	r.rec.Status = editions.StatusProcessing
	r.rec.Error = ""
	if err := s.save(ctx, r); err != nil {
		return s.fail(ctx, r, res, stageErr(StageRecord, err))
	}

	data, err := s.Downloader.Download(ctx, ed)
	if err != nil {
		return s.fail(ctx, r, res, stageErr(StageDownload, err))
	}
	if err := portal.ValidatePDF(data, s.Options.MinPDFBytes); err != nil {
		return s.fail(ctx, r, res, stageErr(StageDownload, err))
	}
	return s.process(ctx, r, res, data)
}

// RunFile analyses a local PDF without touching the portal or the edition history.
func (s *Service) RunFile(ctx context.Context, path string, opts RunOptions) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.begin(opts)
	name := filepath.Base(path)
	id, err := util.SanitizeFileName(strings.TrimSuffix(name, filepath.Ext(name)))
	if err != nil {
		return s.fail(ctx, r, Result{}, stageErr(StageDownload, fmt.Errorf("pdf path %q: %w", path, err)))
	}
	ed := portal.Edition{
		ID:        "file-" + id,
		Label:     name,
		DetailURL: path,
	}
	res := Result{RunID: r.id, Edition: ed}
	r.rec = editions.Record{EditionID: ed.ID, Label: ed.Label, DetailURL: path, StorageProvider: s.Store.Provider()}

	data, err := os.ReadFile(path)
	if err != nil {
		return s.fail(ctx, r, res, stageErr(StageDownload, err))
	}
	if err := portal.ValidatePDF(data, s.Options.MinPDFBytes); err != nil {
		return s.fail(ctx, r, res, stageErr(StageDownload, err))
	}
	return s.process(ctx, r, res, data)
}

func (s *Service) process(ctx context.Context, r *run, res Result, data []byte) (Result, error) {
	ed := res.Edition

	pdfKey := object.EditionKey(ed.ID, pdfFileName)
	size, err := s.Store.Put(ctx, pdfKey, "application/pdf", bytes.NewReader(data))
	if err != nil {
		return s.fail(ctx, r, res, stageErr(StageStore, err))
	}
	r.rec.PDFKey = pdfKey
	r.rec.SizeBytes = size
	r.rec.SHA256 = util.SHA256Hex(data)

	doc, err := extract.TextFromPDF(ctx, data)
	if err != nil {
		return s.fail(ctx, r, res, stageErr(StageExtract, err))
	}
	text := extract.Truncate(doc.Text, s.Options.MaxTextChars)
	r.rec.Pages = doc.Pages
	r.rec.TextChars = len([]rune(text))

	textKey := object.EditionKey(ed.ID, textFileName)
	if _, err := s.Store.Put(ctx, textKey, "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		return s.fail(ctx, r, res, stageErr(StageStore, err))
	}
	r.rec.TextKey = textKey

	if !extract.Readable(text, s.Options.MinTextChars) {
		r.rec.Status = editions.StatusNoText
		if err := s.save(ctx, r); err != nil {
			return s.fail(ctx, r, res, stageErr(StageRecord, err))
		}
		s.log(r, "monitor.pdf.no_text", map[string]any{
			"edition_id": ed.ID,
			"text_chars": r.rec.TextChars,
			"pages":      doc.Pages,
		})
		res.Status = editions.StatusNoText
		return s.finish(r, res), nil
	}

	summary, err := llm.NewRetrying(s.LLM, r.id).Summarize(ctx, llm.SummarizeInput{
		Text:          text,
		PromptVersion: s.Options.PromptVersion,
		MonitorName:   s.Options.MonitorName,
	})
	if err != nil {
		return s.fail(ctx, r, res, stageErr(StageSummarize, err))
	}
	r.rec.Summary = summary.Content
	r.rec.Model = summary.Model
	r.rec.HasOpportunities = summary.HasOpportunities
	res.HasOpportunities = summary.HasOpportunities

	msg := notify.Message{
		MonitorName:      s.Options.MonitorName,
		Summary:          summary.Content,
		HasOpportunities: summary.HasOpportunities,
		Link:             ed.DetailURL,
	}
	res.Message = msg.Markdown()

	if r.opts.DryRun {
		r.rec.Status = editions.StatusDryRun
		if err := s.save(ctx, r); err != nil {
			return s.fail(ctx, r, res, stageErr(StageRecord, err))
		}
		res.Status = editions.StatusDryRun
		return s.finish(r, res), nil
	}

	if len(s.Notifiers) == 0 {
		return s.fail(ctx, r, res, stageErr(StageNotify, notify.ErrNotConfigured))
	}
	sent, err := notify.Broadcast(ctx, s.Notifiers, msg)
	if sent == 0 {
		return s.fail(ctx, r, res, stageErr(StageNotify, err))
	}
	if err != nil {
		// Partial delivery still counts as notified.
		r.rec.Error = sanitizeError(err)
	}
	now := time.Now().UTC()
	r.rec.NotifiedAt = &now
	r.rec.Status = editions.StatusNotified
	if err := s.save(ctx, r); err != nil {
		return s.fail(ctx, r, res, stageErr(StageRecord, err))
	}
	res.Status = editions.StatusNotified
	return s.finish(r, res), nil
}

func (s *Service) begin(opts RunOptions) *run {
	r := &run{id: uuid.NewString(), opts: opts, start: time.Now()}
	metrics.IncRunsStarted()
	s.log(r, "monitor.run.started", map[string]any{"force": opts.Force, "dry_run": opts.DryRun})
	return r
}

func (s *Service) save(ctx context.Context, r *run) error {
	if !r.persist {
		return nil
	}
	saved, err := s.Repo.Upsert(ctx, r.rec)
	if err != nil {
		return err
	}
	r.rec = saved
	return nil
}

func (s *Service) finish(r *run, res Result) Result {
	res.Duration = time.Since(r.start)
	rec := r.rec
	res.Record = &rec
	metrics.IncRunsCompleted()
	metrics.ObserveRunDurationMs(durationMs(res.Duration))
	s.log(r, "monitor.run.completed", map[string]any{
		"edition_id":        res.Edition.ID,
		"status":            res.Status,
		"has_opportunities": res.HasOpportunities,
		"duration_ms":       durationMs(res.Duration),
	})
	return res
}

func (s *Service) fail(ctx context.Context, r *run, res Result, err error) (Result, error) {
	res.RunID = r.id
	res.Status = editions.StatusFailed
	res.Duration = time.Since(r.start)
	if r.persist && r.rec.EditionID != "" && StageOf(err) != StageRecord {
		r.rec.Status = editions.StatusFailed
		r.rec.Error = sanitizeError(err)
		// The run context may already be done; recording the failure must not depend on it.
		if saveErr := s.save(context.WithoutCancel(ctx), r); saveErr != nil {
			telemetry.Error("monitor.record.failed", map[string]any{
				"run_id":     r.id,
				"edition_id": r.rec.EditionID,
				"error":      saveErr.Error(),
			})
		}
	}
	metrics.IncRunsFailed()
	metrics.ObserveRunDurationMs(durationMs(res.Duration))
	telemetry.Error("monitor.run.failed", map[string]any{
		"run_id":      r.id,
		"request_id":  r.opts.RequestID,
		"edition_id":  res.Edition.ID,
		"stage":       StageOf(err),
		"retryable":   Retryable(err),
		"error":       sanitizeError(err),
		"duration_ms": durationMs(res.Duration),
	})
	return res, fmt.Errorf("monitor run %s: %w", r.id, err)
}

func (s *Service) log(r *run, msg string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["run_id"] = r.id
	if r.opts.RequestID != "" {
		fields["request_id"] = r.opts.RequestID
	}
	telemetry.Info(msg, fields)
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
