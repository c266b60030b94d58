package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gazette-monitor/internal/editions"
	"gazette-monitor/internal/llm"
	"gazette-monitor/internal/notify"
	"gazette-monitor/internal/portal"
	"gazette-monitor/internal/shared/storage/object/local"
	"gazette-monitor/internal/shared/testutil"
)

var testEdition = portal.Edition{
	ID:          "1834",
	Number:      22,
	Year:        2026,
	Label:       "Edição 22 / Ano 11 - 14/10/2026",
	DetailURL:   "https://atos.teresopolis.rj.gov.br/diario/1834",
	DownloadURL: "https://atos.teresopolis.rj.gov.br/api/editions/download/1834",
}

type fakeLocator struct {
	ed  portal.Edition
	err error
}

func (f fakeLocator) Latest(ctx context.Context) (portal.Edition, error) { return f.ed, f.err }

type fakeDownloader struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeDownloader) Download(ctx context.Context, ed portal.Edition) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

func (f *fakeDownloader) Name() string { return "fake" }

type fakeLLM struct {
	content string
	err     error
	inputs  []llm.SummarizeInput
}

func (f *fakeLLM) Summarize(ctx context.Context, input llm.SummarizeInput) (llm.Summary, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return llm.Summary{}, f.err
	}
	return llm.Summary{Content: f.content, Model: "fake-model", HasOpportunities: !llm.NoOpportunities(f.content)}, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	msgs []notify.Message
}

func (f *fakeNotifier) Notify(ctx context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fixture struct {
	svc        *Service
	repo       *editions.MemoryRepo
	downloader *fakeDownloader
	llm        *fakeLLM
	notifier   *fakeNotifier
	storeDir   string
}

func gazettePDF() []byte {
	return testutil.PDF(
		testutil.Lines("AVISO DE LICITACAO PREGAO ELETRONICO 45/2026 OBJETO AQUISICAO DE MERENDA ESCOLAR", 20),
		testutil.Lines("EXTRATO DE CONTRATO 12/2026 REFORMA DA UNIDADE DE SAUDE VALOR 350 MIL", 20),
	)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		repo:       editions.NewMemoryRepo(),
		downloader: &fakeDownloader{data: gazettePDF()},
		llm:        &fakeLLM{content: "🚨 **[Alimentação]**\n📦 **Objeto:** Merenda escolar\n💰 **Valor:** R$ 350.000,00"},
		notifier:   &fakeNotifier{},
		storeDir:   dir,
	}
	f.svc = &Service{
		Locator:    fakeLocator{ed: testEdition},
		Downloader: f.downloader,
		Store:      local.New(dir),
		LLM:        f.llm,
		Notifiers:  []notify.Notifier{f.notifier},
		Repo:       f.repo,
		Options: Options{
			MonitorName:   "Monitor Teresópolis",
			PromptVersion: "v1",
			MaxTextChars:  100000,
			MinTextChars:  100,
			MinPDFBytes:   2000,
		},
	}
	return f
}

func TestRunNotifiesOpportunities(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Run(context.Background(), RunOptions{RequestID: "req-1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != editions.StatusNotified || !res.HasOpportunities || res.Skipped {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", f.notifier.count())
	}
	msg := f.notifier.msgs[0]
	if !msg.HasOpportunities || msg.Link != testEdition.DetailURL || msg.MonitorName != "Monitor Teresópolis" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !strings.Contains(res.Message, "🚀 *Oportunidades!*") {
		t.Fatalf("unexpected rendered message %q", res.Message)
	}
	if len(f.llm.inputs) != 1 || !strings.Contains(f.llm.inputs[0].Text, "MERENDA") {
		t.Fatalf("llm did not receive extracted text: %+v", f.llm.inputs)
	}

	rec, err := f.repo.GetByEditionID(context.Background(), "1834")
	if err != nil {
		t.Fatalf("GetByEditionID: %v", err)
	}
	if rec.Status != editions.StatusNotified || rec.NotifiedAt == nil || rec.SHA256 == "" || rec.Pages != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}
	for _, key := range []string{rec.PDFKey, rec.TextKey} {
		if _, err := os.Stat(filepath.Join(f.storeDir, filepath.FromSlash(key))); err != nil {
			t.Fatalf("expected archived artifact %s: %v", key, err)
		}
	}
}

func TestRunWithoutOpportunities(t *testing.T) {
	f := newFixture(t)
	f.llm.content = "ND"

	res, err := f.svc.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.HasOpportunities || res.Status != editions.StatusNotified {
		t.Fatalf("unexpected result %+v", res)
	}
	if !strings.Contains(res.Message, "Nenhuma oportunidade comercial hoje") {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("the no-opportunity message must still be posted")
	}
}

func TestRunSkipsNotifiedEdition(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	res, err := f.svc.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !res.Skipped || res.Status != editions.StatusNotified {
		t.Fatalf("expected skip, got %+v", res)
	}
	if f.downloader.calls != 1 || f.notifier.count() != 1 {
		t.Fatalf("skipped run must not download or notify")
	}

	res, err = f.svc.Run(context.Background(), RunOptions{Force: true})
	if err != nil {
		t.Fatalf("forced Run: %v", err)
	}
	if res.Skipped || f.notifier.count() != 2 {
		t.Fatalf("forced run must reprocess")
	}
}

func TestRunNoReadableText(t *testing.T) {
	f := newFixture(t)
	f.downloader.data = testutil.PDF(append([]string{"Pagina em branco"}, testutil.Lines("", 400)...))

	res, err := f.svc.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != editions.StatusNoText {
		t.Fatalf("expected no_text, got %+v", res)
	}
	if len(f.llm.inputs) != 0 || f.notifier.count() != 0 {
		t.Fatalf("no_text runs must not summarize or notify")
	}
	rec, _ := f.repo.GetByEditionID(context.Background(), "1834")
	if rec.Status != editions.StatusNoText {
		t.Fatalf("unexpected record status %q", rec.Status)
	}
}

func TestRunDryRunDoesNotNotify(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Run(context.Background(), RunOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != editions.StatusDryRun || res.Message == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.notifier.count() != 0 {
		t.Fatalf("dry runs must not notify")
	}
	rec, _ := f.repo.GetByEditionID(context.Background(), "1834")
	if rec.Status != editions.StatusDryRun {
		t.Fatalf("unexpected record status %q", rec.Status)
	}

	// A later real run still processes the edition.
	if res, err := f.svc.Run(context.Background(), RunOptions{}); err != nil || res.Skipped {
		t.Fatalf("real run after dry run: %+v %v", res, err)
	}
}

func TestRunLLMFailureDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	f.llm.err = errors.New("openai http status 401: invalid api key")

	res, err := f.svc.Run(context.Background(), RunOptions{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if StageOf(err) != StageSummarize || res.Status != editions.StatusFailed {
		t.Fatalf("unexpected failure stage=%q result=%+v", StageOf(err), res)
	}
	if Retryable(err) {
		t.Fatalf("auth failures are not retryable")
	}
	if f.notifier.count() != 0 {
		t.Fatalf("must not post a false 'no opportunities' message")
	}
	rec, _ := f.repo.GetByEditionID(context.Background(), "1834")
	if rec.Status != editions.StatusFailed || !strings.Contains(rec.Error, "invalid api key") {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestRunLocateFailure(t *testing.T) {
	f := newFixture(t)
	f.svc.Locator = fakeLocator{err: portal.ErrNoEdition}

	_, err := f.svc.Run(context.Background(), RunOptions{})
	if !errors.Is(err, portal.ErrNoEdition) || StageOf(err) != StageLocate {
		t.Fatalf("expected locate failure, got %v", err)
	}
	if !Retryable(err) {
		t.Fatalf("locate failures are retryable")
	}
}

func TestRunRejectsInvalidDownload(t *testing.T) {
	f := newFixture(t)
	f.downloader.data = []byte("<html>erro</html>")

	_, err := f.svc.Run(context.Background(), RunOptions{})
	if !errors.Is(err, portal.ErrInvalidPDF) || StageOf(err) != StageDownload {
		t.Fatalf("expected invalid pdf failure, got %v", err)
	}
	if Retryable(err) {
		t.Fatalf("invalid pdf is not retryable")
	}
}

func TestRunNotifyFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("telegram down")

	_, err := f.svc.Run(context.Background(), RunOptions{})
	if StageOf(err) != StageNotify {
		t.Fatalf("expected notify failure, got %v", err)
	}
	rec, _ := f.repo.GetByEditionID(context.Background(), "1834")
	if rec.Status != editions.StatusFailed || rec.Done() {
		t.Fatalf("failed notifications must leave the edition retryable: %+v", rec)
	}
}

func TestRunPartialNotifyCountsAsNotified(t *testing.T) {
	f := newFixture(t)
	broken := &fakeNotifier{err: errors.New("smtp down")}
	f.svc.Notifiers = append(f.svc.Notifiers, broken)

	res, err := f.svc.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != editions.StatusNotified {
		t.Fatalf("unexpected status %q", res.Status)
	}
	rec, _ := f.repo.GetByEditionID(context.Background(), "1834")
	if !strings.Contains(rec.Error, "smtp down") {
		t.Fatalf("partial failure should be recorded, got %q", rec.Error)
	}
}

func TestRunTruncatesText(t *testing.T) {
	f := newFixture(t)
	f.svc.Options.MaxTextChars = 150

	if _, err := f.svc.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len([]rune(f.llm.inputs[0].Text)); got != 150 {
		t.Fatalf("expected 150 characters sent to the model, got %d", got)
	}
}

func TestRunFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "diario 1834.pdf")
	if err := os.WriteFile(path, gazettePDF(), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	res, err := f.svc.RunFile(context.Background(), path, RunOptions{DryRun: true})
	if err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	if res.Edition.ID != "file-diario_1834" || res.Status != editions.StatusDryRun {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.downloader.calls != 0 || f.notifier.count() != 0 {
		t.Fatalf("file runs must not download; dry runs must not notify")
	}
	if _, err := f.repo.GetByEditionID(context.Background(), res.Edition.ID); !errors.Is(err, editions.ErrNotFound) {
		t.Fatalf("file runs must not be recorded")
	}

	if _, err := f.svc.RunFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), RunOptions{}); StageOf(err) != StageDownload {
		t.Fatalf("expected download stage error for missing file, got %v", err)
	}
}
