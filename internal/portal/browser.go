package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"gazette-monitor/internal/shared/telemetry"
)

// BrowserOptions configures headless Chrome sessions against the portal.
type BrowserOptions struct {
	PortalURL    string
	DownloadPath string
	// RemoteURL, when set, attaches to an existing browser over CDP instead of launching one.
	RemoteURL   string
	Headless    bool
	UserAgent   string
	Wait        time.Duration
	PageLoad    time.Duration
	ClickSettle time.Duration
}

// Browser locates and downloads editions by driving a headless Chrome.
// Every call opens its own session and closes it before returning.
type Browser struct {
	opts BrowserOptions
}

// NewBrowser returns a Browser with zero durations replaced by defaults.
func NewBrowser(opts BrowserOptions) *Browser {
	if opts.Wait <= 0 {
		opts.Wait = 30 * time.Second
	}
	if opts.PageLoad <= 0 {
		opts.PageLoad = 90 * time.Second
	}
	if opts.ClickSettle <= 0 {
		opts.ClickSettle = 8 * time.Second
	}
	if strings.TrimSpace(opts.DownloadPath) == "" {
		opts.DownloadPath = "/api/editions/download/"
	}
	return &Browser{opts: opts}
}

// session starts a browser tab. The browser is allocated on the session context itself
// so per-step timeouts derived from it never tear the browser down.
func (b *Browser) session(ctx context.Context) (context.Context, context.CancelFunc, error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if b.opts.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, b.opts.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", b.opts.Headless),
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.DisableGPU,
			chromedp.WindowSize(1920, 1080),
			chromedp.Flag("ignore-certificate-errors", true),
		)
		if b.opts.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(b.opts.UserAgent))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
	}
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))
	cancel := func() {
		cancelBrowser()
		cancelAlloc()
	}
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}
	return browserCtx, cancel, nil
}

// Latest opens the listing page, picks the edition with the largest number and resolves its id.
func (b *Browser) Latest(ctx context.Context) (Edition, error) {
	sctx, cancel, err := b.session(ctx)
	if err != nil {
		return Edition{}, err
	}
	defer cancel()

	var page string
	loadCtx, cancelLoad := context.WithTimeout(sctx, b.opts.PageLoad)
	err = chromedp.Run(loadCtx, chromedp.Navigate(b.opts.PortalURL))
	cancelLoad()
	if err != nil {
		return Edition{}, fmt.Errorf("open portal %s: %w", b.opts.PortalURL, err)
	}

	waitCtx, cancelWait := context.WithTimeout(sctx, b.opts.Wait)
	err = chromedp.Run(waitCtx,
		chromedp.WaitVisible(EditionXPath, chromedp.BySearch),
		chromedp.OuterHTML("html", &page, chromedp.ByQuery),
	)
	cancelWait()
	if err != nil {
		return Edition{}, fmt.Errorf("%w: listing did not render: %v", ErrNoEdition, err)
	}

	cands, err := ParseListing(page)
	if err != nil {
		return Edition{}, err
	}
	best, number, year, ok := SelectLatest(cands)
	if !ok {
		return Edition{}, fmt.Errorf("%w: %d candidates, none parseable", ErrNoEdition, len(cands))
	}
	telemetry.Info("portal.edition.selected", map[string]any{
		"label":      best.Label,
		"number":     number,
		"candidates": len(cands),
	})

	detailURL := ResolveHref(b.opts.PortalURL, best.Href)
	id, err := IDFromDetailURL(detailURL)
	if err != nil {
		if best.Index < 0 {
			return Edition{}, err
		}
		detailURL, err = b.click(sctx, best.Index)
		if err != nil {
			return Edition{}, err
		}
		id, err = IDFromDetailURL(detailURL)
		if err != nil {
			return Edition{}, err
		}
	}

	return Edition{
		ID:          id,
		Number:      number,
		Year:        year,
		Label:       best.Label,
		DetailURL:   detailURL,
		DownloadURL: DownloadURL(b.opts.PortalURL, b.opts.DownloadPath, id),
	}, nil
}

// click activates the index-th EditionXPath match and returns the URL after navigation settles.
func (b *Browser) click(ctx context.Context, index int) (string, error) {
	sel := fmt.Sprintf("(%s)[%d]", EditionXPath, index+1)
	var location string
	clickCtx, cancel := context.WithTimeout(ctx, b.opts.PageLoad)
	defer cancel()
	err := chromedp.Run(clickCtx,
		chromedp.Click(sel, chromedp.BySearch),
		chromedp.Sleep(b.opts.ClickSettle),
		chromedp.Location(&location),
	)
	if err != nil {
		return "", fmt.Errorf("%w: click edition: %v", ErrEditionID, err)
	}
	return location, nil
}

// Download fetches the edition PDF from inside the detail page so the portal's cookies apply.
func (b *Browser) Download(ctx context.Context, ed Edition) ([]byte, error) {
	sctx, cancel, err := b.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer cancel()

	runCtx, cancelRun := context.WithTimeout(sctx, b.opts.PageLoad)
	defer cancelRun()

	page := ed.DetailURL
	if page == "" {
		page = b.opts.PortalURL
	}
	var result string
	err = chromedp.Run(runCtx,
		chromedp.Navigate(page),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(fetchScript(ed.DownloadURL), &result, awaitPromise),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: browser fetch: %v", ErrDownload, err)
	}
	return DecodeDataURL(result)
}

// Name identifies the downloader in logs.
func (b *Browser) Name() string { return "browser" }

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func fetchScript(downloadURL string) string {
	quoted, _ := json.Marshal(downloadURL)
	return fmt.Sprintf(`(async () => {
  try {
    const resp = await fetch(%s, {credentials: "include"});
    if (!resp.ok) return "ERRO: HTTP " + resp.status;
    const blob = await resp.blob();
    return await new Promise((resolve) => {
      const reader = new FileReader();
      reader.onloadend = () => resolve(reader.result);
      reader.onerror = () => resolve("ERRO: leitura do arquivo");
      reader.readAsDataURL(blob);
    });
  } catch (e) {
    return "ERRO: " + e;
  }
})()`, quoted)
}
