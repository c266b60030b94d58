package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"gazette-monitor/internal/shared/telemetry"
)

// Downloader fetches the PDF bytes of an edition.
type Downloader interface {
	Download(ctx context.Context, ed Edition) ([]byte, error)
	Name() string
}

// HTTPDownloader fetches editions directly from the download endpoint.
type HTTPDownloader struct {
	client   *resty.Client
	minBytes int
}

// NewHTTPDownloader returns a downloader that sends browser-like headers.
func NewHTTPDownloader(userAgent string, timeout time.Duration, minBytes int) *HTTPDownloader {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/pdf,*/*").
		SetRetryCount(0)
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &HTTPDownloader{client: client, minBytes: minBytes}
}

// Download returns the PDF body after validating it.
func (d *HTTPDownloader) Download(ctx context.Context, ed Edition) ([]byte, error) {
	req := d.client.R().SetContext(ctx)
	if ed.DetailURL != "" {
		req.SetHeader("Referer", ed.DetailURL)
	}
	resp, err := req.Get(ed.DownloadURL)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrDownload, ed.DownloadURL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: get %s: http status %d", ErrDownload, ed.DownloadURL, resp.StatusCode())
	}
	body := resp.Body()
	if err := ValidatePDF(body, d.minBytes); err != nil {
		return nil, err
	}
	return body, nil
}

// Name identifies the downloader in logs.
func (d *HTTPDownloader) Name() string { return "http" }

// FallbackDownloader tries Primary and, when it fails, Secondary.
// The Secondary payload is validated with the same minimum size.
type FallbackDownloader struct {
	Primary   Downloader
	Secondary Downloader
	MinBytes  int
}

// Download returns the first successful payload.
func (f FallbackDownloader) Download(ctx context.Context, ed Edition) ([]byte, error) {
	data, err := f.Primary.Download(ctx, ed)
	if err == nil {
		return data, nil
	}
	if f.Secondary == nil || ctx.Err() != nil {
		return nil, err
	}
	telemetry.Warn("portal.download.fallback", map[string]any{
		"edition_id": ed.ID,
		"primary":    f.Primary.Name(),
		"secondary":  f.Secondary.Name(),
		"error":      err.Error(),
	})
	data, err2 := f.Secondary.Download(ctx, ed)
	if err2 != nil {
		return nil, errors.Join(err, err2)
	}
	if err := ValidatePDF(data, f.MinBytes); err != nil {
		return nil, err
	}
	return data, nil
}

// Name identifies the downloader chain in logs.
func (f FallbackDownloader) Name() string {
	if f.Secondary == nil {
		return f.Primary.Name()
	}
	return f.Primary.Name() + "+" + f.Secondary.Name()
}
