package portal

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrNoEdition is returned when the listing has no recognizable edition.
	ErrNoEdition = errors.New("no edition found on portal")
	// ErrEditionID is returned when the edition id cannot be read from a URL.
	ErrEditionID = errors.New("edition id not found")
	// ErrDownload is returned when the PDF cannot be fetched.
	ErrDownload = errors.New("edition download failed")
	// ErrInvalidPDF is returned when the payload is not a usable PDF.
	ErrInvalidPDF = errors.New("invalid edition pdf")
)

// Edition identifies one published gazette edition.
type Edition struct {
	ID          string
	Number      int
	Year        int
	Label       string
	DetailURL   string
	DownloadURL string
}

// Candidate is one listing element that looks like an edition label.
// Index is the element's position among XPath matches, or -1 when it came from an anchor scan.
type Candidate struct {
	Label string
	Href  string
	Index int
}

var (
	editionNumberRe = regexp.MustCompile(`(?i)edi(?:ç|c)(?:ã|a)o\s*(?:n[º°o.]*\s*)?(\d+)`)
	yearRe          = regexp.MustCompile(`(?:^|\D)(2\d{3})(?:\D|$)`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// ParseLabel reads the edition number and publication year from a label such as
// "Edição 22 / Ano 11 - 14/10/2026". The number must appear before the first "/".
func ParseLabel(label string) (number, year int, ok bool) {
	label = normalizeLabel(label)
	head, _, _ := strings.Cut(label, "/")
	m := editionNumberRe.FindStringSubmatch(head)
	if m == nil {
		return 0, 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, 0, false
	}
	for _, ym := range yearRe.FindAllStringSubmatch(label, -1) {
		y, err := strconv.Atoi(ym[1])
		if err == nil && y >= 2000 {
			return n, y, true
		}
	}
	return 0, 0, false
}

// SelectLatest returns the candidate with the largest edition number. Ties keep the first.
func SelectLatest(cands []Candidate) (Candidate, int, int, bool) {
	var (
		best     Candidate
		bestNum  int
		bestYear int
		found    bool
	)
	for _, c := range cands {
		n, y, ok := ParseLabel(c.Label)
		if !ok {
			continue
		}
		if !found || n > bestNum {
			best, bestNum, bestYear, found = c, n, y, true
		}
	}
	return best, bestNum, bestYear, found
}

// IDFromDetailURL returns the numeric last path segment of an edition detail URL.
func IDFromDetailURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: parse %q: %v", ErrEditionID, raw, err)
	}
	if !strings.Contains(u.Path, "/diario/") {
		return "", fmt.Errorf("%w: %q is not an edition page", ErrEditionID, raw)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" || !isDigits(last) {
		return "", fmt.Errorf("%w: segment %q is not numeric", ErrEditionID, last)
	}
	return last, nil
}

// DownloadURL builds the PDF download endpoint for an edition id on the portal's origin.
func DownloadURL(portalURL, downloadPath, id string) string {
	origin := strings.TrimRight(portalURL, "/")
	if u, err := url.Parse(portalURL); err == nil && u.Scheme != "" && u.Host != "" {
		origin = u.Scheme + "://" + u.Host
	}
	path := "/" + strings.Trim(downloadPath, "/") + "/"
	return origin + path + id
}

// ResolveHref turns a possibly relative href into an absolute URL against base.
func ResolveHref(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func normalizeLabel(label string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(label, " "))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
