package portal

import "testing"

const listingFixture = `<!doctype html>
<html><body>
<div id="app">
  <ul class="editions">
    <li><a href="/diario/1830"><span class="title">Edição 20 / Ano 11 - 10/10/2026</span></a></li>
    <li><a href="/diario/1834"><span class="title">Edição 22 / Ano 11 - 14/10/2026</span></a></li>
    <li><div class="card">Edição 21 / Ano 11 - 13/10/2026</div></li>
  </ul>
  <p>Consulte o Ano anterior</p>
</div>
</body></html>`

func TestParseListingXPath(t *testing.T) {
	cands, err := ParseListing(listingFixture)
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}
	if len(cands) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(cands), cands)
	}
	if cands[1].Href != "/diario/1834" || cands[1].Index != 1 {
		t.Fatalf("unexpected second candidate: %+v", cands[1])
	}
	if cands[2].Href != "" || cands[2].Index != 2 {
		t.Fatalf("expected card without href, got %+v", cands[2])
	}

	best, n, _, ok := SelectLatest(cands)
	if !ok || n != 22 || best.Href != "/diario/1834" {
		t.Fatalf("unexpected latest: %+v number=%d ok=%v", best, n, ok)
	}
}

func TestParseListingAnchorFallback(t *testing.T) {
	page := `<html><body>
<a href="/diario/55"><b>Edição</b> 5 / <i>Ano</i> 1 - 2026</a>
<a href="/diario/56"><b>Edição</b> 6 / <i>Ano</i> 1 - 2026</a>
<a href="/contato">Contato</a>
</body></html>`
	cands, err := ParseListing(page)
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 anchor candidates, got %+v", cands)
	}
	for _, c := range cands {
		if c.Index != -1 {
			t.Fatalf("anchor candidates must not be clickable by index: %+v", c)
		}
	}
	best, n, _, ok := SelectLatest(cands)
	if !ok || n != 6 || best.Href != "/diario/56" {
		t.Fatalf("unexpected latest: %+v number=%d", best, n)
	}
}

func TestParseListingEmpty(t *testing.T) {
	cands, err := ParseListing(`<html><body><p>Carregando...</p></body></html>`)
	if err != nil {
		t.Fatalf("ParseListing: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("expected no candidates, got %+v", cands)
	}
}
