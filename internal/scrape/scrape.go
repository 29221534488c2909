// Package scrape retrieves the station's "last songs played" page and
// extracts the three positionally aligned sequences (times, titles, artists)
// the rest of the pipeline is built on. It is the only package that knows
// about the page's markup; layout changes on the station site are absorbed
// here by adjusting the configured selectors.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gschex1112/songflow/pkg/types"
)

// Triples holds the aligned sequences extracted from one page load.
// Element i of each slice describes the same play event.
type Triples struct {
	Times   []string
	Titles  []string
	Artists []string
}

// Len returns the common length of the sequences.
func (t Triples) Len() int { return len(t.Titles) }

// Fetcher retrieves and parses the source page.
type Fetcher struct {
	client *http.Client
	cfg    types.SourceConfig
	logger *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// NewFetcher creates a Fetcher for the configured source page.
func NewFetcher(cfg types.SourceConfig, logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{cfg: cfg, logger: logger}
	for _, o := range opts {
		o(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	return f
}

// Fetch GETs the source page and extracts the aligned triples. The length
// check runs before anything downstream zips the sequences: mismatched
// lengths mean the page schema drifted and silently zipping would pair
// titles with the wrong artists or times.
func (f *Fetcher) Fetch(ctx context.Context) (Triples, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return Triples{}, &FetchError{URL: f.cfg.URL, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Triples{}, &FetchError{URL: f.cfg.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Triples{}, &FetchError{URL: f.cfg.URL, Status: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Triples{}, &FetchError{URL: f.cfg.URL, Err: fmt.Errorf("parsing document: %w", err)}
	}

	var t Triples
	doc.Find(f.cfg.TimeSelector).Each(func(_ int, sel *goquery.Selection) {
		dt, ok := sel.Attr("datetime")
		if !ok {
			dt = strings.TrimSpace(sel.Text())
		}
		t.Times = append(t.Times, dt)
	})
	doc.Find(f.cfg.TitleSelector).Each(func(_ int, sel *goquery.Selection) {
		t.Titles = append(t.Titles, strings.TrimSpace(sel.Text()))
	})
	doc.Find(f.cfg.ArtistSelector).Each(func(_ int, sel *goquery.Selection) {
		t.Artists = append(t.Artists, strings.TrimSpace(sel.Text()))
	})

	if len(t.Times) != len(t.Titles) || len(t.Titles) != len(t.Artists) {
		return Triples{}, &ParseError{
			URL:     f.cfg.URL,
			Times:   len(t.Times),
			Titles:  len(t.Titles),
			Artists: len(t.Artists),
		}
	}

	f.logger.Debug("page fetched", "url", f.cfg.URL, "plays", t.Len())
	return t, nil
}
