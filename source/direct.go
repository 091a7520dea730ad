package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

// searchURLs lists candidate listing/search pages per source, tried in order
// until one responds.
var searchURLs = map[model.Source][]string{
	model.SourceBaT: {
		"https://bringatrailer.com/porsche/",
		"https://bringatrailer.com/auctions/?search=porsche",
	},
	model.SourceCarsAndBids: {
		"https://carsandbids.com/search/porsche",
	},
	model.SourcePCarMarket: {
		"https://www.pcarmarket.com/auction/all/",
	},
	model.SourceCollectingCars: {
		"https://collectingcars.com/search?make=porsche",
		"https://collectingcars.com/buy/porsche",
	},
}

// detailPrefixes are the URL path prefixes that mark a candidate detail page.
var detailPrefixes = map[model.Source][]string{
	model.SourceBaT:            {"/listing/"},
	model.SourceCarsAndBids:    {"/auctions/"},
	model.SourcePCarMarket:     {"/auction/"},
	model.SourceCollectingCars: {"/for-sale/", "/cars/"},
}

// trackingParams are stripped from extracted links before dedup.
var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "ref", "fbclid", "gclid"}

// DirectAdapter paginates marketplace search pages, extracts detail-page
// links from the HTML, and fetches each detail page as one raw record.
// Every HTTP call passes through the per-domain rate limiter and the retry
// wrapper.
type DirectAdapter struct {
	client    *http.Client
	limiter   *DomainLimiter
	retry     Retry
	userAgent string
}

// DirectOptions configures a DirectAdapter.
type DirectOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
}

// NewDirectAdapter builds the direct-fetch strategy.
func NewDirectAdapter(opts DirectOptions) *DirectAdapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 monza-ingest/1.0"
	}
	return &DirectAdapter{
		client:    &http.Client{Timeout: timeout},
		limiter:   NewDomainLimiter(opts.RequestsPerSecond),
		retry:     Retry{MaxAttempts: 3, BaseDelay: time.Second},
		userAgent: ua,
	}
}

func maxPagesFor(mode Mode) int {
	switch mode {
	case ModeSample:
		return 1
	case ModeBackfill:
		return 50
	default:
		return 5
	}
}

// Fetch walks search pages for the source and returns one raw record per
// discovered detail page. Stops early once a page yields zero unseen links.
func (a *DirectAdapter) Fetch(ctx context.Context, source model.Source, params Params) ([]model.RawRecord, error) {
	base, err := a.pickSearchURL(ctx, source)
	if err != nil {
		return nil, err
	}

	maxPages := maxPagesFor(params.Mode)
	seen := make(map[string]struct{})
	var detailURLs []string

	for page := 1; page <= maxPages; page++ {
		pageURL := withPageParam(base, page)
		body, err := a.get(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("direct fetch %s page %d: %w", source, page, err)
		}

		links := extractDetailLinks(body, pageURL, detailPrefixes[source])
		fresh := 0
		for _, link := range links {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			fresh++
			detailURLs = append(detailURLs, link)
			if params.Limit > 0 && len(detailURLs) >= params.Limit {
				break
			}
		}

		log.Debug().
			Str("source", string(source)).
			Int("page", page).
			Int("links", len(links)).
			Int("fresh", fresh).
			Msg("Search page processed")

		// Zero previously-unseen links is the end-of-results signal.
		if fresh == 0 {
			break
		}
		if params.Limit > 0 && len(detailURLs) >= params.Limit {
			break
		}
	}

	records := make([]model.RawRecord, 0, len(detailURLs))
	for _, detailURL := range detailURLs {
		body, err := a.get(ctx, detailURL)
		if err != nil {
			log.Warn().Err(err).Str("url", detailURL).Msg("Detail page fetch failed, skipping")
			continue
		}
		records = append(records, model.RawRecord{
			Source: source,
			Fields: map[string]any{
				"url":        detailURL,
				"html":       string(body),
				"title":      extractTitle(body),
				"scraped_at": time.Now().UTC().Format(time.RFC3339),
			},
		})
	}

	log.Info().Str("source", string(source)).Int("records", len(records)).Msg("Direct fetch complete")
	return records, nil
}

// pickSearchURL tries the source's candidate URLs in order until one
// responds successfully.
func (a *DirectAdapter) pickSearchURL(ctx context.Context, source model.Source) (string, error) {
	candidates := searchURLs[source]
	if len(candidates) == 0 {
		return "", fmt.Errorf("direct adapter: no search URLs configured for source %s", source)
	}
	var lastErr error
	for _, candidate := range candidates {
		if _, err := a.get(ctx, candidate); err != nil {
			lastErr = err
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("direct adapter: no candidate URL responded for %s: %w", source, lastErr)
}

// get performs one rate-limited, retried GET and returns the body.
func (a *DirectAdapter) get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := a.retry.Do(ctx, "GET "+rawURL, func() error {
		if err := a.limiter.Wait(ctx, rawURL); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", a.userAgent)

		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("http status %d", resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	return body, err
}

func withPageParam(base string, page int) string {
	if page <= 1 {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("page", fmt.Sprintf("%d", page))
	u.RawQuery = q.Encode()
	return u.String()
}

// extractDetailLinks parses the HTML and returns absolute, tracking-free
// links whose path matches one of the detail prefixes.
func extractDetailLinks(body []byte, pageURL string, prefixes []string) []string {
	baseURL, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})
	tokenizer := html.NewTokenizer(strings.NewReader(string(body)))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := tokenizer.TagName()
		if string(name) != "a" || !hasAttr {
			continue
		}
		for {
			key, val, more := tokenizer.TagAttr()
			if string(key) == "href" {
				if link, ok := resolveDetailLink(baseURL, string(val), prefixes); ok {
					if _, dup := seen[link]; !dup {
						seen[link] = struct{}{}
						links = append(links, link)
					}
				}
			}
			if !more {
				break
			}
		}
	}
	return links
}

func resolveDetailLink(base *url.URL, href string, prefixes []string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	// Stay on the marketplace's own domain.
	if abs.Host != base.Host {
		return "", false
	}
	matched := false
	for _, prefix := range prefixes {
		if strings.HasPrefix(abs.Path, prefix) && len(abs.Path) > len(prefix) {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}

	q := abs.Query()
	for _, param := range trackingParams {
		q.Del(param)
	}
	abs.RawQuery = q.Encode()
	abs.Fragment = ""
	return abs.String(), true
}

// extractTitle pulls the document title so downstream normalization has a
// first-class title field even before HTML field extraction.
func extractTitle(body []byte) string {
	tokenizer := html.NewTokenizer(strings.NewReader(string(body)))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return ""
		}
		if tt == html.StartTagToken {
			name, _ := tokenizer.TagName()
			if string(name) == "title" {
				if tokenizer.Next() == html.TextToken {
					return strings.TrimSpace(string(tokenizer.Text()))
				}
				return ""
			}
		}
	}
}
