// Package crawler discovers app listing pages breadth-first from a seed page
// and extracts each listing's title and description.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/metrics"
)

// Listing is one crawled app.
type Listing struct {
	URL         string
	AppID       string
	Title       string
	Description string
	FetchedAt   time.Time
}

// Name is the document name the listing is indexed under: its title, or the
// app id when the page had no title.
func (l Listing) Name() string {
	if l.Title != "" {
		return l.Title
	}
	return l.AppID
}

type Crawler struct {
	fetcher   Fetcher
	extractor Extractor
	cfg       config.CrawlerConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a crawler. m may be nil.
func New(cfg config.CrawlerConfig, fetcher Fetcher, m *metrics.Metrics) *Crawler {
	return &Crawler{
		fetcher:   fetcher,
		extractor: Extractor{TitleClass: cfg.TitleClass, DescriptionClass: cfg.DescriptionClass},
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "crawler"),
	}
}

// Discover walks listing links breadth-first from seed until limit distinct
// listings are known or no unvisited page is left. Listing pages link to
// related apps, so every discovered listing is also queued for expansion.
// A failing seed is an error; failures further out are logged and skipped.
func (c *Crawler) Discover(ctx context.Context, seed string, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	if _, err := url.Parse(seed); err != nil {
		return nil, fmt.Errorf("seed %q: %v: %w", seed, err, apperrors.ErrInvalidArgument)
	}

	known := make(map[string]struct{})
	order := make([]string, 0, limit)
	visited := make(map[string]struct{})
	queue := []string{seed}
	lastLogged := 0

	for len(queue) > 0 && len(order) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := queue[0]
		queue = queue[1:]
		if _, ok := visited[page]; ok {
			continue
		}
		visited[page] = struct{}{}

		links, err := c.listingLinks(ctx, page)
		if err != nil {
			if page == seed {
				return nil, fmt.Errorf("fetching seed page: %w", err)
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("skipping page", "url", page, "error", err)
			continue
		}
		for _, l := range links {
			if _, ok := known[l]; ok {
				continue
			}
			known[l] = struct{}{}
			order = append(order, l)
			queue = append(queue, l)
			if len(order) >= limit {
				break
			}
		}
		// progress every 10%
		if pct := len(order) * 10 / limit; pct > lastLogged {
			lastLogged = pct
			c.logger.Info("discovery progress", "found", len(order), "target", limit, "pages_visited", len(visited))
		}
	}
	if len(order) < limit {
		c.logger.Warn("frontier exhausted before target", "found", len(order), "target", limit)
	}
	return order, nil
}

func (c *Crawler) listingLinks(ctx context.Context, page string) ([]string, error) {
	body, err := c.fetcher.Fetch(ctx, page)
	c.observe("discover", err)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(page)
	if err != nil {
		return nil, fmt.Errorf("parsing page url %q: %w", page, err)
	}
	parsed, err := c.extractor.Extract(body)
	if err != nil {
		return nil, err
	}
	var links []string
	for _, href := range parsed.Hrefs {
		if l, ok := ListingURL(base, href, c.cfg.DetailPath, c.cfg.Language); ok {
			links = append(links, l)
		}
	}
	return links, nil
}

// Fetch downloads and extracts the given listing URLs on up to
// cfg.Workers goroutines. Listings that fail are logged and left out; the
// result is sorted by URL.
func (c *Crawler) Fetch(ctx context.Context, urls []string) ([]Listing, error) {
	workers := c.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	results := make([]*Listing, len(urls))
	var done, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, u := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			l, err := c.fetchListing(gctx, u)
			n := done.Add(1)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				c.logger.Warn("listing failed", "url", u, "error", err)
				return nil
			}
			results[i] = &l
			if n%50 == 0 || int(n) == len(urls) {
				c.logger.Info("fetch progress", "done", n, "total", len(urls), "failed", failed.Load())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching listings: %w", err)
	}

	listings := make([]Listing, 0, len(urls))
	for _, l := range results {
		if l != nil {
			listings = append(listings, *l)
		}
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].URL < listings[j].URL })
	if f := failed.Load(); f > 0 {
		c.logger.Warn("some listings could not be fetched", "failed", f, "fetched", len(listings))
	}
	return listings, nil
}

// Crawl discovers up to limit listings from seed and fetches them.
func (c *Crawler) Crawl(ctx context.Context, seed string, limit int) ([]Listing, error) {
	start := time.Now()
	urls, err := c.Discover(ctx, seed, limit)
	if err != nil {
		return nil, fmt.Errorf("discovering listings: %w", err)
	}
	c.logger.Info("discovery complete", "listings", len(urls), "duration_ms", time.Since(start).Milliseconds())

	listings, err := c.Fetch(ctx, urls)
	if err != nil {
		return nil, err
	}
	c.logger.Info("crawl complete",
		"listings", len(listings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return listings, nil
}

func (c *Crawler) fetchListing(ctx context.Context, u string) (Listing, error) {
	body, err := c.fetcher.Fetch(ctx, u)
	c.observe("listing", err)
	if err != nil {
		return Listing{}, err
	}
	page, err := c.extractor.Extract(body)
	if err != nil {
		return Listing{}, err
	}
	l := Listing{
		URL:         u,
		AppID:       AppID(u),
		Title:       page.Title,
		Description: page.Description,
		FetchedAt:   time.Now().UTC(),
	}
	if l.Name() == "" {
		return Listing{}, errors.New("listing has neither title nor app id")
	}
	return l, nil
}

func (c *Crawler) observe(kind string, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.CrawlPagesTotal.WithLabelValues(kind, status).Inc()
}
