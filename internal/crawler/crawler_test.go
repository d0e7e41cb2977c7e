package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
)

const detailPath = "/store/apps/details"

type app struct {
	title, description string
	related            []string
}

var apps = map[string]app{
	"com.alpha": {"Alpha Photo", "Edit photos and share albums", []string{"com.gamma"}},
	"com.beta":  {"Beta Music", "Play music offline", []string{"com.alpha", "com.delta"}},
	"com.gamma": {"Gamma Budget", "Track expenses", nil},
}

func listingPage(a app) string {
	var links strings.Builder
	for _, id := range a.related {
		fmt.Fprintf(&links, `<a href="/store/apps/details?id=%s">related</a>`, id)
	}
	return fmt.Sprintf(`<html><head><title>%s - Apps</title><script>var x = "ignored";</script></head>
<body><div class="id-app-title">%s</div>
<div class="details show-more-content">%s<br>More text.</div>%s</body></html>`,
		a.title, a.title, a.description, links.String())
}

func newStoreServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/store/apps", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `<html><body>
<a href="/store/apps/details?id=com.alpha">Alpha</a>
<a href="apps/details?id=com.beta#reviews">Beta</a>
<a href="/store/apps/details?id=com.alpha&amp;hl=fr">Alpha again</a>
<a href="/store/apps/category/GAME">Games</a>
<a href="https://elsewhere.example/store/apps/details?id=com.evil">External</a>
<a href="javascript:void(0)">js</a>
<a href="#top">top</a>
</body></html>`)
	})
	mux.HandleFunc(detailPath, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		a, ok := apps[r.URL.Query().Get("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, listingPage(a))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testConfig() config.CrawlerConfig {
	return config.CrawlerConfig{
		DetailPath:       detailPath,
		Language:         "en",
		Workers:          2,
		FetchTimeout:     2 * time.Second,
		RetryAttempts:    1,
		FailureThreshold: 100,
		TitleClass:       "id-app-title",
		DescriptionClass: "show-more-content",
	}
}

func listing(srv *httptest.Server, id string) string {
	return srv.URL + detailPath + "?id=" + id + "&hl=en"
}

func TestDiscover(t *testing.T) {
	srv, _ := newStoreServer(t)
	c := New(testConfig(), NewHTTPFetcher(testConfig(), srv.Client(), nil), nil)

	got, err := c.Discover(context.Background(), srv.URL+"/store/apps", 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{listing(srv, "com.alpha"), listing(srv, "com.beta"), listing(srv, "com.gamma")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Diff: (-want +got)\n%s", diff)
	}
}

func TestDiscoverFrontierExhausted(t *testing.T) {
	srv, _ := newStoreServer(t)
	c := New(testConfig(), NewHTTPFetcher(testConfig(), srv.Client(), nil), nil)

	got, err := c.Discover(context.Background(), srv.URL+"/store/apps", 100)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		listing(srv, "com.alpha"), listing(srv, "com.beta"),
		listing(srv, "com.gamma"), listing(srv, "com.delta"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Diff: (-want +got)\n%s", diff)
	}
}

func TestDiscoverSeedFailure(t *testing.T) {
	srv, _ := newStoreServer(t)
	c := New(testConfig(), NewHTTPFetcher(testConfig(), srv.Client(), nil), nil)
	if _, err := c.Discover(context.Background(), srv.URL+"/missing", 5); !errors.Is(err, apperrors.ErrFetchFailed) {
		t.Errorf("err = %v; want ErrFetchFailed", err)
	}
	if got, err := c.Discover(context.Background(), srv.URL+"/store/apps", 0); err != nil || len(got) != 0 {
		t.Errorf("limit 0 = %v, %v", got, err)
	}
}

func TestCrawl(t *testing.T) {
	srv, _ := newStoreServer(t)
	c := New(testConfig(), NewHTTPFetcher(testConfig(), srv.Client(), nil), nil)

	got, err := c.Crawl(context.Background(), srv.URL+"/store/apps", 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []Listing{
		{URL: listing(srv, "com.alpha"), AppID: "com.alpha", Title: "Alpha Photo", Description: "Edit photos and share albums More text."},
		{URL: listing(srv, "com.beta"), AppID: "com.beta", Title: "Beta Music", Description: "Play music offline More text."},
		{URL: listing(srv, "com.gamma"), AppID: "com.gamma", Title: "Gamma Budget", Description: "Track expenses More text."},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Listing{}, "FetchedAt")); diff != "" {
		t.Errorf("Diff: (-want +got)\n%s", diff)
	}
}

func TestCrawlCancelled(t *testing.T) {
	srv, _ := newStoreServer(t)
	c := New(testConfig(), NewHTTPFetcher(testConfig(), srv.Client(), nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Crawl(ctx, srv.URL+"/store/apps", 10); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v; want context.Canceled", err)
	}
}

func TestExtractFallbacks(t *testing.T) {
	e := Extractor{TitleClass: "id-app-title", DescriptionClass: "show-more-content"}
	cases := []struct {
		name string
		html string
		want Page
	}{
		{
			name: "classes",
			html: `<div class="id-app-title"> Maps </div><div class="show-more-content">Find   your way</div>`,
			want: Page{Title: "Maps", Description: "Find your way"},
		},
		{
			name: "h1 and meta",
			html: `<head><title>Ignored</title><meta name="description" content="Short  summary"></head><h1>Weather</h1>`,
			want: Page{Title: "Weather", Description: "Short summary"},
		},
		{
			name: "title tag and body text",
			html: `<head><title>Notes</title><style>.x{}</style></head><body><p>Write notes</p><script>alert(1)</script><p>Sync</p></body>`,
			want: Page{Title: "Notes", Description: "Write notes Sync"},
		},
		{
			name: "hrefs",
			html: `<a href=" /a ">a</a><a>none</a><a href="b">b</a>`,
			want: Page{Description: "a none b", Hrefs: []string{"/a", "b"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Extract([]byte(tc.html))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Diff: (-want +got)\n%s", diff)
			}
		})
	}
}

func TestListingURL(t *testing.T) {
	base, _ := url.Parse("https://play.example.com/store/apps/details?id=com.page")
	cases := []struct {
		href string
		want string
		ok   bool
	}{
		{"/store/apps/details?id=com.x", "https://play.example.com/store/apps/details?id=com.x&hl=en", true},
		{"details?id=com.x&hl=de#top", "https://play.example.com/store/apps/details?id=com.x&hl=en", true},
		{"https://PLAY.example.com/store/apps/details?id=com.y", "https://play.example.com/store/apps/details?id=com.y&hl=en", true},
		{"/store/apps/details", "", false},
		{"/store/apps/dev?id=Someone", "", false},
		{"https://other.example.com/store/apps/details?id=com.x", "", false},
		{"javascript:void(0)", "", false},
		{"#reviews", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ListingURL(base, tc.href, detailPath, "en")
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ListingURL(%q) = %q, %v; want %q, %v", tc.href, got, ok, tc.want, tc.ok)
		}
	}
	if id := AppID("https://play.example.com/store/apps/details?id=com.x&hl=en"); id != "com.x" {
		t.Errorf("AppID = %q", id)
	}
}

func TestListingNameFallsBackToAppID(t *testing.T) {
	l := Listing{AppID: "com.x", Description: "desc"}
	if l.Name() != "com.x" {
		t.Errorf("Name = %q", l.Name())
	}
}
