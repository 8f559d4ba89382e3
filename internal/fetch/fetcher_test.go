package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/any-hub/tarfetch/internal/cache"
	"github.com/any-hub/tarfetch/internal/logging"
)

// archiveStub 模拟归档上游，记录 HEAD/GET 次数并允许切换正文与 ETag。
type archiveStub struct {
	*httptest.Server

	mu       sync.Mutex
	body     []byte
	etag     string
	status   int
	gets     int
	heads    int
	failHead bool
	headers  http.Header
}

func newArchiveStub(t *testing.T, body, etag string) *archiveStub {
	t.Helper()
	stub := &archiveStub{body: []byte(body), etag: etag, status: http.StatusOK}
	stub.Server = httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(stub.Close)
	return stub
}

func (s *archiveStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers = r.Header.Clone()
	switch r.Method {
	case http.MethodHead:
		s.heads++
		if s.failHead {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	case http.MethodGet:
		s.gets++
	}
	if s.etag != "" {
		w.Header().Set("ETag", s.etag)
	}
	w.Header().Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
	w.WriteHeader(s.status)
	if r.Method == http.MethodGet {
		_, _ = w.Write(s.body)
	}
}

func (s *archiveStub) update(body, etag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = []byte(body)
	s.etag = etag
}

func (s *archiveStub) counts() (heads, gets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heads, s.gets
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	return NewFetcher(http.DefaultClient, store, logging.Discard())
}

var testLocator = cache.Locator{Provider: "github", Name: "org-repo", Version: "main"}

func TestFetchDownloadsAndRecordsETag(t *testing.T) {
	upstream := newArchiveStub(t, "archive-v1", `"v1"`)
	fetcher := newTestFetcher(t)

	result, err := fetcher.Fetch(context.Background(), upstream.URL+"/tarball/main", testLocator, map[string]string{"Authorization": "Bearer token"})
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if result.CacheHit {
		t.Fatalf("first fetch cannot be a cache hit")
	}
	body, err := os.ReadFile(result.Path)
	if err != nil || string(body) != "archive-v1" {
		t.Fatalf("unexpected cached body %q: %v", body, err)
	}
	if meta := fetcher.Store().ReadMeta(testLocator); meta.ETag != `"v1"` {
		t.Fatalf("etag not persisted: %+v", meta)
	}
	if got := upstream.headers.Get("Authorization"); got != "Bearer token" {
		t.Fatalf("headers should be forwarded, got %q", got)
	}
}

func TestFetchTwiceIssuesSingleGet(t *testing.T) {
	upstream := newArchiveStub(t, "archive-v1", `"v1"`)
	fetcher := newTestFetcher(t)

	for i := 0; i < 2; i++ {
		if _, err := fetcher.Fetch(context.Background(), upstream.URL, testLocator, nil); err != nil {
			t.Fatalf("fetch %d error: %v", i, err)
		}
	}

	heads, gets := upstream.counts()
	if gets != 1 {
		t.Fatalf("expected single GET, got %d", gets)
	}
	if heads != 2 {
		t.Fatalf("expected HEAD per fetch, got %d", heads)
	}
}

func TestFetchRefreshesWhenETagChanges(t *testing.T) {
	upstream := newArchiveStub(t, "archive-v1", `"v1"`)
	fetcher := newTestFetcher(t)

	if _, err := fetcher.Fetch(context.Background(), upstream.URL, testLocator, nil); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	upstream.update("archive-v2", `"v2"`)
	result, err := fetcher.Fetch(context.Background(), upstream.URL, testLocator, nil)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if result.CacheHit {
		t.Fatalf("changed etag must trigger download")
	}
	body, _ := os.ReadFile(result.Path)
	if string(body) != "archive-v2" {
		t.Fatalf("cache not refreshed: %q", body)
	}
	if meta := fetcher.Store().ReadMeta(testLocator); meta.ETag != `"v2"` {
		t.Fatalf("sidecar not updated: %+v", meta)
	}
}

func TestFetchRedownloadsWhenBlobMissing(t *testing.T) {
	upstream := newArchiveStub(t, "archive-v1", `"v1"`)
	fetcher := newTestFetcher(t)

	result, err := fetcher.Fetch(context.Background(), upstream.URL, testLocator, nil)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if err := os.Remove(result.Path); err != nil {
		t.Fatalf("remove blob: %v", err)
	}
	if _, err := fetcher.Fetch(context.Background(), upstream.URL, testLocator, nil); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if _, gets := upstream.counts(); gets != 2 {
		t.Fatalf("missing blob must be downloaded again, got %d GETs", gets)
	}
}

func TestFetchWithoutETagAlwaysDownloads(t *testing.T) {
	upstream := newArchiveStub(t, "archive", "")
	fetcher := newTestFetcher(t)

	for i := 0; i < 2; i++ {
		if _, err := fetcher.Fetch(context.Background(), upstream.URL, testLocator, nil); err != nil {
			t.Fatalf("fetch error: %v", err)
		}
	}
	if _, gets := upstream.counts(); gets != 2 {
		t.Fatalf("without etag every fetch downloads, got %d GETs", gets)
	}
}

func TestFetchHeadFailureFallsBackToGet(t *testing.T) {
	upstream := newArchiveStub(t, "archive", `"v1"`)
	upstream.failHead = true
	fetcher := newTestFetcher(t)

	result, err := fetcher.Fetch(context.Background(), upstream.URL, testLocator, nil)
	if err != nil {
		t.Fatalf("HEAD failure must not fail the fetch: %v", err)
	}
	if result.ETag != `"v1"` {
		t.Fatalf("etag should come from GET response, got %q", result.ETag)
	}
}

func TestFetchErrorStatus(t *testing.T) {
	upstream := newArchiveStub(t, "missing", "")
	upstream.status = http.StatusNotFound
	fetcher := newTestFetcher(t)

	_, err := fetcher.Fetch(context.Background(), upstream.URL, testLocator, nil)
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
	if fetcher.Store().Exists(testLocator) {
		t.Fatalf("failed download must not create a cache entry")
	}
}

func TestFetchNetworkError(t *testing.T) {
	upstream := newArchiveStub(t, "archive", "")
	url := upstream.URL
	upstream.Close()
	fetcher := newTestFetcher(t)

	_, err := fetcher.Fetch(context.Background(), url, testLocator, nil)
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed for network errors, got %v", err)
	}
}

func TestFetchEmptyBody(t *testing.T) {
	upstream := newArchiveStub(t, "", "")
	upstream.status = http.StatusNoContent
	fetcher := newTestFetcher(t)

	_, err := fetcher.Fetch(context.Background(), upstream.URL, testLocator, nil)
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed for empty body, got %v", err)
	}
}
