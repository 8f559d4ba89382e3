package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newMetadataServer(t *testing.T, path, body string, status int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != path {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestGitHubResolveDefaultBranch(t *testing.T) {
	srv, hits := newMetadataServer(t, "/repos/unjs/template", `{"default_branch":"trunk"}`, http.StatusOK)
	gh := GitHub{APIBase: srv.URL, WebBase: "https://github.example"}

	tpl, err := gh.Resolve(context.Background(), "unjs/template/docs", Options{Auth: "tok", Client: srv.Client()})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if atomic.LoadInt32(hits) != 1 {
		t.Fatalf("expected one metadata request, got %d", atomic.LoadInt32(hits))
	}
	if tpl.Name != "unjs-template" || tpl.Version != "trunk" || tpl.Subdir != "/docs" {
		t.Fatalf("unexpected template: %+v", tpl)
	}
	if tpl.Tar != srv.URL+"/repos/unjs/template/tarball/trunk" {
		t.Fatalf("unexpected tar: %s", tpl.Tar)
	}
	if tpl.URL != "https://github.example/unjs/template/tree/trunk/docs" {
		t.Fatalf("unexpected url: %s", tpl.URL)
	}
	if tpl.Headers["Authorization"] != "Bearer tok" || tpl.Headers["X-GitHub-Api-Version"] != "2022-11-28" {
		t.Fatalf("unexpected headers: %+v", tpl.Headers)
	}
}

func TestGitHubResolveExplicitRefSkipsLookup(t *testing.T) {
	srv, hits := newMetadataServer(t, "/repos/unjs/template", `{"default_branch":"trunk"}`, http.StatusOK)
	tpl, err := GitHub{APIBase: srv.URL}.Resolve(context.Background(), "unjs/template#v1.2.3", Options{Client: srv.Client()})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if atomic.LoadInt32(hits) != 0 || tpl.Version != "v1.2.3" {
		t.Fatalf("explicit ref should not query metadata: hits=%d version=%s", atomic.LoadInt32(hits), tpl.Version)
	}
	if _, ok := tpl.Headers["Authorization"]; ok {
		t.Fatalf("anonymous resolve should not send Authorization")
	}
}

func TestGitHubResolveFallsBackToMain(t *testing.T) {
	srv, hits := newMetadataServer(t, "/repos/unjs/template", `oops`, http.StatusInternalServerError)
	tpl, err := GitHub{APIBase: srv.URL}.Resolve(context.Background(), "unjs/template", Options{Client: srv.Client()})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if tpl.Version != FallbackRef || atomic.LoadInt32(hits) != 1 {
		t.Fatalf("expected fallback ref after failed lookup: %s hits=%d", tpl.Version, atomic.LoadInt32(hits))
	}

	offline, err := GitHub{APIBase: srv.URL}.Resolve(context.Background(), "unjs/template", Options{Client: srv.Client(), Offline: true})
	if err != nil {
		t.Fatalf("offline resolve failed: %v", err)
	}
	if offline.Version != FallbackRef || atomic.LoadInt32(hits) != 1 {
		t.Fatalf("offline resolve should not hit network: %s hits=%d", offline.Version, atomic.LoadInt32(hits))
	}
}

func TestGitResolveInvalidSource(t *testing.T) {
	resolvers := []Resolver{GitHub{}, GitLab{}, Bitbucket{}, Sourcehut{}, URLTemplate{Tar: "x/{repo}"}}
	for _, r := range resolvers {
		_, err := r.Resolve(context.Background(), "not-a-repo", Options{Offline: true})
		if !errors.Is(err, ErrInvalidSource) {
			t.Fatalf("%T: expected ErrInvalidSource, got %v", r, err)
		}
	}
}

func TestGitLabResolve(t *testing.T) {
	srv, _ := newMetadataServer(t, "/api/v4/projects/group%2Fproj", `{"default_branch":"develop"}`, http.StatusOK)
	tpl, err := GitLab{WebBase: srv.URL}.Resolve(context.Background(), "group/proj", Options{Client: srv.Client()})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if tpl.Version != "develop" {
		t.Fatalf("expected develop, got %s", tpl.Version)
	}
	if tpl.Tar != srv.URL+"/group/proj/-/archive/develop.tar.gz" {
		t.Fatalf("unexpected tar: %s", tpl.Tar)
	}
	if tpl.Headers["sec-fetch-mode"] != "same-origin" {
		t.Fatalf("missing sec-fetch-mode header: %+v", tpl.Headers)
	}
}

func TestBitbucketResolve(t *testing.T) {
	srv, _ := newMetadataServer(t, "/2.0/repositories/team/app", `{"mainbranch":{"name":"master"}}`, http.StatusOK)
	tpl, err := Bitbucket{APIBase: srv.URL, WebBase: "https://bb.example"}.Resolve(context.Background(), "team/app/sub", Options{Client: srv.Client()})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if tpl.Tar != "https://bb.example/team/app/get/master.tar.gz" {
		t.Fatalf("unexpected tar: %s", tpl.Tar)
	}
	if tpl.URL != "https://bb.example/team/app/src/master/sub" {
		t.Fatalf("unexpected url: %s", tpl.URL)
	}
}

func TestSourcehutResolve(t *testing.T) {
	tpl, err := Sourcehut{}.Resolve(context.Background(), "user/proj#dev", Options{Auth: "t"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if tpl.Tar != "https://git.sr.ht/~user/proj/archive/dev.tar.gz" {
		t.Fatalf("unexpected tar: %s", tpl.Tar)
	}
	if tpl.URL != "https://git.sr.ht/~user/proj/tree/dev/item/" {
		t.Fatalf("unexpected url: %s", tpl.URL)
	}
	if tpl.Headers["Authorization"] != "Bearer t" {
		t.Fatalf("expected bearer header: %+v", tpl.Headers)
	}

	noRef, _ := Sourcehut{}.Resolve(context.Background(), "user/proj", Options{})
	if noRef.Version != FallbackRef {
		t.Fatalf("sourcehut should default to %s, got %s", FallbackRef, noRef.Version)
	}
}

func TestURLTemplateResolve(t *testing.T) {
	r := URLTemplate{
		Tar:        "https://git.example/{owner}/{name}/archive/{ref}.tar.gz",
		URL:        "https://git.example/{repo}/src/{ref}{subdir}",
		DefaultRef: "stable",
		Headers:    map[string]string{"X-Token": "abc"},
	}
	tpl, err := r.Resolve(context.Background(), "team/app/web", Options{})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if tpl.Tar != "https://git.example/team/app/archive/stable.tar.gz" {
		t.Fatalf("unexpected tar: %s", tpl.Tar)
	}
	if tpl.URL != "https://git.example/team/app/src/stable/web" {
		t.Fatalf("unexpected url: %s", tpl.URL)
	}
	if tpl.Headers["X-Token"] != "abc" {
		t.Fatalf("custom headers missing: %+v", tpl.Headers)
	}
}
