package provider

import (
	"context"
	"encoding/json"
	"testing"
)

func TestSplit(t *testing.T) {
	cases := []struct {
		input, preferred string
		source, name     string
	}{
		{"unjs/template", "", "unjs/template", "github"},
		{"gh:unjs/template#main", "", "unjs/template#main", "gh"},
		{"GitLab:group/proj", "", "group/proj", "gitlab"},
		{"owner/repo", "bitbucket", "owner/repo", "bitbucket"},
		{"https://example.com/t.tar.gz", "", "https://example.com/t.tar.gz", "https"},
		{"http://example.com/t.json", "github", "http://example.com/t.json", "http"},
		{"my.corp-git:team/app", "", "team/app", "my.corp-git"},
	}
	for _, tc := range cases {
		source, name := Split(tc.input, tc.preferred)
		if source != tc.source || name != tc.name {
			t.Fatalf("Split(%q, %q) = (%q, %q), want (%q, %q)", tc.input, tc.preferred, source, name, tc.source, tc.name)
		}
	}
}

func TestTemplateSanitized(t *testing.T) {
	original := Template{Name: "my template@1.0", Headers: map[string]string{"A": "b"}}
	clean := original.Sanitized()
	if clean.Name != "my-template-1-0" || clean.DefaultDir != "my-template-1-0" {
		t.Fatalf("unexpected sanitized template: %+v", clean)
	}
	if original.Name != "my template@1.0" || original.DefaultDir != "" {
		t.Fatalf("original template mutated: %+v", original)
	}
	clean.Headers["A"] = "changed"
	if original.Headers["A"] != "b" {
		t.Fatalf("headers should be copied")
	}

	empty := Template{}.Sanitized()
	if empty.Name != DefaultTemplateName || empty.DefaultDir != DefaultTemplateName {
		t.Fatalf("empty template should default to %q: %+v", DefaultTemplateName, empty)
	}

	custom := Template{Name: "x", DefaultDir: "out/dir"}.Sanitized()
	if custom.DefaultDir != "out-dir" {
		t.Fatalf("defaultDir not sanitized: %q", custom.DefaultDir)
	}
}

func TestTemplateDecodeAcceptsTarURL(t *testing.T) {
	var tpl Template
	if err := json.Unmarshal([]byte(`{"name":"demo","tarURL":"https://x/y.tar.gz","defaultDir":"d"}`), &tpl); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if tpl.Tar != "https://x/y.tar.gz" || tpl.Name != "demo" || tpl.DefaultDir != "d" {
		t.Fatalf("unexpected template: %+v", tpl)
	}

	if err := json.Unmarshal([]byte(`{"name":"demo","tar":"a","tarURL":"b"}`), &tpl); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if tpl.Tar != "a" {
		t.Fatalf("tar should win over tarURL, got %q", tpl.Tar)
	}
}

func TestResolverFunc(t *testing.T) {
	var got string
	r := ResolverFunc(func(_ context.Context, source string, _ Options) (*Template, error) {
		got = source
		return &Template{Name: "fn", Tar: "https://example.com/fn.tgz"}, nil
	})
	tpl, err := r.Resolve(context.Background(), "anything", Options{})
	if err != nil || tpl.Name != "fn" || got != "anything" {
		t.Fatalf("resolver func mismatch: %v %+v %q", err, tpl, got)
	}
}
