package gituri

import "testing"

func TestParse(t *testing.T) {
	defaults := URI{Repo: "org/repo", Subdir: "/"}
	cases := []struct {
		input string
		want  URI
	}{
		{input: "org/repo", want: defaults},
		{input: "org/repo#ref", want: URI{Repo: "org/repo", Subdir: "/", Ref: "ref"}},
		{input: "org/repo#ref-123", want: URI{Repo: "org/repo", Subdir: "/", Ref: "ref-123"}},
		{input: "org/repo#ref/ABC-123", want: URI{Repo: "org/repo", Subdir: "/", Ref: "ref/ABC-123"}},
		{input: "org/repo#@org/tag@1.2.3", want: URI{Repo: "org/repo", Subdir: "/", Ref: "@org/tag@1.2.3"}},
		{input: "org/repo/foo/bar", want: URI{Repo: "org/repo", Subdir: "/foo/bar"}},
		{input: "org/repo/foo#v1.0.0", want: URI{Repo: "org/repo", Subdir: "/foo", Ref: "v1.0.0"}},
		{input: "my.org/some-repo_1", want: URI{Repo: "my.org/some-repo_1", Subdir: "/"}},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := Parse(tc.input)
			if got != tc.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseInvalidRepo(t *testing.T) {
	for _, input := range []string{"", "repo-only", "#main", "/leading/slash"} {
		got := Parse(input)
		if got.Valid() {
			t.Fatalf("Parse(%q) should not yield a repo, got %+v", input, got)
		}
		if got.Subdir != "/" {
			t.Fatalf("subdir should default to /, got %q", got.Subdir)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	inputs := []string{
		"org/repo",
		"org/repo/",
		"org/repo#main",
		"org/repo/packages/app#release/1.x",
		"org/repo/a/b/c",
	}
	for _, input := range inputs {
		first := Parse(input)
		second := Parse(first.String())
		if first != second {
			t.Fatalf("round trip mismatch for %q: %+v vs %+v", input, first, second)
		}
	}
}

func TestOwnerAndName(t *testing.T) {
	u := Parse("unjs/template/playground")
	if u.Owner() != "unjs" || u.Name() != "template" {
		t.Fatalf("unexpected owner/name: %s %s", u.Owner(), u.Name())
	}
}
