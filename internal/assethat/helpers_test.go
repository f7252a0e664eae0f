package assethat

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testConfig = `
css:
  engine: cssmin
  bundles:
    application:
      - reset
      - layout
      - ""
    app:
      - a
      - b
      - c
    empty: []
js:
  engine: weak
  vendors:
    jquery:
      version: 1.4.4
    prototype:
      remote_url: http://cdn.example.com/prototype.js
      remote_ssl_url: https://cdn.example.com/prototype.js
      version: 1.6.1
  bundles:
    application:
      - plugins
      - app
    vendored:
      - jquery.min.js
      - site
`

// fakeRevisions answers every lookup with token and counts calls per key.
type fakeRevisions struct {
	mu     sync.Mutex
	token  string
	tokens map[string]string
	calls  map[string]int
}

func newFakeRevisions(token string) *fakeRevisions {
	return &fakeRevisions{token: token, tokens: map[string]string{}, calls: map[string]int{}}
}

func (f *fakeRevisions) Revision(_ context.Context, paths []string) (string, error) {
	key := strings.Join(paths, " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if tok, ok := f.tokens[key]; ok {
		return tok, nil
	}
	return f.token, nil
}

func (f *fakeRevisions) Calls(paths ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[strings.Join(paths, " ")]
}

func (f *fakeRevisions) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fixture struct {
	fs   billy.Filesystem
	revs *fakeRevisions
	logs *bytes.Buffer
	svc  *Service
}

type fixtureOption func(*Settings)

func withCaching(on bool) fixtureOption {
	return func(s *Settings) { s.PerformCaching = on }
}

func withHosts(host, sslHost string) fixtureOption {
	return func(s *Settings) {
		s.AssetHost = host
		s.SSLAssetHost = sslHost
	}
}

func withAllLocal() fixtureOption {
	return func(s *Settings) { s.AllRequestsLocal = true }
}

// newFixture builds a Service over an in-memory project with testConfig and
// a few asset files. Every revision lookup returns "111".
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	fsys := memfs.New()
	writeTestFile(t, fsys, DefaultConfigPath, testConfig)
	for _, f := range []string{
		"public/stylesheets/foo.css",
		"public/stylesheets/foo.min.css",
		"public/stylesheets/bar.css",
		"public/stylesheets/bar.min.css",
		"public/stylesheets/reset.css",
		"public/stylesheets/layout.css",
		"public/javascripts/app.js",
		"public/javascripts/plugins.js",
	} {
		writeTestFile(t, fsys, f, "/* "+f+" */\n")
	}

	logs := &bytes.Buffer{}
	log := zerolog.New(logs)
	revs := newFakeRevisions("111")

	s := DefaultSettings()
	s.FS = fsys
	s.Logger = &log
	s.Revisions = revs
	for _, o := range opts {
		o(&s)
	}

	svc, err := NewService(s)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return &fixture{fs: fsys, revs: revs, logs: logs, svc: svc}
}

func writeTestFile(t *testing.T, fsys billy.Filesystem, name, content string) {
	t.Helper()
	require.NoError(t, util.WriteFile(fsys, name, []byte(content), 0o644))
}

func readTestFile(t *testing.T, fsys billy.Filesystem, name string) string {
	t.Helper()
	b, err := readFile(fsys, name)
	require.NoError(t, err)
	return string(b)
}

func sourcePaths(sources []Source) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		out = append(out, s.Path)
	}
	return out
}

func countLines(s, sub string) int { return strings.Count(s, sub) }
