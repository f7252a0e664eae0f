package assethat

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTag(t *testing.T) {
	assert.Equal(t,
		`<link href="/stylesheets/foo.css?111" media="screen,projection" rel="stylesheet" type="text/css" />`,
		renderTag(CSS, "/stylesheets/foo.css?111", nil))
	assert.Equal(t,
		`<link href="/stylesheets/foo.css" media="print" rel="stylesheet" type="text/css" />`,
		renderTag(CSS, "/stylesheets/foo.css", map[string]string{"media": "print"}))
	assert.Equal(t,
		`<script defer="defer" src="/javascripts/a.js?x=1&amp;111" type="text/javascript"></script>`,
		renderTag(JS, "/javascripts/a.js?x=1&111", map[string]string{"defer": "defer"}))
}

func TestAssetHost(t *testing.T) {
	h := newAssetHost("http://cdn%d.example.com", "")
	got := h.For("/images/foo.png", false)
	assert.Regexp(t, `^http://cdn[0-3]\.example\.com$`, got)
	assert.Equal(t, got, h.For("/images/foo.png", false))
	assert.False(t, h.differs())

	h = newAssetHost("http://cdn.example.com", "https://secure.example.com")
	assert.Equal(t, "https://secure.example.com", h.For("x", true))
	assert.True(t, h.differs())

	assert.False(t, newAssetHost("", "").configured())
}

func TestAssetURL(t *testing.T) {
	h := newAssetHost("http://cdn.example.com", "")
	assert.Equal(t, "http://cdn.example.com/stylesheets/foo.css?1", h.assetURL(CSS, "foo.css?1", false))
	assert.Equal(t, "http://cdn.example.com/plugins/x.js", h.assetURL(JS, "/plugins/x.js", false))
	assert.Equal(t, "https://other.example.com/x.js", h.assetURL(JS, "https://other.example.com/x.js", false))

	assert.Equal(t, "/javascripts/app.js", newAssetHost("", "").assetURL(JS, "app.js", true))
}

func TestIncludeRendersTags(t *testing.T) {
	f := newFixture(t, withCaching(true))

	html, err := f.svc.IncludeCSS(context.Background(), []Reference{Named("foo"), Named("bar")}, Options{Attrs: map[string]string{"media": "all"}})
	require.NoError(t, err)
	assert.Equal(t, template.HTML(
		`<link href="/stylesheets/foo.min.css?111" media="all" rel="stylesheet" type="text/css" />`+"\n"+
			`<link href="/stylesheets/bar.min.css?111" media="all" rel="stylesheet" type="text/css" />`), html)
}

func TestIncludeOnlyURL(t *testing.T) {
	f := newFixture(t, withHosts("http://cdn.example.com", ""))

	r, err := f.svc.Include(context.Background(), JS, []Reference{Vendor("jquery"), Named("app")}, Options{OnlyURL: true})
	require.NoError(t, err)
	assert.Empty(t, r.HTML)
	assert.Equal(t, []string{
		"http://ajax.googleapis.com/ajax/libs/jquery/1.4.4/jquery.min.js",
		"http://cdn.example.com/javascripts/app.js",
	}, r.URLs)
}

func TestIncludeWithLABjsLoader(t *testing.T) {
	f := newFixture(t)
	writeTestFile(t, f.fs, "public/javascripts/LAB.min.js", "/* lab */")

	html, err := f.svc.IncludeJS(context.Background(), []Reference{Vendor("jquery"), Named("app")}, Options{Loader: "lab_js"})
	require.NoError(t, err)
	assert.Equal(t, template.HTML(strings.Join([]string{
		`<script src="/javascripts/LAB.min.js" type="text/javascript"></script>`,
		`<script type="text/javascript">`,
		`window.$LABinst=$LAB.`,
		`  script('http://ajax.googleapis.com/ajax/libs/jquery/1.4.4/jquery.min.js').wait().`,
		`  script('/javascripts/app.js').wait();`,
		`</script>`,
	}, "\n")), html)

	_, err = f.svc.IncludeJS(context.Background(), []Reference{Named("app")}, Options{Loader: "requirejs"})
	assert.ErrorContains(t, err, "requirejs")
	_, err = f.svc.IncludeCSS(context.Background(), []Reference{Named("foo")}, Options{Loader: "lab_js"})
	assert.Error(t, err)
}

func TestRenderCachePopulatedOnlyWhenCaching(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	_, err := f.svc.IncludeCSS(ctx, []Reference{Named("foo")}, Options{})
	require.NoError(t, err)
	assert.Zero(t, f.svc.render.Len())

	f = newFixture(t, withCaching(true))
	_, err = f.svc.IncludeCSS(ctx, []Reference{Named("foo")}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.render.Len())

	f.svc.ClearHTMLCache()
	assert.Zero(t, f.svc.render.Len())
}

func TestRenderCacheFollowsGlobalFlagNotCallOption(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	_, err := f.svc.IncludeCSS(ctx, []Reference{Named("foo")}, Options{Cache: Bool(true)})
	require.NoError(t, err)
	assert.Zero(t, f.svc.render.Len())

	f = newFixture(t, withCaching(true))
	_, err = f.svc.IncludeCSS(ctx, []Reference{Named("foo")}, Options{Cache: Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.render.Len())

	_, err = f.svc.IncludeCSS(ctx, []Reference{Named("foo")}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.svc.render.Len())
}

func TestRenderCacheKeyIncludesEveryInput(t *testing.T) {
	f := newFixture(t, withCaching(true), withHosts("http://a.example.com", "https://b.example.com"))
	ctx := context.Background()
	refs := []Reference{Named("foo")}

	plain, err := f.svc.IncludeCSS(ctx, refs, Options{})
	require.NoError(t, err)
	secure, err := f.svc.IncludeCSS(WithRequest(ctx, RequestInfo{SSL: true}), refs, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, plain, secure)
	assert.Contains(t, string(secure), "https://b.example.com/")

	_, err = f.svc.IncludeCSS(ctx, refs, Options{Attrs: map[string]string{"media": "print", "title": "x"}})
	require.NoError(t, err)
	assert.Equal(t, 3, f.svc.render.Len())

	// Attribute order does not matter.
	key1 := f.svc.cacheKey(ctx, refs, Options{Attrs: map[string]string{"a": "1", "b": "2"}})
	key2 := f.svc.cacheKey(ctx, refs, Options{Attrs: map[string]string{"b": "2", "a": "1"}})
	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, f.svc.cacheKey(ctx, refs, Options{Version: "2"}))
}

func TestRenderCacheEvictsLeastRecentlyUsed(t *testing.T) {
	stats := newStatsCollector()
	c := newRenderCache(100, stats)
	entry := Rendered{HTML: template.HTML(strings.Repeat("x", 30))}

	c.Put("a", entry)
	c.Put("b", entry)
	c.Put("c", entry)
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("d", entry)
	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.LessOrEqual(t, c.TotalSize(), int64(100))
	assert.Equal(t, uint64(1), stats.Snapshot().Evictions)

	// Larger than the whole budget: never stored.
	c.Put("huge", Rendered{HTML: template.HTML(strings.Repeat("x", 200))})
	_, ok = c.Get("huge")
	assert.False(t, ok)
}

func TestRenderCacheDoesNotCacheErrors(t *testing.T) {
	c := newRenderCache(0, newStatsCollector())
	calls := 0
	fail := func() (Rendered, error) {
		calls++
		return Rendered{}, assert.AnError
	}
	_, err := c.GetOrRender(CSS, "k", true, fail)
	require.ErrorIs(t, err, assert.AnError)
	_, err = c.GetOrRender(CSS, "k", true, fail)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, calls)
	assert.Zero(t, c.Len())
}

func TestStatsSnapshot(t *testing.T) {
	s := newStatsCollector()
	assert.Zero(t, s.Snapshot().MinBytes)

	s.Observe(10)
	s.Observe(30)
	s.Hit()
	s.Miss()
	ss := s.Snapshot()
	assert.Equal(t, uint64(10), ss.MinBytes)
	assert.Equal(t, uint64(30), ss.MaxBytes)
	assert.Equal(t, uint64(20), ss.AvgBytes)
	assert.Equal(t, uint64(1), ss.Hits)
	assert.Equal(t, uint64(1), ss.Misses)
}

func TestFuncMap(t *testing.T) {
	f := newFixture(t, withCaching(true))
	tmpl := template.Must(template.New("page").Funcs(f.svc.FuncMap(context.Background())).Parse(
		`{{ include_css "foo" "media=print" }}|{{ range js_urls "bundle:application" }}{{ . }}{{ end }}|{{ asset_path "js" "app" }}`))

	var out bytes.Buffer
	require.NoError(t, tmpl.Execute(&out, nil))
	assert.Equal(t,
		`<link href="/stylesheets/foo.min.css?111" media="print" rel="stylesheet" type="text/css" />`+
			`|/javascripts/bundles/application.min.js?111|/javascripts/app.js?111`,
		out.String())
}
