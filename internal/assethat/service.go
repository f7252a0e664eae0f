package assethat

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
)

// Service owns every cache of the pipeline. Create one per process with
// NewService and share it between requests.
type Service struct {
	settings Settings
	fs       billy.Filesystem
	log      zerolog.Logger

	configs   *ConfigStore
	exists    *existenceCache
	revisions *RevisionResolver
	snapshot  *revisionSnapshot
	vendors   *vendorSources
	resolver  *resolver
	hosts     assetHost
	render    *renderCache
	stats     *statsCollector
	warn      *rateLimitedLogger

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewService(settings Settings) (*Service, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	fsys := settings.FS
	if fsys == nil {
		fsys = osfs.New(settings.Root)
	}
	var log zerolog.Logger
	if settings.Logger != nil {
		log = *settings.Logger
	} else {
		log = NewLogger(settings.Logging.Level, settings.Logging.Format, os.Stderr)
	}

	src, err := newRevisionSource(&settings, fsys)
	if err != nil {
		return nil, err
	}

	var snapshot *revisionSnapshot
	if settings.RevisionStore != "" {
		p := settings.RevisionStore
		if !filepath.IsAbs(p) {
			p = filepath.Join(settings.Root, p)
		}
		snapshot = &revisionSnapshot{path: p}
	}

	registry := settings.Vendors
	if registry == nil {
		registry = DefaultVendorRegistry()
	}

	s := &Service{
		settings: settings,
		fs:       fsys,
		log:      log,
		snapshot: snapshot,
		hosts:    newAssetHost(settings.AssetHost, settings.SSLAssetHost),
		stats:    newStatsCollector(),
		warn:     newRateLimitedLogger(log, time.Minute),
		stopCh:   make(chan struct{}),
	}
	s.configs = NewConfigStore(fsys, settings.ConfigPath, settings.PerformCaching, log)
	s.exists = newExistenceCache(fsys, settings.PublicDir)
	s.revisions = newRevisionResolver(src, s.configs, settings.PublicDir, settings.PerformCaching, log)
	s.vendors = &vendorSources{
		registry:  registry,
		configs:   s.configs,
		exists:    s.exists,
		allLocal:  settings.AllRequestsLocal,
		publicDir: settings.PublicDir,
		warn:      s.warn,
	}
	s.resolver = &resolver{
		caching:     settings.PerformCaching,
		publicDir:   settings.PublicDir,
		emptyBundle: settings.EmptyBundle,
		sslDiffers:  s.hosts.differs(),
		configs:     s.configs,
		exists:      s.exists,
		revisions:   s.revisions,
		vendors:     s.vendors,
		log:         log,
	}
	s.render = newRenderCache(settings.renderCacheMax, s.stats)

	s.preload()

	if settings.statsEveryDur > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.statsLoop(settings.statsEveryDur)
		}()
	}
	return s, nil
}

func (s *Service) Close() {
	s.once.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
	})
}

func (s *Service) Logger() zerolog.Logger { return s.log }
func (s *Service) Settings() Settings { return s.settings }
func (s *Service) ConfigStore() *ConfigStore { return s.configs }
func (s *Service) Revisions() *RevisionResolver { return s.revisions }

func (s *Service) Config() (*Config, error) { return s.configs.Get() }

// SSLAssetHostDiffers reports whether CSS bundles are built twice.
func (s *Service) SSLAssetHostDiffers() bool { return s.hosts.differs() }

func (s *Service) IncludeCSS(ctx context.Context, refs []Reference, opts Options) (template.HTML, error) {
	r, err := s.Include(ctx, CSS, refs, opts)
	return r.HTML, err
}

func (s *Service) IncludeJS(ctx context.Context, refs []Reference, opts Options) (template.HTML, error) {
	r, err := s.Include(ctx, JS, refs, opts)
	return r.HTML, err
}

// Include resolves refs and renders one tag per source, joined by newlines.
// With opts.OnlyURL only the URLs are returned. With performance caching on,
// the result is memoized under the normalized call.
func (s *Service) Include(ctx context.Context, t AssetType, refs []Reference, opts Options) (Rendered, error) {
	if err := t.Validate(); err != nil {
		return Rendered{}, err
	}
	if len(refs) == 0 {
		return Rendered{}, nil
	}
	if opts.Loader != "" && !opts.OnlyURL {
		if t != JS {
			return Rendered{}, fmt.Errorf("loader %q: loaders apply to JS only", opts.Loader)
		}
		if opts.Loader != loaderLABjs {
			return Rendered{}, fmt.Errorf("unknown JS loader %q; allowed: %s", opts.Loader, loaderLABjs)
		}
	}

	// The per-call Cache option is part of the key; only the global flag
	// turns the render cache on.
	key := s.cacheKey(ctx, refs, opts)
	return s.render.GetOrRender(t, key, s.settings.PerformCaching, func() (Rendered, error) {
		return s.renderInclude(ctx, t, refs, opts)
	})
}

func (s *Service) renderInclude(ctx context.Context, t AssetType, refs []Reference, opts Options) (Rendered, error) {
	urls, err := s.urls(ctx, t, refs, opts)
	if err != nil {
		return Rendered{}, err
	}
	out := Rendered{URLs: urls}
	if opts.OnlyURL {
		return out, nil
	}

	var tags []string
	if opts.Loader == loaderLABjs {
		lab, err := s.urls(ctx, JS, []Reference{Vendor(loaderLABjs)}, Options{Cache: opts.Cache, SSL: opts.SSL})
		if err != nil {
			return Rendered{}, err
		}
		tags = append(tags, renderTag(JS, lab[0], nil))
		tags = append(tags, `<script type="text/javascript">`+"\n"+labJSChain(urls)+"\n</script>")
	} else {
		for _, u := range urls {
			tags = append(tags, renderTag(t, u, opts.Attrs))
		}
	}
	out.HTML = template.HTML(strings.Join(tags, "\n"))
	return out, nil
}

func (s *Service) urls(ctx context.Context, t AssetType, refs []Reference, opts Options) ([]string, error) {
	sources, err := s.resolver.Sources(ctx, t, refs, opts)
	if err != nil {
		return nil, err
	}
	ssl := requestSSL(ctx, opts)
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		out = append(out, s.hosts.assetURL(t, src.Path, ssl))
	}
	return out, nil
}

// Sources exposes the resolved source list without rendering.
func (s *Service) Sources(ctx context.Context, t AssetType, refs []Reference, opts Options) ([]Source, error) {
	return s.resolver.Sources(ctx, t, refs, opts)
}

// AssetPath returns the URL of a single asset file, with host and revision
// token applied the same way as for tags.
func (s *Service) AssetPath(ctx context.Context, t AssetType, name string) (string, error) {
	r, err := s.Include(ctx, t, []Reference{Named(name)}, Options{OnlyURL: true})
	if err != nil {
		return "", err
	}
	if len(r.URLs) == 0 {
		return "", fmt.Errorf("asset path %q: nothing resolved", name)
	}
	return r.URLs[0], nil
}

// VendorSource resolves one vendor without rendering.
func (s *Service) VendorSource(id, version string, ssl bool) (string, error) {
	return s.vendors.SourceFor(id, version, ssl)
}

// WarmAll computes every revision token up front. Call it before serving.
func (s *Service) WarmAll(ctx context.Context) error {
	return s.revisions.WarmAll(ctx)
}

// SaveRevisions replaces the revision snapshot with the tokens known now.
// It reports false when no revision_store is configured.
func (s *Service) SaveRevisions() (bool, error) {
	if s.snapshot == nil {
		return false, nil
	}
	if err := s.snapshot.Save(s.revisions.snapshot()); err != nil {
		return false, fmt.Errorf("revision store %s: %w", s.snapshot.path, err)
	}
	return true, nil
}

// ResetRevisions forgets every memoized and persisted revision token.
func (s *Service) ResetRevisions() error {
	s.revisions.Clear()
	if s.snapshot == nil {
		return nil
	}
	if err := s.snapshot.Save(nil); err != nil {
		return fmt.Errorf("revision store %s: %w", s.snapshot.path, err)
	}
	return nil
}

// preload seeds the revision memo from the snapshot. A snapshot that
// cannot be read is skipped: tokens are then computed on demand.
func (s *Service) preload() {
	if s.snapshot == nil {
		return
	}
	recs, err := s.snapshot.Load()
	if err != nil {
		s.log.Warn().Err(err).Str("path", s.snapshot.path).Msg("revision snapshot not loaded")
		return
	}
	s.revisions.load(recs)
	s.log.Debug().Int("entries", len(recs)).Msg("revision snapshot loaded")
}

// Clear drops every in-memory cache.
func (s *Service) Clear() {
	s.configs.Clear()
	s.exists.Clear()
	s.revisions.Clear()
	s.render.Clear()
	s.warn.reset()
}

func (s *Service) ClearHTMLCache() { s.render.Clear() }

// FuncMap exposes the helpers to html/template. Arguments are parsed with
// ParseArgs: {{ include_css "reset" "bundle:app" "media=print" }}.
func (s *Service) FuncMap(ctx context.Context) template.FuncMap {
	include := func(t AssetType) func(args ...string) (template.HTML, error) {
		return func(args ...string) (template.HTML, error) {
			refs, opts, err := ParseArgs(args)
			if err != nil {
				return "", err
			}
			r, err := s.Include(ctx, t, refs, opts)
			return r.HTML, err
		}
	}
	urls := func(t AssetType) func(args ...string) ([]string, error) {
		return func(args ...string) ([]string, error) {
			refs, opts, err := ParseArgs(args)
			if err != nil {
				return nil, err
			}
			opts.OnlyURL = true
			r, err := s.Include(ctx, t, refs, opts)
			return r.URLs, err
		}
	}
	return template.FuncMap{
		"include_css": include(CSS),
		"include_js":  include(JS),
		"css_urls":    urls(CSS),
		"js_urls":     urls(JS),
		"asset_path": func(typ, name string) (string, error) {
			t, err := ParseAssetType(typ)
			if err != nil {
				return "", err
			}
			return s.AssetPath(ctx, t, name)
		},
	}
}

func (s *Service) cachingFor(opts Options) bool {
	if opts.Cache != nil {
		return *opts.Cache
	}
	return s.settings.PerformCaching
}

// cacheKey normalizes a call: equivalent calls share one render cache entry.
func (s *Service) cacheKey(ctx context.Context, refs []Reference, opts Options) string {
	var b strings.Builder
	for i, r := range refs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(r.String())
	}
	b.WriteString("|ssl=" + strconv.FormatBool(requestSSL(ctx, opts)))
	b.WriteString("|cache=" + strconv.FormatBool(s.cachingFor(opts)))
	b.WriteString("|version=" + opts.Version)
	b.WriteString("|only_url=" + strconv.FormatBool(opts.OnlyURL))
	b.WriteString("|loader=" + opts.Loader)

	keys := make([]string, 0, len(opts.Attrs))
	for k := range opts.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("|" + k + "=" + opts.Attrs[k])
	}
	return b.String()
}

func (s *Service) statsLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			ss := s.stats.Snapshot()
			ev := s.log.Info().
				Int("entries", s.render.Len()).
				Str("ram", formatBytes(uint64(s.render.TotalSize()))).
				Uint64("hits", ss.Hits).
				Uint64("misses", ss.Misses).
				Uint64("evictions", ss.Evictions).
				Str("min", formatBytes(ss.MinBytes)).
				Str("avg", formatBytes(ss.AvgBytes)).
				Str("max", formatBytes(ss.MaxBytes))
			if rss, ok := processRSSBytes(); ok {
				ev = ev.Str("rss", formatBytes(rss))
			}
			ev.Msg("render cache")
		}
	}
}
