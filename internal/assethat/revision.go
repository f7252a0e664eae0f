package assethat

import (
	"context"
	"strings"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// RevisionSource looks up the revision token of the most recent change to
// any of paths. An empty token means "unknown"; it is not an error.
type RevisionSource interface {
	Revision(ctx context.Context, paths []string) (string, error)
}

// RevisionResolver memoizes revision tokens per file set and per bundle.
//
// Tokens are computed on first use and kept until Clear: a long-running
// process does not notice commits made after it started. Misses are
// memoized too, so an untracked file costs one lookup, not one per request.
type RevisionResolver struct {
	src       RevisionSource
	configs   *ConfigStore
	publicDir string
	caching   bool
	log       zerolog.Logger

	files   cmap.ConcurrentMap[string, string]
	bundles cmap.ConcurrentMap[string, string]
	group   singleflight.Group
}

func newRevisionResolver(src RevisionSource, configs *ConfigStore, publicDir string, caching bool, log zerolog.Logger) *RevisionResolver {
	return &RevisionResolver{
		src:       src,
		configs:   configs,
		publicDir: publicDir,
		caching:   caching,
		log:       log.With().Str("component", "revisions").Logger(),
		files:     cmap.New[string](),
		bundles:   cmap.New[string](),
	}
}

// RevisionFor returns the token for the given project-relative paths. The
// memo key is the space-joined path list, so order matters.
func (r *RevisionResolver) RevisionFor(ctx context.Context, paths ...string) (string, bool) {
	if len(paths) == 0 || r.src == nil {
		return "", false
	}
	key := strings.Join(paths, " ")
	if tok, ok := r.files.Get(key); ok {
		return tok, tok != ""
	}
	tok := r.lookup(ctx, key, paths, false)
	return tok, tok != ""
}

// lookup asks the source and memoizes the answer. With fresh set the memo is
// not consulted, so a stale entry is overwritten.
func (r *RevisionResolver) lookup(ctx context.Context, key string, paths []string, fresh bool) string {
	flight := "f:" + key
	if fresh {
		flight = "w:" + key
	}
	v, _, _ := r.group.Do(flight, func() (any, error) {
		if !fresh {
			if tok, ok := r.files.Get(key); ok {
				return tok, nil
			}
		}
		tok, err := r.src.Revision(ctx, paths)
		if err != nil {
			r.log.Debug().Err(err).Strs("paths", paths).Msg("revision lookup failed")
			if ctx.Err() != nil {
				return "", nil
			}
			tok = ""
		}
		tok = strings.TrimSpace(tok)
		r.files.Set(key, tok)
		return tok, nil
	})
	return v.(string)
}

// RevisionForBundle returns the token of the most recently changed member
// of a configured bundle.
func (r *RevisionResolver) RevisionForBundle(ctx context.Context, bundle string, t AssetType) (string, bool, error) {
	if err := t.Validate(); err != nil {
		return "", false, err
	}
	key := bundleMemoKey(t, bundle)
	if tok, ok := r.bundles.Get(key); ok {
		return tok, tok != "", nil
	}

	cfg, err := r.configs.Get()
	if err != nil {
		return "", false, err
	}
	paths := r.bundleFilepaths(cfg, bundle, t)
	tok, _ := r.RevisionFor(ctx, paths...)
	if ctx.Err() == nil {
		r.bundles.Set(key, tok)
	}
	return tok, tok != "", nil
}

func (r *RevisionResolver) bundleFilepaths(cfg *Config, bundle string, t AssetType) []string {
	names := cfg.BundleFilenames(bundle, t)
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, memberFilepath(r.publicDir, t, n))
	}
	return out
}

// WarmAll recomputes the token of every configured bundle and member file,
// overwriting whatever the memo holds (a loaded snapshot included). Run it
// once at boot, before serving.
func (r *RevisionResolver) WarmAll(ctx context.Context) error {
	cfg, err := r.configs.Get()
	if err != nil {
		return err
	}
	if r.src == nil {
		return nil
	}
	seen := map[string]struct{}{}
	refresh := func(paths ...string) string {
		key := strings.Join(paths, " ")
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			r.lookup(ctx, key, paths, true)
		}
		tok, _ := r.files.Get(key)
		return tok
	}

	var files, bundles int
	for _, t := range Types {
		for _, bundle := range cfg.BundleNames(t) {
			if err := ctx.Err(); err != nil {
				return err
			}
			paths := r.bundleFilepaths(cfg, bundle, t)
			if r.caching {
				tok := ""
				if len(paths) > 0 {
					tok = refresh(paths...)
				}
				r.bundles.Set(bundleMemoKey(t, bundle), tok)
				bundles++
			}
			for _, p := range paths {
				refresh(p)
				files++
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.log.Info().Int("bundles", bundles).Int("files", files).Msg("revision tokens warmed")
	return nil
}

// Clear drops every memoized token; the next lookups hit the source again.
func (r *RevisionResolver) Clear() {
	r.files.Clear()
	r.bundles.Clear()
}

// load seeds the memo from snapshot records.
func (r *RevisionResolver) load(recs map[string]string) {
	for k, tok := range recs {
		switch {
		case strings.HasPrefix(k, filePrefix):
			r.files.Set(strings.TrimPrefix(k, filePrefix), tok)
		case strings.HasPrefix(k, bundlePrefix):
			r.bundles.Set(strings.TrimPrefix(k, bundlePrefix), tok)
		}
	}
}

// snapshot returns every known token keyed for the snapshot store. Misses
// are left out.
func (r *RevisionResolver) snapshot() map[string]string {
	out := map[string]string{}
	for k, tok := range r.files.Items() {
		if tok != "" {
			out[fileStoreKey(k)] = tok
		}
	}
	for k, tok := range r.bundles.Items() {
		if tok != "" {
			out[bundleStoreKey(k)] = tok
		}
	}
	return out
}

func bundleMemoKey(t AssetType, bundle string) string { return string(t) + "/" + bundle }
