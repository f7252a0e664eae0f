package assethat

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"
)

type resolver struct {
	caching     bool
	publicDir   string
	emptyBundle string
	sslDiffers  bool

	configs   *ConfigStore
	exists    *existenceCache
	revisions *RevisionResolver
	vendors   *vendorSources
	log       zerolog.Logger
}

// Sources expands refs into the ordered, de-duplicated list of sources for
// type t. When caching, minified variants and pre-built bundles are used and
// revision tokens are appended to local sources. Local vendor files always
// get a token.
func (r *resolver) Sources(ctx context.Context, t AssetType, refs []Reference, opts Options) ([]Source, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}

	useCaching := r.caching
	if opts.Cache != nil {
		useCaching = *opts.Cache
	}
	ssl := requestSSL(ctx, opts)

	var expanded []Source
	for _, ref := range refs {
		switch ref.Kind {
		case RefNamed:
			src, err := r.named(ref.Name, t, useCaching)
			if err != nil {
				return nil, err
			}
			expanded = append(expanded, src)

		case RefBundle:
			if useCaching {
				dir := "bundles"
				if ssl && t == CSS && r.sslDiffers {
					dir = "bundles/ssl"
				}
				expanded = append(expanded, Source{
					Path:   path.Join(dir, ref.Name+".min"+t.Ext()),
					Bundle: ref.Name,
				})
				continue
			}
			members, err := r.bundleMembers(ref.Name, t)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				src, err := r.named(m, t, false)
				if err != nil {
					return nil, err
				}
				expanded = append(expanded, src)
			}

		case RefVendor:
			if t != JS {
				return nil, fmt.Errorf("vendor %q: vendors are JS only, not %s", ref.Name, t)
			}
			version := ref.Version
			if version == "" {
				version = opts.Version
			}
			p, err := r.vendors.SourceFor(ref.Name, version, ssl)
			if err != nil {
				return nil, err
			}
			expanded = append(expanded, Source{Path: p, vendor: true})

		default:
			return nil, fmt.Errorf("asset reference %q: unknown kind %d", ref.Name, ref.Kind)
		}
	}

	// Local vendor copies carry a token even when caching is off.
	sources := dedupeSources(expanded)
	for i, src := range sources {
		if src.Remote() || (!useCaching && !src.vendor) {
			continue
		}
		var tok string
		if src.Bundle != "" {
			var err error
			tok, _, err = r.revisions.RevisionForBundle(ctx, src.Bundle, t)
			if err != nil {
				return nil, err
			}
		} else {
			tok, _ = r.revisions.RevisionFor(ctx, assetFilepath(r.publicDir, t, stripQuery(src.Path)))
		}
		sources[i].Path = appendToken(src.Path, tok)
	}
	return sources, nil
}

func (r *resolver) named(name string, t AssetType, useCaching bool) (Source, error) {
	if name == "" {
		return Source{}, fmt.Errorf("empty %s file name", t)
	}
	if strings.HasSuffix(stripQuery(name), t.Ext()) || isAbsoluteURL(name) {
		return Source{Path: name}, nil
	}
	if useCaching {
		minName := name + ".min" + t.Ext()
		ok, err := r.exists.Exists(minName, t)
		if err != nil {
			return Source{}, err
		}
		if ok {
			return Source{Path: minName}, nil
		}
	}
	return Source{Path: name + t.Ext()}, nil
}

func (r *resolver) bundleMembers(bundle string, t AssetType) ([]string, error) {
	cfg, err := r.configs.Get()
	if err != nil {
		return nil, err
	}
	names := cfg.BundleFilenames(bundle, t)
	if len(names) > 0 {
		return names, nil
	}
	if r.emptyBundle == EmptyBundleSkip {
		r.log.Warn().Str("type", string(t)).Str("bundle", bundle).Msg("bundle has no files, skipping")
		return nil, nil
	}
	return nil, fmt.Errorf("%w: no %s files are specified for the %q bundle in %s",
		ErrBundleEmpty, t.label(), bundle, r.configs.Path())
}

func dedupeSources(in []Source) []Source {
	seen := make(map[string]struct{}, len(in))
	out := make([]Source, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s.Path]; ok {
			continue
		}
		seen[s.Path] = struct{}{}
		out = append(out, s)
	}
	return out
}

func stripQuery(s string) string {
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i]
	}
	return s
}
