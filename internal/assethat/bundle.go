package assethat

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/util"
)

// BundleReport describes one written bundle or minified file.
type BundleReport struct {
	Type    AssetType
	Bundle  string
	Path    string
	SSL     bool
	Sources []string
	OldSize int
	NewSize int
	Engine  string
}

// PercentSaved is the size reduction in percent; 0 for empty input.
func (r BundleReport) PercentSaved() float64 {
	if r.OldSize == 0 {
		return 0
	}
	return (1 - float64(r.NewSize)/float64(r.OldSize)) * 100
}

// bundleFilepath is where the minified bundle is written.
func bundleFilepath(publicDir string, t AssetType, bundle string, ssl bool) string {
	dir := "bundles"
	if ssl {
		dir = path.Join(dir, "ssl")
	}
	return assetFilepath(publicDir, t, path.Join(dir, bundle+".min"+t.Ext()))
}

// minFilepath maps foo/bar.css to foo/bar.min.css.
func minFilepath(p string, t AssetType) string {
	return strings.TrimSuffix(p, t.Ext()) + ".min" + t.Ext()
}

// MinifyBundle concatenates and minifies the members of one bundle into
// bundles/<bundle>.min.<ext>. CSS bundles get revision tokens and asset
// hosts added to their image URLs, and a second bundles/ssl variant when
// the SSL asset host differs.
func (s *Service) MinifyBundle(ctx context.Context, t AssetType, bundle string) ([]BundleReport, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.configs.Get()
	if err != nil {
		return nil, err
	}
	names := cfg.BundleFilenames(bundle, t)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no %s files are specified for the %q bundle in %s",
			ErrBundleEmpty, t.label(), bundle, s.configs.Path())
	}
	engine := cfg.Type(t).Engine
	if engine == "" {
		engine = DefaultEngine(t)
	}

	paths := make([]string, 0, len(names))
	inputs := make([]string, 0, len(names))
	for _, n := range names {
		p := memberFilepath(s.settings.PublicDir, t, n)
		b, err := readFile(s.fs, p)
		if err != nil {
			return nil, fmt.Errorf("bundle %q: read %s: %w", bundle, p, err)
		}
		paths = append(paths, p)
		inputs = append(inputs, string(b))
	}

	variants := []bool{false}
	if t == CSS && s.hosts.differs() {
		variants = append(variants, true)
	}

	reports := make([]BundleReport, 0, len(variants))
	for _, ssl := range variants {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		rep := BundleReport{
			Type:    t,
			Bundle:  bundle,
			Path:    bundleFilepath(s.settings.PublicDir, t, bundle, ssl),
			SSL:     ssl,
			Sources: paths,
			Engine:  engine,
		}
		var out strings.Builder
		for i, in := range inputs {
			rep.OldSize += len(in)
			minified, err := s.minifyMember(ctx, t, paths[i], in, engine, ssl)
			if err != nil {
				return reports, fmt.Errorf("%s: %w", paths[i], err)
			}
			rep.NewSize += len(minified)
			out.WriteString(minified)
			out.WriteByte('\n')
		}
		if err := s.writeFile(rep.Path, out.String()); err != nil {
			return reports, err
		}
		s.log.Debug().Str("type", string(t)).Str("bundle", bundle).Str("path", rep.Path).
			Int("old", rep.OldSize).Int("new", rep.NewSize).Msg("bundle written")
		reports = append(reports, rep)
	}
	return reports, nil
}

func (s *Service) minifyMember(ctx context.Context, t AssetType, p, in, engine string, ssl bool) (string, error) {
	if t == JS {
		if hasMinSuffix(p, JS) {
			return in, nil
		}
		return Minify(JS, in, engine)
	}
	out, err := Minify(CSS, in, engine)
	if err != nil {
		return "", err
	}
	out = s.AddAssetRevisions(ctx, out)
	return s.AddAssetHosts(out, ssl), nil
}

// MinifyAll builds every configured bundle of type t.
func (s *Service) MinifyAll(ctx context.Context, t AssetType) ([]BundleReport, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.configs.Get()
	if err != nil {
		return nil, err
	}
	bundles := cfg.BundleNames(t)
	if len(bundles) == 0 {
		return nil, fmt.Errorf("%w: you need to set up %s bundles in %s", ErrBundleEmpty, t.label(), s.configs.Path())
	}
	var out []BundleReport
	for _, b := range bundles {
		reps, err := s.MinifyBundle(ctx, t, b)
		out = append(out, reps...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// MinifyFile writes the minified version of one file beside it.
func (s *Service) MinifyFile(ctx context.Context, t AssetType, p string) (BundleReport, error) {
	if err := t.Validate(); err != nil {
		return BundleReport{}, err
	}
	if err := ctx.Err(); err != nil {
		return BundleReport{}, err
	}
	if filepath.Ext(p) != t.Ext() {
		return BundleReport{}, fmt.Errorf("%s: not a %s file", p, t.label())
	}
	if hasMinSuffix(p, t) {
		return BundleReport{}, fmt.Errorf("%s is already minified", p)
	}
	cfg, err := s.configs.Get()
	if err != nil {
		return BundleReport{}, err
	}
	engine := cfg.Type(t).Engine
	if engine == "" {
		engine = DefaultEngine(t)
	}

	b, err := readFile(s.fs, p)
	if err != nil {
		return BundleReport{}, fmt.Errorf("read %s: %w", p, err)
	}
	minified, err := Minify(t, string(b), engine)
	if err != nil {
		return BundleReport{}, fmt.Errorf("%s: %w", p, err)
	}
	rep := BundleReport{
		Type:    t,
		Path:    minFilepath(p, t),
		Sources: []string{p},
		OldSize: len(b),
		NewSize: len(minified),
		Engine:  engine,
	}
	if err := s.writeFile(rep.Path, minified); err != nil {
		return BundleReport{}, err
	}
	return rep, nil
}

func (s *Service) writeFile(p, content string) error {
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", p, err)
	}
	if err := util.WriteFile(s.fs, p, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}
