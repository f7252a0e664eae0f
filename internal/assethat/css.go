package assethat

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	cssImageOrHTCURL = regexp.MustCompile(`url\s*\((['"]?)(/(?:images|htc)/[^)'"]+)(['"]?)\)`)
	cssImageURL      = regexp.MustCompile(`url\s*\((['"]?)(/images/[^)'"]+)(['"]?)\)`)
)

// rewriteCSSURLs calls fn for every url() matched by re and replaces the
// whole url(...) with its result. Unbalanced quotes are left alone.
func rewriteCSSURLs(css string, re *regexp.Regexp, fn func(src, quote string) string) string {
	return re.ReplaceAllStringFunc(css, func(m string) string {
		sub := re.FindStringSubmatch(m)
		open, src, closing := sub[1], sub[2], sub[3]
		if open != closing {
			return m
		}
		return fn(src, open)
	})
}

// AddAssetRevisions appends the revision token of each referenced image or
// .htc file to its URL, so browsers refetch it after it changes.
//
//	url(/images/foo.png)     -> url(/images/foo.png?ab12cd3)
//	url(/images/?id=foo.png) -> url(/images/?id=foo.png&ab12cd3)
func (s *Service) AddAssetRevisions(ctx context.Context, css string) string {
	return rewriteCSSURLs(css, cssImageOrHTCURL, func(src, quote string) string {
		p := filepath.Join(s.settings.PublicDir, stripQuery(src))
		tok, _ := s.revisions.RevisionFor(ctx, p)
		return "url(" + quote + appendToken(src, tok) + quote + ")"
	})
}

// AddAssetHosts prefixes image URLs with the asset host. A "%d" in the host
// expands per image, as for tags.
func (s *Service) AddAssetHosts(css string, ssl bool) string {
	return addAssetHosts(css, s.hosts, ssl)
}

func addAssetHosts(css string, hosts assetHost, ssl bool) string {
	if !hosts.configured() {
		return css
	}
	return rewriteCSSURLs(css, cssImageURL, func(src, quote string) string {
		return "url(" + quote + hosts.For(src, ssl) + src + quote + ")"
	})
}

func hasMinSuffix(name string, t AssetType) bool {
	return strings.HasSuffix(name, ".min"+t.Ext())
}
