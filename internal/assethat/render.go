package assethat

import (
	"hash/crc32"
	"html"
	"sort"
	"strconv"
	"strings"
)

const defaultCSSMedia = "screen,projection"

// assetHost computes the host prefix for an asset URL. A "%d" in the host is
// replaced with a number in 0-3 derived from the source, spreading assets
// over four host names.
type assetHost struct {
	host    string
	sslHost string
}

func newAssetHost(host, sslHost string) assetHost {
	return assetHost{host: host, sslHost: sslHost}
}

func (h assetHost) For(source string, ssl bool) string {
	host := h.host
	if ssl && h.sslHost != "" {
		host = h.sslHost
	}
	if strings.Contains(host, "%d") {
		n := crc32.ChecksumIEEE([]byte(source)) % 4
		host = strings.ReplaceAll(host, "%d", strconv.FormatUint(uint64(n), 10))
	}
	return host
}

func (h assetHost) configured() bool { return h.host != "" || h.sslHost != "" }

// differs reports whether SSL pages get assets from a different host than
// plain pages; CSS bundles then need an SSL variant.
func (h assetHost) differs() bool {
	return h.For("x.png", false) != h.For("x.png", true)
}

// assetURL maps a resolved source to the URL used in markup.
func (h assetHost) assetURL(t AssetType, source string, ssl bool) string {
	if isAbsoluteURL(source) {
		return source
	}
	p := source
	if !strings.HasPrefix(p, "/") {
		p = t.URLPath() + "/" + p
	}
	return h.For(p, ssl) + p
}

// renderTag renders a stylesheet link or script tag. Attributes are written
// in sorted order so output is stable.
func renderTag(t AssetType, url string, attrs map[string]string) string {
	all := map[string]string{}
	switch t {
	case CSS:
		all["media"] = defaultCSSMedia
		all["rel"] = "stylesheet"
		all["type"] = "text/css"
	case JS:
		all["type"] = "text/javascript"
	}
	for k, v := range attrs {
		all[k] = v
	}
	if t == CSS {
		all["href"] = url
	} else {
		all["src"] = url
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	if t == CSS {
		b.WriteString("<link")
	} else {
		b.WriteString("<script")
	}
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(html.EscapeString(k))
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(all[k]))
		b.WriteString(`"`)
	}
	if t == CSS {
		b.WriteString(" />")
	} else {
		b.WriteString("></script>")
	}
	return b.String()
}
