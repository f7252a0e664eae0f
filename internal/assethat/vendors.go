package assethat

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type VendorOptions struct {
	SSL bool
}

// VendorResolver knows where a third-party library lives: its file name in
// the local javascripts directory, and its URL on a public CDN. RemoteURI is
// only called with a non-empty version and may return "" when no CDN hosts
// the library.
type VendorResolver interface {
	LocalURI(version string, opts VendorOptions) string
	RemoteURI(version string, opts VendorOptions) string
}

// VendorFuncs adapts a pair of functions to VendorResolver. Version, when
// set, is used if neither the caller nor the config name a version.
type VendorFuncs struct {
	Local   func(version string, opts VendorOptions) string
	Remote  func(version string, opts VendorOptions) string
	Version string
}

func (v VendorFuncs) LocalURI(version string, opts VendorOptions) string {
	return v.Local(version, opts)
}

func (v VendorFuncs) RemoteURI(version string, opts VendorOptions) string {
	if v.Remote == nil {
		return ""
	}
	return v.Remote(version, opts)
}

func (v VendorFuncs) DefaultVersion() string { return v.Version }

type VendorRegistry struct {
	mu      sync.RWMutex
	vendors map[string]VendorResolver
}

func NewVendorRegistry() *VendorRegistry {
	return &VendorRegistry{vendors: map[string]VendorResolver{}}
}

func (r *VendorRegistry) Register(id string, v VendorResolver) {
	r.mu.Lock()
	r.vendors[id] = v
	r.mu.Unlock()
}

func (r *VendorRegistry) Lookup(id string) (VendorResolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vendors[id]
	return v, ok
}

func (r *VendorRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.vendors))
	for id := range r.vendors {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DefaultVendorRegistry holds the libraries served by the Google and cdnjs
// CDNs.
func DefaultVendorRegistry() *VendorRegistry {
	r := NewVendorRegistry()
	r.Register("dojo", googleVendor("dojo", "dojo", "dojo/dojo.xd.js", true))
	r.Register("ext_core", googleVendor("ext-core", "ext-core", "ext-core.js", true))
	r.Register("jquery", googleVendor("jquery", "jquery", "jquery.min.js", true))
	r.Register("jquery_ui", googleVendor("jqueryui", "jquery-ui", "jquery-ui.min.js", true))
	r.Register("mootools", googleVendor("mootools", "mootools", "mootools-yui-compressed.js", true))
	// No official minified builds of prototype and script.aculo.us exist.
	r.Register("prototype", googleVendor("prototype", "prototype", "prototype.js", false))
	r.Register("scriptaculous", googleVendor("scriptaculous", "scriptaculous", "scriptaculous.js", false))
	r.Register("swfobject", googleVendor("swfobject", "swfobject", "swfobject.js", true))
	r.Register("webfont", googleVendor("webfont", "webfont", "webfont.js", true))
	r.Register("yui", googleVendor("yui", "yui", "build/yuiloader/yuiloader-min.js", true))
	r.Register("lab_js", VendorFuncs{
		Local: func(version string, _ VendorOptions) string { return localVendorName("LAB", version, true) },
		Remote: func(version string, opts VendorOptions) string {
			// cdnjs serves SSL from its CloudFront bucket.
			host := "http://ajax.cdnjs.com"
			if opts.SSL {
				host = "https://d3eee1nukb5wg.cloudfront.net"
			}
			return host + "/ajax/libs/labjs/" + version + "/LAB.min.js"
		},
	})
	return r
}

func googleVendor(lib, local, file string, minified bool) VendorFuncs {
	return VendorFuncs{
		Local: func(version string, _ VendorOptions) string {
			return localVendorName(local, version, minified)
		},
		Remote: func(version string, opts VendorOptions) string {
			return scheme(opts.SSL) + "://ajax.googleapis.com/ajax/libs/" + lib + "/" + version + "/" + file
		},
	}
}

func localVendorName(base, version string, minified bool) string {
	name := base
	if version != "" {
		name += "-" + version
	}
	if minified {
		return name + ".min.js"
	}
	return name + ".js"
}

func scheme(ssl bool) string {
	if ssl {
		return "https"
	}
	return "http"
}

// vendorSources decides between the local copy and a remote URL.
type vendorSources struct {
	registry  *VendorRegistry
	configs   *ConfigStore
	exists    *existenceCache
	allLocal  bool
	publicDir string
	warn      *rateLimitedLogger
}

// SourceFor returns the local file name (relative to the javascripts
// directory) or the absolute URL to include for vendor id.
//
// The local copy wins when all requests are considered local and the file
// exists, or when no version is known (no remote URL can be built). Otherwise
// the configured remote URL wins over the built-in CDN. A vendor without any
// remote falls back to the local path even if the file is missing: the page
// still renders and the 404 shows up in the logs.
func (v *vendorSources) SourceFor(id, version string, ssl bool) (string, error) {
	vr, ok := v.registry.Lookup(id)
	if !ok {
		return "", fmt.Errorf("%w %q; known vendors: %s", ErrUnknownVendor, id, strings.Join(v.registry.IDs(), ", "))
	}
	cfg, err := v.configs.Get()
	if err != nil {
		return "", err
	}
	vc, _ := cfg.Vendor(id)

	if version == "" {
		version = vc.Version
	}
	if version == "" {
		if d, ok := vr.(interface{ DefaultVersion() string }); ok {
			version = d.DefaultVersion()
		}
	}

	opts := VendorOptions{SSL: ssl}
	local := vr.LocalURI(version, opts)
	localExists, err := v.exists.Exists(local, JS)
	if err != nil {
		return "", err
	}

	if (v.allLocal && localExists) || version == "" {
		if !localExists && version == "" {
			v.warnMissing(id, local, "no vendor version was given in "+v.configs.Path())
		}
		return local, nil
	}

	src := ""
	if ssl {
		src = vc.RemoteSSLURL
	}
	if src == "" {
		src = vc.RemoteURL
	}
	if src == "" {
		src = vr.RemoteURI(version, opts)
	}
	if src == "" {
		v.warnMissing(id, local, "no remote URL is known for it")
		return local, nil
	}
	return src, nil
}

func (v *vendorSources) warnMissing(id, local, why string) {
	v.warn.Warn("vendor:"+id, func(e *zerolog.Event) {
		e.Str("vendor", id).Str("path", assetFilepath(v.publicDir, JS, local))
	}, "vendor JS referenced but its local copy could not be found and no remote fallback could be used: "+why)
}
