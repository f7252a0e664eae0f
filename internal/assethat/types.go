package assethat

import (
	"fmt"
	"strings"
)

// AssetType is one of the two supported asset kinds.
type AssetType string

const (
	CSS AssetType = "css"
	JS  AssetType = "js"
)

// Types lists every supported asset type, in the order bundles are built.
var Types = []AssetType{CSS, JS}

func ParseAssetType(s string) (AssetType, error) {
	t := AssetType(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

func (t AssetType) Validate() error {
	switch t {
	case CSS, JS:
		return nil
	}
	return fmt.Errorf("%w %q; should be one of: css, js", ErrUnsupportedAssetType, string(t))
}

// Ext returns the file extension including the leading dot.
func (t AssetType) Ext() string { return "." + string(t) }

func (t AssetType) dirName() string {
	if t == CSS {
		return "stylesheets"
	}
	return "javascripts"
}

// URLPath is the root URL path under which assets of this type are served.
func (t AssetType) URLPath() string { return "/" + t.dirName() }

func (t AssetType) label() string { return strings.ToUpper(string(t)) }

type RefKind int

const (
	RefNamed RefKind = iota
	RefBundle
	RefVendor
)

func (k RefKind) String() string {
	switch k {
	case RefBundle:
		return "bundle"
	case RefVendor:
		return "vendor"
	}
	return "name"
}

// Reference is a logical asset reference: a bare file name, a configured
// bundle or a third-party vendor library.
type Reference struct {
	Kind    RefKind
	Name    string
	Version string // vendors only
}

func Named(name string) Reference { return Reference{Kind: RefNamed, Name: name} }
func Bundle(name string) Reference { return Reference{Kind: RefBundle, Name: name} }
func Vendor(id string) Reference { return Reference{Kind: RefVendor, Name: id} }

func (r Reference) WithVersion(v string) Reference {
	r.Version = v
	return r
}

// String renders the reference in the form accepted by ParseReference.
func (r Reference) String() string {
	switch r.Kind {
	case RefBundle:
		return "bundle:" + r.Name
	case RefVendor:
		if r.Version != "" {
			return "vendor:" + r.Name + "@" + r.Version
		}
		return "vendor:" + r.Name
	}
	return r.Name
}

// ParseReference understands "name", "bundle:name" and "vendor:id[@version]".
func ParseReference(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Reference{}, fmt.Errorf("empty asset reference")
	case strings.HasPrefix(s, "bundle:"):
		name := strings.TrimSpace(strings.TrimPrefix(s, "bundle:"))
		if name == "" {
			return Reference{}, fmt.Errorf("asset reference %q: empty bundle name", s)
		}
		return Bundle(name), nil
	case strings.HasPrefix(s, "vendor:"):
		id, version, _ := strings.Cut(strings.TrimPrefix(s, "vendor:"), "@")
		id = strings.TrimSpace(id)
		if id == "" {
			return Reference{}, fmt.Errorf("asset reference %q: empty vendor id", s)
		}
		return Vendor(id).WithVersion(strings.TrimSpace(version)), nil
	}
	return Named(s), nil
}

// Options tune one inclusion call.
type Options struct {
	// Cache overrides Settings.PerformCaching for this call.
	Cache *bool
	// SSL overrides the request's SSL flag.
	SSL *bool
	// Version applies to every vendor reference without its own version.
	Version string
	// OnlyURL returns URLs instead of HTML tags.
	OnlyURL bool
	// Loader renders JS through a script loader; only "lab_js" is known.
	Loader string
	// Attrs are passed through to the rendered tags.
	Attrs map[string]string
}

func Bool(b bool) *bool { return &b }

// ParseArgs splits helper arguments into references and options. Arguments
// of the form key=value are options; cache, ssl, version, only_url and loader
// are understood, any other key becomes an HTML attribute.
func ParseArgs(args []string) ([]Reference, Options, error) {
	var (
		refs []Reference
		opts Options
	)
	for _, a := range args {
		key, val, isOpt := strings.Cut(a, "=")
		if !isOpt || strings.ContainsAny(key, "/.:") {
			ref, err := ParseReference(a)
			if err != nil {
				return nil, Options{}, err
			}
			refs = append(refs, ref)
			continue
		}
		key = strings.TrimSpace(key)
		switch key {
		case "cache":
			opts.Cache = Bool(isTrue(val))
		case "ssl":
			opts.SSL = Bool(isTrue(val))
		case "version":
			opts.Version = val
		case "only_url":
			opts.OnlyURL = isTrue(val)
		case "loader":
			opts.Loader = val
		default:
			if opts.Attrs == nil {
				opts.Attrs = map[string]string{}
			}
			opts.Attrs[key] = val
		}
	}
	return refs, opts, nil
}

func isTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	}
	return false
}

// Source is one resolved asset. Path is relative to the type directory
// unless it is an absolute URL.
type Source struct {
	Path   string
	Bundle string // set when Path is a pre-built bundle file

	vendor bool
}

func (s Source) Remote() bool { return isAbsoluteURL(s.Path) }

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "//")
}

func appendToken(src, token string) string {
	if token == "" {
		return src
	}
	if strings.Contains(src, "?") {
		return src + "&" + token
	}
	return src + "?" + token
}
