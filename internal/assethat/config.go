package assethat

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config mirrors config/assets.yml.
type Config struct {
	CSS TypeConfig `yaml:"css"`
	JS  TypeConfig `yaml:"js"`
}

type TypeConfig struct {
	Engine  string                  `yaml:"engine"`
	Bundles map[string][]string     `yaml:"bundles"`
	Vendors map[string]VendorConfig `yaml:"vendors"`
}

type VendorConfig struct {
	Version      string `yaml:"version"`
	RemoteURL    string `yaml:"remote_url"`
	RemoteSSLURL string `yaml:"remote_ssl_url"`
}

func (c *Config) Type(t AssetType) *TypeConfig {
	if t == CSS {
		return &c.CSS
	}
	return &c.JS
}

// BundleFilenames returns a copy of the bundle's member names with blanks
// dropped, or nil if the bundle is not configured.
func (c *Config) BundleFilenames(bundle string, t AssetType) []string {
	names, ok := c.Type(t).Bundles[bundle]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// BundleNames lists the configured bundles of a type, sorted.
func (c *Config) BundleNames(t AssetType) []string {
	out := make([]string, 0, len(c.Type(t).Bundles))
	for name := range c.Type(t).Bundles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (c *Config) Vendor(id string) (VendorConfig, bool) {
	v, ok := c.JS.Vendors[id]
	return v, ok
}

// ParseConfig renders b as a text/template (with an env function) and
// decodes the result as YAML.
func ParseConfig(b []byte) (*Config, error) {
	tmpl, err := template.New("assets").
		Option("missingkey=zero").
		Funcs(template.FuncMap{"env": os.Getenv}).
		Parse(string(b))
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	var rendered bytes.Buffer
	if err := tmpl.Execute(&rendered, nil); err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(rendered.Bytes(), &cfg); err != nil {
		return nil, err
	}
	for _, t := range Types {
		tc := cfg.Type(t)
		for name := range tc.Bundles {
			if strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("%s.bundles: empty bundle name", t)
			}
		}
	}
	return &cfg, nil
}

// ConfigStore loads the assets config and, when caching, keeps the first
// successful load until Clear.
type ConfigStore struct {
	fs      billy.Filesystem
	path    string
	caching bool
	log     zerolog.Logger

	mu  sync.Mutex
	cfg *Config
}

func NewConfigStore(fsys billy.Filesystem, path string, caching bool, log zerolog.Logger) *ConfigStore {
	return &ConfigStore{
		fs:      fsys,
		path:    path,
		caching: caching,
		log:     log.With().Str("component", "config").Logger(),
	}
}

func (s *ConfigStore) Path() string { return s.path }

// Load always reads the backing file.
func (s *ConfigStore) Load() (*Config, error) {
	f, err := s.fs.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &ConfigMissingError{Path: s.path}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	cfg, err := ParseConfig(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	for id, v := range cfg.JS.Vendors {
		if v.Version == "" {
			continue
		}
		if _, err := semver.NewVersion(v.Version); err != nil {
			s.log.Warn().Str("vendor", id).Str("version", v.Version).Msg("vendor version is not a semantic version")
		}
	}
	s.log.Debug().Str("path", s.path).Msg("loaded asset config")
	return cfg, nil
}

// Get returns the memoized config when caching, and reloads otherwise.
func (s *ConfigStore) Get() (*Config, error) {
	if !s.caching {
		return s.Load()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg != nil {
		return s.cfg, nil
	}
	cfg, err := s.Load()
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	return cfg, nil
}

func (s *ConfigStore) Clear() {
	s.mu.Lock()
	s.cfg = nil
	s.mu.Unlock()
}
