package assethat

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath   = "config/assets.yml"
	DefaultSettingsPath = "config/assethat.yml"

	VCSGit         = "git"
	VCSGoGit       = "go-git"
	VCSFingerprint = "fingerprint"
	VCSNone        = "none"

	EmptyBundleError = "error"
	EmptyBundleSkip  = "skip"
)

// Settings are the environment-level knobs of the pipeline. They are read
// once at process start; the assets config itself lives in ConfigPath.
type Settings struct {
	Root             string `yaml:"root"`
	PublicDir        string `yaml:"public_dir"`
	ConfigPath       string `yaml:"config_path"`
	PerformCaching   bool   `yaml:"perform_caching"`
	AllRequestsLocal bool   `yaml:"all_requests_local"`
	AssetHost        string `yaml:"asset_host"`
	SSLAssetHost     string `yaml:"ssl_asset_host"`
	VCS              string `yaml:"vcs"`
	RevisionStore    string `yaml:"revision_store"`
	EmptyBundle      string `yaml:"empty_bundle"`

	RenderCache struct {
		Max string `yaml:"max"`
	} `yaml:"render_cache"`

	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		StatsEvery string `yaml:"stats_every"`
	} `yaml:"logging"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	// Injected collaborators; nil means "build from the fields above".
	FS        billy.Filesystem `yaml:"-"`
	Logger    *zerolog.Logger  `yaml:"-"`
	Revisions RevisionSource   `yaml:"-"`
	Vendors   *VendorRegistry  `yaml:"-"`

	// compiled
	renderCacheMax int64
	statsEveryDur  time.Duration
	normalized     bool
}

func DefaultSettings() Settings {
	return Settings{
		Root:       ".",
		PublicDir:  "public",
		ConfigPath: DefaultConfigPath,
		VCS:        VCSGit,
	}
}

// LoadSettings reads a settings file on top of DefaultSettings. A missing
// file is not an error: every setting has a default.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Settings{}, err
	default:
		if err := yaml.Unmarshal(b, &s); err != nil {
			return Settings{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate fills defaults and compiles durations and byte sizes. Unknown
// enum values are errors naming the key.
func (s *Settings) Validate() error {
	if s.normalized {
		return nil
	}
	if s.Root == "" {
		s.Root = "."
	}
	if s.PublicDir == "" {
		s.PublicDir = "public"
	}
	s.PublicDir = strings.TrimRight(s.PublicDir, "/")
	if s.ConfigPath == "" {
		s.ConfigPath = DefaultConfigPath
	}
	s.AssetHost = strings.TrimRight(s.AssetHost, "/")
	s.SSLAssetHost = strings.TrimRight(s.SSLAssetHost, "/")

	if s.VCS == "" {
		s.VCS = VCSGit
	}
	switch s.VCS {
	case VCSGit, VCSGoGit, VCSFingerprint, VCSNone:
	default:
		return fmt.Errorf("vcs: unknown value %q (git, go-git, fingerprint or none)", s.VCS)
	}

	switch s.EmptyBundle {
	case "":
		s.EmptyBundle = EmptyBundleError
		if s.PerformCaching {
			s.EmptyBundle = EmptyBundleSkip
		}
	case EmptyBundleError, EmptyBundleSkip:
	default:
		return fmt.Errorf("empty_bundle: unknown value %q (error or skip)", s.EmptyBundle)
	}

	if s.RenderCache.Max != "" {
		n, err := parseBytes(s.RenderCache.Max)
		if err != nil {
			return fmt.Errorf("render_cache.max: %w", err)
		}
		s.renderCacheMax = n
	}

	switch s.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unknown value %q (console or json)", s.Logging.Format)
	}
	if s.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(s.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	if s.Logging.StatsEvery != "" {
		d, err := time.ParseDuration(s.Logging.StatsEvery)
		if err != nil {
			return fmt.Errorf("logging.stats_every: %w", err)
		}
		s.statsEveryDur = d
	}

	if s.Server.Port == 0 {
		s.Server.Port = 8080
	}
	s.normalized = true
	return nil
}
