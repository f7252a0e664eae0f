package assethat

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	assert.Equal(t, "cssmin", cfg.CSS.Engine)
	assert.Equal(t, []string{"reset", "layout"}, cfg.BundleFilenames("application", CSS))
	assert.Equal(t, []string{"app", "application", "empty"}, cfg.BundleNames(CSS))
	assert.Nil(t, cfg.BundleFilenames("missing", CSS))

	v, ok := cfg.Vendor("jquery")
	require.True(t, ok)
	assert.Equal(t, "1.4.4", v.Version)
}

func TestParseConfigEnvTemplate(t *testing.T) {
	t.Setenv("ASSETHAT_JQUERY_CDN", "https://cdn.example.com/jq.js")

	cfg, err := ParseConfig([]byte(`
js:
  vendors:
    jquery:
      remote_url: '{{ env "ASSETHAT_JQUERY_CDN" }}'
`))
	require.NoError(t, err)
	v, _ := cfg.Vendor("jquery")
	assert.Equal(t, "https://cdn.example.com/jq.js", v.RemoteURL)
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte("css: [not, a, map]"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("{{ nope }}"))
	assert.ErrorContains(t, err, "template")
}

func TestBundleFilenamesReturnsCopy(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfig))
	require.NoError(t, err)

	names := cfg.BundleFilenames("app", CSS)
	names[0] = "mutated"
	assert.Equal(t, []string{"a", "b", "c"}, cfg.BundleFilenames("app", CSS))
}

func TestConfigStoreMissing(t *testing.T) {
	store := NewConfigStore(memfs.New(), DefaultConfigPath, true, zerolog.Nop())

	_, err := store.Get()
	require.ErrorIs(t, err, ErrConfigMissing)
	assert.Equal(t, "`config/assets.yml` is missing! Run `assethat config` to generate it.", err.Error())

	var missing *ConfigMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, DefaultConfigPath, missing.Path)
}

func TestConfigStoreMemoizesWhenCaching(t *testing.T) {
	fsys := memfs.New()
	writeTestFile(t, fsys, DefaultConfigPath, "css:\n  engine: weak\n")
	store := NewConfigStore(fsys, DefaultConfigPath, true, zerolog.Nop())

	cfg, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, "weak", cfg.CSS.Engine)

	writeTestFile(t, fsys, DefaultConfigPath, "css:\n  engine: cssmin\n")
	cfg, err = store.Get()
	require.NoError(t, err)
	assert.Equal(t, "weak", cfg.CSS.Engine)

	store.Clear()
	cfg, err = store.Get()
	require.NoError(t, err)
	assert.Equal(t, "cssmin", cfg.CSS.Engine)
}

func TestConfigStoreReloadsWithoutCaching(t *testing.T) {
	fsys := memfs.New()
	writeTestFile(t, fsys, DefaultConfigPath, "css:\n  engine: weak\n")
	store := NewConfigStore(fsys, DefaultConfigPath, false, zerolog.Nop())

	_, err := store.Get()
	require.NoError(t, err)

	writeTestFile(t, fsys, DefaultConfigPath, "css:\n  engine: cssmin\n")
	cfg, err := store.Get()
	require.NoError(t, err)
	assert.Equal(t, "cssmin", cfg.CSS.Engine)
}
