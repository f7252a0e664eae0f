package assethat

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExistenceCache(t *testing.T) {
	fsys := memfs.New()
	writeTestFile(t, fsys, "public/stylesheets/foo.min.css", "")
	c := newExistenceCache(fsys, "public")

	ok, err := c.Exists("foo.min.css", CSS)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Exists("foo.min.css", JS)
	require.NoError(t, err)
	assert.False(t, ok)

	// Files appearing later are not noticed until Clear.
	writeTestFile(t, fsys, "public/javascripts/foo.min.css", "")
	ok, _ = c.Exists("foo.min.css", JS)
	assert.False(t, ok)
	c.Clear()
	ok, _ = c.Exists("foo.min.css", JS)
	assert.True(t, ok)
}

func TestExistenceCacheRejectsUnknownType(t *testing.T) {
	c := newExistenceCache(memfs.New(), "public")

	_, err := c.Exists("foo", AssetType("xml"))
	require.ErrorIs(t, err, ErrUnsupportedAssetType)
	assert.Zero(t, c.memo.Count())
}

func TestMemberFilepath(t *testing.T) {
	cases := []struct {
		name string
		t    AssetType
		want string
	}{
		{"reset", CSS, "public/stylesheets/reset.css"},
		{"reset.css", CSS, "public/stylesheets/reset.css"},
		{"vendor/grid", CSS, "public/stylesheets/vendor/grid.css"},
		{"/plugins/x", JS, "public/plugins/x.js"},
		{"jquery.min.js", JS, "public/javascripts/jquery.min.js"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, memberFilepath("public", tc.t, tc.name), tc.name)
	}
}
