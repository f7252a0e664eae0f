package assethat

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// existenceCache memoizes whether an asset file exists. Deployed asset files
// are immutable for the life of the process, so entries never expire; Clear
// is for tests and config reloads.
type existenceCache struct {
	fs        billy.Filesystem
	publicDir string
	memo      cmap.ConcurrentMap[string, bool]
}

func newExistenceCache(fsys billy.Filesystem, publicDir string) *existenceCache {
	return &existenceCache{fs: fsys, publicDir: publicDir, memo: cmap.New[bool]()}
}

// Exists reports whether filename exists under the directory of type t.
func (c *existenceCache) Exists(filename string, t AssetType) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	key := string(t) + "\x00" + filename
	if ok, found := c.memo.Get(key); found {
		return ok, nil
	}
	_, err := c.fs.Stat(assetFilepath(c.publicDir, t, filename))
	ok := err == nil
	c.memo.Set(key, ok)
	return ok, nil
}

func (c *existenceCache) Clear() { c.memo.Clear() }

// assetFilepath is the project-relative path of an asset file.
func assetFilepath(publicDir string, t AssetType, filename string) string {
	return filepath.Join(publicDir, t.dirName(), filename)
}

// memberFilepath maps a bundle member name to its project-relative path.
// The type extension is appended when missing; a leading slash means the
// name is relative to the public directory instead of the type directory.
func memberFilepath(publicDir string, t AssetType, name string) string {
	if filepath.Ext(name) != t.Ext() {
		name += t.Ext()
	}
	if strings.HasPrefix(name, "/") {
		return filepath.Join(publicDir, name)
	}
	return assetFilepath(publicDir, t, name)
}
