package assethat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cssWithEmptyRules = `
  .foo { width: 1px; }
  .bar {}
  .baz{  width  :  2px;  }
  .qux {}
  .quux { }
  .corge {/* ! */}
`

func TestMinifyCSSWeak(t *testing.T) {
	out, err := Minify(CSS, "  .foo {\n    width: 1px;\n  }\n\n", EngineWeak)
	require.NoError(t, err)
	assert.Equal(t, ".foo {width: 1px;}", out)
}

func TestMinifyCSSDropsEmptyRules(t *testing.T) {
	for _, engine := range []string{"", EngineCSSMin, EngineMinify} {
		out, err := Minify(CSS, cssWithEmptyRules, engine)
		require.NoError(t, err, engine)
		assert.Contains(t, out, ".foo{width:1px")
		assert.Contains(t, out, ".baz{width:2px")
		for _, sel := range []string{".bar", ".qux", ".quux", ".corge"} {
			assert.NotContains(t, out, sel, engine)
		}
	}
}

func TestMinifyJSWeak(t *testing.T) {
	in := "// header\n  var a = 1;\n\n    // note\n  function f() {\n    return a; // keep\n  }\n"
	out, err := Minify(JS, in, "")
	require.NoError(t, err)
	assert.Equal(t, "var a = 1;\nfunction f() {\nreturn a; // keep\n}\n", out)
}

func TestMinifyJSMinify(t *testing.T) {
	out, err := Minify(JS, "function add(first, second) {\n  return first + second;\n}\n", EngineMinify)
	require.NoError(t, err)
	assert.Less(t, len(out), 40)
	assert.Contains(t, out, "function add(")
}

func TestMinifyUnknownEngine(t *testing.T) {
	_, err := Minify(JS, "var a;", EngineCSSMin)
	require.ErrorIs(t, err, ErrUnknownEngine)
	assert.Contains(t, err.Error(), `"cssmin"`)
	assert.Contains(t, err.Error(), "minify, weak")

	_, err = Minify(AssetType("xml"), "", "")
	require.ErrorIs(t, err, ErrUnsupportedAssetType)
}

func TestDefaultEngine(t *testing.T) {
	assert.Equal(t, EngineCSSMin, DefaultEngine(CSS))
	assert.Equal(t, EngineWeak, DefaultEngine(JS))
	assert.Equal(t, []string{EngineCSSMin, EngineMinify, EngineWeak}, Engines(CSS))
}
