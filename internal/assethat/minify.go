package assethat

import (
	"bufio"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
)

const (
	EngineWeak   = "weak"
	EngineCSSMin = "cssmin"
	EngineMinify = "minify"

	mimeCSS = "text/css"
	mimeJS  = "application/javascript"
)

type engineFunc func(input string) (string, error)

var (
	minifier = newMinifier()

	emptyCSSRules = regexp.MustCompile(`[^{}]+\{\s*;?\s*\}`)

	engines = map[AssetType]map[string]engineFunc{
		CSS: {
			EngineWeak:   weakCSS,
			EngineCSSMin: cssmin,
			EngineMinify: cssmin,
		},
		JS: {
			EngineWeak:   weakJS,
			EngineMinify: func(in string) (string, error) { return minifier.String(mimeJS, in) },
		},
	}
)

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mimeCSS, css.Minify)
	m.AddFunc(mimeJS, js.Minify)
	return m
}

// DefaultEngine is used when the config names no engine for t.
func DefaultEngine(t AssetType) string {
	if t == CSS {
		return EngineCSSMin
	}
	return EngineWeak
}

// Engines lists the engine names known for t.
func Engines(t AssetType) []string {
	out := make([]string, 0, len(engines[t]))
	for name := range engines[t] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Minify runs input through the named engine; "" picks DefaultEngine.
func Minify(t AssetType, input, engine string) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	if engine == "" {
		engine = DefaultEngine(t)
	}
	fn, ok := engines[t][engine]
	if !ok {
		return "", fmt.Errorf("%w %q for %s; allowed: %s",
			ErrUnknownEngine, engine, t.label(), strings.Join(Engines(t), ", "))
	}
	out, err := fn(input)
	if err != nil {
		return "", fmt.Errorf("minify %s (%s): %w", t.label(), engine, err)
	}
	if t == CSS {
		out = strings.TrimSpace(out)
	}
	return out, nil
}

// weakCSS only trims every line and joins them; it never parses the CSS.
func weakCSS(in string) (string, error) {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(in))
	sc.Buffer(make([]byte, 64*1024), len(in)+1)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			b.WriteString(line)
		}
	}
	return b.String(), sc.Err()
}

// cssmin also drops rules left with an empty declaration block.
func cssmin(in string) (string, error) {
	out, err := minifier.String(mimeCSS, in)
	if err != nil {
		return "", err
	}
	return emptyCSSRules.ReplaceAllString(out, ""), nil
}

// weakJS trims lines and drops blank lines and whole-line // comments.
func weakJS(in string) (string, error) {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(in))
	sc.Buffer(make([]byte, 64*1024), len(in)+1)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String(), sc.Err()
}
