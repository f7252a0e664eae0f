package assethat

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestServiceLogsStats(t *testing.T) {
	var logs syncBuffer
	log := zerolog.New(&logs)
	fsys := memfs.New()
	writeTestFile(t, fsys, DefaultConfigPath, testConfig)

	s := DefaultSettings()
	s.FS = fsys
	s.Logger = &log
	s.VCS = VCSNone
	s.PerformCaching = true
	s.Logging.StatsEvery = "5ms"
	svc, err := NewService(s)
	require.NoError(t, err)

	_, err = svc.IncludeCSS(context.Background(), []Reference{Named("foo")}, Options{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte(`"message":"render cache"`))
	}, time.Second, 5*time.Millisecond)
	svc.Close()
	svc.Close()

	assert.Contains(t, logs.String(), `"entries":1`)
}

func TestServiceClear(t *testing.T) {
	f := newFixture(t, withCaching(true))
	ctx := context.Background()

	_, err := f.svc.IncludeCSS(ctx, []Reference{Named("foo")}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, f.svc.render.Len())
	calls := f.revs.TotalCalls()

	f.svc.Clear()
	assert.Zero(t, f.svc.render.Len())
	assert.Zero(t, f.svc.exists.memo.Count())

	_, err = f.svc.IncludeCSS(ctx, []Reference{Named("foo")}, Options{})
	require.NoError(t, err)
	assert.Equal(t, calls*2, f.revs.TotalCalls())
}

func TestNewServiceRejectsBadSettings(t *testing.T) {
	s := DefaultSettings()
	s.FS = memfs.New()
	s.VCS = "cvs"

	_, err := NewService(s)
	assert.ErrorContains(t, err, "cvs")
}

func TestParseArgs(t *testing.T) {
	refs, opts, err := ParseArgs([]string{"reset", "bundle:app", "vendor:jquery@1.4.4", "cache=false", "ssl=yes", "media=print", "http://x.example.com/a.css"})
	require.NoError(t, err)

	assert.Equal(t, []Reference{
		Named("reset"),
		Bundle("app"),
		Vendor("jquery").WithVersion("1.4.4"),
		Named("http://x.example.com/a.css"),
	}, refs)
	require.NotNil(t, opts.Cache)
	assert.False(t, *opts.Cache)
	require.NotNil(t, opts.SSL)
	assert.True(t, *opts.SSL)
	assert.Equal(t, map[string]string{"media": "print"}, opts.Attrs)

	for _, r := range refs {
		back, err := ParseReference(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, back)
	}
}
