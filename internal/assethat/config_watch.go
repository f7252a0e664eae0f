package assethat

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch clears the memoized config whenever the file at osPath changes and
// then calls onChange, until ctx is done. The parent directory is watched so
// editors that replace the file are noticed too.
func (s *ConfigStore) Watch(ctx context.Context, osPath string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(osPath)); err != nil {
		_ = w.Close()
		return err
	}
	target := filepath.Clean(osPath)

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				s.log.Info().Str("path", target).Msg("asset config changed, clearing caches")
				s.Clear()
				if onChange != nil {
					onChange()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Msg("config watcher")
			}
		}
	}()
	return nil
}
