package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the delay between the last file event and reload.
// Editors usually produce several events per save.
const DefaultDebounce = 100 * time.Millisecond

// Watch reloads the project file every time it's saved. It blocks until
// ctx is done. The directory of the file is watched, so editors that
// replace the file on save are supported.
func (p *Pipeline) Watch(ctx context.Context, path string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	p.log.Info(fmt.Sprintf("watching %s", path))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !saved(event) {
				continue
			}
			p.log.Debug(fmt.Sprintf("file event: %v", event))
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.log.Warn(fmt.Sprintf("watcher: %v", err))
		case <-fire:
			fire = nil
			// errors are logged and counted by the pipeline
			p.ReloadFile(ctx, path)
		}
	}
}

func saved(e fsnotify.Event) bool {
	return e.Has(fsnotify.Write) || e.Has(fsnotify.Create)
}
