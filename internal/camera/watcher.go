// Package camera feeds images dropped into a folder to the controller.
package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/catpoint/internal/logger"
)

// minTick bounds how often pending files are checked.
const minTick = 10 * time.Millisecond

var (
	// ErrDirectoryRequired is returned when no directory is configured.
	ErrDirectoryRequired = errors.New("camera directory must be provided")

	errWatcherClosed = errors.New("watcher channel closed")
)

// imageExtensions are the file types handed to the analyzer.
//
//nolint:gochecknoglobals // Lookup table for accepted file extensions.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// ImageProcessor analyzes a camera image.
type ImageProcessor interface {
	ProcessImage(ctx context.Context, image []byte) (bool, error)
}

// Watcher processes every image file written to a directory once the file
// has not changed for the settle delay.
type Watcher struct {
	dir       string
	settle    time.Duration
	processor ImageProcessor
}

// NewWatcher creates a watcher for dir.
func NewWatcher(dir string, settle time.Duration, processor ImageProcessor) (*Watcher, error) {
	if dir == "" {
		return nil, ErrDirectoryRequired
	}

	return &Watcher{
		dir:       dir,
		settle:    settle,
		processor: processor,
	}, nil
}

// Run watches the directory until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "camera")

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		_ = fsw.Close()
	}()

	if err = fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", w.dir, err)
	}

	logger.InfoKV(ctx, "Watching camera directory", "directory", w.dir, "settle_delay", w.settle)

	ticker := time.NewTicker(max(w.settle/2, minTick))
	defer ticker.Stop()

	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return errWatcherClosed
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(pending, event.Name)

				continue
			}

			if (event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) && isImage(event.Name) {
				pending[event.Name] = time.Now()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return errWatcherClosed
			}

			logger.WarnKV(ctx, "Camera watcher error", "error", err)
		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < w.settle {
					continue
				}

				delete(pending, path)
				w.process(ctx, path)
			}
		}
	}
}

// process reads one image and hands it to the processor. Failures are logged.
func (w *Watcher) process(ctx context.Context, path string) {
	ctx = logger.WithKV(ctx, "file", filepath.Base(path))

	image, err := os.ReadFile(path) //nolint:gosec // Path comes from the watched directory.
	if err != nil {
		logger.WarnKV(ctx, "Failed to read camera image", "error", err)

		return
	}

	if len(image) == 0 {
		return
	}

	cat, err := w.processor.ProcessImage(ctx, image)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to process camera image", "error", err)

		return
	}

	logger.InfoKV(ctx, "Camera image processed", "cat_detected", cat)
}

func isImage(path string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path)))
}
