package render

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/microcosm-cc/bluemonday"

	"github.com/visionpointmarketing/troy-sandbox/internal/logger"
)

// Fragments holds the static header and footer wrapped around exported
// pages. Both are sanitized on load.
type Fragments struct {
	headerPath string
	footerPath string
	policy     *bluemonday.Policy
	log        *logger.Logger

	mu     sync.RWMutex
	header template.HTML
	footer template.HTML
}

func NewFragments(headerPath, footerPath string, log *logger.Logger) *Fragments {
	if log == nil {
		log = logger.Nop()
	}
	return &Fragments{
		headerPath: headerPath,
		footerPath: footerPath,
		policy:     fragmentPolicy(),
		log:        log.With("component", "fragments"),
	}
}

// fragmentPolicy allows site chrome markup: layout elements, links, images
// and utility classes. Scripts, styles and event handlers are dropped.
func fragmentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("header", "footer", "nav", "section", "div", "span", "svg", "path")
	p.AllowAttrs("class", "id").Globally()
	p.AllowAttrs("viewBox", "fill", "stroke", "stroke-width", "d").OnElements("svg", "path")
	return p
}

// Load reads both fragments. An empty path yields an empty fragment; a
// missing file is an error.
func (f *Fragments) Load() error {
	header, err := f.read(f.headerPath)
	if err != nil {
		return err
	}
	footer, err := f.read(f.footerPath)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.header, f.footer = header, footer
	f.mu.Unlock()
	return nil
}

func (f *Fragments) read(path string) (template.HTML, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading fragment: %w", err)
	}
	return template.HTML(f.policy.SanitizeBytes(data)), nil
}

func (f *Fragments) Header() template.HTML {
	if f == nil {
		return ""
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.header
}

func (f *Fragments) Footer() template.HTML {
	if f == nil {
		return ""
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.footer
}

// Watch reloads the fragments whenever one of their files is written or
// replaced. It blocks until ctx is done.
func (f *Fragments) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	targets := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range []string{f.headerPath, f.footerPath} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	if len(targets) == 0 {
		return errors.New("no fragment files to watch")
	}
	// Editors often save by rename, so watch the directories rather than the files.
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !targets[abs] {
				continue
			}
			if err := f.Load(); err != nil {
				f.log.Warn("fragment reload failed", "file", event.Name, "error", err)
				continue
			}
			f.log.Info("fragments reloaded", "file", event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.log.Warn("fragment watcher error", "error", err)
		}
	}
}
