// Package watcher ingests documents dropped into a per-tenant inbox folder.
// Files written to <root>/<tenantID>/ are ingested for that tenant and
// removed once the document is recorded; failures leave the file in place.
package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/store"
	"gwi.com/support-chatbot/internal/utils"
)

// DefaultDebounce is how long a file must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// Ingester is the part of the document service the inbox uses.
type Ingester interface {
	IngestFile(ctx context.Context, id domain.Identity, path, declaredType string) (*store.Document, error)
	Supports(fileType string) bool
}

type Inbox struct {
	root     string
	ingester Ingester
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewInbox(root string, ingester Ingester, debounce time.Duration) (*Inbox, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create inbox %s: %w", root, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Inbox{
		root:     root,
		ingester: ingester,
		debounce: debounce,
		watcher:  w,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Run watches the inbox until ctx is done. Files already present when Run
// starts are ingested too.
func (in *Inbox) Run(ctx context.Context) error {
	defer in.watcher.Close()
	defer in.stopTimers()

	if err := in.watcher.Add(in.root); err != nil {
		return fmt.Errorf("failed to watch inbox %s: %w", in.root, err)
	}

	ready := make(chan string, 64)
	schedule := func(path string) {
		in.mu.Lock()
		defer in.mu.Unlock()
		if t, ok := in.timers[path]; ok {
			t.Reset(in.debounce)
			return
		}
		in.timers[path] = time.AfterFunc(in.debounce, func() {
			in.mu.Lock()
			delete(in.timers, path)
			in.mu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	entries, err := os.ReadDir(in.root)
	if err != nil {
		return fmt.Errorf("failed to list inbox %s: %w", in.root, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			in.addTenantDir(filepath.Join(in.root, e.Name()), schedule)
		}
	}
	log.Printf("Watching inbox %s", in.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-in.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Dir(event.Name) == filepath.Clean(in.root) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					in.addTenantDir(event.Name, schedule)
				}
				continue
			}
			if _, ok := tenantOf(in.root, event.Name); ok {
				schedule(event.Name)
			}
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Inbox watcher error: %v", err)
		case path := <-ready:
			in.process(ctx, path)
		}
	}
}

// addTenantDir watches a tenant folder and schedules the files already in it.
func (in *Inbox) addTenantDir(dir string, schedule func(string)) {
	if _, err := strconv.ParseInt(filepath.Base(dir), 10, 64); err != nil {
		log.Printf("Inbox: ignoring %s, folder name is not a tenant id", dir)
		return
	}
	if err := in.watcher.Add(dir); err != nil {
		log.Printf("Inbox: failed to watch %s: %v", dir, err)
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("Inbox: failed to list %s: %v", dir, err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			schedule(filepath.Join(dir, e.Name()))
		}
	}
}

func (in *Inbox) process(ctx context.Context, path string) {
	tenantID, ok := tenantOf(in.root, path)
	if !ok {
		return
	}
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	fileType := utils.FileType(name)
	if !in.ingester.Supports(fileType) {
		log.Printf("Inbox: skipping %s, unsupported type %q", path, fileType)
		return
	}

	doc, err := in.ingester.IngestFile(ctx, domain.Identity{TenantID: tenantID}, path, fileType)
	if err != nil {
		log.Printf("Inbox: ingesting %s for tenant %d failed: %s", path, tenantID, domain.Describe(err))
		return
	}
	if err := os.Remove(path); err != nil {
		log.Printf("Inbox: ingested %s as document %d but could not remove it: %v", path, doc.ID, err)
		return
	}
	log.Printf("Inbox: ingested %s as document %d for tenant %d", name, doc.ID, tenantID)
}

func (in *Inbox) stopTimers() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for path, t := range in.timers {
		t.Stop()
		delete(in.timers, path)
	}
}

// tenantOf returns the tenant id of a file directly inside <root>/<tenantID>/.
func tenantOf(root, path string) (int64, bool) {
	dir := filepath.Dir(path)
	if filepath.Dir(dir) != filepath.Clean(root) {
		return 0, false
	}
	id, err := strconv.ParseInt(filepath.Base(dir), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
