// Package ttdinbox attaches signature scans dropped into a directory to their ttd rows.
// A file named "<ttd id>.<ext>" is normalised, stored and linked to the signature with that id,
// then moved into the done/ subdirectory.
package ttdinbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gorm.io/gorm"

	"siphp/models"
	"siphp/pkg/sigimg"
	"siphp/pkg/storage"
)

const doneDir = "done"

// Options controls a scan.
type Options struct {
	Dir     string
	Workers int
	Watch   bool
	DryRun  bool
	Verbose bool
}

// Inbox links image files to ttd rows.
type Inbox struct {
	db    *gorm.DB
	store storage.Store
	opts  Options

	mu   sync.Mutex
	busy map[uint]bool
}

func New(db *gorm.DB, store storage.Store, opts Options) *Inbox {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Inbox{db: db, store: store, opts: opts, busy: map[uint]bool{}}
}

// ParseName returns the ttd id encoded in a file name such as "12.png" or "12.JPG".
func ParseName(name string) (uint, bool) {
	name = filepath.Base(name)
	if !isSupportedExt(name) {
		return 0, false
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	id, err := strconv.ParseUint(stem, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func isSupportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

// ListFiles returns the candidate files in dir, sorted.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := ParseName(e.Name()); ok {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Run processes the current directory contents and, with Watch set, keeps handling new files
// until ctx is cancelled.
func (in *Inbox) Run(ctx context.Context) error {
	files, err := ListFiles(in.opts.Dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", in.opts.Dir, err)
	}
	log.Printf("Scanning %d files in %s (workers=%d)", len(files), in.opts.Dir, in.opts.Workers)

	fileCh := make(chan string, 256)
	var wg sync.WaitGroup
	for i := 0; i < in.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				in.handle(ctx, name)
			}
		}()
	}
	for _, f := range files {
		fileCh <- f
	}

	if in.opts.Watch {
		err = in.watch(ctx, fileCh)
	}
	close(fileCh)
	wg.Wait()
	return err
}

// watch feeds newly created or rewritten files into fileCh once they stop changing.
func (in *Inbox) watch(ctx context.Context, fileCh chan<- string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(in.opts.Dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", in.opts.Dir)

	pending := map[string]time.Time{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if _, ok := ParseName(name); ok {
				pending[name] = time.Now()
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) > 300*time.Millisecond {
					fileCh <- name
					delete(pending, name)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}

func (in *Inbox) logV(format string, args ...any) {
	if in.opts.Verbose {
		log.Printf(format, args...)
	}
}

// claim keeps two workers off the same signature when a scan and a watch event overlap.
func (in *Inbox) claim(id uint) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.busy[id] {
		return false
	}
	in.busy[id] = true
	return true
}

func (in *Inbox) release(id uint) {
	in.mu.Lock()
	delete(in.busy, id)
	in.mu.Unlock()
}

func (in *Inbox) handle(ctx context.Context, name string) {
	id, _ := ParseName(name)
	if !in.claim(id) {
		in.logV("SKIP %s: ttd %d already in progress", name, id)
		return
	}
	defer in.release(id)

	if err := in.Attach(ctx, id, filepath.Join(in.opts.Dir, name)); err != nil {
		log.Printf("ERROR %s: %v", name, err)
		return
	}
	if in.opts.DryRun {
		return
	}
	if err := moveToDone(in.opts.Dir, name); err != nil {
		log.Printf("WARN could not move %s to %s/: %v", name, doneDir, err)
	}
}

// Attach normalises the image at path and makes it the signature image of ttd id.
func (in *Inbox) Attach(ctx context.Context, id uint, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	png, err := sigimg.Normalize(f)
	f.Close()
	if err != nil {
		return err
	}

	var t models.Ttd
	if err := in.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("ttd %d not found", id)
		}
		return err
	}
	if in.opts.DryRun {
		log.Printf("DRY-RUN would attach %s to ttd %d (%s, %d bytes)", filepath.Base(path), id, t.Nama, len(png))
		return nil
	}

	key := storage.NewKey("png")
	url, err := in.store.Put(ctx, key, bytes.NewReader(png), "image/png")
	if err != nil {
		return fmt.Errorf("store image: %w", err)
	}
	oldKey := t.FotoKey
	if oldKey == "" {
		oldKey = storage.KeyFromURL(t.FotoTtd)
	}
	if err := in.db.WithContext(ctx).Model(&t).Updates(map[string]any{"foto_ttd": url, "foto_key": key}).Error; err != nil {
		if derr := in.store.Delete(ctx, key); derr != nil {
			log.Printf("WARN orphaned object %s: %v", key, derr)
		}
		return fmt.Errorf("update ttd: %w", err)
	}
	if oldKey != "" && oldKey != key {
		if err := in.store.Delete(ctx, oldKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Printf("WARN delete previous image %s: %v", oldKey, err)
		}
	}
	log.Printf("ATTACHED ttd=%d nama=%q key=%s", id, t.Nama, key)
	return nil
}

func moveToDone(dir, name string) error {
	dst := filepath.Join(dir, doneDir)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	return os.Rename(filepath.Join(dir, name), filepath.Join(dst, name))
}
