package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// Loader loads and caches recipes from a local recipes directory, with
// an optional override directory consulted first (so a user can shadow
// a bundled recipe without editing it in place).
//
// Unlike the registry-backed loader this is descended from, there is
// no remote fetch here: every recipe this module can resolve ships in
// the binary's recipes/ directory or a user-supplied override dir.
type Loader struct {
	mu       sync.RWMutex
	cache    map[string]*Recipe
	dirs     []string // override dir (if set) first, then recipesDir
}

// New creates a Loader that reads recipes from recipesDir, consulting
// overrideDir first if non-empty.
func New(recipesDir, overrideDir string) *Loader {
	var dirs []string
	if overrideDir != "" {
		dirs = append(dirs, overrideDir)
	}
	dirs = append(dirs, recipesDir)
	return &Loader{
		cache: make(map[string]*Recipe),
		dirs:  dirs,
	}
}

// Get retrieves a recipe by tool id, searching override dir then the
// main recipes dir, and caching the parsed result in memory.
func (l *Loader) Get(id string) (*Recipe, error) {
	l.mu.RLock()
	if r, ok := l.cache[id]; ok {
		l.mu.RUnlock()
		return r, nil
	}
	l.mu.RUnlock()

	var lastErr error
	for _, dir := range l.dirs {
		path := filepath.Join(dir, id+".toml")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				lastErr = err
				continue
			}
			return nil, err
		}

		r, err := parseBytes(data)
		if err != nil {
			return nil, fmt.Errorf("recipe %q (%s): %w", id, path, err)
		}

		l.mu.Lock()
		l.cache[id] = r
		l.mu.Unlock()
		return r, nil
	}

	if data, err := Bundled.ReadFile(bundledDir + "/" + id + ".toml"); err == nil {
		r, err := parseBytes(data)
		if err != nil {
			return nil, fmt.Errorf("bundled recipe %q: %w", id, err)
		}
		l.mu.Lock()
		l.cache[id] = r
		l.mu.Unlock()
		return r, nil
	}

	return nil, fmt.Errorf("recipe %q: not found in %s or the bundled set", id, strings.Join(l.dirs, ", "))
}

// parseBytes parses and schema-validates a recipe from raw TOML.
func parseBytes(data []byte) (*Recipe, error) {
	var r Recipe
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}
	if errs := Validate(&r); len(errs) > 0 {
		return nil, errs[0]
	}
	return &r, nil
}

// List returns every recipe id available across the loader's
// directories (override dir entries shadow same-named main-dir
// entries), sorted lexicographically.
func (l *Loader) List() ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, dir := range l.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
				continue
			}
			id := strings.TrimSuffix(e.Name(), ".toml")
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}

	bundledEntries, err := Bundled.ReadDir(bundledDir)
	if err != nil {
		return nil, err
	}
	for _, e := range bundledEntries {
		id := strings.TrimSuffix(e.Name(), ".toml")
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	sort.Strings(ids)
	return ids, nil
}

// ClearCache drops all in-memory cached recipes, forcing the next Get
// to re-read and re-validate from disk.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*Recipe)
}
