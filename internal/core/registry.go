package core

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// LoadOptions tunes how a source file is read into a Table.
type LoadOptions struct {
	Sheet     string // workbook sheet; empty means the first sheet
	Encoding  string // input encoding for text formats; empty means UTF-8 with optional BOM
	Separator rune   // field separator for text formats; zero means sniff from the header
}

// LoadFunc reads a whole source file into a Table.
type LoadFunc func(ctx context.Context, r io.Reader, opts LoadOptions) (Table, error)

// SourceFormat describes one input file format.
type SourceFormat struct {
	Key        string   // short identifier, e.g. "xlsx"
	Label      string   // display name
	Extensions []string // lowercase, with leading dot
	Load       LoadFunc
}

var (
	registry   = make(map[string]SourceFormat)
	byExt      = make(map[string]string)
	registryMu sync.RWMutex
)

// Register adds a source format to the registry.
// Panics if the key or one of its extensions is already registered.
func Register(f SourceFormat) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[f.Key]; exists {
		panic(fmt.Sprintf("source format already registered: %s", f.Key))
	}
	for _, ext := range f.Extensions {
		ext = strings.ToLower(ext)
		if owner, exists := byExt[ext]; exists {
			panic(fmt.Sprintf("extension %s already registered by %s", ext, owner))
		}
	}

	for _, ext := range f.Extensions {
		byExt[strings.ToLower(ext)] = f.Key
	}
	registry[f.Key] = f
}

// Get returns a source format by key.
func Get(key string) (SourceFormat, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[key]
	return f, ok
}

// FormatFor picks the source format from a file name's extension.
func FormatFor(fileName string) (SourceFormat, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	registryMu.RLock()
	defer registryMu.RUnlock()

	key, ok := byExt[ext]
	if !ok {
		return SourceFormat{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return registry[key], nil
}

// Formats returns all registered formats sorted by key.
func Formats() []SourceFormat {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]SourceFormat, 0, len(registry))
	for _, f := range registry {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// Extensions returns every registered extension, sorted.
func Extensions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	exts := make([]string, 0, len(byExt))
	for ext := range byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Clear removes all registered formats.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]SourceFormat)
	byExt = make(map[string]string)
}
