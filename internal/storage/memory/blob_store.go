package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/naijahub/newscrawler/internal/scraper"
)

// Archive keeps raw fetched pages in memory. It stands in for the filesystem
// archive during development and in tests.
type Archive struct {
	mu    sync.RWMutex
	pages map[string][]byte
}

var _ scraper.Archiver = (*Archive)(nil)

// NewArchive creates an empty in-memory page archive.
func NewArchive() *Archive {
	return &Archive{pages: make(map[string][]byte)}
}

// Put stores a copy of the page under the given path and returns a mem:// URI.
func (a *Archive) Put(_ context.Context, path string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	a.mu.Lock()
	a.pages[path] = append([]byte(nil), data...)
	a.mu.Unlock()
	return fmt.Sprintf("mem://%s", path), nil
}

// Page returns the stored page for the given path.
func (a *Archive) Page(path string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.pages[path]
	return data, ok
}
