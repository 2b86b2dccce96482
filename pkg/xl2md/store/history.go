package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// historyCap bounds the number of retained entries.
const historyCap = 100

// HistoryEntry records one finished conversion, successful or not.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Input       string    `json:"input"`
	Output      string    `json:"output"`
	ConvertedAt time.Time `json:"converted_at"`
	SheetsCount int       `json:"sheets_count"`
	TablesCount int       `json:"tables_count"`
	ImagesCount int       `json:"images_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// History keeps the most recent conversions in one JSON file, newest
// first.
type History struct {
	mu   sync.Mutex
	path string
}

func NewHistory(path string) *History {
	return &History{path: path}
}

// Record assigns the entry an ID and timestamp (when unset), prepends it
// and drops anything beyond the retention cap. The stored entry is
// returned.
func (h *History) Record(entry HistoryEntry) (HistoryEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ConvertedAt.IsZero() {
		entry.ConvertedAt = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	entries, err := h.load()
	if err != nil {
		return HistoryEntry{}, err
	}
	entries = append([]HistoryEntry{entry}, entries...)
	if len(entries) > historyCap {
		entries = entries[:historyCap]
	}
	return entry, h.write(entries)
}

// List returns the newest entries, at most limit; limit < 1 means all.
func (h *History) List(limit int) ([]HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries, err := h.load()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Search returns entries whose input or output path contains the query,
// case-insensitively, newest first.
func (h *History) Search(query string) ([]HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries, err := h.load()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []HistoryEntry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Input), q) || strings.Contains(strings.ToLower(e.Output), q) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Clear removes all entries.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.write(nil)
}

func (h *History) load() ([]HistoryEntry, error) {
	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (h *History) write(entries []HistoryEntry) error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(h.path, append(data, '\n'), 0o644)
}
