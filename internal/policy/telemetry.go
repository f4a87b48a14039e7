package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"arenalib/internal/logging"
	"arenalib/internal/plan"
)

// Counters are the per-category win totals persisted across runs.
type Counters struct {
	WinsPrimary int `json:"wins_primary"`
	WinsRefiner int `json:"wins_refiner"`
}

// Total returns the number of recorded wins.
func (c Counters) Total() int {
	return c.WinsPrimary + c.WinsRefiner
}

// Snapshot is a point-in-time copy of all telemetry counters.
type Snapshot map[Category]Counters

// Store abstracts the telemetry backing so tests can substitute memory for
// the file-backed default. Telemetry is advisory: implementations must treat
// I/O failure as degradation, never as an error the step loop sees.
type Store interface {
	// Load brings persisted counters into memory. Safe to call repeatedly.
	Load() error
	// Get returns the counters for a category and whether any exist.
	Get(category Category) (Counters, bool)
	// Update records one resolved step's winner and persists the change.
	Update(category Category, winner plan.Variant) error
	// Persist flushes in-memory counters to the backing store.
	Persist() error
	// Snapshot returns a copy of all counters.
	Snapshot() Snapshot
}

// MemoryStore is an in-memory Store for tests and for runs with persistence
// disabled.
type MemoryStore struct {
	mu   sync.Mutex
	data Snapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(Snapshot)}
}

func (m *MemoryStore) Load() error { return nil }

func (m *MemoryStore) Get(category Category) (Counters, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data[category]
	return c, ok
}

func (m *MemoryStore) Update(category Category, winner plan.Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.data[category]
	applyWin(&c, winner)
	m.data[category] = c
	return nil
}

func (m *MemoryStore) Persist() error { return nil }

func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(Snapshot, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// FileStore persists counters as JSON at a fixed per-user location. A
// missing or corrupt file is treated as empty; read and write failures are
// logged and swallowed so a run's telemetry degrades to in-memory only.
// Concurrent runs race on the file with last-writer-wins semantics, which is
// acceptable for an advisory bias signal.
type FileStore struct {
	path     string
	disabled bool
	logger   logging.Logger

	mu     sync.Mutex
	loaded bool
	data   Snapshot
}

// DefaultPath returns the per-user telemetry location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".arena", "telemetry.json")
	}
	return filepath.Join(home, ".arena", "telemetry.json")
}

// NewFileStore creates a FileStore. When disabled is true, Update and
// Persist become no-ops and Get always reports nothing.
func NewFileStore(path string, disabled bool, logger logging.Logger) *FileStore {
	if path == "" {
		path = DefaultPath()
	}
	return &FileStore{
		path:     path,
		disabled: disabled,
		logger:   logging.OrNop(logger),
		data:     make(Snapshot),
	}
}

func (f *FileStore) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadLocked()
	return nil
}

func (f *FileStore) loadLocked() {
	if f.loaded || f.disabled {
		f.loaded = true
		return
	}
	f.loaded = true

	raw, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Warn("telemetry read failed, starting empty: %v", err)
		}
		return
	}

	var data Snapshot
	if err := json.Unmarshal(raw, &data); err != nil {
		f.logger.Warn("telemetry store corrupt, starting empty: %v", err)
		return
	}
	f.data = data
}

func (f *FileStore) Get(category Category) (Counters, bool) {
	if f.disabled {
		return Counters{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadLocked()
	c, ok := f.data[category]
	return c, ok
}

func (f *FileStore) Update(category Category, winner plan.Variant) error {
	if f.disabled {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadLocked()

	c := f.data[category]
	applyWin(&c, winner)
	f.data[category] = c

	f.persistLocked()
	return nil
}

func (f *FileStore) Persist() error {
	if f.disabled {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persistLocked()
	return nil
}

func (f *FileStore) persistLocked() {
	raw, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		f.logger.Warn("telemetry marshal failed: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		f.logger.Warn("telemetry dir create failed: %v", err)
		return
	}
	if err := os.WriteFile(f.path, raw, 0o644); err != nil {
		f.logger.Warn("telemetry write failed: %v", err)
	}
}

func (f *FileStore) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadLocked()
	out := make(Snapshot, len(f.data))
	for k, v := range f.data {
		out[k] = v
	}
	return out
}

func applyWin(c *Counters, winner plan.Variant) {
	switch winner {
	case plan.VariantPrimary:
		c.WinsPrimary++
	case plan.VariantRefiner:
		c.WinsRefiner++
	}
}
