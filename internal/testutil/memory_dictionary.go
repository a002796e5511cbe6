package testutil

import (
	"sync"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/dictionary"
	apperrors "github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

// MemoryDictionary is an in-memory dictionary.Store for tests.  Keys are
// stored exactly as given; callers are expected to add already-normalized
// keys the same way the ETL writes them.
type MemoryDictionary struct {
	mu      sync.RWMutex
	records map[annotation.EntityType]map[string][]annotation.EntityRecord
	closed  bool
}

// NewMemoryDictionary creates an empty store covering all dictionary
// categories.
func NewMemoryDictionary() *MemoryDictionary {
	records := make(map[annotation.EntityType]map[string][]annotation.EntityRecord)
	for _, category := range annotation.DictionaryTypes {
		records[category] = make(map[string][]annotation.EntityRecord)
	}
	return &MemoryDictionary{records: records}
}

// Add appends records under the given key.
func (m *MemoryDictionary) Add(category annotation.EntityType, key string, recs ...annotation.EntityRecord) *MemoryDictionary {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[category][key] = append(m.records[category][key], recs...)
	return m
}

func (m *MemoryDictionary) Lookup(category annotation.EntityType, normalizedKey string) ([]annotation.EntityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, apperrors.New(apperrors.ErrCodeDictionaryClosed, "dictionary store is closed")
	}
	byKey, ok := m.records[category]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrCodeDictionaryBadCategory,
			"no dictionary for category %q", category)
	}
	recs := byKey[normalizedKey]
	out := make([]annotation.EntityRecord, len(recs))
	copy(out, recs)
	return out, nil
}

func (m *MemoryDictionary) Contains(category annotation.EntityType, normalizedKey string) (bool, error) {
	recs, err := m.Lookup(category, normalizedKey)
	if err != nil {
		return false, err
	}
	return len(recs) > 0, nil
}

func (m *MemoryDictionary) Categories() []annotation.EntityType {
	out := make([]annotation.EntityType, len(annotation.DictionaryTypes))
	copy(out, annotation.DictionaryTypes)
	return out
}

func (m *MemoryDictionary) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ dictionary.Store = (*MemoryDictionary)(nil)
