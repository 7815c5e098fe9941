package models

import (
	"sort"
	"sync"

	"github.com/aukilabs/adt/adt"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
)

const (
	ErrTypeIndexNotFound = "index-not-found"
	ErrTypeIndexLimit    = "index-limit"
	ErrTypeTagReserved   = "tag-reserved"
)

// IndexStore holds the indexes served by the process.
type IndexStore struct {
	// The maximum number of indexes. Zero means no limit.
	MaxIndexes int

	// Whether new indexes check their search results against a brute-force
	// scan.
	VerifySearch bool

	// Options applied to the tree of every new index.
	TreeOptions []adt.Option

	initOnce sync.Once
	mutex    sync.RWMutex
	indexes  map[string]*Index
}

func (s *IndexStore) init() {
	s.indexes = make(map[string]*Index)
}

// Create adds a new empty index.
func (s *IndexStore) Create(name string, dim int) (*Index, error) {
	s.initOnce.Do(s.init)

	index, err := NewIndex(uuid.NewString(), name, dim, s.TreeOptions...)
	if err != nil {
		return nil, err
	}
	index.VerifySearch = s.VerifySearch

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.MaxIndexes > 0 && len(s.indexes) >= s.MaxIndexes {
		return nil, errors.New("index limit reached").
			WithType(ErrTypeIndexLimit).
			WithTag("max_indexes", s.MaxIndexes)
	}

	s.indexes[index.ID] = index
	instrumentIndexAdded(dim)
	return index, nil
}

// Get returns the index with the given id.
func (s *IndexStore) Get(id string) (*Index, error) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	index, ok := s.indexes[id]
	if !ok {
		return nil, errors.New("index not found").
			WithType(ErrTypeIndexNotFound).
			WithTag("index_id", id)
	}
	return index, nil
}

// List returns every index, oldest first.
func (s *IndexStore) List() []*Index {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	indexes := make([]*Index, 0, len(s.indexes))
	for _, index := range s.indexes {
		indexes = append(indexes, index)
	}
	s.mutex.RUnlock()

	sort.Slice(indexes, func(a, b int) bool {
		if indexes[a].CreatedAt.Equal(indexes[b].CreatedAt) {
			return indexes[a].ID < indexes[b].ID
		}
		return indexes[a].CreatedAt.Before(indexes[b].CreatedAt)
	})
	return indexes
}

// Remove drops the index with the given id.
func (s *IndexStore) Remove(id string) error {
	s.initOnce.Do(s.init)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	index, ok := s.indexes[id]
	if !ok {
		return errors.New("index not found").
			WithType(ErrTypeIndexNotFound).
			WithTag("index_id", id)
	}

	delete(s.indexes, id)
	instrumentIndexRemoved(index.Dim(), index.Len())
	return nil
}

// Len returns the number of indexes.
func (s *IndexStore) Len() int {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.indexes)
}
