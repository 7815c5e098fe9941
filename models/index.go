package models

import (
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/adt/adt"
	"github.com/aukilabs/adt/geometry"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ElementInput describes an element to insert in an index.
type ElementInput struct {
	// The tag returned by searches. A sequential tag is generated when empty.
	Tag   string
	Rings [][]geometry.Vertex
}

// IndexInfo summarizes an index.
type IndexInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Dim       int       `json:"dim"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// Index is a named tree shared between connections. Inserts are serialized
// and exclude searches, searches run concurrently.
type Index struct {
	ID        string
	Name      string
	CreatedAt time.Time

	// Whether search results are checked against a brute-force scan.
	VerifySearch bool

	tags  TagGenerator
	mutex sync.RWMutex
	tree  *adt.Tree[string]

	// Tags given by callers and tags generated by the index. A generated tag
	// never equals a caller tag.
	callerTags    map[string]struct{}
	generatedTags map[string]struct{}
}

// NewIndex returns an empty index of the given dimension.
func NewIndex(id, name string, dim int, opts ...adt.Option) (*Index, error) {
	tree, err := adt.New[string](dim, opts...)
	if err != nil {
		return nil, err
	}

	return &Index{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
		tree:      tree,

		callerTags:    make(map[string]struct{}),
		generatedTags: make(map[string]struct{}),
	}, nil
}

// Dim returns the dimension of the indexed shapes.
func (i *Index) Dim() int {
	return i.tree.Dim()
}

// Len returns the number of stored elements.
func (i *Index) Len() int {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	return i.tree.Len()
}

func (i *Index) Info() IndexInfo {
	return IndexInfo{
		ID:        i.ID,
		Name:      i.Name,
		Dim:       i.Dim(),
		Count:     i.Len(),
		CreatedAt: i.CreatedAt,
	}
}

// Insert validates every input then stores them in order. Nothing is stored
// when one of the inputs is invalid or reuses a generated tag. Inputs without
// a tag get a generated one that differs from every caller tag. It returns
// the tags of the stored elements.
func (i *Index) Insert(inputs []ElementInput) ([]string, error) {
	elements := make([]*adt.Element[string], len(inputs))
	for j, in := range inputs {
		e, err := adt.NewElement(in.Rings, in.Tag, i.Dim())
		if err != nil {
			err = errors.New("invalid element").
				WithType(errors.Type(err)).
				WithTag("index_id", i.ID).
				WithTag("element", j).
				Wrap(err)
			instrumentInsert(i.Dim(), 0, err)
			return nil, err
		}
		elements[j] = e
	}

	i.mutex.Lock()
	defer i.mutex.Unlock()

	for j, e := range elements {
		if _, ok := i.generatedTags[e.Tag]; ok {
			err := errors.New("tag is already generated by the index").
				WithType(ErrTypeTagReserved).
				WithTag("index_id", i.ID).
				WithTag("element", j).
				WithTag("tag", e.Tag)
			instrumentInsert(i.Dim(), 0, err)
			return nil, err
		}
	}
	for _, e := range elements {
		if e.Tag != "" {
			i.callerTags[e.Tag] = struct{}{}
		}
	}

	tags := make([]string, len(elements))
	for j, e := range elements {
		if e.Tag == "" {
			e.Tag = i.generateTag()
		}

		// Elements were validated against the tree dimension above.
		if _, err := i.tree.Insert(e); err != nil {
			instrumentInsert(i.Dim(), j, err)
			return nil, err
		}
		tags[j] = e.Tag
	}

	instrumentInsert(i.Dim(), len(elements), nil)
	return tags, nil
}

// generateTag returns a sequential tag that no caller used.
func (i *Index) generateTag() string {
	for {
		tag := i.tags.New()
		if _, ok := i.callerTags[tag]; ok {
			continue
		}

		i.generatedTags[tag] = struct{}{}
		return tag
	}
}

// Search returns the sorted tags of the elements intersecting the shape built
// from rings.
func (i *Index) Search(rings [][]geometry.Vertex) ([]string, adt.SearchStats, error) {
	query, err := geometry.NewShape(rings, i.Dim())
	if err != nil {
		instrumentSearch(i.Dim(), 0, 0, time.Now(), err)
		return nil, adt.SearchStats{}, err
	}

	i.mutex.RLock()
	defer i.mutex.RUnlock()

	start := time.Now()
	found, stats, err := i.tree.SearchWithStats(query)
	instrumentSearch(i.Dim(), stats.Visited, stats.Candidates, start, err)
	if err != nil {
		return nil, stats, err
	}

	if i.VerifySearch {
		i.verify(query, found)
	}

	tags := found.Slice()
	sort.Strings(tags)
	return tags, stats, nil
}

func (i *Index) verify(query *geometry.Shape, found adt.TagSet[string]) {
	expected, err := i.tree.BruteForce(query)
	if err != nil {
		logs.Warn(errors.New("brute-force verification failed").
			WithTag("index_id", i.ID).
			Wrap(err))
		return
	}

	if !expected.Equal(found) {
		instrumentSearchMismatch(i.Dim())
		logs.Warn(errors.New("search result differs from brute-force scan").
			WithTag("index_id", i.ID).
			WithTag("query", query.AABB().String()).
			WithTag("found", found.Len()).
			WithTag("expected", expected.Len()))
	}
}

// DebugInfo returns the shape of the underlying tree.
func (i *Index) DebugInfo() adt.DebugInfo {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	return i.tree.DebugInfo()
}
