package models

import (
	"fmt"
	"sync"
	"testing"

	"github.com/aukilabs/adt/adt"
	"github.com/aukilabs/adt/geometry"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func segment(min, max geometry.Vertex) [][]geometry.Vertex {
	return [][]geometry.Vertex{{min, max}}
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()

	index, err := NewIndex("test", "scenario", 2)
	require.NoError(t, err)

	tags, err := index.Insert([]ElementInput{
		{Tag: "A", Rings: segment(geometry.Vertex{0, 0}, geometry.Vertex{2, 2})},
		{Tag: "B", Rings: segment(geometry.Vertex{5, 5}, geometry.Vertex{7, 7})},
		{Tag: "C", Rings: segment(geometry.Vertex{1, 1}, geometry.Vertex{3, 3})},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, tags)
	return index
}

func TestNewIndex(t *testing.T) {
	index, err := NewIndex("id", "name", 3)
	require.NoError(t, err)
	require.Equal(t, 3, index.Dim())
	require.Zero(t, index.Len())
	require.False(t, index.CreatedAt.IsZero())

	_, err = NewIndex("id", "name", 0)
	require.True(t, errors.IsType(err, geometry.ErrTypeInvalidDimension))
}

func TestIndexInsert(t *testing.T) {
	t.Run("generates missing tags", func(t *testing.T) {
		index, err := NewIndex("id", "name", 1)
		require.NoError(t, err)

		tags, err := index.Insert([]ElementInput{
			{Rings: segment(geometry.Vertex{0}, geometry.Vertex{1})},
			{Tag: "named", Rings: segment(geometry.Vertex{0}, geometry.Vertex{1})},
			{Rings: segment(geometry.Vertex{0}, geometry.Vertex{1})},
		})
		require.NoError(t, err)
		require.Equal(t, []string{"1", "named", "2"}, tags)
		require.Equal(t, 3, index.Len())
	})

	t.Run("generated tags skip caller tags", func(t *testing.T) {
		index, err := NewIndex("id", "name", 1)
		require.NoError(t, err)

		tags, err := index.Insert([]ElementInput{
			{Rings: segment(geometry.Vertex{0}, geometry.Vertex{1})},
			{Tag: "1", Rings: segment(geometry.Vertex{2}, geometry.Vertex{3})},
		})
		require.NoError(t, err)
		require.Equal(t, []string{"2", "1"}, tags)

		tags, err = index.Insert([]ElementInput{
			{Tag: "3", Rings: segment(geometry.Vertex{4}, geometry.Vertex{5})},
			{Rings: segment(geometry.Vertex{6}, geometry.Vertex{7})},
		})
		require.NoError(t, err)
		require.Equal(t, []string{"3", "4"}, tags)

		found, _, err := index.Search(segment(geometry.Vertex{0}, geometry.Vertex{10}))
		require.NoError(t, err)
		require.Equal(t, []string{"1", "2", "3", "4"}, found)
	})

	t.Run("caller tag equal to a generated tag", func(t *testing.T) {
		index, err := NewIndex("id", "name", 1)
		require.NoError(t, err)

		tags, err := index.Insert([]ElementInput{
			{Rings: segment(geometry.Vertex{0}, geometry.Vertex{1})},
		})
		require.NoError(t, err)
		require.Equal(t, []string{"1"}, tags)

		_, err = index.Insert([]ElementInput{
			{Tag: "other", Rings: segment(geometry.Vertex{2}, geometry.Vertex{3})},
			{Tag: "1", Rings: segment(geometry.Vertex{2}, geometry.Vertex{3})},
		})
		require.True(t, errors.IsType(err, ErrTypeTagReserved))
		require.Equal(t, 1, index.Len())

		found, _, err := index.Search(segment(geometry.Vertex{0}, geometry.Vertex{3}))
		require.NoError(t, err)
		require.Equal(t, []string{"1"}, found)
	})

	t.Run("caller tags may repeat", func(t *testing.T) {
		index, err := NewIndex("id", "name", 1)
		require.NoError(t, err)

		tags, err := index.Insert([]ElementInput{
			{Tag: "same", Rings: segment(geometry.Vertex{0}, geometry.Vertex{1})},
			{Tag: "same", Rings: segment(geometry.Vertex{2}, geometry.Vertex{3})},
		})
		require.NoError(t, err)
		require.Equal(t, []string{"same", "same"}, tags)
	})

	t.Run("invalid element inserts nothing", func(t *testing.T) {
		index, err := NewIndex("id", "name", 2)
		require.NoError(t, err)

		_, err = index.Insert([]ElementInput{
			{Tag: "ok", Rings: segment(geometry.Vertex{0, 0}, geometry.Vertex{1, 1})},
			{Tag: "bad", Rings: segment(geometry.Vertex{0, 0}, geometry.Vertex{1})},
		})
		require.True(t, errors.IsType(err, geometry.ErrTypeInvalidGeometry))
		require.Zero(t, index.Len())
	})

	t.Run("empty geometry", func(t *testing.T) {
		index, err := NewIndex("id", "name", 2)
		require.NoError(t, err)

		_, err = index.Insert([]ElementInput{{Tag: "empty"}})
		require.True(t, errors.IsType(err, geometry.ErrTypeInvalidGeometry))
	})
}

func TestIndexSearch(t *testing.T) {
	index := newTestIndex(t)

	t.Run("returns sorted tags", func(t *testing.T) {
		tags, stats, err := index.Search(segment(geometry.Vertex{0.5, 0.5}, geometry.Vertex{1.5, 1.5}))
		require.NoError(t, err)
		require.Equal(t, []string{"A", "C"}, tags)
		require.Equal(t, 2, stats.Matches)
	})

	t.Run("outside indexed space", func(t *testing.T) {
		tags, _, err := index.Search(segment(geometry.Vertex{10, 10}, geometry.Vertex{12, 12}))
		require.NoError(t, err)
		require.Empty(t, tags)
	})

	t.Run("invalid query", func(t *testing.T) {
		_, _, err := index.Search(segment(geometry.Vertex{10, 10, 10}, geometry.Vertex{12, 12, 12}))
		require.True(t, errors.IsType(err, geometry.ErrTypeInvalidGeometry))
	})

	t.Run("verified search", func(t *testing.T) {
		index.VerifySearch = true
		defer func() {
			index.VerifySearch = false
		}()

		tags, _, err := index.Search(segment(geometry.Vertex{1, 1}, geometry.Vertex{6, 6}))
		require.NoError(t, err)
		require.Equal(t, []string{"A", "B", "C"}, tags)
	})
}

func TestIndexConcurrentAccess(t *testing.T) {
	index, err := NewIndex("id", "name", 2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)

		go func(i int) {
			defer wg.Done()

			x := float64(i)
			_, err := index.Insert([]ElementInput{
				{Tag: fmt.Sprint(i), Rings: segment(geometry.Vertex{x, x}, geometry.Vertex{x + 1, x + 1})},
			})
			require.NoError(t, err)
		}(i)

		go func() {
			defer wg.Done()

			_, _, err := index.Search(segment(geometry.Vertex{0, 0}, geometry.Vertex{10, 10}))
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	tags, _, err := index.Search(segment(geometry.Vertex{0, 0}, geometry.Vertex{10, 10}))
	require.NoError(t, err)
	require.Len(t, tags, 8)
	require.Equal(t, 8, index.DebugInfo().NodeCount)
}

func TestIndexUsesTreeOptions(t *testing.T) {
	index, err := NewIndex("id", "name", 2, adt.WithIntersector(adt.IntersectorFunc(func(a, b *geometry.Shape) (bool, error) {
		return true, nil
	})))
	require.NoError(t, err)

	_, err = index.Insert([]ElementInput{
		{Tag: "a", Rings: segment(geometry.Vertex{0, 0}, geometry.Vertex{2, 2})},
	})
	require.NoError(t, err)

	// The bounding boxes overlap but the segments do not cross.
	tags, _, err := index.Search(segment(geometry.Vertex{0, 2}, geometry.Vertex{0.5, 1.6}))
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, tags)
}
