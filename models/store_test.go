package models

import (
	"testing"
	"time"

	"github.com/aukilabs/adt/geometry"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestIndexStoreCreate(t *testing.T) {
	var store IndexStore

	index, err := store.Create("first", 2)
	require.NoError(t, err)
	require.NotEmpty(t, index.ID)
	require.Equal(t, "first", index.Name)
	require.Equal(t, 1, store.Len())

	_, err = store.Create("invalid", 5)
	require.True(t, errors.IsType(err, geometry.ErrTypeInvalidDimension))
	require.Equal(t, 1, store.Len())
}

func TestIndexStoreCreateLimit(t *testing.T) {
	store := IndexStore{MaxIndexes: 1}

	_, err := store.Create("first", 2)
	require.NoError(t, err)

	_, err = store.Create("second", 2)
	require.True(t, errors.IsType(err, ErrTypeIndexLimit))
}

func TestIndexStoreCreateVerifySearch(t *testing.T) {
	store := IndexStore{VerifySearch: true}

	index, err := store.Create("verified", 1)
	require.NoError(t, err)
	require.True(t, index.VerifySearch)
}

func TestIndexStoreGet(t *testing.T) {
	var store IndexStore

	index, err := store.Create("first", 2)
	require.NoError(t, err)

	got, err := store.Get(index.ID)
	require.NoError(t, err)
	require.Equal(t, index, got)

	_, err = store.Get("unknown")
	require.True(t, errors.IsType(err, ErrTypeIndexNotFound))
}

func TestIndexStoreList(t *testing.T) {
	var store IndexStore
	require.Empty(t, store.List())

	first, err := store.Create("first", 2)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := store.Create("second", 3)
	require.NoError(t, err)

	indexes := store.List()
	require.Equal(t, []*Index{first, second}, indexes)
}

func TestIndexStoreRemove(t *testing.T) {
	var store IndexStore

	index, err := store.Create("first", 2)
	require.NoError(t, err)

	require.NoError(t, store.Remove(index.ID))
	require.Zero(t, store.Len())

	err = store.Remove(index.ID)
	require.True(t, errors.IsType(err, ErrTypeIndexNotFound))
}
