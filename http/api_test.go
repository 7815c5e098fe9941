package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aukilabs/adt/geometry"
	"github.com/aukilabs/adt/models"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
}

func newTestAPI(t *testing.T) testAPI {
	api := IndexAPI{
		Indexes:       &models.IndexStore{},
		MaxInsertSize: 10,
	}

	return testAPI{
		t:       t,
		handler: api.Handler(),
	}
}

func (a testAPI) do(method, path string, body any, res any) int {
	a.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	if res != nil {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), res), w.Body.String())
	}
	return w.Code
}

func (a testAPI) createIndex(name string, dim int) models.IndexInfo {
	a.t.Helper()

	var info models.IndexInfo
	code := a.do(http.MethodPost, "/indexes", createIndexRequest{Name: name, Dim: dim}, &info)
	require.Equal(a.t, http.StatusCreated, code)
	return info
}

func segment(min, max geometry.Vertex) [][]geometry.Vertex {
	return [][]geometry.Vertex{{min, max}}
}

func TestIndexAPIScenario(t *testing.T) {
	api := newTestAPI(t)

	info := api.createIndex("scenario", 2)
	require.NotEmpty(t, info.ID)
	require.Equal(t, "scenario", info.Name)
	require.Equal(t, 2, info.Dim)

	var inserted insertResponse
	code := api.do(http.MethodPost, "/indexes/"+info.ID+"/elements", insertRequest{
		Elements: []elementRequest{
			{Tag: "A", Rings: segment(geometry.Vertex{0, 0}, geometry.Vertex{2, 2})},
			{Tag: "B", Rings: segment(geometry.Vertex{5, 5}, geometry.Vertex{7, 7})},
			{Tag: "C", Rings: segment(geometry.Vertex{1, 1}, geometry.Vertex{3, 3})},
			{Rings: segment(geometry.Vertex{1, 1}, geometry.Vertex{3, 3})},
		},
	}, &inserted)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, insertResponse{Inserted: 4, Tags: []string{"A", "B", "C", "1"}}, inserted)

	var found searchResponse
	code = api.do(http.MethodPost, "/indexes/"+info.ID+"/search", searchRequest{
		Rings: segment(geometry.Vertex{0.5, 0.5}, geometry.Vertex{1.5, 1.5}),
	}, &found)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, []string{"1", "A", "C"}, found.Tags)
	require.Equal(t, 3, found.Stats.Matches)

	code = api.do(http.MethodPost, "/indexes/"+info.ID+"/search", searchRequest{
		Rings: segment(geometry.Vertex{10, 10}, geometry.Vertex{12, 12}),
	}, &found)
	require.Equal(t, http.StatusOK, code)
	require.Empty(t, found.Tags)

	var got models.IndexInfo
	code = api.do(http.MethodGet, "/indexes/"+info.ID, nil, &got)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 4, got.Count)

	var debug debugResponse
	code = api.do(http.MethodGet, "/indexes/"+info.ID+"/debug", nil, &debug)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 4, debug.NodeCount)
	require.Equal(t, []float64{0, 0}, debug.Min)
	require.Equal(t, []float64{7, 7}, debug.Max)

	var list []models.IndexInfo
	code = api.do(http.MethodGet, "/indexes", nil, &list)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list, 1)

	code = api.do(http.MethodDelete, "/indexes/"+info.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, code)

	code = api.do(http.MethodGet, "/indexes/"+info.ID, nil, nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestIndexAPIErrors(t *testing.T) {
	api := newTestAPI(t)
	info2D := api.createIndex("2d", 2)
	info3D := api.createIndex("3d", 3)

	t.Run("invalid dimension", func(t *testing.T) {
		var res errorResponse
		code := api.do(http.MethodPost, "/indexes", createIndexRequest{Name: "4d", Dim: 4}, &res)
		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, geometry.ErrTypeInvalidDimension, res.Type)
	})

	t.Run("malformed body", func(t *testing.T) {
		code := api.do(http.MethodPost, "/indexes", "{", nil)
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("unknown index", func(t *testing.T) {
		var res errorResponse
		code := api.do(http.MethodPost, "/indexes/unknown/search", searchRequest{
			Rings: segment(geometry.Vertex{0, 0}, geometry.Vertex{1, 1}),
		}, &res)
		require.Equal(t, http.StatusNotFound, code)
		require.Equal(t, models.ErrTypeIndexNotFound, res.Type)
	})

	t.Run("invalid geometry", func(t *testing.T) {
		var res errorResponse
		code := api.do(http.MethodPost, "/indexes/"+info2D.ID+"/elements", insertRequest{
			Elements: []elementRequest{
				{Tag: "bad", Rings: segment(geometry.Vertex{0, 0, 0}, geometry.Vertex{1, 1, 1})},
			},
		}, &res)
		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, geometry.ErrTypeInvalidGeometry, res.Type)
	})

	t.Run("empty query", func(t *testing.T) {
		var res errorResponse
		code := api.do(http.MethodPost, "/indexes/"+info2D.ID+"/search", searchRequest{}, &res)
		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, geometry.ErrTypeInvalidGeometry, res.Type)
	})

	t.Run("unsupported geometry", func(t *testing.T) {
		code := api.do(http.MethodPost, "/indexes/"+info3D.ID+"/elements", insertRequest{
			Elements: []elementRequest{
				{Tag: "a", Rings: segment(geometry.Vertex{0, 0, 0}, geometry.Vertex{1, 1, 1})},
			},
		}, nil)
		require.Equal(t, http.StatusOK, code)

		var res errorResponse
		code = api.do(http.MethodPost, "/indexes/"+info3D.ID+"/search", searchRequest{
			Rings: [][]geometry.Vertex{{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}},
		}, &res)
		require.Equal(t, http.StatusUnprocessableEntity, code)
		require.Equal(t, geometry.ErrTypeUnsupportedGeometry, res.Type)
	})

	t.Run("too many elements", func(t *testing.T) {
		elements := make([]elementRequest, 11)
		for i := range elements {
			elements[i] = elementRequest{Rings: segment(geometry.Vertex{0, 0}, geometry.Vertex{1, 1})}
		}

		var res errorResponse
		code := api.do(http.MethodPost, "/indexes/"+info2D.ID+"/elements", insertRequest{Elements: elements}, &res)
		require.Equal(t, http.StatusRequestEntityTooLarge, code)
		require.Equal(t, ErrTypeInsertTooLarge, res.Type)
	})

	t.Run("reused generated tag", func(t *testing.T) {
		var inserted insertResponse
		code := api.do(http.MethodPost, "/indexes/"+info2D.ID+"/elements", insertRequest{
			Elements: []elementRequest{
				{Rings: segment(geometry.Vertex{0, 0}, geometry.Vertex{1, 1})},
			},
		}, &inserted)
		require.Equal(t, http.StatusOK, code)

		var res errorResponse
		code = api.do(http.MethodPost, "/indexes/"+info2D.ID+"/elements", insertRequest{
			Elements: []elementRequest{
				{Tag: inserted.Tags[0], Rings: segment(geometry.Vertex{0, 0}, geometry.Vertex{1, 1})},
			},
		}, &res)
		require.Equal(t, http.StatusConflict, code)
		require.Equal(t, models.ErrTypeTagReserved, res.Type)
	})

	t.Run("method not allowed", func(t *testing.T) {
		code := api.do(http.MethodPut, "/indexes", nil, nil)
		require.Equal(t, http.StatusMethodNotAllowed, code)
	})
}
