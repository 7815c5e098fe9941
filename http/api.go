package http

import (
	"net/http"
	"time"

	"github.com/aukilabs/adt/geometry"
	"github.com/aukilabs/adt/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeInsertTooLarge = "insert-too-large"

	defaultMaxBodySize = 32 << 20
)

// IndexAPI serves the JSON API to create, fill and query indexes.
type IndexAPI struct {
	// The store that contains all the indexes.
	Indexes *models.IndexStore

	// The maximum number of elements in an insert request. Zero means no
	// limit.
	MaxInsertSize int

	// The maximum size of a request body in bytes. Defaults to 32MB.
	MaxBodySize int64
}

// Handler returns the routes of the API.
func (a *IndexAPI) Handler() http.Handler {
	var mux http.ServeMux

	mux.HandleFunc("POST /indexes", a.HandleCreateIndex)
	mux.HandleFunc("GET /indexes", a.HandleListIndexes)
	mux.HandleFunc("GET /indexes/{id}", a.HandleGetIndex)
	mux.HandleFunc("DELETE /indexes/{id}", a.HandleDeleteIndex)
	mux.HandleFunc("POST /indexes/{id}/elements", a.HandleInsert)
	mux.HandleFunc("POST /indexes/{id}/search", a.HandleSearch)
	mux.HandleFunc("GET /indexes/{id}/debug", a.HandleDebug)
	return &mux
}

type createIndexRequest struct {
	Name string `json:"name"`
	Dim  int    `json:"dim"`
}

type elementRequest struct {
	Tag   string              `json:"tag"`
	Rings [][]geometry.Vertex `json:"rings"`
}

type insertRequest struct {
	Elements []elementRequest `json:"elements"`
}

type insertResponse struct {
	Inserted int      `json:"inserted"`
	Tags     []string `json:"tags"`
}

type searchRequest struct {
	Rings [][]geometry.Vertex `json:"rings"`
}

type searchResponse struct {
	Tags  []string    `json:"tags"`
	Stats searchStats `json:"stats"`
}

type searchStats struct {
	Visited    int `json:"visited"`
	Candidates int `json:"candidates"`
	Matches    int `json:"matches"`
}

type debugResponse struct {
	ID        string    `json:"id"`
	Dim       int       `json:"dim"`
	NodeCount int       `json:"node_count"`
	Depth     int       `json:"depth"`
	Leaves    int       `json:"leaves"`
	Min       []float64 `json:"min,omitempty"`
	Max       []float64 `json:"max,omitempty"`
	Occupancy []uint32  `json:"occupancy"`
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

func (a *IndexAPI) HandleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var req createIndexRequest
	if !a.decode(w, r, &req) {
		return
	}

	index, err := a.Indexes.Create(req.Name, req.Dim)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logs.WithTag("index_id", index.ID).
		WithTag("name", index.Name).
		WithTag("dim", index.Dim()).
		Info("index created")

	writeJSON(w, http.StatusCreated, index.Info())
}

func (a *IndexAPI) HandleListIndexes(w http.ResponseWriter, r *http.Request) {
	indexes := a.Indexes.List()

	infos := make([]models.IndexInfo, len(indexes))
	for i, index := range indexes {
		infos[i] = index.Info()
	}
	writeJSON(w, http.StatusOK, infos)
}

func (a *IndexAPI) HandleGetIndex(w http.ResponseWriter, r *http.Request) {
	index, err := a.Indexes.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, index.Info())
}

func (a *IndexAPI) HandleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.Indexes.Remove(id); err != nil {
		writeError(w, r, err)
		return
	}

	logs.WithTag("index_id", id).Info("index deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (a *IndexAPI) HandleInsert(w http.ResponseWriter, r *http.Request) {
	index, err := a.Indexes.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req insertRequest
	if !a.decode(w, r, &req) {
		return
	}

	if a.MaxInsertSize > 0 && len(req.Elements) > a.MaxInsertSize {
		writeError(w, r, errors.New("too many elements").
			WithType(ErrTypeInsertTooLarge).
			WithTag("elements", len(req.Elements)).
			WithTag("max_elements", a.MaxInsertSize))
		return
	}

	inputs := make([]models.ElementInput, len(req.Elements))
	for i, e := range req.Elements {
		inputs[i] = models.ElementInput{
			Tag:   e.Tag,
			Rings: e.Rings,
		}
	}

	tags, err := index.Insert(inputs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, insertResponse{
		Inserted: len(tags),
		Tags:     tags,
	})
}

func (a *IndexAPI) HandleSearch(w http.ResponseWriter, r *http.Request) {
	index, err := a.Indexes.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req searchRequest
	if !a.decode(w, r, &req) {
		return
	}

	start := time.Now()
	tags, stats, err := index.Search(req.Rings)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logs.WithTag("index_id", index.ID).
		WithTag("matches", stats.Matches).
		WithTag("visited", stats.Visited).
		WithTag("duration", time.Since(start)).
		Debug("index searched")

	writeJSON(w, http.StatusOK, searchResponse{
		Tags: tags,
		Stats: searchStats{
			Visited:    stats.Visited,
			Candidates: stats.Candidates,
			Matches:    stats.Matches,
		},
	})
}

func (a *IndexAPI) HandleDebug(w http.ResponseWriter, r *http.Request) {
	index, err := a.Indexes.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	info := index.DebugInfo()
	min, max := info.Bounds.Bounds()

	writeJSON(w, http.StatusOK, debugResponse{
		ID:        index.ID,
		Dim:       info.Dim,
		NodeCount: info.NodeCount,
		Depth:     info.Depth,
		Leaves:    info.Leaves,
		Min:       min,
		Max:       max,
		Occupancy: info.Occupancy,
	})
}

func (a *IndexAPI) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	maxBodySize := a.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		logs.WithTag(logs.ClientIDTag, r.Header.Get(headerClientID)).
			WithTag("path", r.URL.Path).
			Debug(errors.New("decoding request body failed").Wrap(err))
		httpcmn.BadRequest(w, httpcmn.ErrBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		httpcmn.InternalServerError(w, errors.New("encoding response failed").Wrap(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusCode(err)
	if status == http.StatusInternalServerError {
		logs.WithTag("path", r.URL.Path).Error(err)
		httpcmn.InternalServerError(w, err)
		return
	}

	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Type:  errors.Type(err),
	})
}

func statusCode(err error) int {
	switch errors.Type(err) {
	case geometry.ErrTypeInvalidDimension,
		geometry.ErrTypeInvalidGeometry,
		geometry.ErrTypeDimensionMismatch:
		return http.StatusBadRequest

	case geometry.ErrTypeUnsupportedGeometry:
		return http.StatusUnprocessableEntity

	case models.ErrTypeIndexNotFound:
		return http.StatusNotFound

	case models.ErrTypeIndexLimit,
		models.ErrTypeTagReserved:
		return http.StatusConflict

	case ErrTypeInsertTooLarge:
		return http.StatusRequestEntityTooLarge

	default:
		return http.StatusInternalServerError
	}
}
