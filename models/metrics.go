package models

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	dimLabel    = "dim"
	resultLabel = "result"
)

var (
	indexCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "adt_index_count",
		Help: "The number of indexes.",
	}, []string{dimLabel})

	elementCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "adt_element_count",
		Help: "The number of elements stored across indexes.",
	}, []string{dimLabel})

	insertTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adt_insert_total",
		Help: "The total number of insert requests.",
	}, []string{dimLabel, resultLabel})

	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adt_search_total",
		Help: "The total number of searches.",
	}, []string{dimLabel, resultLabel})

	searchMismatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adt_search_mismatch_total",
		Help: "The total number of searches whose result differed from a brute-force scan.",
	}, []string{dimLabel})

	searchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adt_search_latency_seconds",
		Help:    "The time spent in searches.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{dimLabel})

	searchVisitedNodes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adt_search_visited_nodes",
		Help:    "The number of tree nodes visited by a search.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{dimLabel})

	searchCandidates = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adt_search_candidates",
		Help:    "The number of elements passed to the exact intersection test by a search.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{dimLabel})
)

func dimLabels(dim int) prometheus.Labels {
	return prometheus.Labels{dimLabel: strconv.Itoa(dim)}
}

func resultLabels(dim int, err error) prometheus.Labels {
	result := "ok"
	if err != nil {
		result = "error"
	}

	return prometheus.Labels{
		dimLabel:    strconv.Itoa(dim),
		resultLabel: result,
	}
}

func instrumentIndexAdded(dim int) {
	indexCount.With(dimLabels(dim)).Inc()
}

func instrumentIndexRemoved(dim, elements int) {
	indexCount.With(dimLabels(dim)).Dec()
	elementCount.With(dimLabels(dim)).Sub(float64(elements))
}

func instrumentInsert(dim, inserted int, err error) {
	insertTotal.With(resultLabels(dim, err)).Inc()
	elementCount.With(dimLabels(dim)).Add(float64(inserted))
}

func instrumentSearch(dim int, visited, candidates int, start time.Time, err error) {
	searchTotal.With(resultLabels(dim, err)).Inc()
	if err != nil {
		return
	}

	searchLatency.With(dimLabels(dim)).Observe(time.Since(start).Seconds())
	searchVisitedNodes.With(dimLabels(dim)).Observe(float64(visited))
	searchCandidates.With(dimLabels(dim)).Observe(float64(candidates))
}

func instrumentSearchMismatch(dim int) {
	searchMismatchTotal.With(dimLabels(dim)).Inc()
}
