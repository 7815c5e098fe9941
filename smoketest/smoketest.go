package smoketest

import (
	"context"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aukilabs/adt/geometry"
	adtws "github.com/aukilabs/adt/websocket"
	"github.com/aukilabs/adt/wire"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	ErrTypeUnexpectedResult = "smoke-test-unexpected-result"

	defaultTimeout = 10 * time.Second
)

// Request is the body of a smoke test request.
type Request struct {
	// The WebSocket endpoint to test. http and https schemes are converted to
	// ws and wss.
	Endpoint string `json:"endpoint"`

	// The API key sent to the endpoint.
	Token string `json:"token,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty"`
}

// Results describes the outcome of a smoke test.
type Results struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	Status          string  `json:"status"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Error           string  `json:"error,omitempty"`
}

type Options struct {
	// The public endpoint of the server running the smoke test.
	Endpoint  string
	UserAgent string

	SendResult func(context.Context, Results) error
}

// HandleSmokeTest starts a smoke test against the endpoint of the request.
// The test runs in the background and its result is given to
// opts.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			httpcmn.InternalServerError(w, errors.New("reading body failed").Wrap(err))
			return
		}

		var req Request
		if err := json.Unmarshal(b, &req); err != nil || req.Endpoint == "" {
			httpcmn.BadRequest(w, httpcmn.ErrBadRequest)
			return
		}

		go func() {
			res, err := Run(ctx, RunOptions{
				FromEndpoint: opts.Endpoint,
				ToEndpoint:   req.Endpoint,
				Token:        req.Token,
				UserAgent:    opts.UserAgent,
				Timeout:      req.Timeout,
			})
			if err != nil {
				logs.Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

type RunOptions struct {
	FromEndpoint string
	ToEndpoint   string
	Token        string
	UserAgent    string
	Timeout      time.Duration
}

// Run connects to an endpoint, builds a small 2D index and checks that two
// searches return the expected tags. The index is deleted before returning.
func Run(ctx context.Context, opts RunOptions) (Results, error) {
	res := Results{
		FromEndpoint: opts.FromEndpoint,
		ToEndpoint:   opts.ToEndpoint,
		Status:       StatusFailed,
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	latency, err := run(ctx, opts)
	if err != nil {
		err = errors.New("smoke test failed").
			WithTag("from_endpoint", opts.FromEndpoint).
			WithTag("to_endpoint", opts.ToEndpoint).
			Wrap(err)
		res.Error = err.Error()
		return res, err
	}

	res.Status = StatusSuccess
	res.LatencyMilliSec = float64(latency) / float64(time.Millisecond)
	return res, nil
}

func run(ctx context.Context, opts RunOptions) (time.Duration, error) {
	header := make(http.Header)
	header.Set(httpcmn.HeaderPosemeshClientID, "smoketest-"+uuid.NewString())
	if opts.UserAgent != "" {
		header.Set("User-Agent", opts.UserAgent)
	}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	origin := opts.FromEndpoint
	if origin == "" {
		origin = "http://localhost"
	}

	client, err := adtws.Dial(ctx, websocketURL(opts.ToEndpoint), origin, header)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	latency, err := client.Ping(ctx)
	if err != nil {
		return 0, err
	}

	indexID, err := client.CreateIndex(ctx, "smoketest", 2)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := client.DeleteIndex(ctx, indexID); err != nil {
			logs.WithTag("to_endpoint", opts.ToEndpoint).
				WithTag("index_id", indexID).
				Warn(errors.New("deleting smoke test index failed").Wrap(err))
		}
	}()

	if _, err := client.Insert(ctx, indexID,
		box("A", 0, 0, 2, 2),
		box("B", 5, 5, 7, 7),
		box("C", 1, 1, 3, 3),
	); err != nil {
		return 0, err
	}

	checks := []struct {
		query    [][]geometry.Vertex
		expected []string
	}{
		{
			query:    box("", 0.5, 0.5, 1.5, 1.5).Rings,
			expected: []string{"A", "C"},
		},
		{
			query:    box("", 10, 10, 12, 12).Rings,
			expected: nil,
		},
	}

	for _, c := range checks {
		tags, err := client.Search(ctx, indexID, c.query)
		if err != nil {
			return 0, err
		}

		slices.Sort(tags)
		if !slices.Equal(tags, c.expected) {
			return 0, errors.New("unexpected search result").
				WithType(ErrTypeUnexpectedResult).
				WithTag("index_id", indexID).
				WithTag("tags", tags).
				WithTag("expected", c.expected)
		}
	}

	return latency, nil
}

// box returns a segment element going from the min to the max corner of a
// 2D box.
func box(tag string, minX, minY, maxX, maxY float64) wire.Element {
	return wire.Element{
		Tag: tag,
		Rings: [][]geometry.Vertex{
			{{minX, minY}, {maxX, maxY}},
		},
	}
}

func websocketURL(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")

	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")

	default:
		return endpoint
	}
}
