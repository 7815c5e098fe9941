package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/adt/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var setTestEncoders sync.Once

// Creates a testing environement to unit test handlers. The returned clients
// are connected to the same server. The returned func closes the clients and
// the server, and waits for every connection handler to return.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*Client, *Client, func()) {
	var mutex sync.Mutex
	logger := t.Log

	setTestEncoders.Do(func() {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
		errors.Encoder = json.Marshal
	})

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	clientA, clientB, close := newTestingEnv(t, newHandler)
	return clientA, clientB, func() {
		close()

		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
	}
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (*Client, *Client, func()) {
	var handlers sync.WaitGroup

	server := httptest.NewServer(websocket.Server{
		// Counted before the handshake response so that a dialed client
		// always has its handler accounted for.
		Handshake: func(c *websocket.Config, r *http.Request) error {
			handlers.Add(1)
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer handlers.Done()
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	newClient := func() *Client {
		header := make(http.Header)
		header.Set("User-Agent", "ted")
		header.Set("X-Forwarded-for", "192.0.0.0")
		header.Set(httpcmn.HeaderPosemeshClientID, uuid.NewString())

		client, err := Dial(context.Background(),
			strings.ReplaceAll(server.URL, "http://", "ws://"),
			"http://localhost",
			header,
		)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}
		return client
	}

	clientA := newClient()
	clientB := newClient()

	return clientA, clientB, func() {
		clientA.Close()
		clientB.Close()
		server.Close()

		// Hijacked connections are not tracked by the server.
		handlers.Wait()
	}
}

func newTestHandler(indexes *models.IndexStore) func() Handler {
	return func() Handler {
		var h Handler = &QueryHandler{
			ClientIdleTimeout: time.Minute,
			Indexes:           indexes,
			MaxInsertSize:     100,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "https://adt-test.com")
		return h
	}
}
