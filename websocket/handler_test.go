package websocket

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aukilabs/adt/geometry"
	"github.com/aukilabs/adt/models"
	"github.com/aukilabs/adt/wire"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func segment(min, max geometry.Vertex) [][]geometry.Vertex {
	return [][]geometry.Vertex{{min, max}}
}

func TestHandlerHandlePing(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler(&models.IndexStore{}))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := clientA.Request(ctx, wire.Msg{Type: wire.MsgTypePing})
	require.NoError(t, err)
	require.Equal(t, wire.MsgTypePong, res.Type)
	require.Equal(t, uint32(1), res.RequestID)

	_, err = clientA.Ping(ctx)
	require.NoError(t, err)
}

func TestHandlerScenario(t *testing.T) {
	indexes := &models.IndexStore{}
	clientA, clientB, close := NewTestingEnv(t, newTestHandler(indexes))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	indexID, err := clientA.CreateIndex(ctx, "scenario", 2)
	require.NoError(t, err)
	require.NotEmpty(t, indexID)

	tags, err := clientA.Insert(ctx, indexID,
		wire.Element{Tag: "A", Rings: segment(geometry.Vertex{0, 0}, geometry.Vertex{2, 2})},
		wire.Element{Tag: "B", Rings: segment(geometry.Vertex{5, 5}, geometry.Vertex{7, 7})},
		wire.Element{Tag: "C", Rings: segment(geometry.Vertex{1, 1}, geometry.Vertex{3, 3})},
		wire.Element{Rings: segment(geometry.Vertex{20, 20}, geometry.Vertex{21, 21})},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C", "1"}, tags)

	// Indexes are shared between connections.
	tags, err = clientB.Search(ctx, indexID, segment(geometry.Vertex{0.5, 0.5}, geometry.Vertex{1.5, 1.5}))
	require.NoError(t, err)
	require.Equal(t, []string{"A", "C"}, tags)

	tags, err = clientB.Search(ctx, indexID, segment(geometry.Vertex{10, 10}, geometry.Vertex{12, 12}))
	require.NoError(t, err)
	require.Empty(t, tags)

	index, err := indexes.Get(indexID)
	require.NoError(t, err)
	require.Equal(t, 4, index.Len())

	err = clientB.DeleteIndex(ctx, indexID)
	require.NoError(t, err)
	require.Zero(t, indexes.Len())

	_, err = clientA.Search(ctx, indexID, segment(geometry.Vertex{0, 0}, geometry.Vertex{1, 1}))
	require.True(t, errors.IsType(err, models.ErrTypeIndexNotFound))

	err = clientA.DeleteIndex(ctx, indexID)
	require.True(t, errors.IsType(err, models.ErrTypeIndexNotFound))
}

func TestHandlerErrorResponses(t *testing.T) {
	indexes := &models.IndexStore{}
	clientA, _, close := NewTestingEnv(t, newTestHandler(indexes))
	defer close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	index, err := indexes.Create("errors", 2)
	require.NoError(t, err)

	t.Run("invalid dimension", func(t *testing.T) {
		_, err := clientA.CreateIndex(ctx, "invalid", 7)
		require.True(t, errors.IsType(err, geometry.ErrTypeInvalidDimension))
	})

	t.Run("unknown index", func(t *testing.T) {
		_, err := clientA.Search(ctx, "unknown", segment(geometry.Vertex{0, 0}, geometry.Vertex{1, 1}))
		require.True(t, errors.IsType(err, models.ErrTypeIndexNotFound))
	})

	t.Run("invalid geometry", func(t *testing.T) {
		_, err := clientA.Insert(ctx, index.ID, wire.Element{Tag: "empty"})
		require.True(t, errors.IsType(err, geometry.ErrTypeInvalidGeometry))
		require.Zero(t, index.Len())
	})

	t.Run("too many elements", func(t *testing.T) {
		elements := make([]wire.Element, 101)
		for i := range elements {
			elements[i] = wire.Element{Rings: segment(geometry.Vertex{0, 0}, geometry.Vertex{1, 1})}
		}

		_, err := clientA.Insert(ctx, index.ID, elements...)
		require.True(t, errors.IsType(err, ErrTypeInsertTooLarge))
	})

	t.Run("unsupported message type", func(t *testing.T) {
		_, err := clientA.Request(ctx, wire.Msg{Type: wire.MsgType(99)})
		require.True(t, errors.IsType(err, ErrTypeUnsupportedMsg))
	})

	t.Run("connection survives errors", func(t *testing.T) {
		_, err := clientA.Ping(ctx)
		require.NoError(t, err)
	})
}

func TestHandlerAnswersMalformedMessages(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler(&models.IndexStore{}))
	defer close()

	err := websocket.Message.Send(clientA.conn, []byte{0xff, 0xff, 0xff})
	require.NoError(t, err)

	clientA.conn.SetDeadline(time.Now().Add(time.Second))
	res, _, err := Receive(clientA.conn)
	require.NoError(t, err)
	require.Equal(t, wire.MsgTypeError, res.Type)
	require.Equal(t, wire.ErrTypeMalformed, res.ErrorType)
	clientA.conn.SetDeadline(time.Time{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err = clientA.Ping(ctx)
	require.NoError(t, err)
}

func TestHandlerDisconnectsIdleClients(t *testing.T) {
	disconnected := make(chan error, 1)

	clientA, _, close := NewTestingEnv(t, func() Handler {
		return &disconnectRecorder{
			Handler: &QueryHandler{
				ClientIdleTimeout: time.Millisecond * 50,
				Indexes:           &models.IndexStore{},
			},
			disconnected: disconnected,
		}
	})
	defer close()

	select {
	case err := <-disconnected:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("idle client was not disconnected")
	}

	var data []byte
	clientA.conn.SetDeadline(time.Now().Add(time.Second))
	require.Error(t, websocket.Message.Receive(clientA.conn, &data))
}

type disconnectRecorder struct {
	Handler

	disconnected chan error
}

func (h *disconnectRecorder) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	select {
	case h.disconnected <- err:
	default:
	}
}

func TestTestingEnvWaitsForHandlers(t *testing.T) {
	var closed atomic.Int32

	_, _, close := NewTestingEnv(t, func() Handler {
		return &closeRecorder{
			Handler: &QueryHandler{
				ClientIdleTimeout: time.Minute,
				Indexes:           &models.IndexStore{},
			},
			closed: &closed,
		}
	})

	close()
	require.Equal(t, int32(2), closed.Load())
}

type closeRecorder struct {
	Handler

	closed *atomic.Int32
}

func (h *closeRecorder) Close() {
	h.Handler.Close()
	h.closed.Add(1)
}
