package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/aukilabs/adt/geometry"
	"github.com/aukilabs/adt/wire"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/net/websocket"
)

// Client sends requests to a WebSocket endpoint and waits for their
// responses. A client must not be used by multiple goroutines.
type Client struct {
	conn      *websocket.Conn
	requestID uint32
}

// Dial connects to the given ws:// or wss:// endpoint.
func Dial(ctx context.Context, endpoint, origin string, header http.Header) (*Client, error) {
	config, err := websocket.NewConfig(endpoint, origin)
	if err != nil {
		return nil, errors.New("creating websocket config failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}
	for k, v := range header {
		config.Header[k] = v
	}

	conn, err := config.DialContext(ctx)
	if err != nil {
		return nil, errors.New("dialing websocket failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}

	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Ping sends a ping and waits for the pong.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.Request(ctx, wire.Msg{Type: wire.MsgTypePing}); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// CreateIndex creates an index and returns its id.
func (c *Client) CreateIndex(ctx context.Context, name string, dim int) (string, error) {
	res, err := c.Request(ctx, wire.Msg{
		Type: wire.MsgTypeIndexCreateRequest,
		Name: name,
		Dim:  uint32(dim),
	})
	if err != nil {
		return "", err
	}
	return res.IndexID, nil
}

// DeleteIndex deletes an index and its elements.
func (c *Client) DeleteIndex(ctx context.Context, indexID string) error {
	_, err := c.Request(ctx, wire.Msg{
		Type:    wire.MsgTypeIndexDeleteRequest,
		IndexID: indexID,
	})
	return err
}

// Insert inserts elements in the given index and returns their tags.
func (c *Client) Insert(ctx context.Context, indexID string, elements ...wire.Element) ([]string, error) {
	res, err := c.Request(ctx, wire.Msg{
		Type:     wire.MsgTypeInsertRequest,
		IndexID:  indexID,
		Elements: elements,
	})
	if err != nil {
		return nil, err
	}
	return res.Tags, nil
}

// Search returns the sorted tags of the elements of the given index that
// intersect the query.
func (c *Client) Search(ctx context.Context, indexID string, query [][]geometry.Vertex) ([]string, error) {
	res, err := c.Request(ctx, wire.Msg{
		Type:    wire.MsgTypeSearchRequest,
		IndexID: indexID,
		Query:   query,
	})
	if err != nil {
		return nil, err
	}
	return res.Tags, nil
}

// Request sends msg with a new request id and returns the response carrying
// the same id. Error responses are returned as errors typed with their error
// type.
func (c *Client) Request(ctx context.Context, msg wire.Msg) (wire.Msg, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	c.requestID++
	msg.RequestID = c.requestID

	if _, err := Send(c.conn, msg); err != nil {
		return wire.Msg{}, errors.New("sending request failed").
			WithTag("msg_type", msg.Type.String()).
			Wrap(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return wire.Msg{}, err
		}

		res, _, err := Receive(c.conn)
		if err != nil {
			return wire.Msg{}, errors.New("receiving response failed").
				WithTag("msg_type", msg.Type.String()).
				Wrap(err)
		}
		if res.RequestID != msg.RequestID {
			continue
		}

		if res.Type == wire.MsgTypeError {
			return res, errors.New(res.Error).
				WithType(res.ErrorType).
				WithTag("msg_type", msg.Type.String()).
				WithTag("request_id", msg.RequestID)
		}
		return res, nil
	}
}
