package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/adt/models"
	"github.com/aukilabs/adt/wire"
	"github.com/aukilabs/go-tooling/pkg/errors"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeInsertTooLarge = "insert-too-large"

	errTypeInternal = "internal-error"
)

// QueryHandler serves index creation, insert and search requests from a
// single client connection.
type QueryHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The store that contains all the indexes.
	Indexes *models.IndexStore

	// The maximum number of elements in an insert request. Zero means no
	// limit.
	MaxInsertSize int

	conn     *websocket.Conn
	clientID string
}

func (h *QueryHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = conn.Request().Header.Get(httpcmn.HeaderPosemeshClientID)
	h.conn = conn
}

func (h *QueryHandler) HandleDisconnect(_ error) {
}

func (h *QueryHandler) HandlePing(ctx context.Context, respond ResponseSender, msg wire.Msg) error {
	respond.Send(wire.Msg{
		Type:      wire.MsgTypePong,
		RequestID: msg.RequestID,
	})
	return nil
}

func (h *QueryHandler) HandleIndexCreate(ctx context.Context, respond ResponseSender, msg wire.Msg) error {
	index, err := h.Indexes.Create(msg.Name, int(msg.Dim))
	if err != nil {
		respond.Send(errorResponse(msg, err))
		return nil
	}

	respond.Send(wire.Msg{
		Type:      wire.MsgTypeIndexCreateResponse,
		RequestID: msg.RequestID,
		IndexID:   index.ID,
		Name:      index.Name,
		Dim:       uint32(index.Dim()),
	})
	return nil
}

func (h *QueryHandler) HandleIndexDelete(ctx context.Context, respond ResponseSender, msg wire.Msg) error {
	if err := h.Indexes.Remove(msg.IndexID); err != nil {
		respond.Send(errorResponse(msg, err))
		return nil
	}

	respond.Send(wire.Msg{
		Type:      wire.MsgTypeIndexDeleteResponse,
		RequestID: msg.RequestID,
		IndexID:   msg.IndexID,
	})
	return nil
}

func (h *QueryHandler) HandleInsert(ctx context.Context, respond ResponseSender, msg wire.Msg) error {
	if h.MaxInsertSize > 0 && len(msg.Elements) > h.MaxInsertSize {
		respond.Send(errorResponse(msg, errors.New("too many elements").
			WithType(ErrTypeInsertTooLarge).
			WithTag("elements", len(msg.Elements)).
			WithTag("max_elements", h.MaxInsertSize)))
		return nil
	}

	index, err := h.Indexes.Get(msg.IndexID)
	if err != nil {
		respond.Send(errorResponse(msg, err))
		return nil
	}

	inputs := make([]models.ElementInput, len(msg.Elements))
	for i, e := range msg.Elements {
		inputs[i] = models.ElementInput{
			Tag:   e.Tag,
			Rings: e.Rings,
		}
	}

	tags, err := index.Insert(inputs)
	if err != nil {
		respond.Send(errorResponse(msg, err))
		return nil
	}

	respond.Send(wire.Msg{
		Type:      wire.MsgTypeInsertResponse,
		RequestID: msg.RequestID,
		IndexID:   index.ID,
		Inserted:  uint32(len(tags)),
		Tags:      tags,
	})
	return nil
}

func (h *QueryHandler) HandleSearch(ctx context.Context, respond ResponseSender, msg wire.Msg) error {
	index, err := h.Indexes.Get(msg.IndexID)
	if err != nil {
		respond.Send(errorResponse(msg, err))
		return nil
	}

	tags, _, err := index.Search(msg.Query)
	if err != nil {
		respond.Send(errorResponse(msg, err))
		return nil
	}

	respond.Send(wire.Msg{
		Type:      wire.MsgTypeSearchResponse,
		RequestID: msg.RequestID,
		IndexID:   index.ID,
		Tags:      tags,
	})
	return nil
}

func (h *QueryHandler) Receiver() Receiver {
	return func() (wire.Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *QueryHandler) Sender() Sender {
	return func(msg wire.Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

func (h *QueryHandler) Close() {
}

func (h *QueryHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *QueryHandler) GetIndexes() *models.IndexStore {
	return h.Indexes
}

func (h *QueryHandler) GetClientID() string {
	return h.clientID
}

func errorResponse(req wire.Msg, err error) wire.Msg {
	errType := errors.Type(err)
	if errType == "" {
		errType = errTypeInternal
	}

	return wire.Msg{
		Type:      wire.MsgTypeError,
		RequestID: req.RequestID,
		IndexID:   req.IndexID,
		ErrorType: errType,
		Error:     err.Error(),
	}
}
