package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/adt/models"
	"github.com/aukilabs/adt/wire"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64

	ErrTypeUnsupportedMsg = "unsupported-message"
)

// Receiver receives a message and returns the number of bytes read.
type Receiver func() (wire.Msg, int, error)

// Sender sends a message and returns the number of bytes written.
type Sender func(wire.Msg) (int, error)

// ResponseSender queues messages to send to the connected client.
type ResponseSender interface {
	Send(wire.Msg)
}

// Handler represents an index query handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg wire.Msg) error

	// Handles a request to create an index.
	HandleIndexCreate(ctx context.Context, respond ResponseSender, msg wire.Msg) error

	// Handles a request to delete an index.
	HandleIndexDelete(ctx context.Context, respond ResponseSender, msg wire.Msg) error

	// Handles a request to insert elements in an index.
	HandleInsert(ctx context.Context, respond ResponseSender, msg wire.Msg) error

	// Handles a request to search an index.
	HandleSearch(ctx context.Context, respond ResponseSender, msg wire.Msg) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender used to send the queued responses.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Returns the index store.
	GetIndexes() *models.IndexStore

	// Get ClientID
	GetClientID() string
}

// Handle runs the given handler until the connection is closed, the client
// stays idle for too long or ctx is canceled.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

// Receive reads a binary frame from conn and decodes it.
func Receive(conn *websocket.Conn) (wire.Msg, int, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return wire.Msg{}, 0, err
	}

	msg, err := wire.Unmarshal(data)
	return msg, len(data), err
}

// Send encodes msg and writes it to conn as a binary frame.
func Send(conn *websocket.Conn, msg wire.Msg) (int, error) {
	data := wire.Marshal(msg)
	if err := websocket.Message.Send(conn, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The query handler.
	Handler Handler

	sendChan       chan wire.Msg
	receiveChan    chan wire.Msg
	sender         Sender
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan wire.Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan wire.Msg, receiveChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	responder := responseSender(h.send)

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	wg.Wait()
}

func (h *handler) send(msg wire.Msg) {
	h.sendChan <- msg
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		msg, _, err := h.receiver()
		if errors.IsType(err, wire.ErrTypeMalformed) {
			h.send(errorResponse(msg, err))
			continue
		}
		if err != nil {
			h.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}

		select {
		case <-ctx.Done():
			return

		case h.receiveChan <- msg:
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg wire.Msg, responder ResponseSender) error {
	switch msg.Type {
	case wire.MsgTypePing:
		return h.Handler.HandlePing(ctx, responder, msg)

	case wire.MsgTypeIndexCreateRequest:
		return h.Handler.HandleIndexCreate(ctx, responder, msg)

	case wire.MsgTypeIndexDeleteRequest:
		return h.Handler.HandleIndexDelete(ctx, responder, msg)

	case wire.MsgTypeInsertRequest:
		return h.Handler.HandleInsert(ctx, responder, msg)

	case wire.MsgTypeSearchRequest:
		return h.Handler.HandleSearch(ctx, responder, msg)

	case wire.MsgTypePong:
		return nil

	default:
		responder.Send(errorResponse(msg, errors.New("unsupported message type").
			WithType(ErrTypeUnsupportedMsg).
			WithTag("msg_type", int32(msg.Type))))
		return nil
	}
}

func (h *handler) disconnect(err error) {
	h.disconnectChan <- err
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender func(wire.Msg)

func (r responseSender) Send(msg wire.Msg) {
	r(msg)
}
