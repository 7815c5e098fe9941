// Package wire encodes the messages exchanged over WebSocket connections.
//
// Messages use the protobuf wire format and decode with any protobuf
// implementation given the following schema:
//
//	message Vertex  { repeated double coords = 1; }
//	message Ring    { repeated Vertex vertices = 1; }
//	message Element { string tag = 1; repeated Ring rings = 2; }
//
//	message Msg {
//	  int32 type = 1;
//	  uint32 request_id = 2;
//	  string index_id = 3;
//	  string name = 4;
//	  uint32 dim = 5;
//	  repeated Element elements = 6;
//	  repeated Ring query = 7;
//	  repeated string tags = 8;
//	  uint32 inserted = 9;
//	  string error_type = 10;
//	  string error = 11;
//	}
package wire

import "github.com/aukilabs/adt/geometry"

const (
	ErrTypeMalformed = "malformed-message"
)

// MsgType identifies the content of a message.
type MsgType int32

const (
	MsgTypeError MsgType = iota + 1
	MsgTypePing
	MsgTypePong
	MsgTypeIndexCreateRequest
	MsgTypeIndexCreateResponse
	MsgTypeInsertRequest
	MsgTypeInsertResponse
	MsgTypeSearchRequest
	MsgTypeSearchResponse
	MsgTypeIndexDeleteRequest
	MsgTypeIndexDeleteResponse
)

func (t MsgType) String() string {
	switch t {
	case MsgTypeError:
		return "error"
	case MsgTypePing:
		return "ping"
	case MsgTypePong:
		return "pong"
	case MsgTypeIndexCreateRequest:
		return "index_create_request"
	case MsgTypeIndexCreateResponse:
		return "index_create_response"
	case MsgTypeInsertRequest:
		return "insert_request"
	case MsgTypeInsertResponse:
		return "insert_response"
	case MsgTypeSearchRequest:
		return "search_request"
	case MsgTypeSearchResponse:
		return "search_response"
	case MsgTypeIndexDeleteRequest:
		return "index_delete_request"
	case MsgTypeIndexDeleteResponse:
		return "index_delete_response"
	default:
		return "unknown"
	}
}

// Element is a tagged shape carried by insert requests.
type Element struct {
	Tag   string
	Rings [][]geometry.Vertex
}

// Msg is a WebSocket message. Fields irrelevant to the message type are left
// empty.
type Msg struct {
	Type MsgType

	// Set by clients on requests and echoed in the matching response.
	RequestID uint32

	IndexID  string
	Name     string
	Dim      uint32
	Elements []Element
	Query    [][]geometry.Vertex
	Tags     []string
	Inserted uint32

	ErrorType string
	Error     string
}
