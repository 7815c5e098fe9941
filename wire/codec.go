package wire

import (
	"math"

	"github.com/aukilabs/adt/geometry"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldType      protowire.Number = 1
	fieldRequestID protowire.Number = 2
	fieldIndexID   protowire.Number = 3
	fieldName      protowire.Number = 4
	fieldDim       protowire.Number = 5
	fieldElements  protowire.Number = 6
	fieldQuery     protowire.Number = 7
	fieldTags      protowire.Number = 8
	fieldInserted  protowire.Number = 9
	fieldErrorType protowire.Number = 10
	fieldError     protowire.Number = 11

	fieldElementTag   protowire.Number = 1
	fieldElementRings protowire.Number = 2

	fieldRingVertices protowire.Number = 1

	fieldVertexCoords protowire.Number = 1
)

// Marshal encodes the message. Zero fields are omitted.
func Marshal(msg Msg) []byte {
	var b []byte

	b = appendVarint(b, fieldType, uint64(msg.Type))
	b = appendVarint(b, fieldRequestID, uint64(msg.RequestID))
	b = appendString(b, fieldIndexID, msg.IndexID)
	b = appendString(b, fieldName, msg.Name)
	b = appendVarint(b, fieldDim, uint64(msg.Dim))

	for _, e := range msg.Elements {
		b = protowire.AppendTag(b, fieldElements, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalElement(e))
	}

	b = appendRings(b, fieldQuery, msg.Query)

	for _, tag := range msg.Tags {
		b = protowire.AppendTag(b, fieldTags, protowire.BytesType)
		b = protowire.AppendString(b, tag)
	}

	b = appendVarint(b, fieldInserted, uint64(msg.Inserted))
	b = appendString(b, fieldErrorType, msg.ErrorType)
	b = appendString(b, fieldError, msg.Error)
	return b
}

// Unmarshal decodes a message. Unknown fields are skipped. On error, the
// returned message only holds the type and request id decoded before the
// malformed field.
func Unmarshal(b []byte) (Msg, error) {
	var msg Msg

	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldType:
			v, n, err := consumeVarint(num, typ, b)
			msg.Type = MsgType(v)
			return n, err

		case fieldRequestID:
			v, n, err := consumeVarint(num, typ, b)
			msg.RequestID = uint32(v)
			return n, err

		case fieldIndexID:
			v, n, err := consumeBytes(num, typ, b)
			msg.IndexID = string(v)
			return n, err

		case fieldName:
			v, n, err := consumeBytes(num, typ, b)
			msg.Name = string(v)
			return n, err

		case fieldDim:
			v, n, err := consumeVarint(num, typ, b)
			msg.Dim = uint32(v)
			return n, err

		case fieldElements:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return n, err
			}

			e, err := unmarshalElement(v)
			msg.Elements = append(msg.Elements, e)
			return n, err

		case fieldQuery:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return n, err
			}

			ring, err := unmarshalRing(v)
			msg.Query = append(msg.Query, ring)
			return n, err

		case fieldTags:
			v, n, err := consumeBytes(num, typ, b)
			msg.Tags = append(msg.Tags, string(v))
			return n, err

		case fieldInserted:
			v, n, err := consumeVarint(num, typ, b)
			msg.Inserted = uint32(v)
			return n, err

		case fieldErrorType:
			v, n, err := consumeBytes(num, typ, b)
			msg.ErrorType = string(v)
			return n, err

		case fieldError:
			v, n, err := consumeBytes(num, typ, b)
			msg.Error = string(v)
			return n, err

		default:
			return skip(num, typ, b)
		}
	})
	if err != nil {
		return Msg{Type: msg.Type, RequestID: msg.RequestID}, err
	}
	return msg, nil
}

func marshalElement(e Element) []byte {
	b := appendString(nil, fieldElementTag, e.Tag)
	return appendRings(b, fieldElementRings, e.Rings)
}

func unmarshalElement(b []byte) (Element, error) {
	var e Element

	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldElementTag:
			v, n, err := consumeBytes(num, typ, b)
			e.Tag = string(v)
			return n, err

		case fieldElementRings:
			v, n, err := consumeBytes(num, typ, b)
			if err != nil {
				return n, err
			}

			ring, err := unmarshalRing(v)
			e.Rings = append(e.Rings, ring)
			return n, err

		default:
			return skip(num, typ, b)
		}
	})
	return e, err
}

func appendRings(b []byte, num protowire.Number, rings [][]geometry.Vertex) []byte {
	for _, ring := range rings {
		var r []byte
		for _, v := range ring {
			r = protowire.AppendTag(r, fieldRingVertices, protowire.BytesType)
			r = protowire.AppendBytes(r, marshalVertex(v))
		}

		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, r)
	}
	return b
}

func unmarshalRing(b []byte) ([]geometry.Vertex, error) {
	ring := []geometry.Vertex{}

	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldRingVertices {
			return skip(num, typ, b)
		}

		v, n, err := consumeBytes(num, typ, b)
		if err != nil {
			return n, err
		}

		vertex, err := unmarshalVertex(v)
		ring = append(ring, vertex)
		return n, err
	})
	return ring, err
}

// marshalVertex packs the coordinates.
func marshalVertex(v geometry.Vertex) []byte {
	if len(v) == 0 {
		return nil
	}

	packed := make([]byte, 0, 8*len(v))
	for _, c := range v {
		packed = protowire.AppendFixed64(packed, math.Float64bits(c))
	}

	b := protowire.AppendTag(nil, fieldVertexCoords, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

// unmarshalVertex accepts both packed and unpacked coordinates.
func unmarshalVertex(b []byte) (geometry.Vertex, error) {
	vertex := geometry.Vertex{}

	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldVertexCoords {
			return skip(num, typ, b)
		}

		switch typ {
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return n, malformed(protowire.ParseError(n))
			}
			vertex = append(vertex, math.Float64frombits(v))
			return n, nil

		case protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, malformed(protowire.ParseError(n))
			}

			for len(packed) != 0 {
				v, m := protowire.ConsumeFixed64(packed)
				if m < 0 {
					return n, malformed(protowire.ParseError(m))
				}
				vertex = append(vertex, math.Float64frombits(v))
				packed = packed[m:]
			}
			return n, nil

		default:
			return 0, unexpectedType(num, typ)
		}
	})
	return vertex, err
}

// consumeFields calls consume for every field in b. consume returns the
// number of bytes of the field value it read.
func consumeFields(b []byte, consume func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) != 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(protowire.ParseError(n))
		}
		b = b[n:]

		n, err := consume(num, typ, b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}

	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func consumeVarint(num protowire.Number, typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, unexpectedType(num, typ)
	}

	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, malformed(protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeBytes(num protowire.Number, typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, unexpectedType(num, typ)
	}

	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, malformed(protowire.ParseError(n))
	}
	return v, n, nil
}

func skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, malformed(protowire.ParseError(n))
	}
	return n, nil
}

func malformed(err error) error {
	return errors.New("malformed message").
		WithType(ErrTypeMalformed).
		Wrap(err)
}

func unexpectedType(num protowire.Number, typ protowire.Type) error {
	return errors.New("unexpected wire type").
		WithType(ErrTypeMalformed).
		WithTag("field", int32(num)).
		WithTag("wire_type", int8(typ))
}
