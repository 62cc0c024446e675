// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import "fmt"

// MessageType is the operation kind carried by a request message.
// The zero value marks replies and out-of-band messages.
type MessageType uint8

const (
	MessageNone MessageType = iota
	MessageGet
	MessageSet
	MessageApply
	MessageConstruct
	MessageEndpoint
	MessageRelease
	MessageDestroy
)

func (t MessageType) String() string {
	switch t {
	case MessageNone:
		return "NONE"
	case MessageGet:
		return "GET"
	case MessageSet:
		return "SET"
	case MessageApply:
		return "APPLY"
	case MessageConstruct:
		return "CONSTRUCT"
	case MessageEndpoint:
		return "ENDPOINT"
	case MessageRelease:
		return "RELEASE"
	case MessageDestroy:
		return "DESTROY"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// Message is the unit exchanged over a Channel.
//
// Requests set Type. Replies leave Type zero and carry the request ID and
// Reply. The resize handshake of a synchronous reply is an out-of-band
// message carrying only ID and DataBuffer.
type Message struct {
	ID           string
	Type         MessageType
	StoreKey     uint32
	Path         []any
	ArgumentList []WireValue
	Value        *WireValue
	Reply        *WireValue

	// Synchronous request framing.
	Syncify      bool
	TaskID       uint32
	SizeBuffer   *SizeBuffer
	DataBuffer   *DataBuffer
	SignalBuffer *SignalBuffer
}

// WireType tags a WireValue.
type WireType string

const (
	WireRaw     WireType = "RAW"
	WireHandler WireType = "HANDLER"
	WireID      WireType = "ID"
)

// WireValue is the tagged encoding of a value crossing the channel.
//
// RAW carries Value inline. HANDLER carries the handler Name and its
// payload in Value. ID carries StoreKey, the owning EndpointID, and the
// property inventory OwnKeys.
type WireValue struct {
	Type       WireType `cbor:"type"`
	Value      any      `cbor:"value"`
	Name       string   `cbor:"name,omitempty"`
	StoreKey   uint32   `cbor:"store_key,omitempty"`
	EndpointID string   `cbor:"endpoint_id,omitempty"`
	OwnKeys    []string `cbor:"own_keys,omitempty"`
}

// pathStrings renders a path for logging.
func pathStrings(path []any) []string {
	out := make([]string, len(path))
	for i, p := range path {
		out[i] = fmt.Sprint(p)
	}
	return out
}
