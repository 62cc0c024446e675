// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Synchronous replies travel as CBOR bytes through the requester's data
// buffer. Asynchronous RAW values are copied through the same encoding, so
// both modes deliver the same shapes: maps decode as map[string]any, arrays
// as []any, integers as int64 and floats as float64.
var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("synclink: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("synclink: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// marshalWire serializes a reply for a synchronous requester.
func marshalWire(w WireValue) ([]byte, error) {
	b, err := cborEncMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("synclink: marshal wire value: %w", err)
	}
	return b, nil
}

// unmarshalWire deserializes a synchronous reply.
func unmarshalWire(data []byte) (WireValue, error) {
	var w WireValue
	if err := cborDecMode.Unmarshal(data, &w); err != nil {
		return WireValue{}, fmt.Errorf("synclink: unmarshal wire value: %w", err)
	}
	return w, nil
}

// cloneRaw returns a deep copy of plain data in its decoded CBOR shape.
func cloneRaw(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := cborEncMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("synclink: encode raw value: %w", err)
	}
	var out any
	if err := cborDecMode.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("synclink: decode raw value: %w", err)
	}
	return out, nil
}

// decodeAs converts generic decoded data into a value of type t.
func decodeAs(v any, t reflect.Type) (reflect.Value, error) {
	b, err := cborEncMode.Marshal(v)
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(t)
	if err := cborDecMode.Unmarshal(b, p.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return p.Elem(), nil
}

// decodePayload returns a handler payload as T. Payloads delivered
// asynchronously keep their Go type; payloads that crossed a synchronous
// reply arrive as generic CBOR data and are re-decoded into T.
func decodePayload[T any](payload any) (T, error) {
	if v, ok := payload.(T); ok {
		return v, nil
	}
	var out T
	b, err := cborEncMode.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("synclink: re-encode payload: %w", err)
	}
	if err := cborDecMode.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("synclink: decode payload as %T: %w", out, err)
	}
	return out, nil
}
