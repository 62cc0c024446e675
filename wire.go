// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import "fmt"

// toWireValue encodes v for sending over ep.
//
// Registered handlers are tried first, in registration order. A reference
// to an object stored by the peer is sent back as its original ID. Plain
// data is sent RAW as a deep copy; a value listed in its own transfer list
// is sent RAW as is. Anything else is stored in ep's object store and sent
// as an ID.
func (ep *Endpoint) toWireValue(v any) (WireValue, []any, error) {
	var transfers []any
	if t, ok := v.(transferred); ok {
		v, transfers = t.value, t.transfers
	}

	if name, h, ok := ep.link.handlers.match(v); ok {
		payload, tr, err := h.Serialize(v)
		if err != nil {
			return WireValue{}, nil, fmt.Errorf("synclink: handler %q: %w", name, err)
		}
		return WireValue{Type: WireHandler, Name: name, Value: payload}, tr, nil
	}

	if r, ok := v.(byReference); ok {
		return ep.storeWireValue(r.value), nil, nil
	}

	if r, ok := v.(*Ref); ok && r.ep == ep && r.storeKey != NoStoreKey && r.origin != "" && len(r.path) == 0 {
		return WireValue{
			Type:       WireID,
			StoreKey:   r.storeKey,
			EndpointID: r.origin,
			OwnKeys:    r.keys,
		}, nil, nil
	}

	if isPlain(v, transfers) {
		if len(transfers) > 0 {
			return WireValue{Type: WireRaw, Value: v}, transfers, nil
		}
		c, err := cloneRaw(v)
		if err != nil {
			return WireValue{}, nil, err
		}
		return WireValue{Type: WireRaw, Value: c}, nil, nil
	}
	return ep.storeWireValue(v), nil, nil
}

func (ep *Endpoint) storeWireValue(v any) WireValue {
	key := ep.store.put(v)
	ep.serve()
	return WireValue{
		Type:       WireID,
		StoreKey:   key,
		EndpointID: ep.id,
		OwnKeys:    ownKeys(v),
	}
}

// encodeArguments encodes an argument list, concatenating transferables.
func (ep *Endpoint) encodeArguments(args []any) ([]WireValue, []any, error) {
	wires := make([]WireValue, len(args))
	var transfers []any
	for i, a := range args {
		w, tr, err := ep.toWireValue(a)
		if err != nil {
			return nil, nil, fmt.Errorf("synclink: argument %d: %w", i, err)
		}
		wires[i] = w
		transfers = append(transfers, tr...)
	}
	return wires, transfers, nil
}

// fromWireValue decodes w received over ep. An error raised by the remote
// operation is returned as the error.
func (ep *Endpoint) fromWireValue(w WireValue) (any, error) {
	switch w.Type {
	case WireRaw:
		return w.Value, nil
	case WireHandler:
		h, ok := ep.link.handlers.Lookup(w.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, w.Name)
		}
		return h.Deserialize(w.Value)
	case WireID:
		if w.EndpointID == ep.id {
			v, ok := ep.store.get(w.StoreKey)
			if !ok {
				return nil, unaddressable("store key %d", w.StoreKey)
			}
			return v, nil
		}
		return ep.newRef(w.StoreKey, w.EndpointID, w.OwnKeys), nil
	default:
		return nil, fmt.Errorf("synclink: unknown wire type %q", w.Type)
	}
}

func (ep *Endpoint) decodeArguments(wires []WireValue) ([]any, error) {
	args := make([]any, len(wires))
	for i, w := range wires {
		v, err := ep.fromWireValue(w)
		if err != nil {
			return nil, fmt.Errorf("synclink: argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}
