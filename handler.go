// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// TransferHandler customizes how values that are neither plain data nor
// remote references cross the channel.
//
// Serialize returns a payload that is itself plain data together with the
// transferables that must accompany it. Deserialize rebuilds the value on
// the receiving side; returning an error raises it at the call site.
type TransferHandler interface {
	CanHandle(v any) bool
	Serialize(v any) (payload any, transfers []any, err error)
	Deserialize(payload any) (any, error)
}

// HandlerFuncs adapts three functions to TransferHandler.
type HandlerFuncs struct {
	CanHandleFunc   func(v any) bool
	SerializeFunc   func(v any) (any, []any, error)
	DeserializeFunc func(payload any) (any, error)
}

func (h HandlerFuncs) CanHandle(v any) bool { return h.CanHandleFunc(v) }

func (h HandlerFuncs) Serialize(v any) (any, []any, error) { return h.SerializeFunc(v) }

func (h HandlerFuncs) Deserialize(payload any) (any, error) { return h.DeserializeFunc(payload) }

// Handlers is an ordered registry of named transfer handlers. Handlers are
// consulted in registration order and the first match wins.
type Handlers struct {
	mu     sync.RWMutex
	names  []string
	byName map[string]TransferHandler
}

// NewHandlers returns an empty registry.
func NewHandlers() *Handlers {
	return &Handlers{byName: make(map[string]TransferHandler)}
}

// Register adds h under name. Registering an existing name replaces the
// handler and keeps its position.
func (r *Handlers) Register(name string, h TransferHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		r.names = append(r.names, name)
	}
	r.byName[name] = h
}

// Unregister removes the handler registered under name.
func (r *Handlers) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return
	}
	delete(r.byName, name)
	r.names = slices.DeleteFunc(r.names, func(n string) bool { return n == name })
}

// Lookup returns the handler registered under name.
func (r *Handlers) Lookup(name string) (TransferHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[name]
	return h, ok
}

// Names returns the registered names in consultation order.
func (r *Handlers) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}

func (r *Handlers) match(v any) (string, TransferHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.names {
		h := r.byName[name]
		if h.CanHandle(v) {
			return name, h, true
		}
	}
	return "", nil, false
}

// Names of the built-in handlers.
const (
	ProxyHandlerName = "proxy"
	ThrowHandlerName = "throw"
)

// thrown marks a value raised by a remote operation.
type thrown struct {
	value error
}

type thrownPayload struct {
	IsError bool   `cbor:"is_error"`
	Message string `cbor:"message,omitempty"`
	Name    string `cbor:"name,omitempty"`
	Stack   string `cbor:"stack,omitempty"`
	Value   any    `cbor:"value,omitempty"`
}

// throwHandler carries raised errors and values back to the caller.
type throwHandler struct{}

func (throwHandler) CanHandle(v any) bool {
	_, ok := v.(thrown)
	return ok
}

func (throwHandler) Serialize(v any) (any, []any, error) {
	err := v.(thrown).value
	var tv *ThrownValue
	if errors.As(err, &tv) {
		return thrownPayload{Value: tv.Value}, nil, nil
	}
	p := thrownPayload{IsError: true, Message: err.Error(), Name: errorNameOf(err)}
	var re *RemoteError
	if errors.As(err, &re) {
		p.Message, p.Stack = re.Message, re.Stack
	}
	var se interface{ Stack() string }
	if errors.As(err, &se) {
		p.Stack = se.Stack()
	}
	return p, nil, nil
}

func (throwHandler) Deserialize(payload any) (any, error) {
	p, err := decodePayload[thrownPayload](payload)
	if err != nil {
		return nil, err
	}
	if p.IsError {
		return nil, &RemoteError{Name: p.Name, Message: p.Message, Stack: p.Stack}
	}
	return nil, &ThrownValue{Value: p.Value}
}

// proxied marks a value that crosses the channel on its own port pair.
type proxied struct {
	value any
}

// Proxy marks v to be exposed on a fresh port pair when it is sent. The
// receiving side gets a Ref owning the other port.
func Proxy(v any) any {
	return proxied{value: v}
}

// proxyHandler implements the built-in "proxy" handler.
type proxyHandler struct {
	link *Link
}

func (proxyHandler) CanHandle(v any) bool {
	_, ok := v.(proxied)
	return ok
}

func (h proxyHandler) Serialize(v any) (any, []any, error) {
	local, remote := NewPortPairCapacity(h.link.cfg.PortCapacity)
	h.link.Expose(v.(proxied).value, local)
	return remote, []any{remote}, nil
}

func (h proxyHandler) Deserialize(payload any) (any, error) {
	ch, ok := payload.(Channel)
	if !ok {
		return nil, fmt.Errorf("synclink: proxy payload is %T, not a channel", payload)
	}
	return h.link.Endpoint(ch).wrap(true), nil
}

// transferred associates a transfer list with one value for one encode call.
type transferred struct {
	value     any
	transfers []any
}

// Transfer returns v annotated with transferables. Members of transfers
// count as plain data when v is encoded, and are handed to the channel with
// the message. The association lasts for a single encode.
func Transfer(v any, transfers ...any) any {
	return transferred{value: v, transfers: transfers}
}

// byReference forces a value to be stored and sent as a remote reference.
type byReference struct {
	value any
}
