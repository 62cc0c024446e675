// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Endpoint is one side of a channel together with its identity and its
// object store.
//
// An endpoint serves requests from the peer once it exposes an object or
// stores one, so that references it hands out stay addressable.
type Endpoint struct {
	link  *Link
	ch    Channel
	id    string
	store objectStore
	log   zerolog.Logger

	mu       sync.Mutex
	exposed  any
	listener Listener

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newEndpoint(l *Link, ch Channel) *Endpoint {
	id := NewID()
	return &Endpoint{
		link: l,
		ch:   ch,
		id:   id,
		log:  l.log.With().Str("endpoint", id).Logger(),
		done: make(chan struct{}),
	}
}

// ID returns the endpoint's process-lifetime-unique identity.
func (ep *Endpoint) ID() string { return ep.id }

// Channel returns the underlying channel.
func (ep *Endpoint) Channel() Channel { return ep.ch }

// Link returns the owning link.
func (ep *Endpoint) Link() *Link { return ep.link }

// Done is closed when the endpoint has been torn down.
func (ep *Endpoint) Done() <-chan struct{} { return ep.done }

// Expose sets obj as the target of requests without a store key and starts
// serving.
func (ep *Endpoint) Expose(obj any) {
	ep.store.create()
	ep.mu.Lock()
	ep.exposed = obj
	ep.mu.Unlock()
	ep.serve()
}

// Wrap returns a reference to the peer's default exposed object.
func (ep *Endpoint) Wrap() *Ref {
	return ep.wrap(false)
}

// StoreLen returns the number of live entries in the object store.
func (ep *Endpoint) StoreLen() int {
	return ep.store.len()
}

// serve installs the request listener once.
func (ep *Endpoint) serve() {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.listener != nil || ep.closed() {
		return
	}
	ep.listener = NewListener(ep.handleEvent)
	ep.ch.AddListener(ep.listener)
}

func (ep *Endpoint) closed() bool {
	select {
	case <-ep.done:
		return true
	default:
		return false
	}
}

func (ep *Endpoint) watch(done <-chan struct{}) {
	select {
	case <-done:
		ep.Close()
	case <-ep.done:
	}
}

// Close tears the endpoint down: it stops serving, drops the object store,
// fails pending asynchronous tasks with ErrEndpointClosed, and closes the
// channel when the channel can be closed.
func (ep *Endpoint) Close() error {
	ep.closeOnce.Do(func() {
		ep.mu.Lock()
		l := ep.listener
		ep.listener = nil
		ep.exposed = nil
		close(ep.done)
		ep.mu.Unlock()

		if l != nil {
			ep.ch.RemoveListener(l)
		}
		ep.store.clear()
		ep.link.forget(ep)
		if c, ok := ep.ch.(closer); ok {
			ep.closeErr = c.Close()
		}
		ep.log.Debug().Msg("endpoint closed")
	})
	return ep.closeErr
}

// awaitReply registers a one-shot listener for the first reply carrying id.
// The returned function unregisters it.
func (ep *Endpoint) awaitReply(id string) (<-chan *Message, func()) {
	replies := make(chan *Message, 1)
	var once sync.Once
	var l Listener
	l = NewListener(func(ev Event) {
		m := ev.Data
		if m == nil || m.Type != MessageNone || m.ID != id {
			return
		}
		once.Do(func() {
			ep.ch.RemoveListener(l)
			replies <- m
		})
	})
	ep.ch.AddListener(l)
	return replies, func() { ep.ch.RemoveListener(l) }
}

// request posts msg under a fresh id and returns the channel its reply will
// arrive on.
func (ep *Endpoint) request(msg *Message, transfers []any) (<-chan *Message, func(), error) {
	msg.ID = NewID()
	replies, cancel := ep.awaitReply(msg.ID)
	if err := ep.ch.PostMessage(msg, transfers); err != nil {
		cancel()
		return nil, nil, err
	}
	return replies, cancel, nil
}

func (ep *Endpoint) handleEvent(ev Event) {
	msg := ev.Data
	if msg == nil || msg.Type == MessageNone {
		return
	}
	ep.log.Debug().Stringer("type", msg.Type).Uint32("store_key", msg.StoreKey).
		Strs("path", pathStrings(msg.Path)).Bool("syncify", msg.Syncify).Msg("request")

	rv, err := ep.perform(msg)
	if err != nil {
		rv = thrown{value: err}
	}
	wire, transfers, err := ep.toWireValue(rv)
	if err != nil {
		wire, transfers, _ = ep.toWireValue(thrown{value: err})
	}

	if msg.Syncify {
		go ep.syncResponse(msg, wire, transfers)
	} else if err := ep.ch.PostMessage(&Message{ID: msg.ID, Reply: &wire}, transfers); err != nil {
		ep.log.Debug().Err(err).Str("id", msg.ID).Stringer("type", msg.Type).Msg("reply dropped")
	}

	if msg.Type == MessageRelease {
		ep.Close()
	}
}

// perform runs the operation msg asks for and returns its raw result.
func (ep *Endpoint) perform(msg *Message) (any, error) {
	ep.mu.Lock()
	obj := ep.exposed
	ep.mu.Unlock()
	if msg.StoreKey != NoStoreKey {
		v, ok := ep.store.get(msg.StoreKey)
		if !ok {
			return nil, unaddressable("store key %d", msg.StoreKey)
		}
		obj = v
	}

	path := msg.Path
	switch msg.Type {
	case MessageGet:
		v, err := resolve(obj, path)
		if err != nil {
			return nil, err
		}
		return valueOf(v), nil

	case MessageSet:
		if len(path) == 0 {
			return nil, unaddressable("set requires a property path")
		}
		parent, err := resolve(obj, path[:len(path)-1])
		if err != nil {
			return nil, err
		}
		var value any
		if msg.Value != nil {
			if value, err = ep.fromWireValue(*msg.Value); err != nil {
				return nil, err
			}
		}
		if err := setProperty(parent, path[len(path)-1], value); err != nil {
			return nil, err
		}
		return true, nil

	case MessageApply, MessageConstruct:
		args, err := ep.decodeArguments(msg.ArgumentList)
		if err != nil {
			return nil, err
		}
		fn, err := resolve(obj, path)
		if err != nil {
			return nil, err
		}
		v, err := call(fn, args)
		if err != nil {
			return nil, err
		}
		if msg.Type == MessageConstruct {
			if v == nil {
				return nil, errors.New("synclink: constructor returned nil")
			}
			return byReference{value: v}, nil
		}
		return v, nil

	case MessageEndpoint:
		local, remote := NewPortPairCapacity(ep.link.cfg.PortCapacity)
		ep.link.Expose(obj, local)
		return Transfer(remote, remote), nil

	case MessageRelease:
		return nil, nil

	case MessageDestroy:
		ep.store.delete(msg.StoreKey)
		return nil, nil
	}
	return nil, nil
}

// syncResponse delivers a reply to a blocked requester through the buffers
// it sent along with the request.
//
// If the encoded reply does not fit the data buffer, the responder announces
// the required size, writes a correlation id into the buffer, wakes the
// requester, and waits for a larger buffer tagged with that id.
func (ep *Endpoint) syncResponse(msg *Message, wire WireValue, transfers []any) {
	log := ep.log.With().Uint32("task_id", msg.TaskID).Logger()
	if len(transfers) > 0 {
		wire, _, _ = ep.toWireValue(thrown{value: ErrSyncTransfer})
	}
	b, err := marshalWire(wire)
	if err != nil {
		wire, _, _ = ep.toWireValue(thrown{value: err})
		if b, err = marshalWire(wire); err != nil {
			log.Error().Err(err).Msg("sync reply not encodable")
			return
		}
	}

	size, data, signal := msg.SizeBuffer, msg.DataBuffer, msg.SignalBuffer
	if size == nil || data == nil || signal == nil {
		log.Error().Msg("sync request without buffers")
		return
	}
	ceiling := ep.link.cfg.backoffCeiling()

	if len(b) > data.Len() {
		id := NewID()
		replies, cancel := ep.awaitReply(id)
		defer cancel()
		size.store(len(b), false)
		copy(data.b, id)
		log.Debug().Int("size", len(b)).Int("capacity", data.Len()).Msg("need larger buffer")
		if !signal.signal(msg.TaskID, ceiling, ep.done) {
			return
		}
		select {
		case m := <-replies:
			data = m.DataBuffer
		case <-ep.done:
			log.Warn().Msg("endpoint closed during resize negotiation")
			return
		}
		if data == nil || data.Len() < len(b) {
			// The requester detects the short buffer from the size word.
			size.store(len(b), true)
			log.Error().Int("size", len(b)).Msg("resize negotiation returned a short buffer")
			signal.signal(msg.TaskID, ceiling, ep.done)
			return
		}
	}

	copy(data.b, b)
	size.store(len(b), true)
	log.Debug().Int("size", len(b)).Msg("signaling completion")
	signal.signal(msg.TaskID, ceiling, ep.done)
}
