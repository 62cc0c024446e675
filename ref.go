// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"code.hybscloud.com/atomix"
)

// Ref is a reference to an object living on the other side of an endpoint.
//
// A Ref names its target by store key (NoStoreKey for the peer's exposed
// object) and a property path relative to it. Extending the path with Prop
// is local. Every other operation builds a request and returns an
// unscheduled Task; nothing is sent until the Task is scheduled.
//
// A released or destroyed Ref fails every operation with ErrReleased
// without touching the channel. Refs derived with Prop share the released
// state of their parent.
type Ref struct {
	ep       *Endpoint
	storeKey uint32
	origin   string
	path     []any
	keys     []string
	owned    bool
	released *atomix.Uint32
}

func (ep *Endpoint) wrap(owned bool) *Ref {
	return &Ref{ep: ep, owned: owned, released: new(atomix.Uint32)}
}

func (ep *Endpoint) newRef(storeKey uint32, origin string, keys []string) *Ref {
	return &Ref{
		ep:       ep,
		storeKey: storeKey,
		origin:   origin,
		keys:     keys,
		released: new(atomix.Uint32),
	}
}

// Endpoint returns the endpoint requests are sent over.
func (r *Ref) Endpoint() *Endpoint { return r.ep }

// StoreKey returns the remote store key, or NoStoreKey for the peer's
// exposed object.
func (r *Ref) StoreKey() uint32 { return r.storeKey }

// Path returns a copy of the property path.
func (r *Ref) Path() []any { return slices.Clone(r.path) }

// Keys returns the property names the peer reported for the target.
func (r *Ref) Keys() []string { return slices.Clone(r.keys) }

// Released reports whether the reference has been released or destroyed.
func (r *Ref) Released() bool { return r.released.Load() != 0 }

// Prop returns a reference to a member of the target.
func (r *Ref) Prop(keys ...any) *Ref {
	d := *r
	d.path = append(slices.Clone(r.path), keys...)
	d.keys = nil
	d.owned = false
	return &d
}

func (r *Ref) message(t MessageType, path []any) *Message {
	return &Message{
		Type:     t,
		StoreKey: r.storeKey,
		Path:     append(slices.Clone(r.path), path...),
	}
}

// Get reads the value at path below the target. An empty path reads the
// target itself.
func (r *Ref) Get(path ...any) (*Task, error) {
	if r.Released() {
		return nil, ErrReleased
	}
	return newTask(r.ep, r.message(MessageGet, path), nil, nil), nil
}

// Set writes v at path below the target. The path must not be empty.
// The task resolves to true.
func (r *Ref) Set(path []any, v any) (*Task, error) {
	if r.Released() {
		return nil, ErrReleased
	}
	w, transfers, err := r.ep.toWireValue(v)
	if err != nil {
		return nil, err
	}
	msg := r.message(MessageSet, path)
	msg.Value = &w
	return newTask(r.ep, msg, transfers, nil), nil
}

// Apply calls the function or method at path below the target.
func (r *Ref) Apply(path []any, args ...any) (*Task, error) {
	return r.invoke(MessageApply, path, args)
}

// Construct calls the constructor at path below the target. The result is
// always returned by reference.
func (r *Ref) Construct(path []any, args ...any) (*Task, error) {
	return r.invoke(MessageConstruct, path, args)
}

func (r *Ref) invoke(t MessageType, path []any, args []any) (*Task, error) {
	if r.Released() {
		return nil, ErrReleased
	}
	wires, transfers, err := r.ep.encodeArguments(args)
	if err != nil {
		return nil, err
	}
	msg := r.message(t, path)
	msg.ArgumentList = wires
	return newTask(r.ep, msg, transfers, nil), nil
}

// CreateEndpoint asks the peer to serve the same object over a fresh
// channel. The task resolves to the peer's end of that channel.
func (r *Ref) CreateEndpoint() (*Task, error) {
	if r.Released() {
		return nil, ErrReleased
	}
	return newTask(r.ep, r.message(MessageEndpoint, nil), nil, nil), nil
}

// Destroy removes the target from the peer's object store. The reference
// becomes unusable once the peer acknowledges. The peer's exposed object
// cannot be destroyed, and neither can a member reached with Prop.
func (r *Ref) Destroy() (*Task, error) {
	if r.Released() {
		return nil, ErrReleased
	}
	if r.storeKey == NoStoreKey {
		return nil, unaddressable("destroy requires a stored object")
	}
	if len(r.path) > 0 {
		return nil, unaddressable("destroy of member %v", r.path)
	}
	msg := &Message{Type: MessageDestroy, StoreKey: r.storeKey}
	return newTask(r.ep, msg, nil, func() { r.released.Store(1) }), nil
}

// Fork obtains an independent reference to the same object over a new
// channel. The returned Ref owns that channel and closes it on Release.
func (r *Ref) Fork(ctx context.Context) (*Ref, error) {
	t, err := r.CreateEndpoint()
	if err != nil {
		return nil, err
	}
	v, err := t.Await(ctx)
	if err != nil {
		return nil, err
	}
	ch, ok := v.(Channel)
	if !ok {
		return nil, fmt.Errorf("synclink: endpoint request returned %T", v)
	}
	return r.ep.link.Endpoint(ch).wrap(true), nil
}

// Release marks the reference unusable and tells the peer to stop serving
// the channel. It waits for the acknowledgement until ctx is done, then
// closes the endpoint if the reference owns it.
func (r *Ref) Release(ctx context.Context) error {
	if !r.released.CompareAndSwap(0, 1) {
		return ErrReleased
	}
	t := newTask(r.ep, r.message(MessageRelease, nil), nil, nil)
	_, err := t.Await(ctx)
	if errors.Is(err, ErrEndpointClosed) || errors.Is(err, ErrClosed) {
		// The peer tears the channel down after acknowledging.
		err = nil
	}
	if r.owned {
		if cerr := r.ep.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
