// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"errors"
	"reflect"
	"testing"
	"testing/quick"
)

func endpointPair(t *testing.T) (*Endpoint, *Endpoint) {
	t.Helper()
	l1, err := NewLink()
	if err != nil {
		t.Fatalf("NewLink: %v", err)
	}
	l2, err := NewLink()
	if err != nil {
		t.Fatalf("NewLink: %v", err)
	}
	t.Cleanup(func() {
		l1.Close()
		l2.Close()
	})
	a, b := NewPortPair()
	return l1.Endpoint(a), l2.Endpoint(b)
}

// Plain data survives the synchronous byte encoding tagged RAW.
func TestWireRawRoundTrip(t *testing.T) {
	ep, _ := endpointPair(t)
	property := func(s string, n int64, f float64, b bool, xs []string) bool {
		list := make([]any, len(xs))
		for i, x := range xs {
			list[i] = x
		}
		v := map[string]any{"s": s, "n": n, "f": f, "b": b, "xs": list}

		w, transfers, err := ep.toWireValue(v)
		if err != nil || w.Type != WireRaw || len(transfers) != 0 {
			return false
		}
		raw, err := marshalWire(w)
		if err != nil {
			return false
		}
		back, err := unmarshalWire(raw)
		if err != nil || back.Type != WireRaw {
			return false
		}
		got, err := ep.fromWireValue(back)
		return err == nil && reflect.DeepEqual(got, v)
	}
	if err := quick.Check(property, nil); err != nil {
		t.Fatal(err)
	}
}

func TestWireRawIsCopy(t *testing.T) {
	ep, _ := endpointPair(t)
	items := []string{"a", "b"}
	meta := map[string]any{"n": 1, "tags": []string{"x"}}

	w, _, err := ep.toWireValue(map[string]any{"items": items, "meta": meta})
	if err != nil || w.Type != WireRaw {
		t.Fatalf("toWireValue: %+v, %v", w, err)
	}
	items[0] = "mutated"
	meta["n"] = 2
	meta["tags"].([]string)[0] = "mutated"

	want := map[string]any{
		"items": []any{"a", "b"},
		"meta":  map[string]any{"n": int64(1), "tags": []any{"x"}},
	}
	if !reflect.DeepEqual(w.Value, want) {
		t.Fatalf("wire value: got %#v", w.Value)
	}
}

func TestWireThrownErrorSurvivesBytes(t *testing.T) {
	ep, _ := endpointPair(t)
	w, _, err := ep.toWireValue(thrown{value: unaddressable("store key %d", 9)})
	if err != nil {
		t.Fatalf("toWireValue: %v", err)
	}
	if w.Type != WireHandler || w.Name != ThrowHandlerName {
		t.Fatalf("wire: got %s %q", w.Type, w.Name)
	}
	raw, err := marshalWire(w)
	if err != nil {
		t.Fatalf("marshalWire: %v", err)
	}
	back, err := unmarshalWire(raw)
	if err != nil {
		t.Fatalf("unmarshalWire: %v", err)
	}
	_, err = ep.fromWireValue(back)
	var re *RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("decoded error: got %T %v", err, err)
	}
	if re.Name != "UnaddressableError" {
		t.Fatalf("Name: got %q", re.Name)
	}
	if !errors.Is(err, ErrUnaddressable) {
		t.Fatalf("errors.Is(ErrUnaddressable): false for %v", err)
	}
	if errors.Is(err, ErrReleased) {
		t.Fatalf("errors.Is(ErrReleased): true for %v", err)
	}
}

func TestWireThrownValue(t *testing.T) {
	ep, _ := endpointPair(t)
	w, _, _ := ep.toWireValue(thrown{value: &ThrownValue{Value: "oops"}})
	raw, _ := marshalWire(w)
	back, _ := unmarshalWire(raw)
	_, err := ep.fromWireValue(back)
	var tv *ThrownValue
	if !errors.As(err, &tv) || tv.Value != "oops" {
		t.Fatalf("decoded: got %v", err)
	}
}

func TestWireReferenceIdentity(t *testing.T) {
	ep1, ep2 := endpointPair(t)
	obj := &account{Owner: "ada"}

	w, _, err := ep1.toWireValue(obj)
	if err != nil {
		t.Fatalf("toWireValue: %v", err)
	}
	if w.Type != WireID || w.EndpointID != ep1.ID() || w.StoreKey%2 == 0 {
		t.Fatalf("wire: %+v", w)
	}
	w2, _, _ := ep1.toWireValue(&account{})
	if w2.StoreKey == w.StoreKey {
		t.Fatalf("second object reused store key %d", w.StoreKey)
	}

	// Decoding at the origin yields the object itself.
	got, err := ep1.fromWireValue(w)
	if err != nil || got != obj {
		t.Fatalf("origin decode: got %v, %v", got, err)
	}

	// Decoding elsewhere yields a reference that goes home as the same ID.
	v, err := ep2.fromWireValue(w)
	if err != nil {
		t.Fatalf("remote decode: %v", err)
	}
	ref, ok := v.(*Ref)
	if !ok {
		t.Fatalf("remote decode: got %T", v)
	}
	if ref.StoreKey() != w.StoreKey || len(ref.Keys()) == 0 {
		t.Fatalf("ref: key %d keys %v", ref.StoreKey(), ref.Keys())
	}
	home, _, err := ep2.toWireValue(ref)
	if err != nil {
		t.Fatalf("encode ref: %v", err)
	}
	back, err := ep1.fromWireValue(home)
	if err != nil || back != obj {
		t.Fatalf("homecoming: got %v, %v", back, err)
	}

	ep1.store.delete(w.StoreKey)
	if _, err := ep1.fromWireValue(w); !errors.Is(err, ErrUnaddressable) {
		t.Fatalf("deleted key: got %v", err)
	}
}

func TestWireUnknownHandler(t *testing.T) {
	ep, _ := endpointPair(t)
	_, err := ep.fromWireValue(WireValue{Type: WireHandler, Name: "nope"})
	if !errors.Is(err, ErrUnknownHandler) {
		t.Fatalf("got %v", err)
	}
}

func TestHandlersOrder(t *testing.T) {
	hs := NewHandlers()
	always := HandlerFuncs{
		CanHandleFunc:   func(any) bool { return true },
		SerializeFunc:   func(v any) (any, []any, error) { return v, nil, nil },
		DeserializeFunc: func(p any) (any, error) { return p, nil },
	}
	hs.Register("first", always)
	hs.Register("second", always)
	hs.Register("first", always)
	if got := hs.Names(); !reflect.DeepEqual(got, []string{"first", "second"}) {
		t.Fatalf("Names: got %v", got)
	}
	if name, _, ok := hs.match(1); !ok || name != "first" {
		t.Fatalf("match: got %q %v", name, ok)
	}
	hs.Unregister("first")
	if name, _, ok := hs.match(1); !ok || name != "second" {
		t.Fatalf("match after unregister: got %q %v", name, ok)
	}
	if _, ok := hs.Lookup("first"); ok {
		t.Fatalf("Lookup after unregister: found")
	}
}
