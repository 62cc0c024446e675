// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import "testing"

func TestStoreKeysOddAndDistinct(t *testing.T) {
	var s objectStore
	s.create()
	seen := make(map[uint32]bool)
	for i := range 100 {
		k := s.put(i)
		if k%2 == 0 {
			t.Fatalf("put #%d: key %d is even", i, k)
		}
		if seen[k] {
			t.Fatalf("put #%d: key %d reissued", i, k)
		}
		seen[k] = true
	}
	if got := s.len(); got != 100 {
		t.Fatalf("len: got %d, want 100", got)
	}
}

func TestStoreCreateIdempotent(t *testing.T) {
	var s objectStore
	s.create()
	k := s.put("a")
	s.create()
	if v, ok := s.get(k); !ok || v != "a" {
		t.Fatalf("get after second create: got %v, %v", v, ok)
	}
}

func TestStorePutSkipsUsedKeys(t *testing.T) {
	var s objectStore
	k1 := s.put("a")
	k2 := s.put("b")
	// Rewind the counter onto live keys.
	s.counter = k1
	k3 := s.put("c")
	if k3 == k1 || k3 == k2 {
		t.Fatalf("put reused live key %d", k3)
	}
	if k3%2 == 0 {
		t.Fatalf("key %d is even", k3)
	}
}

func TestStoreDelete(t *testing.T) {
	var s objectStore
	k := s.put("x")
	if !s.delete(k) {
		t.Fatalf("delete(%d): want true", k)
	}
	if s.delete(k) {
		t.Fatalf("second delete(%d): want false", k)
	}
	if _, ok := s.get(k); ok {
		t.Fatalf("get(%d) after delete: want miss", k)
	}
}

func TestStoreClearKeepsCounter(t *testing.T) {
	var s objectStore
	k := s.put("x")
	s.clear()
	if s.len() != 0 {
		t.Fatalf("len after clear: got %d", s.len())
	}
	if k2 := s.put("y"); k2 == k {
		t.Fatalf("key %d reissued after clear", k2)
	}
}
