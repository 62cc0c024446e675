// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import "sync"

// NoStoreKey addresses an endpoint's default exposed object.
const NoStoreKey uint32 = 0

// storeStride keeps allocated keys odd. Even keys are reserved for
// protocol-level sentinels and are never handed to user objects.
const storeStride = 2

// objectStore maps keys to objects exposed to the remote side.
// A key is only meaningful for the endpoint that allocated it.
type objectStore struct {
	mu      sync.Mutex
	objects map[uint32]any
	counter uint32
}

// create initializes the store. Calling it again is a no-op.
func (s *objectStore) create() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createLocked()
}

func (s *objectStore) createLocked() {
	if s.objects != nil {
		return
	}
	s.objects = make(map[uint32]any)
	s.counter = 1
}

func (s *objectStore) get(key uint32) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.objects[key]
	return v, ok
}

// put stores value under the next unused odd key.
func (s *objectStore) put(value any) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createLocked()
	for {
		if _, used := s.objects[s.counter]; !used && s.counter != NoStoreKey {
			break
		}
		s.counter += storeStride
	}
	key := s.counter
	s.counter += storeStride
	s.objects[key] = value
	return key
}

func (s *objectStore) delete(key uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	delete(s.objects, key)
	return ok
}

func (s *objectStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// clear drops every entry. The counter keeps advancing so keys are not
// reissued to a later object while stale references may still exist.
func (s *objectStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.objects)
}
