// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import "time"

// EncodedRawSize returns the synchronous reply length of plain value v.
func EncodedRawSize(v any) int {
	b, err := marshalWire(WireValue{Type: WireRaw, Value: v})
	if err != nil {
		panic(err)
	}
	return len(b)
}

// PoolIdle returns the number of idle data buffers serving size.
func (s *Syncifier) PoolIdle(size int) int { return s.pool.idle(size) }

// Poll runs one sweep of the signal buffer.
func (s *Syncifier) Poll() error { return s.pollTasks() }

// Retire marks id as given up on.
func (s *Syncifier) Retire(id uint32) { s.retire(id) }

// Publish announces taskID on the signal buffer.
func (b *SignalBuffer) Publish(taskID uint32) bool {
	return b.signal(taskID, time.Millisecond, nil)
}
