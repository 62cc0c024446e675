// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"sync"
	"time"

	"code.hybscloud.com/atomix"
)

// SignalSlots is the number of task-id slots in a signal buffer, and so the
// number of synchronous tasks that can be woken without slot contention.
const SignalSlots = 32

// SignalBuffer is the shared wake-up region of a Syncifier: one flag word
// whose bit i announces that slot i holds the id of a task to wake.
//
// Waiters block on changes of the flag word with a bounded timeout.
// Notification is a broadcast: every waiter observes every notify.
type SignalBuffer struct {
	flag  atomix.Uint32
	slots [SignalSlots]atomix.Uint32

	mu  sync.Mutex
	gen chan struct{}
}

// NewSignalBuffer returns an empty signal buffer.
func NewSignalBuffer() *SignalBuffer {
	return &SignalBuffer{gen: make(chan struct{})}
}

// slotOf returns the slot addressed by taskID.
func slotOf(taskID uint32) int {
	return int((taskID >> 1) % SignalSlots)
}

type waitStatus uint8

const (
	waitOK waitStatus = iota
	waitNotEqual
	waitTimedOut
	waitDone
)

func (s waitStatus) String() string {
	switch s {
	case waitOK:
		return "ok"
	case waitNotEqual:
		return "not-equal"
	case waitTimedOut:
		return "timed-out"
	default:
		return "done"
	}
}

// wait blocks while the flag word is zero, until notified, until done is
// closed, or until timeout elapses.
func (b *SignalBuffer) wait(timeout time.Duration, done <-chan struct{}) waitStatus {
	b.mu.Lock()
	ch := b.gen
	b.mu.Unlock()
	if b.flag.Load() != 0 {
		return waitNotEqual
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return waitOK
	case <-done:
		return waitDone
	case <-t.C:
		return waitTimedOut
	}
}

// notify wakes every goroutine blocked in wait.
func (b *SignalBuffer) notify() {
	b.mu.Lock()
	close(b.gen)
	b.gen = make(chan struct{})
	b.mu.Unlock()
}

// orFlag atomically sets bits in the flag word.
func (b *SignalBuffer) orFlag(bits uint32) {
	for {
		old := b.flag.Load()
		if b.flag.CompareAndSwap(old, old|bits) {
			return
		}
	}
}

// clearFlag atomically clears bits in the flag word.
func (b *SignalBuffer) clearFlag(bits uint32) {
	for {
		old := b.flag.Load()
		if b.flag.CompareAndSwap(old, old&^bits) {
			return
		}
	}
}

// Pending returns the current flag word.
func (b *SignalBuffer) Pending() uint32 {
	return b.flag.Load()
}

// signal publishes taskID in its slot and wakes waiters.
//
// The slot must be free before it can be written. On contention the
// responder sleeps with exponential backoff, starting at one millisecond and
// doubling up to ceiling. It returns false if done is closed first.
func (b *SignalBuffer) signal(taskID uint32, ceiling time.Duration, done <-chan struct{}) bool {
	i := slotOf(taskID)
	sleep := time.Millisecond
	for !b.slots[i].CompareAndSwap(0, taskID) {
		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-done:
			t.Stop()
			return false
		}
		if sleep < ceiling {
			sleep = min(sleep*2, ceiling)
		}
	}
	b.orFlag(1 << i)
	b.notify()
	return true
}

// take consumes every announced slot and returns the task ids found.
// A slot can be observed empty when a concurrent sweep already took it;
// such slots are skipped.
func (b *SignalBuffer) take() []uint32 {
	flag := b.flag.Load()
	if flag == 0 {
		return nil
	}
	var ids []uint32
	for i := range SignalSlots {
		bit := uint32(1) << i
		if flag&bit == 0 {
			continue
		}
		b.clearFlag(bit)
		if id := b.slots[i].Swap(0); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
