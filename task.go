// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
)

// Mode is the execution mode a Task commits to on first scheduling.
type Mode uint32

const (
	ModeUnset Mode = iota
	ModeAsync
	ModeSync
)

func (m Mode) String() string {
	switch m {
	case ModeUnset:
		return "unset"
	case ModeAsync:
		return "async"
	case ModeSync:
		return "sync"
	default:
		return fmt.Sprintf("Mode(%d)", uint32(m))
	}
}

// syncState is the progress of a synchronously scheduled task.
type syncState uint8

const (
	awaitingFirstSignal syncState = iota
	awaitingBiggerBuffer
	syncComplete
)

// Task is a single deferred remote invocation.
//
// A task starts unscheduled. The first of ScheduleAsync and ScheduleSync
// fixes how the reply is framed; scheduling in the other mode afterwards
// fails and leaves the mode unchanged. The outcome is memoized: every
// observer sees the same value or error.
type Task struct {
	ep        *Endpoint
	msg       *Message
	transfers []any
	onReply   func()

	mode    atomix.Uint32
	done    chan struct{}
	once    sync.Once
	outcome kont.Either[error, any]

	// Set when synchronously scheduled.
	syncifier *Syncifier
	taskID    uint32
	signal    *SignalBuffer
	size      *SizeBuffer
	stateMu   sync.Mutex
	state     syncState
	data      *DataBuffer
}

func newTask(ep *Endpoint, msg *Message, transfers []any, onReply func()) *Task {
	return &Task{
		ep:        ep,
		msg:       msg,
		transfers: transfers,
		onReply:   onReply,
		done:      make(chan struct{}),
	}
}

// Mode returns the committed execution mode.
func (t *Task) Mode() Mode { return Mode(t.mode.Load()) }

// Type returns the operation kind of the task's message.
func (t *Task) Type() MessageType { return t.msg.Type }

// TaskID returns the id assigned by the Syncifier, or 0 when the task is not
// synchronously scheduled.
func (t *Task) TaskID() uint32 { return t.taskID }

// Done is closed once the outcome is known.
func (t *Task) Done() <-chan struct{} { return t.done }

// ScheduleAsync sends the request as an ordinary request/response exchange.
// It is a no-op when already asynchronously scheduled.
func (t *Task) ScheduleAsync() error {
	if t.mode.CompareAndSwap(uint32(ModeUnset), uint32(ModeAsync)) {
		go t.runAsync()
		return nil
	}
	if t.Mode() == ModeSync {
		return ErrAlreadySync
	}
	return nil
}

// ScheduleSync registers the task with the endpoint's Syncifier and sends
// the request with synchronous reply framing. It does not block; Syncify
// does. It is a no-op when already synchronously scheduled.
func (t *Task) ScheduleSync() error {
	if t.mode.CompareAndSwap(uint32(ModeUnset), uint32(ModeSync)) {
		t.ep.link.syncifier.schedule(t)
		return nil
	}
	if t.Mode() == ModeAsync {
		return ErrAlreadyAsync
	}
	return nil
}

// Result returns the memoized outcome, or ErrNotReady before completion.
func (t *Task) Result() (any, error) {
	select {
	case <-t.done:
	default:
		return nil, ErrNotReady
	}
	if err, ok := t.outcome.GetLeft(); ok {
		return nil, err
	}
	v, _ := t.outcome.GetRight()
	return v, nil
}

// Await schedules the task asynchronously when it is unscheduled and waits
// for its outcome. A synchronously scheduled task is observed without
// changing its mode; it completes when the Syncifier drives it.
func (t *Task) Await(ctx context.Context) (any, error) {
	if t.Mode() == ModeUnset {
		// Losing a race to ScheduleSync leaves a sync task to observe.
		if err := t.ScheduleAsync(); err != nil && !errors.Is(err, ErrAlreadySync) {
			return nil, err
		}
	}
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Syncify schedules the task synchronously and blocks the calling
// goroutine until the reply has been received or the wait is interrupted.
func (t *Task) Syncify() (any, error) {
	if err := t.ScheduleSync(); err != nil {
		return nil, err
	}
	if err := t.syncifier.syncifyTask(t); err != nil {
		return nil, err
	}
	return t.Result()
}

func (t *Task) resolve(v any, err error) {
	t.once.Do(func() {
		if err != nil {
			t.outcome = kont.Left[error, any](err)
		} else {
			t.outcome = kont.Right[error, any](v)
		}
		close(t.done)
	})
}

func (t *Task) isDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Task) runAsync() {
	replies, cancel, err := t.ep.request(t.msg, t.transfers)
	if err != nil {
		t.resolve(nil, err)
		return
	}
	defer cancel()
	select {
	case m := <-replies:
		t.complete(m.Reply)
	case <-t.ep.done:
		select {
		case m := <-replies:
			t.complete(m.Reply)
		default:
			t.resolve(nil, ErrEndpointClosed)
		}
	}
}

// complete decodes the reply and resolves the task.
func (t *Task) complete(reply *WireValue) {
	if t.onReply != nil {
		t.onReply()
	}
	if reply == nil {
		t.resolve(nil, nil)
		return
	}
	t.resolve(t.ep.fromWireValue(*reply))
}

// begin sends the synchronous request. It runs once, from
// Syncifier.schedule, after the task id and signal buffer are bound.
func (t *Task) begin(s *Syncifier) error {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	t.size = &SizeBuffer{}
	t.data = s.pool.acquire(s.cfg.InitialBufferSize)
	t.state = awaitingFirstSignal

	req := *t.msg
	req.ID = NewID()
	req.Syncify = true
	req.TaskID = t.taskID
	req.SizeBuffer = t.size
	req.DataBuffer = t.data
	req.SignalBuffer = t.signal
	s.log.Debug().Uint32("task_id", t.taskID).Stringer("type", req.Type).Msg("requesting")
	return t.ep.ch.PostMessage(&req, t.transfers)
}

// advance moves the synchronous protocol forward after a wake-up and
// reports whether the task is complete.
func (t *Task) advance(s *Syncifier) bool {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	switch t.state {
	case syncComplete:
		return true
	case awaitingFirstSignal:
		if !t.size.Fits() {
			id := string(t.data.b[:IDLength])
			s.pool.release(t.data)
			t.data = s.pool.acquire(t.size.Size())
			t.state = awaitingBiggerBuffer
			s.log.Debug().Uint32("task_id", t.taskID).Int("size", t.size.Size()).Msg("bigger data buffer")
			if err := t.ep.ch.PostMessage(&Message{ID: id, DataBuffer: t.data}, nil); err != nil {
				t.state = syncComplete
				t.resolve(nil, fmt.Errorf("synclink: resize negotiation: %w", err))
				return true
			}
			return false
		}
	}

	t.state = syncComplete
	n := t.size.Size()
	if n > t.data.Len() {
		t.resolve(nil, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, n, t.data.Len()))
		return true
	}
	raw := make([]byte, n)
	copy(raw, t.data.b[:n])
	s.pool.release(t.data)
	t.data = nil
	s.log.Debug().Uint32("task_id", t.taskID).Int("size", n).Msg("completing")

	w, err := unmarshalWire(raw)
	if err != nil {
		t.resolve(nil, err)
		return true
	}
	t.complete(&w)
	return true
}

// abandon fails a synchronous task that can no longer complete.
func (t *Task) abandon(err error) {
	t.stateMu.Lock()
	t.state = syncComplete
	t.stateMu.Unlock()
	t.resolve(nil, err)
}
