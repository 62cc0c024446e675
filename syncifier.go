// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/rs/zerolog"
)

// maxRetired bounds how many retired task ids are remembered.
const maxRetired = 1024

// Syncifier lets a goroutine block on the reply to a remote request.
//
// Responders wake requesters through a shared SignalBuffer by publishing
// task ids. A blocked goroutine sweeps every announced slot, advancing
// whichever tasks were woken, and keeps waiting until its own task is
// complete. A background reaper sweeps on a fixed interval so tasks
// nobody blocks on still make progress.
//
// Waits are bounded by the configured timeout. When a wait times out and
// the interrupt flag is set, the interrupt handler runs and the flag is
// cleared; an error from the handler unwinds the blocked call.
type Syncifier struct {
	cfg    Config
	log    zerolog.Logger
	signal *SignalBuffer
	pool   bufferPool
	nextID atomix.Uint32

	mu         sync.Mutex
	tasks      map[uint32]*Task
	// Ids of tasks given up on before their responder signalled, oldest
	// first. A later signal for one of them is dropped.
	retired    map[uint32]struct{}
	retiredIDs []uint32

	// scanMu serializes sweeps of the signal buffer.
	scanMu sync.Mutex

	interrupt   atomix.Uint32
	handlerMu   sync.RWMutex
	onInterrupt func() error

	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewSyncifier returns a Syncifier with its reaper running. Only WithConfig
// and WithLogger apply. Close stops the reaper.
func NewSyncifier(opts ...Option) (*Syncifier, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	return newSyncifier(o), nil
}

func newSyncifier(o options) *Syncifier {
	s := &Syncifier{
		cfg:     o.cfg,
		log:     o.log.With().Str("component", "syncifier").Logger(),
		signal:  NewSignalBuffer(),
		tasks:   make(map[uint32]*Task),
		retired: make(map[uint32]struct{}),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.reap()
	return s
}

// Signal returns the shared signal buffer.
func (s *Syncifier) Signal() *SignalBuffer { return s.signal }

// Pending returns the number of synchronous tasks awaiting completion.
func (s *Syncifier) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Interrupt sets the interrupt flag. Blocked Syncify calls observe it on
// their next wait timeout.
func (s *Syncifier) Interrupt() { s.interrupt.Store(1) }

// Interrupted reports whether the interrupt flag is set.
func (s *Syncifier) Interrupted() bool { return s.interrupt.Load() != 0 }

// ClearInterrupt clears the interrupt flag.
func (s *Syncifier) ClearInterrupt() { s.interrupt.Store(0) }

// SetInterruptHandler installs fn as the interrupt handler. A nil fn
// restores the default, which returns ErrInterrupted. A handler returning
// nil lets the blocked call keep waiting.
func (s *Syncifier) SetInterruptHandler(fn func() error) {
	s.handlerMu.Lock()
	s.onInterrupt = fn
	s.handlerMu.Unlock()
}

func (s *Syncifier) handleInterrupt() error {
	s.handlerMu.RLock()
	fn := s.onInterrupt
	s.handlerMu.RUnlock()
	defer s.ClearInterrupt()
	if fn == nil {
		return ErrInterrupted
	}
	return fn()
}

func (s *Syncifier) isClosed() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// schedule binds t to a task id and sends its synchronous request.
func (s *Syncifier) schedule(t *Task) {
	t.syncifier = s
	if s.isClosed() {
		t.abandon(ErrClosed)
		return
	}
	t.taskID = s.nextID.Add(2) - 1
	t.signal = s.signal

	s.mu.Lock()
	s.tasks[t.taskID] = t
	s.mu.Unlock()

	if err := t.begin(s); err != nil {
		s.forget(t.taskID)
		t.abandon(err)
	}
}

func (s *Syncifier) forget(id uint32) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

// retire forgets a task whose request is already in flight. Its responder
// may still signal the id.
func (s *Syncifier) retire(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retireLocked(id)
}

func (s *Syncifier) retireLocked(id uint32) {
	delete(s.tasks, id)
	if _, ok := s.retired[id]; ok {
		return
	}
	s.retired[id] = struct{}{}
	s.retiredIDs = append(s.retiredIDs, id)
	for len(s.retiredIDs) > maxRetired {
		delete(s.retired, s.retiredIDs[0])
		s.retiredIDs = s.retiredIDs[1:]
	}
}

// lookup returns the pending task for id. retired reports whether id
// belongs to a task given up on; its entry is consumed.
func (s *Syncifier) lookup(id uint32) (t *Task, retired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t = s.tasks[id]; t != nil {
		return t, false
	}
	if _, ok := s.retired[id]; ok {
		delete(s.retired, id)
		s.retiredIDs = slices.DeleteFunc(s.retiredIDs, func(x uint32) bool { return x == id })
		return nil, true
	}
	return nil, false
}

// syncifyTask blocks until t is complete. It returns an error only when the
// wait itself fails; the task's outcome is read with Result.
func (s *Syncifier) syncifyTask(t *Task) error {
	timeout := s.cfg.waitTimeout()
	for {
		if t.isDone() {
			return nil
		}
		if err := s.pollTasks(); err != nil {
			return err
		}
		if t.isDone() {
			return nil
		}
		if t.ep.closed() {
			s.retire(t.taskID)
			t.abandon(ErrEndpointClosed)
			return nil
		}
		if s.isClosed() {
			return ErrClosed
		}
		if s.signal.wait(timeout, t.done) == waitTimedOut && s.Interrupted() {
			s.log.Debug().Uint32("task_id", t.taskID).Msg("interrupted")
			if err := s.handleInterrupt(); err != nil {
				return err
			}
		}
	}
}

// pollTasks consumes every announced slot and advances the tasks found.
// A late signal for a retired task is dropped. Any other id with no pending
// task is a protocol error; the sweep still finishes before it is reported.
func (s *Syncifier) pollTasks() error {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	var errs []error
	for _, id := range s.signal.take() {
		t, retired := s.lookup(id)
		if retired {
			s.log.Debug().Uint32("task_id", id).Msg("signal for retired task dropped")
			continue
		}
		if t == nil {
			s.log.Error().Uint32("task_id", id).Msg("signal for unknown task")
			errs = append(errs, fmt.Errorf("%w: %d", ErrUnknownTask, id))
			continue
		}
		if t.advance(s) {
			s.forget(id)
		}
	}
	return errors.Join(errs...)
}

// reap abandons tasks whose endpoint is gone and sweeps the signal buffer.
func (s *Syncifier) reap() {
	defer close(s.stopped)
	tick := time.NewTicker(s.cfg.reapInterval())
	defer tick.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-tick.C:
		}
		s.pollTasks()

		var gone []*Task
		s.mu.Lock()
		for id, t := range s.tasks {
			if t.ep.closed() {
				s.retireLocked(id)
				gone = append(gone, t)
			}
		}
		s.mu.Unlock()
		for _, t := range gone {
			s.log.Warn().Uint32("task_id", t.taskID).Msg("endpoint closed with task pending")
			t.abandon(ErrEndpointClosed)
		}
	}
}

// Close stops the reaper and fails every pending task with ErrClosed.
func (s *Syncifier) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.stopped

		s.mu.Lock()
		var tasks []*Task
		for id, t := range s.tasks {
			s.retireLocked(id)
			tasks = append(tasks, t)
		}
		s.mu.Unlock()
		for _, t := range tasks {
			t.abandon(ErrClosed)
		}
	})
	return nil
}
