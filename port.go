// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"slices"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// DefaultPortCapacity is the bounded capacity of each port direction.
const DefaultPortCapacity = 64

// Event is a message delivered to a Listener, together with the
// transferables the sender attached to it.
type Event struct {
	Data      *Message
	Transfers []any
}

// Listener receives events from a Channel. Listeners are compared by
// identity on removal, so implementations should be pointers.
type Listener interface {
	HandleEvent(ev Event)
}

// funcListener adapts a function to Listener with pointer identity.
type funcListener struct {
	fn func(Event)
}

func (l *funcListener) HandleEvent(ev Event) { l.fn(ev) }

// NewListener returns a Listener calling fn. Each call returns a distinct
// listener that can be passed to RemoveListener.
func NewListener(fn func(Event)) Listener {
	return &funcListener{fn: fn}
}

// Channel is one side of a bidirectional, ordered, message-boundary
// preserving channel.
type Channel interface {
	PostMessage(msg *Message, transfers []any) error
	AddListener(l Listener)
	RemoveListener(l Listener)
}

// closer is implemented by channels that can be torn down.
type closer interface {
	Close() error
}

// doner is implemented by channels that report their own closure.
type doner interface {
	Done() <-chan struct{}
}

// envelope is the queued form of a posted message.
type envelope struct {
	msg       *Message
	transfers []any
}

// Port is one side of an in-process port pair.
//
// Each direction is a bounded single-producer single-consumer queue from
// lfq. Producers on a port are serialized by a mutex; a single pump
// goroutine per port consumes and dispatches events to listeners in FIFO
// order. The pump starts with the first listener, so messages posted
// before that are queued, not dropped.
type Port struct {
	pair   *portPair
	peer   *Port
	serial Serial
	sendQ  *lfq.SPSC[envelope]
	recvQ  *lfq.SPSC[envelope]
	wake   chan struct{}

	sendMu sync.Mutex

	mu        sync.Mutex
	listeners []Listener
	started   bool
}

// portPair holds both ports, their queues, and the shared close state in a
// single allocation.
type portPair struct {
	a, b      Port
	closed    atomix.Uint32
	done      chan struct{}
	closeOnce sync.Once
	dataAB    lfq.SPSC[envelope]
	dataBA    lfq.SPSC[envelope]
}

// NewPortPair creates a connected pair of ports with DefaultPortCapacity.
func NewPortPair() (*Port, *Port) {
	return NewPortPairCapacity(DefaultPortCapacity)
}

// NewPortPairCapacity creates a connected pair of ports whose queues hold
// capacity messages per direction.
func NewPortPairCapacity(capacity int) (*Port, *Port) {
	if capacity <= 0 {
		capacity = DefaultPortCapacity
	}
	s := nextSerial()

	pair := &portPair{done: make(chan struct{})}
	pair.dataAB.Init(capacity)
	pair.dataBA.Init(capacity)

	pair.a = Port{
		pair:   pair,
		peer:   &pair.b,
		serial: s,
		sendQ:  &pair.dataAB,
		recvQ:  &pair.dataBA,
		wake:   make(chan struct{}, 1),
	}
	pair.b = Port{
		pair:   pair,
		peer:   &pair.a,
		serial: s,
		sendQ:  &pair.dataBA,
		recvQ:  &pair.dataAB,
		wake:   make(chan struct{}, 1),
	}
	return &pair.a, &pair.b
}

// Serial returns the serial number shared by both ports of the pair.
func (p *Port) Serial() Serial {
	return p.serial
}

// PostMessage queues msg for the peer port. It waits with adaptive
// backoff while the queue is full and fails with ErrClosed once the pair
// has been closed.
func (p *Port) PostMessage(msg *Message, transfers []any) error {
	if p.pair.closed.Load() != 0 {
		return ErrClosed
	}
	env := envelope{msg: msg, transfers: transfers}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	var bo iox.Backoff
	for {
		err := p.sendQ.Enqueue(&env)
		if err == nil {
			break
		}
		if !iox.IsWouldBlock(err) {
			return err
		}
		if p.pair.closed.Load() != 0 {
			return ErrClosed
		}
		bo.Wait()
	}
	select {
	case p.peer.wake <- struct{}{}:
	default:
	}
	return nil
}

// AddListener registers l and starts the pump on first use.
func (p *Port) AddListener(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
	if !p.started {
		p.started = true
		go p.pump()
	}
}

// RemoveListener unregisters l. Removing an unknown listener is a no-op.
func (p *Port) RemoveListener(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := slices.Index(p.listeners, l); i >= 0 {
		p.listeners = slices.Delete(p.listeners, i, i+1)
	}
}

// Close closes both ports of the pair. Messages already queued are still
// delivered to listeners; later posts fail with ErrClosed.
func (p *Port) Close() error {
	p.pair.closeOnce.Do(func() {
		p.pair.closed.Add(1)
		close(p.pair.done)
	})
	return nil
}

// Done is closed when the pair has been closed.
func (p *Port) Done() <-chan struct{} {
	return p.pair.done
}

func (p *Port) pump() {
	for {
		env, err := p.recvQ.Dequeue()
		if err != nil {
			select {
			case <-p.wake:
			case <-p.pair.done:
				p.drain()
				return
			}
			continue
		}
		p.dispatch(env)
	}
}

// drain dispatches what was queued before the pair closed.
func (p *Port) drain() {
	for {
		env, err := p.recvQ.Dequeue()
		if err != nil {
			return
		}
		p.dispatch(env)
	}
}

func (p *Port) dispatch(env envelope) {
	p.mu.Lock()
	ls := slices.Clone(p.listeners)
	p.mu.Unlock()
	ev := Event{Data: env.msg, Transfers: env.transfers}
	for _, l := range ls {
		l.HandleEvent(ev)
	}
}
