// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Option configures NewLink and NewSyncifier.
type Option func(*options)

type options struct {
	cfg       Config
	log       zerolog.Logger
	syncifier *Syncifier
}

func buildOptions(opts []Option) (options, error) {
	o := options{cfg: DefaultConfig(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return options{}, err
	}
	return o, nil
}

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithSyncifier injects a Syncifier shared with other links. A link
// created without one owns a private Syncifier and closes it on Close.
func WithSyncifier(s *Syncifier) Option {
	return func(o *options) { o.syncifier = s }
}

// Link is the per-process context of remote object access: it owns the
// transfer handler registry, the endpoints created over channels, and the
// Syncifier used by synchronous tasks.
type Link struct {
	cfg       Config
	log       zerolog.Logger
	handlers  *Handlers
	syncifier *Syncifier
	ownsSync  bool

	mu        sync.Mutex
	endpoints map[Channel]*Endpoint
	closed    bool
}

// NewLink returns a Link with the built-in "proxy" and "throw" handlers
// registered, in that order.
func NewLink(opts ...Option) (*Link, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	l := &Link{
		cfg:       o.cfg,
		log:       o.log,
		handlers:  NewHandlers(),
		syncifier: o.syncifier,
		endpoints: make(map[Channel]*Endpoint),
	}
	if l.syncifier == nil {
		l.syncifier = newSyncifier(o)
		l.ownsSync = true
	}
	l.handlers.Register(ProxyHandlerName, proxyHandler{link: l})
	l.handlers.Register(ThrowHandlerName, throwHandler{})
	return l, nil
}

// Handlers returns the transfer handler registry.
func (l *Link) Handlers() *Handlers { return l.handlers }

// Syncifier returns the coordinator used by synchronous tasks.
func (l *Link) Syncifier() *Syncifier { return l.syncifier }

// Config returns the link's tunables.
func (l *Link) Config() Config { return l.cfg }

// Endpoint returns the endpoint for ch, creating it on first use.
func (l *Link) Endpoint(ch Channel) *Endpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ep, ok := l.endpoints[ch]; ok {
		return ep
	}
	ep := newEndpoint(l, ch)
	l.endpoints[ch] = ep
	if d, ok := ch.(doner); ok {
		go ep.watch(d.Done())
	}
	l.log.Debug().Str("endpoint", ep.id).Msg("endpoint created")
	return ep
}

// Expose serves obj as the default object of ch's endpoint.
func (l *Link) Expose(obj any, ch Channel) *Endpoint {
	ep := l.Endpoint(ch)
	ep.Expose(obj)
	return ep
}

// Wrap returns a reference to the object exposed on the other side of ch.
func (l *Link) Wrap(ch Channel) *Ref {
	return l.Endpoint(ch).Wrap()
}

func (l *Link) forget(ep *Endpoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.endpoints[ep.ch] == ep {
		delete(l.endpoints, ep.ch)
	}
}

// Close tears down every endpoint and, when the link owns it, the
// Syncifier.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	eps := make([]*Endpoint, 0, len(l.endpoints))
	for _, ep := range l.endpoints {
		eps = append(eps, ep)
	}
	l.mu.Unlock()

	var errs []error
	for _, ep := range eps {
		errs = append(errs, ep.Close())
	}
	if l.ownsSync {
		l.syncifier.Close()
	}
	return errors.Join(errs...)
}
