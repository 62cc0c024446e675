// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"code.hybscloud.com/synclink"
)

// Counter is the object the tests expose.
type Counter struct {
	Name  string
	N     int
	Items []string
	Meta  map[string]any

	release chan struct{}
}

func NewCounter(name string) *Counter {
	return &Counter{Name: name, Meta: map[string]any{}, release: make(chan struct{})}
}

func (c *Counter) Add(n int) int {
	c.N += n
	return c.N
}

func (c *Counter) Fail(msg string) error { return errors.New(msg) }

func (c *Counter) Panic(v string) { panic(v) }

func (c *Counter) Echo(v any) any { return v }

func (c *Counter) Blob(n int) string { return strings.Repeat("x", n) }

// Spawn constructs a sibling counter.
func (c *Counter) Spawn(name string) *Counter { return NewCounter(name) }

// Rename renames another counter.
func (c *Counter) Rename(other *Counter, name string) { other.Name = name }

// Visit reads the name of a counter passed by reference.
func (c *Counter) Visit(r *synclink.Ref) (any, error) {
	t, err := r.Get("Name")
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return t.Await(ctx)
}

// Block waits until the test releases the counter.
func (c *Counter) Block() string {
	<-c.release
	return "unblocked"
}

// Sleep replies with n after d milliseconds.
func (c *Counter) Sleep(n int, d int) int {
	time.Sleep(time.Duration(d) * time.Millisecond)
	return n
}

// countingChannel counts posted messages.
type countingChannel struct {
	synclink.Channel
	posts atomic.Int32
}

func (c *countingChannel) PostMessage(msg *synclink.Message, transfers []any) error {
	c.posts.Add(1)
	return c.Channel.PostMessage(msg, transfers)
}

// serve exposes obj on a new port pair and returns a client reference to
// it. Both links are closed at cleanup.
func serve(t testing.TB, obj any, opts ...synclink.Option) *synclink.Ref {
	t.Helper()
	server, client := newLinks(t, opts...)
	a, b := synclink.NewPortPair()
	server.Expose(obj, a)
	return client.Wrap(b)
}

func newLinks(t testing.TB, opts ...synclink.Option) (server, client *synclink.Link) {
	t.Helper()
	server, err := synclink.NewLink(opts...)
	require.NoError(t, err)
	client, err = synclink.NewLink(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return server, client
}

// await returns a function that awaits the task built by a Ref operation,
// so the operation's results can be passed straight through.
func await(t testing.TB) func(*synclink.Task, error) (any, error) {
	return func(task *synclink.Task, err error) (any, error) {
		t.Helper()
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return task.Await(ctx)
	}
}

// syncify is await for the blocking path.
func syncify(t testing.TB) func(*synclink.Task, error) (any, error) {
	return func(task *synclink.Task, err error) (any, error) {
		t.Helper()
		require.NoError(t, err)
		return task.Syncify()
	}
}
