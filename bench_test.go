// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink_test

import (
	"context"
	"testing"

	"code.hybscloud.com/synclink"
)

// BenchmarkPortPost measures one message through a port pair.
func BenchmarkPortPost(b *testing.B) {
	skipRace(b)
	a, p := synclink.NewPortPair()
	defer a.Close()
	got := make(chan struct{}, 1)
	p.AddListener(synclink.NewListener(func(synclink.Event) { got <- struct{}{} }))
	msg := &synclink.Message{}
	b.ReportAllocs()
	for b.Loop() {
		a.PostMessage(msg, nil)
		<-got
	}
}

// BenchmarkApplyAsync measures an asynchronous APPLY round-trip.
func BenchmarkApplyAsync(b *testing.B) {
	skipRace(b)
	ref := serve(b, NewCounter("bench"))
	ctx := context.Background()
	b.ReportAllocs()
	for b.Loop() {
		task, _ := ref.Apply([]any{"Add"}, 1)
		task.Await(ctx)
	}
}

// BenchmarkApplySync measures a synchronous APPLY round-trip.
func BenchmarkApplySync(b *testing.B) {
	skipRace(b)
	ref := serve(b, NewCounter("bench"))
	b.ReportAllocs()
	for b.Loop() {
		task, _ := ref.Apply([]any{"Add"}, 1)
		task.Syncify()
	}
}

// BenchmarkGetSyncResize measures a synchronous GET whose reply needs a
// larger data buffer.
func BenchmarkGetSyncResize(b *testing.B) {
	skipRace(b)
	c := NewCounter("bench")
	ref := serve(b, c)
	task, _ := ref.Set([]any{"Name"}, string(make([]byte, 4096)))
	task.Syncify()
	b.ReportAllocs()
	for b.Loop() {
		task, _ := ref.Get("Name")
		task.Syncify()
	}
}
