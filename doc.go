// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package synclink provides remote object access over message channels,
// with both asynchronous and blocking synchronous invocation.
//
// One side exposes a Go value on a channel; the other side wraps the
// channel into a [Ref] and operates on the value by property path.
//
// # Architecture
//
//   - Transport: [Channel] is any FIFO message channel. [NewPortPair] creates an in-process pair backed by lock-free SPSC queues from [code.hybscloud.com/lfq].
//   - Wire: values cross as RAW plain data, as HANDLER payloads produced by registered [TransferHandler]s, or as ID references into the sender's object store.
//   - Tasks: every operation on a [Ref] returns an unscheduled [Task]. A task commits to async or sync mode exactly once; its outcome is a memoized [code.hybscloud.com/kont.Either].
//   - Synchronous bridge: [Syncifier] blocks the calling goroutine on a shared [SignalBuffer] while the responder writes a CBOR-encoded reply into a requester-owned data buffer, negotiating a larger buffer when the reply does not fit.
//   - Errors: failures raised by the remote operation come back as [*RemoteError] or [*ThrownValue]. Misuse fails fast with sentinel errors before any traffic.
//
// # API Topologies
//
//   - Setup: [NewLink], [Link.Expose], [Link.Wrap], [Link.Endpoint]. Tunables come from [Config], [LoadConfig] and the [Option]s.
//   - Operations: [Ref.Get], [Ref.Set], [Ref.Apply], [Ref.Construct], [Ref.CreateEndpoint], [Ref.Destroy]. Paths extend locally with [Ref.Prop].
//   - Lifetime: [Ref.Release], [Ref.Fork], [Endpoint.Close], [Link.Close].
//   - Scheduling: [Task.ScheduleAsync], [Task.Await], [Task.ScheduleSync], [Task.Syncify], [Task.Result].
//   - Values: [Proxy] sends a value by reference over a fresh channel, [Transfer] attaches transferables.
//   - Interrupts: [Syncifier.Interrupt] and [Syncifier.SetInterruptHandler] unwind a blocked wait at its next timeout.
//
// # Example
//
//	a, b := synclink.NewPortPair()
//	server, _ := synclink.NewLink()
//	server.Expose(&Counter{}, a)
//
//	client, _ := synclink.NewLink()
//	ref := client.Wrap(b)
//	task, _ := ref.Apply([]any{"Add"}, 2)
//	v, err := task.Syncify()
package synclink
