// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by Task.Result before either scheduling path
	// has completed.
	ErrNotReady = errors.New("synclink: task result not ready")

	// ErrAlreadyAsync is returned when a task scheduled asynchronously is
	// scheduled synchronously.
	ErrAlreadyAsync = errors.New("synclink: task already asynchronously scheduled")

	// ErrAlreadySync is returned when a task scheduled synchronously is
	// scheduled asynchronously.
	ErrAlreadySync = errors.New("synclink: task already synchronously scheduled")

	// ErrReleased is returned by any operation on a released or destroyed
	// reference. Nothing is sent over the channel.
	ErrReleased = errors.New("synclink: reference has been released and is not usable")

	// ErrUnaddressable reports a path or store key that does not resolve
	// on the responding side.
	ErrUnaddressable = errors.New("synclink: unaddressable path")

	// ErrUnknownTask reports a wake-up for a task id that is not pending.
	ErrUnknownTask = errors.New("synclink: unknown task id")

	// ErrInterrupted is returned by the default interrupt handler.
	ErrInterrupted = errors.New("synclink: interrupted")

	// ErrEndpointClosed is returned to tasks whose endpoint was torn down
	// before a reply arrived.
	ErrEndpointClosed = errors.New("synclink: endpoint closed")

	// ErrClosed is returned when posting to a closed port.
	ErrClosed = errors.New("synclink: port closed")

	// ErrSyncTransfer reports a synchronous reply that carries transferables.
	// Synchronous replies are written into shared bytes and cannot move
	// ownership of live objects.
	ErrSyncTransfer = errors.New("synclink: transferables cannot cross a synchronous reply")

	// ErrUnknownHandler reports a HANDLER wire value whose name is not
	// registered on the receiving side.
	ErrUnknownHandler = errors.New("synclink: unknown transfer handler")

	// ErrBufferTooSmall reports a resize negotiation that produced a buffer
	// smaller than the announced reply.
	ErrBufferTooSmall = errors.New("synclink: data buffer too small")
)

// RemoteError is an error raised by a remote operation and reconstructed on
// the calling side.
type RemoteError struct {
	Name    string
	Message string
	Stack   string
}

func (e *RemoteError) Error() string {
	if e.Name == "" || e.Name == errorName {
		return e.Message
	}
	return e.Name + ": " + e.Message
}

// ThrownValue carries a non-error value raised by a remote operation, such as
// the argument of a panic.
type ThrownValue struct {
	Value any
}

func (e *ThrownValue) Error() string {
	return fmt.Sprintf("synclink: remote raised %v", e.Value)
}

// errorName is the name given to remote errors that do not name themselves.
const errorName = "Error"

// namedError is implemented by errors that carry a name across the wire.
type namedError interface {
	error
	Name() string
}

func unaddressable(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrUnaddressable}, args...)...)
}

// errorNames gives sentinel errors a stable name on the wire so that
// errors.Is keeps working on the calling side.
var errorNames = []struct {
	err  error
	name string
}{
	{ErrUnaddressable, "UnaddressableError"},
	{ErrReleased, "ReleasedError"},
	{ErrSyncTransfer, "SyncTransferError"},
	{ErrUnknownHandler, "UnknownHandlerError"},
	{ErrEndpointClosed, "EndpointClosedError"},
}

func errorNameOf(err error) string {
	var ne namedError
	if errors.As(err, &ne) {
		return ne.Name()
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Name != "" {
		return re.Name
	}
	for _, e := range errorNames {
		if errors.Is(err, e.err) {
			return e.name
		}
	}
	return errorName
}

// Is reports whether target is the sentinel this remote error was raised
// from.
func (e *RemoteError) Is(target error) bool {
	for _, n := range errorNames {
		if n.err == target {
			return e.Name == n.name
		}
	}
	return false
}

// panicError is an error recovered from a panicking remote operation.
type panicError struct {
	err   error
	stack string
}

func (e *panicError) Error() string { return e.err.Error() }

func (e *panicError) Unwrap() error { return e.err }

func (e *panicError) Stack() string { return e.stack }
