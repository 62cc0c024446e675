// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package synclink_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"code.hybscloud.com/synclink"
)

type point struct {
	X, Y int
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

var pointHandler = synclink.HandlerFuncs{
	CanHandleFunc: func(v any) bool {
		_, ok := v.(point)
		return ok
	},
	SerializeFunc: func(v any) (any, []any, error) {
		p := v.(point)
		return []any{p.X, p.Y}, nil, nil
	},
	DeserializeFunc: func(payload any) (any, error) {
		xs, ok := payload.([]any)
		if !ok || len(xs) != 2 {
			return nil, errors.New("malformed point")
		}
		x, err := toInt(xs[0])
		if err != nil {
			return nil, err
		}
		y, err := toInt(xs[1])
		if err != nil {
			return nil, err
		}
		return point{x, y}, nil
	},
}

func TestCustomHandler(t *testing.T) {
	skipRace(t)
	server, client := newLinks(t)
	server.Handlers().Register("point", pointHandler)
	client.Handlers().Register("point", pointHandler)
	require.Equal(t, []string{synclink.ProxyHandlerName, synclink.ThrowHandlerName, "point"}, client.Handlers().Names())

	a, b := synclink.NewPortPair()
	server.Expose(NewCounter("ada"), a)
	ref := client.Wrap(b)

	v, err := await(t)(ref.Apply([]any{"Echo"}, point{3, -4}))
	require.NoError(t, err)
	require.Equal(t, point{3, -4}, v)

	v, err = syncify(t)(ref.Apply([]any{"Echo"}, point{5, -6}))
	require.NoError(t, err)
	require.Equal(t, point{5, -6}, v)
}

func TestHandlerMissingOnReceiver(t *testing.T) {
	skipRace(t)
	server, client := newLinks(t)
	client.Handlers().Register("point", pointHandler)

	a, b := synclink.NewPortPair()
	server.Expose(NewCounter("ada"), a)
	ref := client.Wrap(b)

	_, err := await(t)(ref.Apply([]any{"Echo"}, point{1, 2}))
	require.ErrorIs(t, err, synclink.ErrUnknownHandler)
}

func TestRemoteErrorFormat(t *testing.T) {
	require.Equal(t, "boom", (&synclink.RemoteError{Name: "Error", Message: "boom"}).Error())
	require.Equal(t, "boom", (&synclink.RemoteError{Message: "boom"}).Error())
	require.Equal(t, "TypeError: boom", (&synclink.RemoteError{Name: "TypeError", Message: "boom"}).Error())

	released := &synclink.RemoteError{Name: "ReleasedError", Message: "x"}
	require.ErrorIs(t, released, synclink.ErrReleased)
	require.NotErrorIs(t, released, synclink.ErrUnaddressable)

	tv := &synclink.ThrownValue{Value: 42}
	require.Contains(t, tv.Error(), "42")
}
