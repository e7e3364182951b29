// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitter_DeliversInSubscriptionOrder(t *testing.T) {
	var e Emitter[int]
	var got []string
	e.On(func(v int) { got = append(got, "a") })
	e.On(func(v int) { got = append(got, "b") })

	e.Emit(1)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestEmitter_OffRemovesOnlyThatHandler(t *testing.T) {
	var e Emitter[string]
	var a, b int
	offA := e.On(func(string) { a++ })
	e.On(func(string) { b++ })

	e.Emit("x")
	offA()
	offA()
	e.Emit("y")

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, e.Len())
}

func TestEmitter_HandlerMayUnsubscribeDuringEmit(t *testing.T) {
	var e Emitter[int]
	calls := 0
	var off func()
	off = e.On(func(int) {
		calls++
		off()
	})
	e.On(func(int) { calls++ })

	e.Emit(1)
	e.Emit(2)
	assert.Equal(t, 3, calls)
}

func TestEmitter_ConcurrentSubscribeAndEmit(t *testing.T) {
	var e Emitter[int]
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			off := e.On(func(int) {})
			off()
		}()
		go func(v int) {
			defer wg.Done()
			e.Emit(v)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, e.Len())
}

func TestEmitter_Clear(t *testing.T) {
	var e Emitter[int]
	called := false
	e.On(func(int) { called = true })
	e.Clear()
	e.Emit(1)
	assert.False(t, called)
}
