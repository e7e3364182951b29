// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package utils

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/kairoscomputer/pkg/commons"
)

// Go runs fn on its own goroutine and logs any panic instead of letting it
// take the process down. fn is expected to observe ctx.
func Go(ctx context.Context, logger commons.Logger, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("recovered goroutine panic", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}

// Recover runs fn and converts a panic into an error.
func Recover(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
