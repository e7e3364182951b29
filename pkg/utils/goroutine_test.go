package utils

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kairoscomputer/pkg/commons"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_LogsPanicThroughLogger(t *testing.T) {
	dir := t.TempDir()
	logger, err := commons.NewApplicationLogger(commons.Name("worker"), commons.Path(dir), commons.Console(false))
	require.NoError(t, err)

	Go(context.Background(), logger, func() {
		panic("listener exploded")
	})

	require.Eventually(t, func() bool {
		_ = logger.Sync()
		data, err := os.ReadFile(filepath.Join(dir, "worker.log"))
		return err == nil && strings.Contains(string(data), "recovered goroutine panic")
	}, 2*time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(filepath.Join(dir, "worker.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "listener exploded")
	assert.Contains(t, string(data), `"stack"`)
}

func TestGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go(context.Background(), commons.NewNopLogger(), func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("function never ran")
	}
}

func TestRecover(t *testing.T) {
	err := Recover(func() error { panic("boom") })
	assert.ErrorContains(t, err, "boom")

	want := errors.New("plain")
	assert.Equal(t, want, Recover(func() error { return want }))
	assert.NoError(t, Recover(func() error { return nil }))
}
