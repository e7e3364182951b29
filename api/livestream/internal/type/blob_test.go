// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlob_ConcatenatesChunksInOrder(t *testing.T) {
	b := NewBlob([][]byte{[]byte("ab"), nil, []byte("cd")}, "video/mp4")
	assert.Equal(t, []byte("abcd"), b.Data)
	assert.Equal(t, "video/mp4", b.Type)
	assert.Equal(t, 4, b.Size())
}

func TestBlobRegistry_RevokeIsExactlyOnce(t *testing.T) {
	r := NewBlobRegistry()
	blob := NewBlob([][]byte{{1, 2, 3}}, "audio/ogg")

	url := r.CreateObjectURL(blob)
	require.True(t, strings.HasPrefix(url, "blob:"))

	got, ok := r.Resolve(url)
	require.True(t, ok)
	assert.Same(t, blob, got)

	assert.True(t, r.RevokeObjectURL(url))
	assert.False(t, r.RevokeObjectURL(url))
	_, ok = r.Resolve(url)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestBlobRegistry_UniqueURLs(t *testing.T) {
	r := NewBlobRegistry()
	b := NewBlob(nil, "x")
	assert.NotEqual(t, r.CreateObjectURL(b), r.CreateObjectURL(b))
	assert.Equal(t, 2, r.Len())
}
