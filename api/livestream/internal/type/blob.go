// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_type

import (
	"sync"

	"github.com/google/uuid"
)

// Blob is a finalized binary payload tagged with a MIME type.
type Blob struct {
	Data []byte
	Type string
}

func NewBlob(chunks [][]byte, mimeType string) *Blob {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}
	return &Blob{Data: data, Type: mimeType}
}

func (b *Blob) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}

// BlobRegistry hands out object URLs for blobs and revokes each URL at most
// once.
type BlobRegistry struct {
	mu    sync.Mutex
	blobs map[string]*Blob
}

func NewBlobRegistry() *BlobRegistry {
	return &BlobRegistry{blobs: make(map[string]*Blob)}
}

func (r *BlobRegistry) CreateObjectURL(blob *Blob) string {
	url := "blob:" + uuid.NewString()
	r.mu.Lock()
	r.blobs[url] = blob
	r.mu.Unlock()
	return url
}

func (r *BlobRegistry) Resolve(url string) (*Blob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blobs[url]
	return b, ok
}

// RevokeObjectURL reports whether the URL was live.
func (r *BlobRegistry) RevokeObjectURL(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blobs[url]; !ok {
		return false
	}
	delete(r.blobs, url)
	return true
}

func (r *BlobRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blobs)
}
