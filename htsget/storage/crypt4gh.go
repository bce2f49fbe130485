// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"io"

	"github.com/biogo/htsget/htsget"
	"github.com/biogo/htsget/htsget/crypt4gh"
)

// Crypt4GH wraps a Backend so that Get transparently decrypts a
// Crypt4GH-wrapped object back to its plaintext bytes. It exists so
// the format search engines, which parse a file's own header and
// index-referenced block offsets, can run unmodified against a
// Crypt4GH-wrapped data key: they see the same plaintext layout the
// index was built against. RangeURL and Head are left untouched,
// since the dispatcher issues the final response against the real
// ciphertext object via crypt4gh.Rewrite, not through this wrapper.
type Crypt4GH struct {
	Backend Backend
	Keys    crypt4gh.Keys
}

// NewCrypt4GH returns a Backend presenting the plaintext view of
// Crypt4GH-wrapped objects served by backend, decrypted with keys.
func NewCrypt4GH(backend Backend, keys crypt4gh.Keys) *Crypt4GH {
	return &Crypt4GH{Backend: backend, Keys: keys}
}

// Get fetches the whole ciphertext object, parses and discards its
// Crypt4GH header, and returns a reader over the plaintext bytes in
// range r.
func (c *Crypt4GH) Get(ctx context.Context, key string, r ByteRange) (io.ReadCloser, error) {
	raw, err := c.Backend.Get(ctx, key, ByteRange{Unbounded: true})
	if err != nil {
		return nil, err
	}

	info, err := crypt4gh.ReadHeaderInfo(raw)
	if err != nil {
		raw.Close()
		return nil, err
	}
	packets, err := crypt4gh.ReadRawPackets(raw, info.PacketsCount)
	if err != nil {
		raw.Close()
		return nil, err
	}
	sessionKeys, err := crypt4gh.DecodeSessionKeys(c.Keys.SenderPrivateKey, packets)
	if err != nil {
		raw.Close()
		return nil, err
	}

	var body io.Reader = crypt4gh.NewPlaintextReader(raw, sessionKeys)
	if r.Start > 0 {
		if _, err := io.CopyN(io.Discard, body, int64(r.Start)); err != nil {
			raw.Close()
			return nil, htsget.IOErrorf(err, "seeking to plaintext offset %d in %q", r.Start, key)
		}
	}
	if !r.Unbounded {
		body = io.LimitReader(body, int64(r.End-r.Start))
	}
	return readCloser{Reader: body, Closer: raw}, nil
}

// Head returns the ciphertext object's size, unchanged: callers that
// need the plaintext length use crypt4gh.PlaintextLength instead.
func (c *Crypt4GH) Head(ctx context.Context, key string) (int64, error) {
	return c.Backend.Head(ctx, key)
}

// RangeURL delegates to the wrapped Backend, over the ciphertext
// object: this wrapper's decryption is for the engines' internal
// reads only, never for the URLs served to clients.
func (c *Crypt4GH) RangeURL(ctx context.Context, key string, r ByteRange, extra htsget.Headers) (string, htsget.Headers, error) {
	return c.Backend.RangeURL(ctx, key, r, extra)
}

type readCloser struct {
	io.Reader
	io.Closer
}
