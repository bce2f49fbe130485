// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"io"

	"github.com/biogo/htsget/htsget"
)

// Signer produces a time-limited URL for a GET of key restricted to
// r, echoing any extra headers the caller requested.
type Signer func(ctx context.Context, key string, r ByteRange, extra htsget.Headers) (url string, err error)

// Signing wraps a Backend, delegating Get and Head as-is but
// replacing RangeURL's URL construction with a caller-supplied
// Signer. This is the integration point a real S3-compatible or GCS
// object store plugs a presigned-URL implementation into.
type Signing struct {
	Backend Backend
	Sign    Signer
}

// NewSigning returns a Backend that signs URLs for the given
// Backend's objects via sign.
func NewSigning(backend Backend, sign Signer) *Signing {
	return &Signing{Backend: backend, Sign: sign}
}

// Get delegates to the wrapped Backend.
func (s *Signing) Get(ctx context.Context, key string, r ByteRange) (io.ReadCloser, error) {
	return s.Backend.Get(ctx, key, r)
}

// Head delegates to the wrapped Backend.
func (s *Signing) Head(ctx context.Context, key string) (int64, error) {
	return s.Backend.Head(ctx, key)
}

// RangeURL signs a URL via the configured Signer.
func (s *Signing) RangeURL(ctx context.Context, key string, r ByteRange, extra htsget.Headers) (string, htsget.Headers, error) {
	u, err := s.Sign(ctx, key, r, extra)
	if err != nil {
		return "", nil, htsget.IOErrorf(err, "signing url for %q", key)
	}
	headers := htsget.Headers{}
	for k, v := range extra {
		headers[k] = v
	}
	if !r.Unbounded {
		headers["Range"] = formatRange(r)
	}
	return u, headers, nil
}

func formatRange(r ByteRange) string {
	if r.Unbounded {
		return ""
	}
	return "bytes=" + itoa(r.Start) + "-" + itoa(r.End-1)
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
