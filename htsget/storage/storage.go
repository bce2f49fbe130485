// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storage defines the object-storage contract the resolver
// reads genomic data and indexes through, plus a local-filesystem
// reference implementation.
package storage

import (
	"context"
	"io"

	"github.com/biogo/htsget/htsget"
)

// ByteRange is an inclusive-start, exclusive-end byte range. The zero
// value is the empty range [0, 0); set Unbounded to request the whole
// object from Start onwards.
type ByteRange struct {
	Start, End uint64
	// Unbounded, when true, requests everything from Start to the
	// object's end; End is ignored.
	Unbounded bool
}

// Backend is the opaque object store every search engine reads
// through. Implementations must make Get honor the requested range
// inclusively, make RangeURL produce a URL whose GET by an
// unauthenticated client returns the same bytes Get would, and make
// Head agree with the length of an unranged Get.
//
// All methods take a context.Context: this is the resolver's only
// suspension point, per the concurrency model, and every
// implementation must respect ctx cancellation.
type Backend interface {
	// Get returns a ReadCloser over the bytes of key in the given
	// range. A missing key is an htsget.Error of Kind
	// htsget.NotFound, a range that falls outside the object is
	// htsget.InvalidRange, and other storage failures are
	// htsget.IoError.
	Get(ctx context.Context, key string, r ByteRange) (io.ReadCloser, error)

	// RangeURL returns a signed URL that fetches the given range of
	// key, plus any headers the caller must echo on that request.
	RangeURL(ctx context.Context, key string, r ByteRange, extra htsget.Headers) (url string, headers htsget.Headers, err error)

	// Head returns the size in bytes of key.
	Head(ctx context.Context, key string) (size int64, err error)
}
