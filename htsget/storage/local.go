// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"

	"github.com/biogo/htsget/htsget"
)

// Local is a Backend rooted at a directory on the local filesystem.
// Reads are served via golang.org/x/exp/mmap, following the
// memory-mapped local-file access pattern used for index files by
// large-object stores; RangeURL emits file:// URLs suitable for a
// local development front end, since Local never signs URLs for a
// remote client.
type Local struct {
	Root string
	Log  *logrus.Entry
}

// NewLocal returns a Local backend rooted at root.
func NewLocal(root string, log *logrus.Entry) *Local {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Local{Root: root, Log: log}
}

func (l *Local) path(key string) string {
	return filepath.Join(l.Root, filepath.FromSlash(key))
}

// Get implements Backend.
func (l *Local) Get(ctx context.Context, key string, r ByteRange) (io.ReadCloser, error) {
	path := l.path(key)
	ra, err := mmap.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, htsget.NotFoundf("key %q not found", key)
		}
		return nil, htsget.IOErrorf(err, "opening %q", key)
	}

	size := int64(ra.Len())
	start := int64(r.Start)
	end := size
	if !r.Unbounded {
		end = int64(r.End)
	}
	if start < 0 || start > size || end > size || end < start {
		ra.Close()
		return nil, htsget.InvalidRangef("range [%d,%d) outside object of size %d", start, end, size)
	}

	l.Log.WithFields(logrus.Fields{"key": key, "start": start, "end": end}).Debug("local storage: serving range")
	return &mmapRangeReader{ra: ra, off: start, end: end}, nil
}

// RangeURL implements Backend.
func (l *Local) RangeURL(ctx context.Context, key string, r ByteRange, extra htsget.Headers) (string, htsget.Headers, error) {
	path := l.path(key)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil, htsget.NotFoundf("key %q not found", key)
		}
		return "", nil, htsget.IOErrorf(err, "stat %q", key)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	headers := htsget.Headers{}
	for k, v := range extra {
		headers[k] = v
	}
	if !r.Unbounded {
		headers["Range"] = fmt.Sprintf("bytes=%d-%d", r.Start, r.End-1)
	} else {
		headers["Range"] = fmt.Sprintf("bytes=%d-", r.Start)
	}
	return u.String(), headers, nil
}

// Head implements Backend.
func (l *Local) Head(ctx context.Context, key string) (int64, error) {
	fi, err := os.Stat(l.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, htsget.NotFoundf("key %q not found", key)
		}
		return 0, htsget.IOErrorf(err, "stat %q", key)
	}
	return fi.Size(), nil
}

// mmapRangeReader adapts a mmap.ReaderAt plus a [off,end) window to
// io.ReadCloser.
type mmapRangeReader struct {
	ra       *mmap.ReaderAt
	off, end int64
}

func (r *mmapRangeReader) Read(p []byte) (int, error) {
	if r.off >= r.end {
		return 0, io.EOF
	}
	if want := r.end - r.off; int64(len(p)) > want {
		p = p[:want]
	}
	n, err := r.ra.ReadAt(p, r.off)
	r.off += int64(n)
	return n, err
}

func (r *mmapRangeReader) Close() error { return r.ra.Close() }
