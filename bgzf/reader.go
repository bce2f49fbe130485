// Copyright ©2012 The bíogo.bam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
)

// Header is the gzip header of the current BGZF block.
type Header gzip.Header

// BlockSize returns the total compressed size in bytes of the block
// that h describes, or -1 if h does not carry a BGZF "BC" extra
// subfield.
func (h Header) BlockSize() int {
	return expectedBlockSize(gzip.Header(h))
}

// expectedBlockSize returns the total compressed size in bytes of the
// BGZF block described by h, or -1 if h does not carry a BGZF "BC"
// extra subfield.
func expectedBlockSize(h gzip.Header) int {
	i := bytes.Index(h.Extra, bgzfExtraPrefix)
	if i < 0 || i+6 > len(h.Extra) {
		return -1
	}
	return (int(h.Extra[i+4]) | int(h.Extra[i+5])<<8) + 1
}

type countReader struct {
	r *bufio.Reader
	n int64
}

func (r *countReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += int64(n)
	return n, err
}

func (r *countReader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err == nil {
		r.n++
	}
	return b, err
}

// Reader reads a BGZF stream, transparently decompressing blocks and
// tracking virtual file offsets so that random access reads can be
// resumed from, or bounded by, a bgzf.Chunk.
type Reader struct {
	Header

	r  io.Reader
	cr *countReader
	gz *gzip.Reader

	// Blocked, when true, causes Read to stop at the end of the
	// current block instead of spanning into the next one, so that a
	// caller can avoid reading past a chunk's end virtual offset when
	// that offset falls mid-block.
	Blocked bool

	chunk  Chunk
	offset Offset

	rd int

	cache Cache

	err error
}

// SetCache sets the cache to be used by the Reader. The cache is
// retained for API compatibility with the concurrent reader this type
// was adapted from; this sequential implementation does not consult
// it, since every block is already read and discarded in one pass.
func (bg *Reader) SetCache(c Cache) { bg.cache = c }

// Tx represents an in-progress read transaction, used to determine
// the bgzf.Chunk spanned by a set of Read calls.
type Tx struct {
	r     *Reader
	begin Offset
}

// Begin marks the beginning of a read transaction at the Reader's
// current virtual offset.
func (bg *Reader) Begin() Tx {
	return Tx{r: bg, begin: bg.offset}
}

// End returns the Chunk spanning the transaction from its Begin call
// to the Reader's virtual offset at the time End is called.
func (t Tx) End() Chunk {
	return Chunk{Begin: t.begin, End: t.r.offset}
}

// NewReader returns a new Reader reading from r. rd is retained for
// API compatibility with callers that size a concurrent decompression
// pool; this implementation decompresses blocks sequentially.
func NewReader(r io.Reader, rd int) (*Reader, error) {
	cr := &countReader{r: bufio.NewReader(r)}
	gz, err := gzip.NewReader(cr)
	if err != nil {
		return nil, err
	}
	gz.Multistream(false)
	h := Header(gz.Header)
	if h.BlockSize() < 0 {
		return nil, ErrNoBlockSize
	}
	return &Reader{
		Header: h,
		r:      r,
		cr:     cr,
		gz:     gz,
		rd:     rd,
	}, nil
}

// Seek moves the Reader to the virtual file offset off. The
// underlying reader must implement io.ReadSeeker.
func (bg *Reader) Seek(off Offset) error {
	rs, ok := bg.r.(io.ReadSeeker)
	if !ok {
		return ErrNotASeeker
	}
	if _, err := rs.Seek(off.File, io.SeekStart); err != nil {
		bg.err = err
		return err
	}
	bg.cr = &countReader{r: bufio.NewReader(bg.r), n: off.File}
	if err := bg.gz.Reset(bg.cr); err != nil {
		bg.err = err
		return err
	}
	bg.gz.Multistream(false)
	bg.Header = Header(bg.gz.Header)
	bg.offset = Offset{File: off.File}
	bg.chunk = Chunk{Begin: bg.offset, End: bg.offset}
	bg.err = nil
	if off.Block > 0 {
		n, err := io.CopyN(io.Discard, bg.gz, int64(off.Block))
		bg.offset.Block = uint16(n)
		bg.chunk.End.Block = uint16(n)
		if err != nil {
			bg.err = err
			return err
		}
	}
	return nil
}

// Offset returns the virtual file offset of the next byte to be read.
func (bg *Reader) Offset() Offset { return bg.offset }

// LastChunk returns the bgzf.Chunk spanning the most recent contiguous
// run of reads since the Reader was created or last sought.
func (bg *Reader) LastChunk() Chunk { return bg.chunk }

// BlockLen returns an upper bound on the number of decompressed bytes
// remaining in the current block.
func (bg *Reader) BlockLen() int { return MaxBlockSize }

// Close closes the Reader, releasing held resources.
func (bg *Reader) Close() error {
	return bg.gz.Close()
}

// Read implements io.Reader. Read transparently advances across BGZF
// block boundaries, updating the Reader's virtual offset as it goes,
// unless Blocked is set, in which case Read returns after exhausting
// the current block.
func (bg *Reader) Read(p []byte) (int, error) {
	if bg.err != nil {
		return 0, bg.err
	}
	var n int
	for n < len(p) {
		nn, err := bg.gz.Read(p[n:])
		n += nn
		bg.offset.Block += uint16(nn)
		bg.chunk.End = bg.offset
		if err == nil {
			if bg.Blocked {
				break
			}
			continue
		}
		if err != io.EOF {
			bg.err = err
			return n, err
		}

		// End of the current block's gzip member. Advance the file
		// offset by however many compressed bytes have been
		// consumed and try to move on to the next block.
		bg.offset = Offset{File: bg.cr.n}
		bg.chunk.End = bg.offset
		if n == len(p) {
			break
		}
		if rerr := bg.gz.Reset(bg.cr); rerr != nil {
			if rerr == io.EOF {
				bg.err = io.EOF
			} else {
				bg.err = rerr
			}
			break
		}
		bg.gz.Multistream(false)
		bg.Header = Header(bg.gz.Header)
		bg.chunk.Begin = bg.offset
		if bg.Blocked {
			break
		}
	}
	if n > 0 && bg.err == io.EOF {
		return n, nil
	}
	return n, bg.err
}
