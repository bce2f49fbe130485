// Copyright ©2012 The bíogo.bam Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bgzf

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
)

// Writer writes a BGZF stream, splitting data into blocks no larger
// than BlockSize before compressing each one as an independent gzip
// member carrying a "BC" extra subfield.
type Writer struct {
	w     io.Writer
	level int
	wc    int

	buf    bytes.Buffer
	closed bool
	err    error
}

// NewWriter returns a new Writer writing to w, compressing at the
// default compression level. wc is retained for API compatibility
// with callers that size a concurrent compression pool; this
// implementation compresses blocks sequentially.
func NewWriter(w io.Writer, wc int) *Writer {
	bw, _ := NewWriterLevel(w, gzip.DefaultCompression, wc)
	return bw
}

// NewWriterLevel returns a new Writer writing to w, compressing at
// the given level. Valid values for level are described in the
// compress/gzip documentation.
func NewWriterLevel(w io.Writer, level, wc int) (*Writer, error) {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &Writer{w: w, level: level, wc: wc}, nil
}

// Write writes p to the BGZF stream, flushing completed blocks of
// BlockSize bytes as they fill.
func (bw *Writer) Write(p []byte) (int, error) {
	if bw.closed {
		return 0, ErrClosed
	}
	if bw.err != nil {
		return 0, bw.err
	}
	var n int
	for len(p) > 0 {
		free := BlockSize - bw.buf.Len()
		chunk := p
		if len(chunk) > free {
			chunk = chunk[:free]
		}
		nn, _ := bw.buf.Write(chunk)
		n += nn
		p = p[nn:]
		if bw.buf.Len() >= BlockSize {
			if err := bw.flushBlock(); err != nil {
				bw.err = err
				return n, err
			}
		}
	}
	return n, nil
}

// Flush writes any buffered data as a BGZF block. Unlike Close, Flush
// does not write the terminating EOF marker.
func (bw *Writer) Flush() error {
	if bw.err != nil {
		return bw.err
	}
	if bw.buf.Len() == 0 {
		return nil
	}
	return bw.flushBlock()
}

// Wait is retained for API compatibility with a concurrent writer; it
// is a no-op since this Writer compresses synchronously.
func (bw *Writer) Wait() error { return bw.err }

func (bw *Writer) flushBlock() error {
	block, err := encodeBlock(bw.buf.Bytes(), bw.level)
	bw.buf.Reset()
	if err != nil {
		return err
	}
	_, err = bw.w.Write(block)
	return err
}

// encodeBlock compresses payload as a single, self-contained BGZF
// block and returns the bytes of the resulting gzip member, including
// its "BC" extra subfield recording the member's own total length.
func encodeBlock(payload []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	gz.Extra = []byte{'B', 'C', 2, 0, 0, 0}
	gz.OS = 0xff
	if _, err := gz.Write(payload); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	b := buf.Bytes()
	if len(b) > MaxBlockSize {
		return nil, ErrBlockOverflow
	}
	i := bytes.Index(b, bgzfExtraPrefix)
	if i < 0 || i+6 > len(b) {
		return nil, ErrNoBlockSize
	}
	binary.LittleEndian.PutUint16(b[i+4:i+6], uint16(len(b)-1))
	return b, nil
}

// Close flushes any buffered data and writes the BGZF EOF marker.
func (bw *Writer) Close() error {
	if bw.closed {
		return nil
	}
	bw.closed = true
	if err := bw.Flush(); err != nil {
		return err
	}
	_, err := bw.w.Write(MagicBlock[:])
	return err
}
