// Copyright ©2012 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bgzf implements the BGZF blocked gzip format.
//
// The BGZF format is described in the SAM specification
// (https://samtools.github.io/hts-specs/SAMv1.pdf) section 4.1. Each
// BGZF block is itself a complete, independently decompressible gzip
// member carrying a "BC" extra subfield that records the total size
// of the compressed block. This allows random access into a BGZF
// stream via a (compressed offset, uncompressed offset) virtual
// position pair, which is the coordinate system used by BAI, CSI and
// tabix indexes.
package bgzf

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// BlockSize is the maximum amount of uncompressed data held in a
	// single BGZF block.
	BlockSize = 0x0ff00
	// MaxBlockSize is the maximum size of a compressed BGZF block,
	// including the block header and trailer.
	MaxBlockSize = 0x10000
)

var (
	ErrClosed            = errors.New("bgzf: use of closed writer")
	ErrBlockOverflow     = errors.New("bgzf: block overflow")
	ErrNoBlockSize       = errors.New("bgzf: could not determine block size")
	ErrBlockSizeMismatch = errors.New("bgzf: block size mismatch")
	ErrNotASeeker        = errors.New("bgzf: not a seeker")
)

// bgzfExtraPrefix is the "BC" extra subfield header: SI1, SI2, SLEN (LE).
var bgzfExtraPrefix = []byte{'B', 'C', 2, 0}

// MagicBlock is the empty BGZF block written to signal logical end of
// file. Every valid BGZF stream, and so every BAM, BCF and bgzipped
// VCF file, ends with this sequence.
var MagicBlock = [28]byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff,
	0x06, 0x00, 0x42, 0x43, 0x02, 0x00, 0x1b, 0x00, 0x03, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// Offset is a BGZF virtual file offset, a combination of the
// compressed byte offset of a block's first byte in the underlying
// file and the uncompressed byte offset within that block's
// decompressed data.
type Offset struct {
	File  int64
	Block uint16
}

// Chunk is a region of a BGZF stream addressed by virtual offsets.
type Chunk struct {
	Begin Offset
	End   Offset
}

func (c Chunk) String() string {
	return fmt.Sprintf("[%d/%d-%d/%d]", c.Begin.File, c.Begin.Block, c.End.File, c.End.Block)
}

// HasEOF reports whether r ends in a well-formed BGZF EOF marker
// block. r must support determining its own length, either by
// implementing Size/Stat or by being an io.Seeker that also
// implements Len (as do bytes.Reader and strings.Reader).
func HasEOF(r io.ReaderAt) (bool, error) {
	type sizer interface {
		Size() int64
	}
	type stater interface {
		Stat() (os.FileInfo, error)
	}
	type lenSeeker interface {
		io.Seeker
		Len() int
	}
	var size int64
	switch r := r.(type) {
	case sizer:
		size = r.Size()
	case stater:
		fi, err := r.Stat()
		if err != nil {
			return false, err
		}
		size = fi.Size()
	case lenSeeker:
		cur, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return false, err
		}
		size = cur + int64(r.Len())
	default:
		return false, ErrNotASeeker
	}
	if size < int64(len(MagicBlock)) {
		return false, nil
	}
	b := make([]byte, len(MagicBlock))
	_, err := r.ReadAt(b, size-int64(len(MagicBlock)))
	if err != nil {
		return false, err
	}
	for i := range b {
		if b[i] != MagicBlock[i] {
			return false, nil
		}
	}
	return true, nil
}

// vOffset folds an Offset into a single comparable value.
func vOffset(o Offset) int64 {
	return o.File<<16 | int64(o.Block)
}

// Compare returns -1, 0 or 1 depending on whether a is less than,
// equal to or greater than b as a virtual file offset.
func Compare(a, b Offset) int {
	va, vb := vOffset(a), vOffset(b)
	switch {
	case va < vb:
		return -1
	case va > vb:
		return 1
	default:
		return 0
	}
}
