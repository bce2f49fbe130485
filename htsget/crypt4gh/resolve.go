// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crypt4gh

import (
	"io"

	"github.com/biogo/htsget/htsget"
)

// Result is the outcome of rewriting a Crypt4GH header for a set of
// plaintext positions: the new header bytes to serve as a Header-class
// data: URL, and the positions translated into ciphertext byte ranges
// over the original .c4gh object.
type Result struct {
	Header    []byte
	Positions []htsget.BytesPosition
}

// Rewrite implements the full spec §4.6 pipeline: it reads the
// original Crypt4GH header from headerReader, builds a fresh edit
// list for plaintextPositions plus a synthetic tail position of
// tailLen bytes (the format's own EOF marker, which lives inside the
// plaintext stream under Crypt4GH rather than being appended
// separately), and returns the rewritten header plus every position
// translated into a ciphertext range.
//
// headerReader must be positioned at the start of the Crypt4GH
// container. cipherSize is the total size in bytes of the .c4gh
// object, used to recover the plaintext stream length.
func Rewrite(headerReader io.Reader, cipherSize int64, keys Keys, plaintextPositions []htsget.BytesPosition, tailLen uint64) (*Result, error) {
	info, err := ReadHeaderInfo(headerReader)
	if err != nil {
		return nil, err
	}
	originalPackets, err := ReadRawPackets(headerReader, info.PacketsCount)
	if err != nil {
		return nil, err
	}
	if HasEditListPacket(keys.SenderPrivateKey, originalPackets) {
		return nil, htsget.Crypt4GHErrorf(nil, "source already contains an edit-list packet")
	}

	originalHeaderLen := int64(headerInfoLen)
	for _, p := range originalPackets {
		originalHeaderLen += int64(len(p))
	}

	streamLength, err := PlaintextLength(cipherSize, originalHeaderLen)
	if err != nil {
		return nil, err
	}

	all := append([]htsget.BytesPosition(nil), plaintextPositions...)
	if tailLen > 0 {
		if tailLen > streamLength {
			return nil, htsget.Crypt4GHErrorf(nil, "EOF marker of %d bytes exceeds stream length %d", tailLen, streamLength)
		}
		all = append(all, htsget.BytesPosition{Start: streamLength - tailLen, End: streamLength})
	}
	all = htsget.MergeAll(all)

	edits, err := CreateEditList(all, streamLength)
	if err != nil {
		return nil, err
	}

	header, err := RewriteHeader(info, originalPackets, keys, edits)
	if err != nil {
		return nil, err
	}

	// Data blocks are fetched from the *original* ciphertext object,
	// whose body starts after the original header, not the rewritten
	// one returned above (which is only served as the synthetic
	// Header-class payload).
	translated := make([]htsget.BytesPosition, 0, len(all))
	for _, p := range all {
		translated = append(translated, TranslateRange(p, streamLength, uint64(originalHeaderLen)))
	}

	return &Result{Header: header, Positions: translated}, nil
}
