// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crypt4gh implements the edit-list rewrite that lets byte
// ranges computed against a Crypt4GH file's plaintext layout be
// translated into ranges over its encrypted container (spec §4.6).
package crypt4gh

import "github.com/biogo/htsget/htsget"

// BlockSize is the plaintext Crypt4GH block size, B in the spec.
const BlockSize = 65536

// WireBlockSize is a ciphertext block: a BlockSize plaintext payload
// wrapped in a 12-byte nonce and 16-byte Poly1305 tag.
const WireBlockSize = BlockSize + 12 + 16

func clampDown(x uint64) uint64 {
	return (x / BlockSize) * BlockSize
}

func clampUp(x, streamLength uint64) uint64 {
	up := ((x + BlockSize - 1) / BlockSize) * BlockSize
	if up > streamLength {
		return streamLength
	}
	return up
}

// CreateEditList computes the Crypt4GH edit-list vector for a
// canonical, ascending list of plaintext [start, end) positions: a
// flattened sequence of (discard, keep) pairs instructing a decryptor
// which bytes of the decrypted block stream to skip and emit.
//
// positions must be sorted and non-overlapping; every start/end must
// fall within [0, streamLength].
func CreateEditList(positions []htsget.BytesPosition, streamLength uint64) ([]uint64, error) {
	edits := make([]uint64, 0, len(positions)*2)
	var previousTrailing uint64
	for _, p := range positions {
		if p.Start > streamLength || p.End > streamLength || p.Start > p.End {
			return nil, htsget.Crypt4GHErrorf(nil, "position [%d, %d) outside stream of length %d", p.Start, p.End, streamLength)
		}
		discard := (p.Start - clampDown(p.Start)) + previousTrailing
		keep := p.End - p.Start
		edits = append(edits, discard, keep)
		previousTrailing = clampUp(p.End, streamLength) - p.End
	}
	return edits, nil
}

// blockBoundaryToCipherOffset converts a plaintext block boundary
// (always either an exact multiple of BlockSize, or streamLength
// itself when the final block is short) into the matching byte offset
// in the ciphertext container. The final block expands by only
// nonce+tag overhead rather than the full WireBlockSize, so a boundary
// sitting at a short trailing block cannot be scaled by the fixed
// BlockSize/WireBlockSize ratio the way interior boundaries can.
func blockBoundaryToCipherOffset(boundary, headerLen uint64) uint64 {
	fullBlocks := boundary / BlockSize
	remainder := boundary % BlockSize
	offset := headerLen + fullBlocks*WireBlockSize
	if remainder > 0 {
		offset += remainder + 28
	}
	return offset
}

// TranslateRange maps a plaintext [start, end) position to the
// corresponding ciphertext byte range over the Crypt4GH container,
// given the stream length and the length in bytes of the original
// header that precedes the encrypted block stream (spec §4.6 step 5).
func TranslateRange(p htsget.BytesPosition, streamLength, headerLen uint64) htsget.BytesPosition {
	cipherStart := blockBoundaryToCipherOffset(clampDown(p.Start), headerLen)
	cipherEnd := blockBoundaryToCipherOffset(clampUp(p.End, streamLength), headerLen)
	out := htsget.BytesPosition{Start: cipherStart, End: cipherEnd}
	if p.Class != nil {
		c := *p.Class
		out.Class = &c
	}
	return out
}

// PlaintextLength recovers the plaintext stream length from the
// encrypted container's total size and its header length, using the
// fixed block expansion (BlockSize plaintext -> WireBlockSize
// ciphertext) rather than any stored field, since Crypt4GH carries no
// explicit plaintext-length packet.
func PlaintextLength(cipherSize, headerLen int64) (uint64, error) {
	body := cipherSize - headerLen
	if body < 0 {
		return 0, htsget.Crypt4GHErrorf(nil, "container smaller than its own header")
	}
	fullBlocks := body / WireBlockSize
	remainder := body % WireBlockSize
	if remainder == 0 {
		return uint64(fullBlocks) * BlockSize, nil
	}
	if remainder <= 28 {
		return 0, htsget.Crypt4GHErrorf(nil, "truncated trailing Crypt4GH block")
	}
	return uint64(fullBlocks)*BlockSize + uint64(remainder-28), nil
}
