// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htsget

import "github.com/biogo/htsget/bgzf"

// BGZFEOFLen is the length in bytes of the BGZF end-of-file marker
// block that terminates every BAM, BCF and bgzipped VCF response.
const BGZFEOFLen = len(bgzf.MagicBlock)

// CRAMEOFLen is the length in bytes of the CRAM v3 end-of-file
// container that terminates every CRAM file.
const CRAMEOFLen = 38

// BGZFEOF returns the literal bytes of the BGZF end-of-file marker.
func BGZFEOF() []byte {
	b := make([]byte, len(bgzf.MagicBlock))
	copy(b, bgzf.MagicBlock[:])
	return b
}

// EOFUrl returns the synthetic Body-class data: Url every BGZF-format
// Response must terminate with.
func EOFUrl() Url {
	return DataURL(BGZFEOF(), ClassBody)
}
