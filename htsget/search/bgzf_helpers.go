// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package search

import (
	"context"

	"github.com/biogo/htsget/bgzf"
	"github.com/biogo/htsget/htsget"
	"github.com/biogo/htsget/htsget/storage"
)

// blockSizeAt returns the total compressed size, in bytes, of the
// BGZF block beginning at offset in the object named key.
func blockSizeAt(ctx context.Context, st storage.Backend, key string, offset int64) (int, error) {
	rc, err := st.Get(ctx, key, storage.ByteRange{Start: uint64(offset), Unbounded: true})
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	r, err := bgzf.NewReader(rc, 1)
	if err != nil {
		return 0, htsget.ParseErrorf(err, "reading bgzf block header at offset %d", offset)
	}
	defer r.Close()
	size := r.BlockSize()
	if size < 0 {
		return 0, htsget.ParseErrorf(nil, "bgzf block at offset %d carries no BC extra field", offset)
	}
	return size, nil
}

// indexChunk is the compressed-offset span of one binning-index chunk,
// copied out of whichever index package (BAI, CSI, tabix) produced it
// so translateChunks never needs to import their bgzf.Chunk types
// directly.
type indexChunk struct {
	beginFile int64
	endFile   int64
	endBlock  uint16
}

// translateChunks implements spec §4.3 step 7: each indexChunk becomes
// a BytesPosition spanning from its begin compressed offset through
// the end of the block containing its end virtual position.
func translateChunks(ctx context.Context, st storage.Backend, key string, chunks []indexChunk) ([]htsget.BytesPosition, error) {
	positions := make([]htsget.BytesPosition, 0, len(chunks))
	for _, c := range chunks {
		end := uint64(c.endFile)
		if c.endBlock > 0 {
			size, err := blockSizeAt(ctx, st, key, c.endFile)
			if err != nil {
				return nil, err
			}
			end = uint64(c.endFile) + uint64(size)
		}
		positions = append(positions, htsget.BytesPosition{
			Start: uint64(c.beginFile),
			End:   end,
		})
	}
	return positions, nil
}
