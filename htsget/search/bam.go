// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package search

import (
	"context"

	"github.com/biogo/hts/bam"
	"github.com/biogo/htsget/htsget"
	"github.com/biogo/htsget/htsget/storage"
)

// BAMEngine implements BgzfSearch for BAM: the header is the binary
// SAM header plus reference-sequence table, and bin math uses the
// reference's stored length (spec §4.4).
type BAMEngine struct{}

var _ BgzfSearch = (*BAMEngine)(nil)

func (e *BAMEngine) openHeader(ctx context.Context, st storage.Backend, q htsget.Query) (*bam.Reader, error) {
	rc, err := st.Get(ctx, q.DataKey(), storage.ByteRange{Unbounded: true})
	if err != nil {
		return nil, err
	}
	r, err := bam.NewReader(rc, 1)
	if err != nil {
		return nil, htsget.ParseErrorf(err, "reading BAM header for %q", q.ID)
	}
	return r, nil
}

func (e *BAMEngine) openIndex(ctx context.Context, st storage.Backend, q htsget.Query) (*bam.Index, error) {
	rc, err := st.Get(ctx, q.IndexKey(), storage.ByteRange{Unbounded: true})
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	idx, err := bam.ReadIndex(rc)
	if err != nil {
		return nil, htsget.ParseErrorf(err, "reading BAI index for %q", q.ID)
	}
	return idx, nil
}

// Header implements Search.
func (e *BAMEngine) Header(ctx context.Context, st storage.Backend, q htsget.Query) ([]htsget.BytesPosition, int64, error) {
	r, err := e.openHeader(ctx, st, q)
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()

	headerEnd := int64(r.LastChunk().End.File)
	header := htsget.ClassHeader
	return []htsget.BytesPosition{{Start: 0, End: uint64(headerEnd), Class: &header}}, headerEnd, nil
}

// Terminator implements Search: every BAM response ends with the
// synthetic BGZF EOF marker.
func (e *BAMEngine) Terminator(ctx context.Context, st storage.Backend, q htsget.Query) ([]htsget.BytesPosition, error) {
	class := htsget.ClassBody
	return []htsget.BytesPosition{{Inline: htsget.BGZFEOF(), Class: &class}}, nil
}

// MaxSeqPosition implements BgzfSearch.
func (e *BAMEngine) MaxSeqPosition(ctx context.Context, st storage.Backend, q htsget.Query, ref string) (int, error) {
	r, err := e.openHeader(ctx, st, q)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	for _, rf := range r.Header().Refs() {
		if rf.Name() == ref {
			return rf.Len(), nil
		}
	}
	return 0, htsget.NotFoundf("reference %q not found", ref)
}

// Body implements Search: resolves the BAI-indexed chunk list for
// q.ReferenceName and q.Interval, including the unmapped-reads path
// for reference_name == "*" (spec §4.3.4).
func (e *BAMEngine) Body(ctx context.Context, st storage.Backend, q htsget.Query, headerEnd int64) ([]htsget.BytesPosition, error) {
	if q.ReferenceName == "*" {
		return e.unmapped(ctx, st, q, headerEnd)
	}

	r, err := e.openHeader(ctx, st, q)
	if err != nil {
		return nil, err
	}
	h := r.Header()
	r.Close()

	var refID = -1
	var refLen int
	for _, rf := range h.Refs() {
		if rf.Name() == q.ReferenceName {
			refID = rf.ID()
			refLen = rf.Len()
			break
		}
	}
	if refID < 0 {
		return nil, htsget.NotFoundf("reference %q not found in BAM header", q.ReferenceName)
	}

	idx, err := e.openIndex(ctx, st, q)
	if err != nil {
		return nil, err
	}

	beg := int(q.Interval.StartOr(0))
	end := int(q.Interval.EndOr(uint32(refLen)))
	if end > refLen {
		end = refLen
	}
	if beg >= end {
		return nil, nil
	}

	bamChunks, err := idx.Chunks(h.Refs()[refID], beg, end)
	if err != nil {
		// A region entirely beyond the reference length yields no
		// chunks, not an error: header-only response, per spec §8.
		return nil, nil
	}
	if len(bamChunks) == 0 {
		return nil, nil
	}

	chunks := make([]indexChunk, len(bamChunks))
	for i, c := range bamChunks {
		chunks[i] = indexChunk{beginFile: c.Begin.File, endFile: c.End.File, endBlock: c.End.Block}
	}
	return translateChunks(ctx, st, q.DataKey(), chunks)
}

// unmapped implements spec §4.3.4: locate the greatest virtual
// position mentioned across all references' chunk/linear-index
// entries and emit the tail of the file from there to the BGZF EOF.
func (e *BAMEngine) unmapped(ctx context.Context, st storage.Backend, q htsget.Query, headerEnd int64) ([]htsget.BytesPosition, error) {
	idx, err := e.openIndex(ctx, st, q)
	if err != nil {
		return nil, err
	}

	var maxVOffsetFile int64 = -1
	offsets := idx.GetAllOffsets()
	for _, list := range offsets {
		for _, o := range list {
			if o.File > maxVOffsetFile {
				maxVOffsetFile = o.File
			}
		}
	}

	start := headerEnd
	if maxVOffsetFile >= 0 {
		start = maxVOffsetFile
	}

	size, err := st.Head(ctx, q.DataKey())
	if err != nil {
		return nil, err
	}
	end := uint64(size) - uint64(htsget.BGZFEOFLen)
	if end <= uint64(start) {
		return nil, nil
	}
	return []htsget.BytesPosition{{Start: uint64(start), End: end}}, nil
}
