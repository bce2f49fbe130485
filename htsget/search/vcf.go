// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package search

import (
	"bufio"
	"context"
	"strings"

	"github.com/biogo/hts/tabix"
	"github.com/biogo/htsget/bgzf"
	"github.com/biogo/htsget/htsget"
	"github.com/biogo/htsget/htsget/storage"
)

// VCFEngine implements BgzfSearch for bgzipped VCF: the header is
// gzipped text lines up to and including the #CHROM line, reference
// sequences are enumerated from the TBI index's contig list (the VCF
// header itself may omit a complete contig dictionary), and bin math
// is bounded by the CSI/TBI maximum coordinate (spec §4.4).
type VCFEngine struct{}

var _ BgzfSearch = (*VCFEngine)(nil)

// maxSeqPosition is (1<<29)-1, the CSI/tabix maximum 0-based coordinate.
const maxSeqPosition = (1 << 29) - 1

func (e *VCFEngine) openIndex(ctx context.Context, st storage.Backend, q htsget.Query) (*tabix.Index, error) {
	rc, err := st.Get(ctx, q.IndexKey(), storage.ByteRange{Unbounded: true})
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	idx, err := tabix.ReadFrom(rc)
	if err != nil {
		return nil, htsget.ParseErrorf(err, "reading TBI index for %q", q.ID)
	}
	return idx, nil
}

// Header implements Search: scans gzipped text lines until the
// #CHROM line, returning the BGZF-block boundary after it.
func (e *VCFEngine) Header(ctx context.Context, st storage.Backend, q htsget.Query) ([]htsget.BytesPosition, int64, error) {
	rc, err := st.Get(ctx, q.DataKey(), storage.ByteRange{Unbounded: true})
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()

	r, err := bgzf.NewReader(rc, 1)
	if err != nil {
		return nil, 0, htsget.ParseErrorf(err, "reading VCF header for %q", q.ID)
	}
	defer r.Close()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#CHROM") {
			break
		}
		if !strings.HasPrefix(line, "#") {
			return nil, 0, htsget.ParseErrorf(nil, "VCF header for %q missing #CHROM line", q.ID)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, 0, htsget.ParseErrorf(err, "reading VCF header for %q", q.ID)
	}

	headerEnd := int64(r.LastChunk().End.File)
	class := htsget.ClassHeader
	return []htsget.BytesPosition{{Start: 0, End: uint64(headerEnd), Class: &class}}, headerEnd, nil
}

// Terminator implements Search.
func (e *VCFEngine) Terminator(ctx context.Context, st storage.Backend, q htsget.Query) ([]htsget.BytesPosition, error) {
	class := htsget.ClassBody
	return []htsget.BytesPosition{{Inline: htsget.BGZFEOF(), Class: &class}}, nil
}

// MaxSeqPosition implements BgzfSearch.
func (e *VCFEngine) MaxSeqPosition(ctx context.Context, st storage.Backend, q htsget.Query, ref string) (int, error) {
	idx, err := e.openIndex(ctx, st, q)
	if err != nil {
		return 0, err
	}
	if _, ok := idx.IDs()[ref]; !ok {
		return 0, htsget.NotFoundf("reference %q not found in TBI index", ref)
	}
	return maxSeqPosition, nil
}

// Body implements Search. VCF has no distinguished unmapped-reads
// path: every record is placed against a contig.
func (e *VCFEngine) Body(ctx context.Context, st storage.Backend, q htsget.Query, headerEnd int64) ([]htsget.BytesPosition, error) {
	idx, err := e.openIndex(ctx, st, q)
	if err != nil {
		return nil, err
	}
	if _, ok := idx.IDs()[q.ReferenceName]; !ok {
		return nil, htsget.NotFoundf("reference %q not found in TBI index", q.ReferenceName)
	}

	beg := int(q.Interval.StartOr(0))
	end := int(q.Interval.EndOr(maxSeqPosition))

	tbiChunks, err := idx.Chunks(q.ReferenceName, beg, end)
	if err != nil {
		return nil, nil
	}
	if len(tbiChunks) == 0 {
		return nil, nil
	}
	chunks := make([]indexChunk, len(tbiChunks))
	for i, c := range tbiChunks {
		chunks[i] = indexChunk{beginFile: c.Begin.File, endFile: c.End.File, endBlock: c.End.Block}
	}
	return translateChunks(ctx, st, q.DataKey(), chunks)
}
