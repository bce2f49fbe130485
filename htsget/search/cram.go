// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package search

import (
	"context"
	"sort"

	"github.com/biogo/hts/cram"
	"github.com/biogo/hts/sam"
	"github.com/biogo/htsget/htsget"
	"github.com/biogo/htsget/htsget/storage"
)

// CRAMEngine implements Search directly, not BgzfSearch: CRAM has no
// BGZF framing, no binning index and no linear index. Its container
// structure is self-describing via the CRAI, so the whole algorithm
// is "look up slices by reference interval, emit whole containers"
// (spec §4.4).
type CRAMEngine struct{}

var _ Search = (*CRAMEngine)(nil)

func (e *CRAMEngine) loadIndex(ctx context.Context, st storage.Backend, q htsget.Query) ([]craiRecord, error) {
	rc, err := st.Get(ctx, q.IndexKey(), storage.ByteRange{Unbounded: true})
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readCRAI(rc)
}

// Header implements Search: the CRAM header and SAM header occupy
// the container preceding the first data container named by the
// index.
func (e *CRAMEngine) Header(ctx context.Context, st storage.Backend, q htsget.Query) ([]htsget.BytesPosition, int64, error) {
	records, err := e.loadIndex(ctx, st, q)
	if err != nil {
		return nil, 0, err
	}
	var first int64 = -1
	for _, r := range records {
		if first < 0 || r.containerStart < first {
			first = r.containerStart
		}
	}
	if first < 0 {
		first = 0
	}
	class := htsget.ClassHeader
	return []htsget.BytesPosition{{Start: 0, End: uint64(first), Class: &class}}, first, nil
}

// Terminator implements Search: the CRAM EOF container is a fixed
// 38-byte ranged suffix, not a synthetic inline marker (spec §4.4).
func (e *CRAMEngine) Terminator(ctx context.Context, st storage.Backend, q htsget.Query) ([]htsget.BytesPosition, error) {
	size, err := st.Head(ctx, q.DataKey())
	if err != nil {
		return nil, err
	}
	if size < int64(htsget.CRAMEOFLen) {
		return nil, htsget.ParseErrorf(nil, "%q is smaller than the CRAM EOF marker", q.ID)
	}
	class := htsget.ClassBody
	return []htsget.BytesPosition{{
		Start: uint64(size - int64(htsget.CRAMEOFLen)),
		End:   uint64(size),
		Class: &class,
	}}, nil
}

// Body implements Search: gathers every container holding a slice
// whose reference id matches q.ReferenceName and whose alignment
// span overlaps q.Interval, and emits each matching container once.
func (e *CRAMEngine) Body(ctx context.Context, st storage.Backend, q htsget.Query, headerEnd int64) ([]htsget.BytesPosition, error) {
	records, err := e.loadIndex(ctx, st, q)
	if err != nil {
		return nil, err
	}

	refID, err := e.resolveRef(ctx, st, q)
	if err != nil {
		return nil, err
	}

	qs := int(q.Interval.StartOr(0))
	qe := int(q.Interval.EndOr(^uint32(0) >> 1))

	containerEnd := make(map[int64]int64)
	matched := make(map[int64]bool)
	for _, r := range records {
		end := r.containerStart + r.sliceOffset + r.sliceSize
		if end > containerEnd[r.containerStart] {
			containerEnd[r.containerStart] = end
		}
		if r.refID != refID {
			continue
		}
		if r.alignStart >= qe || r.alignStart+r.alignSpan <= qs {
			continue
		}
		matched[r.containerStart] = true
	}
	if len(matched) == 0 {
		return nil, nil
	}

	starts := make([]int64, 0, len(matched))
	for start := range matched {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	positions := make([]htsget.BytesPosition, 0, len(starts))
	for _, start := range starts {
		positions = append(positions, htsget.BytesPosition{
			Start: uint64(start),
			End:   uint64(containerEnd[start]),
		})
	}
	return positions, nil
}

// resolveRef maps q.ReferenceName to the CRAI reference id space by
// decoding the CRAM file-header block of the first container, the
// same SAM header the BAM engine consults for its reference table
// (spec §4.4).
func (e *CRAMEngine) resolveRef(ctx context.Context, st storage.Backend, q htsget.Query) (int, error) {
	if q.ReferenceName == "*" {
		return craiUnplaced, nil
	}

	rc, err := st.Get(ctx, q.DataKey(), storage.ByteRange{Unbounded: true})
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	r, err := cram.NewReader(rc)
	if err != nil {
		return 0, htsget.ParseErrorf(err, "reading CRAM definition for %q", q.ID)
	}
	for r.Next() {
		c := r.Container()
		for c.Next() {
			b := c.Block()
			v, err := b.Value()
			if err != nil {
				return 0, htsget.ParseErrorf(err, "decoding CRAM header block for %q", q.ID)
			}
			h, ok := v.(*sam.Header)
			if !ok {
				continue
			}
			for _, rf := range h.Refs() {
				if rf.Name() == q.ReferenceName {
					return rf.ID(), nil
				}
			}
			return 0, htsget.NotFoundf("reference %q not found in CRAM header", q.ReferenceName)
		}
		if err := c.Err(); err != nil {
			return 0, htsget.ParseErrorf(err, "reading CRAM container for %q", q.ID)
		}
	}
	return 0, htsget.NotFoundf("reference %q not found: no CRAM header block", q.ReferenceName)
}
