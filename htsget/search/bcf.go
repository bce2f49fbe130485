// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package search

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"strings"

	"github.com/biogo/hts/csi"
	"github.com/biogo/htsget/bgzf"
	"github.com/biogo/htsget/htsget"
	"github.com/biogo/htsget/htsget/storage"
)

// BCFEngine implements BgzfSearch for BCF: the header is a BGZF-framed
// binary block carrying the plain-text VCF header (from which the
// contig dictionary is parsed), and the body index is a CSI (spec
// §4.4).
type BCFEngine struct{}

var _ BgzfSearch = (*BCFEngine)(nil)

var bcfMagic = [3]byte{'B', 'C', 'F'}

// bcfHeader holds the parsed contig dictionary and the compressed
// byte offset immediately following the header block.
type bcfHeader struct {
	contigs   []string
	contigIDs map[string]int
	headerEnd int64
}

func (e *BCFEngine) readHeader(ctx context.Context, st storage.Backend, q htsget.Query) (*bcfHeader, error) {
	rc, err := st.Get(ctx, q.DataKey(), storage.ByteRange{Unbounded: true})
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r, err := bgzf.NewReader(rc, 1)
	if err != nil {
		return nil, htsget.ParseErrorf(err, "reading BCF header for %q", q.ID)
	}
	defer r.Close()

	var magic [3]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, htsget.ParseErrorf(err, "reading BCF magic for %q", q.ID)
	}
	if magic != bcfMagic {
		return nil, htsget.ParseErrorf(nil, "%q is not a BCF file", q.ID)
	}
	var version [2]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		return nil, htsget.ParseErrorf(err, "reading BCF version for %q", q.ID)
	}

	var lText int32
	if err := binary.Read(r, binary.LittleEndian, &lText); err != nil {
		return nil, htsget.ParseErrorf(err, "reading BCF header length for %q", q.ID)
	}
	text := make([]byte, lText)
	if _, err := io.ReadFull(r, text); err != nil {
		return nil, htsget.ParseErrorf(err, "reading BCF header text for %q", q.ID)
	}

	h := &bcfHeader{contigIDs: make(map[string]int), headerEnd: int64(r.LastChunk().End.File)}
	for _, line := range strings.Split(string(text), "\n") {
		if !strings.HasPrefix(line, "##contig=<") {
			continue
		}
		id := contigID(line)
		if id == "" {
			continue
		}
		h.contigIDs[id] = len(h.contigs)
		h.contigs = append(h.contigs, id)
	}
	return h, nil
}

// contigID extracts the ID field from a VCF ##contig=<...> header
// line, e.g. ##contig=<ID=chrM,length=16571> -> "chrM".
func contigID(line string) string {
	i := strings.Index(line, "ID=")
	if i < 0 {
		return ""
	}
	rest := line[i+len("ID="):]
	if j := strings.IndexAny(rest, ",>"); j >= 0 {
		return rest[:j]
	}
	return rest
}

// Header implements Search.
func (e *BCFEngine) Header(ctx context.Context, st storage.Backend, q htsget.Query) ([]htsget.BytesPosition, int64, error) {
	h, err := e.readHeader(ctx, st, q)
	if err != nil {
		return nil, 0, err
	}
	class := htsget.ClassHeader
	return []htsget.BytesPosition{{Start: 0, End: uint64(h.headerEnd), Class: &class}}, h.headerEnd, nil
}

// Terminator implements Search.
func (e *BCFEngine) Terminator(ctx context.Context, st storage.Backend, q htsget.Query) ([]htsget.BytesPosition, error) {
	class := htsget.ClassBody
	return []htsget.BytesPosition{{Inline: htsget.BGZFEOF(), Class: &class}}, nil
}

// MaxSeqPosition implements BgzfSearch.
func (e *BCFEngine) MaxSeqPosition(ctx context.Context, st storage.Backend, q htsget.Query, ref string) (int, error) {
	h, err := e.readHeader(ctx, st, q)
	if err != nil {
		return 0, err
	}
	if _, ok := h.contigIDs[ref]; !ok {
		return 0, htsget.NotFoundf("reference %q not found in BCF header", ref)
	}
	return maxSeqPosition, nil
}

// Body implements Search.
func (e *BCFEngine) Body(ctx context.Context, st storage.Backend, q htsget.Query, headerEnd int64) ([]htsget.BytesPosition, error) {
	h, err := e.readHeader(ctx, st, q)
	if err != nil {
		return nil, err
	}
	rid, ok := h.contigIDs[q.ReferenceName]
	if !ok {
		return nil, htsget.NotFoundf("reference %q not found in BCF header", q.ReferenceName)
	}

	rc, err := st.Get(ctx, q.IndexKey(), storage.ByteRange{Unbounded: true})
	if err != nil {
		return nil, err
	}
	idx, err := csi.ReadFrom(bytes.NewReader(mustReadAll(rc)))
	rc.Close()
	if err != nil {
		return nil, htsget.ParseErrorf(err, "reading CSI index for %q", q.ID)
	}

	beg := q.Interval.StartOr(0)
	end := q.Interval.EndOr(maxSeqPosition)

	// BCF converts query coordinates to the CSI's 1-based convention
	// by using the given start directly rather than shifting it; an
	// explicit start of 0 has no representation under that convention
	// and is rejected rather than silently reinterpreted (spec §8
	// scenario 6).
	if q.Interval.Start != nil && *q.Interval.Start == 0 {
		return nil, htsget.InvalidRangef("%d-%d", beg, end)
	}
	if beg >= end {
		return nil, htsget.InvalidRangef("interval [%d, %d) is empty", beg, end)
	}

	csiChunks := idx.Chunks(rid, int(beg), int(end))
	if len(csiChunks) == 0 {
		return nil, nil
	}
	chunks := make([]indexChunk, len(csiChunks))
	for i, c := range csiChunks {
		chunks[i] = indexChunk{beginFile: c.Begin.File, endFile: c.End.File, endBlock: c.End.Block}
	}
	return translateChunks(ctx, st, q.DataKey(), chunks)
}

func mustReadAll(r io.Reader) []byte {
	b, _ := io.ReadAll(r)
	return b
}
