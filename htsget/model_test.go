// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htsget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32(v uint32) *uint32 { return &v }

func TestIntervalContains(t *testing.T) {
	iv := Interval{Start: u32(10), End: u32(20)}
	assert.False(t, iv.Contains(9))
	assert.True(t, iv.Contains(10))
	assert.True(t, iv.Contains(19))
	assert.False(t, iv.Contains(20))

	open := Interval{}
	assert.True(t, open.Contains(0))
	assert.True(t, open.Contains(4294967295))
}

func TestIntervalEmpty(t *testing.T) {
	assert.True(t, Interval{Start: u32(5), End: u32(5)}.Empty())
	assert.False(t, Interval{Start: u32(5), End: u32(6)}.Empty())
	assert.False(t, Interval{}.Empty())
}

func TestIntervalIntoOneBased(t *testing.T) {
	iv := Interval{Start: u32(10), End: u32(20)}
	s, e, err := iv.IntoOneBased()
	require.NoError(t, err)
	assert.Equal(t, 11, s)
	assert.Equal(t, 20, e)
}

func TestQueryBuilders(t *testing.T) {
	q := NewQuery("abc", BAM).
		WithClass(ClassHeader).
		WithReferenceName("chr1").
		WithStart(5).
		WithEnd(10)

	assert.Equal(t, "abc", q.ID)
	assert.Equal(t, BAM, q.Format)
	assert.Equal(t, ClassHeader, q.Class)
	assert.Equal(t, "chr1", q.ReferenceName)
	require.NotNil(t, q.Interval.Start)
	require.NotNil(t, q.Interval.End)
	assert.Equal(t, uint32(5), *q.Interval.Start)
	assert.Equal(t, uint32(10), *q.Interval.End)
	assert.Equal(t, "abc.bam", q.DataKey())
	assert.Equal(t, "abc.bam.bai", q.IndexKey())
}

func TestQueryCrypt4GHKeys(t *testing.T) {
	q := NewQuery("abc", CRAM).WithCrypt4GH(Crypt4GHKeys{})
	assert.True(t, q.ObjectType.Crypt4GH)
	assert.Equal(t, "abc.cram.c4gh", q.DataKey())
	// The index itself is always stored plaintext, even for a
	// Crypt4GH-wrapped data object (spec §6).
	assert.Equal(t, "abc.cram.crai", q.IndexKey())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("BAM")
	require.NoError(t, err)
	assert.Equal(t, BAM, f)

	_, err = ParseFormat("FASTA")
	require.Error(t, err)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, UnsupportedFormat, herr.Kind)
}

func classPtr(c Class) *Class { return &c }

func TestMergeAllSortsAndMerges(t *testing.T) {
	positions := []BytesPosition{
		{Start: 100, End: 200},
		{Start: 0, End: 50, Class: classPtr(ClassHeader)},
		{Start: 200, End: 300},
		{Start: 500, End: 600},
	}
	got := MergeAll(positions)
	require.Len(t, got, 3)
	assert.Equal(t, BytesPosition{Start: 0, End: 50, Class: classPtr(ClassHeader)}, got[0])
	assert.Equal(t, uint64(100), got[1].Start)
	assert.Equal(t, uint64(300), got[1].End)
	assert.Equal(t, uint64(500), got[2].Start)
	assert.Equal(t, uint64(600), got[2].End)
}

func TestMergeAllTouchingRangesMerge(t *testing.T) {
	// Chunks whose end equals the next chunk's start are adjacent and
	// must be folded into one (spec §4.3 step 6 / §3 "touch or overlap").
	positions := []BytesPosition{
		{Start: 0, End: 10},
		{Start: 10, End: 20},
	}
	got := MergeAll(positions)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(0), got[0].Start)
	assert.Equal(t, uint64(20), got[0].End)
}

func TestMergeAllDifferentClassesNeverMerge(t *testing.T) {
	positions := []BytesPosition{
		{Start: 0, End: 10, Class: classPtr(ClassHeader)},
		{Start: 10, End: 20, Class: classPtr(ClassBody)},
	}
	got := MergeAll(positions)
	require.Len(t, got, 2)
}

func TestMergeAllInlinePositionsNeverMerge(t *testing.T) {
	positions := []BytesPosition{
		{Inline: []byte("a")},
		{Inline: []byte("b")},
	}
	got := MergeAll(positions)
	require.Len(t, got, 2)
}

func TestBytesPositionRangeHeader(t *testing.T) {
	p := BytesPosition{Start: 10, End: 20}
	assert.Equal(t, "bytes=10-19", p.RangeHeader())
}

func TestEmptyMergeAll(t *testing.T) {
	assert.Nil(t, MergeAll(nil))
}
