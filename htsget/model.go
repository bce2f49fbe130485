// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htsget

import (
	"encoding/base64"
	"fmt"
	"math"
	"sort"
)

// Format identifies the genomic file format a Query targets.
type Format int

// The supported Format values, per the htsget v1.3 file-naming contract.
const (
	BAM Format = iota
	CRAM
	VCF
	BCF
)

func (f Format) String() string {
	switch f {
	case BAM:
		return "BAM"
	case CRAM:
		return "CRAM"
	case VCF:
		return "VCF"
	case BCF:
		return "BCF"
	default:
		return "unknown"
	}
}

// MarshalText encodes f as its htsget wire name, e.g. "BAM".
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// ParseFormat maps an htsget wire format name to a Format, returning
// UnsupportedFormat if s is not one of BAM, CRAM, VCF or BCF.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "BAM":
		return BAM, nil
	case "CRAM":
		return CRAM, nil
	case "VCF":
		return VCF, nil
	case "BCF":
		return BCF, nil
	default:
		return 0, UnsupportedFormatf("unsupported format %q", s)
	}
}

// FileExtension returns the storage key suffix for the data object of
// format f.
func (f Format) FileExtension() string {
	switch f {
	case BAM:
		return ".bam"
	case CRAM:
		return ".cram"
	case VCF:
		return ".vcf.gz"
	case BCF:
		return ".bcf"
	default:
		return ""
	}
}

// IndexExtension returns the storage key suffix for the index object
// of format f.
func (f Format) IndexExtension() string {
	switch f {
	case BAM:
		return ".bam.bai"
	case CRAM:
		return ".cram.crai"
	case VCF:
		return ".vcf.gz.tbi"
	case BCF:
		return ".bcf.csi"
	default:
		return ""
	}
}

// IsBGZF reports whether f is carried in a BGZF container, as opposed
// to CRAM's own container format.
func (f Format) IsBGZF() bool { return f != CRAM }

// Class restricts a Query's response to header data only, or to the
// full body.
type Class int

// The two Class values recognized by htsget.
const (
	ClassBody Class = iota
	ClassHeader
)

func (c Class) String() string {
	if c == ClassHeader {
		return "header"
	}
	return "body"
}

// MarshalText encodes c as its lowercase wire name, "header" or "body".
func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// ObjectType distinguishes a plain object from one wrapped in
// Crypt4GH encryption.
type ObjectType struct {
	Crypt4GH bool
	Keys     Crypt4GHKeys
}

// Crypt4GHKeys holds the key material needed to rewrite a Crypt4GH
// header: the sender's private key (used to re-seal the new edit-list
// packet) and the single recipient's public key.
type Crypt4GHKeys struct {
	SenderPrivateKey    [32]byte
	RecipientPublicKey  [32]byte
}

// Interval is a half-open, 0-based genomic interval. A nil Start
// means "from the start of the reference"; a nil End means "to the
// end of the reference".
type Interval struct {
	Start *uint32
	End   *uint32
}

// Contains reports whether v falls within the interval, treating
// absent bounds as unbounded.
func (iv Interval) Contains(v uint32) bool {
	if iv.Start != nil && v < *iv.Start {
		return false
	}
	if iv.End != nil && v >= *iv.End {
		return false
	}
	return true
}

// StartOr returns the interval's start, or def if unset.
func (iv Interval) StartOr(def uint32) uint32 {
	if iv.Start == nil {
		return def
	}
	return *iv.Start
}

// EndOr returns the interval's end, or def if unset.
func (iv Interval) EndOr(def uint32) uint32 {
	if iv.End == nil {
		return def
	}
	return *iv.End
}

// Empty reports whether the interval has explicit, equal start and
// end bounds.
func (iv Interval) Empty() bool {
	return iv.Start != nil && iv.End != nil && *iv.Start == *iv.End
}

// IntoOneBased converts the interval to a 1-based, closed-interval
// pair [start, end] suitable for libraries (like the binning index
// math) that expect that convention. It reports InvalidInput on
// overflow.
func (iv Interval) IntoOneBased() (start, end int, err error) {
	s := iv.StartOr(0)
	e := iv.EndOr(math.MaxUint32 - 1)
	if s > math.MaxInt32-1 || e > math.MaxInt32-1 {
		return 0, 0, InvalidInputf("interval [%d, %d) overflows 1-based conversion", s, e)
	}
	return int(s) + 1, int(e), nil
}

// Query describes one htsget request. Query is constructed via
// builder-style With* methods; each returns the updated value so
// calls can be chained.
type Query struct {
	ID            string
	Format        Format
	Class         Class
	ReferenceName string
	Interval      Interval
	ObjectType    ObjectType
}

// NewQuery returns a Query for id and format with the zero interval
// (the whole reference) and Class Body.
func NewQuery(id string, format Format) Query {
	return Query{ID: id, Format: format}
}

// WithClass returns the Query with Class set to c.
func (q Query) WithClass(c Class) Query { q.Class = c; return q }

// WithReferenceName returns the Query with ReferenceName set to name.
func (q Query) WithReferenceName(name string) Query { q.ReferenceName = name; return q }

// WithInterval returns the Query with Interval set to iv.
func (q Query) WithInterval(iv Interval) Query { q.Interval = iv; return q }

// WithStart returns the Query with Interval.Start set to s.
func (q Query) WithStart(s uint32) Query { q.Interval.Start = &s; return q }

// WithEnd returns the Query with Interval.End set to e.
func (q Query) WithEnd(e uint32) Query { q.Interval.End = &e; return q }

// WithCrypt4GH returns the Query with ObjectType set to Crypt4GH
// using the given keys.
func (q Query) WithCrypt4GH(keys Crypt4GHKeys) Query {
	q.ObjectType = ObjectType{Crypt4GH: true, Keys: keys}
	return q
}

// DataKey returns the Storage key of the Query's data object.
func (q Query) DataKey() string {
	if q.ObjectType.Crypt4GH {
		return q.ID + q.Format.FileExtension() + ".c4gh"
	}
	return q.ID + q.Format.FileExtension()
}

// IndexKey returns the Storage key of the Query's index object. The
// index is always stored plaintext, even when the data object is
// Crypt4GH-wrapped.
func (q Query) IndexKey() string {
	return q.ID + q.Format.IndexExtension()
}

// BytesPosition is a half-open byte interval in container bytes,
// optionally tagged with a Class identifying it as header or body
// data. A nil-headers, URL-less BytesPosition is the intermediate
// representation produced by a search engine before the dispatcher
// turns it into a Url.
type BytesPosition struct {
	Start uint64
	End   uint64
	Class *Class

	// Inline, if non-nil, marks this position as a synthetic
	// in-memory payload (the BGZF EOF marker, or a Crypt4GH
	// rewritten header) rather than a range to fetch from Storage.
	Inline []byte
}

// WithStart returns the BytesPosition with Start set to v.
func (p BytesPosition) WithStart(v uint64) BytesPosition { p.Start = v; return p }

// WithEnd returns the BytesPosition with End set to v.
func (p BytesPosition) WithEnd(v uint64) BytesPosition { p.End = v; return p }

// WithClass returns the BytesPosition with Class set to c.
func (p BytesPosition) WithClass(c Class) BytesPosition { p.Class = &c; return p }

// classOrder fixes the primary sort key MergeAll uses to assemble the
// final url list: header bytes must precede the body regardless of
// their (always zero) byte offset relative to synthetic positions,
// and a synthetic terminator marker (tagged ClassBody explicitly,
// unlike the nil-Class real body chunks engines return) must trail
// everything else even though its own Start/End are zero too.
func classOrder(c *Class) int {
	if c == nil {
		return 1
	}
	if *c == ClassHeader {
		return 0
	}
	return 2
}

// mergeable reports whether a and b share a Class and their intervals
// touch or overlap, per the §3 BytesPosition algebra.
func mergeable(a, b BytesPosition) bool {
	if (a.Class == nil) != (b.Class == nil) {
		return false
	}
	if a.Class != nil && *a.Class != *b.Class {
		return false
	}
	return a.Start <= b.End && b.Start <= a.End
}

// MergeAll sorts positions by (class, start, end) and folds adjacent,
// mergeable positions, returning a canonical list: sorted and with no
// two elements mergeable. Inline (synthetic) positions are never
// merged with ranged positions or with each other, since each carries
// distinct literal bytes.
func MergeAll(positions []BytesPosition) []BytesPosition {
	if len(positions) == 0 {
		return nil
	}
	cp := make([]BytesPosition, len(positions))
	copy(cp, positions)
	sort.SliceStable(cp, func(i, j int) bool {
		if classOrder(cp[i].Class) != classOrder(cp[j].Class) {
			return classOrder(cp[i].Class) < classOrder(cp[j].Class)
		}
		if cp[i].Start != cp[j].Start {
			return cp[i].Start < cp[j].Start
		}
		return cp[i].End < cp[j].End
	})

	out := make([]BytesPosition, 0, len(cp))
	for _, p := range cp {
		if len(out) == 0 || p.Inline != nil || out[len(out)-1].Inline != nil || !mergeable(out[len(out)-1], p) {
			out = append(out, p)
			continue
		}
		last := &out[len(out)-1]
		if p.Start < last.Start {
			last.Start = p.Start
		}
		if p.End > last.End {
			last.End = p.End
		}
	}
	return out
}

// RangeHeader returns the HTTP Range header value for p: an inclusive
// byte range per RFC 7233.
func (p BytesPosition) RangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", p.Start, p.End-1)
}

// Headers maps HTTP header names to comma-joined values, carried on
// a Url.
type Headers map[string]string

// Url is one entry in a Response's ordered url list. A Url with a
// non-empty URL field (beginning "data:") carries its payload inline,
// base64-encoded, and has no Headers.
type Url struct {
	URL     string `json:"url"`
	Headers Headers `json:"headers,omitempty"`
	Class   *Class  `json:"class,omitempty"`
}

// DataURL returns a Url carrying payload inline as a base64-encoded
// "data:" URL of the given Class.
func DataURL(payload []byte, class Class) Url {
	c := class
	return Url{
		URL:   "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(payload),
		Class: &c,
	}
}

// Response is the final result of resolving a Query: a Format and an
// ordered list of Urls whose concatenated bodies reconstruct a valid
// file of that Format covering the requested region.
type Response struct {
	Format Format `json:"format"`
	Urls   []Url  `json:"urls"`
}
