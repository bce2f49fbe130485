// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package search implements the per-format index-walking engines and
// the dispatcher that routes a Query to the right one.
package search

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/biogo/htsget/htsget"
	"github.com/biogo/htsget/htsget/crypt4gh"
	"github.com/biogo/htsget/htsget/storage"
)

// Search is the capability every format engine implements: locating
// the header bytes and the terminating container bytes (the BGZF EOF
// marker for BGZF formats, or the CRAM EOF container for CRAM).
// BGZF-specific format engines additionally implement BgzfSearch,
// modeling the "capability set, not inheritance" design: the BGZF
// binning-index walk is common code shared by BAM, VCF and BCF, while
// CRAM implements Search directly against its own container index.
type Search interface {
	// Header returns the Header-class BytesPosition(s) preceding
	// the records, and headerEnd, the byte offset immediately after
	// them (BAM uses it as the start of the unmapped-reads range when
	// the index records no unmapped offset).
	Header(ctx context.Context, st storage.Backend, q htsget.Query) (positions []htsget.BytesPosition, headerEnd int64, err error)

	// Terminator returns the Body-class BytesPosition(s) that must
	// close out any response for this format: the synthetic BGZF
	// EOF marker, or the ranged CRAM EOF container.
	Terminator(ctx context.Context, st storage.Backend, q htsget.Query) ([]htsget.BytesPosition, error)

	// Body returns the canonical, non-header, non-terminator
	// BytesPositions covering q's interval. It is not called for
	// Class == ClassHeader queries.
	Body(ctx context.Context, st storage.Backend, q htsget.Query, headerEnd int64) ([]htsget.BytesPosition, error)
}

// BgzfSearch refines Search with the operations specific to a
// BGZF-framed, binning-indexed format (BAM, VCF, BCF). The chunk
// translation those engines share (translateChunks) works on index
// chunks directly, not through this interface.
type BgzfSearch interface {
	Search

	// MaxSeqPosition returns the coordinate bound for reference
	// sequence name ref: the reference length for BAM, the CSI/tabix
	// maximum 0-based coordinate for VCF and BCF.
	MaxSeqPosition(ctx context.Context, st storage.Backend, q htsget.Query, ref string) (int, error)
}

// Dispatcher routes a Query to its format engine and assembles the
// final Response, per spec §4.5.
type Dispatcher struct {
	Engines map[htsget.Format]Search
	Storage storage.Backend
	Log     *logrus.Entry
}

// NewDispatcher returns a Dispatcher backed by st, wired with the
// standard BAM, CRAM, VCF and BCF engines.
func NewDispatcher(st storage.Backend, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		Storage: st,
		Log:     log,
		Engines: map[htsget.Format]Search{
			htsget.BAM:  &BAMEngine{},
			htsget.VCF:  &VCFEngine{},
			htsget.BCF:  &BCFEngine{},
			htsget.CRAM: &CRAMEngine{},
		},
	}
}

// Resolve implements the search dispatcher of spec §4.5.
func (d *Dispatcher) Resolve(ctx context.Context, q htsget.Query) (htsget.Response, error) {
	log := d.Log.WithFields(logrus.Fields{
		"request_id":     uuid.NewString(),
		"query_id":       q.ID,
		"format":         q.Format,
		"reference_name": q.ReferenceName,
		"class":          q.Class,
	})

	eng, ok := d.Engines[q.Format]
	if !ok {
		return htsget.Response{}, htsget.UnsupportedFormatf("no search engine registered for format %v", q.Format)
	}

	// Crypt4GH-wrapped objects are read plaintext through a decrypting
	// Storage wrapper so every engine's header/index/body parsing runs
	// exactly as it does for a plain object: they see the same layout
	// the index was built against. The ciphertext ranges actually
	// served come from a separate edit-list rewrite below, never from
	// this wrapper's URLs.
	engineStorage := d.Storage
	if q.ObjectType.Crypt4GH {
		engineStorage = storage.NewCrypt4GH(d.Storage, crypt4gh.Keys(q.ObjectType.Keys))
	}

	header, headerEnd, err := eng.Header(ctx, engineStorage, q)
	if err != nil {
		log.WithError(err).Debug("header read failed")
		return htsget.Response{}, err
	}

	var body []htsget.BytesPosition
	if q.Class != htsget.ClassHeader {
		body, err = eng.Body(ctx, engineStorage, q, headerEnd)
		if err != nil {
			log.WithError(err).Debug("body resolution failed")
			return htsget.Response{}, err
		}
	}

	if q.ObjectType.Crypt4GH {
		resp, err := d.resolveCrypt4GH(ctx, q, body)
		if err != nil {
			log.WithError(err).Debug("crypt4gh rewrite failed")
			return htsget.Response{}, err
		}
		log.WithField("url_count", len(resp.Urls)).Info("resolved query")
		return resp, nil
	}

	term, err := eng.Terminator(ctx, d.Storage, q)
	if err != nil {
		log.WithError(err).Debug("terminator resolution failed")
		return htsget.Response{}, err
	}

	var all []htsget.BytesPosition
	all = append(all, header...)
	all = append(all, body...)
	all = append(all, term...)

	canonical := htsget.MergeAll(all)

	urls, err := d.toUrls(ctx, q, canonical)
	if err != nil {
		return htsget.Response{}, err
	}

	log.WithField("url_count", len(urls)).Info("resolved query")
	return htsget.Response{Format: q.Format, Urls: urls}, nil
}

// resolveCrypt4GH builds the response for a Crypt4GH-wrapped query.
// body holds the plaintext-layout positions the engine found (the
// engine's own Header-class position is discarded, since the
// rewritten Crypt4GH header below replaces it); the format's own EOF
// marker is folded in by byte length rather than appended as an
// inline payload, since crypt4gh.Rewrite locates it within the real
// plaintext stream length it recovers from the ciphertext size.
func (d *Dispatcher) resolveCrypt4GH(ctx context.Context, q htsget.Query, body []htsget.BytesPosition) (htsget.Response, error) {
	tailLen := htsget.BGZFEOFLen
	if q.Format == htsget.CRAM {
		tailLen = htsget.CRAMEOFLen
	}

	key := q.DataKey()
	cipherSize, err := d.Storage.Head(ctx, key)
	if err != nil {
		return htsget.Response{}, err
	}
	rc, err := d.Storage.Get(ctx, key, storage.ByteRange{Unbounded: true})
	if err != nil {
		return htsget.Response{}, err
	}
	defer rc.Close()

	result, err := crypt4gh.Rewrite(rc, cipherSize, crypt4gh.Keys(q.ObjectType.Keys), body, uint64(tailLen))
	if err != nil {
		return htsget.Response{}, err
	}

	headerClass := htsget.ClassHeader
	urls := []htsget.Url{htsget.DataURL(result.Header, headerClass)}
	for _, p := range result.Positions {
		rng := storage.ByteRange{Start: p.Start, End: p.End}
		u, headers, err := d.Storage.RangeURL(ctx, key, rng, nil)
		if err != nil {
			return htsget.Response{}, err
		}
		url := htsget.Url{URL: u, Headers: headers}
		bodyClass := htsget.ClassBody
		if p.Class != nil {
			bodyClass = *p.Class
		}
		url.Class = &bodyClass
		urls = append(urls, url)
	}

	return htsget.Response{Format: q.Format, Urls: urls}, nil
}

// toUrls turns a canonical BytesPosition list into the Response's
// ordered Url list, per spec §4.5 step 3-4: each ranged position is
// resolved to a signed URL via Storage.RangeURL; each inline
// (synthetic) position becomes a base64 data: URL.
func (d *Dispatcher) toUrls(ctx context.Context, q htsget.Query, positions []htsget.BytesPosition) ([]htsget.Url, error) {
	key := q.DataKey()
	urls := make([]htsget.Url, 0, len(positions))
	for _, p := range positions {
		if p.Inline != nil {
			class := htsget.ClassBody
			if p.Class != nil {
				class = *p.Class
			}
			urls = append(urls, htsget.DataURL(p.Inline, class))
			continue
		}
		rng := storage.ByteRange{Start: p.Start, End: p.End}
		u, headers, err := d.Storage.RangeURL(ctx, key, rng, nil)
		if err != nil {
			return nil, err
		}
		url := htsget.Url{URL: u, Headers: headers}
		if p.Class != nil {
			c := *p.Class
			url.Class = &c
		}
		urls = append(urls, url)
	}
	return urls, nil
}
