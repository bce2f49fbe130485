// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package search

import (
	"bufio"
	"compress/gzip"
	"io"
	"strconv"
	"strings"

	"github.com/biogo/htsget/htsget"
)

// craiRecord is one line of a CRAI index: the byte span of a CRAM
// slice and the reference interval it covers (spec §3).
type craiRecord struct {
	refID          int
	alignStart     int
	alignSpan      int
	containerStart int64
	sliceOffset    int64
	sliceSize      int64
}

// craiUnplaced is the ref_id CRAI uses for unplaced (unmapped) records.
const craiUnplaced = -1

// readCRAI parses a gzip-compressed, tab-separated CRAI index. No
// example in the retrieved corpus parses CRAI (it is absent from
// every htslib-derived package here); the six-column layout below is
// taken directly from the CRAM specification.
func readCRAI(r io.Reader) ([]craiRecord, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, htsget.ParseErrorf(err, "CRAI is not gzip-compressed")
	}
	defer gz.Close()

	var records []craiRecord
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 6 {
			return nil, htsget.ParseErrorf(nil, "malformed CRAI record: %q", line)
		}
		rec := craiRecord{}
		ints := make([]int64, 6)
		for i, f := range fields {
			v, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return nil, htsget.ParseErrorf(err, "malformed CRAI field %q", f)
			}
			ints[i] = v
		}
		rec.refID = int(ints[0])
		rec.alignStart = int(ints[1])
		rec.alignSpan = int(ints[2])
		rec.containerStart = ints[3]
		rec.sliceOffset = ints[4]
		rec.sliceSize = ints[5]
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, htsget.ParseErrorf(err, "reading CRAI")
	}
	return records, nil
}
