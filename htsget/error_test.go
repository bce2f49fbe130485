// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package htsget

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindConstructors(t *testing.T) {
	cases := []struct {
		err  *Error
		kind Kind
	}{
		{NotFoundf("missing %s", "x"), NotFound},
		{UnsupportedFormatf("bad %s", "x"), UnsupportedFormat},
		{InvalidInputf("bad %s", "x"), InvalidInput},
		{InvalidRangef("bad %s", "x"), InvalidRange},
		{IOErrorf(nil, "bad %s", "x"), IoError},
		{ParseErrorf(nil, "bad %s", "x"), ParseError},
		{Crypt4GHErrorf(nil, "bad %s", "x"), Crypt4GHError},
		{InternalErrorf("bad %s", "x"), InternalError},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, c.err.Kind)
		assert.Contains(t, c.err.Error(), "bad x")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("backend exploded")
	err := IOErrorf(cause, "fetching key")
	assert.ErrorIs(t, err, cause)

	var herr *Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, IoError, herr.Kind)
	assert.Contains(t, err.Error(), "backend exploded")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "NotFound", NotFound.String())
	assert.Equal(t, "InternalError", InternalError.String())
	assert.Equal(t, "Crypt4GHError", Crypt4GHError.String())
}
