// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crypt4gh

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biogo/htsget/htsget"
)

// foreignPacket builds a syntactically valid, but undecryptable-by-us,
// data_encryption_parameters packet: the wire shape Rewrite must skip
// over (ReadRawPackets) and fail to recognise as an edit list
// (HasEditListPacket), since it was addressed to a different
// recipient than keys.
func foreignPacket(t *testing.T) []byte {
	t.Helper()
	body := make([]byte, 4+32+12+16)
	binary.LittleEndian.PutUint32(body[0:4], encryptionMethodX25519Chacha20Poly1305)
	_, err := rand.Read(body[4:])
	require.NoError(t, err)

	packet := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(packet[0:4], uint32(len(packet)))
	copy(packet[4:], body)
	return packet
}

// TestRewriteEndToEnd exercises the full spec §4.6 pipeline against a
// minimal synthetic container: a header carrying one pre-existing
// (non-edit-list) packet, followed by a single partial data block.
// Rewrite never needs to decrypt the data body, only its total size,
// so the block content itself can be arbitrary.
func TestRewriteEndToEnd(t *testing.T) {
	keys := testKeys(t)
	original := foreignPacket(t)

	var header bytes.Buffer
	header.Write(headerMagic[:])
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], headerVersion)
	header.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], 1)
	header.Write(u32[:])
	header.Write(original)

	const plaintextLen = 200
	block := make([]byte, 12+plaintextLen+16) // nonce + ciphertext + tag
	_, err := rand.Read(block)
	require.NoError(t, err)

	cipherSize := int64(header.Len() + len(block))

	positions := []htsget.BytesPosition{{Start: 0, End: 100}}
	result, err := Rewrite(bytes.NewReader(header.Bytes()), cipherSize, keys, positions, 0)
	require.NoError(t, err)

	got, err := ReadHeaderInfo(bytes.NewReader(result.Header))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.PacketsCount)

	packets, err := ReadRawPackets(bytes.NewReader(result.Header[headerInfoLen:]), got.PacketsCount)
	require.NoError(t, err)
	require.Len(t, packets, 2)
	assert.Equal(t, original, packets[0])

	originalHeaderLen := uint64(header.Len())
	require.Len(t, result.Positions, 1)
	assert.Equal(t, originalHeaderLen, result.Positions[0].Start)
	assert.Equal(t, originalHeaderLen+uint64(len(block)), result.Positions[0].End)
}

// TestRewriteRejectsExistingEditList reproduces the spec §4.6
// precondition failure: a source that already carries an edit-list
// packet the server can decrypt must not be rewritten again.
func TestRewriteRejectsExistingEditList(t *testing.T) {
	keys, recipientPriv := testKeysWithRecipientPrivate(t)
	existing, err := EncryptEditListPacket(keys, []uint64{0, 100})
	require.NoError(t, err)

	var header bytes.Buffer
	header.Write(headerMagic[:])
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], headerVersion)
	header.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], 1)
	header.Write(u32[:])
	header.Write(existing)

	serverKeys := Keys{SenderPrivateKey: recipientPriv, RecipientPublicKey: keys.RecipientPublicKey}
	_, err = Rewrite(bytes.NewReader(header.Bytes()), int64(header.Len())+28, serverKeys, nil, 0)
	require.Error(t, err)
	var herr *htsget.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, htsget.Crypt4GHError, herr.Kind)
}
