// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/biogo/htsget/htsget/crypt4gh"
)

// buildContainer assembles a minimal, real Crypt4GH container from
// scratch (header with one data_encryption_parameters packet, one
// data block), using only the protocol's public wire-format constants
// and standard X25519/ChaCha20-Poly1305 primitives, so the Crypt4GH
// Backend wrapper can be exercised against a genuine ciphertext
// payload rather than a mock.
func buildContainer(t *testing.T, plaintext []byte) (container []byte, serverPriv [32]byte) {
	t.Helper()

	var senderPriv [32]byte
	_, err := rand.Read(senderPriv[:])
	require.NoError(t, err)
	_, err = rand.Read(serverPriv[:])
	require.NoError(t, err)

	senderPubRaw, err := curve25519.X25519(senderPriv[:], curve25519.Basepoint)
	require.NoError(t, err)
	serverPubRaw, err := curve25519.X25519(serverPriv[:], curve25519.Basepoint)
	require.NoError(t, err)
	var senderPub, serverPub [32]byte
	copy(senderPub[:], senderPubRaw)
	copy(serverPub[:], serverPubRaw)

	sharedRaw, err := curve25519.X25519(senderPriv[:], serverPub[:])
	require.NoError(t, err)
	sharedKey := blake2b.Sum256(sharedRaw)

	var dataKey [32]byte
	_, err = rand.Read(dataKey[:])
	require.NoError(t, err)

	// packet_type(0) || data_key(32)
	plain := make([]byte, 4+32)
	copy(plain[4:], dataKey[:])

	aead, err := chacha20poly1305.New(sharedKey[:])
	require.NoError(t, err)
	nonce := make([]byte, chacha20poly1305.NonceSize)
	_, err = rand.Read(nonce)
	require.NoError(t, err)
	sealed := aead.Seal(nil, nonce, plain, nil)

	// encryption_method(0) || sender_public_key || nonce || sealed
	body := make([]byte, 4+32+len(nonce)+len(sealed))
	copy(body[4:36], senderPub[:])
	copy(body[36:36+len(nonce)], nonce)
	copy(body[36+len(nonce):], sealed)

	packet := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(packet[0:4], uint32(len(packet)))
	copy(packet[4:], body)

	var header bytes.Buffer
	header.WriteString("crypt4gh")
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], 1) // version
	header.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], 1) // packets_count
	header.Write(u32[:])
	header.Write(packet)

	dataAEAD, err := chacha20poly1305.New(dataKey[:])
	require.NoError(t, err)
	blockNonce := make([]byte, chacha20poly1305.NonceSize)
	_, err = rand.Read(blockNonce)
	require.NoError(t, err)
	sealedData := dataAEAD.Seal(nil, blockNonce, plaintext, nil)

	var out bytes.Buffer
	out.Write(header.Bytes())
	out.Write(blockNonce)
	out.Write(sealedData)
	return out.Bytes(), serverPriv
}

func TestCrypt4GHGetDecryptsRange(t *testing.T) {
	plaintext := []byte("the quick brown fox jumps over the lazy dog, thirty-six bytes more")
	container, serverPriv := buildContainer(t, plaintext)

	dir := t.TempDir()
	writeTestFile(t, dir, "sample.bam.c4gh", container)
	local := NewLocal(dir, nil)

	wrapped := NewCrypt4GH(local, crypt4gh.Keys{SenderPrivateKey: serverPriv})

	rc, err := wrapped.Get(ctx, "sample.bam.c4gh", ByteRange{Start: 4, End: 9})
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, string(plaintext[4:9]), string(got))
}

func TestCrypt4GHGetDecryptsUnboundedRange(t *testing.T) {
	plaintext := []byte("another plaintext payload for the unbounded read path")
	container, serverPriv := buildContainer(t, plaintext)

	dir := t.TempDir()
	writeTestFile(t, dir, "sample.bam.c4gh", container)
	local := NewLocal(dir, nil)

	wrapped := NewCrypt4GH(local, crypt4gh.Keys{SenderPrivateKey: serverPriv})

	rc, err := wrapped.Get(ctx, "sample.bam.c4gh", ByteRange{Unbounded: true})
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, string(plaintext), string(got))
}

func TestCrypt4GHGetWrongKeyFails(t *testing.T) {
	plaintext := []byte("secret bytes")
	container, _ := buildContainer(t, plaintext)

	dir := t.TempDir()
	writeTestFile(t, dir, "sample.bam.c4gh", container)
	local := NewLocal(dir, nil)

	var wrongKey [32]byte
	_, err := rand.Read(wrongKey[:])
	require.NoError(t, err)
	wrapped := NewCrypt4GH(local, crypt4gh.Keys{SenderPrivateKey: wrongKey})

	_, err = wrapped.Get(ctx, "sample.bam.c4gh", ByteRange{Unbounded: true})
	require.Error(t, err)
}

func TestCrypt4GHHeadAndRangeURLPassThrough(t *testing.T) {
	plaintext := []byte("passthrough check")
	container, serverPriv := buildContainer(t, plaintext)

	dir := t.TempDir()
	writeTestFile(t, dir, "sample.bam.c4gh", container)
	local := NewLocal(dir, nil)
	wrapped := NewCrypt4GH(local, crypt4gh.Keys{SenderPrivateKey: serverPriv})

	size, err := wrapped.Head(ctx, "sample.bam.c4gh")
	require.NoError(t, err)
	assert.EqualValues(t, len(container), size)

	u, headers, err := wrapped.RangeURL(ctx, "sample.bam.c4gh", ByteRange{Start: 0, End: 10}, nil)
	require.NoError(t, err)
	assert.Contains(t, u, "sample.bam.c4gh")
	assert.Equal(t, "bytes=0-9", headers["Range"])
}
