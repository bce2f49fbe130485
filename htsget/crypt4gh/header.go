// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crypt4gh

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/biogo/htsget/htsget"
)

var headerMagic = [8]byte{'c', 'r', 'y', 'p', 't', '4', 'g', 'h'}

const headerVersion = 1

const headerInfoLen = 8 + 4 + 4 // magic + version + packets_count

const (
	packetTypeDataEncryptionParameters = 0
	packetTypeDataEditList             = 1
)

const encryptionMethodX25519Chacha20Poly1305 = 0

// Keys holds the X25519 key material used to encrypt a rewritten
// Crypt4GH header packet: the server's own private key (so the
// recipient can perform the matching key exchange) and the requesting
// client's public key. Both are treated as opaque immutable byte
// arrays, cloned into the builder rather than referenced (spec §9).
type Keys struct {
	SenderPrivateKey   [32]byte
	RecipientPublicKey [32]byte
}

// HeaderInfo is the fixed 16-byte Crypt4GH container preamble.
type HeaderInfo struct {
	Version      uint32
	PacketsCount uint32
}

// ReadHeaderInfo parses the magic and HeaderInfo fields from the
// start of a Crypt4GH container.
func ReadHeaderInfo(r io.Reader) (HeaderInfo, error) {
	var buf [headerInfoLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return HeaderInfo{}, htsget.Crypt4GHErrorf(err, "reading Crypt4GH header preamble")
	}
	if [8]byte(buf[:8]) != headerMagic {
		return HeaderInfo{}, htsget.Crypt4GHErrorf(nil, "not a Crypt4GH container: bad magic")
	}
	return HeaderInfo{
		Version:      binary.LittleEndian.Uint32(buf[8:12]),
		PacketsCount: binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

// ReadRawPackets reads count length-prefixed header packets verbatim,
// without decrypting them; callers retain these bytes unmodified in
// the rewritten header (spec §4.6 step 4b).
func ReadRawPackets(r io.Reader, count uint32) (packets [][]byte, err error) {
	packets = make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, htsget.Crypt4GHErrorf(err, "reading Crypt4GH packet length")
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])
		if length < 4 {
			return nil, htsget.Crypt4GHErrorf(nil, "Crypt4GH packet length %d too small", length)
		}
		body := make([]byte, length)
		copy(body, lenBuf[:])
		if _, err := io.ReadFull(r, body[4:]); err != nil {
			return nil, htsget.Crypt4GHErrorf(err, "reading Crypt4GH packet body")
		}
		packets = append(packets, body)
	}
	return packets, nil
}

// HasEditListPacket reports whether any of packets is already a
// data-edit-list packet, trying to decrypt each with serverPrivate (the
// key this resolver holds as the original encryption's recipient). A
// packet this resolver cannot open is assumed to be addressed to a
// different recipient and is not a hit. Wiring this check before
// RewriteHeader enforces the spec §4.6 precondition that the source
// must not already carry an edit list.
func HasEditListPacket(serverPrivate [32]byte, packets [][]byte) bool {
	for _, packet := range packets {
		if len(packet) < 4+4+32+12+16 {
			continue
		}
		body := packet[4:]
		method := binary.LittleEndian.Uint32(body[0:4])
		if method != encryptionMethodX25519Chacha20Poly1305 {
			continue
		}
		var senderPublic [32]byte
		copy(senderPublic[:], body[4:36])
		nonce := body[36:48]
		sealed := body[48:]

		key, err := deriveSharedKey(serverPrivate, senderPublic)
		if err != nil {
			continue
		}
		aead, err := chacha20poly1305.New(key[:])
		if err != nil {
			continue
		}
		plain, err := aead.Open(nil, nonce, sealed, nil)
		if err != nil {
			continue
		}
		if len(plain) >= 4 && binary.LittleEndian.Uint32(plain[0:4]) == packetTypeDataEditList {
			return true
		}
	}
	return false
}

// deriveSharedKey performs the X25519 key exchange and reduces the
// shared secret to a symmetric key via BLAKE2b, in the same spirit as
// the reference Crypt4GH implementation's key derivation.
func deriveSharedKey(senderPrivate, recipientPublic [32]byte) ([32]byte, error) {
	raw, err := curve25519.X25519(senderPrivate[:], recipientPublic[:])
	if err != nil {
		var zero [32]byte
		return zero, htsget.Crypt4GHErrorf(err, "X25519 key exchange failed")
	}
	return blake2b.Sum256(raw), nil
}

// EncryptEditListPacket builds the wire form of a Crypt4GH data
// edit-list header packet: packet_length | encryption_method |
// sender_public_key | nonce | ChaCha20-Poly1305(packet_type ||
// num_lengths || lengths...).
func EncryptEditListPacket(keys Keys, edits []uint64) ([]byte, error) {
	var senderPublic [32]byte
	raw, err := curve25519.X25519(keys.SenderPrivateKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, htsget.Crypt4GHErrorf(err, "deriving sender public key")
	}
	copy(senderPublic[:], raw)

	key, err := deriveSharedKey(keys.SenderPrivateKey, keys.RecipientPublicKey)
	if err != nil {
		return nil, err
	}

	plain := make([]byte, 4+8+8*len(edits))
	binary.LittleEndian.PutUint32(plain[0:4], packetTypeDataEditList)
	binary.LittleEndian.PutUint64(plain[4:12], uint64(len(edits)))
	for i, v := range edits {
		binary.LittleEndian.PutUint64(plain[12+8*i:20+8*i], v)
	}

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, htsget.Crypt4GHErrorf(err, "constructing ChaCha20-Poly1305 AEAD")
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, htsget.Crypt4GHErrorf(err, "generating packet nonce")
	}
	sealed := aead.Seal(nil, nonce, plain, nil)

	body := make([]byte, 4+32+len(nonce)+len(sealed))
	binary.LittleEndian.PutUint32(body[0:4], encryptionMethodX25519Chacha20Poly1305)
	copy(body[4:36], senderPublic[:])
	copy(body[36:36+len(nonce)], nonce)
	copy(body[36+len(nonce):], sealed)

	packet := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(packet[0:4], uint32(len(packet)))
	copy(packet[4:], body)
	return packet, nil
}

// RewriteHeader builds a full replacement Crypt4GH header: the
// original HeaderInfo with packets_count incremented, every original
// packet retained verbatim, and a new encrypted edit-list packet
// appended (spec §4.6 step 4).
func RewriteHeader(originalInfo HeaderInfo, originalPackets [][]byte, keys Keys, edits []uint64) ([]byte, error) {
	editPacket, err := EncryptEditListPacket(keys, edits)
	if err != nil {
		return nil, err
	}

	packetsLen := 0
	for _, p := range originalPackets {
		packetsLen += len(p)
	}
	out := make([]byte, 0, headerInfoLen+packetsLen+len(editPacket))
	out = append(out, headerMagic[:]...)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], originalInfo.Version)
	out = append(out, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], originalInfo.PacketsCount+1)
	out = append(out, u32[:]...)
	for _, p := range originalPackets {
		out = append(out, p...)
	}
	out = append(out, editPacket...)
	return out, nil
}
