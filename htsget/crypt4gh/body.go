// Copyright ©2026 The htsget Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crypt4gh

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/biogo/htsget/htsget"
)

// DecodeSessionKeys decrypts every data_encryption_parameters packet
// (packet_type 0) among packets using serverPrivate, returning the
// bulk-data ChaCha20-Poly1305 keys they carry. A packet this resolver
// cannot open belongs to a different recipient and is skipped.
func DecodeSessionKeys(serverPrivate [32]byte, packets [][]byte) ([][32]byte, error) {
	var keys [][32]byte
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
		if len(plain) < 4+32 || binary.LittleEndian.Uint32(plain[0:4]) != packetTypeDataEncryptionParameters {
			continue
		}
		var dataKey [32]byte
		copy(dataKey[:], plain[len(plain)-32:])
		keys = append(keys, dataKey)
	}
	if len(keys) == 0 {
		return nil, htsget.Crypt4GHErrorf(nil, "no data_encryption_parameters packet could be opened with the configured key")
	}
	return keys, nil
}

// PlaintextReader decrypts a Crypt4GH data-block stream (each block a
// 12-byte nonce, up to BlockSize bytes of ChaCha20-Poly1305
// ciphertext, and a 16-byte tag) into the plaintext byte stream it
// encodes.
type PlaintextReader struct {
	src  io.Reader
	keys [][32]byte

	buf []byte
	err error
}

// NewPlaintextReader returns a reader over the plaintext bytes encoded
// by the Crypt4GH data-block stream src, trying each of keys in turn
// for every block (a file may carry more than one active session
// key across its lifetime).
func NewPlaintextReader(src io.Reader, keys [][32]byte) *PlaintextReader {
	return &PlaintextReader{src: src, keys: keys}
}

func (p *PlaintextReader) Read(out []byte) (int, error) {
	if len(p.buf) == 0 {
		if p.err != nil {
			return 0, p.err
		}
		if err := p.fill(); err != nil {
			p.err = err
			if len(p.buf) == 0 {
				return 0, err
			}
		}
	}
	n := copy(out, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *PlaintextReader) fill() error {
	wire := make([]byte, WireBlockSize)
	n, err := io.ReadFull(p.src, wire)
	if err != nil && err != io.ErrUnexpectedEOF {
		return err
	}
	wire = wire[:n]
	if n < 12+16 {
		if n == 0 {
			return io.EOF
		}
		return htsget.Crypt4GHErrorf(nil, "truncated Crypt4GH data block")
	}
	nonce := wire[:12]
	sealed := wire[12:]

	var lastErr error
	for _, key := range p.keys {
		aead, aeadErr := chacha20poly1305.New(key[:])
		if aeadErr != nil {
			lastErr = aeadErr
			continue
		}
		plain, openErr := aead.Open(nil, nonce, sealed, nil)
		if openErr != nil {
			lastErr = openErr
			continue
		}
		p.buf = plain
		if err == io.ErrUnexpectedEOF {
			return io.EOF
		}
		return nil
	}
	return htsget.Crypt4GHErrorf(lastErr, "no session key could decrypt a Crypt4GH data block")
}
