package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/offloadhq/offload-client/internal/constants"
)

// ErrAuthTagMismatch is returned when the GCM authentication tag computed
// over the ciphertext does not match the manifest's auth_tag.
var ErrAuthTagMismatch = fmt.Errorf("auth_tag_mismatch")

// PartOpener opens one cached ciphertext part for reading, by ascending
// index. The streaming decryptor never reads parts out of order and never
// reads a part more than once.
type PartOpener interface {
	OpenPart(index int64) (io.ReadCloser, error)
}

// StreamDecrypt performs streaming AES-256-GCM decryption: it consumes the
// ordered parts from opener, writes plaintext to out as it goes, and
// authenticates the whole ciphertext stream in one GCM tag computed across
// the concatenation of all parts (never a per-part tag).
//
// indices must already be sorted ascending. key is 32 bytes, iv is
// 12 bytes and tag is 16 bytes (already validated and decoded by the
// caller from the manifest).
func StreamDecrypt(indices []int64, opener PartOpener, key, iv, tag []byte, out io.Writer) error {
	if len(key) != KeySize {
		return fmt.Errorf("crypto: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(iv) != 12 {
		return fmt.Errorf("invalid_iv: expected 12 bytes, got %d", len(iv))
	}
	if len(tag) != gcmBlockSize {
		return fmt.Errorf("invalid_auth_tag: expected 16 bytes, got %d", len(tag))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("crypto: failed to create AES cipher: %w", err)
	}

	// H = AES_K(0^128), the GHASH subkey.
	var zero, h [gcmBlockSize]byte
	block.Encrypt(h[:], zero[:])

	// J0 = IV || 0x00000001.
	var j0 [gcmBlockSize]byte
	copy(j0[:12], iv)
	j0[15] = 1

	// S = AES_K(J0), the tag mask.
	var s [gcmBlockSize]byte
	block.Encrypt(s[:], j0[:])

	// CTR keystream starts at inc32(J0). Go's stdlib CTR increments the
	// full 128-bit counter as a big-endian integer; since GCM never
	// processes enough blocks to overflow the low 32 bits into the IV
	// portion, this is exactly GCM's inc32 for any conforming input.
	icb := j0
	inc32(&icb)
	stream := cipher.NewCTR(block, icb[:])

	acc := newGHASH(h)

	var residual [gcmBlockSize]byte
	residualLen := 0
	var ciphertextBytes uint64

	window := make([]byte, constants.GCMWindowSize)

	for _, idx := range indices {
		r, err := opener.OpenPart(idx)
		if err != nil {
			return fmt.Errorf("crypto: failed to open part %d: %w", idx, err)
		}
		if err := streamPart(r, window, stream, acc, &residual, &residualLen, &ciphertextBytes, out); err != nil {
			r.Close()
			return err
		}
		if err := r.Close(); err != nil {
			return fmt.Errorf("crypto: failed to close part %d: %w", idx, err)
		}
	}

	//: pad and feed the final partial block, if any.
	if residualLen > 0 {
		var padded [gcmBlockSize]byte
		copy(padded[:], residual[:residualLen])
		acc.updateBlock(padded)
	}

	//: the length block. AAD bit-length is always 0 (no AAD).
	var lenBlock [gcmBlockSize]byte
	binary.BigEndian.PutUint64(lenBlock[8:], ciphertextBytes*8)
	acc.updateBlock(lenBlock)

	computed := acc.sum()
	xorBlock(&computed, &s)

	if subtle.ConstantTimeCompare(computed[:], tag) != 1 {
		return ErrAuthTagMismatch
	}
	return nil
}

// streamPart decrypts one cached part's bytes, windows at a time, updating
// the GHASH accumulator over full 16-byte blocks and carrying any
// remainder across window and part boundaries via residual.
func streamPart(r io.Reader, window []byte, stream cipher.Stream, acc *ghash, residual *[gcmBlockSize]byte, residualLen *int, ciphertextBytes *uint64, out io.Writer) error {
	for {
		n, readErr := r.Read(window)
		if n > 0 {
			chunk := window[:n]

			//: feed whole 16-byte blocks to GHASH, keep the
			// remainder buffered across reads.
			data := chunk
			for len(data) > 0 {
				need := gcmBlockSize - *residualLen
				if need > len(data) {
					need = len(data)
				}
				copy(residual[*residualLen:], data[:need])
				*residualLen += need
				data = data[need:]

				if *residualLen == gcmBlockSize {
					acc.updateBlock(*residual)
					*residualLen = 0
				}
			}

			//: decrypt into a fresh buffer and write, then count.
			decrypted := make([]byte, len(chunk))
			stream.XORKeyStream(decrypted, chunk)
			if _, err := out.Write(decrypted); err != nil {
				return fmt.Errorf("crypto: failed to write plaintext: %w", err)
			}
			*ciphertextBytes += uint64(n)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("crypto: failed to read part: %w", readErr)
		}
	}
}

// inc32 increments only the low 32 bits, big-endian, of a 128-bit block.
func inc32(block *[gcmBlockSize]byte) {
	ctr := binary.BigEndian.Uint32(block[12:16])
	ctr++
	binary.BigEndian.PutUint32(block[12:16], ctr)
}
