package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"io"
	"testing"
)

// fakeOpener serves in-memory ciphertext parts keyed by index, the test
// double for cache.ArchiveOpener.
type fakeOpener struct {
	parts map[int64][]byte
}

func (f *fakeOpener) OpenPart(index int64) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.parts[index])), nil
}

// referenceEncrypt builds ciphertext and tag with the stdlib's all-in-one
// GCM, the reference implementation against which the streaming decryptor
// is checked.
func referenceEncrypt(t *testing.T, key, iv, plaintext []byte) (ciphertext, tag []byte) {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		t.Fatalf("cipher.NewGCM: %v", err)
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	return sealed[:len(sealed)-gcm.Overhead()], sealed[len(sealed)-gcm.Overhead():]
}

func splitInto(ciphertext []byte, sizes []int) map[int64][]byte {
	parts := make(map[int64][]byte)
	offset := 0
	for i, size := range sizes {
		parts[int64(i)] = ciphertext[offset : offset+size]
		offset += size
	}
	return parts
}

func indicesFor(sizes []int) []int64 {
	indices := make([]int64, len(sizes))
	for i := range sizes {
		indices[i] = int64(i)
	}
	return indices
}

func TestStreamDecrypt_SinglePart(t *testing.T) {
	key := sha256.Sum256([]byte("passphrase"))
	iv := make([]byte, 12)
	plaintext := []byte("hello")

	ciphertext, tag := referenceEncrypt(t, key[:], iv, plaintext)

	opener := &fakeOpener{parts: splitInto(ciphertext, []int{len(ciphertext)})}
	var out bytes.Buffer
	if err := StreamDecrypt(indicesFor([]int{len(ciphertext)}), opener, key[:], iv, tag, &out); err != nil {
		t.Fatalf("StreamDecrypt: %v", err)
	}
	if out.String() != "hello" {
		t.Fatalf("got %q, want %q", out.String(), "hello")
	}
}

func TestStreamDecrypt_TwoPartsSplitMidBlock(t *testing.T) {
	key := sha256.Sum256([]byte("another passphrase"))
	iv := []byte("123456789012")
	plaintext := make([]byte, 20)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	ciphertext, tag := referenceEncrypt(t, key[:], iv, plaintext)

	sizes := []int{7, 13}
	opener := &fakeOpener{parts: splitInto(ciphertext, sizes)}
	var out bytes.Buffer
	if err := StreamDecrypt(indicesFor(sizes), opener, key[:], iv, tag, &out); err != nil {
		t.Fatalf("StreamDecrypt: %v", err)
	}
	if !bytes.Equal(out.Bytes(), plaintext) {
		t.Fatalf("round-trip mismatch: got %x, want %x", out.Bytes(), plaintext)
	}
}

func TestStreamDecrypt_ZeroLengthCiphertext(t *testing.T) {
	key := sha256.Sum256([]byte("zero"))
	iv := make([]byte, 12)

	ciphertext, tag := referenceEncrypt(t, key[:], iv, nil)
	if len(ciphertext) != 0 {
		t.Fatalf("expected zero-length ciphertext, got %d bytes", len(ciphertext))
	}

	opener := &fakeOpener{parts: map[int64][]byte{0: {}}}
	var out bytes.Buffer
	if err := StreamDecrypt([]int64{0}, opener, key[:], iv, tag, &out); err != nil {
		t.Fatalf("StreamDecrypt: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected empty plaintext, got %d bytes", out.Len())
	}
}

func TestStreamDecrypt_TamperedPartFailsTag(t *testing.T) {
	key := sha256.Sum256([]byte("tamper"))
	iv := []byte("abcdefghijkl")
	plaintext := bytes.Repeat([]byte("x"), 40)

	ciphertext, tag := referenceEncrypt(t, key[:], iv, plaintext)

	sizes := []int{20, 20}
	parts := splitInto(ciphertext, sizes)
	tampered := append([]byte(nil), parts[1]...)
	tampered[0] ^= 0x01
	parts[1] = tampered

	opener := &fakeOpener{parts: parts}
	var out bytes.Buffer
	err := StreamDecrypt(indicesFor(sizes), opener, key[:], iv, tag, &out)
	if err != ErrAuthTagMismatch {
		t.Fatalf("expected ErrAuthTagMismatch, got %v", err)
	}
}

func TestStreamDecrypt_TamperedTagFails(t *testing.T) {
	key := sha256.Sum256([]byte("tag-tamper"))
	iv := make([]byte, 12)
	plaintext := []byte("some plaintext bytes")

	ciphertext, tag := referenceEncrypt(t, key[:], iv, plaintext)
	badTag := append([]byte(nil), tag...)
	badTag[0] ^= 0x01

	opener := &fakeOpener{parts: splitInto(ciphertext, []int{len(ciphertext)})}
	var out bytes.Buffer
	err := StreamDecrypt(indicesFor([]int{len(ciphertext)}), opener, key[:], iv, badTag, &out)
	if err != ErrAuthTagMismatch {
		t.Fatalf("expected ErrAuthTagMismatch, got %v", err)
	}
}

func TestStreamDecrypt_InvalidLengths(t *testing.T) {
	key := make([]byte, 16) // wrong size
	iv := make([]byte, 12)
	tag := make([]byte, 16)
	opener := &fakeOpener{parts: map[int64][]byte{}}
	var out bytes.Buffer
	if err := StreamDecrypt(nil, opener, key, iv, tag, &out); err == nil {
		t.Fatal("expected error for wrong-size key")
	}
}
