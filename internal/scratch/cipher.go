package scratch

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// streamCipher wraps the teacher's salted-PBKDF2-derived AES key
// (encryptor.go) around a CTR keystream instead of GCM, since scratch
// spill is written and read back as one continuous stream rather than
// one-shot sealed messages. The key is random per blob and never
// persisted — this is at-rest hygiene for the spill file while it
// exists, not a secret the caller ever needs to supply or recover.
//
// encryptStream holds the running keystream position across successive
// Write calls, so a sequence of chunks encrypts identically to one call
// over their concatenation. decrypt always starts a fresh stream from
// the same (block, iv) because Bytes() reads the whole spilled file back
// in a single pass.
type streamCipher struct {
	block cipher.Block
	iv    []byte

	encryptStream cipher.Stream
}

const (
	scratchSaltSize      = 16
	scratchKeyIterations = 10000
	scratchKeyLength     = 32
)

func newStreamCipher() *streamCipher {
	randomKey := make([]byte, 32)
	_, _ = rand.Read(randomKey)
	salt := make([]byte, scratchSaltSize)
	_, _ = rand.Read(salt)
	derived := pbkdf2.Key(randomKey, salt, scratchKeyIterations, scratchKeyLength, sha256.New)

	block, err := aes.NewCipher(derived)
	if err != nil {
		// AES-256 key of the correct length never fails to construct a
		// cipher.Block; treat as unreachable rather than threading an
		// error through every scratch.Blob call site.
		panic(err)
	}
	iv := make([]byte, aes.BlockSize)
	_, _ = rand.Read(iv)
	return &streamCipher{
		block:         block,
		iv:            iv,
		encryptStream: cipher.NewCTR(block, iv),
	}
}

// encrypt advances the shared encryption keystream by len(plaintext).
func (c *streamCipher) encrypt(plaintext []byte) []byte {
	out := make([]byte, len(plaintext))
	c.encryptStream.XORKeyStream(out, plaintext)
	return out
}

// decrypt starts a fresh keystream from the beginning, matching a
// one-shot read of everything encrypt has produced so far.
func (c *streamCipher) decrypt(ciphertext []byte) []byte {
	out := make([]byte, len(ciphertext))
	cipher.NewCTR(c.block, c.iv).XORKeyStream(out, ciphertext)
	return out
}
