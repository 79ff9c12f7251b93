// Package patchseal wraps a finished patch in an optional encrypted,
// compressed container for publishers who ship patches over a channel
// they don't otherwise control the confidentiality of (SPEC_FULL.md
// §5.2). Sealing has no bearing on the patch wire format itself — it
// wraps the already-complete patch bytes from the outside, the same
// way the teacher's SecureFile wrapped arbitrary file payloads
// (secure_file.go's SaveEncrypted: encrypt, then compress).
//
// Adapted from the teacher's encryptor.go (salted-PBKDF2 AES-256-GCM)
// and compressor.go (gzip), generalized from a key+pepper pair
// configured once per Encryptor instance to a one-shot Seal/Unseal
// call pair, since a patch is a single complete artifact rather than a
// managed, repeatedly-rotated file store.
package patchseal

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/crdzbird/zipdelta/internal/zdstat"
)

const (
	saltSize      = 16
	keyIterations = 100000
	keyLength     = 32 // AES-256
)

// Seal encrypts patch with AES-256-GCM (key derived from key+pepper via
// PBKDF2-SHA256, salted per call) and gzip-compresses the result, in
// that order — matching the teacher's SaveEncrypted sequence. The
// returned bytes are self-contained: salt and nonce travel with the
// ciphertext, so Unseal needs only the same key and pepper.
func Seal(patch []byte, key, pepper string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, zdstat.Wrapf(err, "patchseal.Seal: generating salt")
	}
	gcm, err := newGCM(key, pepper, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, zdstat.Wrapf(err, "patchseal.Seal: generating nonce")
	}
	ciphertext := gcm.Seal(nil, nonce, patch, nil)

	encrypted := make([]byte, 0, saltSize+len(nonce)+len(ciphertext))
	encrypted = append(encrypted, salt...)
	encrypted = append(encrypted, nonce...)
	encrypted = append(encrypted, ciphertext...)

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(encrypted); err != nil {
		return nil, zdstat.Wrapf(err, "patchseal.Seal: writing gzip stream")
	}
	if err := gzw.Close(); err != nil {
		return nil, zdstat.Wrapf(err, "patchseal.Seal: closing gzip stream")
	}
	return compressed.Bytes(), nil
}

// Unseal reverses Seal: gzip-decompress, then split out the salt and
// nonce and AES-256-GCM-decrypt the remainder.
func Unseal(sealed []byte, key, pepper string) ([]byte, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(sealed))
	if err != nil {
		return nil, zdstat.Wrapf(err, "patchseal.Unseal: opening gzip stream")
	}
	defer gzr.Close()
	encrypted, err := io.ReadAll(gzr)
	if err != nil {
		return nil, zdstat.Wrapf(err, "patchseal.Unseal: reading gzip stream")
	}

	if len(encrypted) < saltSize {
		return nil, zdstat.Corruptf("patchseal.Unseal: sealed payload shorter than a salt")
	}
	salt := encrypted[:saltSize]
	rest := encrypted[saltSize:]

	gcm, err := newGCM(key, pepper, salt)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, zdstat.Corruptf("patchseal.Unseal: sealed payload shorter than a nonce")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	patch, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, zdstat.Wrapf(err, "patchseal.Unseal: decrypting")
	}
	return patch, nil
}

func newGCM(key, pepper string, salt []byte) (cipher.AEAD, error) {
	keyMaterial := append([]byte(key), []byte(pepper)...)
	derived := pbkdf2.Key(keyMaterial, salt, keyIterations, keyLength, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, zdstat.Wrapf(err, "patchseal: constructing AES cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, zdstat.Wrapf(err, "patchseal: constructing GCM")
	}
	return gcm, nil
}
