package keystore

import (
	"crypto/rand"     // Nonce generation
	"encoding/base64" // Ciphertext encoding
	"errors"          // Error values

	"golang.org/x/crypto/bcrypt"           // Passphrase verification hash
	"golang.org/x/crypto/chacha20poly1305" // AEAD for sealed credentials
	"golang.org/x/crypto/scrypt"           // Key derivation from the passphrase
)

// scrypt parameters; changing them invalidates existing ciphertexts
const (
	saltSize = 16
	scryptN  = 1 << 15
	scryptR  = 8
	scryptP  = 1
)

var ErrCorrupt = errors.New("keystore: ciphertext corrupt or sealed with a different passphrase")

// Vault seals and opens connector credentials. Accounts persist only sealed
// payloads; the plaintext exists in memory while a connector is constructed
// or an explicit user-initiated export runs.
type Vault struct {
	passphrase     []byte // Key derivation input, combined with a per-seal salt
	passphraseHash []byte // bcrypt hash for unlock verification
}

// New creates a vault around the passphrase. The AEAD key is derived per seal
// with a fresh salt carried inside the ciphertext, so two vaults opened with
// the same passphrase interoperate without sharing derived state.
func New(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, errors.New("keystore: empty passphrase")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &Vault{passphrase: []byte(passphrase), passphraseHash: hash}, nil
}

// deriveKey stretches the passphrase with the given salt
func (v *Vault) deriveKey(salt []byte) ([]byte, error) {
	return scrypt.Key(v.passphrase, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
}

// Verify reports whether the given passphrase matches the vault's
func (v *Vault) Verify(passphrase string) bool {
	return bcrypt.CompareHashAndPassword(v.passphraseHash, []byte(passphrase)) == nil
}

// Seal encrypts a credential payload for storage
func (v *Vault) Seal(plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key, err := v.deriveKey(salt)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	// Ciphertext layout: salt || nonce || sealed payload
	out := make([]byte, 0, saltSize+aead.NonceSize()+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a payload previously produced by Seal
func (v *Vault) Open(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrCorrupt
	}
	if len(raw) < saltSize {
		return nil, ErrCorrupt
	}
	key, err := v.deriveKey(raw[:saltSize])
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(raw) < saltSize+aead.NonceSize() {
		return nil, ErrCorrupt
	}
	nonce, ct := raw[saltSize:saltSize+aead.NonceSize()], raw[saltSize+aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrCorrupt
	}
	return plaintext, nil
}
