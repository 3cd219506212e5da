// secret.go: Per-application secret storage
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package secret encrypts credentials kept in configuration files.
//
// A random 256-bit master key is created on first use and stored hex encoded
// with 0600 permissions. Each application derives its own AES-256-GCM key
// from it with HKDF-SHA256, so a value encrypted for one application cannot
// be decrypted by another sharing the same key file.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// Prefix marks encrypted values. Values without it are treated as plaintext.
const Prefix = "enc:"

const keySize = 32

var (
	ErrKeyFile    = errors.New("secret: invalid key file")
	ErrCiphertext = errors.New("secret: malformed or tampered ciphertext")
)

// Store encrypts and decrypts values for one application.
type Store struct {
	keyPath string
	app     string

	once sync.Once
	aead cipher.AEAD
	err  error
}

// DefaultKeyPath is <user config dir>/<app>/secret.key.
func DefaultKeyPath(app string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, app, "secret.key"), nil
}

// New returns a store using the master key at keyPath, scoped to app.
// The key file is only read (or created) on first use.
func New(keyPath, app string) *Store {
	return &Store{keyPath: keyPath, app: app}
}

// IsEncrypted reports whether v carries the encrypted-value prefix.
func IsEncrypted(v string) bool {
	return strings.HasPrefix(v, Prefix)
}

// Encrypt returns Prefix + base64(nonce || ciphertext). Empty stays empty.
func (s *Store) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	aead, err := s.cipher()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), []byte(s.app))
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without Prefix are returned unchanged so
// configurations written before encryption keep working.
func (s *Store) Decrypt(v string) (string, error) {
	if v == "" || !IsEncrypted(v) {
		return v, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(v, Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	aead, err := s.cipher()
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrCiphertext
	}
	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], []byte(s.app))
	if err != nil {
		return "", ErrCiphertext
	}
	return string(plain), nil
}

func (s *Store) cipher() (cipher.AEAD, error) {
	s.once.Do(func() {
		master, err := loadOrCreateKey(s.keyPath)
		if err != nil {
			s.err = err
			return
		}
		appKey := make([]byte, keySize)
		if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte("mnemo/"+s.app)), appKey); err != nil {
			s.err = fmt.Errorf("derive key: %w", err)
			return
		}
		block, err := aes.NewCipher(appKey)
		if err != nil {
			s.err = fmt.Errorf("create cipher: %w", err)
			return
		}
		s.aead, s.err = cipher.NewGCM(block)
	})
	return s.aead, s.err
}

func loadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- key path chosen by the application
	if err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil || len(key) != keySize {
			return nil, fmt.Errorf("%w: %s", ErrKeyFile, path)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600) // #nosec G304 -- key path chosen by the application
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			// Another process won the race; use its key.
			return loadOrCreateKey(path)
		}
		return nil, fmt.Errorf("create key file: %w", err)
	}
	_, werr := f.WriteString(hex.EncodeToString(key))
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write key file: %w", errors.Join(werr, cerr))
	}
	return key, nil
}
