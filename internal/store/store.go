// Package store implements the persistent-store adapter from spec §4.3: it
// loads and saves the opaque binary blob owned by the transport runtime,
// optionally wrapped in a passphrase-derived encryption envelope detected
// by a magic prefix.
package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

// magic mirrors the 8-byte prefix original ratox used to mark an encrypted
// save file (TOX_ENC_SAVE_MAGIC_NUMBER = "toxEsave"), so a plain-vs-
// encrypted save can be told apart before deciding whether to prompt for a
// passphrase.
var magic = [8]byte{'t', 'o', 'x', 'E', 's', 'a', 'v', 'e'}

const (
	saltSize = 16
	keySize  = 32
)

// Adapter owns the save file path and, once loaded, the cached passphrase.
// It is the only component that ever holds the passphrase in memory.
type Adapter struct {
	path       string
	wantEncrypt bool
	passphrase []byte
	log        logrus.FieldLogger
}

// New creates an adapter for the save file at path. wantEncrypt reflects
// the operator's -E/-e flag choice.
func New(path string, wantEncrypt bool, log logrus.FieldLogger) *Adapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{path: path, wantEncrypt: wantEncrypt, log: log}
}

// PassphrasePrompter supplies a passphrase, read from a terminal with echo
// disabled. Acquisition itself is out of scope (spec §1); the adapter only
// calls this at startup, before the event loop begins.
type PassphrasePrompter func(confirm bool) ([]byte, error)

// Load reads the save file. If it is absent and encryption was requested,
// prompt is called once with confirm=true to establish a new passphrase and
// Load returns an empty blob. If present, the magic prefix decides whether
// to decrypt (prompting once, confirm=false) or read it plain. A mismatch
// between what was requested and what was found is logged once and the
// next Save writes the requested form: a plaintext file with encryption
// requested prompts once with confirm=true for the new passphrase, and an
// encrypted file without encryption requested is re-saved unencrypted.
func (a *Adapter) Load(prompt PassphrasePrompter) ([]byte, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("store: read %s: %w", a.path, err)
		}
		if a.wantEncrypt {
			pass, perr := prompt(true)
			if perr != nil {
				return nil, fmt.Errorf("store: prompt for new passphrase: %w", perr)
			}
			a.passphrase = pass
		}
		a.log.WithField("path", a.path).Info("no existing save file, starting fresh")
		return nil, nil
	}

	if isEncrypted(data) {
		pass, perr := prompt(false)
		if perr != nil {
			return nil, fmt.Errorf("store: prompt for passphrase: %w", perr)
		}
		a.passphrase = pass
		plain, derr := decrypt(data, pass)
		if derr != nil {
			return nil, fmt.Errorf("store: decrypt %s: %w", a.path, derr)
		}
		if !a.wantEncrypt {
			a.log.Warn("save file is encrypted but encryption was not requested; will re-save unencrypted")
		}
		return plain, nil
	}

	if a.wantEncrypt {
		a.log.Warn("save file is plaintext but encryption was requested; will re-save encrypted")
		pass, perr := prompt(true)
		if perr != nil {
			return nil, fmt.Errorf("store: prompt for new passphrase: %w", perr)
		}
		a.passphrase = pass
	}
	return data, nil
}

// Save serializes data (optionally wrapping it in the encryption envelope
// using the cached passphrase) and writes it atomically: to a sibling temp
// file, fsynced, then renamed over the target. Spec §9 calls this out as
// the recommended hardening over the original's truncate-and-write.
func (a *Adapter) Save(data []byte) error {
	out := data
	if a.wantEncrypt {
		if len(a.passphrase) == 0 {
			return errors.New("store: encryption requested but no passphrase cached")
		}
		enc, err := encrypt(data, a.passphrase)
		if err != nil {
			return fmt.Errorf("store: encrypt: %w", err)
		}
		out = enc
	}

	dir := filepath.Dir(a.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(a.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return fmt.Errorf("store: chmod temp: %w", err)
	}
	if err := os.Rename(tmpPath, a.path); err != nil {
		return fmt.Errorf("store: rename %s -> %s: %w", tmpPath, a.path, err)
	}

	a.log.WithFields(logrus.Fields{"path": a.path, "bytes": len(out), "encrypted": a.wantEncrypt}).Debug("save written")
	return nil
}

func isEncrypted(data []byte) bool {
	if len(data) < len(magic) {
		return false
	}
	for i, b := range magic {
		if data[i] != b {
			return false
		}
	}
	return true
}

// encrypt wraps plain in magic || salt || secretbox-sealed(plain), the key
// derived from passphrase and salt via argon2id.
func encrypt(plain, passphrase []byte) ([]byte, error) {
	var salt [saltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	var key [keySize]byte
	copy(key[:], argon2.IDKey(passphrase, salt[:], 1, 64*1024, 4, keySize))

	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(magic)+saltSize+len(nonce)+len(plain)+secretbox.Overhead)
	out = append(out, magic[:]...)
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, plain, &nonce, &key)
	return out, nil
}

func decrypt(data, passphrase []byte) ([]byte, error) {
	rest := data[len(magic):]
	if len(rest) < saltSize+24 {
		return nil, errors.New("save file truncated")
	}
	var salt [saltSize]byte
	copy(salt[:], rest[:saltSize])
	rest = rest[saltSize:]

	var nonce [24]byte
	copy(nonce[:], rest[:24])
	sealed := rest[24:]

	var key [keySize]byte
	copy(key[:], argon2.IDKey(passphrase, salt[:], 1, 64*1024, 4, keySize))

	plain, ok := secretbox.Open(nil, sealed, &nonce, &key)
	if !ok {
		return nil, errors.New("decryption failed: wrong passphrase or corrupt file")
	}
	return plain, nil
}
