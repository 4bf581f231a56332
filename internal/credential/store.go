package credential

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrNotFound is returned by Load when no value is stored under the key.
var ErrNotFound = errors.New("credential not found")

// Store is an encrypted-at-rest key/value store scoped to the install.
// Save overwrites, Delete is a no-op when the key is absent. No network I/O.
type Store interface {
	Save(value, key string) error
	Load(key string) (string, error)
	Delete(key string) error
}

// FileStore persists credentials in a single file, each value sealed with
// ChaCha20-Poly1305 under a device key generated once per install. Copying
// the credential file to another install without the key file yields
// nothing readable, which is the same property the platform keychain gives.
type FileStore struct {
	path string
	key  []byte
}

const deviceKeyFile = "device.key"

// NewFileStore opens (or initializes) a credential store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("credential dir: %w", err)
	}
	key, err := loadOrCreateDeviceKey(filepath.Join(dir, deviceKeyFile))
	if err != nil {
		return nil, err
	}
	return &FileStore{path: filepath.Join(dir, "credentials.json"), key: key}, nil
}

func loadOrCreateDeviceKey(path string) ([]byte, error) {
	if raw, err := os.ReadFile(path); err == nil {
		key, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil || len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("device key corrupted")
		}
		return key, nil
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate device key: %w", err)
	}
	if err := os.WriteFile(path, []byte(base64.StdEncoding.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("persist device key: %w", err)
	}
	return key, nil
}

type sealedEntry struct {
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

func (s *FileStore) readAll() (map[string]sealedEntry, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]sealedEntry{}, nil
		}
		return nil, err
	}
	entries := map[string]sealedEntry{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		// unreadable store behaves as empty rather than failing the caller
		return map[string]sealedEntry{}, nil
	}
	return entries, nil
}

func (s *FileStore) writeAll(entries map[string]sealedEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}

// Save seals value under key, replacing any existing entry.
func (s *FileStore) Save(value, key string) error {
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	// key is bound as associated data so entries cannot be swapped between keys
	sealed := aead.Seal(nil, nonce, []byte(value), []byte(key))

	entries, err := s.readAll()
	if err != nil {
		return err
	}
	entries[key] = sealedEntry{
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Data:  base64.StdEncoding.EncodeToString(sealed),
	}
	return s.writeAll(entries)
}

// Load opens the entry stored under key. Tampered or undecryptable entries
// are reported as absent.
func (s *FileStore) Load(key string) (string, error) {
	entries, err := s.readAll()
	if err != nil {
		return "", err
	}
	entry, ok := entries[key]
	if !ok {
		return "", ErrNotFound
	}
	nonce, err := base64.StdEncoding.DecodeString(entry.Nonce)
	if err != nil {
		return "", ErrNotFound
	}
	sealed, err := base64.StdEncoding.DecodeString(entry.Data)
	if err != nil {
		return "", ErrNotFound
	}
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return "", err
	}
	plain, err := aead.Open(nil, nonce, sealed, []byte(key))
	if err != nil {
		return "", ErrNotFound
	}
	return string(plain), nil
}

// Delete removes the entry stored under key, if any.
func (s *FileStore) Delete(key string) error {
	entries, err := s.readAll()
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.writeAll(entries)
}
