// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"

	"github.com/bureau-foundation/trustplane/lib/codec"
	"github.com/bureau-foundation/trustplane/lib/sealed"
	"github.com/bureau-foundation/trustplane/lib/secret"
)

const (
	signingKeyFile   = "document-signing-key"
	publicKeyFile    = "document-signing-key.pub"
	masterSecretFile = "token-master-secret"
	sealedFile       = "keyring.age"

	// MasterSecretSize is the size of the token master secret.
	MasterSecretSize = 32

	tokenKeyInfo = "trustplane token hmac-sha256 v1"
)

// Keyring holds the control plane's signing material: an Ed25519
// keypair for documents and a master secret from which the token HMAC
// key is derived. Private material lives in secret.Buffers; the caller
// must Close the keyring.
type Keyring struct {
	publicKey  ed25519.PublicKey
	signingKey *secret.Buffer
	master     *secret.Buffer
	tokenKey   *secret.Buffer
	keyID      string
}

// GenerateKeyring creates fresh key material.
func GenerateKeyring() (*Keyring, error) {
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("credential: generating Ed25519 key: %w", err)
	}
	master := make([]byte, MasterSecretSize)
	if _, err := rand.Read(master); err != nil {
		return nil, fmt.Errorf("credential: generating master secret: %w", err)
	}
	return NewKeyring(private, master)
}

// NewKeyring builds a keyring from existing material. Both slices are
// moved into secret buffers and zeroed.
func NewKeyring(private ed25519.PrivateKey, master []byte) (*Keyring, error) {
	if len(private) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("credential: signing key has %d bytes, want %d", len(private), ed25519.PrivateKeySize)
	}
	if len(master) < MasterSecretSize {
		return nil, fmt.Errorf("credential: master secret has %d bytes, want at least %d", len(master), MasterSecretSize)
	}

	publicKey := append(ed25519.PublicKey(nil), private.Public().(ed25519.PublicKey)...)

	derived := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(tokenKeyInfo)), derived); err != nil {
		return nil, fmt.Errorf("credential: deriving token key: %w", err)
	}

	keyring := &Keyring{publicKey: publicKey, keyID: KeyID(publicKey)}
	var err error
	if keyring.signingKey, err = secret.NewFromBytes(private); err != nil {
		return nil, err
	}
	if keyring.master, err = secret.NewFromBytes(master); err != nil {
		keyring.Close()
		return nil, err
	}
	if keyring.tokenKey, err = secret.NewFromBytes(derived); err != nil {
		keyring.Close()
		return nil, err
	}
	return keyring, nil
}

// KeyID is the hex BLAKE3 digest (first 16 bytes) of a document
// signing public key. Trust bundles reference keys by this ID.
func KeyID(publicKey ed25519.PublicKey) string {
	sum := blake3.Sum256(publicKey)
	return hex.EncodeToString(sum[:16])
}

// PublicKey returns the document verification key.
func (k *Keyring) PublicKey() ed25519.PublicKey {
	return k.publicKey
}

// KeyID returns the ID of the document signing key.
func (k *Keyring) KeyID() string {
	return k.keyID
}

func (k *Keyring) sign(message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(k.signingKey.Bytes()), message)
}

func (k *Keyring) hmacKey() []byte {
	return k.tokenKey.Bytes()
}

// Close releases every secret buffer.
func (k *Keyring) Close() error {
	var errs []error
	for _, buffer := range []*secret.Buffer{k.signingKey, k.master, k.tokenKey} {
		if buffer != nil {
			errs = append(errs, buffer.Close())
		}
	}
	return errors.Join(errs...)
}

// Save writes the keyring to directory as plain files. Private files
// are 0600; the public key is 0644.
func (k *Keyring) Save(directory string) error {
	files := []struct {
		name string
		data []byte
		mode os.FileMode
	}{
		{signingKeyFile, k.signingKey.Bytes(), 0600},
		{masterSecretFile, k.master.Bytes(), 0600},
		{publicKeyFile, k.publicKey, 0644},
	}
	for _, file := range files {
		if err := os.WriteFile(filepath.Join(directory, file.name), file.data, file.mode); err != nil {
			return fmt.Errorf("credential: writing %s: %w", file.name, err)
		}
	}
	return nil
}

// LoadKeyring reads a keyring written by Save.
func LoadKeyring(directory string) (*Keyring, error) {
	private, err := os.ReadFile(filepath.Join(directory, signingKeyFile))
	if err != nil {
		return nil, fmt.Errorf("credential: reading signing key: %w", err)
	}
	master, err := os.ReadFile(filepath.Join(directory, masterSecretFile))
	if err != nil {
		secret.Zero(private)
		return nil, fmt.Errorf("credential: reading master secret: %w", err)
	}
	keyring, err := NewKeyring(private, master)
	if err != nil {
		secret.Zero(private)
		secret.Zero(master)
		return nil, err
	}

	published, err := os.ReadFile(filepath.Join(directory, publicKeyFile))
	if err == nil && !keyring.publicKey.Equal(ed25519.PublicKey(published)) {
		keyring.Close()
		return nil, fmt.Errorf("credential: %s does not match the signing key", publicKeyFile)
	}
	return keyring, nil
}

// sealedKeyring is the plaintext inside keyring.age.
type sealedKeyring struct {
	SigningKey   []byte `cbor:"1,keyasint"`
	MasterSecret []byte `cbor:"2,keyasint"`
}

// Seal encrypts the keyring's private material to age recipients.
func (k *Keyring) Seal(recipients []string) ([]byte, error) {
	plaintext, err := codec.Marshal(sealedKeyring{
		SigningKey:   k.signingKey.Bytes(),
		MasterSecret: k.master.Bytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("credential: encoding keyring: %w", err)
	}
	defer secret.Zero(plaintext)
	return sealed.Seal(plaintext, recipients)
}

// OpenSealedKeyring decrypts a keyring produced by Seal.
func OpenSealedKeyring(ciphertext []byte, identity *secret.Buffer) (*Keyring, error) {
	plaintext, err := sealed.Open(ciphertext, identity)
	if err != nil {
		return nil, fmt.Errorf("credential: opening sealed keyring: %w", err)
	}
	defer plaintext.Close()

	var material sealedKeyring
	if err := codec.Unmarshal(plaintext.Bytes(), &material); err != nil {
		return nil, fmt.Errorf("credential: decoding sealed keyring: %w", err)
	}
	return NewKeyring(material.SigningKey, material.MasterSecret)
}

// Sealing selects how LoadOrGenerateKeyring persists key material.
// With no Recipients, plain files are used. With Recipients, the
// keyring is stored as a single age file and Identity (an
// AGE-SECRET-KEY) is needed to open it.
type Sealing struct {
	Recipients []string
	Identity   *secret.Buffer
}

// LoadOrGenerateKeyring loads the keyring from directory, generating
// and persisting a new one when none exists. It reports whether the
// keyring was newly generated. Existing but unreadable material is an
// error, never silently replaced.
func LoadOrGenerateKeyring(directory string, sealing Sealing) (*Keyring, bool, error) {
	if len(sealing.Recipients) > 0 {
		return loadOrGenerateSealed(directory, sealing)
	}

	if _, err := os.Stat(filepath.Join(directory, signingKeyFile)); err == nil {
		keyring, err := LoadKeyring(directory)
		return keyring, false, err
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("credential: %w", err)
	}

	keyring, err := GenerateKeyring()
	if err != nil {
		return nil, false, err
	}
	if err := keyring.Save(directory); err != nil {
		keyring.Close()
		return nil, false, err
	}
	return keyring, true, nil
}

func loadOrGenerateSealed(directory string, sealing Sealing) (*Keyring, bool, error) {
	path := filepath.Join(directory, sealedFile)
	ciphertext, err := os.ReadFile(path)
	if err == nil {
		if sealing.Identity == nil {
			return nil, false, fmt.Errorf("credential: %s is sealed and no age identity was provided", path)
		}
		keyring, err := OpenSealedKeyring(ciphertext, sealing.Identity)
		return keyring, false, err
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("credential: %w", err)
	}

	keyring, err := GenerateKeyring()
	if err != nil {
		return nil, false, err
	}
	ciphertext, err = keyring.Seal(sealing.Recipients)
	if err == nil {
		err = os.WriteFile(path, ciphertext, 0600)
	}
	if err == nil {
		err = os.WriteFile(filepath.Join(directory, publicKeyFile), keyring.publicKey, 0644)
	}
	if err != nil {
		keyring.Close()
		return nil, false, fmt.Errorf("credential: persisting sealed keyring: %w", err)
	}
	return keyring, true, nil
}
