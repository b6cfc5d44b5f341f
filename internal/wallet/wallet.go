// Package wallet provides the signer capability: encrypted keystore files,
// password discovery, and the SS58 address codec.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

// ErrUnlock is returned when a keystore cannot be decrypted, typically
// because of a wrong password.
var ErrUnlock = errors.New("cannot unlock keystore")

// scrypt parameters for the keystore KDF.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// Signer is the unlocked wallet capability: an identity that can sign
// call payloads.
type Signer interface {
	// Address returns the SS58 coldkey address.
	Address() string

	// Sign signs an opaque call payload.
	Sign(payload []byte) ([]byte, error)
}

// Keypair is an unlocked ed25519 keypair backed by a keystore file.
type Keypair struct {
	name    string
	address string
	priv    ed25519.PrivateKey
}

// Address returns the SS58 coldkey address.
func (k *Keypair) Address() string {
	return k.address
}

// Sign signs a call payload with the coldkey.
func (k *Keypair) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, payload), nil
}

// keystoreFile is the on-disk keystore format: a 32-byte ed25519 seed
// sealed with AES-256-GCM under a scrypt-derived key.
type keystoreFile struct {
	Address    string `json:"address"`
	Salt       string `json:"salt"`       // base64
	Nonce      string `json:"nonce"`      // base64
	Ciphertext string `json:"ciphertext"` // base64
}

// KeystorePath returns the default coldkey location for a named wallet.
func KeystorePath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".dcastake", "wallets", name, "coldkey.json"), nil
}

// Unlock opens the named wallet's keystore using the given password.
func Unlock(name, password string) (*Keypair, error) {
	path, err := KeystorePath(name)
	if err != nil {
		return nil, err
	}
	return UnlockFile(name, path, password)
}

// UnlockFile opens a keystore at an explicit path.
func UnlockFile(name, path, password string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}

	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(ks.Salt)
	if err != nil {
		return nil, fmt.Errorf("parse keystore salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(ks.Nonce)
	if err != nil {
		return nil, fmt.Errorf("parse keystore nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ks.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("parse keystore ciphertext: %w", err)
	}

	aead, err := newKeystoreAEAD(password, salt)
	if err != nil {
		return nil, err
	}

	seed, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnlock, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes", ErrUnlock, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	address, err := EncodeAddress(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	if ks.Address != "" && ks.Address != address {
		return nil, fmt.Errorf("%w: keystore address %s does not match derived %s",
			ErrUnlock, ks.Address, address)
	}

	return &Keypair{name: name, address: address, priv: priv}, nil
}

// WriteKeystore seals a seed into a keystore file at path. Used by the
// keygen flow and by tests.
func WriteKeystore(path string, seed []byte, password string) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	aead, err := newKeystoreAEAD(password, salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	address, err := EncodeAddress(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}

	ks := keystoreFile{
		Address:    address,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, seed, nil)),
	}

	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create keystore directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func newKeystoreAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("derive keystore key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Ensure Keypair implements Signer
var _ Signer = (*Keypair)(nil)
