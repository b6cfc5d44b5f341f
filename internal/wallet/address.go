package wallet

import (
	"bytes"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// SS58Prefix is the generic substrate network prefix used by subtensor.
const SS58Prefix byte = 42

// ss58Preamble salts the address checksum hash.
var ss58Preamble = []byte("SS58PRE")

var (
	// ErrBadAddress is returned when an address fails SS58 decoding.
	ErrBadAddress = errors.New("malformed ss58 address")

	// ErrBadChecksum is returned when an address body does not match
	// its embedded checksum.
	ErrBadChecksum = errors.New("ss58 checksum mismatch")
)

// EncodeAddress encodes a 32-byte public key as an SS58 address.
func EncodeAddress(pub []byte) (string, error) {
	if len(pub) != 32 {
		return "", fmt.Errorf("%w: public key must be 32 bytes, got %d", ErrBadAddress, len(pub))
	}
	body := append([]byte{SS58Prefix}, pub...)
	sum := ss58Checksum(body)
	return base58.Encode(append(body, sum...)), nil
}

// DecodeAddress decodes an SS58 address and returns the 32-byte public key.
func DecodeAddress(addr string) ([]byte, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}
	// prefix(1) + pubkey(32) + checksum(2)
	if len(raw) != 35 {
		return nil, fmt.Errorf("%w: unexpected length %d", ErrBadAddress, len(raw))
	}
	if raw[0] != SS58Prefix {
		return nil, fmt.Errorf("%w: unexpected prefix %d", ErrBadAddress, raw[0])
	}

	body, sum := raw[:33], raw[33:]
	if !bytes.Equal(sum, ss58Checksum(body)) {
		return nil, ErrBadChecksum
	}

	pub := make([]byte, 32)
	copy(pub, raw[1:33])
	return pub, nil
}

// ValidateAddress checks that an address decodes cleanly and that its
// public key is a valid ed25519 curve point.
func ValidateAddress(addr string) error {
	pub, err := DecodeAddress(addr)
	if err != nil {
		return err
	}
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return fmt.Errorf("%w: not an ed25519 point", ErrBadAddress)
	}
	return nil
}

func ss58Checksum(body []byte) []byte {
	h := blake2b.Sum512(append(ss58Preamble, body...))
	return h[:2]
}
