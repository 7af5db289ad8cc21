// Package hexid converts the fixed-width keys and addresses ratox-go uses
// as filenames and file contents between raw bytes and hex text.
package hexid

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// PublicKeySize is the length in bytes of a Tox public key.
	PublicKeySize = 32
	// NospamSize is the length in bytes of the nospam value.
	NospamSize = 4
	// ChecksumSize is the length in bytes of the address checksum.
	ChecksumSize = 2
	// AddressSize is the length in bytes of a full Tox address.
	AddressSize = PublicKeySize + NospamSize + ChecksumSize
)

// EncodeLower renders a 32-byte public key as 64 lowercase hex characters,
// used for friend directory names.
func EncodeLower(key [PublicKeySize]byte) string {
	return hex.EncodeToString(key[:])
}

// EncodeUpper renders a 32-byte public key as 64 uppercase hex characters.
// The id file is written from EncodeAddress, not from this function.
func EncodeUpper(key [PublicKeySize]byte) string {
	return strings.ToUpper(hex.EncodeToString(key[:]))
}

// DecodeKey decodes 64 hex characters (either case) into a public key. The
// caller is responsible for validating the result before use; invalid hex
// yields an error and a zero key.
func DecodeKey(s string) ([PublicKeySize]byte, error) {
	var key [PublicKeySize]byte
	if len(s) != PublicKeySize*2 {
		return key, fmt.Errorf("hexid: wrong length %d, want %d", len(s), PublicKeySize*2)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("hexid: decode: %w", err)
	}
	copy(key[:], b)
	return key, nil
}

// checksum computes the Tox address checksum: the public key and nospam
// XORed together two bytes at a time.
func checksum(key [PublicKeySize]byte, nospam [NospamSize]byte) [ChecksumSize]byte {
	var sum [ChecksumSize]byte
	for i := 0; i < PublicKeySize; i++ {
		sum[i%ChecksumSize] ^= key[i]
	}
	for i := 0; i < NospamSize; i++ {
		sum[(PublicKeySize+i)%ChecksumSize] ^= nospam[i]
	}
	return sum
}

// EncodeAddress renders the 38-byte address (public key + nospam +
// checksum) as 76 uppercase hex characters, the form written to the `id`
// file.
func EncodeAddress(key [PublicKeySize]byte, nospam [NospamSize]byte) string {
	sum := checksum(key, nospam)
	buf := make([]byte, 0, AddressSize)
	buf = append(buf, key[:]...)
	buf = append(buf, nospam[:]...)
	buf = append(buf, sum[:]...)
	return strings.ToUpper(hex.EncodeToString(buf))
}

// EncodeNospam renders a 4-byte nospam value as 8 uppercase hex characters,
// the form echoed to `nospam/out` (spec §4.4).
func EncodeNospam(nospam [NospamSize]byte) string {
	return strings.ToUpper(hex.EncodeToString(nospam[:]))
}

// DecodeNospam decodes 8 hex characters into a 4-byte nospam value,
// rejecting anything that is not exactly 8 [0-9A-Fa-f] characters.
func DecodeNospam(s string) ([NospamSize]byte, error) {
	var nospam [NospamSize]byte
	if len(s) != NospamSize*2 {
		return nospam, fmt.Errorf("hexid: nospam wrong length %d, want %d", len(s), NospamSize*2)
	}
	for _, c := range s {
		if !isHexDigit(c) {
			return nospam, fmt.Errorf("hexid: nospam contains non-hex character %q", c)
		}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nospam, fmt.Errorf("hexid: nospam decode: %w", err)
	}
	copy(nospam[:], b)
	return nospam, nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}
