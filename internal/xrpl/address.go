package xrpl

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// rippleAlphabet is the base58 dictionary used by XRPL classic addresses.
var rippleAlphabet = base58.NewAlphabet("rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz")

// accountIDPrefix is the version byte of a classic address payload.
const accountIDPrefix = 0x00

// DecodeClassicAddress decodes a classic address into its 20-byte
// account ID, verifying the version byte and the double-SHA256 checksum.
func DecodeClassicAddress(address string) ([]byte, error) {
	raw, err := base58.DecodeAlphabet(address, rippleAlphabet)
	if err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != 25 {
		return nil, fmt.Errorf("decode address: unexpected length %d", len(raw))
	}
	if raw[0] != accountIDPrefix {
		return nil, fmt.Errorf("decode address: bad version byte 0x%02x", raw[0])
	}

	payload, checksum := raw[:21], raw[21:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	if !bytes.Equal(checksum, second[:4]) {
		return nil, fmt.Errorf("decode address: checksum mismatch")
	}

	return raw[1:21], nil
}

// IsValidClassicAddress reports whether the string is a well-formed
// classic address with a valid checksum.
func IsValidClassicAddress(address string) bool {
	_, err := DecodeClassicAddress(address)
	return err == nil
}
