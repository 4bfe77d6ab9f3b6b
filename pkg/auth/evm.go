package auth

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MessagePrefix starts every message a devnet caller signs. It is followed by
// a unix timestamp in seconds.
const MessagePrefix = "token-bridge:"

var (
	// ErrMessageExpired is returned for a signed message older than the
	// accepted window.
	ErrMessageExpired = errors.New("signed message expired")
	// ErrMalformedMessage is returned when the message is not a timestamped
	// bridge message.
	ErrMalformedMessage = errors.New("malformed signed message")
)

func eip191Hash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}

// VerifyEIP191Signature verifies an EIP-191 personal_sign signature
// Returns the recovered Ethereum address if valid
func VerifyEIP191Signature(message, signature string) (common.Address, error) {
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sigBytes) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: expected 65, got %d", len(sigBytes))
	}

	// v can be 0, 1, 27, or 28
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}

	pubKey, err := crypto.SigToPub(eip191Hash(message), sigBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// SignEIP191 signs message the way personal_sign does, with v in {27, 28}.
func SignEIP191(message string, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(eip191Hash(message), key)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// NewMessage returns the message a caller signs at t.
func NewMessage(t time.Time) string {
	return MessagePrefix + strconv.FormatInt(t.Unix(), 10)
}

// VerifyMessage recovers the signer of a timestamped message and checks that
// the timestamp lies within maxAge of now.
func VerifyMessage(message, signature string, now time.Time, maxAge time.Duration) (common.Address, error) {
	raw, ok := strings.CutPrefix(message, MessagePrefix)
	if !ok {
		return common.Address{}, ErrMalformedMessage
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return common.Address{}, ErrMalformedMessage
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > maxAge || age < -maxAge {
		return common.Address{}, ErrMessageExpired
	}
	return VerifyEIP191Signature(message, signature)
}

// ValidateEVMAddress checks if a string is a valid EVM address
func ValidateEVMAddress(address string) bool {
	if !strings.HasPrefix(address, "0x") {
		return false
	}
	if len(address) != 42 {
		return false
	}
	_, err := hex.DecodeString(address[2:])
	return err == nil
}
