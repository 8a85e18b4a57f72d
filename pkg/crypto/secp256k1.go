// Package crypto implements secp256k1 signing for transaction inputs.
//
// Inputs are authorized with recoverable ECDSA signatures over the EIP-712
// digest. The contract recovers the signer with ecrecover and compares it
// with the owner of the spent output, so signatures are serialized the
// way ecrecover expects them:
//
//	r (32 bytes) || s (32 bytes) || v (1 byte, 27 or 28)
//
// Key formats:
//   - Private keys: raw 32 bytes, hex, or WIF
//   - Addresses: last 20 bytes of keccak256 of the uncompressed public key
package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SignatureLength is the size of a serialized recoverable signature.
const SignatureLength = 65

// recoveryIDOffset is added to the recovery id to obtain v.
const recoveryIDOffset = 27

// PrivateKey wraps secp256k1 private key
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps secp256k1 public key
type PublicKey struct {
	key *secp256k1.PublicKey
}

// GeneratePrivateKey creates a new random key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a private key from raw bytes
func PrivateKeyFromBytes(keyBytes []byte) (*PrivateKey, error) {
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(keyBytes))
	}

	key := secp256k1.PrivKeyFromBytes(keyBytes)
	if key.Key.IsZero() {
		return nil, errors.New("private key must not be zero")
	}
	return &PrivateKey{key: key}, nil
}

// ParsePrivateKeyHex parses a hex private key, with or without 0x prefix.
func ParsePrivateKeyHex(s string) (*PrivateKey, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	return PrivateKeyFromBytes(raw)
}

// ParsePrivateKeyWIF parses a WIF-encoded private key
func ParsePrivateKeyWIF(wif string) (*PrivateKey, error) {
	decoded, err := decodeWIF(wif)
	if err != nil {
		return nil, err
	}
	return PrivateKeyFromBytes(decoded)
}

// ParsePrivateKey accepts either hex or WIF.
func ParsePrivateKey(s string) (*PrivateKey, error) {
	if key, err := ParsePrivateKeyHex(s); err == nil {
		return key, nil
	}
	key, err := ParsePrivateKeyWIF(s)
	if err != nil {
		return nil, fmt.Errorf("private key is neither hex nor WIF: %w", err)
	}
	return key, nil
}

// SignRecoverable signs a 32-byte digest and returns r || s || v.
func (pk *PrivateKey) SignRecoverable(digest [32]byte) []byte {
	// SignCompact returns v || r || s with v = 27 + recovery id.
	compact := ecdsa.SignCompact(pk.key, digest[:], false)

	sig := make([]byte, SignatureLength)
	copy(sig[:64], compact[1:])
	sig[64] = compact[0]
	return sig
}

// PublicKey derives the public key
func (pk *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: pk.key.PubKey()}
}

// Address returns the address owning outputs guarded by this key.
func (pk *PrivateKey) Address() common.Address {
	return pk.PublicKey().Address()
}

// Bytes returns the raw 32-byte private key
func (pk *PrivateKey) Bytes() []byte {
	return pk.key.Serialize()
}

// Address derives the account address of the public key.
func (pub *PublicKey) Address() common.Address {
	uncompressed := pub.key.SerializeUncompressed()
	return common.BytesToAddress(keccak(uncompressed[1:])[12:])
}

// Bytes returns the compressed public key bytes
func (pub *PublicKey) Bytes() []byte {
	return pub.key.SerializeCompressed()
}

// RecoverPublicKey recovers the public key that produced an r || s || v
// signature over digest.
func RecoverPublicKey(digest [32]byte, sig []byte) (*PublicKey, error) {
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}

	v := sig[64]
	if v < recoveryIDOffset {
		v += recoveryIDOffset
	}
	if v != recoveryIDOffset && v != recoveryIDOffset+1 {
		return nil, fmt.Errorf("invalid signature v value %d", sig[64])
	}

	compact := make([]byte, SignatureLength)
	compact[0] = v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to recover public key: %w", err)
	}
	return &PublicKey{key: pub}, nil
}

// RecoverAddress recovers the signer address of an r || s || v signature.
func RecoverAddress(digest [32]byte, sig []byte) (common.Address, error) {
	pub, err := RecoverPublicKey(digest, sig)
	if err != nil {
		return common.Address{}, err
	}
	return pub.Address(), nil
}

// VerifySignature reports whether sig over digest was produced by signer.
func VerifySignature(signer common.Address, digest [32]byte, sig []byte) bool {
	recovered, err := RecoverAddress(digest, sig)
	if err != nil {
		return false
	}
	return recovered == signer
}

// decodeWIF decodes a WIF-encoded private key
// WIF format: version_byte || private_key (32 bytes) || [compression_flag] || checksum (4 bytes)
func decodeWIF(wif string) ([]byte, error) {
	decoded := base58.Decode(wif)
	if len(decoded) != 37 && len(decoded) != 38 {
		return nil, errors.New("invalid WIF length")
	}

	// 0x80 mainnet, 0xef testnet
	version := decoded[0]
	if version != 0x80 && version != 0xef {
		return nil, fmt.Errorf("invalid WIF version byte: 0x%02x", version)
	}

	checksumOffset := len(decoded) - 4
	providedChecksum := decoded[checksumOffset:]
	payload := decoded[:checksumOffset]

	hash1 := sha256.Sum256(payload)
	hash2 := sha256.Sum256(hash1[:])
	for i := 0; i < 4; i++ {
		if providedChecksum[i] != hash2[i] {
			return nil, errors.New("WIF checksum mismatch")
		}
	}

	return payload[1:33], nil
}

// EncodeWIF encodes a private key to WIF format
func EncodeWIF(privateKey []byte, compressed bool, testnet bool) (string, error) {
	if len(privateKey) != 32 {
		return "", errors.New("private key must be 32 bytes")
	}

	version := byte(0x80)
	if testnet {
		version = 0xef
	}

	var payload []byte
	payload = append(payload, version)
	payload = append(payload, privateKey...)
	if compressed {
		payload = append(payload, 0x01)
	}

	hash1 := sha256.Sum256(payload)
	hash2 := sha256.Sum256(hash1[:])
	payload = append(payload, hash2[:4]...)

	return base58.Encode(payload), nil
}
