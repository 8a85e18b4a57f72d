package transaction

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EncodeMetadata turns a UTF-8 string into 0x-prefixed hex, left-padded
// with zeros to 32 bytes. Strings that are already 0x-prefixed are
// returned unchanged.
func EncodeMetadata(s string) (string, error) {
	if has0xPrefix(s) {
		return s, nil
	}
	if len(s) > MetadataLength {
		return "", &SizeConstraintError{
			Code:    ErrMetadataTooLong,
			Message: fmt.Sprintf("metadata is %d bytes, maximum is %d", len(s), MetadataLength),
		}
	}

	var padded [MetadataLength]byte
	copy(padded[MetadataLength-len(s):], s)
	return hexutil.Encode(padded[:]), nil
}

// DecodeMetadata strips leading zero bytes from hex metadata and decodes
// the remainder as UTF-8.
func DecodeMetadata(hexMetadata string) (string, error) {
	raw, err := hexutil.Decode(ensure0x(hexMetadata))
	if err != nil {
		return "", fmt.Errorf("invalid metadata hex: %w", err)
	}
	trimmed := bytes.TrimLeft(raw, "\x00")
	if !utf8.Valid(trimmed) {
		return "", fmt.Errorf("metadata is not valid UTF-8")
	}
	return string(trimmed), nil
}

// ParseMetadata converts either a plain string or 0x-prefixed hex into the
// 32 wire bytes. An empty string yields NullMetadata.
func ParseMetadata(s string) ([MetadataLength]byte, error) {
	var out [MetadataLength]byte
	if s == "" {
		return NullMetadata, nil
	}

	encoded, err := EncodeMetadata(s)
	if err != nil {
		return out, err
	}
	raw, err := hexutil.Decode(encoded)
	if err != nil {
		return out, fmt.Errorf("invalid metadata hex: %w", err)
	}
	if len(raw) > MetadataLength {
		return out, &SizeConstraintError{
			Code:    ErrMetadataTooLong,
			Message: fmt.Sprintf("metadata is %d bytes, maximum is %d", len(raw), MetadataLength),
		}
	}
	copy(out[MetadataLength-len(raw):], raw)
	return out, nil
}

func has0xPrefix(s string) bool {
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}

func ensure0x(s string) string {
	if has0xPrefix(s) {
		return s
	}
	return "0x" + s
}
