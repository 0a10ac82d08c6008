package substrate

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidHex       = errors.New("invalid hex string")
	ErrInvalidAccountID = errors.New("invalid account id")
)

// AccountIDLen is the size of an AccountId32
const AccountIDLen = 32

// Bytes is a byte slice carried as a 0x-prefixed hex string on the wire
type Bytes []byte

// Hex returns the 0x-prefixed encoding
func (b Bytes) Hex() string {
	return "0x" + hex.EncodeToString(b)
}

func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Hex())
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHex, err)
	}
	decoded, err := DecodeHex(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// StorageKey is a raw storage key
type StorageKey = Bytes

// Hash identifies a block, and therefore a chain state
type Hash [32]byte

// ParseHash decodes a 0x-prefixed 32 byte hash
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := DecodeHex(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("%w: hash must be %d bytes, got %d", ErrInvalidHex, len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) String() string { return h.Hex() }

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHex, err)
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// AccountID is an AccountId32
type AccountID [AccountIDLen]byte

// AccountIDFromKey takes the trailing 32 bytes of a storage key as the account.
// Maps hashed with a *Concat hasher end with the raw key, so no transformation applies.
func AccountIDFromKey(key []byte) (AccountID, error) {
	var id AccountID
	if len(key) < AccountIDLen {
		return id, fmt.Errorf("%w: storage key has %d bytes, need at least %d", ErrInvalidAccountID, len(key), AccountIDLen)
	}
	copy(id[:], key[len(key)-AccountIDLen:])
	return id, nil
}

// AccountIDFromBytes decodes a SCALE encoded AccountId32
func AccountIDFromBytes(b []byte) (AccountID, error) {
	var id AccountID
	if len(b) != AccountIDLen {
		return id, fmt.Errorf("%w: value has %d bytes, want %d", ErrInvalidAccountID, len(b), AccountIDLen)
	}
	copy(id[:], b)
	return id, nil
}

func (a AccountID) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Block is a resolved chain state
type Block struct {
	Hash   Hash
	Number uint64
}

// KeyValue is one storage entry. Value is nil when the key holds no value.
type KeyValue struct {
	Key   StorageKey
	Value Bytes
}

// Header is the subset of a block header the auditor needs
type Header struct {
	ParentHash Hash   `json:"parentHash"`
	Number     string `json:"number"`
}

// BlockNumber parses the hex encoded header number
func (h Header) BlockNumber() (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(h.Number, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: block number %q: %w", ErrInvalidHex, h.Number, err)
	}
	return n, nil
}

// DecodeHex decodes a hex string with an optional 0x prefix
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHex, err)
	}
	return b, nil
}
