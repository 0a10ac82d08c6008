package substrate

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// Twox128 is the 128 bit xxhash used for pallet and item prefixes
func Twox128(data []byte) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[:8], xxhash.Sum64(data))

	d := xxhash.NewWithSeed(1)
	_, _ = d.Write(data)
	binary.LittleEndian.PutUint64(out[8:], d.Sum64())

	return out
}

// Blake2_128 is the 128 bit blake2b digest
func Blake2_128(data []byte) []byte {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// only fails for out of range sizes or oversized keys
		panic(err)
	}
	_, _ = h.Write(data)
	return h.Sum(nil)
}

// Blake2_128Concat hashes data and appends it unchanged
func Blake2_128Concat(data []byte) []byte {
	return append(Blake2_128(data), data...)
}

// StoragePrefix is the key prefix shared by every entry of pallet.item
func StoragePrefix(pallet, item string) StorageKey {
	key := make([]byte, 0, 32)
	key = append(key, Twox128([]byte(pallet))...)
	key = append(key, Twox128([]byte(item))...)
	return key
}

// BondedPrefix prefixes Staking.Bonded (stash -> controller, Twox64Concat)
func BondedPrefix() StorageKey {
	return StoragePrefix("Staking", "Bonded")
}

// LedgerKey addresses Staking.Ledger for account (Blake2_128Concat)
func LedgerKey(account AccountID) StorageKey {
	return append(StoragePrefix("Staking", "Ledger"), Blake2_128Concat(account[:])...)
}

// Twox64Concat hashes data with 64 bit xxhash and appends it unchanged
func Twox64Concat(data []byte) []byte {
	out := binary.LittleEndian.AppendUint64(make([]byte, 0, 8+len(data)), xxhash.Sum64(data))
	return append(out, data...)
}

// BondedKey addresses Staking.Bonded for stash
func BondedKey(stash AccountID) StorageKey {
	return append(BondedPrefix(), Twox64Concat(stash[:])...)
}
