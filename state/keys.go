package state

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	accountPrefix   = []byte("habit/account:")
	vaultPrefix     = []byte("habit/vault:")
	pendingIndexKey = ethcrypto.Keccak256([]byte("habit/finalizations/pending"))
)

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

// vaultAddress derives a stable custody address for a named protocol vault.
func vaultAddress(name string) [20]byte {
	buf := make([]byte, len(vaultPrefix)+len(name))
	copy(buf, vaultPrefix)
	copy(buf[len(vaultPrefix):], name)
	sum := ethcrypto.Keccak256(buf)
	var addr [20]byte
	copy(addr[:], sum[len(sum)-20:])
	return addr
}
