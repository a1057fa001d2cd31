package store

import (
	"fmt"

	"rwhoisd/pkg/cidr"
)

// encodeCidrKey renders p as a fixed-width, order-preserving byte key: a
// family tag, the canonical (masked) address bytes zero-extended to the
// family's width, and a one-byte prefix length. Lexicographic comparison of
// these keys reproduces cidr.Compare's ordering (address ascending, then
// prefix length ascending), so a forward leveldb iterator walks the index in
// exactly the order spec §3's CidrIndex requires, the same way
// wingedpig/iporg's pkg/iporgdb encodes addresses as fixed-width big-endian
// keys for range scans.
func encodeCidrKey(p cidr.Prefix) []byte {
	addr := p.Addr()
	addrBytes := addr.AsSlice()
	key := make([]byte, 0, 2+len(addrBytes))
	key = append(key, byte(p.Family()))
	key = append(key, addrBytes...)
	key = append(key, byte(p.Bits()))
	return key
}

func cidrKeyUpperBound(family cidr.Family) []byte {
	return []byte{byte(family) + 1}
}

func cidrFamilyLowerBound(family cidr.Family) []byte {
	return []byte{byte(family)}
}

func decodeCidrKey(key []byte) (cidr.Prefix, error) {
	if len(key) < 2 {
		return cidr.Prefix{}, fmt.Errorf("malformed cidr key %x", key)
	}
	family := cidr.Family(key[0])
	addrLen := family.Maxlen() / 8
	if len(key) != 1+addrLen+1 {
		return cidr.Prefix{}, fmt.Errorf("malformed cidr key %x", key)
	}
	addrBytes := key[1 : 1+addrLen]
	netlen := int(key[1+addrLen])
	return cidr.FromBytes(family, addrBytes, netlen)
}
