// Package cidr implements dual-family (IPv4/IPv6) CIDR prefix arithmetic:
// parsing, canonicalization, ordering, containment and netblock decomposition.
//
// It plays the role that original_source/rwhoisd/Cidr.py and v6addr.py play in
// the Python implementation this was ported from, but unifies both address
// families behind a single netip.Addr-backed type instead of hand-rolled
//32-bit/128-bit arithmetic. The netblock-to-CIDR decomposition algorithm is
// adapted from the range-collapsing logic wingedpig/iporg used for IPv4-only
// ASN prefix aggregation, generalized to both families via math/big.
package cidr

import (
	"fmt"
	"math/big"
	"net/netip"
	"strconv"
	"strings"
)

// Family identifies an address family.
type Family int

const (
	V4 Family = 4
	V6 Family = 6
)

// Maxlen returns the bit width of addresses in the family.
func (f Family) Maxlen() int {
	if f == V4 {
		return 32
	}
	return 128
}

// ErrInvalidCidr is returned when a string cannot be parsed as a CIDR value.
type ErrInvalidCidr struct {
	Input string
	Cause string
}

func (e *ErrInvalidCidr) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("invalid CIDR %q: %s", e.Input, e.Cause)
	}
	return fmt.Sprintf("invalid CIDR %q", e.Input)
}

// Prefix is a canonical CIDR network block for one address family. The zero
// value is not a valid Prefix; use IsValid to test.
type Prefix struct {
	family Family
	addr   netip.Addr // canonicalized: addr & mask(netlen)
	netlen int
}

// IsValid reports whether p was produced by New/Parse (as opposed to the zero
// value).
func (p Prefix) IsValid() bool {
	return p.addr.IsValid()
}

// Family returns the address family of p.
func (p Prefix) Family() Family {
	return p.family
}

// Bits returns the prefix length.
func (p Prefix) Bits() int {
	return p.netlen
}

// Addr returns the canonical (masked) network address.
func (p Prefix) Addr() netip.Addr {
	return p.addr
}

// New constructs a Prefix from an address string and an optional prefix
// length. A colon in addrStr selects IPv6, otherwise IPv4. If netlen is
// omitted (negative), it defaults to the family's maxlen (a host route).
// Embedded "/len" suffixes in addrStr are also honored.
func New(addrStr string, netlen int) (Prefix, error) {
	addrStr = strings.TrimSpace(addrStr)
	if addrStr == "" {
		return Prefix{}, &ErrInvalidCidr{Input: addrStr, Cause: "empty address"}
	}

	if i := strings.IndexByte(addrStr, '/'); i >= 0 {
		if netlen >= 0 {
			return Prefix{}, &ErrInvalidCidr{Input: addrStr, Cause: "netlen given twice"}
		}
		lenStr := addrStr[i+1:]
		addrStr = addrStr[:i]
		n, err := strconv.Atoi(lenStr)
		if err != nil || n < 0 {
			return Prefix{}, &ErrInvalidCidr{Input: addrStr, Cause: "bad prefix length"}
		}
		netlen = n
	}

	family := V4
	if strings.Contains(addrStr, ":") {
		family = V6
	}

	var addr netip.Addr
	var err error
	if family == V4 {
		addr, err = parseV4(addrStr)
	} else {
		addr, err = netip.ParseAddr(addrStr)
	}
	if err != nil {
		return Prefix{}, &ErrInvalidCidr{Input: addrStr, Cause: err.Error()}
	}

	if netlen < 0 {
		netlen = family.Maxlen()
	}
	if netlen > family.Maxlen() {
		return Prefix{}, &ErrInvalidCidr{Input: addrStr, Cause: "netlen too large"}
	}

	return newCanonical(family, addr, netlen), nil
}

// parseV4 parses 1-4 dotted octets, left-padding missing trailing octets with
// zero (e.g. "24.36" means "24.36.0.0"). This matches the abbreviated
// netblock notation original_source/rwhoisd/Cidr.py accepted.
func parseV4(s string) (netip.Addr, error) {
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return netip.Addr{}, fmt.Errorf("wrong number of octets")
	}
	var b [4]byte
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return netip.Addr{}, fmt.Errorf("octet %q out of range", part)
		}
		b[i] = byte(n)
	}
	return netip.AddrFrom4(b), nil
}

func newCanonical(family Family, addr netip.Addr, netlen int) Prefix {
	masked := maskAddr(family, addr, netlen)
	return Prefix{family: family, addr: masked, netlen: netlen}
}

// FromBytes reconstructs a canonical Prefix from raw address bytes (4 for V4,
// 16 for V6) and a prefix length, masking the address to netlen. Used to
// decode the fixed-width keys store.encodeCidrKey produces.
func FromBytes(family Family, addrBytes []byte, netlen int) (Prefix, error) {
	want := family.Maxlen() / 8
	if len(addrBytes) != want {
		return Prefix{}, &ErrInvalidCidr{Cause: "wrong address width"}
	}
	if netlen < 0 || netlen > family.Maxlen() {
		return Prefix{}, &ErrInvalidCidr{Cause: "netlen out of range"}
	}
	addr, ok := netip.AddrFromSlice(addrBytes)
	if !ok {
		return Prefix{}, &ErrInvalidCidr{Cause: "bad address bytes"}
	}
	if family == V4 {
		addr = addr.Unmap()
	}
	return newCanonical(family, addr, netlen), nil
}

// ValidCidr parses s as a CIDR value, returning a falsy (invalid) Prefix
// instead of an error if s does not parse. It never panics and accepts the
// same syntax as New. Mirrors Cidr.valid_cidr from the Python original.
func ValidCidr(s string) Prefix {
	p, err := New(s, -1)
	if err != nil {
		return Prefix{}
	}
	return p
}

// String renders p as "addr/len".
func (p Prefix) String() string {
	if !p.IsValid() {
		return ""
	}
	return fmt.Sprintf("%s/%d", p.addr.String(), p.netlen)
}

// Netmask renders the dotted/colon netmask for p's prefix length.
func (p Prefix) Netmask() string {
	ones := p.netlen
	maxlen := p.family.Maxlen()
	bits := new(big.Int).Lsh(allOnes(ones), uint(maxlen-ones))
	addr := bigIntToAddr(p.family, bits)
	return addr.String()
}

// Length returns the number of addresses in p's block (1 << (maxlen-netlen)).
func (p Prefix) Length() *big.Int {
	hostBits := p.family.Maxlen() - p.netlen
	return new(big.Int).Lsh(big.NewInt(1), uint(hostBits))
}

// End returns the last address in p's block.
func (p Prefix) End() netip.Addr {
	start := addrToBigInt(p.addr)
	end := new(big.Int).Add(start, p.Length())
	end.Sub(end, big.NewInt(1))
	return bigIntToAddr(p.family, end)
}

// IsSupernet reports whether p encloses other (reflexive: p is a supernet of
// itself).
func (p Prefix) IsSupernet(other Prefix) bool {
	if p.family != other.family || p.netlen > other.netlen {
		return false
	}
	return maskAddr(p.family, other.addr, p.netlen) == p.addr
}

// IsSubnet reports whether p is enclosed by other (reflexive).
func (p Prefix) IsSubnet(other Prefix) bool {
	return other.IsSupernet(p)
}

// Compare orders prefixes by numeric address ascending, then prefix length
// ascending, so that supernets sort before subnets sharing the same start
// address. Prefixes of different families compare V4 < V6.
func Compare(a, b Prefix) int {
	if a.family != b.family {
		if a.family < b.family {
			return -1
		}
		return 1
	}
	if c := a.addr.Compare(b.addr); c != 0 {
		return c
	}
	if a.netlen < b.netlen {
		return -1
	}
	if a.netlen > b.netlen {
		return 1
	}
	return 0
}

// Equal reports whether a and b are the same canonical prefix.
func (a Prefix) Equal(b Prefix) bool {
	return Compare(a, b) == 0
}

// NetblockToCidr decomposes the inclusive range [start, end] into the
// minimal ordered list of CIDR prefixes whose union is exactly that range.
// start and end must be the same family and start <= end. This generalizes
// the IPv4-only range-collapsing algorithm in wingedpig/iporg's
// pkg/iptoasn.Aggregator.rangeToCIDRList to both address families using
// math/big instead of uint32 arithmetic.
func NetblockToCidr(start, end netip.Addr) ([]Prefix, error) {
	if !start.IsValid() || !end.IsValid() {
		return nil, &ErrInvalidCidr{Cause: "invalid endpoint"}
	}
	if start.Is4() != end.Is4() {
		return nil, &ErrInvalidCidr{Cause: "family mismatch"}
	}
	family := V4
	if start.Is6() && !start.Is4() {
		family = V6
	}
	if start.Compare(end) > 0 {
		return nil, &ErrInvalidCidr{Cause: "start > end"}
	}

	maxlen := family.Maxlen()
	cur := addrToBigInt(start)
	endBig := addrToBigInt(end)

	var result []Prefix
	one := big.NewInt(1)
	for cur.Cmp(endBig) <= 0 {
		remaining := new(big.Int).Sub(endBig, cur)
		remaining.Add(remaining, one) // L = end-start+1

		align := trailingZeroBits(cur, maxlen)
		hostBits := align
		for hostBits > 0 {
			blockSize := new(big.Int).Lsh(one, uint(hostBits))
			if blockSize.Cmp(remaining) <= 0 {
				break
			}
			hostBits--
		}

		p := newCanonical(family, bigIntToAddr(family, cur), maxlen-hostBits)
		result = append(result, p)

		blockSize := new(big.Int).Lsh(one, uint(hostBits))
		cur.Add(cur, blockSize)
	}

	return result, nil
}

// trailingZeroBits returns the number of consecutive least-significant zero
// bits of x within a maxlen-bit field, capped at maxlen (x == 0 is aligned to
// any prefix length).
func trailingZeroBits(x *big.Int, maxlen int) int {
	if x.Sign() == 0 {
		return maxlen
	}
	n := int(x.TrailingZeroBits())
	if n > maxlen {
		return maxlen
	}
	return n
}

func allOnes(bits int) *big.Int {
	if bits <= 0 {
		return big.NewInt(0)
	}
	v := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	return v.Sub(v, big.NewInt(1))
}

func maskAddr(family Family, addr netip.Addr, netlen int) netip.Addr {
	v := addrToBigInt(addr)
	maxlen := family.Maxlen()
	m := allOnes(netlen)
	m.Lsh(m, uint(maxlen-netlen))
	v.And(v, m)
	return bigIntToAddr(family, v)
}

func addrToBigInt(addr netip.Addr) *big.Int {
	b := addr.AsSlice()
	return new(big.Int).SetBytes(b)
}

func bigIntToAddr(family Family, v *big.Int) netip.Addr {
	width := 4
	if family == V6 {
		width = 16
	}
	raw := v.Bytes()
	buf := make([]byte, width)
	copy(buf[width-len(raw):], raw)
	addr, _ := netip.AddrFromSlice(buf)
	if family == V4 {
		addr = addr.Unmap()
	}
	return addr
}
