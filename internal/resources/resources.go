// Package resources implements typed RFC 3779 resource sets: IPv4/IPv6
// prefixes and ranges, AS-number ids and ranges, with the bit-string
// trimming and inherit-collapse rules spec.md section 3 and section
// 4.B require (spec.md component B).
package resources

import (
	"encoding/asn1"
	"net/netip"
	"sort"

	"github.com/pkg/errors"

	"rpkica/internal/asn1codec"
)

// ErrEmptyResourceSet is returned when IPAddrBlocks/ASIdentifiers is
// asked to encode a certificate extension with nothing in it
// (spec.md section 4.B).
var ErrEmptyResourceSet = errors.New("empty resource set")

// ErrMixedInherit is returned when a family mixes the inherit marker
// with explicit entries -- spec.md section 9 calls this an
// unmodelled, erroneous combination.
var ErrMixedInherit = errors.New("inherit mixed with explicit entries in one address family")

// AFI codes, 2-byte big-endian per RFC 3779.
var (
	AFIv4 = []byte{0, 1}
	AFIv6 = []byte{0, 2}
)

// IPEntry is one entry in an IP resource family: either a single
// prefix or a [Low, High] range. Exactly one of Prefix/(Low,High) is
// meaningful, selected by Kind.
type IPEntry struct {
	Kind    IPEntryKind
	Prefix  netip.Prefix
	Low     netip.Addr
	High    netip.Addr
}

// IPEntryKind discriminates IPEntry's union.
type IPEntryKind int

const (
	// IPEntryPrefix is a single (address, prefixlen) entry.
	IPEntryPrefix IPEntryKind = iota
	// IPEntryRange is a [low, high] bound entry.
	IPEntryRange
)

// PrefixEntry constructs an IPEntry for a single prefix.
func PrefixEntry(p netip.Prefix) IPEntry {
	return IPEntry{Kind: IPEntryPrefix, Prefix: p}
}

// RangeEntry constructs an IPEntry for an address range.
func RangeEntry(low, high netip.Addr) IPEntry {
	return IPEntry{Kind: IPEntryRange, Low: low, High: high}
}

// IPFamily is one address family's resource list: either "inherit" or
// an ordered list of entries, per spec.md section 3.
type IPFamily struct {
	Inherit bool
	Entries []IPEntry
}

// ASEntry is one entry in the AS resource list: either a single id or
// a [Min, Max] range (Min <= Max).
type ASEntry struct {
	IsRange  bool
	ID       int64
	Min, Max int64
}

// ASIDEntry constructs an ASEntry for a single AS number.
func ASIDEntry(id int64) ASEntry {
	return ASEntry{ID: id}
}

// ASRangeEntry constructs an ASEntry for an AS number range.
func ASRangeEntry(min, max int64) ASEntry {
	return ASEntry{IsRange: true, Min: min, Max: max}
}

// ASResources is the AS resource list: either "inherit" or an ordered
// list of ASEntry, preserving caller order (spec.md section 4.B).
type ASResources struct {
	Inherit bool
	Entries []ASEntry
}

// Set is a complete resource set: IPv4 + IPv6 families plus AS
// resources, spec.md's "(IP-resources, AS-resources)" pair.
type Set struct {
	IPv4 *IPFamily
	IPv6 *IPFamily
	AS   *ASResources
}

// Contains reports whether every resource in other is covered by s,
// realizing spec.md section 8 property 5 (resource containment) and
// the signed-object assembler's ContentOutOfResources check.
func (s Set) Contains(other Set) bool {
	if !ipFamilyContains(s.IPv4, other.IPv4) {
		return false
	}
	if !ipFamilyContains(s.IPv6, other.IPv6) {
		return false
	}
	return asContains(s.AS, other.AS)
}

func ipFamilyContains(parent, child *IPFamily) bool {
	if child == nil {
		return true
	}
	if child.Inherit {
		return parent != nil
	}
	if parent == nil {
		return len(child.Entries) == 0
	}
	if parent.Inherit {
		return true
	}
	for _, ce := range child.Entries {
		lo, hi := entryBounds(ce)
		if !boundedByAny(parent.Entries, lo, hi) {
			return false
		}
	}
	return true
}

func entryBounds(e IPEntry) (netip.Addr, netip.Addr) {
	if e.Kind == IPEntryPrefix {
		return e.Prefix.Masked().Addr(), lastAddr(e.Prefix)
	}
	return e.Low, e.High
}

func lastAddr(p netip.Prefix) netip.Addr {
	base := p.Masked().Addr()
	bits := base.BitLen()
	buf := base.AsSlice()
	hostBits := bits - p.Bits()
	flipTrailingBits(buf, hostBits)
	addr, _ := netip.AddrFromSlice(buf)
	if base.Is4() {
		addr = addr.Unmap()
	}
	return addr
}

func flipTrailingBits(buf []byte, nbits int) {
	for i := len(buf) - 1; i >= 0 && nbits > 0; i-- {
		if nbits >= 8 {
			buf[i] = 0xff
			nbits -= 8
			continue
		}
		buf[i] |= byte(0xff >> (8 - nbits))
		nbits = 0
	}
}

func boundedByAny(candidates []IPEntry, lo, hi netip.Addr) bool {
	for _, c := range candidates {
		clo, chi := entryBounds(c)
		if compareAddr(clo, lo) <= 0 && compareAddr(hi, chi) <= 0 {
			return true
		}
	}
	return false
}

func compareAddr(a, b netip.Addr) int {
	return a.Compare(b)
}

func asContains(parent, child *ASResources) bool {
	if child == nil {
		return true
	}
	if child.Inherit {
		return parent != nil
	}
	if parent == nil {
		return len(child.Entries) == 0
	}
	if parent.Inherit {
		return true
	}
	for _, ce := range child.Entries {
		lo, hi := ce.Min, ce.Max
		if !ce.IsRange {
			lo, hi = ce.ID, ce.ID
		}
		ok := false
		for _, pe := range parent.Entries {
			plo, phi := pe.Min, pe.Max
			if !pe.IsRange {
				plo, phi = pe.ID, pe.ID
			}
			if plo <= lo && hi <= phi {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// IPAddrBlocksExtension builds the DER value of the sbgp-ipAddrBlock
// extension from the two families, per spec.md section 4.B: each
// present family emits "inherit" when its Inherit flag is set (and
// fails with ErrMixedInherit if it also carries entries), else
// "addressesOrRanges" in ascending numerical order, IPv4 before IPv6.
func IPAddrBlocksExtension(v4, v6 *IPFamily) ([]byte, error) {
	var families []asn1codec.IPAddressFamily
	if v4 != nil {
		f, err := buildFamily(AFIv4, *v4, 4)
		if err != nil {
			return nil, errors.Wrap(err, "IPv4 family")
		}
		families = append(families, f)
	}
	if v6 != nil {
		f, err := buildFamily(AFIv6, *v6, 6)
		if err != nil {
			return nil, errors.Wrap(err, "IPv6 family")
		}
		families = append(families, f)
	}
	if len(families) == 0 {
		return nil, ErrEmptyResourceSet
	}
	return asn1codec.Encode(asn1codec.IPAddrBlocks(families))
}

func buildFamily(afi []byte, fam IPFamily, version int) (asn1codec.IPAddressFamily, error) {
	if fam.Inherit && len(fam.Entries) > 0 {
		return asn1codec.IPAddressFamily{}, ErrMixedInherit
	}
	if fam.Inherit {
		return asn1codec.IPAddressFamily{AddressFamily: afi, IPAddressChoice: asn1codec.InheritChoice()}, nil
	}
	if len(fam.Entries) == 0 {
		return asn1codec.IPAddressFamily{}, ErrEmptyResourceSet
	}
	sorted := make([]IPEntry, len(fam.Entries))
	copy(sorted, fam.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		li, _ := entryBounds(sorted[i])
		lj, _ := entryBounds(sorted[j])
		return li.Less(lj)
	})
	width := 4
	if version == 6 {
		width = 16
	}
	var choices []asn1.RawValue
	for _, e := range sorted {
		var rv asn1.RawValue
		var err error
		switch e.Kind {
		case IPEntryPrefix:
			addr := e.Prefix.Masked().Addr().AsSlice()
			bs := asn1codec.TrimmedPrefixBitString(padTo(addr, width), e.Prefix.Bits())
			rv, err = asn1codec.EncodeAddressPrefixChoice(bs)
		case IPEntryRange:
			lo := padTo(e.Low.AsSlice(), width)
			hi := padTo(e.High.AsSlice(), width)
			low := asn1codec.LowBoundBitString(lo)
			high := asn1codec.HighBoundBitString(hi)
			rv, err = asn1codec.EncodeAddressRangeChoice(low, high)
		}
		if err != nil {
			return asn1codec.IPAddressFamily{}, err
		}
		choices = append(choices, rv)
	}
	choiceVal, err := asn1codec.EncodeAddressesOrRangesChoice(choices)
	if err != nil {
		return asn1codec.IPAddressFamily{}, err
	}
	return asn1codec.IPAddressFamily{AddressFamily: afi, IPAddressChoice: choiceVal}, nil
}

func padTo(b []byte, width int) []byte {
	if len(b) == width {
		return b
	}
	out := make([]byte, width)
	copy(out[width-len(b):], b)
	return out
}

// ASIdentifiersExtension builds the DER value of the
// sbgp-autonomousSysNum extension, per spec.md section 4.B: "inherit"
// or an ordered list preserving caller order.
func ASIdentifiersExtension(as ASResources) ([]byte, error) {
	if as.Inherit && len(as.Entries) > 0 {
		return nil, ErrMixedInherit
	}
	var choice asn1.RawValue
	var err error
	if as.Inherit {
		choice = asn1codec.InheritChoice()
	} else {
		if len(as.Entries) == 0 {
			return nil, ErrEmptyResourceSet
		}
		var entries []asn1.RawValue
		for _, e := range as.Entries {
			var rv asn1.RawValue
			if e.IsRange {
				rv, err = asn1codec.EncodeASRangeChoice(e.Min, e.Max)
			} else {
				rv, err = asn1codec.EncodeASIDChoice(e.ID)
			}
			if err != nil {
				return nil, err
			}
			entries = append(entries, rv)
		}
		choice, err = asn1codec.EncodeASIdsOrRangesChoice(entries)
		if err != nil {
			return nil, err
		}
	}
	asIDs, err := asn1codec.BuildASIdentifiers(choice)
	if err != nil {
		return nil, err
	}
	return asn1codec.Encode(asIDs)
}
