package asn1codec

import (
	"bytes"
	"encoding/asn1"
	"math/big"
	"sort"

	"github.com/pkg/errors"
)

// ErrMalformedInput is returned for non-DER input or a value that
// fails constraint checks at decode time (spec.md section 4.A).
var ErrMalformedInput = errors.New("malformed input")

// ErrUnknownContentType is returned when an open-type slot references
// an OID that has not been registered (spec.md section 4.A).
var ErrUnknownContentType = errors.New("unknown content type")

// ErrConstraintViolation is returned when a decoded value fails a
// structural constraint the schema enforces.
var ErrConstraintViolation = errors.New("constraint violation")

// Encode marshals v to DER, wrapping any failure as a schema
// constraint violation.
func Encode(v any) ([]byte, error) {
	der, err := asn1.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(ErrConstraintViolation, "encode %T: %v", v, err)
	}
	return der, nil
}

// Decode unmarshals der into v, requiring that the entire input is
// consumed -- a DER decoder must reject trailing garbage.
func Decode(der []byte, v any) error {
	rest, err := asn1.Unmarshal(der, v)
	if err != nil {
		return errors.Wrapf(ErrMalformedInput, "decode %T: %v", v, err)
	}
	if len(rest) != 0 {
		return errors.Wrapf(ErrMalformedInput, "decode %T: %d trailing bytes", v, len(rest))
	}
	return nil
}

// RoundTrip re-encodes der through v to verify DER round-trip
// stability (spec.md section 8, property 1). It returns the
// re-encoded bytes so callers can compare against the original.
func RoundTrip(der []byte, v any) ([]byte, error) {
	if err := Decode(der, v); err != nil {
		return nil, err
	}
	return Encode(v)
}

// retagImplicit rewrites the leading identifier octet of a DER TLV so
// that an otherwise-ordinary universal tag (e.g. SET OF, tag 0x31)
// appears as an IMPLICIT context-specific tag, per CMS's [0] IMPLICIT
// SET OF constructs (certificates, signedAttrs). Only single-byte
// identifier octets are supported, sufficient for every tag number
// used in this profile (all below 31).
func retagImplicit(der []byte, class, constructed, tag byte) ([]byte, error) {
	if len(der) == 0 {
		return nil, errors.New("retagImplicit: empty input")
	}
	if tag >= 31 {
		return nil, errors.New("retagImplicit: high tag numbers unsupported")
	}
	out := make([]byte, len(der))
	copy(out, der)
	out[0] = (class << 6) | (constructed << 5) | tag
	return out, nil
}

// RetagContext0 re-tags a DER value (commonly a SET OF encoding) as
// [0] IMPLICIT, constructed, context-specific.
func RetagContext0(der []byte) ([]byte, error) {
	return retagImplicit(der, 2 /* context-specific */, 1 /* constructed */, 0)
}

// RetagContext1 re-tags as [1] IMPLICIT, constructed, context-specific.
func RetagContext1(der []byte) ([]byte, error) {
	return retagImplicit(der, 2, 1, 1)
}

// MarshalSetOf encodes elements as a DER SET OF, sorting the encoded
// members lexicographically by their own DER encoding as required for
// canonical DER SET OF ordering.
func MarshalSetOf(elements [][]byte) ([]byte, error) {
	sorted := make([][]byte, len(elements))
	copy(sorted, elements)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})
	var body bytes.Buffer
	for _, e := range sorted {
		body.Write(e)
	}
	return wrapTLV(0x31, body.Bytes()), nil
}

// wrapTLV prepends a DER tag+length header (definite-length encoding)
// to content, producing a complete TLV.
func wrapTLV(tag byte, content []byte) []byte {
	var out bytes.Buffer
	out.WriteByte(tag)
	out.Write(encodeLength(len(content)))
	out.Write(content)
	return out.Bytes()
}

// encodeLength produces a DER definite-length encoding of n.
func encodeLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var lenBytes []byte
	for n > 0 {
		lenBytes = append([]byte{byte(n & 0xff)}, lenBytes...)
		n >>= 8
	}
	return append([]byte{byte(0x80 | len(lenBytes))}, lenBytes...)
}

// TrimmedPrefixBitString encodes a prefix as the minimal-length BIT
// STRING whose BitLength equals prefixLen, per RFC 3779 section 2.1.1:
// "the address MUST be encoded using a minimum-length bit string."
// addr is the full address (4 or 16 bytes); only the leading
// prefixLen bits are significant, and trailing bytes are dropped.
func TrimmedPrefixBitString(addr []byte, prefixLen int) asn1.BitString {
	return truncateBits(addr, prefixLen)
}

// truncateBits returns a BitString containing only the first nbits
// bits of addr, with unused trailing bits in the final byte zeroed
// (they must be zero in a minimal-length DER BIT STRING).
func truncateBits(addr []byte, nbits int) asn1.BitString {
	nbytes := (nbits + 7) / 8
	if nbytes > len(addr) {
		nbytes = len(addr)
	}
	buf := make([]byte, nbytes)
	copy(buf, addr[:nbytes])
	if rem := nbits % 8; rem != 0 && nbytes > 0 {
		mask := byte(0xff << (8 - rem))
		buf[nbytes-1] &= mask
	}
	return asn1.BitString{Bytes: buf, BitLength: nbits}
}

// LowBoundBitString encodes the low bound of an RFC 3779 address range:
// the minimal prefix of addr such that all less-significant bits are
// zero, with trailing zero bits stripped (RFC 3779 section 2.1.2).
func LowBoundBitString(addr []byte) asn1.BitString {
	nbits := len(addr) * 8
	for nbits > 0 && bitAt(addr, nbits-1) == 0 {
		nbits--
	}
	return truncateBits(addr, nbits)
}

// HighBoundBitString encodes the high bound of an RFC 3779 address
// range: the minimal prefix of addr such that all less-significant
// bits are one, with trailing one bits stripped.
func HighBoundBitString(addr []byte) asn1.BitString {
	nbits := len(addr) * 8
	for nbits > 0 && bitAt(addr, nbits-1) == 1 {
		nbits--
	}
	return truncateBits(addr, nbits)
}

// bitAt returns bit i of addr (0 = most significant bit of byte 0).
func bitAt(addr []byte, i int) int {
	byteIdx := i / 8
	bitIdx := 7 - uint(i%8)
	if byteIdx >= len(addr) {
		return 0
	}
	return int((addr[byteIdx] >> bitIdx) & 1)
}

// BitStringToBytes renders a BIT STRING back into a fixed-width
// address of the given byte length, for decode paths and tests.
func BitStringToBytes(bs asn1.BitString, width int) []byte {
	out := make([]byte, width)
	copy(out, bs.Bytes)
	return out
}

// BigIntBytesEqual is a small helper used by tests asserting serial
// number equality independent of *big.Int pointer identity.
func BigIntBytesEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}
