package asn1codec

import (
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// RFC 3779's IPAddressOrRange and ipAddressChoice/ASIdentifierChoice
// are untagged CHOICE types, distinguished purely by the universal tag
// of whichever alternative is present (BIT STRING vs SEQUENCE, NULL vs
// SEQUENCE). encoding/asn1 has no native CHOICE support, so each
// alternative is built as a pre-encoded asn1.RawValue by the functions
// below and spliced into the surrounding SEQUENCE; Go's asn1.Marshal
// copies a RawValue's FullBytes verbatim, so the resulting bytes are
// exactly the chosen alternative's DER encoding with no extra wrapper.

// ExplicitWrap wraps der in an EXPLICIT context-specific constructed
// tag, for CHOICE/ANY fields where encoding/asn1's struct-tag explicit
// handling does not apply (any field typed asn1.RawValue).
func ExplicitWrap(tagNum int, der []byte) []byte {
	return wrapTLV(byte(0xa0|tagNum), der)
}

// IPAddressRange is IPAddressRange ::= SEQUENCE { min, max }.
type IPAddressRange struct {
	Min asn1.BitString
	Max asn1.BitString
}

// EncodeAddressPrefixChoice encodes the "addressPrefix" alternative of
// IPAddressOrRange.
func EncodeAddressPrefixChoice(bs asn1.BitString) (asn1.RawValue, error) {
	der, err := Encode(bs)
	if err != nil {
		return asn1.RawValue{}, errors.Wrap(err, "encode addressPrefix")
	}
	return asn1.RawValue{FullBytes: der}, nil
}

// EncodeAddressRangeChoice encodes the "addressRange" alternative of
// IPAddressOrRange.
func EncodeAddressRangeChoice(min, max asn1.BitString) (asn1.RawValue, error) {
	der, err := Encode(IPAddressRange{Min: min, Max: max})
	if err != nil {
		return asn1.RawValue{}, errors.Wrap(err, "encode addressRange")
	}
	return asn1.RawValue{FullBytes: der}, nil
}

// IPAddressFamily is one entry of IPAddrBlocks: SEQUENCE { addressFamily
// OCTET STRING, ipAddressChoice IPAddressChoice }. IPAddressChoice
// holds whichever CHOICE alternative (inherit NULL, or
// addressesOrRanges SEQUENCE OF IPAddressOrRange) the caller built.
type IPAddressFamily struct {
	AddressFamily   []byte
	IPAddressChoice asn1.RawValue
}

// IPAddrBlocks is the sbgp-ipAddrBlock extension value: SEQUENCE OF
// IPAddressFamily.
type IPAddrBlocks []IPAddressFamily

// InheritChoice is the shared "inherit" CHOICE alternative (ASN.1 NULL)
// used by both ipAddressChoice and ASIdentifierChoice.
func InheritChoice() asn1.RawValue {
	return asn1.NullRawValue
}

// EncodeAddressesOrRangesChoice encodes the "addressesOrRanges"
// alternative: SEQUENCE OF IPAddressOrRange, from already-built
// IPAddressOrRange RawValues (see EncodeAddressPrefixChoice /
// EncodeAddressRangeChoice).
func EncodeAddressesOrRangesChoice(entries []asn1.RawValue) (asn1.RawValue, error) {
	der, err := Encode(entries)
	if err != nil {
		return asn1.RawValue{}, errors.Wrap(err, "encode addressesOrRanges")
	}
	return asn1.RawValue{FullBytes: der}, nil
}

// ASRange is ASRange ::= SEQUENCE { min, max }, both ASId (INTEGER).
type ASRange struct {
	Min int
	Max int
}

// EncodeASIDChoice encodes the "id" alternative of ASIdOrRange.
func EncodeASIDChoice(id int64) (asn1.RawValue, error) {
	der, err := Encode(big.NewInt(id))
	if err != nil {
		return asn1.RawValue{}, errors.Wrap(err, "encode AS id")
	}
	return asn1.RawValue{FullBytes: der}, nil
}

// EncodeASRangeChoice encodes the "range" alternative of ASIdOrRange.
func EncodeASRangeChoice(min, max int64) (asn1.RawValue, error) {
	der, err := Encode(struct {
		Min, Max *big.Int
	}{big.NewInt(min), big.NewInt(max)})
	if err != nil {
		return asn1.RawValue{}, errors.Wrap(err, "encode AS range")
	}
	return asn1.RawValue{FullBytes: der}, nil
}

// EncodeASIdsOrRangesChoice encodes the "asIdsOrRanges" alternative:
// SEQUENCE OF ASIdOrRange.
func EncodeASIdsOrRangesChoice(entries []asn1.RawValue) (asn1.RawValue, error) {
	der, err := Encode(entries)
	if err != nil {
		return asn1.RawValue{}, errors.Wrap(err, "encode asIdsOrRanges")
	}
	return asn1.RawValue{FullBytes: der}, nil
}

// ASIdentifiers is the sbgp-autonomousSysNum extension value:
// SEQUENCE { asnum [0] EXPLICIT ASIdentifierChoice }. This profile
// never populates the rdi [1] branch.
type ASIdentifiers struct {
	ASNum asn1.RawValue
}

// BuildASIdentifiers wraps an ASIdentifierChoice RawValue (built via
// InheritChoice or EncodeASIdsOrRangesChoice) as the explicit [0] asnum
// field.
func BuildASIdentifiers(choice asn1.RawValue) (ASIdentifiers, error) {
	der, err := Encode(choice)
	if err != nil {
		return ASIdentifiers{}, errors.Wrap(err, "encode ASIdentifierChoice")
	}
	return ASIdentifiers{ASNum: asn1.RawValue{FullBytes: ExplicitWrap(0, der)}}, nil
}

// FileAndHash is one Manifest fileList entry.
type FileAndHash struct {
	File string
	Hash asn1.BitString
}

// ManifestContent is the Manifest eContent type (RFC 6486).
type ManifestContent struct {
	Version        int `asn1:"optional,explicit,tag:0,default:0"`
	ManifestNumber *big.Int
	ThisUpdate     time.Time `asn1:"generalized"`
	NextUpdate     time.Time `asn1:"generalized"`
	FileHashAlg    asn1.ObjectIdentifier
	FileList       []FileAndHash
}

// ROAIPAddress is one ROAIPAddress entry: address BIT STRING,
// maxLength INTEGER OPTIONAL. NoMaxLength is the sentinel used when
// the ROA entry carries no maxLength.
const NoMaxLength = -1

type ROAIPAddress struct {
	Address   asn1.BitString
	MaxLength int `asn1:"optional,default:-1"`
}

// ROAIPAddressFamily is one family group of a ROA's ipAddrBlocks.
type ROAIPAddressFamily struct {
	AddressFamily []byte
	Addresses     []ROAIPAddress
}

// RouteOriginAttestation is the ROA eContent type (RFC 6482).
type RouteOriginAttestation struct {
	Version      int `asn1:"optional,explicit,tag:0,default:0"`
	ASID         *big.Int
	IPAddrBlocks []ROAIPAddressFamily
}
