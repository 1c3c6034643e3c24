package asn1codec

import (
	"encoding/asn1"

	"github.com/pkg/errors"

	"rpkica/internal/oid"
)

// ContentInfo is the outer CMS wrapper: ContentInfo ::= SEQUENCE
// { contentType ContentType, content [0] EXPLICIT ANY DEFINED BY
// contentType }. The Content field always carries a pre-wrapped
// RawValue (see WrapContentInfo): encoding/asn1 marshals a RawValue's
// FullBytes verbatim and ignores any tag options on the field, so the
// [0] EXPLICIT wrapper must be built by hand rather than left to
// struct-tag inference.
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue
}

// EncapsulatedContentInfo carries the signed content's type and,
// optionally, the content bytes themselves (always present in this
// profile -- RPKI signed objects never omit eContent).
type EncapsulatedContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     []byte `asn1:"explicit,optional,tag:0"`
}

// Attribute is a CMS Attribute: SEQUENCE { type, values SET OF AttributeValue }.
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue `asn1:"set"`
}

// SignerInfo is the single entry in SignedData.signerInfos this
// profile produces: version=3, sid=subjectKeyIdentifier, signedAttrs
// present, unsignedAttrs absent.
type SignerInfo struct {
	Version            int
	SubjectKeyID       []byte `asn1:"tag:0"`
	DigestAlgorithm     AlgorithmIdentifier
	SignedAttrs        asn1.RawValue `asn1:"tag:0"`
	SignatureAlgorithm AlgorithmIdentifier
	Signature          []byte
}

// signedDataTail is SignedData with certificates/signerInfos left as
// raw DER so MarshalSignedData can control the implicit SET tagging
// CMS requires (see RetagContext0).
type signedDataTail struct {
	Version          int
	DigestAlgorithms []AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo EncapsulatedContentInfo
	Certificates     asn1.RawValue `asn1:"tag:0"`
	SignerInfos      asn1.RawValue `asn1:"set"`
}

// BuildAttribute encodes a single CMS Attribute from one DER-encoded
// value.
func BuildAttribute(attrType oid.OID, value asn1.RawValue) Attribute {
	return Attribute{Type: attrType.ASN1(), Values: []asn1.RawValue{value}}
}

// MarshalSignedAttrs DER-encodes the signedAttrs SET OF Attribute in
// two forms: signingForm is the plain UNIVERSAL SET OF encoding that
// RFC 5652 section 5.4 requires the message digest/signature to be
// computed over; wireForm is the same bytes re-tagged [0] IMPLICIT for
// embedding in the SignerInfo structure.
func MarshalSignedAttrs(attrs []Attribute) (signingForm, wireForm []byte, err error) {
	encoded := make([][]byte, len(attrs))
	for i, a := range attrs {
		der, err := Encode(a)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "encode attribute %d", i)
		}
		encoded[i] = der
	}
	signingForm, err = MarshalSetOf(encoded)
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshal signedAttrs SET OF")
	}
	wireForm, err = RetagContext0(signingForm)
	if err != nil {
		return nil, nil, errors.Wrap(err, "retag signedAttrs")
	}
	return signingForm, wireForm, nil
}

// MarshalSignedData DER-encodes a complete CMS SignedData value given
// its already-DER-encoded certificate and the fully-populated
// SignerInfo.
func MarshalSignedData(digestAlgs []AlgorithmIdentifier, eci EncapsulatedContentInfo, certDER []byte, signer SignerInfo) ([]byte, error) {
	certsSet, err := MarshalSetOf([][]byte{certDER})
	if err != nil {
		return nil, errors.Wrap(err, "marshal certificates SET")
	}
	certsImplicit, err := RetagContext0(certsSet)
	if err != nil {
		return nil, errors.Wrap(err, "retag certificates")
	}

	signerDER, err := Encode(signer)
	if err != nil {
		return nil, errors.Wrap(err, "encode SignerInfo")
	}
	signerInfosSet, err := MarshalSetOf([][]byte{signerDER})
	if err != nil {
		return nil, errors.Wrap(err, "marshal signerInfos SET")
	}

	tail := signedDataTail{
		Version:          3,
		DigestAlgorithms: digestAlgs,
		EncapContentInfo: eci,
		Certificates:     asn1.RawValue{FullBytes: certsImplicit},
		SignerInfos:      asn1.RawValue{FullBytes: signerInfosSet},
	}
	return Encode(tail)
}

// WrapContentInfo wraps a DER-encoded SignedData value as the outer
// ContentInfo(contentType=id-signedData, content=...), building the
// [0] EXPLICIT wrapper by hand (see the ContentInfo doc comment).
func WrapContentInfo(contentType oid.OID, contentDER []byte) ([]byte, error) {
	ci := ContentInfo{
		ContentType: contentType.ASN1(),
		Content:     asn1.RawValue{FullBytes: wrapTLV(0xa0, contentDER)},
	}
	return Encode(ci)
}
