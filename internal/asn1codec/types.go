// Package asn1codec implements the DER encode/decode layer (spec.md
// component A): the structural ASN.1 types shared by CMS, PKIX and the
// RPKI-specific modules, and the two open-type registries that let new
// eContent types and certificate extensions be registered at runtime
// without touching this package.
//
// encoding/asn1 supplies struct-tag-driven DER marshal/unmarshal; the
// RFC 3779 bit-string trimming, SET OF sort order and implicit-tag
// re-tagging this profile additionally requires are hand-written in
// der.go, in the same direct style the teacher uses in its own raw
// AuthorityKeyIdentifier marshal.
package asn1codec

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"
)

// AlgorithmIdentifier is re-used from crypto/x509/pkix: it is already
// the idiomatic Go representation of the PKIX/CMS AlgorithmIdentifier
// type and needs no RPKI-specific behavior.
type AlgorithmIdentifier = pkix.AlgorithmIdentifier

// Extension is re-used from crypto/x509/pkix for the same reason.
type Extension = pkix.Extension

// SHA256AlgorithmIdentifier is the digest AlgorithmIdentifier with
// absent parameters, per RFC 7935.
func SHA256AlgorithmIdentifier() AlgorithmIdentifier {
	return AlgorithmIdentifier{
		Algorithm: asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1},
	}
}

// RSASignatureAlgorithmIdentifier is the signature AlgorithmIdentifier
// for RSA-PKCS#1v1.5 with SHA-256, with absent parameters per RFC 7935.
func RSASignatureAlgorithmIdentifier() AlgorithmIdentifier {
	return AlgorithmIdentifier{
		Algorithm: asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11},
	}
}

// RSAPublicKeyAlgorithmIdentifier is the rsaEncryption AlgorithmIdentifier
// with a NULL parameters field, as required for subjectPublicKeyInfo.
func RSAPublicKeyAlgorithmIdentifier() AlgorithmIdentifier {
	return AlgorithmIdentifier{
		Algorithm:  asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1},
		Parameters: asn1.NullRawValue,
	}
}

// Validity is the certificate validity window. RPKI mandates
// GeneralizedTime throughout (RFC 6487), not the UTCTime/GeneralizedTime
// split RFC 5280 allows for dates before/after 2050.
type Validity struct {
	NotBefore time.Time `asn1:"generalized"`
	NotAfter  time.Time `asn1:"generalized"`
}

// SubjectPublicKeyInfo carries an encoded public key and its algorithm.
type SubjectPublicKeyInfo struct {
	Algorithm AlgorithmIdentifier
	PublicKey asn1.BitString
}

// RSAPublicKey is the ASN.1 RSAPublicKey type embedded inside the
// subjectPublicKey BIT STRING for RSA keys.
type RSAPublicKey struct {
	N *big.Int
	E int
}

// TBSCertificate is the to-be-signed portion of a Resource Certificate,
// fields in the order spec.md section 4.C mandates: serial -> subject
// -> issuer -> validity -> subjectPublicKeyInfo -> extensions. Note
// that the X.509 wire order differs from the spec's construction
// order (issuer precedes validity, which precedes subject) -- spec.md
// distinguishes "construction order" (the order fields are computed
// and assembled by the builder) from the fixed X.509 wire layout,
// which TBSCertificate reproduces exactly since RFC 5280 mandates it.
type TBSCertificate struct {
	Version            int `asn1:"explicit,tag:0,default:0"`
	SerialNumber       *big.Int
	SignatureAlgorithm AlgorithmIdentifier
	Issuer             pkix.RDNSequence
	Validity           Validity
	Subject            pkix.RDNSequence
	PublicKey          SubjectPublicKeyInfo
	Extensions         []Extension `asn1:"optional,explicit,tag:3"`
}

// Certificate is the outer X.509 v3 Certificate SEQUENCE.
type Certificate struct {
	TBSCertificate     TBSCertificate
	SignatureAlgorithm AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

// RevokedCertificate is one entry of a CRL's revokedCertificates field.
type RevokedCertificate struct {
	SerialNumber   *big.Int
	RevocationDate time.Time `asn1:"generalized"`
}

// TBSCertList is the to-be-signed portion of an X.509 v2 CRL.
type TBSCertList struct {
	Version             int `asn1:"default:0"`
	Signature           AlgorithmIdentifier
	Issuer              pkix.RDNSequence
	ThisUpdate          time.Time `asn1:"generalized"`
	NextUpdate          time.Time `asn1:"generalized"`
	RevokedCertificates []RevokedCertificate `asn1:"optional"`
	Extensions          []Extension          `asn1:"optional,explicit,tag:0"`
}

// CertificateList is the outer X.509 v2 CRL SEQUENCE.
type CertificateList struct {
	TBSCertList        TBSCertList
	SignatureAlgorithm AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

// BasicConstraints is the BasicConstraints extension value, always
// encoded as (ca=true, no path length) for RPKI CA certificates.
type BasicConstraints struct {
	IsCA bool `asn1:"optional"`
}

// AuthorityKeyIdentifier is the AuthorityKeyIdentifier extension value
// carrying only the keyIdentifier choice.
type AuthorityKeyIdentifier struct {
	KeyIdentifier []byte `asn1:"optional,tag:0"`
}

// GeneralName/AccessDescription model the minimal GeneralName CHOICE
// this profile needs: uniformResourceIdentifier [6] IA5String.
type AccessDescription struct {
	AccessMethod   asn1.ObjectIdentifier
	AccessLocation asn1.RawValue
}

// AccessDescriptions is SubjectInformationAccess / AuthorityInfoAccess
// extension value: SEQUENCE OF AccessDescription.
type AccessDescriptions []AccessDescription

// DistributionPoint is a minimal CRLDistributionPoints entry carrying
// only a fullName URI, the only form RPKI certificates use.
type DistributionPoint struct {
	DistributionPoint distributionPointName `asn1:"optional,explicit,tag:0"`
}

type distributionPointName struct {
	FullName []asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// PolicyInformation is a CertificatePolicies entry with no qualifiers.
type PolicyInformation struct {
	PolicyIdentifier asn1.ObjectIdentifier
}

// URIGeneralName builds the [6] IA5String GeneralName RawValue for a
// URI, used by AccessDescription.AccessLocation and
// DistributionPoint fullName entries.
func URIGeneralName(uri string) asn1.RawValue {
	return asn1.RawValue{
		Class: asn1.ClassContextSpecific,
		Tag:   6,
		Bytes: []byte(uri),
	}
}
