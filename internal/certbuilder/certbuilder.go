// Package certbuilder assembles DER X.509 Resource Certificates and
// CRLs per the RPKI profile (spec.md component C): fixed field order,
// fixed extension set, RSA-PKCS#1v1.5/SHA-256 signatures.
package certbuilder

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"rpkica/internal/asn1codec"
	"rpkica/internal/clock"
	"rpkica/internal/oid"
	"rpkica/internal/resources"
)

// fullBitString wraps b as a BIT STRING with no unused bits -- used
// for subjectPublicKey and signature values, which are always
// whole-byte.
func fullBitString(b []byte) asn1.BitString {
	return asn1.BitString{Bytes: b, BitLength: len(b) * 8}
}

// SIAEntry is one AccessDescription of a SubjectInformationAccess
// extension.
type SIAEntry struct {
	Method oid.OID
	URI    string
}

// CertParams carries everything certbuilder needs to assemble one
// certificate's extension set; fields left at their zero value
// signal the corresponding extension is omitted (the Trust Anchor
// case: no AKI, no CRLDP, no AIA).
type CertParams struct {
	SerialNumber *big.Int
	Subject      string
	Issuer       string
	NotBefore    time.Time
	NotAfter     time.Time
	PublicKey    *rsa.PublicKey
	IsCA         bool

	IssuerSKI    []byte // nil on a TA (self-issued, no AKI)
	CRLDPURI     string // empty on a TA
	AIAIssuerURI string // empty on a TA
	SIA          []SIAEntry

	Resources resources.Set
}

// SubjectKeyIdentifier computes the SubjectKeyIdentifier extension
// value for pub: RFC 5280 method 1, the SHA-1 hash of the DER-encoded
// RSAPublicKey value carried inside subjectPublicKey (the BIT STRING's
// content octets, not the whole SubjectPublicKeyInfo).
func SubjectKeyIdentifier(pub *rsa.PublicKey) ([]byte, error) {
	der, err := asn1codec.Encode(asn1codec.RSAPublicKey{N: pub.N, E: pub.E})
	if err != nil {
		return nil, errors.Wrap(err, "encode RSAPublicKey for SKI")
	}
	sum := sha1.Sum(der)
	return sum[:], nil
}

func subjectPublicKeyInfo(pub *rsa.PublicKey) (asn1codec.SubjectPublicKeyInfo, error) {
	der, err := asn1codec.Encode(asn1codec.RSAPublicKey{N: pub.N, E: pub.E})
	if err != nil {
		return asn1codec.SubjectPublicKeyInfo{}, errors.Wrap(err, "encode RSAPublicKey")
	}
	return asn1codec.SubjectPublicKeyInfo{
		Algorithm: asn1codec.RSAPublicKeyAlgorithmIdentifier(),
		PublicKey: fullBitString(der),
	}, nil
}

// namedBitString builds the minimal-length BIT STRING for a KeyUsage
// value, given the (0-indexed, MSB-first) bit positions that are set.
func namedBitString(bits ...int) asn1.BitString {
	maxBit := 0
	for _, b := range bits {
		if b > maxBit {
			maxBit = b
		}
	}
	nbytes := maxBit/8 + 1
	buf := make([]byte, nbytes)
	for _, b := range bits {
		buf[b/8] |= 0x80 >> uint(b%8)
	}
	bitLen := maxBit + 1
	return asn1.BitString{Bytes: buf, BitLength: bitLen}
}

var (
	keyUsageCA = namedBitString(5, 6) // keyCertSign, cRLSign
	keyUsageEE = namedBitString(0)    // digitalSignature
)

func rdn(cn string) pkix.RDNSequence {
	return pkix.Name{CommonName: cn}.ToRDNSequence()
}

// extension looks up id's criticality in the package-level EXTENSION
// registry and builds the Extension value, so adding a registry entry
// is the only place that decision is made (spec.md section 5's
// registry-driven encode/decode contract). Every id this builder emits
// is seeded at asn1codec init(); an unregistered id is a programming
// error, not an input error, so it panics rather than silently
// defaulting criticality.
func extension(id oid.OID, der []byte) asn1codec.Extension {
	d, ok := asn1codec.Extensions.Lookup(id)
	if !ok {
		panic("certbuilder: unregistered extension OID " + id.String())
	}
	return asn1codec.Extension{Id: id.ASN1(), Critical: d.Critical, Value: der}
}

// buildExtensions assembles the fixed RPKI extension set in the order
// spec.md section 3 lists them.
func buildExtensions(p CertParams, ski []byte) ([]asn1codec.Extension, error) {
	var exts []asn1codec.Extension

	if p.IsCA {
		der, err := asn1codec.Encode(asn1codec.BasicConstraints{IsCA: true})
		if err != nil {
			return nil, errors.Wrap(err, "encode BasicConstraints")
		}
		exts = append(exts, extension(oid.ExtBasicConstraints, der))
	}

	skiDER, err := asn1codec.Encode(ski)
	if err != nil {
		return nil, errors.Wrap(err, "encode SubjectKeyIdentifier")
	}
	exts = append(exts, extension(oid.ExtSubjectKeyIdentifier, skiDER))

	if p.IssuerSKI != nil {
		der, err := asn1codec.Encode(asn1codec.AuthorityKeyIdentifier{KeyIdentifier: p.IssuerSKI})
		if err != nil {
			return nil, errors.Wrap(err, "encode AuthorityKeyIdentifier")
		}
		exts = append(exts, extension(oid.ExtAuthorityKeyIdentifier, der))
	}

	ku := keyUsageEE
	if p.IsCA {
		ku = keyUsageCA
	}
	kuDER, err := asn1codec.Encode(ku)
	if err != nil {
		return nil, errors.Wrap(err, "encode KeyUsage")
	}
	exts = append(exts, extension(oid.ExtKeyUsage, kuDER))

	if p.CRLDPURI != "" {
		der, err := buildCRLDP(p.CRLDPURI)
		if err != nil {
			return nil, err
		}
		exts = append(exts, extension(oid.ExtCRLDistributionPoints, der))
	}

	if p.AIAIssuerURI != "" {
		ads := asn1codec.AccessDescriptions{{
			AccessMethod:   oid.AccessDescCAIssuers.ASN1(),
			AccessLocation: asn1codec.URIGeneralName(p.AIAIssuerURI),
		}}
		der, err := asn1codec.Encode(ads)
		if err != nil {
			return nil, errors.Wrap(err, "encode AuthorityInfoAccess")
		}
		exts = append(exts, extension(oid.ExtAuthorityInfoAccess, der))
	}

	if len(p.SIA) > 0 {
		var ads asn1codec.AccessDescriptions
		for _, s := range p.SIA {
			ads = append(ads, asn1codec.AccessDescription{
				AccessMethod:   s.Method.ASN1(),
				AccessLocation: asn1codec.URIGeneralName(s.URI),
			})
		}
		der, err := asn1codec.Encode(ads)
		if err != nil {
			return nil, errors.Wrap(err, "encode SubjectInfoAccess")
		}
		exts = append(exts, extension(oid.ExtSubjectInfoAccess, der))
	}

	policyDER, err := asn1codec.Encode([]asn1codec.PolicyInformation{{PolicyIdentifier: oid.CertPolicyRPKI.ASN1()}})
	if err != nil {
		return nil, errors.Wrap(err, "encode CertificatePolicies")
	}
	exts = append(exts, extension(oid.ExtCertificatePolicies, policyDER))

	if p.Resources.IPv4 != nil || p.Resources.IPv6 != nil {
		der, err := resources.IPAddrBlocksExtension(p.Resources.IPv4, p.Resources.IPv6)
		if err != nil {
			return nil, errors.Wrap(err, "encode sbgp-ipAddrBlock")
		}
		exts = append(exts, extension(oid.ExtIPAddrBlock, der))
	}
	if p.Resources.AS != nil {
		der, err := resources.ASIdentifiersExtension(*p.Resources.AS)
		if err != nil {
			return nil, errors.Wrap(err, "encode sbgp-autonomousSysNum")
		}
		exts = append(exts, extension(oid.ExtAutonomousSysNum, der))
	}

	return exts, nil
}

// buildCRLDP encodes a CRLDistributionPoints value with a single
// DistributionPoint carrying one fullName URI.
func buildCRLDP(uri string) ([]byte, error) {
	type distributionPointName struct {
		FullName []asn1.RawValue `asn1:"optional,explicit,tag:0"`
	}
	type distributionPoint struct {
		DistributionPoint distributionPointName `asn1:"optional,explicit,tag:0"`
	}
	dp := distributionPoint{
		DistributionPoint: distributionPointName{
			FullName: []asn1.RawValue{asn1codec.URIGeneralName(uri)},
		},
	}
	der, err := asn1codec.Encode([]distributionPoint{dp})
	if err != nil {
		return nil, errors.Wrap(err, "encode CRLDistributionPoints")
	}
	return der, nil
}

// BuildCertificate assembles a complete DER Resource Certificate,
// signed by issuerKey, and returns the DER bytes together with the
// subject's SubjectKeyIdentifier (callers need it to build the next
// certificate down the chain's AuthorityKeyIdentifier).
func BuildCertificate(p CertParams, issuerKey *rsa.PrivateKey) (der []byte, ski []byte, err error) {
	ski, err = SubjectKeyIdentifier(p.PublicKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "compute SubjectKeyIdentifier")
	}

	exts, err := buildExtensions(p, ski)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build extensions")
	}

	spki, err := subjectPublicKeyInfo(p.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	tbs := asn1codec.TBSCertificate{
		Version:            2, // v3: every Resource Certificate carries extensions
		SerialNumber:       p.SerialNumber,
		SignatureAlgorithm: asn1codec.RSASignatureAlgorithmIdentifier(),
		Issuer:             rdn(p.Issuer),
		Validity:           asn1codec.Validity{NotBefore: p.NotBefore, NotAfter: p.NotAfter},
		Subject:            rdn(p.Subject),
		PublicKey:          spki,
		Extensions:         exts,
	}

	tbsDER, err := asn1codec.Encode(tbs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode TBSCertificate")
	}

	sig, err := signSHA256(issuerKey, tbsDER)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sign TBSCertificate")
	}

	cert := asn1codec.Certificate{
		TBSCertificate:     tbs,
		SignatureAlgorithm: asn1codec.RSASignatureAlgorithmIdentifier(),
		SignatureValue:     fullBitString(sig),
	}
	certDER, err := asn1codec.Encode(cert)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode Certificate")
	}
	return certDER, ski, nil
}

// RevokedEntry is one CRL revocation record.
type RevokedEntry struct {
	SerialNumber   *big.Int
	RevocationDate time.Time
	// NotAfter is the revoked certificate's own expiry, used only by
	// CRL pruning (see PruneExpired) and not encoded.
	NotAfter time.Time
}

// CRLParams carries everything certbuilder needs to assemble one
// CRL.
type CRLParams struct {
	Issuer    string
	ThisUpdate time.Time
	NextUpdate time.Time
	CRLNumber  *big.Int
	IssuerSKI  []byte
	Revoked    []RevokedEntry
}

// PruneExpired drops entries whose NotAfter lies more than crlDays in
// the past relative to clk, returning the pruned list and the number
// dropped. rpkica.CA.IssueCRL calls this before BuildCRL to
// implement the expired-entry pruning rule spec.md leaves optional;
// this module prunes and reports each drop through the caller's
// warnings channel.
func PruneExpired(entries []RevokedEntry, clk clock.Clock, crlDays int) (kept []RevokedEntry, pruned []RevokedEntry) {
	cutoff := clk.Now().Add(-time.Duration(crlDays) * 24 * time.Hour)
	for _, e := range entries {
		if e.NotAfter.Before(cutoff) {
			pruned = append(pruned, e)
			continue
		}
		kept = append(kept, e)
	}
	return kept, pruned
}

// BuildCRL assembles a complete DER X.509 v2 CRL, signed by issuerKey.
func BuildCRL(p CRLParams, issuerKey *rsa.PrivateKey) ([]byte, error) {
	akiDER, err := asn1codec.Encode(asn1codec.AuthorityKeyIdentifier{KeyIdentifier: p.IssuerSKI})
	if err != nil {
		return nil, errors.Wrap(err, "encode AuthorityKeyIdentifier")
	}

	var revoked []asn1codec.RevokedCertificate
	for _, r := range p.Revoked {
		revoked = append(revoked, asn1codec.RevokedCertificate{
			SerialNumber:   r.SerialNumber,
			RevocationDate: r.RevocationDate,
		})
	}

	tbs := asn1codec.TBSCertList{
		Version:             1, // v2
		Signature:           asn1codec.RSASignatureAlgorithmIdentifier(),
		Issuer:              rdn(p.Issuer),
		ThisUpdate:          p.ThisUpdate,
		NextUpdate:          p.NextUpdate,
		RevokedCertificates: revoked,
		Extensions: []asn1codec.Extension{
			extension(oid.ExtCRLNumber, mustEncode(p.CRLNumber)),
			extension(oid.ExtAuthorityKeyIdentifier, akiDER),
		},
	}

	tbsDER, err := asn1codec.Encode(tbs)
	if err != nil {
		return nil, errors.Wrap(err, "encode TBSCertList")
	}

	sig, err := signSHA256(issuerKey, tbsDER)
	if err != nil {
		return nil, errors.Wrap(err, "sign TBSCertList")
	}

	crl := asn1codec.CertificateList{
		TBSCertList:        tbs,
		SignatureAlgorithm: asn1codec.RSASignatureAlgorithmIdentifier(),
		SignatureValue:     fullBitString(sig),
	}
	der, err := asn1codec.Encode(crl)
	if err != nil {
		return nil, errors.Wrap(err, "encode CertificateList")
	}
	return der, nil
}

func mustEncode(v any) []byte {
	der, err := asn1codec.Encode(v)
	if err != nil {
		panic(err)
	}
	return der
}

func signSHA256(key *rsa.PrivateKey, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, errors.Wrap(err, "RSA signature")
	}
	return sig, nil
}
