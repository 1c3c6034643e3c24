// Package oid implements ASN.1 Object Identifiers: an ordered sequence
// of non-negative integers, with structural equality and a canonical
// dotted textual form (spec.md section 3, "Object Identifier").
package oid

import (
	"encoding/asn1"
	"strconv"
	"strings"
)

// OID is an ordered sequence of non-negative arcs.
type OID []int

// String returns the canonical dotted textual form, e.g. "1.2.840.1".
func (o OID) String() string {
	parts := make([]string, len(o))
	for i, arc := range o {
		parts[i] = strconv.Itoa(arc)
	}
	return strings.Join(parts, ".")
}

// Equal reports structural equality.
func (o OID) Equal(other OID) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// ASN1 converts to the stdlib encoding/asn1 representation used at the
// encode/decode boundary.
func (o OID) ASN1() asn1.ObjectIdentifier {
	return asn1.ObjectIdentifier(o)
}

// FromASN1 converts from the stdlib representation.
func FromASN1(a asn1.ObjectIdentifier) OID {
	return OID(a)
}

// Well-known OIDs used throughout the core (spec.md sections 3-4).
var (
	SHA256                  = OID{2, 16, 840, 1, 101, 3, 4, 2, 1}
	RSAEncryption           = OID{1, 2, 840, 113549, 1, 1, 1}
	SHA256WithRSAEncryption = OID{1, 2, 840, 113549, 1, 1, 11}

	CommonName = OID{2, 5, 4, 3}

	ExtKeyUsage                  = OID{2, 5, 29, 15}
	ExtBasicConstraints          = OID{2, 5, 29, 19}
	ExtSubjectKeyIdentifier      = OID{2, 5, 29, 14}
	ExtAuthorityKeyIdentifier    = OID{2, 5, 29, 35}
	ExtCRLDistributionPoints     = OID{2, 5, 29, 31}
	ExtCertificatePolicies       = OID{2, 5, 29, 32}
	ExtAuthorityInfoAccess       = OID{1, 3, 6, 1, 5, 5, 7, 1, 1}
	ExtSubjectInfoAccess         = OID{1, 3, 6, 1, 5, 5, 7, 1, 11}
	ExtIPAddrBlock               = OID{1, 3, 6, 1, 5, 5, 7, 1, 7}
	ExtAutonomousSysNum          = OID{1, 3, 6, 1, 5, 5, 7, 1, 8}
	ExtCRLNumber                 = OID{2, 5, 29, 20}

	CertPolicyRPKI = OID{1, 3, 6, 1, 5, 5, 7, 14, 2}

	AccessDescCAIssuers     = OID{1, 3, 6, 1, 5, 5, 7, 48, 2}
	AccessDescCARepository  = OID{1, 3, 6, 1, 5, 5, 7, 48, 5}
	AccessDescRPKIManifest  = OID{1, 3, 6, 1, 5, 5, 7, 48, 10}
	AccessDescSignedObject  = OID{1, 3, 6, 1, 5, 5, 7, 48, 11}

	ContentTypeData           = OID{1, 2, 840, 113549, 1, 7, 1}
	ContentTypeSignedData     = OID{1, 2, 840, 113549, 1, 7, 2}
	ContentTypeROA            = OID{1, 2, 840, 113549, 1, 9, 16, 1, 24}
	ContentTypeManifest       = OID{1, 2, 840, 113549, 1, 9, 16, 1, 26}
	ContentTypeGhostbusters   = OID{1, 2, 840, 113549, 1, 9, 16, 1, 35}
	ContentTypeSignedChecklist = OID{1, 2, 840, 113549, 1, 9, 16, 1, 47}

	AttrContentType    = OID{1, 2, 840, 113549, 1, 9, 3}
	AttrMessageDigest  = OID{1, 2, 840, 113549, 1, 9, 4}
)
