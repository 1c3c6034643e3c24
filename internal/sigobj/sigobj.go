// Package sigobj assembles the CMS ContentInfo(SignedData{...}) wrapper
// around a concrete RPKI eContent value (spec.md component E): Manifest,
// ROA, and GhostbustersRecord each implement the Content capability and
// are carried through the same assembly pipeline, which never switches
// on the concrete type.
package sigobj

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"

	"rpkica/internal/asn1codec"
	"rpkica/internal/oid"
	"rpkica/internal/resources"
)

func bigFromInt64(v int64) *big.Int { return big.NewInt(v) }

// ErrContentOutOfResources is returned when a content value's required
// resources are not a subset of its issuing CA's resources.
var ErrContentOutOfResources = errors.New("content resources exceed issuer's resources")

// ErrInvalidMaxLength is returned for a ROA entry whose maxLength falls
// outside [prefixlen, max_prefixlen] for its address family.
var ErrInvalidMaxLength = errors.New("invalid ROA maxLength")

// Content is the capability set the assembler needs from a concrete
// eContent payload: its content-type OID, its DER encoding, the
// resources an issuing EE certificate must carry for it, and the file
// extension its published filename takes.
type Content interface {
	OID() oid.OID
	EContent() ([]byte, error)
	RequiredResources() resources.Set
	FileExtension() string
}

// Issuer is the minimal capability sigobj needs from a CA to issue the
// EE certificate backing a signed object; rpkica.CA implements it.
type Issuer interface {
	Resources() resources.Set
	IssueEECertificate(commonName string, pub *rsa.PublicKey, sia SIATarget) (certDER, issuerSKI []byte, err error)
}

// SIATarget carries the signedObject SIA URI and the resources the EE
// certificate issued for a signed object must declare.
type SIATarget struct {
	URI       string
	Resources resources.Set
}

// SignedObject is the finished artifact: the destination filename (the
// manifest's file entry) and the complete DER bytes of the outer
// ContentInfo.
type SignedObject struct {
	FileName string
	DER      []byte
}

// KeyGen is the minimal key-source capability this package needs
// (satisfied by keysource.KeyGen).
type KeyGen interface {
	Generate() (*rsa.PrivateKey, error)
}

// Assemble runs the seven-step CMS assembly pipeline for content,
// issued by issuer, and returns the DER bytes under the file name
// baseName plus content's file extension. It writes nothing to disk;
// the caller publishes the returned object.
func Assemble(issuer Issuer, content Content, baseName string, keys KeyGen) (*SignedObject, error) {
	if _, ok := asn1codec.ContentTypes.Lookup(content.OID()); !ok {
		return nil, errors.Wrapf(asn1codec.ErrUnknownContentType, "content type %s", content.OID())
	}

	required := content.RequiredResources()
	held := issuer.Resources()
	// An inherited family the issuer does not hold has nothing to
	// inherit, so it is left out of the EE certificate.
	if required.IPv4 != nil && required.IPv4.Inherit && held.IPv4 == nil {
		required.IPv4 = nil
	}
	if required.IPv6 != nil && required.IPv6.Inherit && held.IPv6 == nil {
		required.IPv6 = nil
	}
	if required.AS != nil && required.AS.Inherit && held.AS == nil {
		required.AS = nil
	}
	if !held.Contains(required) {
		return nil, errors.Wrap(ErrContentOutOfResources, "assemble signed object")
	}

	// Step 1: encode the content value to DER.
	eContent, err := content.EContent()
	if err != nil {
		return nil, errors.Wrap(err, "encode eContent")
	}

	// Step 2: build signedAttributes (contentType, messageDigest).
	digest := sha256.Sum256(eContent)
	contentTypeAttrValue, err := asn1codec.Encode(content.OID().ASN1())
	if err != nil {
		return nil, errors.Wrap(err, "encode contentType attribute value")
	}
	digestAttrValue, err := asn1codec.Encode(digest[:])
	if err != nil {
		return nil, errors.Wrap(err, "encode messageDigest attribute value")
	}
	attrs := []asn1codec.Attribute{
		asn1codec.BuildAttribute(oid.AttrContentType, asn1.RawValue{FullBytes: contentTypeAttrValue}),
		asn1codec.BuildAttribute(oid.AttrMessageDigest, asn1.RawValue{FullBytes: digestAttrValue}),
	}
	signingForm, wireForm, err := asn1codec.MarshalSignedAttrs(attrs)
	if err != nil {
		return nil, errors.Wrap(err, "marshal signedAttrs")
	}

	// Step 3: generate a fresh EE key pair.
	eeKey, err := keys.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "generate EE key pair")
	}

	// Step 4: issue the EE certificate. Subject CN is the lowercase hex
	// of SHA256(signedAttributes), per spec.md section 4.E.
	signedAttrsDigest := sha256.Sum256(signingForm)
	commonName := hex.EncodeToString(signedAttrsDigest[:])
	fileName := baseName + "." + content.FileExtension()
	certDER, issuerSKI, err := issuer.IssueEECertificate(commonName, &eeKey.PublicKey, SIATarget{
		URI:       fileName,
		Resources: required,
	})
	if err != nil {
		return nil, errors.Wrap(err, "issue EE certificate")
	}
	eeSKI, err := subjectKeyIdentifierFromCert(certDER)
	if err != nil {
		return nil, errors.Wrap(err, "extract EE SubjectKeyIdentifier")
	}
	_ = issuerSKI // recorded on the certificate itself; unused here

	// Step 5: sign signedAttributes (the plain SET OF encoding) with the
	// EE private key.
	sigDigest := sha256.Sum256(signingForm)
	signature, err := rsaSign(eeKey, sigDigest[:])
	if err != nil {
		return nil, errors.Wrap(err, "sign signedAttrs")
	}

	// Step 6: assemble SignedData.
	eci := asn1codec.EncapsulatedContentInfo{
		EContentType: content.OID().ASN1(),
		EContent:     eContent,
	}
	signerInfo := asn1codec.SignerInfo{
		Version:            3,
		SubjectKeyID:       eeSKI,
		DigestAlgorithm:    asn1codec.SHA256AlgorithmIdentifier(),
		SignedAttrs:        asn1.RawValue{FullBytes: wireForm},
		SignatureAlgorithm: asn1codec.RSASignatureAlgorithmIdentifier(),
		Signature:          signature,
	}
	signedData, err := asn1codec.MarshalSignedData(
		[]asn1codec.AlgorithmIdentifier{asn1codec.SHA256AlgorithmIdentifier()},
		eci, certDER, signerInfo,
	)
	if err != nil {
		return nil, errors.Wrap(err, "marshal SignedData")
	}

	// Step 7: wrap as ContentInfo(id-signedData, SignedData).
	der, err := asn1codec.WrapContentInfo(oid.ContentTypeSignedData, signedData)
	if err != nil {
		return nil, errors.Wrap(err, "wrap ContentInfo")
	}

	return &SignedObject{FileName: fileName, DER: der}, nil
}

func rsaSign(key *rsa.PrivateKey, digest []byte) ([]byte, error) {
	return rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest)
}

func subjectKeyIdentifierFromCert(certDER []byte) ([]byte, error) {
	var cert asn1codec.Certificate
	if err := asn1codec.Decode(certDER, &cert); err != nil {
		return nil, err
	}
	for _, ext := range cert.TBSCertificate.Extensions {
		if ext.Id.Equal(oid.ExtSubjectKeyIdentifier.ASN1()) {
			var ski []byte
			if err := asn1codec.Decode(ext.Value, &ski); err != nil {
				return nil, err
			}
			return ski, nil
		}
	}
	return nil, errors.New("EE certificate missing SubjectKeyIdentifier extension")
}

// ManifestFileEntry is one entry sigobj.Manifest's fileList carries.
type ManifestFileEntry struct {
	Name string
	Hash [32]byte
}

// Manifest is the Manifest content type (RFC 6486).
type Manifest struct {
	Number     int64
	ThisUpdate time.Time
	NextUpdate time.Time
	Files      []ManifestFileEntry
}

// OID implements Content.
func (Manifest) OID() oid.OID { return oid.ContentTypeManifest }

// FileExtension implements Content.
func (Manifest) FileExtension() string { return "mft" }

// RequiredResources implements Content: manifests always inherit, per
// spec.md section 4.E.
func (Manifest) RequiredResources() resources.Set {
	return resources.Set{
		IPv4: &resources.IPFamily{Inherit: true},
		IPv6: &resources.IPFamily{Inherit: true},
		AS:   &resources.ASResources{Inherit: true},
	}
}

// EContent implements Content.
func (m Manifest) EContent() ([]byte, error) {
	files := make([]asn1codec.FileAndHash, len(m.Files))
	for i, f := range m.Files {
		files[i] = asn1codec.FileAndHash{
			File: f.Name,
			Hash: asn1.BitString{Bytes: f.Hash[:], BitLength: 256},
		}
	}
	content := asn1codec.ManifestContent{
		ManifestNumber: bigFromInt64(m.Number),
		ThisUpdate:     m.ThisUpdate,
		NextUpdate:     m.NextUpdate,
		FileHashAlg:    oid.SHA256.ASN1(),
		FileList:       files,
	}
	return asn1codec.Encode(content)
}

// GhostbustersRecord is the Ghostbusters Record content type (RFC
// 6493): a vCard 4.0 text body.
type GhostbustersRecord struct {
	FullName string
	Org      string
	Address  string
	Tel      string
	Email    string
}

// OID implements Content.
func (GhostbustersRecord) OID() oid.OID { return oid.ContentTypeGhostbusters }

// FileExtension implements Content.
func (GhostbustersRecord) FileExtension() string { return "gbr" }

// RequiredResources implements Content: Ghostbusters Records always
// inherit, per spec.md section 4.E.
func (GhostbustersRecord) RequiredResources() resources.Set {
	return resources.Set{
		IPv4: &resources.IPFamily{Inherit: true},
		IPv6: &resources.IPFamily{Inherit: true},
		AS:   &resources.ASResources{Inherit: true},
	}
}

// EContent implements Content, producing the CRLF-terminated vCard
// body spec.md section 4.E describes.
func (g GhostbustersRecord) EContent() ([]byte, error) {
	var b strings.Builder
	b.WriteString("BEGIN:VCARD\r\n")
	b.WriteString("VERSION:4.0\r\n")
	fmt.Fprintf(&b, "FN:%s\r\n", g.FullName)
	if g.Org != "" {
		fmt.Fprintf(&b, "ORG:%s\r\n", g.Org)
	}
	if g.Address != "" {
		fmt.Fprintf(&b, "ADR:%s\r\n", g.Address)
	}
	if g.Tel != "" {
		fmt.Fprintf(&b, "TEL;VALUE=uri:tel:%s\r\n", g.Tel)
	}
	if g.Email != "" {
		fmt.Fprintf(&b, "EMAIL:%s\r\n", g.Email)
	}
	b.WriteString("END:VCARD")
	return []byte(b.String()), nil
}

// ROANetwork is one address/maxLength pair a ROA authorizes.
type ROANetwork struct {
	Prefix    resources.IPEntry
	Version   int // 4 or 6
	MaxLength int // asn1codec.NoMaxLength sentinel when absent
}

// ROA is the Route Origin Attestation content type (RFC 6482).
type ROA struct {
	ASID     int64
	Networks []ROANetwork
}

// OID implements Content.
func (ROA) OID() oid.OID { return oid.ContentTypeROA }

// FileExtension implements Content.
func (ROA) FileExtension() string { return "roa" }

// RequiredResources implements Content: a ROA's EE certificate carries
// the explicit union of every prefix the ROA authorizes.
func (r ROA) RequiredResources() resources.Set {
	var v4, v6 resources.IPFamily
	for _, n := range r.Networks {
		if n.Version == 6 {
			v6.Entries = append(v6.Entries, n.Prefix)
		} else {
			v4.Entries = append(v4.Entries, n.Prefix)
		}
	}
	set := resources.Set{}
	if len(v4.Entries) > 0 {
		set.IPv4 = &v4
	}
	if len(v6.Entries) > 0 {
		set.IPv6 = &v6
	}
	return set
}

// EContent implements Content.
func (r ROA) EContent() ([]byte, error) {
	families := map[int][]asn1codec.ROAIPAddress{}
	for _, n := range r.Networks {
		if n.Prefix.Kind != resources.IPEntryPrefix {
			return nil, errors.New("ROA network entries must be prefixes, not ranges")
		}
		maxPrefixLen := 32
		version := n.Version
		if version == 6 {
			maxPrefixLen = 128
		}
		prefixLen := n.Prefix.Prefix.Bits()
		if n.MaxLength != asn1codec.NoMaxLength && (n.MaxLength < prefixLen || n.MaxLength > maxPrefixLen) {
			return nil, errors.Wrapf(ErrInvalidMaxLength, "prefix %s maxLength %d", n.Prefix.Prefix, n.MaxLength)
		}
		width := 4
		if version == 6 {
			width = 16
		}
		addr := n.Prefix.Prefix.Masked().Addr().AsSlice()
		buf := make([]byte, width)
		copy(buf[width-len(addr):], addr)
		bs := asn1codec.TrimmedPrefixBitString(buf, prefixLen)
		families[version] = append(families[version], asn1codec.ROAIPAddress{Address: bs, MaxLength: n.MaxLength})
	}

	var blocks []asn1codec.ROAIPAddressFamily
	for _, version := range []int{4, 6} {
		addrs, ok := families[version]
		if !ok {
			continue
		}
		afi := resources.AFIv4
		if version == 6 {
			afi = resources.AFIv6
		}
		blocks = append(blocks, asn1codec.ROAIPAddressFamily{AddressFamily: afi, Addresses: addrs})
	}

	content := asn1codec.RouteOriginAttestation{
		ASID:         bigFromInt64(r.ASID),
		IPAddrBlocks: blocks,
	}
	return asn1codec.Encode(content)
}
