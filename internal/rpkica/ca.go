// Package rpkica implements the CA model (spec.md component D): key
// pair, monotonic counters, the issued-object graph, and the
// fresh -> self-issued -> operational lifecycle that mediates
// certificate, CRL and manifest issuance.
package rpkica

import (
	"crypto/rsa"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"rpkica/internal/certbuilder"
	"rpkica/internal/clock"
	"rpkica/internal/keysource"
	"rpkica/internal/oid"
	"rpkica/internal/resources"
	"rpkica/internal/rpkierr"
	"rpkica/internal/sigobj"
)

// State is a CA's lifecycle stage.
type State int

const (
	StateFresh State = iota
	StateSelfIssued
)

// ErrResourcesNotSubset is returned when a subordinate CA's declared
// resources are not covered by its parent's.
var ErrResourcesNotSubset = errors.New("subordinate CA resources exceed parent's resources")

// ErrNotSelfIssued is returned when an issuance operation is attempted
// before a CA has its own certificate and initial CRL.
var ErrNotSelfIssued = errors.New("CA has not completed self-issuance")

// ErrEmptyFileList is returned when IssueManifest is asked to seal a
// manifest with no entries.
var ErrEmptyFileList = errors.New("manifest file list is empty")

// IssuedCert records one certificate a CA has issued, kept so tests
// can check serial contiguity and SIA/AIA coherence (spec.md section 8
// properties 4 and 6).
type IssuedCert struct {
	Serial   *big.Int
	CN       string
	DER      []byte
	SKI      []byte
	NotAfter time.Time
}

// Params configures a new CA (Trust Anchor or subordinate).
type Params struct {
	CommonName string
	Resources  resources.Set
	CertDays   int
	CRLDays    int
	MFTDays    int
}

// CA is one node of the CA/issuee tree. A subordinate holds a
// non-owning pointer to its issuer; the issuer owns its children by
// value reference in a plain slice -- Go's garbage collector resolves
// the cyclic reference the design notes in spec.md section 9 worry
// about in a systems language, so no arena-index indirection is
// needed here.
type CA struct {
	CommonName string
	relPath    string // this CA's own publication point, relative to the tree root
	certURI    string // rsync URI at which this CA's own certificate is published

	baseURI string

	resources resources.Set

	key *rsa.PrivateKey
	pub *rsa.PublicKey

	parent *CA
	// children includes self as its first entry once self-issued, per
	// spec.md section 4.D's "ordered list of children (including self
	// when self-issued)"; publish walks it and skips self to avoid
	// recursing into itself.
	children []*CA

	certDER []byte
	ski     []byte
	state   State

	certDays int
	crlDays  int
	mftDays  int

	nextSerial int64
	nextCRLNum int64
	nextMFTNum int64

	issuedCerts []IssuedCert
	objects     []*sigobj.SignedObject
	revoked     []certbuilder.RevokedEntry
	lastCRL     []byte
	lastMFT     []byte

	clk  clock.Clock
	keys keysource.KeyGen
	warn rpkierr.Warnings
}

// RelPath returns this CA's publication point, relative to the tree
// root (spec.md section 3, "Publication layout").
func (ca *CA) RelPath() string { return ca.relPath }

// CertURI returns the rsync URI at which this CA's own certificate is
// published.
func (ca *CA) CertURI() string { return ca.certURI }

// CertDER returns this CA's own DER certificate.
func (ca *CA) CertDER() []byte { return ca.certDER }

// SKI returns this CA's own SubjectKeyIdentifier.
func (ca *CA) SKI() []byte { return ca.ski }

// State returns the CA's lifecycle state.
func (ca *CA) State() State { return ca.state }

// CRLDER returns the most recently issued CRL, or nil before the
// first IssueCRL call.
func (ca *CA) CRLDER() []byte { return ca.lastCRL }

// ManifestDER returns the most recently issued manifest, or nil
// before the first IssueManifest call.
func (ca *CA) ManifestDER() []byte { return ca.lastMFT }

// Children returns every child CA issued under this one, plus self as
// the first entry (spec.md section 4.D).
func (ca *CA) Children() []*CA { return ca.children }

// PubPointURI returns the rsync URI of this CA's own publication
// point, the directory its CRL, manifest and EE objects are published
// into (spec.md section 3, "Publication layout").
func (ca *CA) PubPointURI() string { return ca.rsyncURI(ca.relPath) }

// Objects returns every EE signed object (ROA, Ghostbusters Record,
// ...) recorded against this CA via AddObject, in the order added.
func (ca *CA) Objects() []*sigobj.SignedObject { return ca.objects }

// AddObject records a signed object issued under ca as part of its
// publication point, so the next IssueManifest/publish call includes
// it in the manifest's fileList.
func (ca *CA) AddObject(obj *sigobj.SignedObject) { ca.objects = append(ca.objects, obj) }

// IssuedCerts returns every certificate this CA has issued (EE and
// subordinate CA certificates alike), in issuance order.
func (ca *CA) IssuedCerts() []IssuedCert { return ca.issuedCerts }

// Resources implements sigobj.Issuer.
func (ca *CA) Resources() resources.Set { return ca.resources }

func (ca *CA) rsyncURI(relPath string) string {
	if relPath == "" {
		return ca.baseURI
	}
	return ca.baseURI + "/" + relPath
}

func (ca *CA) crlURI() string { return ca.rsyncURI(ca.relPath) + "/revoked.crl" }

// NewTA constructs and self-issues a Trust Anchor: generates its key
// pair, issues its own certificate (issuer == subject, no AKI/CRLDP/
// AIA per spec.md section 3), and issues its initial empty CRL --
// entering StateSelfIssued in one call, since a TA has no external
// issuer to wait on.
func NewTA(p Params, baseURI string, clk clock.Clock, keys keysource.KeyGen, warn rpkierr.Warnings) (*CA, error) {
	ca := &CA{
		CommonName: p.CommonName,
		relPath:    p.CommonName,
		baseURI:    baseURI,
		resources:  p.Resources,
		nextSerial: 1,
		certDays:   p.CertDays,
		crlDays:    p.CRLDays,
		mftDays:    p.MFTDays,
		clk:        clk,
		keys:       keys,
		warn:       warn,
	}
	ca.certURI = ca.rsyncURI("") + "/" + p.CommonName + ".cer"

	key, err := keys.Generate()
	if err != nil {
		return nil, rpkierr.Wrap(rpkierr.KindCrypto, p.CommonName, err)
	}
	ca.key = key
	ca.pub = &key.PublicKey

	now := clk.Now()
	notAfter := now.Add(time.Duration(p.CertDays) * 24 * time.Hour)
	serial := big.NewInt(ca.nextSerial)
	ca.nextSerial++

	certDER, ski, err := certbuilder.BuildCertificate(certbuilder.CertParams{
		SerialNumber: serial,
		Subject:      p.CommonName,
		Issuer:       p.CommonName,
		NotBefore:    now,
		NotAfter:     notAfter,
		PublicKey:    ca.pub,
		IsCA:         true,
		SIA:          ca.caSIA(),
		Resources:    p.Resources,
	}, key)
	if err != nil {
		return nil, rpkierr.Wrap(rpkierr.KindCrypto, p.CommonName, err)
	}
	ca.certDER = certDER
	ca.ski = ski
	ca.issuedCerts = append(ca.issuedCerts, IssuedCert{Serial: serial, CN: p.CommonName, DER: certDER, SKI: ski, NotAfter: notAfter})
	ca.children = append(ca.children, ca)

	if _, err := ca.IssueCRL(); err != nil {
		return nil, err
	}
	ca.state = StateSelfIssued
	return ca, nil
}

// caSIA builds the SubjectInformationAccess entries every CA
// certificate carries: caRepository and rpkiManifest, both pointing
// into this CA's own publication point (spec.md section 3).
func (ca *CA) caSIA() []certbuilder.SIAEntry {
	own := ca.rsyncURI(ca.relPath)
	return []certbuilder.SIAEntry{
		{Method: oid.AccessDescCARepository, URI: own},
		{Method: oid.AccessDescRPKIManifest, URI: own + "/manifest.mft"},
	}
}

// IssueSubordinateCA issues a new CA certificate under ca, self-issues
// the child's initial CRL, and registers it as a child -- the
// subordinate analogue of NewTA (spec.md section 4.D state machine).
func (ca *CA) IssueSubordinateCA(p Params) (*CA, error) {
	if ca.state != StateSelfIssued {
		return nil, rpkierr.Wrap(rpkierr.KindConsistency, ca.CommonName, ErrNotSelfIssued)
	}
	if !ca.resources.Contains(p.Resources) {
		return nil, rpkierr.Wrap(rpkierr.KindConsistency, p.CommonName, ErrResourcesNotSubset)
	}

	child := &CA{
		CommonName: p.CommonName,
		relPath:    ca.relPath + "/" + p.CommonName,
		baseURI:    ca.baseURI,
		resources:  p.Resources,
		nextSerial: 1,
		certDays:   p.CertDays,
		crlDays:    p.CRLDays,
		mftDays:    p.MFTDays,
		parent:     ca,
		clk:        ca.clk,
		keys:       ca.keys,
		warn:       ca.warn,
	}
	child.certURI = ca.rsyncURI(ca.relPath) + "/" + p.CommonName + ".cer"

	key, err := ca.keys.Generate()
	if err != nil {
		return nil, rpkierr.Wrap(rpkierr.KindCrypto, p.CommonName, err)
	}
	child.key = key
	child.pub = &key.PublicKey

	now := ca.clk.Now()
	notAfter := now.Add(time.Duration(p.CertDays) * 24 * time.Hour)
	serial := big.NewInt(ca.nextSerial)
	ca.nextSerial++

	certDER, ski, err := certbuilder.BuildCertificate(certbuilder.CertParams{
		SerialNumber: serial,
		Subject:      p.CommonName,
		Issuer:       ca.CommonName,
		NotBefore:    now,
		NotAfter:     notAfter,
		PublicKey:    child.pub,
		IsCA:         true,
		IssuerSKI:    ca.ski,
		CRLDPURI:     ca.crlURI(),
		AIAIssuerURI: ca.certURI,
		SIA:          child.caSIA(),
		Resources:    p.Resources,
	}, ca.key)
	if err != nil {
		return nil, rpkierr.Wrap(rpkierr.KindCrypto, p.CommonName, err)
	}
	child.certDER = certDER
	child.ski = ski

	ca.issuedCerts = append(ca.issuedCerts, IssuedCert{Serial: serial, CN: p.CommonName, DER: certDER, SKI: ski, NotAfter: notAfter})
	ca.children = append(ca.children, child)
	child.children = append(child.children, child)

	if _, err := child.IssueCRL(); err != nil {
		return nil, err
	}
	child.state = StateSelfIssued
	return child, nil
}

// IssueEECertificate implements sigobj.Issuer: it issues the
// end-entity certificate backing one signed object, with subject
// common name, public key and SIA/resources supplied by the
// signed-object assembler.
func (ca *CA) IssueEECertificate(commonName string, pub *rsa.PublicKey, sia sigobj.SIATarget) (certDER, issuerSKI []byte, err error) {
	if ca.state != StateSelfIssued {
		return nil, nil, rpkierr.Wrap(rpkierr.KindConsistency, ca.CommonName, ErrNotSelfIssued)
	}

	now := ca.clk.Now()
	notAfter := now.Add(time.Duration(ca.certDays) * 24 * time.Hour)
	serial := big.NewInt(ca.nextSerial)
	ca.nextSerial++

	der, ski, err := certbuilder.BuildCertificate(certbuilder.CertParams{
		SerialNumber: serial,
		Subject:      commonName,
		Issuer:       ca.CommonName,
		NotBefore:    now,
		NotAfter:     notAfter,
		PublicKey:    pub,
		IsCA:         false,
		IssuerSKI:    ca.ski,
		CRLDPURI:     ca.crlURI(),
		AIAIssuerURI: ca.certURI,
		SIA: []certbuilder.SIAEntry{
			{Method: oid.AccessDescSignedObject, URI: ca.rsyncURI(ca.relPath) + "/" + sia.URI},
		},
		Resources: sia.Resources,
	}, ca.key)
	if err != nil {
		return nil, nil, rpkierr.Wrap(rpkierr.KindCrypto, ca.CommonName+"/"+commonName, err)
	}

	ca.issuedCerts = append(ca.issuedCerts, IssuedCert{Serial: serial, CN: commonName, DER: der, SKI: ski, NotAfter: notAfter})
	return der, ca.ski, nil
}

// Revoke records serial for inclusion in this CA's next issued CRL.
func (ca *CA) Revoke(serial *big.Int, revocationDate time.Time, notAfter time.Time) {
	ca.revoked = append(ca.revoked, certbuilder.RevokedEntry{
		SerialNumber:   serial,
		RevocationDate: revocationDate,
		NotAfter:       notAfter,
	})
}

// IssueCRL seals a new CRL over the current revoked-certificate list,
// after pruning entries that expired more than crl_days ago (spec.md
// section 4.C's optional pruning rule, implemented here). The CRL
// number increments post-issuance, per spec.md section 4.C.
func (ca *CA) IssueCRL() ([]byte, error) {
	kept, pruned := certbuilder.PruneExpired(ca.revoked, ca.clk, ca.crlDays)
	for _, p := range pruned {
		ca.warn.Emit("%s: pruning expired CRL entry, serial %s", ca.CommonName, p.SerialNumber)
	}
	ca.revoked = kept

	now := ca.clk.Now()
	der, err := certbuilder.BuildCRL(certbuilder.CRLParams{
		Issuer:     ca.CommonName,
		ThisUpdate: now,
		NextUpdate: now.Add(time.Duration(ca.crlDays) * 24 * time.Hour),
		CRLNumber:  big.NewInt(ca.nextCRLNum),
		IssuerSKI:  ca.ski,
		Revoked:    ca.revoked,
	}, ca.key)
	if err != nil {
		return nil, rpkierr.Wrap(rpkierr.KindCrypto, ca.CommonName, err)
	}
	ca.nextCRLNum++
	ca.lastCRL = der
	return der, nil
}

// IssueManifest seals a new Manifest enumerating files, which the
// caller (internal/publish) has already assembled from this CA's CRL
// and every object currently in its publication point. The manifest
// is itself a signed object issued by ca under its own EE
// certificate, per spec.md section 4.E.
func (ca *CA) IssueManifest(files []sigobj.ManifestFileEntry) (*sigobj.SignedObject, error) {
	if len(files) == 0 {
		return nil, rpkierr.Wrap(rpkierr.KindConsistency, ca.CommonName, ErrEmptyFileList)
	}
	now := ca.clk.Now()
	manifest := sigobj.Manifest{
		Number:     ca.nextMFTNum,
		ThisUpdate: clock.WholeHour(now),
		NextUpdate: clock.WholeHour(now.Add(time.Duration(ca.mftDays) * 24 * time.Hour)),
		Files:      files,
	}
	obj, err := sigobj.Assemble(ca, manifest, "manifest", ca.keys)
	if err != nil {
		return nil, rpkierr.Wrap(rpkierr.KindConsistency, ca.CommonName, err)
	}
	ca.nextMFTNum++
	ca.lastMFT = obj.DER
	return obj, nil
}
