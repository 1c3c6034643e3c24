package asn1codec

import (
	"sync"

	"rpkica/internal/oid"
)

// ContentTypeDescriptor describes one entry in the CONTENT-TYPE
// information-object-class set governing ContentInfo.content and
// EncapsulatedContentInfo.eContent (spec.md section 9). Decoder/Encoder
// are left as opaque capabilities: concrete content packages (sigobj)
// supply them, asn1codec only tracks which OIDs are known.
type ContentTypeDescriptor struct {
	OID         oid.OID
	Description string
}

// contentTypeRegistry is the runtime-extensible CONTENT-TYPE set.
// spec.md section 5 requires the codec to "remain thread-safe after
// registration" -- a single RWMutex-guarded map realizes that without
// per-template global state (the "value-based encoders with no shared
// state" alternative the spec prefers).
type contentTypeRegistry struct {
	mu      sync.RWMutex
	entries map[string]ContentTypeDescriptor
}

func newContentTypeRegistry() *contentTypeRegistry {
	return &contentTypeRegistry{entries: make(map[string]ContentTypeDescriptor)}
}

// Register appends a concrete (id, descriptor) pair, per spec.md's
// register_content_type operation. Re-registering the same OID
// replaces the descriptor, since content-type packages may legitimately
// re-import and re-register during tests.
func (r *contentTypeRegistry) Register(d ContentTypeDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[d.OID.String()] = d
}

// Lookup resolves an OID to its descriptor. The bool return is false
// when the OID is unregistered (ErrUnknownContentType at the caller).
func (r *contentTypeRegistry) Lookup(id oid.OID) (ContentTypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[id.String()]
	return d, ok
}

// ContentTypes is the package-level CONTENT-TYPE registry, seeded at
// init() with every content type this module can itself produce, and
// left open to runtime registration for content types it cannot (RPKI
// Signed Checklist, Signed URI List, etc. -- see spec.md section 9).
var ContentTypes = newContentTypeRegistry()

// ExtensionDescriptor describes one entry in the EXTENSION
// information-object-class set governing X.509 Extension.extnValue.
type ExtensionDescriptor struct {
	OID         oid.OID
	Critical    bool
	Description string
}

type extensionRegistry struct {
	mu      sync.RWMutex
	entries map[string]ExtensionDescriptor
}

func newExtensionRegistry() *extensionRegistry {
	return &extensionRegistry{entries: make(map[string]ExtensionDescriptor)}
}

// Register appends a concrete extension descriptor.
func (r *extensionRegistry) Register(d ExtensionDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[d.OID.String()] = d
}

// Lookup resolves an OID to its extension descriptor.
func (r *extensionRegistry) Lookup(id oid.OID) (ExtensionDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[id.String()]
	return d, ok
}

// Extensions is the package-level EXTENSION registry.
var Extensions = newExtensionRegistry()

func init() {
	for _, d := range []ContentTypeDescriptor{
		{OID: oid.ContentTypeData, Description: "id-data"},
		{OID: oid.ContentTypeSignedData, Description: "id-signedData"},
		{OID: oid.ContentTypeROA, Description: "id-ct-routeOriginAuthz"},
		{OID: oid.ContentTypeManifest, Description: "id-ct-rpkiManifest"},
		{OID: oid.ContentTypeGhostbusters, Description: "id-ct-rpkiGhostbusters"},
		// Registered but not wired to a sigobj.Content implementation:
		// demonstrates the open-type mechanism can admit a future
		// content type (RPKI Signed Checklist) without codec changes.
		{OID: oid.ContentTypeSignedChecklist, Description: "id-ct-signedChecklist (unimplemented)"},
	} {
		ContentTypes.Register(d)
	}

	for _, d := range []ExtensionDescriptor{
		{OID: oid.ExtBasicConstraints, Critical: true, Description: "basicConstraints"},
		{OID: oid.ExtSubjectKeyIdentifier, Description: "subjectKeyIdentifier"},
		{OID: oid.ExtAuthorityKeyIdentifier, Description: "authorityKeyIdentifier"},
		{OID: oid.ExtKeyUsage, Critical: true, Description: "keyUsage"},
		{OID: oid.ExtCRLDistributionPoints, Description: "cRLDistributionPoints"},
		{OID: oid.ExtAuthorityInfoAccess, Description: "authorityInfoAccess"},
		{OID: oid.ExtSubjectInfoAccess, Description: "subjectInfoAccess"},
		{OID: oid.ExtCertificatePolicies, Critical: true, Description: "certificatePolicies"},
		{OID: oid.ExtIPAddrBlock, Critical: true, Description: "sbgp-ipAddrBlock"},
		{OID: oid.ExtAutonomousSysNum, Critical: true, Description: "sbgp-autonomousSysNum"},
		{OID: oid.ExtCRLNumber, Description: "cRLNumber"},
	} {
		Extensions.Register(d)
	}
}
