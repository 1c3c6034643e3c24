package sigobj

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpkica/internal/asn1codec"
	"rpkica/internal/certbuilder"
	"rpkica/internal/oid"
	"rpkica/internal/resources"
)

// fakeIssuer is a minimal Issuer backed by a single in-memory CA key,
// standing in for rpkica.CA in these package-level tests.
type fakeIssuer struct {
	key       *rsa.PrivateKey
	resources resources.Set
	nextSerial int64
}

func newFakeIssuer(t *testing.T, res resources.Set) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &fakeIssuer{key: key, resources: res, nextSerial: 1}
}

func (f *fakeIssuer) Resources() resources.Set { return f.resources }

func (f *fakeIssuer) IssueEECertificate(commonName string, pub *rsa.PublicKey, sia SIATarget) (certDER, issuerSKI []byte, err error) {
	issuerSKI, err = certbuilder.SubjectKeyIdentifier(&f.key.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	serial := big.NewInt(f.nextSerial)
	f.nextSerial++
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	der, _, err := certbuilder.BuildCertificate(certbuilder.CertParams{
		SerialNumber: serial,
		Subject:      commonName,
		Issuer:       "CA",
		NotBefore:    now,
		NotAfter:     now.AddDate(0, 1, 0),
		PublicKey:    pub,
		IsCA:         false,
		IssuerSKI:    issuerSKI,
		SIA: []certbuilder.SIAEntry{
			{Method: oid.AccessDescSignedObject, URI: sia.URI},
		},
		Resources: sia.Resources,
	}, f.key)
	return der, issuerSKI, err
}

type fakeKeys struct{}

func (fakeKeys) Generate() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
}

func TestAssembleManifestProducesValidSignedData(t *testing.T) {
	issuer := newFakeIssuer(t, resources.Set{
		AS: &resources.ASResources{Entries: []resources.ASEntry{resources.ASIDEntry(65001)}},
	})
	mft := Manifest{
		Number:     1,
		ThisUpdate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		NextUpdate: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Files: []ManifestFileEntry{
			{Name: "ca.crl"},
			{Name: "route.roa"},
		},
	}

	obj, err := Assemble(issuer, mft, "manifest", fakeKeys{})
	require.NoError(t, err)
	assert.Equal(t, "manifest.mft", obj.FileName)

	var ci asn1codec.ContentInfo
	require.NoError(t, asn1codec.Decode(obj.DER, &ci))
	assert.True(t, ci.ContentType.Equal([]int{1, 2, 840, 113549, 1, 7, 2}))
}

func TestAssembleROARejectsOutOfResourceScopeContent(t *testing.T) {
	issuer := newFakeIssuer(t, resources.Set{
		IPv4: &resources.IPFamily{Entries: []resources.IPEntry{
			resources.PrefixEntry(netip.MustParsePrefix("10.0.0.0/8")),
		}},
	})
	roa := ROA{
		ASID: 65001,
		Networks: []ROANetwork{
			{Prefix: resources.PrefixEntry(netip.MustParsePrefix("192.0.2.0/24")), Version: 4, MaxLength: asn1codec.NoMaxLength},
		},
	}

	_, err := Assemble(issuer, roa, "route", fakeKeys{})
	assert.ErrorIs(t, err, ErrContentOutOfResources)
}

func TestAssembleROAWithinResourceScopeSucceeds(t *testing.T) {
	issuer := newFakeIssuer(t, resources.Set{
		IPv4: &resources.IPFamily{Entries: []resources.IPEntry{
			resources.PrefixEntry(netip.MustParsePrefix("192.0.2.0/24")),
		}},
	})
	roa := ROA{
		ASID: 65001,
		Networks: []ROANetwork{
			{Prefix: resources.PrefixEntry(netip.MustParsePrefix("192.0.2.0/24")), Version: 4, MaxLength: 24},
		},
	}

	obj, err := Assemble(issuer, roa, "route", fakeKeys{})
	require.NoError(t, err)
	assert.Equal(t, "route.roa", obj.FileName)
}

func TestROAEContentRejectsInvalidMaxLength(t *testing.T) {
	roa := ROA{
		ASID: 65001,
		Networks: []ROANetwork{
			{Prefix: resources.PrefixEntry(netip.MustParsePrefix("192.0.2.0/24")), Version: 4, MaxLength: 16},
		},
	}
	_, err := roa.EContent()
	assert.ErrorIs(t, err, ErrInvalidMaxLength)
}

func TestGhostbustersRecordEContentIsVCard(t *testing.T) {
	gbr := GhostbustersRecord{FullName: "Jane Doe", Email: "jane@example.com"}
	body, err := gbr.EContent()
	require.NoError(t, err)
	assert.Contains(t, string(body), "BEGIN:VCARD")
	assert.Contains(t, string(body), "FN:Jane Doe")
	assert.Contains(t, string(body), "EMAIL:jane@example.com")
	assert.NotContains(t, string(body), "ORG:")
}

func TestManifestRequiredResourcesInherit(t *testing.T) {
	req := Manifest{}.RequiredResources()
	require.NotNil(t, req.AS)
	assert.True(t, req.AS.Inherit)
}

// unregisteredContent is a Content whose OID was never passed to
// asn1codec.ContentTypes.Register, standing in for a caller that
// invents a content type without registering it first.
type unregisteredContent struct{}

func (unregisteredContent) OID() oid.OID                        { return oid.OID{1, 2, 9, 9, 9} }
func (unregisteredContent) EContent() ([]byte, error)            { return []byte{0x05, 0x00}, nil }
func (unregisteredContent) RequiredResources() resources.Set     { return resources.Set{} }
func (unregisteredContent) FileExtension() string                { return "bin" }

func TestAssembleRejectsUnregisteredContentType(t *testing.T) {
	issuer := newFakeIssuer(t, resources.Set{})
	_, err := Assemble(issuer, unregisteredContent{}, "blob", fakeKeys{})
	assert.ErrorIs(t, err, asn1codec.ErrUnknownContentType)
}
