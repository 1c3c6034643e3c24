package rpkica

import (
	"math/big"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpkica/internal/asn1codec"
	"rpkica/internal/clock"
	"rpkica/internal/keysource"
	"rpkica/internal/resources"
	"rpkica/internal/rpkierr"
	"rpkica/internal/sigobj"
)

func testClock() clock.Fixed {
	return clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func asResources(entries ...resources.ASEntry) resources.Set {
	return resources.Set{AS: &resources.ASResources{Entries: entries}}
}

func TestNewTASelfIssuesCertAndCRL(t *testing.T) {
	warn := rpkierr.NewWarnings()
	ta, err := NewTA(Params{
		CommonName: "TA",
		Resources:  asResources(resources.ASRangeEntry(65000, 65999)),
		CertDays:   365,
		CRLDays:    7,
		MFTDays:    1,
	}, "rsync://rpki.example", testClock(), keysource.System{}, warn)
	require.NoError(t, err)

	assert.Equal(t, StateSelfIssued, ta.State())
	assert.NotEmpty(t, ta.CertDER())
	assert.NotEmpty(t, ta.CRLDER())
	assert.Equal(t, "rsync://rpki.example/TA.cer", ta.CertURI())
	require.Len(t, ta.Children(), 1)
	assert.Same(t, ta, ta.Children()[0])
}

func TestIssueSubordinateCARejectsResourcesOutsideParent(t *testing.T) {
	ta, err := NewTA(Params{
		CommonName: "TA",
		Resources:  asResources(resources.ASRangeEntry(65000, 65100)),
		CertDays:   365, CRLDays: 7, MFTDays: 1,
	}, "rsync://rpki.example", testClock(), keysource.System{}, rpkierr.NewWarnings())
	require.NoError(t, err)

	_, err = ta.IssueSubordinateCA(Params{
		CommonName: "CA",
		Resources:  asResources(resources.ASRangeEntry(65000, 70000)),
		CertDays:   365, CRLDays: 7, MFTDays: 1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResourcesNotSubset)
}

func TestIssueSubordinateCASucceedsAndTracksSerials(t *testing.T) {
	ta, err := NewTA(Params{
		CommonName: "TA",
		Resources:  asResources(resources.ASRangeEntry(65000, 65999)),
		CertDays:   365, CRLDays: 7, MFTDays: 1,
	}, "rsync://rpki.example", testClock(), keysource.System{}, rpkierr.NewWarnings())
	require.NoError(t, err)

	ca, err := ta.IssueSubordinateCA(Params{
		CommonName: "CA1",
		Resources:  asResources(resources.ASIDEntry(65010)),
		CertDays:   365, CRLDays: 7, MFTDays: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, StateSelfIssued, ca.State())
	assert.Equal(t, "rsync://rpki.example/TA/CA1.cer", ca.CertURI())
	assert.Equal(t, "rsync://rpki.example/TA/CA1", ca.PubPointURI())

	// ta's issuedCerts holds the TA's own self-issued certificate at
	// serial 1, then CA1's cert at serial 2.
	require.Len(t, ta.IssuedCerts(), 2)
	assert.Equal(t, 0, ta.IssuedCerts()[0].Serial.Cmp(big.NewInt(1)))
	assert.Equal(t, 0, ta.IssuedCerts()[1].Serial.Cmp(bigTwo()))
}

func TestIssueEECertificateRequiresSelfIssuedIssuer(t *testing.T) {
	fresh := &CA{CommonName: "fresh"}
	_, _, err := fresh.IssueEECertificate("ee", nil, sigobj.SIATarget{})
	assert.ErrorIs(t, err, ErrNotSelfIssued)
}

func TestRevokeAndIssueCRLIncrementsNumberAndIncludesEntry(t *testing.T) {
	ta, err := NewTA(Params{
		CommonName: "TA",
		Resources:  asResources(resources.ASRangeEntry(65000, 65999)),
		CertDays:   365, CRLDays: 30, MFTDays: 1,
	}, "rsync://rpki.example", testClock(), keysource.System{}, rpkierr.NewWarnings())
	require.NoError(t, err)

	firstCRL := ta.CRLDER()
	require.NotEmpty(t, firstCRL)

	ta.Revoke(bigTwo(), testClock().Now(), testClock().Now().AddDate(0, 6, 0))
	secondCRL, err := ta.IssueCRL()
	require.NoError(t, err)
	assert.NotEqual(t, firstCRL, secondCRL)
	// CRL numbers 0 and 1 have been used.
	assert.Equal(t, int64(2), ta.nextCRLNum)

	var crl asn1codec.CertificateList
	require.NoError(t, asn1codec.Decode(secondCRL, &crl))
	require.Len(t, crl.TBSCertList.RevokedCertificates, 1)
	assert.Equal(t, 0, crl.TBSCertList.RevokedCertificates[0].SerialNumber.Cmp(bigTwo()))
}

func TestIssueCRLPrunesExpiredEntriesWithWarning(t *testing.T) {
	warn := rpkierr.NewWarnings()
	clk := testClock()
	ta, err := NewTA(Params{
		CommonName: "TA",
		Resources:  asResources(resources.ASRangeEntry(65000, 65999)),
		CertDays:   365, CRLDays: 7, MFTDays: 1,
	}, "rsync://rpki.example", clk, keysource.System{}, warn)
	require.NoError(t, err)

	ta.Revoke(bigTwo(), clk.Now(), clk.Now().AddDate(-1, 0, 0)) // already long expired
	_, err = ta.IssueCRL()
	require.NoError(t, err)

	warnings := warn.Drain()
	require.NotEmpty(t, warnings)
}

func TestIssueManifestRejectsEmptyFileList(t *testing.T) {
	ta, err := NewTA(Params{
		CommonName: "TA",
		Resources:  asResources(resources.ASRangeEntry(65000, 65999)),
		CertDays:   365, CRLDays: 7, MFTDays: 1,
	}, "rsync://rpki.example", testClock(), keysource.System{}, rpkierr.NewWarnings())
	require.NoError(t, err)

	_, err = ta.IssueManifest(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyFileList)
}

func TestIssueManifestSucceedsAndAdvancesNumber(t *testing.T) {
	ta, err := NewTA(Params{
		CommonName: "TA",
		Resources:  asResources(resources.ASRangeEntry(65000, 65999)),
		CertDays:   365, CRLDays: 7, MFTDays: 1,
	}, "rsync://rpki.example", testClock(), keysource.System{}, rpkierr.NewWarnings())
	require.NoError(t, err)

	obj, err := ta.IssueManifest([]sigobj.ManifestFileEntry{{Name: "revoked.crl"}})
	require.NoError(t, err)
	assert.Equal(t, "manifest.mft", obj.FileName)
	assert.Equal(t, obj.DER, ta.ManifestDER())
	assert.Equal(t, int64(1), ta.nextMFTNum)
}

func TestResourcesAcceptsOnlyIPScopedSubordinate(t *testing.T) {
	ta, err := NewTA(Params{
		CommonName: "TA",
		Resources: resources.Set{
			IPv4: &resources.IPFamily{Entries: []resources.IPEntry{
				resources.PrefixEntry(netip.MustParsePrefix("192.0.2.0/23")),
			}},
		},
		CertDays: 365, CRLDays: 7, MFTDays: 1,
	}, "rsync://rpki.example", testClock(), keysource.System{}, rpkierr.NewWarnings())
	require.NoError(t, err)

	_, err = ta.IssueSubordinateCA(Params{
		CommonName: "CA",
		Resources: resources.Set{
			IPv4: &resources.IPFamily{Entries: []resources.IPEntry{
				resources.PrefixEntry(netip.MustParsePrefix("192.0.2.0/24")),
			}},
		},
		CertDays: 365, CRLDays: 7, MFTDays: 1,
	})
	require.NoError(t, err)
}

func bigTwo() *big.Int { return big.NewInt(2) }
