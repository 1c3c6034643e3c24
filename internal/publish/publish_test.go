package publish

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpkica/internal/clock"
	"rpkica/internal/keysource"
	"rpkica/internal/resources"
	"rpkica/internal/rpkica"
	"rpkica/internal/rpkierr"
	"rpkica/internal/sigobj"
)

func buildTestTree(t *testing.T) *rpkica.CA {
	t.Helper()
	clk := clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	warn := rpkierr.NewWarnings()
	keys := keysource.System{}

	ta, err := rpkica.NewTA(rpkica.Params{
		CommonName: "TA",
		Resources: resources.Set{
			IPv4: &resources.IPFamily{Entries: []resources.IPEntry{
				resources.PrefixEntry(netip.MustParsePrefix("192.0.2.0/24")),
			}},
			AS: &resources.ASResources{Entries: []resources.ASEntry{resources.ASRangeEntry(65000, 65999)}},
		},
		CertDays: 365, CRLDays: 7, MFTDays: 1,
	}, "rsync://rpki.example/repo", clk, keys, warn)
	require.NoError(t, err)

	ca, err := ta.IssueSubordinateCA(rpkica.Params{
		CommonName: "CA1",
		Resources: resources.Set{
			IPv4: &resources.IPFamily{Entries: []resources.IPEntry{
				resources.PrefixEntry(netip.MustParsePrefix("192.0.2.0/24")),
			}},
			AS: &resources.ASResources{Entries: []resources.ASEntry{resources.ASIDEntry(65010)}},
		},
		CertDays: 365, CRLDays: 7, MFTDays: 1,
	})
	require.NoError(t, err)

	roa := sigobj.ROA{
		ASID: 65010,
		Networks: []sigobj.ROANetwork{
			{Prefix: resources.PrefixEntry(netip.MustParsePrefix("192.0.2.0/24")), Version: 4, MaxLength: 24},
		},
	}
	obj, err := sigobj.Assemble(ca, roa, "route", keys)
	require.NoError(t, err)
	ca.AddObject(obj)

	return ta
}

func TestPlanStageMaterializesTreeAndTAL(t *testing.T) {
	dir := t.TempDir()
	outputRoot := filepath.Join(dir, "repo")
	talDir := filepath.Join(dir, "tal")

	ta := buildTestTree(t)
	plan := Plan{TA: ta, BaseURI: "rsync://rpki.example/repo", OutputRoot: outputRoot, TALDir: talDir}
	require.NoError(t, plan.Stage())

	taCert := filepath.Join(outputRoot, "rpki.example", "repo", "TA.cer")
	assert.FileExists(t, taCert)

	caManifest := filepath.Join(outputRoot, "rpki.example", "repo", "TA", "CA1", "manifest.mft")
	assert.FileExists(t, caManifest)

	caCRL := filepath.Join(outputRoot, "rpki.example", "repo", "TA", "CA1", "revoked.crl")
	assert.FileExists(t, caCRL)

	roaFile := filepath.Join(outputRoot, "rpki.example", "repo", "TA", "CA1", "route.roa")
	assert.FileExists(t, roaFile)

	talFile := filepath.Join(talDir, "TA.tal")
	talBytes, err := os.ReadFile(talFile)
	require.NoError(t, err)
	assert.Contains(t, string(talBytes), "rsync://rpki.example/repo/TA.cer")
}

func TestDiskPathStripsBaseURIPrefix(t *testing.T) {
	got := diskPath("/stage/host/path", "rsync://rpki.example/repo", "rsync://rpki.example/repo/TA/CA1.cer")
	assert.Equal(t, filepath.Join("/stage/host/path", "TA", "CA1.cer"), got)
}

func TestWrapBase64WrapsAtWidth(t *testing.T) {
	der := make([]byte, 100)
	out := wrapBase64(der, 64)
	lines := splitLines(out)
	for _, l := range lines[:len(lines)-1] {
		assert.Len(t, l, 64)
	}
	assert.LessOrEqual(t, len(lines[len(lines)-1]), 64)
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
