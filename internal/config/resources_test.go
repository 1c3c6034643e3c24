package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseASResourcesHandlesIDsAndRanges(t *testing.T) {
	got, err := ParseASResources("65001, 65010-65020, 65030")
	require.NoError(t, err)
	require.Len(t, got.Entries, 3)
	assert.False(t, got.Entries[0].IsRange)
	assert.Equal(t, int64(65001), got.Entries[0].ID)
	assert.True(t, got.Entries[1].IsRange)
	assert.Equal(t, int64(65010), got.Entries[1].Min)
	assert.Equal(t, int64(65020), got.Entries[1].Max)
}

func TestParseASResourcesRejectsEmptyList(t *testing.T) {
	_, err := ParseASResources("")
	assert.Error(t, err)
}

func TestParseASResourcesRejectsMalformedToken(t *testing.T) {
	_, err := ParseASResources("not-a-number")
	assert.Error(t, err)
}

func TestParseIPResourcesSplitsByFamily(t *testing.T) {
	v4, v6, err := ParseIPResources([]string{"192.0.2.0/24", "2001:db8::/32", "192.168.1.128-192.168.2.255"})
	require.NoError(t, err)
	require.NotNil(t, v4)
	require.NotNil(t, v6)
	assert.Len(t, v4.Entries, 2)
	assert.Len(t, v6.Entries, 1)
}

func TestParseIPResourcesRejectsMalformedPrefix(t *testing.T) {
	_, _, err := ParseIPResources([]string{"not-a-prefix"})
	assert.Error(t, err)
}

func TestScenarioResourcesFromComposesASAndIP(t *testing.T) {
	s := &Scenario{
		TAASResources: "65000-65999",
		TAIPResources: []string{"192.0.2.0/24"},
	}
	set, err := s.TAResources()
	require.NoError(t, err)
	require.NotNil(t, set.IPv4)
	require.NotNil(t, set.AS)
	assert.Len(t, set.IPv4.Entries, 1)
}

func TestScenarioROAContentBuildsNetworksWithMaxLength(t *testing.T) {
	maxLen := 24
	s := &Scenario{
		ROAASID: 65010,
		ROANetworks: []ROANetwork{
			{Prefix: "192.0.2.0/24", MaxLength: &maxLen},
			{Prefix: "2001:db8::/32"},
		},
	}
	roa, err := s.ROAContent()
	require.NoError(t, err)
	assert.Equal(t, int64(65010), roa.ASID)
	require.Len(t, roa.Networks, 2)
	assert.Equal(t, 4, roa.Networks[0].Version)
	assert.Equal(t, 24, roa.Networks[0].MaxLength)
	assert.Equal(t, 6, roa.Networks[1].Version)
	assert.Equal(t, -1, roa.Networks[1].MaxLength)
}

func TestScenarioGhostbustersRecordCopiesFields(t *testing.T) {
	s := &Scenario{
		GBRFullName: "Jane Doe",
		GBROrg:      "Example Org",
		GBREmail:    "jane@example.com",
	}
	gbr := s.GhostbustersRecord()
	assert.Equal(t, "Jane Doe", gbr.FullName)
	assert.Equal(t, "Example Org", gbr.Org)
	assert.Equal(t, "jane@example.com", gbr.Email)
}
