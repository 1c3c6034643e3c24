package resources

import (
	"encoding/asn1"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpkica/internal/asn1codec"
)

func TestSetContainsPrefixWithinPrefix(t *testing.T) {
	parent := Set{
		IPv4: &IPFamily{Entries: []IPEntry{PrefixEntry(netip.MustParsePrefix("10.0.0.0/8"))}},
		AS:   &ASResources{Entries: []ASEntry{ASRangeEntry(65000, 65100)}},
	}
	child := Set{
		IPv4: &IPFamily{Entries: []IPEntry{PrefixEntry(netip.MustParsePrefix("10.1.0.0/16"))}},
		AS:   &ASResources{Entries: []ASEntry{ASIDEntry(65050)}},
	}
	assert.True(t, parent.Contains(child))
}

func TestSetContainsRejectsOutOfBoundsChild(t *testing.T) {
	parent := Set{
		IPv4: &IPFamily{Entries: []IPEntry{PrefixEntry(netip.MustParsePrefix("10.0.0.0/8"))}},
	}
	child := Set{
		IPv4: &IPFamily{Entries: []IPEntry{PrefixEntry(netip.MustParsePrefix("11.0.0.0/8"))}},
	}
	assert.False(t, parent.Contains(child))
}

func TestSetContainsRangeWithinPrefix(t *testing.T) {
	parent := Set{
		IPv4: &IPFamily{Entries: []IPEntry{PrefixEntry(netip.MustParsePrefix("192.168.0.0/16"))}},
	}
	child := Set{
		IPv4: &IPFamily{Entries: []IPEntry{
			RangeEntry(netip.MustParseAddr("192.168.1.128"), netip.MustParseAddr("192.168.2.255")),
		}},
	}
	assert.True(t, parent.Contains(child))
}

func TestSetContainsInheritRequiresParentPresence(t *testing.T) {
	child := Set{IPv4: &IPFamily{Inherit: true}}
	assert.True(t, Set{IPv4: &IPFamily{Entries: []IPEntry{PrefixEntry(netip.MustParsePrefix("10.0.0.0/8"))}}}.Contains(child))
	assert.False(t, Set{}.Contains(child))
}

func TestSetContainsASRange(t *testing.T) {
	parent := Set{AS: &ASResources{Entries: []ASEntry{ASRangeEntry(100, 200)}}}
	within := Set{AS: &ASResources{Entries: []ASEntry{ASRangeEntry(110, 150)}}}
	outside := Set{AS: &ASResources{Entries: []ASEntry{ASRangeEntry(190, 210)}}}
	assert.True(t, parent.Contains(within))
	assert.False(t, parent.Contains(outside))
}

func TestIPAddrBlocksExtensionRejectsEmptySet(t *testing.T) {
	_, err := IPAddrBlocksExtension(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyResourceSet)
}

func TestIPAddrBlocksExtensionRejectsMixedInherit(t *testing.T) {
	v4 := &IPFamily{
		Inherit: true,
		Entries: []IPEntry{PrefixEntry(netip.MustParsePrefix("10.0.0.0/8"))},
	}
	_, err := IPAddrBlocksExtension(v4, nil)
	assert.ErrorIs(t, err, ErrMixedInherit)
}

func TestIPAddrBlocksExtensionEncodesBothFamiliesSorted(t *testing.T) {
	v4 := &IPFamily{Entries: []IPEntry{
		PrefixEntry(netip.MustParsePrefix("10.0.0.0/8")),
		PrefixEntry(netip.MustParsePrefix("1.0.0.0/8")),
	}}
	v6 := &IPFamily{Entries: []IPEntry{
		PrefixEntry(netip.MustParsePrefix("2001:db8::/32")),
	}}
	der, err := IPAddrBlocksExtension(v4, v6)
	require.NoError(t, err)

	var blocks asn1codec.IPAddrBlocks
	require.NoError(t, asn1codec.Decode(der, &blocks))
	require.Len(t, blocks, 2)
	assert.Equal(t, AFIv4, blocks[0].AddressFamily)
	assert.Equal(t, AFIv6, blocks[1].AddressFamily)

	// 1.0.0.0/8 sorts ahead of 10.0.0.0/8 despite the caller's order.
	var v4Prefixes []asn1.BitString
	require.NoError(t, asn1codec.Decode(blocks[0].IPAddressChoice.FullBytes, &v4Prefixes))
	require.Len(t, v4Prefixes, 2)
	assert.Equal(t, []byte{1}, v4Prefixes[0].Bytes)
	assert.Equal(t, []byte{10}, v4Prefixes[1].Bytes)
}

func TestIPAddrBlocksExtensionInherit(t *testing.T) {
	der, err := IPAddrBlocksExtension(&IPFamily{Inherit: true}, nil)
	require.NoError(t, err)

	var blocks asn1codec.IPAddrBlocks
	require.NoError(t, asn1codec.Decode(der, &blocks))
	require.Len(t, blocks, 1)
}

func TestASIdentifiersExtensionRejectsEmptyEntries(t *testing.T) {
	_, err := ASIdentifiersExtension(ASResources{})
	assert.ErrorIs(t, err, ErrEmptyResourceSet)
}

func TestASIdentifiersExtensionRejectsMixedInherit(t *testing.T) {
	as := ASResources{Inherit: true, Entries: []ASEntry{ASIDEntry(65001)}}
	_, err := ASIdentifiersExtension(as)
	assert.ErrorIs(t, err, ErrMixedInherit)
}

func TestASIdentifiersExtensionEncodesIDsAndRanges(t *testing.T) {
	as := ASResources{Entries: []ASEntry{ASIDEntry(65001), ASRangeEntry(65010, 65020)}}
	der, err := ASIdentifiersExtension(as)
	require.NoError(t, err)

	var ids asn1codec.ASIdentifiers
	require.NoError(t, asn1codec.Decode(der, &ids))
	assert.NotEmpty(t, ids.ASNum.FullBytes)
}

func TestASIdentifiersExtensionInherit(t *testing.T) {
	der, err := ASIdentifiersExtension(ASResources{Inherit: true})
	require.NoError(t, err)

	var ids asn1codec.ASIdentifiers
	require.NoError(t, asn1codec.Decode(der, &ids))
}
