package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moveguard/internal/extract"
)

func TestParseTargetFA(t *testing.T) {
	target, err := ParseTarget(extract.KindFA, "  0x00AbCd  ")
	require.NoError(t, err)
	assert.Equal(t, extract.KindFA, target.Kind)
	assert.Equal(t, "0xabcd", target.Address)
	assert.Equal(t, "0xabcd", target.ID())
	assert.Equal(t, "fa:0xabcd", target.String())
}

func TestParseTargetCoin(t *testing.T) {
	target, err := ParseTarget(extract.KindCoin, "0x00EE::moon_coin::MoonCoin")
	require.NoError(t, err)
	assert.Equal(t, "0xee", target.Address)
	assert.Equal(t, "moon_coin", target.ModuleName)
	assert.Equal(t, "0xee::moon_coin::MoonCoin", target.CoinType)
	// Registry and snapshot identity is fully lowercased.
	assert.Equal(t, "0xee::moon_coin::mooncoin", target.ID())
}

func TestParseTargetWallet(t *testing.T) {
	target, err := ParseTarget(extract.KindWallet, "0x1")
	require.NoError(t, err)
	assert.Equal(t, "0x1", target.Address)
}

func TestParseTargetRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		kind extract.TargetKind
		raw  string
	}{
		{"empty", extract.KindFA, ""},
		{"no 0x prefix", extract.KindFA, "abcdef"},
		{"non-hex body", extract.KindFA, "0xzz"},
		{"too long", extract.KindFA, "0x" + string(make([]byte, 70))},
		{"coin missing struct", extract.KindCoin, "0xee::moon_coin"},
		{"coin bad address", extract.KindCoin, "moon::moon_coin::MoonCoin"},
		{"coin empty module", extract.KindCoin, "0xee::::MoonCoin"},
		{"unknown kind", extract.TargetKind("nft"), "0x1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTarget(tc.kind, tc.raw)
			assert.Error(t, err)
		})
	}
}
