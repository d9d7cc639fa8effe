package extract

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moveguard/internal/chain"
)

func res(typ, data string) chain.Resource {
	return chain.Resource{Type: typ, Data: json.RawMessage(data)}
}

func TestCapabilitiesFromFAResources(t *testing.T) {
	resources := []chain.Resource{
		res("0x1::object::ObjectCore", `{"owner":"0x00aB","guid_creation_num":"3"}`),
		res("0x1::fungible_asset::Metadata", `{"name":"Moon","symbol":"MOON","decimals":6}`),
		res("0x1::fungible_asset::ConcurrentSupply", `{"current":{"value":"1000000"},"max":{"value":"5000000"}}`),
		res("0x1::fungible_asset::DispatchFunctionStore", `{
			"deposit_function":{"vec":[{"module_address":"0x00CC","module_name":"hooks","function_name":"on_deposit"}]},
			"withdraw_function":{"vec":[]},
			"derived_balance_function":{"vec":[]}
		}`),
		res("0xcc::managed::ManagingRefs", `{"mint_ref":{},"transfer_ref":{}}`),
	}

	caps := CapabilitiesFromResources(KindFA, resources)
	assert.Equal(t, "0xab", caps.Owner)
	assert.Equal(t, "Moon", caps.Name)
	assert.Equal(t, "MOON", caps.Symbol)
	assert.Equal(t, 6, caps.Decimals)
	assert.Equal(t, "1000000", caps.Supply)
	assert.Equal(t, "5000000", caps.MaxSupply)
	assert.True(t, caps.MintRef)
	assert.True(t, caps.TransferRef)
	assert.False(t, caps.BurnRef)

	require.Len(t, caps.Hooks, 1)
	assert.Equal(t, "deposit", caps.Hooks[0].Kind)
	assert.Equal(t, "0xcc::hooks::on_deposit", caps.Hooks[0].Key())
}

func TestCapabilitiesFromCoinResources(t *testing.T) {
	resources := []chain.Resource{
		res("0x1::coin::CoinInfo<0x00Ee::moon_coin::MoonCoin>", `{
			"name":"Moon Coin","symbol":"MOON","decimals":8,
			"supply":{"vec":[{"integer":{"vec":[{"value":"777","limit":"1000"}]}}]}
		}`),
		res("0x1::coin::Capabilities<0xee::moon_coin::MoonCoin>", `{"mint_cap":{},"burn_cap":{}}`),
	}

	caps := CapabilitiesFromResources(KindCoin, resources)
	assert.Equal(t, "Moon Coin", caps.Name)
	assert.Equal(t, 8, caps.Decimals)
	assert.Equal(t, "777", caps.Supply)
	assert.Equal(t, "1000", caps.MaxSupply)
	assert.Equal(t, "0xee", caps.Owner)
	assert.True(t, caps.MintRef)
	assert.True(t, caps.BurnRef)
	assert.False(t, caps.FreezeRef)
}

func TestCapabilitiesMalformedResourceDegradesToAbsent(t *testing.T) {
	resources := []chain.Resource{
		res("0x1::fungible_asset::ConcurrentSupply", `{"current":"not-an-object"}`),
		res("0x1::fungible_asset::Metadata", `{"name":"Ok","symbol":"OK","decimals":2}`),
	}

	caps := CapabilitiesFromResources(KindFA, resources)
	assert.Equal(t, "", caps.Supply)
	assert.Equal(t, "Ok", caps.Name)
}

func TestSupplyNeverCoercedFromNonDigits(t *testing.T) {
	assert.Equal(t, "", digitsOrEmpty("1.5e9"))
	assert.Equal(t, "", digitsOrEmpty("-10"))
	assert.Equal(t, "", digitsOrEmpty(""))
	assert.Equal(t, "18446744073709551615", digitsOrEmpty("18446744073709551615"))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xab", NormalizeAddress("0x00AB"))
	assert.Equal(t, "0x0", NormalizeAddress("0x000"))
	assert.Equal(t, "0x1", NormalizeAddress("0x1"))
	assert.Equal(t, "plain", NormalizeAddress("PLAIN"))
}

func TestScrapeStringLiterals(t *testing.T) {
	payload := append([]byte{0x00, 0x01}, []byte("ENOT_OWNER")...)
	payload = append(payload, 0x00, 0x02)
	payload = append(payload, []byte("ab")...) // below the minimum run length
	payload = append(payload, 0xff)
	payload = append(payload, []byte("sell_disabled")...)

	literals := ScrapeStringLiterals("0x" + hex.EncodeToString(payload))
	assert.Equal(t, []string{"ENOT_OWNER", "sell_disabled"}, literals)

	assert.Nil(t, ScrapeStringLiterals("not-hex"))
}

func TestBuildArtifactViewDedupsAndSorts(t *testing.T) {
	modules := []chain.MoveModule{
		{ABI: &chain.ModuleABI{Address: "0xabc", Name: "token", ExposedFunctions: []chain.MoveFunction{
			{Name: "transfer", IsEntry: true},
			{Name: "balance", IsView: true},
		}}},
		{ABI: &chain.ModuleABI{Address: "0xabc", Name: "admin", ExposedFunctions: []chain.MoveFunction{
			{Name: "transfer", IsEntry: true},
			{Name: "set_admin", IsEntry: true},
		}}},
	}

	view := BuildArtifactView(ModuleID{Address: "0xabc", Name: "token"}, modules)
	assert.Equal(t, []string{"set_admin", "transfer"}, view.EntryFunctions)
	assert.Equal(t, []string{"balance", "set_admin", "transfer"}, view.AllFunctions)
}

func TestCodeHashForModules(t *testing.T) {
	modules := []chain.MoveModule{
		{Bytecode: "0xa11ce0", ABI: &chain.ModuleABI{Address: "0x00AB", Name: "token"}},
		{Bytecode: "0xb0b0", ABI: &chain.ModuleABI{Address: "0xab", Name: "admin"}},
	}

	account, perModule := CodeHashForModules(modules)
	require.Len(t, perModule, 2)
	assert.Contains(t, perModule, "0xab::token")
	assert.Contains(t, perModule, "0xab::admin")
	assert.NotEmpty(t, account)

	// Module order must not matter.
	reversed, _ := CodeHashForModules([]chain.MoveModule{modules[1], modules[0]})
	assert.Equal(t, account, reversed)

	// No bytecode means nothing to pin.
	empty, perModule := CodeHashForModules([]chain.MoveModule{{ABI: &chain.ModuleABI{Address: "0x1", Name: "x"}}})
	assert.Equal(t, "", empty)
	assert.Empty(t, perModule)
}

func TestSurfaceFromCapabilitiesNullability(t *testing.T) {
	caps := EmptyCapabilities(KindFA)
	s := SurfaceFromCapabilities("primary", caps, "")
	require.NotNil(t, s)
	assert.Nil(t, s.Owner)
	assert.Nil(t, s.Supply)
	assert.Nil(t, s.Decimals)
	assert.Nil(t, s.CodeHash)
	// Refs are known-false, not unknown: the source answered.
	require.NotNil(t, s.MintRef)
	assert.False(t, *s.MintRef)

	caps.Owner = "0xaaa"
	caps.Supply = "10"
	caps.Decimals = 8
	s = SurfaceFromCapabilities("primary", caps, "deadbeef")
	require.NotNil(t, s.Owner)
	assert.Equal(t, "0xaaa", *s.Owner)
	require.NotNil(t, s.CodeHash)
}

func TestSurfaceFromIndexerLeavesRefsUnknown(t *testing.T) {
	s := SurfaceFromIndexer("indexer", &chain.FAMetadataRow{
		CreatorAddr: "0x00AA",
		SupplyV2:    "5000",
		Decimals:    6,
	})
	require.NotNil(t, s)
	assert.Equal(t, "0xaa", *s.Owner)
	assert.Equal(t, "5000", *s.Supply)
	assert.Equal(t, 6, *s.Decimals)
	assert.Nil(t, s.MintRef)
	assert.Nil(t, s.Hooks)
	assert.Nil(t, SurfaceFromIndexer("indexer", nil))
}
