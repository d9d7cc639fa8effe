package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"moveguard/internal/chain"
)

// Well-known framework resource types. Matching is by suffix so forks that
// republish the framework under another address still parse.
const (
	typeObjectCore        = "::object::ObjectCore"
	typeFAMetadata        = "::fungible_asset::Metadata"
	typeFASupply          = "::fungible_asset::Supply"
	typeFAConcurrent      = "::fungible_asset::ConcurrentSupply"
	typeFADispatch        = "::fungible_asset::DispatchFunctionStore"
	typeFADerivedSupply   = "::fungible_asset::DeriveSupply"
	typeCoinInfoPrefix    = "::coin::CoinInfo<"
	typeCoinCapsPrefix    = "::coin::Capabilities<"
	typeManagedRefsSuffix = "ManagingRefs"
)

// CapabilitiesFromResources reduces a raw resource list to the normalized
// capability record for the target kind. Shape failures in any single
// resource degrade that resource to "absent" instead of failing the scan.
func CapabilitiesFromResources(kind TargetKind, resources []chain.Resource) *ModuleCapabilities {
	caps := EmptyCapabilities(kind)
	if kind == KindCoin {
		parseCoinResources(caps, resources)
	} else {
		parseFAResources(caps, resources)
	}
	sortHooks(caps.Hooks)
	return caps
}

func parseFAResources(caps *ModuleCapabilities, resources []chain.Resource) {
	for _, res := range resources {
		switch {
		case strings.HasSuffix(res.Type, typeObjectCore):
			var data struct {
				Owner string `json:"owner"`
			}
			if json.Unmarshal(res.Data, &data) == nil && data.Owner != "" {
				caps.Owner = normalizeAddress(data.Owner)
			}

		case strings.HasSuffix(res.Type, typeFAMetadata):
			var data struct {
				Name     string `json:"name"`
				Symbol   string `json:"symbol"`
				Decimals int    `json:"decimals"`
			}
			if json.Unmarshal(res.Data, &data) == nil {
				caps.Name = data.Name
				caps.Symbol = data.Symbol
				caps.Decimals = data.Decimals
			}

		case strings.HasSuffix(res.Type, typeFAConcurrent):
			var data struct {
				Current struct {
					Value string `json:"value"`
				} `json:"current"`
				Max struct {
					Value string `json:"value"`
				} `json:"max"`
			}
			if json.Unmarshal(res.Data, &data) == nil {
				caps.Supply = digitsOrEmpty(data.Current.Value)
				caps.MaxSupply = digitsOrEmpty(data.Max.Value)
			}

		case strings.HasSuffix(res.Type, typeFASupply):
			var data struct {
				Current string `json:"current"`
				Maximum struct {
					Vec []string `json:"vec"`
				} `json:"maximum"`
			}
			if json.Unmarshal(res.Data, &data) == nil {
				caps.Supply = digitsOrEmpty(data.Current)
				if len(data.Maximum.Vec) > 0 {
					caps.MaxSupply = digitsOrEmpty(data.Maximum.Vec[0])
				}
			}

		case strings.HasSuffix(res.Type, typeFADispatch):
			parseDispatchStore(caps, res.Data)

		case strings.HasSuffix(res.Type, typeFADerivedSupply):
			if hook, ok := parseFunctionInfoField(res.Data, "dispatch_function"); ok {
				hook.Kind = "derived_supply"
				caps.Hooks = append(caps.Hooks, hook)
			}

		case strings.Contains(res.Type, typeManagedRefsSuffix):
			// Managed-asset ref holders publish which refs they retained.
			var data map[string]json.RawMessage
			if json.Unmarshal(res.Data, &data) == nil {
				for field := range data {
					switch {
					case strings.Contains(field, "mint"):
						caps.MintRef = true
					case strings.Contains(field, "burn"):
						caps.BurnRef = true
					case strings.Contains(field, "transfer"):
						caps.TransferRef = true
					case strings.Contains(field, "freeze"):
						caps.FreezeRef = true
					}
				}
			}
		}
	}
}

func parseDispatchStore(caps *ModuleCapabilities, data json.RawMessage) {
	fields := map[string]string{
		"deposit_function":         "deposit",
		"withdraw_function":        "withdraw",
		"derived_balance_function": "derived_balance",
	}
	for field, kind := range fields {
		if hook, ok := parseFunctionInfoField(data, field); ok {
			hook.Kind = kind
			caps.Hooks = append(caps.Hooks, hook)
		}
	}
}

// parseFunctionInfoField digs an Option<FunctionInfo> out of a resource blob.
func parseFunctionInfoField(data json.RawMessage, field string) (DispatchHook, bool) {
	var raw map[string]json.RawMessage
	if json.Unmarshal(data, &raw) != nil {
		return DispatchHook{}, false
	}
	blob, ok := raw[field]
	if !ok {
		return DispatchHook{}, false
	}

	var opt struct {
		Vec []struct {
			ModuleAddress string `json:"module_address"`
			ModuleName    string `json:"module_name"`
			FunctionName  string `json:"function_name"`
		} `json:"vec"`
	}
	if json.Unmarshal(blob, &opt) != nil || len(opt.Vec) == 0 {
		return DispatchHook{}, false
	}
	fi := opt.Vec[0]
	if fi.FunctionName == "" {
		return DispatchHook{}, false
	}
	return DispatchHook{
		ModuleAddress: normalizeAddress(fi.ModuleAddress),
		ModuleName:    fi.ModuleName,
		FunctionName:  fi.FunctionName,
	}, true
}

func parseCoinResources(caps *ModuleCapabilities, resources []chain.Resource) {
	for _, res := range resources {
		switch {
		case strings.Contains(res.Type, typeCoinInfoPrefix):
			var data struct {
				Name     string `json:"name"`
				Symbol   string `json:"symbol"`
				Decimals int    `json:"decimals"`
				Supply   struct {
					Vec []struct {
						Integer struct {
							Vec []struct {
								Value string `json:"value"`
								Limit string `json:"limit"`
							} `json:"vec"`
						} `json:"integer"`
					} `json:"vec"`
				} `json:"supply"`
			}
			if json.Unmarshal(res.Data, &data) == nil {
				caps.Name = data.Name
				caps.Symbol = data.Symbol
				caps.Decimals = data.Decimals
				if len(data.Supply.Vec) > 0 && len(data.Supply.Vec[0].Integer.Vec) > 0 {
					agg := data.Supply.Vec[0].Integer.Vec[0]
					caps.Supply = digitsOrEmpty(agg.Value)
					caps.MaxSupply = digitsOrEmpty(agg.Limit)
				}
			}
			// The publisher of CoinInfo is the de facto owner of a legacy coin.
			if addr := coinStructAddress(res.Type); addr != "" && caps.Owner == "" {
				caps.Owner = addr
			}

		case strings.Contains(res.Type, typeCoinCapsPrefix):
			var data map[string]json.RawMessage
			if json.Unmarshal(res.Data, &data) == nil {
				if _, ok := data["mint_cap"]; ok {
					caps.MintRef = true
				}
				if _, ok := data["burn_cap"]; ok {
					caps.BurnRef = true
				}
				if _, ok := data["freeze_cap"]; ok {
					caps.FreezeRef = true
				}
			}
		}
	}
}

// coinStructAddress extracts the publisher address from a
// CoinInfo<0xaddr::module::Struct> type tag.
func coinStructAddress(resourceType string) string {
	open := strings.Index(resourceType, "<")
	if open < 0 {
		return ""
	}
	inner := strings.TrimSuffix(resourceType[open+1:], ">")
	parts := strings.Split(inner, "::")
	if len(parts) < 3 {
		return ""
	}
	return normalizeAddress(parts[0])
}

// BuildArtifactView flattens published modules into the deduplicated
// name/literal sets the rule engine consumes.
func BuildArtifactView(module ModuleID, modules []chain.MoveModule) ArtifactView {
	entrySet := make(map[string]struct{})
	allSet := make(map[string]struct{})
	literalSet := make(map[string]struct{})

	for _, mod := range modules {
		if mod.ABI != nil {
			for _, fn := range mod.ABI.ExposedFunctions {
				allSet[fn.Name] = struct{}{}
				if fn.IsEntry {
					entrySet[fn.Name] = struct{}{}
				}
			}
		}
		for _, lit := range ScrapeStringLiterals(mod.Bytecode) {
			literalSet[lit] = struct{}{}
		}
	}

	return ArtifactView{
		Module:         module,
		EntryFunctions: sortedKeys(entrySet),
		AllFunctions:   sortedKeys(allSet),
		StringLiterals: sortedKeys(literalSet),
	}
}

// ScrapeStringLiterals pulls printable ASCII runs out of hex bytecode. This
// is a heuristic artifact source, never an evidentiary one on its own.
func ScrapeStringLiterals(bytecodeHex string) []string {
	raw, err := hex.DecodeString(strings.TrimPrefix(bytecodeHex, "0x"))
	if err != nil {
		return nil
	}

	const minLen = 4
	var out []string
	var run []byte
	flush := func() {
		if len(run) >= minLen {
			out = append(out, string(run))
		}
		run = run[:0]
	}
	for _, b := range raw {
		if b >= 0x20 && b < 0x7f {
			run = append(run, b)
			continue
		}
		flush()
	}
	flush()
	return out
}

// SurfaceFromCapabilities projects a capability record down to the
// cross-source comparison form.
func SurfaceFromCapabilities(source string, caps *ModuleCapabilities, codeHash string) *MiniSurface {
	if caps == nil {
		return nil
	}
	s := &MiniSurface{
		Source:      source,
		MintRef:     boolPtr(caps.MintRef),
		BurnRef:     boolPtr(caps.BurnRef),
		FreezeRef:   boolPtr(caps.FreezeRef),
		TransferRef: boolPtr(caps.TransferRef),
		Hooks:       append([]DispatchHook(nil), caps.Hooks...),
	}
	if caps.Owner != "" {
		s.Owner = strPtr(caps.Owner)
	}
	if caps.Supply != "" {
		s.Supply = strPtr(caps.Supply)
	}
	if caps.Decimals >= 0 {
		s.Decimals = intPtr(caps.Decimals)
	}
	if codeHash != "" {
		s.CodeHash = strPtr(codeHash)
	}
	sortHooks(s.Hooks)
	return s
}

// SurfaceFromIndexer maps an indexer metadata row to a mini-surface. The
// indexer has no visibility into refs or hooks, so those stay nil.
func SurfaceFromIndexer(source string, row *chain.FAMetadataRow) *MiniSurface {
	if row == nil {
		return nil
	}
	s := &MiniSurface{Source: source}
	if row.CreatorAddr != "" {
		s.Owner = strPtr(normalizeAddress(row.CreatorAddr))
	}
	if v := digitsOrEmpty(row.SupplyV2); v != "" {
		s.Supply = strPtr(v)
	}
	if row.Decimals >= 0 {
		s.Decimals = intPtr(row.Decimals)
	}
	return s
}

// CodeHashForModules hashes every module's bytecode and folds the per-module
// hashes (sorted by module id) into one account-level hash.
func CodeHashForModules(modules []chain.MoveModule) (string, map[string]string) {
	perModule := make(map[string]string, len(modules))
	for _, mod := range modules {
		if mod.Bytecode == "" {
			continue
		}
		sum := sha256.Sum256([]byte(mod.Bytecode))
		id := "unknown"
		if mod.ABI != nil {
			id = normalizeAddress(mod.ABI.Address) + "::" + mod.ABI.Name
		}
		perModule[id] = hex.EncodeToString(sum[:])
	}
	if len(perModule) == 0 {
		return "", perModule
	}

	ids := make([]string, 0, len(perModule))
	for id := range perModule {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(perModule[id]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), perModule
}

func normalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(addr, "0x") {
		return addr
	}
	trimmed := strings.TrimLeft(addr[2:], "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return "0x" + trimmed
}

// NormalizeAddress is the exported form used by target parsing.
func NormalizeAddress(addr string) string { return normalizeAddress(addr) }

func digitsOrEmpty(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return s
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortHooks(hooks []DispatchHook) {
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].Key() < hooks[j].Key() })
}
