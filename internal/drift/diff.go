package drift

import (
	"fmt"
	"math/big"
	"sort"

	"moveguard/internal/extract"
)

// Change records one field-level difference between consecutive snapshots.
type Change struct {
	Field  string `json:"field"`
	Kind   string `json:"kind,omitempty"` // added | removed | modified, for keyed collections
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
	Delta  string `json:"delta,omitempty"` // signed, supply fields only
}

type DiffResult struct {
	Changed bool     `json:"changed"`
	Changes []Change `json:"changes,omitempty"`
}

// Diff compares consecutive snapshots field by field. A nil prev is a
// baseline, not a drift event: the first observation of a target is never
// reported as a change.
func Diff(prev, curr *PingSnapshot) DiffResult {
	if prev == nil || curr == nil {
		return DiffResult{Changed: false}
	}
	if prev.Fingerprint == curr.Fingerprint {
		return DiffResult{Changed: false}
	}

	var changes []Change

	if prev.DriftKeys.Owner != curr.DriftKeys.Owner {
		changes = append(changes, Change{Field: "owner", Before: prev.DriftKeys.Owner, After: curr.DriftKeys.Owner})
	}
	changes = append(changes, diffSupply("supply", prev.DriftKeys.Supply, curr.DriftKeys.Supply)...)
	changes = append(changes, diffSupply("max_supply", prev.DriftKeys.MaxSupply, curr.DriftKeys.MaxSupply)...)
	if prev.DriftKeys.Decimals != curr.DriftKeys.Decimals {
		changes = append(changes, Change{
			Field:  "decimals",
			Before: fmt.Sprintf("%d", prev.DriftKeys.Decimals),
			After:  fmt.Sprintf("%d", curr.DriftKeys.Decimals),
		})
	}
	changes = append(changes, diffCapabilities(prev.DriftKeys.Capabilities, curr.DriftKeys.Capabilities)...)
	changes = append(changes, diffHooks(prev.DriftKeys.Hooks, curr.DriftKeys.Hooks)...)
	changes = append(changes, diffModuleHashes(prev.DriftKeys.ModuleHashes, curr.DriftKeys.ModuleHashes)...)

	return DiffResult{Changed: len(changes) > 0, Changes: changes}
}

// diffSupply compares decimal-string supplies and attaches a signed delta
// when both parse.
func diffSupply(field, before, after string) []Change {
	if before == after {
		return nil
	}
	change := Change{Field: field, Before: before, After: after}

	prevN, okPrev := new(big.Int).SetString(before, 10)
	currN, okCurr := new(big.Int).SetString(after, 10)
	if okPrev && okCurr {
		delta := new(big.Int).Sub(currN, prevN)
		if delta.Sign() > 0 {
			change.Delta = "+" + delta.String()
		} else {
			change.Delta = delta.String()
		}
	}
	return []Change{change}
}

func diffCapabilities(prev, curr map[string]bool) []Change {
	keys := make(map[string]struct{})
	for k := range prev {
		keys[k] = struct{}{}
	}
	for k := range curr {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var out []Change
	for _, k := range sorted {
		if prev[k] != curr[k] {
			out = append(out, Change{
				Field:  "capabilities." + k,
				Before: fmt.Sprintf("%t", prev[k]),
				After:  fmt.Sprintf("%t", curr[k]),
			})
		}
	}
	return out
}

// diffHooks compares hook lists as sets keyed by
// (module_address, module_name, function_name), so reordering alone is not a
// change.
func diffHooks(prev, curr []extract.DispatchHook) []Change {
	prevSet := hookSet(prev)
	currSet := hookSet(curr)

	var out []Change
	for _, key := range sortedHookKeys(prevSet) {
		if _, ok := currSet[key]; !ok {
			out = append(out, Change{Field: "hooks", Kind: "removed", Before: key})
		}
	}
	for _, key := range sortedHookKeys(currSet) {
		if _, ok := prevSet[key]; !ok {
			out = append(out, Change{Field: "hooks", Kind: "added", After: key})
		}
	}
	return out
}

func hookSet(hooks []extract.DispatchHook) map[string]struct{} {
	set := make(map[string]struct{}, len(hooks))
	for _, h := range hooks {
		set[h.Key()] = struct{}{}
	}
	return set
}

func sortedHookKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// diffModuleHashes compares the per-module code-hash map key by key.
func diffModuleHashes(prev, curr map[string]string) []Change {
	ids := make(map[string]struct{})
	for id := range prev {
		ids[id] = struct{}{}
	}
	for id := range curr {
		ids[id] = struct{}{}
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	var out []Change
	for _, id := range sorted {
		prevHash, inPrev := prev[id]
		currHash, inCurr := curr[id]
		switch {
		case inPrev && !inCurr:
			out = append(out, Change{Field: "module_hashes." + id, Kind: "removed", Before: prevHash})
		case !inPrev && inCurr:
			out = append(out, Change{Field: "module_hashes." + id, Kind: "added", After: currHash})
		case prevHash != currHash:
			out = append(out, Change{Field: "module_hashes." + id, Kind: "modified", Before: prevHash, After: currHash})
		}
	}
	return out
}
