package rules

import (
	"fmt"
	"strings"
)

// Curated keyword lists per concern. These are heuristics over names and
// literals only; there is deliberately no bytecode interpretation here.
var (
	outflowKeywords    = []string{"transfer", "withdraw", "drain", "sweep", "rescue", "emergency", "claim_all"}
	privilegedKeywords = []string{"set_owner", "set_admin", "set_authority", "update_config", "set_fee", "governance", "pause", "unpause"}
	supplyKeywords     = []string{"mint", "burn", "issue", "redeem"}
	freezeKeywords     = []string{"freeze", "unfreeze", "blacklist", "blocklist", "deny", "ban_"}
	upgradeKeywords    = []string{"upgrade", "migrate", "set_code", "publish_package"}
	honeypotLiterals   = []string{"blacklist", "cannot_sell", "sell_disabled", "only_buy", "max_tx", "trading_paused"}
	gatingLiterals     = []string{"only_admin", "require_owner", "not_owner", "not_admin", "unauthorized", "enot_owner", "eno_permission", "e_not_authorized"}
)

func evalOutflowCapability(ctx *Context) []Finding {
	matched, allowed := matchEntries(ctx, outflowKeywords)
	var out []Finding
	if len(matched) > 0 {
		sev, conf, kind := grade(ctx, hasAccessControlEvidence(ctx, matched))
		out = append(out, Finding{
			ID:              "outflow-capability",
			Severity:        sev,
			Confidence:      conf,
			EvidenceKind:    kind,
			Description:     "entry functions matching outflow patterns can move assets out of the module",
			MatchedPatterns: matched,
			Locations:       locations(ctx, matched),
		})
	}
	out = append(out, acknowledgments(ctx, allowed)...)
	return out
}

func evalUnprotectedPrivilegedEntry(ctx *Context) []Finding {
	matched, allowed := matchEntries(ctx, privilegedKeywords)
	var out []Finding
	if len(matched) > 0 {
		gated := hasAccessControlEvidence(ctx, matched)
		sev, conf, kind := grade(ctx, gated)
		desc := "privileged-looking entry functions without visible access control"
		if gated {
			desc = "privileged-looking entry functions appear signer-gated"
		}
		out = append(out, Finding{
			ID:              "unprotected-privileged-entry",
			Severity:        sev,
			Confidence:      conf,
			EvidenceKind:    kind,
			Description:     desc,
			MatchedPatterns: matched,
			Locations:       locations(ctx, matched),
		})
	}
	out = append(out, acknowledgments(ctx, allowed)...)
	return out
}

func evalDispatchHookSurface(ctx *Context) []Finding {
	if ctx.Capabilities == nil || len(ctx.Capabilities.Hooks) == 0 {
		return nil
	}
	sev := SeverityMedium
	patterns := make([]string, 0, len(ctx.Capabilities.Hooks))
	for _, hook := range ctx.Capabilities.Hooks {
		patterns = append(patterns, hook.Kind+":"+hook.Key())
		if hook.Kind == "withdraw" || hook.Kind == "deposit" {
			// Transfer-path hooks can reroute or reject flows at will.
			sev = SeverityHigh
		}
	}
	return []Finding{{
		ID:              "dispatch-hook-surface",
		Severity:        sev,
		Confidence:      0.6,
		EvidenceKind:    EvidenceMetadata,
		Description:     "dispatch hooks route balance operations through custom module code",
		MatchedPatterns: patterns,
	}}
}

func evalSupplyMutation(ctx *Context) []Finding {
	matched, allowed := matchEntries(ctx, supplyKeywords)
	var out []Finding
	refHeld := ctx.Capabilities != nil && (ctx.Capabilities.MintRef || ctx.Capabilities.BurnRef)
	if len(matched) > 0 || refHeld {
		gated := hasAccessControlEvidence(ctx, matched)
		sev, conf, kind := grade(ctx, gated)
		if refHeld {
			kind = EvidenceMetadata
			if conf < 0.5 {
				conf = 0.5
			}
		}
		out = append(out, Finding{
			ID:              "supply-mutation",
			Severity:        sev,
			Confidence:      conf,
			EvidenceKind:    kind,
			Description:     "supply can still be changed: mint/burn entry points or retained refs detected",
			MatchedPatterns: matched,
			Locations:       locations(ctx, matched),
		})
	}
	out = append(out, acknowledgments(ctx, allowed)...)
	return out
}

func evalFreezeDenyCapability(ctx *Context) []Finding {
	matched, _ := matchEntries(ctx, freezeKeywords)
	refHeld := ctx.Capabilities != nil && (ctx.Capabilities.FreezeRef || ctx.Capabilities.TransferRef)
	if len(matched) == 0 && !refHeld {
		return nil
	}
	sev, conf, kind := grade(ctx, hasAccessControlEvidence(ctx, matched))
	if refHeld {
		kind = EvidenceMetadata
		sev = SeverityMedium
	}
	return []Finding{{
		ID:              "freeze-deny-capability",
		Severity:        sev,
		Confidence:      conf,
		EvidenceKind:    kind,
		Description:     "holder accounts can be frozen or deny-listed by the module authority",
		MatchedPatterns: matched,
		Locations:       locations(ctx, matched),
	}}
}

func evalHoneypotLiterals(ctx *Context) []Finding {
	var matched []string
	for _, lit := range ctx.View.StringLiterals {
		lower := strings.ToLower(lit)
		for _, kw := range honeypotLiterals {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
				break
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}
	matched = dedupe(matched)
	kind := EvidenceHeuristic
	if ctx.Evidence.HasBytecodeOrSource {
		kind = EvidenceBytecodePattern
	}
	return []Finding{{
		ID:              "blocklist-honeypot-literals",
		Severity:        SeverityMedium,
		Confidence:      0.45,
		EvidenceKind:    kind,
		Description:     "string literals suggest sell restrictions or deny-list behavior",
		MatchedPatterns: matched,
	}}
}

func evalUpgradeAuthority(ctx *Context) []Finding {
	matched, _ := matchEntries(ctx, upgradeKeywords)
	if len(matched) == 0 {
		return nil
	}
	sev, conf, kind := grade(ctx, hasAccessControlEvidence(ctx, matched))
	return []Finding{{
		ID:              "upgrade-authority",
		Severity:        sev,
		Confidence:      conf,
		EvidenceKind:    kind,
		Description:     "module code or config can be replaced after deployment",
		MatchedPatterns: matched,
		Locations:       locations(ctx, matched),
	}}
}

func evalOpaqueInterface(ctx *Context) []Finding {
	if ctx.Evidence.HasABI || ctx.Evidence.HasBytecodeOrSource {
		return nil
	}
	return []Finding{{
		ID:           "opaque-interface",
		Severity:     SeverityInfo,
		Confidence:   0.9,
		EvidenceKind: EvidenceMetadata,
		Description:  "no ABI, bytecode or source available; static verification is limited to metadata",
	}}
}

// matchEntries splits keyword hits on entry-function names into penalized
// matches and allow-listed ones.
func matchEntries(ctx *Context, keywords []string) (matched, allowed []string) {
	for _, name := range ctx.View.EntryFunctions {
		lower := strings.ToLower(name)
		hit := false
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		if allowListed(lower, ctx.AllowList) {
			allowed = append(allowed, name)
		} else {
			matched = append(matched, name)
		}
	}
	return dedupe(matched), dedupe(allowed)
}

func allowListed(name string, allowList []string) bool {
	for _, pattern := range allowList {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		if name == pattern || strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

// acknowledgments emits the info-level record for suppressed matches so the
// report still shows the function existed.
func acknowledgments(ctx *Context, allowed []string) []Finding {
	if len(allowed) == 0 {
		return nil
	}
	return []Finding{{
		ID:              "allowlisted-pattern",
		Severity:        SeverityInfo,
		Confidence:      0.9,
		EvidenceKind:    EvidenceMetadata,
		Description:     "matched functions are on the configured known-safe allow list",
		MatchedPatterns: allowed,
		Locations:       locations(ctx, allowed),
	}}
}

// hasAccessControlEvidence looks for a signer-typed parameter on the matched
// ABI functions, or gating keywords in scraped string literals.
func hasAccessControlEvidence(ctx *Context, matched []string) bool {
	if ctx.ABI != nil {
		matchedSet := make(map[string]struct{}, len(matched))
		for _, m := range matched {
			matchedSet[strings.ToLower(m)] = struct{}{}
		}
		for _, fn := range ctx.ABI.ExposedFunctions {
			if len(matched) > 0 {
				if _, ok := matchedSet[strings.ToLower(fn.Name)]; !ok {
					continue
				}
			}
			for _, param := range fn.Params {
				if param == "signer" || param == "&signer" {
					return true
				}
			}
		}
	}
	for _, lit := range ctx.View.StringLiterals {
		lower := strings.ToLower(lit)
		for _, kw := range gatingLiterals {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// grade picks severity/confidence from the fixed lookup keyed by evidence
// kind and access-control evidence. clamp() applies the view-only cap on top.
func grade(ctx *Context, accessControlled bool) (Severity, float64, EvidenceKind) {
	if ctx.Evidence.HasABI {
		if accessControlled {
			return SeverityLow, 0.35, EvidenceABIPattern
		}
		return SeverityHigh, 0.6, EvidenceABIPattern
	}
	if accessControlled {
		return SeverityLow, 0.3, EvidenceHeuristic
	}
	return SeverityMedium, 0.45, EvidenceHeuristic
}

func locations(ctx *Context, names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, fmt.Sprintf("%s::%s", ctx.View.Module.String(), name))
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
