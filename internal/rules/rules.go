package rules

import (
	"sort"

	"moveguard/internal/logger"
)

// Rule is one heuristic detector. Eval must be pure over the context; a
// panicking rule is recovered and skipped so the rest of the batch runs.
type Rule struct {
	ID   string
	Eval func(*Context) []Finding
}

// Registry returns the fixed detector set. Order is fixed for reproducible
// logs, but rules are independent so execution order never changes output.
func Registry() []Rule {
	return []Rule{
		{ID: "outflow-capability", Eval: evalOutflowCapability},
		{ID: "unprotected-privileged-entry", Eval: evalUnprotectedPrivilegedEntry},
		{ID: "dispatch-hook-surface", Eval: evalDispatchHookSurface},
		{ID: "supply-mutation", Eval: evalSupplyMutation},
		{ID: "freeze-deny-capability", Eval: evalFreezeDenyCapability},
		{ID: "blocklist-honeypot-literals", Eval: evalHoneypotLiterals},
		{ID: "upgrade-authority", Eval: evalUpgradeAuthority},
		{ID: "opaque-interface", Eval: evalOpaqueInterface},
	}
}

// RunAll evaluates every registered rule and clamps the results to what the
// available evidence supports.
func RunAll(ctx *Context) []Finding {
	var out []Finding
	for _, rule := range Registry() {
		findings := runOne(rule, ctx)
		for _, f := range findings {
			out = append(out, clamp(f, ctx))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func runOne(rule Rule, ctx *Context) (findings []Finding) {
	defer func() {
		if r := recover(); r != nil {
			// A broken rule must not abort the batch, and a synthetic
			// placeholder finding could overstate severity.
			logger.Error("rule %s panicked: %v", rule.ID, r)
			findings = nil
		}
	}()
	return rule.Eval(ctx)
}

// clamp enforces the evidence invariants: static rules never emit critical,
// view-only evidence caps severity at medium, and confidence is capped by
// evidence kind (0.6 for ABI-backed, 0.5 for heuristics).
func clamp(f Finding, ctx *Context) Finding {
	if f.Severity.Rank() > SeverityHigh.Rank() {
		f.Severity = SeverityHigh
	}
	if ctx.Evidence.ViewOnly && f.Severity.Rank() > SeverityMedium.Rank() {
		f.Severity = SeverityMedium
	}

	cap := 0.5
	if f.EvidenceKind == EvidenceABIPattern || f.EvidenceKind == EvidenceBytecodePattern {
		cap = 0.6
	}
	if f.Confidence > cap {
		f.Confidence = cap
	}
	if f.Confidence < 0 {
		f.Confidence = 0
	}
	return f
}
