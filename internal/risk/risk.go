// Package risk maps corroboration claims, rule findings and optional on-chain
// behavior evidence into one discrete risk verdict. Synthesize is pure:
// identical inputs always produce identical, identically-ordered output.
package risk

import (
	"fmt"
	"sort"

	"moveguard/internal/corroborate"
	"moveguard/internal/rules"
)

// Level is the overall verdict, totally ordered from worst to best. The
// ladder in Synthesize picks the first matching level.
type Level string

const (
	LevelDangerous       Level = "DANGEROUS"
	LevelElevatedRisk    Level = "ELEVATED_RISK"
	LevelOpaqueButActive Level = "OPAQUE_BUT_ACTIVE"
	LevelSafeDynamic     Level = "SAFE_DYNAMIC"
	LevelSafeStatic      Level = "SAFE_STATIC"
)

type Signal string

const (
	SignalHashPinned          Signal = "HASH_PINNED"
	SignalHashConflict        Signal = "HASH_CONFLICT"
	SignalMultiRPCConfirmed   Signal = "MULTI_RPC_CONFIRMED"
	SignalMultiRPCConflict    Signal = "MULTI_RPC_CONFLICT"
	SignalIndexerCorrob       Signal = "INDEXER_CORROBORATED"
	SignalIndexerConflict     Signal = "INDEXER_CONFLICT"
	SignalIndexerUnavailable  Signal = "INDEXER_UNAVAILABLE"
	SignalSupplyConflict      Signal = "SUPPLY_CONFLICT"
	SignalOwnerConflict       Signal = "OWNER_CONFLICT"
	SignalCapabilityConflict  Signal = "CAPABILITY_CONFLICT"
	SignalBehaviorMatches     Signal = "BEHAVIOR_MATCHES_INTERFACE"
	SignalPhantomEntrypoints  Signal = "PHANTOM_ENTRYPOINTS"
	SignalPrivilegedPhantom   Signal = "PRIVILEGED_PHANTOM"
	SignalBehaviorUnavailable Signal = "BEHAVIOR_UNAVAILABLE"
	SignalHookedDispatch      Signal = "HOOKED_DISPATCH"
	SignalMintReachable       Signal = "MINT_REACHABLE"
	SignalBurnReachable       Signal = "BURN_REACHABLE"
	SignalAdminSurface        Signal = "ADMIN_SURFACE"
	SignalOpaqueInterface     Signal = "OPAQUE_INTERFACE"
	SignalViewOnlyEvidence    Signal = "VIEW_ONLY_EVIDENCE"
)

// Behavior is the sampled on-chain evidence for one target. Sampled=false
// means sampling was not requested or no sampler source was reachable.
type Behavior struct {
	Sampled           bool     `json:"sampled"`
	SampledCount      int      `json:"sampled_count"`
	Invoked           []string `json:"invoked,omitempty"`
	Phantom           []string `json:"phantom,omitempty"`
	PrivilegedPhantom []string `json:"privileged_phantom,omitempty"`
	IndexerSupported  bool     `json:"indexer_supported"`
	ActivityCount     int      `json:"activity_count"`
}

// SurfaceFlags summarize what the capability record and findings expose.
type SurfaceFlags struct {
	MintReachable   bool `json:"mint_reachable"`
	BurnReachable   bool `json:"burn_reachable"`
	AdminSurface    bool `json:"admin_surface"`
	HookedDispatch  bool `json:"hooked_dispatch"`
	OpaqueInterface bool `json:"opaque_interface"`
}

type Input struct {
	Claims           corroborate.Result
	Tier             corroborate.EvidenceTier
	Findings         []rules.Finding
	Behavior         *Behavior
	Surface          SurfaceFlags
	IndexerAvailable bool
}

type Synthesis struct {
	Signals   []Signal `json:"signals"`
	Level     Level    `json:"risk_level"`
	Rationale []string `json:"rationale"`
}

// Synthesize derives the signal set and walks the priority ladder.
func Synthesize(in Input) Synthesis {
	signals := deriveSignals(in)
	level, rationale := chooseLevel(in)
	return Synthesis{Signals: signals, Level: level, Rationale: rationale}
}

func deriveSignals(in Input) []Signal {
	set := make(map[Signal]struct{})
	add := func(s Signal) { set[s] = struct{}{} }

	if c := in.Claims.ClaimFor(corroborate.ClaimModuleHash); c != nil {
		switch c.Status {
		case corroborate.StatusConfirmed:
			add(SignalHashPinned)
		case corroborate.StatusConflict:
			add(SignalHashConflict)
		}
	}

	if in.Tier.AtLeast(corroborate.TierMultiRPC) {
		add(SignalMultiRPCConfirmed)
	}
	if in.Claims.HasConflict() {
		add(SignalMultiRPCConflict)
	}
	if c := in.Claims.ClaimFor(corroborate.ClaimSupply); c != nil && c.Status == corroborate.StatusConflict {
		add(SignalSupplyConflict)
	}
	if c := in.Claims.ClaimFor(corroborate.ClaimOwner); c != nil && c.Status == corroborate.StatusConflict {
		add(SignalOwnerConflict)
	}
	for _, t := range []corroborate.ClaimType{corroborate.ClaimMintCap, corroborate.ClaimBurnCap, corroborate.ClaimFreezeCap, corroborate.ClaimTransferCap, corroborate.ClaimHooks} {
		if c := in.Claims.ClaimFor(t); c != nil && c.Status == corroborate.StatusConflict {
			add(SignalCapabilityConflict)
			break
		}
	}

	if in.IndexerAvailable {
		if in.Claims.InvolvesSource("indexer") {
			add(SignalIndexerConflict)
		} else {
			add(SignalIndexerCorrob)
		}
	} else {
		add(SignalIndexerUnavailable)
	}

	if in.Behavior != nil && in.Behavior.Sampled {
		if len(in.Behavior.Phantom) > 0 {
			add(SignalPhantomEntrypoints)
		} else {
			add(SignalBehaviorMatches)
		}
		if len(in.Behavior.PrivilegedPhantom) > 0 {
			add(SignalPrivilegedPhantom)
		}
	} else {
		add(SignalBehaviorUnavailable)
	}

	if in.Surface.HookedDispatch {
		add(SignalHookedDispatch)
	}
	if in.Surface.MintReachable {
		add(SignalMintReachable)
	}
	if in.Surface.BurnReachable {
		add(SignalBurnReachable)
	}
	if in.Surface.AdminSurface {
		add(SignalAdminSurface)
	}
	if in.Surface.OpaqueInterface {
		add(SignalOpaqueInterface)
	}
	if in.Tier == corroborate.TierViewOnly {
		add(SignalViewOnlyEvidence)
	}

	out := make([]Signal, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// chooseLevel walks the ladder top-down; first match wins.
func chooseLevel(in Input) (Level, []string) {
	behaviorSampled := in.Behavior != nil && in.Behavior.Sampled
	anyConflict := in.Claims.HasConflict()
	identityPinned := in.Tier.AtLeast(corroborate.TierMultiRPC) || hashPinned(in)

	var rationale []string
	say := func(format string, args ...any) {
		rationale = append(rationale, fmt.Sprintf(format, args...))
	}

	// 1. Confirmed hostile behavior.
	if behaviorSampled && len(in.Behavior.PrivilegedPhantom) > 0 {
		say("privileged function invoked on-chain but absent from the declared interface: %v", in.Behavior.PrivilegedPhantom)
		return LevelDangerous, rationale
	}
	if behaviorSampled && len(in.Behavior.Phantom) > 0 {
		say("sampled transactions invoked functions absent from the declared interface: %v", in.Behavior.Phantom)
		return LevelDangerous, rationale
	}

	// 2. Cross-source contradiction or unverifiable privilege model.
	if anyConflict || hashConflict(in) {
		say("independent sources disagree on the target's surface (%d discrepancies)", len(in.Claims.Discrepancies))
		return LevelElevatedRisk, rationale
	}
	if in.Surface.HookedDispatch && in.Surface.OpaqueInterface {
		say("dispatch hooks are installed but the hook module's interface is not verifiable")
		return LevelElevatedRisk, rationale
	}
	if !behaviorSampled && in.Surface.OpaqueInterface && in.Behavior != nil {
		say("behavior evidence unavailable while the interface is opaque")
		return LevelElevatedRisk, rationale
	}

	// 3. Opaque but demonstrably active.
	if in.Surface.OpaqueInterface {
		if behaviorSampled && in.Behavior.SampledCount > 0 {
			say("interface is opaque yet %d sampled transactions touched the target", in.Behavior.SampledCount)
			return LevelOpaqueButActive, rationale
		}
		if in.Behavior != nil && !in.Behavior.IndexerSupported && in.Behavior.ActivityCount > 10 {
			say("interface is opaque and indexer-unsupported, with %d recorded activities", in.Behavior.ActivityCount)
			return LevelOpaqueButActive, rationale
		}
	}

	// 4/5. Pinned identity without contradiction.
	if identityPinned {
		if behaviorSampled {
			say("identity pinned across sources; sampled behavior matches the declared interface")
			return LevelSafeDynamic, rationale
		}
		say("identity pinned across sources; no behavior evidence requested")
		return LevelSafeStatic, rationale
	}

	// 6. Fallback.
	if in.Tier == corroborate.TierViewOnly {
		say("only a single source answered; posture cannot be corroborated")
		return LevelElevatedRisk, rationale
	}
	say("insufficient corroboration for a positive verdict")
	return LevelElevatedRisk, rationale
}

func hashPinned(in Input) bool {
	c := in.Claims.ClaimFor(corroborate.ClaimModuleHash)
	return c != nil && c.Status == corroborate.StatusConfirmed
}

func hashConflict(in Input) bool {
	c := in.Claims.ClaimFor(corroborate.ClaimModuleHash)
	return c != nil && c.Status == corroborate.StatusConflict
}
