// Package corroborate reconciles per-source capability snapshots into typed
// claims with calibrated confidence. Claims are rebuilt from scratch on every
// verification pass and never mutated incrementally.
package corroborate

import (
	"sort"
	"strconv"
	"strings"

	"moveguard/internal/extract"
)

type ClaimType string

const (
	ClaimModuleHash  ClaimType = "MODULE_HASH"
	ClaimOwner       ClaimType = "OWNER"
	ClaimSupply      ClaimType = "SUPPLY"
	ClaimDecimals    ClaimType = "DECIMALS"
	ClaimMintCap     ClaimType = "MINT_CAPABILITY"
	ClaimBurnCap     ClaimType = "BURN_CAPABILITY"
	ClaimFreezeCap   ClaimType = "FREEZE_CAPABILITY"
	ClaimTransferCap ClaimType = "TRANSFER_CAPABILITY"
	ClaimHooks       ClaimType = "DISPATCH_HOOKS"
)

// claimPriority fixes the output order of claims and discrepancies so two
// runs over identical inputs serialize identically.
var claimPriority = map[ClaimType]int{
	ClaimModuleHash:  0,
	ClaimOwner:       1,
	ClaimSupply:      2,
	ClaimDecimals:    3,
	ClaimMintCap:     4,
	ClaimBurnCap:     5,
	ClaimFreezeCap:   6,
	ClaimTransferCap: 7,
	ClaimHooks:       8,
}

type ClaimStatus string

const (
	StatusConfirmed   ClaimStatus = "CONFIRMED"
	StatusConflict    ClaimStatus = "CONFLICT"
	StatusPartial     ClaimStatus = "PARTIAL"
	StatusUnavailable ClaimStatus = "UNAVAILABLE"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Confirmation records one source that reported a value for a claim.
type Confirmation struct {
	Source string `json:"source"`
	Value  string `json:"value"`
}

type Claim struct {
	Type          ClaimType      `json:"claim_type"`
	Status        ClaimStatus    `json:"status"`
	Confidence    Confidence     `json:"confidence"`
	Confirmations []Confirmation `json:"confirmations,omitempty"`
}

// Discrepancy records one pair of non-null sources disagreeing on a field.
type Discrepancy struct {
	Type    ClaimType         `json:"claim_type"`
	Sources []string          `json:"sources"`
	Values  map[string]string `json:"values"`
}

type Result struct {
	Claims        []Claim       `json:"claims"`
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`
	Status        string        `json:"status"` // OK | CONFLICT
}

func (r Result) HasConflict() bool {
	return r.Status == "CONFLICT"
}

// ClaimFor returns the claim of the given type, if present.
func (r Result) ClaimFor(t ClaimType) *Claim {
	for i := range r.Claims {
		if r.Claims[i].Type == t {
			return &r.Claims[i]
		}
	}
	return nil
}

// accessor renders one tracked field of a surface as a comparable string, or
// nil when the source had no value for it.
type accessor struct {
	claim ClaimType
	value func(*extract.MiniSurface) *string
}

func accessors() []accessor {
	return []accessor{
		{ClaimModuleHash, func(s *extract.MiniSurface) *string { return s.CodeHash }},
		{ClaimOwner, func(s *extract.MiniSurface) *string { return s.Owner }},
		{ClaimSupply, func(s *extract.MiniSurface) *string { return s.Supply }},
		{ClaimDecimals, func(s *extract.MiniSurface) *string {
			if s.Decimals == nil {
				return nil
			}
			v := strconv.Itoa(*s.Decimals)
			return &v
		}},
		{ClaimMintCap, boolField(func(s *extract.MiniSurface) *bool { return s.MintRef })},
		{ClaimBurnCap, boolField(func(s *extract.MiniSurface) *bool { return s.BurnRef })},
		{ClaimFreezeCap, boolField(func(s *extract.MiniSurface) *bool { return s.FreezeRef })},
		{ClaimTransferCap, boolField(func(s *extract.MiniSurface) *bool { return s.TransferRef })},
		{ClaimHooks, func(s *extract.MiniSurface) *string {
			// The indexer never reports hooks; only RPC surfaces carry the
			// field, expressed as a sorted canonical list.
			if s.MintRef == nil && s.Hooks == nil {
				return nil
			}
			keys := make([]string, 0, len(s.Hooks))
			for _, h := range s.Hooks {
				keys = append(keys, h.Kind+":"+h.Key())
			}
			sort.Strings(keys)
			v := strings.Join(keys, ",")
			if v == "" {
				v = "none"
			}
			return &v
		}},
	}
}

func boolField(get func(*extract.MiniSurface) *bool) func(*extract.MiniSurface) *string {
	return func(s *extract.MiniSurface) *string {
		b := get(s)
		if b == nil {
			return nil
		}
		v := strconv.FormatBool(*b)
		return &v
	}
}

// Corroborate reconciles every tracked field across the given sources.
// Nil surfaces (sources that did not answer) are skipped per field:
//
//	0 non-null sources      -> UNAVAILABLE / LOW
//	1 non-null source       -> PARTIAL / MEDIUM
//	>=2, all values equal   -> CONFIRMED / HIGH
//	>=2, any value unequal  -> CONFLICT / HIGH + one Discrepancy per pair
func Corroborate(surfaces []*extract.MiniSurface) Result {
	var result Result
	conflicted := false

	for _, acc := range accessors() {
		var confirmations []Confirmation
		for _, surface := range surfaces {
			if surface == nil {
				continue
			}
			if v := acc.value(surface); v != nil {
				confirmations = append(confirmations, Confirmation{Source: surface.Source, Value: *v})
			}
		}

		claim := Claim{Type: acc.claim, Confirmations: confirmations}
		switch {
		case len(confirmations) == 0:
			claim.Status = StatusUnavailable
			claim.Confidence = ConfidenceLow
		case len(confirmations) == 1:
			claim.Status = StatusPartial
			claim.Confidence = ConfidenceMedium
		default:
			claim.Status = StatusConfirmed
			claim.Confidence = ConfidenceHigh
			for i := 1; i < len(confirmations); i++ {
				if confirmations[i].Value != confirmations[0].Value {
					claim.Status = StatusConflict
					conflicted = true
					break
				}
			}
			if claim.Status == StatusConflict {
				result.Discrepancies = append(result.Discrepancies, discrepancies(acc.claim, confirmations)...)
			}
		}
		result.Claims = append(result.Claims, claim)
	}

	sort.SliceStable(result.Claims, func(i, j int) bool {
		return claimPriority[result.Claims[i].Type] < claimPriority[result.Claims[j].Type]
	})
	sort.SliceStable(result.Discrepancies, func(i, j int) bool {
		if result.Discrepancies[i].Type != result.Discrepancies[j].Type {
			return claimPriority[result.Discrepancies[i].Type] < claimPriority[result.Discrepancies[j].Type]
		}
		return strings.Join(result.Discrepancies[i].Sources, ",") < strings.Join(result.Discrepancies[j].Sources, ",")
	})

	result.Status = "OK"
	if conflicted {
		result.Status = "CONFLICT"
	}
	return result
}

func discrepancies(claim ClaimType, confirmations []Confirmation) []Discrepancy {
	var out []Discrepancy
	for i := 0; i < len(confirmations); i++ {
		for j := i + 1; j < len(confirmations); j++ {
			if confirmations[i].Value == confirmations[j].Value {
				continue
			}
			out = append(out, Discrepancy{
				Type:    claim,
				Sources: []string{confirmations[i].Source, confirmations[j].Source},
				Values: map[string]string{
					confirmations[i].Source: confirmations[i].Value,
					confirmations[j].Source: confirmations[j].Value,
				},
			})
		}
	}
	return out
}

// InvolvesSource reports whether any discrepancy names the given source.
func (r Result) InvolvesSource(source string) bool {
	for _, d := range r.Discrepancies {
		for _, s := range d.Sources {
			if s == source {
				return true
			}
		}
	}
	return false
}
