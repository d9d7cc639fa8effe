package verify

import (
	"fmt"
	"strings"
	"time"

	"moveguard/internal/corroborate"
	"moveguard/internal/extract"
	"moveguard/internal/risk"
	"moveguard/internal/rules"
)

// Target is one verifiable on-chain identity.
//
//	fa     -> metadata object address        0xabc...
//	coin   -> coin struct tag                0xabc::moon_coin::MoonCoin
//	wallet -> plain account address          0xabc...
type Target struct {
	Kind extract.TargetKind `json:"kind"`
	Raw  string             `json:"raw"`

	// Address is the account whose resources and modules are fetched.
	Address string `json:"address"`
	// ModuleName is set for coin targets (the struct's module).
	ModuleName string `json:"module_name,omitempty"`
	// CoinType is the full struct tag for coin targets.
	CoinType string `json:"coin_type,omitempty"`
}

// ID is the normalized identifier used for snapshot paths and registry keys.
func (t Target) ID() string {
	if t.Kind == extract.KindCoin {
		return strings.ToLower(t.CoinType)
	}
	return t.Address
}

func (t Target) String() string {
	return string(t.Kind) + ":" + t.ID()
}

// ParseTarget validates a raw target identifier for a kind. Failures here are
// the INVALID_ARGS class: the caller reports them and exits non-zero.
func ParseTarget(kind extract.TargetKind, raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if !kind.Valid() {
		return Target{}, fmt.Errorf("unsupported target kind %q (expected fa, coin or wallet)", kind)
	}
	if raw == "" {
		return Target{}, fmt.Errorf("empty target identifier")
	}

	if kind == extract.KindCoin {
		parts := strings.Split(raw, "::")
		if len(parts) != 3 || !isHexAddress(parts[0]) || parts[1] == "" || parts[2] == "" {
			return Target{}, fmt.Errorf("invalid coin type %q (expected 0xaddr::module::Struct)", raw)
		}
		addr := extract.NormalizeAddress(parts[0])
		return Target{
			Kind:       kind,
			Raw:        raw,
			Address:    addr,
			ModuleName: parts[1],
			CoinType:   addr + "::" + parts[1] + "::" + parts[2],
		}, nil
	}

	if !isHexAddress(raw) {
		return Target{}, fmt.Errorf("invalid address %q", raw)
	}
	return Target{Kind: kind, Raw: raw, Address: extract.NormalizeAddress(raw)}, nil
}

func isHexAddress(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if !strings.HasPrefix(s, "0x") {
		return false
	}
	body := s[2:]
	if len(body) == 0 || len(body) > 64 {
		return false
	}
	for _, r := range body {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// VerificationReport is the unit of output for one verification pass. It is
// always complete and well-typed, even under partial source failure.
type VerificationReport struct {
	ScanID    string        `json:"scan_id"`
	Target    Target        `json:"target"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	Tier          corroborate.EvidenceTier  `json:"overall_evidence_tier"`
	Status        string                    `json:"status"` // OK | CONFLICT
	Claims        []corroborate.Claim       `json:"claims"`
	Discrepancies []corroborate.Discrepancy `json:"discrepancies,omitempty"`

	Capabilities *extract.ModuleCapabilities `json:"capabilities,omitempty"`
	Findings     []rules.Finding             `json:"findings,omitempty"`
	Behavior     *risk.Behavior              `json:"behavior,omitempty"`
	Risk         risk.Synthesis              `json:"risk_synthesis"`

	SourceErrors map[string]string `json:"source_errors,omitempty"`
}
