package drift

import (
	"time"

	"moveguard/internal/extract"
)

// DriftKeys is the reduced, source-agnostic field set whose hash is tracked
// for cheap change detection. Supply values are decimal strings.
type DriftKeys struct {
	Owner        string                 `json:"owner,omitempty"`
	Supply       string                 `json:"supply,omitempty"`
	MaxSupply    string                 `json:"max_supply,omitempty"`
	Decimals     int                    `json:"decimals"`
	Capabilities map[string]bool        `json:"capabilities"`
	Hooks        []extract.DispatchHook `json:"hooks,omitempty"`
	ModuleHashes map[string]string      `json:"module_hashes,omitempty"`
}

type SnapshotMeta struct {
	TakenAtUTC time.Time `json:"taken_at_utc"`
	ScanID     string    `json:"scan_id,omitempty"`
	Source     string    `json:"source,omitempty"`
}

type Identity struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
}

// PingSnapshot is the persisted unit of the drift subsystem: one current
// snapshot per target, overwritten each run.
type PingSnapshot struct {
	Meta        SnapshotMeta `json:"meta"`
	Identity    Identity     `json:"identity"`
	DriftKeys   DriftKeys    `json:"drift_keys"`
	Fingerprint string       `json:"fingerprint"`
}

// BuildKeys reduces a capability record plus per-module code hashes to the
// tracked drift key document.
func BuildKeys(caps *extract.ModuleCapabilities, moduleHashes map[string]string) DriftKeys {
	keys := DriftKeys{
		Decimals:     -1,
		Capabilities: map[string]bool{},
	}
	if caps != nil {
		keys.Owner = caps.Owner
		keys.Supply = caps.Supply
		keys.MaxSupply = caps.MaxSupply
		keys.Decimals = caps.Decimals
		keys.Capabilities = map[string]bool{
			"mint_ref":     caps.MintRef,
			"burn_ref":     caps.BurnRef,
			"freeze_ref":   caps.FreezeRef,
			"transfer_ref": caps.TransferRef,
		}
		keys.Hooks = append([]extract.DispatchHook(nil), caps.Hooks...)
	}
	if len(moduleHashes) > 0 {
		keys.ModuleHashes = make(map[string]string, len(moduleHashes))
		for id, hash := range moduleHashes {
			keys.ModuleHashes[id] = hash
		}
	}
	return keys
}

// NewSnapshot assembles and fingerprints a snapshot.
func NewSnapshot(kind, target, source string, keys DriftKeys) (*PingSnapshot, error) {
	fp, err := Fingerprint(keys)
	if err != nil {
		return nil, err
	}
	return &PingSnapshot{
		Meta:        SnapshotMeta{TakenAtUTC: time.Now().UTC(), Source: source},
		Identity:    Identity{Kind: kind, Target: target},
		DriftKeys:   keys,
		Fingerprint: fp,
	}, nil
}
