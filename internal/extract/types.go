package extract

// TargetKind selects which on-chain token standard a target follows.
type TargetKind string

const (
	KindFA   TargetKind = "fa"   // fungible-asset object standard
	KindCoin TargetKind = "coin" // legacy coin-module standard
	// KindWallet is a plain account verified with FA semantics. That
	// assumption is surfaced in every synthesis rationale rather than made
	// silently.
	KindWallet TargetKind = "wallet"
)

func (k TargetKind) Valid() bool {
	return k == KindFA || k == KindCoin || k == KindWallet
}

type ModuleID struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

func (m ModuleID) String() string {
	return m.Address + "::" + m.Name
}

// DispatchHook identifies one registered dispatch function (deposit,
// withdraw, derived-balance or derived-supply override).
type DispatchHook struct {
	Kind          string `json:"kind"` // deposit | withdraw | derived_balance | derived_supply | transfer
	ModuleAddress string `json:"module_address"`
	ModuleName    string `json:"module_name"`
	FunctionName  string `json:"function_name"`
}

// Key identifies a hook independent of registration order.
func (h DispatchHook) Key() string {
	return h.ModuleAddress + "::" + h.ModuleName + "::" + h.FunctionName
}

// ModuleCapabilities is the normalized capability record for one target.
// Supply values stay decimal-digit strings (empty when unknown); they are
// never coerced to floats.
type ModuleCapabilities struct {
	Kind TargetKind `json:"kind"`

	MintRef     bool `json:"mint_ref"`
	BurnRef     bool `json:"burn_ref"`
	FreezeRef   bool `json:"freeze_ref"`
	TransferRef bool `json:"transfer_ref"`

	Hooks []DispatchHook `json:"hooks,omitempty"`

	Owner     string `json:"owner,omitempty"`
	Supply    string `json:"supply,omitempty"`
	MaxSupply string `json:"max_supply,omitempty"`
	Decimals  int    `json:"decimals"` // -1 when unknown

	Name   string `json:"name,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

func EmptyCapabilities(kind TargetKind) *ModuleCapabilities {
	return &ModuleCapabilities{Kind: kind, Decimals: -1}
}

// ArtifactView is the immutable name/literal surface the rule engine reads.
// Built once per scan.
type ArtifactView struct {
	Module         ModuleID `json:"module"`
	EntryFunctions []string `json:"entry_functions"`
	AllFunctions   []string `json:"all_functions"`
	StringLiterals []string `json:"string_literals"`
}

// EvidenceCapabilities declares what evidentiary basis a scan had. Every rule
// consults it before choosing severity.
type EvidenceCapabilities struct {
	ViewOnly            bool `json:"view_only"`
	HasABI              bool `json:"has_abi"`
	HasBytecodeOrSource bool `json:"has_bytecode_or_source"`
}

// MiniSurface is the minimal per-source capability snapshot used only for
// cross-source comparison. A nil field means the source had no value for it;
// a nil *MiniSurface means the source did not answer at all.
type MiniSurface struct {
	Source string `json:"source"`

	Owner    *string `json:"owner,omitempty"`
	Supply   *string `json:"supply,omitempty"`
	Decimals *int    `json:"decimals,omitempty"`

	MintRef     *bool `json:"mint_ref,omitempty"`
	BurnRef     *bool `json:"burn_ref,omitempty"`
	FreezeRef   *bool `json:"freeze_ref,omitempty"`
	TransferRef *bool `json:"transfer_ref,omitempty"`

	Hooks []DispatchHook `json:"hooks,omitempty"`

	// CodeHash covers all modules published at the target address, so two
	// RPC endpoints can pin (or contradict) the deployed code.
	CodeHash *string `json:"code_hash,omitempty"`
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }
