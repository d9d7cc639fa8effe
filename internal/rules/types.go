package rules

import (
	"moveguard/internal/chain"
	"moveguard/internal/extract"
)

// Severity levels, totally ordered. critical is reserved for
// confirmed-behavior findings; the static rules in this package never emit it.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

func (s Severity) Rank() int {
	return severityRank[s]
}

// EvidenceKind says what kind of artifact backed a finding.
type EvidenceKind string

const (
	EvidenceHeuristic       EvidenceKind = "heuristic"
	EvidenceABIPattern      EvidenceKind = "abi_pattern"
	EvidenceBytecodePattern EvidenceKind = "bytecode_pattern"
	EvidenceMetadata        EvidenceKind = "metadata"
)

type Finding struct {
	ID              string       `json:"id"`
	Severity        Severity     `json:"severity"`
	Confidence      float64      `json:"confidence"`
	EvidenceKind    EvidenceKind `json:"evidence_kind"`
	Description     string       `json:"description"`
	MatchedPatterns []string     `json:"matched_patterns,omitempty"`
	Locations       []string     `json:"locations,omitempty"`
}

// Context is everything a rule may read. Rules are pure over it.
type Context struct {
	View         extract.ArtifactView
	Evidence     extract.EvidenceCapabilities
	Capabilities *extract.ModuleCapabilities
	ABI          *chain.ModuleABI
	AllowList    []string
}
