package corroborate

// EvidenceTier is the ordinal measure of how many independently-operated
// sources actually returned data for a pass. Retrying one endpoint never
// raises the tier.
type EvidenceTier string

const (
	TierViewOnly        EvidenceTier = "view_only"
	TierMultiRPC        EvidenceTier = "multi_rpc_confirmed"
	TierMultiRPCIndexer EvidenceTier = "multi_rpc_plus_indexer"
	TierMultiSource     EvidenceTier = "multi_source_confirmed"
)

var tierRank = map[EvidenceTier]int{
	TierViewOnly:        0,
	TierMultiRPC:        1,
	TierMultiRPCIndexer: 2,
	TierMultiSource:     3,
}

func (t EvidenceTier) Rank() int {
	return tierRank[t]
}

func (t EvidenceTier) AtLeast(other EvidenceTier) bool {
	return t.Rank() >= other.Rank()
}

// TierFor computes the tier from which sources answered. answeredRPC counts
// distinct RPC endpoints that returned data.
func TierFor(answeredRPC int, indexerAnswered bool) EvidenceTier {
	switch {
	case answeredRPC >= 3 && indexerAnswered:
		return TierMultiSource
	case answeredRPC >= 2 && indexerAnswered:
		return TierMultiRPCIndexer
	case answeredRPC >= 2:
		return TierMultiRPC
	default:
		return TierViewOnly
	}
}
