package corroborate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierFor(t *testing.T) {
	cases := []struct {
		name        string
		answeredRPC int
		indexer     bool
		want        EvidenceTier
	}{
		{"nothing answered", 0, false, TierViewOnly},
		{"one rpc", 1, false, TierViewOnly},
		{"one rpc plus indexer", 1, true, TierViewOnly},
		{"two rpc", 2, false, TierMultiRPC},
		{"two rpc plus indexer", 2, true, TierMultiRPCIndexer},
		{"three rpc", 3, false, TierMultiRPC},
		{"three rpc plus indexer", 3, true, TierMultiSource},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TierFor(tc.answeredRPC, tc.indexer))
		})
	}
}

func TestTierOrdering(t *testing.T) {
	assert.True(t, TierMultiSource.AtLeast(TierMultiRPCIndexer))
	assert.True(t, TierMultiRPCIndexer.AtLeast(TierMultiRPC))
	assert.True(t, TierMultiRPC.AtLeast(TierViewOnly))
	assert.False(t, TierViewOnly.AtLeast(TierMultiRPC))
	assert.True(t, TierMultiRPC.AtLeast(TierMultiRPC))
}
