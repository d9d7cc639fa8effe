package chain

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// SampledTx is the only thing the risk pipeline consumes from a sampled
// transaction: which function was invoked.
type SampledTx struct {
	FunctionID   string `json:"function_id"`   // 0xaddr::module::name
	FunctionName string `json:"function_name"` // bare name
}

// Sampler pulls a bounded window of recent transactions for a set of probe
// addresses and reduces them to invoked function identifiers.
type Sampler struct {
	client *Client
	limit  int
}

func NewSampler(client *Client, limit int) *Sampler {
	if limit <= 0 {
		limit = 25
	}
	return &Sampler{client: client, limit: limit}
}

// Sample collects transactions across all probe addresses. A probe address
// with no transaction history contributes nothing; transport failures abort
// only when no address yielded data.
func (s *Sampler) Sample(ctx context.Context, addresses []string) ([]SampledTx, error) {
	seen := make(map[string]struct{})
	var out []SampledTx
	var lastErr error
	sampledAny := false

	for _, addr := range addresses {
		txs, err := s.client.GetAccountTransactions(ctx, addr, s.limit)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				sampledAny = true
				continue
			}
			lastErr = err
			continue
		}
		sampledAny = true

		for _, tx := range txs {
			fn := strings.ToLower(strings.TrimSpace(tx.Payload.Function))
			if fn == "" {
				continue
			}
			if _, ok := seen[fn]; ok {
				continue
			}
			seen[fn] = struct{}{}
			out = append(out, SampledTx{
				FunctionID:   fn,
				FunctionName: functionName(fn),
			})
		}
	}

	if !sampledAny && lastErr != nil {
		return nil, lastErr
	}

	sort.Slice(out, func(i, j int) bool { return out[i].FunctionID < out[j].FunctionID })
	return out, nil
}

func functionName(functionID string) string {
	parts := strings.Split(functionID, "::")
	return parts[len(parts)-1]
}
