package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// IndexerClient talks to the optional GraphQL indexer. Its absence is not an
// error condition for a verification pass; callers treat a nil client or a
// failed query as a missing source and let the evidence tier degrade.
type IndexerClient struct {
	url  string
	http *http.Client
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// FAMetadataRow is the indexer's view of a fungible-asset metadata object.
type FAMetadataRow struct {
	AssetType   string `json:"asset_type"`
	CreatorAddr string `json:"creator_address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	SupplyV2    string `json:"supply_v2"`
	MaximumV2   string `json:"maximum_v2"`
}

const faMetadataQuery = `query FAMetadata($asset: String!) {
  fungible_asset_metadata(where: {asset_type: {_eq: $asset}}, limit: 1) {
    asset_type
    creator_address
    name
    symbol
    decimals
    supply_v2
    maximum_v2
  }
}`

const faActivityQuery = `query FAActivity($asset: String!, $limit: Int!) {
  fungible_asset_activities(where: {asset_type: {_eq: $asset}}, limit: $limit) {
    transaction_version
  }
}`

func NewIndexerClient(rawURL, proxy string, timeout time.Duration) (*IndexerClient, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("empty indexer url")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient, err := newHTTPClient(proxy, timeout)
	if err != nil {
		return nil, err
	}
	return &IndexerClient{url: rawURL, http: httpClient}, nil
}

// GetFAMetadata returns the indexer row for one asset type, or ErrNotFound
// when the indexer has no row for it.
func (i *IndexerClient) GetFAMetadata(ctx context.Context, assetType string) (*FAMetadataRow, error) {
	var data struct {
		FungibleAssetMetadata []FAMetadataRow `json:"fungible_asset_metadata"`
	}
	if err := i.query(ctx, faMetadataQuery, map[string]any{"asset": assetType}, &data); err != nil {
		return nil, err
	}
	if len(data.FungibleAssetMetadata) == 0 {
		return nil, fmt.Errorf("indexer row for %s: %w", assetType, ErrNotFound)
	}
	return &data.FungibleAssetMetadata[0], nil
}

// GetActivityCount returns the number of recent asset activities, capped at limit.
func (i *IndexerClient) GetActivityCount(ctx context.Context, assetType string, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	var data struct {
		Activities []struct {
			TransactionVersion string `json:"transaction_version"`
		} `json:"fungible_asset_activities"`
	}
	if err := i.query(ctx, faActivityQuery, map[string]any{"asset": assetType, "limit": limit}, &data); err != nil {
		return 0, err
	}
	return len(data.Activities), nil
}

func (i *IndexerClient) query(ctx context.Context, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.http.Do(req)
	if err != nil {
		return fmt.Errorf("indexer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("indexer response read failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("indexer status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("indexer malformed response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("indexer query error: %s", envelope.Errors[0].Message)
	}
	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("indexer malformed data: %w", err)
		}
	}
	return nil
}
