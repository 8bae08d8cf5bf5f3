// Package indexer talks to the chain indexing service: a GraphQL endpoint
// for snapshots and aggregates, and a websocket for live transactions.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// Compile-time interface checks.
var (
	_ domain.TxSource       = (*Client)(nil)
	_ domain.MetadataSource = (*Client)(nil)
	_ domain.TradeSource    = (*Client)(nil)
)

const defaultPageSize = 500

// Client is a GraphQL client for the indexing service.
type Client struct {
	graphqlURL string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

// NewClient creates a new indexer GraphQL client. A non-positive pageSize
// selects the default.
func NewClient(graphqlURL, apiKey string, pageSize int, timeout time.Duration) *Client {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		graphqlURL: graphqlURL,
		apiKey:     strings.TrimSpace(apiKey),
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

const txFields = `
	txid
	block_time
	inputs { prev_txid prev_vout protocol_tag price power receiver }
	outputs { vout value address }
	token_transfers { asset_id amount }
`

const snapshotQuery = `
	query Snapshot($asset: String!, $first: Int!, $after: String) {
		unspentOffers(asset: $asset, first: $first, after: $after) {
			nodes {` + txFields + `}
			pageInfo { hasNextPage endCursor }
		}
	}
`

// FetchSnapshot returns every currently unspent candidate offer transaction
// for assetID, following pagination to the end.
func (c *Client) FetchSnapshot(ctx context.Context, assetID string) ([]domain.RawTx, error) {
	var (
		out   []domain.RawTx
		after *string
	)
	for {
		vars := map[string]any{"asset": assetID, "first": c.pageSize}
		if after != nil {
			vars["after"] = *after
		}
		data, err := c.doQuery(ctx, snapshotQuery, vars)
		if err != nil {
			return nil, fmt.Errorf("indexer: fetch snapshot: %w", err)
		}

		var result struct {
			UnspentOffers struct {
				Nodes    []APITx `json:"nodes"`
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
			} `json:"unspentOffers"`
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("indexer: decode snapshot: %w", err)
		}

		txs, err := txsToDomain(result.UnspentOffers.Nodes)
		if err != nil {
			return nil, fmt.Errorf("indexer: decode snapshot: %w", err)
		}
		out = append(out, txs...)
		page := result.UnspentOffers.PageInfo
		if !page.HasNextPage || page.EndCursor == "" {
			return out, nil
		}
		cursor := page.EndCursor
		after = &cursor
	}
}

// FetchAssetMetadata returns the token registry.
func (c *Client) FetchAssetMetadata(ctx context.Context) ([]domain.AssetMetadata, error) {
	query := `
		query Tokens {
			tokens { assetId name symbol decimals circulatingSupply }
		}
	`
	data, err := c.doQuery(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("indexer: fetch asset metadata: %w", err)
	}

	var result struct {
		Tokens []APIToken `json:"tokens"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("indexer: decode asset metadata: %w", err)
	}

	out := make([]domain.AssetMetadata, 0, len(result.Tokens))
	for _, t := range result.Tokens {
		m, err := tokenToDomain(t)
		if err != nil {
			return nil, fmt.Errorf("indexer: decode asset metadata: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// FetchTradeTotals returns per-asset offer counts for one partition.
func (c *Client) FetchTradeTotals(ctx context.Context, p domain.Partition) ([]domain.TradeTotals, error) {
	query := `
		query TradeTotals($confirmed: Boolean!) {
			tradeTotals(confirmed: $confirmed) {
				assetId
				openOffers
				closedOffers
				lastTrade { price power timestamp accepted }
			}
		}
	`
	vars := map[string]any{"confirmed": p == domain.PartitionConfirmed}
	data, err := c.doQuery(ctx, query, vars)
	if err != nil {
		return nil, fmt.Errorf("indexer: fetch trade totals (%s): %w", p, err)
	}

	var result struct {
		TradeTotals []APITradeTotals `json:"tradeTotals"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("indexer: decode trade totals: %w", err)
	}

	out := make([]domain.TradeTotals, 0, len(result.TradeTotals))
	for _, t := range result.TradeTotals {
		out = append(out, totalsToDomain(t))
	}
	return out, nil
}

// FetchVolume returns per-asset trading volume since the given time for one
// partition.
func (c *Client) FetchVolume(ctx context.Context, p domain.Partition, since time.Time) ([]domain.VolumeStat, error) {
	query := `
		query Volume($confirmed: Boolean!, $since: BigInt!) {
			volume(confirmed: $confirmed, since: $since) {
				assetId
				trades
				tokenAmount
				value
			}
		}
	`
	vars := map[string]any{
		"confirmed": p == domain.PartitionConfirmed,
		"since":     fmt.Sprintf("%d", since.Unix()),
	}
	data, err := c.doQuery(ctx, query, vars)
	if err != nil {
		return nil, fmt.Errorf("indexer: fetch volume (%s): %w", p, err)
	}

	var result struct {
		Volume []APIVolume `json:"volume"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("indexer: decode volume: %w", err)
	}

	out := make([]domain.VolumeStat, 0, len(result.Volume))
	for _, v := range result.Volume {
		out = append(out, volumeToDomain(v))
	}
	return out, nil
}

// FetchPriceBefore returns, per asset, the most recent priced transaction
// older than before.
func (c *Client) FetchPriceBefore(ctx context.Context, before time.Time) ([]domain.PricePoint, error) {
	query := `
		query PriceBefore($before: BigInt!) {
			lastPriceBefore(before: $before) { assetId price power timestamp }
		}
	`
	vars := map[string]any{"before": fmt.Sprintf("%d", before.Unix())}
	data, err := c.doQuery(ctx, query, vars)
	if err != nil {
		return nil, fmt.Errorf("indexer: fetch price before: %w", err)
	}

	var result struct {
		LastPriceBefore []APIPricePoint `json:"lastPriceBefore"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("indexer: decode price before: %w", err)
	}

	out := make([]domain.PricePoint, 0, len(result.LastPriceBefore))
	for _, pp := range result.LastPriceBefore {
		out = append(out, priceToDomain(pp))
	}
	return out, nil
}

// doQuery executes a GraphQL query and returns the raw "data" field.
func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	jsonBody, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}
	return gqlResp.Data, nil
}
