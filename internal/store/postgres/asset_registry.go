package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// querier is the subset of pgxpool.Pool used by AssetRegistry.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AssetRegistry implements domain.MetadataSource over the token_registry
// table. It only reads; the registry is maintained outside this service.
type AssetRegistry struct {
	db querier
}

// NewAssetRegistry creates an AssetRegistry backed by the given pool.
func NewAssetRegistry(db querier) *AssetRegistry {
	return &AssetRegistry{db: db}
}

// FetchAssetMetadata returns every listed token ordered by asset id.
func (r *AssetRegistry) FetchAssetMetadata(ctx context.Context) ([]domain.AssetMetadata, error) {
	const query = `
		SELECT asset_id, name, symbol, decimals, circulating_supply::TEXT
		FROM token_registry
		WHERE listed
		ORDER BY asset_id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list token registry: %w", err)
	}
	defer rows.Close()

	var out []domain.AssetMetadata
	for rows.Next() {
		var (
			m      domain.AssetMetadata
			supply string
		)
		if err := rows.Scan(&m.AssetID, &m.Name, &m.Symbol, &m.Decimals, &supply); err != nil {
			return nil, fmt.Errorf("postgres: scan token registry: %w", err)
		}
		m.CirculatingSupply, err = decimal.NewFromString(supply)
		if err != nil {
			return nil, fmt.Errorf("postgres: token %s supply %q: %w", m.AssetID, supply, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate token registry: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.MetadataSource = (*AssetRegistry)(nil)
