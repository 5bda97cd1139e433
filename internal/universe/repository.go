package universe

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the symbol registry maintained by the external universe
// service. Strictly read-only here.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new universe repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadAll fetches every registered symbol with sector and active flag
func (r *Repository) LoadAll(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT symbol, sector, active
		FROM data.symbols
		WHERE sector IS NOT NULL AND sector <> ''
		ORDER BY symbol
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Symbol, &e.Sector, &e.Active); err != nil {
			return nil, fmt.Errorf("failed to scan symbol row: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
