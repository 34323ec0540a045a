package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pushit/marketplace/internal/models"
)

type CurrencyRepo struct {
	pool *pgxpool.Pool
}

func NewCurrencyRepo(pool *pgxpool.Pool) *CurrencyRepo {
	return &CurrencyRepo{pool: pool}
}

const currencyColumns = `code, name, symbol, exchange_rate::text, is_default, is_active, updated_at`

func scanCurrency(row pgx.Row, c *models.Currency) error {
	return row.Scan(&c.Code, &c.Name, &c.Symbol, &c.ExchangeRate, &c.IsDefault, &c.IsActive, &c.UpdatedAt)
}

func (r *CurrencyRepo) List(ctx context.Context) ([]models.Currency, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+currencyColumns+` FROM currencies ORDER BY is_default DESC, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Currency
	for rows.Next() {
		var c models.Currency
		if err := scanCurrency(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CurrencyRepo) Get(ctx context.Context, code string) (*models.Currency, error) {
	var c models.Currency
	if err := scanCurrency(r.pool.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currencies WHERE code = $1`, code), &c); err != nil {
		return nil, notFound(err, "currency")
	}
	return &c, nil
}

// Upsert inserts or updates a currency. The default currency's rate is
// pinned to 1.
func (r *CurrencyRepo) Upsert(ctx context.Context, c *models.Currency) error {
	return scanCurrency(r.pool.QueryRow(ctx, `
		INSERT INTO currencies (code, name, symbol, exchange_rate, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			exchange_rate = CASE WHEN currencies.is_default THEN 1 ELSE EXCLUDED.exchange_rate END,
			is_active = currencies.is_default OR EXCLUDED.is_active,
			updated_at = now()
		RETURNING `+currencyColumns,
		c.Code, c.Name, c.Symbol, c.ExchangeRate.String(), c.IsActive), c)
}
