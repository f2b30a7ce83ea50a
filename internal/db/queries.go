package db

import (
	"context"
	"strconv"
	"strings"
)

// Queries holds the statements used by the stores.
type Queries struct {
	db *DB
}

func New(db *DB) *Queries {
	return &Queries{db: db}
}

// rebind rewrites ? placeholders to $N for Postgres.
func (q *Queries) rebind(query string) string {
	if q.db.Dialect != Postgres {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const getSettings = `SELECT data FROM settings WHERE id = 1`

// GetSettings returns the sealed settings record or sql.ErrNoRows.
func (q *Queries) GetSettings(ctx context.Context) ([]byte, error) {
	var data []byte
	err := q.db.QueryRowContext(ctx, getSettings).Scan(&data)
	return data, err
}

const upsertSettings = `INSERT INTO settings (id, data, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)
ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`

func (q *Queries) UpsertSettings(ctx context.Context, data []byte) error {
	_, err := q.db.ExecContext(ctx, q.rebind(upsertSettings), data)
	return err
}
