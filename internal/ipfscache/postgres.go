package ipfscache

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/hermesgraph/ingestd/internal/errors"
	"github.com/hermesgraph/ingestd/internal/model"
)

// PostgresCache is the production Cache implementation, grounded on the
// teacher's sqlx+pgx `NamedExecContext` / `ON CONFLICT` upsert idiom
// (internal/storage/postgres.go).
type PostgresCache struct {
	db *sqlx.DB
}

// NewPostgresCache wraps an already-connected sqlx.DB.
func NewPostgresCache(db *sqlx.DB) *PostgresCache {
	return &PostgresCache{db: db}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ipfs_cache_edits (
	cid TEXT PRIMARY KEY,
	space_id BYTEA NOT NULL,
	is_errored BOOLEAN NOT NULL,
	payload JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS ipfs_cache_cursors (
	consumer_id TEXT PRIMARY KEY,
	cursor TEXT NOT NULL,
	block_number BIGINT NOT NULL
);
`

// EnsureSchema creates the cache tables if they do not already exist.
func (c *PostgresCache) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.DatabaseError(err, "ensure ipfs cache schema")
	}
	return nil
}

func (c *PostgresCache) Has(ctx context.Context, cid string) (bool, error) {
	var exists bool
	err := c.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM ipfs_cache_edits WHERE cid = $1)`, cid)
	if err != nil {
		return false, errors.DatabaseError(err, "check cached edit existence")
	}
	return exists, nil
}

type cachedEditRow struct {
	CID       string `db:"cid"`
	SpaceID   []byte `db:"space_id"`
	IsErrored bool   `db:"is_errored"`
	Payload   []byte `db:"payload"`
}

func (c *PostgresCache) Get(ctx context.Context, cid string) (*model.PreprocessedEdit, bool, error) {
	var row cachedEditRow
	err := c.db.GetContext(ctx, &row, `SELECT cid, space_id, is_errored, payload FROM ipfs_cache_edits WHERE cid = $1`, cid)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.DatabaseError(err, "get cached edit")
	}

	item := &model.PreprocessedEdit{CID: row.CID, IsErrored: row.IsErrored}
	copy(item.SpaceID[:], row.SpaceID)
	if !row.IsErrored {
		item.Edit = &model.Edit{}
		if err := json.Unmarshal(row.Payload, item.Edit); err != nil {
			return nil, false, errors.InternalErrorf("unmarshal cached edit payload: %v", err)
		}
	}
	return item, true, nil
}

func (c *PostgresCache) Put(ctx context.Context, item *model.PreprocessedEdit) error {
	payload, err := json.Marshal(item.Edit)
	if err != nil {
		return errors.InternalErrorf("marshal edit payload: %v", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO ipfs_cache_edits (cid, space_id, is_errored, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cid) DO UPDATE SET
			space_id = EXCLUDED.space_id,
			is_errored = EXCLUDED.is_errored,
			payload = EXCLUDED.payload
	`, item.CID, item.SpaceID[:], item.IsErrored, payload)
	if err != nil {
		return errors.DatabaseError(err, "put cached edit")
	}
	return nil
}

func (c *PostgresCache) LoadCursor(ctx context.Context, consumerID string) (string, error) {
	var cursor string
	err := c.db.GetContext(ctx, &cursor, `SELECT cursor FROM ipfs_cache_cursors WHERE consumer_id = $1`, consumerID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.DatabaseError(err, "load cursor")
	}
	return cursor, nil
}

func (c *PostgresCache) PersistCursor(ctx context.Context, consumerID string, cursor string, block uint64) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO ipfs_cache_cursors (consumer_id, cursor, block_number)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer_id) DO UPDATE SET
			cursor = EXCLUDED.cursor,
			block_number = EXCLUDED.block_number
	`, consumerID, cursor, block)
	if err != nil {
		return errors.DatabaseError(err, "persist cursor")
	}
	return nil
}
