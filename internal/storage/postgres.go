package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" sql.DB driver

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

// PostgresStore implements Store against PostgreSQL. Grounded on the
// teacher's PostgresStore (sqlx.Connect("pgx", dsn), NamedExecContext +
// ON CONFLICT upserts, BeginTxx/Rollback-deferred batches).
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore connects to Postgres and ensures the knowledge-graph
// schema exists.
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{db: db, logger: logger}
	if err := store.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS spaces (
	space_id TEXT PRIMARY KEY,
	topic_id TEXT NOT NULL,
	kind SMALLINT NOT NULL,
	owner TEXT
);

CREATE TABLE IF NOT EXISTS trust_edges (
	source_space TEXT NOT NULL,
	kind SMALLINT NOT NULL,
	target_space TEXT,
	target_topic TEXT,
	PRIMARY KEY (source_space, kind, target_space, target_topic)
);

CREATE TABLE IF NOT EXISTS properties (
	id TEXT PRIMARY KEY,
	data_type SMALLINT NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	created_at_block BIGINT NOT NULL,
	updated_at_block BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS values_ (
	id TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL,
	property_id TEXT NOT NULL,
	space_id TEXT NOT NULL,
	language TEXT,
	unit TEXT,
	string_value TEXT,
	number_value DOUBLE PRECISION,
	boolean_value BOOLEAN,
	time_value TIMESTAMPTZ,
	point_lat DOUBLE PRECISION,
	point_lng DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_values_entity_prop_space ON values_(entity_id, property_id, space_id);

CREATE TABLE IF NOT EXISTS relations (
	id TEXT PRIMARY KEY,
	type_id TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	space_id TEXT NOT NULL,
	from_entity TEXT NOT NULL,
	to_entity TEXT NOT NULL,
	from_space TEXT,
	to_space TEXT,
	from_version TEXT,
	to_version TEXT,
	position TEXT,
	verified BOOLEAN
);

CREATE TABLE IF NOT EXISTS memberships (
	space_id TEXT NOT NULL,
	topic_id TEXT NOT NULL,
	PRIMARY KEY (space_id, topic_id)
);

CREATE TABLE IF NOT EXISTS subspaces (
	parent_space_id TEXT NOT NULL,
	child_space_id TEXT NOT NULL,
	PRIMARY KEY (parent_space_id, child_space_id)
);

CREATE TABLE IF NOT EXISTS editors (
	dao_space_id TEXT NOT NULL,
	editor TEXT NOT NULL,
	PRIMARY KEY (dao_space_id, editor)
);

CREATE TABLE IF NOT EXISTS members (
	dao_space_id TEXT NOT NULL,
	member TEXT NOT NULL,
	PRIMARY KEY (dao_space_id, member)
);

CREATE TABLE IF NOT EXISTS block_cursors (
	consumer_id TEXT PRIMARY KEY,
	cursor TEXT NOT NULL,
	block_number BIGINT NOT NULL
);
`

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) UpsertSpace(ctx context.Context, space model.Space) error {
	var owner interface{}
	if space.Kind == model.SpaceKindPersonal {
		owner = space.Owner
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spaces (space_id, topic_id, kind, owner)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (space_id) DO NOTHING
	`, space.SpaceID, space.TopicID, space.Kind, owner)
	if err != nil {
		return fmt.Errorf("upsert space: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertTrustEdge(ctx context.Context, edge model.TrustEdge) error {
	var targetSpace, targetTopic interface{}
	if edge.Kind == model.TrustEdgeSubtopic {
		targetTopic = edge.TargetTopic
	} else {
		targetSpace = edge.TargetSpace
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trust_edges (source_space, kind, target_space, target_topic)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_space, kind, target_space, target_topic) DO NOTHING
	`, edge.SourceSpace, edge.Kind, targetSpace, targetTopic)
	if err != nil {
		return fmt.Errorf("upsert trust edge: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProperty(ctx context.Context, id ids.ID) (model.Property, bool, error) {
	var p model.Property
	err := s.db.GetContext(ctx, &p, `SELECT id, data_type FROM properties WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Property{}, false, nil
		}
		return model.Property{}, false, fmt.Errorf("get property: %w", err)
	}
	return p, true, nil
}

func (s *PostgresStore) UpsertProperties(ctx context.Context, properties []model.Property) error {
	if len(properties) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Data types are immutable once assigned (spec §4.2 step 2): an
	// existing property with a different data type is silently retained.
	for _, p := range properties {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO properties (id, data_type) VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.DataType); err != nil {
			return fmt.Errorf("upsert property: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) UpsertEntities(ctx context.Context, entities []model.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entities {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entities (id, created_at, updated_at, created_at_block, updated_at_block)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				updated_at = EXCLUDED.updated_at,
				updated_at_block = EXCLUDED.updated_at_block
		`, e.ID, e.CreatedAt, e.UpdatedAt, e.CreatedAtBlock, e.UpdatedAtBlock); err != nil {
			return fmt.Errorf("upsert entity: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) UpsertValues(ctx context.Context, values []model.Value) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, v := range values {
		var lat, lng interface{}
		if v.PointValue != nil {
			lat, lng = v.PointValue.Lat, v.PointValue.Lng
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO values_ (
				id, entity_id, property_id, space_id, language, unit,
				string_value, number_value, boolean_value, time_value, point_lat, point_lng
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (id) DO UPDATE SET
				language = EXCLUDED.language,
				unit = EXCLUDED.unit,
				string_value = EXCLUDED.string_value,
				number_value = EXCLUDED.number_value,
				boolean_value = EXCLUDED.boolean_value,
				time_value = EXCLUDED.time_value,
				point_lat = EXCLUDED.point_lat,
				point_lng = EXCLUDED.point_lng
		`, v.ID, v.EntityID, v.PropertyID, v.SpaceID, nullString(v.Language), nullString(v.Unit),
			v.StringValue, v.NumberValue, v.BooleanValue, v.TimeValue, lat, lng); err != nil {
			return fmt.Errorf("upsert value: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) DeleteValues(ctx context.Context, spaceID ids.ID, valueIDs []ids.ID) error {
	if len(valueIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range valueIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM values_ WHERE id = $1 AND space_id = $2`, id, spaceID); err != nil {
			return fmt.Errorf("delete value: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) UpsertRelation(ctx context.Context, r model.Relation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relations (
			id, type_id, entity_id, space_id, from_entity, to_entity,
			from_space, to_space, from_version, to_version, position, verified
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			type_id = EXCLUDED.type_id,
			from_entity = EXCLUDED.from_entity,
			to_entity = EXCLUDED.to_entity,
			from_space = EXCLUDED.from_space,
			to_space = EXCLUDED.to_space,
			from_version = EXCLUDED.from_version,
			to_version = EXCLUDED.to_version,
			position = EXCLUDED.position,
			verified = EXCLUDED.verified
	`, r.ID, r.TypeID, r.EntityID, r.SpaceID, r.FromEntity, r.ToEntity,
		r.FromSpace, r.ToSpace, r.FromVersion, r.ToVersion, r.Position, r.Verified)
	if err != nil {
		return fmt.Errorf("upsert relation: %w", err)
	}
	return nil
}

// UpdateRelation overwrites only the non-null provided fields, then
// nulls every column flagged in unset (spec §4.2 step 6).
func (s *PostgresStore) UpdateRelation(ctx context.Context, r model.Relation, unset model.RelationUnsetFields) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE relations SET
			from_space   = CASE WHEN $2 THEN NULL WHEN $3::text IS NOT NULL THEN $3 ELSE from_space END,
			to_space     = CASE WHEN $4 THEN NULL WHEN $5::text IS NOT NULL THEN $5 ELSE to_space END,
			from_version = CASE WHEN $6 THEN NULL WHEN $7::text IS NOT NULL THEN $7 ELSE from_version END,
			to_version   = CASE WHEN $8 THEN NULL WHEN $9::text IS NOT NULL THEN $9 ELSE to_version END,
			position     = CASE WHEN $10 THEN NULL WHEN $11::text IS NOT NULL THEN $11 ELSE position END,
			verified     = CASE WHEN $12 THEN NULL WHEN $13::boolean IS NOT NULL THEN $13 ELSE verified END
		WHERE id = $1
	`, r.ID,
		unset.FromSpace, r.FromSpace,
		unset.ToSpace, r.ToSpace,
		unset.FromVersion, r.FromVersion,
		unset.ToVersion, r.ToVersion,
		unset.Position, r.Position,
		unset.Verified, r.Verified,
	)
	if err != nil {
		return fmt.Errorf("update relation: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteRelation(ctx context.Context, id ids.ID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM relations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete relation: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertMembership(ctx context.Context, delta model.MembershipDelta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memberships (space_id, topic_id) VALUES ($1, $2)
		ON CONFLICT (space_id, topic_id) DO NOTHING
	`, delta.SpaceID, delta.TopicID)
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertSubspace(ctx context.Context, delta model.SubspaceDelta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subspaces (parent_space_id, child_space_id) VALUES ($1, $2)
		ON CONFLICT (parent_space_id, child_space_id) DO NOTHING
	`, delta.ParentSpaceID, delta.ChildSpaceID)
	if err != nil {
		return fmt.Errorf("upsert subspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertEditor(ctx context.Context, event model.EditorEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO editors (dao_space_id, editor) VALUES ($1, $2)
		ON CONFLICT (dao_space_id, editor) DO NOTHING
	`, event.DAOSpaceID, event.Editor)
	if err != nil {
		return fmt.Errorf("upsert editor: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertMember(ctx context.Context, event model.MemberEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (dao_space_id, member) VALUES ($1, $2)
		ON CONFLICT (dao_space_id, member) DO NOTHING
	`, event.DAOSpaceID, event.Member)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadBlockCursor(ctx context.Context, consumerID string) (string, uint64, error) {
	var cursor string
	var block uint64
	err := s.db.QueryRowContext(ctx, `SELECT cursor, block_number FROM block_cursors WHERE consumer_id = $1`, consumerID).Scan(&cursor, &block)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", 0, nil
		}
		return "", 0, fmt.Errorf("load block cursor: %w", err)
	}
	return cursor, block, nil
}

func (s *PostgresStore) PersistBlockCursor(ctx context.Context, consumerID string, cursor string, block uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO block_cursors (consumer_id, cursor, block_number) VALUES ($1, $2, $3)
		ON CONFLICT (consumer_id) DO UPDATE SET cursor = EXCLUDED.cursor, block_number = EXCLUDED.block_number
	`, consumerID, cursor, block)
	if err != nil {
		return fmt.Errorf("persist block cursor: %w", err)
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
