package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/hermesgraph/ingestd/internal/ids"
	"github.com/hermesgraph/ingestd/internal/model"
)

// SQLiteStore implements Store against SQLite, for local development and
// tests that don't want a live Postgres instance (teacher's own framing
// for its SQLiteStore: "for local/development").
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path and
// ensures the schema exists.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS spaces (
		space_id TEXT PRIMARY KEY,
		topic_id TEXT NOT NULL,
		kind INTEGER NOT NULL,
		owner TEXT
	);

	CREATE TABLE IF NOT EXISTS trust_edges (
		source_space TEXT NOT NULL,
		kind INTEGER NOT NULL,
		target_space TEXT,
		target_topic TEXT,
		PRIMARY KEY (source_space, kind, target_space, target_topic)
	);

	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		data_type INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		created_at_block INTEGER NOT NULL,
		updated_at_block INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS values_ (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		property_id TEXT NOT NULL,
		space_id TEXT NOT NULL,
		language TEXT,
		unit TEXT,
		string_value TEXT,
		number_value REAL,
		boolean_value INTEGER,
		time_value DATETIME,
		point_lat REAL,
		point_lng REAL
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
		verified INTEGER
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
		block_number INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertSpace(ctx context.Context, space model.Space) error {
	var owner interface{}
	if space.Kind == model.SpaceKindPersonal {
		owner = space.Owner
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO spaces (space_id, topic_id, kind, owner) VALUES (?, ?, ?, ?)
	`, space.SpaceID, space.TopicID, space.Kind, owner)
	return err
}

func (s *SQLiteStore) UpsertTrustEdge(ctx context.Context, edge model.TrustEdge) error {
	var targetSpace, targetTopic interface{}
	if edge.Kind == model.TrustEdgeSubtopic {
		targetTopic = edge.TargetTopic
	} else {
		targetSpace = edge.TargetSpace
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO trust_edges (source_space, kind, target_space, target_topic) VALUES (?, ?, ?, ?)
	`, edge.SourceSpace, edge.Kind, targetSpace, targetTopic)
	return err
}

func (s *SQLiteStore) GetProperty(ctx context.Context, id ids.ID) (model.Property, bool, error) {
	var p model.Property
	err := s.db.GetContext(ctx, &p, `SELECT id, data_type FROM properties WHERE id = ?`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Property{}, false, nil
		}
		return model.Property{}, false, err
	}
	return p, true, nil
}

func (s *SQLiteStore) UpsertProperties(ctx context.Context, properties []model.Property) error {
	if len(properties) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range properties {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO properties (id, data_type) VALUES (?, ?)`, p.ID, p.DataType); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpsertEntities(ctx context.Context, entities []model.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range entities {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entities (id, created_at, updated_at, created_at_block, updated_at_block)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at, updated_at_block = excluded.updated_at_block
		`, e.ID, e.CreatedAt, e.UpdatedAt, e.CreatedAtBlock, e.UpdatedAtBlock); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpsertValues(ctx context.Context, values []model.Value) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
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
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				language = excluded.language, unit = excluded.unit,
				string_value = excluded.string_value, number_value = excluded.number_value,
				boolean_value = excluded.boolean_value, time_value = excluded.time_value,
				point_lat = excluded.point_lat, point_lng = excluded.point_lng
		`, v.ID, v.EntityID, v.PropertyID, v.SpaceID, nullString(v.Language), nullString(v.Unit),
			v.StringValue, v.NumberValue, v.BooleanValue, v.TimeValue, lat, lng); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteValues(ctx context.Context, spaceID ids.ID, valueIDs []ids.ID) error {
	if len(valueIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range valueIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM values_ WHERE id = ? AND space_id = ?`, id, spaceID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpsertRelation(ctx context.Context, r model.Relation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relations (
			id, type_id, entity_id, space_id, from_entity, to_entity,
			from_space, to_space, from_version, to_version, position, verified
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			type_id = excluded.type_id, from_entity = excluded.from_entity, to_entity = excluded.to_entity,
			from_space = excluded.from_space, to_space = excluded.to_space,
			from_version = excluded.from_version, to_version = excluded.to_version,
			position = excluded.position, verified = excluded.verified
	`, r.ID, r.TypeID, r.EntityID, r.SpaceID, r.FromEntity, r.ToEntity,
		r.FromSpace, r.ToSpace, r.FromVersion, r.ToVersion, r.Position, r.Verified)
	return err
}

func (s *SQLiteStore) UpdateRelation(ctx context.Context, r model.Relation, unset model.RelationUnsetFields) error {
	current, err := s.getRelation(ctx, r.ID)
	if err != nil {
		return err
	}

	merge := func(currentVal, newVal *string, clear bool) *string {
		if clear {
			return nil
		}
		if newVal != nil {
			return newVal
		}
		return currentVal
	}
	mergeBool := func(currentVal, newVal *bool, clear bool) *bool {
		if clear {
			return nil
		}
		if newVal != nil {
			return newVal
		}
		return currentVal
	}
	mergeID := func(currentVal, newVal *ids.ID, clear bool) *ids.ID {
		if clear {
			return nil
		}
		if newVal != nil {
			return newVal
		}
		return currentVal
	}

	fromSpace := mergeID(current.FromSpace, r.FromSpace, unset.FromSpace)
	toSpace := mergeID(current.ToSpace, r.ToSpace, unset.ToSpace)
	fromVersion := mergeID(current.FromVersion, r.FromVersion, unset.FromVersion)
	toVersion := mergeID(current.ToVersion, r.ToVersion, unset.ToVersion)
	position := merge(current.Position, r.Position, unset.Position)
	verified := mergeBool(current.Verified, r.Verified, unset.Verified)

	_, err = s.db.ExecContext(ctx, `
		UPDATE relations SET from_space = ?, to_space = ?, from_version = ?, to_version = ?, position = ?, verified = ?
		WHERE id = ?
	`, fromSpace, toSpace, fromVersion, toVersion, position, verified, r.ID)
	return err
}

func (s *SQLiteStore) getRelation(ctx context.Context, id ids.ID) (model.Relation, error) {
	var r model.Relation
	err := s.db.GetContext(ctx, &r, `
		SELECT id, type_id, entity_id, space_id, from_entity, to_entity,
			from_space, to_space, from_version, to_version, position, verified
		FROM relations WHERE id = ?
	`, id)
	if err == sql.ErrNoRows {
		return model.Relation{ID: id}, nil
	}
	return r, err
}

func (s *SQLiteStore) DeleteRelation(ctx context.Context, id ids.ID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM relations WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) UpsertMembership(ctx context.Context, delta model.MembershipDelta) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO memberships (space_id, topic_id) VALUES (?, ?)`, delta.SpaceID, delta.TopicID)
	return err
}

func (s *SQLiteStore) UpsertSubspace(ctx context.Context, delta model.SubspaceDelta) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO subspaces (parent_space_id, child_space_id) VALUES (?, ?)`, delta.ParentSpaceID, delta.ChildSpaceID)
	return err
}

func (s *SQLiteStore) UpsertEditor(ctx context.Context, event model.EditorEvent) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO editors (dao_space_id, editor) VALUES (?, ?)`, event.DAOSpaceID, event.Editor)
	return err
}

func (s *SQLiteStore) UpsertMember(ctx context.Context, event model.MemberEvent) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO members (dao_space_id, member) VALUES (?, ?)`, event.DAOSpaceID, event.Member)
	return err
}

func (s *SQLiteStore) LoadBlockCursor(ctx context.Context, consumerID string) (string, uint64, error) {
	var cursor string
	var block uint64
	err := s.db.QueryRowContext(ctx, `SELECT cursor, block_number FROM block_cursors WHERE consumer_id = ?`, consumerID).Scan(&cursor, &block)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", 0, nil
		}
		return "", 0, err
	}
	return cursor, block, nil
}

func (s *SQLiteStore) PersistBlockCursor(ctx context.Context, consumerID string, cursor string, block uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO block_cursors (consumer_id, cursor, block_number) VALUES (?, ?, ?)
		ON CONFLICT(consumer_id) DO UPDATE SET cursor = excluded.cursor, block_number = excluded.block_number
	`, consumerID, cursor, block)
	return err
}
